package net

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

const testAppID = 730

func newTestSession(t *testing.T) (*Session, *Pipe, *packet.Registry) {
	t.Helper()
	pipe := NewPipe()
	reg := packet.NewRegistry(zap.NewNop())
	s := NewSession(SessionConfig{AppID: testAppID, ProtocolVersion: 2000202, HelloInterval: time.Hour},
		pipe, reg, event.NewBus(), zap.NewNop())
	return s, pipe, reg
}

func runSession(t *testing.T, s *Session) (cancel func()) {
	t.Helper()
	ctx, ctxCancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = s.Run(ctx)
		close(done)
	}()
	return func() {
		ctxCancel()
		<-done
	}
}

func nextOutbound(t *testing.T, p *Pipe) Envelope {
	t.Helper()
	select {
	case env := <-p.Outbound():
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("no outbound envelope")
		return Envelope{}
	}
}

func TestSessionSendsHelloWhenLoggedIn(t *testing.T) {
	s, pipe, _ := newTestSession(t)
	stop := runSession(t, s)
	defer stop()

	env := nextOutbound(t, pipe)
	l, isProto := packet.Split(env.MsgType)
	assert.Equal(t, packet.ClientHello, l)
	assert.True(t, isProto)

	body, err := packet.Unframe(true, env.Payload)
	require.NoError(t, err)
	var hello protocol.ClientHello
	require.NoError(t, hello.Unmarshal(body))
	assert.Equal(t, uint32(2000202), hello.Version)
}

func TestSessionDispatchesOwnAppOnly(t *testing.T) {
	s, pipe, reg := newTestSession(t)
	got := make(chan int32, 4)
	reg.Register(packet.ClientConnectionStatus, packet.Proto[protocol.ConnectionStatus](), packet.AllStates,
		func(_ any, msg *packet.Message) {
			got <- msg.Body.(*protocol.ConnectionStatus).Status
		})
	stop := runSession(t, s)
	defer stop()

	body := (&protocol.ConnectionStatus{Status: protocol.StatusGCGoingDown}).Marshal()
	pipe.Deliver(Envelope{AppID: 440, MsgType: packet.Join(packet.ClientConnectionStatus, true),
		Payload: packet.Frame(packet.ClientConnectionStatus, true, body)})
	pipe.Deliver(Envelope{AppID: testAppID, MsgType: packet.Join(packet.ClientConnectionStatus, true),
		Payload: packet.Frame(packet.ClientConnectionStatus, true, body)})

	select {
	case st := <-got:
		assert.Equal(t, protocol.StatusGCGoingDown, st)
	case <-time.After(2 * time.Second):
		t.Fatal("handler not called")
	}
	assert.Empty(t, got, "message for another app is ignored")
}

func TestSessionTransitions(t *testing.T) {
	s, _, _ := newTestSession(t)
	var seen []string
	event.Subscribe(s.Bus(), func(event.GCConnect) { seen = append(seen, "connect") })
	event.Subscribe(s.Bus(), func(event.GCReady) { seen = append(seen, "ready") })
	event.Subscribe(s.Bus(), func(event.GCDisconnect) { seen = append(seen, "disconnect") })

	assert.False(t, s.MarkReady(0), "ready requires connected")
	assert.True(t, s.Connect())
	assert.False(t, s.Connect())
	assert.True(t, s.MarkReady(3))
	assert.False(t, s.MarkReady(3), "ready fires once")
	assert.Equal(t, packet.StateReady, s.State())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.AwaitReady(ctx))

	assert.True(t, s.Disconnect("no session"))
	assert.False(t, s.Disconnect("again"))
	s.Bus().Flush()
	assert.Equal(t, []string{"connect", "ready", "disconnect"}, seen)

	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	assert.ErrorIs(t, s.AwaitReady(short), context.DeadlineExceeded, "ready is re-armed after disconnect")
}

func TestAwaitReadyUnblocks(t *testing.T) {
	s, _, _ := newTestSession(t)
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Connect()
		s.MarkReady(0)
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.AwaitReady(ctx))
}

func TestSessionGoodbyeOnLogOff(t *testing.T) {
	s, pipe, _ := newTestSession(t)
	disconnected := make(chan string, 1)
	event.Subscribe(s.Bus(), func(e event.GCDisconnect) { disconnected <- e.Reason })
	s.Connect()
	s.Bus().Flush()

	stop := runSession(t, s)
	defer stop()
	pipe.LogOff()

	select {
	case reason := <-disconnected:
		assert.Equal(t, "goodbye", reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect on log off")
	}
	assert.Equal(t, packet.StateDisconnected, s.State())
}

func TestCaptureReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captures", "run.jsonl.zst")
	w, err := NewCaptureWriter(path)
	require.NoError(t, err)

	pipe := NewPipe()
	rec := Record(pipe, w)
	pipe.Deliver(Envelope{AppID: testAppID, MsgType: 1, Payload: []byte{1, 2}})
	pipe.Deliver(Envelope{AppID: testAppID, MsgType: 2, Payload: []byte{3}})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := rec.Recv(ctx)
		require.NoError(t, err)
	}
	require.NoError(t, rec.Send(ctx, Envelope{AppID: testAppID, MsgType: 99}))
	<-pipe.Outbound()
	require.NoError(t, rec.Close())

	rp, err := OpenReplay(path)
	require.NoError(t, err)
	defer rp.Close()

	first, err := rp.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), first.MsgType)
	assert.Equal(t, []byte{1, 2}, first.Payload)

	second, err := rp.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), second.MsgType)

	_, err = rp.Recv(ctx)
	assert.True(t, IsEOF(err), "outbound records are skipped and the end is clean")
}

func TestRelayTransport(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan relayFrame, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(relayFrame{Type: frameLoggedOn})
		_ = conn.WriteJSON(relayFrame{Type: frameGC, Envelope: Envelope{AppID: testAppID, MsgType: 7, Payload: []byte{9}}})
		var f relayFrame
		if err := conn.ReadJSON(&f); err == nil {
			received <- f
		}
		_ = conn.WriteJSON(relayFrame{Type: frameLoggedOff})
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tr, err := DialRelay(ctx, RelayConfig{URL: "ws" + strings.TrimPrefix(srv.URL, "http")}, zap.NewNop())
	require.NoError(t, err)
	defer tr.Close()

	env, err := tr.Recv(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), env.MsgType)
	assert.Equal(t, []byte{9}, env.Payload)

	select {
	case <-tr.LoggedIn():
	case <-ctx.Done():
		t.Fatal("never logged in")
	}

	require.NoError(t, tr.Send(ctx, Envelope{AppID: testAppID, MsgType: 8}))
	select {
	case f := <-received:
		assert.Equal(t, frameGC, f.Type)
		assert.Equal(t, uint32(8), f.MsgType)
	case <-ctx.Done():
		t.Fatal("relay did not receive frame")
	}

	_, err = tr.Recv(ctx)
	assert.ErrorIs(t, err, ErrLoggedOff)
}

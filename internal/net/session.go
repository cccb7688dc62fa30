package net

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// SessionConfig holds the per-session protocol settings.
type SessionConfig struct {
	AppID           uint32
	ProtocolVersion uint32
	HelloInterval   time.Duration
}

// Session is one GC session on top of a logged-in Steam connection. The
// receive loop dispatches messages in arrival order; handlers run on that
// goroutine and may block only at documented points.
type Session struct {
	ID string

	cfg       SessionConfig
	transport Transport
	registry  *packet.Registry
	bus       *event.Bus

	state atomic.Int32 // packet.SessionState stored as int32

	mu      sync.Mutex
	readyCh chan struct{}

	log *zap.Logger
}

func NewSession(cfg SessionConfig, t Transport, reg *packet.Registry, bus *event.Bus, log *zap.Logger) *Session {
	if cfg.HelloInterval <= 0 {
		cfg.HelloInterval = 10 * time.Second
	}
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		cfg:       cfg,
		transport: t,
		registry:  reg,
		bus:       bus,
		readyCh:   make(chan struct{}),
		log:       log.With(zap.String("session", id)),
	}
	s.state.Store(int32(packet.StateDisconnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) Bus() *event.Bus             { return s.bus }
func (s *Session) Registry() *packet.Registry { return s.registry }
func (s *Session) Log() *zap.Logger           { return s.log }

// Connect moves Disconnected to Connected and emits GCConnect. It returns
// false when the session was already connected or ready.
func (s *Session) Connect() bool {
	if !s.state.CompareAndSwap(int32(packet.StateDisconnected), int32(packet.StateConnected)) {
		return false
	}
	metrics.SessionState.Set(float64(packet.StateConnected))
	s.log.Info("gc connected")
	event.Emit(s.bus, event.GCConnect{SessionID: s.ID})
	return true
}

// MarkReady moves Connected to Ready, releases AwaitReady callers and emits
// GCReady. Ready fires at most once per connection.
func (s *Session) MarkReady(items int) bool {
	if !s.state.CompareAndSwap(int32(packet.StateConnected), int32(packet.StateReady)) {
		return false
	}
	s.mu.Lock()
	close(s.readyCh)
	s.mu.Unlock()
	metrics.SessionState.Set(float64(packet.StateReady))
	s.log.Info("gc ready", zap.Int("items", items))
	event.Emit(s.bus, event.GCReady{SessionID: s.ID, Items: items})
	return true
}

// Disconnect resets the session to Disconnected so a later welcome re-arms
// the whole sequence. It returns false if already disconnected.
func (s *Session) Disconnect(reason string) bool {
	prev := packet.SessionState(s.state.Swap(int32(packet.StateDisconnected)))
	if prev == packet.StateDisconnected {
		return false
	}
	if prev == packet.StateReady {
		s.mu.Lock()
		s.readyCh = make(chan struct{})
		s.mu.Unlock()
	}
	metrics.SessionState.Set(float64(packet.StateDisconnected))
	s.log.Info("gc disconnected", zap.String("reason", reason))
	event.Emit(s.bus, event.GCDisconnect{SessionID: s.ID, Reason: reason})
	return true
}

// Goodbye is the local disconnect signal, used when the Steam session
// underneath goes away.
func (s *Session) Goodbye() {
	if s.Disconnect("goodbye") {
		s.bus.Flush()
	}
}

// AwaitReady blocks until the session is ready or ctx ends.
func (s *Session) AwaitReady(ctx context.Context) error {
	for {
		s.mu.Lock()
		ch := s.readyCh
		s.mu.Unlock()
		select {
		case <-ch:
			if s.State() == packet.StateReady {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run waits for the transport to log in, then receives and dispatches
// messages until ctx ends or the transport closes. Events queued by a
// handler are flushed after each message.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go s.helloLoop(ctx)

	for {
		env, err := s.transport.Recv(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ErrLoggedOff):
			s.Goodbye()
			continue
		case ctx.Err() != nil:
			return ctx.Err()
		case IsEOF(err):
			s.Goodbye()
			return nil
		default:
			return fmt.Errorf("session recv: %w", err)
		}

		if env.AppID != s.cfg.AppID {
			s.log.Debug("ignoring message for other app", zap.Uint32("app_id", env.AppID))
			continue
		}
		_ = s.registry.Dispatch(s, s.State(), env.MsgType, env.Payload)
		s.bus.Flush()
	}
}

// helloLoop sends ClientHello while the transport is logged in and the GC
// has not welcomed us.
func (s *Session) helloLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.HelloInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.transport.LoggedIn():
		}
		if s.State() == packet.StateDisconnected {
			hello := &protocol.ClientHello{Version: s.cfg.ProtocolVersion}
			if err := s.SendProto(ctx, packet.ClientHello, hello); err != nil && ctx.Err() == nil {
				s.log.Debug("client hello failed", zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Send frames body and hands it to the transport.
func (s *Session) Send(ctx context.Context, l packet.Language, proto bool, body []byte) error {
	env := Envelope{
		AppID:   s.cfg.AppID,
		MsgType: packet.Join(l, proto),
		Payload: packet.Frame(l, proto, body),
	}
	if err := s.transport.Send(ctx, env); err != nil {
		return fmt.Errorf("send %s: %w", l, err)
	}
	metrics.MessagesSent.WithLabelValues(l.String()).Inc()
	s.log.Debug("gc message sent", zap.Stringer("language", l), zap.Int("size", len(body)))
	return nil
}

// SendProto sends a protobuf message.
func (s *Session) SendProto(ctx context.Context, l packet.Language, m protocol.Message) error {
	return s.Send(ctx, l, true, m.Marshal())
}

// SendStruct sends a fixed-layout message built with a packet.Writer.
func (s *Session) SendStruct(ctx context.Context, l packet.Language, w *packet.Writer) error {
	return s.Send(ctx, l, false, w.Bytes())
}

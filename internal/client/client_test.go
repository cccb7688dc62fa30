package client

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/attribute"
	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/handler"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

const appID = 730

type fakeGC struct {
	pipe   *net.Pipe
	sess   *net.Session
	deps   *handler.Deps
	client *Client
}

func newFakeGC(t *testing.T, cfg Config) *fakeGC {
	t.Helper()
	pipe := net.NewPipe()
	reg := packet.NewRegistry(zap.NewNop())
	sess := net.NewSession(net.SessionConfig{AppID: appID, HelloInterval: time.Hour}, pipe, reg, event.NewBus(), zap.NewNop())
	deps := &handler.Deps{Store: backpack.NewStore(nil), Log: zap.NewNop()}
	handler.RegisterAll(reg, deps)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sess.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &fakeGC{pipe: pipe, sess: sess, deps: deps, client: New(sess, deps, cfg, zap.NewNop())}
}

func (g *fakeGC) send(l packet.Language, m protocol.Message) {
	g.pipe.Deliver(net.Envelope{AppID: appID, MsgType: packet.Join(l, true), Payload: packet.Frame(l, true, m.Marshal())})
}

func (g *fakeGC) welcome(t *testing.T) {
	t.Helper()
	g.send(packet.ClientWelcome, &protocol.ClientWelcome{Version: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.sess.AwaitReady(ctx))
}

// next returns the body of the next outbound message that is not a hello.
func (g *fakeGC) next(t *testing.T) (packet.Language, []byte) {
	t.Helper()
	for {
		select {
		case env := <-g.pipe.Outbound():
			l, isProto := packet.Split(env.MsgType)
			if l == packet.ClientHello {
				continue
			}
			body, err := packet.Unframe(isProto, env.Payload)
			require.NoError(t, err)
			return l, body
		case <-time.After(2 * time.Second):
			t.Fatal("no outbound message")
			return 0, nil
		}
	}
}

func (g *fakeGC) noOutbound(t *testing.T) {
	t.Helper()
	for {
		select {
		case env := <-g.pipe.Outbound():
			if l, _ := packet.Split(env.MsgType); l != packet.ClientHello {
				t.Fatalf("unexpected outbound %s", l)
			}
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func casketEcon(id uint64, count uint32) *protocol.EconItem {
	return &protocol.EconItem{ID: id, DefIndex: attribute.CasketDefIndex, Inventory: 1, Attributes: []*protocol.ItemAttribute{
		{DefIndex: attribute.DefCasketContentCount, Value: count},
	}}
}

func containedEcon(id, casket uint64) *protocol.EconItem {
	w := &protocol.EconItem{ID: id, DefIndex: 7}
	for _, a := range attribute.Casket(casket) {
		w.Attributes = append(w.Attributes, &protocol.ItemAttribute{DefIndex: a.DefIndex, ValueBytes: a.Value})
	}
	return w
}

func created(w *protocol.EconItem) *protocol.SingleObject {
	return &protocol.SingleObject{TypeID: protocol.SOTypeEconItem, ObjectData: w.Marshal()}
}

func TestParseInspectURL(t *testing.T) {
	tests := []struct {
		url  string
		want InspectParams
		err  bool
	}{
		{
			url:  "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20S76561198000000001A25000000000D9000000000000000001",
			want: InspectParams{Owner: 76561198000000001, AssetID: 25000000000, D: 9000000000000000001},
		},
		{
			url:  "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20M3100000000000000000A25000000000D42",
			want: InspectParams{Market: 3100000000000000000, AssetID: 25000000000, D: 42},
		},
		{url: "steam://rungame/730/+csgo_econ_action_preview%20X1A2D3", err: true},
		{url: "S1A2D3 trailing", err: true},
	}
	for _, tt := range tests {
		got, err := ParseInspectURL(tt.url)
		if tt.err {
			assert.ErrorIs(t, err, ErrInvalidInspectURL, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got)
	}
}

func TestInspectValidatesParams(t *testing.T) {
	g := newFakeGC(t, Config{})
	_, err := g.client.Inspect(context.Background(), InspectParams{AssetID: 1, D: 2})
	assert.ErrorIs(t, err, ErrInvalidInspectURL)
	_, err = g.client.Inspect(context.Background(), InspectParams{Owner: 1, AssetID: 1})
	assert.ErrorIs(t, err, ErrInvalidInspectURL)
}

func TestInspect(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second, InspectCacheSize: 8, InspectCacheTTL: time.Minute})
	g.welcome(t)

	infos := make(chan *backpack.Inspected, 2)
	event.Subscribe(g.sess.Bus(), func(e event.InspectItemInfo) { infos <- e.Item })

	type result struct {
		item *backpack.Inspected
		err  error
	}
	done := make(chan result, 1)
	go func() {
		it, err := g.client.InspectURL(context.Background(), "steam://x/+csgo_econ_action_preview%20S76561198000000001A500D600")
		done <- result{it, err}
	}()

	l, body := g.next(t)
	require.Equal(t, packet.PreviewDataBlockRequest, l)
	var req protocol.PreviewDataBlockRequest
	require.NoError(t, req.Unmarshal(body))
	assert.Equal(t, protocol.PreviewDataBlockRequest{S: 76561198000000001, A: 500, D: 600}, req)

	// A response for another asset must not satisfy the flow.
	g.send(packet.PreviewDataBlockResponse, &protocol.PreviewDataBlockResponse{ItemInfo: &protocol.PreviewDataBlock{ItemID: 999}})
	g.send(packet.PreviewDataBlockResponse, &protocol.PreviewDataBlockResponse{ItemInfo: &protocol.PreviewDataBlock{
		ItemID:     500,
		DefIndex:   7,
		PaintIndex: 282,
		PaintWear:  0x3E800000, // 0.25
		Stickers:   []*protocol.PreviewSticker{{Slot: 0, StickerID: 76, Wear: 0.1}},
	}})

	var r result
	select {
	case r = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("inspect did not return")
	}
	require.NoError(t, r.err)
	assert.Equal(t, uint64(500), r.item.AssetID)
	assert.InDelta(t, 0.25, r.item.Paint.Wear, 1e-6)
	require.Len(t, r.item.Stickers, 1)
	assert.Equal(t, 1, r.item.Stickers[0].Slot)

	select {
	case got := <-infos:
		assert.Equal(t, uint64(500), got.AssetID)
	case <-time.After(time.Second):
		t.Fatal("no inspect event")
	}

	again, err := g.client.Inspect(context.Background(), InspectParams{Owner: 76561198000000001, AssetID: 500, D: 600})
	require.NoError(t, err)
	assert.Same(t, r.item, again, "second inspect is served from cache")
	g.noOutbound(t)
}

func TestRename(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second})
	g.welcome(t)

	done := make(chan error, 1)
	go func() { done <- g.client.Rename(context.Background(), 11, 22, "Bob") }()

	l, body := g.next(t)
	require.Equal(t, packet.NameItem, l)
	assert.Equal(t, uint64(11), binary.LittleEndian.Uint64(body[0:8]))
	assert.Equal(t, uint64(22), binary.LittleEndian.Uint64(body[8:16]))
	assert.Equal(t, []byte{0x00, 'B', 'o', 'b', 0x00}, body[16:])

	g.send(packet.ItemCustomizationNotification, &protocol.ItemCustomizationNotification{
		ItemIDs: []uint64{22}, Request: uint32(packet.NotifyCasketAdded),
	})
	g.send(packet.ItemCustomizationNotification, &protocol.ItemCustomizationNotification{
		ItemIDs: []uint64{22}, Request: uint32(packet.NotifyNameItem),
	})

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("rename did not return")
	}
}

func TestRenameTimeout(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 50 * time.Millisecond})
	g.welcome(t)

	err := g.client.Rename(context.Background(), 1, 2, "x")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlowsAwaitReady(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.client.Delete(ctx, 5)
	assert.ErrorIs(t, err, ErrNotReady)

	done := make(chan error, 1)
	go func() { done <- g.client.Delete(context.Background(), 5) }()
	g.welcome(t)

	l, body := g.next(t)
	assert.Equal(t, packet.Delete, l)
	assert.Equal(t, uint64(5), binary.LittleEndian.Uint64(body))
	assert.NoError(t, <-done)
}

func TestCasketAddRemove(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second})
	g.welcome(t)

	for _, tc := range []struct {
		name string
		run  func() error
		lang packet.Language
		kind packet.Notification
	}{
		{"add", func() error { return g.client.CasketAdd(context.Background(), 100, 7) }, packet.CasketItemAdd, packet.NotifyCasketAdded},
		{"remove", func() error { return g.client.CasketRemove(context.Background(), 100, 7) }, packet.CasketItemExtract, packet.NotifyCasketRemoved},
	} {
		done := make(chan error, 1)
		go func() { done <- tc.run() }()

		l, body := g.next(t)
		require.Equal(t, tc.lang, l, tc.name)
		var req protocol.CasketItem
		require.NoError(t, req.Unmarshal(body))
		assert.Equal(t, protocol.CasketItem{CasketItemID: 100, ItemItemID: 7}, req, tc.name)

		g.send(packet.ItemCustomizationNotification, &protocol.ItemCustomizationNotification{
			ItemIDs: []uint64{100, 7}, Request: uint32(tc.kind),
		})
		select {
		case err := <-done:
			assert.NoError(t, err, tc.name)
		case <-time.After(3 * time.Second):
			t.Fatalf("%s did not return", tc.name)
		}
	}
}

func TestCasketContents(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second, CasketWaitTimeout: 2 * time.Second})
	g.welcome(t)
	g.send(packet.SOCreate, created(casketEcon(100, 2)))

	type result struct {
		items []*backpack.Item
		err   error
	}
	done := make(chan result, 1)
	go func() {
		items, err := g.client.CasketContents(context.Background(), 100)
		done <- result{items, err}
	}()

	l, body := g.next(t)
	require.Equal(t, packet.CasketItemLoadContents, l)
	var req protocol.CasketItem
	require.NoError(t, req.Unmarshal(body))
	assert.Equal(t, uint64(100), req.CasketItemID)

	g.send(packet.ItemCustomizationNotification, &protocol.ItemCustomizationNotification{
		ItemIDs: []uint64{100, 1, 2}, Request: uint32(packet.NotifyCasketContents),
	})
	g.send(packet.SOCreate, created(containedEcon(1, 100)))
	g.send(packet.SOCreate, created(containedEcon(2, 100)))

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.Len(t, r.items, 2)
		assert.Equal(t, uint64(1), r.items[0].AssetID)
		assert.Equal(t, uint64(2), r.items[1].AssetID)
	case <-time.After(3 * time.Second):
		t.Fatal("casket contents did not return")
	}
	assert.Equal(t, 1, g.deps.Store.Len(), "contained items stay out of the backpack")
}

func TestCasketContentsTimesOut(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second, CasketWaitTimeout: 100 * time.Millisecond})
	g.welcome(t)
	g.send(packet.SOCreate, created(casketEcon(100, 2)))
	g.send(packet.SOCreate, created(containedEcon(1, 100)))

	done := make(chan error, 1)
	go func() {
		_, err := g.client.CasketContents(context.Background(), 100)
		done <- err
	}()

	l, _ := g.next(t)
	require.Equal(t, packet.CasketItemLoadContents, l)
	g.send(packet.ItemCustomizationNotification, &protocol.ItemCustomizationNotification{
		ItemIDs: []uint64{100}, Request: uint32(packet.NotifyCasketContents),
	})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrTimeout)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	case <-time.After(3 * time.Second):
		t.Fatal("casket contents hung")
	}
}

func TestFetchProfile(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second})
	g.welcome(t)

	type result struct {
		p   *protocol.MatchmakingHello
		err error
	}
	done := make(chan result, 1)
	go func() {
		p, err := g.client.FetchProfile(context.Background(), 77)
		done <- result{p, err}
	}()

	l, body := g.next(t)
	require.Equal(t, packet.ClientRequestPlayersProfile, l)
	var req protocol.ClientRequestPlayersProfile
	require.NoError(t, req.Unmarshal(body))
	assert.Equal(t, uint32(77), req.AccountID)

	g.send(packet.PlayersProfile, &protocol.PlayersProfile{AccountProfiles: []*protocol.MatchmakingHello{
		{AccountID: 77, PlayerLevel: 21, PlayerCurXP: 327684999},
	}})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, int32(21), r.p.PlayerLevel)
		assert.Equal(t, 0, PercentageOfCurrentLevel(r.p))
	case <-time.After(3 * time.Second):
		t.Fatal("profile did not return")
	}

	assert.Nil(t, g.client.ClientProfile())
	g.send(packet.MatchmakingGC2ClientHello, &protocol.MatchmakingHello{AccountID: 1, PlayerLevel: 3})
	assert.Eventually(t, func() bool { return g.client.ClientProfile() != nil }, time.Second, 10*time.Millisecond)
}

func TestPercentageOfCurrentLevel(t *testing.T) {
	tests := []struct {
		xp   int32
		want int
	}{
		{0, 0},
		{327680000, 0},
		{327685000, 1},
		{327680000 + 5000*57 + 4999, 57},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PercentageOfCurrentLevel(&protocol.MatchmakingHello{PlayerCurXP: tt.xp}), "xp %d", tt.xp)
	}
}

func TestFetchMatch(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second})
	g.welcome(t)

	type result struct {
		m   *protocol.MatchInfo
		err error
	}
	done := make(chan result, 1)
	go func() {
		m, err := g.client.FetchMatch(context.Background(), 3418117430958030989, 3418122478954021034, 9291)
		done <- result{m, err}
	}()

	l, body := g.next(t)
	require.Equal(t, packet.MatchListRequestFullGame, l)
	var req protocol.MatchListRequestFullGameInfo
	require.NoError(t, req.Unmarshal(body))
	assert.Equal(t, uint64(3418117430958030989), req.MatchID)
	assert.Equal(t, uint64(3418122478954021034), req.OutcomeID)
	assert.Equal(t, uint32(9291), req.Token)

	// a list for another match is not the answer
	g.send(packet.MatchList, &protocol.MatchList{Matches: []*protocol.MatchInfo{{MatchID: 1}}})
	g.send(packet.MatchList, &protocol.MatchList{Matches: []*protocol.MatchInfo{{
		MatchID:   3418117430958030989,
		MatchTime: 1600000000,
		Watchable: &protocol.WatchableMatchInfo{ServerIP: 0x0A000001, TVPort: 27020, GameMap: "de_dust2"},
		RoundStats: []*protocol.RoundStats{
			{Round: 1, Kills: []int32{1, 0}},
			{Round: 30, TeamScores: []int32{16, 14}, MatchResult: 1},
		},
	}}})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		require.NotNil(t, r.m)
		assert.Equal(t, "de_dust2", r.m.Watchable.GameMap)
		assert.Equal(t, "10.0.0.1:27020", r.m.Watchable.ServerAddr().String())
		assert.Equal(t, int64(1600000000), r.m.Played().Unix())
		require.NotNil(t, r.m.Final())
		assert.Equal(t, []int32{16, 14}, r.m.Final().TeamScores)
	case <-time.After(3 * time.Second):
		t.Fatal("match did not return")
	}
}

func TestRecentMatches(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 2 * time.Second})
	g.welcome(t)

	type result struct {
		l   *protocol.MatchList
		err error
	}
	done := make(chan result, 1)
	go func() {
		l, err := g.client.RecentMatches(context.Background(), 77)
		done <- result{l, err}
	}()

	l, body := g.next(t)
	require.Equal(t, packet.MatchListRequestRecentUser, l)
	var req protocol.MatchListRequestRecentUserGames
	require.NoError(t, req.Unmarshal(body))
	assert.Equal(t, uint32(77), req.AccountID)

	g.send(packet.MatchList, &protocol.MatchList{AccountID: 78, Matches: []*protocol.MatchInfo{{MatchID: 1}}})
	g.send(packet.MatchList, &protocol.MatchList{AccountID: 77, Matches: []*protocol.MatchInfo{{MatchID: 2}, {MatchID: 3}}})

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Equal(t, uint32(77), r.l.AccountID)
		require.Len(t, r.l.Matches, 2)
		assert.NotNil(t, r.l.Match(3))
		assert.Nil(t, r.l.Match(1))
	case <-time.After(3 * time.Second):
		t.Fatal("recent matches did not return")
	}
}

func TestMatchFlowsTimeout(t *testing.T) {
	g := newFakeGC(t, Config{RequestTimeout: 50 * time.Millisecond})
	g.welcome(t)

	_, err := g.client.FetchMatch(context.Background(), 1, 2, 3)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// an empty list for someone else does not end the wait
	go g.send(packet.MatchList, &protocol.MatchList{AccountID: 9})
	_, err = g.client.RecentMatches(context.Background(), 8)
	assert.ErrorIs(t, err, ErrTimeout)
}

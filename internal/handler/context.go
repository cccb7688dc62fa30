package handler

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/data"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// BackpackFetcher retrieves the full backpack outside the GC, used for the
// ready bootstrap and for records that reference unknown assets.
type BackpackFetcher interface {
	Fetch(ctx context.Context) ([]*backpack.Item, error)
}

// Deps holds shared dependencies injected into all message handlers.
type Deps struct {
	Store   *backpack.Store
	Fetcher BackpackFetcher // nil = no full fetches
	Items   *data.ItemTable // nil = no display names
	Log     *zap.Logger

	// FetchTimeout bounds one full-backpack fetch including its retry.
	FetchTimeout time.Duration

	// Profile is the client user's latest matchmaking hello.
	Profile atomic.Pointer[protocol.MatchmakingHello]

	refresher *refresher
}

// RegisterAll registers all message handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	if deps.FetchTimeout <= 0 {
		deps.FetchTimeout = time.Minute
	}
	deps.refresher = newRefresher(deps)

	// Session lifecycle
	reg.Register(packet.ClientWelcome, packet.Proto[protocol.ClientWelcome](), packet.AllStates,
		func(sess any, msg *packet.Message) {
			HandleWelcome(sess.(*net.Session), msg.Body.(*protocol.ClientWelcome), deps)
		},
	)
	reg.Register(packet.ClientGoodbye, packet.Proto[protocol.ClientGoodbye](), packet.AllStates,
		func(sess any, msg *packet.Message) {
			HandleGoodbye(sess.(*net.Session), msg.Body.(*protocol.ClientGoodbye), deps)
		},
	)
	reg.Register(packet.ClientConnectionStatus, packet.Proto[protocol.ConnectionStatus](), packet.AllStates,
		func(sess any, msg *packet.Message) {
			HandleConnectionStatus(sess.(*net.Session), msg.Body.(*protocol.ConnectionStatus), deps)
		},
	)

	// SOCache, accepted once the GC has welcomed us
	connected := []packet.SessionState{packet.StateConnected, packet.StateReady}

	reg.Register(packet.SOCacheSubscribed, packet.Proto[protocol.CacheSubscribed](), connected,
		func(sess any, msg *packet.Message) {
			HandleCacheSubscribed(sess.(*net.Session), msg.Body.(*protocol.CacheSubscribed), deps)
		},
	)
	reg.Register(packet.SOCreate, packet.Proto[protocol.SingleObject](), connected,
		func(sess any, msg *packet.Message) {
			HandleCreate(sess.(*net.Session), msg.Body.(*protocol.SingleObject), deps)
		},
	)
	reg.Register(packet.SOUpdate, packet.Proto[protocol.SingleObject](), connected,
		func(sess any, msg *packet.Message) {
			HandleUpdate(sess.(*net.Session), msg.Body.(*protocol.SingleObject), deps)
		},
	)
	reg.Register(packet.SODestroy, packet.Proto[protocol.SingleObject](), connected,
		func(sess any, msg *packet.Message) {
			HandleDestroy(sess.(*net.Session), msg.Body.(*protocol.SingleObject), deps)
		},
	)
	reg.Register(packet.SOUpdateMultiple, packet.Proto[protocol.MultipleObjects](), connected,
		func(sess any, msg *packet.Message) {
			HandleUpdateMultiple(sess.(*net.Session), msg.Body.(*protocol.MultipleObjects), deps)
		},
	)

	// Notifications and account state
	reg.Register(packet.ItemCustomizationNotification, packet.Proto[protocol.ItemCustomizationNotification](), connected,
		func(sess any, msg *packet.Message) {
			HandleItemCustomization(sess.(*net.Session), msg.Body.(*protocol.ItemCustomizationNotification), deps)
		},
	)
	reg.Register(packet.MatchmakingGC2ClientHello, packet.Proto[protocol.MatchmakingHello](), packet.AllStates,
		func(sess any, msg *packet.Message) {
			HandleMatchmakingHello(sess.(*net.Session), msg.Body.(*protocol.MatchmakingHello), deps)
		},
	)

	// Responses only consumed by correlated waiters
	reg.Register(packet.PreviewDataBlockResponse, packet.Proto[protocol.PreviewDataBlockResponse](), nil, nil)
	reg.Register(packet.PlayersProfile, packet.Proto[protocol.PlayersProfile](), nil, nil)
	reg.Register(packet.MatchList, packet.Proto[protocol.MatchList](), nil, nil)
}

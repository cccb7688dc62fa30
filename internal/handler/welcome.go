package handler

import (
	"context"

	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/core/event"
	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// HandleWelcome connects the session and, on the first welcome of a
// connection, builds the backpack from a full fetch plus the embedded cache
// snapshot before marking the session ready. Later welcomes only merge
// their snapshot.
func HandleWelcome(sess *net.Session, msg *protocol.ClientWelcome, deps *Deps) {
	sess.Connect()

	if sess.State() == packet.StateReady {
		for _, c := range msg.OutOfDateCaches {
			mergeCache(sess, c, deps, true)
		}
		return
	}

	var fetched []*backpack.Item
	if deps.Fetcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), deps.FetchTimeout)
		items, err := deps.Fetcher.Fetch(ctx)
		cancel()
		if err != nil {
			metrics.Refreshes.WithLabelValues("bootstrap_failed").Inc()
			sess.Log().Warn("backpack fetch failed, bootstrapping from cache only", zap.Error(err))
		} else {
			metrics.Refreshes.WithLabelValues("bootstrap").Inc()
			fetched = items
		}
	}

	var objects [][]byte
	for _, c := range msg.OutOfDateCaches {
		objects = append(objects, econObjects(c)...)
	}
	bootstrap(sess, objects, fetched, deps)
	sess.MarkReady(deps.Store.Len())
}

// bootstrap replaces the store with the GC's cache snapshot annotated by the
// community fetch. Without a snapshot the fetched backpack is used as is.
func bootstrap(sess *net.Session, objects [][]byte, fetched []*backpack.Item, deps *Deps) {
	community := make(map[uint64]*backpack.Item, len(fetched))
	for _, it := range fetched {
		community[it.AssetID] = it
	}

	if len(objects) == 0 {
		deps.Store.Replace(fetched)
		updateGauges(deps)
		return
	}

	deps.Store.Replace(nil)
	deps.Store.Caskets.Reset()
	_ = deps.Store.Update(func(tx *backpack.Tx) error {
		for _, raw := range objects {
			w, ok := decodeItem(sess, raw)
			if !ok {
				continue
			}
			if c, ok := community[w.ID]; ok {
				it := backpack.FromEconItem(w)
				backpack.MergeCommunity(it, c)
				mergeItem(sess, tx, it, mergeBootstrap, deps)
				continue
			}
			mergeItem(sess, tx, backpack.FromEconItem(w), mergeBootstrap, deps)
		}
		checkCasketLinks(sess, tx, deps)
		return nil
	})
	updateGauges(deps)
}

// HandleGoodbye drops the session back to Disconnected when the GC says
// goodbye; the next welcome re-arms bootstrap and ready.
func HandleGoodbye(sess *net.Session, msg *protocol.ClientGoodbye, deps *Deps) {
	sess.Log().Info("gc said goodbye", zap.Int32("reason", msg.Reason))
	sess.Disconnect("goodbye")
}

// HandleConnectionStatus drops the session back to Disconnected when the GC
// reports that our session is gone.
func HandleConnectionStatus(sess *net.Session, msg *protocol.ConnectionStatus, deps *Deps) {
	sess.Log().Info("gc connection status",
		zap.Int32("status", msg.Status),
		zap.Int32("queue_position", msg.QueuePosition),
		zap.Int32("queue_size", msg.QueueSize),
	)
	if msg.Status == protocol.StatusNoSession {
		sess.Disconnect("no session")
	}
}

// HandleMatchmakingHello records the client user's profile.
func HandleMatchmakingHello(sess *net.Session, msg *protocol.MatchmakingHello, deps *Deps) {
	deps.Profile.Store(msg)
	event.Emit(sess.Bus(), event.ProfileUpdate{Profile: msg})
}

// HandleItemCustomization passes the notification through to observers and
// waiters.
func HandleItemCustomization(sess *net.Session, msg *protocol.ItemCustomizationNotification, deps *Deps) {
	sess.Log().Debug("item customization notification",
		zap.Stringer("request", packet.Notification(msg.Request)),
		zap.Uint64s("item_ids", msg.ItemIDs),
	)
	event.Emit(sess.Bus(), event.ItemCustomization{Notification: msg})
}

func updateGauges(deps *Deps) {
	metrics.BackpackItems.Set(float64(deps.Store.Len()))
	metrics.CasketItems.Set(float64(deps.Store.Caskets.Len()))
}

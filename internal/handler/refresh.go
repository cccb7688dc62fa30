package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/net"
)

// refresher resolves updates for assets the store has never seen by running
// a full backpack fetch and retrying the merge once. Records arriving while a
// fetch is in flight are batched into the next one.
type refresher struct {
	deps *Deps

	mu      sync.Mutex
	pending map[uint64]*backpack.Item
	running bool
	idle    chan struct{} // closed while no fetch is running
}

func newRefresher(deps *Deps) *refresher {
	idle := make(chan struct{})
	close(idle)
	return &refresher{
		deps:    deps,
		pending: make(map[uint64]*backpack.Item),
		idle:    idle,
	}
}

func (r *refresher) enqueue(sess *net.Session, it *backpack.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[it.AssetID] = it
	if r.running {
		return
	}
	r.running = true
	r.idle = make(chan struct{})
	go r.run(sess)
}

// wait blocks until no fetch is in flight.
func (r *refresher) wait(ctx context.Context) error {
	r.mu.Lock()
	idle := r.idle
	r.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *refresher) run(sess *net.Session) {
	for {
		r.mu.Lock()
		batch := r.pending
		if len(batch) == 0 {
			r.running = false
			close(r.idle)
			r.mu.Unlock()
			return
		}
		r.pending = make(map[uint64]*backpack.Item)
		r.mu.Unlock()

		r.refresh(sess, batch)
	}
}

func (r *refresher) refresh(sess *net.Session, batch map[uint64]*backpack.Item) {
	log := sess.Log()
	if r.deps.Fetcher == nil {
		for id := range batch {
			log.Info("update for unknown item skipped", zap.Uint64("asset_id", id))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.deps.FetchTimeout)
	fetched, err := r.deps.Fetcher.Fetch(ctx)
	cancel()
	if err != nil {
		metrics.Refreshes.WithLabelValues("failed").Inc()
		log.Warn("backpack refresh failed", zap.Int("pending", len(batch)), zap.Error(err))
		return
	}
	metrics.Refreshes.WithLabelValues("ok").Inc()

	community := make(map[uint64]*backpack.Item, len(fetched))
	for _, it := range fetched {
		community[it.AssetID] = it
	}

	var outs []outcome
	_ = r.deps.Store.Update(func(tx *backpack.Tx) error {
		for id, it := range batch {
			c, known := community[id]
			if !known && tx.Get(id) == nil {
				metrics.Refreshes.WithLabelValues("missing").Inc()
				log.Info("item still unknown after refresh", zap.Uint64("asset_id", id))
				continue
			}
			if known {
				backpack.MergeCommunity(it, c)
			}
			outs = append(outs, mergeItem(sess, tx, it, mergeCreate, r.deps))
		}
		return nil
	})
	updateGauges(r.deps)
	for _, o := range outs {
		emitOutcome(sess, o)
	}
	sess.Bus().Flush()
}

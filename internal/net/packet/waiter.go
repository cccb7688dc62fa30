package packet

import (
	"context"
	"sync"

	"github.com/gcbackpack/csgogc/internal/metrics"
)

// Waiters holds correlated response waiters per message id. A dispatched
// message satisfies at most one waiter: the oldest whose predicate matches.
type Waiters struct {
	mu      sync.Mutex
	pending map[Language][]*Pending
}

func newWaiters() *Waiters {
	return &Waiters{pending: make(map[Language][]*Pending)}
}

// Pending is a registered waiter.
type Pending struct {
	w     *Waiters
	lang  Language
	match func(*Message) bool
	ch    chan *Message
	once  sync.Once
}

func (w *Waiters) add(l Language, match func(*Message) bool) *Pending {
	p := &Pending{w: w, lang: l, match: match, ch: make(chan *Message, 1)}
	w.mu.Lock()
	w.pending[l] = append(w.pending[l], p)
	w.mu.Unlock()
	metrics.PendingWaiters.Inc()
	return p
}

func (w *Waiters) deliver(msg *Message) bool {
	w.mu.Lock()
	list := w.pending[msg.Language]
	var hit *Pending
	for i, p := range list {
		if p.match == nil || p.match(msg) {
			hit = p
			w.pending[msg.Language] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	w.mu.Unlock()
	if hit == nil {
		return false
	}
	hit.ch <- msg
	hit.release()
	return true
}

func (w *Waiters) remove(p *Pending) {
	w.mu.Lock()
	defer w.mu.Unlock()
	list := w.pending[p.lang]
	for i, q := range list {
		if q == p {
			w.pending[p.lang] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (p *Pending) release() {
	p.once.Do(func() { metrics.PendingWaiters.Dec() })
}

// Wait blocks until the waiter is satisfied or ctx ends. On ctx end the
// waiter is unregistered and ctx.Err() returned.
func (p *Pending) Wait(ctx context.Context) (*Message, error) {
	select {
	case msg := <-p.ch:
		return msg, nil
	case <-ctx.Done():
		p.Cancel()
		select {
		case msg := <-p.ch:
			return msg, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Cancel unregisters the waiter. Safe to call more than once.
func (p *Pending) Cancel() {
	p.w.remove(p)
	p.release()
}

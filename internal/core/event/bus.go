package event

import (
	"reflect"
	"sync"
)

// Bus is a queued event bus. Events emitted while a message is being
// handled are held until Flush, so observers never see a half-applied
// mutation. Delivery preserves emission order across event types.
type Bus struct {
	mu         sync.Mutex // protects queue and handlers
	dispatchMu sync.Mutex // one Flush at a time
	queue      []queued
	handlers   map[reflect.Type][]any
}

type queued struct {
	t  reflect.Type
	ev any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type][]any),
	}
}

// Emit queues an event for the next Flush.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	b.queue = append(b.queue, queued{t: t, ev: event})
	b.mu.Unlock()
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], fn)
}

// Flush delivers every queued event to its subscribers. Events emitted by a
// subscriber during Flush are delivered in the same call.
func (b *Bus) Flush() {
	b.dispatchMu.Lock()
	defer b.dispatchMu.Unlock()
	for {
		b.mu.Lock()
		batch := b.queue
		b.queue = nil
		b.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, q := range batch {
			b.mu.Lock()
			handlers := b.handlers[q.t]
			b.mu.Unlock()
			for _, h := range handlers {
				// Safe because Subscribe and Emit use the same type key.
				callHandler(h, q.ev)
			}
		}
	}
}

// Pending returns the number of queued events.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func callHandler(handler any, event any) {
	reflect.ValueOf(handler).Call([]reflect.Value{reflect.ValueOf(event)})
}

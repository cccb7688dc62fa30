package net

import (
	"context"
	"sync"
)

// Pipe is an in-memory Transport. The far end injects envelopes with Deliver
// and observes sends on Outbound. It starts logged in.
type Pipe struct {
	in  chan Envelope
	out chan Envelope

	mu       sync.Mutex
	loggedIn chan struct{}
	offCh    chan struct{}

	closeOnce sync.Once
	done      chan struct{}
}

func NewPipe() *Pipe {
	in := make(chan struct{})
	close(in)
	return &Pipe{
		in:       make(chan Envelope, 64),
		out:      make(chan Envelope, 64),
		loggedIn: in,
		offCh:    make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Deliver queues env for the session to receive.
func (p *Pipe) Deliver(env Envelope) {
	p.in <- env
}

// Outbound yields every envelope the session sends.
func (p *Pipe) Outbound() <-chan Envelope {
	return p.out
}

// LogOff simulates the Steam session ending.
func (p *Pipe) LogOff() {
	p.mu.Lock()
	p.loggedIn = make(chan struct{})
	p.mu.Unlock()
	p.offCh <- struct{}{}
}

// LogOn simulates the Steam session coming back.
func (p *Pipe) LogOn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	select {
	case <-p.loggedIn:
	default:
		close(p.loggedIn)
	}
}

func (p *Pipe) Recv(ctx context.Context) (Envelope, error) {
	select {
	case env := <-p.in:
		return env, nil
	case <-p.offCh:
		return Envelope{}, ErrLoggedOff
	case <-p.done:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (p *Pipe) Send(ctx context.Context, env Envelope) error {
	select {
	case p.out <- env:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipe) LoggedIn() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loggedIn
}

func (p *Pipe) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}

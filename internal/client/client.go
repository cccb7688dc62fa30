// Package client implements the interactive request/response flows against
// the Game Coordinator: inspect, rename, delete, storage units and profiles.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/backpack"
	"github.com/gcbackpack/csgogc/internal/handler"
	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/net"
	"github.com/gcbackpack/csgogc/internal/net/packet"
)

var (
	// ErrTimeout is returned when a correlated response does not arrive in
	// time. It always wraps context.DeadlineExceeded as well.
	ErrTimeout = errors.New("gc request timed out")
	// ErrNotReady is returned when ctx ends while waiting for the session to
	// become ready.
	ErrNotReady = errors.New("gc session not ready")
	// ErrInvalidInspectURL is returned for links without an S/M, A and D part.
	ErrInvalidInspectURL = errors.New("invalid inspect url")
)

// Config bounds the flows.
type Config struct {
	RequestTimeout    time.Duration
	CasketWaitTimeout time.Duration
	InspectCacheSize  int           // 0 = no cache
	InspectCacheTTL   time.Duration // 0 = entries never expire
}

// Client runs flows over one session. It reads the backpack the handlers
// maintain but never mutates it.
type Client struct {
	sess     *net.Session
	deps     *handler.Deps
	cfg      Config
	inspects *expirable.LRU[uint64, *backpack.Inspected]
	log      *zap.Logger
}

func New(sess *net.Session, deps *handler.Deps, cfg Config, log *zap.Logger) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.CasketWaitTimeout <= 0 {
		cfg.CasketWaitTimeout = cfg.RequestTimeout
	}
	c := &Client{
		sess: sess,
		deps: deps,
		cfg:  cfg,
		log:  log.Named("client"),
	}
	if cfg.InspectCacheSize > 0 {
		c.inspects = expirable.NewLRU[uint64, *backpack.Inspected](cfg.InspectCacheSize, nil, cfg.InspectCacheTTL)
	}
	return c
}

// Backpack returns the store the session keeps current.
func (c *Client) Backpack() *backpack.Store {
	return c.deps.Store
}

func (c *Client) awaitReady(ctx context.Context) error {
	if err := c.sess.AwaitReady(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrNotReady, err)
	}
	return nil
}

// request registers a waiter for expect, calls send, and waits for the
// correlated reply within the request timeout.
func (c *Client) request(ctx context.Context, flow string, expect packet.Language,
	match func(*packet.Message) bool, send func(ctx context.Context) error) (*packet.Message, error) {
	start := time.Now()

	if err := c.awaitReady(ctx); err != nil {
		observe(flow, "not_ready", start)
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	p := c.sess.Registry().Expect(expect, match)
	if err := send(ctx); err != nil {
		p.Cancel()
		observe(flow, "send_error", start)
		return nil, fmt.Errorf("%s: %w", flow, err)
	}

	msg, err := p.Wait(ctx)
	if err != nil {
		observe(flow, "timeout", start)
		return nil, timeoutError(flow, err)
	}
	observe(flow, "ok", start)
	return msg, nil
}

func timeoutError(flow string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", flow, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", flow, err)
}

func observe(flow, result string, start time.Time) {
	metrics.FlowDuration.WithLabelValues(flow, result).Observe(time.Since(start).Seconds())
}

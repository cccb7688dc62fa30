package net

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Relay frame types.
const (
	frameGC        = "gc"
	frameLoggedOn  = "logged_on"
	frameLoggedOff = "logged_off"
)

type relayFrame struct {
	Type string `json:"type"`
	Envelope
}

// RelayConfig configures a RelayTransport.
type RelayConfig struct {
	URL          string
	Header       http.Header
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	QueueSize    int
}

// RelayTransport speaks to a Steam connection relay over a websocket. The
// relay owns the CM connection and login; frames are JSON objects tagged
// with a type.
type RelayTransport struct {
	cfg  RelayConfig
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	loggedIn chan struct{}
	isIn     bool

	in        chan Envelope
	loggedOff chan struct{}
	errCh     chan error

	closeOnce sync.Once
	done      chan struct{}

	log *zap.Logger
}

// DialRelay connects to the relay at cfg.URL and starts reading frames.
func DialRelay(ctx context.Context, cfg RelayConfig, log *zap.Logger) (*RelayTransport, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	dialer := *websocket.DefaultDialer
	if cfg.DialTimeout > 0 {
		dialer.HandshakeTimeout = cfg.DialTimeout
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, cfg.Header)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", cfg.URL, err)
	}
	t := &RelayTransport{
		cfg:       cfg,
		conn:      conn,
		loggedIn:  make(chan struct{}),
		in:        make(chan Envelope, cfg.QueueSize),
		loggedOff: make(chan struct{}, 1),
		errCh:     make(chan error, 1),
		done:      make(chan struct{}),
		log:       log.Named("relay"),
	}
	go t.readLoop()
	return t, nil
}

func (t *RelayTransport) readLoop() {
	defer t.Close()
	for {
		var f relayFrame
		if err := t.conn.ReadJSON(&f); err != nil {
			select {
			case <-t.done:
			default:
				t.log.Debug("relay read failed", zap.Error(err))
				t.errCh <- fmt.Errorf("%w: %v", ErrClosed, err)
			}
			return
		}
		switch f.Type {
		case frameGC:
			select {
			case t.in <- f.Envelope:
			case <-t.done:
				return
			}
		case frameLoggedOn:
			t.setLoggedIn(true)
		case frameLoggedOff:
			t.setLoggedIn(false)
			select {
			case t.loggedOff <- struct{}{}:
			default:
			}
		default:
			t.log.Debug("unknown relay frame", zap.String("type", f.Type))
		}
	}
}

func (t *RelayTransport) setLoggedIn(in bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if in == t.isIn {
		return
	}
	t.isIn = in
	if in {
		close(t.loggedIn)
	} else {
		t.loggedIn = make(chan struct{})
	}
}

func (t *RelayTransport) LoggedIn() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loggedIn
}

// Recv returns the next GC envelope. Queued envelopes are drained before a
// log off or a read error is reported.
func (t *RelayTransport) Recv(ctx context.Context) (Envelope, error) {
	select {
	case env := <-t.in:
		return env, nil
	default:
	}
	select {
	case env := <-t.in:
		return env, nil
	case <-t.loggedOff:
		return Envelope{}, ErrLoggedOff
	case err := <-t.errCh:
		return Envelope{}, err
	case <-t.done:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (t *RelayTransport) Send(ctx context.Context, env Envelope) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(t.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = t.conn.SetWriteDeadline(deadline)
	if err := t.conn.WriteJSON(relayFrame{Type: frameGC, Envelope: env}); err != nil {
		return fmt.Errorf("relay write: %w", err)
	}
	return nil
}

func (t *RelayTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		t.writeMu.Lock()
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		err = t.conn.Close()
	})
	return err
}

package net

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Capture directions.
const (
	DirIn  = "in"
	DirOut = "out"
)

// CaptureRecord is one line of a capture file.
type CaptureRecord struct {
	At  time.Time `json:"at"`
	Dir string    `json:"dir"`
	Envelope
}

// CaptureWriter appends envelopes to a zstd-compressed JSONL file.
type CaptureWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewCaptureWriter creates (or truncates) the capture file at path.
func NewCaptureWriter(path string) (*CaptureWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &CaptureWriter{f: f, enc: enc, w: bufio.NewWriterSize(enc, 64*1024)}, nil
}

func (c *CaptureWriter) Write(rec CaptureRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return ErrClosed
	}
	if _, err := c.w.Write(b); err != nil {
		return err
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return err
	}
	return c.w.Flush()
}

func (c *CaptureWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == nil {
		return nil
	}
	_ = c.w.Flush()
	err := c.enc.Close()
	_ = c.f.Close()
	c.w, c.enc, c.f = nil, nil, nil
	return err
}

// Recording wraps a Transport and writes every envelope it moves to a capture.
type Recording struct {
	Transport
	cap *CaptureWriter
}

// Record returns t with traffic mirrored into cap.
func Record(t Transport, cap *CaptureWriter) *Recording {
	return &Recording{Transport: t, cap: cap}
}

func (r *Recording) Recv(ctx context.Context) (Envelope, error) {
	env, err := r.Transport.Recv(ctx)
	if err == nil {
		_ = r.cap.Write(CaptureRecord{At: time.Now().UTC(), Dir: DirIn, Envelope: env})
	}
	return env, err
}

func (r *Recording) Send(ctx context.Context, env Envelope) error {
	err := r.Transport.Send(ctx, env)
	if err == nil {
		_ = r.cap.Write(CaptureRecord{At: time.Now().UTC(), Dir: DirOut, Envelope: env})
	}
	return err
}

func (r *Recording) Close() error {
	err := r.Transport.Close()
	if cerr := r.cap.Close(); err == nil {
		err = cerr
	}
	return err
}

// Replay is a Transport that plays back the inbound side of a capture. It
// reports logged in from the start, discards sends and returns ErrClosed
// wrapping io.EOF once the capture is exhausted.
type Replay struct {
	f   *os.File
	dec *zstd.Decoder
	sc  *bufio.Scanner

	mu   sync.Mutex
	sent []Envelope

	loggedIn chan struct{}
}

// OpenReplay opens a capture written by CaptureWriter.
func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)
	in := make(chan struct{})
	close(in)
	return &Replay{f: f, dec: dec, sc: sc, loggedIn: in}, nil
}

func (r *Replay) Recv(ctx context.Context) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err
	}
	for r.sc.Scan() {
		var rec CaptureRecord
		if err := json.Unmarshal(r.sc.Bytes(), &rec); err != nil {
			return Envelope{}, fmt.Errorf("capture: %w", err)
		}
		if rec.Dir != DirIn {
			continue
		}
		return rec.Envelope, nil
	}
	if err := r.sc.Err(); err != nil {
		return Envelope{}, fmt.Errorf("capture: %w", err)
	}
	return Envelope{}, fmt.Errorf("%w: %w", ErrClosed, io.EOF)
}

func (r *Replay) Send(_ context.Context, env Envelope) error {
	r.mu.Lock()
	r.sent = append(r.sent, env)
	r.mu.Unlock()
	return nil
}

// Sent returns the envelopes the session tried to send during replay.
func (r *Replay) Sent() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Envelope(nil), r.sent...)
}

func (r *Replay) LoggedIn() <-chan struct{} { return r.loggedIn }

func (r *Replay) Close() error {
	r.dec.Close()
	return r.f.Close()
}

// IsEOF reports whether err marks the clean end of a transport.
func IsEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, ErrClosed)
}

package net

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned by a transport after Close or when its peer went away.
	ErrClosed = errors.New("transport closed")

	// ErrLoggedOff is returned once by Recv when the Steam session underneath
	// the transport ends. The transport stays usable and may log in again.
	ErrLoggedOff = errors.New("steam session logged off")
)

// Envelope is one GC message as carried by the Steam client connection.
// MsgType keeps the protobuf flag; Payload starts with the GC header.
type Envelope struct {
	AppID   uint32 `json:"app_id"`
	MsgType uint32 `json:"msg_type"`
	Payload []byte `json:"payload"`
}

// Transport moves GC envelopes to and from the Steam network.
type Transport interface {
	Recv(ctx context.Context) (Envelope, error)
	Send(ctx context.Context, env Envelope) error

	// LoggedIn returns a channel closed while the underlying Steam session is
	// logged in. A new channel is handed out after each log off.
	LoggedIn() <-chan struct{}

	Close() error
}

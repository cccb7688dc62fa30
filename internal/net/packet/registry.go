package packet

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"

	"github.com/gcbackpack/csgogc/internal/metrics"
	"github.com/gcbackpack/csgogc/internal/protocol"
)

// SessionState represents the GC session's current phase.
type SessionState int32

const (
	StateDisconnected SessionState = iota
	StateConnected                 // welcome received, cache bootstrap pending
	StateReady                     // bootstrap merged, flows may run
)

func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateReady:
		return "Ready"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// AllStates admits a handler in every session phase.
var AllStates = []SessionState{StateDisconnected, StateConnected, StateReady}

// Message is one decoded GC message.
type Message struct {
	Language Language
	Proto    bool
	Body     any
}

// Codec decodes the body of one message id. Every inbound GC message the
// client handles is protobuf; fixed-layout bodies are only ever sent.
type Codec struct {
	Proto  bool
	Decode func(body []byte) (any, error)
}

// Proto returns a codec for a protobuf record type.
func Proto[T any, P interface {
	*T
	protocol.Message
}]() Codec {
	return Codec{
		Proto: true,
		Decode: func(body []byte) (any, error) {
			p := P(new(T))
			if err := p.Unmarshal(body); err != nil {
				return nil, err
			}
			return p, nil
		},
	}
}

// HandlerFunc is the callback signature for message handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, msg *Message)

type handlerEntry struct {
	codec         Codec
	fn            HandlerFunc
	allowedStates map[SessionState]bool
}

// Registry maps message ids to codecs and handlers with state-based access
// control. Decoded messages are also offered to correlated waiters.
type Registry struct {
	handlers map[Language]*handlerEntry
	waiters  *Waiters
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[Language]*handlerEntry),
		waiters:  newWaiters(),
		log:      log,
	}
}

// Register maps a message id to a codec and handler, restricted to the given
// session states. fn may be nil for messages that are only awaited.
func (reg *Registry) Register(l Language, codec Codec, states []SessionState, fn HandlerFunc) {
	allowed := make(map[SessionState]bool, len(states))
	for _, s := range states {
		allowed[s] = true
	}
	reg.handlers[l] = &handlerEntry{
		codec:         codec,
		fn:            fn,
		allowedStates: allowed,
	}
}

// Known reports whether l has a registered codec.
func (reg *Registry) Known(l Language) bool {
	_, ok := reg.handlers[l]
	return ok
}

// Len returns the number of registered message ids.
func (reg *Registry) Len() int {
	return len(reg.handlers)
}

// Dispatch strips the GC header from payload, decodes the body, calls the
// handler if the session state allows it, then offers the message to
// waiters. Unknown ids and decode failures are logged and dropped; the
// returned error is informational only.
func (reg *Registry) Dispatch(sess any, state SessionState, msgType uint32, payload []byte) error {
	l, isProto := Split(msgType)
	reg.log.Debug("gc message received",
		zap.Stringer("language", l),
		zap.Bool("proto", isProto),
		zap.Int("size", len(payload)),
		zap.Stringer("state", state),
	)

	entry, ok := reg.handlers[l]
	if !ok {
		metrics.MessagesReceived.WithLabelValues(l.String(), "unknown").Inc()
		reg.log.Debug("unhandled gc message", zap.Uint32("msg_type", msgType))
		return fmt.Errorf("%w: %d", ErrUnknownLanguage, uint32(l))
	}

	msg, err := reg.decode(entry, l, isProto, payload)
	if err != nil {
		metrics.MessagesReceived.WithLabelValues(l.String(), "decode_error").Inc()
		reg.log.Warn("gc message decode failed",
			zap.Stringer("language", l),
			zap.Uint32("msg_type", msgType),
			zap.Error(err),
		)
		if ce := reg.log.Check(zap.DebugLevel, "gc message payload"); ce != nil {
			ce.Write(zap.String("dump", spew.Sdump(payload)))
		}
		return err
	}

	result := "handled"
	if entry.fn != nil {
		if entry.allowedStates[state] {
			if err := reg.safeCall(entry.fn, sess, msg); err != nil {
				result = "panic"
			}
		} else {
			result = "state_rejected"
			reg.log.Debug("gc message not allowed in state",
				zap.Stringer("language", l),
				zap.Stringer("state", state),
			)
		}
	}

	if reg.waiters.deliver(msg) && entry.fn == nil {
		result = "awaited"
	}
	metrics.MessagesReceived.WithLabelValues(l.String(), result).Inc()
	return nil
}

func (reg *Registry) decode(entry *handlerEntry, l Language, isProto bool, payload []byte) (*Message, error) {
	if isProto != entry.codec.Proto {
		return nil, fmt.Errorf("%s: proto flag %v, codec expects %v", l, isProto, entry.codec.Proto)
	}
	body, err := Unframe(isProto, payload)
	if err != nil {
		return nil, err
	}
	v, err := entry.codec.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", l, err)
	}
	return &Message{Language: l, Proto: isProto, Body: v}, nil
}

// Expect registers a waiter for the next message of language l accepted by
// match. Register before sending the request the waiter correlates with.
func (reg *Registry) Expect(l Language, match func(*Message) bool) *Pending {
	return reg.waiters.add(l, match)
}

// safeCall executes a handler with panic recovery to prevent a single
// bad message from killing the receive loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, msg *Message) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.Stringer("language", msg.Language),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("handler panic for %s: %v", msg.Language, rec)
		}
	}()
	fn(sess, msg)
	return nil
}

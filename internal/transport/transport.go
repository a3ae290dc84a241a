package transport

import (
	"context"
	"errors"
	"strings"
)

// Handler receives every inbound message as a (topic, payload) pair. It is
// invoked from the backend's delivery goroutine; callers are expected to hand
// the message off to their own serialization point.
type Handler func(topic string, payload []byte)

// Transport is the facade over a publish/subscribe broker with topic-scoped
// retained-message storage. All calls are fire-and-forget: there is no
// delivery guarantee, no ordering guarantee across topics, and no
// backpressure signal. A publish after the connection has dropped is a
// silent no-op.
type Transport interface {
	// Connect establishes the broker session. The handler must be set
	// before Connect so retained messages delivered on subscribe are not
	// lost.
	Connect(ctx context.Context) error

	// Subscribe registers interest in a topic pattern. Patterns may end in
	// "/#" to match every topic below a prefix. Retained messages matching
	// the pattern are delivered immediately.
	Subscribe(pattern string) error

	// Unsubscribe drops a previously subscribed pattern. In-flight
	// messages may still be delivered afterwards; callers filter those out
	// themselves.
	Unsubscribe(pattern string) error

	// Publish sends payload to topic. When retained is true the broker
	// stores the payload and replays it to future subscribers; an empty
	// retained payload clears the stored message (a tombstone).
	Publish(topic string, payload []byte, retained bool) error

	// SetHandler installs the inbound message callback.
	SetHandler(h Handler)

	Close()
}

// ErrNotConnected is returned by Subscribe/Publish before Connect succeeds.
var ErrNotConnected = errors.New("transport: not connected")

// MatchTopic reports whether topic matches pattern. Supported patterns are
// exact topics and prefix wildcards ending in "/#".
func MatchTopic(pattern, topic string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/#"); ok {
		return topic == prefix || strings.HasPrefix(topic, prefix+"/")
	}
	return pattern == topic
}

package transport

import (
	"context"
	"sync"
)

// Broker is an in-process pub/sub broker with retained-message emulation.
// It backs single-process demos and tests; every connected MemoryClient
// sees publishes from every other client, including its own, which matches
// how a real broker delivers on overlapping subscriptions.
type Broker struct {
	mu       sync.Mutex
	retained map[string][]byte
	clients  map[*MemoryClient]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		retained: make(map[string][]byte),
		clients:  make(map[*MemoryClient]struct{}),
	}
}

// Client returns a new unconnected client bound to this broker.
func (b *Broker) Client() *MemoryClient {
	return &MemoryClient{broker: b, patterns: make(map[string]struct{})}
}

// Retained returns the currently stored payload for topic, if any.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.retained[topic]
	return p, ok
}

func (b *Broker) publish(topic string, payload []byte, retained bool) {
	b.mu.Lock()
	if retained {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			stored := make([]byte, len(payload))
			copy(stored, payload)
			b.retained[topic] = stored
		}
	}
	var targets []Handler
	for c := range b.clients {
		if h := c.handlerFor(topic); h != nil {
			targets = append(targets, h)
		}
	}
	b.mu.Unlock()

	for _, h := range targets {
		h(topic, payload)
	}
}

// MemoryClient implements Transport against an in-process Broker.
type MemoryClient struct {
	broker    *Broker
	mu        sync.Mutex
	patterns  map[string]struct{}
	handler   Handler
	connected bool
}

func (c *MemoryClient) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *MemoryClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.broker.mu.Lock()
	c.broker.clients[c] = struct{}{}
	c.broker.mu.Unlock()
	return nil
}

func (c *MemoryClient) Subscribe(pattern string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.patterns[pattern] = struct{}{}
	h := c.handler
	c.mu.Unlock()

	// Replay retained messages matching the new pattern, as a broker would.
	c.broker.mu.Lock()
	var replay []struct {
		topic   string
		payload []byte
	}
	for topic, payload := range c.broker.retained {
		if MatchTopic(pattern, topic) {
			replay = append(replay, struct {
				topic   string
				payload []byte
			}{topic, payload})
		}
	}
	c.broker.mu.Unlock()

	if h != nil {
		for _, r := range replay {
			h(r.topic, r.payload)
		}
	}
	return nil
}

func (c *MemoryClient) Unsubscribe(pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	delete(c.patterns, pattern)
	return nil
}

func (c *MemoryClient) Publish(topic string, payload []byte, retained bool) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.mu.Unlock()
	c.broker.publish(topic, payload, retained)
	return nil
}

func (c *MemoryClient) Close() {
	c.broker.mu.Lock()
	delete(c.broker.clients, c)
	c.broker.mu.Unlock()
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
}

func (c *MemoryClient) handlerFor(topic string) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handler == nil {
		return nil
	}
	for p := range c.patterns {
		if MatchTopic(p, topic) {
			return c.handler
		}
	}
	return nil
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSConfig holds connection settings for the NATS backend.
type NATSConfig struct {
	URL           string
	Bucket        string
	MaxReconnects int
	ReconnectWait time.Duration
}

func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           nats.DefaultURL,
		Bucket:        "signroom-retained",
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
	}
}

// NATSTransport implements Transport over NATS. Live fan-out uses core NATS
// subjects; retained-topic semantics come from a JetStream key/value bucket
// that is read back on subscribe. Topic separators map to subject tokens
// ("/" becomes ".", "#" becomes ">"); topics never contain dots, so the
// mapping is reversible.
type NATSTransport struct {
	cfg NATSConfig
	nc  *nats.Conn
	kv  jetstream.KeyValue

	mu      sync.Mutex
	handler Handler
	subs    map[string]*nats.Subscription
}

func NewNATSTransport(cfg NATSConfig) *NATSTransport {
	return &NATSTransport{cfg: cfg, subs: make(map[string]*nats.Subscription)}
}

func (t *NATSTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *NATSTransport) Connect(ctx context.Context) error {
	opts := []nats.Option{
		nats.MaxReconnects(t.cfg.MaxReconnects),
		nats.ReconnectWait(t.cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Error().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	nc, err := nats.Connect(t.cfg.URL, opts...)
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("create JetStream context: %w", err)
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{Bucket: t.cfg.Bucket})
	if err != nil {
		nc.Close()
		return fmt.Errorf("ensure retained bucket: %w", err)
	}
	t.nc = nc
	t.kv = kv
	return nil
}

func (t *NATSTransport) Subscribe(pattern string) error {
	if t.nc == nil {
		return ErrNotConnected
	}
	sub, err := t.nc.Subscribe(topicToSubject(pattern), func(m *nats.Msg) {
		t.deliver(subjectToTopic(m.Subject), m.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", pattern, err)
	}
	t.mu.Lock()
	t.subs[pattern] = sub
	t.mu.Unlock()

	t.replayRetained(pattern)
	return nil
}

func (t *NATSTransport) Unsubscribe(pattern string) error {
	t.mu.Lock()
	sub, ok := t.subs[pattern]
	delete(t.subs, pattern)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return sub.Unsubscribe()
}

func (t *NATSTransport) Publish(topic string, payload []byte, retained bool) error {
	if t.nc == nil {
		return ErrNotConnected
	}
	if retained {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		key := topicToKey(topic)
		if len(payload) == 0 {
			if err := t.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
				log.Error().Err(err).Str("topic", topic).Msg("clearing retained message failed")
			}
		} else if _, err := t.kv.Put(ctx, key, payload); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("storing retained message failed")
		}
	}
	if err := t.nc.Publish(topicToSubject(topic), payload); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("nats publish failed")
	}
	return nil
}

func (t *NATSTransport) Close() {
	if t.nc != nil {
		t.nc.Close()
	}
}

// replayRetained delivers stored retained payloads matching pattern, the way
// an MQTT broker replays retained messages on subscribe.
func (t *NATSTransport) replayRetained(pattern string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lister, err := t.kv.ListKeys(ctx)
	if err != nil {
		if !errors.Is(err, jetstream.ErrNoKeysFound) {
			log.Error().Err(err).Msg("listing retained keys failed")
		}
		return
	}
	defer lister.Stop()

	for key := range lister.Keys() {
		topic := keyToTopic(key)
		if !MatchTopic(pattern, topic) {
			continue
		}
		entry, err := t.kv.Get(ctx, key)
		if err != nil {
			if !errors.Is(err, jetstream.ErrKeyNotFound) {
				log.Error().Err(err).Str("topic", topic).Msg("reading retained message failed")
			}
			continue
		}
		t.deliver(topic, entry.Value())
	}
}

func (t *NATSTransport) deliver(topic string, payload []byte) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func topicToSubject(topic string) string {
	s := strings.ReplaceAll(topic, "/", ".")
	return strings.ReplaceAll(s, "#", ">")
}

func subjectToTopic(subject string) string {
	return strings.ReplaceAll(subject, ".", "/")
}

func topicToKey(topic string) string {
	return strings.ReplaceAll(topic, "/", ".")
}

func keyToTopic(key string) string {
	return strings.ReplaceAll(key, ".", "/")
}

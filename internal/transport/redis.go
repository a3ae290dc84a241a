package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
)

const retainedKeyPrefix = "signroom:retained:"

// RedisConfig holds connection settings for the Redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{Addr: "localhost:6379"}
}

// RedisTransport implements Transport over Redis pub/sub. Redis has no
// retained messages, so retained publishes also SET a keyed copy that is
// read back when a matching pattern is subscribed; a tombstone deletes the
// key.
type RedisTransport struct {
	cfg    RedisConfig
	client *redis.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handler Handler
	subs    map[string]*redis.PubSub
}

func NewRedisTransport(cfg RedisConfig) *RedisTransport {
	return &RedisTransport{cfg: cfg, subs: make(map[string]*redis.PubSub)}
}

func (t *RedisTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *RedisTransport) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     t.cfg.Addr,
		Password: t.cfg.Password,
		DB:       t.cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	t.client = client
	t.ctx, t.cancel = context.WithCancel(context.Background())
	return nil
}

func (t *RedisTransport) Subscribe(pattern string) error {
	if t.client == nil {
		return ErrNotConnected
	}
	ps := t.client.PSubscribe(t.ctx, patternToGlob(pattern))
	t.mu.Lock()
	t.subs[pattern] = ps
	t.mu.Unlock()

	go func() {
		for msg := range ps.Channel() {
			t.deliver(msg.Channel, []byte(msg.Payload))
		}
	}()

	t.replayRetained(pattern)
	return nil
}

func (t *RedisTransport) Unsubscribe(pattern string) error {
	t.mu.Lock()
	ps, ok := t.subs[pattern]
	delete(t.subs, pattern)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	return ps.Close()
}

func (t *RedisTransport) Publish(topic string, payload []byte, retained bool) error {
	if t.client == nil {
		return ErrNotConnected
	}
	if retained {
		key := retainedKeyPrefix + topic
		if len(payload) == 0 {
			if err := t.client.Del(t.ctx, key).Err(); err != nil {
				log.Error().Err(err).Str("topic", topic).Msg("clearing retained message failed")
			}
		} else if err := t.client.Set(t.ctx, key, payload, 0).Err(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("storing retained message failed")
		}
	}
	if err := t.client.Publish(t.ctx, topic, payload).Err(); err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("redis publish failed")
	}
	return nil
}

func (t *RedisTransport) Close() {
	t.mu.Lock()
	for pattern, ps := range t.subs {
		_ = ps.Close()
		delete(t.subs, pattern)
	}
	t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	if t.client != nil {
		_ = t.client.Close()
	}
}

func (t *RedisTransport) replayRetained(pattern string) {
	iter := t.client.Scan(t.ctx, 0, retainedKeyPrefix+patternToGlob(pattern), 0).Iterator()
	for iter.Next(t.ctx) {
		key := iter.Val()
		topic := strings.TrimPrefix(key, retainedKeyPrefix)
		if !MatchTopic(pattern, topic) {
			continue
		}
		payload, err := t.client.Get(t.ctx, key).Bytes()
		if err != nil {
			if err != redis.Nil {
				log.Error().Err(err).Str("topic", topic).Msg("reading retained message failed")
			}
			continue
		}
		t.deliver(topic, payload)
	}
	if err := iter.Err(); err != nil {
		log.Error().Err(err).Msg("scanning retained keys failed")
	}
}

func (t *RedisTransport) deliver(topic string, payload []byte) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

func patternToGlob(pattern string) string {
	if prefix, ok := strings.CutSuffix(pattern, "/#"); ok {
		return prefix + "/*"
	}
	return pattern
}

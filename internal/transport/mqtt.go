package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// MQTTConfig holds connection settings for the MQTT backend.
type MQTTConfig struct {
	URL            string
	ClientIDPrefix string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
}

func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		URL:            "tcp://localhost:1883",
		ClientIDPrefix: "signroom",
		ConnectTimeout: 10 * time.Second,
		ReconnectWait:  2 * time.Second,
	}
}

// MQTTTransport implements Transport over an MQTT broker. Retained messages
// are native here; everything is published at QoS 0 to keep the at-most-once
// fire-and-forget contract.
type MQTTTransport struct {
	cfg    MQTTConfig
	client mqtt.Client

	mu      sync.Mutex
	handler Handler
}

func NewMQTTTransport(cfg MQTTConfig) *MQTTTransport {
	return &MQTTTransport{cfg: cfg}
}

func (t *MQTTTransport) SetHandler(h Handler) {
	t.mu.Lock()
	t.handler = h
	t.mu.Unlock()
}

func (t *MQTTTransport) Connect(ctx context.Context) error {
	clientID := fmt.Sprintf("%s_%s", t.cfg.ClientIDPrefix, uuid.New().String()[:8])

	opts := mqtt.NewClientOptions().
		AddBroker(t.cfg.URL).
		SetClientID(clientID).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(t.cfg.ReconnectWait).
		SetConnectTimeout(t.cfg.ConnectTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Error().Err(err).Msg("mqtt connection lost")
		}).
		SetOnConnectHandler(func(c mqtt.Client) {
			log.Info().Str("client_id", clientID).Msg("mqtt connected")
		}).
		SetDefaultPublishHandler(func(_ mqtt.Client, m mqtt.Message) {
			t.deliver(m.Topic(), m.Payload())
		})

	t.client = mqtt.NewClient(opts)
	token := t.client.Connect()
	if !token.WaitTimeout(t.cfg.ConnectTimeout) {
		return fmt.Errorf("mqtt connect: timeout after %s", t.cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

func (t *MQTTTransport) Subscribe(pattern string) error {
	if t.client == nil {
		return ErrNotConnected
	}
	token := t.client.Subscribe(pattern, 0, func(_ mqtt.Client, m mqtt.Message) {
		t.deliver(m.Topic(), m.Payload())
	})
	// Fire-and-forget: surface the error if the broker rejects the
	// subscription, but never block the caller waiting for it.
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("pattern", pattern).Msg("mqtt subscribe failed")
		}
	}()
	return nil
}

func (t *MQTTTransport) Unsubscribe(pattern string) error {
	if t.client == nil {
		return ErrNotConnected
	}
	t.client.Unsubscribe(pattern)
	return nil
}

func (t *MQTTTransport) Publish(topic string, payload []byte, retained bool) error {
	if t.client == nil {
		return ErrNotConnected
	}
	token := t.client.Publish(topic, 0, retained, payload)
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			log.Error().Err(err).Str("topic", topic).Msg("mqtt publish failed")
		}
	}()
	return nil
}

func (t *MQTTTransport) Close() {
	if t.client != nil {
		t.client.Disconnect(250)
	}
}

func (t *MQTTTransport) deliver(topic string, payload []byte) {
	t.mu.Lock()
	h := t.handler
	t.mu.Unlock()
	if h != nil {
		h(topic, payload)
	}
}

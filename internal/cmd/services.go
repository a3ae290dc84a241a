package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"signroom/internal/game"
	"signroom/internal/gateway"
	"signroom/internal/room"
	"signroom/internal/transport"
)

type Services struct {
	Transport transport.Transport
	Engine    *room.Engine
	Gateway   *gateway.Gateway
}

func setupServices(config *Config) (*Services, error) {
	tp, err := setupTransport(config)
	if err != nil {
		return nil, err
	}

	roomCfg := config.roomConfig()
	if err := roomCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid room config: %w", err)
	}

	clock := clockwork.NewRealClock()
	engine := room.NewEngine(tp, clock, setupWords(config), roomCfg)

	gwCfg := gateway.DefaultConfig()
	if config.Gateway.PushIntervalMs > 0 {
		gwCfg.PushInterval = time.Duration(config.Gateway.PushIntervalMs) * time.Millisecond
	}
	if config.Gateway.ConfidenceFloor > 0 {
		gwCfg.ConfidenceFloor = config.Gateway.ConfidenceFloor
	}
	gw := gateway.New(engine, clock, gwCfg)

	return &Services{Transport: tp, Engine: engine, Gateway: gw}, nil
}

func setupTransport(config *Config) (transport.Transport, error) {
	switch config.Broker.Backend {
	case "", "mqtt":
		cfg := transport.DefaultMQTTConfig()
		if config.Broker.URL != "" {
			cfg.URL = config.Broker.URL
		}
		if config.Broker.ClientIDPrefix != "" {
			cfg.ClientIDPrefix = config.Broker.ClientIDPrefix
		}
		return transport.NewMQTTTransport(cfg), nil
	case "nats":
		cfg := transport.DefaultNATSConfig()
		if config.Broker.URL != "" {
			cfg.URL = config.Broker.URL
		}
		if config.Broker.Bucket != "" {
			cfg.Bucket = config.Broker.Bucket
		}
		return transport.NewNATSTransport(cfg), nil
	case "redis":
		cfg := transport.DefaultRedisConfig()
		if config.Broker.Redis.Addr != "" {
			cfg.Addr = config.Broker.Redis.Addr
		}
		cfg.Password = config.Broker.Redis.Password
		cfg.DB = config.Broker.Redis.DB
		return transport.NewRedisTransport(cfg), nil
	case "memory":
		return transport.NewBroker().Client(), nil
	}
	return nil, fmt.Errorf("unknown broker backend %q", config.Broker.Backend)
}

func setupWords(config *Config) game.WordSource {
	if config.WordsFile == "" {
		return game.NewListSource(game.DefaultWords)
	}
	data, err := os.ReadFile(config.WordsFile)
	if err != nil {
		log.Warn().Err(err).Str("path", config.WordsFile).Msg("could not load word list, using built-in words")
		return game.NewListSource(game.DefaultWords)
	}
	words := strings.Fields(string(data))
	if len(words) == 0 {
		log.Warn().Str("path", config.WordsFile).Msg("word list is empty, using built-in words")
		return game.NewListSource(game.DefaultWords)
	}
	return game.NewListSource(words)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"signroom/internal/transport"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("")
	if err != nil {
		t.Fatalf("empty path must load defaults: %v", err)
	}
	rc := config.roomConfig()
	if err := rc.Validate(); err != nil {
		t.Fatalf("default room config invalid: %v", err)
	}
	if rc.HeartbeatInterval != 10*time.Second || rc.PlayerTimeout != 60*time.Second {
		t.Fatalf("unexpected defaults: %+v", rc)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfigFile(t, `
broker:
  backend: nats
  url: nats://broker:4222
room:
  heartbeat_interval_sec: 5
  player_timeout_sec: 30
  max_players: 3
gateway:
  addr: ":9000"
log_level: debug
`)
	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if config.Broker.Backend != "nats" || config.Broker.URL != "nats://broker:4222" {
		t.Fatalf("broker section not parsed: %+v", config.Broker)
	}
	rc := config.roomConfig()
	if rc.HeartbeatInterval != 5*time.Second || rc.PlayerTimeout != 30*time.Second || rc.MaxPlayers != 3 {
		t.Fatalf("room overrides not applied: %+v", rc)
	}
	if rc.JoinWait != 500*time.Millisecond {
		t.Fatalf("unset values must keep defaults, got %v", rc.JoinWait)
	}
	if config.Gateway.Addr != ":9000" || config.LogLevel != "debug" {
		t.Fatalf("gateway/log sections not parsed: %+v", config)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
broker:
  backend: mqtt
gateway:
  addr: ":9000"
`)
	t.Setenv("SIGNROOM_BROKER", "memory")
	t.Setenv("PORT", "7070")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if config.Broker.Backend != "memory" {
		t.Fatalf("env must override file, got %q", config.Broker.Backend)
	}
	if config.Gateway.Addr != ":7070" {
		t.Fatalf("PORT must override the gateway address, got %q", config.Gateway.Addr)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("explicit missing config file must fail")
	}
}

func TestSetupTransportBackends(t *testing.T) {
	config := &Config{}
	config.Broker.Backend = "memory"
	tp, err := setupTransport(config)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := tp.(*transport.MemoryClient); !ok {
		t.Fatalf("expected in-memory client, got %T", tp)
	}

	config.Broker.Backend = "carrier-pigeon"
	if _, err := setupTransport(config); err == nil {
		t.Fatalf("unknown backend must be rejected")
	}
}

func TestSetupWordsFallsBack(t *testing.T) {
	config := &Config{}
	if setupWords(config) == nil {
		t.Fatalf("built-in word list expected")
	}

	config.WordsFile = filepath.Join(t.TempDir(), "absent.txt")
	if setupWords(config) == nil {
		t.Fatalf("missing word file must fall back to built-ins")
	}

	path := filepath.Join(t.TempDir(), "words.txt")
	if err := os.WriteFile(path, []byte("alpha beta\ngamma\n"), 0o644); err != nil {
		t.Fatalf("write words: %v", err)
	}
	config.WordsFile = path
	source := setupWords(config)
	if source.Next() == "" {
		t.Fatalf("word file source must produce words")
	}
}

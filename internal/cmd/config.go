package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"signroom/internal/room"
)

type Config struct {
	Broker struct {
		// Backend selects the transport: mqtt, nats, redis or memory.
		Backend        string `yaml:"backend"`
		URL            string `yaml:"url"`
		ClientIDPrefix string `yaml:"client_id_prefix"`
		Bucket         string `yaml:"bucket"`
		Redis          struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"broker"`

	Room struct {
		HeartbeatIntervalSec int     `yaml:"heartbeat_interval_sec"`
		PlayerTimeoutSec     int     `yaml:"player_timeout_sec"`
		JoinWaitMs           int     `yaml:"join_wait_ms"`
		HandRate             float64 `yaml:"hand_rate"`
		HandStaleMs          int     `yaml:"hand_stale_ms"`
		RoundDurationSec     int     `yaml:"round_duration_sec"`
		CountdownSec         int     `yaml:"countdown_sec"`
		MatchDebounceMs      int     `yaml:"match_debounce_ms"`
		MaxPlayers           int     `yaml:"max_players"`
		FrameWidth           float64 `yaml:"frame_width"`
		FrameHeight          float64 `yaml:"frame_height"`
	} `yaml:"room"`

	Gateway struct {
		Addr            string  `yaml:"addr"`
		PushIntervalMs  int     `yaml:"push_interval_ms"`
		ConfidenceFloor float64 `yaml:"confidence_floor"`
	} `yaml:"gateway"`

	WordsFile string `yaml:"words_file"`
	LogLevel  string `yaml:"log_level"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	config.applyEnv()
	return &config, nil
}

// applyEnv layers environment overrides on top of the file values.
func (c *Config) applyEnv() {
	c.Broker.Backend = getEnv("SIGNROOM_BROKER", c.Broker.Backend)
	c.Broker.URL = getEnv("SIGNROOM_BROKER_URL", c.Broker.URL)
	c.Broker.Redis.Addr = getEnv("SIGNROOM_REDIS_ADDR", c.Broker.Redis.Addr)
	c.Gateway.Addr = getEnv("SIGNROOM_GATEWAY_ADDR", c.Gateway.Addr)
	c.WordsFile = getEnv("SIGNROOM_WORDS_FILE", c.WordsFile)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	if port := getEnvAsInt("PORT", 0); port != 0 {
		c.Gateway.Addr = fmt.Sprintf(":%d", port)
	}
}

// roomConfig merges the file values over the engine defaults.
func (c *Config) roomConfig() room.Config {
	rc := room.DefaultConfig()
	r := c.Room
	if r.HeartbeatIntervalSec > 0 {
		rc.HeartbeatInterval = time.Duration(r.HeartbeatIntervalSec) * time.Second
	}
	if r.PlayerTimeoutSec > 0 {
		rc.PlayerTimeout = time.Duration(r.PlayerTimeoutSec) * time.Second
	}
	if r.JoinWaitMs > 0 {
		rc.JoinWait = time.Duration(r.JoinWaitMs) * time.Millisecond
	}
	if r.HandRate > 0 {
		rc.HandRate = r.HandRate
	}
	if r.HandStaleMs > 0 {
		rc.HandStale = time.Duration(r.HandStaleMs) * time.Millisecond
	}
	if r.RoundDurationSec > 0 {
		rc.RoundDuration = time.Duration(r.RoundDurationSec) * time.Second
	}
	if r.CountdownSec > 0 {
		rc.Countdown = time.Duration(r.CountdownSec) * time.Second
	}
	if r.MatchDebounceMs > 0 {
		rc.MatchDebounce = time.Duration(r.MatchDebounceMs) * time.Millisecond
	}
	if r.MaxPlayers > 0 {
		rc.MaxPlayers = r.MaxPlayers
	}
	if r.FrameWidth > 0 {
		rc.FrameWidth = r.FrameWidth
	}
	if r.FrameHeight > 0 {
		rc.FrameHeight = r.FrameHeight
	}
	return rc
}

package room

import (
	"encoding/json"
	"fmt"
	"time"
)

// Wire formats are JSON and field-compatible with the original browser
// client: timestamps are unix milliseconds, the departed flag travels as
// "left" and last-seen as "lastUpdate". Every decoder validates required
// fields and defaults the rest; a failure is a MalformedMessage, which the
// engine logs and drops.

type wirePlayer struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Ready      bool   `json:"ready"`
	Left       bool   `json:"left"`
	LastUpdate int64  `json:"lastUpdate"`
}

type wireDelta struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Ready     bool   `json:"ready"`
	Left      bool   `json:"left"`
	Timestamp int64  `json:"timestamp"`
}

type wirePing struct {
	PlayerID  string `json:"playerId"`
	Timestamp int64  `json:"timestamp"`
}

type wireStart struct {
	Timestamp int64 `json:"timestamp"`
}

type wireState struct {
	State string `json:"state"`
}

type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wirePose struct {
	PlayerID string               `json:"playerId"`
	Hand     map[string]wirePoint `json:"hand"`
	TS       int64                `json:"ts"`
}

// decodeSnapshot parses a retained roster snapshot. An empty payload is the
// room tombstone and reports tombstone=true with a nil map.
func decodeSnapshot(payload []byte) (map[string]wirePlayer, bool, error) {
	if len(payload) == 0 {
		return nil, true, nil
	}
	var snap map[string]wirePlayer
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, false, fmt.Errorf("snapshot: %w", err)
	}
	return snap, false, nil
}

func decodeDelta(payload []byte) (wireDelta, error) {
	var d wireDelta
	if err := json.Unmarshal(payload, &d); err != nil {
		return wireDelta{}, fmt.Errorf("player update: %w", err)
	}
	return d, nil
}

func decodePing(payload []byte) (wirePing, error) {
	var p wirePing
	if err := json.Unmarshal(payload, &p); err != nil {
		return wirePing{}, fmt.Errorf("ping: %w", err)
	}
	if p.PlayerID == "" {
		return wirePing{}, fmt.Errorf("ping: missing playerId")
	}
	return p, nil
}

func decodeState(payload []byte) (Phase, error) {
	var s wireState
	if err := json.Unmarshal(payload, &s); err != nil {
		return "", fmt.Errorf("state: %w", err)
	}
	switch Phase(s.State) {
	case PhaseWaiting, PhaseInProgress, PhaseGameover:
		return Phase(s.State), nil
	}
	return "", fmt.Errorf("state: unknown value %q", s.State)
}

func decodePose(payload []byte) (wirePose, error) {
	var p wirePose
	if err := json.Unmarshal(payload, &p); err != nil {
		return wirePose{}, fmt.Errorf("pose: %w", err)
	}
	if p.PlayerID == "" {
		return wirePose{}, fmt.Errorf("pose: missing playerId")
	}
	return p, nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

// fromMillis converts a wire timestamp, substituting now for absent values.
func fromMillis(ms int64, now time.Time) time.Time {
	if ms <= 0 {
		return now
	}
	return time.UnixMilli(ms)
}

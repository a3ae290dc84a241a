// Package gateway bridges the room engine to a renderer front end over a
// local WebSocket: it pushes the render projection at a fixed cadence and
// accepts intent messages (join, ready, classified symbols, pose samples)
// going the other way.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"signroom/internal/classify"
	"signroom/internal/room"
)

// RoomEngine is what the gateway needs from the engine.
type RoomEngine interface {
	Projection() room.Projection
	Create(ctx context.Context) (string, error)
	Join(ctx context.Context, roomID string) error
	Leave()
	ToggleReady()
	SetName(name string) error
	SubmitSymbol(label string)
	SubmitPose(joints map[string]room.Point)
}

// Config holds gateway settings.
type Config struct {
	PushInterval    time.Duration
	WriteTimeout    time.Duration
	MaxMessageSize  int64
	ConfidenceFloor float64
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConfig() Config {
	return Config{
		PushInterval:    50 * time.Millisecond,
		WriteTimeout:    10 * time.Second,
		MaxMessageSize:  64 * 1024,
		ConfidenceFloor: 0.6,
		CheckOrigin: func(r *http.Request) bool {
			// Local renderer only; the gateway binds to loopback.
			return true
		},
	}
}

// Intent is one inbound message from the renderer.
type Intent struct {
	Action      string                `json:"action"`
	RoomID      string                `json:"roomId,omitempty"`
	Name        string                `json:"name,omitempty"`
	Predictions []classify.Prediction `json:"predictions,omitempty"`
	Joints      map[string]room.Point `json:"joints,omitempty"`
}

// reply is sent back for request-style intents (join/create).
type reply struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Gateway struct {
	engine   RoomEngine
	cfg      Config
	clock    clockwork.Clock
	upgrader websocket.Upgrader
}

func New(engine RoomEngine, clock clockwork.Clock, cfg Config) *Gateway {
	return &Gateway{
		engine: engine,
		cfg:    cfg,
		clock:  clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}
}

// Handler returns the gateway's HTTP mux.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.handleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
	return mux
}

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	log.Info().Str("remote", r.RemoteAddr).Msg("renderer connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writes := make(chan any, 16)
	go g.writer(ctx, conn, writes)

	conn.SetReadLimit(g.cfg.MaxMessageSize)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Info().Str("remote", r.RemoteAddr).Msg("renderer disconnected")
			return
		}
		var intent Intent
		if err := json.Unmarshal(data, &intent); err != nil {
			log.Error().Err(err).Msg("dropping malformed intent")
			continue
		}
		g.dispatch(ctx, intent, writes)
	}
}

// writer pushes the projection at the configured cadence and forwards
// request replies. A slow renderer gets fewer frames, never a backlog.
func (g *Gateway) writer(ctx context.Context, conn *websocket.Conn, writes <-chan any) {
	defer conn.Close()
	ticker := g.clock.NewTicker(g.cfg.PushInterval)
	defer ticker.Stop()

	send := func(v any) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(g.cfg.WriteTimeout))
		if err := conn.WriteJSON(v); err != nil {
			return false
		}
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case v := <-writes:
			if !send(v) {
				return
			}
		case <-ticker.Chan():
			if !send(struct {
				Type string `json:"type"`
				room.Projection
			}{Type: "projection", Projection: g.engine.Projection()}) {
				return
			}
		}
	}
}

func (g *Gateway) dispatch(ctx context.Context, intent Intent, writes chan<- any) {
	switch intent.Action {
	case "create":
		go func() {
			id, err := g.engine.Create(ctx)
			select {
			case writes <- reply{Type: "create", RoomID: id, Error: errString(err)}:
			case <-ctx.Done():
			}
		}()
	case "join":
		go func() {
			err := g.engine.Join(ctx, intent.RoomID)
			select {
			case writes <- reply{Type: "join", RoomID: intent.RoomID, Error: errString(err)}:
			case <-ctx.Done():
			}
		}()
	case "leave":
		g.engine.Leave()
	case "ready":
		g.engine.ToggleReady()
	case "name":
		if err := g.engine.SetName(intent.Name); err != nil {
			writes <- reply{Type: "name", Error: err.Error()}
		}
	case "symbol":
		if label, ok := classify.Winner(intent.Predictions, g.cfg.ConfidenceFloor); ok {
			g.engine.SubmitSymbol(label)
		}
	case "pose":
		if len(intent.Joints) > 0 {
			g.engine.SubmitPose(intent.Joints)
		}
	default:
		log.Warn().Str("action", intent.Action).Msg("unknown intent action")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Package room implements the synchronization core that keeps an ephemeral
// multiplayer room consistent across independent clients. There is no
// authority server: every client runs this engine against a shared pub/sub
// broker with retained-message storage, and convergence emerges from
// retained snapshots being replaced wholesale on every mutation.
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"signroom/internal/game"
	"signroom/internal/transport"
)

// Phase is the room-wide lifecycle value synced through the retained
// /state topic.
type Phase string

const (
	PhaseWaiting    Phase = "waiting"
	PhaseInProgress Phase = "in-progress"
	PhaseGameover   Phase = "gameover"
)

// Stage is the local client's presentation state.
type Stage string

const (
	StageMenu      Stage = "menu"
	StageLobby     Stage = "lobby"
	StageCountdown Stage = "countdown"
	StageActive    Stage = "active"
	StageEnded     Stage = "ended"
)

// Config carries the engine's tunables. Defaults mirror the original
// deployment; see Validate for the constraints between them.
type Config struct {
	HeartbeatInterval time.Duration
	PlayerTimeout     time.Duration

	// JoinWait is the bounded delay between subscribing and evaluating
	// whether the room exists and is joinable. It trades join latency for
	// time for the retained snapshot to arrive.
	JoinWait time.Duration

	HandRate  float64 // outbound pose samples per second
	HandStale time.Duration

	RoundDuration time.Duration
	Countdown     time.Duration
	MatchDebounce time.Duration

	MaxPlayers  int
	FrameWidth  float64
	FrameHeight float64

	NoticeTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 10 * time.Second,
		PlayerTimeout:     60 * time.Second,
		JoinWait:          500 * time.Millisecond,
		HandRate:          10,
		HandStale:         2 * time.Second,
		RoundDuration:     60 * time.Second,
		Countdown:         3 * time.Second,
		MatchDebounce:     500 * time.Millisecond,
		MaxPlayers:        5,
		FrameWidth:        800,
		FrameHeight:       600,
		NoticeTTL:         3 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.PlayerTimeout < 3*c.HeartbeatInterval {
		return fmt.Errorf("player timeout %s must be at least 3x heartbeat interval %s",
			c.PlayerTimeout, c.HeartbeatInterval)
	}
	if c.HandRate <= 0 {
		return fmt.Errorf("hand rate must be positive")
	}
	if c.MaxPlayers < 1 {
		return fmt.Errorf("max players must be at least 1")
	}
	if c.FrameWidth <= 0 || c.FrameHeight <= 0 {
		return fmt.Errorf("frame dimensions must be positive")
	}
	return nil
}

var nameRE = regexp.MustCompile(`^[A-Za-z0-9_]{3,10}$`)

// ValidName reports whether a display name is acceptable.
func ValidName(name string) bool { return nameRE.MatchString(name) }

// Engine is the per-client room actor. All state lives behind a
// single-writer command loop: inbound broker messages, timer ticks and
// local API calls are queued as commands and executed one at a time, so
// none of the handlers need to be reentrant-safe. The renderer reads a
// projection snapshot through an atomic pointer instead of touching engine
// state.
type Engine struct {
	tp    transport.Transport
	clock clockwork.Clock
	cfg   Config

	cmds chan func()
	done chan struct{}
	proj atomic.Pointer[Projection]

	// Everything below is owned by the run loop.
	roomID    string
	localID   string
	localName string
	phase     Phase
	stage     Stage
	roster    *Roster
	relay     *poseRelay
	challenge *game.Challenge

	// startLatch arms once per transition into "everyone ready" so the
	// start broadcast fires exactly once per transition; duplicate starts
	// from other clients are harmless because the handler is idempotent.
	startLatch bool

	pendingJoin bool
	joinReply   chan<- error

	// gen invalidates countdown/round timers scheduled for a previous
	// session or a superseded restart.
	gen int

	countdownEndsAt time.Time
	roundEndsAt     time.Time
	notice          string
	noticeUntil     time.Time
}

func NewEngine(tp transport.Transport, clock clockwork.Clock, words game.WordSource, cfg Config) *Engine {
	e := &Engine{
		tp:        tp,
		clock:     clock,
		cfg:       cfg,
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
		localName: fmt.Sprintf("Player%d", 1000+rand.Intn(9000)),
		phase:     PhaseWaiting,
		stage:     StageMenu,
		roster:    NewRoster(),
		relay:     newPoseRelay(cfg.FrameWidth, cfg.FrameHeight, cfg.HandRate, cfg.HandStale),
		challenge: game.NewChallenge(words, cfg.MatchDebounce),
	}
	tp.SetHandler(e.onMessage)
	e.refreshProjection()
	return e
}

// Run drives the command loop plus the heartbeat and liveness sweep
// tickers until ctx is cancelled. It leaves any active room on the way
// out.
func (e *Engine) Run(ctx context.Context) error {
	heartbeat := e.clock.NewTicker(e.cfg.HeartbeatInterval)
	defer heartbeat.Stop()
	sweep := e.clock.NewTicker(e.cfg.HeartbeatInterval)
	defer sweep.Stop()

	defer close(e.done)
	for {
		select {
		case <-ctx.Done():
			e.leaveRoom()
			return nil
		case f := <-e.cmds:
			f()
			e.refreshProjection()
		case <-heartbeat.Chan():
			e.emitHeartbeat()
			e.refreshProjection()
		case <-sweep.Chan():
			e.sweepExpired()
			e.refreshProjection()
		}
	}
}

// do queues f onto the command loop. It reports false when the engine has
// shut down.
func (e *Engine) do(f func()) bool {
	select {
	case e.cmds <- f:
		return true
	case <-e.done:
		return false
	}
}

// ---- local API (callable from any goroutine) ----

// Create opens a fresh room with the local player as its only member and
// returns the generated room code.
func (e *Engine) Create(ctx context.Context) (string, error) {
	type result struct {
		id  string
		err error
	}
	ch := make(chan result, 1)
	e.do(func() {
		id, err := e.createRoom()
		ch <- result{id, err}
	})
	select {
	case r := <-ch:
		return r.id, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Join subscribes to roomID's topics, waits the configured join delay for
// the retained snapshot and lifecycle to arrive, and either completes
// membership or reverts and returns a JoinError. The join delta is never
// published for a rejected join.
func (e *Engine) Join(ctx context.Context, roomID string) error {
	ch := make(chan error, 1)
	e.do(func() { e.beginJoin(roomID, ch) })
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Leave exits the current room, if any. Safe to call from any stage.
func (e *Engine) Leave() {
	e.do(func() { e.leaveRoom() })
}

// ToggleReady flips the local player's ready flag and broadcasts it.
func (e *Engine) ToggleReady() {
	e.do(func() { e.toggleReady() })
}

// SetName validates and applies a new display name, propagating it to the
// room when joined.
func (e *Engine) SetName(name string) error {
	if !ValidName(name) {
		return ErrInvalidName
	}
	e.do(func() { e.setName(name) })
	return nil
}

// SubmitSymbol feeds a classified symbol into the word challenge. Callers
// apply the confidence floor first (see classify.Winner).
func (e *Engine) SubmitSymbol(label string) {
	e.do(func() { e.submitSymbol(label) })
}

// SubmitPose publishes the local hand pose, rate-limited to the configured
// sample rate. Joints are in local pixel coordinates.
func (e *Engine) SubmitPose(joints map[string]Point) {
	e.do(func() { e.submitPose(joints) })
}

// Projection returns the current render view. Pose samples past the
// staleness bound and expired notices are dropped at read time.
func (e *Engine) Projection() Projection {
	p := e.proj.Load()
	if p == nil {
		return Projection{Phase: PhaseWaiting, Stage: StageMenu}
	}
	now := e.clock.Now()
	out := p.withFreshPoses(now, e.cfg.HandStale)
	if out.Notice != "" && now.After(p.noticeUntil) {
		out.Notice = ""
	}
	if out.Stage == StageCountdown && !p.countdownEndsAt.IsZero() {
		out.CountdownMS = remainingMS(p.countdownEndsAt, now)
	}
	if out.Stage == StageActive && !p.roundEndsAt.IsZero() {
		out.RemainingMS = remainingMS(p.roundEndsAt, now)
	}
	return out
}

// ---- loop-owned implementation ----

func (e *Engine) createRoom() (string, error) {
	if e.roomID != "" {
		return "", ErrAlreadyInRoom
	}
	roomID := NewRoomID()
	e.enterRoom(roomID)
	e.addSelf()
	e.stage = StageLobby
	log.Info().Str("room_id", roomID).Str("player_id", e.localID).Msg("room created")
	return roomID, nil
}

func (e *Engine) beginJoin(roomID string, reply chan<- error) {
	if e.roomID != "" {
		reply <- ErrAlreadyInRoom
		return
	}
	if roomID == "" {
		reply <- &JoinError{RoomID: roomID, Reason: ReasonRoomNotFound}
		return
	}
	e.enterRoom(roomID)
	e.pendingJoin = true
	e.joinReply = reply
	gen := e.gen
	// Give the broker a moment to deliver the retained snapshot and
	// lifecycle before deciding whether the room is joinable. Fires
	// exactly once per join attempt.
	e.clock.AfterFunc(e.cfg.JoinWait, func() {
		e.do(func() { e.finishJoin(gen) })
	})
}

func (e *Engine) finishJoin(gen int) {
	if gen != e.gen || !e.pendingJoin {
		return
	}
	e.pendingJoin = false
	reply := e.joinReply
	e.joinReply = nil
	roomID := e.roomID

	reject := func(reason JoinReason, notice string) {
		e.abortJoin()
		e.setNotice(notice)
		reply <- &JoinError{RoomID: roomID, Reason: reason}
	}
	if e.phase != PhaseWaiting {
		reject(ReasonRoundInProgress, "Game is in progress")
		return
	}
	if e.roster.IsEmpty() {
		reject(ReasonRoomNotFound, "Room does not exist!")
		return
	}
	if e.roster.Len() >= e.cfg.MaxPlayers {
		reject(ReasonRoomFull, "Room is full")
		return
	}
	e.addSelf()
	e.stage = StageLobby
	log.Info().Str("room_id", roomID).Str("player_id", e.localID).Msg("joined room")
	reply <- nil
}

func (e *Engine) enterRoom(roomID string) {
	e.roomID = roomID
	e.phase = PhaseWaiting
	e.roster = NewRoster()
	e.startLatch = false
	e.gen++
	if err := e.tp.Subscribe(topicAll(roomID)); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("subscribe failed")
	}
}

// abortJoin reverts a rejected join without publishing anything: the
// roster was never touched on the wire, so the room sees no trace of us.
func (e *Engine) abortJoin() {
	if err := e.tp.Unsubscribe(topicAll(e.roomID)); err != nil {
		log.Error().Err(err).Str("room_id", e.roomID).Msg("unsubscribe failed")
	}
	e.resetToMenu()
}

func (e *Engine) addSelf() {
	now := e.clock.Now()
	e.localID = fmt.Sprintf("p_%d_%d", now.UnixMilli(), rand.Intn(1000))
	rec := &PlayerRecord{ID: e.localID, Name: e.localName, LastSeen: now}
	e.roster.Put(rec)
	e.publishDelta(rec)
	e.publishSnapshot()
}

func (e *Engine) leaveRoom() {
	if e.roomID == "" {
		return
	}
	roomID := e.roomID
	if e.pendingJoin {
		e.pendingJoin = false
		if e.joinReply != nil {
			e.joinReply <- &JoinError{RoomID: roomID, Reason: ReasonRoomNotFound}
			e.joinReply = nil
		}
		e.abortJoin()
		return
	}
	if rec, ok := e.roster.Get(e.localID); ok {
		if e.stage == StageEnded {
			// Keep the score on the board, marked disconnected.
			rec.Departed = true
		} else {
			e.roster.Remove(e.localID)
		}
		e.publishSnapshot()
	}
	if len(e.roster.ActiveSet()) == 0 {
		e.publishTombstone()
		log.Info().Str("room_id", roomID).Msg("room cleared")
	}
	if err := e.tp.Unsubscribe(topicAll(roomID)); err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("unsubscribe failed")
	}
	e.resetToMenu()
	log.Info().Str("room_id", roomID).Msg("left room")
}

func (e *Engine) resetToMenu() {
	e.roomID = ""
	e.localID = ""
	e.phase = PhaseWaiting
	e.stage = StageMenu
	e.roster = NewRoster()
	e.startLatch = false
	e.pendingJoin = false
	e.joinReply = nil
	e.gen++
	e.countdownEndsAt = time.Time{}
	e.roundEndsAt = time.Time{}
	e.challenge.Clear()
}

func (e *Engine) toggleReady() {
	rec, ok := e.roster.Get(e.localID)
	if e.roomID == "" || !ok {
		return
	}
	rec.Ready = !rec.Ready
	e.publishDelta(rec)
	e.publishSnapshot()
	e.maybeStart()
}

func (e *Engine) setName(name string) {
	e.localName = name
	rec, ok := e.roster.Get(e.localID)
	if e.roomID == "" || !ok {
		return
	}
	rec.Name = name
	e.publishDelta(rec)
	e.publishSnapshot()
}

func (e *Engine) submitSymbol(label string) {
	if e.stage != StageActive {
		return
	}
	if !e.challenge.Advance(label, e.clock.Now()) {
		return
	}
	if rec, ok := e.roster.Get(e.localID); ok {
		rec.Score++
		e.publishSnapshot()
	}
}

func (e *Engine) submitPose(joints map[string]Point) {
	if e.roomID == "" || e.localID == "" {
		return
	}
	if e.stage != StageLobby && e.stage != StageActive {
		return
	}
	now := e.clock.Now()
	if !e.relay.shouldPublish(now) {
		return
	}
	e.publishJSON(topicHands(e.roomID, e.localID), wirePose{
		PlayerID: e.localID,
		Hand:     e.relay.normalize(joints),
		TS:       millis(now),
	}, false)
}

// member reports whether the local player currently holds a roster entry.
func (e *Engine) member() bool {
	return e.localID != "" && e.roster.Has(e.localID)
}

// ---- inbound messages ----

// onMessage runs on the transport's delivery goroutine. Enqueueing never
// blocks: the transport is at-most-once anyway, so under overload we shed
// messages instead of stalling the broker client.
func (e *Engine) onMessage(topic string, payload []byte) {
	select {
	case e.cmds <- func() { e.handleMessage(topic, payload) }:
	default:
		log.Warn().Str("topic", topic).Msg("inbound queue full; dropping message")
	}
}

func (e *Engine) handleMessage(topic string, payload []byte) {
	if e.roomID == "" {
		return
	}
	now := e.clock.Now()
	switch classifyTopic(e.roomID, topic) {
	case kindSnapshot:
		snap, tombstone, err := decodeSnapshot(payload)
		if err != nil {
			e.dropMalformed(topic, err)
			return
		}
		if tombstone {
			// The room no longer exists at the broker.
			e.roster.Clear()
			return
		}
		e.roster.ApplySnapshot(snap, now)
		e.maybeStart()
	case kindDelta:
		d, err := decodeDelta(payload)
		if err != nil {
			e.dropMalformed(topic, err)
			return
		}
		if !e.roster.ApplyDelta(d, now) {
			log.Debug().Str("topic", topic).Msg("ignoring incomplete player update")
			return
		}
		e.maybeStart()
	case kindPing:
		p, err := decodePing(payload)
		if err != nil {
			e.dropMalformed(topic, err)
			return
		}
		e.roster.ApplyPing(p.PlayerID, fromMillis(p.Timestamp, now))
	case kindStart:
		if _, err := decodeStartPayload(payload); err != nil {
			e.dropMalformed(topic, err)
			return
		}
		e.handleStart()
	case kindState:
		phase, err := decodeState(payload)
		if err != nil {
			e.dropMalformed(topic, err)
			return
		}
		e.phase = phase
	case kindPose:
		p, err := decodePose(payload)
		if err != nil {
			e.dropMalformed(topic, err)
			return
		}
		e.handlePose(p, now)
	}
}

func decodeStartPayload(payload []byte) (wireStart, error) {
	var s wireStart
	if len(payload) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(payload, &s); err != nil {
		return wireStart{}, fmt.Errorf("start: %w", err)
	}
	return s, nil
}

func (e *Engine) dropMalformed(topic string, err error) {
	log.Error().Err(err).Str("topic", topic).Msg("dropping malformed message")
}

// handleStart restarts the round on every client. Idempotent: a duplicate
// start simply re-enters the countdown. The clear → snapshot → lifecycle
// order is significant: nobody may observe in-progress with a still-ready
// roster.
func (e *Engine) handleStart() {
	e.roster.PurgeDeparted()
	e.roster.ResetRound()
	e.startLatch = false
	if !e.member() {
		// A pending joiner only records the phase; finishJoin will
		// reject the attempt.
		e.phase = PhaseInProgress
		return
	}
	e.publishSnapshot()
	e.publishState(PhaseInProgress)
	e.phase = PhaseInProgress
	e.stage = StageCountdown
	e.challenge.Reset()

	e.gen++
	gen := e.gen
	now := e.clock.Now()
	e.countdownEndsAt = now.Add(e.cfg.Countdown)
	e.clock.AfterFunc(e.cfg.Countdown, func() {
		e.do(func() { e.beginActive(gen) })
	})
	log.Info().Str("room_id", e.roomID).Msg("round starting")
}

func (e *Engine) beginActive(gen int) {
	if gen != e.gen || e.stage != StageCountdown {
		return
	}
	e.stage = StageActive
	e.roundEndsAt = e.clock.Now().Add(e.cfg.RoundDuration)
	e.clock.AfterFunc(e.cfg.RoundDuration, func() {
		e.do(func() { e.endRound(gen) })
	})
}

func (e *Engine) endRound(gen int) {
	if gen != e.gen || e.stage != StageActive {
		return
	}
	e.stage = StageEnded
	e.phase = PhaseGameover
	e.roundEndsAt = time.Time{}
	e.roster.ResetReady()
	e.startLatch = false
	e.publishSnapshot()
	e.publishState(PhaseGameover)
	log.Info().Str("room_id", e.roomID).Msg("round over")
}

func (e *Engine) handlePose(p wirePose, now time.Time) {
	if p.PlayerID == e.localID {
		return
	}
	rec := e.roster.EnsurePlaceholder(p.PlayerID, now)
	ts := fromMillis(p.TS, now)
	rec.Pose = &PoseSample{
		ProducerID: p.PlayerID,
		Joints:     e.relay.denormalize(p.Hand),
		CapturedAt: ts,
	}
	if ts.After(rec.LastSeen) {
		rec.LastSeen = ts
	}
}

// maybeStart is the ready/start negotiator: after any readiness change it
// fires the start broadcast once per transition into unanimous readiness.
// Every client runs the same check, so duplicates are possible and
// tolerated by handleStart's idempotence.
func (e *Engine) maybeStart() {
	if e.pendingJoin || !e.member() {
		return
	}
	if e.phase != PhaseWaiting && e.phase != PhaseGameover {
		return
	}
	if e.roster.AllReady() {
		if !e.startLatch {
			e.startLatch = true
			e.publishStart()
		}
		return
	}
	e.startLatch = false
}

// ---- publication ----

func (e *Engine) publishSnapshot() {
	e.publishJSON(topicPlayers(e.roomID), e.roster.Snapshot(e.clock.Now()), true)
}

func (e *Engine) publishTombstone() {
	if err := e.tp.Publish(topicPlayers(e.roomID), nil, true); err != nil {
		log.Debug().Err(err).Str("room_id", e.roomID).Msg("tombstone publish skipped")
	}
}

func (e *Engine) publishState(phase Phase) {
	e.publishJSON(topicState(e.roomID), wireState{State: string(phase)}, true)
}

func (e *Engine) publishStart() {
	e.publishJSON(topicStart(e.roomID), wireStart{Timestamp: millis(e.clock.Now())}, false)
}

func (e *Engine) publishDelta(rec *PlayerRecord) {
	e.publishJSON(topicUpdate(e.roomID), wireDelta{
		PlayerID:  rec.ID,
		Name:      rec.Name,
		Score:     rec.Score,
		Ready:     rec.Ready,
		Left:      rec.Departed,
		Timestamp: millis(e.clock.Now()),
	}, false)
}

// publishJSON marshals and publishes fire-and-forget. Transport failures
// degrade to operating on stale local state rather than crashing.
func (e *Engine) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("marshal failed")
		return
	}
	if err := e.tp.Publish(topic, payload, retained); err != nil {
		log.Debug().Err(err).Str("topic", topic).Msg("publish skipped")
	}
}

// ---- projection ----

func (e *Engine) setNotice(msg string) {
	e.notice = msg
	e.noticeUntil = e.clock.Now().Add(e.cfg.NoticeTTL)
}

func (e *Engine) refreshProjection() {
	now := e.clock.Now()
	p := Projection{
		RoomID:          e.roomID,
		Phase:           e.phase,
		Stage:           e.stage,
		LocalPlayerID:   e.localID,
		countdownEndsAt: e.countdownEndsAt,
		roundEndsAt:     e.roundEndsAt,
		noticeUntil:     e.noticeUntil,
	}
	if e.stage == StageActive || e.stage == StageCountdown {
		p.Word = e.challenge.Word()
		p.WordIndex = e.challenge.Index()
	}
	if e.notice != "" && now.Before(e.noticeUntil) {
		p.Notice = e.notice
	}
	records := e.roster.All()
	p.Players = make([]PlayerView, 0, len(records))
	for _, rec := range records {
		view := PlayerView{
			ID:       rec.ID,
			Name:     rec.Name,
			Score:    rec.Score,
			Ready:    rec.Ready,
			Departed: rec.Departed,
		}
		if e.relay.fresh(rec.Pose, now) {
			view.Pose = rec.Pose.Joints
			if p.poseTimes == nil {
				p.poseTimes = make(map[string]time.Time)
			}
			p.poseTimes[rec.ID] = rec.Pose.CapturedAt
		}
		p.Players = append(p.Players, view)
	}
	e.proj.Store(&p)
}

func remainingMS(deadline, now time.Time) int64 {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

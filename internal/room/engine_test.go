package room

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"signroom/internal/game"
	"signroom/internal/transport"
)

// Engine tests drive the loop-owned methods directly and drain the command
// queue by hand instead of running Run. The in-process broker delivers
// synchronously, so every loopback message is sitting in the queue by the
// time drain runs, and the fake clock makes timers explicit.

func newTestEngine(t *testing.T, b *transport.Broker, clock clockwork.Clock, cfg Config) *Engine {
	t.Helper()
	client := b.Client()
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return NewEngine(client, clock, game.NewListSource([]string{"cat"}), cfg)
}

// drain executes queued commands until the queue is empty, mirroring one
// pass of the run loop.
func drain(e *Engine) {
	for {
		select {
		case f := <-e.cmds:
			f()
			e.refreshProjection()
		default:
			return
		}
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return payload
}

func createTestRoom(t *testing.T, e *Engine) string {
	t.Helper()
	roomID, err := e.createRoom()
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	drain(e)
	return roomID
}

// probe is a plain broker client that records everything published to the
// room, used to observe wire traffic the engines produce.
type probe struct {
	mu     sync.Mutex
	topics []string
}

func newProbe(t *testing.T, b *transport.Broker, pattern string) *probe {
	t.Helper()
	p := &probe{}
	client := b.Client()
	client.SetHandler(func(topic string, payload []byte) {
		p.mu.Lock()
		p.topics = append(p.topics, topic)
		p.mu.Unlock()
	})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("probe connect: %v", err)
	}
	if err := client.Subscribe(pattern); err != nil {
		t.Fatalf("probe subscribe: %v", err)
	}
	return p
}

func (p *probe) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, t := range p.topics {
		if t == topic {
			n++
		}
	}
	return n
}

func TestCreateRoomPublishesRetainedSnapshot(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())

	roomID := createTestRoom(t, e)

	payload, ok := b.Retained(topicPlayers(roomID))
	if !ok {
		t.Fatalf("creating a room must leave a retained roster snapshot")
	}
	var snap map[string]wirePlayer
	if err := json.Unmarshal(payload, &snap); err != nil {
		t.Fatalf("snapshot not decodable: %v", err)
	}
	if _, ok := snap[e.localID]; !ok || len(snap) != 1 {
		t.Fatalf("retained snapshot must hold exactly the creator, got %v", snap)
	}
	if _, ok := b.Retained(topicState(roomID)); ok {
		t.Fatalf("no lifecycle value is published until the first round starts")
	}
	if p := e.Projection(); p.Stage != StageLobby || p.RoomID != roomID {
		t.Fatalf("creator must land in the lobby, got %+v", p)
	}
}

func TestCreateRejectedWhileInRoom(t *testing.T) {
	b := transport.NewBroker()
	e := newTestEngine(t, b, clockwork.NewFakeClock(), DefaultConfig())
	createTestRoom(t, e)

	if _, err := e.createRoom(); !errors.Is(err, ErrAlreadyInRoom) {
		t.Fatalf("expected ErrAlreadyInRoom, got %v", err)
	}
}

func TestJoinRejectedWhenRoomMissing(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())

	reply := make(chan error, 1)
	e.beginJoin("room-NOPE00", reply)
	drain(e)
	e.finishJoin(e.gen)
	e.refreshProjection()

	var joinErr *JoinError
	if err := <-reply; !errors.As(err, &joinErr) || joinErr.Reason != ReasonRoomNotFound {
		t.Fatalf("expected room-not-found rejection, got %v", err)
	}
	p := e.Projection()
	if p.Stage != StageMenu || p.RoomID != "" {
		t.Fatalf("rejected join must revert to the menu, got %+v", p)
	}
	if p.Notice != "Room does not exist!" {
		t.Fatalf("unexpected notice %q", p.Notice)
	}
}

func TestJoinRejectedWhenRoundInProgress(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	host := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, host)

	// Solo host readies up, which starts the round and retains in-progress.
	host.toggleReady()
	drain(host)
	if host.phase != PhaseInProgress {
		t.Fatalf("host round did not start, phase=%s", host.phase)
	}

	joiner := newTestEngine(t, b, clock, DefaultConfig())
	reply := make(chan error, 1)
	joiner.beginJoin(roomID, reply)
	drain(joiner) // retained snapshot + state replay
	joiner.finishJoin(joiner.gen)

	var joinErr *JoinError
	if err := <-reply; !errors.As(err, &joinErr) || joinErr.Reason != ReasonRoundInProgress {
		t.Fatalf("expected round-in-progress rejection, got %v", err)
	}
	// The rejected join must leave no trace on the wire.
	drain(host)
	if host.roster.Len() != 1 {
		t.Fatalf("rejected joiner leaked into the host roster: %d records", host.roster.Len())
	}
}

func TestJoinRejectedWhenRoomFull(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	host := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, host)

	cfg := DefaultConfig()
	cfg.MaxPlayers = 1
	joiner := newTestEngine(t, b, clock, cfg)
	reply := make(chan error, 1)
	joiner.beginJoin(roomID, reply)
	drain(joiner)
	joiner.finishJoin(joiner.gen)

	var joinErr *JoinError
	if err := <-reply; !errors.As(err, &joinErr) || joinErr.Reason != ReasonRoomFull {
		t.Fatalf("expected room-full rejection, got %v", err)
	}
}

func TestJoinWaitTimerCompletesJoin(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	host := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, host)

	clock.Advance(time.Millisecond) // distinct player id timestamps
	joiner := newTestEngine(t, b, clock, cfg)
	reply := make(chan error, 1)
	joiner.beginJoin(roomID, reply)
	drain(joiner)

	clock.Advance(cfg.JoinWait)
	deadline := time.Now().Add(2 * time.Second)
	for {
		drain(joiner)
		select {
		case err := <-reply:
			if err != nil {
				t.Fatalf("join failed: %v", err)
			}
			if joiner.stage != StageLobby {
				t.Fatalf("joiner not in lobby after join, stage=%s", joiner.stage)
			}
			return
		default:
		}
		if time.Now().After(deadline) {
			t.Fatalf("join wait timer never completed the join")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestJoinConvergence(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	host := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, host)

	clock.Advance(time.Millisecond)
	joiner := newTestEngine(t, b, clock, DefaultConfig())
	reply := make(chan error, 1)
	joiner.beginJoin(roomID, reply)
	drain(joiner)

	if !joiner.roster.Has(host.localID) {
		t.Fatalf("retained snapshot replay must seed the joiner's roster")
	}

	joiner.finishJoin(joiner.gen)
	if err := <-reply; err != nil {
		t.Fatalf("join failed: %v", err)
	}
	drain(joiner)
	drain(host)

	now := clock.Now()
	hostView := mustJSON(t, host.roster.Snapshot(now))
	joinerView := mustJSON(t, joiner.roster.Snapshot(now))
	if string(hostView) != string(joinerView) {
		t.Fatalf("rosters diverged:\nhost:   %s\njoiner: %s", hostView, joinerView)
	}
	if host.roster.Len() != 2 {
		t.Fatalf("host must see both players, got %d", host.roster.Len())
	}
}

func TestStartFiresExactlyOncePerTransition(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)
	p := newProbe(t, b, topicStart(roomID))

	// A remote, unready peer blocks unanimity.
	e.handleMessage(topicUpdate(roomID), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Timestamp: millis(clock.Now()),
	}))
	e.toggleReady()
	drain(e)
	e.toggleReady()
	drain(e)
	if got := p.count(topicStart(roomID)); got != 0 {
		t.Fatalf("start fired %d times without unanimity", got)
	}

	// Local ready again, then the peer readies: one transition, one start.
	e.toggleReady()
	drain(e)
	e.handleMessage(topicUpdate(roomID), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Ready: true, Timestamp: millis(clock.Now()),
	}))
	drain(e)
	if got := p.count(topicStart(roomID)); got != 1 {
		t.Fatalf("start fired %d times for one transition into unanimity", got)
	}
}

func TestDuplicateStartIsIdempotent(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	createTestRoom(t, e)

	e.toggleReady()
	drain(e)
	if e.stage != StageCountdown || e.phase != PhaseInProgress {
		t.Fatalf("round did not start: stage=%s phase=%s", e.stage, e.phase)
	}
	word := e.challenge.Word()

	// A duplicate start from another client just re-enters the countdown.
	e.handleStart()
	drain(e)
	if e.stage != StageCountdown || e.phase != PhaseInProgress {
		t.Fatalf("duplicate start broke the lifecycle: stage=%s phase=%s", e.stage, e.phase)
	}
	if word == "" || e.challenge.Word() == "" {
		t.Fatalf("challenge must stay dealt across a duplicate start")
	}
	rec, _ := e.roster.Get(e.localID)
	if rec.Ready || rec.Score != 0 {
		t.Fatalf("duplicate start must leave a reset roster, got %+v", rec)
	}
}

func TestStartClearsRosterBeforeLifecycle(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)

	// Observe the retained roster at the instant in-progress is published:
	// nobody may see in-progress alongside a still-ready roster.
	observer := b.Client()
	checked := false
	observer.SetHandler(func(topic string, payload []byte) {
		if topic != topicState(roomID) {
			return
		}
		var s wireState
		if err := json.Unmarshal(payload, &s); err != nil || s.State != string(PhaseInProgress) {
			return
		}
		raw, ok := b.Retained(topicPlayers(roomID))
		if !ok {
			t.Errorf("no retained snapshot at in-progress publish")
			return
		}
		var snap map[string]wirePlayer
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Errorf("snapshot not decodable: %v", err)
			return
		}
		for id, p := range snap {
			if p.Ready || p.Score != 0 {
				t.Errorf("player %s observed ready/scored at round start: %+v", id, p)
			}
		}
		checked = true
	})
	if err := observer.Connect(context.Background()); err != nil {
		t.Fatalf("observer connect: %v", err)
	}
	if err := observer.Subscribe(topicState(roomID)); err != nil {
		t.Fatalf("observer subscribe: %v", err)
	}

	e.toggleReady()
	drain(e)
	if !checked {
		t.Fatalf("in-progress lifecycle publish never observed")
	}
}

func TestRoundLifecycleSoloFlow(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	e := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, e)

	e.toggleReady()
	drain(e)
	e.beginActive(e.gen)
	e.refreshProjection()
	if e.stage != StageActive {
		t.Fatalf("expected active stage, got %s", e.stage)
	}
	if e.challenge.Word() != "CAT" {
		t.Fatalf("unexpected challenge word %q", e.challenge.Word())
	}

	// Sign C, A, T with the debounce window respected between letters.
	for _, letter := range []string{"c", "A", "t"} {
		clock.Advance(cfg.MatchDebounce + time.Millisecond)
		e.submitSymbol(letter)
		drain(e)
	}
	rec, _ := e.roster.Get(e.localID)
	if rec.Score != 1 {
		t.Fatalf("completing the word must score one point, got %d", rec.Score)
	}

	e.endRound(e.gen)
	drain(e)
	if e.stage != StageEnded || e.phase != PhaseGameover {
		t.Fatalf("round did not end: stage=%s phase=%s", e.stage, e.phase)
	}
	raw, ok := b.Retained(topicState(roomID))
	if !ok {
		t.Fatalf("gameover lifecycle must be retained")
	}
	var s wireState
	if err := json.Unmarshal(raw, &s); err != nil || s.State != string(PhaseGameover) {
		t.Fatalf("unexpected retained state %s", raw)
	}
	rec, _ = e.roster.Get(e.localID)
	if rec.Ready {
		t.Fatalf("readiness must reset at round end")
	}
	if rec.Score != 1 {
		t.Fatalf("scores stay on the board at round end, got %d", rec.Score)
	}
}

func TestSymbolDebounceRejectsHeldPose(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	createTestRoom(t, e)

	e.toggleReady()
	drain(e)
	e.beginActive(e.gen)

	e.submitSymbol("c")
	e.submitSymbol("a") // held classification inside the debounce window
	drain(e)
	if e.challenge.Index() != 1 {
		t.Fatalf("debounce must reject the immediate follow-up, index=%d", e.challenge.Index())
	}
}

func TestEvictionSweepRemovesSilentPeer(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	e := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, e)

	e.handleMessage(topicUpdate(roomID), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Timestamp: millis(clock.Now()),
	}))
	drain(e)

	clock.Advance(cfg.PlayerTimeout + time.Second)
	// Our own heartbeat loopback keeps the local record fresh.
	e.roster.ApplyPing(e.localID, clock.Now())
	e.sweepExpired()
	drain(e)

	if e.roster.Has("p_1_1") {
		t.Fatalf("silent peer must be evicted after the player timeout")
	}
	if !e.roster.Has(e.localID) {
		t.Fatalf("heartbeating local player must survive the sweep")
	}
	raw, _ := b.Retained(topicPlayers(roomID))
	var snap map[string]wirePlayer
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("snapshot not decodable: %v", err)
	}
	if _, ok := snap["p_1_1"]; ok {
		t.Fatalf("eviction must republish a cleaned retained snapshot")
	}
}

func TestSweepTombstonesDeadRoom(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	e := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, e)

	clock.Advance(cfg.PlayerTimeout + time.Second)
	e.sweepExpired()
	drain(e)

	if _, ok := b.Retained(topicPlayers(roomID)); ok {
		t.Fatalf("an emptied room must collapse to a tombstone")
	}
}

func TestHeartbeatLoopbackKeepsSelfFresh(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	createTestRoom(t, e)

	clock.Advance(30 * time.Second)
	e.emitHeartbeat()
	drain(e)

	rec, _ := e.roster.Get(e.localID)
	if !rec.LastSeen.Equal(clock.Now()) {
		t.Fatalf("own ping loopback must refresh lastSeen, got %v want %v",
			rec.LastSeen, clock.Now())
	}
}

func TestLeaveMarksDepartedAfterGameover(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)
	localID := e.localID

	e.toggleReady()
	drain(e)
	e.beginActive(e.gen)
	e.endRound(e.gen)
	drain(e)

	// A peer is still on the scoreboard, so the room survives our exit.
	e.handleMessage(topicUpdate(roomID), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Score: 2, Timestamp: millis(clock.Now()),
	}))
	drain(e)

	e.leaveRoom()
	drain(e)

	raw, ok := b.Retained(topicPlayers(roomID))
	if !ok {
		t.Fatalf("room with an active peer must not be tombstoned")
	}
	var snap map[string]wirePlayer
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("snapshot not decodable: %v", err)
	}
	if p, ok := snap[localID]; !ok || !p.Left {
		t.Fatalf("leaving after gameover must keep the score marked departed, got %v", snap)
	}
	if e.Projection().Stage != StageMenu {
		t.Fatalf("leaver must return to the menu")
	}
}

func TestLeaveInLobbyRemovesRecord(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)

	e.leaveRoom()
	drain(e)

	if _, ok := b.Retained(topicPlayers(roomID)); ok {
		t.Fatalf("last player leaving must tombstone the room")
	}
}

func TestMessagesAfterLeaveAreIgnored(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)
	e.leaveRoom()
	drain(e)

	e.handleMessage(topicUpdate(roomID), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Timestamp: millis(clock.Now()),
	}))
	if !e.roster.IsEmpty() {
		t.Fatalf("messages for a left room must not mutate state")
	}
	if e.Projection().Stage != StageMenu {
		t.Fatalf("stage drifted after leave")
	}
}

func TestForeignRoomTrafficIgnored(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	createTestRoom(t, e)

	e.handleMessage(topicUpdate("room-OTHER1"), mustJSON(t, wireDelta{
		PlayerID: "p_1_1", Name: "Remy", Timestamp: millis(clock.Now()),
	}))
	if e.roster.Len() != 1 {
		t.Fatalf("traffic tagged with another room id must be dropped")
	}
}

func TestMalformedMessagesAreDropped(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)

	before := mustJSON(t, e.roster.Snapshot(clock.Now()))
	e.handleMessage(topicPlayers(roomID), []byte("{broken"))
	e.handleMessage(topicUpdate(roomID), []byte("not json"))
	e.handleMessage(topicState(roomID), []byte(`{"state":"paused"}`))
	after := mustJSON(t, e.roster.Snapshot(clock.Now()))

	if string(before) != string(after) {
		t.Fatalf("malformed messages must not mutate the roster")
	}
	if e.phase != PhaseWaiting {
		t.Fatalf("invalid lifecycle value must be ignored, phase=%s", e.phase)
	}
}

func TestRemotePoseCreatesPlaceholder(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)

	e.handleMessage(topicHands(roomID, "p_9_9"), mustJSON(t, wirePose{
		PlayerID: "p_9_9",
		Hand:     map[string]wirePoint{"wrist": {X: 0.5, Y: 0.5}},
		TS:       millis(clock.Now()),
	}))
	e.refreshProjection()

	rec, ok := e.roster.Get("p_9_9")
	if !ok || rec.Name != "Player?" {
		t.Fatalf("pose from an unknown sender must create a placeholder, got %+v", rec)
	}
	if rec.Pose == nil {
		t.Fatalf("pose sample not stored")
	}
	// Normalized 0.5 maps to the middle of the local frame.
	if p := rec.Pose.Joints["wrist"]; p.X != e.cfg.FrameWidth/2 || p.Y != e.cfg.FrameHeight/2 {
		t.Fatalf("pose not denormalized into local frame: %+v", p)
	}
}

func TestPoseGoesStaleInProjection(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	e := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, e)

	e.handleMessage(topicHands(roomID, "p_9_9"), mustJSON(t, wirePose{
		PlayerID: "p_9_9",
		Hand:     map[string]wirePoint{"wrist": {X: 0.5, Y: 0.5}},
		TS:       millis(clock.Now()),
	}))
	e.refreshProjection()

	find := func(p Projection) *PlayerView {
		for i := range p.Players {
			if p.Players[i].ID == "p_9_9" {
				return &p.Players[i]
			}
		}
		return nil
	}
	if v := find(e.Projection()); v == nil || v.Pose == nil {
		t.Fatalf("fresh pose must be visible in the projection")
	}

	// No new messages, no refresh: staleness is applied at read time.
	clock.Advance(cfg.HandStale + time.Millisecond)
	if v := find(e.Projection()); v == nil || v.Pose != nil {
		t.Fatalf("stale pose must vanish from the projection without new input")
	}
}

func TestSubmitPoseThrottled(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	cfg := DefaultConfig()
	e := newTestEngine(t, b, clock, cfg)
	roomID := createTestRoom(t, e)
	p := newProbe(t, b, topicPrefix(roomID)+"/hands/#")

	joints := map[string]Point{"wrist": {X: 100, Y: 100}}
	e.submitPose(joints)
	e.submitPose(joints) // inside the rate window
	drain(e)
	clock.Advance(time.Second / 10)
	e.submitPose(joints)
	drain(e)

	if got := p.count(topicHands(roomID, e.localID)); got != 2 {
		t.Fatalf("expected 2 published samples (throttled), got %d", got)
	}
}

func TestSetNamePropagates(t *testing.T) {
	b := transport.NewBroker()
	clock := clockwork.NewFakeClock()
	e := newTestEngine(t, b, clock, DefaultConfig())
	roomID := createTestRoom(t, e)

	if err := e.SetName("bad name!"); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
	drain(e)

	e.setName("Alice_01")
	drain(e)
	raw, _ := b.Retained(topicPlayers(roomID))
	var snap map[string]wirePlayer
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("snapshot not decodable: %v", err)
	}
	if snap[e.localID].Name != "Alice_01" {
		t.Fatalf("rename must reach the retained snapshot, got %+v", snap[e.localID])
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate: %v", err)
	}
	cfg.PlayerTimeout = cfg.HeartbeatInterval * 2
	if err := cfg.Validate(); err == nil {
		t.Fatalf("timeout below 3x heartbeat must be rejected")
	}
}

func TestValidName(t *testing.T) {
	for name, want := range map[string]bool{
		"abc":         true,
		"Player_9":    true,
		"ab":          false,
		"toolongname": false,
		"has space":   false,
		"héllo":       false,
	} {
		if got := ValidName(name); got != want {
			t.Fatalf("ValidName(%q) = %v, want %v", name, got, want)
		}
	}
}

package room

import "time"

// PlayerView is the renderer-facing copy of one roster entry. Pose is nil
// when no fresh sample exists.
type PlayerView struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Score    int              `json:"score"`
	Ready    bool             `json:"ready"`
	Departed bool             `json:"departed"`
	Pose     map[string]Point `json:"pose,omitempty"`
}

// Projection is the read-only view the rendering layer consumes every
// frame. It is rebuilt after every engine mutation and published through an
// atomic pointer, so reads never contend with the engine loop.
type Projection struct {
	RoomID        string       `json:"roomId"`
	Phase         Phase        `json:"phase"`
	Stage         Stage        `json:"stage"`
	LocalPlayerID string       `json:"localPlayerId"`
	Players       []PlayerView `json:"players"`

	// Word challenge progress for the active round.
	Word      string `json:"word,omitempty"`
	WordIndex int    `json:"wordIndex,omitempty"`

	// Remaining countdown/round time in milliseconds, zero outside the
	// relevant stages.
	CountdownMS int64 `json:"countdownMs,omitempty"`
	RemainingMS int64 `json:"remainingMs,omitempty"`

	// Notice is a short-lived, auto-expiring user-visible message (for
	// example a join rejection); never a blocking dialog.
	Notice string `json:"notice,omitempty"`

	poseTimes       map[string]time.Time
	countdownEndsAt time.Time
	roundEndsAt     time.Time
	noticeUntil     time.Time
}

// withFreshPoses returns a copy of p with every pose older than staleAfter
// (relative to now) dropped. Staleness is evaluated at read time so a hand
// freezes out of view even when no further messages arrive.
func (p Projection) withFreshPoses(now time.Time, staleAfter time.Duration) Projection {
	if len(p.poseTimes) == 0 {
		return p
	}
	players := make([]PlayerView, len(p.Players))
	copy(players, p.Players)
	for i := range players {
		ts, ok := p.poseTimes[players[i].ID]
		if !ok {
			continue
		}
		if now.Sub(ts) > staleAfter {
			players[i].Pose = nil
		}
	}
	p.Players = players
	return p
}

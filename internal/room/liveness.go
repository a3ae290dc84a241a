package room

import "github.com/rs/zerolog/log"

// The liveness monitor is two periodic jobs fed into the engine's command
// loop: heartbeat emission announces the local player, and the sweep
// evicts peers whose heartbeats stopped. Both run at the heartbeat
// interval; eviction only triggers after the (much longer) player timeout,
// so ordinary jitter never removes anyone.

func (e *Engine) emitHeartbeat() {
	if e.roomID == "" || e.stage == StageMenu || !e.member() {
		return
	}
	e.publishJSON(topicPing(e.roomID), wirePing{
		PlayerID:  e.localID,
		Timestamp: millis(e.clock.Now()),
	}, false)
}

// sweepExpired evicts roster entries past the player timeout. Any removal
// republishes the cleaned snapshot; when the active set empties out the
// room is collapsed with a tombstone.
func (e *Engine) sweepExpired() {
	if e.roomID == "" || e.pendingJoin {
		return
	}
	now := e.clock.Now()
	removed := e.roster.RemoveExpired(now, e.cfg.PlayerTimeout)
	if len(removed) == 0 {
		return
	}
	log.Info().
		Str("room_id", e.roomID).
		Strs("player_ids", removed).
		Msg("evicted inactive players")
	e.publishSnapshot()
	if len(e.roster.ActiveSet()) == 0 {
		// Only departed stragglers (or nobody) left: the room is dead.
		e.roster.PurgeDeparted()
		e.publishTombstone()
		log.Info().Str("room_id", e.roomID).Msg("room cleared due to inactivity")
	}
}

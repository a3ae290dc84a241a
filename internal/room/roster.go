package room

import (
	"sort"
	"time"
)

// PlayerRecord is one roster entry. Identity is the ID; Name is mutable
// display state. A record with Departed=true is kept on the board (so
// final scores stay visible) until the round restart purges it or the
// room dies.
type PlayerRecord struct {
	ID       string
	Name     string
	Score    int
	Ready    bool
	Departed bool
	LastSeen time.Time
	Pose     *PoseSample
}

// Roster is the per-client authoritative mapping of player id to record.
// It is a plain data structure with no locking; the engine's single-writer
// loop owns it. Convergence across clients is whole-object last-writer-wins:
// the retained snapshot is ground truth and ApplySnapshot replaces rather
// than merges, so removed players cannot be resurrected by stale local data.
type Roster struct {
	records map[string]*PlayerRecord
}

func NewRoster() *Roster {
	return &Roster{records: make(map[string]*PlayerRecord)}
}

func (r *Roster) Len() int      { return len(r.records) }
func (r *Roster) IsEmpty() bool { return len(r.records) == 0 }

func (r *Roster) Get(id string) (*PlayerRecord, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

func (r *Roster) Has(id string) bool {
	_, ok := r.records[id]
	return ok
}

func (r *Roster) Clear() {
	r.records = make(map[string]*PlayerRecord)
}

func (r *Roster) Remove(id string) {
	delete(r.records, id)
}

// Put inserts or replaces a record directly. Local mutations go through
// this; remote ones arrive via ApplySnapshot/ApplyDelta.
func (r *Roster) Put(rec *PlayerRecord) {
	r.records[rec.ID] = rec
}

// ApplySnapshot replaces the entire roster with a sanitized copy of a
// peer-published snapshot. Entries without a name are dropped; absent
// fields default (score 0, flags false, lastSeen now). Poses are transient
// and are not carried in snapshots, so they reset here and are repopulated
// by the pose stream.
func (r *Roster) ApplySnapshot(snap map[string]wirePlayer, now time.Time) {
	clean := make(map[string]*PlayerRecord, len(snap))
	for id, p := range snap {
		if id == "" || p.Name == "" {
			continue
		}
		score := p.Score
		if score < 0 {
			score = 0
		}
		clean[id] = &PlayerRecord{
			ID:       id,
			Name:     p.Name,
			Score:    score,
			Ready:    p.Ready,
			Departed: p.Left,
			LastSeen: fromMillis(p.LastUpdate, now),
		}
	}
	r.records = clean
}

// ApplyDelta upserts a single record. It is a no-op when the delta lacks an
// id or name.
func (r *Roster) ApplyDelta(d wireDelta, now time.Time) bool {
	if d.PlayerID == "" || d.Name == "" {
		return false
	}
	score := d.Score
	if score < 0 {
		score = 0
	}
	r.records[d.PlayerID] = &PlayerRecord{
		ID:       d.PlayerID,
		Name:     d.Name,
		Score:    score,
		Ready:    d.Ready,
		Departed: d.Left,
		LastSeen: fromMillis(d.Timestamp, now),
	}
	return true
}

// ApplyPing advances LastSeen for a known record. max() keeps the value
// monotonic under out-of-order heartbeats.
func (r *Roster) ApplyPing(id string, ts time.Time) bool {
	rec, ok := r.records[id]
	if !ok {
		return false
	}
	if ts.After(rec.LastSeen) {
		rec.LastSeen = ts
	}
	return true
}

// EnsurePlaceholder creates a minimal record for a pose producer that is
// not yet in the roster, so their hand can be rendered before their delta
// or the next snapshot arrives.
func (r *Roster) EnsurePlaceholder(id string, now time.Time) *PlayerRecord {
	if rec, ok := r.records[id]; ok {
		return rec
	}
	rec := &PlayerRecord{ID: id, Name: "Player?", LastSeen: now}
	r.records[id] = rec
	return rec
}

// Snapshot serializes a sanitized, field-complete wire copy of the roster.
// The payload is self-sufficient: a fresh subscriber can reconstruct the
// whole roster from it alone.
func (r *Roster) Snapshot(now time.Time) map[string]wirePlayer {
	out := make(map[string]wirePlayer, len(r.records))
	for id, rec := range r.records {
		if rec == nil || rec.Name == "" {
			continue
		}
		last := rec.LastSeen
		if last.IsZero() {
			last = now
		}
		out[id] = wirePlayer{
			Name:       rec.Name,
			Score:      rec.Score,
			Ready:      rec.Ready,
			Left:       rec.Departed,
			LastUpdate: millis(last),
		}
	}
	return out
}

// ActiveSet returns the non-departed records sorted by id.
func (r *Roster) ActiveSet() []*PlayerRecord {
	var out []*PlayerRecord
	for _, rec := range r.records {
		if !rec.Departed {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllReady reports whether the active set is non-empty and unanimously
// ready. A solo active player counts.
func (r *Roster) AllReady() bool {
	active := r.ActiveSet()
	if len(active) == 0 {
		return false
	}
	for _, rec := range active {
		if !rec.Ready {
			return false
		}
	}
	return true
}

// RemoveExpired evicts records silent past timeout and returns their ids.
// Records already marked departed by an explicit leave are skipped; they
// follow the lifecycle's own purge timing.
func (r *Roster) RemoveExpired(now time.Time, timeout time.Duration) []string {
	var removed []string
	for id, rec := range r.records {
		if rec.Departed {
			continue
		}
		if now.Sub(rec.LastSeen) > timeout {
			delete(r.records, id)
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	return removed
}

// PurgeDeparted removes records marked departed. Called on round restart
// and when the active set empties out.
func (r *Roster) PurgeDeparted() {
	for id, rec := range r.records {
		if rec.Departed {
			delete(r.records, id)
		}
	}
}

// ResetRound clears per-round fields (score, ready) on every record.
func (r *Roster) ResetRound() {
	for _, rec := range r.records {
		rec.Score = 0
		rec.Ready = false
	}
}

// ResetReady clears readiness only, used at round end so scores stay up.
func (r *Roster) ResetReady() {
	for _, rec := range r.records {
		rec.Ready = false
	}
}

// All returns every record sorted by id.
func (r *Roster) All() []*PlayerRecord {
	out := make([]*PlayerRecord, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

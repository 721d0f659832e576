package diag

import (
	"log/slog"
	"time"

	"meshdiag/internal/clock"
	"meshdiag/internal/tlv"
)

// Snapshot is the result of one completed collection cycle.
type Snapshot struct {
	ID      string
	TakenAt time.Time
	Entries []Entry
}

// Records returns the records of all entries in key order.
func (s Snapshot) Records() []tlv.Record {
	out := make([]tlv.Record, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e.Record)
	}
	return out
}

// Gate decides when a pending cycle may emit its snapshot.
type Gate struct {
	store     *Store
	clock     clock.Clock
	retention time.Duration
	log       *slog.Logger
	obs       Observer
}

// CheckAndMaybeComplete returns the snapshot of p once its deadline
// has elapsed, and false before that. It sweeps the store first.
// After one successful call every later call returns false. Checks of
// the same Pending must not run concurrently.
func (g *Gate) CheckAndMaybeComplete(p *Pending) (Snapshot, bool) {
	if p == nil || p.completed {
		return Snapshot{}, false
	}
	now := g.clock.Now()
	if now.Sub(p.StartedAt) < p.Deadline {
		return Snapshot{}, false
	}
	evicted, entries := g.store.sweepAndSnapshot(g.retention, now)
	p.completed = true
	g.obs.StoreSwept(evicted, len(entries))
	g.obs.CollectionCompleted(len(entries))
	g.log.Info("diagnostic collection complete", "id", p.ID, "nodes", len(entries), "evicted", evicted)
	return Snapshot{ID: p.ID, TakenAt: now, Entries: entries}, true
}

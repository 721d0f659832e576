package diag

import (
	"sort"
	"sync"
	"time"

	"meshdiag/internal/tlv"
)

// SentinelKey is the correlation key for replies without a short
// address TLV. Such replies overwrite each other.
const SentinelKey = tlv.SentinelKey

// CorrelationKey derives the store key of a decoded reply.
func CorrelationKey(rec tlv.Record) string { return rec.Key() }

// Entry is the latest diagnostic record seen for one key.
type Entry struct {
	Key        string
	CapturedAt time.Time
	Record     tlv.Record
}

// Store maps correlation keys to their latest Entry. All operations
// are serialized under one mutex because replies are written from the
// transport goroutine while sweeps and snapshots run on request
// goroutines.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]Entry)}
}

// Put replaces the entry for key.
func (s *Store) Put(key string, rec tlv.Record, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = Entry{Key: key, CapturedAt: now, Record: rec.Clone()}
}

// Get returns the entry for key.
func (s *Store) Get(key string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	return e, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep removes every entry with now - CapturedAt >= horizon and
// returns how many were removed.
func (s *Store) Sweep(horizon time.Duration, now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(horizon, now)
}

// Snapshot returns a copy of all entries ordered by key.
func (s *Store) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// sweepAndSnapshot sweeps and copies under a single lock hold so no
// reply lands between the two.
func (s *Store) sweepAndSnapshot(horizon time.Duration, now time.Time) (int, []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := s.sweepLocked(horizon, now)
	return evicted, s.snapshotLocked()
}

func (s *Store) sweepLocked(horizon time.Duration, now time.Time) int {
	evicted := 0
	for key, e := range s.entries {
		if now.Sub(e.CapturedAt) >= horizon {
			delete(s.entries, key)
			evicted++
		}
	}
	return evicted
}

func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, Entry{Key: e.Key, CapturedAt: e.CapturedAt, Record: e.Record.Clone()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

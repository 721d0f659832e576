package diag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"

	"meshdiag/internal/clock"
	"meshdiag/internal/mesh"
)

// Defaults applied by New and by callers that wait on a cycle.
const (
	// DefaultCollectTimeout is how long a cycle gathers replies.
	DefaultCollectTimeout = 2 * time.Second
	// DefaultRetention is how old an entry may get before a completing
	// cycle evicts it.
	DefaultRetention = 3 * time.Second
	// DefaultMulticastGroup is the realm-local all-routers group.
	DefaultMulticastGroup = "ff03::2"
	// DefaultPollInterval is the tick of Wait.
	DefaultPollInterval = 100 * time.Millisecond
)

var (
	// ErrUnknownCollection is returned for ids that were never issued,
	// were already emitted, or were pruned.
	ErrUnknownCollection = errors.New("unknown diagnostic collection")
	ErrInvalidTiming     = errors.New("retention must exceed collect timeout")
)

// Options configures an Engine. Zero durations and an empty multicast
// group take their defaults.
type Options struct {
	Target         netip.Addr
	MulticastGroup string
	CollectTimeout time.Duration
	Retention      time.Duration

	Clock    clock.Clock
	Logger   *slog.Logger
	Observer Observer
}

// Engine runs collection cycles against one mesh transport. It owns the
// shared store and the table of pending cycles.
type Engine struct {
	target    netip.Addr
	deadline  time.Duration
	retention time.Duration
	clock     clock.Clock
	log       *slog.Logger
	obs       Observer

	store     *Store
	collector *Collector
	issuer    *Issuer
	gate      *Gate

	mu      sync.Mutex
	pending map[string]*Pending
}

// New builds an engine sending through t. Retention must exceed the
// collect timeout.
func New(t mesh.Transport, opts Options) (*Engine, error) {
	if t == nil {
		return nil, errors.New("mesh transport is required")
	}
	if !opts.Target.IsValid() {
		return nil, errors.New("target address is required")
	}
	if opts.MulticastGroup == "" {
		opts.MulticastGroup = DefaultMulticastGroup
	}
	if opts.CollectTimeout == 0 {
		opts.CollectTimeout = DefaultCollectTimeout
	}
	if opts.Retention == 0 {
		opts.Retention = DefaultRetention
	}
	if opts.CollectTimeout < 0 || opts.Retention <= opts.CollectTimeout {
		return nil, fmt.Errorf("%w: collect_timeout=%s retention=%s", ErrInvalidTiming, opts.CollectTimeout, opts.Retention)
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	e := &Engine{
		target:    opts.Target,
		deadline:  opts.CollectTimeout,
		retention: opts.Retention,
		clock:     opts.Clock,
		log:       opts.Logger,
		obs:       opts.Observer,
		store:     NewStore(),
		pending:   make(map[string]*Pending),
	}
	e.collector = newCollector(e.store, e.clock, e.log, e.obs)
	e.issuer = &Issuer{
		transport: t,
		multicast: opts.MulticastGroup,
		deadline:  e.deadline,
		collector: e.collector,
		clock:     e.clock,
	}
	e.gate = &Gate{store: e.store, clock: e.clock, retention: e.retention, log: e.log, obs: e.obs}
	return e, nil
}

// Collector returns the reply sink used by this engine's cycles.
func (e *Engine) Collector() *Collector { return e.collector }

// StartCollection issues a new cycle and registers it as pending.
func (e *Engine) StartCollection() (*Pending, error) {
	id := uuid.NewString()
	p, err := e.issuer.Issue(id, e.target)
	if err != nil {
		e.obs.CollectionFailed()
		e.log.Error("diagnostic collection failed", "err", err)
		return nil, err
	}

	e.mu.Lock()
	e.pruneLocked(p.StartedAt)
	e.pending[id] = p
	e.mu.Unlock()

	e.obs.CollectionStarted()
	e.log.Info("diagnostic collection started", "id", id, "target", e.target)
	return p, nil
}

// PollCollection checks the cycle id without blocking. It returns the
// snapshot and true exactly once, when the deadline has elapsed; the
// cycle is forgotten afterwards. A cycle left unpolled for longer than
// collect timeout plus retention is dropped when the next cycle starts
// and then reports ErrUnknownCollection.
func (e *Engine) PollCollection(id string) (Snapshot, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.pending[id]
	if !ok {
		return Snapshot{}, false, ErrUnknownCollection
	}
	snap, done := e.gate.CheckAndMaybeComplete(p)
	if done {
		delete(e.pending, id)
	}
	return snap, done, nil
}

// Wait polls the cycle id every tick until its snapshot is ready or
// ctx is done.
func (e *Engine) Wait(ctx context.Context, id string, tick time.Duration) (Snapshot, error) {
	if tick <= 0 {
		tick = DefaultPollInterval
	}
	ticker := e.clock.NewTicker(tick)
	defer ticker.Stop()
	for {
		snap, done, err := e.PollCollection(id)
		if err != nil {
			return Snapshot{}, err
		}
		if done {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Collect starts a cycle and waits for its snapshot.
func (e *Engine) Collect(ctx context.Context, tick time.Duration) (Snapshot, error) {
	p, err := e.StartCollection()
	if err != nil {
		return Snapshot{}, err
	}
	return e.Wait(ctx, p.ID, tick)
}

// Entries returns a copy of the store without sweeping it.
func (e *Engine) Entries() []Entry { return e.store.Snapshot() }

// PendingCount returns the number of cycles not yet emitted.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// CollectTimeout returns the configured collection deadline.
func (e *Engine) CollectTimeout() time.Duration { return e.deadline }

// pruneLocked drops cycles nobody polled within deadline+retention.
func (e *Engine) pruneLocked(now time.Time) {
	limit := e.deadline + e.retention
	for id, p := range e.pending {
		if now.Sub(p.StartedAt) >= limit {
			delete(e.pending, id)
			e.log.Debug("pruned unpolled collection", "id", id)
		}
	}
}

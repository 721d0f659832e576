package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"meshdiag/internal/diag"
)

var _ diag.Observer = (*PromObs)(nil)

// PromObs exports engine events as prometheus metrics.
type PromObs struct {
	started     prometheus.Counter
	failed      prometheus.Counter
	completed   prometheus.Counter
	replies     *prometheus.CounterVec
	evicted     prometheus.Counter
	entries     prometheus.Gauge
	nodes       prometheus.Histogram
	registryLen prometheus.Gauge
}

// NewPromObs creates the collectors and registers them with reg.
func NewPromObs(reg prometheus.Registerer) *PromObs {
	p := &PromObs{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshdiag_collections_started_total",
			Help: "Collection cycles issued to the mesh.",
		}),
		failed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshdiag_collections_failed_total",
			Help: "Collection cycles that could not be issued.",
		}),
		completed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshdiag_collections_completed_total",
			Help: "Collection cycles that emitted a snapshot.",
		}),
		replies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meshdiag_replies_total",
			Help: "Diagnostic replies received, by outcome.",
		}, []string{"result"}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meshdiag_store_evicted_total",
			Help: "Aggregation entries removed by the sweeper.",
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshdiag_store_entries",
			Help: "Aggregation entries left after the last sweep.",
		}),
		nodes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshdiag_snapshot_nodes",
			Help:    "Nodes per emitted snapshot.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		registryLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meshdiag_registry_nodes",
			Help: "Nodes in the persisted node registry.",
		}),
	}
	reg.MustRegister(p.started, p.failed, p.completed, p.replies, p.evicted, p.entries, p.nodes, p.registryLen)
	return p
}

// CollectionStarted counts an issued cycle.
func (p *PromObs) CollectionStarted() { p.started.Inc() }

// CollectionFailed counts a cycle that could not be issued.
func (p *PromObs) CollectionFailed() { p.failed.Inc() }

// CollectionCompleted counts an emitted snapshot and records its size.
func (p *PromObs) CollectionCompleted(nodes int) {
	p.completed.Inc()
	p.nodes.Observe(float64(nodes))
}

// ReplyStored counts a reply written to the store.
func (p *PromObs) ReplyStored() { p.replies.WithLabelValues("stored").Inc() }

// ReplyDiscarded counts a dropped reply under its reason.
func (p *PromObs) ReplyDiscarded(reason string) { p.replies.WithLabelValues(reason).Inc() }

// StoreSwept counts evictions and sets the remaining store size.
func (p *PromObs) StoreSwept(evicted, remaining int) {
	p.evicted.Add(float64(evicted))
	p.entries.Set(float64(remaining))
}

// SetRegistryNodes records the size of the node registry.
func (p *PromObs) SetRegistryNodes(n int) { p.registryLen.Set(float64(n)) }

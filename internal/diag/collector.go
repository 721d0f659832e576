package diag

import (
	"errors"
	"log/slog"

	"meshdiag/internal/clock"
	"meshdiag/internal/mesh"
	"meshdiag/internal/tlv"
)

// Collector turns diagnostic replies into store entries.
type Collector struct {
	store *Store
	clock clock.Clock
	log   *slog.Logger
	obs   Observer
}

func newCollector(store *Store, clk clock.Clock, log *slog.Logger, obs Observer) *Collector {
	return &Collector{store: store, clock: clk, log: log, obs: obs}
}

// HandleReply stores one reply received for the given collection
// cycle. Replies with an error status, a datagram or payload that does
// not decode are dropped. Replies arriving after their cycle completed are
// stored like any other.
func (c *Collector) HandleReply(cycle string, reply mesh.Reply) {
	if errors.Is(reply.Err, mesh.ErrMalformedReply) {
		c.log.Warn("diagnostic reply malformed", "cycle", cycle, "source", reply.Source, "err", reply.Err)
		c.obs.ReplyDiscarded(DiscardMalformed)
		return
	}
	if reply.Err != nil {
		c.log.Warn("diagnostic reply error", "cycle", cycle, "source", reply.Source, "err", reply.Err)
		c.obs.ReplyDiscarded(DiscardErrorStatus)
		return
	}
	rec, err := tlv.Decode(reply.Payload)
	if err != nil {
		c.log.Warn("diagnostic reply decode failed", "cycle", cycle, "source", reply.Source, "err", err)
		c.obs.ReplyDiscarded(DiscardMalformed)
		return
	}
	key := CorrelationKey(rec)
	c.store.Put(key, rec, c.clock.Now())
	c.log.Debug("diagnostic reply stored", "cycle", cycle, "key", key, "tlvs", len(rec))
	c.obs.ReplyStored()
}

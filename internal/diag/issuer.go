package diag

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"meshdiag/internal/clock"
	"meshdiag/internal/mesh"
	"meshdiag/internal/tlv"
)

// ErrIssue is returned when a collection cycle could not be started.
var ErrIssue = errors.New("diagnostic collection not issued")

// Pending is one collection cycle awaiting its deadline.
type Pending struct {
	ID        string
	StartedAt time.Time
	Deadline  time.Duration

	completed bool
}

// Completed reports whether the gate already emitted this cycle's
// snapshot.
func (p *Pending) Completed() bool { return p.completed }

// Issuer sends the two diagnostic gets of a collection cycle.
type Issuer struct {
	transport mesh.Transport
	multicast string
	deadline  time.Duration
	collector *Collector
	clock     clock.Clock
}

// Issue sends a diagnostic get to target and to the multicast group.
// Both sends share one reply handler bound to id. If either send
// fails no Pending is returned; replies to a send that did go out are
// still stored when they arrive.
func (i *Issuer) Issue(id string, target netip.Addr) (*Pending, error) {
	types := tlv.RequestedCodes()
	handler := func(r mesh.Reply) { i.collector.HandleReply(id, r) }

	if err := i.transport.SendDiagnosticGet(target, types, handler); err != nil {
		return nil, fmt.Errorf("%w: unicast to %s: %w", ErrIssue, target, err)
	}
	group, err := netip.ParseAddr(i.multicast)
	if err != nil {
		return nil, fmt.Errorf("%w: multicast group %q: %w", ErrIssue, i.multicast, err)
	}
	if err := i.transport.SendDiagnosticGet(group, types, handler); err != nil {
		return nil, fmt.Errorf("%w: multicast to %s: %w", ErrIssue, group, err)
	}
	return &Pending{ID: id, StartedAt: i.clock.Now(), Deadline: i.deadline}, nil
}

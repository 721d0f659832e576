package diag

import (
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"meshdiag/internal/clock"
	"meshdiag/internal/mesh"
	"meshdiag/internal/tlv"
)

var (
	t0        = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	localRLOC = netip.MustParseAddr("fd00::ff:fe00:fc00")
)

type sentQuery struct {
	dst     netip.Addr
	types   []uint8
	handler mesh.ReplyHandler
}

type fakeTransport struct {
	mu    sync.Mutex
	sent  []sentQuery
	fails map[netip.Addr]error
}

func (f *fakeTransport) SendDiagnosticGet(dst netip.Addr, types []uint8, handler mesh.ReplyHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fails[dst]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentQuery{dst: dst, types: types, handler: handler})
	return nil
}

func (f *fakeTransport) queries() []sentQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentQuery(nil), f.sent...)
}

// reply delivers r through the handler of the last query sent.
func (f *fakeTransport) reply(t *testing.T, r mesh.Reply) {
	t.Helper()
	q := f.queries()
	if len(q) == 0 {
		t.Fatalf("no query sent")
	}
	q[len(q)-1].handler(r)
}

func nodeReply(t *testing.T, short uint16, battery uint8) mesh.Reply {
	t.Helper()
	payload, err := tlv.Encode(tlv.Record{
		{Type: tlv.TypeShortAddress, Value: short},
		{Type: tlv.TypeBatteryLevel, Value: battery},
	})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return mesh.Reply{Payload: payload}
}

func anonymousReply(t *testing.T, battery uint8) mesh.Reply {
	t.Helper()
	payload, err := tlv.Encode(tlv.Record{{Type: tlv.TypeBatteryLevel, Value: battery}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return mesh.Reply{Payload: payload}
}

func battery(t *testing.T, rec tlv.Record) uint8 {
	t.Helper()
	entry, ok := rec.Find(tlv.TypeBatteryLevel)
	if !ok {
		t.Fatalf("battery tlv missing in %v", rec)
	}
	return entry.Value.(uint8)
}

func keys(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}

type recordingObserver struct {
	mu        sync.Mutex
	started   int
	failed    int
	completed []int
	stored    int
	discarded map[string]int
	evicted   int
}

func (o *recordingObserver) CollectionStarted() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) CollectionFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failed++
}

func (o *recordingObserver) CollectionCompleted(n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.completed = append(o.completed, n)
}

func (o *recordingObserver) ReplyStored() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stored++
}

func (o *recordingObserver) ReplyDiscarded(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.discarded == nil {
		o.discarded = make(map[string]int)
	}
	o.discarded[reason]++
}

func (o *recordingObserver) StoreSwept(evicted, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.evicted += evicted
}

type harness struct {
	engine    *Engine
	clock     *clock.FakeClock
	transport *fakeTransport
	obs       *recordingObserver
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		clock:     clock.Fake(t0),
		transport: &fakeTransport{fails: map[netip.Addr]error{}},
		obs:       &recordingObserver{},
	}
	opts := Options{Target: localRLOC, Clock: h.clock, Observer: h.obs}
	if mutate != nil {
		mutate(&opts)
	}
	e, err := New(h.transport, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.engine = e
	return h
}

var errSocket = errors.New("socket closed")

package mesh

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/pion/stun/v3"

	"meshdiag/internal/clock"
)

// DefaultReplyWindow is how long a query accepts replies.
const DefaultReplyWindow = 5 * time.Second

// Route maps a mesh address to the UDP endpoints that receive traffic
// sent to it. A multicast group usually lists several endpoints.
type Route struct {
	Address   netip.Addr
	Endpoints []netip.AddrPort
}

// Options tunes a UDPTransport.
type Options struct {
	ReplyWindow time.Duration
	Clock       clock.Clock
	Logger      *slog.Logger
}

type transaction struct {
	handler ReplyHandler
	expires time.Time
}

// UDPTransport sends diagnostic gets over one UDP socket and routes
// replies to the handler of the query they answer.
type UDPTransport struct {
	conn   *net.UDPConn
	window time.Duration
	clock  clock.Clock
	log    *slog.Logger

	mu      sync.Mutex
	routes  map[netip.Addr][]netip.AddrPort
	pending map[[stun.TransactionIDSize]byte]transaction
}

// ListenUDP opens the transport socket on addr (e.g. ":0") and starts
// the read loop.
func ListenUDP(addr string, routes []Route, opts Options) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if opts.ReplyWindow <= 0 {
		opts.ReplyWindow = DefaultReplyWindow
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	t := &UDPTransport{
		conn:    conn,
		window:  opts.ReplyWindow,
		clock:   opts.Clock,
		log:     opts.Logger,
		routes:  make(map[netip.Addr][]netip.AddrPort),
		pending: make(map[[stun.TransactionIDSize]byte]transaction),
	}
	for _, r := range routes {
		t.SetRoute(r)
	}
	go t.readLoop()
	return t, nil
}

// LocalAddr returns the socket address.
func (t *UDPTransport) LocalAddr() string {
	if t == nil || t.conn == nil {
		return ""
	}
	return t.conn.LocalAddr().String()
}

// Close stops the read loop. Open transactions are dropped.
func (t *UDPTransport) Close() error {
	if t == nil || t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

// SetRoute replaces the endpoints of r.Address. An empty endpoint list
// removes the route.
func (t *UDPTransport) SetRoute(r Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(r.Endpoints) == 0 {
		delete(t.routes, r.Address)
		return
	}
	eps := make([]netip.AddrPort, 0, len(r.Endpoints))
	for _, ep := range r.Endpoints {
		eps = append(eps, netip.AddrPortFrom(ep.Addr().Unmap(), ep.Port()))
	}
	t.routes[r.Address] = eps
}

// Routes returns the configured routes.
func (t *UDPTransport) Routes() []Route {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Route, 0, len(t.routes))
	for addr, eps := range t.routes {
		out = append(out, Route{Address: addr, Endpoints: append([]netip.AddrPort(nil), eps...)})
	}
	return out
}

// SendDiagnosticGet sends one query to every endpoint routed for dst.
// handler receives each reply that arrives within the reply window.
func (t *UDPTransport) SendDiagnosticGet(dst netip.Addr, types []uint8, handler ReplyHandler) error {
	msg, err := buildRequest(dst, types)
	if err != nil {
		return fmt.Errorf("build diagnostic get: %w", err)
	}

	now := t.clock.Now()
	t.mu.Lock()
	endpoints := t.routes[dst]
	if len(endpoints) == 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNoRoute, dst)
	}
	t.expireLocked(now)
	t.pending[msg.TransactionID] = transaction{handler: handler, expires: now.Add(t.window)}
	t.mu.Unlock()

	for _, ep := range endpoints {
		if _, err := t.conn.WriteToUDPAddrPort(msg.Raw, ep); err != nil {
			t.mu.Lock()
			delete(t.pending, msg.TransactionID)
			t.mu.Unlock()
			return fmt.Errorf("send diagnostic get to %s via %s: %w", dst, ep, err)
		}
	}
	t.log.Debug("diagnostic get sent", "dst", dst, "endpoints", len(endpoints), "types", len(types))
	return nil
}

// OpenTransactions returns the number of queries still accepting
// replies.
func (t *UDPTransport) OpenTransactions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expireLocked(t.clock.Now())
	return len(t.pending)
}

func (t *UDPTransport) expireLocked(now time.Time) {
	for id, tx := range t.pending {
		if !now.Before(tx.expires) {
			delete(t.pending, id)
		}
	}
}

func (t *UDPTransport) readLoop() {
	buf := make([]byte, maxDatagram)
	for {
		n, addr, err := t.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		if !stun.IsMessage(buf[:n]) {
			continue
		}
		msg := new(stun.Message)
		if err := stun.Decode(buf[:n], msg); err != nil {
			// The header is intact, so the reply can still be matched.
			var id [stun.TransactionIDSize]byte
			copy(id[:], buf[8:headerSize])
			t.deliver(id, Reply{Err: fmt.Errorf("%w: %w", ErrMalformedReply, err), Source: addr})
			continue
		}
		reply, ok := parseReply(msg)
		if !ok {
			continue
		}
		reply.Source = addr
		t.deliver(msg.TransactionID, reply)
	}
}

// deliver hands reply to the handler of transaction id if it is still
// open.
func (t *UDPTransport) deliver(id [stun.TransactionIDSize]byte, reply Reply) {
	t.mu.Lock()
	tx, found := t.pending[id]
	if found && !t.clock.Now().Before(tx.expires) {
		delete(t.pending, id)
		found = false
	}
	t.mu.Unlock()
	if !found {
		t.log.Debug("reply for unknown transaction", "source", reply.Source, "err", reply.Err)
		return
	}
	tx.handler(reply)
}

package mesh

import (
	"log/slog"
	"net"
	"net/netip"
	"sync"

	"github.com/pion/stun/v3"

	"meshdiag/internal/tlv"
)

// Node is a simulated mesh node. It answers diagnostic gets addressed
// to its RLOC or to a group it joined with the requested subset of its
// record.
type Node struct {
	conn *net.UDPConn
	rloc netip.Addr
	log  *slog.Logger

	mu     sync.RWMutex
	record tlv.Record
	groups map[netip.Addr]struct{}
}

// ServeNode starts a node on addr.
func ServeNode(addr string, rloc netip.Addr, record tlv.Record, groups []netip.Addr, log *slog.Logger) (*Node, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	n := &Node{
		conn:   conn,
		rloc:   rloc,
		log:    log,
		record: record.Clone(),
		groups: make(map[netip.Addr]struct{}, len(groups)),
	}
	for _, g := range groups {
		n.groups[g] = struct{}{}
	}
	go n.serve()
	return n, nil
}

// LocalAddr returns the node's UDP address.
func (n *Node) LocalAddr() string {
	if n == nil || n.conn == nil {
		return ""
	}
	return n.conn.LocalAddr().String()
}

// AddrPort returns the node's UDP address with IPv4 addresses
// unmapped.
func (n *Node) AddrPort() netip.AddrPort {
	ap := n.conn.LocalAddr().(*net.UDPAddr).AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Close stops the node.
func (n *Node) Close() error {
	if n == nil || n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// SetRecord replaces the diagnostics the node reports.
func (n *Node) SetRecord(rec tlv.Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.record = rec.Clone()
}

func (n *Node) serve() {
	buf := make([]byte, maxDatagram)
	for {
		size, addr, err := n.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return
		}
		if !stun.IsMessage(buf[:size]) {
			continue
		}
		req := new(stun.Message)
		if err := stun.Decode(buf[:size], req); err != nil {
			continue
		}
		if req.Type != typeDiagnosticRequest {
			continue
		}
		resp, ok := n.answer(req)
		if !ok {
			continue
		}
		if _, err := n.conn.WriteToUDPAddrPort(resp.Raw, addr); err != nil {
			n.log.Warn("diagnostic reply failed", "peer", addr, "err", err)
		}
	}
}

func (n *Node) answer(req *stun.Message) (*stun.Message, bool) {
	dst, err := requestDestination(req)
	if err != nil {
		resp, err := buildError(req, stun.CodeBadRequest)
		return resp, err == nil
	}
	if !n.accepts(dst) {
		return nil, false
	}
	types, err := req.Get(attrTypeList)
	if err != nil || len(types) == 0 {
		resp, err := buildError(req, stun.CodeBadRequest)
		return resp, err == nil
	}

	n.mu.RLock()
	payload, err := tlv.Encode(n.record.Filter(types))
	n.mu.RUnlock()
	if err != nil {
		n.log.Error("encode diagnostics", "err", err)
		resp, err := buildError(req, stun.CodeServerError)
		return resp, err == nil
	}
	resp, err := buildResponse(req, payload)
	if err != nil {
		return nil, false
	}
	return resp, true
}

func (n *Node) accepts(dst netip.Addr) bool {
	if dst == n.rloc {
		return true
	}
	_, ok := n.groups[dst]
	return ok
}

// Package mesh carries diagnostic queries to mesh nodes and delivers
// their replies.
//
// The UDP transport emulates the mesh on an IP network: each mesh
// address (a node's RLOC or a multicast group) is routed to one or
// more UDP endpoints, and queries and replies are framed as STUN
// messages so that every reply carries the transaction id of the
// query it answers.
package mesh

import (
	"errors"
	"net/netip"
)

// ErrNoRoute is returned when a destination has no configured
// endpoints.
var ErrNoRoute = errors.New("no route to mesh destination")

// ErrMalformedReply is set on a Reply whose datagram carried a query's
// transaction id but could not be decoded.
var ErrMalformedReply = errors.New("malformed diagnostic reply")

// maxDatagram is the largest UDP payload a socket can receive.
const maxDatagram = 65535

// Reply is one asynchronous answer to a diagnostic get. Err is set
// when the node answered with an error status or the reply did not
// decode (ErrMalformedReply); Payload then is nil.
type Reply struct {
	Err     error
	Payload []byte
	Source  netip.AddrPort
}

// ReplyHandler receives replies. It runs on the transport's read
// goroutine and must not block.
type ReplyHandler func(Reply)

// Transport sends diagnostic gets. The returned error reports only a
// local send failure, never remote delivery.
type Transport interface {
	SendDiagnosticGet(dst netip.Addr, types []uint8, handler ReplyHandler) error
}

package model

import (
	"encoding/json"
	"net/netip"
	"time"

	"meshdiag/internal/tlv"
)

// Node is a mesh node seen in a completed diagnostic snapshot.
type Node struct {
	Key         string
	ExtAddress  string
	Mode        string
	Addresses   []string
	Battery     *uint8
	FirstSeenAt time.Time
	LastSeenAt  time.Time
	Collections int
}

// NodeFromRecord extracts the identity fields of one snapshot entry.
func NodeFromRecord(key string, rec tlv.Record, seen time.Time) Node {
	n := Node{Key: key, FirstSeenAt: seen, LastSeenAt: seen, Collections: 1}
	if ext, ok := rec.ExtAddress(); ok {
		n.ExtAddress = ext.String()
	}
	if entry, ok := rec.Find(tlv.TypeMode); ok {
		if mode, ok := entry.Value.(tlv.Mode); ok {
			n.Mode = mode.String()
		}
	}
	if entry, ok := rec.Find(tlv.TypeIPv6AddressList); ok {
		if addrs, ok := entry.Value.([]netip.Addr); ok {
			for _, a := range addrs {
				n.Addresses = append(n.Addresses, a.String())
			}
		}
	}
	if entry, ok := rec.Find(tlv.TypeBatteryLevel); ok {
		if level, ok := entry.Value.(uint8); ok {
			n.Battery = &level
		}
	}
	return n
}

// DiagnosticRow is one TLV of one node in one snapshot, flattened for
// CSV history.
type DiagnosticRow struct {
	CollectedAt time.Time
	Key         string
	Type        uint8
	TypeName    string
	Value       string // JSON
}

// RowsFromRecord flattens one snapshot entry.
func RowsFromRecord(collectedAt time.Time, key string, rec tlv.Record) ([]DiagnosticRow, error) {
	rows := make([]DiagnosticRow, 0, len(rec))
	for _, entry := range rec {
		value, err := json.Marshal(entry.Value)
		if err != nil {
			return nil, err
		}
		rows = append(rows, DiagnosticRow{
			CollectedAt: collectedAt,
			Key:         key,
			Type:        uint8(entry.Type),
			TypeName:    entry.Type.String(),
			Value:       string(value),
		})
	}
	return rows, nil
}

// Package tlv decodes and encodes the network diagnostic TLVs that mesh
// nodes return in answer to a diagnostic get.
//
// A payload is a sequence of type (1 byte), length (1 byte, 0xff
// escapes to a 2-byte big-endian extended length), value. Decoding
// keeps the order in which TLVs appear and skips types it does not
// know.
package tlv

import (
	"encoding/json"
	"fmt"
)

// Type is a network diagnostic TLV type code.
type Type uint8

const (
	TypeExtAddress      Type = 0
	TypeShortAddress    Type = 1
	TypeMode            Type = 2
	TypeTimeout         Type = 3
	TypeConnectivity    Type = 4
	TypeRoute64         Type = 5
	TypeLeaderData      Type = 6
	TypeNetworkData     Type = 7
	TypeIPv6AddressList Type = 8
	TypeMACCounters     Type = 9
	TypeBatteryLevel    Type = 14
	TypeSupplyVoltage   Type = 15
	TypeChildTable      Type = 16
	TypeChannelPages    Type = 17
	TypeMaxChildTimeout Type = 19
)

// Requested is the fixed allow-list of types carried in every
// diagnostic get.
var Requested = []Type{
	TypeExtAddress,
	TypeShortAddress,
	TypeMode,
	TypeTimeout,
	TypeConnectivity,
	TypeRoute64,
	TypeLeaderData,
	TypeNetworkData,
	TypeIPv6AddressList,
	TypeMACCounters,
	TypeBatteryLevel,
	TypeSupplyVoltage,
	TypeChildTable,
	TypeChannelPages,
	TypeMaxChildTimeout,
}

// RequestedCodes returns Requested as raw codes for the wire.
func RequestedCodes() []uint8 {
	out := make([]uint8, len(Requested))
	for i, t := range Requested {
		out[i] = uint8(t)
	}
	return out
}

var typeNames = map[Type]string{
	TypeExtAddress:      "extAddress",
	TypeShortAddress:    "rloc16",
	TypeMode:            "mode",
	TypeTimeout:         "timeout",
	TypeConnectivity:    "connectivity",
	TypeRoute64:         "route",
	TypeLeaderData:      "leaderData",
	TypeNetworkData:     "networkData",
	TypeIPv6AddressList: "ip6AddressList",
	TypeMACCounters:     "macCounters",
	TypeBatteryLevel:    "batteryLevel",
	TypeSupplyVoltage:   "supplyVoltage",
	TypeChildTable:      "childTable",
	TypeChannelPages:    "channelPages",
	TypeMaxChildTimeout: "maxChildTimeout",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Known reports whether the codec understands t.
func (t Type) Known() bool {
	_, ok := typeNames[t]
	return ok
}

// TLV is one decoded diagnostic entry. Value holds the type-specific
// payload; see the value types in this package.
type TLV struct {
	Type  Type
	Value any
}

// MarshalJSON renders {"type": <code>, "value": <payload>}.
func (t TLV) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type  uint8 `json:"type"`
		Value any   `json:"value"`
	}{uint8(t.Type), t.Value})
}

// Record is one node's ordered set of diagnostic TLVs.
type Record []TLV

// SentinelKey is the correlation key of a record without a short
// address TLV.
const SentinelKey = "0xffee"

// FormatKey renders a short address as a correlation key.
func FormatKey(short uint16) string { return fmt.Sprintf("0x%04x", short) }

// Key returns the correlation key of the record: its short address,
// or SentinelKey when it has none.
func (r Record) Key() string {
	if short, ok := r.ShortAddress(); ok {
		return FormatKey(short)
	}
	return SentinelKey
}

// ShortAddress returns the value of the last short address TLV.
func (r Record) ShortAddress() (uint16, bool) {
	var (
		short uint16
		found bool
	)
	for _, entry := range r {
		if entry.Type != TypeShortAddress {
			continue
		}
		if v, ok := entry.Value.(uint16); ok {
			short, found = v, true
		}
	}
	return short, found
}

// ExtAddress returns the value of the first extended address TLV.
func (r Record) ExtAddress() (ExtAddress, bool) {
	for _, entry := range r {
		if entry.Type != TypeExtAddress {
			continue
		}
		if v, ok := entry.Value.(ExtAddress); ok {
			return v, true
		}
	}
	return ExtAddress{}, false
}

// Find returns the first entry of type t.
func (r Record) Find(t Type) (TLV, bool) {
	for _, entry := range r {
		if entry.Type == t {
			return entry, true
		}
	}
	return TLV{}, false
}

// Filter keeps entries whose type is in codes, preserving order.
func (r Record) Filter(codes []uint8) Record {
	want := make(map[Type]bool, len(codes))
	for _, c := range codes {
		want[Type(c)] = true
	}
	out := make(Record, 0, len(r))
	for _, entry := range r {
		if want[entry.Type] {
			out = append(out, entry)
		}
	}
	return out
}

// Clone returns a copy of the entry slice. Values are treated as
// immutable once decoded and are shared.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return append(Record(nil), r...)
}

package tlv

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ExtAddress is an IEEE 802.15.4 extended MAC address.
type ExtAddress [8]byte

func (a ExtAddress) String() string { return hex.EncodeToString(a[:]) }

// MarshalText renders the address as 16 lowercase hex digits.
func (a ExtAddress) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ParseExtAddress parses 16 hex digits.
func ParseExtAddress(s string) (ExtAddress, error) {
	var a ExtAddress
	b, err := hex.DecodeString(s)
	if err != nil {
		return a, fmt.Errorf("ext address: %w", err)
	}
	if len(b) != len(a) {
		return a, fmt.Errorf("ext address: want %d bytes, got %d", len(a), len(b))
	}
	copy(a[:], b)
	return a, nil
}

// HexBytes is opaque binary data rendered as hex in JSON.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) { return []byte(hex.EncodeToString(h)), nil }

// Mode is the device mode of a node.
type Mode struct {
	RxOnWhenIdle bool `json:"rxOnWhenIdle" yaml:"rx_on_when_idle"`
	DeviceType   bool `json:"deviceType" yaml:"device_type"`
	NetworkData  bool `json:"networkData" yaml:"network_data"`
}

const (
	modeRxOnWhenIdle = 1 << 3
	modeFullDevice   = 1 << 1
	modeFullNetData  = 1 << 0
)

func modeFromByte(b byte) Mode {
	return Mode{
		RxOnWhenIdle: b&modeRxOnWhenIdle != 0,
		DeviceType:   b&modeFullDevice != 0,
		NetworkData:  b&modeFullNetData != 0,
	}
}

func (m Mode) byte() byte {
	var b byte
	if m.RxOnWhenIdle {
		b |= modeRxOnWhenIdle
	}
	if m.DeviceType {
		b |= modeFullDevice
	}
	if m.NetworkData {
		b |= modeFullNetData
	}
	return b
}

// String renders the mode the way mesh CLIs do: "r", "d", "n" flags or
// "-" for none.
func (m Mode) String() string {
	s := ""
	if m.RxOnWhenIdle {
		s += "r"
	}
	if m.DeviceType {
		s += "d"
	}
	if m.NetworkData {
		s += "n"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Connectivity describes a node's link quality to its neighbors. The
// SED fields are optional on the wire and omitted when zero.
type Connectivity struct {
	ParentPriority   int8   `json:"parentPriority"`
	LinkQuality3     uint8  `json:"linkQuality3"`
	LinkQuality2     uint8  `json:"linkQuality2"`
	LinkQuality1     uint8  `json:"linkQuality1"`
	LeaderCost       uint8  `json:"leaderCost"`
	IDSequence       uint8  `json:"idSequence"`
	ActiveRouters    uint8  `json:"activeRouters"`
	SEDBufferSize    uint16 `json:"sedBufferSize,omitempty"`
	SEDDatagramCount uint8  `json:"sedDatagramCount,omitempty"`
}

// Route64 is a router's view of the routing table.
type Route64 struct {
	IDSequence uint8       `json:"idSequence"`
	RouterMask HexBytes    `json:"routerMask"`
	Routes     []RouteData `json:"routeData"`
}

// RouteData is one allocated router id in a Route64 TLV.
type RouteData struct {
	RouterID       uint8 `json:"routeId"`
	LinkQualityOut uint8 `json:"linkQualityOut"`
	LinkQualityIn  uint8 `json:"linkQualityIn"`
	RouteCost      uint8 `json:"routeCost"`
}

// LeaderData identifies the partition leader and network data versions.
type LeaderData struct {
	PartitionID       uint32 `json:"partitionId"`
	Weighting         uint8  `json:"weighting"`
	DataVersion       uint8  `json:"dataVersion"`
	StableDataVersion uint8  `json:"stableDataVersion"`
	LeaderRouterID    uint8  `json:"leaderRouterId"`
}

// MACCounters are the 802.15.4 interface counters.
type MACCounters struct {
	IfInUnknownProtos  uint32 `json:"ifInUnknownProtos"`
	IfInErrors         uint32 `json:"ifInErrors"`
	IfOutErrors        uint32 `json:"ifOutErrors"`
	IfInUcastPkts      uint32 `json:"ifInUcastPkts"`
	IfInBroadcastPkts  uint32 `json:"ifInBroadcastPkts"`
	IfInDiscards       uint32 `json:"ifInDiscards"`
	IfOutUcastPkts     uint32 `json:"ifOutUcastPkts"`
	IfOutBroadcastPkts uint32 `json:"ifOutBroadcastPkts"`
	IfOutDiscards      uint32 `json:"ifOutDiscards"`
}

// ChildEntry is one row of a router's child table.
type ChildEntry struct {
	Timeout     uint8  `json:"timeout"`
	LinkQuality uint8  `json:"linkQuality"`
	ChildID     uint16 `json:"childId"`
	Mode        Mode   `json:"mode"`
}

// ChannelPages lists the channel pages a node supports.
type ChannelPages []uint8

// MarshalJSON renders the pages as a number array rather than base64.
func (p ChannelPages) MarshalJSON() ([]byte, error) {
	out := make([]int, len(p))
	for i, v := range p {
		out[i] = int(v)
	}
	return json.Marshal(out)
}

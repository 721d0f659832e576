package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"net/netip"
)

// ErrMalformed is wrapped by every decode failure.
var ErrMalformed = errors.New("malformed diagnostic tlv")

const extendedLength = 0xff

// Decode parses a diagnostic payload. Unknown types are skipped. A
// truncated payload or a known TLV with an invalid length fails the
// whole payload; no partial record is returned.
func Decode(payload []byte) (Record, error) {
	rec := Record{}
	for len(payload) > 0 {
		if len(payload) < 2 {
			return nil, fmt.Errorf("%w: truncated header", ErrMalformed)
		}
		typ := Type(payload[0])
		length := int(payload[1])
		header := 2
		if length == extendedLength {
			if len(payload) < 4 {
				return nil, fmt.Errorf("%w: %s: truncated extended length", ErrMalformed, typ)
			}
			length = int(binary.BigEndian.Uint16(payload[2:4]))
			header = 4
		}
		if len(payload) < header+length {
			return nil, fmt.Errorf("%w: %s: length %d exceeds remaining %d", ErrMalformed, typ, length, len(payload)-header)
		}
		value := payload[header : header+length]
		payload = payload[header+length:]

		if !typ.Known() {
			continue
		}
		v, err := decodeValue(typ, value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, typ, err)
		}
		rec = append(rec, TLV{Type: typ, Value: v})
	}
	return rec, nil
}

func decodeValue(typ Type, b []byte) (any, error) {
	switch typ {
	case TypeExtAddress:
		if err := wantLen(b, 8); err != nil {
			return nil, err
		}
		var a ExtAddress
		copy(a[:], b)
		return a, nil
	case TypeShortAddress:
		if err := wantLen(b, 2); err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint16(b), nil
	case TypeMode:
		if err := wantLen(b, 1); err != nil {
			return nil, err
		}
		return modeFromByte(b[0]), nil
	case TypeTimeout, TypeMaxChildTimeout:
		if err := wantLen(b, 4); err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint32(b), nil
	case TypeConnectivity:
		return decodeConnectivity(b)
	case TypeRoute64:
		return decodeRoute64(b)
	case TypeLeaderData:
		if err := wantLen(b, 8); err != nil {
			return nil, err
		}
		return LeaderData{
			PartitionID:       binary.BigEndian.Uint32(b[0:4]),
			Weighting:         b[4],
			DataVersion:       b[5],
			StableDataVersion: b[6],
			LeaderRouterID:    b[7],
		}, nil
	case TypeNetworkData:
		return HexBytes(append([]byte(nil), b...)), nil
	case TypeIPv6AddressList:
		if len(b)%16 != 0 {
			return nil, fmt.Errorf("length %d is not a multiple of 16", len(b))
		}
		addrs := make([]netip.Addr, 0, len(b)/16)
		for i := 0; i < len(b); i += 16 {
			addrs = append(addrs, netip.AddrFrom16([16]byte(b[i:i+16])))
		}
		return addrs, nil
	case TypeMACCounters:
		if err := wantLen(b, 36); err != nil {
			return nil, err
		}
		u := func(i int) uint32 { return binary.BigEndian.Uint32(b[i*4 : i*4+4]) }
		return MACCounters{
			IfInUnknownProtos:  u(0),
			IfInErrors:         u(1),
			IfOutErrors:        u(2),
			IfInUcastPkts:      u(3),
			IfInBroadcastPkts:  u(4),
			IfInDiscards:       u(5),
			IfOutUcastPkts:     u(6),
			IfOutBroadcastPkts: u(7),
			IfOutDiscards:      u(8),
		}, nil
	case TypeBatteryLevel:
		if err := wantLen(b, 1); err != nil {
			return nil, err
		}
		return b[0], nil
	case TypeSupplyVoltage:
		if err := wantLen(b, 2); err != nil {
			return nil, err
		}
		return binary.BigEndian.Uint16(b), nil
	case TypeChildTable:
		if len(b)%3 != 0 {
			return nil, fmt.Errorf("length %d is not a multiple of 3", len(b))
		}
		children := make([]ChildEntry, 0, len(b)/3)
		for i := 0; i < len(b); i += 3 {
			word := binary.BigEndian.Uint16(b[i : i+2])
			children = append(children, ChildEntry{
				Timeout:     uint8(word >> 11),
				LinkQuality: uint8(word>>9) & 0x03,
				ChildID:     word & 0x01ff,
				Mode:        modeFromByte(b[i+2]),
			})
		}
		return children, nil
	case TypeChannelPages:
		return ChannelPages(append([]byte(nil), b...)), nil
	}
	return nil, fmt.Errorf("no decoder")
}

func decodeConnectivity(b []byte) (Connectivity, error) {
	if len(b) != 7 && len(b) != 10 {
		return Connectivity{}, fmt.Errorf("want 7 or 10 bytes, got %d", len(b))
	}
	c := Connectivity{
		ParentPriority: int8(b[0]) >> 6,
		LinkQuality3:   b[1],
		LinkQuality2:   b[2],
		LinkQuality1:   b[3],
		LeaderCost:     b[4],
		IDSequence:     b[5],
		ActiveRouters:  b[6],
	}
	if len(b) == 10 {
		c.SEDBufferSize = binary.BigEndian.Uint16(b[7:9])
		c.SEDDatagramCount = b[9]
	}
	return c, nil
}

func decodeRoute64(b []byte) (Route64, error) {
	if len(b) < 9 {
		return Route64{}, fmt.Errorf("want at least 9 bytes, got %d", len(b))
	}
	mask := b[1:9]
	allocated := 0
	for _, m := range mask {
		allocated += bits.OnesCount8(m)
	}
	if len(b) != 9+allocated {
		return Route64{}, fmt.Errorf("mask allocates %d routers but %d route bytes follow", allocated, len(b)-9)
	}

	r := Route64{
		IDSequence: b[0],
		RouterMask: HexBytes(append([]byte(nil), mask...)),
		Routes:     make([]RouteData, 0, allocated),
	}
	data := b[9:]
	for id := 0; id < 64; id++ {
		if mask[id/8]&(0x80>>(id%8)) == 0 {
			continue
		}
		d := data[len(r.Routes)]
		r.Routes = append(r.Routes, RouteData{
			RouterID:       uint8(id),
			LinkQualityOut: d >> 6,
			LinkQualityIn:  (d >> 4) & 0x03,
			RouteCost:      d & 0x0f,
		})
	}
	return r, nil
}

func wantLen(b []byte, n int) error {
	if len(b) != n {
		return fmt.Errorf("want %d bytes, got %d", n, len(b))
	}
	return nil
}

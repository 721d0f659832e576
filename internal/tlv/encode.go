package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net/netip"
)

// ErrValueTooLong is returned for a value that does not fit the 2-byte
// extended length.
var ErrValueTooLong = errors.New("tlv value too long")

// Encode serializes a record to the diagnostic wire format. Each
// entry's Value must have the Go type Decode produces for its Type.
func Encode(rec Record) ([]byte, error) {
	var out []byte
	for _, entry := range rec {
		value, err := encodeValue(entry)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", entry.Type, err)
		}
		if len(value) > math.MaxUint16 {
			return nil, fmt.Errorf("encode %s: %w: %d bytes", entry.Type, ErrValueTooLong, len(value))
		}
		out = appendTLV(out, entry.Type, value)
	}
	return out, nil
}

func appendTLV(out []byte, typ Type, value []byte) []byte {
	if len(value) < extendedLength {
		out = append(out, byte(typ), byte(len(value)))
	} else {
		out = append(out, byte(typ), extendedLength)
		out = binary.BigEndian.AppendUint16(out, uint16(len(value)))
	}
	return append(out, value...)
}

func encodeValue(entry TLV) ([]byte, error) {
	switch v := entry.Value.(type) {
	case ExtAddress:
		return v[:], nil
	case uint16:
		return binary.BigEndian.AppendUint16(nil, v), nil
	case uint32:
		return binary.BigEndian.AppendUint32(nil, v), nil
	case uint8:
		return []byte{v}, nil
	case Mode:
		return []byte{v.byte()}, nil
	case Connectivity:
		b := []byte{
			byte(v.ParentPriority << 6),
			v.LinkQuality3,
			v.LinkQuality2,
			v.LinkQuality1,
			v.LeaderCost,
			v.IDSequence,
			v.ActiveRouters,
		}
		if v.SEDBufferSize != 0 || v.SEDDatagramCount != 0 {
			b = binary.BigEndian.AppendUint16(b, v.SEDBufferSize)
			b = append(b, v.SEDDatagramCount)
		}
		return b, nil
	case Route64:
		return encodeRoute64(v)
	case LeaderData:
		b := binary.BigEndian.AppendUint32(nil, v.PartitionID)
		return append(b, v.Weighting, v.DataVersion, v.StableDataVersion, v.LeaderRouterID), nil
	case HexBytes:
		return v, nil
	case []netip.Addr:
		b := make([]byte, 0, 16*len(v))
		for _, addr := range v {
			a16 := addr.As16()
			b = append(b, a16[:]...)
		}
		return b, nil
	case MACCounters:
		b := make([]byte, 0, 36)
		for _, c := range []uint32{
			v.IfInUnknownProtos, v.IfInErrors, v.IfOutErrors,
			v.IfInUcastPkts, v.IfInBroadcastPkts, v.IfInDiscards,
			v.IfOutUcastPkts, v.IfOutBroadcastPkts, v.IfOutDiscards,
		} {
			b = binary.BigEndian.AppendUint32(b, c)
		}
		return b, nil
	case []ChildEntry:
		b := make([]byte, 0, 3*len(v))
		for _, c := range v {
			word := uint16(c.Timeout&0x1f)<<11 | uint16(c.LinkQuality&0x03)<<9 | c.ChildID&0x01ff
			b = binary.BigEndian.AppendUint16(b, word)
			b = append(b, c.Mode.byte())
		}
		return b, nil
	case ChannelPages:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value %T", entry.Value)
}

func encodeRoute64(v Route64) ([]byte, error) {
	var mask [8]byte
	for _, r := range v.Routes {
		if r.RouterID >= 64 {
			return nil, fmt.Errorf("router id %d out of range", r.RouterID)
		}
		mask[r.RouterID/8] |= 0x80 >> (r.RouterID % 8)
	}
	b := append([]byte{v.IDSequence}, mask[:]...)
	// Route bytes follow in router id order regardless of slice order.
	byID := make(map[uint8]RouteData, len(v.Routes))
	for _, r := range v.Routes {
		byID[r.RouterID] = r
	}
	for id := 0; id < 64; id++ {
		r, ok := byID[uint8(id)]
		if !ok {
			continue
		}
		b = append(b, (r.LinkQualityOut&0x03)<<6|(r.LinkQualityIn&0x03)<<4|r.RouteCost&0x0f)
	}
	return b, nil
}

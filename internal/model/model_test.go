package model

import (
	"net/netip"
	"testing"
	"time"

	"meshdiag/internal/tlv"
)

func TestNodeFromRecord(t *testing.T) {
	t.Parallel()

	seen := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	rec := tlv.Record{
		{Type: tlv.TypeExtAddress, Value: tlv.ExtAddress{0x12, 0x34, 0x56, 0x78, 0x90, 0xab, 0xcd, 0xef}},
		{Type: tlv.TypeShortAddress, Value: uint16(0x1000)},
		{Type: tlv.TypeMode, Value: tlv.Mode{RxOnWhenIdle: true, DeviceType: true, NetworkData: true}},
		{Type: tlv.TypeIPv6AddressList, Value: []netip.Addr{netip.MustParseAddr("fd00::1")}},
		{Type: tlv.TypeBatteryLevel, Value: uint8(42)},
	}
	n := NodeFromRecord("0x1000", rec, seen)
	if n.ExtAddress != "1234567890abcdef" || n.Mode != "rdn" {
		t.Fatalf("node=%+v", n)
	}
	if len(n.Addresses) != 1 || n.Addresses[0] != "fd00::1" {
		t.Fatalf("addresses=%v", n.Addresses)
	}
	if n.Battery == nil || *n.Battery != 42 {
		t.Fatalf("battery=%v", n.Battery)
	}
	if n.Collections != 1 || !n.LastSeenAt.Equal(seen) {
		t.Fatalf("node=%+v", n)
	}
}

func TestRowsFromRecord(t *testing.T) {
	t.Parallel()

	at := time.Unix(10, 0).UTC()
	rows, err := RowsFromRecord(at, "0x2000", tlv.Record{
		{Type: tlv.TypeShortAddress, Value: uint16(0x2000)},
		{Type: tlv.TypeExtAddress, Value: tlv.ExtAddress{1, 2, 3, 4, 5, 6, 7, 8}},
	})
	if err != nil {
		t.Fatalf("RowsFromRecord: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows=%d", len(rows))
	}
	if rows[0].Value != "8192" || rows[0].TypeName != tlv.TypeShortAddress.String() {
		t.Fatalf("row0=%+v", rows[0])
	}
	if rows[1].Value != `"0102030405060708"` {
		t.Fatalf("row1=%+v", rows[1])
	}
}

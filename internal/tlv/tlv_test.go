package tlv

import (
	"encoding/json"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() Record {
	return Record{
		{Type: TypeExtAddress, Value: ExtAddress{0x12, 0x34, 0x56, 0x78, 0x9a, 0xbc, 0xde, 0xf0}},
		{Type: TypeShortAddress, Value: uint16(0x1234)},
		{Type: TypeMode, Value: Mode{RxOnWhenIdle: true, DeviceType: true, NetworkData: true}},
		{Type: TypeTimeout, Value: uint32(240)},
		{Type: TypeConnectivity, Value: Connectivity{ParentPriority: -1, LinkQuality3: 2, ActiveRouters: 3, SEDBufferSize: 1280, SEDDatagramCount: 1}},
		{Type: TypeRoute64, Value: Route64{IDSequence: 7, Routes: []RouteData{
			{RouterID: 4, LinkQualityOut: 3, LinkQualityIn: 3, RouteCost: 1},
			{RouterID: 13, LinkQualityOut: 2, LinkQualityIn: 1, RouteCost: 2},
		}}},
		{Type: TypeLeaderData, Value: LeaderData{PartitionID: 0xdeadbeef, Weighting: 64, DataVersion: 3, StableDataVersion: 2, LeaderRouterID: 4}},
		{Type: TypeNetworkData, Value: HexBytes{0x08, 0x04, 0x0b, 0x02}},
		{Type: TypeIPv6AddressList, Value: []netip.Addr{netip.MustParseAddr("fd00::ff:fe00:1234"), netip.MustParseAddr("fe80::1")}},
		{Type: TypeMACCounters, Value: MACCounters{IfInUcastPkts: 10, IfOutUcastPkts: 12}},
		{Type: TypeBatteryLevel, Value: uint8(87)},
		{Type: TypeSupplyVoltage, Value: uint16(3300)},
		{Type: TypeChildTable, Value: []ChildEntry{{Timeout: 9, LinkQuality: 3, ChildID: 1, Mode: Mode{DeviceType: false, RxOnWhenIdle: true}}}},
		{Type: TypeChannelPages, Value: ChannelPages{0}},
		{Type: TypeMaxChildTimeout, Value: uint32(3600)},
	}
}

func TestEncodeDecode_AllRequestedTypes(t *testing.T) {
	t.Parallel()

	payload, err := Encode(sampleRecord())
	require.NoError(t, err)

	rec, err := Decode(payload)
	require.NoError(t, err)
	require.Len(t, rec, len(Requested))

	for i, want := range Requested {
		assert.Equal(t, want, rec[i].Type, "order at %d", i)
	}

	route, ok := rec.Find(TypeRoute64)
	require.True(t, ok)
	r := route.Value.(Route64)
	require.Len(t, r.Routes, 2)
	assert.Equal(t, uint8(13), r.Routes[1].RouterID)
	assert.Equal(t, uint8(2), r.Routes[1].RouteCost)

	conn, _ := rec.Find(TypeConnectivity)
	assert.Equal(t, int8(-1), conn.Value.(Connectivity).ParentPriority)
	assert.Equal(t, uint16(1280), conn.Value.(Connectivity).SEDBufferSize)
}

func TestRecord_ShortAddress(t *testing.T) {
	t.Parallel()

	v, ok := sampleRecord().ShortAddress()
	require.True(t, ok)
	assert.Equal(t, uint16(0x1234), v)

	_, ok = Record{{Type: TypeBatteryLevel, Value: uint8(1)}}.ShortAddress()
	assert.False(t, ok)
}

func TestRecord_DuplicateShortAddressLastWins(t *testing.T) {
	t.Parallel()

	rec := Record{
		{Type: TypeShortAddress, Value: uint16(0x0400)},
		{Type: TypeBatteryLevel, Value: uint8(3)},
		{Type: TypeShortAddress, Value: uint16(0x0c01)},
	}
	v, ok := rec.ShortAddress()
	require.True(t, ok)
	assert.Equal(t, uint16(0x0c01), v)
	assert.Equal(t, "0x0c01", rec.Key())
	assert.Equal(t, SentinelKey, Record{}.Key())
}

func TestDecode_SkipsUnknownTypes(t *testing.T) {
	t.Parallel()

	payload := []byte{
		0x22, 0x02, 0xaa, 0xbb, // unknown type 34
		0x01, 0x02, 0x12, 0x34,
	}
	rec, err := Decode(payload)
	require.NoError(t, err)
	require.Len(t, rec, 1)
	assert.Equal(t, TypeShortAddress, rec[0].Type)
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"truncated header":    {0x01},
		"length overrun":      {0x01, 0x04, 0x12},
		"short address size":  {0x01, 0x03, 0x12, 0x34, 0x56},
		"ipv6 list size":      {0x08, 0x05, 1, 2, 3, 4, 5},
		"route64 mask count":  {0x05, 0x09, 0x01, 0x80, 0, 0, 0, 0, 0, 0, 0},
		"extended truncated":  {0x07, 0xff, 0x00},
		"connectivity length": {0x04, 0x02, 0x00, 0x00},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed), "err=%v", err)
		})
	}
}

func TestEncode_ExtendedLength(t *testing.T) {
	t.Parallel()

	big := make(HexBytes, 300)
	big[299] = 0x7f
	payload, err := Encode(Record{{Type: TypeNetworkData, Value: big}})
	require.NoError(t, err)
	assert.Equal(t, byte(extendedLength), payload[1])

	rec, err := Decode(payload)
	require.NoError(t, err)
	require.Len(t, rec, 1)
	assert.Len(t, rec[0].Value.(HexBytes), 300)
}

func TestEncode_RejectsValueOverExtendedLength(t *testing.T) {
	t.Parallel()

	_, err := Encode(Record{{Type: TypeNetworkData, Value: make(HexBytes, 65536)}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValueTooLong), "err=%v", err)

	payload, err := Encode(Record{{Type: TypeNetworkData, Value: make(HexBytes, 65535)}})
	require.NoError(t, err)
	assert.Len(t, payload, 4+65535)
}

func TestEncode_UnsupportedValue(t *testing.T) {
	t.Parallel()

	_, err := Encode(Record{{Type: TypeMode, Value: "rdn"}})
	require.Error(t, err)
}

func TestTLV_MarshalJSON(t *testing.T) {
	t.Parallel()

	rec := Record{
		{Type: TypeShortAddress, Value: uint16(0x1234)},
		{Type: TypeExtAddress, Value: ExtAddress{0, 1, 2, 3, 4, 5, 6, 7}},
		{Type: TypeChannelPages, Value: ChannelPages{0, 2}},
		{Type: TypeMode, Value: Mode{RxOnWhenIdle: true}},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"type":1,"value":4660},
		{"type":0,"value":"0001020304050607"},
		{"type":17,"value":[0,2]},
		{"type":2,"value":{"rxOnWhenIdle":true,"deviceType":false,"networkData":false}}
	]`, string(b))
}

func TestRecord_Filter(t *testing.T) {
	t.Parallel()

	got := sampleRecord().Filter([]uint8{1, 14})
	require.Len(t, got, 2)
	assert.Equal(t, TypeShortAddress, got[0].Type)
	assert.Equal(t, TypeBatteryLevel, got[1].Type)
}

func TestParseExtAddress(t *testing.T) {
	t.Parallel()

	a, err := ParseExtAddress("123456789abcdef0")
	require.NoError(t, err)
	assert.Equal(t, "123456789abcdef0", a.String())

	_, err = ParseExtAddress("1234")
	require.Error(t, err)
}

func TestMode_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rdn", Mode{RxOnWhenIdle: true, DeviceType: true, NetworkData: true}.String())
	assert.Equal(t, "-", Mode{}.String())
}

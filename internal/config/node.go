package config

import (
	"fmt"
	"net/netip"

	"meshdiag/internal/mesh"
	"meshdiag/internal/tlv"
)

// Record builds the diagnostic record a simulated node reports.
func (n NodeConfig) Record() (tlv.Record, error) {
	ext, err := tlv.ParseExtAddress(n.ExtAddress)
	if err != nil {
		return nil, fmt.Errorf("node.ext_address: %w", err)
	}
	addrs := make([]netip.Addr, 0, len(n.Addresses)+1)
	rloc, err := netip.ParseAddr(n.RLOC)
	if err != nil {
		return nil, fmt.Errorf("node.rloc: %w", err)
	}
	addrs = append(addrs, rloc)
	for _, s := range n.Addresses {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("node.addresses: %w", err)
		}
		addrs = append(addrs, a)
	}

	rec := tlv.Record{{Type: tlv.TypeExtAddress, Value: ext}}
	if !n.OmitShort {
		rec = append(rec, tlv.TLV{Type: tlv.TypeShortAddress, Value: n.ShortAddress})
	}
	rec = append(rec,
		tlv.TLV{Type: tlv.TypeMode, Value: n.Mode},
		tlv.TLV{Type: tlv.TypeTimeout, Value: n.Timeout},
		tlv.TLV{Type: tlv.TypeIPv6AddressList, Value: addrs},
		tlv.TLV{Type: tlv.TypeMACCounters, Value: tlv.MACCounters{}},
		tlv.TLV{Type: tlv.TypeBatteryLevel, Value: n.BatteryLevel},
		tlv.TLV{Type: tlv.TypeSupplyVoltage, Value: n.SupplyVoltage},
		tlv.TLV{Type: tlv.TypeChildTable, Value: []tlv.ChildEntry{}},
		tlv.TLV{Type: tlv.TypeChannelPages, Value: tlv.ChannelPages(append([]uint8{}, n.ChannelPages...))},
		tlv.TLV{Type: tlv.TypeMaxChildTimeout, Value: n.MaxChildTimeout},
	)
	return rec, nil
}

// NodeGroups parses the multicast groups a simulated node joined.
func (n NodeConfig) NodeGroups() ([]netip.Addr, error) {
	out := make([]netip.Addr, 0, len(n.Groups))
	for _, g := range n.Groups {
		a, err := netip.ParseAddr(g)
		if err != nil {
			return nil, fmt.Errorf("node.groups: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// MeshRoutes parses the configured routes.
func (m MeshConfig) MeshRoutes() ([]mesh.Route, error) {
	out := make([]mesh.Route, 0, len(m.Routes))
	for _, r := range m.Routes {
		addr, err := netip.ParseAddr(r.Address)
		if err != nil {
			return nil, fmt.Errorf("mesh.routes: %w", err)
		}
		route := mesh.Route{Address: addr}
		for _, ep := range r.Endpoints {
			ap, err := netip.ParseAddrPort(ep)
			if err != nil {
				return nil, fmt.Errorf("mesh.routes %s: %w", r.Address, err)
			}
			route.Endpoints = append(route.Endpoints, ap)
		}
		out = append(out, route)
	}
	return out, nil
}

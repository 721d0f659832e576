package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"meshdiag/internal/model"
)

func TestLoadRegistry_MissingFile_ReturnsEmpty(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "registry.yaml")
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if reg == nil {
		t.Fatalf("registry is nil")
	}
	if len(reg.Nodes) != 0 {
		t.Fatalf("nodes=%d", len(reg.Nodes))
	}
}

func TestSaveRegistry_RoundTrip(t *testing.T) {
	t.Parallel()

	tmp := t.TempDir()
	path := filepath.Join(tmp, "registry.yaml")

	battery := uint8(77)
	in := &Registry{Nodes: []NodeInfo{{Key: "0x1000", ExtAddress: "1234567890abcdef", Mode: "rdn", Battery: &battery}}}
	if err := SaveRegistry(path, in); err != nil {
		t.Fatalf("SaveRegistry: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode=%o", info.Mode().Perm())
	}

	out, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	if len(out.Nodes) != 1 {
		t.Fatalf("nodes=%d", len(out.Nodes))
	}
	if out.Nodes[0].Key != "0x1000" || out.Nodes[0].Mode != "rdn" {
		t.Fatalf("node=%+v", out.Nodes[0])
	}
	if out.Nodes[0].Battery == nil || *out.Nodes[0].Battery != 77 {
		t.Fatalf("battery=%v", out.Nodes[0].Battery)
	}
	if out.UpdatedAt.IsZero() {
		t.Fatalf("updated_at not set")
	}
}

func TestRegistry_Merge(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	reg := &Registry{}
	reg.Merge([]model.Node{
		{Key: "0x2000", Mode: "-", FirstSeenAt: t1, LastSeenAt: t1, Collections: 1},
		{Key: "0x1000", Mode: "rdn", FirstSeenAt: t1, LastSeenAt: t1, Collections: 1},
	})
	reg.Merge([]model.Node{{Key: "0x1000", Mode: "rd", FirstSeenAt: t2, LastSeenAt: t2, Collections: 1}})

	if len(reg.Nodes) != 2 || reg.Nodes[0].Key != "0x1000" {
		t.Fatalf("nodes=%+v", reg.Nodes)
	}
	n := reg.Nodes[0]
	if !n.FirstSeenAt.Equal(t1) || !n.LastSeenAt.Equal(t2) {
		t.Fatalf("seen=%v..%v", n.FirstSeenAt, n.LastSeenAt)
	}
	if n.Collections != 2 || n.Mode != "rd" {
		t.Fatalf("node=%+v", n)
	}
}

func TestRegistry_Prune(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := &Registry{Nodes: []NodeInfo{
		{Key: "0x0001", LastSeenAt: now.Add(-2 * time.Hour)},
		{Key: "0x0002", LastSeenAt: now},
	}}
	if n := reg.Prune(now.Add(-time.Hour)); n != 1 {
		t.Fatalf("removed=%d", n)
	}
	if len(reg.Nodes) != 1 || reg.Nodes[0].Key != "0x0002" {
		t.Fatalf("nodes=%+v", reg.Nodes)
	}
}

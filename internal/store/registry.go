package store

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"meshdiag/internal/model"
)

// Registry persists the mesh nodes seen in completed snapshots.
type Registry struct {
	UpdatedAt time.Time  `yaml:"updated_at"`
	Nodes     []NodeInfo `yaml:"nodes"`
}

// NodeInfo is the persisted form of model.Node.
type NodeInfo struct {
	Key         string    `yaml:"key" json:"key"`
	ExtAddress  string    `yaml:"ext_address,omitempty" json:"ext_address,omitempty"`
	Mode        string    `yaml:"mode,omitempty" json:"mode,omitempty"`
	Addresses   []string  `yaml:"addresses,omitempty" json:"addresses,omitempty"`
	Battery     *uint8    `yaml:"battery_level,omitempty" json:"battery_level,omitempty"`
	FirstSeenAt time.Time `yaml:"first_seen_at" json:"first_seen_at"`
	LastSeenAt  time.Time `yaml:"last_seen_at" json:"last_seen_at"`
	Collections int       `yaml:"collections" json:"collections"`
}

func infoFromNode(n model.Node) NodeInfo {
	return NodeInfo{
		Key:         n.Key,
		ExtAddress:  n.ExtAddress,
		Mode:        n.Mode,
		Addresses:   n.Addresses,
		Battery:     n.Battery,
		FirstSeenAt: n.FirstSeenAt,
		LastSeenAt:  n.LastSeenAt,
		Collections: n.Collections,
	}
}

// Merge records nodes seen in one snapshot. Known keys keep their
// first-seen time and count one more collection.
func (r *Registry) Merge(nodes []model.Node) {
	index := make(map[string]int, len(r.Nodes))
	for i, n := range r.Nodes {
		index[n.Key] = i
	}
	for _, n := range nodes {
		i, ok := index[n.Key]
		if !ok {
			index[n.Key] = len(r.Nodes)
			r.Nodes = append(r.Nodes, infoFromNode(n))
			continue
		}
		prev := r.Nodes[i]
		next := infoFromNode(n)
		next.FirstSeenAt = prev.FirstSeenAt
		next.Collections = prev.Collections + 1
		r.Nodes[i] = next
	}
	sort.Slice(r.Nodes, func(i, j int) bool { return r.Nodes[i].Key < r.Nodes[j].Key })
}

// Prune removes nodes not seen since cutoff and returns how many were
// removed.
func (r *Registry) Prune(cutoff time.Time) int {
	kept := r.Nodes[:0]
	removed := 0
	for _, n := range r.Nodes {
		if n.LastSeenAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, n)
	}
	r.Nodes = kept
	return removed
}

// LoadRegistry loads the registry from disk. If the file is missing, returns an empty registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{}, nil
		}
		return nil, err
	}

	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, err
	}

	return &reg, nil
}

// SaveRegistry writes the registry to disk.
func SaveRegistry(path string, reg *Registry) error {
	if reg == nil {
		return nil
	}
	reg.UpdatedAt = time.Now().UTC()
	data, err := yaml.Marshal(reg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

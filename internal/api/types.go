package api

import (
	"encoding/json"

	"meshdiag/internal/store"
	"meshdiag/internal/tlv"
)

// TLVEntry is one diagnostic TLV as served over HTTP. Value keeps the
// type-specific JSON.
type TLVEntry struct {
	Type  uint8           `json:"type"`
	Value json.RawMessage `json:"value"`
}

// NodeDiagnostics is the ordered TLV list reported by one node.
type NodeDiagnostics []TLVEntry

// Key returns the correlation key the server stored the node under.
func (n NodeDiagnostics) Key() string {
	key := tlv.SentinelKey
	for _, e := range n {
		if tlv.Type(e.Type) != tlv.TypeShortAddress {
			continue
		}
		var short uint16
		if err := json.Unmarshal(e.Value, &short); err == nil {
			key = tlv.FormatKey(short)
		}
	}
	return key
}

// Snapshot is the body of a completed collection: one element per
// node, ordered by key.
type Snapshot []NodeDiagnostics

// StartResponse acknowledges an issued collection.
type StartResponse struct {
	ID      string `json:"id"`
	Started bool   `json:"started"`
}

// PendingResponse is returned while a collection waits for its
// deadline.
type PendingResponse struct {
	ID       string `json:"id"`
	Started  bool   `json:"started"`
	Complete bool   `json:"complete"`
}

// ErrorResponse carries a request failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NodesResponse lists the node registry.
type NodesResponse struct {
	UpdatedAt string           `json:"updated_at,omitempty"`
	Nodes     []store.NodeInfo `json:"nodes"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Pending int    `json:"pending"`
	Entries int    `json:"entries"`
}

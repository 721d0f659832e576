package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"meshdiag/internal/tlv"
)

func TestClient_ErrorIncludesBody(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"no route"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL)
	_, err := c.StartCollection(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	got := err.Error()
	if got == "" || got[len(got)-1] == '\n' {
		t.Fatalf("unexpected error string: %q", got)
	}
	if want := "500"; !strings.Contains(got, want) {
		t.Fatalf("error missing status: %q", got)
	}
	if want := `"error":"no route"`; !strings.Contains(got, want) {
		t.Fatalf("error missing body: %q", got)
	}
}

func TestClient_CollectPollsUntilComplete(t *testing.T) {
	t.Parallel()

	var polls atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/diagnostics/collections":
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(StartResponse{ID: "abc", Started: true})
		case r.Method == http.MethodGet && r.URL.Path == "/diagnostics/collections/abc":
			if polls.Add(1) < 3 {
				w.WriteHeader(http.StatusAccepted)
				_ = json.NewEncoder(w).Encode(PendingResponse{ID: "abc", Started: true})
				return
			}
			_, _ = w.Write([]byte(`[[{"type":0,"value":"1234567890abcdef"},{"type":1,"value":4096}],[{"type":14,"value":80}]]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := NewClient(s.URL+"/").Collect(ctx, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if polls.Load() != 3 {
		t.Fatalf("polls=%d", polls.Load())
	}
	if len(snap) != 2 {
		t.Fatalf("nodes=%d", len(snap))
	}
	if k := snap[0].Key(); k != "0x1000" {
		t.Fatalf("key=%q", k)
	}
	if k := snap[1].Key(); k != tlv.SentinelKey {
		t.Fatalf("key=%q", k)
	}
	if string(snap[1][0].Value) != "80" {
		t.Fatalf("value=%s", snap[1][0].Value)
	}
}

func TestClient_PollUnknownCollection(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"unknown diagnostic collection"}`))
	}))
	defer s.Close()

	_, _, err := NewClient(s.URL).PollCollection(context.Background(), "gone")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v", err)
	}
}

func TestNodeDiagnosticsKey_MatchesRecordKey(t *testing.T) {
	t.Parallel()

	cases := map[string]tlv.Record{
		"single": {{Type: tlv.TypeShortAddress, Value: uint16(0x0400)}},
		"duplicate": {
			{Type: tlv.TypeShortAddress, Value: uint16(0x0400)},
			{Type: tlv.TypeBatteryLevel, Value: uint8(3)},
			{Type: tlv.TypeShortAddress, Value: uint16(0x0c01)},
		},
		"none": {{Type: tlv.TypeBatteryLevel, Value: uint8(3)}},
	}
	for name, rec := range cases {
		data, err := json.Marshal(rec)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		var node NodeDiagnostics
		if err := json.Unmarshal(data, &node); err != nil {
			t.Fatalf("%s: unmarshal: %v", name, err)
		}
		if got, want := node.Key(), rec.Key(); got != want {
			t.Fatalf("%s: key=%q want %q", name, got, want)
		}
	}
}

package metrics

import (
	"testing"
	"time"

	"meshdiag/internal/model"
)

func TestSummarize_Basic(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	c1 := now.Add(-10 * time.Second)
	c2 := now.Add(-5 * time.Second)
	rows := []model.DiagnosticRow{
		{CollectedAt: now.Add(-time.Hour), Key: "0x3000", Type: 14, Value: "1"},
		{CollectedAt: c1, Key: "0x1000", Type: 14, Value: "90"},
		{CollectedAt: c1, Key: "0x2000", Type: 14, Value: "40"},
		{CollectedAt: c1, Key: "0x2000", Type: 15, Value: "3000"},
		{CollectedAt: c2, Key: "0x1000", Type: 14, Value: "80"},
		{CollectedAt: c2, Key: "0xffee", Type: 2, Value: `{"rxOnWhenIdle":true}`},
	}
	s := Summarize(rows, now.Add(-time.Minute))
	if s.Rows != 5 || s.Collections != 2 || s.Nodes != 3 {
		t.Fatalf("summary=%+v", s)
	}
	if s.BatteryNodes != 2 || s.AvgBattery != 60 {
		t.Fatalf("battery nodes=%d avg=%.2f", s.BatteryNodes, s.AvgBattery)
	}
	if s.MinBattery != 40 || s.MaxBattery != 80 || s.P5Battery != 40 {
		t.Fatalf("min/max/p5=%.2f/%.2f/%.2f", s.MinBattery, s.MaxBattery, s.P5Battery)
	}
	if s.AvgSupplyMV != 3000 {
		t.Fatalf("voltage=%.2f", s.AvgSupplyMV)
	}
	if s.SentinelCount != 1 {
		t.Fatalf("sentinel=%d", s.SentinelCount)
	}
	if !s.From.Equal(c1) || !s.To.Equal(c2) {
		t.Fatalf("window=%v..%v", s.From, s.To)
	}
}

func TestSummarize_Empty(t *testing.T) {
	t.Parallel()

	if s := Summarize(nil, time.Now()); s.Rows != 0 || s.Nodes != 0 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestPercentile_Edges(t *testing.T) {
	t.Parallel()

	values := []float64{1, 2, 3, 4}
	if got := percentile(values, 0); got != 1 {
		t.Fatalf("p0=%v", got)
	}
	if got := percentile(values, 1); got != 4 {
		t.Fatalf("p100=%v", got)
	}
}

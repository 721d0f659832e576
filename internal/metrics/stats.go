package metrics

import (
	"math"
	"sort"
	"strconv"
	"time"

	"meshdiag/internal/diag"
	"meshdiag/internal/model"
	"meshdiag/internal/tlv"
)

// Summary is a basic statistics snapshot over diagnostic history.
type Summary struct {
	Rows          int
	Collections   int
	Nodes         int
	From          time.Time
	To            time.Time
	AvgBattery    float64
	P5Battery     float64
	MinBattery    float64
	MaxBattery    float64
	BatteryNodes  int
	AvgSupplyMV   float64
	SentinelCount int
}

// Summarize computes summary statistics for rows in a time window.
// Battery and voltage figures use the latest value of each node.
func Summarize(rows []model.DiagnosticRow, since time.Time) Summary {
	filtered := make([]model.DiagnosticRow, 0, len(rows))
	for _, r := range rows {
		if r.CollectedAt.After(since) || r.CollectedAt.Equal(since) {
			filtered = append(filtered, r)
		}
	}

	if len(filtered) == 0 {
		return Summary{Rows: 0}
	}

	collections := map[time.Time]bool{}
	nodes := map[string]bool{}
	battery := map[string]latest{}
	voltage := map[string]latest{}
	sentinel := map[time.Time]bool{}
	from := filtered[0].CollectedAt
	to := filtered[0].CollectedAt

	for _, r := range filtered {
		collections[r.CollectedAt] = true
		nodes[r.Key] = true
		if r.Key == diag.SentinelKey {
			sentinel[r.CollectedAt] = true
		}
		if r.CollectedAt.Before(from) {
			from = r.CollectedAt
		}
		if r.CollectedAt.After(to) {
			to = r.CollectedAt
		}
		v, err := strconv.ParseFloat(r.Value, 64)
		if err != nil {
			continue
		}
		switch tlv.Type(r.Type) {
		case tlv.TypeBatteryLevel:
			battery[r.Key] = battery[r.Key].update(r.CollectedAt, v)
		case tlv.TypeSupplyVoltage:
			voltage[r.Key] = voltage[r.Key].update(r.CollectedAt, v)
		}
	}

	s := Summary{
		Rows:          len(filtered),
		Collections:   len(collections),
		Nodes:         len(nodes),
		From:          from,
		To:            to,
		SentinelCount: len(sentinel),
	}

	if len(battery) > 0 {
		values := make([]float64, 0, len(battery))
		var sum float64
		minB := math.MaxFloat64
		maxB := 0.0
		for _, l := range battery {
			values = append(values, l.value)
			sum += l.value
			minB = math.Min(minB, l.value)
			maxB = math.Max(maxB, l.value)
		}
		sort.Float64s(values)
		s.BatteryNodes = len(values)
		s.AvgBattery = sum / float64(len(values))
		s.P5Battery = percentile(values, 0.05)
		s.MinBattery = minB
		s.MaxBattery = maxB
	}
	if len(voltage) > 0 {
		var sum float64
		for _, l := range voltage {
			sum += l.value
		}
		s.AvgSupplyMV = sum / float64(len(voltage))
	}
	return s
}

type latest struct {
	at    time.Time
	value float64
}

func (l latest) update(at time.Time, v float64) latest {
	if at.Before(l.at) {
		return l
	}
	return latest{at: at, value: v}
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if p <= 0 {
		return values[0]
	}
	if p >= 1 {
		return values[len(values)-1]
	}
	idx := int(math.Ceil(p*float64(len(values)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(values) {
		idx = len(values) - 1
	}
	return values[idx]
}

package metrics

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"meshdiag/internal/model"
)

// ReadCSV loads diagnostic rows from a CSV file.
func ReadCSV(path string) ([]model.DiagnosticRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return readCSV(file)
}

func readCSV(r io.Reader) ([]model.DiagnosticRow, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	start := 0
	if len(records[0]) > 0 && records[0][0] == header[0] {
		start = 1
	}

	rows := make([]model.DiagnosticRow, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		rec := records[i]
		if len(rec) < len(header) {
			return nil, fmt.Errorf("invalid record at line %d", i+1)
		}
		ts, err := time.Parse(time.RFC3339Nano, rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", i+1, err)
		}
		typ, err := strconv.ParseUint(rec[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid type at line %d: %w", i+1, err)
		}
		rows = append(rows, model.DiagnosticRow{
			CollectedAt: ts,
			Key:         rec[1],
			Type:        uint8(typ),
			TypeName:    rec[3],
			Value:       rec[4],
		})
	}

	return rows, nil
}

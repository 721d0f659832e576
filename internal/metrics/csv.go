package metrics

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"meshdiag/internal/model"
)

var header = []string{
	"collected_at",
	"key",
	"type",
	"type_name",
	"value",
}

// WriteCSV writes diagnostic rows to CSV with a fixed column order.
func WriteCSV(w io.Writer, rows []model.DiagnosticRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return err
	}
	return writeRows(writer, rows)
}

// AppendCSV appends rows to the file at path, writing the header only
// when the file is new or empty.
func AppendCSV(path string, rows []model.DiagnosticRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	if info.Size() == 0 {
		if err := writer.Write(header); err != nil {
			return err
		}
	}
	return writeRows(writer, rows)
}

func writeRows(writer *csv.Writer, rows []model.DiagnosticRow) error {
	for _, r := range rows {
		record := []string{
			r.CollectedAt.UTC().Format(time.RFC3339Nano),
			r.Key,
			strconv.Itoa(int(r.Type)),
			r.TypeName,
			r.Value,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

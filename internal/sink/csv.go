package sink

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"

	"go.uber.org/zap"
)

// ErrNoMeasurement is returned when the raw reading carries no
// glucoseMeasurement sub-record to append.
var ErrNoMeasurement = errors.New("sink: reading has no glucoseMeasurement sub-record")

// CSVAppender appends the raw glucoseMeasurement sub-record of each reading to
// a local CSV file. The header row is written only when the file does not yet
// exist. Unlike the InfluxDB writer's fixed field set, the column set here is
// whatever keys the sub-record carries (sorted for a stable order); the file
// follows the wire, not the normalizer.
type CSVAppender struct {
	path   string
	logger *zap.Logger
}

// NewCSVAppender targets the given file path.
func NewCSVAppender(path string, logger *zap.Logger) *CSVAppender {
	return &CSVAppender{path: path, logger: logger}
}

// Append writes one row for the reading's glucoseMeasurement sub-record,
// creating the file with a header row on first use.
func (a *CSVAppender) Append(rawReading json.RawMessage) error {
	var envelope struct {
		GlucoseMeasurement map[string]any `json:"glucoseMeasurement"`
	}
	if err := json.Unmarshal(rawReading, &envelope); err != nil {
		return fmt.Errorf("sink: decoding reading for CSV: %w", err)
	}
	if len(envelope.GlucoseMeasurement) == 0 {
		return ErrNoMeasurement
	}

	columns := make([]string, 0, len(envelope.GlucoseMeasurement))
	for name := range envelope.GlucoseMeasurement {
		columns = append(columns, name)
	}
	sort.Strings(columns)

	_, statErr := os.Stat(a.path)
	exists := statErr == nil

	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("sink: opening %s: %w", a.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(columns); err != nil {
			return fmt.Errorf("sink: writing CSV header: %w", err)
		}
	}

	row := make([]string, len(columns))
	for i, name := range columns {
		row[i] = formatCell(envelope.GlucoseMeasurement[name])
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("sink: writing CSV row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("sink: flushing CSV: %w", err)
	}

	a.logger.Info("appended reading to CSV", zap.String("path", a.path))
	return nil
}

// formatCell renders a decoded JSON value for CSV. Numbers decode as float64;
// integral values are printed without a fractional part.
func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

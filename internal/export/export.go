// Package export pulls historical glucose data back out of InfluxDB in bulk
// and writes it to CSV, JSON or XLSX. It is read-only with respect to the
// bucket.
package export

import (
	"context"
	"fmt"
	"sort"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/sink"
)

// Record is one exported field sample.
type Record struct {
	Time         time.Time `json:"time"`
	Field        string    `json:"field"`
	Value        float64   `json:"value"`
	PatientID    string    `json:"patientId,omitempty"`
	SensorSerial string    `json:"sensor_serial_number,omitempty"`
}

// Exporter queries the glucose measurement out of an InfluxDB bucket.
type Exporter struct {
	client influxdb2.Client
	query  api.QueryAPI
	bucket string
	logger *zap.Logger
}

// NewExporter connects to the given InfluxDB instance.
func NewExporter(url, token, org, bucket string, logger *zap.Logger) *Exporter {
	client := influxdb2.NewClient(url, token)
	return &Exporter{
		client: client,
		query:  client.QueryAPI(org),
		bucket: bucket,
		logger: logger,
	}
}

// Extract queries all samples of the glucose measurement within the lookback
// window, last-sampled per minute, sorted by time ascending.
func (e *Exporter) Extract(ctx context.Context, lookback time.Duration) ([]Record, error) {
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%s)
  |> filter(fn: (r) => r["_measurement"] == %q)
  |> aggregateWindow(every: 1m, fn: last, createEmpty: false)`,
		e.bucket, lookback.String(), sink.Measurement)

	e.logger.Debug("running export query", zap.String("flux", flux))

	result, err := e.query.Query(ctx, flux)
	if err != nil {
		return nil, fmt.Errorf("export: query: %w", err)
	}

	var records []Record
	for result.Next() {
		row := result.Record()
		records = append(records, Record{
			Time:         row.Time(),
			Field:        row.Field(),
			Value:        toFloat(row.Value()),
			PatientID:    toString(row.ValueByKey("patientId")),
			SensorSerial: toString(row.ValueByKey("sensor_serial_number")),
		})
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("export: reading query result: %w", err)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Time.Before(records[j].Time) })

	e.logger.Info("extracted records",
		zap.Int("count", len(records)),
		zap.Duration("lookback", lookback),
	)
	return records, nil
}

// Close releases the underlying HTTP resources.
func (e *Exporter) Close() {
	e.client.Close()
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int64:
		return float64(val)
	default:
		return 0
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

package sink

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/glucose"
)

// Measurement is the shared measurement name all glucose fields are written
// under. The bulk exporter queries the same name.
const Measurement = "libreview_data"

// InfluxWriter writes one multi-field point per reading to an InfluxDB 2.x
// bucket using the blocking write API. It performs no retries or pooling of
// its own; a failed write fails the run.
type InfluxWriter struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
	logger *zap.Logger
}

// NewInfluxWriter connects to the given InfluxDB instance.
func NewInfluxWriter(url, token, org, bucket string, logger *zap.Logger) *InfluxWriter {
	client := influxdb2.NewClient(url, token)
	return &InfluxWriter{
		client: client,
		write:  client.WriteAPIBlocking(org, bucket),
		logger: logger,
	}
}

// WritePoint persists one normalized point, all fields under Measurement with
// both identifying tags attached.
func (w *InfluxWriter) WritePoint(ctx context.Context, p glucose.Point) error {
	fields := make(map[string]any, len(p.Fields))
	for name, value := range p.Fields {
		fields[name] = value
	}

	pt := influxdb2.NewPoint(Measurement, p.Tags, fields, time.Now().UTC())
	if err := w.write.WritePoint(ctx, pt); err != nil {
		return fmt.Errorf("sink: influx write: %w", err)
	}

	w.logger.Info("wrote point to InfluxDB",
		zap.String("measurement", Measurement),
		zap.Int("field_count", len(fields)),
	)
	return nil
}

// Close releases the underlying HTTP resources.
func (w *InfluxWriter) Close() {
	w.client.Close()
}

// Package collector orchestrates one collection run: authenticate (lazily),
// fetch the latest reading, normalize it, and hand it to the configured sinks.
package collector

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/glucose"
	"github.com/glucowallet/glucowallet/internal/libreview"
	"github.com/glucowallet/glucowallet/internal/sink"
)

// Collector wires the vendor client to the sinks. points may be nil when the
// time-series sink is not configured; the CSV appender is always present, it
// is the minimal deployment's persistence guarantee.
type Collector struct {
	client *libreview.Client
	points sink.PointWriter
	csv    *sink.CSVAppender
	logger *zap.Logger
}

// New creates a Collector. Pass points as nil to skip the time-series sink.
func New(client *libreview.Client, points sink.PointWriter, csv *sink.CSVAppender, logger *zap.Logger) *Collector {
	return &Collector{
		client: client,
		points: points,
		csv:    csv,
		logger: logger,
	}
}

// Run performs one collection run, strictly sequential: fetch → normalize →
// write. Any failure aborts the run; there is no retry, the next scheduled
// invocation is the recovery mechanism.
func (c *Collector) Run(ctx context.Context) error {
	log := c.logger.With(zap.String("run_id", uuid.NewString()))

	raw, err := c.client.LatestReading(ctx)
	if err != nil {
		return fmt.Errorf("fetching latest reading: %w", err)
	}

	reading, err := glucose.ParseReading(raw)
	if err != nil {
		return err
	}

	point, err := glucose.Normalize(reading)
	if err != nil {
		return err
	}

	log = log.With(
		zap.String("patient_id", point.Tags[glucose.TagPatientID]),
		zap.String("sensor_serial", point.Tags[glucose.TagSensorSerial]),
	)
	log.Info("normalized reading", zap.Float64("glucose_measurement", point.Fields["glucose_measurement"]))

	if c.points != nil {
		if err := c.points.WritePoint(ctx, point); err != nil {
			return err
		}
	} else {
		log.Info("time-series sink not configured, skipping")
	}

	if err := c.csv.Append(raw); err != nil {
		return err
	}

	log.Info("collection run complete")
	return nil
}

// glucowallet-export extracts raw glucose history from the InfluxDB bucket
// and writes it to CSV, JSON or XLSX for offline analysis.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/config"
	"github.com/glucowallet/glucowallet/internal/export"
	"github.com/glucowallet/glucowallet/internal/logger"
)

const queryTimeout = 2 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/glucowallet/config.yaml)")
	lookback := flag.Duration("lookback", 21*24*time.Hour, "how far back to export")
	format := flag.String("format", "csv", "output format: csv, json or xlsx")
	out := flag.String("out", "", "output file (default influxdb_export.<format>)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.Influx == nil {
		log.Fatal("export requires an influxdb configuration block")
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	path := *out
	if path == "" {
		path = "influxdb_export." + *format
	}

	exporter := export.NewExporter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, zl)
	defer exporter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	records, err := exporter.Extract(ctx, *lookback)
	if err != nil {
		zl.Error("extract failed", zap.Error(err))
		zl.Sync()
		os.Exit(1)
	}
	if len(records) == 0 {
		zl.Info("no data found in the bucket for the requested range")
		return
	}

	switch *format {
	case "csv":
		err = export.WriteCSV(path, records)
	case "json":
		err = export.WriteJSON(path, records)
	case "xlsx":
		err = export.WriteXLSX(path, records)
	default:
		err = fmt.Errorf("unknown format %q", *format)
	}
	if err != nil {
		zl.Error("export failed", zap.Error(err))
		zl.Sync()
		os.Exit(1)
	}

	zl.Info("export complete",
		zap.String("file", path),
		zap.Int("records", len(records)),
		zap.Time("from", records[0].Time),
		zap.Time("to", records[len(records)-1].Time),
	)
}

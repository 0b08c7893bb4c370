// glucowallet fetches the latest LibreLinkUp glucose reading and forwards it
// to InfluxDB (when configured) and an append-only CSV file. The default
// invocation performs one run and exits, which suits cron; -watch keeps the
// process alive and collects on an in-process schedule instead.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/glucowallet/glucowallet/internal/collector"
	"github.com/glucowallet/glucowallet/internal/config"
	"github.com/glucowallet/glucowallet/internal/libreview"
	"github.com/glucowallet/glucowallet/internal/logger"
	"github.com/glucowallet/glucowallet/internal/scheduler"
	"github.com/glucowallet/glucowallet/internal/sink"
)

const runTimeout = 60 * time.Second

func main() {
	configPath := flag.String("config", "", "path to config file (default ~/.config/glucowallet/config.yaml)")
	csvPath := flag.String("csv", "", "override the CSV output path")
	watch := flag.Duration("watch", 0, "run continuously, collecting at this interval (0 = run once)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *csvPath != "" {
		cfg.CSVPath = *csvPath
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer zl.Sync()

	client := libreview.NewClient(cfg.LibreView.Host, cfg.LibreView.Username, cfg.LibreView.Password, zl)

	var points sink.PointWriter
	if cfg.Influx != nil {
		influx := sink.NewInfluxWriter(cfg.Influx.URL, cfg.Influx.Token, cfg.Influx.Org, cfg.Influx.Bucket, zl)
		defer influx.Close()
		points = influx
	} else {
		zl.Info("no influxdb configuration, time-series sink disabled")
	}

	csv := sink.NewCSVAppender(cfg.CSVPath, zl)
	coll := collector.New(client, points, csv, zl)

	if *watch > 0 {
		runWatch(coll, *watch, zl)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := coll.Run(ctx); err != nil {
		zl.Error("collection run failed", zap.Error(err))
		zl.Sync()
		os.Exit(1)
	}
}

func runWatch(coll *collector.Collector, interval time.Duration, zl *zap.Logger) {
	sched := scheduler.New(coll, interval, zl)
	if err := sched.Start(); err != nil {
		zl.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	zl.Info("shutting down")
}

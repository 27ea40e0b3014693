package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aevon-lab/aevon-metrics/internal/core/aggregation"
	corecfg "github.com/aevon-lab/aevon-metrics/internal/core/config"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage/memory"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage/postgres"
	"github.com/aevon-lab/aevon-metrics/internal/core/storage/timestream"
	"github.com/aevon-lab/aevon-metrics/internal/export"
	"github.com/aevon-lab/aevon-metrics/internal/mailer"
	"github.com/aevon-lab/aevon-metrics/internal/metric"
	"github.com/aevon-lab/aevon-metrics/internal/migrations"
	"github.com/aevon-lab/aevon-metrics/internal/objectstore"
	"github.com/aevon-lab/aevon-metrics/internal/queue"
	"github.com/aevon-lab/aevon-metrics/internal/reference"
	"github.com/aevon-lab/aevon-metrics/internal/server"
)

func main() {
	configPath := flag.String("config", "aevon.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded config",
		"timeseries_backend", cfg.TimeSeries.Backend,
		"aggregation_backend", cfg.Aggregation.Backend,
		"mailer_driver", cfg.Mailer.Driver,
		"queue_enabled", cfg.Queue.Enabled,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 2. Initialize Storage (PostgreSQL mirror)
	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// 2.1. Run Database Migrations
	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	mirror, err := postgres.NewMirrorAdapter(db)
	if err != nil {
		slog.Error("Failed to initialize mirror", "error", err)
		os.Exit(1)
	}
	defer mirror.Close()

	// 2.2. Time-series store
	var timeseries storage.MetricStore
	switch cfg.TimeSeries.Backend {
	case "timestream":
		timeseries, err = timestream.NewAdapter(timestream.Config{
			Region:   cfg.TimeSeries.Region,
			Endpoint: cfg.TimeSeries.Endpoint,
			Database: cfg.TimeSeries.Database,
			Table:    cfg.TimeSeries.Table,
			MaxRows:  cfg.TimeSeries.MaxRows,
		})
		if err != nil {
			slog.Error("Failed to initialize Timestream", "error", err)
			os.Exit(1)
		}
	default:
		slog.Warn("Using in-memory time-series store; data is lost on restart")
		timeseries = memory.New(false)
	}

	// 3. Reference data and aggregation
	resolver := reference.NewResolver(reference.NewPostgresRepository(db), cfg.Reference.CacheCapacity)

	var aggEngine *aggregation.Engine
	if cfg.Aggregation.Backend == "timeseries" {
		aggEngine = aggregation.NewEngine(timeseries, false)
	} else {
		aggEngine = aggregation.NewEngine(mirror, true)
	}

	// 4. Metric coordinator
	metricSvc := metric.NewService(timeseries, mirror, resolver, aggEngine, reg, cfg.Server.MaxBodySizeMB)

	// 5. Export collaborators
	uploader, err := objectstore.NewS3Store(objectstore.Config{
		Bucket:      cfg.Export.Bucket,
		Prefix:      cfg.Export.Prefix,
		Region:      cfg.Export.Region,
		Endpoint:    cfg.Export.Endpoint,
		PartSizeMB:  cfg.Export.PartSizeMB,
		Concurrency: cfg.Export.UploadConcurrency,
	})
	if err != nil {
		slog.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	var notifier export.Mailer = mailer.LogMailer{}
	if cfg.Mailer.Driver == "smtp" {
		notifier = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mailer.Host,
			Port:     cfg.Mailer.Port,
			Username: cfg.Mailer.Username,
			Password: cfg.Mailer.Password,
			From:     cfg.Export.FromEmail,
		})
	}

	labels, err := export.LoadLabels(cfg.Export.LabelsPath)
	if err != nil {
		slog.Error("Failed to load export labels", "error", err)
		os.Exit(1)
	}

	exportEngine := export.NewEngine(mirror, metricSvc, uploader, notifier, nil, reg, export.Options{
		PageSize:      cfg.Export.PageSize,
		LinkTTL:       cfg.Export.LinkTTLDuration(),
		DefaultLocale: cfg.Export.DefaultLocale,
		FromEmail:     cfg.Export.FromEmail,
		Labels:        labels,
	})
	worker := export.NewWorker(exportEngine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 6. Queue (or in-process jobs when disabled)
	var wg sync.WaitGroup
	var publisher export.Publisher
	if cfg.Queue.Enabled {
		producer, err := queue.NewProducer(cfg.Queue.Brokers, cfg.Queue.ExportTopic)
		if err != nil {
			slog.Error("Failed to initialize export producer", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		publisher = producer

		jobs, err := queue.NewConsumer(cfg.Queue.Brokers, cfg.Queue.Group, cfg.Queue.ExportTopic)
		if err != nil {
			slog.Error("Failed to initialize export consumer", "error", err)
			os.Exit(1)
		}
		defer jobs.Close()

		// Every instance caches reference data, so every instance needs
		// every deletion event: one consumer group per process.
		refGroup := fmt.Sprintf("%s-reference-%s", cfg.Queue.Group, uuid.NewString())
		deletions, err := queue.NewConsumer(cfg.Queue.Brokers, refGroup, cfg.Queue.ReferenceTopic)
		if err != nil {
			slog.Error("Failed to initialize reference consumer", "error", err)
			os.Exit(1)
		}
		defer deletions.Close()

		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := jobs.Run(ctx, worker.Handle); err != nil {
				slog.Error("Export consumer stopped with error", "error", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := deletions.Run(ctx, resolver.HandleDeletion); err != nil {
				slog.Error("Reference consumer stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Queue disabled by config; exports run in-process")
		publisher = export.NewLocalPublisher(ctx, worker)
	}

	// 7. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), db, cfg.Server.Mode, reg)
	metricSvc.RegisterRoutes(srv.Engine)
	export.NewHandler(exportEngine, publisher).RegisterRoutes(srv.Engine)

	// Signal handler → triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}
	cancel()
	wg.Wait()

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

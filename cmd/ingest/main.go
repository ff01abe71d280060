// Command ingest runs the hydrological telemetry ingestion daemon: it
// fetches ARPAE observation snapshots on a fixed interval and persists them
// into PostgreSQL until an interrupt requests shutdown.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/fiumesicuro/hydro-ingest/internal/adapter/arpae"
	httpadapter "github.com/fiumesicuro/hydro-ingest/internal/adapter/http"
	kafkaadapter "github.com/fiumesicuro/hydro-ingest/internal/adapter/kafka"
	"github.com/fiumesicuro/hydro-ingest/internal/adapter/postgres"
	"github.com/fiumesicuro/hydro-ingest/internal/config"
	"github.com/fiumesicuro/hydro-ingest/internal/observability"
	"github.com/fiumesicuro/hydro-ingest/internal/pipeline"
	"github.com/fiumesicuro/hydro-ingest/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DSN())
	if err != nil {
		logger.Error("database connection failed", "host", cfg.DBHost, "database", cfg.DBName, "error", err)
		os.Exit(1)
	}
	logger.Info("database connected", "host", cfg.DBHost, "database", cfg.DBName)

	client := arpae.NewClient(cfg.BaseURL, cfg.VariableFilter, cfg.MaxResults, cfg.FetchTimeout, logger)

	// Measurement publication is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.EventPublisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, clockwork.NewRealClock(), logger)
		publisher = kafkaPublisher
		logger.Info("measurement publication enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("measurement publication disabled")
	}

	coordinator := pipeline.New(client, store, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, coordinator, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", "error", err)
		}
	}()

	runner := scheduler.New(coordinator, cfg.IngestInterval, cfg.ObservationDate, clockwork.NewRealClock(), logger, metrics)

	// Blocks until the interrupt arrives; the cycle in progress finishes
	// before Run returns.
	if err := runner.Run(ctx); err != nil {
		logger.Error("scheduler error", "error", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	store.Close()
	logger.Info("database connection closed")
	logger.Info("shutdown complete")
}

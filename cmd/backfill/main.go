// Command backfill re-ingests ARPAE snapshots for one observation date or
// an inclusive date range. Re-ingestion is the recovery path after a partial
// failure: every write is a natural-key upsert, so replaying a date is safe.
//
// Usage:
//
//	go run ./cmd/backfill -date 20241030
//	go run ./cmd/backfill -from 20241001 -to 20241031
//
// Database and API settings come from the environment, as for cmd/ingest.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fiumesicuro/hydro-ingest/internal/adapter/arpae"
	"github.com/fiumesicuro/hydro-ingest/internal/adapter/postgres"
	"github.com/fiumesicuro/hydro-ingest/internal/config"
	"github.com/fiumesicuro/hydro-ingest/internal/domain"
	"github.com/fiumesicuro/hydro-ingest/internal/observability"
	"github.com/fiumesicuro/hydro-ingest/internal/pipeline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("backfill failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	date := flag.String("date", "", "single observation date (YYYYMMDD)")
	from := flag.String("from", "", "range start date, inclusive (YYYYMMDD)")
	to := flag.String("to", "", "range end date, inclusive (YYYYMMDD)")
	flag.Parse()

	dates, err := resolveDates(*date, *from, *to)
	if err != nil {
		flag.Usage()
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx := context.Background()
	store, err := postgres.New(ctx, cfg.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.Close()

	client := arpae.NewClient(cfg.BaseURL, cfg.VariableFilter, cfg.MaxResults, cfg.FetchTimeout, logger)
	coordinator := pipeline.New(client, store, nil, logger, metrics)

	for _, dateKey := range dates {
		report, err := coordinator.RunCycle(ctx, dateKey)
		if err != nil {
			return fmt.Errorf("date %s: %w", dateKey, err)
		}
		if report.Skipped > 0 {
			logger.Warn("backfill finished with skipped stations", "date", dateKey, "skipped", report.Skipped)
		}
	}
	return nil
}

// resolveDates expands the flags into an ordered list of date keys.
func resolveDates(date, from, to string) ([]string, error) {
	switch {
	case date != "" && (from != "" || to != ""):
		return nil, fmt.Errorf("-date is mutually exclusive with -from/-to")
	case date != "":
		if _, err := domain.ParseDateKey(date); err != nil {
			return nil, fmt.Errorf("invalid -date %q: want YYYYMMDD", date)
		}
		return []string{date}, nil
	case from == "" || to == "":
		return nil, fmt.Errorf("either -date or both -from and -to are required")
	}

	start, err := domain.ParseDateKey(from)
	if err != nil {
		return nil, fmt.Errorf("invalid -from %q: want YYYYMMDD", from)
	}
	end, err := domain.ParseDateKey(to)
	if err != nil {
		return nil, fmt.Errorf("invalid -to %q: want YYYYMMDD", to)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("-to %s precedes -from %s", to, from)
	}

	var dates []string
	for d := start; !d.After(end); d = d.Add(24 * time.Hour) {
		dates = append(dates, domain.DateKey(d))
	}
	return dates, nil
}

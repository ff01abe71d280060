// Package pipeline drives one ingestion cycle: fetch a snapshot, then
// normalize and persist every station it contains.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
	"github.com/fiumesicuro/hydro-ingest/internal/observability"
)

// SnapshotFetcher retrieves the raw snapshot for one observation date key.
type SnapshotFetcher interface {
	Fetch(ctx context.Context, dateKey string) (domain.Snapshot, error)
}

// EntityStore persists normalized entities. Each call commits independently.
type EntityStore interface {
	UpsertStation(ctx context.Context, station domain.Station) error
	UpsertSensors(ctx context.Context, stationID string, sensors []domain.Sensor) error
	UpsertMeasurements(ctx context.Context, stationID string, measurements []domain.Measurement) error
}

// EventPublisher emits persisted measurements to streaming consumers.
// Publish failures never fail a cycle.
type EventPublisher interface {
	PublishMeasurements(ctx context.Context, measurements []domain.Measurement) error
}

// Report summarizes one cycle for the scheduler's logging. It is never
// persisted.
type Report struct {
	DateKey      string
	Stations     int
	Processed    int
	Skipped      int
	MissingDate  int
	Measurements int
	Errors       []error
}

// Coordinator runs fetch-normalize-persist cycles with station-level
// failure isolation.
type Coordinator struct {
	fetcher   SnapshotFetcher
	store     EntityStore
	publisher EventPublisher // nil when publication is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// New creates a Coordinator. Pass a nil publisher to disable event
// publication.
func New(fetcher SnapshotFetcher, store EntityStore, publisher EventPublisher, logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		fetcher:   fetcher,
		store:     store,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once at least one cycle has completed with a
// usable snapshot.
func (c *Coordinator) CheckReadiness(_ context.Context) error {
	if !c.ready.Load() {
		return errors.New("no ingestion cycle has completed yet")
	}
	return nil
}

// RunCycle executes one full cycle for the given date key. A fetch failure
// aborts the cycle with zero writes and is returned as the error; every
// other failure is isolated to its station and collected in the report.
func (c *Coordinator) RunCycle(ctx context.Context, dateKey string) (Report, error) {
	start := time.Now()
	report := Report{DateKey: dateKey}

	c.logger.Info("cycle starting", "date", dateKey)

	snapshot, err := c.fetcher.Fetch(ctx, dateKey)
	if err != nil {
		c.metrics.CyclesTotal.WithLabelValues("fetch_error").Inc()
		c.logger.Error("snapshot fetch failed, cycle aborted", "date", dateKey, "error", err)
		return report, err
	}

	report.Stations = len(snapshot.Items)
	for _, raw := range sortedByName(snapshot.Items) {
		c.processStation(ctx, raw, dateKey, &report)
	}

	c.ready.Store(true)
	c.metrics.CyclesTotal.WithLabelValues("ok").Inc()
	c.metrics.CycleDuration.Observe(time.Since(start).Seconds())

	c.logger.Info("cycle finished",
		"date", dateKey,
		"stations", report.Stations,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"missing_date", report.MissingDate,
		"measurements", report.Measurements,
		"duration", time.Since(start),
	)
	return report, nil
}

// processStation normalizes and persists one station record. Entity order
// is fixed: station before sensors before measurements, so dependent rows
// always reference an existing station.
func (c *Coordinator) processStation(ctx context.Context, raw domain.RawStation, dateKey string, report *Report) {
	normalized, err := domain.Normalize(raw, dateKey)
	if err != nil {
		report.Skipped++
		report.Errors = append(report.Errors, err)
		c.metrics.StationsSkipped.WithLabelValues("normalize").Inc()
		c.logger.Warn("station skipped, malformed record", "station", raw.ID.String(), "error", err)
		return
	}

	station := normalized.Station
	if normalized.MissingDate {
		report.MissingDate++
		c.metrics.MissingDateStations.Inc()
		c.logger.Warn("no data for requested date", "station", station.ID, "name", station.Name, "date", dateKey)
	}

	if err := c.persistStation(ctx, normalized); err != nil {
		report.Skipped++
		report.Errors = append(report.Errors, err)
		c.metrics.StationsSkipped.WithLabelValues("persist").Inc()
		c.logger.Error("station persistence failed", "station", station.ID, "name", station.Name, "error", err)
		return
	}

	report.Processed++
	report.Measurements += len(normalized.Measurements)
	c.metrics.StationsProcessed.Inc()
	c.metrics.MeasurementsUpserted.Add(float64(len(normalized.Measurements)))
	c.logger.Debug("station persisted",
		"station", station.ID,
		"name", station.Name,
		"sensors", len(normalized.Sensors),
		"measurements", len(normalized.Measurements),
	)

	c.publish(ctx, normalized.Measurements)
}

func (c *Coordinator) persistStation(ctx context.Context, n domain.Normalized) error {
	if err := c.store.UpsertStation(ctx, n.Station); err != nil {
		return err
	}
	if err := c.store.UpsertSensors(ctx, n.Station.ID, n.Sensors); err != nil {
		return err
	}
	return c.store.UpsertMeasurements(ctx, n.Station.ID, n.Measurements)
}

func (c *Coordinator) publish(ctx context.Context, measurements []domain.Measurement) {
	if c.publisher == nil || len(measurements) == 0 {
		return
	}
	if err := c.publisher.PublishMeasurements(ctx, measurements); err != nil {
		c.metrics.PublishErrors.Inc()
		c.logger.Warn("measurement publish failed", "count", len(measurements), "error", err)
		return
	}
	c.metrics.EventsPublished.Add(float64(len(measurements)))
}

// sortedByName orders station records by registry name for deterministic
// logs. Persistence order across stations carries no correctness weight.
func sortedByName(items []domain.RawStation) []domain.RawStation {
	out := make([]domain.RawStation, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		return registryName(out[i]) < registryName(out[j])
	})
	return out
}

func registryName(raw domain.RawStation) string {
	if raw.Anagrafica == nil {
		return ""
	}
	return raw.Anagrafica.Nome
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion pipeline.
type Metrics struct {
	CyclesTotal          *prometheus.CounterVec // label: outcome={ok,fetch_error}
	CycleDuration        prometheus.Histogram
	StationsProcessed    prometheus.Counter
	StationsSkipped      *prometheus.CounterVec // label: reason={normalize,persist}
	MissingDateStations  prometheus.Counter
	MeasurementsUpserted prometheus.Counter
	EventsPublished      prometheus.Counter
	PublishErrors        prometheus.Counter
	IngestRunning        prometheus.Gauge
}

// NewMetrics creates and registers all ingestion metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.StationsProcessed,
		m.StationsSkipped,
		m.MissingDateStations,
		m.MeasurementsUpserted,
		m.EventsPublished,
		m.PublishErrors,
		m.IngestRunning,
	)
	return m
}

// NewMetricsForTesting creates metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "cycles_total",
			Help:      "Total ingestion cycles by outcome.",
		}, []string{"outcome"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hydro_ingest",
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of one fetch-normalize-persist cycle.",
		}),
		StationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "stations_processed_total",
			Help:      "Stations fully persisted across all cycles.",
		}),
		StationsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "stations_skipped_total",
			Help:      "Stations skipped by failure stage.",
		}, []string{"reason"}),
		MissingDateStations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "missing_date_stations_total",
			Help:      "Stations whose data block omitted the requested date.",
		}),
		MeasurementsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "measurements_upserted_total",
			Help:      "Measurement rows written (inserted or updated).",
		}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "events_published_total",
			Help:      "Measurement events published to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hydro_ingest",
			Name:      "publish_errors_total",
			Help:      "Failed Kafka publish attempts.",
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hydro_ingest",
			Name:      "running",
			Help:      "1 while the scheduler loop is active.",
		}),
	}
}

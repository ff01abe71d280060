package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
	"github.com/fiumesicuro/hydro-ingest/internal/observability"
	"github.com/fiumesicuro/hydro-ingest/internal/pipeline"
)

// --- mocks ---

type mockFetcher struct {
	snapshot domain.Snapshot
	err      error
}

func (m *mockFetcher) Fetch(_ context.Context, _ string) (domain.Snapshot, error) {
	return m.snapshot, m.err
}

// mockStore records the order of persistence calls and can fail selected
// stations per entity.
type mockStore struct {
	calls        []string
	stations     []domain.Station
	sensors      map[string][]domain.Sensor
	measurements map[string][]domain.Measurement

	failStationFor     string
	failMeasurementFor string
}

func newMockStore() *mockStore {
	return &mockStore{
		sensors:      make(map[string][]domain.Sensor),
		measurements: make(map[string][]domain.Measurement),
	}
}

func (m *mockStore) UpsertStation(_ context.Context, station domain.Station) error {
	m.calls = append(m.calls, "station:"+station.ID)
	if station.ID == m.failStationFor {
		return &domain.PersistenceError{Entity: "station", Key: station.ID, Err: errors.New("boom")}
	}
	m.stations = append(m.stations, station)
	return nil
}

func (m *mockStore) UpsertSensors(_ context.Context, stationID string, sensors []domain.Sensor) error {
	m.calls = append(m.calls, "sensors:"+stationID)
	m.sensors[stationID] = sensors
	return nil
}

func (m *mockStore) UpsertMeasurements(_ context.Context, stationID string, measurements []domain.Measurement) error {
	m.calls = append(m.calls, "measurements:"+stationID)
	if stationID == m.failMeasurementFor {
		return &domain.PersistenceError{Entity: "measurement", Key: stationID, Err: errors.New("boom")}
	}
	m.measurements[stationID] = measurements
	return nil
}

type mockPublisher struct {
	published []domain.Measurement
	err       error
}

func (m *mockPublisher) PublishMeasurements(_ context.Context, measurements []domain.Measurement) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, measurements...)
	return nil
}

// --- fixtures ---

func rawStation(t *testing.T, id int, name string, withData bool) domain.RawStation {
	t.Helper()
	dati := "{}"
	if withData {
		dati = `{"20241030": {"1130": {"livello_idro": 1.63}}}`
	}
	payload := fmt.Sprintf(`{
		"_id": %d,
		"anagrafica": {
			"nome": %q,
			"geometry": {"coordinates": [11.3, 44.5]},
			"sensori": {"livello_idro": {"soglie": [1.0, 2.0, 3.0]}}
		},
		"dati": %s
	}`, id, name, dati)

	var raw domain.RawStation
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	return raw
}

func malformedStation(t *testing.T, id int) domain.RawStation {
	t.Helper()
	var raw domain.RawStation
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(`{"_id": %d, "anagrafica": {"nome": "Rotta"}}`, id)), &raw))
	return raw
}

func newCoordinator(fetcher *mockFetcher, store *mockStore, publisher pipeline.EventPublisher) *pipeline.Coordinator {
	return pipeline.New(fetcher, store, publisher, slog.Default(), observability.NewMetricsForTesting())
}

// --- tests ---

func TestRunCycle_HappyPath(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 13040, "Ponte A", true),
		rawStation(t, 13050, "Casalecchio", true),
	}}}
	store := newMockStore()

	report, err := newCoordinator(fetcher, store, nil).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Stations)
	assert.Equal(t, 2, report.Processed)
	assert.Zero(t, report.Skipped)
	assert.Equal(t, 2, report.Measurements)
	assert.Empty(t, report.Errors)

	require.Len(t, store.stations, 2)
	// Stations are processed in name order.
	assert.Equal(t, "Casalecchio", store.stations[0].Name)
	assert.Equal(t, "Ponte A", store.stations[1].Name)
	assert.Len(t, store.sensors["13040"], 1)
	assert.Len(t, store.measurements["13040"], 1)
}

func TestRunCycle_FetchErrorAbortsWithZeroWrites(t *testing.T) {
	fetcher := &mockFetcher{err: &domain.FetchError{Status: 502, Err: errors.New("bad gateway")}}
	store := newMockStore()

	coord := newCoordinator(fetcher, store, nil)
	_, err := coord.RunCycle(context.Background(), "20241030")

	var fetchErr *domain.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Empty(t, store.calls)
	assert.Error(t, coord.CheckReadiness(context.Background()))
}

func TestRunCycle_StationIsolation(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 1, "Alfa", true),
		malformedStation(t, 2),
		rawStation(t, 3, "Gamma", true),
	}}}
	store := newMockStore()

	report, err := newCoordinator(fetcher, store, nil).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)

	var normErr *domain.NormalizeError
	require.ErrorAs(t, report.Errors[0], &normErr)
	assert.Equal(t, "2", normErr.StationID)
	assert.Len(t, store.stations, 2)
}

func TestRunCycle_PersistenceErrorIsolation(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 1, "Alfa", true),
		rawStation(t, 2, "Beta", true),
	}}}
	store := newMockStore()
	store.failMeasurementFor = "1"

	report, err := newCoordinator(fetcher, store, nil).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Errors, 1)

	var persErr *domain.PersistenceError
	require.ErrorAs(t, report.Errors[0], &persErr)
	assert.Equal(t, "measurement", persErr.Entity)

	// Station 2 still landed in full.
	assert.Len(t, store.measurements["2"], 1)
}

func TestRunCycle_PersistOrderWithinStation(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 7, "Unica", true),
	}}}
	store := newMockStore()

	_, err := newCoordinator(fetcher, store, nil).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, []string{"station:7", "sensors:7", "measurements:7"}, store.calls)
}

func TestRunCycle_MissingDateIsWarningOnly(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 5, "Senza Dati", false),
	}}}
	store := newMockStore()

	report, err := newCoordinator(fetcher, store, nil).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.MissingDate)
	assert.Zero(t, report.Measurements)
	assert.Empty(t, report.Errors)
	// Metadata still persisted.
	require.Len(t, store.stations, 1)
	assert.Equal(t, "Senza Dati", store.stations[0].Name)
}

func TestRunCycle_PublishesPersistedMeasurements(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 9, "Pubblicata", true),
	}}}
	store := newMockStore()
	publisher := &mockPublisher{}

	_, err := newCoordinator(fetcher, store, publisher).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	require.Len(t, publisher.published, 1)
	assert.Equal(t, "9", publisher.published[0].StationID)
}

func TestRunCycle_PublishFailureDoesNotFailCycle(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 9, "Pubblicata", true),
	}}}
	store := newMockStore()
	publisher := &mockPublisher{err: errors.New("broker down")}

	report, err := newCoordinator(fetcher, store, publisher).RunCycle(context.Background(), "20241030")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Empty(t, report.Errors)
}

func TestCheckReadiness_FlipsAfterFirstCycle(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{}}
	coord := newCoordinator(fetcher, newMockStore(), nil)

	require.Error(t, coord.CheckReadiness(context.Background()))

	_, err := coord.RunCycle(context.Background(), "20241030")
	require.NoError(t, err)
	assert.NoError(t, coord.CheckReadiness(context.Background()))
}

func TestRunCycle_IdempotentReRun(t *testing.T) {
	fetcher := &mockFetcher{snapshot: domain.Snapshot{Items: []domain.RawStation{
		rawStation(t, 13040, "Ponte A", true),
	}}}
	store := newMockStore()
	coord := newCoordinator(fetcher, store, nil)

	first, err := coord.RunCycle(context.Background(), "20241030")
	require.NoError(t, err)
	second, err := coord.RunCycle(context.Background(), "20241030")
	require.NoError(t, err)

	assert.Equal(t, first.Processed, second.Processed)
	assert.Equal(t, first.Measurements, second.Measurements)

	// Same natural key both times; the store decides update vs insert.
	require.Len(t, store.measurements["13040"], 1)
	m := store.measurements["13040"][0]
	assert.Equal(t, "13040", m.StationID)
	assert.Equal(t, "livello_idro", m.VariableType)
	assert.Equal(t, 1.63, m.Value)
}

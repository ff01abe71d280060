// Package postgres persists normalized telemetry entities. It is the sole
// writer of the stations, sensors, and measurements relations.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fiumesicuro/hydro-ingest/internal/domain"
)

// Store wraps a pgx pool held for the lifetime of the process.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a Store to the given DSN and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const upsertStationSQL = `
INSERT INTO stations (
    id, name, altitude, longitude, latitude, cod_istat,
    basin, subbasin, macroarea, owner, operator,
    municipality, province, region, multi_variable, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW())
ON CONFLICT (id) DO UPDATE
SET name = EXCLUDED.name,
    altitude = EXCLUDED.altitude,
    longitude = EXCLUDED.longitude,
    latitude = EXCLUDED.latitude,
    cod_istat = EXCLUDED.cod_istat,
    basin = EXCLUDED.basin,
    subbasin = EXCLUDED.subbasin,
    macroarea = EXCLUDED.macroarea,
    owner = EXCLUDED.owner,
    operator = EXCLUDED.operator,
    municipality = EXCLUDED.municipality,
    province = EXCLUDED.province,
    region = EXCLUDED.region,
    multi_variable = EXCLUDED.multi_variable,
    updated_at = NOW()`

// UpsertStation writes one station row, overwriting every non-key column on
// conflict (last-observed-wins).
func (s *Store) UpsertStation(ctx context.Context, station domain.Station) error {
	_, err := s.pool.Exec(ctx, upsertStationSQL,
		station.ID, station.Name, station.Altitude,
		station.Longitude, station.Latitude, station.CodIstat,
		station.Basin, station.Subbasin, station.Macroarea,
		station.Owner, station.Operator,
		station.Municipality, station.Province, station.Region,
		station.MultiVariable,
	)
	if err != nil {
		return &domain.PersistenceError{Entity: "station", Key: station.ID, Err: err}
	}
	return nil
}

const upsertSensorSQL = `
INSERT INTO sensors (
    station_id, variable_type, threshold1, threshold2, threshold3,
    basin, subbasin, altitude, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW())
ON CONFLICT (station_id, variable_type) DO UPDATE
SET threshold1 = EXCLUDED.threshold1,
    threshold2 = EXCLUDED.threshold2,
    threshold3 = EXCLUDED.threshold3,
    basin = EXCLUDED.basin,
    subbasin = EXCLUDED.subbasin,
    altitude = EXCLUDED.altitude,
    updated_at = NOW()`

// UpsertSensors writes the station's sensor catalog, one conditional upsert
// per (station, variable type) pair, batched over a single round-trip.
func (s *Store) UpsertSensors(ctx context.Context, stationID string, sensors []domain.Sensor) error {
	if len(sensors) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, sn := range sensors {
		batch.Queue(upsertSensorSQL,
			sn.StationID, sn.VariableType,
			sn.Threshold1, sn.Threshold2, sn.Threshold3,
			sn.Basin, sn.Subbasin, sn.Altitude,
		)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for _, sn := range sensors {
		if _, err := res.Exec(); err != nil {
			return &domain.PersistenceError{
				Entity: "sensor",
				Key:    fmt.Sprintf("%s/%s", stationID, sn.VariableType),
				Err:    err,
			}
		}
	}
	return nil
}

// The composite natural key makes this a single atomic statement per row:
// no existence check, so concurrent writers cannot race into duplicates.
const upsertMeasurementSQL = `
INSERT INTO measurements (
    station_id, observed_at, variable_type, value, updated_at
) VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (station_id, observed_at, variable_type) DO UPDATE
SET value = EXCLUDED.value,
    updated_at = NOW()`

// UpsertMeasurements writes the station's measurements for one cycle,
// last-write-wins per (station, timestamp, variable type).
func (s *Store) UpsertMeasurements(ctx context.Context, stationID string, measurements []domain.Measurement) error {
	if len(measurements) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range measurements {
		batch.Queue(upsertMeasurementSQL, m.StationID, m.ObservedAt, m.VariableType, m.Value)
	}

	res := s.pool.SendBatch(ctx, batch)
	defer res.Close()

	for _, m := range measurements {
		if _, err := res.Exec(); err != nil {
			return &domain.PersistenceError{
				Entity: "measurement",
				Key:    fmt.Sprintf("%s/%s/%s", stationID, m.ObservedAt.Format("200601021504"), m.VariableType),
				Err:    err,
			}
		}
	}
	return nil
}

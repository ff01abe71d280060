// Package domain models ARPAE hydro-meteorological observation data.
//
// # Data Source
//
// Observations come from the ARPAE Emilia-Romagna "meteo_osservati" REST API
// at https://apps.arpae.it/REST/meteo_osservati. The endpoint is queried with
// a MongoDB-style filter selecting stations that report the water-level
// variable ("livello_idro"), a projection restricted to one observation date
// plus the station registry block, and a maximum result count. The response
// is a JSON document whose "_items" array holds one record per station.
//
// # Record Shape
//
// Each station record carries:
//
//	"_id"        — the station identifier, stable across time. The API emits
//	               it as either a number or a string; [StationID] accepts both.
//	"anagrafica" — the registry block: name, altitude, WGS-84 coordinates
//	               (GeoJSON order, longitude first), ISTAT code, basin names,
//	               owner/operator, administrative names, the list of measured
//	               variables, and the per-variable sensor catalog.
//	"dati"       — observed values keyed by date, hour bucket, and variable:
//
//	               "dati": {"20241030": {"1130": {"livello_idro": 1.63}}}
//
// Date keys use YYYYMMDD. Hour buckets use HHMM in 24-hour notation; combined
// with the date key they yield a UTC timestamp (see [combineDateHour]).
//
// # Sensor Thresholds
//
// The sensor catalog ("anagrafica.sensori") maps a variable type to its
// configured alert thresholds ("soglie"), an ordered list of up to three
// severity levels. Entries may be null or missing entirely; normalization
// pads the list to three nullable slots. Threshold evaluation itself is a
// downstream dashboard concern; this pipeline only persists the values.
//
// # Identity
//
// Entities are keyed on natural keys rather than generated identifiers:
// stations on the ARPAE identifier, sensors on (station, variable type),
// measurements on (station, timestamp, variable type). Natural keys make
// every write an idempotent upsert, so re-ingesting a date is safe and is the
// recovery mechanism after a partial failure.
package domain

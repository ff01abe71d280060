package domain

import (
	"sort"
	"strconv"
	"time"
)

// DateKeyLayout is the ARPAE observation date key format (YYYYMMDD).
const DateKeyLayout = "20060102"

// DateKey formats a time as an ARPAE date key.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateKeyLayout)
}

// ParseDateKey parses a YYYYMMDD date key into a UTC midnight time.
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(DateKeyLayout, key, time.UTC)
}

// Normalize maps one raw station record into typed entities for the given
// observation date key. It is a pure function of its input: identical input
// yields identical output, independent of any store state.
func Normalize(raw RawStation, dateKey string) (Normalized, error) {
	id := raw.ID.String()
	if id == "" {
		return Normalized{}, &NormalizeError{Field: "_id", Reason: "missing station identifier"}
	}

	ana := raw.Anagrafica
	if ana == nil {
		return Normalized{}, &NormalizeError{StationID: id, Field: "anagrafica", Reason: "missing registry block"}
	}
	if ana.Nome == "" {
		return Normalized{}, &NormalizeError{StationID: id, Field: "anagrafica.nome", Reason: "missing station name"}
	}
	if ana.Geometry == nil || len(ana.Geometry.Coordinates) != 2 {
		return Normalized{}, &NormalizeError{StationID: id, Field: "anagrafica.geometry", Reason: "missing or malformed coordinates"}
	}

	out := Normalized{
		Station: Station{
			ID:            id,
			Name:          ana.Nome,
			Altitude:      ana.Altitudine,
			Longitude:     ana.Geometry.Coordinates[0],
			Latitude:      ana.Geometry.Coordinates[1],
			CodIstat:      ana.CodIstat,
			Basin:         ana.Bacino,
			Subbasin:      ana.Sottobacino,
			Macroarea:     ana.Macroarea,
			Owner:         ana.Proprietario,
			Operator:      ana.Gestore,
			Municipality:  ana.Comune,
			Province:      ana.Provincia,
			Region:        ana.Regione,
			MultiVariable: countVariables(ana) > 1,
		},
	}

	out.Sensors = normalizeSensors(id, ana.Sensori)

	measurements, missing, err := normalizeMeasurements(id, raw.Dati, dateKey)
	if err != nil {
		return Normalized{}, err
	}
	out.Measurements = measurements
	out.MissingDate = missing

	return out, nil
}

// countVariables prefers the registry's variable list and falls back to the
// sensor catalog when the list is absent.
func countVariables(ana *Anagrafica) int {
	if len(ana.Variabili) > 0 {
		return len(ana.Variabili)
	}
	return len(ana.Sensori)
}

// normalizeSensors builds one Sensor per catalog entry, padding the
// threshold list to three nullable slots. Catalog iteration is sorted by
// variable type so repeated runs produce identical output ordering.
func normalizeSensors(stationID string, catalog map[string]SensorInfo) []Sensor {
	if len(catalog) == 0 {
		return nil
	}

	variables := make([]string, 0, len(catalog))
	for v := range catalog {
		variables = append(variables, v)
	}
	sort.Strings(variables)

	sensors := make([]Sensor, 0, len(variables))
	for _, v := range variables {
		info := catalog[v]
		sensors = append(sensors, Sensor{
			StationID:    stationID,
			VariableType: v,
			Threshold1:   thresholdAt(info.Soglie, 0),
			Threshold2:   thresholdAt(info.Soglie, 1),
			Threshold3:   thresholdAt(info.Soglie, 2),
			Basin:        info.Bacino,
			Subbasin:     info.Sottobacino,
			Altitude:     info.Altitudine,
		})
	}
	return sensors
}

func thresholdAt(soglie []*float64, i int) *float64 {
	if i >= len(soglie) {
		return nil
	}
	return soglie[i]
}

func normalizeMeasurements(stationID string, dati map[string]map[string]HourlyReadings, dateKey string) ([]Measurement, bool, error) {
	day, ok := dati[dateKey]
	if !ok || len(day) == 0 {
		return nil, true, nil
	}

	date, err := ParseDateKey(dateKey)
	if err != nil {
		return nil, false, &NormalizeError{StationID: stationID, Field: "dati", Reason: "invalid date key " + strconv.Quote(dateKey)}
	}

	hours := make([]string, 0, len(day))
	for h := range day {
		hours = append(hours, h)
	}
	sort.Strings(hours)

	var measurements []Measurement
	for _, h := range hours {
		ts, err := combineDateHour(date, h)
		if err != nil {
			return nil, false, &NormalizeError{StationID: stationID, Field: "dati." + dateKey, Reason: "invalid hour bucket " + strconv.Quote(h)}
		}

		readings := day[h]
		variables := make([]string, 0, len(readings))
		for v := range readings {
			variables = append(variables, v)
		}
		sort.Strings(variables)

		for _, v := range variables {
			value := readings[v]
			if value == nil {
				continue
			}
			measurements = append(measurements, Measurement{
				StationID:    stationID,
				ObservedAt:   ts,
				VariableType: v,
				Value:        *value,
			})
		}
	}
	return measurements, false, nil
}

// combineDateHour merges a UTC midnight date with an HHMM hour bucket
// (e.g. "1130" → 11:30). Three-digit buckets are zero-padded: "930" → 09:30.
func combineDateHour(date time.Time, hhmm string) (time.Time, error) {
	if len(hhmm) == 3 {
		hhmm = "0" + hhmm
	}
	if len(hhmm) != 4 {
		return time.Time{}, errInvalidHour
	}

	hour, errH := strconv.Atoi(hhmm[:2])
	mins, errM := strconv.Atoi(hhmm[2:])
	if errH != nil || errM != nil || hour < 0 || hour > 23 || mins < 0 || mins > 59 {
		return time.Time{}, errInvalidHour
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, mins, 0, 0, time.UTC), nil
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Snapshot is one fetch result from the ARPAE endpoint: every matching
// station record for a single observation date.
type Snapshot struct {
	Items []RawStation `json:"_items"`
}

// RawStation is one station record as returned by the API, before
// normalization.
type RawStation struct {
	ID         StationID                            `json:"_id"`
	Anagrafica *Anagrafica                          `json:"anagrafica"`
	Dati       map[string]map[string]HourlyReadings `json:"dati"`
}

// HourlyReadings maps a variable type to its observed value within one
// hour bucket. Null values appear in the feed and are skipped downstream.
type HourlyReadings map[string]*float64

// Anagrafica is the station registry block.
type Anagrafica struct {
	Nome         string                `json:"nome"`
	Altitudine   *float64              `json:"altitudine"`
	Geometry     *Geometry             `json:"geometry"`
	CodIstat     string                `json:"cod_istat"`
	Bacino       string                `json:"bacino"`
	Sottobacino  string                `json:"sottobacino"`
	Macroarea    string                `json:"macroarea"`
	Proprietario string                `json:"proprietario"`
	Gestore      string                `json:"gestore"`
	Comune       string                `json:"comune"`
	Provincia    string                `json:"provincia"`
	Regione      string                `json:"regione"`
	Variabili    []string              `json:"variabili"`
	Sensori      map[string]SensorInfo `json:"sensori"`
}

// Geometry is the GeoJSON point for a station. Coordinates follow GeoJSON
// order: longitude first, latitude second.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// SensorInfo is one entry of the per-variable sensor catalog.
type SensorInfo struct {
	Soglie      []*float64 `json:"soglie"`
	Bacino      string     `json:"bacino"`
	Sottobacino string     `json:"sottobacino"`
	Altitudine  *float64   `json:"altitudine"`
}

// StationID is the ARPAE station identifier. The feed emits it as either a
// JSON number or a JSON string depending on the record, so it unmarshals
// from both and is handled as a string everywhere else.
type StationID string

// UnmarshalJSON accepts both `13040` and `"13040"`.
func (id *StationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("station id: %w", err)
		}
		*id = StationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("station id: %w", err)
	}
	*id = StationID(n.String())
	return nil
}

func (id StationID) String() string { return string(id) }

package domain

import "time"

// Station is one monitoring site. Keyed on the ARPAE identifier; every
// non-key field is overwritten wholesale on each observed update.
type Station struct {
	ID            string
	Name          string
	Altitude      *float64
	Longitude     float64
	Latitude      float64
	CodIstat      string
	Basin         string
	Subbasin      string
	Macroarea     string
	Owner         string
	Operator      string
	Municipality  string
	Province      string
	Region        string
	MultiVariable bool
}

// Sensor is one (station, variable type) pair from the sensor catalog, with
// up to three ordered severity thresholds. Absent threshold slots are nil.
type Sensor struct {
	StationID    string
	VariableType string
	Threshold1   *float64
	Threshold2   *float64
	Threshold3   *float64
	Basin        string
	Subbasin     string
	Altitude     *float64
}

// Measurement is one observed value for one station, variable, and
// timestamp. The triple (StationID, ObservedAt, VariableType) is unique in
// the store; a later write for the same triple replaces the value.
type Measurement struct {
	StationID    string
	ObservedAt   time.Time
	VariableType string
	Value        float64
}

// Normalized holds the entities produced from one raw station record.
// MissingDate is set when the requested date key was absent from the
// station's data block; the station then contributes zero measurements.
type Normalized struct {
	Station      Station
	Sensors      []Sensor
	Measurements []Measurement
	MissingDate  bool
}

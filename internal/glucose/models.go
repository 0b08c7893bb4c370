// Package glucose defines the typed shape of one LibreView reading and the
// normalization into a flat, tagged point suitable for time-series storage.
package glucose

import (
	"encoding/json"
	"fmt"
)

// Reading is one vendor connections entry. The measurement, item and alarm
// sub-records are optional in practice; absent ones are nil and normalize to
// zero-valued fields. PatientID and Sensor.SN are the only hard requirements.
type Reading struct {
	PatientID          string       `json:"patientId"`
	Sensor             *Sensor      `json:"sensor"`
	GlucoseMeasurement *Measurement `json:"glucoseMeasurement"`
	GlucoseItem        *Item        `json:"glucoseItem"`
	AlarmRules         *AlarmRules  `json:"alarmRules"`
}

// Sensor identifies the physical CGM sensor.
type Sensor struct {
	SN       string `json:"sn"`
	DeviceID string `json:"deviceId"`
}

// Measurement is the instantaneous glucose measurement sub-record. The vendor
// mixes PascalCase and camelCase key styles; the tags below match the wire.
type Measurement struct {
	Value        float64 `json:"Value"`
	TrendArrow   float64 `json:"TrendArrow"`
	GlucoseUnits float64 `json:"GlucoseUnits"`
	Timestamp    string  `json:"Timestamp"`
}

// Item is the glucose item sub-record carrying the display-oriented view of
// the same measurement.
type Item struct {
	IsHigh           bool    `json:"isHigh"`
	IsLow            bool    `json:"isLow"`
	TrendArrow       float64 `json:"TrendArrow"`
	MeasurementColor float64 `json:"MeasurementColor"`
	ValueInMgPerDl   float64 `json:"ValueInMgPerDl"`
	GlucoseUnits     float64 `json:"GlucoseUnits"`
	Value            float64 `json:"Value"`
	Type             float64 `json:"type"`
}

// AlarmRules holds the configured low/high alert thresholds.
type AlarmRules struct {
	Low  *AlarmThreshold `json:"l"`
	High *AlarmThreshold `json:"h"`
}

// AlarmThreshold is one alarm bound in mmol ("thmm" on the wire).
type AlarmThreshold struct {
	Thmm float64 `json:"thmm"`
}

// Point is the normalized form of one reading: two identifying tags plus a
// fixed set of numeric fields. One reading produces exactly one point.
type Point struct {
	Tags   map[string]string
	Fields map[string]float64
}

// ParseReading decodes one raw connections entry into the typed form.
func ParseReading(raw json.RawMessage) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		return Reading{}, fmt.Errorf("glucose: decoding reading: %w", err)
	}
	return r, nil
}

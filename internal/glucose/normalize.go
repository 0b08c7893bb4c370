package glucose

import (
	"errors"
	"fmt"
)

// ErrMalformedReading is returned when a reading lacks the identifiers that
// become point tags.
var ErrMalformedReading = errors.New("glucose: reading missing required identifiers")

// Tag names attached to every point.
const (
	TagPatientID    = "patientId"
	TagSensorSerial = "sensor_serial_number"
)

// Normalize flattens one reading into a point. It is pure: no I/O, and the
// same reading always yields the same tags and the same fixed field set.
// Missing sub-records contribute their fields as zeroes rather than failing
// the whole reading; only the identifying tags are mandatory.
func Normalize(r Reading) (Point, error) {
	if r.PatientID == "" {
		return Point{}, fmt.Errorf("%w: patientId", ErrMalformedReading)
	}
	if r.Sensor == nil || r.Sensor.SN == "" {
		return Point{}, fmt.Errorf("%w: sensor.sn", ErrMalformedReading)
	}

	fields := map[string]float64{
		"glucose_measurement":     0,
		"measurement_trend_arrow": 0,
		"glucose_units":           0,
		"is_high":                 0,
		"is_low":                  0,
		"trend_arrow":             0,
		"measurement_color":       0,
		"value_in_mg_per_dl":      0,
		"value":                   0,
		"type":                    0,
		"low_alarm_thmm":          0,
		"high_alarm_thmm":         0,
	}

	if m := r.GlucoseMeasurement; m != nil {
		fields["glucose_measurement"] = m.Value
		fields["measurement_trend_arrow"] = m.TrendArrow
		fields["glucose_units"] = m.GlucoseUnits
	}

	if it := r.GlucoseItem; it != nil {
		fields["is_high"] = boolField(it.IsHigh)
		fields["is_low"] = boolField(it.IsLow)
		fields["trend_arrow"] = it.TrendArrow
		fields["measurement_color"] = it.MeasurementColor
		fields["value_in_mg_per_dl"] = it.ValueInMgPerDl
		fields["value"] = it.Value
		fields["type"] = it.Type
	}

	if a := r.AlarmRules; a != nil {
		if a.Low != nil {
			fields["low_alarm_thmm"] = a.Low.Thmm
		}
		if a.High != nil {
			fields["high_alarm_thmm"] = a.High.Thmm
		}
	}

	return Point{
		Tags: map[string]string{
			TagPatientID:    r.PatientID,
			TagSensorSerial: r.Sensor.SN,
		},
		Fields: fields,
	}, nil
}

func boolField(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

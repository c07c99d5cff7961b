package model

import (
	"fmt"
	"time"
)

// Label is the binary classifier output for one row.
type Label int

const (
	Normal  Label = 0
	Failure Label = 1
)

// ParseLabel converts a raw predictor output into a Label. Any value other
// than 0 or 1 is rejected.
func ParseLabel(v int64) (Label, error) {
	switch v {
	case 0:
		return Normal, nil
	case 1:
		return Failure, nil
	default:
		return Normal, fmt.Errorf("model: predictor returned label %d, want 0 or 1", v)
	}
}

func (l Label) String() string {
	if l == Failure {
		return "failure"
	}
	return "normal"
}

// Outcome is a fully processed row: the readings after missing-value
// substitution, the normalized feature vector, and the prediction.
type Outcome struct {
	Row        SensorRow  // substituted raw values, never NaN
	Normalized [3]float64 // temperature, rotational speed, torque
	Label      Label
	Timestamp  time.Time // wall clock at evaluation
}

// Status is the per-row presentation event derived from an Outcome.
type Status struct {
	Row       int       `json:"row"`
	Label     int       `json:"label"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`

	Temperature     float64 `json:"temperature"`
	RotationalSpeed float64 `json:"rotational_speed"`
	Torque          float64 `json:"torque"`
}

// StatusOf builds the presentation event for o.
func StatusOf(o Outcome) Status {
	s := Status{
		Row:             o.Row.Index,
		Label:           int(o.Label),
		Status:          o.Label.String(),
		Timestamp:       o.Timestamp,
		Temperature:     o.Row.Temperature,
		RotationalSpeed: o.Row.RotationalSpeed,
		Torque:          o.Row.Torque,
	}
	if o.Label == Failure {
		s.Message = fmt.Sprintf("Failure detected at row %d — ALERT!", o.Row.Index)
	} else {
		s.Message = fmt.Sprintf("Row %d: Normal operation", o.Row.Index)
	}
	return s
}

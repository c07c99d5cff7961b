package normalize

import (
	"fmt"
	"math"

	"github.com/crimson-sun/machwatch/internal/model"
)

// Range is the (min, max) pair a feature was scaled with at training time.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Scale maps v into the range's unit interval. Values outside [Min, Max]
// land outside [0, 1]; they are not clamped.
func (r Range) Scale(v float64) float64 {
	return (v - r.Min) / (r.Max - r.Min)
}

// Bounds holds one Range per model feature.
type Bounds struct {
	Temperature     Range `yaml:"temperature" json:"temperature"`
	RotationalSpeed Range `yaml:"rotational_speed" json:"rotational_speed"`
	Torque          Range `yaml:"torque" json:"torque"`
}

// Default returns the bounds the shipped classifier was trained with.
func Default() Bounds {
	return Bounds{
		Temperature:     Range{Min: 60.0, Max: 120.0},
		RotationalSpeed: Range{Min: 1000, Max: 3500},
		Torque:          Range{Min: 3.0, Max: 75.0},
	}
}

// Validate rejects degenerate ranges, which would divide by zero.
func (b Bounds) Validate() error {
	for _, f := range []struct {
		name string
		r    Range
	}{
		{"temperature", b.Temperature},
		{"rotational_speed", b.RotationalSpeed},
		{"torque", b.Torque},
	} {
		if !(f.r.Max > f.r.Min) {
			return fmt.Errorf("normalize: %s bounds [%v, %v] are empty", f.name, f.r.Min, f.r.Max)
		}
	}
	return nil
}

// Fill substitutes each absent reading in row with its range minimum.
func (b Bounds) Fill(row model.SensorRow) model.SensorRow {
	row.Temperature = orMin(row.Temperature, b.Temperature)
	row.RotationalSpeed = orMin(row.RotationalSpeed, b.RotationalSpeed)
	row.Torque = orMin(row.Torque, b.Torque)
	return row
}

// Apply scales a filled row into the model's feature vector.
func (b Bounds) Apply(row model.SensorRow) [3]float64 {
	return [3]float64{
		b.Temperature.Scale(row.Temperature),
		b.RotationalSpeed.Scale(row.RotationalSpeed),
		b.Torque.Scale(row.Torque),
	}
}

func orMin(v float64, r Range) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return v
}

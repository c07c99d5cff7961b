package model

import "math"

// SensorRow is one record read from a sensor dataset. Absent or
// unparseable cells are carried as NaN.
type SensorRow struct {
	Index           int     // 1-based position in the dataset
	Temperature     float64 // °C
	RotationalSpeed float64 // rpm
	Torque          float64 // Nm
}

// Vector returns the three readings in model feature order.
func (r SensorRow) Vector() [3]float64 {
	return [3]float64{r.Temperature, r.RotationalSpeed, r.Torque}
}

// Missing reports whether any of the three readings is absent.
func (r SensorRow) Missing() bool {
	return math.IsNaN(r.Temperature) || math.IsNaN(r.RotationalSpeed) || math.IsNaN(r.Torque)
}

package machwatch

// Reading is one set of raw sensor values.
type Reading struct {
	Temperature     float64 `json:"temperature"`      // °C
	RotationalSpeed float64 `json:"rotational_speed"` // rpm
	Torque          float64 `json:"torque"`           // Nm
}

// Result is the classification of one Reading.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Result struct {
	Reading    Reading    `json:"reading"`    // after missing-value substitution
	Normalized [3]float64 `json:"normalized"` // temperature, speed, torque in model space
	Failure    bool       `json:"failure"`
	Status     string     `json:"status"` // "normal" or "failure"
}

// Range is the (min, max) span a feature was scaled over during training.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Bounds holds the normalization range for each sensor.
type Bounds struct {
	Temperature     Range `json:"temperature"`
	RotationalSpeed Range `json:"rotational_speed"`
	Torque          Range `json:"torque"`
}

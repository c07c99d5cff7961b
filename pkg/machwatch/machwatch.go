package machwatch

import (
	"fmt"

	"github.com/crimson-sun/machwatch/internal/engine/normalize"
	"github.com/crimson-sun/machwatch/internal/engine/predictor"
	"github.com/crimson-sun/machwatch/internal/model"
)

// Monitor classifies sensor readings. Safe for concurrent use.
type Monitor struct {
	bounds    normalize.Bounds
	predictor predictor.Predictor
}

// New creates a Monitor, loading the classifier artifact. Loading an ONNX
// model initializes the runtime; create once and reuse.
func New(opts ...Option) (*Monitor, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	bounds := normalize.Default()
	if o.bounds != nil {
		bounds = toInternal(*o.bounds)
		if err := bounds.Validate(); err != nil {
			return nil, fmt.Errorf("machwatch: %w", err)
		}
	}

	p, err := predictor.Load(o.modelPath, predictor.Options{
		Kind:       predictor.Kind(o.kind),
		RuntimeLib: o.runtimeLib,
	})
	if err != nil {
		return nil, fmt.Errorf("machwatch: %w", err)
	}
	return &Monitor{bounds: bounds, predictor: p}, nil
}

// DefaultBounds returns the training-time bounds used unless WithBounds is
// given.
func DefaultBounds() Bounds {
	return fromInternal(normalize.Default())
}

// Classify classifies a single reading.
func (m *Monitor) Classify(temperature, rotationalSpeed, torque float64) (Result, error) {
	res, err := m.ClassifyBatch([]Reading{{
		Temperature:     temperature,
		RotationalSpeed: rotationalSpeed,
		Torque:          torque,
	}})
	if err != nil {
		return Result{}, err
	}
	return res[0], nil
}

// ClassifyBatch classifies multiple readings in a single inference call.
// More efficient than calling Classify in a loop.
func (m *Monitor) ClassifyBatch(readings []Reading) ([]Result, error) {
	if len(readings) == 0 {
		return nil, nil
	}
	filled := make([]model.SensorRow, len(readings))
	batch := make([][3]float64, len(readings))
	for i, r := range readings {
		filled[i] = m.bounds.Fill(model.SensorRow{
			Index:           i + 1,
			Temperature:     r.Temperature,
			RotationalSpeed: r.RotationalSpeed,
			Torque:          r.Torque,
		})
		batch[i] = m.bounds.Apply(filled[i])
	}

	labels, err := m.predictor.Predict(batch)
	if err != nil {
		return nil, fmt.Errorf("machwatch: %w", err)
	}
	if len(labels) != len(readings) {
		return nil, fmt.Errorf("machwatch: got %d labels for %d readings", len(labels), len(readings))
	}

	results := make([]Result, len(readings))
	for i, row := range filled {
		results[i] = Result{
			Reading: Reading{
				Temperature:     row.Temperature,
				RotationalSpeed: row.RotationalSpeed,
				Torque:          row.Torque,
			},
			Normalized: batch[i],
			Failure:    labels[i] == model.Failure,
			Status:     labels[i].String(),
		}
	}
	return results, nil
}

// Close releases model resources (ONNX runtime session, memory).
func (m *Monitor) Close() error {
	return m.predictor.Close()
}

func toInternal(b Bounds) normalize.Bounds {
	return normalize.Bounds{
		Temperature:     normalize.Range(b.Temperature),
		RotationalSpeed: normalize.Range(b.RotationalSpeed),
		Torque:          normalize.Range(b.Torque),
	}
}

func fromInternal(b normalize.Bounds) Bounds {
	return Bounds{
		Temperature:     Range(b.Temperature),
		RotationalSpeed: Range(b.RotationalSpeed),
		Torque:          Range(b.Torque),
	}
}

package predictor

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/machwatch/internal/model"
)

const defaultThreshold = 0.5

// Logistic is a linear classifier over the three normalized features:
// Failure when sigmoid(w·x + bias) >= Threshold.
type Logistic struct {
	Weights   [3]float64 `yaml:"weights"`
	Bias      float64    `yaml:"bias"`
	Threshold float64    `yaml:"threshold"`
}

// LoadLogistic reads a Logistic model from a YAML or JSON artifact.
func LoadLogistic(path string) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("predictor: read %s: %w", path, err)
	}
	var raw struct {
		Weights   []float64 `yaml:"weights"`
		Bias      float64   `yaml:"bias"`
		Threshold *float64  `yaml:"threshold"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("predictor: parse %s: %w", path, err)
	}
	if len(raw.Weights) != 3 {
		return nil, fmt.Errorf("predictor: %s: expected 3 weights, got %d", path, len(raw.Weights))
	}
	m := &Logistic{Bias: raw.Bias, Threshold: defaultThreshold}
	copy(m.Weights[:], raw.Weights)
	if raw.Threshold != nil {
		m.Threshold = *raw.Threshold
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return nil, fmt.Errorf("predictor: %s: threshold %v outside (0, 1)", path, m.Threshold)
	}
	return m, nil
}

// Probability returns the model's failure probability for x.
func (m *Logistic) Probability(x [3]float64) float64 {
	z := m.Bias
	for i := range x {
		z += m.Weights[i] * x[i]
	}
	return 1 / (1 + math.Exp(-z))
}

func (m *Logistic) Predict(batch [][3]float64) ([]model.Label, error) {
	out := make([]model.Label, len(batch))
	for i, x := range batch {
		if m.Probability(x) >= m.Threshold {
			out[i] = model.Failure
		}
	}
	return out, nil
}

func (m *Logistic) Close() error { return nil }

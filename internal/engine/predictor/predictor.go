package predictor

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/crimson-sun/machwatch/internal/model"
)

// Predictor classifies batches of normalized feature vectors
// (temperature, rotational speed, torque). It is loaded once at startup and
// injected wherever rows are evaluated.
type Predictor interface {
	Predict(batch [][3]float64) ([]model.Label, error)
	Close() error
}

// Kind names a supported model artifact format.
type Kind string

const (
	KindONNX     Kind = "onnx"
	KindLogistic Kind = "logistic"
)

// Options controls how a model artifact is loaded.
type Options struct {
	Kind       Kind   // empty: inferred from the file extension
	RuntimeLib string // ONNX Runtime shared library; empty: next to the model
}

// KindFor infers the artifact kind from a model path.
func KindFor(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		return KindONNX, nil
	case ".yaml", ".yml", ".json":
		return KindLogistic, nil
	default:
		return "", fmt.Errorf("predictor: cannot infer model kind from %q", path)
	}
}

// Load opens the model artifact at path.
func Load(path string, opts Options) (Predictor, error) {
	kind := opts.Kind
	if kind == "" {
		k, err := KindFor(path)
		if err != nil {
			return nil, err
		}
		kind = k
	}
	switch kind {
	case KindONNX:
		return NewONNX(path, opts.RuntimeLib)
	case KindLogistic:
		return LoadLogistic(path)
	default:
		return nil, fmt.Errorf("predictor: unknown model kind %q", kind)
	}
}

// Func adapts a per-vector function into a Predictor.
type Func func(x [3]float64) (model.Label, error)

func (f Func) Predict(batch [][3]float64) ([]model.Label, error) {
	out := make([]model.Label, len(batch))
	for i, x := range batch {
		l, err := f(x)
		if err != nil {
			return nil, err
		}
		out[i] = l
	}
	return out, nil
}

func (f Func) Close() error { return nil }

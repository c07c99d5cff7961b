package engine

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/crimson-sun/machwatch/internal/engine/normalize"
	"github.com/crimson-sun/machwatch/internal/engine/predictor"
	"github.com/crimson-sun/machwatch/internal/model"
)

// Evaluator runs the fill → normalize → predict sequence for sensor rows.
type Evaluator struct {
	bounds    normalize.Bounds
	predictor predictor.Predictor
	now       func() time.Time
}

// New creates an Evaluator. The predictor is owned by the caller.
func New(bounds normalize.Bounds, p predictor.Predictor) *Evaluator {
	return &Evaluator{bounds: bounds, predictor: p, now: time.Now}
}

// Process evaluates a single row. Absent readings are replaced with the
// bound minimum before normalization.
func (e *Evaluator) Process(row model.SensorRow) (model.Outcome, error) {
	filled := e.bounds.Fill(row)
	x := e.bounds.Apply(filled)

	labels, err := e.predictor.Predict([][3]float64{x})
	if err != nil {
		return model.Outcome{}, fmt.Errorf("engine: predict row %d: %w", row.Index, err)
	}
	if len(labels) != 1 {
		return model.Outcome{}, fmt.Errorf("engine: predict row %d: got %d labels for 1 input", row.Index, len(labels))
	}

	return model.Outcome{
		Row:        filled,
		Normalized: x,
		Label:      labels[0],
		Timestamp:  e.now(),
	}, nil
}

// Evaluate lazily maps rows to outcomes in input order. A row is read and
// predicted only when the consumer asks for the next outcome. The first
// error, from either the row source or the predictor, is yielded once and
// ends the sequence. ctx is checked before each row is pulled.
func (e *Evaluator) Evaluate(ctx context.Context, rows iter.Seq2[model.SensorRow, error]) iter.Seq2[model.Outcome, error] {
	return func(yield func(model.Outcome, error) bool) {
		for row, err := range rows {
			if err != nil {
				yield(model.Outcome{}, err)
				return
			}
			if err := ctx.Err(); err != nil {
				yield(model.Outcome{}, err)
				return
			}
			out, err := e.Process(row)
			if err != nil {
				yield(model.Outcome{}, err)
				return
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

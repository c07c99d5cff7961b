// Package multi fans one outcome out to several outputs.
package multi

import (
	"context"
	"errors"
	"fmt"

	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
)

// Multi writes each outcome to every wrapped output in order. A failing
// output does not stop delivery to the ones after it.
type Multi struct {
	outputs []output.Output
}

// New wraps outputs. Nil entries are skipped so optional outputs can be
// passed unconditionally.
func New(outputs ...output.Output) *Multi {
	m := &Multi{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Len returns the number of wrapped outputs.
func (m *Multi) Len() int { return len(m.outputs) }

// Write delivers o to every output and joins their errors, each tagged
// with the failing output's type.
func (m *Multi) Write(ctx context.Context, o model.Outcome) error {
	return m.each(func(out output.Output) error { return out.Write(ctx, o) })
}

// Close closes every output, joining their errors.
func (m *Multi) Close() error {
	return m.each(output.Output.Close)
}

func (m *Multi) each(f func(output.Output) error) error {
	var errs []error
	for _, out := range m.outputs {
		if err := f(out); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", out, err))
		}
	}
	return errors.Join(errs...)
}

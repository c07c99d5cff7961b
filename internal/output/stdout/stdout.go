package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
)

// Output prints per-row status to stdout: a human-readable line by default,
// or one NDJSON status event per row.
type Output struct {
	w    io.Writer
	enc  *json.Encoder
	json bool
}

// New creates a stdout Output. With asJSON set, each row is written as a
// model.Status object; pretty indents it.
func New(asJSON, pretty bool) *Output {
	return NewWriter(os.Stdout, asJSON, pretty)
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, asJSON, pretty bool) *Output {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Output{w: w, enc: enc, json: asJSON}
}

func (o *Output) Write(_ context.Context, oc model.Outcome) error {
	s := model.StatusOf(oc)
	if o.json {
		if err := o.enc.Encode(s); err != nil {
			return fmt.Errorf("stdout output: %w", err)
		}
		return nil
	}
	mark := "[ OK ]"
	if oc.Label == model.Failure {
		mark = "[FAIL]"
	}
	if _, err := fmt.Fprintf(o.w, "%s %s\n", mark, s.Message); err != nil {
		return fmt.Errorf("stdout output: %w", err)
	}
	return nil
}

func (o *Output) Close() error {
	return nil
}

var _ output.Output = (*Output)(nil)

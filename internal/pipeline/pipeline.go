package pipeline

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
)

// DefaultDelay is the pause before each row, simulating a live stream.
const DefaultDelay = 500 * time.Millisecond

// Evaluator turns rows into outcomes lazily.
type Evaluator interface {
	Evaluate(ctx context.Context, rows iter.Seq2[model.SensorRow, error]) iter.Seq2[model.Outcome, error]
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDelay sets the pause before each row. Zero replays as fast as the
// predictor allows.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// WithLogger sets the logger used for run diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// Summary describes a finished (or interrupted) replay.
type Summary struct {
	Source       string
	Rows         int
	Failures     int
	FirstFailure int // row index, 0 when no row failed
	Missing      []string
	Elapsed      time.Duration
}

// Normals returns the number of rows classified as normal.
func (s Summary) Normals() int { return s.Rows - s.Failures }

// Pipeline replays a dataset through an evaluator into an output.
type Pipeline struct {
	eval  Evaluator
	out   output.Output
	delay time.Duration
	log   *slog.Logger
}

// New creates a Pipeline from the given components.
func New(eval Evaluator, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		eval:  eval,
		out:   out,
		delay: DefaultDelay,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Replay processes every row of ds in order. Each outcome is fully written
// to the output before the next row is read. The context is checked once per
// row; on cancellation Replay returns ctx.Err() with the summary of the rows
// already written.
func (p *Pipeline) Replay(ctx context.Context, ds *dataset.Dataset) (Summary, error) {
	log := p.log.With("component", "pipeline", "source", ds.Name)
	sum := Summary{Source: ds.Name, Missing: ds.Missing()}
	start := time.Now()

	switch len(sum.Missing) {
	case 0:
	case 3:
		log.Warn("no recognized sensor columns; every row will use the bound minimums",
			"header", ds.Header)
	default:
		log.Warn("sensor columns missing; defaulting to bound minimum", "missing", sum.Missing)
	}

	log.Info("replay started", "rows", ds.Len(), "delay", p.delay)

	next, stop := iter.Pull2(p.eval.Evaluate(ctx, ds.Rows()))
	defer stop()

	for {
		if err := p.pace(ctx); err != nil {
			log.Info("replay cancelled", "processed", sum.Rows)
			return p.finish(sum, start), err
		}
		out, err, ok := next()
		if !ok {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info("replay cancelled", "processed", sum.Rows)
			}
			return p.finish(sum, start), fmt.Errorf("pipeline replay: %w", err)
		}
		// A row that was evaluated is recorded everywhere, even if ctx ends
		// during the write.
		if err := p.out.Write(context.WithoutCancel(ctx), out); err != nil {
			return p.finish(sum, start), fmt.Errorf("pipeline output: row %d: %w", out.Row.Index, err)
		}

		sum.Rows++
		if out.Label == model.Failure {
			sum.Failures++
			if sum.FirstFailure == 0 {
				sum.FirstFailure = out.Row.Index
			}
			log.Debug("failure detected", "row", out.Row.Index)
		}
	}

	sum = p.finish(sum, start)
	log.Info("replay completed", "rows", sum.Rows, "failures", sum.Failures, "elapsed", sum.Elapsed)
	return sum, nil
}

// Close shuts down the output.
func (p *Pipeline) Close() error {
	return p.out.Close()
}

func (p *Pipeline) finish(sum Summary, start time.Time) Summary {
	sum.Elapsed = time.Since(start)
	return sum
}

// pace waits the configured delay, returning early with ctx.Err() when the
// context ends first.
func (p *Pipeline) pace(ctx context.Context) error {
	if p.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

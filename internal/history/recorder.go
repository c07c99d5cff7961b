package history

import (
	"context"

	"github.com/crimson-sun/machwatch/internal/model"
)

// Recorder is an output.Output that stores each outcome under one run.
// Finish must be called with the run's final status; Close alone marks the
// run completed.
type Recorder struct {
	store    *Store
	runID    string
	finished bool
}

// NewRecorder begins a run in store.
func NewRecorder(ctx context.Context, store *Store, source, modelName string) (*Recorder, error) {
	id, err := store.BeginRun(ctx, source, modelName)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: store, runID: id}, nil
}

// RunID returns the id of the run being recorded.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) Write(ctx context.Context, o model.Outcome) error {
	return r.store.RecordOutcome(ctx, r.runID, o)
}

// Finish marks the run with status ("completed", "cancelled", "failed").
func (r *Recorder) Finish(status string) error {
	r.finished = true
	return r.store.FinishRun(context.Background(), r.runID, status)
}

// Close finishes the run as completed unless Finish was already called.
func (r *Recorder) Close() error {
	if r.finished {
		return nil
	}
	return r.Finish("completed")
}

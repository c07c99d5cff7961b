package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/machwatch/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testOutcome(idx int, label model.Label) model.Outcome {
	return model.Outcome{
		Row:       model.SensorRow{Index: idx, Temperature: 90, RotationalSpeed: 2250, Torque: 39},
		Label:     label,
		Timestamp: time.Date(2026, 10, 19, 12, 0, idx, 0, time.UTC),
	}
}

func TestRecorderRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, err := NewRecorder(ctx, s, "data/sensors.csv", "edge_model.onnx")
	if err != nil {
		t.Fatalf("NewRecorder error: %v", err)
	}
	want := []model.Outcome{
		testOutcome(1, model.Normal),
		testOutcome(2, model.Failure),
		testOutcome(3, model.Normal),
	}
	for _, o := range want {
		if err := rec.Write(ctx, o); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got, err := s.Outcomes(ctx, rec.RunID())
	if err != nil {
		t.Fatalf("Outcomes error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("outcomes mismatch (-want +got):\n%s", diff)
	}

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	r := runs[0]
	if r.ID != rec.RunID() || r.Rows != 3 || r.Failures != 1 || r.Status != "completed" {
		t.Errorf("run = %+v", r)
	}
	if r.FinishedAt.IsZero() {
		t.Error("FinishedAt not set")
	}
}

func TestFinishCancelledNotOverwrittenByClose(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, _ := NewRecorder(ctx, s, "x.csv", "m.yaml")
	rec.Write(ctx, testOutcome(1, model.Normal))
	if err := rec.Finish("cancelled"); err != nil {
		t.Fatalf("Finish error: %v", err)
	}
	rec.Close()

	runs, _ := s.Runs(ctx, 1)
	if runs[0].Status != "cancelled" {
		t.Errorf("status = %q, want cancelled", runs[0].Status)
	}
}

func TestDuplicateRowRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	rec, _ := NewRecorder(ctx, s, "x.csv", "m.yaml")
	if err := rec.Write(ctx, testOutcome(1, model.Normal)); err != nil {
		t.Fatalf("first Write error: %v", err)
	}
	if err := rec.Write(ctx, testOutcome(1, model.Normal)); err == nil {
		t.Fatal("expected error for duplicate row index")
	}
}

func TestRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first, _ := NewRecorder(ctx, s, "a.csv", "m")
	first.Close()
	time.Sleep(2 * time.Millisecond)
	second, _ := NewRecorder(ctx, s, "b.csv", "m")
	second.Close()

	runs, err := s.Runs(ctx, 10)
	if err != nil {
		t.Fatalf("Runs error: %v", err)
	}
	if len(runs) != 2 || runs[0].Source != "b.csv" {
		t.Fatalf("runs = %+v, want b.csv first", runs)
	}
}

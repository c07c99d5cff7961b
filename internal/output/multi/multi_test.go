package multi

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/machwatch/internal/model"
)

// spy records the rows it receives.
type spy struct {
	rows   []int
	closed bool
	err    error
}

func (s *spy) Write(_ context.Context, o model.Outcome) error {
	s.rows = append(s.rows, o.Row.Index)
	return s.err
}

func (s *spy) Close() error {
	s.closed = true
	return s.err
}

func failureAt(row int) model.Outcome {
	return model.Outcome{Row: model.SensorRow{Index: row}, Label: model.Failure}
}

func TestEveryOutputSeesEveryRow(t *testing.T) {
	status, log, chart := &spy{}, &spy{}, &spy{}
	m := New(status, log, chart)

	for row := 1; row <= 3; row++ {
		if err := m.Write(context.Background(), failureAt(row)); err != nil {
			t.Fatalf("Write(row %d): %v", row, err)
		}
	}
	for name, s := range map[string]*spy{"status": status, "log": log, "chart": chart} {
		if diff := cmp.Diff([]int{1, 2, 3}, s.rows); diff != "" {
			t.Errorf("%s rows mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestFailingOutputDoesNotBlockOthers(t *testing.T) {
	diskFull := errors.New("disk full")
	broken, healthy := &spy{err: diskFull}, &spy{}
	m := New(broken, healthy)

	err := m.Write(context.Background(), failureAt(4))
	if !errors.Is(err, diskFull) {
		t.Fatalf("Write error = %v, want disk full", err)
	}
	if !strings.Contains(err.Error(), "*multi.spy") {
		t.Errorf("error %q does not name the failing output", err)
	}
	if diff := cmp.Diff([]int{4}, healthy.rows); diff != "" {
		t.Errorf("healthy rows mismatch (-want +got):\n%s", diff)
	}
}

func TestNilOutputsSkipped(t *testing.T) {
	s := &spy{}
	m := New(nil, s, nil)
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if err := m.Write(context.Background(), failureAt(1)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCloseReachesAllAndJoins(t *testing.T) {
	errA, errB := errors.New("a"), errors.New("b")
	a, b, c := &spy{err: errA}, &spy{err: errB}, &spy{}

	err := New(a, b, c).Close()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Close error = %v, want both joined", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Errorf("closed = %v %v %v, want all true", a.closed, b.closed, c.closed)
	}
}

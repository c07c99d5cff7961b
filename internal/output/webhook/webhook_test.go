package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/crimson-sun/machwatch/internal/model"
)

func outcomeAt(row int, label model.Label) model.Outcome {
	return model.Outcome{
		Row:       model.SensorRow{Index: row, Temperature: 102.4, RotationalSpeed: 1210, Torque: 68.1},
		Label:     label,
		Timestamp: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	}
}

// inbox is a webhook receiver that keeps every decoded alert.
type inbox struct {
	mu     sync.Mutex
	alerts []Alert
	header http.Header
}

func newInbox(t *testing.T) (*inbox, *httptest.Server) {
	t.Helper()
	in := &inbox{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var a Alert
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		in.mu.Lock()
		in.alerts = append(in.alerts, a)
		in.header = r.Header.Clone()
		in.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return in, srv
}

func (in *inbox) received() []Alert {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]Alert(nil), in.alerts...)
}

func rowsOf(a Alert) []int {
	var rows []int
	for _, s := range a.Rows {
		rows = append(rows, s.Row)
	}
	return rows
}

func TestFullBatchSendsAlert(t *testing.T) {
	in, srv := newInbox(t)
	out := New(srv.URL, WithBatchSize(3), WithFlushInterval(time.Minute), WithSource("sensors.csv"))

	for _, row := range []int{5, 8, 11} {
		if err := out.Write(context.Background(), outcomeAt(row, model.Failure)); err != nil {
			t.Fatalf("Write(row %d): %v", row, err)
		}
	}

	got := in.received()
	if len(got) != 1 {
		t.Fatalf("alerts = %d, want 1", len(got))
	}
	a := got[0]
	if a.Title != "FAILURE Detected!" || a.Source != "sensors.csv" || a.Failures != 3 {
		t.Errorf("alert envelope = %q/%q/%d", a.Title, a.Source, a.Failures)
	}
	if diff := cmp.Diff([]int{5, 8, 11}, rowsOf(a)); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if a.Rows[0].Message != "Failure detected at row 5 — ALERT!" {
		t.Errorf("first message = %q", a.Rows[0].Message)
	}
	if a.SentAt.IsZero() {
		t.Error("sent_at not set")
	}
}

func TestRowSelection(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		labels    []model.Label
		wantRows  []int
		wantTitle string
	}{
		{
			name:   "normal rows are not alerts",
			labels: []model.Label{model.Normal, model.Normal},
		},
		{
			name:      "failures only",
			labels:    []model.Label{model.Normal, model.Failure, model.Normal},
			wantRows:  []int{2},
			wantTitle: "FAILURE Detected!",
		},
		{
			name:      "all rows without failure",
			opts:      []Option{WithAllRows()},
			labels:    []model.Label{model.Normal, model.Normal},
			wantRows:  []int{1, 2},
			wantTitle: "Status update",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, srv := newInbox(t)
			out := New(srv.URL, append([]Option{WithBatchSize(50)}, tt.opts...)...)
			for i, l := range tt.labels {
				out.Write(context.Background(), outcomeAt(i+1, l))
			}
			if err := out.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			got := in.received()
			if tt.wantRows == nil {
				if len(got) != 0 {
					t.Fatalf("alerts = %d, want none", len(got))
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("alerts = %d, want 1", len(got))
			}
			if got[0].Title != tt.wantTitle {
				t.Errorf("title = %q, want %q", got[0].Title, tt.wantTitle)
			}
			if diff := cmp.Diff(tt.wantRows, rowsOf(got[0])); diff != "" {
				t.Errorf("rows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFlushIntervalSendsPartialBatch(t *testing.T) {
	in, srv := newInbox(t)
	out := New(srv.URL, WithBatchSize(100), WithFlushInterval(50*time.Millisecond))
	out.Write(context.Background(), outcomeAt(4, model.Failure))

	deadline := time.Now().Add(2 * time.Second)
	for len(in.received()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := in.received()
	if len(got) != 1 || len(got[0].Rows) != 1 {
		t.Fatalf("alerts = %+v, want one alert with one row", got)
	}
}

func TestDeliveryStatusHandling(t *testing.T) {
	tests := []struct {
		name         string
		codes        []int // response per attempt; the last repeats
		wantAttempts int64
		wantErr      bool
	}{
		{"ok", []int{200}, 1, false},
		{"5xx then ok", []int{500, 503, 200}, 3, false},
		{"429 then ok", []int{429, 200}, 2, false},
		{"4xx is final", []int{400}, 1, true},
		{"gives up after retries", []int{502}, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var attempts atomic.Int64
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(attempts.Add(1))
				w.WriteHeader(tt.codes[min(n, len(tt.codes))-1])
			}))
			defer srv.Close()

			out := New(srv.URL, WithBatchSize(1), WithBackoff(5*time.Millisecond), WithMaxRetries(2))
			err := out.Write(context.Background(), outcomeAt(1, model.Failure))
			if (err != nil) != tt.wantErr {
				t.Errorf("Write error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := attempts.Load(); got != tt.wantAttempts {
				t.Errorf("attempts = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	out := New(srv.URL, WithBatchSize(1), WithBackoff(time.Hour))
	start := time.Now()
	if err := out.Write(ctx, outcomeAt(1, model.Failure)); err == nil {
		t.Fatal("expected error after cancel")
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff wait was not interrupted")
	}
}

func TestHeadersSent(t *testing.T) {
	in, srv := newInbox(t)
	out := New(srv.URL, WithBatchSize(1), WithHeaders(map[string]string{"X-Api-Key": "k-123"}))
	out.Write(context.Background(), outcomeAt(1, model.Failure))

	in.mu.Lock()
	defer in.mu.Unlock()
	if got := in.header.Get("X-Api-Key"); got != "k-123" {
		t.Errorf("X-Api-Key = %q", got)
	}
	if got := in.header.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestTimerErrorGoesToCallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	errs := make(chan error, 1)
	out := New(srv.URL,
		WithBatchSize(100),
		WithFlushInterval(20*time.Millisecond),
		WithOnError(func(err error) { errs <- err }),
	)
	out.Write(context.Background(), outcomeAt(1, model.Failure))

	select {
	case err := <-errs:
		if err == nil {
			t.Error("callback got nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not invoked")
	}
	if err := out.Close(); err != nil {
		t.Errorf("Close after timer flush: %v", err)
	}
}

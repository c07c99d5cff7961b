package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/machwatch/internal/dataset"
	"github.com/crimson-sun/machwatch/internal/engine/sample"
)

func sampleHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Write(sample.Bytes())
}

func TestLoadOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(sampleHandler))
	defer srv.Close()

	loc := srv.URL + "/data/sensors.csv"
	ds, err := dataset.Load(context.Background(), dataset.SourceConfig{}, loc, dataset.Options{})
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if ds.Len() != sample.Rows {
		t.Errorf("Len = %d, want %d", ds.Len(), sample.Rows)
	}
	if ds.Name != loc {
		t.Errorf("Name = %q", ds.Name)
	}
}

func TestBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		sampleHandler(w, r)
	}))
	defer srv.Close()

	rc, err := New().Open(context.Background(), dataset.SourceConfig{Token: "secret-token-123"}, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if gotAuth != "Bearer secret-token-123" {
		t.Fatalf("expected 'Bearer secret-token-123', got %q", gotAuth)
	}
}

func TestNoTokenNoAuthHeader(t *testing.T) {
	var sawAuth bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawAuth = r.Header["Authorization"]
		sampleHandler(w, r)
	}))
	defer srv.Close()

	rc, err := New().Open(context.Background(), dataset.SourceConfig{}, srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	rc.Close()
	if sawAuth {
		t.Error("Authorization header sent without a token")
	}
}

func TestStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`no such dataset`))
	}))
	defer srv.Close()

	_, err := New().Open(context.Background(), dataset.SourceConfig{}, srv.URL+"/missing.csv")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected *StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != 404 || statusErr.Body != "no such dataset" {
		t.Fatalf("unexpected error: %+v", statusErr)
	}
}

func TestRetryAfter(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		sampleHandler(w, r)
	}))
	defer srv.Close()

	start := time.Now()
	rc, err := New(WithBaseDelay(time.Millisecond)).Open(context.Background(), dataset.SourceConfig{}, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc.Close()
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Fatalf("expected ~1s Retry-After delay, got %v", elapsed)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestRetryOn5xx(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		sampleHandler(w, r)
	}))
	defer srv.Close()

	rc, err := New(WithBaseDelay(time.Millisecond)).Open(context.Background(), dataset.SourceConfig{}, srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rc.Close()
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestMaxRetriesExceeded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(WithBaseDelay(time.Millisecond), WithMaxRetries(2)).Open(context.Background(), dataset.SourceConfig{}, srv.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502 StatusError, got %v", err)
	}
	// 1 initial + 2 retries
	if calls.Load() != 3 {
		t.Fatalf("expected 3 calls, got %d", calls.Load())
	}
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(WithBaseDelay(time.Hour)).Open(ctx, dataset.SourceConfig{}, srv.URL)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestRegisteredSchemes(t *testing.T) {
	for _, scheme := range []string{"http", "https"} {
		if _, err := dataset.Get(scheme); err != nil {
			t.Errorf("scheme %q not registered: %v", scheme, err)
		}
	}
}

// Package web reads datasets over HTTP(S) (http://host/path.csv), with
// optional bearer auth and retries on throttling and server errors.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/crimson-sun/machwatch/internal/dataset"
)

func init() {
	ctor := func() dataset.Source { return New() }
	dataset.Register("http", ctor)
	dataset.Register("https", ctor)
}

const (
	defaultMaxRetries = 3
	defaultBaseDelay  = time.Second
)

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string // first 512 bytes
	retryAfter string // Retry-After header value for 429s
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures a Source.
type Option func(*Source)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Source) { s.client.Timeout = d }
}

// WithBaseDelay sets the first retry delay; later retries double it.
// Default: 1s.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Source) { s.baseDelay = d }
}

// WithMaxRetries sets how many times a throttled or failed request is
// retried. Default: 3.
func WithMaxRetries(n int) Option {
	return func(s *Source) { s.maxRetries = n }
}

// Source downloads datasets with GET requests.
type Source struct {
	client     *http.Client
	baseDelay  time.Duration
	maxRetries int
}

// New creates a Source.
func New(opts ...Option) *Source {
	s := &Source{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseDelay:  defaultBaseDelay,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open fetches location and returns the response body. Non-2xx responses
// come back as *StatusError. 429 (honoring Retry-After) and 5xx are retried
// with exponential backoff.
func (s *Source) Open(ctx context.Context, cfg dataset.SourceConfig, location string) (io.ReadCloser, error) {
	var lastErr *StatusError
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(s.backoffDelay(attempt, lastErr))
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("web source: %w", err)
		}
		if cfg.Token != "" {
			req.Header.Set("Authorization", "Bearer "+cfg.Token)
		}
		req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.5")

		resp, err := s.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("web source: %w", err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Body, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}

		if resp.StatusCode == http.StatusTooManyRequests {
			statusErr.retryAfter = resp.Header.Get("Retry-After")
			lastErr = statusErr
			continue
		}
		if resp.StatusCode >= 500 {
			lastErr = statusErr
			continue
		}
		return nil, statusErr
	}
	return nil, lastErr
}

// backoffDelay returns the wait before a retry attempt.
func (s *Source) backoffDelay(attempt int, lastErr *StatusError) time.Duration {
	if lastErr != nil && lastErr.StatusCode == http.StatusTooManyRequests && lastErr.retryAfter != "" {
		if secs, err := strconv.Atoi(lastErr.retryAfter); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return s.baseDelay << (attempt - 1)
}

// Package webhook posts failure alerts to an HTTP endpoint, the headless
// counterpart of the dashboard's "FAILURE Detected!" toast.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/crimson-sun/machwatch/internal/model"
)

const (
	defaultBatchSize     = 10
	defaultFlushInterval = 2 * time.Second
	defaultTimeout       = 10 * time.Second
	defaultBackoff       = time.Second
	defaultMaxRetries    = 3
)

// Alert is the JSON body of one POST.
type Alert struct {
	Title    string         `json:"title"`
	Source   string         `json:"source,omitempty"`
	Failures int            `json:"failures"`
	Rows     []model.Status `json:"rows"`
	SentAt   time.Time      `json:"sent_at"`
}

// Option configures a webhook Output.
type Option func(*Output)

// WithSource names the dataset in every alert.
func WithSource(name string) Option {
	return func(o *Output) { o.source = name }
}

// WithHeaders sets extra HTTP headers, e.g. an API key.
func WithHeaders(h map[string]string) Option {
	return func(o *Output) { o.headers = h }
}

// WithBatchSize sets how many rows are sent per alert. Default: 10.
func WithBatchSize(n int) Option {
	return func(o *Output) { o.batchSize = n }
}

// WithFlushInterval sets how long a queued row may wait before it is sent
// in a partial batch. Default: 2s.
func WithFlushInterval(d time.Duration) Option {
	return func(o *Output) { o.flushInterval = d }
}

// WithTimeout sets the HTTP client timeout. Default: 10s.
func WithTimeout(d time.Duration) Option {
	return func(o *Output) { o.client.Timeout = d }
}

// WithBackoff sets the first retry delay; later retries double it. Default: 1s.
func WithBackoff(d time.Duration) Option {
	return func(o *Output) { o.backoff = d }
}

// WithMaxRetries sets how often a 429 or 5xx delivery is retried. Default: 3.
func WithMaxRetries(n int) Option {
	return func(o *Output) { o.maxRetries = n }
}

// WithAllRows reports every row instead of failures only.
func WithAllRows() Option {
	return func(o *Output) { o.allRows = true }
}

// WithOnError sets the callback for failed timer-driven deliveries.
// Default: a slog warning.
func WithOnError(f func(error)) Option {
	return func(o *Output) { o.errFunc = f }
}

// Output queues failure rows and delivers them as Alerts. A batch is sent
// when it is full or when its oldest row has waited flushInterval.
type Output struct {
	client        *http.Client
	url           string
	source        string
	headers       map[string]string
	batchSize     int
	flushInterval time.Duration
	backoff       time.Duration
	maxRetries    int
	allRows       bool
	errFunc       func(error)

	mu    sync.Mutex
	queue []model.Status
	timer *time.Timer
}

// New creates a webhook output targeting url.
func New(url string, opts ...Option) *Output {
	o := &Output{
		client:        &http.Client{Timeout: defaultTimeout},
		url:           url,
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		backoff:       defaultBackoff,
		maxRetries:    defaultMaxRetries,
		errFunc:       func(err error) { slog.Warn("webhook delivery failed", "error", err) },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Write queues oc when it is a failure (or always, with WithAllRows).
func (o *Output) Write(ctx context.Context, oc model.Outcome) error {
	if oc.Label != model.Failure && !o.allRows {
		return nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.queue = append(o.queue, model.StatusOf(oc))
	switch {
	case len(o.queue) >= o.batchSize:
		return o.sendLocked(ctx)
	case o.timer == nil:
		o.timer = time.AfterFunc(o.flushInterval, o.flushOnTimer)
	}
	return nil
}

func (o *Output) flushOnTimer() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.sendLocked(context.Background()); err != nil {
		o.errFunc(err)
	}
}

// Close sends whatever is still queued.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sendLocked(context.Background())
}

// sendLocked delivers the queue as one Alert. Caller holds o.mu.
func (o *Output) sendLocked(ctx context.Context) error {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
	if len(o.queue) == 0 {
		return nil
	}
	rows := o.queue
	o.queue = nil

	alert := Alert{
		Title:  "Status update",
		Source: o.source,
		Rows:   rows,
		SentAt: time.Now().UTC(),
	}
	for _, r := range rows {
		if r.Label == int(model.Failure) {
			alert.Failures++
		}
	}
	if alert.Failures > 0 {
		alert.Title = "FAILURE Detected!"
	}

	body, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}
	return o.deliver(ctx, body)
}

// deliver POSTs body, retrying 429 and 5xx responses with exponential
// backoff (or the server's Retry-After).
func (o *Output) deliver(ctx context.Context, body []byte) error {
	var lastErr error
	wait := o.backoff
	for attempt := 0; attempt <= o.maxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("webhook: %w", ctx.Err())
			case <-t.C:
			}
			wait *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range o.headers {
			req.Header.Set(k, v)
		}

		resp, err := o.client.Do(req)
		if err != nil {
			return fmt.Errorf("webhook: %w", err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode == http.StatusTooManyRequests:
			if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		case resp.StatusCode < 500:
			return fmt.Errorf("webhook: HTTP %d", resp.StatusCode)
		}
		lastErr = fmt.Errorf("webhook: HTTP %d after %d attempts", resp.StatusCode, attempt+1)
	}
	return lastErr
}

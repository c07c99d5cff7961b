// Package file implements the run log: an append-only text file with one
// line per processed row.
package file

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/crimson-sun/machwatch/internal/model"
	"github.com/crimson-sun/machwatch/internal/output"
)

const (
	defaultBufSize = 4 * 1024
	defaultBackups = 3
)

// Option configures a file Output.
type Option func(*Output)

// WithMaxSize rotates the log once appending a line would grow it past
// bytes. Zero, the default, never rotates.
func WithMaxSize(bytes int64) Option {
	return func(o *Output) { o.maxSize = bytes }
}

// WithBackups sets how many rotated logs (path.1 ... path.n) are kept.
// Default: 3.
func WithBackups(n int) Option {
	return func(o *Output) { o.backups = n }
}

// WithBufSize sets the write buffer size. Default: 4KB.
func WithBufSize(bytes int) Option {
	return func(o *Output) { o.bufSize = bytes }
}

// WithSync flushes every line as soon as it is written, so the log viewer
// sees rows while a replay is still running.
func WithSync() Option {
	return func(o *Output) { o.sync = true }
}

// Output appends log lines to a file. Runs accumulate; the file is never
// truncated.
type Output struct {
	path    string
	maxSize int64
	backups int
	bufSize int
	sync    bool

	mu    sync.Mutex
	f     *os.File
	buf   *bufio.Writer
	size  int64 // bytes in the current file, buffered included
	lines int
}

// New opens path for appending, creating it and its directory if needed.
func New(path string, opts ...Option) (*Output, error) {
	o := &Output{path: path, backups: defaultBackups, bufSize: defaultBufSize}
	for _, opt := range opts {
		opt(o)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file output: %w", err)
		}
	}
	if err := o.open(); err != nil {
		return nil, err
	}
	return o, nil
}

// Path returns the log file location.
func (o *Output) Path() string { return o.path }

// Lines reports how many lines this Output has written.
func (o *Output) Lines() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lines
}

// Write appends the log line for oc.
func (o *Output) Write(_ context.Context, oc model.Outcome) error {
	line := output.LogLine(oc) + "\n"

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.maxSize > 0 && o.size > 0 && o.size+int64(len(line)) > o.maxSize {
		if err := o.rotate(); err != nil {
			return fmt.Errorf("file output: rotate %s: %w", o.path, err)
		}
	}
	n, err := o.buf.WriteString(line)
	o.size += int64(n)
	if err != nil {
		return fmt.Errorf("file output: write %s: %w", o.path, err)
	}
	o.lines++
	if o.sync {
		return o.flush()
	}
	return nil
}

// Close flushes buffered lines and closes the file.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	ferr := o.flush()
	if err := o.f.Close(); err != nil && ferr == nil {
		return fmt.Errorf("file output: close %s: %w", o.path, err)
	}
	return ferr
}

func (o *Output) flush() error {
	if err := o.buf.Flush(); err != nil {
		return fmt.Errorf("file output: flush %s: %w", o.path, err)
	}
	return nil
}

func (o *Output) open() error {
	f, err := os.OpenFile(o.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("file output: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file output: %w", err)
	}
	o.f, o.size = f, info.Size()
	o.buf = bufio.NewWriterSize(f, o.bufSize)
	return nil
}

func (o *Output) backup(i int) string { return o.path + "." + strconv.Itoa(i) }

// rotate moves the current log to path.1, shifting older backups up and
// discarding the one past the limit, then starts a fresh file.
func (o *Output) rotate() error {
	if err := o.flush(); err != nil {
		return err
	}
	if err := o.f.Close(); err != nil {
		return err
	}
	if o.backups < 1 {
		if err := os.Remove(o.path); err != nil {
			return err
		}
		return o.open()
	}
	os.Remove(o.backup(o.backups))
	for i := o.backups - 1; i >= 1; i-- {
		if err := os.Rename(o.backup(i), o.backup(i+1)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	if err := os.Rename(o.path, o.backup(1)); err != nil {
		return err
	}
	return o.open()
}

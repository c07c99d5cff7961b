package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

// ErrUnknownSource is returned when a location's scheme has no registered Source.
var ErrUnknownSource = errors.New("dataset: unknown source")

// Source opens a dataset location for reading.
type Source interface {
	Open(ctx context.Context, cfg SourceConfig, location string) (io.ReadCloser, error)
}

// SourceConfig holds settings for remote sources.
type SourceConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Secure    bool
	Token     string // bearer token for http(s) sources
}

// Constructor is a function that creates a new Source instance.
type Constructor func() Source

var registry = map[string]Constructor{}

// Register adds a source constructor under the given scheme.
func Register(scheme string, ctor Constructor) {
	registry[scheme] = ctor
}

// Get returns the source constructor for the given scheme.
func Get(scheme string) (Constructor, error) {
	ctor, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, scheme)
	}
	return ctor, nil
}

// Schemes returns the registered schemes in sorted order.
func Schemes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SchemeOf returns the scheme of a location; plain paths are "file".
func SchemeOf(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return "file"
}

// Load opens location through its registered Source and parses it.
func Load(ctx context.Context, cfg SourceConfig, location string, opts Options) (*Dataset, error) {
	ctor, err := Get(SchemeOf(location))
	if err != nil {
		return nil, err
	}
	rc, err := ctor().Open(ctx, cfg, location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	ds, err := Parse(rc, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	ds.Name = location
	return ds, nil
}

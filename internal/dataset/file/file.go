// Package file reads datasets from the local filesystem, or from stdin
// when the location is "-".
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/crimson-sun/machwatch/internal/dataset"
)

func init() {
	dataset.Register("file", func() dataset.Source { return &Source{Stdin: os.Stdin} })
}

// Source opens local files.
type Source struct {
	Stdin io.Reader
}

func (s *Source) Open(_ context.Context, _ dataset.SourceConfig, location string) (io.ReadCloser, error) {
	if location == "-" {
		return io.NopCloser(s.Stdin), nil
	}
	path := strings.TrimPrefix(location, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return f, nil
}

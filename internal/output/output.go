package output

import (
	"context"

	"github.com/crimson-sun/machwatch/internal/model"
)

// Output defines the interface for per-row outcome destinations.
type Output interface {
	Write(ctx context.Context, o model.Outcome) error
	Close() error
}

package ports

import (
	"context"
	"io"

	"github.com/bft-labs/stamper/internal/domain"
)

// EventSource yields events from upstream, one at a time.
type EventSource interface {
	// Next returns the next event.
	// Returns ErrEndOfStream when the upstream is exhausted.
	Next(ctx context.Context) (*domain.Event, error)

	// Close releases the underlying reader.
	Close() error
}

// ErrEndOfStream indicates that the source has no more events.
// It is io.EOF so that sources wrapping an io.Reader can pass it through.
var ErrEndOfStream = io.EOF

package ports

import (
	"context"

	"github.com/bft-labs/stamper/internal/domain"
)

// EventSink forwards annotated batches downstream.
type EventSink interface {
	// Write emits the batch in order. The sink must not retain the events
	// after returning.
	Write(ctx context.Context, events []*domain.Event) error

	// Close flushes and releases the underlying writer.
	Close() error
}

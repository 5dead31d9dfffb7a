package ports

import (
	"context"

	"github.com/bft-labs/stamper/internal/domain"
)

// StatusRepository handles progress persistence.
type StatusRepository interface {
	// Load returns the last saved status, or a zero status if none exists.
	Load(ctx context.Context) (domain.Status, error)

	// Save persists status atomically.
	Save(ctx context.Context, status domain.Status) error
}

package remote

import (
	"context"
	"errors"

	"github.com/shopez/cartsync/internal/domain"
)

var (
	ErrUnavailable = errors.New("remote store unavailable")
	ErrRead        = errors.New("remote read failed")
	ErrWrite       = errors.New("remote write failed")
)

// CancelFunc detaches a subscription. Calling it more than once is a no-op.
type CancelFunc func()

// Store is the authoritative cart store
// Consumers define this interface, not the MongoDB implementation
type Store interface {
	// Read returns the full cart, or an empty cart if none exists.
	Read(ctx context.Context, userID string) (domain.Cart, error)
	// Write replaces the full cart contents. Used by reconciliation only.
	Write(ctx context.Context, userID string, cart domain.Cart) error
	// UpsertEntry merges fields into the entry record, creating it if absent.
	UpsertEntry(ctx context.Context, userID, productID string, fields map[string]any) error
	// UpdateEntry merges fields into an existing entry only. An absent entry
	// is a no-op, no partial record is ever created.
	UpdateEntry(ctx context.Context, userID, productID string, fields map[string]any) error
	// DeleteEntry removes the entry. An absent entry is not an error.
	DeleteEntry(ctx context.Context, userID, productID string) error
	// Subscribe delivers the current cart immediately, then one full cart per
	// change under the user's path. The channel closes once the subscription
	// is detached.
	Subscribe(ctx context.Context, userID string) (<-chan domain.Cart, CancelFunc, error)
}

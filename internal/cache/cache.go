package cache

import (
	"context"
	"errors"

	"github.com/shopez/cartsync/internal/domain"
)

// Mirror is the local offline copy of a user's cart. It is a cache, not a
// source of truth: a missing or malformed mirror reads as an empty cart.
type Mirror interface {
	Read(ctx context.Context, userID string) (domain.Cart, error)
	Write(ctx context.Context, userID string, cart domain.Cart) error
	Clear(ctx context.Context, userID string) error
}

var ErrUnavailable = errors.New("local store unavailable")

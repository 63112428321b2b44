package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/shopez/cartsync/internal/domain"
)

const keyPrefix = "shopez_cart"

func NewRedisMirror(client *redis.Client) *RedisMirror {
	return &RedisMirror{client: client}
}

type RedisMirror struct {
	client *redis.Client
}

func (r *RedisMirror) Read(ctx context.Context, userID string) (domain.Cart, error) {
	data, err := r.client.Get(ctx, mirrorKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var entries map[string]domain.Entry
	if err2 := json.Unmarshal(data, &entries); err2 != nil {
		// Malformed mirror data is treated as empty, the remote cart is
		// authoritative and will repopulate it.
		log.Printf("mirror for %s is malformed, treating as empty: %v", userID, err2)
		return domain.NewCart(userID), nil
	}

	cart := domain.NewCart(userID)
	if entries != nil {
		cart.Entries = entries
	}
	return cart, nil
}

func (r *RedisMirror) Write(ctx context.Context, userID string, cart domain.Cart) error {
	entries := cart.Entries
	if entries == nil {
		entries = map[string]domain.Entry{}
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal mirror failed: %w", err)
	}

	// No TTL: the mirror has to survive until reconciliation consumes it.
	if errSet := r.client.Set(ctx, mirrorKey(userID), data, 0).Err(); errSet != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, errSet)
	}
	return nil
}

func (r *RedisMirror) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, mirrorKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func mirrorKey(userID string) string {
	return fmt.Sprintf("%s:%s", keyPrefix, userID)
}

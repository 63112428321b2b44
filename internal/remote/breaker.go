package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopez/cartsync/internal/domain"
	"github.com/sony/gobreaker/v2"
)

// breakerStore trips open after repeated remote failures so that a flapping
// store surfaces as unavailable instead of timing out every caller.
type breakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[domain.Cart]
}

func NewBreakerStore(next Store) Store {
	settings := gobreaker.Settings{
		Name:    "remote-cart-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &breakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[domain.Cart](settings),
	}
}

func (b *breakerStore) Read(ctx context.Context, userID string) (domain.Cart, error) {
	return b.execute(func() (domain.Cart, error) {
		return b.next.Read(ctx, userID)
	})
}

func (b *breakerStore) Write(ctx context.Context, userID string, cart domain.Cart) error {
	_, err := b.execute(func() (domain.Cart, error) {
		return domain.Cart{}, b.next.Write(ctx, userID, cart)
	})
	return err
}

func (b *breakerStore) UpsertEntry(ctx context.Context, userID, productID string, fields map[string]any) error {
	_, err := b.execute(func() (domain.Cart, error) {
		return domain.Cart{}, b.next.UpsertEntry(ctx, userID, productID, fields)
	})
	return err
}

func (b *breakerStore) UpdateEntry(ctx context.Context, userID, productID string, fields map[string]any) error {
	_, err := b.execute(func() (domain.Cart, error) {
		return domain.Cart{}, b.next.UpdateEntry(ctx, userID, productID, fields)
	})
	return err
}

func (b *breakerStore) DeleteEntry(ctx context.Context, userID, productID string) error {
	_, err := b.execute(func() (domain.Cart, error) {
		return domain.Cart{}, b.next.DeleteEntry(ctx, userID, productID)
	})
	return err
}

// Subscribe is not gated: the stream reconnects on its own and must not drop
// mid-flight because point operations tripped the breaker.
func (b *breakerStore) Subscribe(ctx context.Context, userID string) (<-chan domain.Cart, CancelFunc, error) {
	return b.next.Subscribe(ctx, userID)
}

func (b *breakerStore) execute(op func() (domain.Cart, error)) (domain.Cart, error) {
	cart, err := b.cb.Execute(op)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return cart, err
}

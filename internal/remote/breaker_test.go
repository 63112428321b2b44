package remote

import (
	"context"
	"errors"
	"testing"

	"github.com/shopez/cartsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	err   error
	calls int
}

func (f *flakyStore) Read(context.Context, string) (domain.Cart, error) {
	f.calls++
	if f.err != nil {
		return domain.Cart{}, f.err
	}
	return domain.NewCart("u1"), nil
}

func (f *flakyStore) Write(context.Context, string, domain.Cart) error {
	f.calls++
	return f.err
}

func (f *flakyStore) UpsertEntry(context.Context, string, string, map[string]any) error {
	f.calls++
	return f.err
}

func (f *flakyStore) UpdateEntry(context.Context, string, string, map[string]any) error {
	f.calls++
	return f.err
}

func (f *flakyStore) DeleteEntry(context.Context, string, string) error {
	f.calls++
	return f.err
}

func (f *flakyStore) Subscribe(context.Context, string) (<-chan domain.Cart, CancelFunc, error) {
	ch := make(chan domain.Cart)
	close(ch)
	return ch, func() {}, nil
}

func TestBreaker_PassesThroughWhenClosed(t *testing.T) {
	inner := &flakyStore{}
	sut := NewBreakerStore(inner)

	cart, err := sut.Read(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)

	require.NoError(t, sut.UpsertEntry(context.Background(), "u1", "42", map[string]any{"quantity": 1}))
	assert.Equal(t, 2, inner.calls)
}

func TestBreaker_SurfacesCauseBeforeTripping(t *testing.T) {
	inner := &flakyStore{err: ErrWrite}
	sut := NewBreakerStore(inner)

	err := sut.Write(context.Background(), "u1", domain.NewCart("u1"))
	require.ErrorIs(t, err, ErrWrite)
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyStore{err: ErrWrite}
	sut := NewBreakerStore(inner)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := sut.Write(ctx, "u1", domain.NewCart("u1"))
		require.Error(t, err)
	}
	callsBeforeOpen := inner.calls

	err := sut.Write(ctx, "u1", domain.NewCart("u1"))
	require.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, errors.Is(err, ErrWrite))
	assert.Equal(t, callsBeforeOpen, inner.calls, "open breaker must not reach the store")
}

func TestBreaker_SubscribeNotGated(t *testing.T) {
	inner := &flakyStore{err: ErrWrite}
	sut := NewBreakerStore(inner)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_ = sut.Write(ctx, "u1", domain.NewCart("u1"))
	}

	ch, cancel, err := sut.Subscribe(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, ch)
	cancel()
}

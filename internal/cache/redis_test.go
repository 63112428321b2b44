package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopez/cartsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisMirror instance
func setupTestRedis(t *testing.T) (*RedisMirror, *miniredis.Miniredis, func()) {
	// Create an in-memory Redis server
	mr := miniredis.RunT(t)

	// Create Redis client pointing to miniredis
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	mirror := NewRedisMirror(client)

	cleanup := func() {
		client.Close()
		mr.Close()
	}

	return mirror, mr, cleanup
}

func TestRead_Missing(t *testing.T) {
	mirror, _, cleanup := setupTestRedis(t)
	defer cleanup()

	cart, err := mirror.Read(context.Background(), "user123")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Equal(t, "user123", cart.UserID)
}

func TestWriteRead_Roundtrip(t *testing.T) {
	mirror, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cart := domain.NewCart("user123")
	cart.Entries["42"] = domain.Entry{
		Title:    "Shirt",
		Price:    20,
		Image:    "shirt.png",
		Category: "clothing",
		Quantity: 2,
		AddedAt:  time.Now().Truncate(time.Millisecond),
	}

	require.NoError(t, mirror.Write(ctx, "user123", cart))

	got, err := mirror.Read(ctx, "user123")
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, 2, got.Entries["42"].Quantity)
	assert.Equal(t, "Shirt", got.Entries["42"].Title)
	assert.Equal(t, 40.0, got.TotalPrice())
}

func TestRead_MalformedDataTreatedAsEmpty(t *testing.T) {
	mirror, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	mr.Set(mirrorKey("user123"), "{not json")

	cart, err := mirror.Read(context.Background(), "user123")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
}

func TestRead_StoredMap(t *testing.T) {
	mirror, mr, cleanup := setupTestRedis(t)
	defer cleanup()

	entries := map[string]domain.Entry{
		"7": {Title: "Mug", Price: 5, Quantity: 3},
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	mr.Set(mirrorKey("user123"), string(data))

	cart, errRead := mirror.Read(context.Background(), "user123")
	require.NoError(t, errRead)
	assert.Equal(t, 3, cart.Entries["7"].Quantity)
}

func TestClear(t *testing.T) {
	mirror, _, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cart := domain.NewCart("user123")
	cart.Entries["42"] = domain.Entry{Title: "Shirt", Quantity: 1}
	require.NoError(t, mirror.Write(ctx, "user123", cart))

	require.NoError(t, mirror.Clear(ctx, "user123"))

	got, err := mirror.Read(ctx, "user123")
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestWrite_Unavailable(t *testing.T) {
	mirror, mr, _ := setupTestRedis(t)
	mr.Close()

	err := mirror.Write(context.Background(), "user123", domain.NewCart("user123"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopez/cartsync/internal/cache"
	"github.com/shopez/cartsync/internal/domain"
	"github.com/shopez/cartsync/internal/remote"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrReconcile        = errors.New("reconciliation failed")
)

// SyncEngine keeps the remote cart and the local mirror aligned. Mutations go
// remote-first; the mirror write that follows is an optimistic echo and its
// failure never fails the mutation.
type SyncEngine struct {
	remote remote.Store
	mirror cache.Mirror
	sfg    singleflight.Group // Prevents duplicate concurrent reads for the same user
}

func NewSyncEngine(remoteStore remote.Store, mirror cache.Mirror) *SyncEngine {
	return &SyncEngine{
		remote: remoteStore,
		mirror: mirror,
	}
}

// AddItem increments the quantity of an existing entry by 1, or creates the
// entry with quantity 1 and the supplied product snapshot. The snapshot and
// added-at timestamp are captured on the first add only.
func (e *SyncEngine) AddItem(ctx context.Context, userID, productID string, snap domain.Snapshot) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	cart, err := e.remote.Read(ctx, userID)
	if err != nil {
		log.Printf("remote read error: %v", err)
		return err
	}

	existing, exists := cart.Entries[productID]
	var fields map[string]any
	if exists {
		fields = map[string]any{"quantity": existing.Quantity + 1}
	} else {
		fields = map[string]any{
			"title":    snap.Title,
			"price":    snap.Price,
			"image":    snap.Image,
			"category": snap.Category,
			"quantity": 1,
			"added_at": time.Now(),
		}
	}

	if errUpsert := e.remote.UpsertEntry(ctx, userID, productID, fields); errUpsert != nil {
		log.Printf("remote upsert error: %v", errUpsert)
		return errUpsert
	}

	e.echoMirror(ctx, userID, func(c *domain.Cart) {
		if exists {
			entry := c.Entries[productID]
			entry.Quantity = existing.Quantity + 1
			c.Entries[productID] = entry
		} else {
			c.Entries[productID] = domain.Entry{
				Title:    snap.Title,
				Price:    snap.Price,
				Image:    snap.Image,
				Category: snap.Category,
				Quantity: 1,
				AddedAt:  time.Now(),
			}
		}
	})
	return nil
}

// SetQuantity updates the quantity of an existing entry. A non-positive
// quantity removes the entry instead; an absent entry is left absent.
func (e *SyncEngine) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if userID == "" {
		return ErrNotAuthenticated
	}
	if quantity <= 0 {
		return e.RemoveItem(ctx, userID, productID)
	}

	if err := e.remote.UpdateEntry(ctx, userID, productID, map[string]any{"quantity": quantity}); err != nil {
		log.Printf("remote update error: %v", err)
		return err
	}

	e.echoMirror(ctx, userID, func(c *domain.Cart) {
		if entry, ok := c.Entries[productID]; ok {
			entry.Quantity = quantity
			c.Entries[productID] = entry
		}
	})
	return nil
}

// RemoveItem deletes the entry remotely and from the mirror. Removing an
// absent entry is not an error.
func (e *SyncEngine) RemoveItem(ctx context.Context, userID, productID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	if err := e.remote.DeleteEntry(ctx, userID, productID); err != nil {
		log.Printf("remote delete error: %v", err)
		return err
	}

	e.echoMirror(ctx, userID, func(c *domain.Cart) {
		delete(c.Entries, productID)
	})
	return nil
}

// GetCart reads the remote cart, falling back to the mirror when the remote
// store is unreachable (the offline read path).
func (e *SyncEngine) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	if userID == "" {
		return domain.NewCart(userID), nil
	}

	v, err, _ := e.sfg.Do(userID, func() (interface{}, error) {
		cart, errRead := e.remote.Read(ctx, userID)
		if errRead == nil {
			return cart, nil
		}
		log.Printf("remote read error, falling back to mirror: %v", errRead)

		mirrored, errMirror := e.mirror.Read(ctx, userID)
		if errMirror != nil {
			return nil, errRead // both stores down, report the authoritative one
		}
		return mirrored, nil
	})
	if err != nil {
		return domain.Cart{}, err
	}

	return v.(domain.Cart), nil
}

// ObserveCart delivers the current cart and then one full cart per remote
// change. Every delivered snapshot is echoed to the mirror, so the mirror
// converges on the remote state no matter how mutation echoes interleaved.
// The returned cancel detaches the remote listener; a second call is a no-op.
func (e *SyncEngine) ObserveCart(ctx context.Context, userID string) (<-chan domain.Cart, remote.CancelFunc, error) {
	if userID == "" {
		// No cart context: a single empty snapshot, open until cancelled.
		out := make(chan domain.Cart, 1)
		out <- domain.NewCart(userID)
		var once sync.Once
		cancel := func() { once.Do(func() { close(out) }) }
		return out, cancel, nil
	}

	sub, cancelSub, err := e.remote.Subscribe(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan domain.Cart, 1)
	done := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			cancelSub()
			close(done)
		})
	}

	go func() {
		defer close(out)
		for cart := range sub {
			if errWrite := e.mirror.Write(context.Background(), userID, cart); errWrite != nil {
				log.Printf("mirror write error: %v", errWrite)
			}
			select {
			case out <- cart:
			case <-done:
				return
			}
		}
	}()

	return out, cancel, nil
}

// Reconcile merges the mirror accumulated offline into the remote cart by
// full replace: the mirror's contents overwrite the remote cart, then the
// mirror is cleared. On failure the mirror is preserved so the merge can run
// again.
func (e *SyncEngine) Reconcile(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	mirrored, err := e.mirror.Read(ctx, userID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrReconcile, err)
	}
	if mirrored.IsEmpty() {
		return nil // nothing accumulated offline
	}

	current, errRead := e.remote.Read(ctx, userID)
	if errRead != nil {
		return fmt.Errorf("%w: %v", ErrReconcile, errRead)
	}
	dropped := 0
	for productID := range current.Entries {
		if _, ok := mirrored.Entries[productID]; !ok {
			dropped++
		}
	}
	if dropped > 0 {
		// Replace-wins: entries added from another device since the mirror
		// was captured are discarded.
		log.Printf("reconcile for %s discards %d remote entries", userID, dropped)
	}

	if errWrite := e.remote.Write(ctx, userID, mirrored); errWrite != nil {
		return fmt.Errorf("%w: %v", ErrReconcile, errWrite)
	}

	if errClear := e.mirror.Clear(ctx, userID); errClear != nil {
		log.Printf("mirror clear error: %v", errClear)
	}
	return nil
}

// echoMirror applies fn to the mirrored cart and writes it back. Mirror
// failures are logged and swallowed, the remote store is authoritative.
func (e *SyncEngine) echoMirror(ctx context.Context, userID string, fn func(*domain.Cart)) {
	cart, err := e.mirror.Read(ctx, userID)
	if err != nil {
		log.Printf("mirror read error: %v", err)
		return
	}

	fn(&cart)

	if errWrite := e.mirror.Write(ctx, userID, cart); errWrite != nil {
		log.Printf("mirror write error: %v", errWrite)
	}
}

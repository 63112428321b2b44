package remote

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/shopez/cartsync/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const subscribeBuffer = 8

type mongoStore struct {
	collection *mongo.Collection
}

func NewMongoStore(db *mongo.Database) Store {
	return &mongoStore{collection: db.Collection("carts")}
}

func (m *mongoStore) Read(ctx context.Context, userID string) (domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&cart)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// A cart that was never written to is an empty cart, not an error
		return domain.NewCart(userID), nil
	}
	if err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrRead, err)
	}

	if cart.Entries == nil {
		cart.Entries = map[string]domain.Entry{}
	}
	return cart, nil
}

func (m *mongoStore) Write(ctx context.Context, userID string, cart domain.Cart) error {
	cart.UserID = userID
	if cart.Entries == nil {
		cart.Entries = map[string]domain.Entry{}
	}

	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": userID}, cart, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return nil
}

func (m *mongoStore) UpsertEntry(ctx context.Context, userID, productID string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[entryField(productID, k)] = v
	}

	opts := options.Update().SetUpsert(true)
	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set}, opts)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return nil
}

func (m *mongoStore) UpdateEntry(ctx context.Context, userID, productID string, fields map[string]any) error {
	set := bson.M{}
	for k, v := range fields {
		set[entryField(productID, k)] = v
	}

	// Matched only when the entry already exists; updating an absent entry
	// must not create a partial record.
	filter := bson.M{
		"_id":                  userID,
		"entries." + productID: bson.M{"$exists": true},
	}
	_, err := m.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return nil
}

func (m *mongoStore) DeleteEntry(ctx context.Context, userID, productID string) error {
	update := bson.M{"$unset": bson.M{"entries." + productID: ""}}

	_, err := m.collection.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}

	return nil
}

func (m *mongoStore) Subscribe(ctx context.Context, userID string) (<-chan domain.Cart, CancelFunc, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"documentKey._id": userID}}},
	}

	// The stream outlives the subscribing call; detaching goes through the
	// returned CancelFunc, not the caller's context.
	streamCtx, stop := context.WithCancel(context.Background())
	stream, err := m.collection.Watch(streamCtx, pipeline)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	out := make(chan domain.Cart, subscribeBuffer)
	var once sync.Once
	cancel := func() { once.Do(stop) }

	go func() {
		defer close(out)
		defer func() {
			if errClose := stream.Close(context.Background()); errClose != nil {
				log.Printf("error closing change stream: %v", errClose)
			}
		}()

		if !m.emitSnapshot(streamCtx, userID, out) {
			return
		}
		for stream.Next(streamCtx) {
			if !m.emitSnapshot(streamCtx, userID, out) {
				return
			}
		}
	}()

	return out, cancel, nil
}

// emitSnapshot re-reads the full cart and pushes it to the subscriber.
// Returns false once the subscription is detached.
func (m *mongoStore) emitSnapshot(ctx context.Context, userID string, out chan<- domain.Cart) bool {
	cart, err := m.Read(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Printf("subscribe read error: %v", err)
		return true
	}

	select {
	case out <- cart:
		return true
	case <-ctx.Done():
		return false
	}
}

func entryField(productID, field string) string {
	return fmt.Sprintf("entries.%s.%s", productID, field)
}

package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

// Reconciler triggers the session-boundary cart merge.
type Reconciler interface {
	Reconcile(ctx context.Context, userID string) error
}

// Consumer listens for auth events and reconciles the freshly authenticated
// user's offline cart into the remote one.
type Consumer struct {
	reconciler Reconciler
	reader     *kafka.Reader
}

func New(reconciler Reconciler, topic, groupID string, brokers ...string) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{reconciler, reader}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.consumeAuthEvent(ctx)
	}
}

func (c *Consumer) Close() {
	err := c.reader.Close()
	if err != nil {
		fmt.Printf("error closing reader: %v\n", err)
	}
}

func (c *Consumer) consumeAuthEvent(ctx context.Context) {
	m, err := c.reader.ReadMessage(ctx)
	if err != nil {
		fmt.Printf("error reading message: %v\n", err)
		return
	}

	c.handleAuthEvent(ctx, m.Value)
}

func (c *Consumer) handleAuthEvent(ctx context.Context, value []byte) {
	var payload map[string]interface{}
	if errUnMarshal := json.Unmarshal(value, &payload); errUnMarshal != nil {
		fmt.Printf("error parsing message: %v\n", errUnMarshal)
		return
	}
	userID, ok := payload["user_id"].(string)
	if !ok || userID == "" {
		fmt.Println("missing or invalid user_id")
		return
	}

	if errReconcile := c.reconciler.Reconcile(ctx, userID); errReconcile != nil {
		log.Printf("failed to reconcile cart for %s: %v", userID, errReconcile)
	}
}

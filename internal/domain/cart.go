package domain

import "time"

// Cart is the full cart for one user: at most one entry per product.
// Absence of a product means quantity zero; entries never carry a
// quantity below 1.
type Cart struct {
	UserID  string           `bson:"_id" json:"user_id"`
	Entries map[string]Entry `bson:"entries" json:"entries"`
}

// Entry is one line item plus the product attributes captured at add-time,
// so the cart renders without re-fetching the catalog.
type Entry struct {
	Title    string    `bson:"title" json:"title"`
	Price    float64   `bson:"price" json:"price"`
	Image    string    `bson:"image" json:"image"`
	Category string    `bson:"category" json:"category"`
	Quantity int       `bson:"quantity" json:"quantity"`
	AddedAt  time.Time `bson:"added_at" json:"added_at"` // set once, immutable
}

// Snapshot is the product attribute bag supplied by the caller when an item
// is added. It is persisted as-is, not validated.
type Snapshot struct {
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Image    string  `json:"image"`
	Category string  `json:"category"`
}

func NewCart(userID string) Cart {
	return Cart{UserID: userID, Entries: map[string]Entry{}}
}

func (c Cart) IsEmpty() bool {
	return len(c.Entries) == 0
}

// TotalPrice is derived from the entries on every call, never stored.
func (c Cart) TotalPrice() float64 {
	var total float64
	for _, e := range c.Entries {
		total += e.Price * float64(e.Quantity)
	}
	return total
}

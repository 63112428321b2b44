package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTotalPrice_Empty(t *testing.T) {
	cart := NewCart("u1")
	assert.Equal(t, 0.0, cart.TotalPrice())
	assert.True(t, cart.IsEmpty())
}

func TestTotalPrice_SumsEntries(t *testing.T) {
	cart := NewCart("u1")
	cart.Entries["42"] = Entry{Title: "Shirt", Price: 20, Quantity: 2}
	cart.Entries["7"] = Entry{Title: "Mug", Price: 5.5, Quantity: 3}

	assert.InDelta(t, 56.5, cart.TotalPrice(), 0.0001)
	assert.False(t, cart.IsEmpty())
}

func TestNewCart_InitializesEntries(t *testing.T) {
	cart := NewCart("u1")
	assert.NotNil(t, cart.Entries)
	assert.Equal(t, "u1", cart.UserID)
}

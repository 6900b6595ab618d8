package order

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusShipped, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusPending, false},
		{StatusShipped, StatusCompleted, true},
		{StatusShipped, StatusProcessing, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusCancelled, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestItemsTotal(t *testing.T) {
	items := []LineItem{
		{Price: decimal.RequireFromString("1.99"), Quantity: 3},
		{Price: decimal.RequireFromString("0.49"), Quantity: 2},
	}
	assert.True(t, decimal.RequireFromString("6.95").Equal(ItemsTotal(items)))
}

func TestItemsTotal_Empty(t *testing.T) {
	assert.True(t, decimal.Zero.Equal(ItemsTotal(nil)))
}

package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		allowed  bool
	}{
		{OrderStatusPending, OrderStatusCompleted, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusCompleted, false},
		{OrderStatusCancelled, OrderStatusPending, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestOrderStatus_UnknownStatusIsStuck(t *testing.T) {
	assert.False(t, OrderStatus("shipped").CanTransitionTo(OrderStatusCompleted))
	assert.False(t, OrderStatus("").CanTransitionTo(OrderStatusCancelled))
}

func TestCheckoutItem_ProductRef(t *testing.T) {
	var items []CheckoutItem
	require.NoError(t, json.Unmarshal([]byte(`[{"productId":7,"name":"a"},{"id":"sku-9","name":"b"},{"id":1,"productId":"p-2"}]`), &items))

	assert.Equal(t, ProductRef("7"), items[0].ToOrderItem().ProductID)
	assert.Equal(t, ProductRef("sku-9"), items[1].ToOrderItem().ProductID)
	assert.Equal(t, ProductRef("p-2"), items[2].ToOrderItem().ProductID)
}

func TestCalculateTotal(t *testing.T) {
	items := []OrderItem{
		{Name: "mug", Price: 10, Quantity: 2},
		{Name: "pen", Price: 0.1, Quantity: 3},
		{Name: "sticker", Price: 1.25},
	}
	assert.Equal(t, 21.55, CalculateTotal(items))
	assert.Equal(t, 20.0, CalculateTotal([]OrderItem{{Price: 10, Quantity: 2}}))
	assert.Equal(t, 0.0, CalculateTotal(nil))
}

func TestNormalizeItems_DefaultsQuantity(t *testing.T) {
	in := []OrderItem{{Name: "a", Quantity: 0}, {Name: "b", Quantity: 4}}
	out := NormalizeItems(in)

	assert.Equal(t, 1, out[0].Quantity)
	assert.Equal(t, 4, out[1].Quantity)
	assert.Equal(t, 0, in[0].Quantity, "input must not be mutated")
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(19.99))
	assert.Equal(t, int64(1000), ToMinorUnits(10))
	assert.Equal(t, int64(101), ToMinorUnits(1.005))
	assert.Equal(t, int64(0), ToMinorUnits(0))
}

func TestProductRef_AcceptsNumberOrString(t *testing.T) {
	var items []CheckoutItem
	err := json.Unmarshal([]byte(`[{"id":42,"name":"a","price":1},{"id":"sku-7","name":"b","price":2},{"name":"c","price":3}]`), &items)
	require.NoError(t, err)

	assert.Equal(t, ProductRef("42"), items[0].ID)
	assert.Equal(t, ProductRef("sku-7"), items[1].ID)
	assert.Equal(t, ProductRef(""), items[2].ID)

	err = json.Unmarshal([]byte(`[{"id":{"x":1}}]`), &items)
	assert.Error(t, err)
}

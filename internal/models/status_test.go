package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to OrderStatus }{
		{StatusPending, StatusShipped},
		{StatusPending, StatusDelivered},
		{StatusPending, StatusInUse},
		{StatusPending, StatusCancelled},
		{StatusShipped, StatusDelivered},
		{StatusShipped, StatusInUse},
		{StatusInUse, StatusReturnRequested},
		{StatusDelivered, StatusReturnRequested},
		{StatusReturnRequested, StatusReturned},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}

	denied := []struct{ from, to OrderStatus }{
		{StatusShipped, StatusCancelled},
		{StatusInUse, StatusCancelled},
		{StatusDelivered, StatusDelivered},
		{StatusReturned, StatusReturnRequested},
		{StatusCancelled, StatusPending},
		{StatusReturnRequested, StatusInUse},
		{"unknown", StatusShipped},
	}
	for _, tr := range denied {
		assert.False(t, CanTransition(tr.from, tr.to), "%s -> %s", tr.from, tr.to)
	}
}

func TestIsActive(t *testing.T) {
	for _, s := range []OrderStatus{StatusPending, StatusShipped, StatusInUse, StatusReturnRequested} {
		assert.True(t, s.IsActive(), s)
	}
	for _, s := range []OrderStatus{StatusDelivered, StatusReturned, StatusCancelled} {
		assert.False(t, s.IsActive(), s)
	}
}

func TestDeliveredStatus(t *testing.T) {
	assert.Equal(t, StatusInUse, DeliveredStatus(OrderTypeRental))
	assert.Equal(t, StatusDelivered, DeliveredStatus(OrderTypePurchase))
}

func TestOrderTypeValid(t *testing.T) {
	assert.True(t, OrderTypePurchase.Valid())
	assert.True(t, OrderTypeRental.Valid())
	assert.False(t, OrderType("lease").Valid())
	assert.False(t, OrderType("").Valid())
}

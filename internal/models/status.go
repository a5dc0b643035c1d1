package models

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusPending         OrderStatus = "pending"
	StatusShipped         OrderStatus = "shipped"
	StatusInUse           OrderStatus = "in-use"
	StatusDelivered       OrderStatus = "delivered"
	StatusReturnRequested OrderStatus = "return-requested"
	StatusReturned        OrderStatus = "returned"
	StatusCancelled       OrderStatus = "cancelled"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	StatusPending:         {StatusShipped: true, StatusInUse: true, StatusDelivered: true, StatusCancelled: true},
	StatusShipped:         {StatusInUse: true, StatusDelivered: true},
	StatusInUse:           {StatusReturnRequested: true},
	StatusDelivered:       {StatusReturnRequested: true},
	StatusReturnRequested: {StatusReturned: true},
	StatusReturned:        {},
	StatusCancelled:       {},
}

// CanTransition reports whether the state machine allows from -> to
func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}

// ActiveStatuses blocks a second order for the same buyer and product
var ActiveStatuses = []OrderStatus{
	StatusPending,
	StatusShipped,
	StatusInUse,
	StatusReturnRequested,
}

// IsActive reports whether s counts towards the one-active-order rule
func (s OrderStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// DeliveredStatus is the post-delivery state for the given order type
func DeliveredStatus(t OrderType) OrderStatus {
	if t == OrderTypeRental {
		return StatusInUse
	}
	return StatusDelivered
}

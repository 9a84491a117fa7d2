package domain

import "time"

// EventKind classifies a change signal. It is a cue to reconcile, not state:
// subscribers refetch the property's orders rather than patching from it.
type EventKind string

const (
	EventOrderCreated   EventKind = "order_created"
	EventOrderUpdated   EventKind = "order_updated"
	EventOrderDeleted   EventKind = "order_deleted"
	EventHistoryCleared EventKind = "history_cleared"
)

// ChangeSignal is broadcast on a property's channel after every effective
// mutation of that property's orders.
type ChangeSignal struct {
	PropertyID string    `json:"property_id"`
	Channel    Channel   `json:"channel"`
	Kind       EventKind `json:"kind"`
}

// Outbox event type names.
const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"
	EventTypeOrderPaid          = "OrderPaid"
	EventTypeOrderDeleted       = "OrderDeleted"
	EventTypeHistoryCleared     = "HistoryCleared"
)

type OrderCreated struct {
	OrderID    string  `json:"order_id"`
	PropertyID string  `json:"property_id"`
	Channel    Channel `json:"channel"`
	TotalCents int64   `json:"total_cents"`
}

type OrderStatusChanged struct {
	OrderID    string    `json:"order_id"`
	PropertyID string    `json:"property_id"`
	Channel    Channel   `json:"channel"`
	GuestName  string    `json:"guest_name"`
	GuestPhone string    `json:"guest_phone,omitempty"`
	Previous   Status    `json:"previous"`
	Next       Status    `json:"next"`
	OccurredAt time.Time `json:"occurred_at"`
}

type OrderPaid struct {
	OrderID    string  `json:"order_id"`
	PropertyID string  `json:"property_id"`
	Channel    Channel `json:"channel"`
}

type OrderDeleted struct {
	OrderID    string  `json:"order_id"`
	PropertyID string  `json:"property_id"`
	Channel    Channel `json:"channel"`
}

type HistoryCleared struct {
	PropertyID string  `json:"property_id"`
	Channel    Channel `json:"channel"`
	Deleted    int64   `json:"deleted"`
}

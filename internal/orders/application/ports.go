package application

import (
	"context"

	"github.com/vserve/ordersync/internal/orders/domain"
)

type SortOrder string

const (
	SortOldestFirst SortOrder = "asc"  // kitchen queue: work the oldest ticket first
	SortNewestFirst SortOrder = "desc" // management and history views
)

type ListQuery struct {
	PropertyID string
	Channel    domain.Channel
	Statuses   []domain.Status
	Sort       SortOrder
}

// StatusPayloadFunc builds the outbox payload for a status change once the
// previous state is known inside the repository transaction.
type StatusPayloadFunc func(prev, updated domain.Order) ([]byte, error)

type OrderRepository interface {
	// CreateWithOutbox persists the order, its items, and the change event in
	// one transaction.
	CreateWithOutbox(ctx context.Context, o domain.Order, eventType string, payload []byte, headers map[string]string, traceparent string) error
	Get(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context, q ListQuery) ([]domain.Order, error)
	// UpdateStatusWithOutbox locks the order row, validates the transition and
	// applies it atomically. changed is false when next equals the current
	// status. A missing order yields domain.ErrOrderNotFound, an illegal move
	// domain.ErrInvalidTransition; neither writes anything.
	UpdateStatusWithOutbox(ctx context.Context, id string, next domain.Status, eventType string, makePayload StatusPayloadFunc, headers map[string]string, traceparent string) (o domain.Order, changed bool, err error)
	// MarkPaidWithOutbox flips payment_status to paid. changed is false when
	// the order was already paid.
	MarkPaidWithOutbox(ctx context.Context, id string, eventType string, payload []byte, headers map[string]string, traceparent string) (o domain.Order, changed bool, err error)
	// DeleteWithOutbox removes the order and its items. deleted is false when
	// the id does not exist, which is not an error.
	DeleteWithOutbox(ctx context.Context, id string, eventType string, headers map[string]string, traceparent string) (o domain.Order, deleted bool, err error)
	// DeleteStatusesWithOutbox removes every order of the property/channel
	// whose status is in the given set.
	DeleteStatusesWithOutbox(ctx context.Context, propertyID string, ch domain.Channel, statuses []domain.Status, eventType string, headers map[string]string, traceparent string) (int64, error)
}

// ChangePublisher delivers change signals to subscribers in this process.
// Publish must never block the caller.
type ChangePublisher interface {
	Publish(sig domain.ChangeSignal)
}

// CatalogItem is the read-once view of a menu item used to snapshot order
// lines at creation time.
type CatalogItem struct {
	ID             string
	Name           string
	Description    string
	Ingredients    string
	ImageRef       string
	Weight         string
	UnitPriceCents int64
}

type CatalogClient interface {
	Item(ctx context.Context, propertyID, itemID string) (CatalogItem, error)
}

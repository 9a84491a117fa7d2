package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vserve/ordersync/internal/clock"
	"github.com/vserve/ordersync/internal/orders/domain"
)

const eventSource = "order-service"

type Service struct {
	log     *slog.Logger
	repo    OrderRepository
	catalog CatalogClient
	bus     ChangePublisher
	clock   clock.Clock
}

func NewService(log *slog.Logger, repo OrderRepository, catalog CatalogClient, bus ChangePublisher, clk clock.Clock) *Service {
	return &Service{log: log, repo: repo, catalog: catalog, bus: bus, clock: clk}
}

type ItemRequest struct {
	CatalogItemID string
	Quantity      int
	Notes         string
}

type CreateOrderInput struct {
	PropertyID    string
	Channel       domain.Channel
	Guest         domain.Guest
	Items         []ItemRequest
	Notes         string
	PaymentMethod string
}

func (in CreateOrderInput) validate() error {
	if in.PropertyID == "" {
		return fmt.Errorf("%w: property id is required", domain.ErrValidation)
	}
	if !in.Channel.Valid() {
		return fmt.Errorf("%w: channel %q", domain.ErrValidation, in.Channel)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order needs at least one item", domain.ErrValidation)
	}
	for _, item := range in.Items {
		if item.CatalogItemID == "" {
			return fmt.Errorf("%w: item without catalog id", domain.ErrValidation)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: quantity must be positive", domain.ErrValidation)
		}
	}
	return nil
}

// CreateOrder snapshots each requested catalog item and persists a pending
// order. The catalog is read exactly once per item; later menu edits do not
// touch the stored lines.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if err := in.validate(); err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(in.Items))
	for _, req := range in.Items {
		cat, err := s.catalog.Item(ctx, in.PropertyID, req.CatalogItemID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("catalog lookup for %s: %w", req.CatalogItemID, err)
		}
		snap := domain.ItemSnapshot{
			CatalogItemID: cat.ID,
			Name:          cat.Name,
			Description:   cat.Description,
			Ingredients:   cat.Ingredients,
			ImageRef:      cat.ImageRef,
			Weight:        cat.Weight,
		}
		items = append(items, domain.NewOrderItem(uuid.NewString(), snap, req.Quantity, cat.UnitPriceCents, req.Notes))
	}

	o := domain.NewOrder(uuid.NewString(), in.PropertyID, in.Channel, in.Guest, items, in.Notes, in.PaymentMethod, s.clock.Now())

	payload, err := json.Marshal(domain.OrderCreated{
		OrderID:    o.ID,
		PropertyID: o.PropertyID,
		Channel:    o.Channel,
		TotalCents: o.TotalCents,
	})
	if err != nil {
		return domain.Order{}, err
	}
	if err := s.repo.CreateWithOutbox(ctx, o, domain.EventTypeOrderCreated, payload, s.headers(o.PropertyID, o.Channel), traceparentFrom(ctx)); err != nil {
		return domain.Order{}, err
	}

	s.bus.Publish(domain.ChangeSignal{PropertyID: o.PropertyID, Channel: o.Channel, Kind: domain.EventOrderCreated})
	s.log.Info("order created", "order_id", o.ID, "property_id", o.PropertyID, "channel", o.Channel, "total_cents", o.TotalCents)
	return o, nil
}

func (s *Service) ListOrders(ctx context.Context, q ListQuery) ([]domain.Order, error) {
	if q.PropertyID == "" {
		return nil, fmt.Errorf("%w: property id is required", domain.ErrValidation)
	}
	if q.Sort == "" {
		// Queues read oldest first so the kitchen works in arrival order;
		// history reads newest first.
		if terminalOnly(q.Statuses) {
			q.Sort = SortNewestFirst
		} else {
			q.Sort = SortOldestFirst
		}
	}
	return s.repo.List(ctx, q)
}

func terminalOnly(statuses []domain.Status) bool {
	if len(statuses) == 0 {
		return false
	}
	for _, st := range statuses {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	return s.repo.Get(ctx, id)
}

// UpdateStatus applies a lifecycle transition. Setting the current status
// again succeeds without writing or signalling anything.
func (s *Service) UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error) {
	makePayload := func(prev, updated domain.Order) ([]byte, error) {
		return json.Marshal(domain.OrderStatusChanged{
			OrderID:    updated.ID,
			PropertyID: updated.PropertyID,
			Channel:    updated.Channel,
			GuestName:  updated.Guest.Name,
			GuestPhone: updated.Guest.Phone,
			Previous:   prev.Status,
			Next:       updated.Status,
			OccurredAt: s.clock.Now(),
		})
	}

	o, changed, err := s.repo.UpdateStatusWithOutbox(ctx, id, next, domain.EventTypeOrderStatusChanged, makePayload, s.headers("", ""), traceparentFrom(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.bus.Publish(domain.ChangeSignal{PropertyID: o.PropertyID, Channel: o.Channel, Kind: domain.EventOrderUpdated})
		s.log.Info("order status updated", "order_id", o.ID, "status", o.Status)
	}
	return o, nil
}

func (s *Service) MarkPaid(ctx context.Context, id string) (domain.Order, error) {
	o, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}
	payload, err := json.Marshal(domain.OrderPaid{OrderID: o.ID, PropertyID: o.PropertyID, Channel: o.Channel})
	if err != nil {
		return domain.Order{}, err
	}
	o, changed, err := s.repo.MarkPaidWithOutbox(ctx, id, domain.EventTypeOrderPaid, payload, s.headers(o.PropertyID, o.Channel), traceparentFrom(ctx))
	if err != nil {
		return domain.Order{}, err
	}
	if changed {
		s.bus.Publish(domain.ChangeSignal{PropertyID: o.PropertyID, Channel: o.Channel, Kind: domain.EventOrderUpdated})
		s.log.Info("order marked paid", "order_id", o.ID)
	}
	return o, nil
}

// DeleteOrder is idempotent: a missing id is a successful no-op and publishes
// nothing, matching the optimistic delete behavior of the terminals.
func (s *Service) DeleteOrder(ctx context.Context, id string) error {
	o, deleted, err := s.repo.DeleteWithOutbox(ctx, id, domain.EventTypeOrderDeleted, s.headers("", ""), traceparentFrom(ctx))
	if err != nil {
		return err
	}
	if !deleted {
		return nil
	}
	s.bus.Publish(domain.ChangeSignal{PropertyID: o.PropertyID, Channel: o.Channel, Kind: domain.EventOrderDeleted})
	s.log.Info("order deleted", "order_id", id, "property_id", o.PropertyID)
	return nil
}

// BulkDeleteHistory irreversibly removes every delivered or cancelled order
// of the property/channel. Callers are expected to have confirmed the action.
func (s *Service) BulkDeleteHistory(ctx context.Context, propertyID string, ch domain.Channel) (int64, error) {
	if propertyID == "" {
		return 0, fmt.Errorf("%w: property id is required", domain.ErrValidation)
	}
	if !ch.Valid() {
		return 0, fmt.Errorf("%w: channel %q", domain.ErrValidation, ch)
	}
	n, err := s.repo.DeleteStatusesWithOutbox(ctx, propertyID, ch, domain.TerminalStatuses(), domain.EventTypeHistoryCleared, s.headers(propertyID, ch), traceparentFrom(ctx))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.bus.Publish(domain.ChangeSignal{PropertyID: propertyID, Channel: ch, Kind: domain.EventHistoryCleared})
		s.log.Info("order history cleared", "property_id", propertyID, "channel", ch, "deleted", n)
	}
	return n, nil
}

func (s *Service) headers(propertyID string, ch domain.Channel) map[string]string {
	h := map[string]string{"source": eventSource}
	if propertyID != "" {
		h["property_id"] = propertyID
	}
	if ch != "" {
		h["channel"] = string(ch)
	}
	return h
}

func traceparentFrom(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}

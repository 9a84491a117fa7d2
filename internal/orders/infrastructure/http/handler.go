package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"log/slog"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/orders/application"
	"github.com/vserve/ordersync/internal/orders/domain"
)

// OrderService is the store surface the transport exposes; the
// application.Service satisfies it.
type OrderService interface {
	CreateOrder(ctx context.Context, in application.CreateOrderInput) (domain.Order, error)
	ListOrders(ctx context.Context, q application.ListQuery) ([]domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error)
	MarkPaid(ctx context.Context, id string) (domain.Order, error)
	DeleteOrder(ctx context.Context, id string) error
	BulkDeleteHistory(ctx context.Context, propertyID string, ch domain.Channel) (int64, error)
}

type Handler struct {
	log     *slog.Logger
	service OrderService
	bus     *bus.Bus
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, service OrderService, b *bus.Bus) *Handler {
	return &Handler{
		log:     log,
		service: service,
		bus:     b,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.health)
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/events", h.streamEvents)
	r.Delete("/orders/history", h.deleteHistory)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Patch("/orders/{id}/payment", h.markPaid)
	r.Delete("/orders/{id}", h.deleteOrder)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type itemRequest struct {
	CatalogItemID string `json:"catalog_item_id"`
	Quantity      int    `json:"quantity"`
	Notes         string `json:"notes"`
}

type createOrderRequest struct {
	PropertyID    string        `json:"property_id"`
	Channel       string        `json:"channel"`
	GuestName     string        `json:"guest_name"`
	Locator       string        `json:"locator"`
	Phone         string        `json:"phone"`
	Items         []itemRequest `json:"items"`
	Notes         string        `json:"notes"`
	PaymentMethod string        `json:"payment_method"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req createOrderRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}

	in := application.CreateOrderInput{
		PropertyID:    req.PropertyID,
		Channel:       domain.Channel(req.Channel),
		Guest:         domain.Guest{Name: req.GuestName, Locator: req.Locator, Phone: req.Phone},
		Notes:         req.Notes,
		PaymentMethod: req.PaymentMethod,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, application.ItemRequest{
			CatalogItemID: item.CatalogItemID,
			Quantity:      item.Quantity,
			Notes:         item.Notes,
		})
	}

	o, err := h.service.CreateOrder(ctx, in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ListOrders")
	defer span.End()

	q := application.ListQuery{
		PropertyID: r.URL.Query().Get("property"),
		Channel:    domain.Channel(r.URL.Query().Get("channel")),
		Sort:       application.SortOrder(r.URL.Query().Get("sort")),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := domain.ParseStatus(strings.TrimSpace(part))
			if err != nil {
				writeDomainError(w, err)
				return
			}
			q.Statuses = append(q.Statuses, st)
		}
	}

	orders, err := h.service.ListOrders(ctx, q)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.service.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidation, "invalid request body")
		return
	}
	next, err := domain.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	o, err := h.service.UpdateStatus(ctx, chi.URLParam(r, "id"), next)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) markPaid(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "MarkOrderPaid")
	defer span.End()

	o, err := h.service.MarkPaid(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "DeleteOrder")
	defer span.End()

	if err := h.service.DeleteOrder(ctx, chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteHistory wipes the terminal-status orders of a property/channel. The
// operation is irreversible, so the caller must repeat the property id in the
// confirm parameter; the UI's double confirmation maps onto that.
func (h *Handler) deleteHistory(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "BulkDeleteHistory")
	defer span.End()

	property := r.URL.Query().Get("property")
	channel := domain.Channel(r.URL.Query().Get("channel"))
	if confirm := r.URL.Query().Get("confirm"); property == "" || confirm != property {
		writeError(w, http.StatusBadRequest, codeConfirmRequired, "confirm parameter must repeat the property id")
		return
	}

	n, err := h.service.BulkDeleteHistory(ctx, property, channel)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

type orderItemResponse struct {
	ID              string `json:"id"`
	Quantity        int    `json:"quantity"`
	UnitPriceCents  int64  `json:"unit_price_cents"`
	TotalPriceCents int64  `json:"total_price_cents"`
	Notes           string `json:"notes,omitempty"`
	CatalogItemID   string `json:"catalog_item_id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	Ingredients     string `json:"ingredients,omitempty"`
	ImageRef        string `json:"image_ref,omitempty"`
	Weight          string `json:"weight,omitempty"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	PropertyID    string              `json:"property_id"`
	Channel       string              `json:"channel"`
	GuestName     string              `json:"guest_name"`
	Locator       string              `json:"locator"`
	Phone         string              `json:"phone,omitempty"`
	Status        string              `json:"status"`
	TotalCents    int64               `json:"total_cents"`
	Notes         string              `json:"notes,omitempty"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	PaymentStatus string              `json:"payment_status"`
	Items         []orderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemResponse{
			ID:              item.ID,
			Quantity:        item.Quantity,
			UnitPriceCents:  item.UnitPriceCents,
			TotalPriceCents: item.TotalPriceCents,
			Notes:           item.Notes,
			CatalogItemID:   item.Snapshot.CatalogItemID,
			Name:            item.Snapshot.Name,
			Description:     item.Snapshot.Description,
			Ingredients:     item.Snapshot.Ingredients,
			ImageRef:        item.Snapshot.ImageRef,
			Weight:          item.Snapshot.Weight,
		})
	}
	return orderResponse{
		ID:            o.ID,
		PropertyID:    o.PropertyID,
		Channel:       string(o.Channel),
		GuestName:     o.Guest.Name,
		Locator:       o.Guest.Locator,
		Phone:         o.Guest.Phone,
		Status:        string(o.Status),
		TotalCents:    o.TotalCents,
		Notes:         o.Notes,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: string(o.PaymentStatus),
		Items:         items,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/vserve/ordersync/internal/orders/domain"
)

// Gateway is the external messaging collaborator. Failures are terminal from
// this system's point of view: no retry, no queue.
type Gateway interface {
	Send(ctx context.Context, phone, message string) error
}

type Dispatcher struct {
	log     *slog.Logger
	gateway Gateway
	timeout time.Duration
}

func NewDispatcher(log *slog.Logger, gateway Gateway) *Dispatcher {
	return &Dispatcher{log: log, gateway: gateway, timeout: 10 * time.Second}
}

// Dispatch sends the guest message for a status change, fire-and-forget.
// Orders without a phone and transitions without a template are skipped
// silently; gateway failures are logged and swallowed so they can never
// affect the transition that triggered them.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.OrderStatusChanged) {
	if ev.GuestPhone == "" {
		return
	}
	msg, ok := MessageFor(ev.Next, ev.GuestName)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.gateway.Send(ctx, ev.GuestPhone, msg); err != nil {
		d.log.Error("notification delivery failed", "order_id", ev.OrderID, "status", ev.Next, "err", err)
		return
	}
	d.log.Info("notification sent", "order_id", ev.OrderID, "status", ev.Next)
}

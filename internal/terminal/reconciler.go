package terminal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vserve/ordersync/internal/orders/application"
	"github.com/vserve/ordersync/internal/orders/domain"
)

// DefaultFetchTimeout bounds a single reconciliation read so a stalled
// backend cannot hang a terminal.
const DefaultFetchTimeout = 5 * time.Second

// Store is the subset of order operations a terminal drives. The in-process
// application.Service satisfies it, as does a remote API client.
type Store interface {
	ListOrders(ctx context.Context, q application.ListQuery) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id string, next domain.Status) (domain.Order, error)
}

// Reconciler is a staff terminal's local order cache. It replaces its list
// wholesale from the store on every change signal and after every own
// mutation; mutations are applied optimistically and rolled back to the last
// reconciled list when the store rejects them.
type Reconciler struct {
	log          *slog.Logger
	store        Store
	query        application.ListQuery
	fetchTimeout time.Duration

	mu         sync.RWMutex
	orders     []domain.Order
	reconciled []domain.Order
}

func NewReconciler(log *slog.Logger, store Store, query application.ListQuery) *Reconciler {
	return &Reconciler{
		log:          log,
		store:        store,
		query:        query,
		fetchTimeout: DefaultFetchTimeout,
	}
}

// Orders returns a copy of the current local list, including any optimistic
// change not yet confirmed.
func (r *Reconciler) Orders() []domain.Order {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Order, len(r.orders))
	copy(out, r.orders)
	return out
}

// Refresh replaces the local list with an authoritative read. A read that
// exceeds the fetch timeout surfaces domain.ErrTimeout so the UI can show
// "could not load" instead of "no orders".
func (r *Reconciler) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.fetchTimeout)
	defer cancel()

	list, err := r.store.ListOrders(ctx, r.query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: list orders for %s", domain.ErrTimeout, r.query.PropertyID)
		}
		return err
	}

	r.mu.Lock()
	r.orders = list
	// Snapshot for rollback. The optimistic write in UpdateStatus mutates
	// r.orders in place, so the two lists must not share a backing array.
	r.reconciled = make([]domain.Order, len(list))
	copy(r.reconciled, list)
	r.mu.Unlock()
	return nil
}

// Run reconciles on every signal until ctx is cancelled or the subscription
// channel closes.
func (r *Reconciler) Run(ctx context.Context, signals <-chan domain.ChangeSignal) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-signals:
			if !ok {
				return
			}
			if err := r.Refresh(ctx); err != nil {
				r.log.Error("reconcile failed", "property_id", r.query.PropertyID, "err", err)
			}
		}
	}
}

// UpdateStatus applies the transition locally first, then sends the command.
// On rejection the local list rolls back to the last reconciled state and the
// error is returned for the UI to surface.
func (r *Reconciler) UpdateStatus(ctx context.Context, id string, next domain.Status) error {
	r.mu.Lock()
	for i := range r.orders {
		if r.orders[i].ID == id {
			r.orders[i].Status = next
			break
		}
	}
	r.mu.Unlock()

	if _, err := r.store.UpdateStatus(ctx, id, next); err != nil {
		r.mu.Lock()
		r.orders = make([]domain.Order, len(r.reconciled))
		copy(r.orders, r.reconciled)
		r.mu.Unlock()
		return err
	}

	// Confirmed: fold the authoritative state in. The broadcast signal would
	// get there too, but the originator should not wait for it.
	if err := r.Refresh(ctx); err != nil {
		r.log.Error("post-mutation refresh failed", "order_id", id, "err", err)
	}
	return nil
}

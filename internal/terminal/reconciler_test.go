package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/vserve/ordersync/internal/bus"
	"github.com/vserve/ordersync/internal/orders/application"
	"github.com/vserve/ordersync/internal/orders/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore is the terminal's view of the backend: an order list plus
// scripted failures.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]domain.Order
	listErr   error
	updateErr error
	listCalls int
	hang      bool
}

func newFakeStore(orders ...domain.Order) *fakeStore {
	s := &fakeStore{orders: make(map[string]domain.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeStore) ListOrders(ctx context.Context, q application.ListQuery) ([]domain.Order, error) {
	s.mu.Lock()
	hang := s.hang
	s.mu.Unlock()
	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Order
	for _, o := range s.orders {
		if o.PropertyID == q.PropertyID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, id string, next domain.Status) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return domain.Order{}, s.updateErr
	}
	o, ok := s.orders[id]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	o.Status = next
	s.orders[id] = o
	return o, nil
}

func query() application.ListQuery {
	return application.ListQuery{PropertyID: "prop-1", Channel: domain.ChannelFood}
}

func TestReconciler_RefreshReplacesLocalList(t *testing.T) {
	t.Parallel()

	store := newFakeStore(domain.Order{ID: "o-1", PropertyID: "prop-1", Status: domain.StatusPending})
	r := NewReconciler(testLogger(), store, query())

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if got := r.Orders(); len(got) != 1 || got[0].ID != "o-1" {
		t.Fatalf("unexpected local list %+v", got)
	}
}

func TestReconciler_TimeoutSurfacesDistinctError(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.hang = true
	r := NewReconciler(testLogger(), store, query())
	r.fetchTimeout = 20 * time.Millisecond

	err := r.Refresh(context.Background())
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestReconciler_OptimisticUpdateConfirmed(t *testing.T) {
	t.Parallel()

	store := newFakeStore(domain.Order{ID: "o-1", PropertyID: "prop-1", Status: domain.StatusPending})
	r := NewReconciler(testLogger(), store, query())
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if err := r.UpdateStatus(context.Background(), "o-1", domain.StatusPreparing); err != nil {
		t.Fatalf("update: %v", err)
	}
	got := r.Orders()
	if len(got) != 1 || got[0].Status != domain.StatusPreparing {
		t.Fatalf("expected confirmed preparing, got %+v", got)
	}
}

func TestReconciler_RejectedUpdateRollsBack(t *testing.T) {
	t.Parallel()

	store := newFakeStore(domain.Order{ID: "o-1", PropertyID: "prop-1", Status: domain.StatusReady})
	r := NewReconciler(testLogger(), store, query())
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	store.mu.Lock()
	store.updateErr = fmt.Errorf("%w: ready -> pending", domain.ErrInvalidTransition)
	store.mu.Unlock()

	err := r.UpdateStatus(context.Background(), "o-1", domain.StatusPending)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	got := r.Orders()
	if len(got) != 1 || got[0].Status != domain.StatusReady {
		t.Fatalf("expected rollback to ready, got %+v", got)
	}
}

func TestReconciler_RunReconcilesOnSignal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	r := NewReconciler(testLogger(), store, query())

	b := bus.New()
	sub := b.Subscribe("prop-1")
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		r.Run(ctx, sub.Signals())
		close(done)
	}()

	store.mu.Lock()
	store.orders["o-1"] = domain.Order{ID: "o-1", PropertyID: "prop-1", Status: domain.StatusPending}
	store.mu.Unlock()

	b.Publish(domain.ChangeSignal{PropertyID: "prop-1", Channel: domain.ChannelFood, Kind: domain.EventOrderCreated})

	deadline := time.After(2 * time.Second)
	for {
		if got := r.Orders(); len(got) == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("reconciler never caught up after signal")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop on cancel")
	}
}

func TestFeed_SharesOneUpstreamSubscription(t *testing.T) {
	t.Parallel()

	b := bus.New()
	feed := NewFeed(b)

	h1 := feed.Attach("prop-1")
	h2 := feed.Attach("prop-1")

	b.Publish(domain.ChangeSignal{PropertyID: "prop-1", Kind: domain.EventOrderUpdated})

	for _, h := range []*Handle{h1, h2} {
		select {
		case <-h.Signals():
		case <-time.After(time.Second):
			t.Fatal("expected both handles to receive the signal")
		}
	}

	// Closing one handle must not silence the other.
	h1.Close()
	b.Publish(domain.ChangeSignal{PropertyID: "prop-1", Kind: domain.EventOrderUpdated})
	select {
	case <-h2.Signals():
	case <-time.After(time.Second):
		t.Fatal("expected surviving handle to keep receiving")
	}

	h2.Close()
	if _, ok := <-h2.Signals(); ok {
		t.Fatal("expected closed channel after final close")
	}
}

package terminal

import (
	"testing"

	"github.com/vserve/ordersync/internal/orders/domain"
)

func fixtureOrders() []domain.Order {
	return []domain.Order{
		{ID: "o-1", Status: domain.StatusPending},
		{ID: "o-2", Status: domain.StatusPreparing},
		{ID: "o-3", Status: domain.StatusReady},
		{ID: "o-4", Status: domain.StatusDelivered},
		{ID: "o-5", Status: domain.StatusCancelled},
	}
}

func TestVisibleTo(t *testing.T) {
	t.Parallel()

	t.Run("cashier sees only finished orders", func(t *testing.T) {
		got := VisibleTo(RoleCashier, fixtureOrders(), false)
		if len(got) != 2 {
			t.Fatalf("expected 2 orders, got %d", len(got))
		}
		for _, o := range got {
			if !o.Status.Terminal() {
				t.Fatalf("cashier should never see %s", o.Status)
			}
		}
	})

	t.Run("kitchen sees only the active queue", func(t *testing.T) {
		got := VisibleTo(RoleKitchen, fixtureOrders(), false)
		if len(got) != 3 {
			t.Fatalf("expected 3 orders, got %d", len(got))
		}
		for _, o := range got {
			if o.Status.Terminal() {
				t.Fatalf("kitchen queue should not contain %s", o.Status)
			}
		}
	})

	t.Run("manager history view includes everything", func(t *testing.T) {
		got := VisibleTo(RoleManager, fixtureOrders(), true)
		if len(got) != 5 {
			t.Fatalf("expected 5 orders, got %d", len(got))
		}
	})
}

func TestGroupBoard(t *testing.T) {
	t.Parallel()

	b := GroupBoard(fixtureOrders())

	if len(b.Pending) != 1 || b.Pending[0].ID != "o-1" {
		t.Fatalf("unexpected pending column %+v", b.Pending)
	}
	if len(b.Preparing) != 1 || b.Preparing[0].ID != "o-2" {
		t.Fatalf("unexpected preparing column %+v", b.Preparing)
	}
	if len(b.Ready) != 1 || b.Ready[0].ID != "o-3" {
		t.Fatalf("unexpected ready column %+v", b.Ready)
	}
	// Delivered and cancelled share the completed column.
	if len(b.Completed) != 2 {
		t.Fatalf("expected 2 completed, got %d", len(b.Completed))
	}
}

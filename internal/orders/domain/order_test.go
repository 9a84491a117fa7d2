package domain

import (
	"testing"
	"time"
)

func TestNewOrderTotals(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	items := []OrderItem{
		NewOrderItem("item-1", ItemSnapshot{CatalogItemID: "cat-1", Name: "Club Sandwich"}, 2, 50, ""),
		NewOrderItem("item-2", ItemSnapshot{CatalogItemID: "cat-2", Name: "Lemonade"}, 1, 30, ""),
	}

	o := NewOrder("order-1", "prop-1", ChannelFood, Guest{Name: "Ana", Locator: "room 204"}, items, "", "cash", now)

	if o.TotalCents != 130 {
		t.Fatalf("expected total 130, got %d", o.TotalCents)
	}
	if items[0].TotalPriceCents != 100 {
		t.Fatalf("expected item total 100, got %d", items[0].TotalPriceCents)
	}
	if o.Status != StatusPending {
		t.Fatalf("expected pending, got %s", o.Status)
	}
	if o.PaymentStatus != PaymentPending {
		t.Fatalf("expected payment pending, got %s", o.PaymentStatus)
	}
	if !o.CreatedAt.Equal(now) {
		t.Fatalf("expected created_at %v, got %v", now, o.CreatedAt)
	}

	var sum int64
	for _, item := range o.Items {
		sum += item.TotalPriceCents
	}
	if o.TotalCents != sum {
		t.Fatalf("total %d does not match item sum %d", o.TotalCents, sum)
	}
}

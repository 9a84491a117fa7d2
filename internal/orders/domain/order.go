package domain

import "time"

type Channel string

const (
	ChannelFood Channel = "food"
	ChannelBar  Channel = "bar"
)

func (c Channel) Valid() bool {
	return c == ChannelFood || c == ChannelBar
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

// Guest identifies the person the order is for. Locator is the room or table
// the order should be delivered to, free-form as entered by staff.
type Guest struct {
	Name    string
	Locator string
	Phone   string
}

type Order struct {
	ID            string
	PropertyID    string
	Channel       Channel
	Guest         Guest
	Items         []OrderItem
	TotalCents    int64
	Status        Status
	Notes         string
	PaymentMethod string
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ItemSnapshot is the catalog item as it was at order time. Later catalog
// edits must never change what a historical order says was served.
type ItemSnapshot struct {
	CatalogItemID string
	Name          string
	Description   string
	Ingredients   string
	ImageRef      string
	Weight        string
}

type OrderItem struct {
	ID              string
	Quantity        int
	UnitPriceCents  int64
	TotalPriceCents int64
	Notes           string
	Snapshot        ItemSnapshot
}

func NewOrderItem(id string, snap ItemSnapshot, quantity int, unitPriceCents int64, notes string) OrderItem {
	return OrderItem{
		ID:              id,
		Quantity:        quantity,
		UnitPriceCents:  unitPriceCents,
		TotalPriceCents: int64(quantity) * unitPriceCents,
		Notes:           notes,
		Snapshot:        snap,
	}
}

// NewOrder builds a pending order and derives TotalCents from its items.
func NewOrder(id, propertyID string, ch Channel, guest Guest, items []OrderItem, notes, paymentMethod string, now time.Time) Order {
	var total int64
	for _, item := range items {
		total += item.TotalPriceCents
	}
	now = now.UTC()
	return Order{
		ID:            id,
		PropertyID:    propertyID,
		Channel:       ch,
		Guest:         guest,
		Items:         items,
		TotalCents:    total,
		Status:        StatusPending,
		Notes:         notes,
		PaymentMethod: paymentMethod,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

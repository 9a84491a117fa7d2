package terminal

import "github.com/vserve/ordersync/internal/orders/domain"

type Role string

const (
	RoleCashier Role = "cashier"
	RoleKitchen Role = "kitchen"
	RoleStaff   Role = "staff"
	RoleManager Role = "manager"
	RoleAdmin   Role = "admin"
)

// VisibleTo filters an already-fetched order set for a role. The cashier only
// settles finished orders; everyone else works the active queue and sees
// finished orders only in explicit history views.
func VisibleTo(role Role, orders []domain.Order, includeHistory bool) []domain.Order {
	out := make([]domain.Order, 0, len(orders))
	for _, o := range orders {
		switch role {
		case RoleCashier:
			if o.Status.Terminal() {
				out = append(out, o)
			}
		default:
			if !o.Status.Terminal() || includeHistory {
				out = append(out, o)
			}
		}
	}
	return out
}

// Board is the kanban grouping of a property's orders. Delivered and
// cancelled orders share the completed column.
type Board struct {
	Pending   []domain.Order
	Preparing []domain.Order
	Ready     []domain.Order
	Completed []domain.Order
}

func GroupBoard(orders []domain.Order) Board {
	var b Board
	for _, o := range orders {
		switch o.Status {
		case domain.StatusPending:
			b.Pending = append(b.Pending, o)
		case domain.StatusPreparing:
			b.Preparing = append(b.Preparing, o)
		case domain.StatusReady:
			b.Ready = append(b.Ready, o)
		default:
			b.Completed = append(b.Completed, o)
		}
	}
	return b
}

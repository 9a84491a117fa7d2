package notify

import (
	"fmt"

	"github.com/vserve/ordersync/internal/orders/domain"
)

var statusTemplates = map[domain.Status]string{
	domain.StatusPreparing: "Your order is being prepared.",
	domain.StatusReady:     "Your order is ready!",
	domain.StatusDelivered: "Your order has been delivered. Enjoy!",
	domain.StatusCancelled: "Your order has been cancelled. Please contact staff if this is unexpected.",
}

// MessageFor composes the guest message for a transition into status. ok is
// false for statuses that never notify; entering pending is always silent.
func MessageFor(status domain.Status, guestName string) (string, bool) {
	tpl, ok := statusTemplates[status]
	if !ok {
		return "", false
	}
	if guestName == "" {
		return tpl, true
	}
	return fmt.Sprintf("Hi %s! %s", guestName, tpl), true
}

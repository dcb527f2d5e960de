// README: Customer-facing notification copy keyed by order status.
package order

import (
	"context"
	"strconv"
)

const (
	categoryNewOrder       = "new_order"
	categoryOrderUpdate    = "order_update"
	categoryOrderReady     = "order_ready"
	categoryDriverAssigned = "driver_assigned"
	categoryPayment        = "payment"
)

type statusCopy struct {
	Title string
	Body  string
}

// customerStatusCopy is the fixed copy table for customer notifications.
// Statuses without an entry (pending) produce no message.
var customerStatusCopy = map[Status]statusCopy{
	StatusAccepted:       {"Order accepted", "The restaurant accepted your order"},
	StatusPreparing:      {"Preparing your order", "The restaurant is preparing your order now"},
	StatusReady:          {"Order ready", "Your order is ready and awaiting a courier"},
	StatusDriverAssigned: {"Driver assigned", "A driver will deliver your order"},
	StatusPickedUp:       {"Order picked up", "The driver picked up your order from the restaurant"},
	StatusOutForDelivery: {"On the way", "The driver is on the way to you"},
	StatusDelivered:      {"Delivered", "Enjoy your meal!"},
	StatusCancelled:      {"Order cancelled", "Your order was cancelled"},
}

func (s *Service) notifyCustomerStatus(ctx context.Context, o *Order) {
	copyLine, ok := customerStatusCopy[o.Status]
	if !ok {
		return
	}
	s.notifier.Notify(ctx, o.CustomerID, copyLine.Title, copyLine.Body, categoryOrderUpdate,
		map[string]any{"order_id": string(o.ID), "status": string(o.Status)})
}

func formatSYP(amount int64) string {
	return strconv.FormatInt(amount, 10) + " SYP"
}

// README: Live tracking projection: phase label, driver position, distance and ETA for the current leg.
package dispatch

import (
	"context"

	"yalla/internal/geo"
	"yalla/internal/modules/order"
	"yalla/internal/types"
)

// TrackView is the customer-facing snapshot of an order in flight.
type TrackView struct {
	OrderID        types.ID     `json:"order_id"`
	Status         order.Status `json:"status"`
	Phase          string       `json:"phase"`
	DriverName     string       `json:"driver_name,omitempty"`
	DriverPhone    string       `json:"driver_phone,omitempty"`
	DriverPosition *types.Point `json:"driver_position,omitempty"`
	// DistanceKm and ETAMin describe the current leg: driver to restaurant
	// before pickup, driver to customer after. Zero when no driver or fix.
	DistanceKm float64 `json:"distance_km,omitempty"`
	ETAMin     int     `json:"eta_min,omitempty"`
}

var phaseLabels = map[order.Status]string{
	order.StatusPending:        "Waiting for the restaurant to confirm",
	order.StatusAccepted:       "Order confirmed",
	order.StatusPreparing:      "Your order is being prepared",
	order.StatusReady:          "Order ready, waiting for a driver",
	order.StatusDriverAssigned: "Driver heading to the restaurant",
	order.StatusPickedUp:       "Driver picked up your order",
	order.StatusOutForDelivery: "Driver on the way to you",
	order.StatusDelivered:      "Delivered",
	order.StatusCancelled:      "Cancelled",
}

// Track builds the live view for an order the actor may see. Presence
// lookups are best effort: a stale or missing driver fix leaves the
// position empty rather than failing the request.
func (s *Service) Track(ctx context.Context, actor order.Actor, orderID types.ID) (*TrackView, error) {
	o, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}

	v := &TrackView{
		OrderID: o.ID,
		Status:  o.Status,
		Phase:   phaseLabels[o.Status],
	}
	if !o.Assigned() {
		return v, nil
	}
	v.DriverName = o.DriverName
	v.DriverPhone = o.DriverPhone

	// Restaurant couriers carry no presence record.
	if o.DriverType != order.ModePlatformDriver {
		return v, nil
	}
	d, err := s.drivers.Get(ctx, *o.DriverID)
	if err != nil || !d.HasFix() {
		return v, nil
	}
	v.DriverPosition = d.Position

	switch o.Status {
	case order.StatusDriverAssigned:
		rest, err := s.restaurants.Restaurant(ctx, o.RestaurantID)
		if err != nil || rest == nil {
			return v, nil
		}
		v.DistanceKm = geo.DistanceKm(d.Position.Lat, d.Position.Lng, rest.Position.Lat, rest.Position.Lng)
		v.ETAMin = s.etaToRestaurant(ctx, d, rest, v.DistanceKm)
	case order.StatusPickedUp, order.StatusOutForDelivery:
		if o.Address.Location == nil {
			return v, nil
		}
		v.DistanceKm = geo.DistanceKm(d.Position.Lat, d.Position.Lng, o.Address.Location.Lat, o.Address.Location.Lng)
		if s.eta != nil {
			if min, ok := s.eta.MinutesTo(ctx, *d.Position, *o.Address.Location); ok {
				v.ETAMin = min
				return v, nil
			}
		}
		v.ETAMin = geo.ETAToCustomerMin(v.DistanceKm)
	}
	return v, nil
}

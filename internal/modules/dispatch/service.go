// README: Dispatch engine: ready fan-out, driver eligibility ranking, and claim brokering.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"yalla/internal/geo"
	"yalla/internal/modules/order"
	"yalla/internal/modules/presence"
	"yalla/internal/types"
)

var (
	ErrDriverOffline = errors.New("driver is offline")
	ErrBadSort       = errors.New("unknown sort mode")
)

const (
	// defaultSearchRadiusKm bounds the non-favorite listing when the
	// restaurant never set its own radius.
	defaultSearchRadiusKm = 50.0
	// noFixDistanceKm stands in for drivers without a recent location fix;
	// they stay listed rather than silently vanishing.
	noFixDistanceKm = 1.5
)

// Orders is the slice of the order service dispatch depends on.
type Orders interface {
	Get(ctx context.Context, actor order.Actor, id types.ID) (*order.Order, error)
	Claim(ctx context.Context, orderID types.ID, d order.DriverInfo) (*order.Order, error)
	ClaimableByCity(ctx context.Context, cityID string) ([]*order.Order, error)
	ActiveCount(ctx context.Context, driverID types.ID) (int, error)
}

// Drivers is the presence roster dispatch fans out to.
type Drivers interface {
	Get(ctx context.Context, id types.ID) (*presence.Driver, error)
	OnlineByCity(ctx context.Context, cityID string) ([]*presence.Driver, error)
	NearbyIDs(ctx context.Context, cityID string, p types.Point, radiusKm float64) []types.ID
}

// Restaurants supplies restaurant position, radius, and favorites.
type Restaurants interface {
	Restaurant(ctx context.Context, id types.ID) (*order.RestaurantInfo, error)
	FavoriteDriverIDs(ctx context.Context, restaurantID types.ID) (map[types.ID]bool, error)
}

// ETASource refines the heuristic travel estimate when a route provider is
// configured. ok=false falls back to the heuristic.
type ETASource interface {
	MinutesTo(ctx context.Context, from, to types.Point) (int, bool)
}

type Service struct {
	orders      Orders
	drivers     Drivers
	restaurants Restaurants
	notifier    order.Notifier
	eta         ETASource
	log         *slog.Logger
}

func NewService(orders Orders, drivers Drivers, restaurants Restaurants, notifier order.Notifier, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{orders: orders, drivers: drivers, restaurants: restaurants, notifier: notifier, log: log}
}

// SetETASource plugs in an optional route-based estimator.
func (s *Service) SetETASource(e ETASource) { s.eta = e }

func dispatchActor() order.Actor {
	return order.Actor{ID: "dispatch", Role: order.RoleDispatch}
}

// OrderReady fans the order out to every online driver in the restaurant's
// city. Called post-commit by the order service; failures are logged and
// swallowed, the order stays claimable regardless.
func (s *Service) OrderReady(ctx context.Context, o *order.Order, stillPreparing bool) {
	if o.Assigned() {
		return
	}
	rest, err := s.restaurants.Restaurant(ctx, o.RestaurantID)
	if err != nil || rest == nil {
		s.log.Error("fan-out: restaurant lookup failed", "order_id", o.ID, "err", err)
		return
	}
	roster, err := s.drivers.OnlineByCity(ctx, rest.CityID)
	if err != nil {
		s.log.Error("fan-out: roster lookup failed", "order_id", o.ID, "city_id", rest.CityID, "err", err)
		return
	}

	title := "New delivery available"
	body := "Order from " + rest.Name + " is ready for pickup"
	if stillPreparing {
		title = "Delivery coming up"
		body = "Order from " + rest.Name + " is being prepared, get ready"
	}
	for _, d := range roster {
		s.notifier.Notify(ctx, d.ID, title, body, "order_available", map[string]any{
			"order_id":        string(o.ID),
			"restaurant_name": rest.Name,
			"city_id":         rest.CityID,
		})
	}
	s.log.Info("order fanned out", "order_id", o.ID, "city_id", rest.CityID, "drivers", len(roster), "still_preparing", stillPreparing)
}

// EligibleDrivers ranks the online drivers a restaurant may pick from.
// Favorites always lead and ignore the search radius; everyone else must be
// within it.
func (s *Service) EligibleDrivers(ctx context.Context, actor order.Actor, orderID types.ID, mode SortMode) ([]RankedDriver, error) {
	if !mode.Valid() {
		return nil, ErrBadSort
	}
	o, err := s.orders.Get(ctx, actor, orderID)
	if err != nil {
		return nil, err
	}
	rest, err := s.restaurants.Restaurant(ctx, o.RestaurantID)
	if err != nil || rest == nil {
		return nil, order.ErrNotFound
	}
	favs, err := s.restaurants.FavoriteDriverIDs(ctx, o.RestaurantID)
	if err != nil {
		return nil, err
	}
	roster, err := s.drivers.OnlineByCity(ctx, rest.CityID)
	if err != nil {
		return nil, err
	}

	radius := rest.RadiusKm
	if radius <= 0 {
		radius = defaultSearchRadiusKm
	}

	// The live geo index narrows the roster when it is up; favorites are
	// re-added below regardless.
	var nearby map[types.ID]bool
	if ids := s.drivers.NearbyIDs(ctx, rest.CityID, rest.Position, radius); len(ids) > 0 {
		nearby = make(map[types.ID]bool, len(ids))
		for _, id := range ids {
			nearby[id] = true
		}
	}

	ranked := make([]RankedDriver, 0, len(roster))
	for _, d := range roster {
		fav := favs[d.ID]
		dist := noFixDistanceKm
		estimated := true
		if d.HasFix() {
			dist = geo.DistanceKm(d.Position.Lat, d.Position.Lng, rest.Position.Lat, rest.Position.Lng)
			estimated = false
		}
		if !fav {
			if nearby != nil && d.HasFix() && !nearby[d.ID] {
				continue
			}
			if dist > radius {
				continue
			}
		}

		active, err := s.orders.ActiveCount(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, RankedDriver{
			ID:           d.ID,
			Name:         d.Name,
			Phone:        d.Phone,
			Rating:       d.Rating,
			Favorite:     fav,
			DistanceKm:   dist,
			Estimated:    estimated,
			ActiveOrders: active,
			ETAMin:       s.etaToRestaurant(ctx, d, rest, dist),
		})
	}

	sortRanked(ranked, mode)
	return ranked, nil
}

func (s *Service) etaToRestaurant(ctx context.Context, d *presence.Driver, rest *order.RestaurantInfo, distKm float64) int {
	if s.eta != nil && d.HasFix() {
		if min, ok := s.eta.MinutesTo(ctx, *d.Position, rest.Position); ok {
			return min
		}
	}
	return geo.ETAToRestaurantMin(distKm)
}

// sortRanked keeps favorites ahead of the rest, then applies the requested
// order within each group.
func sortRanked(ranked []RankedDriver, mode SortMode) {
	less := func(a, b RankedDriver) bool {
		switch mode {
		case SortDistance:
			return a.DistanceKm < b.DistanceKm
		case SortRating:
			return a.Rating > b.Rating
		case SortAvailability:
			return a.ActiveOrders < b.ActiveOrders
		default:
			if a.ActiveOrders != b.ActiveOrders {
				return a.ActiveOrders < b.ActiveOrders
			}
			return a.DistanceKm < b.DistanceKm
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Favorite != ranked[j].Favorite {
			return ranked[i].Favorite
		}
		return less(ranked[i], ranked[j])
	})
}

// AvailableOrders lists claimable orders in the driver's city. The driver
// must be online; the city comes from their last ping.
func (s *Service) AvailableOrders(ctx context.Context, driverID types.ID) ([]*order.Order, error) {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		return nil, ErrDriverOffline
	}
	if d.CityID == "" {
		return nil, nil
	}
	return s.orders.ClaimableByCity(ctx, d.CityID)
}

// Claim forwards a driver's claim to the order service after the presence
// precondition. Losing the race surfaces as order.ErrAlreadyTaken.
func (s *Service) Claim(ctx context.Context, driverID, orderID types.ID) (*order.Order, error) {
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		return nil, ErrDriverOffline
	}
	return s.orders.Claim(ctx, orderID, order.DriverInfo{ID: d.ID, Name: d.Name, Phone: d.Phone})
}

// PickDriver lets the restaurant hand the order to a specific platform
// driver from the eligibility listing instead of waiting for a claim.
func (s *Service) PickDriver(ctx context.Context, actor order.Actor, orderID, driverID types.ID) (*order.Order, error) {
	if actor.Role != order.RoleRestaurant {
		return nil, order.ErrForbidden
	}
	if _, err := s.orders.Get(ctx, actor, orderID); err != nil {
		return nil, err
	}
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !d.Online {
		return nil, ErrDriverOffline
	}
	o, err := s.orders.Claim(ctx, orderID, order.DriverInfo{ID: d.ID, Name: d.Name, Phone: d.Phone})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, d.ID, "New assignment",
		"You were assigned an order from "+o.RestaurantName, "driver_assigned",
		map[string]any{"order_id": string(o.ID)})
	return o, nil
}

// README: Dispatch model: ranked driver rows and sort modes for the eligibility listing.
package dispatch

import (
	"yalla/internal/types"
)

// SortMode orders the eligible-driver listing. The default interleaves load
// and proximity.
type SortMode string

const (
	SortDefault      SortMode = ""
	SortDistance     SortMode = "distance"
	SortRating       SortMode = "rating"
	SortAvailability SortMode = "availability"
)

func (m SortMode) Valid() bool {
	switch m {
	case SortDefault, SortDistance, SortRating, SortAvailability:
		return true
	}
	return false
}

// RankedDriver is one row of the eligibility listing shown to a restaurant.
type RankedDriver struct {
	ID     types.ID `json:"id"`
	Name   string   `json:"name"`
	Phone  string   `json:"phone"`
	Rating float64  `json:"rating"`
	// Favorite drivers always sort ahead of the rest and bypass the
	// restaurant's search radius.
	Favorite bool `json:"favorite"`
	// DistanceKm is straight-line distance to the restaurant. Estimated is
	// set when the driver has no recent fix and a nominal distance is used.
	DistanceKm float64 `json:"distance_km"`
	Estimated  bool    `json:"estimated"`
	// ActiveOrders counts undelivered orders the driver already carries.
	ActiveOrders int `json:"active_orders"`
	// ETAMin estimates minutes until the driver reaches the restaurant.
	ETAMin int `json:"eta_min"`
}

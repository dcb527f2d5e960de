// README: Catalog read models: couriers and favorite drivers per restaurant.
package catalog

import (
	"time"

	"yalla/internal/types"
)

// Courier is a restaurant-owned delivery person. Couriers have no user
// account; the restaurant acts on their behalf.
type Courier struct {
	ID           types.ID  `json:"id"`
	RestaurantID types.ID  `json:"restaurant_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

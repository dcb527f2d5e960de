// README: Driver presence model: identity, city, online flag, last known position.
package presence

import (
	"time"

	"yalla/internal/types"
)

// Driver is the live presence record for a platform driver. Position is nil
// until the first location ping.
type Driver struct {
	ID         types.ID     `json:"id"`
	Name       string       `json:"name"`
	Phone      string       `json:"phone"`
	CityID     string       `json:"city_id"`
	Online     bool         `json:"online"`
	Rating     float64      `json:"rating"`
	Position   *types.Point `json:"position,omitempty"`
	LocationAt time.Time    `json:"location_at"`
	Active     bool         `json:"active"`
}

// HasFix reports whether the driver ever reported a position.
func (d *Driver) HasFix() bool {
	return d.Position != nil
}

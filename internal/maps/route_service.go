// README: Optional Google Distance Matrix travel estimates; callers fall back to the haversine heuristic.
package maps

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"googlemaps.github.io/maps"

	"yalla/internal/types"
)

// RouteService refines travel estimates through the Distance Matrix API.
// It is optional: the system runs on the distance heuristic without it.
type RouteService struct {
	client *maps.Client
	log    *slog.Logger
}

func NewRouteService(apiKey string, log *slog.Logger) (*RouteService, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &RouteService{client: client, log: log}, nil
}

// MinutesTo returns the driving estimate in whole minutes. ok=false on any
// API failure; callers must treat that as "use the heuristic", never as an
// error.
func (s *RouteService) MinutesTo(ctx context.Context, from, to types.Point) (int, bool) {
	r := &maps.DistanceMatrixRequest{
		Origins:      []string{latLng(from)},
		Destinations: []string{latLng(to)},
		Mode:         maps.TravelModeDriving,
	}
	resp, err := s.client.DistanceMatrix(ctx, r)
	if err != nil {
		s.log.Warn("distance matrix call failed", "err", err)
		return 0, false
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return 0, false
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" || el.Duration <= 0 {
		return 0, false
	}
	return int(math.Ceil(el.Duration.Minutes())), true
}

func latLng(p types.Point) string {
	return fmt.Sprintf("%f,%f", p.Lat, p.Lng)
}

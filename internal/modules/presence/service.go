// README: Presence service: location pings with city auto-detection, online toggling, city rosters.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"yalla/internal/geo"
	"yalla/internal/types"
)

var (
	ErrDriverNotFound  = errors.New("driver not found")
	ErrOutsideCoverage = errors.New("position outside any covered city")
)

// Store is the persisted driver presence record.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	SetPosition(ctx context.Context, id types.ID, p types.Point, cityID string, at time.Time) error
	SetOnline(ctx context.Context, id types.ID, online bool) error
	OnlineByCity(ctx context.Context, cityID string) ([]*Driver, error)
}

// Index is the live position index used for nearby lookups. It is best
// effort: index failures degrade ranking, never presence itself.
type Index interface {
	Update(ctx context.Context, id types.ID, p types.Point, cityID, prevCityID string) error
	Remove(ctx context.Context, id types.ID, cityID string) error
	Nearby(ctx context.Context, cityID string, p types.Point, radiusKm float64) ([]types.ID, error)
}

type Service struct {
	store Store
	index Index
	log   *slog.Logger
}

func NewService(store Store, index Index, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, index: index, log: log}
}

// Ping records a location fix. The covering city is re-resolved on every
// ping, so a driver crossing a city boundary moves rosters automatically.
func (s *Service) Ping(ctx context.Context, driverID types.ID, p types.Point) (*Driver, error) {
	d, err := s.store.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}

	city, _, ok := geo.NearestCity(p.Lat, p.Lng)
	if !ok {
		return nil, ErrOutsideCoverage
	}

	now := time.Now().UTC()
	if err := s.store.SetPosition(ctx, driverID, p, city.ID, now); err != nil {
		return nil, err
	}
	if s.index != nil {
		if err := s.index.Update(ctx, driverID, p, city.ID, d.CityID); err != nil {
			s.log.Warn("geo index update failed", "driver_id", driverID, "err", err)
		}
	}

	d.Position = &types.Point{Lat: p.Lat, Lng: p.Lng}
	d.CityID = city.ID
	d.LocationAt = now
	return d, nil
}

func (s *Service) SetOnline(ctx context.Context, driverID types.ID, online bool) (*Driver, error) {
	d, err := s.store.Get(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetOnline(ctx, driverID, online); err != nil {
		return nil, err
	}
	if !online && s.index != nil && d.CityID != "" {
		if err := s.index.Remove(ctx, driverID, d.CityID); err != nil {
			s.log.Warn("geo index remove failed", "driver_id", driverID, "err", err)
		}
	}
	d.Online = online
	return d, nil
}

func (s *Service) Get(ctx context.Context, driverID types.ID) (*Driver, error) {
	return s.store.Get(ctx, driverID)
}

// OnlineByCity returns the active online roster for a city.
func (s *Service) OnlineByCity(ctx context.Context, cityID string) ([]*Driver, error) {
	return s.store.OnlineByCity(ctx, cityID)
}

// NearbyIDs returns driver ids within radiusKm of a point from the live
// index; empty on index failure so callers fall back to the full roster.
func (s *Service) NearbyIDs(ctx context.Context, cityID string, p types.Point, radiusKm float64) []types.ID {
	if s.index == nil {
		return nil
	}
	ids, err := s.index.Nearby(ctx, cityID, p, radiusKm)
	if err != nil {
		s.log.Warn("geo index search failed", "city_id", cityID, "err", err)
		return nil
	}
	return ids
}

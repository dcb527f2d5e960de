// README: Presence persistence: driver rows in PostgreSQL, live positions in Redis GEO sets per city.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"yalla/internal/types"
)

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const driverColumns = `id, name, phone, city_id, online, rating, lat, lng, location_at, active`

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDriverNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get driver %s: %w", id, err)
	}
	return d, nil
}

// SetPosition records a location fix and the city it resolved to.
func (s *PGStore) SetPosition(ctx context.Context, id types.ID, p types.Point, cityID string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET lat = $1, lng = $2, city_id = $3, location_at = $4
		WHERE id = $5`,
		p.Lat, p.Lng, cityID, at, string(id))
	if err != nil {
		return fmt.Errorf("set position: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

func (s *PGStore) SetOnline(ctx context.Context, id types.ID, online bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET online = $1 WHERE id = $2`, online, string(id))
	if err != nil {
		return fmt.Errorf("set online: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDriverNotFound
	}
	return nil
}

// OnlineByCity lists active online drivers registered in a city.
func (s *PGStore) OnlineByCity(ctx context.Context, cityID string) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE city_id = $1 AND online AND active
		ORDER BY location_at DESC`,
		cityID)
	if err != nil {
		return nil, fmt.Errorf("online by city: %w", err)
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDriver(row interface{ Scan(...any) error }) (*Driver, error) {
	var d Driver
	var lat, lng *float64
	var locationAt *time.Time
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.CityID, &d.Online, &d.Rating, &lat, &lng, &locationAt, &d.Active)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		d.Position = &types.Point{Lat: *lat, Lng: *lng}
	}
	if locationAt != nil {
		d.LocationAt = *locationAt
	}
	return &d, nil
}

// GeoIndex mirrors live driver positions into per-city Redis GEO sets so
// nearby lookups stay off the relational store.
type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(r *redis.Client) *GeoIndex {
	return &GeoIndex{redis: r}
}

func cityGeoKey(cityID string) string {
	return fmt.Sprintf("presence:city:%s:drivers", cityID)
}

// Update places the driver in the city's GEO set, removing it from the
// previous city's set when the driver crossed a boundary.
func (g *GeoIndex) Update(ctx context.Context, id types.ID, p types.Point, cityID, prevCityID string) error {
	pipe := g.redis.Pipeline()
	if prevCityID != "" && prevCityID != cityID {
		pipe.ZRem(ctx, cityGeoKey(prevCityID), string(id))
	}
	pipe.GeoAdd(ctx, cityGeoKey(cityID), &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	})
	_, err := pipe.Exec(ctx)
	return err
}

func (g *GeoIndex) Remove(ctx context.Context, id types.ID, cityID string) error {
	return g.redis.ZRem(ctx, cityGeoKey(cityID), string(id)).Err()
}

// Nearby returns driver ids within radiusKm of the point, closest first.
func (g *GeoIndex) Nearby(ctx context.Context, cityID string, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := g.redis.GeoSearch(ctx, cityGeoKey(cityID), &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     radiusKm,
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}

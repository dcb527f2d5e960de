// README: Catalog store: restaurants, menu snapshots, courier pool, and favorite drivers.
package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"yalla/internal/modules/order"
	"yalla/internal/types"
)

var ErrNotFound = errors.New("catalog entry not found")

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Restaurant implements the order module's catalog collaborator.
func (s *Store) Restaurant(ctx context.Context, id types.ID) (*order.RestaurantInfo, error) {
	return s.restaurantBy(ctx, "id", string(id))
}

func (s *Store) RestaurantByOwner(ctx context.Context, ownerID types.ID) (*order.RestaurantInfo, error) {
	return s.restaurantBy(ctx, "owner_id", string(ownerID))
}

func (s *Store) restaurantBy(ctx context.Context, col, val string) (*order.RestaurantInfo, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, city_id, lat, lng, delivery_fee, min_order, open, search_radius_km
		FROM restaurants
		WHERE `+col+` = $1`, val)

	var r order.RestaurantInfo
	var fee, minOrder int64
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.CityID,
		&r.Position.Lat, &r.Position.Lng, &fee, &minOrder, &r.Open, &r.RadiusKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load restaurant: %w", err)
	}
	r.DeliveryFee = types.SYP(fee)
	r.MinOrder = types.SYP(minOrder)
	return &r, nil
}

func (s *Store) MenuItem(ctx context.Context, restaurantID, itemID types.ID) (*order.MenuItemInfo, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, price, available
		FROM menu_items
		WHERE id = $1 AND restaurant_id = $2`,
		string(itemID), string(restaurantID))

	var mi order.MenuItemInfo
	var price int64
	err := row.Scan(&mi.ID, &mi.Name, &price, &mi.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load menu item: %w", err)
	}
	mi.Price = types.SYP(price)
	return &mi, nil
}

func (s *Store) Customer(ctx context.Context, id types.ID) (*order.CustomerInfo, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, phone FROM users WHERE id = $1`, string(id))
	var c order.CustomerInfo
	err := row.Scan(&c.ID, &c.Name, &c.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	return &c, nil
}

// Couriers lists a restaurant's own delivery people, active first.
func (s *Store) Couriers(ctx context.Context, restaurantID types.ID) ([]Courier, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, restaurant_id, name, phone, active, created_at
		FROM restaurant_couriers
		WHERE restaurant_id = $1
		ORDER BY active DESC, created_at ASC`,
		string(restaurantID))
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	defer rows.Close()

	var out []Courier
	for rows.Next() {
		var c Courier
		if err := rows.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Phone, &c.Active, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Courier loads one courier scoped to the owning restaurant.
func (s *Store) Courier(ctx context.Context, restaurantID, courierID types.ID) (*Courier, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, restaurant_id, name, phone, active, created_at
		FROM restaurant_couriers
		WHERE id = $1 AND restaurant_id = $2`,
		string(courierID), string(restaurantID))

	var c Courier
	err := row.Scan(&c.ID, &c.RestaurantID, &c.Name, &c.Phone, &c.Active, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load courier: %w", err)
	}
	return &c, nil
}

func (s *Store) AddCourier(ctx context.Context, restaurantID types.ID, name, phone string) (*Courier, error) {
	c := &Courier{
		ID:           newID(),
		RestaurantID: restaurantID,
		Name:         name,
		Phone:        phone,
		Active:       true,
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO restaurant_couriers (id, restaurant_id, name, phone, active, created_at)
		VALUES ($1, $2, $3, $4, TRUE, now())
		RETURNING created_at`,
		string(c.ID), string(restaurantID), name, phone)
	if err := row.Scan(&c.CreatedAt); err != nil {
		return nil, fmt.Errorf("add courier: %w", err)
	}
	return c, nil
}

func (s *Store) RemoveCourier(ctx context.Context, restaurantID, courierID types.ID) error {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM restaurant_couriers WHERE id = $1 AND restaurant_id = $2`,
		string(courierID), string(restaurantID))
	if err != nil {
		return fmt.Errorf("remove courier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FavoriteDriverIDs returns the restaurant's favorites as a set.
func (s *Store) FavoriteDriverIDs(ctx context.Context, restaurantID types.ID) (map[types.ID]bool, error) {
	rows, err := s.db.Query(ctx, `
		SELECT driver_id FROM restaurant_favorite_drivers WHERE restaurant_id = $1`,
		string(restaurantID))
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	out := make(map[types.ID]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[types.ID(id)] = true
	}
	return out, rows.Err()
}

func (s *Store) AddFavorite(ctx context.Context, restaurantID, driverID types.ID) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO restaurant_favorite_drivers (restaurant_id, driver_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		string(restaurantID), string(driverID))
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

func (s *Store) RemoveFavorite(ctx context.Context, restaurantID, driverID types.ID) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM restaurant_favorite_drivers
		WHERE restaurant_id = $1 AND driver_id = $2`,
		string(restaurantID), string(driverID))
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}

// SetSearchRadius stores the non-favorite driver listing radius in km.
func (s *Store) SetSearchRadius(ctx context.Context, restaurantID types.ID, km float64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE restaurants SET search_radius_km = $1 WHERE id = $2`,
		km, string(restaurantID))
	if err != nil {
		return fmt.Errorf("set search radius: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetOpen toggles whether the restaurant accepts new orders.
func (s *Store) SetOpen(ctx context.Context, restaurantID types.ID, open bool) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE restaurants SET open = $1 WHERE id = $2`,
		open, string(restaurantID))
	if err != nil {
		return fmt.Errorf("set open: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}

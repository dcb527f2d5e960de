// README: Presence service unit tests plus a Redis-gated index test.
package presence

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"yalla/internal/types"
)

// ---------------------------------------------------------------------------
// In-memory collaborators
// ---------------------------------------------------------------------------

type memStore struct {
	drivers map[types.ID]*Driver
}

func newMemStore(drivers ...*Driver) *memStore {
	m := &memStore{drivers: make(map[types.ID]*Driver)}
	for _, d := range drivers {
		cp := *d
		m.drivers[d.ID] = &cp
	}
	return m
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) SetPosition(ctx context.Context, id types.ID, p types.Point, cityID string, at time.Time) error {
	d, ok := m.drivers[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.Position = &types.Point{Lat: p.Lat, Lng: p.Lng}
	d.CityID = cityID
	d.LocationAt = at
	return nil
}

func (m *memStore) SetOnline(ctx context.Context, id types.ID, online bool) error {
	d, ok := m.drivers[id]
	if !ok {
		return ErrDriverNotFound
	}
	d.Online = online
	return nil
}

func (m *memStore) OnlineByCity(ctx context.Context, cityID string) ([]*Driver, error) {
	var out []*Driver
	for _, d := range m.drivers {
		if d.CityID == cityID && d.Online && d.Active {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memIndex struct {
	// byCity maps city id to member driver ids.
	byCity  map[string]map[types.ID]types.Point
	failAll bool
}

func newMemIndex() *memIndex {
	return &memIndex{byCity: make(map[string]map[types.ID]types.Point)}
}

func (m *memIndex) Update(ctx context.Context, id types.ID, p types.Point, cityID, prevCityID string) error {
	if m.failAll {
		return errors.New("index down")
	}
	if prevCityID != "" && prevCityID != cityID {
		delete(m.byCity[prevCityID], id)
	}
	if m.byCity[cityID] == nil {
		m.byCity[cityID] = make(map[types.ID]types.Point)
	}
	m.byCity[cityID][id] = p
	return nil
}

func (m *memIndex) Remove(ctx context.Context, id types.ID, cityID string) error {
	if m.failAll {
		return errors.New("index down")
	}
	delete(m.byCity[cityID], id)
	return nil
}

func (m *memIndex) Nearby(ctx context.Context, cityID string, p types.Point, radiusKm float64) ([]types.ID, error) {
	if m.failAll {
		return nil, errors.New("index down")
	}
	var out []types.ID
	for id := range m.byCity[cityID] {
		out = append(out, id)
	}
	return out, nil
}

func testDriver(id types.ID) *Driver {
	return &Driver{ID: id, Name: "Khaled", Phone: "0988", Online: true, Active: true, Rating: 4.5}
}

// ---------------------------------------------------------------------------
// Ping
// ---------------------------------------------------------------------------

func TestPing_ResolvesCityFromPosition(t *testing.T) {
	store := newMemStore(testDriver("drv-1"))
	idx := newMemIndex()
	svc := NewService(store, idx, slog.New(slog.DiscardHandler))

	// Jaramana, a Damascus suburb.
	d, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 33.4862, Lng: 36.3460})
	if err != nil {
		t.Fatalf("ping: %v", err)
	}
	if d.CityID != "damascus" {
		t.Errorf("city = %s, want damascus", d.CityID)
	}
	if !d.HasFix() {
		t.Error("driver should have a fix after ping")
	}
	if _, ok := idx.byCity["damascus"]["drv-1"]; !ok {
		t.Error("driver should be in the damascus geo set")
	}
}

func TestPing_CityCrossingMovesRosters(t *testing.T) {
	store := newMemStore(testDriver("drv-1"))
	idx := newMemIndex()
	svc := NewService(store, idx, slog.New(slog.DiscardHandler))

	if _, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 33.5138, Lng: 36.2765}); err != nil {
		t.Fatal(err)
	}
	d, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 36.2021, Lng: 37.1343})
	if err != nil {
		t.Fatal(err)
	}
	if d.CityID != "aleppo" {
		t.Errorf("city = %s, want aleppo", d.CityID)
	}
	if _, still := idx.byCity["damascus"]["drv-1"]; still {
		t.Error("driver should have left the damascus geo set")
	}
	if _, ok := idx.byCity["aleppo"]["drv-1"]; !ok {
		t.Error("driver should be in the aleppo geo set")
	}
}

func TestPing_OutsideCoverageRejected(t *testing.T) {
	store := newMemStore(testDriver("drv-1"))
	svc := NewService(store, newMemIndex(), slog.New(slog.DiscardHandler))

	// Baghdad, far beyond the coverage cutoff.
	_, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 33.3152, Lng: 44.3661})
	if !errors.Is(err, ErrOutsideCoverage) {
		t.Fatalf("err = %v, want ErrOutsideCoverage", err)
	}
}

func TestPing_IndexFailureDoesNotFailPing(t *testing.T) {
	store := newMemStore(testDriver("drv-1"))
	idx := newMemIndex()
	idx.failAll = true
	svc := NewService(store, idx, slog.New(slog.DiscardHandler))

	d, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 33.5138, Lng: 36.2765})
	if err != nil {
		t.Fatalf("ping must survive an index outage: %v", err)
	}
	if d.CityID != "damascus" {
		t.Errorf("city = %s", d.CityID)
	}
}

func TestPing_UnknownDriver(t *testing.T) {
	svc := NewService(newMemStore(), newMemIndex(), slog.New(slog.DiscardHandler))
	_, err := svc.Ping(context.Background(), "ghost", types.Point{Lat: 33.5138, Lng: 36.2765})
	if !errors.Is(err, ErrDriverNotFound) {
		t.Fatalf("err = %v, want ErrDriverNotFound", err)
	}
}

// ---------------------------------------------------------------------------
// Online toggling
// ---------------------------------------------------------------------------

func TestSetOnline_GoingOfflineLeavesGeoSet(t *testing.T) {
	store := newMemStore(testDriver("drv-1"))
	idx := newMemIndex()
	svc := NewService(store, idx, slog.New(slog.DiscardHandler))

	if _, err := svc.Ping(context.Background(), "drv-1", types.Point{Lat: 33.5138, Lng: 36.2765}); err != nil {
		t.Fatal(err)
	}
	d, err := svc.SetOnline(context.Background(), "drv-1", false)
	if err != nil {
		t.Fatal(err)
	}
	if d.Online {
		t.Error("driver should be offline")
	}
	if _, still := idx.byCity["damascus"]["drv-1"]; still {
		t.Error("offline driver should leave the geo set")
	}
}

func TestNearbyIDs_EmptyOnIndexFailure(t *testing.T) {
	idx := newMemIndex()
	idx.failAll = true
	svc := NewService(newMemStore(), idx, slog.New(slog.DiscardHandler))

	ids := svc.NearbyIDs(context.Background(), "damascus", types.Point{Lat: 33.5, Lng: 36.3}, 50)
	if len(ids) != 0 {
		t.Fatalf("expected empty result on index failure, got %v", ids)
	}
}

// ---------------------------------------------------------------------------
// Redis-backed index (skipped without YALLA_REDIS_ADDR)
// ---------------------------------------------------------------------------

func TestGeoIndex_UpdateAndNearby(t *testing.T) {
	addr := os.Getenv("YALLA_REDIS_ADDR")
	if addr == "" {
		t.Skip("YALLA_REDIS_ADDR not set; skipping integration test")
	}

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() {
		client.Del(ctx, "presence:city:damascus:drivers", "presence:city:aleppo:drivers")
		client.Close()
	})

	idx := NewGeoIndex(client)
	if err := idx.Update(ctx, "drv-geo-1", types.Point{Lat: 33.5138, Lng: 36.2765}, "damascus", ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	ids, err := idx.Nearby(ctx, "damascus", types.Point{Lat: 33.52, Lng: 36.28}, 10)
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	found := false
	for _, id := range ids {
		if id == "drv-geo-1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("driver not found nearby, got %v", ids)
	}

	// Crossing to another city removes the old membership.
	if err := idx.Update(ctx, "drv-geo-1", types.Point{Lat: 36.2021, Lng: 37.1343}, "aleppo", "damascus"); err != nil {
		t.Fatalf("cross-city update: %v", err)
	}
	ids, err = idx.Nearby(ctx, "damascus", types.Point{Lat: 33.52, Lng: 36.28}, 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range ids {
		if id == "drv-geo-1" {
			t.Fatal("driver should have left the damascus set")
		}
	}
}

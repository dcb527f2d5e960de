package geo

import (
	"math"
	"testing"
)

func TestDistanceKmZeroForSamePoint(t *testing.T) {
	if d := DistanceKm(33.5138, 36.2765, 33.5138, 36.2765); d != 0 {
		t.Errorf("expected 0 for identical points, got %f", d)
	}
}

func TestDistanceKmDamascusAleppo(t *testing.T) {
	d := DistanceKm(33.5138, 36.2765, 36.2021, 37.1343)
	if math.Abs(d-307) > 5 {
		t.Errorf("Damascus-Aleppo: expected ~307 km, got %f", d)
	}
}

func TestDistanceKmSymmetric(t *testing.T) {
	a := DistanceKm(33.5138, 36.2765, 34.7324, 36.7137)
	b := DistanceKm(34.7324, 36.7137, 33.5138, 36.2765)
	if math.Abs(a-b) > 1e-9 {
		t.Errorf("distance not symmetric: %f vs %f", a, b)
	}
}

func TestNearestCityDamascusSuburb(t *testing.T) {
	// Jaramana, a few km from the Damascus centre.
	city, dist, ok := NearestCity(33.4862, 36.3466)
	if !ok {
		t.Fatal("expected coverage near Damascus")
	}
	if city.ID != "damascus" {
		t.Errorf("expected damascus, got %s", city.ID)
	}
	if dist > 15 {
		t.Errorf("unexpected distance %f", dist)
	}
}

func TestNearestCityOutsideCoverage(t *testing.T) {
	// Baghdad is roughly 700 km from every covered city.
	_, dist, ok := NearestCity(33.3152, 44.3661)
	if ok {
		t.Fatalf("expected outside coverage, got ok with dist %f", dist)
	}
	if dist <= CoverageRadiusKm {
		t.Errorf("expected distance beyond cutoff, got %f", dist)
	}
}

func TestCityByID(t *testing.T) {
	if _, ok := CityByID("aleppo"); !ok {
		t.Error("aleppo should be a known city")
	}
	if _, ok := CityByID("beirut"); ok {
		t.Error("beirut should not be a known city")
	}
}

func TestETAFloors(t *testing.T) {
	if got := ETAToRestaurantMin(0); got != 3 {
		t.Errorf("restaurant ETA floor: expected 3, got %d", got)
	}
	if got := ETAToCustomerMin(0); got != 5 {
		t.Errorf("customer ETA floor: expected 5, got %d", got)
	}
}

func TestETAGrowsWithDistance(t *testing.T) {
	if ETAToRestaurantMin(10) <= ETAToRestaurantMin(1) {
		t.Error("restaurant ETA should grow with distance")
	}
	if got := ETAToRestaurantMin(5); got != 17 {
		t.Errorf("5 km leg: expected 17 min, got %d", got)
	}
	if got := ETAToCustomerMin(2); got != 20 {
		t.Errorf("2 km leg: expected 20 min, got %d", got)
	}
}

package geo

import "math"

// City is a covered operating city with its centre coordinates.
type City struct {
	ID   string
	Name string
	Lat  float64
	Lng  float64
}

// Cities lists the covered operating cities. Drivers and restaurants are
// grouped by city; dispatch never crosses city boundaries.
var Cities = []City{
	{ID: "damascus", Name: "Damascus", Lat: 33.5138, Lng: 36.2765},
	{ID: "aleppo", Name: "Aleppo", Lat: 36.2021, Lng: 37.1343},
	{ID: "homs", Name: "Homs", Lat: 34.7324, Lng: 36.7137},
	{ID: "latakia", Name: "Latakia", Lat: 35.5317, Lng: 35.7918},
	{ID: "tartous", Name: "Tartous", Lat: 34.8890, Lng: 35.8866},
}

// NearestCity returns the closest covered city to the given coordinate along
// with the distance to its centre. ok is false when the point lies further
// than CoverageRadiusKm from every city, i.e. outside coverage.
func NearestCity(lat, lng float64) (city City, distanceKm float64, ok bool) {
	best := -1
	bestDist := math.MaxFloat64
	for i, c := range Cities {
		d := DistanceKm(lat, lng, c.Lat, c.Lng)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 || bestDist > CoverageRadiusKm {
		return City{}, bestDist, false
	}
	return Cities[best], bestDist, true
}

// CityByID looks up a covered city by its identifier.
func CityByID(id string) (City, bool) {
	for _, c := range Cities {
		if c.ID == id {
			return c, true
		}
	}
	return City{}, false
}

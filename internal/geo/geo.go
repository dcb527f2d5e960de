// Package geo contains pure geographic computation helpers: great-circle
// distance, nearest-city detection, and ETA heuristics.
package geo

import "math"

const earthRadiusKm = 6371.0

// CoverageRadiusKm is the maximum distance from the nearest known city at
// which a coordinate is still considered inside the service area.
const CoverageRadiusKm = 200.0

// DistanceKm returns the haversine great-circle distance in kilometres
// between two points specified in decimal degrees.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := degreesToRadians(lat2 - lat1)
	dLng := degreesToRadians(lng2 - lng1)

	rLat1 := degreesToRadians(lat1)
	rLat2 := degreesToRadians(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// ETA heuristic factors. These are presentation estimates only; nothing else
// depends on them.
const (
	etaPerKmMin          = 3
	etaRestaurantBaseMin = 2
	etaRestaurantFloor   = 3
	etaCustomerBaseMin   = 5
	etaCustomerFloor     = 5
	// roadFactor scales straight-line distance to an approximate road
	// distance for the delivery leg.
	roadFactor = 2.5
)

// ETAToRestaurantMin estimates minutes for a driver to reach the restaurant.
func ETAToRestaurantMin(distanceKm float64) int {
	eta := int(distanceKm*etaPerKmMin) + etaRestaurantBaseMin
	if eta < etaRestaurantFloor {
		return etaRestaurantFloor
	}
	return eta
}

// ETAToCustomerMin estimates minutes for the delivery leg, given the
// straight-line distance still to cover. The road factor compensates for
// urban routing.
func ETAToCustomerMin(distanceKm float64) int {
	road := distanceKm * roadFactor
	eta := int(road*etaPerKmMin) + etaCustomerBaseMin
	if eta < etaCustomerFloor {
		return etaCustomerFloor
	}
	return eta
}

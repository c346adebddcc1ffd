package domain

import "math"

// EarthRadiusMeters matches the radius redis uses for GEO commands so both index backends rank identically.
const EarthRadiusMeters = 6372797.560856

// MaxDistanceMeters is half the equatorial circumference; no two points are further apart.
const MaxDistanceMeters = math.Pi * EarthRadiusMeters

// GreatCircleDistance returns the haversine distance in meters between a and b.
func GreatCircleDistance(a, b Point) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Pow(math.Sin(dLat/2), 2) + math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(dLon/2), 2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

// Package dedup finds and scores likely duplicate incidents around a
// new submission: a spatial-temporal candidate search followed by a
// weighted multi-signal score.
package dedup

import "math"

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two
// coordinates. Accurate to ~0.5% which is far below the dedup radius.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const degToRad = math.Pi / 180

	dLat := (lat2 - lat1) * degToRad
	dLon := (lon2 - lon1) * degToRad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*degToRad)*math.Cos(lat2*degToRad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// BoundingBox returns the latitude/longitude bounds of a circle around
// a center point, used as a cheap index-friendly prefilter before the
// exact haversine check.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, maxLat, minLon, maxLon float64) {
	latDelta := radiusMeters / earthRadiusMeters * (180 / math.Pi)

	minLat = lat - latDelta
	maxLat = lat + latDelta

	// Longitude degrees shrink with latitude; near the poles the box
	// degenerates to the full longitude range.
	cosLat := math.Cos(lat * math.Pi / 180)
	if cosLat < 1e-10 {
		return minLat, maxLat, -180, 180
	}
	lonDelta := latDelta / cosLat
	if lonDelta >= 180 {
		return minLat, maxLat, -180, 180
	}

	return minLat, maxLat, lon - lonDelta, lon + lonDelta
}

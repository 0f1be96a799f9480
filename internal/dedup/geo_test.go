package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name       string
		lat1, lon1 float64
		lat2, lon2 float64
		want       float64
		tolerance  float64
	}{
		{
			name: "same point",
			lat1: 43.6532, lon1: -79.3832,
			lat2: 43.6532, lon2: -79.3832,
			want: 0, tolerance: 0.001,
		},
		{
			name: "toronto to ottawa",
			lat1: 43.6532, lon1: -79.3832,
			lat2: 45.4215, lon2: -75.6972,
			want: 352000, tolerance: 5000,
		},
		{
			name: "one degree of latitude",
			lat1: 43.0, lon1: -79.0,
			lat2: 44.0, lon2: -79.0,
			want: 111195, tolerance: 500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Haversine(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.want, got, tt.tolerance)
		})
	}
}

func TestBoundingBoxContainsRadius(t *testing.T) {
	lat, lon := 43.6532, -79.3832
	radius := 250.0

	minLat, maxLat, minLon, maxLon := BoundingBox(lat, lon, radius)

	assert.Less(t, minLat, lat)
	assert.Greater(t, maxLat, lat)
	assert.Less(t, minLon, lon)
	assert.Greater(t, maxLon, lon)

	// Points on the cardinal edges of the circle must fall inside.
	assert.LessOrEqual(t, minLat, lat-radius/111195)
	assert.GreaterOrEqual(t, maxLat, lat+radius/111195)
}

func TestBoundingBoxNearPoles(t *testing.T) {
	_, _, minLon, maxLon := BoundingBox(89.9999, 0, 250)

	assert.Equal(t, -180.0, minLon)
	assert.Equal(t, 180.0, maxLon)
}

package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-polyline"
)

func TestPointToPoint(t *testing.T) {
	// Highway 4: Angels Camp to Murphys
	angelscamp := Point{Latitude: 38.0675, Longitude: -120.5436}
	murphys := Point{Latitude: 38.1391, Longitude: -120.4561}

	distance, err := PointToPoint(angelscamp, murphys)
	require.NoError(t, err)
	assert.InDelta(t, 11046, distance, 100, "Distance should be approximately 11.0km")

	invalidPoint := Point{Latitude: 200, Longitude: -300}
	_, err = PointToPoint(angelscamp, invalidPoint)
	assert.Error(t, err, "Should return error for invalid coordinates")
}

func TestPathLength(t *testing.T) {
	sea := Point{Latitude: 47.4502, Longitude: -122.3088}
	lax := Point{Latitude: 33.9416, Longitude: -118.4085}

	direct := PathLength([]Point{sea, lax}, Kilometers)
	assert.InDelta(t, 1535, direct, 15, "SEA-LAX should be roughly 1535km")

	assert.Zero(t, PathLength(nil, Meters))
	assert.Zero(t, PathLength([]Point{sea}, Meters), "Single point path has no length")

	meters := PathLength([]Point{sea, lax}, Meters)
	assert.InDelta(t, direct*1000, meters, 1e-6)
}

func TestPathLength_MonotonicUnderSubdivision(t *testing.T) {
	sea := Point{Latitude: 47.4502, Longitude: -122.3088}
	jfk := Point{Latitude: 40.6413, Longitude: -73.7781}

	coarse, err := GreatCircle(sea, jfk, 2)
	require.NoError(t, err)
	fine, err := GreatCircle(sea, jfk, 257)
	require.NoError(t, err)

	assert.InDelta(t, PathLength(coarse, Meters), PathLength(fine, Meters), 1.0,
		"Subdividing a great circle should not change its length")
}

func TestGreatCircle(t *testing.T) {
	sea := Point{Latitude: 47.4502, Longitude: -122.3088}
	lax := Point{Latitude: 33.9416, Longitude: -118.4085}

	path, err := GreatCircle(sea, lax, 64)
	require.NoError(t, err)
	require.Len(t, path, 64)
	assert.Equal(t, sea, path[0])
	assert.Equal(t, lax, path[63])

	for _, p := range path {
		assert.False(t, math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude), "No NaN vertices")
		assert.True(t, p.IsValid())
	}

	// Vertices are evenly spaced along the arc
	first, _ := PointToPoint(path[0], path[1])
	last, _ := PointToPoint(path[62], path[63])
	assert.InDelta(t, first, last, 1.0)
}

func TestGreatCircle_IdenticalPoints(t *testing.T) {
	p := Point{Latitude: 10, Longitude: 20}
	_, err := GreatCircle(p, p, 64)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestGreatCircle_TooFewVertices(t *testing.T) {
	_, err := GreatCircle(Point{Latitude: 0, Longitude: 0}, Point{Latitude: 1, Longitude: 1}, 1)
	assert.ErrorIs(t, err, ErrDegenerateGeometry)
}

func TestGreatCircle_NearIdenticalPoints(t *testing.T) {
	a := Point{Latitude: 10, Longitude: 20}
	b := Point{Latitude: 10, Longitude: 20 + 1e-13}

	path, err := GreatCircle(a, b, 8)
	require.NoError(t, err)
	for _, p := range path {
		assert.False(t, math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude))
	}
}

func TestGreatCircle_Antipodal(t *testing.T) {
	a := Point{Latitude: 10, Longitude: 20}
	b := Point{Latitude: -10, Longitude: -160}

	path, err := GreatCircle(a, b, 65)
	require.NoError(t, err)
	for _, p := range path {
		assert.False(t, math.IsNaN(p.Latitude) || math.IsNaN(p.Longitude))
	}

	// Half way round the planet
	assert.InDelta(t, math.Pi*earthRadius, PathLength(path, Meters), 1000)
	// The midpoint is the quarter turn north of a
	assert.InDelta(t, 80, path[32].Latitude, 1e-6)
}

func TestGooglePolylineRoundTrip(t *testing.T) {
	points := []Point{
		{Latitude: 38.0675, Longitude: -120.5436},
		{Latitude: 38.1391, Longitude: -120.4561},
	}

	encoded := EncodeGooglePolyline(points)
	require.NotEmpty(t, encoded)

	decoded, _, err := polyline.DecodeCoords([]byte(encoded))
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	for i := range points {
		assert.InDelta(t, points[i].Latitude, decoded[i][0], 1e-5)
		assert.InDelta(t, points[i].Longitude, decoded[i][1], 1e-5)
	}

	assert.Empty(t, EncodeGooglePolyline(nil))
}

func TestNewPoint(t *testing.T) {
	p, err := NewPoint(47.6062, -122.3321)
	require.NoError(t, err)
	assert.Equal(t, 47.6062, p.Latitude)

	_, err = NewPoint(91, 0)
	assert.Error(t, err)
}

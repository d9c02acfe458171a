package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/twpayne/go-polyline"
)

// PointToPoint calculates great-circle distance between two points using Haversine formula
func PointToPoint(p1, p2 Point) (float64, error) {
	if !isValidCoordinate(p1) || !isValidCoordinate(p2) {
		return 0, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return haversine(p1, p2), nil
}

func haversine(p1, p2 Point) float64 {
	if p1 == p2 {
		return 0
	}

	lat1 := toRadians(p1.Latitude)
	lat2 := toRadians(p2.Latitude)
	dlat := lat2 - lat1
	dlon := toRadians(p2.Longitude - p1.Longitude)

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}

// PathLength sums the great-circle lengths of consecutive segments.
// Empty and single-point paths have zero length.
func PathLength(points []Point, unit Unit) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += haversine(points[i-1], points[i])
	}
	if unit == Kilometers {
		return total / 1000
	}
	return total
}

// GreatCircle approximates the great-circle path from a to b with nPoints
// vertices, both endpoints included.
//
// Identical endpoints return ErrDegenerateGeometry. Antipodal endpoints have
// no unique great circle; the path then runs through the point a quarter turn
// north of a along its meridian.
func GreatCircle(a, b Point, nPoints int) ([]Point, error) {
	if nPoints < 2 {
		return nil, fmt.Errorf("%w: need at least 2 vertices, got %d", ErrDegenerateGeometry, nPoints)
	}
	if !isValidCoordinate(a) || !isValidCoordinate(b) {
		return nil, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	if a == b {
		return nil, fmt.Errorf("%w: endpoints are identical", ErrDegenerateGeometry)
	}

	va, vb := toVector(a), toVector(b)
	d := angleBetween(va, vb)

	points := make([]Point, nPoints)
	for i := 0; i < nPoints; i++ {
		f := float64(i) / float64(nPoints-1)
		switch {
		case d < 1e-12:
			// Too close for slerp to be numerically stable.
			points[i] = Point{
				Latitude:  a.Latitude + f*(b.Latitude-a.Latitude),
				Longitude: a.Longitude + f*(b.Longitude-a.Longitude),
			}
		case math.Pi-d < 1e-9:
			mid := quarterTurnNorth(a)
			if f <= 0.5 {
				points[i] = toPoint(slerp(va, mid, math.Pi/2, 2*f))
			} else {
				points[i] = toPoint(slerp(mid, vb, math.Pi/2, 2*f-1))
			}
		default:
			points[i] = toPoint(slerp(va, vb, d, f))
		}
	}

	// Pin the endpoints so rounding never moves them.
	points[0] = a
	points[nPoints-1] = b
	return points, nil
}

// EncodeGooglePolyline encodes points in Google's polyline format (precision 5),
// the format most web map libraries accept directly.
func EncodeGooglePolyline(points []Point) string {
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.Latitude, p.Longitude}
	}
	return string(polyline.EncodeCoords(coords))
}

// NewPoint creates a Point from latitude and longitude values with validation
func NewPoint(latitude, longitude float64) (Point, error) {
	point := Point{Latitude: latitude, Longitude: longitude}
	if !isValidCoordinate(point) {
		return Point{}, errors.New("invalid coordinates: latitude must be [-90, 90], longitude must be [-180, 180]")
	}
	return point, nil
}

// IsValid reports whether the point lies within WGS84 bounds
func (p Point) IsValid() bool {
	return isValidCoordinate(p)
}

type vector [3]float64

func toVector(p Point) vector {
	lat := toRadians(p.Latitude)
	lng := toRadians(p.Longitude)
	return vector{
		math.Cos(lat) * math.Cos(lng),
		math.Cos(lat) * math.Sin(lng),
		math.Sin(lat),
	}
}

func toPoint(v vector) Point {
	lat := math.Atan2(v[2], math.Sqrt(v[0]*v[0]+v[1]*v[1]))
	lng := math.Atan2(v[1], v[0])
	return Point{Latitude: toDegrees(lat), Longitude: normalizeLongitude(toDegrees(lng))}
}

func angleBetween(a, b vector) float64 {
	cross := vector{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	sin := math.Sqrt(cross[0]*cross[0] + cross[1]*cross[1] + cross[2]*cross[2])
	cos := a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
	return math.Atan2(sin, cos)
}

// slerp interpolates fraction f along the arc of angle d between unit vectors a and b.
func slerp(a, b vector, d, f float64) vector {
	sd := math.Sin(d)
	wa := math.Sin((1-f)*d) / sd
	wb := math.Sin(f*d) / sd
	return vector{
		wa*a[0] + wb*b[0],
		wa*a[1] + wb*b[1],
		wa*a[2] + wb*b[2],
	}
}

// quarterTurnNorth returns the unit vector 90 degrees from p heading north
// along p's meridian (over the pole when p is in the northern hemisphere).
func quarterTurnNorth(p Point) vector {
	lat := toRadians(p.Latitude)
	lng := toRadians(p.Longitude)
	return vector{
		-math.Sin(lat) * math.Cos(lng),
		-math.Sin(lat) * math.Sin(lng),
		math.Cos(lat),
	}
}

func normalizeLongitude(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }

func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// isValidCoordinate validates latitude and longitude values
func isValidCoordinate(point Point) bool {
	return point.Latitude >= -90 && point.Latitude <= 90 &&
		point.Longitude >= -180 && point.Longitude <= 180
}

// Package flexpolyline implements HERE's flexible polyline encoding: a header
// (format version, precision, optional third dimension) followed by
// delta-coded, zigzag-signed varints written in a URL-safe base64 alphabet.
package flexpolyline

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// FormatVersion is the only header version this codec understands
const FormatVersion = 1

// DefaultPrecision is the precision used for every polyline this service synthesizes
const DefaultPrecision = 3

const encodingTable = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var decodingTable = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(encodingTable); i++ {
		table[encodingTable[i]] = int8(i)
	}
	return table
}()

var (
	// ErrDecode is returned for malformed polyline strings
	ErrDecode = errors.New("invalid flexible polyline")
	// ErrEncode is returned when points cannot be represented
	ErrEncode = errors.New("cannot encode flexible polyline")
)

// ThirdDimension identifies the meaning of an optional third value per point
type ThirdDimension int

const (
	Absent ThirdDimension = iota
	Level
	Altitude
	Elevation
	reserved1
	reserved2
	Custom1
	Custom2
)

// Header carries the metadata encoded at the start of every polyline
type Header struct {
	Precision               int
	ThirdDimension          ThirdDimension
	ThirdDimensionPrecision int
}

// Decode parses an encoded polyline into its coordinates. Any third-dimension
// values are validated and dropped.
func Decode(encoded string) ([]geo.Point, error) {
	points, _, err := DecodeWithHeader(encoded)
	return points, err
}

// DecodeWithHeader parses an encoded polyline and also returns its header
func DecodeWithHeader(encoded string) ([]geo.Point, Header, error) {
	if encoded == "" {
		return nil, Header{}, fmt.Errorf("%w: empty string", ErrDecode)
	}

	d := &decoder{s: encoded}
	version, err := d.unsigned()
	if err != nil {
		return nil, Header{}, err
	}
	if version != FormatVersion {
		return nil, Header{}, fmt.Errorf("%w: unsupported version %d", ErrDecode, version)
	}

	raw, err := d.unsigned()
	if err != nil {
		return nil, Header{}, err
	}
	if raw >= 1<<11 {
		return nil, Header{}, fmt.Errorf("%w: header value %d out of range", ErrDecode, raw)
	}
	header := Header{
		Precision:               int(raw & 15),
		ThirdDimension:          ThirdDimension((raw >> 4) & 7),
		ThirdDimensionPrecision: int((raw >> 7) & 15),
	}
	if header.ThirdDimension == reserved1 || header.ThirdDimension == reserved2 {
		return nil, Header{}, fmt.Errorf("%w: reserved third dimension %d", ErrDecode, header.ThirdDimension)
	}

	dims := 2
	if header.ThirdDimension != Absent {
		dims = 3
	}

	var values []int64
	for !d.done() {
		v, err := d.signed()
		if err != nil {
			return nil, Header{}, err
		}
		values = append(values, v)
	}
	if len(values)%dims != 0 {
		return nil, Header{}, fmt.Errorf("%w: %d values do not form %d-value groups", ErrDecode, len(values), dims)
	}

	scale := math.Pow10(header.Precision)
	points := make([]geo.Point, 0, len(values)/dims)
	var lat, lng int64
	for i := 0; i < len(values); i += dims {
		lat += values[i]
		lng += values[i+1]
		points = append(points, geo.Point{
			Latitude:  float64(lat) / scale,
			Longitude: float64(lng) / scale,
		})
	}

	return points, header, nil
}

// Encode writes points as a two-dimensional polyline at the given decimal
// precision. Coordinates are rounded half away from zero.
func Encode(points []geo.Point, precision int) (string, error) {
	if precision < 0 || precision > 15 {
		return "", fmt.Errorf("%w: precision %d out of range [0,15]", ErrEncode, precision)
	}

	var b strings.Builder
	encodeUnsigned(&b, FormatVersion)
	encodeUnsigned(&b, uint64(precision))

	scale := math.Pow10(precision)
	var lastLat, lastLng int64
	for i, p := range points {
		if !finite(p.Latitude) || !finite(p.Longitude) {
			return "", fmt.Errorf("%w: point %d is not finite", ErrEncode, i)
		}
		lat := int64(math.Round(p.Latitude * scale))
		lng := int64(math.Round(p.Longitude * scale))
		encodeSigned(&b, lat-lastLat)
		encodeSigned(&b, lng-lastLng)
		lastLat, lastLng = lat, lng
	}

	return b.String(), nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func encodeUnsigned(b *strings.Builder, v uint64) {
	for v > 0x1f {
		b.WriteByte(encodingTable[(v&0x1f)|0x20])
		v >>= 5
	}
	b.WriteByte(encodingTable[v])
}

func encodeSigned(b *strings.Builder, v int64) {
	u := uint64(v) << 1
	if v < 0 {
		u = ^u
	}
	encodeUnsigned(b, u)
}

type decoder struct {
	s   string
	pos int
}

func (d *decoder) done() bool {
	return d.pos >= len(d.s)
}

func (d *decoder) unsigned() (uint64, error) {
	var result uint64
	var shift uint
	for {
		if d.done() {
			return 0, fmt.Errorf("%w: truncated value at offset %d", ErrDecode, d.pos)
		}
		c := d.s[d.pos]
		v := decodingTable[c]
		if v < 0 {
			return 0, fmt.Errorf("%w: invalid character %q at offset %d", ErrDecode, c, d.pos)
		}
		d.pos++
		if shift > 60 {
			return 0, fmt.Errorf("%w: value overflow at offset %d", ErrDecode, d.pos)
		}
		result |= uint64(v&0x1f) << shift
		if v&0x20 == 0 {
			return result, nil
		}
		shift += 5
	}
}

func (d *decoder) signed() (int64, error) {
	u, err := d.unsigned()
	if err != nil {
		return 0, err
	}
	if u&1 != 0 {
		return int64(^u) >> 1, nil
	}
	return int64(u >> 1), nil
}

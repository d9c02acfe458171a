package itinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
)

func encodePath(t *testing.T, points ...geo.Point) string {
	t.Helper()
	encoded, err := flexpolyline.Encode(points, flexpolyline.DefaultPrecision)
	require.NoError(t, err)
	return encoded
}

// rawSection renders a HERE-style section with the given type and transport JSON
func rawSection(t *testing.T, id, sectionType, transport, departure, arrival string) json.RawMessage {
	t.Helper()
	polyline := encodePath(t,
		geo.Point{Latitude: 47.6097, Longitude: -122.3331},
		geo.Point{Latitude: 47.6205, Longitude: -122.3493},
	)
	return json.RawMessage(fmt.Sprintf(`{
		"id": %q,
		"type": %q,
		"departure": {"time": %q, "place": {"name": "Westlake", "type": "station", "location": {"lat": 47.6097, "lng": -122.3331}}},
		"arrival": {"time": %q, "place": {"type": "place", "location": {"lat": 47.6205, "lng": -122.3493}}},
		"polyline": %q,
		"transport": %s
	}`, id, sectionType, departure, arrival, polyline, transport))
}

const (
	t0 = "2024-06-01T10:00:00-07:00"
	t1 = "2024-06-01T10:12:00-07:00"
	t2 = "2024-06-01T10:30:00-07:00"
)

func TestNormalizeSection_Transit(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "s1",
		"type": "transit",
		"departure": {"time": "2024-06-01T10:00:00-07:00", "place": {"name": "Westlake", "type": "station", "location": {"lat": 47.6113, "lng": -122.3374}, "platform": "2"}},
		"arrival": {"time": "2024-06-01T10:07:00-07:00", "place": {"name": "Capitol Hill", "type": "station", "location": {"lat": 47.6192, "lng": -122.3202}}},
		"polyline": "` + encodePath(t, geo.Point{Latitude: 47.6113, Longitude: -122.3374}, geo.Point{Latitude: 47.6192, Longitude: -122.3202}) + `",
		"transport": {"mode": "lightRail", "name": "1 Line", "headsign": "Northgate", "color": "#28813F"},
		"agency": {"id": "st", "name": "Sound Transit", "website": "https://soundtransit.org"},
		"notices": [{"title": "Delays", "code": "noSchedule"}]
	}`)

	s, err := NormalizeSection(raw)
	require.NoError(t, err)

	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, SectionTransit, s.Type)
	assert.Equal(t, PlaceStation, s.Departure.Place.Type)
	assert.Equal(t, "2", s.Departure.Place.Platform)
	assert.Equal(t, 7.0, s.Duration().Minutes())

	transit, ok := s.Transport.(TransitTransport)
	require.True(t, ok, "transit sections carry TransitTransport")
	assert.Equal(t, "lightRail", transit.Mode)
	assert.Equal(t, "1 Line", transit.Name)
	assert.Equal(t, "#28813F", transit.Color)
	assert.Empty(t, transit.TextColor, "absent fields stay unset")
	assert.Empty(t, transit.ShortName)

	require.NotNil(t, s.Agency)
	assert.Equal(t, "Sound Transit", s.Agency.Name)
	assert.JSONEq(t, `[{"title": "Delays", "code": "noSchedule"}]`, string(s.Notices))
}

func TestNormalizeSection_BareModes(t *testing.T) {
	for _, typ := range []string{"pedestrian", "vehicle"} {
		t.Run(typ, func(t *testing.T) {
			s, err := NormalizeSection(rawSection(t, "s", typ, `{"mode": "`+typ+`"}`, t0, t1))
			require.NoError(t, err)
			assert.Equal(t, BasicTransport{Mode: typ}, s.Transport)
		})
	}
}

func TestNormalizeSection_VehicleDescriptors(t *testing.T) {
	s, err := NormalizeSection(rawSection(t, "s", "taxi",
		`{"mode": "taxi", "model": "Prius", "licensePlate": "ABC123", "seats": 4, "engine": "electric"}`, t0, t1))
	require.NoError(t, err)

	taxi, ok := s.Transport.(VehicleTransport)
	require.True(t, ok)
	assert.Equal(t, "Prius", taxi.Model)
	assert.Equal(t, "ABC123", taxi.LicensePlate)
	require.NotNil(t, taxi.Seats)
	assert.Equal(t, 4, *taxi.Seats)

	rented, err := NormalizeSection(rawSection(t, "r", "rented", `{"mode": "bicycleShare"}`, t0, t1))
	require.NoError(t, err)
	assert.Nil(t, rented.Transport.(VehicleTransport).Seats)
}

func TestNormalizeSection_GeneratesMissingID(t *testing.T) {
	s, err := NormalizeSection(rawSection(t, "", "pedestrian", `{"mode": "pedestrian"}`, t0, t1))
	require.NoError(t, err)
	assert.Len(t, s.ID, 36)
}

func TestNormalizeSection_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"not json", json.RawMessage(`{"type":`)},
		{"missing type", rawSection(t, "s", "", `{"mode": "bus"}`, t0, t1)},
		{"unknown type", rawSection(t, "s", "teleport", `{"mode": "beam"}`, t0, t1)},
		{"missing transport", rawSection(t, "s", "transit", `null`, t0, t1)},
		{"missing mode", rawSection(t, "s", "transit", `{"name": "14"}`, t0, t1)},
		{"wrong transport shape", rawSection(t, "s", "transit", `"bus"`, t0, t1)},
		{"departs after arrival", rawSection(t, "s", "pedestrian", `{"mode": "pedestrian"}`, t2, t1)},
		{"unparsable time", rawSection(t, "s", "pedestrian", `{"mode": "pedestrian"}`, "yesterday", t1)},
		{"missing polyline", json.RawMessage(`{"id": "s", "type": "pedestrian", "transport": {"mode": "pedestrian"},
			"departure": {"time": "` + t0 + `", "place": {"type": "place", "location": {"lat": 1, "lng": 1}}},
			"arrival": {"time": "` + t1 + `", "place": {"type": "place", "location": {"lat": 1, "lng": 1}}}}`)},
		{"bad polyline", json.RawMessage(`{"id": "s", "type": "pedestrian", "transport": {"mode": "pedestrian"}, "polyline": "!!",
			"departure": {"time": "` + t0 + `", "place": {"type": "place", "location": {"lat": 1, "lng": 1}}},
			"arrival": {"time": "` + t1 + `", "place": {"type": "place", "location": {"lat": 1, "lng": 1}}}}`)},
		{"invalid location", json.RawMessage(`{"id": "s", "type": "pedestrian", "transport": {"mode": "pedestrian"}, "polyline": "BFoz5xJ67i1B",
			"departure": {"time": "` + t0 + `", "place": {"type": "place", "location": {"lat": 120, "lng": 1}}},
			"arrival": {"time": "` + t1 + `", "place": {"type": "place", "location": {"lat": 1, "lng": 1}}}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeSection(tt.raw)
			assert.ErrorIs(t, err, ErrMalformedSection)
		})
	}
}

func TestNormalizeSections_DropsMalformedLegs(t *testing.T) {
	raws := []json.RawMessage{
		rawSection(t, "walk", "pedestrian", `{"mode": "pedestrian"}`, t0, t1),
		rawSection(t, "broken", "transit", `{}`, t1, t2),
		rawSection(t, "bus", "transit", `{"mode": "bus"}`, t1, t2),
	}

	// No logger is attached to the context; dropping a leg still logs.
	sections, err := NormalizeSections(context.Background(), raws)
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "walk", sections[0].ID)
	assert.Equal(t, "bus", sections[1].ID)
}

func TestNormalizeSections_NothingSurvives(t *testing.T) {
	_, err := NormalizeSections(context.Background(), []json.RawMessage{
		rawSection(t, "broken", "transit", `{}`, t0, t1),
	})
	assert.ErrorIs(t, err, ErrEmptyRoute)

	_, err = NormalizeSections(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyRoute)
}

func TestSection_JSONKeepsTransportVariant(t *testing.T) {
	s, err := NormalizeSection(rawSection(t, "s", "taxi", `{"mode": "taxi", "seats": 3}`, t0, t1))
	require.NoError(t, err)

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var decoded Section
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.IsType(t, VehicleTransport{}, decoded.Transport)
	assert.Equal(t, s.Polyline, decoded.Polyline)
	assert.True(t, s.Departure.Time.Equal(decoded.Departure.Time))
	assert.Equal(t, "2024-06-01T10:00:00-07:00", decoded.Departure.Time.Format("2006-01-02T15:04:05Z07:00"))
}

func TestTimeConstraint_Validate(t *testing.T) {
	c := &TimeConstraint{Type: ConstraintDepart}
	assert.Error(t, c.Validate(), "instant required")

	c = &TimeConstraint{Type: "leave", Instant: mustTime(t, t0)}
	assert.Error(t, c.Validate())

	c = &TimeConstraint{Type: ConstraintArrive, Instant: mustTime(t, t0)}
	assert.NoError(t, c.Validate())
}

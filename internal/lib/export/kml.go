// Package export renders routes in formats other map tools understand
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/twpayne/go-kml"

	"github.com/dpup/tripplan/server/internal/lib/flexpolyline"
	"github.com/dpup/tripplan/server/internal/lib/geo"
	"github.com/dpup/tripplan/server/internal/lib/itinerary"
)

// WriteRouteKML writes route as a KML document with one placemark per section
func WriteRouteKML(w io.Writer, route *itinerary.Route) error {
	children := []kml.Element{
		kml.Name(routeName(route)),
		kml.Description(fmt.Sprintf("%s, %.1f km, %d min", route.Modality, route.TotalDistance/1000, route.Duration)),
	}

	for _, s := range route.Sections {
		points, err := flexpolyline.Decode(s.Polyline)
		if err != nil {
			return fmt.Errorf("section %q: %w", s.ID, err)
		}
		children = append(children, kml.Placemark(
			kml.Name(sectionName(s)),
			kml.Description(fmt.Sprintf("%s to %s",
				s.Departure.Time.Format(time.RFC3339), s.Arrival.Time.Format(time.RFC3339))),
			geometry(points),
		))
	}

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("failed to write KML: %w", err)
	}
	return nil
}

func geometry(points []geo.Point) kml.Element {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Longitude, Lat: p.Latitude}
	}
	if len(coords) == 1 {
		return kml.Point(kml.Coordinates(coords...))
	}
	return kml.LineString(kml.Tessellate(true), kml.Coordinates(coords...))
}

func routeName(route *itinerary.Route) string {
	if route.CustomName != "" {
		return route.CustomName
	}
	if len(route.Sections) == 0 {
		return string(route.Modality)
	}
	first, last := route.Sections[0], route.Sections[len(route.Sections)-1]
	return placeLabel(first.Departure.Place) + " to " + placeLabel(last.Arrival.Place)
}

func sectionName(s itinerary.Section) string {
	switch t := s.Transport.(type) {
	case itinerary.TransitTransport:
		if t.Name != "" {
			return t.Mode + " " + t.Name
		}
		return t.Mode
	case itinerary.AirportTransport:
		return t.IATA + " " + string(t.Event)
	case itinerary.FlightTransport:
		return "Flight " + t.From + "-" + t.To
	case nil:
		return string(s.Type)
	default:
		return t.TransportMode()
	}
}

func placeLabel(p itinerary.Place) string {
	switch {
	case p.Code != "":
		return p.Code
	case p.Name != "":
		return p.Name
	default:
		return fmt.Sprintf("%.4f,%.4f", p.Location.Latitude, p.Location.Longitude)
	}
}

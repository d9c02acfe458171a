// Package itinerary holds the internal route representation and the pipeline
// that builds it: section normalization, aggregation and flight synthesis.
package itinerary

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dpup/tripplan/server/internal/lib/geo"
)

// Modality is the top-level transport category requested for a route
type Modality string

const (
	ModalityTransit    Modality = "transit"
	ModalityPedestrian Modality = "pedestrian"
	ModalityCar        Modality = "car"
	ModalityFlight     Modality = "flight"
)

// Valid reports whether m is a known modality
func (m Modality) Valid() bool {
	switch m {
	case ModalityTransit, ModalityPedestrian, ModalityCar, ModalityFlight:
		return true
	}
	return false
}

// SectionType tags a single leg of a route
type SectionType string

const (
	SectionPedestrian SectionType = "pedestrian"
	SectionTransit    SectionType = "transit"
	SectionVehicle    SectionType = "vehicle"
	SectionRented     SectionType = "rented"
	SectionTaxi       SectionType = "taxi"
	SectionAirport    SectionType = "airport"
	SectionFlight     SectionType = "flight"
)

// PlaceType tags the kind of place a leg starts or ends at
type PlaceType string

const (
	PlaceGeneric         PlaceType = "place"
	PlaceStation         PlaceType = "station"
	PlaceAccessPoint     PlaceType = "accessPoint"
	PlaceParkingLot      PlaceType = "parkingLot"
	PlaceChargingStation PlaceType = "chargingStation"
	PlaceDockingStation  PlaceType = "dockingStation"
	PlaceAirport         PlaceType = "airport"
)

// Place is a named or anonymous point participating in a leg
type Place struct {
	ID       string    `json:"id,omitempty"`
	Code     string    `json:"code,omitempty"`
	Name     string    `json:"name,omitempty"`
	Type     PlaceType `json:"type"`
	Location geo.Point `json:"location"`
	Platform string    `json:"platform,omitempty"`
}

// Stop is the departure or arrival end of a section. Time keeps the offset it
// was expressed in so the wall-clock reading survives serialization.
type Stop struct {
	Time  time.Time `json:"time"`
	Place Place     `json:"place"`
}

// Agency operates a transit leg
type Agency struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Website string `json:"website,omitempty"`
}

// Transport is the type-specific payload of a section. The set of
// implementations is closed; switch on the concrete type.
type Transport interface {
	TransportMode() string
	isTransport()
}

// TransitTransport describes a scheduled public transport leg. Display fields
// are left empty when upstream omits them so renderers can fall back to
// defaults for the mode.
type TransitTransport struct {
	Mode      string `json:"mode"`
	Name      string `json:"name,omitempty"`
	ShortName string `json:"shortName,omitempty"`
	LongName  string `json:"longName,omitempty"`
	Headsign  string `json:"headsign,omitempty"`
	Category  string `json:"category,omitempty"`
	Color     string `json:"color,omitempty"`
	TextColor string `json:"textColor,omitempty"`
}

// BasicTransport is the bare mode of a pedestrian or vehicle leg
type BasicTransport struct {
	Mode string `json:"mode"`
}

// VehicleTransport describes a rented or taxi leg
type VehicleTransport struct {
	Mode         string `json:"mode"`
	Name         string `json:"name,omitempty"`
	Category     string `json:"category,omitempty"`
	Model        string `json:"model,omitempty"`
	LicensePlate string `json:"licensePlate,omitempty"`
	Seats        *int   `json:"seats,omitempty"`
	Engine       string `json:"engine,omitempty"`
}

// AirportEvent says whether an idle airport leg precedes or follows a flight
type AirportEvent string

const (
	EventDeparture AirportEvent = "departure"
	EventArrival   AirportEvent = "arrival"
)

const (
	modeIdle   = "idle"
	modeFlight = "flight"
)

// AirportTransport is the payload of a synthesized dwell leg at an airport
type AirportTransport struct {
	Mode     string       `json:"mode"`
	Event    AirportEvent `json:"event"`
	IATA     string       `json:"iata"`
	Name     string       `json:"name,omitempty"`
	City     string       `json:"city,omitempty"`
	Country  string       `json:"country,omitempty"`
	Timezone string       `json:"timezone,omitempty"`
}

// FlightTransport is the payload of a synthesized flight leg
type FlightTransport struct {
	Mode       string  `json:"mode"`
	Name       string  `json:"name,omitempty"`
	From       string  `json:"from"`
	To         string  `json:"to"`
	DistanceKm float64 `json:"distanceKm"`
}

func (t TransitTransport) TransportMode() string { return t.Mode }
func (t BasicTransport) TransportMode() string   { return t.Mode }
func (t VehicleTransport) TransportMode() string { return t.Mode }
func (t AirportTransport) TransportMode() string { return t.Mode }
func (t FlightTransport) TransportMode() string  { return t.Mode }

func (TransitTransport) isTransport() {}
func (BasicTransport) isTransport()   {}
func (VehicleTransport) isTransport() {}
func (AirportTransport) isTransport() {}
func (FlightTransport) isTransport()  {}

// Section is one leg of a route with a single transport mode
type Section struct {
	ID           string          `json:"id"`
	Type         SectionType     `json:"type"`
	Departure    Stop            `json:"departure"`
	Arrival      Stop            `json:"arrival"`
	Polyline     string          `json:"polyline"`
	Transport    Transport       `json:"transport"`
	Agency       *Agency         `json:"agency,omitempty"`
	Notices      json.RawMessage `json:"notices,omitempty"`
	Spans        json.RawMessage `json:"spans,omitempty"`
	Attributions json.RawMessage `json:"attributions,omitempty"`
}

// UnmarshalJSON decodes the transport payload into the variant selected by
// the section type
func (s *Section) UnmarshalJSON(data []byte) error {
	type plain Section
	var aux struct {
		plain
		Transport json.RawMessage `json:"transport"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Transport) == 0 || string(aux.Transport) == "null" {
		return fmt.Errorf("section %q has no transport", aux.ID)
	}

	var (
		transport Transport
		err       error
	)
	switch aux.Type {
	case SectionTransit:
		transport, err = decodeTransport[TransitTransport](aux.Transport)
	case SectionPedestrian, SectionVehicle:
		transport, err = decodeTransport[BasicTransport](aux.Transport)
	case SectionRented, SectionTaxi:
		transport, err = decodeTransport[VehicleTransport](aux.Transport)
	case SectionAirport:
		transport, err = decodeTransport[AirportTransport](aux.Transport)
	case SectionFlight:
		transport, err = decodeTransport[FlightTransport](aux.Transport)
	default:
		return fmt.Errorf("unknown section type %q", aux.Type)
	}
	if err != nil {
		return fmt.Errorf("invalid %s transport: %w", aux.Type, err)
	}

	*s = Section(aux.plain)
	s.Transport = transport
	return nil
}

func decodeTransport[T Transport](data json.RawMessage) (Transport, error) {
	var t T
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	return t, nil
}

// Duration is the time between departure and arrival
func (s Section) Duration() time.Duration {
	return s.Arrival.Time.Sub(s.Departure.Time)
}

// Zones records the IANA time zone in effect at each end of a route
type Zones struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Route is the aggregate result of one route-planning request
type Route struct {
	ID            string    `json:"id"`
	Modality      Modality  `json:"modality"`
	Sections      []Section `json:"sections"`
	TotalDistance float64   `json:"totalDistance"`
	DepartureTime time.Time `json:"departureTime"`
	Duration      int       `json:"duration"`
	CustomName    string    `json:"customName,omitempty"`
	Zones         Zones     `json:"zones"`
}

// ArrivalTime is the arrival of the final section
func (r *Route) ArrivalTime() time.Time {
	if len(r.Sections) == 0 {
		return r.DepartureTime
	}
	return r.Sections[len(r.Sections)-1].Arrival.Time
}

// TimeConstraintType selects which end of a trip a constraint pins
type TimeConstraintType string

const (
	ConstraintDepart TimeConstraintType = "depart"
	ConstraintArrive TimeConstraintType = "arrive"
)

// TimeConstraint fixes either the departure or the arrival instant of a trip
type TimeConstraint struct {
	Type    TimeConstraintType `json:"type"`
	Instant time.Time          `json:"instant"`
}

// Validate checks the constraint type and instant
func (c *TimeConstraint) Validate() error {
	if c.Type != ConstraintDepart && c.Type != ConstraintArrive {
		return fmt.Errorf("invalid time constraint type %q, want depart or arrive", c.Type)
	}
	if c.Instant.IsZero() {
		return fmt.Errorf("time constraint %q has no instant", c.Type)
	}
	return nil
}

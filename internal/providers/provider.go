// Package providers normalizes heterogeneous flight-data upstreams
// (GDS REST, search-engine scraping, award partner) into the shared
// domain model.
package providers

import (
	"context"

	"github.com/you/flight-buddy/internal/models"
)

// SearchRequest carries the common flight-search inputs. ReturnDate set
// means round trip: every resulting offer has exactly two itineraries,
// outbound first.
type SearchRequest struct {
	Origin          string
	Destination     string
	DepartureDate   string // YYYY-MM-DD
	ReturnDate      string // YYYY-MM-DD, empty for one-way
	Adults          int
	Cabin           string // ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST
	NonStop         bool
	IncludeAirlines []string
	ExcludeAirlines []string
	MaxResults      int
	Currency        string
}

type AvailabilityRequest struct {
	Origin        string
	Destination   string
	DepartureDate string // YYYY-MM-DD
	DepartureTime string // HH:MM:SS, optional
	CarrierCode   string // optional filter
	FlightNumber  string // optional filter
}

// FlightProvider is the capability set every adapter implements. Result
// ordering is whatever the upstream returned; nothing here re-sorts.
// An operation a provider cannot structurally support returns a
// *CapabilityError so callers can tell "unsupported" from "this query
// failed".
type FlightProvider interface {
	Name() string

	SearchFlights(ctx context.Context, req SearchRequest) ([]models.FlightOffer, error)

	// GetFlightSchedule looks a published schedule up by designator.
	// Usually zero or one result; code-share days can yield several.
	GetFlightSchedule(ctx context.Context, carrierCode, flightNumber, departureDate string) ([]models.FlightSchedule, error)

	GetFlightAvailability(ctx context.Context, req AvailabilityRequest) ([]models.FlightAvailability, error)

	// GetSeatMap returns (nil, nil) when the upstream simply has no seat
	// map for the flight; that is an absent result, not an error.
	GetSeatMap(ctx context.Context, carrierCode, flightNumber, departureDate, origin, destination string) (*models.SeatMap, error)

	// Close releases the adapter's HTTP resources. Safe to call more than
	// once; callers defer it so sockets never outlive a CLI invocation.
	Close() error
}

// Package models holds the shared flight domain types that every provider
// adapter normalizes its upstream responses into.
package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

type Airport struct {
	Code     string `json:"code"`
	Name     string `json:"name,omitempty"`
	Terminal string `json:"terminal,omitempty"`
}

// Segment is a single flight leg. Times are naive local times as reported
// by the provider; no timezone is retained, so overnight legs may look like
// they arrive before they depart in wall-clock terms.
type Segment struct {
	Carrier       string    `json:"carrier"`
	CarrierName   string    `json:"carrier_name,omitempty"`
	FlightNumber  string    `json:"flight_number"`
	Aircraft      string    `json:"aircraft,omitempty"`
	Departure     Airport   `json:"departure"`
	DepartureTime time.Time `json:"departure_time"`
	Arrival       Airport   `json:"arrival"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Duration      string    `json:"duration"` // ISO 8601, e.g. PT8H30M
	Cabin         string    `json:"cabin,omitempty"`
	BookingClass  string    `json:"booking_class,omitempty"`
}

// FlightCode is the full designator, e.g. EK766.
func (s Segment) FlightCode() string {
	return s.Carrier + s.FlightNumber
}

// DurationHuman renders the ISO duration the way boarding passes do, e.g. 8h30m.
func (s Segment) DurationHuman() string {
	return strings.ToLower(strings.TrimPrefix(s.Duration, "PT"))
}

// Itinerary is one direction of travel, possibly with connections.
type Itinerary struct {
	Segments []Segment `json:"segments"`
	Duration string    `json:"duration"`
}

func (i Itinerary) IsDirect() bool { return len(i.Segments) == 1 }

func (i Itinerary) Stops() int { return len(i.Segments) - 1 }

func (i Itinerary) Origin() Airport { return i.Segments[0].Departure }

func (i Itinerary) Destination() Airport { return i.Segments[len(i.Segments)-1].Arrival }

func (i Itinerary) DepartureTime() time.Time { return i.Segments[0].DepartureTime }

func (i Itinerary) ArrivalTime() time.Time { return i.Segments[len(i.Segments)-1].ArrivalTime }

type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

func (p Price) String() string {
	switch p.Currency {
	case "ZAR":
		return "R " + groupThousands(fmt.Sprintf("%.0f", p.Amount))
	case "USD":
		return "$" + groupThousands(fmt.Sprintf("%.2f", p.Amount))
	case "EUR":
		return "€" + groupThousands(fmt.Sprintf("%.2f", p.Amount))
	default:
		return p.Currency + " " + groupThousands(fmt.Sprintf("%.2f", p.Amount))
	}
}

// groupThousands inserts commas into the integer part of a formatted number.
func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	n := len(intPart)
	if n <= 3 {
		if frac != "" {
			return intPart + "." + frac
		}
		return intPart
	}
	var b strings.Builder
	lead := n % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteString("." + frac)
	}
	return b.String()
}

// FlightOffer is a priced, bookable combination of itineraries. Index 0 is
// always the outbound; a round trip carries the inbound at index 1. Raw keeps
// the provider's original offer payload untouched so the owning adapter can
// re-submit it upstream (the seat-map endpoint needs it); the core never
// interprets it.
type FlightOffer struct {
	ID                string          `json:"id"`
	Source            string          `json:"source"`
	Price             Price           `json:"price"`
	Itineraries       []Itinerary     `json:"itineraries"`
	ValidatingCarrier string          `json:"validating_carrier,omitempty"`
	Raw               json.RawMessage `json:"-"`
}

// NewFlightOffer builds an offer, rejecting an empty itinerary list.
func NewFlightOffer(id, source string, price Price, itineraries []Itinerary) (FlightOffer, error) {
	if len(itineraries) == 0 {
		return FlightOffer{}, errors.New("flight offer requires at least one itinerary")
	}
	return FlightOffer{ID: id, Source: source, Price: price, Itineraries: itineraries}, nil
}

func (o FlightOffer) Outbound() Itinerary { return o.Itineraries[0] }

// Cabin is the primary cabin class of the offer.
func (o FlightOffer) Cabin() string {
	if len(o.Itineraries) > 0 && len(o.Itineraries[0].Segments) > 0 {
		return o.Itineraries[0].Segments[0].Cabin
	}
	return ""
}

// FlightSchedule is a single flight's published schedule.
type FlightSchedule struct {
	Carrier       string    `json:"carrier"`
	CarrierName   string    `json:"carrier_name,omitempty"`
	FlightNumber  string    `json:"flight_number"`
	Departure     Airport   `json:"departure"`
	DepartureTime time.Time `json:"departure_time"`
	Arrival       Airport   `json:"arrival"`
	ArrivalTime   time.Time `json:"arrival_time"`
	Duration      string    `json:"duration"`
	Aircraft      string    `json:"aircraft,omitempty"`
	Status        string    `json:"status,omitempty"`
}

func (s FlightSchedule) FlightCode() string {
	return s.Carrier + s.FlightNumber
}

// CabinAvailability is the sellable seat count for one (cabin, booking class) pair.
type CabinAvailability struct {
	Cabin        string `json:"cabin"`         // ECONOMY, BUSINESS, ...
	BookingClass string `json:"booking_class"` // Y, J, F, ...
	Available    int    `json:"available"`
}

type FlightAvailability struct {
	Carrier       string              `json:"carrier"`
	FlightNumber  string              `json:"flight_number"`
	Departure     Airport             `json:"departure"`
	DepartureTime time.Time           `json:"departure_time"`
	Arrival       Airport             `json:"arrival"`
	ArrivalTime   time.Time           `json:"arrival_time"`
	Cabins        []CabinAvailability `json:"cabins"`
}

func (a FlightAvailability) FlightCode() string {
	return a.Carrier + a.FlightNumber
}

// GetCabin looks an entry up by cabin name or booking-class letter.
func (a FlightAvailability) GetCabin(cabin string) (CabinAvailability, bool) {
	cabin = strings.ToUpper(cabin)
	for _, c := range a.Cabins {
		if c.Cabin == cabin || c.BookingClass == cabin {
			return c, true
		}
	}
	return CabinAvailability{}, false
}

// Seat characteristic tags.
const (
	SeatWindow            = "WINDOW"
	SeatAisle             = "AISLE"
	SeatExitRow           = "EXIT_ROW"
	SeatLegSpace          = "LEG_SPACE"
	SeatRestrictedRecline = "RESTRICTED_RECLINE"
	SeatChargeable        = "CHARGEABLE"
)

type Seat struct {
	Number          string   `json:"number"` // e.g. "12A"
	Available       bool     `json:"available"`
	Cabin           string   `json:"cabin"`
	Characteristics []string `json:"characteristics,omitempty"`
}

func (s Seat) Row() int {
	var digits strings.Builder
	for _, r := range s.Number {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	row := 0
	for _, r := range digits.String() {
		row = row*10 + int(r-'0')
	}
	return row
}

func (s Seat) Column() string {
	var letters strings.Builder
	for _, r := range s.Number {
		if r < '0' || r > '9' {
			letters.WriteRune(r)
		}
	}
	return letters.String()
}

// SeatMap is the cabin layout of one flight. Multi-deck aircraft carry one
// seat slice per deck.
type SeatMap struct {
	Carrier       string   `json:"carrier"`
	FlightNumber  string   `json:"flight_number"`
	Aircraft      string   `json:"aircraft,omitempty"`
	Departure     Airport  `json:"departure"`
	Arrival       Airport  `json:"arrival"`
	DepartureDate string   `json:"departure_date"`
	Decks         [][]Seat `json:"decks"`
}

func (m SeatMap) FlightCode() string {
	return m.Carrier + m.FlightNumber
}

func (m SeatMap) SeatsByCabin(cabin string) []Seat {
	cabin = strings.ToUpper(cabin)
	var out []Seat
	for _, deck := range m.Decks {
		for _, seat := range deck {
			if seat.Cabin == cabin {
				out = append(out, seat)
			}
		}
	}
	return out
}

// AvailableCount counts open seats, optionally filtered by cabin ("" = all).
func (m SeatMap) AvailableCount(cabin string) int {
	cabin = strings.ToUpper(cabin)
	count := 0
	for _, deck := range m.Decks {
		for _, seat := range deck {
			if seat.Available && (cabin == "" || seat.Cabin == cabin) {
				count++
			}
		}
	}
	return count
}

// ParseTime parses the naive local timestamps providers hand back,
// e.g. 2025-09-10T08:45:00. A trailing zone designator is dropped rather
// than applied: the domain keeps whatever the provider printed.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(s, "Z")
	if i := strings.IndexByte(s, '+'); i >= 0 {
		s = s[:i]
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

// MinutesToISODuration converts integer minutes to an ISO 8601 duration.
// The hour component is omitted entirely below one hour; minutes never are:
// 0 -> PT0M, 90 -> PT1H30M, 480 -> PT8H0M.
func MinutesToISODuration(minutes int) string {
	hours, mins := minutes/60, minutes%60
	if hours == 0 {
		return fmt.Sprintf("PT%dM", mins)
	}
	return fmt.Sprintf("PT%dH%dM", hours, mins)
}

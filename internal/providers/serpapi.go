package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/flight-buddy/internal/config"
	"github.com/you/flight-buddy/internal/models"
)

// serpMaxReturnProbes bounds the dependent return-leg requests a round-trip
// search issues: one extra request per probed outbound option.
const serpMaxReturnProbes = 5

// serpCabinCodes maps cabin names and booking-class letters to the
// upstream's travel_class integers.
var serpCabinCodes = map[string]int{
	"ECONOMY":         1,
	"Y":               1,
	"PREMIUM":         2,
	"PREMIUM_ECONOMY": 2,
	"W":               2,
	"BUSINESS":        3,
	"J":               3,
	"FIRST":           4,
	"F":               4,
}

var serpCabinNames = map[int]string{
	1: "ECONOMY",
	2: "PREMIUM_ECONOMY",
	3: "BUSINESS",
	4: "FIRST",
}

// serpCabinLabels maps the upstream's display labels back to cabin names.
var serpCabinLabels = map[string]string{
	"Economy":         "ECONOMY",
	"Premium economy": "PREMIUM_ECONOMY",
	"Business":        "BUSINESS",
	"First":           "FIRST",
}

// SerpApi wraps the SerpApi Google Flights scraping API. It has no notion
// of flight-number lookup or cabin-level seat counts, so schedule and
// availability lookups are structurally unsupported.
type SerpApi struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSerpApi(cfg *config.Config) (*SerpApi, error) {
	if cfg.SerpApiKey == "" {
		return nil, &ConfigError{Message: "serpapi_api_key required"}
	}
	return &SerpApi{
		baseURL: strings.TrimSuffix(cfg.SerpApiBaseURL, "/"),
		apiKey:  cfg.SerpApiKey,
		client:  &http.Client{Timeout: 60 * time.Second}, // scraping runs are slow
	}, nil
}

func (s *SerpApi) Name() string { return "serpapi" }

func (s *SerpApi) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

type serpAirport struct {
	Name string `json:"name"`
	ID   string `json:"id"`
	Time string `json:"time"` // "2026-02-01 10:30"
}

type serpFlight struct {
	DepartureAirport serpAirport `json:"departure_airport"`
	ArrivalAirport   serpAirport `json:"arrival_airport"`
	Duration         int         `json:"duration"` // minutes
	Airplane         string      `json:"airplane"`
	Airline          string      `json:"airline"`
	FlightNumber     string      `json:"flight_number"` // "EK 766"
	TravelClass      string      `json:"travel_class"`
}

type serpOption struct {
	Flights        []serpFlight `json:"flights"`
	TotalDuration  int          `json:"total_duration"` // minutes
	Price          float64      `json:"price"`
	DepartureToken string       `json:"departure_token"`
	BookingToken   string       `json:"booking_token"`
}

type serpResponse struct {
	BestFlights   []serpOption   `json:"best_flights"`
	OtherFlights  []serpOption   `json:"other_flights"`
	PriceInsights *PriceInsights `json:"price_insights"`
	Error         string         `json:"error"`
}

// PriceInsights is Google Flights' route-level price context.
type PriceInsights struct {
	LowestPrice       float64     `json:"lowest_price"`
	PriceLevel        string      `json:"price_level"` // low, typical, high
	TypicalPriceRange []float64   `json:"typical_price_range"`
	PriceHistory      [][]float64 `json:"price_history"`
}

func (s *SerpApi) request(ctx context.Context, params url.Values) (*serpResponse, error) {
	params.Set("engine", "google_flights")
	params.Set("api_key", s.apiKey)
	params.Set("hl", "en")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), Message: err.Error()}
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}

	var payload serpResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("serpapi: decode response: %w", err)
	}
	if payload.Error != "" {
		return nil, &RequestError{Provider: s.Name(), Message: payload.Error}
	}
	return &payload, nil
}

func (s *SerpApi) searchParams(req SearchRequest) (url.Values, string) {
	params := url.Values{}
	params.Set("departure_id", strings.ToUpper(req.Origin))
	params.Set("arrival_id", strings.ToUpper(req.Destination))
	params.Set("outbound_date", req.DepartureDate)
	adults := req.Adults
	if adults <= 0 {
		adults = 1
	}
	params.Set("adults", strconv.Itoa(adults))
	if req.Currency != "" {
		params.Set("currency", req.Currency)
	}

	// The upstream echoes a default cabin label instead of the booked one,
	// so remember what the caller actually asked for.
	requestedCabin := "ECONOMY"
	if req.Cabin != "" {
		if code, ok := serpCabinCodes[strings.ToUpper(req.Cabin)]; ok {
			params.Set("travel_class", strconv.Itoa(code))
			requestedCabin = serpCabinNames[code]
		}
	}

	if req.NonStop {
		params.Set("stops", "1") // 1 = nonstop only
	}
	if len(req.IncludeAirlines) > 0 {
		params.Set("include_airlines", joinUpper(req.IncludeAirlines))
	}
	if len(req.ExcludeAirlines) > 0 {
		params.Set("exclude_airlines", joinUpper(req.ExcludeAirlines))
	}
	return params, requestedCabin
}

func (s *SerpApi) SearchFlights(ctx context.Context, req SearchRequest) ([]models.FlightOffer, error) {
	if req.ReturnDate != "" {
		return s.searchRoundTrip(ctx, req)
	}

	params, requestedCabin := s.searchParams(req)
	params.Set("type", "2") // one-way

	payload, err := s.request(ctx, params)
	if err != nil {
		return nil, err
	}

	max := req.MaxResults
	if max <= 0 {
		max = 10
	}
	options := append(payload.BestFlights, payload.OtherFlights...)

	var offers []models.FlightOffer
	for i, opt := range options {
		if len(offers) >= max {
			break
		}
		if len(opt.Flights) == 0 {
			continue
		}
		itin := s.parseItinerary(opt, requestedCabin)
		offer, err := models.NewFlightOffer(serpOfferID(opt, i), s.Name(), models.Price{
			Amount:   opt.Price,
			Currency: req.Currency,
		}, []models.Itinerary{itin})
		if err != nil {
			continue
		}
		offer.ValidatingCarrier = itin.Segments[0].Carrier
		offers = append(offers, offer)
	}
	return offers, nil
}

// searchRoundTrip runs the upstream's two-step flow: return options can
// only be fetched with the departure_token bound to a chosen outbound, so
// each probed outbound costs one dependent request. The fan-out is capped
// by attempts, not results, so outbounds with no usable return option
// still count against the cap. One return option (the upstream's best)
// is taken per outbound; a failed probe skips that outbound only.
func (s *SerpApi) searchRoundTrip(ctx context.Context, req SearchRequest) ([]models.FlightOffer, error) {
	params, requestedCabin := s.searchParams(req)
	params.Set("type", "1") // round trip
	params.Set("return_date", req.ReturnDate)

	payload, err := s.request(ctx, params)
	if err != nil {
		return nil, err
	}

	max := req.MaxResults
	if max <= 0 {
		max = 10
	}
	probes := max
	if probes > serpMaxReturnProbes {
		probes = serpMaxReturnProbes
	}

	outbounds := append(payload.BestFlights, payload.OtherFlights...)

	var offers []models.FlightOffer
	probed := 0
	for i, out := range outbounds {
		if probed >= probes {
			break
		}
		if len(out.Flights) == 0 || out.DepartureToken == "" {
			continue
		}
		probed++

		returnParams, _ := s.searchParams(req)
		returnParams.Set("type", "1")
		returnParams.Set("return_date", req.ReturnDate)
		returnParams.Set("departure_token", out.DepartureToken)

		returnPayload, err := s.request(ctx, returnParams)
		if err != nil {
			continue
		}
		returns := append(returnPayload.BestFlights, returnPayload.OtherFlights...)
		var inbound *serpOption
		for j := range returns {
			if len(returns[j].Flights) > 0 {
				inbound = &returns[j]
				break
			}
		}
		if inbound == nil {
			continue
		}

		outItin := s.parseItinerary(out, requestedCabin)
		inItin := s.parseItinerary(*inbound, requestedCabin)

		// The return response prices the whole round trip.
		offer, err := models.NewFlightOffer(serpOfferID(*inbound, i), s.Name(), models.Price{
			Amount:   inbound.Price,
			Currency: req.Currency,
		}, []models.Itinerary{outItin, inItin})
		if err != nil {
			continue
		}
		offer.ValidatingCarrier = outItin.Segments[0].Carrier
		offers = append(offers, offer)
	}
	return offers, nil
}

func serpOfferID(opt serpOption, index int) string {
	token := opt.BookingToken
	if token == "" {
		token = opt.DepartureToken
	}
	if token != "" {
		if len(token) > 20 {
			token = token[:20]
		}
		return token
	}
	return fmt.Sprintf("serp-%d", index)
}

func (s *SerpApi) parseItinerary(opt serpOption, requestedCabin string) models.Itinerary {
	segments := make([]models.Segment, 0, len(opt.Flights))
	for _, f := range opt.Flights {
		segments = append(segments, s.parseSegment(f, requestedCabin))
	}
	return models.Itinerary{
		Segments: segments,
		Duration: models.MinutesToISODuration(opt.TotalDuration),
	}
}

func (s *SerpApi) parseSegment(f serpFlight, requestedCabin string) models.Segment {
	// "EK 766" -> carrier EK, number 766
	carrier, number := "XX", "0"
	if parts := strings.Fields(f.FlightNumber); len(parts) > 0 {
		carrier = parts[0]
		if len(parts) > 1 {
			number = parts[1]
		}
	}

	// The upstream's own label is only trusted when it is not the default
	// echo; otherwise the caller's requested cabin wins.
	cabin := requestedCabin
	if label, ok := serpCabinLabels[f.TravelClass]; ok && label != "ECONOMY" {
		cabin = label
	}

	return models.Segment{
		Carrier:       carrier,
		CarrierName:   f.Airline,
		FlightNumber:  number,
		Aircraft:      f.Airplane,
		Departure:     models.Airport{Code: f.DepartureAirport.ID, Name: f.DepartureAirport.Name},
		DepartureTime: parseSerpTime(f.DepartureAirport.Time),
		Arrival:       models.Airport{Code: f.ArrivalAirport.ID, Name: f.ArrivalAirport.Name},
		ArrivalTime:   parseSerpTime(f.ArrivalAirport.Time),
		Duration:      models.MinutesToISODuration(f.Duration),
		Cabin:         cabin,
	}
}

func parseSerpTime(s string) time.Time {
	if t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return t
	}
	return time.Time{}
}

func (s *SerpApi) GetFlightSchedule(ctx context.Context, carrierCode, flightNumber, departureDate string) ([]models.FlightSchedule, error) {
	return nil, &CapabilityError{
		Provider:  s.Name(),
		Operation: "flight schedule lookup",
		Hint:      "search by route instead",
	}
}

func (s *SerpApi) GetFlightAvailability(ctx context.Context, req AvailabilityRequest) ([]models.FlightAvailability, error) {
	return nil, &CapabilityError{
		Provider:  s.Name(),
		Operation: "cabin availability lookup",
	}
}

// GetSeatMap always reports an absent result; Google Flights has no seat
// map data at all.
func (s *SerpApi) GetSeatMap(ctx context.Context, carrierCode, flightNumber, departureDate, origin, destination string) (*models.SeatMap, error) {
	return nil, nil
}

// GetPriceInsights returns Google Flights' price context for a route, or
// nil when the upstream omits it.
func (s *SerpApi) GetPriceInsights(ctx context.Context, origin, destination, departureDate, currency string) (*PriceInsights, error) {
	params := url.Values{}
	params.Set("departure_id", strings.ToUpper(origin))
	params.Set("arrival_id", strings.ToUpper(destination))
	params.Set("outbound_date", departureDate)
	params.Set("type", "2")
	if currency != "" {
		params.Set("currency", currency)
	}

	payload, err := s.request(ctx, params)
	if err != nil {
		return nil, err
	}
	return payload.PriceInsights, nil
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/you/flight-buddy/internal/auth"
	"github.com/you/flight-buddy/internal/config"
	"github.com/you/flight-buddy/internal/models"
)

const (
	amadeusTokenPath        = "/v1/security/oauth2/token"
	amadeusOffersPath       = "/v2/shopping/flight-offers"
	amadeusSchedulePath     = "/v2/schedule/flights"
	amadeusAvailabilityPath = "/v1/shopping/availability/flight-availabilities"
	amadeusSeatMapPath      = "/v1/shopping/seatmaps"
)

// Amadeus wraps the Amadeus Self-Service REST API (GDS-backed, OAuth2
// bearer auth).
type Amadeus struct {
	baseURL string
	auth    *auth.ClientCredentials
	client  *http.Client
}

func NewAmadeus(cfg *config.Config) (*Amadeus, error) {
	if cfg.AmadeusAPIKey == "" || cfg.AmadeusAPISecret == "" {
		return nil, &ConfigError{Message: "amadeus_api_key and amadeus_api_secret required"}
	}
	baseURL := strings.TrimSuffix(cfg.AmadeusBaseURL, "/")
	client := &http.Client{Timeout: 30 * time.Second}
	return &Amadeus{
		baseURL: baseURL,
		auth:    auth.NewClientCredentials(cfg.AmadeusAPIKey, cfg.AmadeusAPISecret, baseURL+amadeusTokenPath, client),
		client:  client,
	}, nil
}

func (a *Amadeus) Name() string { return "amadeus" }

func (a *Amadeus) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

// do issues one authenticated request. A 401 invalidates the cached token
// and retries exactly once with a fresh one; a second failure of any kind
// surfaces as a RequestError.
func (a *Amadeus) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("amadeus: encode request: %w", err)
		}
	}

	send := func(token string) (*http.Response, error) {
		u := a.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}
		var rd io.Reader
		if payload != nil {
			rd = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, rd)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", "application/vnd.amadeus+json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return a.client.Do(req)
	}

	tok, err := a.auth.Token(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := send(tok)
	if err != nil {
		return nil, &RequestError{Provider: a.Name(), Message: err.Error()}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		a.auth.Invalidate()
		tok, err = a.auth.Token(ctx)
		if err != nil {
			return nil, err
		}
		resp, err = send(tok)
		if err != nil {
			return nil, &RequestError{Provider: a.Name(), Message: err.Error()}
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Provider: a.Name(), StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, a.requestError(resp.StatusCode, raw)
	}
	return raw, nil
}

// requestError extracts Amadeus' {"errors":[{title,detail}]} envelope when
// present, falling back to the raw status.
func (a *Amadeus) requestError(status int, body []byte) *RequestError {
	var envelope struct {
		Errors []ErrorDetail `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Errors) > 0 {
		msg := envelope.Errors[0].Detail
		if msg == "" {
			msg = envelope.Errors[0].Title
		}
		if msg == "" {
			msg = "API error"
		}
		return &RequestError{Provider: a.Name(), StatusCode: status, Message: msg, Details: envelope.Errors}
	}
	return &RequestError{Provider: a.Name(), StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// --- upstream payload shapes ---

type amadeusEndpoint struct {
	IataCode string `json:"iataCode"`
	Terminal string `json:"terminal"`
	At       string `json:"at"`
}

type amadeusOffer struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Itineraries []struct {
		Duration string `json:"duration"`
		Segments []struct {
			CarrierCode string `json:"carrierCode"`
			Number      string `json:"number"`
			Aircraft    struct {
				Code string `json:"code"`
			} `json:"aircraft"`
			Departure amadeusEndpoint `json:"departure"`
			Arrival   amadeusEndpoint `json:"arrival"`
			Duration  string          `json:"duration"`
		} `json:"segments"`
	} `json:"itineraries"`
	Price struct {
		GrandTotal string `json:"grandTotal"`
		Total      string `json:"total"`
		Currency   string `json:"currency"`
	} `json:"price"`
	ValidatingAirlineCodes []string `json:"validatingAirlineCodes"`
}

type amadeusOffersEnvelope struct {
	// Items stay raw so each offer keeps its original payload for the
	// seat-map endpoint, which wants the offer back verbatim.
	Data         []json.RawMessage `json:"data"`
	Dictionaries struct {
		Carriers map[string]string `json:"carriers"`
		Aircraft map[string]string `json:"aircraft"`
	} `json:"dictionaries"`
}

func (a *Amadeus) SearchFlights(ctx context.Context, req SearchRequest) ([]models.FlightOffer, error) {
	q := url.Values{}
	q.Set("originLocationCode", strings.ToUpper(req.Origin))
	q.Set("destinationLocationCode", strings.ToUpper(req.Destination))
	q.Set("departureDate", req.DepartureDate)
	adults := req.Adults
	if adults <= 0 {
		adults = 1
	}
	q.Set("adults", strconv.Itoa(adults))
	max := req.MaxResults
	if max <= 0 {
		max = 10
	}
	q.Set("max", strconv.Itoa(max))
	if req.ReturnDate != "" {
		q.Set("returnDate", req.ReturnDate)
	}
	if req.Currency != "" {
		q.Set("currencyCode", req.Currency)
	}
	if req.Cabin != "" {
		q.Set("travelClass", strings.ToUpper(req.Cabin))
	}
	if req.NonStop {
		q.Set("nonStop", "true")
	}
	if len(req.IncludeAirlines) > 0 {
		q.Set("includedAirlineCodes", joinUpper(req.IncludeAirlines))
	}
	if len(req.ExcludeAirlines) > 0 {
		q.Set("excludedAirlineCodes", joinUpper(req.ExcludeAirlines))
	}

	raw, err := a.do(ctx, http.MethodGet, amadeusOffersPath, q, nil)
	if err != nil {
		return nil, err
	}
	return parseAmadeusOffers(raw)
}

func parseAmadeusOffers(raw []byte) ([]models.FlightOffer, error) {
	var envelope amadeusOffersEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("amadeus: decode offers: %w", err)
	}

	offers := make([]models.FlightOffer, 0, len(envelope.Data))
	for _, item := range envelope.Data {
		var o amadeusOffer
		if err := json.Unmarshal(item, &o); err != nil {
			return nil, fmt.Errorf("amadeus: decode offer: %w", err)
		}

		itineraries := make([]models.Itinerary, 0, len(o.Itineraries))
		for _, itin := range o.Itineraries {
			segments := make([]models.Segment, 0, len(itin.Segments))
			for _, seg := range itin.Segments {
				depAt, err := models.ParseTime(seg.Departure.At)
				if err != nil {
					return nil, fmt.Errorf("amadeus: offer %s: %w", o.ID, err)
				}
				arrAt, err := models.ParseTime(seg.Arrival.At)
				if err != nil {
					return nil, fmt.Errorf("amadeus: offer %s: %w", o.ID, err)
				}
				segments = append(segments, models.Segment{
					Carrier:       seg.CarrierCode,
					CarrierName:   envelope.Dictionaries.Carriers[seg.CarrierCode],
					FlightNumber:  seg.Number,
					Aircraft:      envelope.Dictionaries.Aircraft[seg.Aircraft.Code],
					Departure:     models.Airport{Code: seg.Departure.IataCode, Terminal: seg.Departure.Terminal},
					DepartureTime: depAt,
					Arrival:       models.Airport{Code: seg.Arrival.IataCode, Terminal: seg.Arrival.Terminal},
					ArrivalTime:   arrAt,
					Duration:      seg.Duration,
				})
			}
			itineraries = append(itineraries, models.Itinerary{Segments: segments, Duration: itin.Duration})
		}

		currency := o.Price.Currency
		if currency == "" {
			currency = "USD"
		}
		offer, err := models.NewFlightOffer(o.ID, o.Source, models.Price{
			Amount:   amadeusAmount(o.Price.GrandTotal, o.Price.Total),
			Currency: currency,
		}, itineraries)
		if err != nil {
			return nil, fmt.Errorf("amadeus: offer %s: %w", o.ID, err)
		}
		if len(o.ValidatingAirlineCodes) > 0 {
			offer.ValidatingCarrier = o.ValidatingAirlineCodes[0]
		}
		offer.Raw = item
		offers = append(offers, offer)
	}
	return offers, nil
}

// amadeusAmount prefers grandTotal over total and never fails: a missing or
// malformed price parses to zero.
func amadeusAmount(grandTotal, total string) float64 {
	for _, s := range []string{grandTotal, total} {
		if s == "" {
			continue
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return v
		}
	}
	return 0
}

type amadeusScheduleItem struct {
	FlightDesignator struct {
		CarrierCode  string      `json:"carrierCode"`
		FlightNumber json.Number `json:"flightNumber"`
	} `json:"flightDesignator"`
	FlightPoints []struct {
		IataCode  string                `json:"iataCode"`
		Departure amadeusScheduleTiming `json:"departure"`
		Arrival   amadeusScheduleTiming `json:"arrival"`
	} `json:"flightPoints"`
	Segments []struct {
		ScheduledSegmentDuration string `json:"scheduledSegmentDuration"`
	} `json:"segments"`
	Legs []struct {
		AircraftEquipment struct {
			AircraftType string `json:"aircraftType"`
		} `json:"aircraftEquipment"`
	} `json:"legs"`
	Status string `json:"status"`
}

type amadeusScheduleTiming struct {
	Terminal struct {
		Code string `json:"code"`
	} `json:"terminal"`
	Timings []struct {
		Value string `json:"value"`
	} `json:"timings"`
}

func (t amadeusScheduleTiming) first() string {
	if len(t.Timings) == 0 {
		return ""
	}
	return t.Timings[0].Value
}

func (a *Amadeus) GetFlightSchedule(ctx context.Context, carrierCode, flightNumber, departureDate string) ([]models.FlightSchedule, error) {
	q := url.Values{}
	q.Set("carrierCode", strings.ToUpper(carrierCode))
	q.Set("flightNumber", flightNumber)
	q.Set("scheduledDepartureDate", departureDate)

	raw, err := a.do(ctx, http.MethodGet, amadeusSchedulePath, q, nil)
	if err != nil {
		return nil, err
	}
	return parseAmadeusSchedules(raw)
}

// parseAmadeusSchedules flattens the upstream's parallel flightPoints /
// legs / segments arrays into an origin-to-destination summary. Only the
// first and last flight points matter; intermediate stops are ignored.
func parseAmadeusSchedules(raw []byte) ([]models.FlightSchedule, error) {
	var envelope struct {
		Data []amadeusScheduleItem `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("amadeus: decode schedules: %w", err)
	}

	var schedules []models.FlightSchedule
	for _, item := range envelope.Data {
		if len(item.FlightPoints) < 2 {
			continue
		}
		dep := item.FlightPoints[0]
		arr := item.FlightPoints[len(item.FlightPoints)-1]

		depAt, err := models.ParseTime(dep.Departure.first())
		if err != nil {
			return nil, fmt.Errorf("amadeus: schedule departure: %w", err)
		}
		arrAt, err := models.ParseTime(arr.Arrival.first())
		if err != nil {
			return nil, fmt.Errorf("amadeus: schedule arrival: %w", err)
		}

		var duration string
		if len(item.Segments) > 0 {
			duration = item.Segments[0].ScheduledSegmentDuration
		}
		var aircraft string
		if len(item.Legs) > 0 {
			aircraft = item.Legs[0].AircraftEquipment.AircraftType
		}

		schedules = append(schedules, models.FlightSchedule{
			Carrier:       item.FlightDesignator.CarrierCode,
			FlightNumber:  item.FlightDesignator.FlightNumber.String(),
			Departure:     models.Airport{Code: dep.IataCode, Terminal: dep.Departure.Terminal.Code},
			DepartureTime: depAt,
			Arrival:       models.Airport{Code: arr.IataCode, Terminal: arr.Arrival.Terminal.Code},
			ArrivalTime:   arrAt,
			Duration:      duration,
			Aircraft:      aircraft,
			Status:        item.Status,
		})
	}
	return schedules, nil
}

func (a *Amadeus) GetFlightAvailability(ctx context.Context, req AvailabilityRequest) ([]models.FlightAvailability, error) {
	departure := map[string]any{"date": req.DepartureDate}
	if req.DepartureTime != "" {
		departure["time"] = req.DepartureTime
	}
	od := map[string]any{
		"id":                      "1",
		"originLocationCode":      strings.ToUpper(req.Origin),
		"destinationLocationCode": strings.ToUpper(req.Destination),
		"departureDateTime":       departure,
	}
	if req.CarrierCode != "" {
		od["carrierCode"] = strings.ToUpper(req.CarrierCode)
	}
	if req.FlightNumber != "" {
		od["number"] = req.FlightNumber
	}

	body := map[string]any{
		"originDestinations": []any{od},
		"travelers":          []any{map[string]any{"id": "1", "travelerType": "ADULT"}},
		"sources":            []string{"GDS"},
	}

	raw, err := a.do(ctx, http.MethodPost, amadeusAvailabilityPath, nil, body)
	if err != nil {
		return nil, err
	}
	return parseAmadeusAvailabilities(raw)
}

func parseAmadeusAvailabilities(raw []byte) ([]models.FlightAvailability, error) {
	var envelope struct {
		Data []struct {
			Segments []struct {
				CarrierCode         string          `json:"carrierCode"`
				Number              string          `json:"number"`
				Departure           amadeusEndpoint `json:"departure"`
				Arrival             amadeusEndpoint `json:"arrival"`
				AvailabilityClasses []struct {
					Cabin                 string `json:"cabin"`
					Class                 string `json:"class"`
					NumberOfBookableSeats int    `json:"numberOfBookableSeats"`
				} `json:"availabilityClasses"`
			} `json:"segments"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("amadeus: decode availabilities: %w", err)
	}

	var out []models.FlightAvailability
	for _, item := range envelope.Data {
		if len(item.Segments) == 0 {
			continue
		}
		seg := item.Segments[0]

		// Zero-seat cabins are kept as-is.
		var cabins []models.CabinAvailability
		for _, ac := range seg.AvailabilityClasses {
			cabin := ac.Cabin
			if cabin == "" {
				cabin = "ECONOMY"
			}
			class := ac.Class
			if class == "" {
				class = "Y"
			}
			cabins = append(cabins, models.CabinAvailability{
				Cabin:        cabin,
				BookingClass: class,
				Available:    ac.NumberOfBookableSeats,
			})
		}

		depAt, err := models.ParseTime(seg.Departure.At)
		if err != nil {
			return nil, fmt.Errorf("amadeus: availability departure: %w", err)
		}
		arrAt, err := models.ParseTime(seg.Arrival.At)
		if err != nil {
			return nil, fmt.Errorf("amadeus: availability arrival: %w", err)
		}

		out = append(out, models.FlightAvailability{
			Carrier:       seg.CarrierCode,
			FlightNumber:  seg.Number,
			Departure:     models.Airport{Code: seg.Departure.IataCode},
			DepartureTime: depAt,
			Arrival:       models.Airport{Code: seg.Arrival.IataCode},
			ArrivalTime:   arrAt,
			Cabins:        cabins,
		})
	}
	return out, nil
}

// GetSeatMap finds the offer carrying the requested flight in a wide offer
// search, then submits that offer's retained raw payload to the seat-map
// endpoint, which has no bare flight-number form. No matching offer means
// no seat map, not an error.
func (a *Amadeus) GetSeatMap(ctx context.Context, carrierCode, flightNumber, departureDate, origin, destination string) (*models.SeatMap, error) {
	offers, err := a.SearchFlights(ctx, SearchRequest{
		Origin:        origin,
		Destination:   destination,
		DepartureDate: departureDate,
		Adults:        1,
		MaxResults:    50,
	})
	if err != nil {
		return nil, err
	}

	target := strings.ToUpper(carrierCode) + flightNumber
	var match *models.FlightOffer
	for i := range offers {
		for _, itin := range offers[i].Itineraries {
			for _, seg := range itin.Segments {
				if seg.FlightCode() == target {
					match = &offers[i]
				}
			}
		}
	}
	if match == nil {
		return nil, nil
	}

	body := map[string]any{"data": []json.RawMessage{match.Raw}}
	raw, err := a.do(ctx, http.MethodPost, amadeusSeatMapPath, nil, body)
	if err != nil {
		return nil, err
	}
	return parseAmadeusSeatMap(raw)
}

var amadeusSeatCharacteristics = map[string]string{
	"W":  models.SeatWindow,
	"A":  models.SeatAisle,
	"1":  models.SeatRestrictedRecline,
	"E":  models.SeatExitRow,
	"L":  models.SeatLegSpace,
	"CH": models.SeatChargeable,
}

func parseAmadeusSeatMap(raw []byte) (*models.SeatMap, error) {
	var envelope struct {
		Data []struct {
			CarrierCode string `json:"carrierCode"`
			Number      string `json:"number"`
			Aircraft    struct {
				Code string `json:"code"`
			} `json:"aircraft"`
			Departure amadeusEndpoint `json:"departure"`
			Arrival   amadeusEndpoint `json:"arrival"`
			Decks     []struct {
				Seats []struct {
					Number               string   `json:"number"`
					Cabin                string   `json:"cabin"`
					CharacteristicsCodes []string `json:"characteristicsCodes"`
					TravelerPricing      []struct {
						SeatAvailabilityStatus string `json:"seatAvailabilityStatus"`
					} `json:"travelerPricing"`
				} `json:"seats"`
			} `json:"decks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("amadeus: decode seat map: %w", err)
	}
	if len(envelope.Data) == 0 {
		return nil, nil
	}

	item := envelope.Data[0]
	decks := make([][]models.Seat, 0, len(item.Decks))
	for _, deck := range item.Decks {
		seats := make([]models.Seat, 0, len(deck.Seats))
		for _, s := range deck.Seats {
			status := "AVAILABLE"
			if len(s.TravelerPricing) > 0 && s.TravelerPricing[0].SeatAvailabilityStatus != "" {
				status = s.TravelerPricing[0].SeatAvailabilityStatus
			}
			var characteristics []string
			for _, code := range s.CharacteristicsCodes {
				if name, ok := amadeusSeatCharacteristics[code]; ok {
					characteristics = append(characteristics, name)
				}
			}
			cabin := s.Cabin
			if cabin == "" {
				cabin = "ECONOMY"
			}
			seats = append(seats, models.Seat{
				Number:          s.Number,
				Available:       status == "AVAILABLE",
				Cabin:           cabin,
				Characteristics: characteristics,
			})
		}
		decks = append(decks, seats)
	}

	var departureDate string
	if len(item.Departure.At) >= 10 {
		departureDate = item.Departure.At[:10]
	}
	return &models.SeatMap{
		Carrier:       item.CarrierCode,
		FlightNumber:  item.Number,
		Aircraft:      item.Aircraft.Code,
		Departure:     models.Airport{Code: item.Departure.IataCode},
		Arrival:       models.Airport{Code: item.Arrival.IataCode},
		DepartureDate: departureDate,
		Decks:         decks,
	}, nil
}

func joinUpper(codes []string) string {
	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = strings.ToUpper(c)
	}
	return strings.Join(upper, ",")
}

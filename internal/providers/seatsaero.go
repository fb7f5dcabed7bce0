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
)

// Award cabin codes searched against the partner API.
var awardCabins = []string{"Y", "W", "J", "F"}

// seatsAeroCabinParams maps booking-class letters to the partner API's
// cabin filter values.
var seatsAeroCabinParams = map[string]string{
	"Y": "economy",
	"W": "premium",
	"J": "business",
	"F": "first",
}

// CabinAward is redemption availability for one cabin. MileageCost zero
// means the partner has no cost data for the cabin, not a free fare.
type CabinAward struct {
	Available      bool     `json:"available"`
	MileageCost    int      `json:"mileage_cost"`
	Airlines       []string `json:"airlines,omitempty"`
	Direct         bool     `json:"direct"`
	RemainingSeats int      `json:"remaining_seats"`
}

// AwardResult is award availability for one route, date and mileage program.
type AwardResult struct {
	ID          string                `json:"id"`
	Origin      string                `json:"origin"`
	Destination string                `json:"destination"`
	Date        string                `json:"date"`
	Source      string                `json:"source"` // mileage program key
	Cabins      map[string]CabinAward `json:"cabins"` // keyed Y/W/J/F
	UpdatedAt   string                `json:"updated_at,omitempty"`
}

func (r AwardResult) HasEconomy() bool  { return r.Cabins["Y"].Available }
func (r AwardResult) HasBusiness() bool { return r.Cabins["J"].Available }
func (r AwardResult) HasFirst() bool    { return r.Cabins["F"].Available }

// BestCabin is the highest available cabin, or "" when nothing is open.
func (r AwardResult) BestCabin() string {
	for _, cabin := range []string{"F", "J", "W", "Y"} {
		if r.Cabins[cabin].Available {
			return cabin
		}
	}
	return ""
}

type AwardSearchResponse struct {
	Results []AwardResult `json:"results"`
	Count   int           `json:"count"`
	HasMore bool          `json:"has_more"`
	Cursor  int64         `json:"cursor,omitempty"`
}

type AwardSearchRequest struct {
	Origin      string // comma-separated IATA codes allowed
	Destination string
	StartDate   string // YYYY-MM-DD
	EndDate     string // defaults to StartDate
	Cabins      []string
	Sources     []string // mileage programs
	Carriers    []string // operating airlines
	DirectOnly  bool
	OrderBy     string // "lowest_mileage" or empty
	Take        int    // clamped to 10..1000
}

// SeatsAero wraps the Seats.aero partner API, which returns per-cabin
// award availability rather than cash prices. Its result shape is nothing
// like a FlightOffer, so it lives outside the FlightProvider contract.
type SeatsAero struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewSeatsAero(cfg *config.Config) (*SeatsAero, error) {
	if cfg.SeatsAeroAPIKey == "" {
		return nil, &ConfigError{Message: "seatsaero_api_key required"}
	}
	return &SeatsAero{
		baseURL: strings.TrimSuffix(cfg.SeatsAeroBaseURL, "/"),
		apiKey:  cfg.SeatsAeroAPIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *SeatsAero) Name() string { return "seatsaero" }

func (s *SeatsAero) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *SeatsAero) request(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := s.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), Message: err.Error()}
	}
	req.Header.Set("Partner-Authorization", s.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: err.Error()}
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: "invalid API key"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: "rate limit exceeded (1000 calls/day)"}
	case resp.StatusCode != http.StatusOK:
		return nil, &RequestError{Provider: s.Name(), StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return raw, nil
}

func (s *SeatsAero) SearchAwards(ctx context.Context, req AwardSearchRequest) (*AwardSearchResponse, error) {
	take := req.Take
	if take < 10 {
		take = 10
	}
	if take > 1000 {
		take = 1000
	}

	params := url.Values{}
	params.Set("origin_airport", strings.ToUpper(req.Origin))
	params.Set("destination_airport", strings.ToUpper(req.Destination))
	params.Set("take", strconv.Itoa(take))
	params.Set("include_trips", "false")

	if req.StartDate != "" {
		params.Set("start_date", req.StartDate)
		end := req.EndDate
		if end == "" {
			end = req.StartDate // single-day search
		}
		params.Set("end_date", end)
	}

	if len(req.Cabins) > 0 {
		mapped := make([]string, 0, len(req.Cabins))
		for _, c := range req.Cabins {
			if v, ok := seatsAeroCabinParams[strings.ToUpper(c)]; ok {
				mapped = append(mapped, v)
			} else {
				mapped = append(mapped, strings.ToLower(c))
			}
		}
		params.Set("cabins", strings.Join(mapped, ","))
	}
	if len(req.Sources) > 0 {
		lower := make([]string, len(req.Sources))
		for i, src := range req.Sources {
			lower[i] = strings.ToLower(src)
		}
		params.Set("sources", strings.Join(lower, ","))
	}
	if len(req.Carriers) > 0 {
		params.Set("carriers", joinUpper(req.Carriers))
	}
	if req.DirectOnly {
		params.Set("only_direct_flights", "true")
	}
	if req.OrderBy != "" {
		params.Set("order_by", req.OrderBy)
	}

	raw, err := s.request(ctx, "/search", params)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Data    []map[string]any `json:"data"`
		HasMore bool             `json:"hasMore"`
		Cursor  int64            `json:"cursor"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("seatsaero: decode response: %w", err)
	}

	results := make([]AwardResult, 0, len(payload.Data))
	for _, item := range payload.Data {
		results = append(results, parseAwardResult(item))
	}
	return &AwardSearchResponse{
		Results: results,
		Count:   len(results),
		HasMore: payload.HasMore,
		Cursor:  payload.Cursor,
	}, nil
}

// parseAwardResult walks one availability item. The upstream flattens cabin
// data into prefixed field names (YAvailable, JMileageCost, ...), so each
// cabin's fields are pulled out independently.
func parseAwardResult(item map[string]any) AwardResult {
	route, _ := item["Route"].(map[string]any)

	cabins := make(map[string]CabinAward, len(awardCabins))
	for _, cabin := range awardCabins {
		cabins[cabin] = parseCabinAward(item, cabin)
	}

	origin := jsonString(route["OriginAirport"])
	if origin == "" {
		origin = jsonString(item["OriginAirport"])
	}
	destination := jsonString(route["DestinationAirport"])
	if destination == "" {
		destination = jsonString(item["DestinationAirport"])
	}
	source := jsonString(item["Source"])
	if source == "" {
		source = jsonString(route["Source"])
	}

	return AwardResult{
		ID:          jsonString(item["ID"]),
		Origin:      origin,
		Destination: destination,
		Date:        jsonString(item["Date"]),
		Source:      source,
		Cabins:      cabins,
		UpdatedAt:   jsonString(item["UpdatedAt"]),
	}
}

func parseCabinAward(item map[string]any, prefix string) CabinAward {
	// A literal "0" mileage cost means the partner has no cost data, which
	// is tracked separately from the availability flag itself.
	cost := 0
	if costStr := jsonString(item[prefix+"MileageCost"]); costStr != "" && costStr != "0" {
		if v, err := strconv.Atoi(costStr); err == nil {
			cost = v
		}
	}

	var airlines []string
	for _, a := range strings.Split(jsonString(item[prefix+"Airlines"]), ",") {
		if a = strings.TrimSpace(a); a != "" {
			airlines = append(airlines, a)
		}
	}

	return CabinAward{
		Available:      jsonBool(item[prefix+"Available"]),
		MileageCost:    cost,
		Airlines:       airlines,
		Direct:         jsonBool(item[prefix+"Direct"]),
		RemainingSeats: jsonInt(item[prefix+"RemainingSeats"]),
	}
}

// GetRoutes lists routes the partner tracks, optionally filtered.
func (s *SeatsAero) GetRoutes(ctx context.Context, origin, destination, source string) ([]map[string]any, error) {
	params := url.Values{}
	if origin != "" {
		params.Set("origin_airport", strings.ToUpper(origin))
	}
	if destination != "" {
		params.Set("destination_airport", strings.ToUpper(destination))
	}
	if source != "" {
		params.Set("source", strings.ToLower(source))
	}

	raw, err := s.request(ctx, "/routes", params)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("seatsaero: decode routes: %w", err)
	}
	return payload.Data, nil
}

func jsonString(v any) string {
	s, _ := v.(string)
	return s
}

func jsonBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func jsonInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

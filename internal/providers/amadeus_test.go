package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/you/flight-buddy/internal/config"
)

const amadeusOffersFixture = `{
  "data": [
    {
      "id": "1",
      "source": "GDS",
      "itineraries": [
        {
          "duration": "PT13H15M",
          "segments": [
            {
              "carrierCode": "EK",
              "number": "766",
              "aircraft": {"code": "388"},
              "departure": {"iataCode": "JNB", "terminal": "B", "at": "2026-02-01T13:40:00"},
              "arrival": {"iataCode": "DXB", "terminal": "3", "at": "2026-02-01T23:55:00"},
              "duration": "PT8H15M"
            },
            {
              "carrierCode": "EK",
              "number": "1",
              "aircraft": {"code": "77W"},
              "departure": {"iataCode": "DXB", "terminal": "3", "at": "2026-02-02T03:10:00"},
              "arrival": {"iataCode": "LHR", "terminal": "3", "at": "2026-02-02T07:15:00"},
              "duration": "PT7H35M"
            }
          ]
        }
      ],
      "price": {"grandTotal": "9543.00", "total": "9000.00", "currency": "ZAR"},
      "validatingAirlineCodes": ["EK"]
    }
  ],
  "dictionaries": {
    "carriers": {"EK": "EMIRATES"},
    "aircraft": {"388": "AIRBUS A380-800", "77W": "BOEING 777-300ER"}
  }
}`

func newAmadeusTest(t *testing.T, handler http.HandlerFunc) (*Amadeus, *int) {
	t.Helper()
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/security/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		fmt.Fprintf(w, `{"access_token":"tok-%d","expires_in":1799}`, tokenCalls)
	})
	mux.HandleFunc("/", handler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	p, err := NewAmadeus(&config.Config{
		AmadeusBaseURL:   srv.URL,
		AmadeusAPIKey:    "key",
		AmadeusAPISecret: "secret",
	})
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, &tokenCalls
}

func TestNewAmadeusRequiresCredentials(t *testing.T) {
	_, err := NewAmadeus(&config.Config{AmadeusBaseURL: "https://test.api.amadeus.com"})
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestAmadeusSearchFlights(t *testing.T) {
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/shopping/flight-offers" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("originLocationCode") != "JNB" || q.Get("destinationLocationCode") != "DXB" {
			t.Fatalf("unexpected route: %s", r.URL.RawQuery)
		}
		if q.Get("travelClass") != "BUSINESS" || q.Get("nonStop") != "true" {
			t.Fatalf("missing filters: %s", r.URL.RawQuery)
		}
		io.WriteString(w, amadeusOffersFixture)
	})

	offers, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin:        "jnb",
		Destination:   "dxb",
		DepartureDate: "2026-02-01",
		Cabin:         "BUSINESS",
		NonStop:       true,
		Currency:      "ZAR",
	})
	require.NoError(t, err)
	require.Len(t, offers, 1)

	offer := offers[0]
	require.Equal(t, "ZAR", offer.Price.Currency) // currency preserved verbatim
	require.Equal(t, 9543.0, offer.Price.Amount)  // grandTotal wins over total
	require.Equal(t, "EK", offer.ValidatingCarrier)
	require.Len(t, offer.Itineraries, 1)
	require.NotEmpty(t, offer.Raw, "raw payload must be retained")

	itin := offer.Outbound()
	require.Equal(t, 1, itin.Stops())
	seg := itin.Segments[0]
	require.Equal(t, "EK766", seg.FlightCode())
	require.Equal(t, "EMIRATES", seg.CarrierName)
	require.Equal(t, "AIRBUS A380-800", seg.Aircraft)
	require.Equal(t, "B", seg.Departure.Terminal)
}

func TestAmadeusSearchUnknownDictionaryCodes(t *testing.T) {
	// Carrier/aircraft codes missing from the dictionaries must resolve to
	// empty names, never fail the parse.
	fixture := strings.Replace(amadeusOffersFixture, `"carriers": {"EK": "EMIRATES"}`, `"carriers": {}`, 1)
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, fixture)
	})

	offers, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin: "JNB", Destination: "DXB", DepartureDate: "2026-02-01",
	})
	require.NoError(t, err)
	require.Equal(t, "", offers[0].Itineraries[0].Segments[0].CarrierName)
}

func TestAmadeusRoundTripItineraries(t *testing.T) {
	fixture := strings.Replace(amadeusOffersFixture,
		`"itineraries": [`,
		`"itineraries": [
        {
          "duration": "PT8H5M",
          "segments": [
            {
              "carrierCode": "EK",
              "number": "765",
              "departure": {"iataCode": "DXB", "at": "2026-02-10T10:15:00"},
              "arrival": {"iataCode": "JNB", "at": "2026-02-10T16:20:00"},
              "duration": "PT8H5M"
            }
          ]
        },`, 1)

	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("returnDate"); got != "2026-02-10" {
			t.Fatalf("returnDate: got %q", got)
		}
		io.WriteString(w, fixture)
	})

	offers, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin: "JNB", Destination: "DXB",
		DepartureDate: "2026-02-01", ReturnDate: "2026-02-10",
	})
	require.NoError(t, err)
	require.Len(t, offers[0].Itineraries, 2)
}

func TestAmadeus401RefreshAndRetryOnce(t *testing.T) {
	attempts := 0
	p, tokenCalls := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			if got := r.Header.Get("Authorization"); got != "Bearer tok-1" {
				t.Fatalf("first attempt auth: got %q", got)
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-2" {
			t.Fatalf("retry auth: got %q", got)
		}
		io.WriteString(w, amadeusOffersFixture)
	})

	offers, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin: "JNB", Destination: "DXB", DepartureDate: "2026-02-01",
	})
	require.NoError(t, err)
	require.Len(t, offers, 1)
	require.Equal(t, 2, attempts)
	require.Equal(t, 2, *tokenCalls)
}

func TestAmadeusSecond401IsRequestError(t *testing.T) {
	attempts := 0
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"errors":[{"title":"Unauthorized","detail":"token rejected"}]}`)
	})

	_, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin: "JNB", Destination: "DXB", DepartureDate: "2026-02-01",
	})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, http.StatusUnauthorized, reqErr.StatusCode)
	require.Equal(t, "token rejected", reqErr.Message)
	// Exactly one refresh-and-retry cycle, no loop.
	require.Equal(t, 2, attempts)
}

func TestAmadeusErrorEnvelope(t *testing.T) {
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"errors":[{"title":"INVALID DATE","detail":"departureDate in the past"}]}`)
	})

	_, err := p.SearchFlights(context.Background(), SearchRequest{
		Origin: "JNB", Destination: "DXB", DepartureDate: "2020-01-01",
	})
	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "departureDate in the past", reqErr.Message)
	require.Len(t, reqErr.Details, 1)
	require.Equal(t, "INVALID DATE", reqErr.Details[0].Title)
}

func TestAmadeusSchedule(t *testing.T) {
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/schedule/flights" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("carrierCode") != "EK" || q.Get("flightNumber") != "766" {
			t.Fatalf("unexpected query: %s", r.URL.RawQuery)
		}
		io.WriteString(w, `{
  "data": [
    {
      "flightDesignator": {"carrierCode": "EK", "flightNumber": 766},
      "flightPoints": [
        {"iataCode": "JNB", "departure": {"terminal": {"code": "B"}, "timings": [{"value": "2026-02-01T13:40+02:00"}]}},
        {"iataCode": "LUN", "departure": {"timings": [{"value": "2026-02-01T17:00+02:00"}]}, "arrival": {"timings": [{"value": "2026-02-01T16:10+02:00"}]}},
        {"iataCode": "DXB", "arrival": {"terminal": {"code": "3"}, "timings": [{"value": "2026-02-01T23:55+04:00"}]}}
      ],
      "segments": [{"scheduledSegmentDuration": "PT8H15M"}],
      "legs": [{"aircraftEquipment": {"aircraftType": "388"}}]
    }
  ]
}`)
	})

	schedules, err := p.GetFlightSchedule(context.Background(), "ek", "766", "2026-02-01")
	require.NoError(t, err)
	require.Len(t, schedules, 1)

	s := schedules[0]
	require.Equal(t, "EK766", s.FlightCode())
	// Intermediate flight points are ignored: true origin and destination only.
	require.Equal(t, "JNB", s.Departure.Code)
	require.Equal(t, "DXB", s.Arrival.Code)
	require.Equal(t, "3", s.Arrival.Terminal)
	require.Equal(t, "PT8H15M", s.Duration)
	require.Equal(t, "388", s.Aircraft)
}

func TestAmadeusAvailabilityKeepsZeroSeatCabins(t *testing.T) {
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/shopping/availability/flight-availabilities" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Contains(t, body, "originDestinations")
		require.Contains(t, body, "travelers")

		io.WriteString(w, `{
  "data": [
    {
      "segments": [
        {
          "carrierCode": "EK",
          "number": "766",
          "departure": {"iataCode": "JNB", "at": "2026-02-01T13:40:00"},
          "arrival": {"iataCode": "DXB", "at": "2026-02-01T23:55:00"},
          "availabilityClasses": [
            {"cabin": "ECONOMY", "class": "Y", "numberOfBookableSeats": 9},
            {"cabin": "BUSINESS", "class": "J", "numberOfBookableSeats": 0}
          ]
        }
      ]
    }
  ]
}`)
	})

	avails, err := p.GetFlightAvailability(context.Background(), AvailabilityRequest{
		Origin: "JNB", Destination: "DXB", DepartureDate: "2026-02-01",
	})
	require.NoError(t, err)
	require.Len(t, avails, 1)
	require.Equal(t, "EK766", avails[0].FlightCode())
	require.Len(t, avails[0].Cabins, 2)

	j, ok := avails[0].GetCabin("J")
	require.True(t, ok)
	require.Equal(t, 0, j.Available)
}

func TestAmadeusSeatMap(t *testing.T) {
	seatMapCalls := 0
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/shopping/flight-offers":
			if got := r.URL.Query().Get("max"); got != "50" {
				t.Fatalf("seat-map search window: got max=%q, want 50", got)
			}
			io.WriteString(w, amadeusOffersFixture)
		case "/v1/shopping/seatmaps":
			seatMapCalls++
			// The original offer payload must round-trip verbatim.
			var body struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Data, 1)
			require.Equal(t, "1", body.Data[0].ID)

			io.WriteString(w, `{
  "data": [
    {
      "carrierCode": "EK",
      "number": "766",
      "aircraft": {"code": "388"},
      "departure": {"iataCode": "JNB", "at": "2026-02-01T13:40:00"},
      "arrival": {"iataCode": "DXB"},
      "decks": [
        {
          "seats": [
            {"number": "1A", "cabin": "BUSINESS", "characteristicsCodes": ["W", "CH"], "travelerPricing": [{"seatAvailabilityStatus": "AVAILABLE"}]},
            {"number": "1B", "cabin": "BUSINESS", "characteristicsCodes": ["A"], "travelerPricing": [{"seatAvailabilityStatus": "OCCUPIED"}]}
          ]
        }
      ]
    }
  ]
}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	})

	m, err := p.GetSeatMap(context.Background(), "EK", "766", "2026-02-01", "JNB", "DXB")
	require.NoError(t, err)
	require.NotNil(t, m)
	require.Equal(t, 1, seatMapCalls)

	require.Equal(t, "EK766", m.FlightCode())
	require.Equal(t, "2026-02-01", m.DepartureDate)
	require.Len(t, m.Decks, 1)

	seats := m.Decks[0]
	require.True(t, seats[0].Available)
	require.Equal(t, []string{"WINDOW", "CHARGEABLE"}, seats[0].Characteristics)
	require.False(t, seats[1].Available)
}

func TestAmadeusSeatMapNoMatchingOffer(t *testing.T) {
	p, _ := newAmadeusTest(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/shopping/seatmaps" {
			t.Fatal("seat-map endpoint must not be called without a matching offer")
		}
		io.WriteString(w, amadeusOffersFixture)
	})

	// QF10 appears nowhere in the offer window -> absent, not an error.
	m, err := p.GetSeatMap(context.Background(), "QF", "10", "2026-02-01", "JNB", "DXB")
	require.NoError(t, err)
	require.Nil(t, m)
}

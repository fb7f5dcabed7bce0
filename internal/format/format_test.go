package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/you/flight-buddy/internal/balances"
	"github.com/you/flight-buddy/internal/models"
	"github.com/you/flight-buddy/internal/providers"
)

func sampleOffer(t *testing.T) models.FlightOffer {
	t.Helper()
	dep := time.Date(2026, 2, 1, 13, 40, 0, 0, time.Local)
	offer, err := models.NewFlightOffer("1", "amadeus",
		models.Price{Amount: 9543, Currency: "ZAR"},
		[]models.Itinerary{{
			Duration: "PT8H15M",
			Segments: []models.Segment{{
				Carrier:       "EK",
				FlightNumber:  "766",
				Departure:     models.Airport{Code: "JNB"},
				DepartureTime: dep,
				Arrival:       models.Airport{Code: "DXB"},
				ArrivalTime:   dep.Add(10 * time.Hour),
				Duration:      "PT8H15M",
				Cabin:         "ECONOMY",
			}},
		}})
	require.NoError(t, err)
	return offer
}

func TestOffers(t *testing.T) {
	var buf bytes.Buffer
	Offers(&buf, []models.FlightOffer{sampleOffer(t)}, false)

	out := buf.String()
	require.Contains(t, out, "One-way, 1 offer(s)")
	require.Contains(t, out, "EK766")
	require.Contains(t, out, "R 9,543")
	require.Contains(t, out, "direct")
}

func TestOffersEmpty(t *testing.T) {
	var buf bytes.Buffer
	Offers(&buf, nil, true)
	require.Contains(t, buf.String(), "No flights found.")
}

func TestSeatMapRendering(t *testing.T) {
	m := &models.SeatMap{
		Carrier:      "EK",
		FlightNumber: "766",
		Departure:    models.Airport{Code: "JNB"},
		Arrival:      models.Airport{Code: "DXB"},
		Decks: [][]models.Seat{{
			{Number: "1A", Available: true, Cabin: "BUSINESS"},
			{Number: "1B", Available: false, Cabin: "BUSINESS"},
		}},
	}

	var buf bytes.Buffer
	SeatMap(&buf, m, "")
	out := buf.String()
	require.Contains(t, out, "EK766")
	require.Contains(t, out, "[A]")
	require.Contains(t, out, "[x]")
}

func TestSeatMapAbsent(t *testing.T) {
	var buf bytes.Buffer
	SeatMap(&buf, nil, "")
	require.Contains(t, buf.String(), "No seat map available.")
}

func TestAwards(t *testing.T) {
	resp := &providers.AwardSearchResponse{
		Results: []providers.AwardResult{{
			Origin:      "JNB",
			Destination: "DXB",
			Date:        "2026-02-01",
			Source:      "emirates",
			Cabins: map[string]providers.CabinAward{
				"Y": {Available: true, MileageCost: 42500, Airlines: []string{"EK"}, Direct: true, RemainingSeats: 4},
				"J": {Available: true}, // no cost data
			},
		}},
		Count: 1,
	}

	var buf bytes.Buffer
	Awards(&buf, resp)
	out := buf.String()
	require.Contains(t, out, "Emirates Skywards")
	require.Contains(t, out, "42,500")
	require.Contains(t, out, "n/a") // zero mileage renders as no data
}

func TestBalancesTable(t *testing.T) {
	entries := map[string]balances.Entry{
		"emirates": {Program: "Emirates Skywards", Miles: 50000, Tier: "Gold", Updated: "2026-02-01"},
	}

	var buf bytes.Buffer
	Balances(&buf, entries, []string{"emirates"})
	out := buf.String()
	require.Contains(t, out, "Emirates Skywards")
	require.Contains(t, out, "50,000")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2) // header + one row
}

// Package format renders domain objects as terminal tables or JSON.
package format

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/you/flight-buddy/internal/balances"
	"github.com/you/flight-buddy/internal/models"
	"github.com/you/flight-buddy/internal/providers"
)

const timeLayout = "Mon 02 Jan 15:04"

// JSON pretty-prints any value.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func Offers(w io.Writer, offers []models.FlightOffer, roundTrip bool) {
	if len(offers) == 0 {
		fmt.Fprintln(w, "No flights found.")
		return
	}
	trip := "One-way"
	if roundTrip {
		trip = "Round-trip"
	}
	fmt.Fprintf(w, "%s, %d offer(s)\n\n", trip, len(offers))

	for i, offer := range offers {
		fmt.Fprintf(w, "%d. %s", i+1, offer.Price)
		if offer.ValidatingCarrier != "" {
			fmt.Fprintf(w, "  (%s)", offer.ValidatingCarrier)
		}
		fmt.Fprintln(w)
		for j, itin := range offer.Itineraries {
			label := "Outbound"
			if j == 1 {
				label = "Return"
			}
			if !roundTrip {
				label = "Itinerary"
			}
			fmt.Fprintf(w, "   %s (%s, %s):\n", label, itineraryStops(itin), strings.ToLower(strings.TrimPrefix(itin.Duration, "PT")))
			for _, seg := range itin.Segments {
				line := fmt.Sprintf("     %-7s %s %s -> %s %s",
					seg.FlightCode(),
					seg.Departure.Code,
					seg.DepartureTime.Format(timeLayout),
					seg.Arrival.Code,
					seg.ArrivalTime.Format(timeLayout),
				)
				if seg.Cabin != "" {
					line += "  " + seg.Cabin
				}
				fmt.Fprintln(w, line)
			}
		}
		fmt.Fprintln(w)
	}
}

func itineraryStops(itin models.Itinerary) string {
	if itin.IsDirect() {
		return "direct"
	}
	return fmt.Sprintf("%d stop(s)", itin.Stops())
}

func Schedules(w io.Writer, schedules []models.FlightSchedule) {
	if len(schedules) == 0 {
		fmt.Fprintln(w, "No schedule found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FLIGHT\tFROM\tDEPARTS\tTO\tARRIVES\tDURATION\tAIRCRAFT\tSTATUS")
	for _, s := range schedules {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.FlightCode(),
			airportWithTerminal(s.Departure),
			s.DepartureTime.Format(timeLayout),
			airportWithTerminal(s.Arrival),
			s.ArrivalTime.Format(timeLayout),
			strings.ToLower(strings.TrimPrefix(s.Duration, "PT")),
			s.Aircraft,
			s.Status,
		)
	}
	tw.Flush()
}

func airportWithTerminal(a models.Airport) string {
	if a.Terminal != "" {
		return a.Code + " T" + a.Terminal
	}
	return a.Code
}

func Availabilities(w io.Writer, avails []models.FlightAvailability) {
	if len(avails) == 0 {
		fmt.Fprintln(w, "No availability found.")
		return
	}
	for _, a := range avails {
		fmt.Fprintf(w, "%s  %s %s -> %s %s\n",
			a.FlightCode(),
			a.Departure.Code, a.DepartureTime.Format(timeLayout),
			a.Arrival.Code, a.ArrivalTime.Format(timeLayout),
		)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  CABIN\tCLASS\tSEATS")
		for _, c := range a.Cabins {
			fmt.Fprintf(tw, "  %s\t%s\t%d\n", c.Cabin, c.BookingClass, c.Available)
		}
		tw.Flush()
		fmt.Fprintln(w)
	}
}

// SeatMap draws each deck row by row, marking open seats with their column
// letter and taken ones with an x.
func SeatMap(w io.Writer, m *models.SeatMap, cabin string) {
	if m == nil {
		fmt.Fprintln(w, "No seat map available.")
		return
	}
	fmt.Fprintf(w, "%s  %s -> %s  %s\n", m.FlightCode(), m.Departure.Code, m.Arrival.Code, m.DepartureDate)
	if m.Aircraft != "" {
		fmt.Fprintf(w, "Aircraft: %s\n", m.Aircraft)
	}
	fmt.Fprintf(w, "Available: %d\n\n", m.AvailableCount(cabin))

	for d, deck := range m.Decks {
		if len(m.Decks) > 1 {
			fmt.Fprintf(w, "Deck %d\n", d+1)
		}
		rows := map[int][]models.Seat{}
		var rowNums []int
		for _, seat := range deck {
			if cabin != "" && seat.Cabin != strings.ToUpper(cabin) {
				continue
			}
			r := seat.Row()
			if _, ok := rows[r]; !ok {
				rowNums = append(rowNums, r)
			}
			rows[r] = append(rows[r], seat)
		}
		sort.Ints(rowNums)
		for _, r := range rowNums {
			seats := rows[r]
			sort.Slice(seats, func(i, j int) bool { return seats[i].Column() < seats[j].Column() })
			fmt.Fprintf(w, "%3d  ", r)
			for _, seat := range seats {
				if seat.Available {
					fmt.Fprintf(w, "[%s]", seat.Column())
				} else {
					fmt.Fprint(w, "[x]")
				}
			}
			fmt.Fprintln(w)
		}
	}
}

func Awards(w io.Writer, resp *providers.AwardSearchResponse) {
	if resp == nil || len(resp.Results) == 0 {
		fmt.Fprintln(w, "No award availability found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tROUTE\tPROGRAM\tCABIN\tMILES\tSEATS\tDIRECT\tAIRLINES")
	for _, r := range resp.Results {
		for _, cabin := range []string{"Y", "W", "J", "F"} {
			award := r.Cabins[cabin]
			if !award.Available {
				continue
			}
			miles := "n/a"
			if award.MileageCost > 0 {
				miles = balances.FormatMiles(award.MileageCost)
			}
			direct := ""
			if award.Direct {
				direct = "yes"
			}
			fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
				r.Date, r.Origin, r.Destination,
				balances.DisplayName(r.Source),
				cabin, miles, award.RemainingSeats, direct,
				strings.Join(award.Airlines, ","),
			)
		}
	}
	tw.Flush()
	if resp.HasMore {
		fmt.Fprintln(w, "(more results available)")
	}
}

func Balances(w io.Writer, entries map[string]balances.Entry, keys []string) {
	if len(keys) == 0 {
		fmt.Fprintln(w, "No balances recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROGRAM\tMILES\tTIER\tUPDATED")
	for _, k := range keys {
		e := entries[k]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Program, balances.FormatMiles(e.Miles), e.Tier, e.Updated)
	}
	tw.Flush()
}

func Affordability(w io.Writer, program string, a balances.Affordability) {
	switch a.Status {
	case "ok":
		fmt.Fprintf(w, "%s: affordable, %s miles to spare\n", balances.DisplayName(program), balances.FormatMiles(a.Delta))
	case "close":
		fmt.Fprintf(w, "%s: close, %s miles short\n", balances.DisplayName(program), balances.FormatMiles(-a.Delta))
	default:
		fmt.Fprintf(w, "%s: short by %s miles (balance %s, needs %s)\n",
			balances.DisplayName(program),
			balances.FormatMiles(-a.Delta),
			balances.FormatMiles(a.Balance),
			balances.FormatMiles(a.Required),
		)
	}
}

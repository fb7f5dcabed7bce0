package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/you/flight-buddy/internal/balances"
	"github.com/you/flight-buddy/internal/config"
	"github.com/you/flight-buddy/internal/format"
	"github.com/you/flight-buddy/internal/providers"
)

const usageText = `flightbuddy - quick flight lookups from the command line

Usage:
  flightbuddy search  -from JNB -to DXB -date 2026-02-01 [-return 2026-02-10] [flags]
  flightbuddy flight  EK766 -date 2026-02-01 [flags]
  flightbuddy avail   -from JNB -to DXB -date 2026-02-01 [-flight EK766] [flags]
  flightbuddy seats   EK766 -date 2026-02-01 -from JNB -to DXB [flags]
  flightbuddy awards  -from JNB -to DXB -date 2026-02-01 [flags]
  flightbuddy balance [list|set|check] ...

Common flags:
  -provider name   override the configured provider (amadeus, serpapi)
  -json            emit JSON instead of tables
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usageText)
		return 2
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		logger = zap.NewNop()
	}
	defer logger.Sync()
	log := logger.Sugar()

	cfg := config.Load()

	switch args[0] {
	case "search":
		err = cmdSearch(cfg, log, args[1:])
	case "flight":
		err = cmdFlight(cfg, log, args[1:])
	case "avail":
		err = cmdAvail(cfg, log, args[1:])
	case "seats":
		err = cmdSeats(cfg, log, args[1:])
	case "awards":
		err = cmdAwards(cfg, log, args[1:])
	case "balance":
		err = cmdBalance(cfg, args[1:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	if err != nil {
		var capErr *providers.CapabilityError
		if errors.As(err, &capErr) {
			fmt.Fprintf(os.Stderr, "Not supported: %v\n", capErr)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openProvider resolves and constructs the adapter. The caller must Close
// it on every exit path.
func openProvider(name string, cfg *config.Config, log *zap.SugaredLogger) (providers.FlightProvider, error) {
	p, err := providers.New(name, cfg)
	if err != nil {
		return nil, err
	}
	log.Debugw("provider selected", "provider", p.Name())
	return p, nil
}

func cmdSearch(cfg *config.Config, log *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	providerName := fs.String("provider", "", "provider override")
	from := fs.String("from", "", "origin airport IATA code")
	to := fs.String("to", "", "destination airport IATA code")
	date := fs.String("date", "", "departure date YYYY-MM-DD")
	returnDate := fs.String("return", "", "return date for round trip")
	adults := fs.Int("adults", 1, "adult passengers")
	cabin := fs.String("cabin", "", "cabin class (ECONOMY, PREMIUM_ECONOMY, BUSINESS, FIRST)")
	nonStop := fs.Bool("nonstop", false, "direct flights only")
	airlines := fs.String("airlines", "", "comma-separated airlines to include")
	exclude := fs.String("exclude", "", "comma-separated airlines to exclude")
	max := fs.Int("max", cfg.MaxResults, "maximum results")
	currency := fs.String("currency", cfg.Currency, "price currency")
	asJSON := fs.Bool("json", false, "JSON output")
	fs.Parse(args)

	if *from == "" || *to == "" || *date == "" {
		return errors.New("search requires -from, -to and -date")
	}

	p, err := openProvider(*providerName, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	offers, err := p.SearchFlights(context.Background(), providers.SearchRequest{
		Origin:          *from,
		Destination:     *to,
		DepartureDate:   *date,
		ReturnDate:      *returnDate,
		Adults:          *adults,
		Cabin:           strings.ToUpper(*cabin),
		NonStop:         *nonStop,
		IncludeAirlines: splitList(*airlines),
		ExcludeAirlines: splitList(*exclude),
		MaxResults:      *max,
		Currency:        strings.ToUpper(*currency),
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return format.JSON(os.Stdout, offers)
	}
	format.Offers(os.Stdout, offers, *returnDate != "")
	return nil
}

func cmdFlight(cfg *config.Config, log *zap.SugaredLogger, args []string) error {
	designator, rest := takeDesignator(args)
	fs := flag.NewFlagSet("flight", flag.ExitOnError)
	providerName := fs.String("provider", "", "provider override")
	date := fs.String("date", "", "departure date YYYY-MM-DD")
	asJSON := fs.Bool("json", false, "JSON output")
	fs.Parse(rest)

	carrier, number, err := parseDesignator(designator)
	if err != nil {
		return err
	}
	if *date == "" {
		return errors.New("flight requires -date")
	}

	p, err := openProvider(*providerName, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	schedules, err := p.GetFlightSchedule(context.Background(), carrier, number, *date)
	if err != nil {
		return err
	}

	if *asJSON {
		return format.JSON(os.Stdout, schedules)
	}
	format.Schedules(os.Stdout, schedules)
	return nil
}

func cmdAvail(cfg *config.Config, log *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("avail", flag.ExitOnError)
	providerName := fs.String("provider", "", "provider override")
	from := fs.String("from", "", "origin airport IATA code")
	to := fs.String("to", "", "destination airport IATA code")
	date := fs.String("date", "", "departure date YYYY-MM-DD")
	depTime := fs.String("time", "", "departure time HH:MM:SS")
	flight := fs.String("flight", "", "filter by flight designator, e.g. EK766")
	asJSON := fs.Bool("json", false, "JSON output")
	fs.Parse(args)

	if *from == "" || *to == "" || *date == "" {
		return errors.New("avail requires -from, -to and -date")
	}

	req := providers.AvailabilityRequest{
		Origin:        *from,
		Destination:   *to,
		DepartureDate: *date,
		DepartureTime: *depTime,
	}
	if *flight != "" {
		carrier, number, err := parseDesignator(*flight)
		if err != nil {
			return err
		}
		req.CarrierCode = carrier
		req.FlightNumber = number
	}

	p, err := openProvider(*providerName, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	avails, err := p.GetFlightAvailability(context.Background(), req)
	if err != nil {
		return err
	}

	if *asJSON {
		return format.JSON(os.Stdout, avails)
	}
	format.Availabilities(os.Stdout, avails)
	return nil
}

func cmdSeats(cfg *config.Config, log *zap.SugaredLogger, args []string) error {
	designator, rest := takeDesignator(args)
	fs := flag.NewFlagSet("seats", flag.ExitOnError)
	providerName := fs.String("provider", "", "provider override")
	date := fs.String("date", "", "departure date YYYY-MM-DD")
	from := fs.String("from", "", "origin airport IATA code")
	to := fs.String("to", "", "destination airport IATA code")
	cabin := fs.String("cabin", "", "filter by cabin class")
	asJSON := fs.Bool("json", false, "JSON output")
	fs.Parse(rest)

	carrier, number, err := parseDesignator(designator)
	if err != nil {
		return err
	}
	if *date == "" || *from == "" || *to == "" {
		return errors.New("seats requires -date, -from and -to")
	}

	p, err := openProvider(*providerName, cfg, log)
	if err != nil {
		return err
	}
	defer p.Close()

	seatMap, err := p.GetSeatMap(context.Background(), carrier, number, *date, *from, *to)
	if err != nil {
		return err
	}

	if *asJSON {
		return format.JSON(os.Stdout, seatMap)
	}
	format.SeatMap(os.Stdout, seatMap, *cabin)
	return nil
}

func cmdAwards(cfg *config.Config, log *zap.SugaredLogger, args []string) error {
	fs := flag.NewFlagSet("awards", flag.ExitOnError)
	from := fs.String("from", "", "origin airport(s), comma-separated")
	to := fs.String("to", "", "destination airport(s), comma-separated")
	date := fs.String("date", "", "start date YYYY-MM-DD")
	endDate := fs.String("end", "", "end date YYYY-MM-DD")
	cabin := fs.String("cabin", "", "cabin letters, comma-separated (Y,W,J,F)")
	sources := fs.String("sources", "", "mileage programs, comma-separated")
	carriers := fs.String("carriers", "", "operating airlines, comma-separated")
	direct := fs.Bool("direct", false, "direct flights only")
	cheapest := fs.Bool("cheapest", false, "order by lowest mileage")
	afford := fs.String("afford", "", "check affordability against this program's balance")
	take := fs.Int("take", 100, "maximum results")
	asJSON := fs.Bool("json", false, "JSON output")
	fs.Parse(args)

	if *from == "" || *to == "" || *date == "" {
		return errors.New("awards requires -from, -to and -date")
	}

	sa, err := providers.NewSeatsAero(cfg)
	if err != nil {
		return err
	}
	defer sa.Close()
	log.Debugw("provider selected", "provider", sa.Name())

	orderBy := ""
	if *cheapest {
		orderBy = "lowest_mileage"
	}
	resp, err := sa.SearchAwards(context.Background(), providers.AwardSearchRequest{
		Origin:      *from,
		Destination: *to,
		StartDate:   *date,
		EndDate:     *endDate,
		Cabins:      splitList(*cabin),
		Sources:     splitList(*sources),
		Carriers:    splitList(*carriers),
		DirectOnly:  *direct,
		OrderBy:     orderBy,
		Take:        *take,
	})
	if err != nil {
		return err
	}

	if *asJSON {
		return format.JSON(os.Stdout, resp)
	}
	format.Awards(os.Stdout, resp)

	if *afford != "" {
		if cost, ok := lowestMileageCost(resp); ok {
			store := balances.NewStore(cfg.BalancesFile)
			check, err := store.CheckAffordability(*afford, cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stdout)
			format.Affordability(os.Stdout, *afford, check)
		}
	}
	return nil
}

// lowestMileageCost finds the cheapest priced award in the response,
// skipping cabins with no cost data.
func lowestMileageCost(resp *providers.AwardSearchResponse) (int, bool) {
	best := 0
	found := false
	for _, r := range resp.Results {
		for _, award := range r.Cabins {
			if !award.Available || award.MileageCost == 0 {
				continue
			}
			if !found || award.MileageCost < best {
				best = award.MileageCost
				found = true
			}
		}
	}
	return best, found
}

func cmdBalance(cfg *config.Config, args []string) error {
	store := balances.NewStore(cfg.BalancesFile)

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
		args = args[1:]
	}

	switch sub {
	case "list":
		entries, keys, err := store.All()
		if err != nil {
			return err
		}
		format.Balances(os.Stdout, entries, keys)
		return nil

	case "set":
		fs := flag.NewFlagSet("balance set", flag.ExitOnError)
		tier := fs.String("tier", "", "status tier")
		note := fs.String("note", "", "note for the history entry")
		if len(args) < 2 {
			return errors.New("usage: balance set <program> <miles> [-tier] [-note]")
		}
		program := args[0]
		miles, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("miles must be a number: %q", args[1])
		}
		fs.Parse(args[2:])

		entry, err := store.Update(program, miles, *tier, *note)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s miles\n", entry.Program, balances.FormatMiles(entry.Miles))
		return nil

	case "check":
		if len(args) < 2 {
			return errors.New("usage: balance check <program> <required-miles>")
		}
		required, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("required miles must be a number: %q", args[1])
		}
		check, err := store.CheckAffordability(args[0], required)
		if err != nil {
			return err
		}
		format.Affordability(os.Stdout, args[0], check)
		return nil

	default:
		return fmt.Errorf("unknown balance subcommand %q (list, set, check)", sub)
	}
}

// takeDesignator pulls a leading positional flight designator off the args.
func takeDesignator(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// parseDesignator splits "EK766" (or "EK 766") into carrier and number.
func parseDesignator(s string) (carrier, number string, err error) {
	s = strings.ToUpper(strings.ReplaceAll(s, " ", ""))
	if len(s) < 3 {
		return "", "", fmt.Errorf("invalid flight number %q, expected e.g. EK766", s)
	}
	return s[:2], s[2:], nil
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

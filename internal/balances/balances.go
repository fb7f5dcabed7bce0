// Package balances tracks user-entered loyalty-program mile balances in a
// local YAML file and answers redemption-affordability questions.
package balances

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// maxHistory bounds the dated entries kept per program.
const maxHistory = 50

// ProgramNames maps mileage-program keys to display names. Keys match the
// award provider's source identifiers.
var ProgramNames = map[string]string{
	"aeroplan":       "Aeroplan",
	"united":         "United MileagePlus",
	"american":       "AAdvantage",
	"alaska":         "Alaska Mileage Plan",
	"delta":          "Delta SkyMiles",
	"virginatlantic": "Virgin Atlantic",
	"aerlingus":      "Aer Lingus Avios",
	"qantas":         "Qantas",
	"velocity":       "Velocity",
	"emirates":       "Emirates Skywards",
	"etihad":         "Etihad Guest",
	"singapore":      "KrisFlyer",
	"lifemiles":      "LifeMiles",
	"smiles":         "Smiles",
	"eurobonus":      "SAS EuroBonus",
	"flyingblue":     "Flying Blue",
	"connectmiles":   "ConnectMiles",
}

// DisplayName returns the human name for a program key, title-casing
// unknown keys instead of failing.
func DisplayName(program string) string {
	key := strings.ToLower(program)
	if name, ok := ProgramNames[key]; ok {
		return name
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

type HistoryEntry struct {
	Date  string `yaml:"date"`
	Miles int    `yaml:"miles"`
	Delta int    `yaml:"delta,omitempty"`
	Note  string `yaml:"note,omitempty"`
}

type Entry struct {
	Program string         `yaml:"program"` // display name
	Miles   int            `yaml:"miles"`
	Updated string         `yaml:"updated"` // YYYY-MM-DD
	Tier    string         `yaml:"tier,omitempty"`
	History []HistoryEntry `yaml:"history,omitempty"`
}

type balancesFile struct {
	Balances map[string]Entry `yaml:"balances"`
}

// Affordability is the outcome of weighing a balance against a redemption.
type Affordability struct {
	Affordable bool   `json:"affordable"`
	Balance    int    `json:"balance"`
	Required   int    `json:"required"`
	Delta      int    `json:"delta"`  // positive = surplus
	Status     string `json:"status"` // ok, close, short
}

// Store reads and updates the balances file. A missing file reads as empty.
type Store struct {
	path string
	now  func() time.Time
}

func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

func (s *Store) load() (balancesFile, error) {
	data := balancesFile{Balances: map[string]Entry{}}
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return data, nil
	}
	if err != nil {
		return data, fmt.Errorf("read balances: %w", err)
	}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return data, fmt.Errorf("parse balances: %w", err)
	}
	if data.Balances == nil {
		data.Balances = map[string]Entry{}
	}
	return data, nil
}

func (s *Store) save(data balancesFile) error {
	raw, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode balances: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write balances: %w", err)
	}
	return nil
}

func (s *Store) Get(program string) (Entry, bool, error) {
	data, err := s.load()
	if err != nil {
		return Entry{}, false, err
	}
	entry, ok := data.Balances[strings.ToLower(program)]
	return entry, ok, nil
}

// All returns every entry keyed by program, sorted keys alongside for
// stable rendering.
func (s *Store) All() (map[string]Entry, []string, error) {
	data, err := s.load()
	if err != nil {
		return nil, nil, err
	}
	keys := make([]string, 0, len(data.Balances))
	for k := range data.Balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return data.Balances, keys, nil
}

// Update sets a program's current miles, appending to its history. History
// keeps the last 50 entries; a delta is recorded only for real changes to
// an existing balance.
func (s *Store) Update(program string, miles int, tier, note string) (Entry, error) {
	data, err := s.load()
	if err != nil {
		return Entry{}, err
	}

	key := strings.ToLower(program)
	today := s.now().Format("2006-01-02")

	entry, ok := data.Balances[key]
	if !ok {
		entry = Entry{Program: DisplayName(key)}
	}

	prev := entry.Miles
	entry.Miles = miles
	entry.Updated = today
	if tier != "" {
		entry.Tier = tier
	}

	h := HistoryEntry{Date: today, Miles: miles}
	if delta := miles - prev; delta != 0 && prev > 0 {
		h.Delta = delta
	}
	if note != "" {
		h.Note = note
	}
	entry.History = append(entry.History, h)
	if len(entry.History) > maxHistory {
		entry.History = entry.History[len(entry.History)-maxHistory:]
	}

	data.Balances[key] = entry
	if err := s.save(data); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// CheckAffordability weighs the stored balance against a required mileage
// cost. Within 10k miles of affording counts as "close".
func (s *Store) CheckAffordability(program string, required int) (Affordability, error) {
	entry, _, err := s.Get(program)
	if err != nil {
		return Affordability{}, err
	}

	delta := entry.Miles - required
	status := "short"
	switch {
	case delta >= 0:
		status = "ok"
	case delta >= -10000:
		status = "close"
	}

	return Affordability{
		Affordable: delta >= 0,
		Balance:    entry.Miles,
		Required:   required,
		Delta:      delta,
		Status:     status,
	}, nil
}

// FormatMiles renders miles with thousands separators.
func FormatMiles(miles int) string {
	s := fmt.Sprintf("%d", miles)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// FormatDelta renders a signed mileage change.
func FormatDelta(delta int) string {
	if delta > 0 {
		return "+" + FormatMiles(delta)
	}
	return FormatMiles(delta)
}

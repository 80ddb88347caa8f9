package renovasjon

import (
	"sort"
	"time"
)

// Address is a single result from the Renovasjonsportal address search
type Address struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Municipality string `json:"municipality"`
}

// Disposal is a single scheduled waste collection
type Disposal struct {
	Date        time.Time `json:"date"`
	Fraction    string    `json:"fraction"`
	SymbolID    int       `json:"symbol_id"`
	Description string    `json:"description,omitempty"`
}

// Snapshot is the result of one successful schedule fetch for an address.
// It is immutable after construction: a refresh replaces the whole snapshot.
type Snapshot struct {
	Address   Address               `json:"address"`
	FetchedAt time.Time             `json:"fetched_at"`
	Disposals map[string][]Disposal `json:"disposals"`
}

// NewSnapshot groups disposals by fraction with dates sorted ascending
func NewSnapshot(address Address, disposals []Disposal, fetchedAt time.Time) *Snapshot {
	byFraction := make(map[string][]Disposal)
	for _, d := range disposals {
		byFraction[d.Fraction] = append(byFraction[d.Fraction], d)
	}
	for fraction := range byFraction {
		ds := byFraction[fraction]
		sort.Slice(ds, func(i, j int) bool { return ds[i].Date.Before(ds[j].Date) })
	}

	return &Snapshot{
		Address:   address,
		FetchedAt: fetchedAt,
		Disposals: byFraction,
	}
}

// Fractions returns the fraction names present in the snapshot, sorted
func (s *Snapshot) Fractions() []string {
	fractions := make([]string, 0, len(s.Disposals))
	for fraction := range s.Disposals {
		fractions = append(fractions, fraction)
	}
	sort.Strings(fractions)
	return fractions
}

// Upcoming returns the disposals for a fraction on or after the given day,
// sorted ascending. Time of day is ignored.
func (s *Snapshot) Upcoming(fraction string, from time.Time) []Disposal {
	day := truncateToDay(from)
	var upcoming []Disposal
	for _, d := range s.Disposals[fraction] {
		if !truncateToDay(d.Date).Before(day) {
			upcoming = append(upcoming, d)
		}
	}
	return upcoming
}

// NextDisposal returns the first upcoming disposal for a fraction, if any
func (s *Snapshot) NextDisposal(fraction string, from time.Time) (Disposal, bool) {
	upcoming := s.Upcoming(fraction, from)
	if len(upcoming) == 0 {
		return Disposal{}, false
	}
	return upcoming[0], true
}

// CollectionOn reports whether a fraction is collected on the given day
func (s *Snapshot) CollectionOn(fraction string, day time.Time) bool {
	target := truncateToDay(day)
	for _, d := range s.Disposals[fraction] {
		if truncateToDay(d.Date).Equal(target) {
			return true
		}
	}
	return false
}

// AllUpcoming returns every upcoming disposal across fractions within the
// range [from, to], sorted by date then fraction for a stable order.
func (s *Snapshot) AllUpcoming(from, to time.Time) []Disposal {
	start := truncateToDay(from)
	end := truncateToDay(to)

	var events []Disposal
	for _, disposals := range s.Disposals {
		for _, d := range disposals {
			day := truncateToDay(d.Date)
			if day.Before(start) || day.After(end) {
				continue
			}
			events = append(events, d)
		}
	}

	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Fraction < events[j].Fraction
	})
	return events
}

// truncateToDay normalizes a time to its calendar date. The components are
// rebuilt in UTC so dates parsed from the portal (UTC midnight) and a local
// wall-clock "now" land on the same instant for the same calendar day.
func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

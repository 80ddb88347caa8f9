package renovasjon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSnapshot() *Snapshot {
	address := Address{ID: "abc-123", Title: "Storgata 1", Municipality: "Trondheim"}
	disposals := []Disposal{
		{Date: day(2026, 9, 15), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 9, 1), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 8, 20), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 9, 3), Fraction: "Matavfall", SymbolID: 1},
	}
	return NewSnapshot(address, disposals, day(2026, 8, 30))
}

func TestSnapshot_UpcomingDropsPastAndSorts(t *testing.T) {
	snapshot := sampleSnapshot()

	upcoming := snapshot.Upcoming("Restavfall", day(2026, 8, 30))
	require.Len(t, upcoming, 2, "past disposal should be dropped")
	assert.Equal(t, day(2026, 9, 1), upcoming[0].Date)
	assert.Equal(t, day(2026, 9, 15), upcoming[1].Date)
}

func TestSnapshot_UpcomingIncludesToday(t *testing.T) {
	snapshot := sampleSnapshot()

	upcoming := snapshot.Upcoming("Restavfall", day(2026, 9, 1).Add(13*time.Hour))
	require.NotEmpty(t, upcoming)
	assert.Equal(t, day(2026, 9, 1), upcoming[0].Date, "a collection later today still counts as upcoming")
}

func TestSnapshot_NextDisposal(t *testing.T) {
	snapshot := sampleSnapshot()

	next, ok := snapshot.NextDisposal("Matavfall", day(2026, 8, 30))
	require.True(t, ok)
	assert.Equal(t, day(2026, 9, 3), next.Date)

	_, ok = snapshot.NextDisposal("Matavfall", day(2026, 9, 4))
	assert.False(t, ok, "no disposal after the last scheduled date")

	_, ok = snapshot.NextDisposal("Papir", day(2026, 8, 30))
	assert.False(t, ok, "unknown fraction has no next disposal")
}

func TestSnapshot_CollectionOn(t *testing.T) {
	snapshot := sampleSnapshot()

	assert.True(t, snapshot.CollectionOn("Restavfall", day(2026, 9, 1).Add(8*time.Hour)))
	assert.False(t, snapshot.CollectionOn("Restavfall", day(2026, 9, 2)))
	assert.False(t, snapshot.CollectionOn("Papir", day(2026, 9, 1)))
}

func TestSnapshot_CollectionOnLocalTimezone(t *testing.T) {
	snapshot := sampleSnapshot()

	// Portal dates are UTC midnight; a wall-clock now in another zone must
	// still match the same calendar day.
	oslo := time.FixedZone("CEST", 2*60*60)
	now := time.Date(2026, 9, 1, 10, 0, 0, 0, oslo)
	assert.True(t, snapshot.CollectionOn("Restavfall", now))

	newYork := time.FixedZone("EDT", -4*60*60)
	now = time.Date(2026, 9, 1, 10, 0, 0, 0, newYork)
	assert.True(t, snapshot.CollectionOn("Restavfall", now))
}

func TestSnapshot_UpcomingKeepsTodayInLocalTimezone(t *testing.T) {
	snapshot := sampleSnapshot()

	for _, zone := range []*time.Location{
		time.FixedZone("CEST", 2*60*60),
		time.FixedZone("EDT", -4*60*60),
	} {
		now := time.Date(2026, 9, 1, 10, 0, 0, 0, zone)
		upcoming := snapshot.Upcoming("Restavfall", now)
		require.NotEmpty(t, upcoming, "zone %v", zone)
		assert.Equal(t, day(2026, 9, 1), upcoming[0].Date, "today's collection stays upcoming in zone %v", zone)
	}
}

func TestSnapshot_AllUpcomingLocalTimezoneBounds(t *testing.T) {
	snapshot := sampleSnapshot()

	newYork := time.FixedZone("EDT", -4*60*60)
	from := time.Date(2026, 9, 1, 10, 0, 0, 0, newYork)
	events := snapshot.AllUpcoming(from, from.AddDate(0, 0, 30))
	require.Len(t, events, 3)
	assert.Equal(t, day(2026, 9, 1), events[0].Date)
}

func TestSnapshot_AllUpcomingStableOrder(t *testing.T) {
	snapshot := sampleSnapshot()

	events := snapshot.AllUpcoming(day(2026, 8, 30), day(2026, 12, 31))
	require.Len(t, events, 3)
	assert.Equal(t, "Restavfall", events[0].Fraction)
	assert.Equal(t, day(2026, 9, 1), events[0].Date)
	assert.Equal(t, "Matavfall", events[1].Fraction)
	assert.Equal(t, day(2026, 9, 15), events[2].Date)

	// Range bounds are inclusive
	bounded := snapshot.AllUpcoming(day(2026, 9, 1), day(2026, 9, 3))
	assert.Len(t, bounded, 2)
}

func TestSnapshot_Fractions(t *testing.T) {
	snapshot := sampleSnapshot()
	assert.Equal(t, []string{"Matavfall", "Restavfall"}, snapshot.Fractions())
}

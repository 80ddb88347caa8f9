package sensor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleSnapshot() *renovasjon.Snapshot {
	address := renovasjon.Address{ID: "a1", Title: "Storgata 1", Municipality: "Trondheim"}
	disposals := []renovasjon.Disposal{
		{Date: day(2026, 8, 20), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 8, 30), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 9, 13), Fraction: "Restavfall", SymbolID: 15},
		{Date: day(2026, 9, 2), Fraction: "Matavfall", SymbolID: 1},
	}
	return renovasjon.NewSnapshot(address, disposals, day(2026, 8, 29))
}

func findEntity(t *testing.T, entities []Entity, id string) Entity {
	t.Helper()
	for _, e := range entities {
		if e.EntityID == id {
			return e
		}
	}
	t.Fatalf("entity %s not found in %d entities", id, len(entities))
	return Entity{}
}

func TestProject_EntityCountAndIDs(t *testing.T) {
	now := day(2026, 8, 30)
	entities := Project(sampleSnapshot(), true, now)

	// One sensor and one binary sensor per fraction
	require.Len(t, entities, 4)
	findEntity(t, entities, "sensor.renovasjon_storgata_1_restavfall")
	findEntity(t, entities, "binary_sensor.renovasjon_storgata_1_restavfall_today")
	findEntity(t, entities, "sensor.renovasjon_storgata_1_matavfall")
	findEntity(t, entities, "binary_sensor.renovasjon_storgata_1_matavfall_today")
}

func TestProject_NextCollectionState(t *testing.T) {
	now := day(2026, 8, 30).Add(10 * time.Hour)
	entities := Project(sampleSnapshot(), true, now)

	rest := findEntity(t, entities, "sensor.renovasjon_storgata_1_restavfall")
	assert.Equal(t, "2026-08-30", rest.State, "a collection today is still the next collection")
	assert.Equal(t, 0, rest.Attributes["days_until"])
	assert.Equal(t, []string{"2026-08-30", "2026-09-13"}, rest.Attributes["upcoming"], "past dates dropped, rest ascending")

	mat := findEntity(t, entities, "sensor.renovasjon_storgata_1_matavfall")
	assert.Equal(t, "2026-09-02", mat.State)
	assert.Equal(t, 3, mat.Attributes["days_until"])
}

func TestProject_CollectionTodayBinarySensor(t *testing.T) {
	now := day(2026, 8, 30)
	entities := Project(sampleSnapshot(), true, now)

	rest := findEntity(t, entities, "binary_sensor.renovasjon_storgata_1_restavfall_today")
	assert.Equal(t, StateOn, rest.State)
	assert.Equal(t, "mdi:calendar-check", rest.Attributes["icon"])

	mat := findEntity(t, entities, "binary_sensor.renovasjon_storgata_1_matavfall_today")
	assert.Equal(t, StateOff, mat.State)
}

func TestProject_CollectionTodayLocalTimezone(t *testing.T) {
	// Portal dates are UTC midnight; the sensor must still turn on for the
	// whole local day regardless of the server's timezone.
	for _, zone := range []*time.Location{
		time.FixedZone("CEST", 2*60*60),
		time.FixedZone("EDT", -4*60*60),
	} {
		now := time.Date(2026, 8, 30, 10, 0, 0, 0, zone)
		entities := Project(sampleSnapshot(), true, now)

		rest := findEntity(t, entities, "binary_sensor.renovasjon_storgata_1_restavfall_today")
		assert.Equal(t, StateOn, rest.State, "zone %v", zone)

		sensor := findEntity(t, entities, "sensor.renovasjon_storgata_1_restavfall")
		assert.Equal(t, "2026-08-30", sensor.State, "today's collection stays next in zone %v", zone)
		assert.Equal(t, 0, sensor.Attributes["days_until"], "zone %v", zone)
	}
}

func TestProject_UnavailableOnFetchFailure(t *testing.T) {
	now := day(2026, 8, 30)
	entities := Project(sampleSnapshot(), false, now)

	require.Len(t, entities, 4, "entity set stays stable during outages")
	for _, e := range entities {
		assert.Equal(t, StateUnavailable, e.State, "entity %s", e.EntityID)
	}
}

func TestProject_NoUpcomingIsUnknown(t *testing.T) {
	now := day(2027, 1, 1)
	entities := Project(sampleSnapshot(), true, now)

	rest := findEntity(t, entities, "sensor.renovasjon_storgata_1_restavfall")
	assert.Equal(t, StateUnknown, rest.State)
	assert.NotContains(t, rest.Attributes, "days_until")
}

func TestProject_NilSnapshot(t *testing.T) {
	assert.Nil(t, Project(nil, true, day(2026, 8, 30)))
}

func TestProject_AttributesCarryFraction(t *testing.T) {
	entities := Project(sampleSnapshot(), true, day(2026, 8, 30))
	for _, e := range entities {
		assert.NotEmpty(t, e.Attributes["fraction"], "entity %s", e.EntityID)
		assert.NotEmpty(t, e.Attributes["friendly_name"], "entity %s", e.EntityID)
	}
}

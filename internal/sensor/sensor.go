// Package sensor projects waste collection snapshots onto the flat entity
// records the home-automation host consumes.
package sensor

import (
	"fmt"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/fraction"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

// Entity states understood by the host platform
const (
	StateOn          = "on"
	StateOff         = "off"
	StateUnknown     = "unknown"
	StateUnavailable = "unavailable"
)

// DateLayout is the state format for next-collection sensors
const DateLayout = "2006-01-02"

// Entity is a flat, host-platform-shaped record of one sensor's state
type Entity struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated time.Time      `json:"last_updated"`
}

// Project renders all entities for one address snapshot. When available is
// false (the last refresh failed) every entity is reported unavailable, but
// the fraction set still comes from the stale snapshot so entity IDs stay
// stable across outages.
func Project(snapshot *renovasjon.Snapshot, available bool, now time.Time) []Entity {
	if snapshot == nil {
		return nil
	}

	addressSlug := fraction.Slugify(snapshot.Address.Title)
	entities := make([]Entity, 0, 2*len(snapshot.Disposals))

	for _, name := range snapshot.Fractions() {
		entities = append(entities,
			nextCollection(snapshot, addressSlug, name, available, now),
			collectionToday(snapshot, addressSlug, name, available, now),
		)
	}

	return entities
}

// nextCollection builds the per-fraction "next collection" sensor
func nextCollection(snapshot *renovasjon.Snapshot, addressSlug, name string, available bool, now time.Time) Entity {
	info := fraction.Lookup(name)

	entity := Entity{
		EntityID: fmt.Sprintf("sensor.renovasjon_%s_%s", addressSlug, info.Slug),
		State:    StateUnavailable,
		Attributes: map[string]any{
			"friendly_name": fmt.Sprintf("%s %s", snapshot.Address.Title, name),
			"fraction":      name,
			"icon":          info.Icon,
			"device_class":  "date",
		},
		LastUpdated: snapshot.FetchedAt,
	}

	if !available {
		return entity
	}

	upcoming := snapshot.Upcoming(name, now)
	if len(upcoming) == 0 {
		entity.State = StateUnknown
		return entity
	}

	next := upcoming[0]
	entity.State = next.Date.Format(DateLayout)
	entity.Attributes["days_until"] = daysBetween(now, next.Date)
	if next.Description != "" {
		entity.Attributes["description"] = next.Description
	}

	dates := make([]string, 0, len(upcoming))
	for _, d := range upcoming {
		dates = append(dates, d.Date.Format(DateLayout))
	}
	entity.Attributes["upcoming"] = dates

	return entity
}

// collectionToday builds the per-fraction "collection today" binary sensor
func collectionToday(snapshot *renovasjon.Snapshot, addressSlug, name string, available bool, now time.Time) Entity {
	info := fraction.Lookup(name)

	entity := Entity{
		EntityID: fmt.Sprintf("binary_sensor.renovasjon_%s_%s_today", addressSlug, info.Slug),
		State:    StateUnavailable,
		Attributes: map[string]any{
			"friendly_name": fmt.Sprintf("%s %s today", snapshot.Address.Title, name),
			"fraction":      name,
			"icon":          info.Icon,
		},
		LastUpdated: snapshot.FetchedAt,
	}

	if !available {
		return entity
	}

	if snapshot.CollectionOn(name, now) {
		entity.State = StateOn
		entity.Attributes["icon"] = "mdi:calendar-check"
	} else {
		entity.State = StateOff
	}

	return entity
}

// daysBetween counts whole calendar days from a to b, ignoring time of day
func daysBetween(a, b time.Time) int {
	dayA := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	dayB := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(dayB.Sub(dayA).Hours() / 24)
}

package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/coordinator"
)

// HomeHandler manages the status page
type HomeHandler struct {
	*BaseHandler
	Coordinator *coordinator.Coordinator
}

// NewHomeHandler creates a new status page handler
func NewHomeHandler(baseHandler *BaseHandler, coord *coordinator.Coordinator) *HomeHandler {
	return &HomeHandler{
		BaseHandler: baseHandler,
		Coordinator: coord,
	}
}

// RegisterRoutes registers the status page route
func (h *HomeHandler) RegisterRoutes() {
	http.HandleFunc("GET /{$}", h.handleHome)
}

// CollectionRow is a single fraction row on the status page
type CollectionRow struct {
	Fraction  string
	Date      time.Time
	DaysUntil int
	Today     bool
}

// AddressView groups the upcoming collections for one configured address
type AddressView struct {
	Title        string
	Municipality string
	Stale        bool
	FetchedAt    time.Time
	Collections  []CollectionRow
}

// HomePageData contains data for the status page template
type HomePageData struct {
	BasePageData
	Addresses      []AddressView
	CalendarID     string
	CalendarName   string
	ErrorMessage   string
	SuccessMessage string
}

// handleHome shows the status page with the next collection per fraction
func (h *HomeHandler) handleHome(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleHome").Logger()
	handlerLogger.Info().Str("method", r.Method).Msg("Handling status page request")

	isAuthenticated := false
	calendarID, calendarName := "", ""
	if h.RuntimeConfig != nil && h.RuntimeConfig.Calendar.Enabled {
		isAuthenticated = h.CheckAuthentication(r.Context(), handlerLogger)
		if id, name, err := h.TokenStore.GetSelectedCalendar(); err == nil {
			calendarID, calendarName = id, name
		}
	}

	data := HomePageData{
		BasePageData:   h.NewBasePageData(r, isAuthenticated),
		Addresses:      h.buildAddressViews(time.Now()),
		CalendarID:     calendarID,
		CalendarName:   calendarName,
		ErrorMessage:   r.URL.Query().Get("error"),
		SuccessMessage: r.URL.Query().Get("success"),
	}

	h.RenderTemplate(w, "home.html", data)
}

func (h *HomeHandler) buildAddressViews(now time.Time) []AddressView {
	results := h.Coordinator.Results()

	views := make([]AddressView, 0, len(results))
	for _, result := range results {
		snapshot := result.Snapshot
		if snapshot == nil {
			continue
		}

		view := AddressView{
			Title:        snapshot.Address.Title,
			Municipality: snapshot.Address.Municipality,
			Stale:        !result.LastSuccess,
			FetchedAt:    snapshot.FetchedAt,
		}
		for _, fraction := range snapshot.Fractions() {
			next, ok := snapshot.NextDisposal(fraction, now)
			if !ok {
				continue
			}
			view.Collections = append(view.Collections, CollectionRow{
				Fraction:  fraction,
				Date:      next.Date,
				DaysUntil: daysUntil(now, next.Date),
				Today:     sameDay(now, next.Date),
			})
		}
		sort.Slice(view.Collections, func(i, j int) bool {
			a, b := view.Collections[i], view.Collections[j]
			if !a.Date.Equal(b.Date) {
				return a.Date.Before(b.Date)
			}
			return a.Fraction < b.Fraction
		})
		views = append(views, view)
	}

	sort.Slice(views, func(i, j int) bool { return views[i].Title < views[j].Title })
	return views
}

func daysUntil(now, date time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

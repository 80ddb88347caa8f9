package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/coordinator"
	"github.com/knornslien/renovasjon-bridge/internal/fraction"
)

// ICSHandler serves per-address iCalendar subscription feeds
type ICSHandler struct {
	*BaseHandler
	Coordinator *coordinator.Coordinator
}

// NewICSHandler creates a new iCalendar feed handler
func NewICSHandler(baseHandler *BaseHandler, coord *coordinator.Coordinator) *ICSHandler {
	return &ICSHandler{
		BaseHandler: baseHandler,
		Coordinator: coord,
	}
}

// RegisterRoutes registers the calendar feed route
func (h *ICSHandler) RegisterRoutes() {
	http.HandleFunc("GET /calendar/{file}", h.handleFeed)
}

// handleFeed writes the upcoming collections for one address as an ICS feed
func (h *ICSHandler) handleFeed(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleFeed").Logger()

	addressID := strings.TrimSuffix(r.PathValue("file"), ".ics")
	result, ok := h.Coordinator.Result(addressID)
	if !ok || result.Snapshot == nil {
		handlerLogger.Debug().Str("address_id", addressID).Msg("No schedule for requested feed")
		http.NotFound(w, r)
		return
	}

	snapshot := result.Snapshot
	lookAhead := 30
	if h.RuntimeConfig != nil && h.RuntimeConfig.Schedule.LookAheadDays > 0 {
		lookAhead = h.RuntimeConfig.Schedule.LookAheadDays
	}
	now := time.Now()
	disposals := snapshot.AllUpcoming(now, now.AddDate(0, 0, lookAhead))

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", addressID+".ics"))

	// RFC 5545 requires CRLF content line delimiters.
	fmt.Fprint(w, "BEGIN:VCALENDAR\r\n")
	fmt.Fprint(w, "VERSION:2.0\r\n")
	fmt.Fprint(w, "PRODID:-//Renovasjon Bridge//Collection Schedule//NO\r\n")
	fmt.Fprint(w, "METHOD:PUBLISH\r\n")
	fmt.Fprintf(w, "X-WR-CALNAME:Avfallshenting %s\r\n", escapeICS(snapshot.Address.Title))
	fmt.Fprint(w, "X-PUBLISHED-TTL:PT6H\r\n")

	stamp := now.UTC().Format("20060102T150405Z")
	for _, d := range disposals {
		// UID must be stable across refreshes so subscribed calendars
		// update in place instead of duplicating events.
		uid := fmt.Sprintf("%s-%s-%s@renovasjon-bridge", addressID, fraction.Slugify(d.Fraction), d.Date.Format("20060102"))

		fmt.Fprint(w, "BEGIN:VEVENT\r\n")
		fmt.Fprintf(w, "UID:%s\r\n", uid)
		fmt.Fprintf(w, "DTSTAMP:%s\r\n", stamp)
		fmt.Fprintf(w, "DTSTART;VALUE=DATE:%s\r\n", d.Date.Format("20060102"))
		fmt.Fprintf(w, "DTEND;VALUE=DATE:%s\r\n", d.Date.AddDate(0, 0, 1).Format("20060102"))
		fmt.Fprintf(w, "SUMMARY:%s\r\n", escapeICS(d.Fraction))
		if d.Description != "" {
			fmt.Fprintf(w, "DESCRIPTION:%s\r\n", escapeICS(d.Description))
		}
		fmt.Fprintf(w, "LOCATION:%s\r\n", escapeICS(snapshot.Address.Title))
		fmt.Fprint(w, "END:VEVENT\r\n")
	}

	fmt.Fprint(w, "END:VCALENDAR\r\n")
	handlerLogger.Debug().Str("address_id", addressID).Int("event_count", len(disposals)).Msg("Served calendar feed")
}

// escapeICS escapes text per RFC 5545 section 3.3.11
func escapeICS(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

package handlers

import (
	"net/http"
	"net/url"

	"github.com/knornslien/renovasjon-bridge/internal/gcal"
	calendar "google.golang.org/api/calendar/v3"
)

// CalendarHandler manages Google Calendar selection
type CalendarHandler struct {
	*BaseHandler
	CalendarService *gcal.Service
}

// NewCalendarHandler creates a new calendar selection handler
func NewCalendarHandler(baseHandler *BaseHandler, service *gcal.Service) *CalendarHandler {
	return &CalendarHandler{
		BaseHandler:     baseHandler,
		CalendarService: service,
	}
}

// RegisterRoutes registers calendar selection routes
func (h *CalendarHandler) RegisterRoutes() {
	http.HandleFunc("GET /calendars", h.handleCalendarList)
	http.HandleFunc("POST /calendars", h.handleCalendarSelection)
}

// CalendarPageData contains data for the calendar selection page
type CalendarPageData struct {
	BasePageData
	Calendars *calendar.CalendarList
	Selected  string
}

// handleCalendarList shows available calendars and allows selection
func (h *CalendarHandler) handleCalendarList(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleCalendarList").Logger()
	handlerLogger.Info().Msg("Handling calendar list request")

	if !h.CalendarService.IsInitialized() {
		if err := h.CalendarService.Initialize(r.Context()); err != nil {
			handlerLogger.Error().Err(err).Msg("Failed to initialize calendar service")
			http.Redirect(w, r, "/?error="+url.QueryEscape(GetErrorMessage(ErrCodeCalendarError)), http.StatusSeeOther)
			return
		}
	}

	calendars, err := h.CalendarService.ListCalendars(r.Context())
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to fetch calendars")

		// A listing failure here usually means the stored token is no
		// longer valid. Clear it so the user can re-authenticate.
		if tokenErr := h.TokenManager.ClearToken(); tokenErr != nil {
			handlerLogger.Error().Err(tokenErr).Msg("Failed to clear token after calendar fetch error")
		}
		http.Redirect(w, r, "/?error="+url.QueryEscape(GetErrorMessage(ErrCodeCalendarError)), http.StatusSeeOther)
		return
	}

	selected, _, err := h.TokenStore.GetSelectedCalendar()
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to get selected calendar")
		http.Error(w, "Failed to get selected calendar", http.StatusInternalServerError)
		return
	}

	data := CalendarPageData{
		BasePageData: h.NewBasePageData(r, true),
		Calendars:    calendars,
		Selected:     selected,
	}
	h.RenderTemplate(w, "calendars.html", data)
}

// handleCalendarSelection processes calendar selection
func (h *CalendarHandler) handleCalendarSelection(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleCalendarSelection").Logger()

	if err := r.ParseForm(); err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to parse form")
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	calendarID := r.FormValue("calendar_id")
	calendarName := r.FormValue("calendar_name")
	if calendarID == "" {
		handlerLogger.Warn().Msg("No calendar_id provided in form")
		http.Error(w, "No calendar selected", http.StatusBadRequest)
		return
	}

	if err := h.CalendarService.SelectCalendar(calendarID, calendarName); err != nil {
		handlerLogger.Error().Err(err).Str("calendar_id", calendarID).Msg("Failed to select calendar")
		http.Redirect(w, r, "/?error="+url.QueryEscape(GetErrorMessage(ErrCodeCalendarError)), http.StatusSeeOther)
		return
	}

	handlerLogger.Info().Str("calendar_id", calendarID).Msg("Calendar selected")
	http.Redirect(w, r, "/?success=Calendar+connected", http.StatusSeeOther)
}

// Package gcal mirrors upcoming waste collections into a Google Calendar.
package gcal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/knornslien/renovasjon-bridge/internal/config"
	"github.com/knornslien/renovasjon-bridge/internal/constants"
	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/fraction"
	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
	"github.com/knornslien/renovasjon-bridge/internal/token"
)

// dateLayout is the all-day event date format used by the Calendar API
const dateLayout = "2006-01-02"

// Service pushes collection events to Google Calendar
type Service struct {
	calendarID   string
	srv          *calendar.Service
	config       *config.Config
	tokenStore   *database.TokenStore
	tokenManager *token.Manager
	initialized  bool
	logger       zerolog.Logger
}

// New creates a calendar service. It doesn't require a valid token; calls
// that need authentication fail until Initialize succeeds.
func New(cfg *config.Config, tokenStore *database.TokenStore, tokenManager *token.Manager) *Service {
	return &Service{
		calendarID:   cfg.Calendar.CalendarID,
		config:       cfg,
		tokenStore:   tokenStore,
		tokenManager: tokenManager,
		logger:       logging.GetLogger("gcal"),
	}
}

// Initialize sets up the authenticated calendar client if a token is available
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info().Msg("Attempting to initialize calendar service...")

	hasToken, err := s.tokenManager.HasToken()
	if err != nil {
		return fmt.Errorf("failed to check token availability: %w", err)
	}
	if !hasToken {
		return fmt.Errorf("no token available - authenticate via the web interface first")
	}

	tok, err := s.tokenManager.GetValidToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get valid token: %w", err)
	}

	client := s.config.OAuth.Client(ctx, tok)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendarID, _, err := s.tokenStore.GetSelectedCalendar()
	if err != nil {
		return fmt.Errorf("failed to get selected calendar: %w", err)
	}
	if calendarID != "" {
		s.calendarID = calendarID
	}

	s.srv = srv
	s.initialized = true
	s.logger.Info().Str("calendar_id", s.calendarID).Msg("Calendar service initialized")
	return nil
}

// IsInitialized returns whether the service holds an authenticated client
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// ListCalendars fetches the calendars available to the authenticated user
func (s *Service) ListCalendars(ctx context.Context) (*calendar.CalendarList, error) {
	tok, err := s.tokenManager.GetValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get valid token: %w", err)
	}

	client := s.config.OAuth.Client(ctx, tok)
	srv, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}

	calendars, err := srv.CalendarList.List().Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch calendars: %w", err)
	}

	return calendars, nil
}

// SelectCalendar stores the sync target calendar
func (s *Service) SelectCalendar(calendarID, calendarName string) error {
	if calendarID == "" {
		return fmt.Errorf("calendar ID cannot be empty")
	}

	if err := s.tokenStore.SaveSelectedCalendar(calendarID, calendarName); err != nil {
		return fmt.Errorf("failed to save calendar selection: %w", err)
	}
	s.calendarID = calendarID
	return nil
}

// SyncSnapshots reconciles the target calendar with the upcoming collections
// from the given snapshots. Events created by this application are marked
// with a private extended property so foreign events are never touched.
func (s *Service) SyncSnapshots(ctx context.Context, snapshots []*renovasjon.Snapshot) error {
	if !s.initialized || s.srv == nil {
		return fmt.Errorf("calendar service not initialized - authentication required")
	}

	now := time.Now()
	end := now.AddDate(0, 0, s.config.Schedule.LookAheadDays)

	wanted := map[string]eventSpec{}
	for _, snapshot := range snapshots {
		for _, d := range snapshot.AllUpcoming(now, end) {
			spec := newEventSpec(snapshot.Address, d)
			wanted[spec.uid] = spec
		}
	}
	s.logger.Info().Int("events_wanted", len(wanted)).Msg("Starting calendar sync")

	existing, err := s.listOwnEvents(ctx, now, end)
	if err != nil {
		return err
	}

	var created, deleted int
	// Delete events that no longer correspond to a scheduled collection
	for uid, ev := range existing {
		if _, ok := wanted[uid]; ok {
			continue
		}
		if err := s.srv.Events.Delete(s.calendarID, ev.Id).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to delete stale event %s: %w", uid, err)
		}
		deleted++
	}

	// Create the missing ones
	for uid, spec := range wanted {
		if _, ok := existing[uid]; ok {
			continue
		}
		if _, err := s.srv.Events.Insert(s.calendarID, spec.toEvent()).Context(ctx).Do(); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", uid, err)
		}
		created++
	}

	s.logger.Info().Int("created", created).Int("deleted", deleted).Msg("Calendar sync completed")
	return nil
}

// listOwnEvents returns this application's events in the range, keyed by uid
func (s *Service) listOwnEvents(ctx context.Context, from, to time.Time) (map[string]*calendar.Event, error) {
	events := map[string]*calendar.Event{}
	pageToken := ""

	for {
		call := s.srv.Events.List(s.calendarID).
			TimeMin(from.Add(-24 * time.Hour).Format(time.RFC3339)).
			TimeMax(to.Add(24 * time.Hour).Format(time.RFC3339)).
			PrivateExtendedProperty("app=" + constants.BridgeIdentifier).
			SingleEvents(true).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		page, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list calendar events: %w", err)
		}

		for _, ev := range page.Items {
			if ev.ExtendedProperties == nil || ev.ExtendedProperties.Private == nil {
				continue
			}
			uid := ev.ExtendedProperties.Private["uid"]
			if uid != "" {
				events[uid] = ev
			}
		}

		if page.NextPageToken == "" {
			return events, nil
		}
		pageToken = page.NextPageToken
	}
}

// eventSpec is the desired state of one collection event
type eventSpec struct {
	uid      string
	date     time.Time
	fraction string
	address  renovasjon.Address
}

func newEventSpec(address renovasjon.Address, d renovasjon.Disposal) eventSpec {
	info := fraction.Lookup(d.Fraction)
	return eventSpec{
		uid:      fmt.Sprintf("%s_%s_%s", address.ID, info.Slug, d.Date.Format(dateLayout)),
		date:     d.Date,
		fraction: d.Fraction,
		address:  address,
	}
}

func (spec eventSpec) toEvent() *calendar.Event {
	return &calendar.Event{
		Summary:      fmt.Sprintf("%s: %s", spec.fraction, spec.address.Title),
		Description:  fmt.Sprintf("Waste collection for %s, %s", spec.address.Title, spec.address.Municipality),
		Start:        &calendar.EventDateTime{Date: spec.date.Format(dateLayout)},
		End:          &calendar.EventDateTime{Date: spec.date.AddDate(0, 0, 1).Format(dateLayout)},
		Transparency: "transparent",
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				"app": constants.BridgeIdentifier,
				"uid": spec.uid,
			},
		},
	}
}

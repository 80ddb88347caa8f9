package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/coordinator"
	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
	"github.com/knornslien/renovasjon-bridge/internal/sensor"
	"github.com/knornslien/renovasjon-bridge/internal/signals"
)

// AddressSearcher looks up addresses in the upstream portal
type AddressSearcher interface {
	SearchAddress(ctx context.Context, query string) ([]renovasjon.Address, error)
}

// APIHandler serves the JSON API consumed by the home-automation host
type APIHandler struct {
	*BaseHandler
	Coordinator   *coordinator.Coordinator
	Searcher      AddressSearcher
	AddressStore  *database.AddressStore
	SnapshotStore *database.SnapshotStore
	SettingsStore *database.SettingsStore
}

// NewAPIHandler creates a new JSON API handler
func NewAPIHandler(baseHandler *BaseHandler, coord *coordinator.Coordinator, searcher AddressSearcher, addressStore *database.AddressStore, snapshotStore *database.SnapshotStore, settingsStore *database.SettingsStore) *APIHandler {
	return &APIHandler{
		BaseHandler:   baseHandler,
		Coordinator:   coord,
		Searcher:      searcher,
		AddressStore:  addressStore,
		SnapshotStore: snapshotStore,
		SettingsStore: settingsStore,
	}
}

// RegisterRoutes registers the JSON API routes
func (h *APIHandler) RegisterRoutes() {
	http.HandleFunc("GET /api/entities", h.handleEntities)
	http.HandleFunc("GET /api/addresses", h.handleListAddresses)
	http.HandleFunc("POST /api/addresses", h.handleAddAddress)
	http.HandleFunc("DELETE /api/addresses/{id}", h.handleRemoveAddress)
	http.HandleFunc("GET /api/search", h.handleSearch)
	http.HandleFunc("POST /api/refresh", h.handleRefresh)
	http.HandleFunc("PUT /api/settings", h.handleUpdateSettings)
	http.HandleFunc("GET /api/diagnostics", h.handleDiagnostics)
}

// handleEntities returns the projected sensor state, optionally scoped to
// one address via the address query parameter
func (h *APIHandler) handleEntities(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleEntities").Logger()

	addressID := r.URL.Query().Get("address")
	now := time.Now()
	var entities []sensor.Entity
	for id, result := range h.Coordinator.Results() {
		if result.Snapshot == nil {
			continue
		}
		if addressID != "" && id != addressID {
			continue
		}
		entities = append(entities, sensor.Project(result.Snapshot, result.LastSuccess, now)...)
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })

	handlerLogger.Debug().Int("entity_count", len(entities)).Msg("Returning entity states")
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"entities": entities})
}

// handleListAddresses returns the configured addresses with their fetch status
func (h *APIHandler) handleListAddresses(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleListAddresses").Logger()

	addresses, err := h.AddressStore.ListAddresses()
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to list addresses")
		h.WriteJSONError(w, http.StatusInternalServerError, ErrCodeUnknown)
		return
	}

	type addressStatus struct {
		renovasjon.Address
		LastSuccess bool   `json:"last_success"`
		LastError   string `json:"last_error,omitempty"`
	}

	results := h.Coordinator.Results()
	out := make([]addressStatus, 0, len(addresses))
	for _, a := range addresses {
		status := addressStatus{Address: a}
		if result, ok := results[a.ID]; ok {
			status.LastSuccess = result.LastSuccess
			status.LastError = result.LastError
		}
		out = append(out, status)
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"addresses": out})
}

// handleAddAddress stores a new address and triggers an initial fetch
func (h *APIHandler) handleAddAddress(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleAddAddress").Logger()

	var address renovasjon.Address
	if err := json.NewDecoder(r.Body).Decode(&address); err != nil {
		handlerLogger.Warn().Err(err).Msg("Invalid address payload")
		h.WriteJSONError(w, http.StatusBadRequest, ErrCodeInvalidRequest)
		return
	}
	if address.ID == "" || address.Title == "" {
		h.WriteJSONError(w, http.StatusBadRequest, ErrCodeInvalidRequest)
		return
	}

	if err := h.AddressStore.SaveAddress(address); err != nil {
		handlerLogger.Error().Err(err).Str("address_id", address.ID).Msg("Failed to save address")
		h.WriteJSONError(w, http.StatusInternalServerError, ErrCodeFailedSaveAddress)
		return
	}

	handlerLogger.Info().Str("address_id", address.ID).Str("title", address.Title).Msg("Address added")
	signals.EmitAddressAdded(r.Context(), address.ID)
	h.WriteJSON(w, http.StatusCreated, map[string]interface{}{"address": address})
}

// handleRemoveAddress deletes an address along with its cached schedule
func (h *APIHandler) handleRemoveAddress(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleRemoveAddress").Logger()

	id := r.PathValue("id")
	removed, err := h.AddressStore.RemoveAddress(id)
	if err != nil {
		handlerLogger.Error().Err(err).Str("address_id", id).Msg("Failed to remove address")
		h.WriteJSONError(w, http.StatusInternalServerError, ErrCodeUnknown)
		return
	}
	if !removed {
		h.WriteJSONError(w, http.StatusNotFound, ErrCodeUnknownAddress)
		return
	}

	handlerLogger.Info().Str("address_id", id).Msg("Address removed")
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "removed"})
}

// handleSearch proxies an address search to the portal
func (h *APIHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleSearch").Logger()

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.WriteJSONError(w, http.StatusBadRequest, ErrCodeMissingQuery)
		return
	}

	results, err := h.Searcher.SearchAddress(r.Context(), query)
	if err != nil {
		var connErr *renovasjon.ConnectionError
		if errors.As(err, &connErr) {
			handlerLogger.Warn().Err(err).Str("query", query).Msg("Portal unreachable during search")
			h.WriteJSONError(w, http.StatusBadGateway, ErrCodeCannotConnect)
			return
		}
		handlerLogger.Error().Err(err).Str("query", query).Msg("Address search failed")
		h.WriteJSONError(w, http.StatusBadGateway, ErrCodeSearchFailed)
		return
	}
	if len(results) == 0 {
		h.WriteJSONError(w, http.StatusNotFound, ErrCodeNoAddressesFound)
		return
	}

	handlerLogger.Debug().Str("query", query).Int("result_count", len(results)).Msg("Search completed")
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// handleRefresh triggers an immediate fetch, either for one address or for all
func (h *APIHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleRefresh").Logger()

	addressID := r.URL.Query().Get("address")
	var err error
	if addressID != "" {
		err = h.Coordinator.Refresh(r.Context(), addressID)
	} else {
		err = h.Coordinator.RefreshAll(r.Context())
	}

	if err != nil {
		if errors.Is(err, coordinator.ErrUnknownAddress) {
			h.WriteJSONError(w, http.StatusNotFound, ErrCodeUnknownAddress)
			return
		}
		handlerLogger.Warn().Err(err).Str("address_id", addressID).Msg("Refresh completed with errors")
		h.WriteJSONError(w, http.StatusBadGateway, ErrCodeRefreshFailed)
		return
	}

	handlerLogger.Info().Str("address_id", addressID).Msg("Manual refresh completed")
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"status": "refreshed"})
}

// settingsRequest is the payload for runtime settings changes
type settingsRequest struct {
	UpdateIntervalHours int `json:"update_interval_hours"`
}

// handleUpdateSettings persists a new update interval and applies it to the
// running refresh loop
func (h *APIHandler) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleUpdateSettings").Logger()

	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteJSONError(w, http.StatusBadRequest, ErrCodeInvalidRequest)
		return
	}

	if err := h.SettingsStore.SaveUpdateInterval(req.UpdateIntervalHours); err != nil {
		handlerLogger.Warn().Err(err).Int("hours", req.UpdateIntervalHours).Msg("Rejected update interval")
		h.WriteJSONError(w, http.StatusBadRequest, ErrCodeInvalidInterval)
		return
	}
	h.Coordinator.SetUpdateInterval(time.Duration(req.UpdateIntervalHours) * time.Hour)

	handlerLogger.Info().Int("hours", req.UpdateIntervalHours).Msg("Update interval changed")
	h.WriteJSON(w, http.StatusOK, map[string]interface{}{"update_interval_hours": req.UpdateIntervalHours})
}

// handleDiagnostics returns internal state for troubleshooting
func (h *APIHandler) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleDiagnostics").Logger()

	type addressDiagnostics struct {
		Address     renovasjon.Address     `json:"address"`
		LastSuccess bool                   `json:"last_success"`
		LastError   string                 `json:"last_error,omitempty"`
		FetchedAt   *time.Time             `json:"fetched_at,omitempty"`
		Fractions   []string               `json:"fractions,omitempty"`
		RecentLog   []database.FetchRecord `json:"recent_fetches,omitempty"`
	}

	addresses, err := h.AddressStore.ListAddresses()
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to list addresses for diagnostics")
		h.WriteJSONError(w, http.StatusInternalServerError, ErrCodeUnknown)
		return
	}

	results := h.Coordinator.Results()
	diag := make([]addressDiagnostics, 0, len(addresses))
	for _, a := range addresses {
		entry := addressDiagnostics{Address: a}
		if result, ok := results[a.ID]; ok {
			entry.LastSuccess = result.LastSuccess
			entry.LastError = result.LastError
			if result.Snapshot != nil {
				fetchedAt := result.Snapshot.FetchedAt
				entry.FetchedAt = &fetchedAt
				entry.Fractions = result.Snapshot.Fractions()
			}
		}
		if log, err := h.SnapshotStore.RecentFetches(a.ID, 10); err == nil {
			entry.RecentLog = log
		}
		diag = append(diag, entry)
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"base_url":              h.RuntimeConfig.API.BaseURL,
		"update_interval_hours": int(h.Coordinator.UpdateInterval().Hours()),
		"refreshing":            h.Coordinator.Refreshing(),
		"calendar_enabled":      h.RuntimeConfig.Calendar.Enabled,
		"addresses":             diag,
	})
}

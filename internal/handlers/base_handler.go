package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/config"
	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/token"
	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templateFS embed.FS

// BaseHandler contains common handler functionality
type BaseHandler struct {
	tmpl          *template.Template
	TokenStore    *database.TokenStore
	TokenManager  *token.Manager
	RuntimeConfig *config.Config
	logger        zerolog.Logger
}

// NewBaseHandler creates a common base handler with shared components
func NewBaseHandler(cfg *config.Config, tokenStore *database.TokenStore, tokenManager *token.Manager) (*BaseHandler, error) {
	logger := logging.GetLogger("base-handler")
	logger.Debug().Msg("Parsing templates")

	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			return t.Format("Mon 2 Jan 2006")
		},
	}

	// Parse only layout.html initially; page templates are parsed into a
	// clone per request so page-level block definitions don't collide.
	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		logger.Error().Err(err).Msg("Failed to parse templates")
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	logger.Debug().Msg("Templates parsed successfully")

	return &BaseHandler{
		tmpl:          tmpl,
		TokenStore:    tokenStore,
		TokenManager:  tokenManager,
		RuntimeConfig: cfg,
		logger:        logger,
	}, nil
}

// RenderTemplate renders a template with the given data
func (h *BaseHandler) RenderTemplate(w http.ResponseWriter, name string, data interface{}) {
	h.logger.Debug().Str("template_name", name).Msg("Executing template")

	tmpl, err := h.tmpl.Clone()
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to clone template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	_, err = tmpl.ParseFS(templateFS, "templates/"+name)
	if err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("Failed to parse page template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "layout.html", data); err != nil {
		h.logger.Error().Err(err).Str("template", name).Msg("Failed to execute template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// WriteJSON writes a JSON response with the given status code
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// errorResponse is the envelope for JSON error responses
type errorResponse struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSONError writes a JSON error response for a known error code
func (h *BaseHandler) WriteJSONError(w http.ResponseWriter, status int, code string) {
	h.WriteJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: GetErrorMessage(code)}})
}

// CheckAuthentication checks if a valid Google token is available
func (h *BaseHandler) CheckAuthentication(ctx context.Context, logger zerolog.Logger) bool {
	if h.TokenManager == nil {
		return false
	}

	hasToken, err := h.TokenManager.HasToken()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to check token existence")
		return false
	}
	if !hasToken {
		logger.Debug().Msg("No token found")
		return false
	}

	tok, err := h.TokenManager.GetValidToken(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to validate token")
		return false
	}
	return tok != nil
}

// BasePageData contains common data for all pages
type BasePageData struct {
	CurrentYear     int
	CurrentPath     string
	IsAuthenticated bool
	CalendarEnabled bool
}

// NewBasePageData creates a new BasePageData with common fields populated
func (h *BaseHandler) NewBasePageData(r *http.Request, isAuthenticated bool) BasePageData {
	return BasePageData{
		CurrentYear:     time.Now().Year(),
		CurrentPath:     r.URL.Path,
		IsAuthenticated: isAuthenticated,
		CalendarEnabled: h.RuntimeConfig != nil && h.RuntimeConfig.Calendar.Enabled,
	}
}

package handlers

import (
	"net/http"
	"net/url"

	"github.com/knornslien/renovasjon-bridge/internal/signals"
)

// OAuthHandler manages the Google OAuth2 flow for calendar sync
type OAuthHandler struct {
	*BaseHandler
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(baseHandler *BaseHandler) *OAuthHandler {
	return &OAuthHandler{BaseHandler: baseHandler}
}

// RegisterRoutes registers the OAuth routes
func (h *OAuthHandler) RegisterRoutes() {
	http.HandleFunc("GET /auth", h.handleAuth)
	http.HandleFunc("GET /oauth/callback", h.handleCallback)
}

// handleAuth initiates the OAuth flow
func (h *OAuthHandler) handleAuth(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleAuth").Logger()

	if h.RuntimeConfig.OAuth == nil {
		handlerLogger.Warn().Msg("OAuth requested but calendar sync is not configured")
		http.Redirect(w, r, "/?error="+url.QueryEscape(GetErrorMessage(ErrCodeAuthRequired)), http.StatusSeeOther)
		return
	}

	consentURL := h.RuntimeConfig.OAuth.AuthCodeURL("state")
	handlerLogger.Info().Msg("Redirecting to Google consent page")
	http.Redirect(w, r, consentURL, http.StatusTemporaryRedirect)
}

// handleCallback processes the OAuth callback and stores the token
func (h *OAuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	handlerLogger := h.logger.With().Str("handler", "handleCallback").Logger()

	code := r.URL.Query().Get("code")
	if code == "" {
		handlerLogger.Warn().Msg("Callback without authorization code")
		http.Redirect(w, r, "/?error=Authorization+was+denied", http.StatusSeeOther)
		return
	}

	token, err := h.RuntimeConfig.OAuth.Exchange(r.Context(), code)
	if err != nil {
		handlerLogger.Error().Err(err).Msg("Token exchange failed")
		signals.EmitTokenSetup(r.Context(), false)
		http.Redirect(w, r, "/?error=Token+exchange+failed", http.StatusSeeOther)
		return
	}

	if err := h.TokenStore.SaveToken(token); err != nil {
		handlerLogger.Error().Err(err).Msg("Failed to save token")
		signals.EmitTokenSetup(r.Context(), false)
		http.Redirect(w, r, "/?error=Failed+to+save+token", http.StatusSeeOther)
		return
	}

	handlerLogger.Info().Msg("Google Calendar connected")
	signals.EmitTokenSetup(r.Context(), true)
	http.Redirect(w, r, "/calendars", http.StatusSeeOther)
}

package token

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/knornslien/renovasjon-bridge/internal/database"
)

// Manager handles OAuth token storage and refreshing
type Manager struct {
	tokenStore  *database.TokenStore
	oauthConfig *oauth2.Config
}

// NewManager creates a new token Manager
func NewManager(tokenStore *database.TokenStore, oauthConfig *oauth2.Config) *Manager {
	return &Manager{
		tokenStore:  tokenStore,
		oauthConfig: oauthConfig,
	}
}

// HasToken reports whether a token has been stored
func (m *Manager) HasToken() (bool, error) {
	token, err := m.tokenStore.GetToken()
	if err != nil {
		return false, fmt.Errorf("failed to check for token: %w", err)
	}
	return token != nil, nil
}

// GetValidToken retrieves a valid token, refreshing it if necessary
func (m *Manager) GetValidToken(ctx context.Context) (*oauth2.Token, error) {
	token, err := m.tokenStore.GetToken()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve token: %w", err)
	}

	if token == nil {
		return nil, fmt.Errorf("no token found")
	}

	if !token.Valid() {
		newToken, err := m.oauthConfig.TokenSource(ctx, token).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to refresh token: %w", err)
		}

		if err := m.tokenStore.SaveToken(newToken); err != nil {
			return nil, fmt.Errorf("failed to save refreshed token: %w", err)
		}

		token = newToken
	}

	return token, nil
}

// ClearToken removes the stored token
func (m *Manager) ClearToken() error {
	if err := m.tokenStore.ClearToken(); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	return nil
}

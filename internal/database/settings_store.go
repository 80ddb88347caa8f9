package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/knornslien/renovasjon-bridge/internal/logging"
)

// SettingsStore holds runtime-adjustable settings. Values stored here win
// over the ones from the config file.
type SettingsStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewSettingsStore creates a new settings store
func NewSettingsStore(db *DB) (*SettingsStore, error) {
	return &SettingsStore{db: db.Conn(), logger: logging.GetLogger("settings-store")}, nil
}

// GetUpdateInterval returns the stored refresh interval in hours.
// Returns 0 when no override has been stored.
func (s *SettingsStore) GetUpdateInterval() (int, error) {
	var hours int
	err := s.db.QueryRow(`
SELECT update_interval_hours FROM settings WHERE id = 1
`).Scan(&hours)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve update interval: %w", err)
	}

	return hours, nil
}

// SaveUpdateInterval stores a refresh interval override in hours
func (s *SettingsStore) SaveUpdateInterval(hours int) error {
	if hours < 1 || hours > 168 {
		return fmt.Errorf("update interval must be between 1 and 168 hours, got %d", hours)
	}

	s.logger.Debug().Int("hours", hours).Msg("Saving update interval")
	_, err := s.db.Exec(`
INSERT INTO settings (id, update_interval_hours, updated_at)
VALUES (1, ?, CURRENT_TIMESTAMP)
ON CONFLICT (id) DO UPDATE SET update_interval_hours = excluded.update_interval_hours, updated_at = CURRENT_TIMESTAMP
`, hours)
	if err != nil {
		return fmt.Errorf("failed to save update interval: %w", err)
	}

	return nil
}

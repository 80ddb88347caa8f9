package database

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

// AddressStore persists the configured addresses in SQLite
type AddressStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewAddressStore creates a new address store
func NewAddressStore(db *DB) (*AddressStore, error) {
	return &AddressStore{db: db.Conn(), logger: logging.GetLogger("address-store")}, nil
}

// ListAddresses returns every configured address, oldest first
func (s *AddressStore) ListAddresses() ([]renovasjon.Address, error) {
	rows, err := s.db.Query(`
SELECT id, title, municipality
FROM addresses
ORDER BY added_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("failed to query addresses: %w", err)
	}
	defer rows.Close()

	var addresses []renovasjon.Address
	for rows.Next() {
		var a renovasjon.Address
		if err := rows.Scan(&a.ID, &a.Title, &a.Municipality); err != nil {
			return nil, fmt.Errorf("failed to scan address row: %w", err)
		}
		addresses = append(addresses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate addresses: %w", err)
	}

	return addresses, nil
}

// GetAddress returns a single configured address. Missing addresses yield
// a nil result, not an error.
func (s *AddressStore) GetAddress(id string) (*renovasjon.Address, error) {
	var a renovasjon.Address
	err := s.db.QueryRow(`
SELECT id, title, municipality
FROM addresses
WHERE id = ?
`, id).Scan(&a.ID, &a.Title, &a.Municipality)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve address: %w", err)
	}

	return &a, nil
}

// SaveAddress inserts or updates a configured address
func (s *AddressStore) SaveAddress(a renovasjon.Address) error {
	if a.ID == "" {
		return fmt.Errorf("address ID cannot be empty")
	}
	if a.Title == "" {
		return fmt.Errorf("address title cannot be empty")
	}

	s.logger.Debug().Str("address_id", a.ID).Str("title", a.Title).Msg("Saving address")
	_, err := s.db.Exec(`
INSERT INTO addresses (id, title, municipality)
VALUES (?, ?, ?)
ON CONFLICT (id) DO UPDATE SET title = excluded.title, municipality = excluded.municipality
`, a.ID, a.Title, a.Municipality)
	if err != nil {
		return fmt.Errorf("failed to save address: %w", err)
	}

	return nil
}

// RemoveAddress deletes a configured address and, through the foreign key,
// its cached snapshot. Removing an unknown address is reported.
func (s *AddressStore) RemoveAddress(id string) (bool, error) {
	s.logger.Debug().Str("address_id", id).Msg("Removing address")
	res, err := s.db.Exec(`DELETE FROM addresses WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to remove address: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check removed rows: %w", err)
	}

	return affected > 0, nil
}

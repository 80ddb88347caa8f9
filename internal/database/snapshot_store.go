package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

// fetchLogRetention caps how many log rows are kept per address
const fetchLogRetention = 50

// SnapshotStore caches the latest successful fetch per address and keeps a
// short fetch log for diagnostics.
type SnapshotStore struct {
	db     *sql.DB
	logger zerolog.Logger
}

// FetchRecord is one row of the fetch log
type FetchRecord struct {
	AddressID string    `json:"address_id"`
	FetchedAt time.Time `json:"fetched_at"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// NewSnapshotStore creates a new snapshot store
func NewSnapshotStore(db *DB) (*SnapshotStore, error) {
	return &SnapshotStore{db: db.Conn(), logger: logging.GetLogger("snapshot-store")}, nil
}

// SaveSnapshot stores the latest snapshot for an address, replacing any
// previous one wholesale.
func (s *SnapshotStore) SaveSnapshot(snapshot *renovasjon.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.Exec(`
INSERT INTO snapshots (address_id, fetched_at, payload)
VALUES (?, ?, ?)
ON CONFLICT (address_id) DO UPDATE SET fetched_at = excluded.fetched_at, payload = excluded.payload
`, snapshot.Address.ID, snapshot.FetchedAt.UTC(), payload)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	s.logger.Debug().Str("address_id", snapshot.Address.ID).Msg("Snapshot saved")
	return nil
}

// LoadSnapshots returns the cached snapshot for every address
func (s *SnapshotStore) LoadSnapshots() ([]*renovasjon.Snapshot, error) {
	rows, err := s.db.Query(`SELECT payload FROM snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []*renovasjon.Snapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}

		var snapshot renovasjon.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			// A corrupt cached snapshot is replaced on the next refresh
			s.logger.Warn().Err(err).Msg("Skipping unreadable cached snapshot")
			continue
		}
		snapshots = append(snapshots, &snapshot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshots: %w", err)
	}

	return snapshots, nil
}

// RecordFetch appends a fetch outcome to the log and trims old entries
func (s *SnapshotStore) RecordFetch(record FetchRecord) error {
	var errText sql.NullString
	if record.Error != "" {
		errText = sql.NullString{String: record.Error, Valid: true}
	}

	_, err := s.db.Exec(`
INSERT INTO fetch_log (address_id, fetched_at, success, error)
VALUES (?, ?, ?, ?)
`, record.AddressID, record.FetchedAt.UTC(), record.Success, errText)
	if err != nil {
		return fmt.Errorf("failed to record fetch: %w", err)
	}

	_, err = s.db.Exec(`
DELETE FROM fetch_log
WHERE address_id = ?
AND id NOT IN (
    SELECT id FROM fetch_log
    WHERE address_id = ?
    ORDER BY fetched_at DESC, id DESC
    LIMIT ?
)
`, record.AddressID, record.AddressID, fetchLogRetention)
	if err != nil {
		return fmt.Errorf("failed to trim fetch log: %w", err)
	}

	return nil
}

// RecentFetches returns the latest fetch outcomes for an address, newest first
func (s *SnapshotStore) RecentFetches(addressID string, limit int) ([]FetchRecord, error) {
	rows, err := s.db.Query(`
SELECT address_id, fetched_at, success, error
FROM fetch_log
WHERE address_id = ?
ORDER BY fetched_at DESC, id DESC
LIMIT ?
`, addressID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fetch log: %w", err)
	}
	defer rows.Close()

	var records []FetchRecord
	for rows.Next() {
		var r FetchRecord
		var errText sql.NullString
		if err := rows.Scan(&r.AddressID, &r.FetchedAt, &r.Success, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan fetch log row: %w", err)
		}
		r.Error = errText.String
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fetch log: %w", err)
	}

	return records, nil
}

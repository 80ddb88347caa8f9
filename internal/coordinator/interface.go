package coordinator

import (
	"context"

	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

// Fetcher retrieves collection schedules from the portal
type Fetcher interface {
	GetDisposals(ctx context.Context, addressID string) ([]renovasjon.Disposal, error)
}

// AddressProvider supplies the configured addresses
type AddressProvider interface {
	ListAddresses() ([]renovasjon.Address, error)
	GetAddress(id string) (*renovasjon.Address, error)
}

// Persister caches snapshots and fetch outcomes between restarts.
// A nil Persister disables caching.
type Persister interface {
	SaveSnapshot(snapshot *renovasjon.Snapshot) error
	LoadSnapshots() ([]*renovasjon.Snapshot, error)
	RecordFetch(record database.FetchRecord) error
}

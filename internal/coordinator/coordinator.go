// Package coordinator owns the periodic schedule refresh and the shared
// snapshot cache the rest of the application reads from.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/logging"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
	"github.com/knornslien/renovasjon-bridge/internal/signals"
)

// ErrUnknownAddress is returned when a refresh targets an address that is
// not configured.
var ErrUnknownAddress = errors.New("unknown address")

// Result is the coordinator's view of one address. Snapshot is the latest
// successful fetch and survives later failures so consumers can keep the
// stale data while reporting unavailability.
type Result struct {
	Snapshot    *renovasjon.Snapshot
	LastSuccess bool
	LastError   string
	UpdatedAt   time.Time
}

// resultSet is replaced wholesale on every refresh cycle
type resultSet map[string]*Result

// Coordinator periodically refreshes the collection schedule for every
// configured address and holds the latest results.
type Coordinator struct {
	fetcher   Fetcher
	addresses AddressProvider
	persister Persister

	results    atomic.Pointer[resultSet]
	interval   atomic.Duration
	refreshing atomic.Bool

	// refreshMu serializes refresh cycles (ticker vs manual refresh)
	refreshMu       sync.Mutex
	intervalChanged chan struct{}

	logger zerolog.Logger
}

// New creates a Coordinator. The persister may be nil, in which case
// snapshots only live in memory.
func New(fetcher Fetcher, addresses AddressProvider, persister Persister, interval time.Duration) *Coordinator {
	c := &Coordinator{
		fetcher:         fetcher,
		addresses:       addresses,
		persister:       persister,
		intervalChanged: make(chan struct{}, 1),
		logger:          logging.GetLogger("coordinator"),
	}
	empty := resultSet{}
	c.results.Store(&empty)
	c.interval.Store(interval)
	return c
}

// LoadCached seeds the result set from persisted snapshots so consumers see
// data before the first refresh completes after a restart.
func (c *Coordinator) LoadCached() error {
	if c.persister == nil {
		return nil
	}

	snapshots, err := c.persister.LoadSnapshots()
	if err != nil {
		return fmt.Errorf("failed to load cached snapshots: %w", err)
	}

	results := resultSet{}
	for _, snapshot := range snapshots {
		results[snapshot.Address.ID] = &Result{
			Snapshot:    snapshot,
			LastSuccess: true,
			UpdatedAt:   snapshot.FetchedAt,
		}
	}
	c.results.Store(&results)

	c.logger.Info().Int("snapshots", len(results)).Msg("Seeded coordinator from cached snapshots")
	return nil
}

// Run drives the periodic refresh until the context is cancelled
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info().Dur("interval", c.interval.Load()).Msg("Starting refresh loop")

	for {
		timer := time.NewTimer(c.interval.Load())
		select {
		case <-ctx.Done():
			timer.Stop()
			c.logger.Info().Msg("Refresh loop stopped")
			return ctx.Err()

		case <-c.intervalChanged:
			timer.Stop()
			c.logger.Info().Dur("interval", c.interval.Load()).Msg("Refresh interval changed, rescheduling")

		case <-timer.C:
			if err := c.RefreshAll(ctx); err != nil {
				c.logger.Error().Err(err).Msg("Scheduled refresh failed")
			}
		}
	}
}

// UpdateInterval returns the current refresh interval
func (c *Coordinator) UpdateInterval() time.Duration {
	return c.interval.Load()
}

// SetUpdateInterval changes the refresh interval. The running loop
// reschedules its next tick.
func (c *Coordinator) SetUpdateInterval(interval time.Duration) {
	c.interval.Store(interval)
	select {
	case c.intervalChanged <- struct{}{}:
	default:
	}
}

// Refreshing reports whether a refresh cycle is currently in flight
func (c *Coordinator) Refreshing() bool {
	return c.refreshing.Load()
}

// RefreshAll fetches the schedule for every configured address. Failures
// are collected per address; one bad address does not block the others.
func (c *Coordinator) RefreshAll(ctx context.Context) error {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	addresses, err := c.addresses.ListAddresses()
	if err != nil {
		return fmt.Errorf("failed to list addresses: %w", err)
	}

	c.logger.Info().Int("addresses", len(addresses)).Msg("Starting refresh cycle")

	previous := *c.results.Load()
	results := resultSet{}
	addressIDs := make([]string, 0, len(addresses))

	var errs *multierror.Error
	for _, address := range addresses {
		addressIDs = append(addressIDs, address.ID)
		result, fetchErr := c.fetchOne(ctx, address, previous[address.ID])
		results[address.ID] = result
		if fetchErr != nil {
			errs = multierror.Append(errs, fmt.Errorf("address %s: %w", address.ID, fetchErr))
		}
	}

	c.results.Store(&results)

	failures := 0
	if errs != nil {
		failures = len(errs.Errors)
	}
	signals.EmitDataUpdated(ctx, addressIDs, failures == 0)

	c.logger.Info().
		Int("addresses", len(addresses)).
		Int("failures", failures).
		Msg("Refresh cycle completed")

	return errs.ErrorOrNil()
}

// Refresh fetches the schedule for a single configured address
func (c *Coordinator) Refresh(ctx context.Context, addressID string) error {
	address, err := c.addresses.GetAddress(addressID)
	if err != nil {
		return fmt.Errorf("failed to look up address: %w", err)
	}
	if address == nil {
		return fmt.Errorf("%w: %s", ErrUnknownAddress, addressID)
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	previous := *c.results.Load()
	result, fetchErr := c.fetchOne(ctx, *address, previous[addressID])

	// Copy-on-write so readers never see a partially updated set
	results := resultSet{}
	for id, r := range previous {
		results[id] = r
	}
	results[addressID] = result
	c.results.Store(&results)

	signals.EmitDataUpdated(ctx, []string{addressID}, fetchErr == nil)
	return fetchErr
}

// fetchOne fetches a single address and folds the outcome into a Result,
// keeping the previous snapshot on failure.
func (c *Coordinator) fetchOne(ctx context.Context, address renovasjon.Address, previous *Result) (*Result, error) {
	now := time.Now()
	disposals, err := c.fetcher.GetDisposals(ctx, address.ID)
	if err != nil {
		c.logger.Warn().Err(err).Str("address_id", address.ID).Msg("Fetch failed, keeping previous snapshot")

		result := &Result{LastSuccess: false, LastError: err.Error(), UpdatedAt: now}
		if previous != nil {
			result.Snapshot = previous.Snapshot
		}
		c.recordFetch(address.ID, now, false, err.Error())
		return result, err
	}

	snapshot := renovasjon.NewSnapshot(address, disposals, now)
	if c.persister != nil {
		if persistErr := c.persister.SaveSnapshot(snapshot); persistErr != nil {
			// Persistence trouble must not fail the refresh itself
			c.logger.Error().Err(persistErr).Str("address_id", address.ID).Msg("Failed to persist snapshot")
		}
	}
	c.recordFetch(address.ID, now, true, "")

	c.logger.Debug().
		Str("address_id", address.ID).
		Int("fractions", len(snapshot.Disposals)).
		Msg("Snapshot refreshed")

	return &Result{Snapshot: snapshot, LastSuccess: true, UpdatedAt: now}, nil
}

func (c *Coordinator) recordFetch(addressID string, at time.Time, success bool, errText string) {
	if c.persister == nil {
		return
	}
	record := database.FetchRecord{AddressID: addressID, FetchedAt: at, Success: success, Error: errText}
	if err := c.persister.RecordFetch(record); err != nil {
		c.logger.Error().Err(err).Str("address_id", addressID).Msg("Failed to record fetch outcome")
	}
}

// Results returns a copy of the current result set keyed by address ID
func (c *Coordinator) Results() map[string]*Result {
	current := *c.results.Load()
	results := make(map[string]*Result, len(current))
	for id, r := range current {
		results[id] = r
	}
	return results
}

// Result returns the current result for one address
func (c *Coordinator) Result(addressID string) (*Result, bool) {
	current := *c.results.Load()
	result, ok := current[addressID]
	return result, ok
}

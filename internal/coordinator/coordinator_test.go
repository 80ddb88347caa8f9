package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeFetcher returns canned disposals or errors per address ID
type fakeFetcher struct {
	mu        sync.Mutex
	disposals map[string][]renovasjon.Disposal
	errs      map[string]error
	calls     int
}

func (f *fakeFetcher) GetDisposals(_ context.Context, addressID string) ([]renovasjon.Disposal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err, ok := f.errs[addressID]; ok {
		return nil, err
	}
	return f.disposals[addressID], nil
}

// fakeAddresses is an in-memory AddressProvider
type fakeAddresses struct {
	addresses []renovasjon.Address
}

func (f *fakeAddresses) ListAddresses() ([]renovasjon.Address, error) {
	return f.addresses, nil
}

func (f *fakeAddresses) GetAddress(id string) (*renovasjon.Address, error) {
	for _, a := range f.addresses {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

// fakePersister records persisted snapshots and fetch log entries
type fakePersister struct {
	mu        sync.Mutex
	snapshots map[string]*renovasjon.Snapshot
	records   []database.FetchRecord
}

func newFakePersister() *fakePersister {
	return &fakePersister{snapshots: map[string]*renovasjon.Snapshot{}}
}

func (f *fakePersister) SaveSnapshot(snapshot *renovasjon.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snapshot.Address.ID] = snapshot
	return nil
}

func (f *fakePersister) LoadSnapshots() ([]*renovasjon.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var snapshots []*renovasjon.Snapshot
	for _, s := range f.snapshots {
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

func (f *fakePersister) RecordFetch(record database.FetchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func testAddresses() *fakeAddresses {
	return &fakeAddresses{addresses: []renovasjon.Address{
		{ID: "a1", Title: "Storgata 1", Municipality: "Trondheim"},
		{ID: "a2", Title: "Kirkegata 5", Municipality: "Orkland"},
	}}
}

func testDisposals() map[string][]renovasjon.Disposal {
	return map[string][]renovasjon.Disposal{
		"a1": {
			{Date: day(2026, 9, 1), Fraction: "Restavfall", SymbolID: 15},
			{Date: day(2026, 9, 3), Fraction: "Matavfall", SymbolID: 1},
		},
		"a2": {
			{Date: day(2026, 9, 8), Fraction: "Papir", SymbolID: 3},
		},
	}
}

func TestRefreshAll_Success(t *testing.T) {
	fetcher := &fakeFetcher{disposals: testDisposals()}
	persister := newFakePersister()
	c := New(fetcher, testAddresses(), persister, time.Hour)

	require.NoError(t, c.RefreshAll(t.Context()))

	results := c.Results()
	require.Len(t, results, 2)
	require.True(t, results["a1"].LastSuccess)
	assert.Equal(t, []string{"Matavfall", "Restavfall"}, results["a1"].Snapshot.Fractions())
	assert.Equal(t, []string{"Papir"}, results["a2"].Snapshot.Fractions())

	// Snapshots were persisted and the fetch log written
	assert.Len(t, persister.snapshots, 2)
	assert.Len(t, persister.records, 2)
}

func TestRefreshAll_PartialFailureKeepsOthers(t *testing.T) {
	fetcher := &fakeFetcher{
		disposals: testDisposals(),
		errs:      map[string]error{"a2": &renovasjon.ConnectionError{Err: errors.New("refused")}},
	}
	c := New(fetcher, testAddresses(), newFakePersister(), time.Hour)

	err := c.RefreshAll(t.Context())
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 1, "only the failing address contributes an error")

	results := c.Results()
	assert.True(t, results["a1"].LastSuccess, "healthy address unaffected by the failing one")
	assert.False(t, results["a2"].LastSuccess)
	assert.Contains(t, results["a2"].LastError, "refused")
}

func TestRefreshAll_FailureKeepsPreviousSnapshot(t *testing.T) {
	fetcher := &fakeFetcher{disposals: testDisposals()}
	c := New(fetcher, testAddresses(), nil, time.Hour)

	require.NoError(t, c.RefreshAll(t.Context()))

	// Second cycle: a1 starts failing
	fetcher.mu.Lock()
	fetcher.errs = map[string]error{"a1": errors.New("boom")}
	fetcher.mu.Unlock()

	err := c.RefreshAll(t.Context())
	require.Error(t, err)

	result, ok := c.Result("a1")
	require.True(t, ok)
	assert.False(t, result.LastSuccess)
	require.NotNil(t, result.Snapshot, "stale snapshot survives the failed refresh")
	assert.Equal(t, []string{"Matavfall", "Restavfall"}, result.Snapshot.Fractions())
}

func TestRefresh_SingleAddress(t *testing.T) {
	fetcher := &fakeFetcher{disposals: testDisposals()}
	c := New(fetcher, testAddresses(), nil, time.Hour)

	require.NoError(t, c.Refresh(t.Context(), "a1"))

	_, ok := c.Result("a1")
	assert.True(t, ok)
	_, ok = c.Result("a2")
	assert.False(t, ok, "untouched address not refreshed")
}

func TestRefresh_UnknownAddress(t *testing.T) {
	fetcher := &fakeFetcher{disposals: testDisposals()}
	c := New(fetcher, testAddresses(), nil, time.Hour)

	err := c.Refresh(t.Context(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAddress)
	assert.Equal(t, 0, fetcher.calls, "no fetch attempted for unknown address")
}

func TestLoadCached(t *testing.T) {
	persister := newFakePersister()
	address := renovasjon.Address{ID: "a1", Title: "Storgata 1", Municipality: "Trondheim"}
	snapshot := renovasjon.NewSnapshot(address, []renovasjon.Disposal{
		{Date: day(2026, 9, 1), Fraction: "Restavfall"},
	}, day(2026, 8, 29))
	require.NoError(t, persister.SaveSnapshot(snapshot))

	c := New(&fakeFetcher{}, testAddresses(), persister, time.Hour)
	require.NoError(t, c.LoadCached())

	result, ok := c.Result("a1")
	require.True(t, ok)
	assert.True(t, result.LastSuccess)
	assert.Equal(t, day(2026, 8, 29), result.UpdatedAt)
}

func TestSetUpdateInterval(t *testing.T) {
	c := New(&fakeFetcher{}, testAddresses(), nil, time.Hour)
	assert.Equal(t, time.Hour, c.UpdateInterval())

	c.SetUpdateInterval(30 * time.Minute)
	assert.Equal(t, 30*time.Minute, c.UpdateInterval())
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	c := New(&fakeFetcher{}, testAddresses(), nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestRefreshAll_RemovedAddressDropsFromResults(t *testing.T) {
	fetcher := &fakeFetcher{disposals: testDisposals()}
	addresses := testAddresses()
	c := New(fetcher, addresses, nil, time.Hour)

	require.NoError(t, c.RefreshAll(t.Context()))
	require.Len(t, c.Results(), 2)

	addresses.addresses = addresses.addresses[:1]
	require.NoError(t, c.RefreshAll(t.Context()))

	results := c.Results()
	assert.Len(t, results, 1, "result set replaced wholesale per cycle")
	_, ok := results["a2"]
	assert.False(t, ok)
}

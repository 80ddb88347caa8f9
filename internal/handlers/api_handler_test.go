package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knornslien/renovasjon-bridge/internal/config"
	"github.com/knornslien/renovasjon-bridge/internal/coordinator"
	"github.com/knornslien/renovasjon-bridge/internal/database"
	"github.com/knornslien/renovasjon-bridge/internal/renovasjon"
	"github.com/knornslien/renovasjon-bridge/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher returns canned disposals per address
type fakeFetcher struct {
	disposals map[string][]renovasjon.Disposal
	err       error
}

func (f *fakeFetcher) GetDisposals(ctx context.Context, addressID string) ([]renovasjon.Disposal, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.disposals[addressID], nil
}

// fakeSearcher returns canned search results
type fakeSearcher struct {
	results []renovasjon.Address
	err     error
}

func (f *fakeSearcher) SearchAddress(ctx context.Context, query string) ([]renovasjon.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type testEnv struct {
	api           *APIHandler
	coordinator   *coordinator.Coordinator
	addressStore  *database.AddressStore
	settingsStore *database.SettingsStore
}

func newTestEnv(t *testing.T, fetcher coordinator.Fetcher, searcher AddressSearcher) *testEnv {
	t.Helper()

	db, err := database.New(database.NewDefaultOptions(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.MigrateDatabase())

	addressStore, err := database.NewAddressStore(db)
	require.NoError(t, err)
	snapshotStore, err := database.NewSnapshotStore(db)
	require.NoError(t, err)
	settingsStore, err := database.NewSettingsStore(db)
	require.NoError(t, err)
	tokenStore, err := database.NewTokenStore(db)
	require.NoError(t, err)

	coord := coordinator.New(fetcher, addressStore, snapshotStore, 12*time.Hour)

	cfg := &config.Config{
		API:      config.APIConfig{BaseURL: "http://example.invalid/api"},
		Schedule: config.ScheduleConfig{UpdateIntervalHours: 12, LookAheadDays: 30},
	}
	base, err := NewBaseHandler(cfg, tokenStore, token.NewManager(tokenStore, nil))
	require.NoError(t, err)

	return &testEnv{
		api:           NewAPIHandler(base, coord, searcher, addressStore, snapshotStore, settingsStore),
		coordinator:   coord,
		addressStore:  addressStore,
		settingsStore: settingsStore,
	}
}

func futureDate(days int) time.Time {
	d := time.Now().AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func TestAPIHandler_Entities(t *testing.T) {
	fetcher := &fakeFetcher{disposals: map[string][]renovasjon.Disposal{
		"addr-1": {
			{Date: futureDate(2), Fraction: "Restavfall"},
			{Date: futureDate(5), Fraction: "Papir"},
		},
	}}
	env := newTestEnv(t, fetcher, &fakeSearcher{})

	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-1", Title: "Storgata 1"}))
	require.NoError(t, env.coordinator.RefreshAll(context.Background()))

	rec := httptest.NewRecorder()
	env.api.handleEntities(rec, httptest.NewRequest(http.MethodGet, "/api/entities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entities []struct {
			EntityID string `json:"entity_id"`
			State    string `json:"state"`
		} `json:"entities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	var ids []string
	for _, e := range body.Entities {
		ids = append(ids, e.EntityID)
	}
	assert.Contains(t, ids, "sensor.renovasjon_storgata_1_restavfall")
	assert.Contains(t, ids, "sensor.renovasjon_storgata_1_papir")
	assert.Contains(t, ids, "binary_sensor.renovasjon_storgata_1_restavfall_today")
}

func TestAPIHandler_EntitiesFilteredByAddress(t *testing.T) {
	fetcher := &fakeFetcher{disposals: map[string][]renovasjon.Disposal{
		"addr-1": {{Date: futureDate(2), Fraction: "Restavfall"}},
		"addr-2": {{Date: futureDate(3), Fraction: "Papir"}},
	}}
	env := newTestEnv(t, fetcher, &fakeSearcher{})
	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-1", Title: "Storgata 1"}))
	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-2", Title: "Lillegata 4"}))
	require.NoError(t, env.coordinator.RefreshAll(context.Background()))

	rec := httptest.NewRecorder()
	env.api.handleEntities(rec, httptest.NewRequest(http.MethodGet, "/api/entities?address=addr-2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "sensor.renovasjon_lillegata_4_papir")
	assert.NotContains(t, body, "storgata_1")
}

func TestAPIHandler_EntitiesEmptyWithoutAddresses(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	rec := httptest.NewRecorder()
	env.api.handleEntities(rec, httptest.NewRequest(http.MethodGet, "/api/entities", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"entities":null}`, rec.Body.String())
}

func TestAPIHandler_AddAddress(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	body := `{"id":"addr-9","title":"Lillegata 4","municipality":"Trondheim"}`
	rec := httptest.NewRecorder()
	env.api.handleAddAddress(rec, httptest.NewRequest(http.MethodPost, "/api/addresses", strings.NewReader(body)))

	require.Equal(t, http.StatusCreated, rec.Code)

	addresses, err := env.addressStore.ListAddresses()
	require.NoError(t, err)
	require.Len(t, addresses, 1)
	assert.Equal(t, "Lillegata 4", addresses[0].Title)
}

func TestAPIHandler_AddAddressRejectsInvalidPayload(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	for _, body := range []string{"not json", `{"title":"missing id"}`, `{"id":"missing-title"}`} {
		rec := httptest.NewRecorder()
		env.api.handleAddAddress(rec, httptest.NewRequest(http.MethodPost, "/api/addresses", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload: %s", body)
	}
}

func TestAPIHandler_RemoveAddress(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})
	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-1", Title: "Storgata 1"}))

	req := httptest.NewRequest(http.MethodDelete, "/api/addresses/addr-1", nil)
	req.SetPathValue("id", "addr-1")
	rec := httptest.NewRecorder()
	env.api.handleRemoveAddress(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	addresses, err := env.addressStore.ListAddresses()
	require.NoError(t, err)
	assert.Empty(t, addresses)
}

func TestAPIHandler_RemoveUnknownAddress(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	req := httptest.NewRequest(http.MethodDelete, "/api/addresses/nope", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()
	env.api.handleRemoveAddress(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeUnknownAddress)
}

func TestAPIHandler_Search(t *testing.T) {
	searcher := &fakeSearcher{results: []renovasjon.Address{
		{ID: "addr-1", Title: "Storgata 1", Municipality: "Oslo"},
	}}
	env := newTestEnv(t, &fakeFetcher{}, searcher)

	rec := httptest.NewRecorder()
	env.api.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=storgata", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Storgata 1")
}

func TestAPIHandler_SearchRequiresQuery(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	rec := httptest.NewRecorder()
	env.api.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeMissingQuery)
}

func TestAPIHandler_SearchNoResults(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	rec := httptest.NewRecorder()
	env.api.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=nowhere", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeNoAddressesFound)
}

func TestAPIHandler_SearchConnectionError(t *testing.T) {
	searcher := &fakeSearcher{err: &renovasjon.ConnectionError{Err: context.DeadlineExceeded}}
	env := newTestEnv(t, &fakeFetcher{}, searcher)

	rec := httptest.NewRecorder()
	env.api.handleSearch(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=storgata", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeCannotConnect)
}

func TestAPIHandler_RefreshSingleAddress(t *testing.T) {
	fetcher := &fakeFetcher{disposals: map[string][]renovasjon.Disposal{
		"addr-1": {{Date: futureDate(1), Fraction: "Restavfall"}},
	}}
	env := newTestEnv(t, fetcher, &fakeSearcher{})
	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-1", Title: "Storgata 1"}))

	rec := httptest.NewRecorder()
	env.api.handleRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/refresh?address=addr-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	result, ok := env.coordinator.Result("addr-1")
	require.True(t, ok)
	assert.True(t, result.LastSuccess)
}

func TestAPIHandler_RefreshUnknownAddress(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	rec := httptest.NewRecorder()
	env.api.handleRefresh(rec, httptest.NewRequest(http.MethodPost, "/api/refresh?address=nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrCodeUnknownAddress)
}

func TestAPIHandler_UpdateSettings(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	body := `{"update_interval_hours":6}`
	rec := httptest.NewRecorder()
	env.api.handleUpdateSettings(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 6*time.Hour, env.coordinator.UpdateInterval())

	stored, err := env.settingsStore.GetUpdateInterval()
	require.NoError(t, err)
	assert.Equal(t, 6, stored)
}

func TestAPIHandler_UpdateSettingsRejectsInvalidInterval(t *testing.T) {
	env := newTestEnv(t, &fakeFetcher{}, &fakeSearcher{})

	for _, body := range []string{`{"update_interval_hours":0}`, `{"update_interval_hours":200}`} {
		rec := httptest.NewRecorder()
		env.api.handleUpdateSettings(rec, httptest.NewRequest(http.MethodPut, "/api/settings", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "payload: %s", body)
	}
	assert.Equal(t, 12*time.Hour, env.coordinator.UpdateInterval())
}

func TestAPIHandler_Diagnostics(t *testing.T) {
	fetcher := &fakeFetcher{disposals: map[string][]renovasjon.Disposal{
		"addr-1": {{Date: futureDate(3), Fraction: "Matavfall"}},
	}}
	env := newTestEnv(t, fetcher, &fakeSearcher{})
	require.NoError(t, env.addressStore.SaveAddress(renovasjon.Address{ID: "addr-1", Title: "Storgata 1"}))
	require.NoError(t, env.coordinator.RefreshAll(context.Background()))

	rec := httptest.NewRecorder()
	env.api.handleDiagnostics(rec, httptest.NewRequest(http.MethodGet, "/api/diagnostics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(12), body["update_interval_hours"])
	assert.Equal(t, false, body["refreshing"])
	assert.Len(t, body["addresses"], 1)
}

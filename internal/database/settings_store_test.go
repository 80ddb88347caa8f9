package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsStore_NoOverrideStored(t *testing.T) {
	db := newTestDB(t)
	store, err := NewSettingsStore(db)
	require.NoError(t, err)

	hours, err := store.GetUpdateInterval()
	require.NoError(t, err)
	assert.Equal(t, 0, hours, "no override stored yet")
}

func TestSettingsStore_SaveAndGet(t *testing.T) {
	db := newTestDB(t)
	store, err := NewSettingsStore(db)
	require.NoError(t, err)

	require.NoError(t, store.SaveUpdateInterval(6))
	hours, err := store.GetUpdateInterval()
	require.NoError(t, err)
	assert.Equal(t, 6, hours)

	require.NoError(t, store.SaveUpdateInterval(24))
	hours, err = store.GetUpdateInterval()
	require.NoError(t, err)
	assert.Equal(t, 24, hours)
}

func TestSettingsStore_RejectsInvalidInterval(t *testing.T) {
	db := newTestDB(t)
	store, err := NewSettingsStore(db)
	require.NoError(t, err)

	assert.Error(t, store.SaveUpdateInterval(0))
	assert.Error(t, store.SaveUpdateInterval(200))
}

package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbot/internal/models"
	"eventbot/internal/storage"
	"eventbot/internal/storage/storagetest"
)

// setupTestDB opens a fresh database file in a temp directory and migrates it
func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err, "Failed to open sqlite database")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Initialize(context.Background()), "Failed to run migrations")
	return db
}

func TestSQLiteDB_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return setupTestDB(t)
	})
}

func TestSQLiteDB_InitializeIsRepeatable(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Initialize(context.Background()))
}

func TestSQLiteDB_NameLookupIgnoresCase(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateEvent(ctx, storagetest.NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	event, err := db.GetEventByName(ctx, "trackday")
	require.NoError(t, err)
	assert.Equal(t, "TrackDay", event.Name)

	_, err = db.CreateEvent(ctx, storagetest.NewEvent("TRACKDAY", "2025-06-02", "09:00"))
	assert.ErrorIs(t, err, models.ErrEventExists)
}

func TestSQLiteDB_EventWithoutLocation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	event := storagetest.NewEvent("Bare", "2025-06-01", "09:00")
	event.LocationName = ""
	event.Coordinates = nil
	event.MinLevel = ""
	id, err := db.CreateEvent(ctx, event)
	require.NoError(t, err)

	got, err := db.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got.Coordinates)
	assert.Empty(t, got.LocationName)
}

func TestSQLiteDB_RegistrationForUnknownEvent(t *testing.T) {
	db := setupTestDB(t)
	err := db.UpsertRegistration(context.Background(), models.Registration{UserID: 1, EventID: 99, ShortName: "x"})
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

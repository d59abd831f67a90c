package mongo

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	mongoTC "github.com/testcontainers/testcontainers-go/modules/mongodb"

	"eventbot/internal/models"
	"eventbot/internal/storage"
	"eventbot/internal/storage/storagetest"
)

// startMongo runs a MongoDB container and returns its connection string
func startMongo(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	container, err := mongoTC.Run(ctx, "mongo:7")
	require.NoError(t, err, "Failed to start MongoDB container")
	t.Cleanup(func() { container.Terminate(ctx) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	return uri
}

var dbSeq atomic.Int64

// openDB connects to a fresh database on the shared container
func openDB(t *testing.T, uri string) *MongoDB {
	ctx := context.Background()
	db, err := NewMongoDB(ctx, uri, fmt.Sprintf("eventbot_test_%d", dbSeq.Add(1)))
	require.NoError(t, err, "Failed to connect to MongoDB")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Initialize(ctx))
	return db
}

func TestMongoDB_Contract(t *testing.T) {
	uri := startMongo(t)
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return openDB(t, uri)
	})
}

func TestMongoDB_InitializeIsRepeatable(t *testing.T) {
	db := openDB(t, startMongo(t))
	assert.NoError(t, db.Initialize(context.Background()))
}

func TestMongoDB_NameLookupIgnoresCase(t *testing.T) {
	db := openDB(t, startMongo(t))
	ctx := context.Background()

	_, err := db.CreateEvent(ctx, storagetest.NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	event, err := db.GetEventByName(ctx, "TRACKDAY")
	require.NoError(t, err)
	assert.Equal(t, "TrackDay", event.Name)

	err = db.UpsertRegistration(ctx, models.Registration{UserID: 1, EventID: 77})
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

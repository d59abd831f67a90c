package ch

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"

	"eventbot/internal/storage/storagetest"
)

func TestMigrate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in short mode")
	}
	ctx := context.Background()

	container, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword("secret"),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://default:secret@%s:%s/default", host, port.Port())
	require.NoError(t, Migrate(ctx, dsn))
	// Already applied migrations are skipped
	require.NoError(t, Migrate(ctx, dsn))

	db, err := NewClickHouseDB(host, port.Int(), "default", "default", "secret", false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	id, err := db.CreateEvent(ctx, storagetest.NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

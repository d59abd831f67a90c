package stubs

import (
	"context"
	"testing"
	"time"

	"eventbot/internal/models"
	"eventbot/internal/storage"
	"eventbot/internal/storage/storagetest"
)

func TestMockDB_Contract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		db := NewMockDB()
		if err := db.Initialize(context.Background()); err != nil {
			t.Fatalf("Failed to initialize database: %v", err)
		}
		return db
	})
}

func TestMockDB_CreateEventDefaults(t *testing.T) {
	db := NewMockDB()
	fixed := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }
	ctx := context.Background()

	// Date with a clock component is truncated to the day
	id, err := db.CreateEvent(ctx, models.Event{
		Name: "TrackDay",
		Date: time.Date(2025, 6, 1, 17, 45, 0, 0, time.UTC),
		Time: "09:00",
	})
	if err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}

	event, err := db.GetEvent(ctx, id)
	if err != nil {
		t.Fatalf("Failed to get event: %v", err)
	}
	if event.Date.Hour() != 0 {
		t.Errorf("Expected date truncated to midnight, got %v", event.Date)
	}
	if !event.CreatedAt.Equal(fixed) {
		t.Errorf("Expected CreatedAt %v, got %v", fixed, event.CreatedAt)
	}
}

func TestMockDB_NameIsCaseInsensitive(t *testing.T) {
	db := NewMockDB()
	ctx := context.Background()

	if _, err := db.CreateEvent(ctx, models.Event{Name: "TrackDay", Time: "09:00"}); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if _, err := db.GetEventByName(ctx, "trackday"); err != nil {
		t.Errorf("Expected lookup by lower-case name to succeed, got %v", err)
	}
	if _, err := db.CreateEvent(ctx, models.Event{Name: "TRACKDAY", Time: "09:00"}); err != models.ErrEventExists {
		t.Errorf("Expected ErrEventExists, got %v", err)
	}
}

func TestMockDB_UpsertUnknownEvent(t *testing.T) {
	db := NewMockDB()
	err := db.UpsertRegistration(context.Background(), models.Registration{UserID: 1, EventID: 5})
	if err != models.ErrEventNotFound {
		t.Errorf("Expected ErrEventNotFound, got %v", err)
	}
}

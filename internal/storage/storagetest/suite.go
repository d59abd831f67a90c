// Package storagetest holds the behaviour every storage.Storage backend must share.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbot/internal/models"
	"eventbot/internal/storage"
)

// Run executes the storage contract against stores produced by newStore.
// newStore must return an empty, initialized store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	t.Run("CreateAndGetEvent", func(t *testing.T) { testCreateAndGetEvent(t, newStore(t)) })
	t.Run("SequentialIDs", func(t *testing.T) { testSequentialIDs(t, newStore(t)) })
	t.Run("DuplicateName", func(t *testing.T) { testDuplicateName(t, newStore(t)) })
	t.Run("PublishEvent", func(t *testing.T) { testPublishEvent(t, newStore(t)) })
	t.Run("ListUpcomingEvents", func(t *testing.T) { testListUpcoming(t, newStore(t)) })
	t.Run("LookupEvent", func(t *testing.T) { testLookupEvent(t, newStore(t)) })
	t.Run("UpsertRegistration", func(t *testing.T) { testUpsertRegistration(t, newStore(t)) })
	t.Run("UpsertIdempotent", func(t *testing.T) { testUpsertIdempotent(t, newStore(t)) })
	t.Run("ListRegistrations", func(t *testing.T) { testListRegistrations(t, newStore(t)) })
	t.Run("IncrementDriveCount", func(t *testing.T) { testIncrementDriveCount(t, newStore(t)) })
	t.Run("DeleteRegistration", func(t *testing.T) { testDeleteRegistration(t, newStore(t)) })
	t.Run("Templates", func(t *testing.T) { testTemplates(t, newStore(t)) })
}

func day(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewEvent returns a publishable test event
func NewEvent(name, date, clock string) models.Event {
	return models.Event{
		Name:         name,
		Date:         day(date),
		Time:         clock,
		LocationName: "Ring",
		Coordinates:  &models.Coordinates{Lat: 50.3356, Lon: 6.9475},
		MinLevel:     "beginner",
	}
}

func testCreateAndGetEvent(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	id, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	event, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "TrackDay", event.Name)
	assert.Equal(t, "2025-06-01", event.DateString())
	assert.Equal(t, "09:00", event.Time)
	assert.Equal(t, "Ring", event.LocationName)
	require.NotNil(t, event.Coordinates)
	assert.Equal(t, 50.3356, event.Coordinates.Lat)
	assert.Equal(t, "beginner", event.MinLevel)
	assert.False(t, event.Published)

	_, err = s.GetEvent(ctx, 999)
	assert.ErrorIs(t, err, models.ErrEventNotFound)

	byName, err := s.GetEventByName(ctx, "TrackDay")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	_, err = s.GetEventByName(ctx, "Nope")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func testSequentialIDs(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	for i, name := range []string{"A", "B", "C"} {
		id, err := s.CreateEvent(ctx, NewEvent(name, "2025-06-01", "09:00"))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), id)
	}
}

func testDuplicateName(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	_, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	_, err = s.CreateEvent(ctx, NewEvent("TrackDay", "2025-07-01", "10:00"))
	assert.ErrorIs(t, err, models.ErrEventExists)
}

func testPublishEvent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	id, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	require.NoError(t, s.PublishEvent(ctx, id))
	event, err := s.GetEvent(ctx, id)
	require.NoError(t, err)
	assert.True(t, event.Published)

	assert.ErrorIs(t, s.PublishEvent(ctx, 42), models.ErrEventNotFound)
}

func testListUpcoming(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)

	fixtures := []struct {
		name, date, clock string
		publish           bool
	}{
		{"past", "2025-05-31", "09:00", true},
		{"today", "2025-06-01", "09:00", true},
		{"later", "2025-07-01", "08:00", true},
		{"soon", "2025-06-10", "18:00", true},
		{"draft", "2025-06-05", "09:00", false},
	}
	for _, f := range fixtures {
		id, err := s.CreateEvent(ctx, NewEvent(f.name, f.date, f.clock))
		require.NoError(t, err)
		if f.publish {
			require.NoError(t, s.PublishEvent(ctx, id))
		}
	}

	events, err := s.ListUpcomingEvents(ctx, now)
	require.NoError(t, err)
	var names []string
	for _, e := range events {
		names = append(names, e.Name)
		assert.False(t, e.Date.Before(models.Day(now)), "event %s precedes now", e.Name)
		assert.True(t, e.Published)
	}
	assert.Equal(t, []string{"today", "soon", "later"}, names)

	all, err := s.ListEvents(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(fixtures))
	assert.Equal(t, "past", all[0].Name)
}

func testLookupEvent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	id, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	byID, err := storage.LookupEvent(ctx, s, "1")
	require.NoError(t, err)
	assert.Equal(t, id, byID.ID)

	byName, err := storage.LookupEvent(ctx, s, "TrackDay")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)

	_, err = storage.LookupEvent(ctx, s, "7")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
	_, err = storage.LookupEvent(ctx, s, "  ")
	assert.ErrorIs(t, err, models.ErrEventNotFound)
}

func newRegistration(userID, eventID int64) models.Registration {
	return models.Registration{
		UserID:          userID,
		EventID:         eventID,
		ShortName:       "Alex",
		Drives:          3,
		SafetyEquipment: "yes",
		CarDetails:      "Civic 2020",
		ConsentAccepted: true,
		RegisteredAt:    time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
	}
}

func testUpsertRegistration(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	_, err = s.GetRegistration(ctx, 100, eventID)
	assert.ErrorIs(t, err, models.ErrRegistrationNotFound)

	reg := newRegistration(100, eventID)
	require.NoError(t, s.UpsertRegistration(ctx, reg))

	reg.ShortName = "Alexandra"
	reg.Drives = 5
	require.NoError(t, s.UpsertRegistration(ctx, reg))

	got, err := s.GetRegistration(ctx, 100, eventID)
	require.NoError(t, err)
	assert.Equal(t, "Alexandra", got.ShortName)
	assert.Equal(t, 5, got.Drives)
	assert.True(t, got.ConsentAccepted)

	count, err := s.CountRegistrations(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testUpsertIdempotent(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)

	reg := newRegistration(100, eventID)
	require.NoError(t, s.UpsertRegistration(ctx, reg))
	first, err := s.GetRegistration(ctx, 100, eventID)
	require.NoError(t, err)

	require.NoError(t, s.UpsertRegistration(ctx, reg))
	second, err := s.GetRegistration(ctx, 100, eventID)
	require.NoError(t, err)

	assert.Equal(t, first.ShortName, second.ShortName)
	assert.Equal(t, first.Drives, second.Drives)
	assert.Equal(t, first.SafetyEquipment, second.SafetyEquipment)
	assert.Equal(t, first.CarDetails, second.CarDetails)
	assert.Equal(t, first.ConsentAccepted, second.ConsentAccepted)
	assert.True(t, first.RegisteredAt.Equal(second.RegisteredAt))

	count, err := s.CountRegistrations(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testListRegistrations(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	e1, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	e2, err := s.CreateEvent(ctx, NewEvent("NightRun", "2025-06-02", "21:00"))
	require.NoError(t, err)

	base := time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)
	for i, uid := range []int64{300, 100, 200} {
		reg := newRegistration(uid, e1)
		reg.RegisteredAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.UpsertRegistration(ctx, reg))
	}
	require.NoError(t, s.UpsertRegistration(ctx, newRegistration(100, e2)))

	regs, err := s.ListRegistrations(ctx, e1)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, int64(300), regs[0].UserID)
	assert.Equal(t, int64(100), regs[1].UserID)
	assert.Equal(t, int64(200), regs[2].UserID)

	count, err := s.CountRegistrations(ctx, e2)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	mine, err := s.ListUserRegistrations(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	none, err := s.ListRegistrations(ctx, 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testIncrementDriveCount(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	require.NoError(t, s.UpsertRegistration(ctx, newRegistration(100, eventID)))

	require.NoError(t, s.IncrementDriveCount(ctx, 100, eventID))
	require.NoError(t, s.IncrementDriveCount(ctx, 100, eventID))

	reg, err := s.GetRegistration(ctx, 100, eventID)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Drives)

	assert.ErrorIs(t, s.IncrementDriveCount(ctx, 999, eventID), models.ErrRegistrationNotFound)
}

func testDeleteRegistration(t *testing.T, s storage.Storage) {
	ctx := context.Background()
	eventID, err := s.CreateEvent(ctx, NewEvent("TrackDay", "2025-06-01", "09:00"))
	require.NoError(t, err)
	require.NoError(t, s.UpsertRegistration(ctx, newRegistration(100, eventID)))
	require.NoError(t, s.UpsertRegistration(ctx, newRegistration(200, eventID)))

	require.NoError(t, s.DeleteRegistration(ctx, 100, eventID))

	_, err = s.GetRegistration(ctx, 100, eventID)
	assert.ErrorIs(t, err, models.ErrRegistrationNotFound)
	count, err := s.CountRegistrations(ctx, eventID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.ErrorIs(t, s.DeleteRegistration(ctx, 100, eventID), models.ErrRegistrationNotFound)

	// Registering again after removal works
	require.NoError(t, s.UpsertRegistration(ctx, newRegistration(100, eventID)))
	_, err = s.GetRegistration(ctx, 100, eventID)
	assert.NoError(t, err)
}

func testTemplates(t *testing.T, s storage.Storage) {
	ctx := context.Background()

	empty, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	event := NewEvent("TrackDay", "2025-06-01", "09:00")
	id, err := s.SaveTemplate(ctx, models.TemplateFrom("ring-morning", event))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	second, err := s.SaveTemplate(ctx, models.TemplateFrom("Evening", NewEvent("Night", "2025-06-02", "21:00")))
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)

	_, err = s.SaveTemplate(ctx, models.TemplateFrom("Ring-Morning", event))
	assert.ErrorIs(t, err, models.ErrTemplateExists)

	tpl, err := s.GetTemplate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "ring-morning", tpl.Name)
	assert.Equal(t, "09:00", tpl.Time)
	assert.Equal(t, "Ring", tpl.LocationName)
	require.NotNil(t, tpl.Coordinates)
	assert.Equal(t, 6.9475, tpl.Coordinates.Lon)
	assert.Equal(t, "beginner", tpl.MinLevel)

	_, err = s.GetTemplate(ctx, 99)
	assert.ErrorIs(t, err, models.ErrTemplateNotFound)

	byRef, err := storage.LookupTemplate(ctx, s, "Evening")
	require.NoError(t, err)
	assert.Equal(t, second, byRef.ID)
	byRef, err = storage.LookupTemplate(ctx, s, "1")
	require.NoError(t, err)
	assert.Equal(t, id, byRef.ID)
	_, err = storage.LookupTemplate(ctx, s, "nope")
	assert.ErrorIs(t, err, models.ErrTemplateNotFound)

	all, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Evening", all[0].Name)
	assert.Equal(t, "ring-morning", all[1].Name)
}

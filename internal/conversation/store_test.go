package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(30 * time.Minute)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	tr := NewTracker(store)
	tr.now = store.now

	_, _, err := tr.Begin(1, 1, FlowRegister, 1)
	require.NoError(t, err)
	_, _, err = tr.Begin(2, 2, FlowRegister, 1)
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	_, err = tr.Advance(2, "Sam")
	require.NoError(t, err)

	now = now.Add(15 * time.Minute)
	_, ok := tr.Current(1)
	assert.False(t, ok, "idle session should have expired")
	_, ok = tr.Current(2)
	assert.True(t, ok, "recently advanced session should survive")

	_, err = tr.Advance(1, "Alex")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestMemoryStore_Sweep(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	store.Put(&Session{UserID: 1, UpdatedAt: now.Add(-2 * time.Minute)})
	store.Put(&Session{UserID: 2, UpdatedAt: now})
	require.Equal(t, 2, store.Len())

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(0)
	store.Put(&Session{UserID: 1, Step: StepShortName})

	s, ok := store.Get(1)
	require.True(t, ok)
	s.Step = StepConsent
	s.Answers = append(s.Answers, Answer{Step: StepShortName, Value: "x"})

	again, ok := store.Get(1)
	require.True(t, ok)
	assert.Equal(t, StepShortName, again.Step)
	assert.Empty(t, again.Answers)
}

func TestMemoryStore_RunStopsOnCancel(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	store.Put(&Session{UserID: 1, UpdatedAt: time.Now().Add(-time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

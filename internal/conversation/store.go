package conversation

import (
	"context"
	"sync"
	"time"
)

// Session is a user's progress through one flow
type Session struct {
	ID        string
	UserID    int64
	ChatID    int64
	Flow      Flow
	Step      Step
	EventID   int64 // event being registered for, zero for event creation
	Answers   Answers
	StartedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) clone() *Session {
	c := *s
	c.Answers = append(Answers(nil), s.Answers...)
	return &c
}

// Store keeps sessions keyed by user ID
type Store interface {
	Get(userID int64) (*Session, bool)
	Put(session *Session)
	Delete(userID int64)
}

// MemoryStore is a process-local Store. Sessions idle for longer than the TTL
// are treated as abandoned. A zero TTL keeps sessions until they are deleted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore creates an empty store
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[int64]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemoryStore) expired(s *Session) bool {
	return m.ttl > 0 && m.now().Sub(s.UpdatedAt) > m.ttl
}

// Get returns a copy of the user's session
func (m *MemoryStore) Get(userID int64) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if m.expired(s) {
		m.mu.Lock()
		if cur, ok := m.sessions[userID]; ok && cur == s {
			delete(m.sessions, userID)
		}
		m.mu.Unlock()
		return nil, false
	}
	return s.clone(), true
}

// Put stores a copy of session, replacing any previous one for the same user
func (m *MemoryStore) Put(session *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = session.clone()
}

// Delete removes the user's session
func (m *MemoryStore) Delete(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of stored sessions, expired ones included
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if m.expired(s) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done
func (m *MemoryStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

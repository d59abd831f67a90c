package stubs

import (
	"context"
	"eventbot/internal/models"
	"sort"
	"strings"
	"sync"
	"time"
)

type regKey struct {
	userID  int64
	eventID int64
}

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu            sync.RWMutex
	nextID        int64
	events        map[int64]models.Event
	registrations map[regKey]models.Registration
	templates     map[int64]models.Template
	nextTplID     int64
	now           func() time.Time
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		events:        make(map[int64]models.Event),
		registrations: make(map[regKey]models.Registration),
		templates:     make(map[int64]models.Template),
		now:           time.Now,
	}
}

// Initialize does nothing for mock DB
func (m *MockDB) Initialize(ctx context.Context) error {
	return nil
}

// CreateEvent stores the event under the next sequential ID
func (m *MockDB) CreateEvent(ctx context.Context, event models.Event) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.events {
		if strings.EqualFold(e.Name, event.Name) {
			return 0, models.ErrEventExists
		}
	}

	m.nextID++
	event.ID = m.nextID
	event.Date = models.Day(event.Date)
	if event.CreatedAt.IsZero() {
		event.CreatedAt = m.now().UTC()
	}
	m.events[event.ID] = event
	return event.ID, nil
}

// PublishEvent sets the published flag
func (m *MockDB) PublishEvent(ctx context.Context, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	event, ok := m.events[eventID]
	if !ok {
		return models.ErrEventNotFound
	}
	event.Published = true
	m.events[eventID] = event
	return nil
}

// GetEvent returns an event by ID
func (m *MockDB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	event, ok := m.events[eventID]
	if !ok {
		return nil, models.ErrEventNotFound
	}
	return &event, nil
}

// GetEventByName returns an event by its unique name (case-insensitive)
func (m *MockDB) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, e := range m.events {
		if strings.EqualFold(e.Name, name) {
			event := e
			return &event, nil
		}
	}
	return nil, models.ErrEventNotFound
}

// ListUpcomingEvents returns published events from now's calendar day onwards
func (m *MockDB) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	today := models.Day(now)
	var events []models.Event
	for _, e := range m.events {
		if e.Published && !e.Date.Before(today) {
			events = append(events, e)
		}
	}
	sortEvents(events)
	return events, nil
}

// ListEvents returns all events ordered by date
func (m *MockDB) ListEvents(ctx context.Context) ([]models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]models.Event, 0, len(m.events))
	for _, e := range m.events {
		events = append(events, e)
	}
	sortEvents(events)
	return events, nil
}

// UpsertRegistration writes or replaces the (user, event) registration
func (m *MockDB) UpsertRegistration(ctx context.Context, reg models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[reg.EventID]; !ok {
		return models.ErrEventNotFound
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = m.now().UTC()
	}
	m.registrations[regKey{reg.UserID, reg.EventID}] = reg
	return nil
}

// GetRegistration returns a single registration
func (m *MockDB) GetRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	reg, ok := m.registrations[regKey{userID, eventID}]
	if !ok {
		return nil, models.ErrRegistrationNotFound
	}
	return &reg, nil
}

// CountRegistrations returns the number of registrations for an event
func (m *MockDB) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for k := range m.registrations {
		if k.eventID == eventID {
			count++
		}
	}
	return count, nil
}

// ListRegistrations returns registrations for an event ordered by registration time
func (m *MockDB) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var regs []models.Registration
	for k, r := range m.registrations {
		if k.eventID == eventID {
			regs = append(regs, r)
		}
	}
	sortRegistrations(regs)
	return regs, nil
}

// ListUserRegistrations returns all registrations of a user
func (m *MockDB) ListUserRegistrations(ctx context.Context, userID int64) ([]models.Registration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var regs []models.Registration
	for k, r := range m.registrations {
		if k.userID == userID {
			regs = append(regs, r)
		}
	}
	sortRegistrations(regs)
	return regs, nil
}

// IncrementDriveCount adds one to the registration's drive tally
func (m *MockDB) IncrementDriveCount(ctx context.Context, userID, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := regKey{userID, eventID}
	reg, ok := m.registrations[key]
	if !ok {
		return models.ErrRegistrationNotFound
	}
	reg.Drives++
	m.registrations[key] = reg
	return nil
}

// DeleteRegistration removes the (user, event) registration
func (m *MockDB) DeleteRegistration(ctx context.Context, userID, eventID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := regKey{userID, eventID}
	if _, ok := m.registrations[key]; !ok {
		return models.ErrRegistrationNotFound
	}
	delete(m.registrations, key)
	return nil
}

// SaveTemplate stores the template under the next sequential ID
func (m *MockDB) SaveTemplate(ctx context.Context, tpl models.Template) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.templates {
		if strings.EqualFold(t.Name, tpl.Name) {
			return 0, models.ErrTemplateExists
		}
	}

	m.nextTplID++
	tpl.ID = m.nextTplID
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = m.now().UTC()
	}
	m.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

// GetTemplate returns a template by ID
func (m *MockDB) GetTemplate(ctx context.Context, templateID int64) (*models.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tpl, ok := m.templates[templateID]
	if !ok {
		return nil, models.ErrTemplateNotFound
	}
	return &tpl, nil
}

// GetTemplateByName returns a template by its unique name (case-insensitive)
func (m *MockDB) GetTemplateByName(ctx context.Context, name string) (*models.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.templates {
		if strings.EqualFold(t.Name, name) {
			tpl := t
			return &tpl, nil
		}
	}
	return nil, models.ErrTemplateNotFound
}

// ListTemplates returns all templates ordered by name
func (m *MockDB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	templates := make([]models.Template, 0, len(m.templates))
	for _, t := range m.templates {
		templates = append(templates, t)
	}
	sort.Slice(templates, func(i, j int) bool {
		a, b := strings.ToLower(templates[i].Name), strings.ToLower(templates[j].Name)
		if a != b {
			return a < b
		}
		return templates[i].ID < templates[j].ID
	})
	return templates, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func sortEvents(events []models.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		if events[i].Time != events[j].Time {
			return events[i].Time < events[j].Time
		}
		return events[i].ID < events[j].ID
	})
}

func sortRegistrations(regs []models.Registration) {
	sort.Slice(regs, func(i, j int) bool {
		if !regs[i].RegisteredAt.Equal(regs[j].RegisteredAt) {
			return regs[i].RegisteredAt.Before(regs[j].RegisteredAt)
		}
		if regs[i].EventID != regs[j].EventID {
			return regs[i].EventID < regs[j].EventID
		}
		return regs[i].UserID < regs[j].UserID
	})
}

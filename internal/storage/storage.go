package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"eventbot/internal/models"
)

// Storage defines the interface for event and registration persistence
type Storage interface {
	// Event operations

	// CreateEvent assigns the next sequential ID and persists the event.
	// Returns models.ErrEventExists if the name is already taken.
	CreateEvent(ctx context.Context, event models.Event) (int64, error)
	PublishEvent(ctx context.Context, eventID int64) error
	GetEvent(ctx context.Context, eventID int64) (*models.Event, error)
	GetEventByName(ctx context.Context, name string) (*models.Event, error)

	// ListUpcomingEvents returns published events dated on or after now's
	// calendar day, ordered by date, time and ID
	ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)

	// Registration operations

	// UpsertRegistration writes the (user, event) row, replacing any previous answers
	UpsertRegistration(ctx context.Context, reg models.Registration) error
	GetRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error)
	CountRegistrations(ctx context.Context, eventID int64) (int, error)
	ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error)
	ListUserRegistrations(ctx context.Context, userID int64) ([]models.Registration, error)
	IncrementDriveCount(ctx context.Context, userID, eventID int64) error
	// DeleteRegistration returns models.ErrRegistrationNotFound if there is nothing to remove
	DeleteRegistration(ctx context.Context, userID, eventID int64) error

	// Template operations

	// SaveTemplate assigns the next sequential ID.
	// Returns models.ErrTemplateExists if the name is already taken.
	SaveTemplate(ctx context.Context, tpl models.Template) (int64, error)
	GetTemplate(ctx context.Context, templateID int64) (*models.Template, error)
	GetTemplateByName(ctx context.Context, name string) (*models.Template, error)
	ListTemplates(ctx context.Context) ([]models.Template, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// LookupEvent resolves ref as a numeric event ID first and falls back to the event name
func LookupEvent(ctx context.Context, s Storage, ref string) (*models.Event, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, models.ErrEventNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		event, err := s.GetEvent(ctx, id)
		if err == nil {
			return event, nil
		}
		if !errors.Is(err, models.ErrEventNotFound) {
			return nil, err
		}
	}
	return s.GetEventByName(ctx, ref)
}

// LookupTemplate resolves ref as a numeric template ID first and falls back to the template name
func LookupTemplate(ctx context.Context, s Storage, ref string) (*models.Template, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, models.ErrTemplateNotFound
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		tpl, err := s.GetTemplate(ctx, id)
		if err == nil {
			return tpl, nil
		}
		if !errors.Is(err, models.ErrTemplateNotFound) {
			return nil, err
		}
	}
	return s.GetTemplateByName(ctx, ref)
}

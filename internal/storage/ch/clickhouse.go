package ch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"eventbot/internal/models"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB keeps events and registrations in ReplacingMergeTree tables.
// Every mutation inserts a new row version; reads use FINAL.
type ClickHouseDB struct {
	conn clickhouse.Conn
	// ClickHouse has no autoincrement or unique constraints, so ID assignment
	// and name checks are serialized within this process.
	writeMu sync.Mutex
	now     func() time.Time
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are created by cmd/migrate from migrations/clickhouse
	return nil
}

const eventColumns = `id, name, date, time, location_name, location_coordinates, min_level, published, created_at`

func (db *ClickHouseDB) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var (
			event  models.Event
			coords string
		)
		if err := rows.Scan(&event.ID, &event.Name, &event.Date, &event.Time, &event.LocationName,
			&coords, &event.MinLevel, &event.Published, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.Date = models.Day(event.Date)
		if event.Coordinates, err = models.ParseCoordinates(coords); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (db *ClickHouseDB) insertEvent(ctx context.Context, event models.Event) error {
	return db.conn.Exec(ctx, `INSERT INTO events (`+eventColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Name,
		models.Day(event.Date),
		event.Time,
		event.LocationName,
		event.Coordinates.String(),
		event.MinLevel,
		event.Published,
		event.CreatedAt,
		db.now().UTC(),
	)
}

// CreateEvent assigns max(id)+1 and inserts the event
func (db *ClickHouseDB) CreateEvent(ctx context.Context, event models.Event) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.GetEventByName(ctx, event.Name); err == nil {
		return 0, models.ErrEventExists
	} else if !errors.Is(err, models.ErrEventNotFound) {
		return 0, err
	}

	var maxID int64
	if err := db.conn.QueryRow(ctx, `SELECT max(id) FROM events FINAL`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read last event id: %w", err)
	}

	event.ID = maxID + 1
	if event.CreatedAt.IsZero() {
		event.CreatedAt = db.now().UTC()
	}
	if err := db.insertEvent(ctx, event); err != nil {
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	return event.ID, nil
}

// PublishEvent inserts a new version of the event with the published flag set
func (db *ClickHouseDB) PublishEvent(ctx context.Context, eventID int64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	event, err := db.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	event.Published = true
	if err := db.insertEvent(ctx, *event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// GetEvent returns an event by ID
func (db *ClickHouseDB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	events, err := db.queryEvents(ctx, `SELECT `+eventColumns+` FROM events FINAL WHERE id = ?`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	if len(events) == 0 {
		return nil, models.ErrEventNotFound
	}
	return &events[0], nil
}

// GetEventByName returns an event by its unique name (case-insensitive)
func (db *ClickHouseDB) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	events, err := db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events FINAL WHERE lower(name) = ? LIMIT 1`,
		strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get event by name: %w", err)
	}
	if len(events) == 0 {
		return nil, models.ErrEventNotFound
	}
	return &events[0], nil
}

// ListUpcomingEvents returns published events from now's calendar day onwards
func (db *ClickHouseDB) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	events, err := db.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events FINAL WHERE published = true AND date >= toDate(?) ORDER BY date, time, id`,
		models.Day(now).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// ListEvents returns all events ordered by date
func (db *ClickHouseDB) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := db.queryEvents(ctx, `SELECT `+eventColumns+` FROM events FINAL ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

const registrationColumns = `user_id, event_id, shortname, drives, safety_equipment, car_details, consent_accepted, registered_at`

func (db *ClickHouseDB) queryRegistrations(ctx context.Context, query string, args ...any) ([]models.Registration, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		var (
			reg    models.Registration
			drives int64
		)
		if err := rows.Scan(&reg.UserID, &reg.EventID, &reg.ShortName, &drives,
			&reg.SafetyEquipment, &reg.CarDetails, &reg.ConsentAccepted, &reg.RegisteredAt); err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		reg.Drives = int(drives)
		regs = append(regs, reg)
	}
	return regs, rows.Err()
}

func (db *ClickHouseDB) insertRegistration(ctx context.Context, reg models.Registration) error {
	return db.conn.Exec(ctx, `INSERT INTO registrations (`+registrationColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reg.UserID,
		reg.EventID,
		reg.ShortName,
		int64(reg.Drives),
		reg.SafetyEquipment,
		reg.CarDetails,
		reg.ConsentAccepted,
		reg.RegisteredAt,
		db.now().UTC(),
	)
}

// UpsertRegistration inserts a new row version for the (user, event) key
func (db *ClickHouseDB) UpsertRegistration(ctx context.Context, reg models.Registration) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.GetEvent(ctx, reg.EventID); err != nil {
		return err
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = db.now().UTC()
	}
	if err := db.insertRegistration(ctx, reg); err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

// GetRegistration returns a single registration
func (db *ClickHouseDB) GetRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	regs, err := db.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations FINAL WHERE user_id = ? AND event_id = ?`,
		userID, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	if len(regs) == 0 {
		return nil, models.ErrRegistrationNotFound
	}
	return &regs[0], nil
}

// CountRegistrations returns the number of registrations for an event
func (db *ClickHouseDB) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	var count uint64
	err := db.conn.QueryRow(ctx, `SELECT count() FROM registrations FINAL WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return int(count), nil
}

// ListRegistrations returns registrations for an event ordered by registration time
func (db *ClickHouseDB) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs, err := db.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations FINAL WHERE event_id = ? ORDER BY registered_at, user_id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

// ListUserRegistrations returns all registrations of a user
func (db *ClickHouseDB) ListUserRegistrations(ctx context.Context, userID int64) ([]models.Registration, error) {
	regs, err := db.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations FINAL WHERE user_id = ? ORDER BY registered_at, event_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user registrations: %w", err)
	}
	return regs, nil
}

// IncrementDriveCount inserts a new row version with drives+1
func (db *ClickHouseDB) IncrementDriveCount(ctx context.Context, userID, eventID int64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	reg, err := db.GetRegistration(ctx, userID, eventID)
	if err != nil {
		return err
	}
	reg.Drives++
	if err := db.insertRegistration(ctx, *reg); err != nil {
		return fmt.Errorf("failed to increment drive count: %w", err)
	}
	return nil
}

// DeleteRegistration removes the (user, event) row with a lightweight delete
func (db *ClickHouseDB) DeleteRegistration(ctx context.Context, userID, eventID int64) error {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.GetRegistration(ctx, userID, eventID); err != nil {
		return err
	}
	err := db.conn.Exec(ctx, `DELETE FROM registrations WHERE user_id = ? AND event_id = ?`, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return nil
}

const templateColumns = `id, name, time, location_name, location_coordinates, min_level, created_at`

func (db *ClickHouseDB) queryTemplates(ctx context.Context, query string, args ...any) ([]models.Template, error) {
	rows, err := db.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var (
			tpl    models.Template
			coords string
		)
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Time, &tpl.LocationName,
			&coords, &tpl.MinLevel, &tpl.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		if tpl.Coordinates, err = models.ParseCoordinates(coords); err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// SaveTemplate assigns max(id)+1 and inserts the template
func (db *ClickHouseDB) SaveTemplate(ctx context.Context, tpl models.Template) (int64, error) {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if _, err := db.GetTemplateByName(ctx, tpl.Name); err == nil {
		return 0, models.ErrTemplateExists
	} else if !errors.Is(err, models.ErrTemplateNotFound) {
		return 0, err
	}

	var maxID int64
	if err := db.conn.QueryRow(ctx, `SELECT max(id) FROM templates FINAL`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to read last template id: %w", err)
	}

	tpl.ID = maxID + 1
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = db.now().UTC()
	}
	err := db.conn.Exec(ctx, `INSERT INTO templates (`+templateColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID,
		tpl.Name,
		tpl.Time,
		tpl.LocationName,
		tpl.Coordinates.String(),
		tpl.MinLevel,
		tpl.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save template: %w", err)
	}
	return tpl.ID, nil
}

// GetTemplate returns a template by ID
func (db *ClickHouseDB) GetTemplate(ctx context.Context, templateID int64) (*models.Template, error) {
	templates, err := db.queryTemplates(ctx, `SELECT `+templateColumns+` FROM templates FINAL WHERE id = ?`, templateID)
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	if len(templates) == 0 {
		return nil, models.ErrTemplateNotFound
	}
	return &templates[0], nil
}

// GetTemplateByName returns a template by its unique name (case-insensitive)
func (db *ClickHouseDB) GetTemplateByName(ctx context.Context, name string) (*models.Template, error) {
	templates, err := db.queryTemplates(ctx,
		`SELECT `+templateColumns+` FROM templates FINAL WHERE lower(name) = ? LIMIT 1`,
		strings.ToLower(name))
	if err != nil {
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}
	if len(templates) == 0 {
		return nil, models.ErrTemplateNotFound
	}
	return &templates[0], nil
}

// ListTemplates returns all templates ordered by name
func (db *ClickHouseDB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	templates, err := db.queryTemplates(ctx, `SELECT `+templateColumns+` FROM templates FINAL ORDER BY lower(name), id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"eventbot/internal/models"
	"eventbot/migrations"
)

// SQLiteDB stores events and registrations in a relational table pair
type SQLiteDB struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteDB opens the database file at path
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// A single writer avoids "database is locked" under concurrent webhook updates
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return &SQLiteDB{db: db, now: time.Now}, nil
}

// Initialize applies the embedded goose migrations
func (s *SQLiteDB) Initialize(ctx context.Context) error {
	goose.SetBaseFS(migrations.SQLite)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, "sqlite"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

const eventColumns = `id, name, date, time, location_name, location_coordinates, min_level, published, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*models.Event, error) {
	var (
		event              models.Event
		date, coords, made string
	)
	err := row.Scan(&event.ID, &event.Name, &date, &event.Time, &event.LocationName,
		&coords, &event.MinLevel, &event.Published, &made)
	if err != nil {
		return nil, err
	}
	if event.Date, err = time.Parse(models.DateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid stored date %q: %w", date, err)
	}
	if event.Coordinates, err = models.ParseCoordinates(coords); err != nil {
		return nil, err
	}
	if event.CreatedAt, err = time.Parse(time.RFC3339Nano, made); err != nil {
		return nil, fmt.Errorf("invalid stored created_at %q: %w", made, err)
	}
	return &event, nil
}

func (s *SQLiteDB) queryEvents(ctx context.Context, query string, args ...any) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *event)
	}
	return events, rows.Err()
}

// CreateEvent inserts a new event and returns its autoincrement ID
func (s *SQLiteDB) CreateEvent(ctx context.Context, event models.Event) (int64, error) {
	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (name, date, time, location_name, location_coordinates, min_level, published, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.Name,
		event.DateString(),
		event.Time,
		event.LocationName,
		event.Coordinates.String(),
		event.MinLevel,
		event.Published,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, models.ErrEventExists
		}
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	return res.LastInsertId()
}

// PublishEvent sets the published flag
func (s *SQLiteDB) PublishEvent(ctx context.Context, eventID int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE events SET published = 1 WHERE id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

// GetEvent returns an event by ID
func (s *SQLiteDB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, eventID)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return event, nil
}

// GetEventByName returns an event by its unique name
func (s *SQLiteDB) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE name = ?`, name)
	event, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event by name: %w", err)
	}
	return event, nil
}

// ListUpcomingEvents returns published events from now's calendar day onwards
func (s *SQLiteDB) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	events, err := s.queryEvents(ctx,
		`SELECT `+eventColumns+` FROM events WHERE published = 1 AND date >= ? ORDER BY date, time, id`,
		models.Day(now).Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// ListEvents returns all events ordered by date
func (s *SQLiteDB) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY date, time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

const registrationColumns = `user_id, event_id, shortname, drives, safety_equipment, car_details, consent_accepted, registered_at`

func scanRegistration(row rowScanner) (*models.Registration, error) {
	var (
		reg models.Registration
		at  string
	)
	err := row.Scan(&reg.UserID, &reg.EventID, &reg.ShortName, &reg.Drives,
		&reg.SafetyEquipment, &reg.CarDetails, &reg.ConsentAccepted, &at)
	if err != nil {
		return nil, err
	}
	if reg.RegisteredAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return nil, fmt.Errorf("invalid stored registered_at %q: %w", at, err)
	}
	return &reg, nil
}

func (s *SQLiteDB) queryRegistrations(ctx context.Context, query string, args ...any) ([]models.Registration, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regs []models.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// UpsertRegistration writes or replaces the (user, event) registration
func (s *SQLiteDB) UpsertRegistration(ctx context.Context, reg models.Registration) error {
	at := reg.RegisteredAt
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, event_id) DO UPDATE SET
			shortname = excluded.shortname,
			drives = excluded.drives,
			safety_equipment = excluded.safety_equipment,
			car_details = excluded.car_details,
			consent_accepted = excluded.consent_accepted,
			registered_at = excluded.registered_at`,
		reg.UserID, reg.EventID, reg.ShortName, reg.Drives, reg.SafetyEquipment,
		reg.CarDetails, reg.ConsentAccepted, at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.ErrEventNotFound
		}
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

// GetRegistration returns a single registration
func (s *SQLiteDB) GetRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = ? AND event_id = ?`,
		userID, eventID)
	reg, err := scanRegistration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// CountRegistrations returns the number of registrations for an event
func (s *SQLiteDB) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = ?`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}

// ListRegistrations returns registrations for an event ordered by registration time
func (s *SQLiteDB) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs, err := s.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = ? ORDER BY registered_at, user_id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

// ListUserRegistrations returns all registrations of a user
func (s *SQLiteDB) ListUserRegistrations(ctx context.Context, userID int64) ([]models.Registration, error) {
	regs, err := s.queryRegistrations(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = ? ORDER BY registered_at, event_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user registrations: %w", err)
	}
	return regs, nil
}

// IncrementDriveCount adds one to the registration's drive tally
func (s *SQLiteDB) IncrementDriveCount(ctx context.Context, userID, eventID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registrations SET drives = drives + 1 WHERE user_id = ? AND event_id = ?`,
		userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to increment drive count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrRegistrationNotFound
	}
	return nil
}

// DeleteRegistration removes the (user, event) registration
func (s *SQLiteDB) DeleteRegistration(ctx context.Context, userID, eventID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM registrations WHERE user_id = ? AND event_id = ?`, userID, eventID)
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrRegistrationNotFound
	}
	return nil
}

const templateColumns = `id, name, time, location_name, location_coordinates, min_level, created_at`

func scanTemplate(row rowScanner) (*models.Template, error) {
	var (
		tpl          models.Template
		coords, made string
	)
	err := row.Scan(&tpl.ID, &tpl.Name, &tpl.Time, &tpl.LocationName, &coords, &tpl.MinLevel, &made)
	if err != nil {
		return nil, err
	}
	if tpl.Coordinates, err = models.ParseCoordinates(coords); err != nil {
		return nil, err
	}
	if tpl.CreatedAt, err = time.Parse(time.RFC3339Nano, made); err != nil {
		return nil, fmt.Errorf("invalid stored created_at %q: %w", made, err)
	}
	return &tpl, nil
}

// SaveTemplate inserts a new template and returns its autoincrement ID
func (s *SQLiteDB) SaveTemplate(ctx context.Context, tpl models.Template) (int64, error) {
	createdAt := tpl.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO templates (name, time, location_name, location_coordinates, min_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tpl.Name,
		tpl.Time,
		tpl.LocationName,
		tpl.Coordinates.String(),
		tpl.MinLevel,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, models.ErrTemplateExists
		}
		return 0, fmt.Errorf("failed to save template: %w", err)
	}
	return res.LastInsertId()
}

// GetTemplate returns a template by ID
func (s *SQLiteDB) GetTemplate(ctx context.Context, templateID int64) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, templateID)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return tpl, nil
}

// GetTemplateByName returns a template by its unique name
func (s *SQLiteDB) GetTemplateByName(ctx context.Context, name string) (*models.Template, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE name = ?`, name)
	tpl, err := scanTemplate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template by name: %w", err)
	}
	return tpl, nil
}

// ListTemplates returns all templates ordered by name
func (s *SQLiteDB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template: %w", err)
		}
		templates = append(templates, *tpl)
	}
	return templates, rows.Err()
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

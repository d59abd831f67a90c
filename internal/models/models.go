package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts used for event schedule fields
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Event represents a scheduled drive
type Event struct {
	ID           int64
	Name         string
	Date         time.Time // calendar day, UTC midnight
	Time         string    // HH:MM
	LocationName string
	Coordinates  *Coordinates
	MinLevel     string
	Published    bool
	CreatedAt    time.Time
}

// Registration is a member's signup for an event, keyed by (UserID, EventID)
type Registration struct {
	UserID          int64
	EventID         int64
	ShortName       string
	Drives          int
	SafetyEquipment string
	CarDetails      string
	ConsentAccepted bool
	RegisteredAt    time.Time
}

// Template is a reusable event blueprint without a name or date
type Template struct {
	ID           int64
	Name         string
	Time         string
	LocationName string
	Coordinates  *Coordinates
	MinLevel     string
	CreatedAt    time.Time
}

// TemplateFrom captures the reusable fields of event under name
func TemplateFrom(name string, event Event) Template {
	return Template{
		Name:         name,
		Time:         event.Time,
		LocationName: event.LocationName,
		Coordinates:  event.Coordinates,
		MinLevel:     event.MinLevel,
	}
}

// Event instantiates the template for a named event on date
func (t Template) Event(name string, date time.Time) Event {
	return Event{
		Name:         name,
		Date:         Day(date),
		Time:         t.Time,
		LocationName: t.LocationName,
		Coordinates:  t.Coordinates,
		MinLevel:     t.MinLevel,
	}
}

// Coordinates is a latitude/longitude pair
type Coordinates struct {
	Lat float64
	Lon float64
}

// String formats coordinates as "lat,lon"
func (c *Coordinates) String() string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// ParseCoordinates parses "lat,lon". An empty string yields nil.
func ParseCoordinates(s string) (*Coordinates, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("coordinates must be lat,lon: %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %q", s)
	}
	return &Coordinates{Lat: lat, Lon: lon}, nil
}

// DateString returns the event date as YYYY-MM-DD
func (e Event) DateString() string {
	return e.Date.Format(DateLayout)
}

// Day truncates t to its calendar day in UTC
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

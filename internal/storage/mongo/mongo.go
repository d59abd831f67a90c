package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"eventbot/internal/models"
)

const (
	eventsCollection        = "events"
	registrationsCollection = "registrations"
	countersCollection      = "counters"
	templatesCollection     = "templates"
)

type eventDoc struct {
	EventID      int64     `bson:"event_id"`
	Name         string    `bson:"name"`
	NameKey      string    `bson:"name_key"`
	Date         string    `bson:"date"`
	Time         string    `bson:"time"`
	LocationName string    `bson:"location"`
	Coordinates  string    `bson:"location_coordinates"`
	MinLevel     string    `bson:"min_level"`
	Published    bool      `bson:"published"`
	CreatedAt    time.Time `bson:"created_at"`
}

type registrationDoc struct {
	UserID          int64     `bson:"user_id"`
	EventID         int64     `bson:"event_id"`
	ShortName       string    `bson:"shortname"`
	Drives          int       `bson:"drives"`
	SafetyEquipment string    `bson:"safety_equipment"`
	CarDetails      string    `bson:"car_details"`
	ConsentAccepted bool      `bson:"consent_accepted"`
	RegisteredAt    time.Time `bson:"registered_at"`
}

type templateDoc struct {
	TemplateID   int64     `bson:"template_id"`
	Name         string    `bson:"template_name"`
	NameKey      string    `bson:"name_key"`
	Time         string    `bson:"time"`
	LocationName string    `bson:"location"`
	Coordinates  string    `bson:"location_coordinates"`
	MinLevel     string    `bson:"min_level"`
	CreatedAt    time.Time `bson:"created_at"`
}

// MongoDB stores events, registrations and templates as documents
type MongoDB struct {
	client        *mongo.Client
	events        *mongo.Collection
	registrations *mongo.Collection
	templates     *mongo.Collection
	counters      *mongo.Collection
	now           func() time.Time
}

// NewMongoDB connects to uri and uses the given database
func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(database)
	return &MongoDB{
		client:        client,
		events:        db.Collection(eventsCollection),
		registrations: db.Collection(registrationsCollection),
		templates:     db.Collection(templatesCollection),
		counters:      db.Collection(countersCollection),
		now:           time.Now,
	}, nil
}

// Initialize creates the unique indexes
func (m *MongoDB) Initialize(ctx context.Context) error {
	_, err := m.events.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "date", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create event indexes: %w", err)
	}

	_, err = m.registrations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create registration indexes: %w", err)
	}

	_, err = m.templates.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "template_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "name_key", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create template indexes: %w", err)
	}
	return nil
}

func toEvent(doc eventDoc) (models.Event, error) {
	date, err := time.Parse(models.DateLayout, doc.Date)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid stored date %q: %w", doc.Date, err)
	}
	coords, err := models.ParseCoordinates(doc.Coordinates)
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{
		ID:           doc.EventID,
		Name:         doc.Name,
		Date:         date,
		Time:         doc.Time,
		LocationName: doc.LocationName,
		Coordinates:  coords,
		MinLevel:     doc.MinLevel,
		Published:    doc.Published,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

func toRegistration(doc registrationDoc) models.Registration {
	return models.Registration(doc)
}

// nextID atomically increments the counter for collection
func (m *MongoDB) nextID(ctx context.Context, collection string) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": collection},
		bson.M{"$inc": bson.M{"seq": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Seq, nil
}

// CreateEvent assigns the next counter value and inserts the event document
func (m *MongoDB) CreateEvent(ctx context.Context, event models.Event) (int64, error) {
	if _, err := m.GetEventByName(ctx, event.Name); err == nil {
		return 0, models.ErrEventExists
	} else if !errors.Is(err, models.ErrEventNotFound) {
		return 0, err
	}

	id, err := m.nextID(ctx, eventsCollection)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate event id: %w", err)
	}

	createdAt := event.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now().UTC()
	}
	_, err = m.events.InsertOne(ctx, eventDoc{
		EventID:      id,
		Name:         event.Name,
		NameKey:      strings.ToLower(event.Name),
		Date:         event.DateString(),
		Time:         event.Time,
		LocationName: event.LocationName,
		Coordinates:  event.Coordinates.String(),
		MinLevel:     event.MinLevel,
		Published:    event.Published,
		CreatedAt:    createdAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, models.ErrEventExists
		}
		return 0, fmt.Errorf("failed to create event: %w", err)
	}
	return id, nil
}

// PublishEvent sets the published flag
func (m *MongoDB) PublishEvent(ctx context.Context, eventID int64) error {
	res, err := m.events.UpdateOne(ctx,
		bson.M{"event_id": eventID},
		bson.M{"$set": bson.M{"published": true}})
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrEventNotFound
	}
	return nil
}

func (m *MongoDB) findEvent(ctx context.Context, filter bson.M) (*models.Event, error) {
	var doc eventDoc
	err := m.events.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	event, err := toEvent(doc)
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEvent returns an event by ID
func (m *MongoDB) GetEvent(ctx context.Context, eventID int64) (*models.Event, error) {
	return m.findEvent(ctx, bson.M{"event_id": eventID})
}

// GetEventByName returns an event by its unique name (case-insensitive)
func (m *MongoDB) GetEventByName(ctx context.Context, name string) (*models.Event, error) {
	return m.findEvent(ctx, bson.M{"name_key": strings.ToLower(name)})
}

var eventOrder = bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}, {Key: "event_id", Value: 1}}

func (m *MongoDB) findEvents(ctx context.Context, filter bson.M) ([]models.Event, error) {
	cursor, err := m.events.Find(ctx, filter, options.Find().SetSort(eventOrder))
	if err != nil {
		return nil, err
	}
	var docs []eventDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	events := make([]models.Event, 0, len(docs))
	for _, doc := range docs {
		event, err := toEvent(doc)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, nil
}

// ListUpcomingEvents returns published events from now's calendar day onwards.
// Dates are stored as YYYY-MM-DD so string comparison follows calendar order.
func (m *MongoDB) ListUpcomingEvents(ctx context.Context, now time.Time) ([]models.Event, error) {
	events, err := m.findEvents(ctx, bson.M{
		"published": true,
		"date":      bson.M{"$gte": models.Day(now).Format(models.DateLayout)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// ListEvents returns all events ordered by date
func (m *MongoDB) ListEvents(ctx context.Context) ([]models.Event, error) {
	events, err := m.findEvents(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// UpsertRegistration replaces the (user, event) document, inserting it if missing
func (m *MongoDB) UpsertRegistration(ctx context.Context, reg models.Registration) error {
	if _, err := m.GetEvent(ctx, reg.EventID); err != nil {
		return err
	}
	if reg.RegisteredAt.IsZero() {
		reg.RegisteredAt = m.now().UTC()
	}
	_, err := m.registrations.ReplaceOne(ctx,
		bson.M{"user_id": reg.UserID, "event_id": reg.EventID},
		registrationDoc(reg),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert registration: %w", err)
	}
	return nil
}

// GetRegistration returns a single registration
func (m *MongoDB) GetRegistration(ctx context.Context, userID, eventID int64) (*models.Registration, error) {
	var doc registrationDoc
	err := m.registrations.FindOne(ctx, bson.M{"user_id": userID, "event_id": eventID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	reg := toRegistration(doc)
	return &reg, nil
}

// CountRegistrations returns the number of registrations for an event
func (m *MongoDB) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	n, err := m.registrations.CountDocuments(ctx, bson.M{"event_id": eventID})
	if err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return int(n), nil
}

func (m *MongoDB) findRegistrations(ctx context.Context, filter bson.M, sort bson.D) ([]models.Registration, error) {
	cursor, err := m.registrations.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	var docs []registrationDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	regs := make([]models.Registration, 0, len(docs))
	for _, doc := range docs {
		regs = append(regs, toRegistration(doc))
	}
	return regs, nil
}

// ListRegistrations returns registrations for an event ordered by registration time
func (m *MongoDB) ListRegistrations(ctx context.Context, eventID int64) ([]models.Registration, error) {
	regs, err := m.findRegistrations(ctx, bson.M{"event_id": eventID},
		bson.D{{Key: "registered_at", Value: 1}, {Key: "user_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	return regs, nil
}

// ListUserRegistrations returns all registrations of a user
func (m *MongoDB) ListUserRegistrations(ctx context.Context, userID int64) ([]models.Registration, error) {
	regs, err := m.findRegistrations(ctx, bson.M{"user_id": userID},
		bson.D{{Key: "registered_at", Value: 1}, {Key: "event_id", Value: 1}})
	if err != nil {
		return nil, fmt.Errorf("failed to list user registrations: %w", err)
	}
	return regs, nil
}

// IncrementDriveCount adds one to the registration's drive tally
func (m *MongoDB) IncrementDriveCount(ctx context.Context, userID, eventID int64) error {
	res, err := m.registrations.UpdateOne(ctx,
		bson.M{"user_id": userID, "event_id": eventID},
		bson.M{"$inc": bson.M{"drives": 1}})
	if err != nil {
		return fmt.Errorf("failed to increment drive count: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrRegistrationNotFound
	}
	return nil
}

// DeleteRegistration removes the (user, event) document
func (m *MongoDB) DeleteRegistration(ctx context.Context, userID, eventID int64) error {
	res, err := m.registrations.DeleteOne(ctx, bson.M{"user_id": userID, "event_id": eventID})
	if err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrRegistrationNotFound
	}
	return nil
}

func toTemplate(doc templateDoc) (models.Template, error) {
	coords, err := models.ParseCoordinates(doc.Coordinates)
	if err != nil {
		return models.Template{}, err
	}
	return models.Template{
		ID:           doc.TemplateID,
		Name:         doc.Name,
		Time:         doc.Time,
		LocationName: doc.LocationName,
		Coordinates:  coords,
		MinLevel:     doc.MinLevel,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// SaveTemplate assigns the next counter value and inserts the template document
func (m *MongoDB) SaveTemplate(ctx context.Context, tpl models.Template) (int64, error) {
	if _, err := m.GetTemplateByName(ctx, tpl.Name); err == nil {
		return 0, models.ErrTemplateExists
	} else if !errors.Is(err, models.ErrTemplateNotFound) {
		return 0, err
	}

	id, err := m.nextID(ctx, templatesCollection)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate template id: %w", err)
	}

	createdAt := tpl.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now().UTC()
	}
	_, err = m.templates.InsertOne(ctx, templateDoc{
		TemplateID:   id,
		Name:         tpl.Name,
		NameKey:      strings.ToLower(tpl.Name),
		Time:         tpl.Time,
		LocationName: tpl.LocationName,
		Coordinates:  tpl.Coordinates.String(),
		MinLevel:     tpl.MinLevel,
		CreatedAt:    createdAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return 0, models.ErrTemplateExists
		}
		return 0, fmt.Errorf("failed to save template: %w", err)
	}
	return id, nil
}

func (m *MongoDB) findTemplate(ctx context.Context, filter bson.M) (*models.Template, error) {
	var doc templateDoc
	err := m.templates.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	tpl, err := toTemplate(doc)
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

// GetTemplate returns a template by ID
func (m *MongoDB) GetTemplate(ctx context.Context, templateID int64) (*models.Template, error) {
	return m.findTemplate(ctx, bson.M{"template_id": templateID})
}

// GetTemplateByName returns a template by its unique name (case-insensitive)
func (m *MongoDB) GetTemplateByName(ctx context.Context, name string) (*models.Template, error) {
	return m.findTemplate(ctx, bson.M{"name_key": strings.ToLower(name)})
}

// ListTemplates returns all templates ordered by name
func (m *MongoDB) ListTemplates(ctx context.Context) ([]models.Template, error) {
	cursor, err := m.templates.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "name_key", Value: 1}, {Key: "template_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	var docs []templateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	templates := make([]models.Template, 0, len(docs))
	for _, doc := range docs {
		tpl, err := toTemplate(doc)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tpl)
	}
	return templates, nil
}

// Close disconnects the client
func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

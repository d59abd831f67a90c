package bot

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventbot/internal/conversation"
	"eventbot/internal/models"
	"eventbot/internal/storage"
	"eventbot/internal/survey"
)

func send(b *Bot, userID int64, texts ...string) {
	for _, text := range texts {
		b.handleMessage(context.Background(), userMessage(userID, text))
	}
}

func createTrackDay(t *testing.T, b *Bot) {
	t.Helper()
	send(b, testAdminID, "/create_event", "TrackDay", "2025-06-01", "09:00", "-", "-", "-", "publish")
}

func TestBot_TrackDayScenario(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	ctx := context.Background()

	createTrackDay(t, b)
	assert.Contains(t, api.lastText(), "Event 'TrackDay' scheduled for 2025-06-01 at 09:00 created successfully!")

	event, err := db.GetEventByName(ctx, "TrackDay")
	require.NoError(t, err)
	assert.True(t, event.Published)
	assert.Nil(t, event.Coordinates)

	userID := int64(42)
	send(b, userID, "/register TrackDay")
	assert.Contains(t, api.lastText(), "Please provide your shortname")

	send(b, userID, "Alex", "3", "yes", "Civic 2020", "yes")

	reg, err := db.GetRegistration(ctx, userID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alex", reg.ShortName)
	assert.Equal(t, 3, reg.Drives)
	assert.Equal(t, "yes", reg.SafetyEquipment)
	assert.Equal(t, "Civic 2020", reg.CarDetails)
	assert.True(t, reg.ConsentAccepted)
	assert.Equal(t, testNow, reg.RegisteredAt)

	assert.Equal(t, "Alex, you have been successfully registered for 3 drive(s) in event TrackDay!", api.lastText())

	_, active := b.sessions.Current(userID)
	assert.False(t, active)
}

func TestBot_NonNumericDriveCount(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	createTrackDay(t, b)

	userID := int64(42)
	send(b, userID, "/register TrackDay", "Alex", "three")
	assert.Equal(t, "Please enter a valid number.", api.lastText())

	session, ok := b.sessions.Current(userID)
	require.True(t, ok)
	assert.Equal(t, conversation.StepDriveCount, session.Step)
	assert.Len(t, session.Answers, 1)

	send(b, userID, "3")
	session, ok = b.sessions.Current(userID)
	require.True(t, ok)
	assert.Equal(t, conversation.StepSafetyEquipment, session.Step)
}

func TestBot_CommandInterruptsDialogue(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	createTrackDay(t, b)

	send(b, 42, "/register 1", "Alex")
	send(b, 42, "/events")

	_, ok := b.sessions.Current(42)
	assert.False(t, ok)
	assert.Contains(t, api.lastText(), "1. TrackDay - 2025-06-01 09:00")
}

func TestBot_CancelCommand(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	send(b, 42, "/cancel")
	assert.Equal(t, "Nothing to cancel.", api.lastText())

	createTrackDay(t, b)
	send(b, 42, "/register TrackDay", "/cancel")
	assert.Equal(t, "Cancelled. Use /menu to see event options.", api.lastText())
	_, ok := b.sessions.Current(42)
	assert.False(t, ok)
}

func TestBot_NonAdminRejected(t *testing.T) {
	b, api, db := newTestBot(t, Options{})

	send(b, 42, "/create_event")
	assert.Equal(t, "You do not have permission to create an event.", api.lastText())
	_, ok := b.sessions.Current(42)
	assert.False(t, ok)

	send(b, 42, "/admin")
	assert.Equal(t, "You are not an admin.", api.lastText())

	send(b, 42, "/create_event Sneaky 2025-06-01 09:00")
	events, err := db.ListEvents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBot_AdminFromChatMembership(t *testing.T) {
	b, api, _ := newTestBot(t, Options{AdminChatID: -100})
	api.members[77] = "administrator"
	api.members[78] = "creator"

	assert.True(t, b.isAdmin(77))
	assert.True(t, b.isAdmin(78))
	assert.False(t, b.isAdmin(79))

	send(b, 77, "/admin")
	msg, ok := api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "Admin Menu:", msg.Text)
}

func TestBot_CreateEventOneShot(t *testing.T) {
	b, api, db := newTestBot(t, Options{})

	send(b, testAdminID, "/create_event Spring Track Day 2025-06-01 9:30")
	assert.Contains(t, api.lastText(), "created successfully")

	event, err := db.GetEventByName(context.Background(), "Spring Track Day")
	require.NoError(t, err)
	assert.Equal(t, "09:30", event.Time)
	assert.True(t, event.Published)

	send(b, testAdminID, "/create_event Bad 2025-13-01 09:00")
	assert.Contains(t, api.lastText(), "/create_event <event_name> <YYYY-MM-DD> <HH:MM>")

	send(b, testAdminID, "/create_event spring track day 2025-07-01 10:00")
	assert.Equal(t, "An event named 'spring track day' already exists.", api.lastText())
}

func TestBot_CreateEventDialogueDraft(t *testing.T) {
	b, api, db := newTestBot(t, Options{})

	send(b, testAdminID, "/create_event", "Meetup", "2025-06-10", "18:00", "Ring", "50.3356,6.9475", "beginner")
	msg, ok := api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "Coordinates: 50.3356,6.9475")
	assert.NotNil(t, msg.ReplyMarkup)

	b.handleCallbackQuery(context.Background(), callback(testAdminID, "reply:confirm:draft"))
	assert.Equal(t, "Event 'Meetup' saved as draft #1. Publish it with /publish 1.", api.lastText())

	event, err := db.GetEvent(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, event.Published)
	require.NotNil(t, event.Coordinates)
	assert.Equal(t, "beginner", event.MinLevel)

	// Drafts are not open for registration
	send(b, 42, "/register Meetup")
	assert.Equal(t, "Registration for this event is not open yet.", api.lastText())

	send(b, testAdminID, "/publish Meetup")
	assert.Contains(t, api.lastText(), "is now published")

	send(b, 42, "/register Meetup")
	assert.Contains(t, api.lastText(), "Please provide your shortname")
}

func TestBot_InvalidDateReprompts(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	send(b, testAdminID, "/create_event", "TrackDay", "June 1st")
	assert.Contains(t, api.lastText(), "Invalid date format")

	session, ok := b.sessions.Current(testAdminID)
	require.True(t, ok)
	assert.Equal(t, conversation.StepEventDate, session.Step)
}

func TestBot_RegisterUnknownEvent(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	send(b, 42, "/register Nowhere")
	assert.Equal(t, "Invalid event. Use /events to see available events.", api.lastText())
	_, ok := b.sessions.Current(42)
	assert.False(t, ok)

	send(b, 42, "/register")
	assert.Equal(t, "Please specify an event: /register <id or name>", api.lastText())
}

func TestBot_RegisterPastEvent(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	send(b, testAdminID, "/create_event Old 2025-05-01 09:00")

	send(b, 42, "/register Old")
	assert.Equal(t, "This event has already taken place.", api.lastText())
}

func TestBot_ConsentDeclined(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	createTrackDay(t, b)

	send(b, 42, "/register TrackDay", "Alex", "3", "yes", "Civic 2020")
	b.handleCallbackQuery(context.Background(), callback(42, "reply:consent:no"))
	assert.Equal(t, "You must accept the consent to register.", api.lastText())

	_, err := db.GetRegistration(context.Background(), 42, 1)
	assert.ErrorIs(t, err, models.ErrRegistrationNotFound)
}

func TestBot_ReRegistrationUpdatesDrives(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	createTrackDay(t, b)

	send(b, 42, "/register TrackDay", "Alex", "3", "yes", "Civic 2020", "yes")
	send(b, 42, "/register TrackDay")
	assert.Equal(t,
		"You are already registered for 3 drive(s) in this event.\n\n"+
			"Would you like to update the number of drives? (Reply with the new number of drives or type 'no' to cancel)",
		api.lastText())

	send(b, 42, "lots")
	assert.Equal(t, "Please enter a valid number.", api.lastText())

	send(b, 42, "5")
	assert.Equal(t, "Your number of drives has been updated to 5.", api.lastText())

	reg, err := db.GetRegistration(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Drives)
	assert.Equal(t, "Alex", reg.ShortName)
	assert.Equal(t, "Civic 2020", reg.CarDetails)
	assert.Equal(t, testNow, reg.RegisteredAt)

	send(b, 42, "/register TrackDay", "no")
	assert.Equal(t, "No changes have been made to your registration.", api.lastText())
	reg, err = db.GetRegistration(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Drives)

	_, active := b.sessions.Current(42)
	assert.False(t, active)
}

func TestBot_UnregisterToggle(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	createTrackDay(t, b)
	send(b, 42, "/register TrackDay", "Alex", "3", "yes", "Civic 2020", "yes")

	buttonData := func() string {
		msg, ok := api.lastSent().(tgbotapi.MessageConfig)
		require.True(t, ok)
		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		require.True(t, ok)
		require.NotEmpty(t, markup.InlineKeyboard)
		require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
		return *markup.InlineKeyboard[0][0].CallbackData
	}

	b.handleCallbackQuery(context.Background(), callback(42, "event:1"))
	assert.Contains(t, api.lastText(), "Status: ✅ Registered")
	assert.Equal(t, "unregister:1", buttonData())

	b.handleCallbackQuery(context.Background(), callback(42, "unregister:1"))
	assert.Equal(t, "You have been unregistered for event TrackDay.", api.lastText())
	assert.Equal(t, "register:1", buttonData())

	_, err := db.GetRegistration(context.Background(), 42, 1)
	assert.ErrorIs(t, err, models.ErrRegistrationNotFound)

	send(b, 42, "/unregister TrackDay")
	assert.Equal(t, "You are not registered for this event.", api.lastText())
	send(b, 42, "/unregister")
	assert.Equal(t, "Please specify an event: /unregister <id or name>", api.lastText())

	// After unregistering the full dialogue runs again
	send(b, 42, "/register TrackDay")
	assert.Contains(t, api.lastText(), "Please provide your shortname")
}

func TestBot_SaveAsTemplate(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	ctx := context.Background()

	send(b, testAdminID, "/create_event", "TrackDay", "2025-06-01", "09:00", "Ring", "50.3356,6.9475", "beginner")
	msg, ok := api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	var labels []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			labels = append(labels, button.Text)
		}
	}
	assert.Contains(t, labels, "Save as Template")

	b.handleCallbackQuery(ctx, callback(testAdminID, "reply:confirm:template"))
	assert.Equal(t, "Enter template name:", api.lastText())

	send(b, testAdminID, "Ring mornings")
	assert.Contains(t, api.lastText(), "Template 'Ring mornings' saved.")

	// Saving a template does not create the event
	events, err := db.ListEvents(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	tpl, err := db.GetTemplateByName(ctx, "ring mornings")
	require.NoError(t, err)
	assert.Equal(t, "09:00", tpl.Time)
	assert.Equal(t, "Ring", tpl.LocationName)

	send(b, testAdminID, "/templates")
	assert.Contains(t, api.lastText(), "#1 Ring mornings - 09:00, Ring, level beginner")

	send(b, testAdminID, "/use_template 1 Summer Ring 2025-07-05")
	assert.Contains(t, api.lastText(), "Draft event 'Summer Ring' created from template 'Ring mornings'.")

	event, err := db.GetEventByName(ctx, "Summer Ring")
	require.NoError(t, err)
	assert.Equal(t, "2025-07-05", event.DateString())
	assert.Equal(t, "09:00", event.Time)
	assert.Equal(t, "beginner", event.MinLevel)
	assert.False(t, event.Published)

	send(b, testAdminID, "/use_template Nowhere X 2025-07-05")
	assert.Equal(t, "Template not found. Use /templates to see saved templates.", api.lastText())
	send(b, testAdminID, "/use_template 1 X July")
	assert.Contains(t, api.lastText(), "Invalid date format")

	send(b, 42, "/templates")
	assert.Equal(t, "Only admins can manage templates.", api.lastText())
}

func TestBot_StaleReplyButtonIgnored(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	createTrackDay(t, b)

	send(b, 42, "/register TrackDay", "Alex", "3")
	b.handleCallbackQuery(context.Background(), callback(42, "reply:confirm:publish"))
	assert.Equal(t, "This button is no longer active.", api.lastText())

	session, ok := b.sessions.Current(42)
	require.True(t, ok)
	assert.Equal(t, conversation.StepSafetyEquipment, session.Step)
	assert.Len(t, session.Answers, 2)

	// Old-style data without a step is dropped
	b.handleCallbackQuery(context.Background(), callback(42, "reply:yes"))
	session, _ = b.sessions.Current(42)
	assert.Equal(t, conversation.StepSafetyEquipment, session.Step)

	send(b, 42, "helmet", "Civic 2020")
	b.handleCallbackQuery(context.Background(), callback(42, "reply:consent:yes"))
	reg, err := db.GetRegistration(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, "helmet", reg.SafetyEquipment)
}

func TestBot_ParticipantsAndStartEvent(t *testing.T) {
	b, api, db := newTestBot(t, Options{})
	createTrackDay(t, b)

	send(b, testAdminID, "/participants TrackDay")
	assert.Equal(t, "No participants registered for this event yet.", api.lastText())

	send(b, 42, "/register 1", "Alex", "3", "yes", "Civic 2020", "yes")
	send(b, 43, "/register 1", "Sam", "0", "no", "GT86", "yes")

	send(b, 42, "/participants 1")
	assert.Equal(t, "Only admins can view participants.", api.lastText())

	send(b, testAdminID, "/participants 1")
	assert.Equal(t,
		"Participants for TrackDay (2):\n\n"+
			"1. Alex - 3 drive(s), car: Civic 2020, safety: yes\n"+
			"2. Sam - 0 drive(s), car: GT86, safety: no",
		api.lastText())

	send(b, testAdminID, "/start_event TrackDay")
	assert.Equal(t, "Event started and drive counts updated (2 participants).", api.lastText())

	reg, err := db.GetRegistration(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, reg.Drives)
	reg, err = db.GetRegistration(context.Background(), 43, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Drives)
}

func TestBot_MyRegistrations(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	send(b, 42, "/my")
	assert.Equal(t, "You have no upcoming registrations.", api.lastText())

	createTrackDay(t, b)
	send(b, 42, "/register TrackDay", "Alex", "2", "yes", "Civic", "yes")

	b.handleCallbackQuery(context.Background(), callback(42, "menu:my"))
	assert.Equal(t, "Your registrations:\n\n1. TrackDay - 2025-06-01 09:00 - 2 drive(s) as Alex", api.lastText())
}

func TestBot_RegisterButton(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	createTrackDay(t, b)

	b.handleCallbackQuery(context.Background(), callback(42, "event:1"))
	msg, ok := api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "TrackDay (#1)")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "register:1", *markup.InlineKeyboard[0][0].CallbackData)

	b.handleCallbackQuery(context.Background(), callback(42, "register:1"))
	session, ok := b.sessions.Current(42)
	require.True(t, ok)
	assert.Equal(t, conversation.FlowRegister, session.Flow)
	assert.Equal(t, int64(1), session.EventID)
}

func TestBot_StartSetsScopedCommands(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})

	send(b, testAdminID, "/start")
	send(b, 42, "/start")

	var configs []tgbotapi.SetMyCommandsConfig
	for _, r := range api.requests {
		if c, ok := r.(tgbotapi.SetMyCommandsConfig); ok {
			configs = append(configs, c)
		}
	}
	require.Len(t, configs, 2)
	assert.Len(t, configs[0].Commands, len(adminCommands)+len(memberCommands))
	assert.Len(t, configs[1].Commands, len(memberCommands))
	require.NotNil(t, configs[1].Scope)
	assert.Equal(t, int64(42), configs[1].Scope.ChatID)
	assert.Contains(t, api.lastText(), "Welcome")
}

type panicStorage struct {
	storage.Storage
}

func TestBot_PanicRecovered(t *testing.T) {
	b, api, _ := newTestBot(t, Options{})
	b.db = panicStorage{}

	assert.NotPanics(t, func() {
		send(b, 42, "/events")
	})
	assert.Equal(t, "An error occurred while processing your request. Please try again.", api.lastText())

	assert.NotPanics(t, func() {
		b.handleCallbackQuery(context.Background(), callback(42, "menu:events"))
	})
}

func TestBot_DriveQuestionnaire(t *testing.T) {
	q, err := survey.New([]survey.Question{
		{Question: "Track?", Options: []string{"Spa", "Zandvoort"}, AllowText: true},
		{Question: "Notes?", Type: survey.TypeText},
	}, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	b, api, _ := newTestBot(t, Options{
		Surveys:   survey.NewTracker(q),
		Responses: survey.NewWriter(dir),
	})
	ctx := context.Background()

	send(b, 42, "/new_drive")
	assert.Equal(t, "Only admins can propose drives.", api.lastText())

	send(b, testAdminID, "/new_drive")
	poll, ok := api.lastSent().(tgbotapi.SendPollConfig)
	require.True(t, ok)
	assert.Equal(t, "Track?", poll.Question)
	assert.Equal(t, []string{"Spa", "Zandvoort", survey.OtherOption}, poll.Options)
	assert.False(t, poll.IsAnonymous)

	// "Other" asks for text
	b.HandleWebhookUpdate(ctx, tgbotapi.Update{PollAnswer: &tgbotapi.PollAnswer{
		PollID:    "poll-1",
		User:      tgbotapi.User{ID: testAdminID},
		OptionIDs: []int{2},
	}})
	assert.Equal(t, "Please type your answer:", api.lastText())

	send(b, testAdminID, "Bilster Berg")
	assert.Equal(t, "Notes?", api.lastText())

	send(b, testAdminID, "Bring a helmet")
	assert.True(t, strings.HasPrefix(api.lastText(), "📝 Your Answers:"))
	assert.Contains(t, api.lastText(), "Bilster Berg")

	b.handleCallbackQuery(ctx, callback(testAdminID, "confirm:yes"))
	assert.Equal(t, "✅ Answers confirmed and saved!", api.lastText())

	files, err := filepath.Glob(filepath.Join(dir, "1_*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "Bring a helmet")

	send(b, testAdminID, "/confirm")
	assert.Equal(t, "Nothing to confirm.", api.lastText())
}

func TestBot_QuestionnaireRestart(t *testing.T) {
	q, err := survey.New([]survey.Question{
		{Question: "Kind?", Options: []string{"Track day", "Touring"}},
	}, nil)
	require.NoError(t, err)

	b, api, _ := newTestBot(t, Options{Surveys: survey.NewTracker(q)})
	send(b, testAdminID, "/new_drive")
	send(b, testAdminID, "/restart")

	poll, ok := api.lastSent().(tgbotapi.SendPollConfig)
	require.True(t, ok)
	assert.Equal(t, "Kind?", poll.Question)
	assert.Contains(t, api.texts(), "Restarting survey...")

	// Other commands drop the questionnaire
	send(b, testAdminID, "/events")
	assert.False(t, b.surveys.Active(testAdminID))
}

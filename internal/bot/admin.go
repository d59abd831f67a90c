package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/models"
)

const createEventUsage = "Please provide an event name, date, and time: /create_event <event_name> <YYYY-MM-DD> <HH:MM>\n\nOr send /create_event alone to be asked step by step."

// isAdmin reports whether the user may manage events
func (b *Bot) isAdmin(userID int64) bool {
	if b.admins[userID] {
		return true
	}
	if b.adminChatID == 0 || b.api == nil {
		return false
	}

	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: b.adminChatID,
			UserID: userID,
		},
	})
	if err != nil {
		b.logger.Warn("Failed to get chat member",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("chat_id", b.adminChatID),
		)
		return false
	}
	return member.IsAdministrator() || member.IsCreator()
}

// requireAdmin sends a rejection and returns false for non-admins
func (b *Bot) requireAdmin(chatID, userID int64, rejection string) bool {
	if b.isAdmin(userID) {
		return true
	}
	b.logger.Warn("Unauthorized admin action", zap.Int64("user_id", userID))
	b.reply(chatID, rejection)
	return false
}

func (b *Bot) handleAdmin(message *tgbotapi.Message) {
	if !b.requireAdmin(message.Chat.ID, message.From.ID, "You are not an admin.") {
		return
	}
	b.replyWithMarkup(message.Chat.ID, "Admin Menu:", adminMenu())
}

// handleCreateEvent starts the creation dialogue, or creates and publishes an
// event in one shot when name, date and time are given
func (b *Bot) handleCreateEvent(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "You do not have permission to create an event.") {
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) == 0 {
		b.beginEventCreation(chatID, message.From.ID)
		return
	}

	event, err := parseCreateEventArgs(args)
	if err != nil {
		b.reply(chatID, createEventUsage)
		return
	}

	id, ok := b.saveEvent(ctx, chatID, event)
	if !ok {
		return
	}
	if err := b.db.PublishEvent(ctx, id); err != nil {
		b.logger.Error("Failed to publish event", zap.Error(err), zap.Int64("event_id", id))
		b.reply(chatID, fmt.Sprintf("Event saved as draft #%d but publishing failed. Try /publish %d.", id, id))
		return
	}

	b.logger.Info("Event created",
		zap.Int64("event_id", id),
		zap.String("name", event.Name),
		zap.Int64("user_id", message.From.ID),
	)
	b.reply(chatID, fmt.Sprintf(
		"Event '%s' scheduled for %s at %s created successfully! Users can now register using /register %d.",
		event.Name, event.DateString(), event.Time, id))
}

func parseCreateEventArgs(args []string) (models.Event, error) {
	if len(args) < 3 {
		return models.Event{}, errors.New("expected name, date and time")
	}
	date, err := time.Parse(models.DateLayout, args[len(args)-2])
	if err != nil {
		return models.Event{}, err
	}
	clock, err := time.Parse(models.TimeLayout, args[len(args)-1])
	if err != nil {
		return models.Event{}, err
	}
	return models.Event{
		Name: strings.Join(args[:len(args)-2], " "),
		Date: models.Day(date),
		Time: clock.Format(models.TimeLayout),
	}, nil
}

func (b *Bot) beginEventCreation(chatID, userID int64) {
	session, prompt, err := b.sessions.Begin(userID, chatID, conversation.FlowCreateEvent, 0)
	if err != nil {
		b.logger.Error("Failed to begin event creation", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Failed to start event creation. Please try again later.")
		return
	}
	b.logger.Debug("Event creation started",
		zap.Int64("user_id", userID),
		zap.String("session_id", session.ID),
	)
	b.reply(chatID, prompt)
}

// saveEvent persists event and reports failures to the chat
func (b *Bot) saveEvent(ctx context.Context, chatID int64, event models.Event) (int64, bool) {
	id, err := b.db.CreateEvent(ctx, event)
	if errors.Is(err, models.ErrEventExists) {
		b.reply(chatID, fmt.Sprintf("An event named '%s' already exists.", event.Name))
		return 0, false
	}
	if err != nil {
		b.logger.Error("Failed to create event", zap.Error(err), zap.String("name", event.Name))
		b.reply(chatID, "Failed to create event. Please try again later.")
		return 0, false
	}
	return id, true
}

func (b *Bot) handlePublish(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "Only admins can publish events.") {
		return
	}
	ref := message.CommandArguments()
	if strings.TrimSpace(ref) == "" {
		b.reply(chatID, "Usage: /publish <id or name>")
		return
	}
	b.publishEvent(ctx, chatID, ref)
}

func (b *Bot) publishEvent(ctx context.Context, chatID int64, ref string) {
	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}
	if event.Published {
		b.reply(chatID, fmt.Sprintf("Event '%s' is already published.", event.Name))
		return
	}
	if err := b.db.PublishEvent(ctx, event.ID); err != nil {
		b.logger.Error("Failed to publish event", zap.Error(err), zap.Int64("event_id", event.ID))
		b.reply(chatID, "Failed to publish event. Please try again later.")
		return
	}
	b.logger.Info("Event published", zap.Int64("event_id", event.ID))
	b.reply(chatID, fmt.Sprintf("Event '%s' is now published. Users can register using /register %d.", event.Name, event.ID))
}

func (b *Bot) handleParticipants(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "Only admins can view participants.") {
		return
	}
	ref := message.CommandArguments()
	if strings.TrimSpace(ref) == "" {
		b.reply(chatID, "Please specify an event: /participants <id or name>")
		return
	}
	b.showParticipants(ctx, chatID, ref)
}

func (b *Bot) showParticipants(ctx context.Context, chatID int64, ref string) {
	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}

	regs, err := b.db.ListRegistrations(ctx, event.ID)
	if err != nil {
		b.logger.Error("Failed to list registrations", zap.Error(err), zap.Int64("event_id", event.ID))
		b.reply(chatID, "Failed to load participants. Please try again later.")
		return
	}
	if len(regs) == 0 {
		b.reply(chatID, "No participants registered for this event yet.")
		return
	}

	count, err := b.db.CountRegistrations(ctx, event.ID)
	if err != nil {
		b.logger.Warn("Failed to count registrations", zap.Error(err), zap.Int64("event_id", event.ID))
		count = len(regs)
	}

	var text strings.Builder
	fmt.Fprintf(&text, "Participants for %s (%d):\n\n", event.Name, count)
	for i, r := range regs {
		fmt.Fprintf(&text, "%d. %s - %d drive(s), car: %s, safety: %s\n",
			i+1, r.ShortName, r.Drives, r.CarDetails, r.SafetyEquipment)
	}
	b.reply(chatID, strings.TrimRight(text.String(), "\n"))
}

// handleStartEvent adds one drive to every registration of the event
func (b *Bot) handleStartEvent(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "Only admins can start events.") {
		return
	}
	ref := message.CommandArguments()
	if strings.TrimSpace(ref) == "" {
		b.reply(chatID, "Usage: /start_event <id or name>")
		return
	}

	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}
	regs, err := b.db.ListRegistrations(ctx, event.ID)
	if err != nil {
		b.logger.Error("Failed to list registrations", zap.Error(err), zap.Int64("event_id", event.ID))
		b.reply(chatID, "Failed to start event. Please try again later.")
		return
	}

	updated := 0
	for _, r := range regs {
		if err := b.db.IncrementDriveCount(ctx, r.UserID, event.ID); err != nil {
			b.logger.Error("Failed to increment drive count",
				zap.Error(err),
				zap.Int64("user_id", r.UserID),
				zap.Int64("event_id", event.ID),
			)
			continue
		}
		updated++
	}

	b.logger.Info("Event started",
		zap.Int64("event_id", event.ID),
		zap.Int("participants", len(regs)),
		zap.Int("updated", updated),
	)
	if updated < len(regs) {
		b.reply(chatID, fmt.Sprintf("Event started. Drive counts updated for %d of %d participants.", updated, len(regs)))
		return
	}
	b.reply(chatID, fmt.Sprintf("Event started and drive counts updated (%d participants).", updated))
}

// showAllEvents lists every event, drafts included
func (b *Bot) showAllEvents(ctx context.Context, chatID int64) {
	events, err := b.db.ListEvents(ctx)
	if err != nil {
		b.logger.Error("Failed to list events", zap.Error(err))
		b.reply(chatID, "Failed to load events. Please try again later.")
		return
	}
	if len(events) == 0 {
		b.reply(chatID, "No events have been created yet.")
		return
	}

	var text strings.Builder
	text.WriteString("All events:\n\n")
	for _, e := range events {
		text.WriteString(formatEventLine(e))
		text.WriteByte('\n')
	}
	text.WriteString("\nSelect an event for details:")
	b.replyWithMarkup(chatID, text.String(), eventListKeyboard(events, "event"))
}

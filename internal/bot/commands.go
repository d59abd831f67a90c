package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/models"
	"eventbot/internal/storage"
)

// handleStart greets the user and sets a command menu matching their role
func (b *Bot) handleStart(message *tgbotapi.Message) {
	userID := message.From.ID
	admin := b.isAdmin(userID)

	commands := memberCommands
	greeting := "Welcome to the Drive Event Bot! 🚗\n\nUse /events to see upcoming drives and /register <event> to sign up."
	if admin {
		commands = append(append([]tgbotapi.BotCommand{}, adminCommands...), memberCommands...)
		greeting = "Hello Admin! 🚗\n\nYour menu commands have been updated. Use /admin for event management."
	}

	var scope tgbotapi.BotCommandScope
	if message.Chat.IsPrivate() {
		scope = tgbotapi.NewBotCommandScopeChat(message.Chat.ID)
	} else {
		scope = tgbotapi.NewBotCommandScopeChatMember(message.Chat.ID, userID)
	}
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewSetMyCommandsWithScope(scope, commands...)); err != nil {
			b.logger.Warn("Failed to set user commands",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.Bool("admin", admin),
			)
		}
	}

	b.reply(message.Chat.ID, greeting)
}

// handleHelp lists the available commands
func (b *Bot) handleHelp(message *tgbotapi.Message) {
	var text strings.Builder
	text.WriteString("Available commands:\n")
	for _, c := range memberCommands {
		fmt.Fprintf(&text, "/%s - %s\n", c.Command, c.Description)
	}
	if b.isAdmin(message.From.ID) {
		text.WriteString("\nAdmin commands:\n")
		for _, c := range adminCommands {
			fmt.Fprintf(&text, "/%s - %s\n", c.Command, c.Description)
		}
	}
	b.reply(message.Chat.ID, strings.TrimRight(text.String(), "\n"))
}

func (b *Bot) handleMenu(message *tgbotapi.Message) {
	b.replyWithMarkup(message.Chat.ID, "Event Menu:", memberMenu())
}

// handleCancel reports the outcome of /cancel. interrupted tells whether a
// dialogue was dropped when the command arrived.
func (b *Bot) handleCancel(message *tgbotapi.Message, interrupted bool) {
	if b.surveys != nil && b.surveys.Cancel(message.From.ID) {
		interrupted = true
	}
	if !interrupted {
		b.reply(message.Chat.ID, "Nothing to cancel.")
		return
	}
	b.reply(message.Chat.ID, "Cancelled. Use /menu to see event options.")
}

// showUpcomingEvents lists published events from today onwards
func (b *Bot) showUpcomingEvents(ctx context.Context, chatID int64) {
	events, err := b.db.ListUpcomingEvents(ctx, b.now())
	if err != nil {
		b.logger.Error("Failed to list upcoming events", zap.Error(err))
		b.reply(chatID, "Failed to load events. Please try again later.")
		return
	}

	if len(events) == 0 {
		b.reply(chatID, "No upcoming events.")
		return
	}

	var text strings.Builder
	text.WriteString("Upcoming events:\n\n")
	for _, e := range events {
		text.WriteString(formatEventLine(e))
		text.WriteByte('\n')
	}
	text.WriteString("\nRegister with /register <id or name>.")

	b.replyWithMarkup(chatID, text.String(), eventListKeyboard(events, "event"))
}

// handleEventDetail shows one event with a Register button
func (b *Bot) handleEventDetail(ctx context.Context, message *tgbotapi.Message) {
	ref := message.CommandArguments()
	if strings.TrimSpace(ref) == "" {
		b.reply(message.Chat.ID, "Please specify an event: /event <id or name>")
		return
	}
	b.showEvent(ctx, message.Chat.ID, message.From.ID, ref)
}

func (b *Bot) showEvent(ctx context.Context, chatID, userID int64, ref string) {
	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}

	admin := b.isAdmin(userID)
	if !event.Published && !admin {
		b.reply(chatID, "Invalid event. Use /events to see available events.")
		return
	}

	count, err := b.db.CountRegistrations(ctx, event.ID)
	if err != nil {
		b.logger.Error("Failed to count registrations", zap.Error(err), zap.Int64("event_id", event.ID))
		b.reply(chatID, "Failed to load event. Please try again later.")
		return
	}

	registered := false
	if _, err := b.db.GetRegistration(ctx, userID, event.ID); err == nil {
		registered = true
	} else if !errors.Is(err, models.ErrRegistrationNotFound) {
		b.logger.Warn("Failed to check registration",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("event_id", event.ID),
		)
	}

	text := formatEventDetail(*event, count)
	if registered {
		text += "\nStatus: ✅ Registered"
	}
	keyboard := eventKeyboard(*event, admin, registered)
	if len(keyboard.InlineKeyboard) == 0 {
		b.reply(chatID, text)
		return
	}
	b.replyWithMarkup(chatID, text, keyboard)
}

// lookupEvent resolves ref and reports misses to the chat
func (b *Bot) lookupEvent(ctx context.Context, chatID int64, ref string) (*models.Event, bool) {
	event, err := storage.LookupEvent(ctx, b.db, ref)
	if errors.Is(err, models.ErrEventNotFound) {
		b.reply(chatID, "Invalid event. Use /events to see available events.")
		return nil, false
	}
	if err != nil {
		b.logger.Error("Failed to look up event", zap.Error(err), zap.String("ref", ref))
		b.reply(chatID, "Failed to load event. Please try again later.")
		return nil, false
	}
	return event, true
}

// beginRegistration starts the registration dialogue for the event named by ref
func (b *Bot) beginRegistration(ctx context.Context, chatID, userID int64, ref string) {
	if strings.TrimSpace(ref) == "" {
		b.reply(chatID, "Please specify an event: /register <id or name>")
		return
	}

	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}
	if !event.Published {
		b.reply(chatID, "Registration for this event is not open yet.")
		return
	}
	if event.Date.Before(models.Day(b.now())) {
		b.reply(chatID, "This event has already taken place.")
		return
	}

	existing, err := b.db.GetRegistration(ctx, userID, event.ID)
	switch {
	case err == nil:
		b.beginDriveUpdate(chatID, userID, existing)
		return
	case !errors.Is(err, models.ErrRegistrationNotFound):
		b.logger.Error("Failed to check registration",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("event_id", event.ID),
		)
		b.reply(chatID, "Failed to start registration. Please try again later.")
		return
	}

	session, prompt, err := b.sessions.Begin(userID, chatID, conversation.FlowRegister, event.ID)
	if err != nil {
		b.logger.Error("Failed to begin registration", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Failed to start registration. Please try again later.")
		return
	}

	b.logger.Info("Registration started",
		zap.Int64("user_id", userID),
		zap.Int64("event_id", event.ID),
		zap.String("session_id", session.ID),
	)
	b.reply(chatID, fmt.Sprintf("Registering for %s on %s.\n\n%s", event.Name, event.DateString(), prompt))
}

// beginDriveUpdate offers an already registered user to change only the drive count
func (b *Bot) beginDriveUpdate(chatID, userID int64, existing *models.Registration) {
	session, prompt, err := b.sessions.Begin(userID, chatID, conversation.FlowUpdateDrives, existing.EventID)
	if err != nil {
		b.logger.Error("Failed to begin drive update", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Failed to start registration. Please try again later.")
		return
	}
	b.logger.Debug("Drive update started",
		zap.Int64("user_id", userID),
		zap.Int64("event_id", existing.EventID),
		zap.String("session_id", session.ID),
	)
	b.reply(chatID, fmt.Sprintf("You are already registered for %d drive(s) in this event.\n\n%s", existing.Drives, prompt))
}

func (b *Bot) handleUnregister(ctx context.Context, message *tgbotapi.Message) {
	ref := message.CommandArguments()
	if strings.TrimSpace(ref) == "" {
		b.reply(message.Chat.ID, "Please specify an event: /unregister <id or name>")
		return
	}
	b.unregister(ctx, message.Chat.ID, message.From.ID, ref)
}

// unregister removes the user's registration and shows the Register button again
func (b *Bot) unregister(ctx context.Context, chatID, userID int64, ref string) {
	event, ok := b.lookupEvent(ctx, chatID, ref)
	if !ok {
		return
	}

	err := b.db.DeleteRegistration(ctx, userID, event.ID)
	if errors.Is(err, models.ErrRegistrationNotFound) {
		b.reply(chatID, "You are not registered for this event.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to delete registration",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Int64("event_id", event.ID),
		)
		b.reply(chatID, "Failed to remove your registration. Please try again later.")
		return
	}

	b.logger.Info("Registration removed", zap.Int64("user_id", userID), zap.Int64("event_id", event.ID))
	text := fmt.Sprintf("You have been unregistered for event %s.", event.Name)
	keyboard := eventKeyboard(*event, false, false)
	if len(keyboard.InlineKeyboard) == 0 {
		b.reply(chatID, text)
		return
	}
	b.replyWithMarkup(chatID, text, keyboard)
}

// showMyRegistrations lists the user's registrations for upcoming events
func (b *Bot) showMyRegistrations(ctx context.Context, chatID, userID int64) {
	regs, err := b.db.ListUserRegistrations(ctx, userID)
	if err != nil {
		b.logger.Error("Failed to list user registrations", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Failed to load your registrations. Please try again later.")
		return
	}

	today := models.Day(b.now())
	var text strings.Builder
	count := 0
	for _, reg := range regs {
		event, err := b.db.GetEvent(ctx, reg.EventID)
		if err != nil {
			b.logger.Warn("Registration references a missing event",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.Int64("event_id", reg.EventID),
			)
			continue
		}
		if event.Date.Before(today) {
			continue
		}
		count++
		fmt.Fprintf(&text, "%s - %d drive(s) as %s\n", formatEventLine(*event), reg.Drives, reg.ShortName)
	}

	if count == 0 {
		b.reply(chatID, "You have no upcoming registrations.")
		return
	}
	b.reply(chatID, "Your registrations:\n\n"+strings.TrimRight(text.String(), "\n"))
}

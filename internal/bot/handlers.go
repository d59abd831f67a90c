package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// commands that act on a running questionnaire instead of interrupting it
var surveyCommands = map[string]bool{
	"confirm": true,
	"restart": true,
}

// handleMessage processes a single message
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	// Recover from panics to prevent bot crashes
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleMessage",
				zap.Any("panic", r),
				zap.Int64("user_id", message.From.ID),
			)
			b.reply(message.Chat.ID, "An error occurred while processing your request. Please try again.")
		}
	}()

	userID := message.From.ID

	if message.IsCommand() {
		command := strings.ToLower(message.Command())

		// Any command interrupts an ongoing dialogue
		interrupted := b.sessions.Cancel(userID)
		if interrupted {
			b.logger.Debug("Dialogue interrupted by command",
				zap.Int64("user_id", userID),
				zap.String("command", command),
			)
		}
		if command == "cancel" {
			b.handleCancel(message, interrupted)
			return
		}
		if b.surveys != nil && !surveyCommands[command] {
			b.surveys.Cancel(userID)
		}

		b.handleCommand(ctx, message, command)
		return
	}

	if _, ok := b.sessions.Current(userID); ok {
		b.handleConversation(ctx, message.Chat.ID, message.From, message.Text)
		return
	}

	if b.surveys != nil && b.surveys.AwaitingText(userID) {
		b.handleSurveyText(message.Chat.ID, userID, message.Text)
		return
	}

	if message.Chat.IsPrivate() {
		b.reply(message.Chat.ID, "Use /help to see available commands.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message, command string) {
	switch command {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "menu":
		b.handleMenu(message)
	case "admin":
		b.handleAdmin(message)
	case "events":
		b.showUpcomingEvents(ctx, message.Chat.ID)
	case "event":
		b.handleEventDetail(ctx, message)
	case "register":
		b.beginRegistration(ctx, message.Chat.ID, message.From.ID, message.CommandArguments())
	case "unregister":
		b.handleUnregister(ctx, message)
	case "my":
		b.showMyRegistrations(ctx, message.Chat.ID, message.From.ID)
	case "create_event":
		b.handleCreateEvent(ctx, message)
	case "publish":
		b.handlePublish(ctx, message)
	case "participants":
		b.handleParticipants(ctx, message)
	case "start_event":
		b.handleStartEvent(ctx, message)
	case "templates":
		b.handleTemplates(ctx, message)
	case "use_template":
		b.handleUseTemplate(ctx, message)
	case "new_drive":
		b.handleNewDrive(message)
	case "confirm":
		b.confirmSurvey(message.Chat.ID, message.From.ID)
	case "restart":
		b.restartSurvey(message.Chat.ID, message.From.ID)
	default:
		b.reply(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

// handleCallbackQuery processes inline keyboard button clicks
func (b *Bot) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handleCallbackQuery",
				zap.Any("panic", r),
				zap.String("callback_data", query.Data),
			)
		}
	}()

	// Answer the callback query to remove loading state
	if b.api != nil {
		if _, err := b.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			b.logger.Warn("Failed to answer callback query", zap.Error(err))
		}
	}

	if query.From == nil || query.Message == nil || query.Message.Chat == nil {
		return
	}

	prefix, value, _ := strings.Cut(query.Data, ":")
	switch prefix {
	case "menu":
		b.handleMenuCallback(ctx, query, value)
	case "admin":
		b.handleAdminCallback(ctx, query, value)
	case "event":
		b.handleEventCallback(ctx, query, value)
	case "register":
		b.beginRegistration(ctx, query.Message.Chat.ID, query.From.ID, value)
	case "unregister":
		b.handleUnregisterCallback(ctx, query, value)
	case "regs":
		b.handleRegistrationsCallback(ctx, query, value)
	case "reply":
		b.handleReplyCallback(ctx, query, value)
	case "confirm":
		b.handleConfirmCallback(query, value)
	default:
		b.logger.Warn("Unknown callback data",
			zap.Int64("user_id", query.From.ID),
			zap.String("callback_data", query.Data),
		)
	}
}

// handlePollAnswer records questionnaire poll votes
func (b *Bot) handlePollAnswer(ctx context.Context, answer *tgbotapi.PollAnswer) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in handlePollAnswer",
				zap.Any("panic", r),
				zap.String("poll_id", answer.PollID),
			)
		}
	}()

	if b.surveys == nil {
		return
	}
	b.answerSurveyPoll(answer.PollID, answer.OptionIDs)
}

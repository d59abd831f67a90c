package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
)

// handleMenuCallback processes member menu buttons
func (b *Bot) handleMenuCallback(ctx context.Context, query *tgbotapi.CallbackQuery, action string) {
	chatID := query.Message.Chat.ID
	switch action {
	case "events":
		b.showUpcomingEvents(ctx, chatID)
	case "my":
		b.showMyRegistrations(ctx, chatID, query.From.ID)
	default:
		b.logger.Warn("Unknown menu action", zap.String("action", action))
	}
}

// handleAdminCallback processes admin menu and event management buttons
func (b *Bot) handleAdminCallback(ctx context.Context, query *tgbotapi.CallbackQuery, action string) {
	chatID := query.Message.Chat.ID
	if !b.requireAdmin(chatID, query.From.ID, "You are not an admin.") {
		return
	}

	action, arg, _ := strings.Cut(action, ":")
	switch action {
	case "create":
		b.beginEventCreation(chatID, query.From.ID)
	case "events":
		b.showAllEvents(ctx, chatID)
	case "publish":
		b.publishEvent(ctx, chatID, arg)
	case "templates":
		b.showTemplates(ctx, chatID)
	default:
		b.logger.Warn("Unknown admin action", zap.String("action", action))
	}
}

func (b *Bot) handleEventCallback(ctx context.Context, query *tgbotapi.CallbackQuery, ref string) {
	b.showEvent(ctx, query.Message.Chat.ID, query.From.ID, ref)
}

func (b *Bot) handleRegistrationsCallback(ctx context.Context, query *tgbotapi.CallbackQuery, ref string) {
	chatID := query.Message.Chat.ID
	if !b.requireAdmin(chatID, query.From.ID, "Only admins can view participants.") {
		return
	}
	b.showParticipants(ctx, chatID, ref)
}

// handleReplyCallback answers the current dialogue step with a button value.
// data is "<step>:<value>"; buttons left over from another step are ignored.
func (b *Bot) handleReplyCallback(ctx context.Context, query *tgbotapi.CallbackQuery, data string) {
	chatID := query.Message.Chat.ID
	name, value, ok := strings.Cut(data, ":")
	step, known := conversation.ParseStep(name)
	if !ok || !known {
		b.logger.Warn("Malformed reply callback",
			zap.Int64("user_id", query.From.ID),
			zap.String("callback_data", data),
		)
		return
	}

	session, ok := b.sessions.Current(query.From.ID)
	if !ok {
		b.reply(chatID, "This dialogue is no longer active.")
		return
	}
	if session.Step != step {
		b.logger.Debug("Stale reply button",
			zap.Int64("user_id", query.From.ID),
			zap.Stringer("button_step", step),
			zap.Stringer("step", session.Step),
		)
		b.reply(chatID, "This button is no longer active.")
		return
	}
	b.handleConversation(ctx, chatID, query.From, value)
}

func (b *Bot) handleUnregisterCallback(ctx context.Context, query *tgbotapi.CallbackQuery, ref string) {
	b.unregister(ctx, query.Message.Chat.ID, query.From.ID, ref)
}

// handleConfirmCallback processes the questionnaire confirmation buttons
func (b *Bot) handleConfirmCallback(query *tgbotapi.CallbackQuery, action string) {
	chatID := query.Message.Chat.ID
	switch action {
	case "yes":
		b.confirmSurvey(chatID, query.From.ID)
	case "restart":
		b.restartSurvey(chatID, query.From.ID)
	case "cancel":
		if b.surveys != nil && b.surveys.Cancel(query.From.ID) {
			b.reply(chatID, "Questionnaire cancelled.")
		}
	}
}

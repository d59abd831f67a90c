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
	"eventbot/internal/storage"
)

const useTemplateUsage = "Usage: /use_template <template> <event_name> <YYYY-MM-DD>"

// askTemplateName moves a confirmed event dialogue on to naming the template
func (b *Bot) askTemplateName(chatID, userID int64) {
	session, prompt, err := b.sessions.Chain(userID, conversation.FlowSaveTemplate)
	if err != nil {
		b.logger.Error("Failed to continue with template name", zap.Error(err), zap.Int64("user_id", userID))
		b.sessions.Cancel(userID)
		b.reply(chatID, "An error occurred while saving the template. Please start again.")
		return
	}
	b.logger.Debug("Template naming started",
		zap.Int64("user_id", userID),
		zap.String("session_id", session.ID),
	)
	b.reply(chatID, prompt)
}

func (b *Bot) finishTemplate(ctx context.Context, chatID int64, session *conversation.Session) {
	tpl, err := session.Answers.Template()
	if err != nil {
		b.logger.Error("Failed to build template from answers", zap.Error(err), zap.String("session_id", session.ID))
		b.reply(chatID, "An error occurred while saving the template. Please start again.")
		return
	}

	id, err := b.db.SaveTemplate(ctx, tpl)
	if errors.Is(err, models.ErrTemplateExists) {
		b.reply(chatID, fmt.Sprintf("A template named '%s' already exists.", tpl.Name))
		return
	}
	if err != nil {
		b.logger.Error("Failed to save template", zap.Error(err), zap.String("name", tpl.Name))
		b.reply(chatID, "Failed to save the template. Please try again later.")
		return
	}

	b.logger.Info("Template saved",
		zap.Int64("template_id", id),
		zap.Int64("user_id", session.UserID),
		zap.String("session_id", session.ID),
	)
	b.reply(chatID, fmt.Sprintf("Template '%s' saved. Create events from it with /use_template %d <event_name> <YYYY-MM-DD>.", tpl.Name, id))
}

func (b *Bot) handleTemplates(ctx context.Context, message *tgbotapi.Message) {
	if !b.requireAdmin(message.Chat.ID, message.From.ID, "Only admins can manage templates.") {
		return
	}
	b.showTemplates(ctx, message.Chat.ID)
}

func (b *Bot) showTemplates(ctx context.Context, chatID int64) {
	templates, err := b.db.ListTemplates(ctx)
	if err != nil {
		b.logger.Error("Failed to list templates", zap.Error(err))
		b.reply(chatID, "Failed to load templates. Please try again later.")
		return
	}
	if len(templates) == 0 {
		b.reply(chatID, "No templates saved yet. Choose 'Save as Template' when creating an event.")
		return
	}

	var text strings.Builder
	text.WriteString("Templates:\n\n")
	for _, t := range templates {
		fmt.Fprintf(&text, "#%d %s - %s, %s, level %s\n",
			t.ID, t.Name, orDash(t.Time), orDash(t.LocationName), orDash(t.MinLevel))
	}
	text.WriteString("\n" + useTemplateUsage)
	b.reply(chatID, text.String())
}

// handleUseTemplate creates a draft event from a saved template
func (b *Bot) handleUseTemplate(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "Only admins can manage templates.") {
		return
	}

	args := strings.Fields(message.CommandArguments())
	if len(args) < 3 {
		b.reply(chatID, useTemplateUsage)
		return
	}
	date, err := time.Parse(models.DateLayout, args[len(args)-1])
	if err != nil {
		b.reply(chatID, "Invalid date format. Please use YYYY-MM-DD\n\n"+useTemplateUsage)
		return
	}

	tpl, err := storage.LookupTemplate(ctx, b.db, args[0])
	if errors.Is(err, models.ErrTemplateNotFound) {
		b.reply(chatID, "Template not found. Use /templates to see saved templates.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to look up template", zap.Error(err), zap.String("ref", args[0]))
		b.reply(chatID, "Failed to load template. Please try again later.")
		return
	}

	event := tpl.Event(strings.Join(args[1:len(args)-1], " "), date)
	id, ok := b.saveEvent(ctx, chatID, event)
	if !ok {
		return
	}
	event.ID = id

	b.logger.Info("Event created from template",
		zap.Int64("event_id", id),
		zap.Int64("template_id", tpl.ID),
		zap.Int64("user_id", message.From.ID),
	)
	b.replyWithMarkup(chatID,
		fmt.Sprintf("Draft event '%s' created from template '%s'.\n\n%s", event.Name, tpl.Name, formatEventSummary(event)),
		eventKeyboard(event, true, false))
}

package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/survey"
)

// handleNewDrive starts the drive questionnaire
func (b *Bot) handleNewDrive(message *tgbotapi.Message) {
	chatID := message.Chat.ID
	if !b.requireAdmin(chatID, message.From.ID, "Only admins can propose drives.") {
		return
	}
	if b.surveys == nil {
		b.reply(chatID, "The drive questionnaire is not configured.")
		return
	}

	prompt := b.surveys.Start(message.From.ID, chatID)
	b.logger.Info("Questionnaire started", zap.Int64("user_id", message.From.ID))
	b.sendSurveyPrompt(message.From.ID, prompt)
}

// sendSurveyPrompt shows the next questionnaire step
func (b *Bot) sendSurveyPrompt(userID int64, prompt survey.Prompt) {
	chatID := prompt.ChatID
	switch prompt.Kind {
	case survey.PromptPoll:
		poll := tgbotapi.NewPoll(chatID, prompt.Question.Question, prompt.Question.Options...)
		poll.IsAnonymous = false
		poll.AllowsMultipleAnswers = false

		sent, err := b.sendMessage(poll)
		if err != nil || sent.Poll == nil {
			b.reply(chatID, "Failed to send the question. Use /restart to try again.")
			return
		}
		if err := b.surveys.BindPoll(userID, sent.Poll.ID); err != nil {
			b.logger.Warn("Failed to bind poll", zap.Error(err), zap.Int64("user_id", userID))
		}
	case survey.PromptText:
		b.reply(chatID, prompt.Question.Question)
	case survey.PromptOther:
		b.reply(chatID, "Please type your answer:")
	case survey.PromptRevote:
		b.reply(chatID, "Please pick an option in the poll above.")
	case survey.PromptConfirm:
		var text strings.Builder
		text.WriteString("📝 Your Answers:\n")
		for _, e := range prompt.Summary {
			fmt.Fprintf(&text, "\n%s\n   ➥ %s", e.Question, e.Answer)
		}
		text.WriteString("\n\nPlease confirm your answers:")
		b.replyWithMarkup(chatID, text.String(), surveyConfirmKeyboard())
	}
}

func (b *Bot) answerSurveyPoll(pollID string, optionIDs []int) {
	userID, prompt, err := b.surveys.AnswerPoll(pollID, optionIDs)
	if errors.Is(err, survey.ErrUnknownPoll) {
		return
	}
	if err != nil {
		b.logger.Warn("Invalid poll answer",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.String("poll_id", pollID),
		)
		return
	}
	b.sendSurveyPrompt(userID, prompt)
}

func (b *Bot) handleSurveyText(chatID, userID int64, text string) {
	prompt, err := b.surveys.AnswerText(userID, text)
	if err != nil {
		b.logger.Warn("Unexpected questionnaire text", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Please answer the poll above.")
		return
	}
	b.sendSurveyPrompt(userID, prompt)
}

// confirmSurvey saves the finished questionnaire
func (b *Bot) confirmSurvey(chatID, userID int64) {
	if b.surveys == nil {
		b.reply(chatID, "Nothing to confirm.")
		return
	}

	resp, err := b.surveys.Confirm(userID)
	if errors.Is(err, survey.ErrNoRun) || errors.Is(err, survey.ErrNotConfirming) {
		b.reply(chatID, "Nothing to confirm.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to confirm questionnaire", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "Failed to save your answers. Please try again.")
		return
	}

	if b.responses != nil {
		path, err := b.responses.Save(resp)
		if err != nil {
			b.logger.Error("Failed to save questionnaire response",
				zap.Error(err),
				zap.Int64("user_id", userID),
				zap.String("response_id", resp.ID),
			)
			b.reply(chatID, "Failed to save your answers. Please start again with /new_drive.")
			return
		}
		b.logger.Info("Questionnaire response saved",
			zap.Int64("user_id", userID),
			zap.String("response_id", resp.ID),
			zap.String("path", path),
		)
	}

	b.reply(chatID, "✅ Answers confirmed and saved!")
}

func (b *Bot) restartSurvey(chatID, userID int64) {
	if b.surveys == nil {
		b.reply(chatID, "Nothing to restart.")
		return
	}
	prompt, err := b.surveys.Restart(userID)
	if err != nil {
		b.reply(chatID, "Nothing to restart. Use /new_drive to start the questionnaire.")
		return
	}
	b.reply(chatID, "Restarting survey...")
	b.sendSurveyPrompt(userID, prompt)
}

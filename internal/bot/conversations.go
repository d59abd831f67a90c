package bot

import (
	"context"
	"errors"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/models"
)

// handleConversation feeds input to the user's dialogue and replies with the next prompt
func (b *Bot) handleConversation(ctx context.Context, chatID int64, user *tgbotapi.User, input string) {
	userID := user.ID

	res, err := b.sessions.Advance(userID, input)
	var verr *conversation.ValidationError
	switch {
	case errors.As(err, &verr):
		b.logger.Debug("Invalid dialogue input",
			zap.Int64("user_id", userID),
			zap.Stringer("step", verr.Step),
			zap.Error(verr.Err),
		)
		b.reply(chatID, verr.Prompt)
		return
	case errors.Is(err, conversation.ErrNoSession):
		b.reply(chatID, "You have no dialogue in progress. Use /help to see available commands.")
		return
	case err != nil:
		b.logger.Error("Failed to advance dialogue", zap.Error(err), zap.Int64("user_id", userID))
		b.sessions.Cancel(userID)
		b.reply(chatID, "An error occurred while processing your answer. Please start again.")
		return
	}

	if !res.Done {
		b.sendStepPrompt(chatID, res)
		return
	}

	// Saving as a template asks for its name before the dialogue ends
	if res.Session.Flow == conversation.FlowCreateEvent {
		if action, err := res.Session.Answers.Confirmation(); err == nil && action == conversation.ConfirmTemplate {
			b.askTemplateName(chatID, userID)
			return
		}
	}

	session, err := b.sessions.Complete(userID)
	if err != nil {
		b.logger.Error("Failed to complete dialogue", zap.Error(err), zap.Int64("user_id", userID))
		b.reply(chatID, "An error occurred while processing your answer. Please start again.")
		return
	}

	switch session.Flow {
	case conversation.FlowCreateEvent:
		b.finishEventCreation(ctx, chatID, session)
	case conversation.FlowRegister:
		b.finishRegistration(ctx, chatID, user, session)
	case conversation.FlowSaveTemplate:
		b.finishTemplate(ctx, chatID, session)
	case conversation.FlowUpdateDrives:
		b.finishDriveUpdate(ctx, chatID, user, session)
	default:
		b.logger.Error("Completed dialogue has unknown flow",
			zap.Int64("user_id", userID),
			zap.Stringer("flow", session.Flow),
		)
	}
}

// sendStepPrompt asks the next question, with buttons where the step has fixed answers
func (b *Bot) sendStepPrompt(chatID int64, res *conversation.Result) {
	switch res.Session.Step {
	case conversation.StepConfirm:
		text := res.Prompt
		if event, err := res.Session.Answers.Event(); err == nil {
			text = formatEventSummary(event) + "\n\n" + res.Prompt
		}
		b.replyWithMarkup(chatID, text, confirmEventKeyboard())
	case conversation.StepConsent:
		b.replyWithMarkup(chatID, res.Prompt, consentKeyboard())
	default:
		b.reply(chatID, res.Prompt)
	}
}

func (b *Bot) finishEventCreation(ctx context.Context, chatID int64, session *conversation.Session) {
	action, err := session.Answers.Confirmation()
	if err != nil {
		b.logger.Error("Event dialogue finished without confirmation", zap.Error(err), zap.String("session_id", session.ID))
		b.reply(chatID, "An error occurred while creating the event. Please start again.")
		return
	}
	if action == conversation.ConfirmCancel {
		b.reply(chatID, "Event discarded.")
		return
	}

	event, err := session.Answers.Event()
	if err != nil {
		b.logger.Error("Failed to build event from answers", zap.Error(err), zap.String("session_id", session.ID))
		b.reply(chatID, "An error occurred while creating the event. Please start again.")
		return
	}

	id, ok := b.saveEvent(ctx, chatID, event)
	if !ok {
		return
	}

	log := b.logger.With(
		zap.Int64("event_id", id),
		zap.Int64("user_id", session.UserID),
		zap.String("session_id", session.ID),
	)

	if action == conversation.ConfirmDraft {
		log.Info("Event saved as draft")
		b.reply(chatID, fmt.Sprintf("Event '%s' saved as draft #%d. Publish it with /publish %d.", event.Name, id, id))
		return
	}

	if err := b.db.PublishEvent(ctx, id); err != nil {
		log.Error("Failed to publish event", zap.Error(err))
		b.reply(chatID, fmt.Sprintf("Event saved as draft #%d but publishing failed. Try /publish %d.", id, id))
		return
	}
	log.Info("Event created and published")
	b.reply(chatID, fmt.Sprintf(
		"Event '%s' scheduled for %s at %s created successfully! Users can now register using /register %d.",
		event.Name, event.DateString(), event.Time, id))
}

func (b *Bot) finishRegistration(ctx context.Context, chatID int64, user *tgbotapi.User, session *conversation.Session) {
	reg, err := session.Answers.Registration(user.ID, session.EventID)
	if err != nil {
		b.logger.Error("Failed to build registration from answers", zap.Error(err), zap.String("session_id", session.ID))
		b.reply(chatID, "An error occurred while registering. Please start again.")
		return
	}
	if !reg.ConsentAccepted {
		b.reply(chatID, "You must accept the consent to register.")
		return
	}

	reg.RegisteredAt = b.now().UTC()
	err = b.db.UpsertRegistration(ctx, reg)
	if errors.Is(err, models.ErrEventNotFound) {
		b.reply(chatID, "Invalid event. Use /events to see available events.")
		return
	}
	if err != nil {
		b.logger.Error("Failed to save registration",
			zap.Error(err),
			zap.Int64("user_id", reg.UserID),
			zap.Int64("event_id", reg.EventID),
		)
		b.reply(chatID, "Failed to save your registration. Please try again later.")
		return
	}

	b.logger.Info("Registration saved",
		zap.Int64("user_id", reg.UserID),
		zap.Int64("event_id", reg.EventID),
		zap.String("session_id", session.ID),
		zap.Int("drives", reg.Drives),
	)

	eventName := fmt.Sprintf("#%d", reg.EventID)
	if event, err := b.db.GetEvent(ctx, reg.EventID); err == nil {
		eventName = event.Name
	}
	b.reply(chatID, fmt.Sprintf("%s, you have been successfully registered for %d drive(s) in event %s!",
		displayName(user), reg.Drives, eventName))
}

func (b *Bot) finishDriveUpdate(ctx context.Context, chatID int64, user *tgbotapi.User, session *conversation.Session) {
	drives, changed, err := session.Answers.DriveChange()
	if err != nil {
		b.logger.Error("Drive update finished without an answer", zap.Error(err), zap.String("session_id", session.ID))
		b.reply(chatID, "An error occurred while updating your registration. Please start again.")
		return
	}
	if !changed {
		b.reply(chatID, "No changes have been made to your registration.")
		return
	}

	log := b.logger.With(
		zap.Int64("user_id", user.ID),
		zap.Int64("event_id", session.EventID),
		zap.String("session_id", session.ID),
	)

	reg, err := b.db.GetRegistration(ctx, user.ID, session.EventID)
	if errors.Is(err, models.ErrRegistrationNotFound) {
		b.reply(chatID, "You are no longer registered for this event. Use /register to sign up again.")
		return
	}
	if err != nil {
		log.Error("Failed to load registration", zap.Error(err))
		b.reply(chatID, "Failed to update your registration. Please try again later.")
		return
	}

	reg.Drives = drives
	if err := b.db.UpsertRegistration(ctx, *reg); err != nil {
		log.Error("Failed to update drive count", zap.Error(err))
		b.reply(chatID, "Failed to update your registration. Please try again later.")
		return
	}
	log.Info("Drive count updated", zap.Int("drives", drives))
	b.reply(chatID, fmt.Sprintf("Your number of drives has been updated to %d.", drives))
}

package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"eventbot/internal/conversation"
	"eventbot/internal/models"
)

// Commands shown in the Telegram menu
var (
	memberCommands = []tgbotapi.BotCommand{
		{Command: "events", Description: "Upcoming events"},
		{Command: "my", Description: "My registrations"},
		{Command: "register", Description: "Register for an event"},
		{Command: "unregister", Description: "Remove your registration"},
		{Command: "menu", Description: "Event menu"},
		{Command: "cancel", Description: "Cancel the current dialogue"},
		{Command: "help", Description: "Show help"},
	}

	adminCommands = []tgbotapi.BotCommand{
		{Command: "admin", Description: "Admin menu"},
		{Command: "create_event", Description: "Create an event"},
		{Command: "publish", Description: "Publish a draft event"},
		{Command: "participants", Description: "List participants of an event"},
		{Command: "start_event", Description: "Start an event and update drive counts"},
		{Command: "templates", Description: "List event templates"},
		{Command: "use_template", Description: "Create a draft event from a template"},
		{Command: "new_drive", Description: "Propose a drive (questionnaire)"},
	}
)

func memberMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Upcoming Events", "menu:events"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ My Registrations", "menu:my"),
		),
	)
}

func adminMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📅 Create Event", "admin:create"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 List Events", "admin:events"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗂 Templates", "admin:templates"),
		),
	)
}

// eventListKeyboard has one detail button per event
func eventListKeyboard(events []models.Event, prefix string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(events))
	for _, e := range events {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%s)", e.Name, e.DateString()),
				fmt.Sprintf("%s:%d", prefix, e.ID),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// eventKeyboard toggles between Register and Unregister for the viewing user
func eventKeyboard(e models.Event, admin, registered bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	switch {
	case registered:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Unregister", fmt.Sprintf("unregister:%d", e.ID)),
		))
	case e.Published:
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Register", fmt.Sprintf("register:%d", e.ID)),
		))
	}
	if admin {
		row := tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 View Registrations", fmt.Sprintf("regs:%d", e.ID)),
		)
		if !e.Published {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("📢 Publish", fmt.Sprintf("admin:publish:%d", e.ID)))
		}
		rows = append(rows, row)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// replyData encodes a button answer for step as "reply:<step>:<value>"
func replyData(step conversation.Step, value string) string {
	return fmt.Sprintf("reply:%s:%s", step, value)
}

func confirmEventKeyboard() tgbotapi.InlineKeyboardMarkup {
	step := conversation.StepConfirm
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Publish", replyData(step, string(conversation.ConfirmPublish))),
			tgbotapi.NewInlineKeyboardButtonData("Save as draft", replyData(step, string(conversation.ConfirmDraft))),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Save as Template", replyData(step, string(conversation.ConfirmTemplate))),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", replyData(step, string(conversation.ConfirmCancel))),
		),
	)
}

func consentKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, I accept", replyData(conversation.StepConsent, "yes")),
			tgbotapi.NewInlineKeyboardButtonData("No", replyData(conversation.StepConsent, "no")),
		),
	)
}

func surveyConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm ✅", "confirm:yes"),
			tgbotapi.NewInlineKeyboardButtonData("Restart 🔁", "confirm:restart"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel 🚫", "confirm:cancel"),
		),
	)
}

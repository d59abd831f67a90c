package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/models"
)

// sendMessage sends msg and logs transport failures
func (b *Bot) sendMessage(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b.api == nil {
		return tgbotapi.Message{}, nil // For testing
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error("Failed to send message", zap.Error(err))
	}
	return sent, err
}

// reply sends a plain text message
func (b *Bot) reply(chatID int64, text string) {
	b.sendMessage(tgbotapi.NewMessage(chatID, text))
}

// replyWithMarkup sends a text message with an inline keyboard
func (b *Bot) replyWithMarkup(chatID int64, text string, markup tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	b.sendMessage(msg)
}

func displayName(user *tgbotapi.User) string {
	if user == nil {
		return ""
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.UserName
	}
	return name
}

// formatEventLine renders an event as a single list line
func formatEventLine(e models.Event) string {
	line := fmt.Sprintf("%d. %s - %s %s", e.ID, e.Name, e.DateString(), e.Time)
	if e.LocationName != "" {
		line += " @ " + e.LocationName
	}
	if !e.Published {
		line += " (draft)"
	}
	return line
}

// formatEventDetail renders the full event card
func formatEventDetail(e models.Event, registrations int) string {
	var text strings.Builder
	fmt.Fprintf(&text, "%s (#%d)\n\n", e.Name, e.ID)
	fmt.Fprintf(&text, "Date: %s\n", e.DateString())
	fmt.Fprintf(&text, "Time: %s\n", e.Time)
	if e.LocationName != "" {
		fmt.Fprintf(&text, "Location: %s\n", e.LocationName)
	}
	if e.Coordinates != nil {
		fmt.Fprintf(&text, "Coordinates: %s\n", e.Coordinates)
	}
	if e.MinLevel != "" {
		fmt.Fprintf(&text, "Minimum level: %s\n", e.MinLevel)
	}
	fmt.Fprintf(&text, "Registered: %d", registrations)
	if !e.Published {
		text.WriteString("\n\nNot published yet.")
	}
	return text.String()
}

// formatEventSummary renders a drafted event before confirmation
func formatEventSummary(e models.Event) string {
	var text strings.Builder
	text.WriteString("New event:\n\n")
	fmt.Fprintf(&text, "Name: %s\n", e.Name)
	fmt.Fprintf(&text, "Date: %s\n", e.DateString())
	fmt.Fprintf(&text, "Time: %s\n", e.Time)
	fmt.Fprintf(&text, "Location: %s\n", orDash(e.LocationName))
	fmt.Fprintf(&text, "Coordinates: %s\n", orDash(e.Coordinates.String()))
	fmt.Fprintf(&text, "Minimum level: %s", orDash(e.MinLevel))
	return text.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

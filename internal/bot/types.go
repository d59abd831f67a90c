package bot

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/storage"
	"eventbot/internal/survey"
)

// telegramAPI is the subset of *tgbotapi.BotAPI the bot uses
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetWebhookInfo() (tgbotapi.WebhookInfo, error)
}

// Bot represents the Telegram bot wrapper
type Bot struct {
	api         telegramAPI
	token       string
	db          storage.Storage
	sessions    *conversation.Tracker
	surveys     *survey.Tracker // nil when no questionnaire is configured
	responses   *survey.Writer
	admins      map[int64]bool
	adminChatID int64
	logger      *zap.Logger
	now         func() time.Time
}

// Options holds the optional collaborators and admin settings of the bot
type Options struct {
	AdminUserIDs []int64
	AdminChatID  int64 // group whose administrators are bot admins

	Surveys   *survey.Tracker
	Responses *survey.Writer
}

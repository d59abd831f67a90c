package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/storage"
)

// NewBot creates a new Telegram bot
func NewBot(token string, db storage.Storage, sessions *conversation.Tracker, opts Options, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		logger.Error("Failed to create bot API", zap.Error(err))
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	logger.Info("Bot created", zap.String("bot_username", api.Self.UserName))

	return newBot(api, token, db, sessions, opts, logger), nil
}

func newBot(api telegramAPI, token string, db storage.Storage, sessions *conversation.Tracker, opts Options, logger *zap.Logger) *Bot {
	admins := make(map[int64]bool)
	for _, id := range opts.AdminUserIDs {
		admins[id] = true
	}

	return &Bot{
		api:         api,
		token:       token,
		db:          db,
		sessions:    sessions,
		surveys:     opts.Surveys,
		responses:   opts.Responses,
		admins:      admins,
		adminChatID: opts.AdminChatID,
		logger:      logger,
		now:         time.Now,
	}
}

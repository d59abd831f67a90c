package bot

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"eventbot/internal/conversation"
	"eventbot/internal/storage/stubs"
)

// fakeAPI records outgoing Telegram calls
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	members  map[int64]string // user ID -> chat member status
	polls    int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{members: make(map[int64]string)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if _, ok := c.(tgbotapi.SendPollConfig); ok {
		f.polls++
		return tgbotapi.Message{MessageID: len(f.sent), Poll: &tgbotapi.Poll{ID: fmt.Sprintf("poll-%d", f.polls)}}, nil
	}
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetChatMember(config tgbotapi.GetChatMemberConfig) (tgbotapi.ChatMember, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status, ok := f.members[config.UserID]
	if !ok {
		status = "member"
	}
	return tgbotapi.ChatMember{User: &tgbotapi.User{ID: config.UserID}, Status: status}, nil
}

func (f *fakeAPI) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) GetWebhookInfo() (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{}, nil
}

// texts returns the text of every sent message, in order
func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastText() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

func (f *fakeAPI) lastSent() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

var testNow = time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC)

const testAdminID = int64(1)

func newTestBot(t *testing.T, opts Options) (*Bot, *fakeAPI, *stubs.MockDB) {
	t.Helper()

	db := stubs.NewMockDB()
	api := newFakeAPI()
	if opts.AdminUserIDs == nil {
		opts.AdminUserIDs = []int64{testAdminID}
	}
	sessions := conversation.NewTracker(conversation.NewMemoryStore(time.Hour))

	b := newBot(api, "123456:TEST-TOKEN", db, sessions, opts, zap.NewNop())
	b.now = func() time.Time { return testNow }
	return b, api, db
}

// userMessage builds a private-chat message; texts starting with "/" carry a command entity
func userMessage(userID int64, text string) *tgbotapi.Message {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, FirstName: "Alex"},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return msg
}

func callback(userID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID, FirstName: "Alex"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID, Type: "private"}},
		Data:    data,
	}
}

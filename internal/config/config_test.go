package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnv sets every known variable, unset ones to empty
func setEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	for _, key := range []string{
		"TELEGRAM_BOT_TOKEN", "ADMIN_USER_IDS", "ADMIN_CHAT_ID", "WEBHOOK_MODE", "WEBHOOK_URL",
		"PORT", "STORAGE_BACKEND", "SQLITE_PATH", "CLICKHOUSE_HOST", "CLICKHOUSE_PORT",
		"CLICKHOUSE_DATABASE", "CLICKHOUSE_USER", "CLICKHOUSE_PASSWORD", "CLICKHOUSE_USE_TLS",
		"MONGO_URI", "MONGO_DATABASE", "SESSION_TTL", "SURVEY_FILE", "SURVEY_RESPONSES_DIR",
		"LOG_LEVEL", "LOG_FILE",
	} {
		t.Setenv(key, vars[key])
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setEnv(t, map[string]string{
		"TELEGRAM_BOT_TOKEN": "token",
		"ADMIN_USER_IDS":     "1, 2,",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, cfg.AdminUserIDs)
	assert.False(t, cfg.WebhookMode)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQLite, cfg.StorageBackend)
	assert.Equal(t, "eventbot.db", cfg.SQLitePath)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "responses", cfg.SurveyResponsesDir)
	assert.Empty(t, cfg.SurveyFile)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadFromEnv_Backends(t *testing.T) {
	setEnv(t, map[string]string{
		"TELEGRAM_BOT_TOKEN": "token",
		"ADMIN_CHAT_ID":      "-1001234",
		"STORAGE_BACKEND":    "clickhouse",
		"CLICKHOUSE_HOST":    "ch.local",
		"CLICKHOUSE_USE_TLS": "true",
		"SESSION_TTL":        "2h",
	})

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, int64(-1001234), cfg.AdminChatID)
	assert.Equal(t, "ch.local", cfg.ClickHouseHost)
	assert.Equal(t, 9000, cfg.ClickHousePort)
	assert.Equal(t, "default", cfg.ClickHouseDatabase)
	assert.True(t, cfg.ClickHouseUseTLS)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)

	setEnv(t, map[string]string{
		"TELEGRAM_BOT_TOKEN": "token",
		"ADMIN_USER_IDS":     "1",
		"STORAGE_BACKEND":    "mongo",
		"MONGO_URI":          "mongodb://localhost:27017",
	})
	cfg, err = LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "eventbot", cfg.MongoDatabase)
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"missing token", map[string]string{"ADMIN_USER_IDS": "1"}},
		{"missing admins", map[string]string{"TELEGRAM_BOT_TOKEN": "t"}},
		{"bad admin id", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1,abc"}},
		{"bad admin chat", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_CHAT_ID": "group"}},
		{"webhook without url", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "WEBHOOK_MODE": "true"}},
		{"unknown backend", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "STORAGE_BACKEND": "redis"}},
		{"clickhouse without host", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "STORAGE_BACKEND": "clickhouse"}},
		{"bad clickhouse port", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "STORAGE_BACKEND": "clickhouse", "CLICKHOUSE_HOST": "h", "CLICKHOUSE_PORT": "x"}},
		{"mongo without uri", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "STORAGE_BACKEND": "mongo"}},
		{"bad ttl", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "SESSION_TTL": "soon"}},
		{"negative ttl", map[string]string{"TELEGRAM_BOT_TOKEN": "t", "ADMIN_USER_IDS": "1", "SESSION_TTL": "-1m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnv(t, tt.vars)
			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}

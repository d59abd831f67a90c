package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
	BackendMongo      = "mongo"
	BackendMemory     = "memory"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string

	// Admins are listed explicitly, taken from a group's administrators, or both
	AdminUserIDs []int64
	AdminChatID  int64

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)
	Port        string

	StorageBackend string
	SQLitePath     string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	// MongoDB configuration
	MongoURI      string
	MongoDatabase string

	SessionTTL time.Duration

	// Drive questionnaire, disabled when SurveyFile is empty
	SurveyFile         string
	SurveyResponsesDir string

	LogLevel string
	LogFile  string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	if idsStr := os.Getenv("ADMIN_USER_IDS"); idsStr != "" {
		for _, idStr := range strings.Split(idsStr, ",") {
			idStr = strings.TrimSpace(idStr)
			if idStr == "" {
				continue
			}
			id, err := strconv.ParseInt(idStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ADMIN_USER_IDS: %s", idStr)
			}
			config.AdminUserIDs = append(config.AdminUserIDs, id)
		}
	}

	if chatStr := os.Getenv("ADMIN_CHAT_ID"); chatStr != "" {
		chatID, err := strconv.ParseInt(strings.TrimSpace(chatStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID: %w", err)
		}
		config.AdminChatID = chatID
	}

	if len(config.AdminUserIDs) == 0 && config.AdminChatID == 0 {
		return nil, fmt.Errorf("ADMIN_USER_IDS or ADMIN_CHAT_ID is required")
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = os.Getenv("WEBHOOK_URL")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}

	config.Port = getEnv("PORT", "8080")

	config.StorageBackend = getEnv("STORAGE_BACKEND", BackendSQLite)
	switch config.StorageBackend {
	case BackendSQLite:
		config.SQLitePath = getEnv("SQLITE_PATH", "eventbot.db")
	case BackendClickHouse:
		if err := loadClickHouse(config); err != nil {
			return nil, err
		}
	case BackendMongo:
		config.MongoURI = os.Getenv("MONGO_URI")
		if config.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI is required when STORAGE_BACKEND is mongo")
		}
		config.MongoDatabase = getEnv("MONGO_DATABASE", "eventbot")
	case BackendMemory:
	default:
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q (expected sqlite, clickhouse, mongo or memory)", config.StorageBackend)
	}

	config.SessionTTL = 30 * time.Minute
	if ttlStr := os.Getenv("SESSION_TTL"); ttlStr != "" {
		ttl, err := time.ParseDuration(ttlStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		if ttl < 0 {
			return nil, fmt.Errorf("SESSION_TTL must not be negative")
		}
		config.SessionTTL = ttl
	}

	config.SurveyFile = os.Getenv("SURVEY_FILE")
	config.SurveyResponsesDir = getEnv("SURVEY_RESPONSES_DIR", "responses")

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFile = os.Getenv("LOG_FILE")

	return config, nil
}

func loadClickHouse(config *Config) error {
	config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if config.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required when STORAGE_BACKEND is clickhouse")
	}

	portStr := os.Getenv("CLICKHOUSE_PORT")
	if portStr == "" {
		config.ClickHousePort = 9000 // Default ClickHouse native port
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		config.ClickHousePort = port
	}

	config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

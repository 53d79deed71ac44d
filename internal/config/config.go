package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Telegram
	BotToken    string
	APIBaseURL  string
	PollTimeout time.Duration

	// Admin
	AdminID       int64
	ExtraAdminIDs []int64
	AdminAPIToken string

	// Payment
	UPIID  string
	QRURLs string // プランID→QR画像URLのJSON（空の場合はテキスト案内のみ）

	// Content
	BucketChannels string // バケット→チャンネルIDのJSON
	Retention      time.Duration
	ScanLimit      int

	// QR fetch
	QRFetchTimeout time.Duration
	QRMaxSize      int64

	// Rate Limit
	RateLimitActions int // コンテンツ操作のレート（req/min/user）

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.BotToken = os.Getenv("BOT_TOKEN")
	if cfg.BotToken == "" {
		missing = append(missing, "BOT_TOKEN")
	}

	adminID := os.Getenv("ADMIN_ID")
	if adminID == "" {
		missing = append(missing, "ADMIN_ID")
	} else {
		id, err := strconv.ParseInt(adminID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_ID must be a numeric user ID: %w", err)
		}
		cfg.AdminID = id
	}

	cfg.AdminAPIToken = os.Getenv("ADMIN_API_TOKEN")
	if cfg.AdminAPIToken == "" {
		missing = append(missing, "ADMIN_API_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	extraAdmins, err := parseIDList(os.Getenv("EXTRA_ADMIN_IDS"))
	if err != nil {
		return nil, fmt.Errorf("EXTRA_ADMIN_IDS is invalid: %w", err)
	}
	cfg.ExtraAdminIDs = extraAdmins

	cfg.APIBaseURL = getEnvString("API_BASE_URL", "https://api.telegram.org")
	cfg.PollTimeout = getEnvDuration("POLL_TIMEOUT", 30*time.Second)
	cfg.UPIID = getEnvString("UPI_ID", "")
	cfg.QRURLs = getEnvString("QR_URLS", "")
	cfg.BucketChannels = getEnvString("BUCKET_CHANNELS", "")
	cfg.Retention = getEnvDuration("RETENTION", time.Hour)
	cfg.ScanLimit = getEnvInt("SCAN_LIMIT", 2000)
	cfg.QRFetchTimeout = getEnvDuration("QR_FETCH_TIMEOUT", 10*time.Second)
	cfg.QRMaxSize = getEnvInt64("QR_MAX_SIZE", 5242880)
	cfg.RateLimitActions = getEnvInt("RATE_LIMIT_ACTIONS", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	return cfg, nil
}

// IsAdmin はユーザーIDが管理者（主管理者または追加管理者）かを返す。
func (c *Config) IsAdmin(userID int64) bool {
	if userID == c.AdminID {
		return true
	}
	for _, id := range c.ExtraAdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// parseIDList はカンマ区切りの数値IDリストをパースする。
func parseIDList(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid user ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

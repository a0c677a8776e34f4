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
	// Auth
	AuthSecret string
	TokenTTL   time.Duration

	// Storage
	DatabaseURL string // 空の場合はファイルストアのみを使う
	DataFile    string

	// Cache
	CacheTTL      time.Duration
	RedisURL      string // 空の場合はプロセス内キャッシュを使う
	SweepInterval time.Duration

	// Providers
	JikanBaseURL    string
	AniListURL      string
	DexBaseURL      string
	NewsFeedURL     string
	ProviderTimeout time.Duration
	ProviderMaxSize int64

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.AuthSecret = os.Getenv("AUTH_SECRET")
	if cfg.AuthSecret == "" {
		missing = append(missing, "AUTH_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 14*24*time.Hour)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.DataFile = getEnvString("DATA_FILE", "data/users.json")
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
	cfg.RedisURL = os.Getenv("REDIS_URL")
	cfg.SweepInterval = getEnvDuration("CACHE_SWEEP_INTERVAL", cfg.CacheTTL)
	cfg.JikanBaseURL = strings.TrimRight(getEnvString("JIKAN_BASE_URL", "https://api.jikan.moe/v4"), "/")
	cfg.AniListURL = getEnvString("ANILIST_URL", "https://graphql.anilist.co")
	cfg.DexBaseURL = strings.TrimRight(getEnvString("DEX_BASE_URL", "https://api.animedex.live"), "/")
	cfg.NewsFeedURL = getEnvString("NEWS_FEED_URL", "https://www.animenewsnetwork.com/all/rss.xml")
	cfg.ProviderTimeout = getEnvDuration("PROVIDER_TIMEOUT", 12*time.Second)
	cfg.ProviderMaxSize = getEnvInt64("PROVIDER_MAX_SIZE", 5242880)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", false)
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5173")

	return cfg, nil
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

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
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

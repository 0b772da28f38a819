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
	// OAuth
	GoogleClientID string // IDトークン検証のaudience

	// Gemini
	GeminiAPIKey  string // 未設定の場合、AIエンドポイントは呼び出し時に設定エラーを返す
	GeminiModel   string
	GeminiTimeout time.Duration

	// Session
	SessionMaxAge int // 秒

	// Server
	ServerPort string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigins []string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// GEMINI_API_KEYは意図的に必須としない（未設定でも認証系エンドポイントは動作させる）。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	origins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if origins == "" {
		missing = append(missing, "CORS_ALLOWED_ORIGINS")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.CORSAllowedOrigins = parseOrigins(origins)
	if len(cfg.CORSAllowedOrigins) == 0 {
		return nil, fmt.Errorf("CORS_ALLOWED_ORIGINS contains no valid origins: %q", origins)
	}

	// Optional fields with defaults
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.0-flash-exp")
	cfg.GeminiTimeout = getEnvDuration("GEMINI_TIMEOUT", 60*time.Second)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	// 許可オリジンがすべてhttpsの場合のみ本番環境とみなし、Secure Cookieを有効にする
	cfg.CookieSecure = allHTTPS(cfg.CORSAllowedOrigins)

	return cfg, nil
}

// parseOrigins はカンマ区切りのオリジンリストをパースする。
// 空要素は無視し、前後の空白を取り除く。
func parseOrigins(s string) []string {
	parts := strings.Split(s, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// allHTTPS は全オリジンがhttpsスキームかどうかを返す。
func allHTTPS(origins []string) bool {
	for _, o := range origins {
		if !strings.HasPrefix(o, "https://") {
			return false
		}
	}
	return len(origins) > 0
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

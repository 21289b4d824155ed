package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// バックエンド種別
const (
	BackendPostgres = "postgres"
	BackendFirebase = "firebase"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Backend
	Backend string

	// Database (postgres バックエンド)
	DatabaseURL    string
	ChangeListener bool

	// Firebase (firebase バックエンド)
	FirebaseAPIKey          string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	FirebaseAuthURL         string
	FirebaseTokenURL        string

	// Session
	SessionFile   string
	SessionMaxAge int

	// Identity
	PasswordMinLength   int
	ProfileFallbackName string
	ProvisionTimeout    time.Duration

	// Rate Limit
	RateLimitSignIn int

	// Server
	ServerPort        string
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// どの変数が必須かはAGENDA_BACKENDの値によって変わる。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Backend = strings.ToLower(getEnvString("AGENDA_BACKEND", BackendPostgres))
	if cfg.Backend != BackendPostgres && cfg.Backend != BackendFirebase {
		return nil, fmt.Errorf("unsupported AGENDA_BACKEND: %q", cfg.Backend)
	}

	// Required fields
	var missing []string

	switch cfg.Backend {
	case BackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case BackendFirebase:
		cfg.FirebaseAPIKey = os.Getenv("FIREBASE_API_KEY")
		if cfg.FirebaseAPIKey == "" {
			missing = append(missing, "FIREBASE_API_KEY")
		}
		cfg.FirebaseProjectID = os.Getenv("FIREBASE_PROJECT_ID")
		if cfg.FirebaseProjectID == "" {
			missing = append(missing, "FIREBASE_PROJECT_ID")
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.ChangeListener = getEnvBool("CHANGE_LISTENER", true)
	cfg.FirebaseCredentialsFile = getEnvString("FIREBASE_CREDENTIALS_FILE", "")
	cfg.FirebaseAuthURL = getEnvString("FIREBASE_AUTH_URL", "")
	cfg.FirebaseTokenURL = getEnvString("FIREBASE_TOKEN_URL", "")
	cfg.SessionFile = getEnvString("SESSION_FILE", ".agenda_session")
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 30*86400)
	cfg.PasswordMinLength = getEnvInt("PASSWORD_MIN_LENGTH", 6)
	cfg.ProfileFallbackName = getEnvString("PROFILE_FALLBACK_NAME", "ユーザー")
	cfg.ProvisionTimeout = getEnvDuration("PROVISION_TIMEOUT", 10*time.Second)
	cfg.RateLimitSignIn = getEnvInt("RATE_LIMIT_SIGN_IN", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:8081")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

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

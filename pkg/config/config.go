package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	DatabaseURL        string
	JWTSecret          string
	JWTAccessExpiry    time.Duration
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURI  string
	FrontendURL        string

	// AI provider: "gemini", "ollama" or "auto"
	AIProvider    string
	GeminiApiKey  string
	GeminiModel   string
	OllamaBaseURL string
	OllamaModel   string

	// Base64 32-byte key for encrypting stored OAuth tokens; empty disables encryption
	TokenEncryptionKey  string
	FirebaseCredentials string

	DigestSchedule            []string // wall-clock "HH:MM" times
	DigestLookback            time.Duration
	DigestClassifyConcurrency int
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	lookback := getDuration("DIGEST_LOOKBACK", 24*time.Hour)
	jwtExpiry := getDuration("JWT_EXPIRES_IN", 7*24*time.Hour)

	concurrency := 4
	if v := os.Getenv("DIGEST_CLASSIFY_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			concurrency = parsed
		}
	}

	return &Config{
		Port:                      getEnv("PORT", "8080"),
		DatabaseURL:               getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=email_agent port=5432 sslmode=disable"),
		JWTSecret:                 getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTAccessExpiry:           jwtExpiry,
		GoogleClientID:            getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:        getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURI:         getEnv("GOOGLE_REDIRECT_URI", "http://localhost:8080/api/email-agent/oauth/gmail/callback"),
		FrontendURL:               getEnv("FRONTEND_URL", "http://localhost:3001"),
		AIProvider:                getEnv("AI_PROVIDER", "auto"),
		GeminiApiKey:              getEnv("GEMINI_API_KEY", ""),
		GeminiModel:               getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL:             getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:               getEnv("OLLAMA_MODEL", "llama3"),
		TokenEncryptionKey:        getEnv("TOKEN_ENCRYPTION_KEY", ""),
		FirebaseCredentials:       getEnv("FIREBASE_CREDENTIALS", ""),
		DigestSchedule:            splitList(getEnv("DIGEST_SCHEDULE", "08:00,20:00")),
		DigestLookback:            lookback,
		DigestClassifyConcurrency: concurrency,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration accepts Go durations plus a whole-day form such as "7d"
func getDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	if days, ok := strings.CutSuffix(v, "d"); ok {
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
		return defaultValue
	}
	if parsed, err := time.ParseDuration(v); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

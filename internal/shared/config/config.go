package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	AllowedOrigin   string
	CORSAllowOrigin []string
	PublicAPIKey    string

	AuthMode      string
	AuthJWTSecret string
	AuthURL       string

	DatabaseURL        string
	UsageStore         string
	RedisURL           string
	SummaryDailyLimit  int
	QuestionDailyLimit int

	ObjectStoreType string
	LocalStoreDir   string
	PublicBaseURL   string
	DocsBucket      string
	SharesBucket    string
	AWSRegion       string
	S3Prefix        string
	S3Endpoint      string
	AWSAccessKeyID  string
	AWSSecretKey    string
	SigningSecret   string
	SignedURLTTL    time.Duration

	LLMProvider        string
	LLMModel           string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	GeminiAPIKey       string
	TranscribeProvider string
	TranscribeModel    string
	OCRProvider        string

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	allowedOrigin := getEnv("ALLOWED_ORIGIN", "http://localhost:5173")

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		AllowedOrigin:   allowedOrigin,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", allowedOrigin)),
		PublicAPIKey:    getEnv("PUBLIC_API_KEY", ""),

		AuthMode:      normalizeAuthMode(getEnv("AUTH_MODE", "jwt")),
		AuthJWTSecret: getEnv("AUTH_JWT_SECRET", ""),
		AuthURL:       strings.TrimRight(getEnv("AUTH_URL", ""), "/"),

		DatabaseURL:        dbURL,
		UsageStore:         normalizeUsageStore(getEnv("USAGE_STORE", "auto")),
		RedisURL:           getEnv("REDIS_URL", ""),
		SummaryDailyLimit:  getEnvInt("SUMMARY_DAILY_LIMIT", 50),
		QuestionDailyLimit: getEnvInt("QUESTION_DAILY_LIMIT", 100),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		DocsBucket:      getEnv("DOCS_BUCKET", "docs"),
		SharesBucket:    getEnv("SHARES_BUCKET", "shares"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		AWSAccessKeyID:  getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SigningSecret:   getEnv("SIGNING_SECRET", ""),
		SignedURLTTL:    getEnvDuration("SIGNED_URL_TTL", time.Hour),

		LLMProvider:        strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:           getEnv("LLM_MODEL", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      strings.TrimRight(getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"), "/"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		TranscribeProvider: strings.ToLower(getEnv("TRANSCRIBE_PROVIDER", "openai")),
		TranscribeModel:    getEnv("TRANSCRIBE_MODEL", "gpt-4o-mini-transcribe"),
		OCRProvider:        strings.ToLower(getEnv("OCR_PROVIDER", "none")),

		RateLimitRPS:   getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst: getEnvInt("RATE_LIMIT_BURST", 20),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val < 0 {
		log.Printf("config %s invalid int %q; using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseFloat(raw, 64)
	if err != nil || val < 0 {
		log.Printf("config %s invalid float %q; using %v", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config %s invalid duration %q; using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	case "gcs":
		return "gcs"
	default:
		return "local"
	}
}

func normalizeAuthMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "remote":
		return "remote"
	default:
		return "jwt"
	}
}

func normalizeUsageStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "memory", "postgres", "redis":
		return strings.ToLower(strings.TrimSpace(raw))
	default:
		return "auto"
	}
}

// IsDevLike reports whether the environment allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	switch c.Env {
	case "dev", "local":
		return true
	default:
		return false
	}
}

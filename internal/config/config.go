package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string

	// Gemini API
	GeminiAPIKey    string
	EmbeddingModel  string
	GenerationModel string
	GeminiTier      string

	// Vector index
	IndexPath string
	TopK      int

	// Uploads
	TempDir     string
	MaxFileSize int64

	// Query limits
	MaxQuestionLen int

	// External call resilience
	EmbedTimeoutSec    int
	GenerateTimeoutSec int
	MaxRetries         int

	// Redis (HTTP rate limiting; optional)
	RedisURL        string
	RedisPassword   string
	RedisDB         int
	RateLimitReqs   int
	RateLimitWindow int

	// Tracing (optional; empty endpoint disables)
	OTLPEndpoint string
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:8080"), ","),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		EmbeddingModel:  getEnv("GOOGLE_EMBEDDINGS_MODEL", "text-embedding-004"),
		GenerationModel: getEnv("GEMINI_GENERATION_MODEL", "gemini-2.0-flash"),
		GeminiTier:      getEnv("GEMINI_TIER", "free"),

		IndexPath: getEnv("INDEX_PATH", "data/index.db"),
		TopK:      getEnvInt("TOP_K", 3),

		TempDir:     getEnv("TEMP_DIR", ""),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 52428800), // 50MB

		MaxQuestionLen: getEnvInt("MAX_QUESTION_LEN", 500),

		EmbedTimeoutSec:    getEnvInt("EMBED_TIMEOUT", 30),
		GenerateTimeoutSec: getEnvInt("GENERATE_TIMEOUT", 60),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),

		RedisURL:        getEnv("REDIS_URL", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),
	}

	// Validate required fields
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.TopK <= 0 {
		return nil, fmt.Errorf("TOP_K must be positive, got %d", cfg.TopK)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

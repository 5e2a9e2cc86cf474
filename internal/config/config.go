package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// LLM backends (all optional; the mock backend works without keys)
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AnthropicAPIKey string
	LocalLLMURL     string

	// Page capture
	SnapshotScale float64

	// Storage
	RecentFilesKeep int

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Env:             getEnvOrDefault("ENV", "development"),
		DatabaseURL:     mustGetEnv("DATABASE_URL"),
		RedisURL:        mustGetEnv("REDIS_URL"),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", ""),
		GeminiAPIKey:    getEnvOrDefault("GEMINI_API_KEY", ""),
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		LocalLLMURL:     getEnvOrDefault("LOCAL_LLM_URL", "http://localhost:1234/v1"),
		SnapshotScale:   getEnvAsFloatOrDefault("SNAPSHOT_SCALE", 2.0),
		RecentFilesKeep: getEnvAsIntOrDefault("RECENT_FILES_KEEP", 10),
		FrontendURL:     getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

package config

import (
	"flag"
	"os"
	"strings"
)

type Config struct {
	Addr           string
	DatabaseURL    string
	LLMBaseURL     string
	LLMAPIKey      string
	LLMModel       string
	AllowedOrigins []string
	LogLevel       string
}

// Load reads configuration from flags, falling back to environment
// variables, falling back to defaults.
func Load() *Config {
	addr := flag.String("addr", getEnv("ADDR", ":8000"), "HTTP listen address")
	databaseURL := flag.String("database-url", getEnv("DATABASE_URL", "chatrelay.db"),
		"postgres:// URL or SQLite file path")
	llmBaseURL := flag.String("llm-base-url", getEnv("LLM_BASE_URL", "http://localhost:11434/v1/"),
		"OpenAI-compatible completion endpoint")
	llmAPIKey := flag.String("llm-api-key", getEnv("OPENAI_API_KEY", "unused"), "API key for the model endpoint")
	llmModel := flag.String("llm-model", getEnv("LLM_MODEL", "llama3.1:8b"), "model name")
	origins := flag.String("allowed-origins", getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		"comma-separated CORS origins, * for any")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level: debug|info|warn|error")
	flag.Parse()

	return &Config{
		Addr:           *addr,
		DatabaseURL:    *databaseURL,
		LLMBaseURL:     *llmBaseURL,
		LLMAPIKey:      *llmAPIKey,
		LLMModel:       *llmModel,
		AllowedOrigins: splitOrigins(*origins),
		LogLevel:       *logLevel,
	}
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

package openai

import (
	"fmt"
	"log"
	"os"
	"strconv"
)

// Config holds OpenAI-compatible LLM configuration for one model tier.
type Config struct {
	APIKey      string   // API key for authentication
	BaseURL     string   // Base URL (default: https://api.openai.com/v1)
	Model       string   // Model name
	Temperature *float32 // Response creativity 0.0-2.0 (nil = API default)
	MaxTokens   int      // Max tokens in response, 0 = no limit
	MaxRetries  int      // HTTP-level retries after any failed call (default: 1)
	HTTPTimeout int      // HTTP client timeout in seconds (default: 30 fast, 60 strong)
	TierName    string   // "fast" or "strong", for logging only
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required for tier %q", c.TierName)
	}
	if c.Model == "" {
		return fmt.Errorf("model cannot be empty for tier %q", c.TierName)
	}
	if c.Temperature != nil && (*c.Temperature < 0.0 || *c.Temperature > 2.0) {
		return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", *c.Temperature)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", c.MaxRetries)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
		log.Printf("[Config] WARNING: invalid value for %s=%q, using default %d", key, v, defaultValue)
	}
	return defaultValue
}

// FastConfigFromEnv builds the fast/cheap tier config.
// ANTHROPIC_API_KEY is required per spec §6; the base URL and model follow
// the same OpenAI-compatible wire protocol as the teacher's client, since
// Anthropic exposes an OpenAI-compatible messages endpoint.
func FastConfigFromEnv() (*Config, error) {
	cfg := &Config{
		APIKey:      getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		BaseURL:     getEnvOrDefault("LLM_BASE_URL", "https://api.anthropic.com/v1"),
		Model:       getEnvOrDefault("LLM_FAST_MODEL", "claude-haiku-4-5"),
		MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 4096),
		MaxRetries:  getEnvIntOrDefault("LLM_MAX_RETRIES", 1),
		HTTPTimeout: getEnvIntOrDefault("LLM_HTTP_TIMEOUT", 30),
		TierName:    "fast",
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StrongConfigFromEnv builds the strong/expensive tier config.
// FALLBACK_MODEL (spec §6) is reused as the strong-tier model override so a
// single extra env var covers both "model to escalate to" and "model to use
// when the fast model errors out repeatedly".
func StrongConfigFromEnv() (*Config, error) {
	model := getEnvOrDefault("LLM_STRONG_MODEL", "")
	if model == "" {
		model = getEnvOrDefault("FALLBACK_MODEL", "claude-sonnet-4-5")
	}
	cfg := &Config{
		APIKey:      getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		BaseURL:     getEnvOrDefault("LLM_BASE_URL", "https://api.anthropic.com/v1"),
		Model:       model,
		MaxTokens:   getEnvIntOrDefault("LLM_MAX_TOKENS", 4096),
		MaxRetries:  getEnvIntOrDefault("LLM_MAX_RETRIES", 1),
		HTTPTimeout: getEnvIntOrDefault("LLM_HTTP_TIMEOUT", 60),
		TierName:    "strong",
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

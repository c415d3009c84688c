// Package config loads process configuration: the .env file search-path
// algorithm (kept from the teacher's pkg/config + internal/config) plus the
// spec §6 environment variable list.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file.
//
// Search order (stops at the first file found):
//  1. Explicit paths passed as arguments (legacy / test use).
//  2. Directory of the running executable — stable after deployment.
//  3. Current working directory — fallback for `go run`.
//
// If no .env is found anywhere, the program continues with system env vars.
func LoadEnv(paths ...string) {
	if len(paths) > 0 {
		if err := godotenv.Load(paths...); err != nil {
			log.Printf("[Config] No .env file at specified path(s), using system environment variables")
		}
		return
	}

	candidates := resolveEnvCandidates()
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err != nil {
				log.Printf("[Config] Failed to load .env from %s: %v", p, err)
			} else {
				log.Printf("[Config] Loaded .env from %s", p)
			}
			return
		}
	}

	log.Printf("[Config] No .env file found (searched: %v), using system environment variables", candidates)
}

func resolveEnvCandidates() []string {
	var candidates []string
	seen := map[string]bool{}

	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			candidates = append(candidates, p)
		}
	}

	if exe, err := os.Executable(); err == nil {
		if real, err := filepath.EvalSymlinks(exe); err == nil {
			exe = real
		}
		dir := filepath.Dir(exe)
		for i := 0; i <= 3; i++ {
			add(filepath.Join(dir, ".env"))
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		add(filepath.Join(cwd, ".env"))
	}

	return candidates
}

// EnvFilePath returns a human-readable description of where .env will be
// loaded from. Useful for startup log messages.
func EnvFilePath() string {
	for _, p := range resolveEnvCandidates() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return fmt.Sprintf("(not found; searched %v)", resolveEnvCandidates())
}

// Settings bundles the spec §6 "recognised" environment variables.
type Settings struct {
	AnthropicAPIKey string
	ToolsEndpoint   string // GREEN_AGENT_MCP_URL
	FallbackModel   string
	ToolTimeout     int // seconds
	TaskTimeout     int // seconds
	CacheDir        string
}

// LoadSettings reads the spec §6 environment variable list with its
// documented defaults.
func LoadSettings() Settings {
	return Settings{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		ToolsEndpoint:   os.Getenv("GREEN_AGENT_MCP_URL"),
		FallbackModel:   os.Getenv("FALLBACK_MODEL"),
		ToolTimeout:     getEnvIntOrDefault("TOOL_TIMEOUT", 10),
		TaskTimeout:     getEnvIntOrDefault("TASK_TIMEOUT", 120),
		CacheDir:        getEnvOrDefault("RL_CACHE_DIR", "/app"),
	}
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

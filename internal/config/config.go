// Package config loads ambient, rarely-changing settings from a .env file
// and defines the per-run knobs the CLI derives from its flags. The split
// mirrors spec.md §5: ambient settings are process-wide, RunConfig is the
// "per-target context object... passed to all components; no cross-target
// leakage."
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Ambient holds settings that rarely change between runs: the optional LLM
// explainer's credentials, and process-wide defaults the CLI falls back to
// when a flag is absent.
type Ambient struct {
	ExplainEnabled   bool
	ExplainAPIKey    string
	ExplainModel     string
	DefaultRateLimit int
	DefaultTimeout   time.Duration
	DefaultSpecialDB string
}

// Load reads a .env file if present — a missing file is not an error, per
// the teacher's getEnvOrDefault fallback philosophy, rather than the
// teacher's own Load() which hard-fails when godotenv can't find one — and
// layers environment variables over the defaults below.
func Load() *Ambient {
	_ = godotenv.Load()

	return &Ambient{
		ExplainEnabled:   os.Getenv("ARJUN_EXPLAIN") == "1",
		ExplainAPIKey:    os.Getenv("ARJUN_EXPLAIN_API_KEY"),
		ExplainModel:     getEnvOrDefault("ARJUN_EXPLAIN_MODEL", "googleai/gemini-1.5-flash"),
		DefaultRateLimit: getEnvIntOrDefault("ARJUN_RATE_LIMIT", 9999),
		DefaultTimeout:   time.Duration(getEnvIntOrDefault("ARJUN_TIMEOUT_SECONDS", 15)) * time.Second,
		DefaultSpecialDB: getEnvOrDefault("ARJUN_SPECIAL_DB", "db/special.json"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return def
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// RunConfig is the per-target context object spec.md §5 requires: every
// component reads its knobs from here, never from a global.
type RunConfig struct {
	Threads          int
	ChunkSize        int
	Delay            time.Duration
	Stable           bool
	Stealth          bool
	RateLimit        int
	Timeout          time.Duration
	DisableRedirects bool
	Include          string
	IncludeMap       map[string]string
	Headers          map[string]string
}

// Normalize applies spec.md §6's derived-flag rules: stable mode or a
// nonzero delay forces the pool to one worker; an unset chunk size
// defaults to 250 for GET and 500 for every other method.
func (c *RunConfig) Normalize(method string) {
	if c.Stable || c.Delay > 0 {
		c.Threads = 1
	}
	if c.Threads < 1 {
		c.Threads = 1
	}
	if c.ChunkSize == 0 {
		if method == "GET" {
			c.ChunkSize = 250
		} else {
			c.ChunkSize = 500
		}
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultsWhenEnvAbsent(t *testing.T) {
	t.Setenv("ARJUN_EXPLAIN", "")
	t.Setenv("ARJUN_RATE_LIMIT", "")
	t.Setenv("ARJUN_TIMEOUT_SECONDS", "")

	ambient := Load()
	assert.False(t, ambient.ExplainEnabled)
	assert.Equal(t, 9999, ambient.DefaultRateLimit)
	assert.Equal(t, 15*time.Second, ambient.DefaultTimeout)
}

func TestLoadHonorsEnvOverrides(t *testing.T) {
	t.Setenv("ARJUN_EXPLAIN", "1")
	t.Setenv("ARJUN_RATE_LIMIT", "50")

	ambient := Load()
	assert.True(t, ambient.ExplainEnabled)
	assert.Equal(t, 50, ambient.DefaultRateLimit)
}

func TestNormalizeForcesSingleWorkerUnderStable(t *testing.T) {
	rc := &RunConfig{Threads: 5, Stable: true}
	rc.Normalize("GET")
	assert.Equal(t, 1, rc.Threads)
}

func TestNormalizeDefaultsChunkSizeByMethod(t *testing.T) {
	rc := &RunConfig{Threads: 5}
	rc.Normalize("GET")
	assert.Equal(t, 250, rc.ChunkSize)

	rc2 := &RunConfig{Threads: 5}
	rc2.Normalize("JSON")
	assert.Equal(t, 500, rc2.ChunkSize)
}

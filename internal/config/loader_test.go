package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 5, cfg.Pipeline.MaxNegotiationRounds)
	assert.Equal(t, 3, cfg.Pipeline.MaxReplanAttempts)
	assert.Equal(t, 95, cfg.Pipeline.ApprovalCoverage)
	assert.InDelta(t, 0.6, cfg.Pipeline.SimilarityThreshold, 1e-9)
	require.NoError(t, cfg.Validate())
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "dualplan.yaml")

	content := `
server:
  port: "9090"
pipeline:
  timeout: 2m
  max_negotiation_rounds: 3
models:
  repair: "gemini-2.5-pro"
cache:
  ttl: 30m
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(content), 0o644))

	cfg := Defaults()
	require.NoError(t, loadYAML(&cfg, yamlPath))

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 2*time.Minute, cfg.Pipeline.Timeout)
	assert.Equal(t, 3, cfg.Pipeline.MaxNegotiationRounds)
	assert.Equal(t, "gemini-2.5-pro", cfg.Models.Repair)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	// Unchanged fields keep defaults
	assert.Equal(t, "claude-sonnet-4-5", cfg.Models.Feasibility)
	assert.Equal(t, 3, cfg.Pipeline.MaxReplanAttempts)
}

func TestLoadYAMLMissingFile(t *testing.T) {
	cfg := Defaults()
	assert.NoError(t, loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")))
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline: [unterminated"), 0o644))

	cfg := Defaults()
	assert.Error(t, loadYAML(&cfg, path))
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "dualplan.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: \"9090\"\n"), 0o644))

	t.Setenv("DUALPLAN_PORT", "7070")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("DUALPLAN_PIPELINE_TIMEOUT", "90s")
	t.Setenv("DUALPLAN_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFrom(yamlPath)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Server.Port)
	assert.Equal(t, "sk-ant-test", cfg.Providers.AnthropicKey)
	assert.Equal(t, 90*time.Second, cfg.Pipeline.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.HasProvider())
}

func TestValidateClampsBounds(t *testing.T) {
	cfg := Defaults()
	cfg.Pipeline.MaxNegotiationRounds = 12
	cfg.Pipeline.MaxReplanAttempts = 9
	cfg.Pipeline.ApprovalCoverage = 140
	cfg.Providers.RetryAttempts = 0

	require.NoError(t, cfg.Validate())

	assert.Equal(t, MaxNegotiationRounds, cfg.Pipeline.MaxNegotiationRounds)
	assert.Equal(t, MaxReplanAttempts, cfg.Pipeline.MaxReplanAttempts)
	assert.Equal(t, 100, cfg.Pipeline.ApprovalCoverage)
	assert.Equal(t, 1, cfg.Providers.RetryAttempts)
}

func TestValidateRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }},
		{"zero timeout", func(c *Config) { c.Pipeline.Timeout = 0 }},
		{"threshold above one", func(c *Config) { c.Pipeline.SimilarityThreshold = 1.5 }},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"zero lru", func(c *Config) { c.Cache.LRUSize = 0 }},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Defaults()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

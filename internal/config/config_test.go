package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9090"
redis_addr: "redis:6379"
ai:
  endpoint: "http://scorer.internal/adjust"
fatigue:
  total_per_hour: 10
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "http://scorer.internal/adjust", cfg.AI.Endpoint)
	assert.Equal(t, 10, cfg.Fatigue.TotalPerHour)
	// Unset fields keep defaults.
	assert.Equal(t, "rules.yaml", cfg.RulesPath)
	assert.Equal(t, 2, cfg.Fatigue.PerSourcePerHour)
	assert.Equal(t, 23, cfg.DND.StartHour)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{{ not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPMEMO_DIR", dir)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, filepath.Join(dir, "store.sqlite3"), cfg.DBPath)
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.Equal(t, DefaultFirstStageK, cfg.FirstStageK)
	assert.InDelta(t, DefaultThreshold, cfg.Threshold, 1e-9)
	assert.Equal(t, DefaultClusterCount, cfg.ClusterCount)
	assert.InDelta(t, DefaultDecayDays, cfg.RecencyDecayDays, 1e-9)
	assert.Equal(t, DefaultPerGroupLimit, cfg.PerGroupLimit)
	assert.Equal(t, DefaultTotalLimit, cfg.TotalLimit)

	// The data directory is created on load.
	_, err = os.Stat(filepath.Join(dir, "logs"))
	assert.NoError(t, err)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPMEMO_DIR", dir)

	content := `
[logging]
level = "debug"

[search]
top_k = 25
threshold = 0.5
enable_clustering = true
cluster_count = 3

[rerank]
decay_days = 30.0

[groups]
min_confidence = 0.4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0644))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 25, cfg.TopK)
	assert.InDelta(t, 0.5, cfg.Threshold, 1e-9)
	assert.True(t, cfg.EnableClustering)
	assert.Equal(t, 3, cfg.ClusterCount)
	assert.InDelta(t, 30.0, cfg.RecencyDecayDays, 1e-9)
	assert.InDelta(t, 0.4, cfg.MinConfidence, 1e-9)
	// Untouched sections keep their defaults.
	assert.Equal(t, DefaultFirstStageK, cfg.FirstStageK)
}

func TestLoadConfigEnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPMEMO_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("[search]\ntop_k = 25\n"), 0644))

	t.Setenv("DEEPMEMO_TOP_K", "7")
	t.Setenv("DEEPMEMO_LOG_LEVEL", "warn")
	t.Setenv("DEEPMEMO_ENABLE_CLUSTERING", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.TopK)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.True(t, cfg.EnableClustering)
}

func TestLoadConfigBadFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DEEPMEMO_DIR", dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"),
		[]byte("not valid toml ["), 0644))

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DBPath:           "/tmp/db",
			TopK:             10,
			FirstStageK:      50,
			Threshold:        0.3,
			ClusterCount:     5,
			RecencyDecayDays: 90,
			FocusOriginal:    0.6,
			FocusLexical:     0.4,
			FrequencyDamping: 10,
			PerGroupLimit:    10,
			TotalLimit:       20,
			MinConfidence:    0.3,
		}
	}

	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty db path", func(c *Config) { c.DBPath = "  " }},
		{"zero top_k", func(c *Config) { c.TopK = 0 }},
		{"negative first_stage_k", func(c *Config) { c.FirstStageK = -1 }},
		{"threshold above one", func(c *Config) { c.Threshold = 1.5 }},
		{"zero cluster count", func(c *Config) { c.ClusterCount = 0 }},
		{"zero decay", func(c *Config) { c.RecencyDecayDays = 0 }},
		{"negative focus weight", func(c *Config) { c.FocusLexical = -0.1 }},
		{"zero damping", func(c *Config) { c.FrequencyDamping = 0 }},
		{"zero total limit", func(c *Config) { c.TotalLimit = 0 }},
		{"min confidence above one", func(c *Config) { c.MinConfidence = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	t.Parallel()
	cfg := Default()
	assert.Equal(t, 1883, cfg.Port)
	assert.Equal(t, 300, cfg.Timeout)
	assert.Equal(t, 5000, cfg.PollInterval)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.NoError(t, cfg.Validate())
}

func TestReadConfigCreatesMissingFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := ReadConfig(path)
	require.ErrorIs(t, err, ErrConfigNotFound)

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "default config should have been written")

	cfg, err := ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1883, cfg.Port)
}

func TestReadConfigFormats(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "json",
			file:    "config.json",
			content: `{"port": 1885, "user": "user", "password": "pass1", "poll_interval": 250, "timeout": 0}`,
		},
		{
			name:    "yaml",
			file:    "config.yaml",
			content: "port: 1885\nuser: user\npassword: pass1\npoll_interval: 250\ntimeout: 0\n",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			cfg, err := ReadConfig(path)
			require.NoError(t, err)
			assert.Equal(t, 1885, cfg.Port)
			assert.Equal(t, "user", cfg.User)
			assert.Equal(t, "pass1", cfg.Password)
			assert.Equal(t, 250, cfg.PollInterval)
			assert.Equal(t, 0, cfg.Timeout, "an explicit zero timeout disables idle teardown")
		})
	}
}

func TestReadConfigInvalid(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := ReadConfig(path)
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too large", func(c *Config) { c.Port = 70000 }},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }},
		{"mongo without host", func(c *Config) { c.Store.Type = "mongo" }},
		{"unknown store", func(c *Config) { c.Store.Type = "redis" }},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true }},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m4xw311/bachmcp/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points HOME and the working directory at fresh temp dirs so that a
// developer's own ~/.bachmcp does not leak into the test.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	wd := t.TempDir()
	t.Chdir(wd)
	return wd
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:3001", cfg.Incoming.Addr())
	assert.Equal(t, "127.0.0.1:3000", cfg.Outgoing.Addr())
	assert.Equal(t, 500, cfg.QueueCapacity)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoadConfigProjectOverridesDefaults(t *testing.T) {
	wd := isolate(t)
	require.NoError(t, os.MkdirAll(filepath.Join(wd, ".bachmcp"), 0o755))
	yaml := []byte("outgoing:\n  port: 4000\npoll_interval: 100ms\nqueue_capacity: 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(wd, ".bachmcp", "config.yaml"), yaml, 0o644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Outgoing.Port)
	assert.Equal(t, "127.0.0.1", cfg.Outgoing.Host, "absent keys keep the default")
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 8, cfg.QueueCapacity)
}

func TestLoadConfigExplicitFileAndEnv(t *testing.T) {
	wd := isolate(t)
	path := filepath.Join(wd, "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("incoming:\n  port: 5001\n"), 0o644))
	t.Setenv(EnvIncomingPort, "6001")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvSkillFile, "/opt/bach/skill.md")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 6001, cfg.Incoming.Port, "environment wins over files")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/opt/bach/skill.md", cfg.SkillFile)
}

func TestLoadConfigDotEnv(t *testing.T) {
	wd := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(wd, ".env"), []byte("BACH_QUEUE_CAPACITY=42\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv(EnvQueueCapacity) })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.QueueCapacity)
}

func TestLoadConfigRejectsBadEnv(t *testing.T) {
	isolate(t)
	t.Setenv(EnvOutgoingPort, "three-thousand")

	_, err := LoadConfig("")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too large", func(c *Config) { c.Outgoing.Port = 70000 }},
		{"negative port", func(c *Config) { c.Incoming.Port = -1 }},
		{"empty host", func(c *Config) { c.Incoming.Host = "" }},
		{"zero capacity", func(c *Config) { c.QueueCapacity = 0 }},
		{"zero poll interval", func(c *Config) { c.PollInterval = 0 }},
		{"negative step delay", func(c *Config) { c.StepDelay = -time.Second }},
		{"zero snapshot timeout", func(c *Config) { c.SnapshotTimeout = 0 }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
		})
	}
}

func TestGetToolsetFallsBackToDefault(t *testing.T) {
	cfg := Default()
	cfg.Toolsets = append(cfg.Toolsets, Toolset{Name: "readonly", Tools: []string{"get*", "dump"}})

	ts, err := cfg.GetToolset("readonly")
	require.NoError(t, err)
	assert.Equal(t, "readonly", ts.Name)

	ts, err = cfg.GetToolset("missing")
	require.NoError(t, err)
	assert.Equal(t, "default", ts.Name)

	cfg.Toolsets = nil
	_, err = cfg.GetToolset("")
	assert.Error(t, err)
}

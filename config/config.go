package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/m4xw311/bachmcp/errors"
	"gopkg.in/yaml.v3"
)

// Endpoint is a host/port pair for one of the two TCP channels.
type Endpoint struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the endpoint in host:port form.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

type FilesystemAccess struct {
	Hidden   []string `yaml:"hidden"`
	ReadOnly []string `yaml:"read_only"`
}

type Toolset struct {
	Name  string   `yaml:"name"`
	Tools []string `yaml:"tools"`
}

type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

type Config struct {
	// Incoming is where the bridge listens for the engine's replies.
	Incoming Endpoint `yaml:"incoming"`
	// Outgoing is where the engine accepts commands.
	Outgoing Endpoint `yaml:"outgoing"`

	IdleInterval  time.Duration `yaml:"idle_interval"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	QueueCapacity int           `yaml:"queue_capacity"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	MaxLineBytes  int           `yaml:"max_line_bytes"`
	ListPrefixes  []string      `yaml:"list_prefixes"`

	QueryTimeout time.Duration `yaml:"query_timeout"`
	StepDelay    time.Duration `yaml:"step_delay"`
	MemoryFile   string        `yaml:"memory_file"`
	MetricsAddr  string        `yaml:"metrics_addr"`

	// SkillFile is served as the bach://skill resource. When it does not
	// exist the built-in guide is served instead.
	SkillFile string `yaml:"skill_file"`
	// SnapshotDir receives score_snapshot images. The engine writes them, so
	// the directory is passed to it as an absolute path.
	SnapshotDir     string        `yaml:"snapshot_dir"`
	SnapshotTimeout time.Duration `yaml:"snapshot_timeout"`

	AllowedCommands  []string         `yaml:"allowed_commands"`
	FilesystemAccess FilesystemAccess `yaml:"filesystem_access"`
	Toolsets         []Toolset        `yaml:"toolsets"`
	Log              Log              `yaml:"log"`
}

// Default returns the configuration used when no file overrides a key.
// The ports match the engine patch: it listens on 3000 and dials back to 3001.
func Default() *Config {
	return &Config{
		Incoming:        Endpoint{Host: "127.0.0.1", Port: 3001},
		Outgoing:        Endpoint{Host: "127.0.0.1", Port: 3000},
		IdleInterval:    200 * time.Millisecond,
		PollInterval:    250 * time.Millisecond,
		QueueCapacity:   500,
		DialTimeout:     2 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxLineBytes:    4 << 20,
		ListPrefixes:    []string{"roll"},
		QueryTimeout:    15 * time.Second,
		StepDelay:       50 * time.Millisecond,
		MemoryFile:      filepath.Join(".bachmcp", "memory.json"),
		SkillFile:       filepath.Join(".bachmcp", "BACH_SKILL.md"),
		SnapshotDir:     filepath.Join(".bachmcp", "screenshots"),
		SnapshotTimeout: 10 * time.Second,
		FilesystemAccess: FilesystemAccess{
			Hidden: []string{".bachmcp", ".bachmcp/**"},
		},
		Toolsets: []Toolset{{Name: "default", Tools: []string{"*"}}},
		Log: Log{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// LoadConfig loads configuration from the user's home directory and the current
// working directory, with the latter taking precedence. A non-empty explicit
// path is applied last among the files. Environment variables (optionally
// sourced from a .env file) override everything.
func LoadConfig(explicit string) (*Config, error) {
	cfg := Default()

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".bachmcp", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".bachmcp", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	if explicit != "" {
		if err := loadFromFile(explicit, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading config file %s", explicit)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Keys present in the file replace the current values; absent keys keep
	// whatever the previous layer set.
	return yaml.Unmarshal(data, cfg)
}

// Validate rejects values the bridge cannot run with.
func (c *Config) Validate() error {
	for name, ep := range map[string]Endpoint{"incoming": c.Incoming, "outgoing": c.Outgoing} {
		if ep.Host == "" {
			return errors.Wrapf(errors.ErrInvalidConfig, "%s.host is empty", name)
		}
		if ep.Port < 0 || ep.Port > 65535 {
			return errors.Wrapf(errors.ErrInvalidConfig, "%s.port %d out of range", name, ep.Port)
		}
	}
	if c.QueueCapacity <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "queue_capacity must be > 0, got %d", c.QueueCapacity)
	}
	if c.MaxLineBytes <= 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "max_line_bytes must be > 0, got %d", c.MaxLineBytes)
	}
	durations := map[string]time.Duration{
		"idle_interval":    c.IdleInterval,
		"poll_interval":    c.PollInterval,
		"dial_timeout":     c.DialTimeout,
		"write_timeout":    c.WriteTimeout,
		"query_timeout":    c.QueryTimeout,
		"snapshot_timeout": c.SnapshotTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			return errors.Wrapf(errors.ErrInvalidConfig, "%s must be > 0, got %s", name, d)
		}
	}
	if c.StepDelay < 0 {
		return errors.Wrapf(errors.ErrInvalidConfig, "step_delay must not be negative")
	}
	return nil
}

// GetToolset finds a toolset by name. Returns the "default" toolset if the
// named one is not found or if an empty name is provided.
func (c *Config) GetToolset(name string) (*Toolset, error) {
	if name == "" {
		name = "default"
	}
	for _, ts := range c.Toolsets {
		if ts.Name == name {
			return &ts, nil
		}
	}
	if name == "default" {
		return nil, errors.New("mandatory 'default' toolset not found in configuration")
	}
	return c.GetToolset("default")
}

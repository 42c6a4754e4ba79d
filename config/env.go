package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/m4xw311/bachmcp/errors"
)

// Environment variables recognised on top of the YAML layers.
const (
	EnvIncomingHost  = "BACH_INCOMING_HOST"
	EnvIncomingPort  = "BACH_INCOMING_PORT"
	EnvOutgoingHost  = "BACH_OUTGOING_HOST"
	EnvOutgoingPort  = "BACH_OUTGOING_PORT"
	EnvQueueCapacity = "BACH_QUEUE_CAPACITY"
	EnvPollInterval  = "BACH_POLL_INTERVAL"
	EnvLogLevel      = "BACH_LOG_LEVEL"
	EnvLogFile       = "BACH_LOG_FILE"
	EnvMetricsAddr   = "BACH_METRICS_ADDR"
	EnvSkillFile     = "BACH_SKILL_FILE"
	EnvSnapshotDir   = "BACH_SNAPSHOT_DIR"
)

// applyEnv loads ./.env when present (existing process variables win) and
// copies recognised variables into cfg.
func applyEnv(cfg *Config) error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return errors.Wrapf(err, "error loading .env")
		}
	}

	String(EnvIncomingHost, &cfg.Incoming.Host)
	String(EnvOutgoingHost, &cfg.Outgoing.Host)
	String(EnvLogLevel, &cfg.Log.Level)
	String(EnvLogFile, &cfg.Log.File)
	String(EnvMetricsAddr, &cfg.MetricsAddr)
	String(EnvSkillFile, &cfg.SkillFile)
	String(EnvSnapshotDir, &cfg.SnapshotDir)

	if err := Int(EnvIncomingPort, &cfg.Incoming.Port); err != nil {
		return err
	}
	if err := Int(EnvOutgoingPort, &cfg.Outgoing.Port); err != nil {
		return err
	}
	if err := Int(EnvQueueCapacity, &cfg.QueueCapacity); err != nil {
		return err
	}
	return Duration(EnvPollInterval, &cfg.PollInterval)
}

// String overwrites dst when key is set to a non-blank value.
func String(key string, dst *string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dst = val
	}
}

// Int overwrites dst when key is set. A value that is not an integer is an
// error rather than a silent fallback, since a typo in a port would otherwise
// point the bridge at the wrong socket.
func Int(key string, dst *int) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "%s=%q is not an integer", key, val)
	}
	*dst = n
	return nil
}

// Duration overwrites dst when key is set to a Go duration string.
func Duration(key string, dst *time.Duration) error {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidConfig, "%s=%q is not a duration", key, val)
	}
	*dst = d
	return nil
}

// Package landconfig loads the engine's environment-driven configuration:
// five tuning knobs governing tick rate, recording cadence, join handshake
// timeout, and dirty-tracking/sync mode, plus the ambient settings every
// deployment needs (log level/format, metrics namespace, otel exporter
// endpoint). Values are read from the process environment over a set of
// defaults, with github.com/joho/godotenv optionally loading a local .env
// file first for dev.
package landconfig

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultEnableDirtyTracking = true
	DefaultUseSnapshotForSync  = true
	DefaultTickPeriod          = 50 * time.Millisecond
	DefaultRecordingFlushEvery = 60
	DefaultJoinTimeout         = 10 * time.Second

	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsNamespace = "landkeeper"
)

// Config is the engine's resolved runtime configuration.
type Config struct {
	// EnableDirtyTracking toggles the StateTree's per-field dirty recorder.
	EnableDirtyTracking bool
	// UseSnapshotForSync selects the combined single-walk snapshot/diff
	// path. The engine currently implements only that path regardless of
	// this flag's value (see DESIGN.md); it is still loaded and carried so
	// a future alternate path has a place to read it from.
	UseSnapshotForSync bool
	// TickPeriod is the per-land tick rate.
	TickPeriod time.Duration
	// RecordingFlushEvery is the number of frames a Recorder buffers
	// before flushing to its Sink.
	RecordingFlushEvery int
	// JoinTimeout is the join handshake deadline.
	JoinTimeout time.Duration

	// LogLevel is one of debug/info/warn/error.
	LogLevel string
	// LogFormat is one of json/text/zerolog.
	LogFormat string
	// MetricsNamespace is the Prometheus metrics namespace.
	MetricsNamespace string
	// OTelExporterEndpoint is the OTLP exporter endpoint. Empty disables
	// export (spans are still created against the global no-op provider).
	OTelExporterEndpoint string
}

// Load reads configuration from the process environment, having first
// attempted to load dotenvPath into the environment (a missing or
// unreadable .env file is not an error: it logs a warning and continues
// with whatever the environment already has).
func Load(dotenvPath string) (Config, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil {
			slog.Warn("landconfig: could not load .env file, continuing with existing environment", "path", dotenvPath, "error", err)
		}
	}

	cfg := Config{
		EnableDirtyTracking: getEnvBool("ENABLE_DIRTY_TRACKING", DefaultEnableDirtyTracking),
		UseSnapshotForSync:  getEnvBool("USE_SNAPSHOT_FOR_SYNC", DefaultUseSnapshotForSync),
		TickPeriod:          getEnvDuration("TICK_PERIOD_MS", DefaultTickPeriod),
		RecordingFlushEvery: getEnvInt("RECORDING_FLUSH_EVERY", DefaultRecordingFlushEvery),
		JoinTimeout:         getEnvDuration("JOIN_TIMEOUT_MS", DefaultJoinTimeout),

		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		LogFormat:            getEnv("LOG_FORMAT", DefaultLogFormat),
		MetricsNamespace:     getEnv("METRICS_NAMESPACE", DefaultMetricsNamespace),
		OTelExporterEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations that would leave the engine in an
// unusable state.
func (c Config) Validate() error {
	if c.TickPeriod <= 0 {
		return fmt.Errorf("landconfig: TICK_PERIOD_MS must be positive, got %s", c.TickPeriod)
	}
	if c.RecordingFlushEvery <= 0 {
		return fmt.Errorf("landconfig: RECORDING_FLUSH_EVERY must be positive, got %d", c.RecordingFlushEvery)
	}
	if c.JoinTimeout <= 0 {
		return fmt.Errorf("landconfig: JOIN_TIMEOUT_MS must be positive, got %s", c.JoinTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("landconfig: LOG_LEVEL must be one of debug/info/warn/error, got %q", c.LogLevel)
	}
	return nil
}

// Digest returns a stable, short fingerprint of the configuration fields
// that affect deterministic replay (everything except logging/metrics/otel,
// which have no bearing on state evolution). A Recorder stamps this into
// replay.Metadata.LandConfig so a Verifier can detect "replaying under a
// different ruleset" before a single tick runs.
func (c Config) Digest() string {
	canonical := strings.Join([]string{
		"dirtyTracking=" + strconv.FormatBool(c.EnableDirtyTracking),
		"snapshotForSync=" + strconv.FormatBool(c.UseSnapshotForSync),
		"tickPeriodMs=" + strconv.FormatInt(c.TickPeriod.Milliseconds(), 10),
		"recordingFlushEvery=" + strconv.Itoa(c.RecordingFlushEvery),
		"joinTimeoutMs=" + strconv.FormatInt(c.JoinTimeout.Milliseconds(), 10),
	}, ";")
	sum := xxhash.Sum64String(canonical)
	return strconv.FormatUint(sum, 16)
}

func getEnv(key, defaultValue string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return defaultValue
	}
}

func getEnvInt(key string, defaultValue int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration parses a millisecond-count environment variable (the
// documented *_MS options are plain integers, not Go duration strings)
// into a time.Duration.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

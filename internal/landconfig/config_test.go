package landconfig

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENABLE_DIRTY_TRACKING", "USE_SNAPSHOT_FOR_SYNC", "TICK_PERIOD_MS",
		"RECORDING_FLUSH_EVERY", "JOIN_TIMEOUT_MS", "LOG_LEVEL", "LOG_FORMAT",
		"METRICS_NAMESPACE", "OTEL_EXPORTER_OTLP_ENDPOINT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadAppliesDefaultsWithNoEnv(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnableDirtyTracking != DefaultEnableDirtyTracking {
		t.Errorf("EnableDirtyTracking = %v, want %v", cfg.EnableDirtyTracking, DefaultEnableDirtyTracking)
	}
	if cfg.TickPeriod != DefaultTickPeriod {
		t.Errorf("TickPeriod = %v, want %v", cfg.TickPeriod, DefaultTickPeriod)
	}
	if cfg.RecordingFlushEvery != DefaultRecordingFlushEvery {
		t.Errorf("RecordingFlushEvery = %v, want %v", cfg.RecordingFlushEvery, DefaultRecordingFlushEvery)
	}
	if cfg.JoinTimeout != DefaultJoinTimeout {
		t.Errorf("JoinTimeout = %v, want %v", cfg.JoinTimeout, DefaultJoinTimeout)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, DefaultLogLevel)
	}
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENABLE_DIRTY_TRACKING", "false")
	t.Setenv("TICK_PERIOD_MS", "100")
	t.Setenv("RECORDING_FLUSH_EVERY", "30")
	t.Setenv("JOIN_TIMEOUT_MS", "5000")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.EnableDirtyTracking {
		t.Error("EnableDirtyTracking = true, want false")
	}
	if cfg.TickPeriod != 100*time.Millisecond {
		t.Errorf("TickPeriod = %v, want 100ms", cfg.TickPeriod)
	}
	if cfg.RecordingFlushEvery != 30 {
		t.Errorf("RecordingFlushEvery = %d, want 30", cfg.RecordingFlushEvery)
	}
	if cfg.JoinTimeout != 5*time.Second {
		t.Errorf("JoinTimeout = %v, want 5s", cfg.JoinTimeout)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "verbose")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for an invalid LOG_LEVEL")
	}
}

func TestLoadRejectsNonPositiveTickPeriod(t *testing.T) {
	clearEnv(t)
	t.Setenv("TICK_PERIOD_MS", "0")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error for a zero TICK_PERIOD_MS")
	}
}

func TestDigestIsStableAndSensitiveToChanges(t *testing.T) {
	clearEnv(t)
	a, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatal("expected identical configs to produce identical digests")
	}

	t.Setenv("TICK_PERIOD_MS", "75")
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if a.Digest() == c.Digest() {
		t.Fatal("expected a changed TickPeriod to change the digest")
	}
}

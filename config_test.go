package avespeed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigMatchesDefaultTunings(t *testing.T) {
	cfg := DefaultConfig()
	if errs := validateConfig(&cfg); len(errs) > 0 {
		t.Fatalf("default config is invalid: %v", errs)
	}
	if got, want := cfg.Tunings(), DefaultTunings(); got != want {
		t.Errorf("DefaultConfig().Tunings() = %+v, want %+v", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"speed too slow", func(c *Config) { c.Playback.Speed = 0.1 }, "playback.speed"},
		{"speed too fast", func(c *Config) { c.Playback.Speed = 4 }, "playback.speed"},
		{"zero skip", func(c *Config) { c.Playback.SkipSeconds = 0 }, "playback.skip_seconds"},
		{"stop timeout too long", func(c *Config) { c.Playback.StopTimeoutMs = 60000 }, "playback.stop_timeout_ms"},
		{"video sleep zero", func(c *Config) { c.Playback.VideoSleepMs = 0 }, "playback.video_sleep_ms"},
		{"volume above 1", func(c *Config) { c.Audio.Volume = 1.5 }, "audio.volume"},
		{"huge chunk", func(c *Config) { c.Audio.ChunkMs = 20000 }, "audio.chunk_ms"},
		{"band wider than chunk", func(c *Config) { c.Audio.ContinuityMs = 1000 }, "audio.continuity_ms"},
		{"sleep fraction zero", func(c *Config) { c.Audio.SleepFraction = 0 }, "audio.sleep_fraction"},
		{"unknown quality", func(c *Config) { c.Audio.StretchQuality = "ultra" }, "audio.stretch_quality"},
		{"unknown capture format", func(c *Config) { c.Capture.Format = "gif" }, "capture.format"},
		{"jpeg quality zero", func(c *Config) { c.Capture.JPEGQuality = 0 }, "capture.jpeg_quality"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			errs := validateConfig(&cfg)
			if len(errs) != 1 {
				t.Fatalf("got %d errors, want 1: %v", len(errs), errs)
			}
			if cerr, ok := errs[0].(configError); !ok || cerr.field != tt.field {
				t.Errorf("error %v, want one for field %s", errs[0], tt.field)
			}
		})
	}
}

func TestApplyDefaultsForInvalidFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Playback.Speed = 9
	cfg.Audio.ChunkMs = 5
	cfg.Audio.Volume = 0.3
	cfg.Audio.StretchQuality = "nope"
	cfg.Capture.Format = "tiff"

	errs := validateConfig(&cfg)
	if len(errs) < 4 {
		t.Fatalf("expected at least 4 errors, got %d: %v", len(errs), errs)
	}
	applyDefaultsForInvalidFields(&cfg, errs)

	if errs := validateConfig(&cfg); len(errs) > 0 {
		t.Fatalf("still invalid after applying defaults: %v", errs)
	}
	if cfg.Playback.Speed != 1.0 || cfg.Audio.ChunkMs != 1000 || cfg.Capture.Format != "png" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
	if cfg.Audio.Volume != 0.3 {
		t.Errorf("valid volume replaced: %v", cfg.Audio.Volume)
	}
}

func TestConfigLoaderFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `playback:
  speed: 1.5
  skip_seconds: 5
  loop: true
audio:
  chunk_ms: 500
  stretch_quality: best
capture:
  format: bmp
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AVESPEED_AUDIO_POLL_MS", "50")

	loader := NewConfigLoader(dir)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loader.ConfigFile() == "" {
		t.Error("config file not picked up")
	}
	if cfg.Playback.Speed != 1.5 || cfg.Playback.SkipSeconds != 5 || !cfg.Playback.Loop {
		t.Errorf("playback section = %+v", cfg.Playback)
	}
	tunings := cfg.Tunings()
	if tunings.ChunkDuration != 500*time.Millisecond || tunings.StretchQuality != QualityBest {
		t.Errorf("audio tunings = %+v", tunings)
	}
	if tunings.AudioPollInterval != 50*time.Millisecond {
		t.Errorf("env override ignored: poll interval %s", tunings.AudioPollInterval)
	}
	if tunings.StopTimeout != time.Second {
		t.Errorf("unset field lost its default: %s", tunings.StopTimeout)
	}
	if got := cfg.CapturePath("frame_7"); got != filepath.Join(".", "frame_7.bmp") {
		t.Errorf("CapturePath = %q", got)
	}
	if loader.Get() != cfg {
		t.Error("Get() doesn't return the loaded config")
	}
}

func TestConfigLoaderInvalidValues(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("playback:\n  speed: 8\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := NewConfigLoader(dir).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Playback.Speed != 1.0 {
		t.Errorf("invalid speed not replaced by default: %v", cfg.Playback.Speed)
	}
}

func TestConfigLoaderMissingFile(t *testing.T) {
	cfg, err := NewConfigLoader(t.TempDir()).Load()
	if err != nil {
		t.Fatalf("a missing config file must not be an error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Errorf("got %+v, want the defaults", cfg)
	}
}

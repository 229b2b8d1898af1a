package avespeed

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds the user configurable playback settings. It can be loaded
// from $XDG_CONFIG_HOME/avespeed/config.yaml and AVESPEED_* environment
// variables (e.g. AVESPEED_AUDIO_CHUNK_MS) through a [ConfigLoader].
type Config struct {
	Playback struct {
		Speed            float64 `mapstructure:"speed"`
		SkipSeconds      float64 `mapstructure:"skip_seconds"`
		Loop             bool    `mapstructure:"loop"`
		StopTimeoutMs    int     `mapstructure:"stop_timeout_ms"`
		SeekStopMs       int     `mapstructure:"seek_stop_timeout_ms"`
		SpeedSettleMs    int     `mapstructure:"speed_settle_ms"`
		VideoSleepMs     int     `mapstructure:"video_sleep_ms"`
		ResizeDebounceMs int     `mapstructure:"resize_debounce_ms"`
	} `mapstructure:"playback"`
	Audio struct {
		Volume         float64 `mapstructure:"volume"`
		Muted          bool    `mapstructure:"muted"`
		ChunkMs        int     `mapstructure:"chunk_ms"`
		PollMs         int     `mapstructure:"poll_ms"`
		ContinuityMs   int     `mapstructure:"continuity_ms"`
		SleepFraction  float64 `mapstructure:"sleep_fraction"`
		StretchQuality string  `mapstructure:"stretch_quality"`
	} `mapstructure:"audio"`
	Capture struct {
		Directory   string `mapstructure:"directory"`
		Format      string `mapstructure:"format"`
		JPEGQuality int    `mapstructure:"jpeg_quality"`
	} `mapstructure:"capture"`
}

// DefaultConfig returns the configuration matching [DefaultTunings]().
func DefaultConfig() Config {
	var cfg Config
	cfg.Playback.Speed = 1.0
	cfg.Playback.SkipSeconds = 10
	cfg.Playback.StopTimeoutMs = 1000
	cfg.Playback.SeekStopMs = 500
	cfg.Playback.SpeedSettleMs = 200
	cfg.Playback.VideoSleepMs = 10
	cfg.Playback.ResizeDebounceMs = 100
	cfg.Audio.Volume = 1.0
	cfg.Audio.ChunkMs = 1000
	cfg.Audio.PollMs = 100
	cfg.Audio.ContinuityMs = 200
	cfg.Audio.SleepFraction = 0.9
	cfg.Audio.StretchQuality = QualityFastest
	cfg.Capture.Directory = "."
	cfg.Capture.Format = "png"
	cfg.Capture.JPEGQuality = 90
	return cfg
}

// Tunings converts the configuration into player tunings.
func (cfg Config) Tunings() Tunings {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return Tunings{
		VideoSleepSlice:    ms(cfg.Playback.VideoSleepMs),
		AudioPollInterval:  ms(cfg.Audio.PollMs),
		ChunkDuration:      ms(cfg.Audio.ChunkMs),
		ContinuityBand:     ms(cfg.Audio.ContinuityMs),
		ChunkSleepFraction: cfg.Audio.SleepFraction,
		StopTimeout:        ms(cfg.Playback.StopTimeoutMs),
		SeekStopTimeout:    ms(cfg.Playback.SeekStopMs),
		SpeedSettleDelay:   ms(cfg.Playback.SpeedSettleMs),
		ResizeDebounce:     ms(cfg.Playback.ResizeDebounceMs),
		SkipSeconds:        cfg.Playback.SkipSeconds,
		StretchQuality:     cfg.Audio.StretchQuality,
	}
}

// CapturePath returns where a frame capture with the given base name
// (without extension) should be saved.
func (cfg Config) CapturePath(name string) string {
	return filepath.Join(cfg.Capture.Directory, name+"."+cfg.Capture.Format)
}

type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

func validateConfig(cfg *Config) []error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if cfg.Playback.Speed < MinSpeed || cfg.Playback.Speed > MaxSpeed {
		invalid("playback.speed", "must be within [%v, %v] (got %v)", MinSpeed, MaxSpeed, cfg.Playback.Speed)
	}
	if cfg.Playback.SkipSeconds <= 0 {
		invalid("playback.skip_seconds", "must be positive (got %v)", cfg.Playback.SkipSeconds)
	}
	if cfg.Playback.StopTimeoutMs < 100 || cfg.Playback.StopTimeoutMs > 5000 {
		invalid("playback.stop_timeout_ms", "must be between 100 and 5000 (got %d)", cfg.Playback.StopTimeoutMs)
	}
	if cfg.Playback.SeekStopMs < 100 || cfg.Playback.SeekStopMs > 5000 {
		invalid("playback.seek_stop_timeout_ms", "must be between 100 and 5000 (got %d)", cfg.Playback.SeekStopMs)
	}
	if cfg.Playback.SpeedSettleMs < 0 || cfg.Playback.SpeedSettleMs > 2000 {
		invalid("playback.speed_settle_ms", "must be between 0 and 2000 (got %d)", cfg.Playback.SpeedSettleMs)
	}
	if cfg.Playback.VideoSleepMs < 1 || cfg.Playback.VideoSleepMs > 50 {
		invalid("playback.video_sleep_ms", "must be between 1 and 50 (got %d)", cfg.Playback.VideoSleepMs)
	}
	if cfg.Playback.ResizeDebounceMs < 0 {
		invalid("playback.resize_debounce_ms", "can't be negative (got %d)", cfg.Playback.ResizeDebounceMs)
	}

	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > 1 {
		invalid("audio.volume", "must be within [0, 1] (got %v)", cfg.Audio.Volume)
	}
	if cfg.Audio.ChunkMs < 100 || cfg.Audio.ChunkMs > 10000 {
		invalid("audio.chunk_ms", "must be between 100 and 10000 (got %d)", cfg.Audio.ChunkMs)
	}
	if cfg.Audio.PollMs < 10 || cfg.Audio.PollMs > 1000 {
		invalid("audio.poll_ms", "must be between 10 and 1000 (got %d)", cfg.Audio.PollMs)
	}
	if cfg.Audio.ContinuityMs < 0 || cfg.Audio.ContinuityMs >= cfg.Audio.ChunkMs {
		invalid("audio.continuity_ms", "must be between 0 and chunk_ms (got %d)", cfg.Audio.ContinuityMs)
	}
	if cfg.Audio.SleepFraction <= 0 || cfg.Audio.SleepFraction > 1 {
		invalid("audio.sleep_fraction", "must be within (0, 1] (got %v)", cfg.Audio.SleepFraction)
	}
	if !ValidQuality(cfg.Audio.StretchQuality) {
		invalid("audio.stretch_quality", "unknown quality '%s'", cfg.Audio.StretchQuality)
	}

	switch strings.ToLower(cfg.Capture.Format) {
	case "png", "jpg", "jpeg", "bmp":
	default:
		invalid("capture.format", "must be png, jpg or bmp (got '%s')", cfg.Capture.Format)
	}
	if cfg.Capture.JPEGQuality < 1 || cfg.Capture.JPEGQuality > 100 {
		invalid("capture.jpeg_quality", "must be between 1 and 100 (got %d)", cfg.Capture.JPEGQuality)
	}
	return errs
}

func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	defaults := DefaultConfig()
	for _, err := range errs {
		cerr, ok := err.(configError)
		if !ok {
			continue
		}
		switch cerr.field {
		case "playback.speed":
			cfg.Playback.Speed = defaults.Playback.Speed
		case "playback.skip_seconds":
			cfg.Playback.SkipSeconds = defaults.Playback.SkipSeconds
		case "playback.stop_timeout_ms":
			cfg.Playback.StopTimeoutMs = defaults.Playback.StopTimeoutMs
		case "playback.seek_stop_timeout_ms":
			cfg.Playback.SeekStopMs = defaults.Playback.SeekStopMs
		case "playback.speed_settle_ms":
			cfg.Playback.SpeedSettleMs = defaults.Playback.SpeedSettleMs
		case "playback.video_sleep_ms":
			cfg.Playback.VideoSleepMs = defaults.Playback.VideoSleepMs
		case "playback.resize_debounce_ms":
			cfg.Playback.ResizeDebounceMs = defaults.Playback.ResizeDebounceMs
		case "audio.volume":
			cfg.Audio.Volume = defaults.Audio.Volume
		case "audio.chunk_ms":
			cfg.Audio.ChunkMs = defaults.Audio.ChunkMs
		case "audio.poll_ms":
			cfg.Audio.PollMs = defaults.Audio.PollMs
		case "audio.continuity_ms":
			cfg.Audio.ContinuityMs = defaults.Audio.ContinuityMs
		case "audio.sleep_fraction":
			cfg.Audio.SleepFraction = defaults.Audio.SleepFraction
		case "audio.stretch_quality":
			cfg.Audio.StretchQuality = defaults.Audio.StretchQuality
		case "capture.format":
			cfg.Capture.Format = defaults.Capture.Format
		case "capture.jpeg_quality":
			cfg.Capture.JPEGQuality = defaults.Capture.JPEGQuality
		}
	}
	// fixing chunk_ms can invalidate an otherwise valid continuity band
	if cfg.Audio.ContinuityMs >= cfg.Audio.ChunkMs {
		cfg.Audio.ContinuityMs = defaults.Audio.ContinuityMs
	}
}

// ConfigLoader reads a [Config] through viper and keeps it up to date when
// the config file changes.
type ConfigLoader struct {
	mutex    sync.RWMutex
	v        *viper.Viper
	cfg      Config
	onChange []func(Config)
}

// NewConfigLoader creates a loader searching for config.yaml in the given
// directories. With no directories, $XDG_CONFIG_HOME/avespeed (falling back
// to ~/.config/avespeed) is used.
func NewConfigLoader(dirs ...string) *ConfigLoader {
	v := viper.New()
	defaults := DefaultConfig()
	v.SetDefault("playback.speed", defaults.Playback.Speed)
	v.SetDefault("playback.skip_seconds", defaults.Playback.SkipSeconds)
	v.SetDefault("playback.loop", defaults.Playback.Loop)
	v.SetDefault("playback.stop_timeout_ms", defaults.Playback.StopTimeoutMs)
	v.SetDefault("playback.seek_stop_timeout_ms", defaults.Playback.SeekStopMs)
	v.SetDefault("playback.speed_settle_ms", defaults.Playback.SpeedSettleMs)
	v.SetDefault("playback.video_sleep_ms", defaults.Playback.VideoSleepMs)
	v.SetDefault("playback.resize_debounce_ms", defaults.Playback.ResizeDebounceMs)
	v.SetDefault("audio.volume", defaults.Audio.Volume)
	v.SetDefault("audio.muted", defaults.Audio.Muted)
	v.SetDefault("audio.chunk_ms", defaults.Audio.ChunkMs)
	v.SetDefault("audio.poll_ms", defaults.Audio.PollMs)
	v.SetDefault("audio.continuity_ms", defaults.Audio.ContinuityMs)
	v.SetDefault("audio.sleep_fraction", defaults.Audio.SleepFraction)
	v.SetDefault("audio.stretch_quality", defaults.Audio.StretchQuality)
	v.SetDefault("capture.directory", defaults.Capture.Directory)
	v.SetDefault("capture.format", defaults.Capture.Format)
	v.SetDefault("capture.jpeg_quality", defaults.Capture.JPEGQuality)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		// check XDG_CONFIG_HOME first, fallback to ~/.config
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			if homeDir, err := os.UserHomeDir(); err == nil {
				configHome = filepath.Join(homeDir, ".config")
			}
		}
		if configHome != "" {
			dirs = append(dirs, filepath.Join(configHome, "avespeed"))
		}
	}
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix("AVESPEED")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &ConfigLoader{v: v, cfg: defaults}
}

// Load reads the config file (a missing file is not an error) and the
// environment. Invalid fields are reported with a warning and replaced by
// their defaults.
func (l *ConfigLoader) Load() (Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return l.Get(), fmt.Errorf("error reading config file: %w", err)
		}
	}
	cfg, err := l.unmarshal()
	if err != nil {
		return l.Get(), err
	}
	l.mutex.Lock()
	l.cfg = cfg
	l.mutex.Unlock()
	return cfg, nil
}

func (l *ConfigLoader) unmarshal() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	if errs := validateConfig(&cfg); len(errs) > 0 {
		for _, err := range errs {
			pkgLogger.Printf("WARNING: config %s; using default", err)
		}
		applyDefaultsForInvalidFields(&cfg, errs)
	}
	return cfg, nil
}

// Get returns a copy of the current config.
func (l *ConfigLoader) Get() Config {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.cfg
}

// ConfigFile returns the path of the config file in use, if any.
func (l *ConfigLoader) ConfigFile() string {
	return l.v.ConfigFileUsed()
}

// OnChange registers a callback invoked after every successful reload.
// Must be called before [ConfigLoader.Watch]().
func (l *ConfigLoader) OnChange(fn func(Config)) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Watch starts watching the config file for changes. It does nothing if
// no config file was found by [ConfigLoader.Load]().
func (l *ConfigLoader) Watch() {
	if l.v.ConfigFileUsed() == "" {
		return
	}
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			pkgLogger.Printf("WARNING: reloading '%s': %s", filepath.Base(e.Name), err)
			return
		}
		l.mutex.Lock()
		l.cfg = cfg
		callbacks := append([]func(Config){}, l.onChange...)
		l.mutex.Unlock()
		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	l.v.WatchConfig()
}

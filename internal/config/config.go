package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Reverie configuration
type Config struct {
	Service  ServiceConfig `mapstructure:"service"`
	Timeouts TimeoutConfig `mapstructure:"timeouts"`
	Lock     LockConfig    `mapstructure:"lock"`
	Logging  LoggingConfig `mapstructure:"logging"`
	Privacy  PrivacyConfig `mapstructure:"privacy"`
}

// ServiceConfig describes the ambient service the supervisor binds
type ServiceConfig struct {
	// Component is the path to the service executable
	Component string `mapstructure:"component"`
	// CanDoze allows the service to run in low-power mode
	CanDoze bool `mapstructure:"can_doze"`
	// UserID is the user the service runs on behalf of
	UserID int `mapstructure:"user_id"`
}

// TimeoutConfig holds the supervisor's watchdog durations
type TimeoutConfig struct {
	// ConnectMs is the maximum time a bound service may take to connect (default: 5000)
	ConnectMs int `mapstructure:"connect_ms"`
	// FinishMs is the maximum time a gracefully-stopped service may take to
	// finish itself before being torn down (default: 5000)
	FinishMs int `mapstructure:"finish_ms"`
	// LockReleaseFallbackMs bounds the worst-case wake lock hold time when
	// the service never confirms it started (default: 10000)
	LockReleaseFallbackMs int `mapstructure:"lock_release_fallback_ms"`
}

// LockConfig controls where session wake locks are written
type LockConfig struct {
	// Dir is the directory for lock files. Empty uses <data dir>/locks
	Dir string `mapstructure:"dir"`
	// CleanStaleOnStart removes lock files left by dead supervisors at startup (default: true)
	CleanStaleOnStart bool `mapstructure:"clean_stale_on_start"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for log files. Empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// PrivacyConfig controls session announcement behavior
type PrivacyConfig struct {
	// SuppressBroadcasts runs every session in preview mode: the service
	// runs normally but no started/ended events are announced (default: false)
	SuppressBroadcasts bool `mapstructure:"suppress_broadcasts"`
}

// ConnectTimeout returns the connect watchdog as a time.Duration
func (t *TimeoutConfig) ConnectTimeout() time.Duration {
	return time.Duration(t.ConnectMs) * time.Millisecond
}

// FinishTimeout returns the graceful-finish watchdog as a time.Duration
func (t *TimeoutConfig) FinishTimeout() time.Duration {
	return time.Duration(t.FinishMs) * time.Millisecond
}

// LockReleaseFallback returns the wake lock fallback as a time.Duration
func (t *TimeoutConfig) LockReleaseFallback() time.Duration {
	return time.Duration(t.LockReleaseFallbackMs) * time.Millisecond
}

// ResolveLockDir returns the lock directory, defaulting under baseDir
func (l *LockConfig) ResolveLockDir(baseDir string) string {
	if l.Dir == "" {
		return filepath.Join(baseDir, "locks")
	}
	if !filepath.IsAbs(l.Dir) {
		return filepath.Join(baseDir, l.Dir)
	}
	return l.Dir
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			Component: "",
			CanDoze:   false,
			UserID:    0,
		},
		Timeouts: TimeoutConfig{
			ConnectMs:             5000,
			FinishMs:              5000,
			LockReleaseFallbackMs: 10000,
		},
		Lock: LockConfig{
			Dir:               "", // Empty means use default: <data dir>/locks
			CleanStaleOnStart: true,
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
			Dir:     "",
		},
		Privacy: PrivacyConfig{
			SuppressBroadcasts: false,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Service defaults
	viper.SetDefault("service.component", defaults.Service.Component)
	viper.SetDefault("service.can_doze", defaults.Service.CanDoze)
	viper.SetDefault("service.user_id", defaults.Service.UserID)

	// Timeout defaults
	viper.SetDefault("timeouts.connect_ms", defaults.Timeouts.ConnectMs)
	viper.SetDefault("timeouts.finish_ms", defaults.Timeouts.FinishMs)
	viper.SetDefault("timeouts.lock_release_fallback_ms", defaults.Timeouts.LockReleaseFallbackMs)

	// Lock defaults
	viper.SetDefault("lock.dir", defaults.Lock.Dir)
	viper.SetDefault("lock.clean_stale_on_start", defaults.Lock.CleanStaleOnStart)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	// Privacy defaults
	viper.SetDefault("privacy.suppress_broadcasts", defaults.Privacy.SuppressBroadcasts)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reverie")
	}
	// Fall back to ~/.config/reverie
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reverie"
	}
	return filepath.Join(home, ".config", "reverie")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the path to the user's data directory
func DataDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "reverie")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reverie"
	}
	return filepath.Join(home, ".local", "state", "reverie")
}

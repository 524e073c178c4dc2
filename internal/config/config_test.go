package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/reverielabs/reverie/internal/logging"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Errorf("Default().Validate() = %v, want no errors", ValidationErrors(errs))
	}
}

func TestTimeoutConfig_Durations(t *testing.T) {
	tc := TimeoutConfig{
		ConnectMs:             5000,
		FinishMs:              2500,
		LockReleaseFallbackMs: 10000,
	}
	if got := tc.ConnectTimeout(); got != 5*time.Second {
		t.Errorf("ConnectTimeout() = %v, want 5s", got)
	}
	if got := tc.FinishTimeout(); got != 2500*time.Millisecond {
		t.Errorf("FinishTimeout() = %v, want 2.5s", got)
	}
	if got := tc.LockReleaseFallback(); got != 10*time.Second {
		t.Errorf("LockReleaseFallback() = %v, want 10s", got)
	}
}

func TestValidate_Timeouts(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		wantErrs int
	}{
		{
			name:     "defaults pass",
			mutate:   func(*Config) {},
			wantErrs: 0,
		},
		{
			name:     "connect too small",
			mutate:   func(c *Config) { c.Timeouts.ConnectMs = 50 },
			wantErrs: 1,
		},
		{
			name:     "finish negative",
			mutate:   func(c *Config) { c.Timeouts.FinishMs = -1 },
			wantErrs: 1,
		},
		{
			name:     "fallback over maximum",
			mutate:   func(c *Config) { c.Timeouts.LockReleaseFallbackMs = 600_000 },
			wantErrs: 1,
		},
		{
			name: "fallback shorter than connect",
			mutate: func(c *Config) {
				c.Timeouts.ConnectMs = 8000
				c.Timeouts.LockReleaseFallbackMs = 4000
			},
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if errs := cfg.Validate(); len(errs) != tt.wantErrs {
				t.Errorf("Validate() returned %d errors, want %d: %v",
					len(errs), tt.wantErrs, ValidationErrors(errs))
			}
		})
	}
}

func TestValidate_Service(t *testing.T) {
	cfg := Default()
	cfg.Service.UserID = -1
	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("Validate() returned %d errors, want 1: %v", len(errs), ValidationErrors(errs))
	}
	if errs[0].Field != "service.user_id" {
		t.Errorf("error field = %q, want %q", errs[0].Field, "service.user_id")
	}
}

func TestValidate_LoggingLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		wantErrs int
	}{
		{"default lowercase", "info", 0},
		{"uppercase accepted", "DEBUG", 0},
		{"mixed case accepted", "Warn", 0},
		{"empty uses default", "", 0},
		{"unknown level", "verbose", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Logging.Level = tt.level
			errs := cfg.Validate()
			if len(errs) != tt.wantErrs {
				t.Fatalf("Validate() returned %d errors, want %d: %v", len(errs), tt.wantErrs, ValidationErrors(errs))
			}
			if tt.wantErrs > 0 && errs[0].Field != "logging.level" {
				t.Errorf("error field = %q, want %q", errs[0].Field, "logging.level")
			}
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	errs := ValidationErrors{
		{Field: "timeouts.connect_ms", Value: 50, Message: "must be at least 100ms"},
		{Field: "service.user_id", Value: -1, Message: "must be non-negative"},
	}
	msg := errs.Error()
	if msg == "" {
		t.Fatal("Error() returned empty string")
	}
	single := ValidationErrors{errs[0]}
	if single.Error() != errs[0].Error() {
		t.Errorf("single error = %q, want %q", single.Error(), errs[0].Error())
	}
}

func TestResolveLockDir(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"empty uses default", "", filepath.Join("/data", "locks")},
		{"relative resolved under base", "mylocks", filepath.Join("/data", "mylocks")},
		{"absolute kept", "/var/run/reverie", "/var/run/reverie"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := LockConfig{Dir: tt.dir}
			if got := lc.ResolveLockDir("/data"); got != tt.want {
				t.Errorf("ResolveLockDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoad_FromViper(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("timeouts.connect_ms", 2000)
	viper.Set("service.component", "/usr/bin/true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Timeouts.ConnectMs != 2000 {
		t.Errorf("ConnectMs = %d, want 2000", cfg.Timeouts.ConnectMs)
	}
	if cfg.Service.Component != "/usr/bin/true" {
		t.Errorf("Component = %q, want %q", cfg.Service.Component, "/usr/bin/true")
	}
	// Untouched fields keep their defaults.
	if cfg.Timeouts.FinishMs != 5000 {
		t.Errorf("FinishMs = %d, want default 5000", cfg.Timeouts.FinishMs)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults()
	viper.Set("timeouts.connect_ms", 1)

	if _, err := Load(); err == nil {
		t.Fatal("Load() accepted an invalid connect timeout")
	}
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("timeouts:\n  connect_ms: 3000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("initial read failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, logging.Nop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(path, []byte("timeouts:\n  connect_ms: 4000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Timeouts.ConnectMs != 4000 {
			t.Errorf("reloaded ConnectMs = %d, want 4000", cfg.Timeouts.ConnectMs)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config reload")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidEdit(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("timeouts:\n  connect_ms: 3000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	SetDefaults()
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		t.Fatalf("initial read failed: %v", err)
	}

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, logging.Nop(), func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher() error = %v", err)
	}
	defer w.Close()

	// Out-of-range value: the reload must be rejected, not delivered.
	if err := os.WriteFile(path, []byte("timeouts:\n  connect_ms: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("invalid edit was delivered: %+v", cfg)
	case <-time.After(2 * debounceDelay * 5):
		// Rejected as expected.
	}
}

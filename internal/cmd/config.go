package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reverielabs/reverie/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View Reverie configuration",
	Long: `View Reverie configuration.

Without arguments, displays the current configuration.
Use subcommands to create a config file or locate it.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/reverie/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	fmt.Println("service:")
	fmt.Printf("  component: %s\n", cfg.Service.Component)
	fmt.Printf("  can_doze: %v\n", cfg.Service.CanDoze)
	fmt.Printf("  user_id: %d\n", cfg.Service.UserID)

	fmt.Println("timeouts:")
	fmt.Printf("  connect_ms: %d\n", cfg.Timeouts.ConnectMs)
	fmt.Printf("  finish_ms: %d\n", cfg.Timeouts.FinishMs)
	fmt.Printf("  lock_release_fallback_ms: %d\n", cfg.Timeouts.LockReleaseFallbackMs)

	fmt.Println("lock:")
	fmt.Printf("  dir: %s\n", cfg.Lock.Dir)
	fmt.Printf("  clean_stale_on_start: %v\n", cfg.Lock.CleanStaleOnStart)

	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)
	fmt.Printf("  dir: %s\n", cfg.Logging.Dir)

	fmt.Println("privacy:")
	fmt.Printf("  suppress_broadcasts: %v\n", cfg.Privacy.SuppressBroadcasts)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := config.ConfigFile()

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	defaults := config.Default()
	content := fmt.Sprintf(`# Reverie configuration
# All values shown are the defaults.

service:
  # Path to the service executable
  component: %q
  # Allow the service to run in low-power mode
  can_doze: %v
  # User the service runs on behalf of
  user_id: %d

timeouts:
  # Maximum time a bound service may take to connect (milliseconds)
  connect_ms: %d
  # Maximum time a gracefully-stopped service may take to finish itself
  finish_ms: %d
  # Worst-case wake lock hold when the service never confirms it started
  lock_release_fallback_ms: %d

lock:
  # Directory for session lock files (empty uses the default data dir)
  dir: %q
  # Remove lock files left by dead supervisors at startup
  clean_stale_on_start: %v

logging:
  enabled: %v
  # One of: debug, info, warn, error
  level: %s
  # Directory for log files (empty logs to stderr)
  dir: %q

privacy:
  # Run every session in preview mode (no started/ended announcements)
  suppress_broadcasts: %v
`,
		defaults.Service.Component,
		defaults.Service.CanDoze,
		defaults.Service.UserID,
		defaults.Timeouts.ConnectMs,
		defaults.Timeouts.FinishMs,
		defaults.Timeouts.LockReleaseFallbackMs,
		defaults.Lock.Dir,
		defaults.Lock.CleanStaleOnStart,
		defaults.Logging.Enabled,
		defaults.Logging.Level,
		defaults.Logging.Dir,
		defaults.Privacy.SuppressBroadcasts,
	)

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file: %s\n", path)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	fmt.Println(config.ConfigFile())
	return nil
}

package cmd

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reverielabs/reverie/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "reverie",
	Short: "Ambient service session supervisor",
	Long: `Reverie starts, supervises and tears down ambient service sessions.

It binds a service process, watches its connection, and guarantees that
at most one session is ever live: starting a new session force-stops the
previous one, slow or dead services are detected by watchdogs, and every
session ends with a full teardown exactly once.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/reverie/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/reverie")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("REVERIE")
	// Replace dots with underscores for nested keys in env vars
	// e.g., REVERIE_TIMEOUTS_CONNECT_MS for timeouts.connect_ms
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jonandersen/tokenctl/internal/app"
	"github.com/jonandersen/tokenctl/internal/config"
	"github.com/jonandersen/tokenctl/internal/keyring"
	"github.com/jonandersen/tokenctl/internal/logger"
)

var Version = "dev"

var (
	// jsonOutput controls whether output is formatted as JSON
	jsonOutput bool
	// verbose enables debug logging on stderr
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "tokenctl",
	Short: "OAuth2 refresh-token credential manager",
	Long: `tokenctl exchanges a stored refresh token for short-lived access tokens,
caches them until shortly before they expire, and uses them to call the API.`,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// GetJSONMode returns whether JSON output mode is enabled.
func GetJSONMode() bool {
	return jsonOutput
}

// newLogger returns the stderr logger for the current flags.
func newLogger() zerolog.Logger {
	return logger.New(os.Stderr, verbose)
}

// loadApp wires the production App from the config file and keyring.
func loadApp() (*app.App, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store := keyring.NewEnvStore(keyring.NewSystemStore())
	return app.New(cfg, store, newLogger())
}

func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

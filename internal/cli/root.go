// Package cli is the velvet operator command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/private-swap/internal/app"
	"github.com/aman-zulfiqar/private-swap/internal/config"
)

var (
	// Global flags
	debug   bool
	venue   string
	jsonOut bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "velvet",
	Short: "Operate a confidential swap pool",
	Long: `velvet drives the confidential swap pool for the configured wallet:
create or clear the mint pair, run pool setup, quote and swap, and screen
addresses. Settings come from the environment and .env, as for the API.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&venue, "venue", "", "override VENUE_ENABLED (true|false)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
}

// commandContext is cancelled on SIGINT/SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

func loadConfig(logger *logrus.Logger) (*config.Config, error) {
	app.LoadEnv(logger)
	cfg := config.Load()
	if venue != "" {
		switch venue {
		case "true", "1", "on":
			cfg.VenueEnabled = true
		case "false", "0", "off":
			cfg.VenueEnabled = false
		default:
			return nil, fmt.Errorf("%w: --venue must be true or false", config.ErrInvalidConfiguration)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *logrus.Logger {
	logger := app.NewLogger()
	logger.SetOutput(os.Stderr)
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

// withApp builds the services, runs fn and tears them down.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	logger := newLogger()
	cfg, err := loadConfig(logger)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// emit prints v as indented JSON under --json, otherwise runs text.
func emit(w io.Writer, v any, text func(w io.Writer)) error {
	if jsonOut || text == nil {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dualplan/internal/config"
	"dualplan/internal/logging"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "dualplan",
	Short: "Plan backend architectures by negotiating two biased AI architects",
	Long: `dualplan turns an application specification into a validated backend
architecture. A feasibility-biased and a capability-biased architect each
propose a design, negotiate a unified one, and two reviewers validate it.

Commands:
  serve   Run the HTTP and WebSocket API
  plan    Plan one specification and print the result as JSON
  needs   Derive backend needs from a UI layout`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultConfigFile, "YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// loadConfig reads configuration and installs the global logger
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFrom(cfgFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logging.Init(logging.Options{Level: cfg.Logging.Level, Environment: cfg.Logging.Environment})
	return cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Sync()
	if err == nil {
		return
	}

	code := 1
	var ee *exitError
	if errors.As(err, &ee) {
		code = ee.code
	}
	fmt.Fprintln(os.Stderr, "dualplan:", err)
	os.Exit(code)
}

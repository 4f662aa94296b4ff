package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/v0xg/actionq/internal/config"
	"github.com/v0xg/actionq/internal/observability"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := viper.New()
	rootCmd := newRootCmd(v)
	err := rootCmd.ExecuteContext(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "actionq",
		Short: "Run declarative browser action queues",
		Long: `actionq compiles a YAML script of browser actions into an ordered queue
and runs it step by step against a Chromium session.

Example:
  actionq run login.yaml --server http://127.0.0.1:9222`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Config file (default ./actionq.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")

	rootCmd.AddCommand(newProbeCmd(v), newRunCmd(v))
	return rootCmd
}

// loadConfig reads configuration and initializes the global logger.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	if err := config.Load(v, cfgFile); err != nil {
		return nil, err
	}
	if verbose {
		v.Set("logger.level", "debug")
	}
	cfg, err := config.NewConfigFromViper(v)
	if err != nil {
		return nil, err
	}
	observability.InitializeLogger(cfg.Logger)
	return cfg, nil
}

func logVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}

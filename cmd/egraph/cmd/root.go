package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/perf-analysis/pkg/config"
	"github.com/perf-analysis/pkg/utils"
)

var (
	cfgFile string
	logFile string

	cfg *config.Config
	log utils.Logger
)

var rootCmd = &cobra.Command{
	Use:   "egraph",
	Short: "Drive a slotted e-graph to saturation over a small demo language",
	Long: `egraph is a small command-line harness around the internal e-graph
kernel: it inserts an arithmetic expression, saturates it under a fixed
rewrite rule set, and prints the cheapest equivalent term it found.`,
	SilenceUsage: true,
	PersistentPreRunE: func(c *cobra.Command, args []string) error {
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		level := utils.ParseLogLevel(cfg.Log.Level)
		l, err := newLogger(level, logFile)
		if err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		log = l
		utils.SetGlobalLogger(log)
		return nil
	},
}

func newLogger(level utils.LogLevel, path string) (utils.Logger, error) {
	if path == "" {
		return utils.NewDefaultLogger(level, os.Stderr), nil
	}
	return utils.NewFileLogger(level, path)
}

// Execute runs the root command, returning any error a subcommand produced.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file instead of stderr")
}

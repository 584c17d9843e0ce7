package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/covidash/internal/cli"
	"github.com/aretw0/covidash/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "covidash",
	Short: "covidash is a reactive COVID-19 dashboard",
	Long: `covidash shows cumulative US COVID-19 cases and deaths by state as a map,
a ranked table and a trend chart. Every input change recomputes only what
depends on it.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().String("series", "", "Override the series table (path or URL)")
	rootCmd.PersistentFlags().String("population", "", "Override the population table (path or URL)")
	rootCmd.PersistentFlags().String("log-level", "", "Override the log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
}

// loadConfig reads the configuration file and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetString("series"); v != "" {
		cfg.Data.Series = v
	}
	if v, _ := cmd.Flags().GetString("population"); v != "" {
		cfg.Data.Population = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.Log.Level = v
	}
	return cfg, cfg.Validate()
}

func loadLogger(cmd *cobra.Command, cfg config.Config) (*slog.Logger, error) {
	debug, _ := cmd.Flags().GetBool("debug")
	return cli.NewLogger(cfg.Log, debug)
}

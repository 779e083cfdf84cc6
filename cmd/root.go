// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/github-metrics/internal/config"
	"github.com/naka-gawa/github-metrics/internal/logging"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "github-metrics",
	Short: "A Prometheus exporter for GitHub repository statistics.",
	Long: `github-metrics exposes gauges about GitHub repositories (stars, forks,
contributors, commits, issues and pull requests by state or label) in the
Prometheus format. Values are fetched from the GitHub API when scraped.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file (environment variables override it)")
}

// loadConfig reads the configuration named by --config and builds the logger
// it describes. --verbose forces debug level.
func loadConfig(cmd *cobra.Command, opts ...config.LoadOption) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")

	cfg, err := config.Load(path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Logging.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(cfg.Logging)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/naka-gawa/github-metrics/internal/config"
	"github.com/naka-gawa/github-metrics/internal/domain"
	"github.com/naka-gawa/github-metrics/internal/usecase"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Prints the metric catalog as YAML",
	Long: `Builds the metric catalog for the configured repositories and detail tier
and prints it as YAML. No request is sent to GitHub.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, config.WithoutToken())
		if err != nil {
			return err
		}
		tier, err := cfg.Tier()
		if err != nil {
			return err
		}
		if detail, _ := cmd.Flags().GetString("detail"); detail != "" {
			if tier, err = domain.ParseTier(detail); err != nil {
				return err
			}
		}
		specs := usecase.NewCatalogBuilder(tier, cfg.LabelSets(), cfg.CustomQueries(), logger).Build(cfg.Repos...)

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(specs); err != nil {
			return fmt.Errorf("failed to marshal catalog to YAML: %w", err)
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.Flags().StringP("detail", "d", "", "Override the configured detail tier (base, advanced, verbose, custom)")
}

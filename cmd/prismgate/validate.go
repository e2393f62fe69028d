package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"prismgate/pkg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Parse and validate a configuration file without starting the server.

All validation errors are reported together, not just the first one.

Examples:
  # Validate a config file
  prismgate validate --config config.yaml

  # Validate the built-in defaults
  prismgate validate`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	table, err := config.NewRouteTable(cfg)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Configuration valid (%d routes)\n", table.Len())
	if verbose {
		for _, path := range table.Paths() {
			route, _ := table.Lookup(path)
			fmt.Printf("  %-7s %-60s -> %s [%s]\n", route.Method, route.Path, route.TargetURL, route.ResponseType)
		}
	}
	return nil
}

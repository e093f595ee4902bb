// Command energosync polls a utility provider's personal-account API and publishes
// per-account balances, meter readings, invoices and submission windows as
// Home Assistant entities over MQTT discovery.
//
// Usage:
//
//	energosync run [--config config.yaml]
//	energosync accounts [--config config.yaml]
//	energosync history <unique_id> [--window 1h] [--aggregation AVG] [--since 24h]
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand() *cobra.Command {
	var configPath string

	// rootCmd represents the base command when called without any subcommands
	var rootCmd = &cobra.Command{
		Use:          "energosync",
		Short:        "Utility account entities for home automation",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")

	rootCmd.AddCommand(newRunCommand(&configPath))
	rootCmd.AddCommand(newAccountsCommand(&configPath))
	rootCmd.AddCommand(newHistoryCommand(&configPath))

	return rootCmd
}

func main() {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

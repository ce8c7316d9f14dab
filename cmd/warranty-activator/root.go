package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd starts tracking when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "warranty-activator",
	Short: "Track display-on time and activate the device warranty",
	Long: `warranty-activator measures how long any display has been on. Once the
cumulative total reaches the configured threshold it posts a one-time
activation record to the warranty endpoint and exits.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDaemon,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: search /etc/warranty-activator and .)")
	rootCmd.AddCommand(stateCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "flight-tracker",
	Short: "Live flight status push server",
	Long: `flight-tracker polls a flight status API for the flights that connected
WebSocket clients subscribe to, and pushes a message whenever a tracked
field (status, gate, terminal, delay, times) changes.

  flight-tracker serve -c configs/config.toml
  flight-tracker validate -c configs/config.toml`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "flight-tracker %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to configuration file (optional - will search in configs/ and root directory)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

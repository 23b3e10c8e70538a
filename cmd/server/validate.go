package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yegors/flight-tracker/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file without starting the server",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// loadConfig loads and validates the configuration named by --config
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.LoadWithFallback(configPath)
	if err != nil {
		return nil, configPath, fmt.Errorf("error loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, configPath, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, configPath, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config is valid")
	fmt.Fprintf(out, "  Listen:        %s:%d %v\n", cfg.Server.Host, cfg.Server.Port, cfg.Server.AdditionalPorts)
	fmt.Fprintf(out, "  Flight API:    %s\n", cfg.Flights.APIBaseURL)
	fmt.Fprintf(out, "  Access key:    %t\n", cfg.Flights.AccessKey != "")
	fmt.Fprintf(out, "  Poll interval: %s\n", cfg.Flights.PollInterval())
	fmt.Fprintf(out, "  Queue:         %t\n", cfg.Queue.Enabled)
	fmt.Fprintf(out, "  Weather:       %t\n", cfg.Weather.Enabled)
	fmt.Fprintf(out, "  Photos:        %t\n", cfg.Photos.Enabled)
	return nil
}

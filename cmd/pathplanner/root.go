package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pathplanner/internal/config"
)

var (
	configPath string
	schemaPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "pathplanner",
	Short: "Ground station path planning toolkit",
	Long:  "pathplanner edits waypoint and path segment plans and synchronizes them with a vehicle.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to planner configuration YAML")
	rootCmd.PersistentFlags().StringVar(&schemaPath, "schema", "", "Path to CUE schema file (embedded schema when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(dashboardCmd)
}

// loadConfig reads --config, or starts from the defaults when no file is
// given. Environment overrides apply either way.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configPath != "" {
		c, err := config.Load(configPath, schemaPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		c := config.Default()
		if err := c.ApplyEnv(os.LookupEnv); err != nil {
			return nil, err
		}
		cfg = &c
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

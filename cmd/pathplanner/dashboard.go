package main

import (
	"log"

	"github.com/spf13/cobra"

	"pathplanner/internal/dashboard"
)

var dashboardOut string

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Render Grafana dashboards for sync events and metrics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := dashboard.Render(dashboardOut, dashboard.Params{Table: cfg.Audit.Greptime.Table}); err != nil {
			return err
		}
		log.Printf("[Main] Dashboards written to %s", dashboardOut)
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardOut, "out", "build", "Directory for the rendered dashboards")
}

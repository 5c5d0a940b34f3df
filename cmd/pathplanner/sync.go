package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"pathplanner/internal/config"
	"pathplanner/internal/logging"
	"pathplanner/internal/observability"
	"pathplanner/internal/transfer"
)

var (
	syncPlan      string
	syncOut       string
	syncPrintOnly bool
	syncLogFile   string
)

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Upload the plan to the vehicle",
	Long:  "push uploads every waypoint and path segment of a plan file with acknowledged updates.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, cfg *config.Config, s *session, eng *transfer.Engine) error {
			res, err := eng.Push(ctx)
			if err != nil {
				var f *transfer.Failure
				if errors.As(err, &f) {
					return fmt.Errorf("push %s: %s record %d not acknowledged after %d attempts: %w",
						res.OperationID, f.Object, f.Index, f.Attempts, f.Cause)
				}
				return err
			}
			log.Printf("[Main] Push %s done: %d waypoints, %d path segments", res.OperationID, res.Waypoints, res.Segments)
			return nil
		})
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Download the plan from the vehicle",
	Long:  "pull reads every waypoint and path segment held by the vehicle and writes them to a plan file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, cfg *config.Config, s *session, eng *transfer.Engine) error {
			if err := eng.Pull(ctx); err != nil {
				return err
			}
			out := syncOut
			if out == "" {
				out = planPath(cfg)
			}
			if out == "" {
				return fmt.Errorf("no output plan: set --out or plan in the config")
			}
			if err := s.save(out); err != nil {
				return err
			}
			log.Printf("[Main] Pulled %d waypoints and %d path segments into %s",
				s.waypoints.RowCount(), s.segments.RowCount(), out)
			return nil
		})
	},
}

func planPath(cfg *config.Config) string {
	if syncPlan != "" {
		return syncPlan
	}
	return cfg.Plan
}

// withEngine wires config, logging, tracing, audit writers and the link for
// a single push or pull. Ctrl+C cancels the operation.
func withEngine(run func(context.Context, *config.Config, *session, *transfer.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logging.NewContext(ctx, logger)

	shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg), logger)
	if err != nil {
		return err
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)

	events, cleanup, err := newEventWriters(cfg, syncPrintOnly, syncLogFile)
	if err != nil {
		return err
	}
	defer cleanup()

	s, err := newSession(cfg, planPath(cfg))
	if err != nil {
		return err
	}
	defer s.close()

	client, closeLink, err := dialLink(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLink()

	eng := s.engine(cfg, client.Waypoints(), client.Segments(), events, nil, logger)
	return run(ctx, cfg, s, eng)
}

func tracingConfig(cfg *config.Config) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		SampleRatio: cfg.Tracing.SampleRatio,
	}
}

func init() {
	for _, c := range []*cobra.Command{pushCmd, pullCmd} {
		c.Flags().StringVar(&syncPlan, "plan", "", "Path to the plan file (defaults to plan in the config)")
		c.Flags().BoolVar(&syncPrintOnly, "print-only", false, "Print sync events to STDOUT instead of writing to DB")
		c.Flags().StringVar(&syncLogFile, "log-file", "", "Path to export sync events (JSONL)")
	}
	pullCmd.Flags().StringVar(&syncOut, "out", "", "Where to write the pulled plan (defaults to --plan)")
}

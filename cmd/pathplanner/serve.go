package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"pathplanner/internal/admin"
	"pathplanner/internal/audit"
	"pathplanner/internal/logging"
	"pathplanner/internal/model"
	"pathplanner/internal/observability"
	"pathplanner/internal/overlay"
	"pathplanner/internal/transfer"
	"pathplanner/internal/tui"
)

var (
	servePlan      string
	servePrintOnly bool
	serveLogFile   string
	serveTUI       bool
	serveSave      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the planner with its admin UI",
	Long:  "serve keeps a plan in memory, draws its overlays and exposes editing, push and pull over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if servePlan != "" {
			cfg.Plan = servePlan
		}
		logger := logging.New(cfg.LogLevel)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		ctx = logging.NewContext(ctx, logger)

		shutdown, err := observability.InitTracing(ctx, tracingConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer observability.ShutdownWithTimeout(context.Background(), shutdown, logger)

		var events audit.Writer
		var monitor *tui.Monitor
		if serveTUI && tui.Available() {
			monitor = tui.NewMonitor()
			defer monitor.Close()
			events = monitor
			if serveLogFile != "" {
				fw, err := audit.NewFileWriter(serveLogFile)
				if err != nil {
					return err
				}
				defer fw.Close()
				events = audit.NewMultiWriter(monitor, fw)
			}
			// The monitor owns the terminal.
			logger = logging.NewWriter(io.Discard, cfg.LogLevel)
			log.SetOutput(io.Discard)
		} else {
			w, cleanup, err := newEventWriters(cfg, servePrintOnly, serveLogFile)
			if err != nil {
				return err
			}
			defer cleanup()
			events = w
		}

		s, err := newSession(cfg, cfg.Plan)
		if err != nil {
			return err
		}
		defer s.close()

		client, closeLink, err := dialLink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeLink()

		metrics, err := observability.NewSyncCollector(prometheus.NewRegistry())
		if err != nil {
			return err
		}
		eng := s.engine(cfg, client.Waypoints(), client.Segments(), events, metrics, logger)

		delay := cfg.Overlay.RefreshDelay.Std()
		srv := admin.NewServer(s.waypoints, s.segments, eng, s.home, logger.With("component", "admin"))
		srv.WaypointOverlay = overlay.NewWaypointProjector(s.waypoints, delay, overlay.WithLogger(logger))
		defer srv.WaypointOverlay.Close()
		srv.SegmentOverlay = overlay.NewSegmentProjector(s.segments, delay, overlay.WithLogger(logger))
		defer srv.SegmentOverlay.Close()
		srv.Metrics = metrics.Handler()

		if monitor != nil {
			wireMonitor(ctx, monitor, s, eng, logger)
		}

		go func() {
			log.Printf("[Main] Admin UI listening on %s", cfg.Admin.Listen)
			if monitor != nil {
				monitor.SetAdminStatus(true)
			}
			if err := srv.Start(ctx, cfg.Admin.Listen); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Admin server failed: %v", err)
			}
		}()

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
		<-sigs

		cancel()
		if serveSave && cfg.Plan != "" {
			if err := s.save(cfg.Plan); err != nil {
				log.Printf("[Main] Saving plan failed: %v", err)
			} else {
				log.Printf("[Main] Plan saved to %s", cfg.Plan)
			}
		}
		log.Println("[Main] Planner stopped.")
		return nil
	},
}

// planMonitor is the part of the terminal monitor wired to the session.
type planMonitor interface {
	SetPlan(waypoints, segments int)
	SetBusy(busy bool)
	SetActions(push, pull func())
}

// wireMonitor keeps the monitor's plan counters current and lets it trigger
// push and pull.
func wireMonitor(ctx context.Context, m planMonitor, s *session, eng *transfer.Engine, logger *slog.Logger) {
	update := func(model.Event) { m.SetPlan(s.waypoints.RowCount(), s.segments.RowCount()) }
	update(model.Event{})
	s.unfollow = append(s.unfollow, s.waypoints.Subscribe(update), s.segments.Subscribe(update))
	run := func(name string, op func(context.Context) error) func() {
		return func() {
			m.SetBusy(true)
			defer m.SetBusy(false)
			if err := op(ctx); err != nil {
				// The engine already logged and audited the failure.
				logger.Debug("monitor action failed", "operation", name, "error", err)
			}
		}
	}
	m.SetActions(
		run("push", func(ctx context.Context) error { _, err := eng.Push(ctx); return err }),
		run("pull", eng.Pull),
	)
}

func init() {
	serveCmd.Flags().StringVar(&servePlan, "plan", "", "Path to the plan file (defaults to plan in the config)")
	serveCmd.Flags().BoolVar(&servePrintOnly, "print-only", false, "Print sync events to STDOUT instead of writing to DB")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Path to export sync events (JSONL)")
	serveCmd.Flags().BoolVar(&serveTUI, "tui", false, "Show sync progress in a terminal UI")
	serveCmd.Flags().BoolVar(&serveSave, "save", false, "Write the plan back to its file on shutdown")
}

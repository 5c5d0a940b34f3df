package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pathplanner/internal/geo"
	"pathplanner/internal/overlay"
)

var validatePlan string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a plan file and summarize its legs",
	Long:  "validate loads a plan file, prints the distance and bearing of every leg and reports legs that cannot be drawn.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		path := validatePlan
		if path == "" {
			path = cfg.Plan
		}
		if path == "" {
			return fmt.Errorf("plan file required")
		}
		s, err := newSession(cfg, path)
		if err != nil {
			return err
		}
		defer s.close()
		return summarize(cmd.OutOrStdout(), s)
	},
}

// summarize prints the legs of both tables and fails when an overlay edge
// cannot be solved.
func summarize(out io.Writer, s *session) error {
	wps := s.waypoints.Store().Snapshot()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LEG\tMODE\tDISTANCE (m)\tBEARING (deg)\tALT CHANGE (m)")
	var total float64
	for i := 1; i < len(wps); i++ {
		a, b := wps[i-1].Position, wps[i].Position
		d := geo.Distance(a, b)
		total += d
		fmt.Fprintf(tw, "%d→%d\t%s\t%.1f\t%.1f\t%+.1f\n", i-1, i, wps[i].Mode, d, geo.Bearing(a, b), b.Alt-a.Alt)
	}
	tw.Flush()
	fmt.Fprintf(out, "%d waypoints, %.1f m total, %d path segments\n", len(wps), total, s.segments.RowCount())

	segs := s.segments.Store()
	broken := report(out, "waypoint", overlay.Build(overlay.PointsFromWaypoints(wps)))
	broken += report(out, "path segment", overlay.Build(overlay.PointsFromSegments(segs.Snapshot(), segs.Origin())))
	locked := 0
	for _, w := range wps {
		if w.Locked {
			locked++
		}
	}
	if locked > 0 {
		fmt.Fprintf(out, "%d locked waypoints\n", locked)
	}
	if broken > 0 {
		return fmt.Errorf("%d legs cannot be flown", broken)
	}
	return nil
}

func report(out io.Writer, kind string, g overlay.Graph) int {
	broken := g.Broken()
	for _, e := range broken {
		fmt.Fprintf(out, "%s leg %d→%d: %v\n", kind, e.From, e.To, e.Err)
	}
	return len(broken)
}

func init() {
	validateCmd.Flags().StringVar(&validatePlan, "plan", "", "Path to the plan file (defaults to plan in the config)")
}

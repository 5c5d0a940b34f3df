package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"pathplanner/internal/audit"
)

var (
	historyInput  string
	historySpeed  float64
	historyReplay bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Summarize or replay a sync event log",
	Long:  "history reads a sync event log written with --log-file and summarizes every push and pull, or replays the events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyInput == "" {
			return fmt.Errorf("input file required")
		}
		if historyReplay {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			writer, cleanup, err := newEventWriters(cfg, false, "")
			if err != nil {
				return err
			}
			defer cleanup()
			return audit.ReplayLogFile(historyInput, writer, historySpeed)
		}
		rec := &audit.Recorder{}
		if err := audit.ReplayLogFile(historyInput, rec, 0); err != nil {
			return err
		}
		printSummaries(cmd.OutOrStdout(), rec.Summaries())
		return nil
	},
}

func printSummaries(out io.Writer, sums []audit.OperationSummary) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tKIND\tSTARTED\tDURATION\tATTEMPTS\tRETRIES\tOUTCOME\tFAILED")
	for _, s := range sums {
		failed := "-"
		if s.FailedIndex >= 0 {
			failed = fmt.Sprintf("%s[%d]", s.Object, s.FailedIndex)
		}
		outcome := string(s.Outcome)
		if outcome == "" {
			outcome = "incomplete"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			s.OperationID, s.Operation, s.Started.Format("2006-01-02 15:04:05"),
			s.Finished.Sub(s.Started).Round(time.Millisecond), s.Attempts, s.Retries, outcome, failed)
	}
	tw.Flush()
}

func init() {
	historyCmd.Flags().StringVar(&historyInput, "input", "", "Path to sync event log file")
	historyCmd.Flags().Float64Var(&historySpeed, "speed", 1.0, "Playback speed multiplier for --replay")
	historyCmd.Flags().BoolVar(&historyReplay, "replay", false, "Replay the events instead of summarizing them")
	historyCmd.MarkFlagRequired("input")
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/datatier/cachesim/internal/recorder"
	"github.com/datatier/cachesim/internal/workload"
)

// WorkloadStatsCommand holds the flags of the workload-stats command.
type WorkloadStatsCommand struct {
	root *RootOptions

	filePath      string
	statsFile     string
	statsNoHeader bool
}

// NewWorkloadStatsCommand creates the workload-stats command.
func NewWorkloadStatsCommand(root *RootOptions) *cobra.Command {
	wc := &WorkloadStatsCommand{root: root}

	cmd := &cobra.Command{
		Use:   "workload-stats",
		Short: "Compute per-file and aggregate stats from a recorded trace",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return wc.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&wc.filePath, "file", "f", "", "input trace file")
	cmd.Flags().StringVar(&wc.statsFile, "stats-file", "", "write the summary as CSV to this file")
	cmd.Flags().BoolVar(&wc.statsNoHeader, "stats-no-header", false, "omit the CSV header row")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

// Run executes the workload-stats command.
func (wc *WorkloadStatsCommand) Run(cmd *cobra.Command) error {
	source, err := recorder.NewReader(wc.filePath).Assignments()
	if err != nil {
		return err
	}

	counters := workload.NewStatsCounters()

	for {
		assignment, ok, err := source.Next()
		if err != nil {
			return err
		}

		if !ok {
			break
		}

		counters.ProcessAccess(assignment.Access)
	}

	if wc.statsFile != "" {
		return writeWorkloadStatsCSV(wc.statsFile, counters, !wc.statsNoHeader)
	}

	renderWorkloadStatsTable(cmd.OutOrStdout(), counters)

	return nil
}

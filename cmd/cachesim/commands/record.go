package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/datatier/cachesim/internal/distributor"
	"github.com/datatier/cachesim/internal/recorder"
	"github.com/datatier/cachesim/internal/workload"
	"github.com/datatier/cachesim/internal/workload/randmodel"
	"github.com/datatier/cachesim/pkg/units"
)

// Defaults of the simulated node set.
const (
	defaultNodeCount = 100
	defaultNodeCores = 32
)

// ErrNoGenerationLimit is returned when neither a time nor an access bound
// is given for record.
var ErrNoGenerationLimit = errors.New("either --generate-time or --generate-accesses must be specified")

// RecordCommand holds the flags of the record command.
type RecordCommand struct {
	root *RootOptions

	filePath         string
	model            string
	modelParamsFile  string
	generateAccesses int64
	generateTime     int64
	cacheProcs       int
	nodeCount        int
	nodeThroughput   string
	statsFile        string
	statsNoHeader    bool
}

// NewRecordCommand creates the record command.
func NewRecordCommand(root *RootOptions) *cobra.Command {
	rc := &RecordCommand{root: root}

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Generate accesses from a workload model and write them as a trace",
		RunE: func(*cobra.Command, []string) error {
			return rc.Run()
		},
	}

	cmd.Flags().StringVarP(&rc.filePath, "file", "f", "", "output trace file (\".lz4\" suffix compresses)")
	cmd.Flags().StringVar(&rc.model, "model", "random", "workload model generating the accesses")
	cmd.Flags().StringVar(&rc.modelParamsFile, "model-params-file", "", "JSON file with the workload model parameters")
	cmd.Flags().Int64Var(&rc.generateAccesses, "generate-accesses", 0, "stop after this many accesses")
	cmd.Flags().Int64Var(&rc.generateTime, "generate-time", 0, "stop after this many simulated seconds")
	cmd.Flags().IntVar(&rc.cacheProcs, "cache-processor-count", 0, "number of cache processors accesses are assigned to")
	cmd.Flags().IntVar(&rc.nodeCount, "nodes", defaultNodeCount, "number of simulated compute nodes")
	cmd.Flags().StringVar(&rc.nodeThroughput, "node-throughput", "10 MiB/s", "read rate of each node")
	cmd.Flags().StringVar(&rc.statsFile, "stats-file", "", "write aggregate workload stats as CSV to this file")
	cmd.Flags().BoolVar(&rc.statsNoHeader, "stats-no-header", false, "omit the CSV header row")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("model-params-file")

	return cmd
}

// Run executes the record command.
func (rc *RecordCommand) Run() error {
	if rc.generateAccesses == 0 && rc.generateTime == 0 {
		return ErrNoGenerationLimit
	}

	if rc.model != "random" {
		return fmt.Errorf("unknown workload model %q", rc.model)
	}

	cacheProcs := rc.cacheProcs
	if cacheProcs <= 0 {
		cacheProcs = rc.root.cfg.CacheProcessorCount
	}

	throughput, err := units.ParseBytesRate(rc.nodeThroughput)
	if err != nil {
		return err
	}

	doc, err := os.ReadFile(rc.modelParamsFile)
	if err != nil {
		return fmt.Errorf("read model params: %w", err)
	}

	params, err := randmodel.LoadParams(doc)
	if err != nil {
		return err
	}

	assignments := rc.generate(params, cacheProcs, throughput)

	writer, err := recorder.CreatePath(rc.filePath)
	if err != nil {
		return err
	}

	counters := workload.NewStatsCounters()

	for _, assignment := range assignments {
		if err := writer.WriteAssignment(assignment); err != nil {
			writer.Close()

			return err
		}

		counters.ProcessAccess(assignment.Access)
	}

	if err := writer.Close(); err != nil {
		return err
	}

	rc.root.logger.Info("trace recorded",
		slog.String("file", rc.filePath),
		slog.Int64("accesses", counters.Total().Accesses),
		slog.Int("files", counters.FileCount()),
	)

	if rc.statsFile != "" {
		return writeWorkloadStatsCSV(rc.statsFile, counters, !rc.statsNoHeader)
	}

	return nil
}

// generate drives the model through the scheduler until a bound trips, then
// orders the assignments by access time.
func (rc *RecordCommand) generate(
	params randmodel.Params,
	cacheProcs int,
	throughput workload.BytesSize,
) []distributor.AccessAssignment {
	nodes := make([]distributor.NodeSpec, rc.nodeCount)
	for i := range nodes {
		nodes[i] = distributor.NodeSpec{Cores: defaultNodeCores, Throughput: throughput}
	}

	scheduler := distributor.NewScheduler(cacheProcs, nodes)
	generator := randmodel.NewGenerator(params)

	var assignments []distributor.AccessAssignment

	for {
		job, ok := generator.Next()
		if !ok {
			break
		}

		assignments = append(assignments, scheduler.Assign(job)...)

		if rc.generateAccesses > 0 && int64(len(assignments)) >= rc.generateAccesses {
			break
		}
	}

	slices.SortStableFunc(assignments, func(a, b distributor.AccessAssignment) int {
		switch {
		case a.Access.AccessTS < b.Access.AccessTS:
			return -1
		case a.Access.AccessTS > b.Access.AccessTS:
			return 1
		default:
			return 0
		}
	})

	if rc.generateTime > 0 {
		cut, _ := slices.BinarySearchFunc(assignments, rc.generateTime+1,
			func(a distributor.AccessAssignment, limit int64) int {
				if a.Access.AccessTS < limit {
					return -1
				}

				return 1
			})
		assignments = assignments[:cut]
	}

	if rc.generateAccesses > 0 && int64(len(assignments)) > rc.generateAccesses {
		assignments = assignments[:rc.generateAccesses]
	}

	return assignments
}

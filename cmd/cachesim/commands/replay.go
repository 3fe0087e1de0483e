package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/policy"
	"github.com/datatier/cachesim/internal/recorder"
	"github.com/datatier/cachesim/pkg/units"
)

// ErrConflictingWarmUp is returned when both warm-up bounds are given.
var ErrConflictingWarmUp = errors.New("only one of --warm-up-time and --warm-up-accesses may be specified")

// plotSampleInterval is the access count between hit-rate plot samples.
const plotSampleInterval = 100

// ReplayCommand holds the flags of the replay command.
type ReplayCommand struct {
	root *RootOptions

	filePath         string
	policyName       string
	policyArgs       string
	policyConfigFile string
	cacheProcs    int
	storageSize   string
	nonShared     bool
	warmUpTime    int64
	warmUpAccs    int64
	processTime   int64
	processAccs   int64
	cacheInfoFile string
	statsFile     string
	statsNoHeader bool
	format        string
	plotFile      string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(root *RootOptions) *cobra.Command {
	rc := &ReplayCommand{root: root}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay a recorded trace against a cache replacement policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.Run(cmd)
		},
	}

	cmd.Flags().StringVarP(&rc.filePath, "file", "f", "", "input trace file")
	cmd.Flags().StringVar(&rc.policyName, "cache-processor", "", "replacement policy (one of: "+policyNameList+")")
	cmd.Flags().StringVar(&rc.policyArgs, "cache-processor-args", "", "key=value arguments for the policy")
	cmd.Flags().StringVar(&rc.policyConfigFile, "cache-processor-config", "", "YAML file with policy arguments; --cache-processor-args wins per key")
	cmd.Flags().IntVar(&rc.cacheProcs, "cache-processor-count", 0, "number of simulated cache processors; must match the trace")
	cmd.Flags().StringVar(&rc.storageSize, "storage-size", "", "cache volume size, e.g. \"10 GiB\"")
	cmd.Flags().BoolVar(&rc.nonShared, "non-shared-storage", false, "give each cache processor its own volume")
	cmd.Flags().Int64Var(&rc.warmUpTime, "warm-up-time", 0, "seconds of trace considered warm-up")
	cmd.Flags().Int64Var(&rc.warmUpAccs, "warm-up-accesses", 0, "accesses considered warm-up")
	cmd.Flags().Int64Var(&rc.processTime, "process-time", 0, "seconds of trace to process, warm-up included")
	cmd.Flags().Int64Var(&rc.processAccs, "process-accesses", 0, "accesses to process, warm-up included")
	cmd.Flags().StringVar(&rc.cacheInfoFile, "cache-info-file", "", "write per-access hit/miss records to this file")
	cmd.Flags().StringVar(&rc.statsFile, "stats-file", "", "write the summary as CSV to this file")
	cmd.Flags().BoolVar(&rc.statsNoHeader, "stats-no-header", false, "omit the CSV header row")
	cmd.Flags().StringVar(&rc.format, "format", "table", "summary format on stdout: table or csv")
	cmd.Flags().StringVar(&rc.plotFile, "plot", "", "write a hit-rate-over-accesses HTML chart to this file")

	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("cache-processor")
	_ = cmd.MarkFlagRequired("storage-size")

	return cmd
}

// Run executes the replay command.
func (rc *ReplayCommand) Run(cmd *cobra.Command) error {
	if rc.warmUpTime > 0 && rc.warmUpAccs > 0 {
		return ErrConflictingWarmUp
	}

	storageBytes, err := units.ParseBytesSize(rc.storageSize)
	if err != nil {
		return err
	}

	if rc.policyConfigFile != "" {
		merged, err := mergePolicyConfig(rc.policyConfigFile, rc.policyArgs)
		if err != nil {
			return err
		}

		rc.policyArgs = merged
	}

	system, err := rc.buildSystem(storageBytes)
	if err != nil {
		return err
	}

	if err := rc.consumeWarmUp(system); err != nil {
		return err
	}

	plot := newHitRatePlot(plotSampleInterval)

	if err := rc.consume(system, plot); err != nil {
		return err
	}

	if rc.statsFile != "" {
		if err := writeCacheStatsCSVFile(rc.statsFile, system.Stats(), !rc.statsNoHeader); err != nil {
			return err
		}
	}

	if rc.plotFile != "" {
		if err := plot.render(rc.plotFile, rc.policyName); err != nil {
			return err
		}
	}

	return rc.printSummary(cmd, system.Stats())
}

// buildSystem assembles processors, storages and the trace view. Each
// processor gets its own policy state; storages are shared unless disabled.
func (rc *ReplayCommand) buildSystem(storageBytes int64) (cache.System, error) {
	procCount := rc.cacheProcs
	if procCount <= 0 {
		procCount = rc.root.cfg.CacheProcessorCount
	}

	shared := rc.root.cfg.SharedStorage && !rc.nonShared

	var sharedStorage *cache.Storage
	if shared {
		sharedStorage = cache.NewStorage(storageBytes)
	}

	storageFor := func() *cache.Storage {
		if shared {
			return sharedStorage
		}

		return cache.NewStorage(storageBytes)
	}

	// Probe the policy kind once, then build one instance per processor so
	// no state is shared.
	probe, err := policy.New(rc.policyName, rc.policyArgs, cache.NewStorage(storageBytes), rc.root.logger)
	if err != nil {
		return nil, err
	}

	if probe.Offline() {
		processors := make([]*cache.OfflineProcessor, procCount)

		for i := range processors {
			storage := storageFor()

			inst, err := policy.New(rc.policyName, rc.policyArgs, storage, rc.root.logger)
			if err != nil {
				return nil, err
			}

			processors[i] = cache.NewOfflineProcessor(storage, inst.BuildOffline)
		}

		reader := rc.newReader()

		return cache.NewOfflineCacheSystem(processors, reader)
	}

	processors := make([]*cache.Processor, procCount)

	for i := range processors {
		storage := storageFor()

		inst, err := policy.New(rc.policyName, rc.policyArgs, storage, rc.root.logger)
		if err != nil {
			return nil, err
		}

		processors[i] = cache.NewProcessor(storage, inst.Online)
	}

	source, err := rc.newReader().Assignments()
	if err != nil {
		return nil, err
	}

	if rc.processTime > 0 || rc.processAccs > 0 {
		source = recorder.NewStopEarlySource(source, &recorder.StopEarlyPredicate{
			Time:     rc.processTime,
			Accesses: rc.processAccs,
		})
	}

	return cache.NewOnlineCacheSystem(processors, source), nil
}

// newReader builds the trace view; offline runs push the processing bounds
// into the view so the reuse index covers exactly the processed range.
func (rc *ReplayCommand) newReader() *recorder.Reader {
	if rc.processTime > 0 || rc.processAccs > 0 {
		return recorder.NewReaderWithPredicate(rc.filePath, &recorder.StopEarlyPredicate{
			Time:     rc.processTime,
			Accesses: rc.processAccs,
		})
	}

	return recorder.NewReader(rc.filePath)
}

// consumeWarmUp advances the system through the warm-up window, then resets
// the statistics.
func (rc *ReplayCommand) consumeWarmUp(system cache.System) error {
	if rc.warmUpTime == 0 && rc.warmUpAccs == 0 {
		return nil
	}

	var consumed int64

	for {
		if rc.warmUpAccs > 0 && consumed >= rc.warmUpAccs {
			break
		}

		info, err := system.Next()
		if err != nil {
			return err
		}

		if info == nil {
			break
		}

		consumed++

		if rc.warmUpTime > 0 && info.Access.AccessTS >= rc.warmUpTime {
			break
		}
	}

	system.ResetAfterWarmUp()
	rc.root.logger.Debug("warm-up complete", slog.Int64("accesses", consumed))

	return nil
}

// consume drains the system, recording per-access info, metrics and plot
// samples.
func (rc *ReplayCommand) consume(system cache.System, plot *hitRatePlot) error {
	ctx := context.Background()

	var infoWriter *recorder.Writer

	if rc.cacheInfoFile != "" {
		writer, err := recorder.CreatePath(rc.cacheInfoFile)
		if err != nil {
			return err
		}

		infoWriter = writer
		defer infoWriter.Close()
	}

	for {
		info, err := system.Next()
		if err != nil {
			return err
		}

		if info == nil {
			break
		}

		rc.root.metrics.ObserveAccessInfo(ctx, info)
		plot.observe(info)

		if infoWriter != nil {
			if err := infoWriter.WriteAccessInfo(info); err != nil {
				return err
			}
		}
	}

	if infoWriter != nil {
		return infoWriter.Close()
	}

	return nil
}

func (rc *ReplayCommand) printSummary(cmd *cobra.Command, stats *cache.StatsCounters) error {
	switch rc.format {
	case "table":
		renderCacheStatsTable(cmd.OutOrStdout(), rc.policyName, stats)

		return nil
	case "csv":
		return writeCacheStatsCSV(cmd.OutOrStdout(), stats, !rc.statsNoHeader)
	default:
		return fmt.Errorf("unknown format %q", rc.format)
	}
}

package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/datatier/cachesim/internal/cache"
	"github.com/datatier/cachesim/internal/cache/policy"
	"github.com/datatier/cachesim/internal/workload"
)

// policyNameList enumerates the registered policies for flag help.
var policyNameList = strings.Join(policy.Names(), ", ")

// cacheStatsColumns is the summary CSV column set.
var cacheStatsColumns = table.Row{
	"accesses",
	"files",
	"total_bytes_accessed",
	"unique_bytes_accessed",
	"files_hit",
	"files_missed",
	"bytes_hit",
	"bytes_missed",
	"bytes_added",
	"bytes_removed",
}

func cacheStatsRow(stats *cache.StatsCounters) table.Row {
	total := stats.Total()

	return table.Row{
		total.Accesses,
		stats.FileCount(),
		total.TotalBytesAccessed,
		total.UniqueBytesAccessed,
		total.FilesHit,
		total.FilesMissed,
		total.BytesHit,
		total.BytesMissed,
		total.BytesAdded,
		total.BytesRemoved,
	}
}

// writeCacheStatsCSV writes the summary row as CSV.
func writeCacheStatsCSV(w io.Writer, stats *cache.StatsCounters, header bool) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.Style().Format.Header = text.FormatDefault

	if header {
		t.AppendHeader(cacheStatsColumns)
	}

	t.AppendRow(cacheStatsRow(stats))
	t.RenderCSV()

	return nil
}

// writeCacheStatsCSVFile writes the summary CSV to a file.
func writeCacheStatsCSVFile(path string, stats *cache.StatsCounters, header bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer file.Close()

	if err := writeCacheStatsCSV(file, stats, header); err != nil {
		return err
	}

	return file.Close()
}

// renderCacheStatsTable renders the human-readable summary.
func renderCacheStatsTable(w io.Writer, policyName string, stats *cache.StatsCounters) {
	total := stats.Total()

	heading := color.New(color.Bold, color.FgCyan)
	heading.Fprintf(w, "cache summary (%s)\n", policyName)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"counter", "value"})
	t.AppendRows([]table.Row{
		{"accesses", total.Accesses},
		{"files", stats.FileCount()},
		{"bytes accessed", humanize.IBytes(uint64(total.TotalBytesAccessed))},
		{"unique bytes accessed", humanize.IBytes(uint64(total.UniqueBytesAccessed))},
		{"files hit", total.FilesHit},
		{"files missed", total.FilesMissed},
		{"bytes hit", humanize.IBytes(uint64(total.BytesHit))},
		{"bytes missed", humanize.IBytes(uint64(total.BytesMissed))},
		{"bytes added", humanize.IBytes(uint64(total.BytesAdded))},
		{"bytes removed", humanize.IBytes(uint64(total.BytesRemoved))},
		{"file hit rate", fmt.Sprintf("%.4f", rate(total.FilesHit, total.Accesses))},
		{"byte hit rate", fmt.Sprintf("%.4f", rate(total.BytesHit, total.TotalBytesAccessed))},
	})
	t.Render()
}

func rate(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole)
}

// workloadStatsColumns is the workload CSV column set.
var workloadStatsColumns = table.Row{
	"accesses",
	"files",
	"total_bytes_accessed",
	"unique_bytes_accessed",
}

// writeWorkloadStatsCSV writes the workload summary row as CSV.
func writeWorkloadStatsCSV(path string, counters *workload.StatsCounters, header bool) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create stats file: %w", err)
	}
	defer file.Close()

	t := table.NewWriter()
	t.SetOutputMirror(file)
	t.Style().Format.Header = text.FormatDefault

	if header {
		t.AppendHeader(workloadStatsColumns)
	}

	total := counters.Total()
	t.AppendRow(table.Row{
		total.Accesses,
		counters.FileCount(),
		total.TotalBytesAccessed,
		total.UniqueBytesAccessed,
	})
	t.RenderCSV()

	return file.Close()
}

// renderWorkloadStatsTable renders the human-readable workload summary.
func renderWorkloadStatsTable(w io.Writer, counters *workload.StatsCounters) {
	total := counters.Total()

	heading := color.New(color.Bold, color.FgCyan)
	heading.Fprintln(w, "workload summary")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"counter", "value"})
	t.AppendRows([]table.Row{
		{"accesses", total.Accesses},
		{"files", counters.FileCount()},
		{"bytes accessed", humanize.IBytes(uint64(total.TotalBytesAccessed))},
		{"unique bytes accessed", humanize.IBytes(uint64(total.UniqueBytesAccessed))},
	})
	t.Render()
}

package commands

import (
	"context"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/datastash/datastash/internal/bytesize"
	"github.com/datastash/datastash/internal/cli/output"
	"github.com/datastash/datastash/pkg/store"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show storage and cache statistics",
	Long: `Show per-partition entry counts and sizes, total usage and cache
hit/miss counters. Statistics are derived from the in-memory index
rebuilt from the storage area.

Examples:
  # Show stats as a table
  datastash stats

  # Show stats as JSON
  datastash stats -o json`,
	RunE: runStats,
}

// statsView is the serializable form of the stats output.
type statsView struct {
	TotalBytes     int64                    `json:"totalBytes" yaml:"totalBytes"`
	TotalFormatted string                   `json:"totalFormatted" yaml:"totalFormatted"`
	Partitions     map[string]partitionView `json:"partitions" yaml:"partitions"`
	CacheHits      int64                    `json:"cacheHits" yaml:"cacheHits"`
	CacheMisses    int64                    `json:"cacheMisses" yaml:"cacheMisses"`
}

type partitionView struct {
	Entries        int    `json:"entries" yaml:"entries"`
	TotalBytes     int64  `json:"totalBytes" yaml:"totalBytes"`
	TotalFormatted string `json:"totalFormatted" yaml:"totalFormatted"`
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return err
	}

	ctx := context.Background()
	s, _, cleanup, err := openStash(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	stats := s.Cache().Stats()
	view := statsView{
		TotalBytes:     stats.TotalBytes,
		TotalFormatted: bytesize.Format(uint64(stats.TotalBytes)),
		Partitions:     make(map[string]partitionView, len(stats.PerPartition)),
		CacheHits:      stats.Hits,
		CacheMisses:    stats.Misses,
	}

	table := output.NewTableData("PARTITION", "ENTRIES", "SIZE")
	for _, partition := range store.Partitions() {
		ps := stats.PerPartition[partition]
		view.Partitions[partition.String()] = partitionView{
			Entries:        ps.Entries,
			TotalBytes:     ps.TotalBytes,
			TotalFormatted: bytesize.Format(uint64(ps.TotalBytes)),
		}
		table.AddRow(partition.String(), strconv.Itoa(ps.Entries), bytesize.Format(uint64(ps.TotalBytes)))
	}
	table.AddRow("total", "", bytesize.Format(uint64(stats.TotalBytes)))

	return output.Print(os.Stdout, format, view, table)
}

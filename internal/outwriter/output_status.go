package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
)

// PrintCacheStatus outputs store status, dispatching based on the output format configured.
func PrintCacheStatus(status schema.CacheStatus, cfg *contract.Config) error {
	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVStatus(w, status)
		}, "Wrote CSV")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeStatusText(w, status, cfg)
		}, "Wrote status")
	}
	if err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}
	return nil
}

// writeCSVStatus writes the totals as field/value pairs.
func writeCSVStatus(w io.Writer, status schema.CacheStatus) error {
	return writeCSVWithHeader(w, []string{"field", "value"}, func(cw *csv.Writer) error {
		rows := [][]string{
			{"backend", status.Backend},
			{"connected", strconv.FormatBool(status.Connected)},
			{"total_partitions", strconv.Itoa(status.TotalPartitions)},
			{"total_entries", strconv.Itoa(status.TotalEntries)},
			{"total_bytes", strconv.FormatInt(status.TotalBytes, 10)},
			{"last_entry_time", formatTimeCSV(status.LastEntryTime)},
			{"oldest_entry_time", formatTimeCSV(status.OldestEntryTime)},
		}
		return cw.WriteAll(rows)
	})
}

func writeStatusText(w io.Writer, status schema.CacheStatus, cfg *contract.Config) error {
	fmt.Fprintf(w, "Cache Backend: %s\n", status.Backend)
	fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return nil
	}
	fmt.Fprintf(w, "Partitions: %d\n", status.TotalPartitions)
	fmt.Fprintf(w, "Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		fmt.Fprintf(w, "Last Entry: %s\n", formatTime(status.LastEntryTime))
		fmt.Fprintf(w, "Oldest Entry: %s\n", formatTime(status.OldestEntryTime))
	}
	fmt.Fprintf(w, "Total Size: %s\n", formatBytes(status.TotalBytes))
	if len(status.Partitions) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return writePartitionTable(w, status.Partitions, cfg)
}

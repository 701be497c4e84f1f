package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintPartitions outputs the partition listing, dispatching based on the output format configured.
func PrintPartitions(parts []schema.PartitionStatus, cfg *contract.Config) error {
	var err error
	switch cfg.Output {
	case schema.JSONOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if parts == nil {
				parts = []schema.PartitionStatus{}
			}
			return writeJSON(w, parts)
		}, "Wrote JSON")
	case schema.CSVOut:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVPartitions(w, parts)
		}, "Wrote CSV")
	default:
		err = writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if len(parts) == 0 {
				_, err := fmt.Fprintln(w, "No cache partitions.")
				return err
			}
			return writePartitionTable(w, parts, cfg)
		}, "Wrote partitions")
	}
	if err != nil {
		return fmt.Errorf("error writing %s output: %w", cfg.Output, err)
	}
	return nil
}

func writeCSVPartitions(w io.Writer, parts []schema.PartitionStatus) error {
	header := []string{"name", "kind", "version", "entries", "bytes", "created_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, p := range parts {
			row := []string{
				p.Name,
				string(p.Kind),
				p.Version,
				strconv.Itoa(p.Entries),
				strconv.FormatInt(p.Bytes, 10),
				formatTimeCSV(p.CreatedAt),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// writePartitionTable prints partitions in creation order using the tablewriter API.
func writePartitionTable(w io.Writer, parts []schema.PartitionStatus, cfg *contract.Config) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Partition", "Kind", "Version", "Entries", "Size", "Created"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignLeft
	})

	width := GetMaxTableNameWidth(cfg)
	var data [][]string
	for _, p := range parts {
		data = append(data, []string{
			contract.TruncateKey(p.Name, width),
			string(p.Kind),
			p.Version,
			strconv.Itoa(p.Entries),
			formatBytes(p.Bytes),
			formatTime(p.CreatedAt),
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

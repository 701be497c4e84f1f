package iocache

import (
	"context"
	"errors"
	"fmt"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/parquet"
	"github.com/huangsam/shellcache/schema"
)

// CollectEntries reads every stored entry, partition by partition.
func CollectEntries(ctx context.Context, store contract.CacheStore) ([]schema.EntryRecord, error) {
	partitions, err := store.Partitions(ctx)
	if err != nil {
		return nil, err
	}
	var records []schema.EntryRecord
	for _, partition := range partitions {
		keys, err := store.Keys(ctx, partition)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			resp, err := store.Match(ctx, partition, key)
			if err != nil {
				return nil, err
			}
			if resp == nil {
				continue // removed while reading
			}
			records = append(records, schema.EntryRecord{Partition: partition, Response: resp})
		}
	}
	return records, nil
}

// ExecuteExport writes entry metadata of the store to a Parquet file.
func ExecuteExport(ctx context.Context, store contract.CacheStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache status: %w", err)
	}
	if status.TotalEntries == 0 {
		return errors.New("no cache entries found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total partitions: %d\n", status.TotalPartitions)
	fmt.Printf("Total entries: %d\n", status.TotalEntries)

	records, err := CollectEntries(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to read cache entries: %w", err)
	}

	rows := parquet.ConvertEntryRecords(records)
	if err := parquet.WriteEntriesParquet(rows, outputFile); err != nil {
		return fmt.Errorf("failed to write cache entries: %w", err)
	}
	fmt.Printf("Exported %d cache entries to: %s\n", len(rows), outputFile)
	return nil
}

// Package parquet provides data structures and functions for exporting cache
// entries to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/shellcache/schema"
	"github.com/parquet-go/parquet-go"
)

// EntryRow is the exported metadata of one stored response.
// Bodies are not exported, only their size.
type EntryRow struct {
	// Partition is the cache partition holding the entry
	Partition string `parquet:"partition,snappy"`

	// CacheKey is the request key ("GET /index.html")
	CacheKey string `parquet:"cache_key,snappy"`

	// URL is the absolute URL the response was fetched from
	URL string `parquet:"url,snappy"`

	Status       int32  `parquet:"status,snappy"`
	ResponseType string `parquet:"response_type,snappy"`

	// ContentType is the stored Content-Type header (nullable)
	ContentType *string `parquet:"content_type,optional,snappy"`

	BodyBytes int64 `parquet:"body_bytes,snappy"`

	// StoredAt is when the entry was written (stored as TIMESTAMP with nanosecond precision)
	StoredAt time.Time `parquet:"stored_at,snappy"`
}

// ConvertEntryRecords converts schema.EntryRecord to EntryRow for Parquet export.
func ConvertEntryRecords(records []schema.EntryRecord) []EntryRow {
	result := make([]EntryRow, len(records))
	for i, record := range records {
		resp := record.Response
		row := EntryRow{
			Partition:    record.Partition,
			CacheKey:     resp.Key,
			URL:          resp.URL,
			Status:       int32(resp.Status),
			ResponseType: string(resp.Type),
			BodyBytes:    int64(len(resp.Body)),
			StoredAt:     resp.StoredAt,
		}
		if ct := resp.Header.Get("Content-Type"); ct != "" {
			row.ContentType = &ct
		}
		result[i] = row
	}
	return result
}

// WriteEntriesParquet writes a slice of EntryRow structs to a Parquet file.
func WriteEntriesParquet(data []EntryRow, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	// The schema is derived from the EntryRow struct tags
	writer := parquet.NewGenericWriter[EntryRow](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// ReadEntriesParquet reads back a file written by WriteEntriesParquet.
func ReadEntriesParquet(inputPath string) ([]EntryRow, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := parquet.NewGenericReader[EntryRow](file)
	defer func() { _ = reader.Close() }()

	rows := make([]EntryRow, reader.NumRows())
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read parquet file: %w", err)
	}
	return rows[:n], nil
}

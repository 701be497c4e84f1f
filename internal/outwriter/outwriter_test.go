package outwriter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleStatus() schema.CacheStatus {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return schema.CacheStatus{
		Backend:         "sqlite",
		Connected:       true,
		TotalPartitions: 2,
		TotalEntries:    3,
		TotalBytes:      2048,
		LastEntryTime:   created.Add(time.Hour),
		OldestEntryTime: created,
		Partitions: []schema.PartitionStatus{
			{Name: "app-v2", Kind: schema.PrecacheKind, Version: "v2", Entries: 2, Bytes: 2000, CreatedAt: created},
			{Name: "app-runtime-v2", Kind: schema.RuntimeKind, Version: "v2", Entries: 1, Bytes: 48, CreatedAt: created},
		},
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{5 << 20, "5.0 MiB"},
		{3 << 30, "3.0 GiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "-", formatTime(time.Time{}))
	assert.Empty(t, formatTimeCSV(time.Time{}))
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-01T12:00:00Z", formatTimeCSV(ts))
}

func TestGetMaxTableNameWidth(t *testing.T) {
	tests := []struct {
		width int
		want  int
	}{
		{40, 15},
		{100, 25},
		{200, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GetMaxTableNameWidth(&contract.Config{Width: tt.width}))
	}
}

func TestWriteStatusText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStatusText(&buf, sampleStatus(), &contract.Config{Width: 200}))

	out := buf.String()
	assert.Contains(t, out, "Cache Backend: sqlite")
	assert.Contains(t, out, "Partitions: 2")
	assert.Contains(t, out, "Total Entries: 3")
	assert.Contains(t, out, "Total Size: 2.0 KiB")
	assert.Contains(t, out, "app-runtime-v2")
	assert.Contains(t, out, "precache")

	buf.Reset()
	require.NoError(t, writeStatusText(&buf, schema.CacheStatus{Backend: "redis"}, &contract.Config{}))
	assert.Equal(t, "Cache Backend: redis\nConnected: false\n", buf.String())
}

func TestWriteCSVStatus(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSVStatus(&buf, sampleStatus()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 8)
	assert.Equal(t, []string{"field", "value"}, records[0])
	assert.Equal(t, []string{"total_bytes", "2048"}, records[5])
}

func TestWriteCSVPartitions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeCSVPartitions(&buf, sampleStatus().Partitions))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"app-v2", "precache", "v2", "2", "2000", "2026-03-01T12:00:00Z"}, records[1])
}

func TestWritePartitionTableTruncates(t *testing.T) {
	parts := []schema.PartitionStatus{{Name: strings.Repeat("x", 80), Kind: schema.UnknownKind}}
	var buf bytes.Buffer
	require.NoError(t, writePartitionTable(&buf, parts, &contract.Config{Width: 90}))
	assert.Contains(t, buf.String(), strings.Repeat("x", 12)+"...")
	assert.NotContains(t, buf.String(), strings.Repeat("x", 16))
}

func TestWorkersOrder(t *testing.T) {
	reg := schema.RegistrationStatus{
		Active:  &schema.WorkerStatus{Version: "v2", State: schema.ActiveState},
		Waiting: &schema.WorkerStatus{Version: "v3", State: schema.WaitingState},
		Retired: []schema.WorkerStatus{
			{Version: "v0", State: schema.RedundantState},
			{Version: "v1", State: schema.RedundantState},
		},
	}
	var versions []string
	for _, ws := range workers(reg) {
		versions = append(versions, ws.Version)
	}
	assert.Equal(t, []string{"v3", "v2", "v1", "v0"}, versions)
}

func TestWriteRegistrationTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRegistrationTable(&buf, schema.RegistrationStatus{}))
	assert.Equal(t, "No versions registered.\n", buf.String())

	buf.Reset()
	reg := schema.RegistrationStatus{Active: &schema.WorkerStatus{Version: "v1", State: schema.ActiveState}}
	require.NoError(t, writeRegistrationTable(&buf, reg))
	assert.Contains(t, buf.String(), "v1")
	assert.Contains(t, buf.String(), "active")
}

func TestPrintToFile(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name  string
		mode  schema.OutputMode
		print func(cfg *contract.Config) error
		check func(t *testing.T, data []byte)
	}{
		{
			name: "status json",
			mode: schema.JSONOut,
			print: func(cfg *contract.Config) error {
				return NewOutWriter().WriteCacheStatus(sampleStatus(), cfg)
			},
			check: func(t *testing.T, data []byte) {
				var got schema.CacheStatus
				require.NoError(t, json.Unmarshal(data, &got))
				assert.Equal(t, 3, got.TotalEntries)
				assert.Len(t, got.Partitions, 2)
			},
		},
		{
			name: "partitions json empty",
			mode: schema.JSONOut,
			print: func(cfg *contract.Config) error {
				return NewOutWriter().WritePartitions(schema.CacheStatus{}, cfg)
			},
			check: func(t *testing.T, data []byte) {
				assert.Equal(t, "[]\n", string(data))
			},
		},
		{
			name: "partitions text empty",
			mode: schema.TextOut,
			print: func(cfg *contract.Config) error {
				return NewOutWriter().WritePartitions(schema.CacheStatus{}, cfg)
			},
			check: func(t *testing.T, data []byte) {
				assert.Equal(t, "No cache partitions.\n", string(data))
			},
		},
		{
			name: "registration csv",
			mode: schema.CSVOut,
			print: func(cfg *contract.Config) error {
				reg := schema.RegistrationStatus{Active: &schema.WorkerStatus{Version: "v1", State: schema.ActiveState}}
				return NewOutWriter().WriteRegistration(reg, cfg)
			},
			check: func(t *testing.T, data []byte) {
				assert.Equal(t, "version,state\nv1,active\n", string(data))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_"))
			cfg := &contract.Config{Output: tt.mode, OutputFile: path, Width: 120}
			require.NoError(t, tt.print(cfg))
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			tt.check(t, data)
		})
	}
}

func TestPrintBadOutputFile(t *testing.T) {
	cfg := &contract.Config{Output: schema.JSONOut, OutputFile: filepath.Join(t.TempDir(), "missing", "out.json")}
	err := PrintCacheStatus(sampleStatus(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error writing json output")
}

package iocache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache/storetest"
	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) contract.CacheStore {
		return newSQLiteStore(t)
	})
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	store, err := NewSQLStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "app-v1", storetest.Response("/index.html", "shell")))
	require.NoError(t, store.Close())

	reopened, err := NewSQLStore(schema.SQLiteBackend, dbPath)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Match(ctx, "app-v1", "GET /index.html")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "shell", string(got.Body))
}

func TestSQLStoreBind(t *testing.T) {
	pg := &SQLStore{backend: schema.PostgreSQLBackend}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.bind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{backend: schema.SQLiteBackend}
	assert.Equal(t, "x = ?", lite.bind("x = ?"))
}

func TestSQLStoreQueriesPerBackend(t *testing.T) {
	tests := []struct {
		backend schema.DatabaseBackend
		open    string
		upsert  string
	}{
		{schema.SQLiteBackend, "INSERT OR IGNORE", "INSERT OR REPLACE"},
		{schema.MySQLBackend, "INSERT IGNORE", "ON DUPLICATE KEY UPDATE"},
		{schema.PostgreSQLBackend, "ON CONFLICT (name) DO NOTHING", "ON CONFLICT (partition_name, cache_key)"},
	}
	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			s := &SQLStore{backend: tt.backend}
			assert.Contains(t, s.openPartitionQuery(), tt.open)
			assert.Contains(t, s.getUpsertQuery(), tt.upsert)
		})
	}
}

func TestNewCacheStoreUnsupported(t *testing.T) {
	_, err := NewCacheStore("mongo", "")
	assert.Error(t, err)

	store, err := NewCacheStore(schema.MemoryBackend, "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

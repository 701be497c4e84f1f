// Package storetest holds behavior checks shared by every CacheStore backend.
package storetest

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Response builds a cacheable response for a GET path.
func Response(path, body string) *schema.CachedResponse {
	return &schema.CachedResponse{
		Key:    schema.PathKey(path),
		URL:    "http://origin.test" + path,
		Status: http.StatusOK,
		Type:   schema.BasicResponse,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte(body),
	}
}

// Run exercises a store produced by newStore. Each subtest receives an empty store.
func Run(t *testing.T, newStore func(t *testing.T) contract.CacheStore) {
	ctx := context.Background()

	t.Run("match miss is nil", func(t *testing.T) {
		store := newStore(t)
		resp, err := store.Match(ctx, "missing", "GET /")
		require.NoError(t, err)
		assert.Nil(t, resp)
	})

	t.Run("put then match", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "app-v1", Response("/index.html", "<html>v1</html>")))

		got, err := store.Match(ctx, "app-v1", "GET /index.html")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "<html>v1</html>", string(got.Body))
		assert.Equal(t, http.StatusOK, got.Status)
		assert.Equal(t, schema.BasicResponse, got.Type)
		assert.Equal(t, "text/plain", got.Header.Get("Content-Type"))
		assert.Equal(t, "http://origin.test/index.html", got.URL)
		assert.False(t, got.StoredAt.IsZero())
	})

	t.Run("put overwrites", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "p", Response("/a", "one")))
		require.NoError(t, store.Put(ctx, "p", Response("/a", "two")))

		got, err := store.Match(ctx, "p", "GET /a")
		require.NoError(t, err)
		assert.Equal(t, "two", string(got.Body))
		keys, err := store.Keys(ctx, "p")
		require.NoError(t, err)
		assert.Equal(t, []string{"GET /a"}, keys)
	})

	t.Run("partitions keep creation order", func(t *testing.T) {
		store := newStore(t)
		for _, name := range []string{"app-v1", "app-runtime-v1", "app-v2"} {
			require.NoError(t, store.Open(ctx, name))
			time.Sleep(2 * time.Millisecond)
		}
		// opening again does not move it
		require.NoError(t, store.Open(ctx, "app-v1"))

		names, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"app-v1", "app-runtime-v1", "app-v2"}, names)
	})

	t.Run("put all and keys", func(t *testing.T) {
		store := newStore(t)
		resps := []*schema.CachedResponse{Response("/b", "b"), Response("/a", "a"), Response("/", "root")}
		require.NoError(t, store.PutAll(ctx, "app-v1", resps))

		keys, err := store.Keys(ctx, "app-v1")
		require.NoError(t, err)
		assert.Equal(t, []string{"GET /", "GET /a", "GET /b"}, keys)
	})

	t.Run("empty body survives", func(t *testing.T) {
		store := newStore(t)
		resp := Response("/empty", "")
		resp.Body = nil
		require.NoError(t, store.Put(ctx, "p", resp))
		got, err := store.Match(ctx, "p", "GET /empty")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Empty(t, got.Body)
	})

	t.Run("delete partition", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.Put(ctx, "app-v1", Response("/", "root")))
		require.NoError(t, store.Open(ctx, "app-runtime-v1"))

		existed, err := store.DeletePartition(ctx, "app-v1")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = store.DeletePartition(ctx, "app-v1")
		require.NoError(t, err)
		assert.False(t, existed)

		got, err := store.Match(ctx, "app-v1", "GET /")
		require.NoError(t, err)
		assert.Nil(t, got)

		names, err := store.Partitions(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"app-runtime-v1"}, names)
	})

	t.Run("status", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.PutAll(ctx, "app-v1", []*schema.CachedResponse{Response("/", "12345"), Response("/x", "678")}))
		require.NoError(t, store.Open(ctx, "app-runtime-v1"))

		status, err := store.GetStatus(ctx)
		require.NoError(t, err)
		assert.True(t, status.Connected)
		assert.Equal(t, 2, status.TotalPartitions)
		assert.Equal(t, 2, status.TotalEntries)
		assert.Equal(t, int64(8), status.TotalBytes)
		require.Len(t, status.Partitions, 2)
		assert.Equal(t, "app-v1", status.Partitions[0].Name)
		assert.Equal(t, 2, status.Partitions[0].Entries)
		assert.Equal(t, 0, status.Partitions[1].Entries)
		assert.False(t, status.LastEntryTime.IsZero())
		assert.False(t, status.OldestEntryTime.After(status.LastEntryTime))
	})

	t.Run("stored values are isolated from callers", func(t *testing.T) {
		store := newStore(t)
		resp := Response("/iso", "orig")
		require.NoError(t, store.Put(ctx, "p", resp))
		resp.Body[0] = 'X'

		got, err := store.Match(ctx, "p", "GET /iso")
		require.NoError(t, err)
		assert.Equal(t, "orig", string(got.Body))
	})
}

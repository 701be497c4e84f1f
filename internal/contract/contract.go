// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"

	"github.com/huangsam/shellcache/schema"
)

// CacheManager defines the interface for managing the cache store.
// This allows the cache layer to be mocked for testing.
type CacheManager interface {
	GetStore() CacheStore
}

// CacheStore holds named cache partitions of stored responses.
// Implementations must be safe for concurrent use.
type CacheStore interface {
	// Open creates the partition if it does not exist yet.
	Open(ctx context.Context, partition string) error

	// Partitions lists partition names in creation order.
	Partitions(ctx context.Context) ([]string, error)

	// Match returns the stored response for key, or nil on a miss.
	Match(ctx context.Context, partition, key string) (*schema.CachedResponse, error)

	// Put stores a response under its key, replacing any previous entry.
	Put(ctx context.Context, partition string, resp *schema.CachedResponse) error

	// PutAll stores every response or none of them.
	PutAll(ctx context.Context, partition string, resps []*schema.CachedResponse) error

	// Keys lists the keys held by a partition in sorted order.
	Keys(ctx context.Context, partition string) ([]string, error)

	// DeletePartition removes a partition and its entries.
	DeletePartition(ctx context.Context, partition string) (bool, error)

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.CacheStatus, error)

	// Close closes the underlying connection.
	Close() error
}

// Fetcher performs network requests against the origin.
type Fetcher interface {
	Fetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, error)
}

// Lifecycle is one version of the offline cache manager as seen by its host.
// The host invokes one method per lifecycle event.
type Lifecycle interface {
	// Version returns the CacheVersion token this manager serves.
	Version() string

	// OnInstall populates the precache. A failure aborts the rollout.
	OnInstall(ctx context.Context) error

	// OnActivate evicts partitions of other versions.
	OnActivate(ctx context.Context) error

	// OnFetch answers an intercepted request.
	OnFetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, schema.Source, error)

	// OnMessage handles a control message. Unknown messages are ignored.
	OnMessage(ctx context.Context, msg schema.Message)

	// OnSync handles a background sync event.
	OnSync(ctx context.Context, tag string) error

	// SkipWaitingRequested reports whether the manager asked to activate immediately.
	SkipWaitingRequested() bool
}

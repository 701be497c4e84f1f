package iocache

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
)

type memoryPartition struct {
	createdAt time.Time
	entries   map[string]*schema.CachedResponse
}

// MemoryStore keeps cache partitions in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	order      []string
	partitions map[string]*memoryPartition
}

var _ contract.CacheStore = &MemoryStore{} // Compile-time check

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{partitions: map[string]*memoryPartition{}}
}

// open must be called with the write lock held.
func (s *MemoryStore) open(partition string) *memoryPartition {
	p, ok := s.partitions[partition]
	if !ok {
		p = &memoryPartition{createdAt: time.Now(), entries: map[string]*schema.CachedResponse{}}
		s.partitions[partition] = p
		s.order = append(s.order, partition)
	}
	return p
}

func stamp(resp *schema.CachedResponse) *schema.CachedResponse {
	c := resp.Clone()
	if c.StoredAt.IsZero() {
		c.StoredAt = time.Now()
	}
	return c
}

// Open creates the partition if it does not exist yet.
func (s *MemoryStore) Open(_ context.Context, partition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(partition)
	return nil
}

// Partitions lists partition names in creation order.
func (s *MemoryStore) Partitions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// Match returns the stored response for key, or nil on a miss.
func (s *MemoryStore) Match(_ context.Context, partition, key string) (*schema.CachedResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[partition]
	if !ok {
		return nil, nil
	}
	return p.entries[key].Clone(), nil
}

// Put stores a response under its key, replacing any previous entry.
func (s *MemoryStore) Put(_ context.Context, partition string, resp *schema.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open(partition).entries[resp.Key] = stamp(resp)
	return nil
}

// PutAll stores every response or none of them.
func (s *MemoryStore) PutAll(_ context.Context, partition string, resps []*schema.CachedResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.open(partition)
	for _, resp := range resps {
		p.entries[resp.Key] = stamp(resp)
	}
	return nil
}

// Keys lists the keys held by a partition in sorted order.
func (s *MemoryStore) Keys(_ context.Context, partition string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.partitions[partition]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(p.entries))
	for k := range p.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys, nil
}

// DeletePartition removes a partition and its entries.
func (s *MemoryStore) DeletePartition(_ context.Context, partition string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.partitions[partition]; !ok {
		return false, nil
	}
	delete(s.partitions, partition)
	s.order = slices.DeleteFunc(s.order, func(name string) bool { return name == partition })
	return true, nil
}

// GetStatus returns status information about the store.
func (s *MemoryStore) GetStatus(_ context.Context) (schema.CacheStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	status := schema.CacheStatus{Backend: string(schema.MemoryBackend), Connected: true}
	for _, name := range s.order {
		p := s.partitions[name]
		ps := schema.PartitionStatus{Name: name, Entries: len(p.entries), CreatedAt: p.createdAt}
		for _, e := range p.entries {
			ps.Bytes += int64(len(e.Body))
			trackEntryTime(&status, e.StoredAt)
		}
		status.Partitions = append(status.Partitions, ps)
		status.TotalEntries += ps.Entries
		status.TotalBytes += ps.Bytes
	}
	status.TotalPartitions = len(status.Partitions)
	return status, nil
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error { return nil }

// trackEntryTime widens the oldest/newest entry window of a status.
func trackEntryTime(status *schema.CacheStatus, t time.Time) {
	if status.OldestEntryTime.IsZero() || t.Before(status.OldestEntryTime) {
		status.OldestEntryTime = t
	}
	if t.After(status.LastEntryTime) {
		status.LastEntryTime = t
	}
}

package iocache

import (
	"context"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/mock"
)

// MockCacheManager is a mock implementation of CacheManager for testing.
type MockCacheManager struct {
	mock.Mock
}

var _ contract.CacheManager = &MockCacheManager{} // Compile-time check

// GetStore implements the CacheManager interface.
func (m *MockCacheManager) GetStore() contract.CacheStore {
	ret := m.Called()
	store, _ := ret.Get(0).(contract.CacheStore)
	return store
}

// MockCacheStore is a mock implementation of CacheStore for testing.
type MockCacheStore struct {
	mock.Mock
}

var _ contract.CacheStore = &MockCacheStore{} // Compile-time check

// Open implements the CacheStore interface.
func (m *MockCacheStore) Open(ctx context.Context, partition string) error {
	return m.Called(ctx, partition).Error(0)
}

// Partitions implements the CacheStore interface.
func (m *MockCacheStore) Partitions(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// Match implements the CacheStore interface.
func (m *MockCacheStore) Match(ctx context.Context, partition, key string) (*schema.CachedResponse, error) {
	args := m.Called(ctx, partition, key)
	resp, _ := args.Get(0).(*schema.CachedResponse)
	return resp, args.Error(1)
}

// Put implements the CacheStore interface.
func (m *MockCacheStore) Put(ctx context.Context, partition string, resp *schema.CachedResponse) error {
	return m.Called(ctx, partition, resp).Error(0)
}

// PutAll implements the CacheStore interface.
func (m *MockCacheStore) PutAll(ctx context.Context, partition string, resps []*schema.CachedResponse) error {
	return m.Called(ctx, partition, resps).Error(0)
}

// Keys implements the CacheStore interface.
func (m *MockCacheStore) Keys(ctx context.Context, partition string) ([]string, error) {
	args := m.Called(ctx, partition)
	keys, _ := args.Get(0).([]string)
	return keys, args.Error(1)
}

// DeletePartition implements the CacheStore interface.
func (m *MockCacheStore) DeletePartition(ctx context.Context, partition string) (bool, error) {
	args := m.Called(ctx, partition)
	return args.Bool(0), args.Error(1)
}

// GetStatus implements the CacheStore interface.
func (m *MockCacheStore) GetStatus(ctx context.Context) (schema.CacheStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(schema.CacheStatus), args.Error(1)
}

// Close implements the CacheStore interface.
func (m *MockCacheStore) Close() error {
	return m.Called().Error(0)
}

package contract

import (
	"context"

	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of Fetcher for testing.
type MockFetcher struct {
	mock.Mock
}

var _ Fetcher = &MockFetcher{} // Compile-time check

// Fetch implements the Fetcher interface.
func (m *MockFetcher) Fetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, error) {
	ret := m.Called(ctx, req)
	resp, _ := ret.Get(0).(*schema.CachedResponse)
	return resp, ret.Error(1)
}

// MockLifecycle is a mock implementation of Lifecycle for testing.
type MockLifecycle struct {
	mock.Mock
}

var _ Lifecycle = &MockLifecycle{} // Compile-time check

// Version implements the Lifecycle interface.
func (m *MockLifecycle) Version() string {
	return m.Called().String(0)
}

// OnInstall implements the Lifecycle interface.
func (m *MockLifecycle) OnInstall(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// OnActivate implements the Lifecycle interface.
func (m *MockLifecycle) OnActivate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// OnFetch implements the Lifecycle interface.
func (m *MockLifecycle) OnFetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, schema.Source, error) {
	ret := m.Called(ctx, req)
	resp, _ := ret.Get(0).(*schema.CachedResponse)
	src, _ := ret.Get(1).(schema.Source)
	return resp, src, ret.Error(2)
}

// OnMessage implements the Lifecycle interface.
func (m *MockLifecycle) OnMessage(ctx context.Context, msg schema.Message) {
	m.Called(ctx, msg)
}

// OnSync implements the Lifecycle interface.
func (m *MockLifecycle) OnSync(ctx context.Context, tag string) error {
	return m.Called(ctx, tag).Error(0)
}

// SkipWaitingRequested implements the Lifecycle interface.
func (m *MockLifecycle) SkipWaitingRequested() bool {
	return m.Called().Bool(0)
}

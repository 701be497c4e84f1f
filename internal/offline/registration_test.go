package offline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstVersionActivates(t *testing.T) {
	ctx := context.Background()
	opts := testOptions("v1")
	opts.SkipWaiting = false // nothing active yet, so it activates anyway
	m := NewManager(opts, iocache.NewMemoryStore(), newFakeOrigin(siteBodies()), quietLogger())

	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, m))
	assert.Same(t, m, reg.Active())
	assert.Nil(t, reg.Waiting())

	snap := reg.Snapshot()
	require.NotNil(t, snap.Active)
	assert.Equal(t, "v1", snap.Active.Version)
	assert.Equal(t, schema.ActiveState, snap.Active.State)
}

func TestRegisterFailedInstallKeepsActive(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	origin := newFakeOrigin(siteBodies())
	reg := NewRegistration(quietLogger())

	v1 := NewManager(testOptions("v1"), store, origin, quietLogger())
	require.NoError(t, reg.Register(ctx, v1))

	delete(origin.bodies, "/")
	v2 := NewManager(testOptions("v2"), store, origin, quietLogger())
	err := reg.Register(ctx, v2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInstallFailed)

	assert.Same(t, v1, reg.Active())
	snap := reg.Snapshot()
	require.Len(t, snap.Retired, 1)
	assert.Equal(t, schema.WorkerStatus{Version: "v2", State: schema.RedundantState}, snap.Retired[0])
	assert.Equal(t, []string{"app-v1"}, partitionsOf(t, store))
}

func TestSkipWaitingMessagePromotesWaitingVersion(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	origin := newFakeOrigin(siteBodies())
	reg := NewRegistration(quietLogger())

	v1 := NewManager(testOptions("v1"), store, origin, quietLogger())
	require.NoError(t, reg.Register(ctx, v1))
	_, _, err := reg.Fetch(ctx, getRequest(t, "/data.json"))
	require.NoError(t, err)

	opts := testOptions("v2")
	opts.SkipWaiting = false
	v2 := NewManager(opts, store, origin, quietLogger())
	require.NoError(t, reg.Register(ctx, v2))

	assert.Same(t, v1, reg.Active())
	assert.Same(t, v2, reg.Waiting())
	assert.ElementsMatch(t, []string{"app-v1", "app-runtime-v1", "app-v2"}, partitionsOf(t, store))

	reg.PostMessage(ctx, schema.Message{Type: schema.SkipWaitingMessage})

	assert.Same(t, v2, reg.Active())
	assert.Nil(t, reg.Waiting())
	assert.Equal(t, []string{"app-v2"}, partitionsOf(t, store))

	snap := reg.Snapshot()
	require.Len(t, snap.Retired, 1)
	assert.Equal(t, "v1", snap.Retired[0].Version)
	assert.Equal(t, schema.RedundantState, snap.Retired[0].State)
	v1.Wait()
}

func TestRegisterWithSkipWaitingTakesOverImmediately(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	origin := newFakeOrigin(siteBodies())
	reg := NewRegistration(quietLogger())

	require.NoError(t, reg.Register(ctx, NewManager(testOptions("v1"), store, origin, quietLogger())))
	v2 := NewManager(testOptions("v2"), store, origin, quietLogger())
	require.NoError(t, reg.Register(ctx, v2))

	assert.Same(t, v2, reg.Active())
	assert.Equal(t, []string{"app-v2"}, partitionsOf(t, store))
}

func TestRegisterReplacesOlderWaitingVersion(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	origin := newFakeOrigin(siteBodies())
	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, NewManager(testOptions("v1"), store, origin, quietLogger())))

	for _, version := range []string{"v2", "v3"} {
		opts := testOptions(version)
		opts.SkipWaiting = false
		require.NoError(t, reg.Register(ctx, NewManager(opts, store, origin, quietLogger())))
	}

	snap := reg.Snapshot()
	require.NotNil(t, snap.Waiting)
	assert.Equal(t, "v3", snap.Waiting.Version)
	require.Len(t, snap.Retired, 1)
	assert.Equal(t, "v2", snap.Retired[0].Version)
}

func TestRegistrationWithoutActiveVersion(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistration(quietLogger())

	_, src, err := reg.Fetch(ctx, getRequest(t, "/"))
	assert.ErrorIs(t, err, ErrNoActiveVersion)
	assert.Equal(t, schema.PassthroughSource, src)
	assert.ErrorIs(t, reg.Sync(ctx, "sync-data"), ErrNoActiveVersion)
	assert.Nil(t, reg.Active())

	// No receiver, nothing happens
	reg.PostMessage(ctx, schema.Message{Type: schema.ClearCacheMessage})
}

func TestSyncSucceedsWithoutStoreChanges(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, NewManager(testOptions("v1"), store, newFakeOrigin(siteBodies()), quietLogger())))

	before, err := store.GetStatus(ctx)
	require.NoError(t, err)
	require.NoError(t, reg.Sync(ctx, "sync-data"))
	require.NoError(t, reg.Sync(ctx, "anything-else"))
	after, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestActivateErrorStillActivates(t *testing.T) {
	ctx := context.Background()
	lc := &contract.MockLifecycle{}
	lc.On("Version").Return("v9")
	lc.On("OnInstall", mock.Anything).Return(nil)
	lc.On("SkipWaitingRequested").Return(true)
	lc.On("OnActivate", mock.Anything).Return(errors.New("partition locked"))

	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, lc))
	assert.Same(t, lc, reg.Active())
	lc.AssertExpectations(t)
}

func TestPostMessageRoutesToActive(t *testing.T) {
	ctx := context.Background()
	lc := &contract.MockLifecycle{}
	lc.On("Version").Return("v1")
	lc.On("OnInstall", mock.Anything).Return(nil)
	lc.On("SkipWaitingRequested").Return(false)
	lc.On("OnActivate", mock.Anything).Return(nil)
	clearMsg := schema.Message{Type: schema.ClearCacheMessage}
	lc.On("OnMessage", mock.Anything, clearMsg).Return()

	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, lc))
	reg.PostMessage(ctx, clearMsg)
	lc.AssertCalled(t, "OnMessage", mock.Anything, clearMsg)
}

func TestFetchNotBlockedByMessageHandler(t *testing.T) {
	ctx := context.Background()
	started, release := make(chan struct{}), make(chan struct{})
	lc := &contract.MockLifecycle{}
	lc.On("Version").Return("v1")
	lc.On("OnInstall", mock.Anything).Return(nil)
	lc.On("SkipWaitingRequested").Return(false)
	lc.On("OnActivate", mock.Anything).Return(nil)
	lc.On("OnMessage", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(started)
		<-release
	}).Return()
	page := &schema.CachedResponse{Status: 200, Body: []byte("page")}
	lc.On("OnFetch", mock.Anything, mock.Anything).Return(page, schema.CacheSource, nil)

	reg := NewRegistration(quietLogger())
	require.NoError(t, reg.Register(ctx, lc))

	posted := make(chan struct{})
	go func() {
		reg.PostMessage(ctx, schema.Message{Type: schema.ClearCacheMessage})
		close(posted)
	}()
	<-started

	req := getRequest(t, "/page")
	fetched := make(chan struct{})
	go func() {
		_, _, _ = reg.Fetch(ctx, req)
		close(fetched)
	}()
	select {
	case <-fetched:
	case <-time.After(time.Second):
		t.Fatal("fetch waited for the message handler")
	}
	assert.NotNil(t, reg.Snapshot().Active)

	close(release)
	<-posted
}

// closingOrigin records whether the manager released it.
type closingOrigin struct {
	*fakeOrigin
	closed atomic.Bool
}

func (c *closingOrigin) Close() error {
	c.closed.Store(true)
	return nil
}

func TestRetiredVersionIsClosed(t *testing.T) {
	ctx := context.Background()
	store := iocache.NewMemoryStore()
	reg := NewRegistration(quietLogger())

	first := &closingOrigin{fakeOrigin: newFakeOrigin(siteBodies())}
	second := &closingOrigin{fakeOrigin: newFakeOrigin(siteBodies())}
	require.NoError(t, reg.Register(ctx, NewManager(testOptions("v1"), store, first, quietLogger())))
	require.NoError(t, reg.Register(ctx, NewManager(testOptions("v2"), store, second, quietLogger())))

	assert.Eventually(t, first.closed.Load, time.Second, 10*time.Millisecond)
	assert.False(t, second.closed.Load())
}

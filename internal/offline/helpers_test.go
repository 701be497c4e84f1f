package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testOrigin = "site.test"

// fakeOrigin serves fixed bodies by path and can go offline or stall.
type fakeOrigin struct {
	mu      sync.Mutex
	bodies  map[string]string
	status  map[string]int
	offline bool
	gate    chan struct{}
	calls   map[string]int
}

func newFakeOrigin(bodies map[string]string) *fakeOrigin {
	return &fakeOrigin{bodies: bodies, status: map[string]int{}, calls: map[string]int{}}
}

func (f *fakeOrigin) Fetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	path := req.URL.Path
	f.calls[path]++
	if f.offline {
		return nil, errors.New("network unreachable")
	}
	body, ok := f.bodies[path]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
	}
	if s, ok := f.status[path]; ok {
		status = s
	}
	return &schema.CachedResponse{
		Key:    req.Key(),
		URL:    "http://" + testOrigin + req.URL.RequestURI(),
		Status: status,
		Type:   schema.BasicResponse,
		Header: http.Header{"Content-Type": {"text/html"}},
		Body:   []byte(body),
	}, nil
}

func (f *fakeOrigin) set(path, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bodies[path] = body
}

func (f *fakeOrigin) setOffline(offline bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = offline
}

func (f *fakeOrigin) stall() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeOrigin) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOptions(version string) Options {
	return Options{
		AppName:     "app",
		Version:     version,
		Manifest:    []string{"/", "/index.html"},
		ShellPath:   "/index.html",
		Excludes:    []string{"analytics"},
		SkipWaiting: true,
	}
}

func siteBodies() map[string]string {
	return map[string]string{
		"/":           "<html>root</html>",
		"/index.html": "<html>shell</html>",
		"/data.json":  `{"n":1}`,
	}
}

func getRequest(t *testing.T, path string) *schema.Request {
	t.Helper()
	req, err := schema.NewRequest(http.MethodGet, path, testOrigin)
	require.NoError(t, err)
	return req
}

func keysOf(t *testing.T, store *iocache.MemoryStore, partition string) []string {
	t.Helper()
	keys, err := store.Keys(context.Background(), partition)
	require.NoError(t, err)
	return keys
}

func partitionsOf(t *testing.T, store *iocache.MemoryStore) []string {
	t.Helper()
	names, err := store.Partitions(context.Background())
	require.NoError(t, err)
	return names
}

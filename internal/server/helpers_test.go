package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/internal/offline"
	"github.com/huangsam/shellcache/internal/origin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// site is a tiny origin that records the requests it sees.
type site struct {
	mu     sync.Mutex
	seen   []string
	server *httptest.Server
}

func newSite(t *testing.T) *site {
	t.Helper()
	s := &site{}
	pages := map[string]string{
		"/":               "home",
		"/index.html":     "<html>shell</html>",
		"/about":          "about page",
		"/analytics/ping": "tracked",
	}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.seen = append(s.seen, r.Method+" "+r.URL.RequestURI())
		s.mu.Unlock()

		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			_, _ = w.Write([]byte("posted:" + string(body)))
			return
		}
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(page))
	}))
	t.Cleanup(s.server.Close)
	return s
}

func (s *site) requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.seen...)
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testConfig(t *testing.T, originURL, version string) *contract.Config {
	t.Helper()
	u, err := url.Parse(originURL)
	require.NoError(t, err)
	return &contract.Config{
		Origin:        u,
		OriginHost:    u.Host,
		Listen:        "127.0.0.1:0",
		AppName:       "app",
		CacheVersion:  version,
		Manifest:      []string{"/", "/index.html"},
		ShellPath:     "/index.html",
		Excludes:      []string{"analytics"},
		SkipWaiting:   true,
		FetchTimeout:  time.Second,
		ControlPrefix: contract.DefaultControlPrefix,
	}
}

type fixture struct {
	site  *site
	cfg   *contract.Config
	store *iocache.MemoryStore
	reg   *offline.Registration
	srv   *Server
}

func (f *fixture) manager(cfg *contract.Config) *offline.Manager {
	return offline.NewManager(offline.OptionsFromConfig(cfg), f.store,
		origin.NewClient(cfg.Origin.String(), cfg.FetchTimeout), quietLogger())
}

// newFixture wires a server to a live origin. When install is set the
// first version is registered before returning.
func newFixture(t *testing.T, install bool) *fixture {
	t.Helper()
	f := &fixture{site: newSite(t), store: iocache.NewMemoryStore(), reg: offline.NewRegistration(quietLogger())}
	f.cfg = testConfig(t, f.site.server.URL, "v1")

	srv, err := New(f.cfg, f.reg, f.store, quietLogger())
	require.NoError(t, err)
	f.srv = srv

	if install {
		require.NoError(t, f.reg.Register(context.Background(), f.manager(f.cfg)))
	}
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

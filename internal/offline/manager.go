// Package offline implements the offline cache manager and the registration
// that drives its lifecycle.
package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/iocache"
	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Options configures one version of the manager.
type Options struct {
	AppName     string
	Version     string
	Manifest    []string // site-relative paths precached on install
	ShellPath   string   // offline fallback document
	Excludes    []string // path markers that bypass the cache
	SkipWaiting bool     // activate right after install
}

// OptionsFromConfig derives manager options from the validated config.
func OptionsFromConfig(cfg *contract.Config) Options {
	return Options{
		AppName:     cfg.AppName,
		Version:     cfg.CacheVersion,
		Manifest:    append([]string(nil), cfg.Manifest...),
		ShellPath:   cfg.ShellPath,
		Excludes:    append([]string(nil), cfg.Excludes...),
		SkipWaiting: cfg.SkipWaiting,
	}
}

// Manager is one version of the offline cache manager.
// It keeps a precache and a runtime partition, both named after its version.
type Manager struct {
	opts         Options
	store        contract.CacheStore
	fetcher      contract.Fetcher
	log          *logrus.Entry
	manifestKeys map[string]struct{}

	skipWaiting atomic.Bool
	refreshes   sync.WaitGroup
	group       singleflight.Group
}

var _ contract.Lifecycle = &Manager{} // Compile-time check

// NewManager returns a manager for the given version.
func NewManager(opts Options, store contract.CacheStore, fetcher contract.Fetcher, log *logrus.Logger) *Manager {
	keys := make(map[string]struct{}, len(opts.Manifest))
	for _, path := range opts.Manifest {
		keys[schema.PathKey(path)] = struct{}{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		opts:         opts,
		store:        store,
		fetcher:      fetcher,
		log:          log.WithField("version", opts.Version),
		manifestKeys: keys,
	}
}

// Version returns the CacheVersion token.
func (m *Manager) Version() string { return m.opts.Version }

// PrecacheName is the partition populated on install.
func (m *Manager) PrecacheName() string { return schema.PrecacheName(m.opts.AppName, m.opts.Version) }

// RuntimeName is the partition grown while serving.
func (m *Manager) RuntimeName() string { return schema.RuntimeName(m.opts.AppName, m.opts.Version) }

// SkipWaitingRequested reports whether the manager asked to activate immediately.
func (m *Manager) SkipWaitingRequested() bool { return m.skipWaiting.Load() }

// Wait blocks until background refreshes started so far have finished.
func (m *Manager) Wait() { m.refreshes.Wait() }

// Close releases the fetcher's idle resources. Requests still in flight,
// background refreshes included, run to completion.
func (m *Manager) Close() error {
	if c, ok := m.fetcher.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// OnInstall fetches every manifest entry and stores them in the precache.
// Nothing is written unless every entry was fetched with a 2xx status.
func (m *Manager) OnInstall(ctx context.Context) error {
	resps := make([]*schema.CachedResponse, len(m.opts.Manifest))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range m.opts.Manifest {
		g.Go(func() error {
			req, err := schema.NewRequest(http.MethodGet, path, "")
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInstallFailed, path, err)
			}
			resp, err := m.fetcher.Fetch(gctx, req)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", ErrInstallFailed, path, err)
			}
			if !resp.OK() {
				return fmt.Errorf("%w: %s returned status %d", ErrInstallFailed, path, resp.Status)
			}
			resp.Key = req.Key()
			resps[i] = resp.Storable()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		m.log.WithError(err).Warn("install aborted")
		return err
	}

	if err := m.store.PutAll(ctx, m.PrecacheName(), resps); err != nil {
		return fmt.Errorf("%w: storing precache: %v", ErrInstallFailed, err)
	}
	m.log.WithFields(logrus.Fields{"partition": m.PrecacheName(), "entries": len(resps)}).Info("precache installed")

	if m.opts.SkipWaiting {
		m.skipWaiting.Store(true)
	}
	return nil
}

// OnActivate deletes every partition that belongs to another version.
func (m *Manager) OnActivate(ctx context.Context) error {
	names, err := m.store.Partitions(ctx)
	if err != nil {
		return fmt.Errorf("listing partitions: %w", err)
	}
	var errs []error
	for _, name := range names {
		if name == m.PrecacheName() || name == m.RuntimeName() {
			continue
		}
		if _, err := m.store.DeletePartition(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", name, err))
			continue
		}
		m.log.WithField("partition", name).Info("evicted stale partition")
	}
	return errors.Join(errs...)
}

// Participates reports whether a request is intercepted at all:
// same-origin GET requests whose path carries no excluded marker.
func (m *Manager) Participates(req *schema.Request) bool {
	return req.Method == http.MethodGet &&
		req.SameOrigin() &&
		!contract.IsExcluded(req.URL.Path, m.opts.Excludes)
}

// lookupOrder returns the partitions to search for key.
// The precache is authoritative for manifest paths and the runtime partition for everything else.
func (m *Manager) lookupOrder(ctx context.Context, key string) []string {
	first, second := m.RuntimeName(), m.PrecacheName()
	if _, ok := m.manifestKeys[key]; ok {
		first, second = second, first
	}
	order := []string{first, second}

	names, err := m.store.Partitions(ctx)
	if err != nil {
		return order
	}
	for _, name := range names {
		if name != first && name != second {
			order = append(order, name)
		}
	}
	return order
}

// match finds key in the first partition that holds it.
func (m *Manager) match(ctx context.Context, key string) (*schema.CachedResponse, error) {
	for _, partition := range m.lookupOrder(ctx, key) {
		resp, err := m.store.Match(ctx, partition, key)
		if err != nil {
			return nil, err
		}
		if resp != nil {
			return resp, nil
		}
	}
	return nil, nil
}

// OnFetch answers an intercepted request with stale-while-revalidate.
func (m *Manager) OnFetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, schema.Source, error) {
	if !m.Participates(req) {
		return nil, schema.PassthroughSource, ErrNotHandled
	}
	key := req.Key()
	log := m.log.WithField("key", key)

	cached, err := m.match(ctx, key)
	if err != nil {
		log.WithError(err).Warn("cache lookup failed")
	}
	if cached != nil {
		if !req.Credentialed() {
			m.revalidate(ctx, req)
		}
		return cached, schema.CacheSource, nil
	}

	resp, err := m.fetcher.Fetch(ctx, req)
	if err != nil {
		shell, shellErr := m.match(ctx, schema.PathKey(m.opts.ShellPath))
		if shellErr == nil && shell != nil {
			log.WithError(err).Info("network unavailable, serving shell")
			return shell, schema.FallbackSource, nil
		}
		return nil, schema.NetworkSource, fmt.Errorf("fetching %s: %w", key, err)
	}

	// credentialed responses belong to one user and stay out of the shared store
	if resp.Cacheable() && !req.Credentialed() {
		resp.Key = key
		if err := m.store.Put(ctx, m.RuntimeName(), resp.Storable()); err != nil {
			log.WithError(err).Warn("runtime cache write failed")
		}
	}
	return resp, schema.NetworkSource, nil
}

// revalidate refreshes the runtime entry for req in the background.
// Failures are discarded; the cached response already went out.
func (m *Manager) revalidate(ctx context.Context, req *schema.Request) {
	ctx = context.WithoutCancel(ctx)
	key := req.Key()
	u := *req.URL
	detached := &schema.Request{Method: req.Method, URL: &u, Header: req.Header.Clone(), Origin: req.Origin}

	m.refreshes.Go(func() {
		// concurrent hits on one key share a single refresh
		_, _, _ = m.group.Do(key, func() (any, error) {
			resp, err := m.fetcher.Fetch(ctx, detached)
			if err != nil {
				m.log.WithError(err).WithField("key", key).Debug("background refresh failed")
				return nil, nil
			}
			if !resp.Cacheable() {
				return nil, nil
			}
			resp.Key = key
			if err := m.store.Put(ctx, m.RuntimeName(), resp.Storable()); err != nil {
				m.log.WithError(err).WithField("key", key).Debug("background refresh not stored")
			}
			return nil, nil
		})
	})
}

// OnMessage handles SKIP_WAITING and CLEAR_CACHE; anything else is ignored.
func (m *Manager) OnMessage(ctx context.Context, msg schema.Message) {
	switch msg.Type {
	case schema.SkipWaitingMessage:
		m.skipWaiting.Store(true)
	case schema.ClearCacheMessage:
		deleted, err := iocache.DeleteAll(ctx, m.store)
		if err != nil {
			m.log.WithError(err).Warn("clear cache incomplete")
		}
		m.log.WithField("partitions", deleted).Info("cache cleared")
	default:
		m.log.WithField("type", msg.Type).Debug("ignoring unrecognized message")
	}
}

// OnSync acknowledges a background sync event. No work is attached to it yet.
func (m *Manager) OnSync(_ context.Context, tag string) error {
	m.log.WithField("tag", tag).Debug("sync event acknowledged")
	return nil
}

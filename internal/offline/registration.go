package offline

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/schema"
	"github.com/sirupsen/logrus"
)

// maxRetired bounds the redundant history kept for status output.
const maxRetired = 16

type worker struct {
	lc    contract.Lifecycle
	state schema.WorkerState
}

func (w *worker) status() *schema.WorkerStatus {
	if w == nil {
		return nil
	}
	return &schema.WorkerStatus{Version: w.lc.Version(), State: w.state}
}

// Registration hosts manager versions and moves them through
// installing, waiting, active and redundant.
type Registration struct {
	installMu sync.Mutex // serializes installs and activations

	mu         sync.RWMutex
	installing *worker
	waiting    *worker
	active     *worker
	retired    []schema.WorkerStatus

	log *logrus.Logger
}

// NewRegistration returns an empty registration.
func NewRegistration(log *logrus.Logger) *Registration {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registration{log: log}
}

// retire must be called with mu held. The retired version's resources are
// released in the background.
func (r *Registration) retire(w *worker) {
	w.state = schema.RedundantState
	r.retired = append(r.retired, *w.status())
	if len(r.retired) > maxRetired {
		r.retired = r.retired[len(r.retired)-maxRetired:]
	}
	if c, ok := w.lc.(io.Closer); ok {
		go func() {
			if err := c.Close(); err != nil {
				r.log.WithError(err).WithField("version", w.lc.Version()).Debug("closing retired version")
			}
		}()
	}
}

// activate runs w's activation and puts it in control. Callers hold
// installMu so the waiting slot cannot change; mu is only taken for the swap.
func (r *Registration) activate(ctx context.Context, w *worker) {
	if err := w.lc.OnActivate(ctx); err != nil {
		r.log.WithError(err).WithField("version", w.lc.Version()).Warn("activate reported errors")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.waiting != w {
		return
	}
	if r.active != nil {
		r.retire(r.active)
	}
	r.waiting = nil
	w.state = schema.ActiveState
	r.active = w
	r.log.WithField("version", w.lc.Version()).Info("version activated")
}

// Register installs lc and activates it when it asked to skip waiting or
// nothing is active yet. A failed install leaves the current version in control.
func (r *Registration) Register(ctx context.Context, lc contract.Lifecycle) error {
	r.installMu.Lock()
	defer r.installMu.Unlock()

	w := &worker{lc: lc, state: schema.InstallingState}
	r.mu.Lock()
	r.installing = w
	r.mu.Unlock()

	err := lc.OnInstall(ctx)

	r.mu.Lock()
	r.installing = nil
	if err != nil {
		r.retire(w)
		r.mu.Unlock()
		return fmt.Errorf("installing version %s: %w", lc.Version(), err)
	}
	if r.waiting != nil {
		r.retire(r.waiting)
	}
	w.state = schema.WaitingState
	r.waiting = w
	promote := lc.SkipWaitingRequested() || r.active == nil
	r.mu.Unlock()

	r.log.WithField("version", lc.Version()).Info("version installed")
	if promote {
		r.activate(ctx, w)
	}
	return nil
}

// PostMessage delivers a control message. SKIP_WAITING goes to the waiting
// version and promotes it; other messages go to the version in control.
// Handlers run without the registration lock so fetches are never blocked.
func (r *Registration) PostMessage(ctx context.Context, msg schema.Message) {
	if msg.Type == schema.SkipWaitingMessage {
		r.installMu.Lock()
		defer r.installMu.Unlock()
	}

	r.mu.RLock()
	waiting, active := r.waiting, r.active
	r.mu.RUnlock()

	if msg.Type == schema.SkipWaitingMessage && waiting != nil {
		waiting.lc.OnMessage(ctx, msg)
		if waiting.lc.SkipWaitingRequested() {
			r.activate(ctx, waiting)
		}
		return
	}

	switch {
	case active != nil:
		active.lc.OnMessage(ctx, msg)
	case waiting != nil:
		waiting.lc.OnMessage(ctx, msg)
	}
}

func (r *Registration) controller() contract.Lifecycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.active == nil {
		return nil
	}
	return r.active.lc
}

// Fetch hands an intercepted request to the active version.
func (r *Registration) Fetch(ctx context.Context, req *schema.Request) (*schema.CachedResponse, schema.Source, error) {
	lc := r.controller()
	if lc == nil {
		return nil, schema.PassthroughSource, ErrNoActiveVersion
	}
	return lc.OnFetch(ctx, req)
}

// Sync delivers a background sync event to the active version.
func (r *Registration) Sync(ctx context.Context, tag string) error {
	lc := r.controller()
	if lc == nil {
		return ErrNoActiveVersion
	}
	return lc.OnSync(ctx, tag)
}

// Active returns the version in control, or nil.
func (r *Registration) Active() contract.Lifecycle {
	return r.controller()
}

// Waiting returns the installed version waiting to take over, or nil.
func (r *Registration) Waiting() contract.Lifecycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.waiting == nil {
		return nil
	}
	return r.waiting.lc
}

// Snapshot reports every version the registration knows about.
func (r *Registration) Snapshot() schema.RegistrationStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return schema.RegistrationStatus{
		Active:     r.active.status(),
		Waiting:    r.waiting.status(),
		Installing: r.installing.status(),
		Retired:    append([]schema.WorkerStatus{}, r.retired...),
	}
}

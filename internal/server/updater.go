package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/offline"
	"github.com/mileusna/crontab"
	"github.com/sirupsen/logrus"
)

// Updater rolls out a new manager version when the configured cache version changes.
type Updater struct {
	reg    *offline.Registration
	reload func() (*contract.Config, error)
	build  func(*contract.Config) contract.Lifecycle
	log    *logrus.Logger

	mu sync.Mutex // one check at a time
}

// NewUpdater returns an updater that re-reads the config with reload and
// builds managers with build.
func NewUpdater(
	reg *offline.Registration,
	reload func() (*contract.Config, error),
	build func(*contract.Config) contract.Lifecycle,
	log *logrus.Logger,
) *Updater {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Updater{reg: reg, reload: reload, build: build, log: log}
}

// current is the newest version the registration holds.
func (u *Updater) current() string {
	if w := u.reg.Waiting(); w != nil {
		return w.Version()
	}
	if a := u.reg.Active(); a != nil {
		return a.Version()
	}
	return ""
}

// Check registers a manager for the configured version unless that
// version is already active or waiting. It reports whether a rollout ran.
func (u *Updater) Check(ctx context.Context) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	cfg, err := u.reload()
	if err != nil {
		return false, fmt.Errorf("reloading config: %w", err)
	}
	if cfg.CacheVersion == u.current() {
		return false, nil
	}

	u.log.WithField("version", cfg.CacheVersion).Info("new cache version found")
	if err := u.reg.Register(ctx, u.build(cfg)); err != nil {
		return true, err
	}
	return true, nil
}

// Schedule adds the update check to ctab.
func (u *Updater) Schedule(ctx context.Context, ctab *crontab.Crontab, schedule string) error {
	err := ctab.AddJob(schedule, func() {
		if _, err := u.Check(ctx); err != nil {
			u.log.WithError(err).Warn("update check failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid update schedule %q: %w", schedule, err)
	}
	return nil
}

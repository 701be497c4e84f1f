package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/huangsam/shellcache/internal/offline"
	"github.com/huangsam/shellcache/internal/origin"
	"github.com/huangsam/shellcache/internal/server"
	"github.com/mileusna/crontab"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serveCmd runs the caching front.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the origin site through the offline cache",
	Long: `Start the HTTP front that answers browser requests from the offline cache.

On startup the configured cache version is installed: every manifest entry is
fetched from the origin and stored in the version's precache. Same-origin GET
requests are then served from the cache (refreshed in the background), from
the network, or from the shell document when the origin is unreachable.
Everything else is proxied to the origin untouched.

Control endpoints live under --control-prefix:
  POST /message      {"type":"SKIP_WAITING"} or {"type":"CLEAR_CACHE"}
  POST /sync/:tag    background sync event
  GET  /status       registration and store status
  GET  /health       liveness

Examples:
  # Serve a site with the default SQLite store
  shellcache serve --origin https://example.com

  # Check the config file for a new cache version every five minutes
  shellcache serve --origin https://example.com --update-schedule "*/5 * * * *"`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.RequireOrigin(); err != nil {
			return err
		}
		st, err := store()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(rootCtx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg, st, logger)
	},
}

// newManager builds the manager for one cache version.
func newManager(c *contract.Config, st contract.CacheStore, log *logrus.Logger) *offline.Manager {
	fetcher := origin.NewClient(c.Origin.String(), c.FetchTimeout)
	return offline.NewManager(offline.OptionsFromConfig(c), st, fetcher, log)
}

func runServe(ctx context.Context, c *contract.Config, st contract.CacheStore, log *logrus.Logger) error {
	probe := origin.NewClient(c.Origin.String(), c.FetchTimeout)
	if ok, err := probe.Head(ctx, c.ShellPath); err != nil || !ok {
		log.WithField("path", c.ShellPath).Warn("origin did not serve the shell document")
	}
	_ = probe.Close()

	reg := offline.NewRegistration(log)
	if err := reg.Register(ctx, newManager(c, st, log)); err != nil {
		// Traffic is proxied untouched until an install succeeds.
		log.WithError(err).Error("initial install failed")
	}

	srv, err := server.New(c, reg, st, log)
	if err != nil {
		return err
	}

	if c.UpdateSchedule != "" {
		ctab := crontab.New()
		defer ctab.Shutdown()

		updater := server.NewUpdater(reg, loadConfig, func(next *contract.Config) contract.Lifecycle {
			if next.Origin == nil {
				next.Origin = c.Origin
			}
			return newManager(next, st, log)
		}, log)
		if err := updater.Schedule(ctx, ctab, c.UpdateSchedule); err != nil {
			return err
		}
		log.WithField("schedule", c.UpdateSchedule).Info("update check scheduled")
	}

	return srv.Run(ctx)
}

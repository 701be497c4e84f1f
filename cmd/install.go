package cmd

import (
	"github.com/huangsam/shellcache/internal/offline"
	"github.com/huangsam/shellcache/internal/outwriter"
	"github.com/spf13/cobra"
)

// installCmd precaches a version without serving traffic.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install and activate the configured cache version",
	Long: `Fetch every manifest entry from the origin and store them in the precache
of the configured cache version, then activate it. Activation deletes the
partitions of every other version.

Nothing is written when any manifest entry fails to fetch.

Examples:
  # Warm the cache before starting the server
  shellcache install --origin https://example.com --cache-version v2`,
	PreRunE: sharedSetupWrapper,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := cfg.RequireOrigin(); err != nil {
			return err
		}
		st, err := store()
		if err != nil {
			return err
		}

		reg := offline.NewRegistration(logger)
		if err := reg.Register(rootCtx, newManager(cfg, st, logger)); err != nil {
			return err
		}
		return outwriter.NewOutWriter().WriteRegistration(reg.Snapshot(), cfg)
	},
}

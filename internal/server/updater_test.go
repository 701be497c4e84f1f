package server

import (
	"context"
	"errors"
	"testing"

	"github.com/huangsam/shellcache/internal/contract"
	"github.com/mileusna/crontab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdaterCheck(t *testing.T) {
	f := newFixture(t, true)
	version := "v1"
	reload := func() (*contract.Config, error) {
		cfg := f.cfg.Clone()
		cfg.CacheVersion = version
		return cfg, nil
	}
	build := func(cfg *contract.Config) contract.Lifecycle { return f.manager(cfg) }
	u := NewUpdater(f.reg, reload, build, quietLogger())

	ran, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, ran, "same version must not roll out")

	version = "v2"
	ran, err = u.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, "v2", f.reg.Active().Version())

	parts, err := f.store.Partitions(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, parts, "app-v1")
	assert.Contains(t, parts, "app-v2")
}

func TestUpdaterCheckFailures(t *testing.T) {
	f := newFixture(t, true)

	u := NewUpdater(f.reg, func() (*contract.Config, error) {
		return nil, errors.New("bad yaml")
	}, nil, quietLogger())
	_, err := u.Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reloading config")

	broken := f.cfg.Clone()
	broken.CacheVersion = "v2"
	broken.Manifest = []string{"/missing.js"}
	u = NewUpdater(f.reg, func() (*contract.Config, error) { return broken, nil },
		func(cfg *contract.Config) contract.Lifecycle { return f.manager(cfg) }, quietLogger())
	ran, err := u.Check(context.Background())
	assert.True(t, ran)
	require.Error(t, err)
	assert.Equal(t, "v1", f.reg.Active().Version())
}

func TestUpdaterSchedule(t *testing.T) {
	f := newFixture(t, true)
	u := NewUpdater(f.reg, func() (*contract.Config, error) { return f.cfg, nil }, nil, quietLogger())

	ctab := crontab.New()
	defer ctab.Shutdown()

	require.NoError(t, u.Schedule(context.Background(), ctab, "*/5 * * * *"))
	err := u.Schedule(context.Background(), ctab, "every now and then")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid update schedule")
}

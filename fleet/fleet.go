// Package fleet wires the adb-facing services behind one entry point.
// Callers pick devices via Registry and Identity, then drive them through
// Connection, Installer, Maintenance or Capture; Pool keeps every
// blocking adb call off the caller's goroutine.
package fleet

import (
	"github.com/yunfanliu/adbfleet/config"
	"github.com/yunfanliu/adbfleet/fleet/adb"
	"github.com/yunfanliu/adbfleet/fleet/identity"
	"github.com/yunfanliu/adbfleet/fleet/ops"
)

type Fleet struct {
	Runner      *adb.CommandRunner
	Registry    *adb.Registry
	Connection  *adb.ConnectionController
	Installer   *adb.Installer
	Maintenance *adb.Maintenance
	Capture     *adb.Capture
	Identity    *identity.Resolver
	Pool        *ops.Pool
}

func New(cfg *config.Config) *Fleet {
	runner := adb.NewCommandRunner(cfg.Settings.ADBPath)
	registry := adb.NewRegistry(runner)
	return &Fleet{
		Runner:      runner,
		Registry:    registry,
		Connection:  adb.NewConnectionController(runner, registry),
		Installer:   adb.NewInstaller(runner, registry),
		Maintenance: adb.NewMaintenance(runner),
		Capture:     adb.NewCapture(runner),
		Identity:    identity.NewResolver(cfg.DevicesPath(), nil),
		Pool:        ops.NewPool(),
	}
}

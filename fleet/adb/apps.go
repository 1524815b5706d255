package adb

import (
	"context"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

// Maintenance bundles the per-package upkeep commands. Each is a single
// pass-through invocation with the control timeout; the raw result is
// returned for display.
type Maintenance struct {
	runner Runner
}

func NewMaintenance(runner Runner) *Maintenance {
	return &Maintenance{runner: runner}
}

func (m *Maintenance) Uninstall(ctx context.Context, deviceID, packageName string) definitions.CommandResult {
	return m.runner.Run(ctx, ControlTimeout, "-s", deviceID, "uninstall", packageName)
}

func (m *Maintenance) ClearAppCache(ctx context.Context, deviceID, packageName string) definitions.CommandResult {
	return m.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "pm", "clear", packageName)
}

func (m *Maintenance) ForceStopApp(ctx context.Context, deviceID, packageName string) definitions.CommandResult {
	return m.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "am", "force-stop", packageName)
}

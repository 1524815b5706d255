package adb

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

// Registry enumerates devices attached to the adb server and queries
// their properties. Enumeration is re-derived on every call and never
// cached.
type Registry struct {
	runner Runner
}

func NewRegistry(runner Runner) *Registry {
	return &Registry{runner: runner}
}

// ListDevices returns the currently usable devices. An enumeration
// failure means "no devices" and is never surfaced as an error.
func (g *Registry) ListDevices(ctx context.Context) []definitions.Device {
	res := g.runner.Run(ctx, ControlTimeout, "devices")
	if !res.Success {
		return nil
	}
	return ParseDeviceList(res.Output)
}

// ParseDeviceList parses the tabular `adb devices` output: the header
// line is discarded, blank lines and `*` daemon notices are skipped, and
// only rows whose status token is "device" qualify. Other statuses show
// the device exists but it cannot take commands, so they are dropped.
func ParseDeviceList(output string) []definitions.Device {
	lines := strings.Split(output, "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	var devices []definitions.Device
	for _, line := range lines {
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		status := strings.TrimSpace(parts[1])
		if status == definitions.StatusDevice {
			devices = append(devices, definitions.Device{ID: id, Status: status})
		}
	}
	return devices
}

// IsUsable reports whether deviceID appears in the current usable set.
func (g *Registry) IsUsable(ctx context.Context, deviceID string) bool {
	return lo.SomeBy(g.ListDevices(ctx), func(d definitions.Device) bool {
		return d.ID == deviceID
	})
}

// GetDeviceInfo issues three independent property queries. Each field is
// populated only when its query succeeded; a failed query never blocks
// the others.
func (g *Registry) GetDeviceInfo(ctx context.Context, deviceID string) definitions.DeviceInfo {
	var info definitions.DeviceInfo
	if res := g.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "getprop", "ro.product.model"); res.Success {
		info.Model = res.Output
	}
	if res := g.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "getprop", "ro.build.version.release"); res.Success {
		info.AndroidVersion = res.Output
	}
	if res := g.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "getprop", "ro.product.brand"); res.Success {
		info.Brand = res.Output
	}
	return info
}

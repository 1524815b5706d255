package adb

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

// connectFailedMsg is the fixed diagnostic shown for every unconfirmed
// connect, independent of the raw adb text.
const connectFailedMsg = "connection failed: check that wireless ADB debugging is enabled on the device"

// Lister is the registry subset needed to re-verify an ambiguous connect.
type Lister interface {
	ListDevices(ctx context.Context) []definitions.Device
}

// ConnectionController drives network connect/disconnect. adb connect is
// notorious for exiting zero while reporting failure in its output, so
// the output text is classified and, when inconclusive, the device list
// is consulted as the source of truth.
type ConnectionController struct {
	runner Runner
	lister Lister
}

func NewConnectionController(runner Runner, lister Lister) *ConnectionController {
	return &ConnectionController{runner: runner, lister: lister}
}

// Connect issues `adb connect` and confirms the result. The caller is
// responsible for appending the default port to bare hosts.
func (c *ConnectionController) Connect(ctx context.Context, address string) definitions.CommandResult {
	res := c.runner.Run(ctx, ControlTimeout, "connect", address)
	if !res.Success {
		return res
	}

	out := strings.ToLower(res.Output)
	switch {
	// "connected to" also covers "already connected to"
	case strings.Contains(out, "connected to"):
		return res
	case strings.Contains(out, "cannot connect to"), strings.Contains(out, "failed to connect"):
		return definitions.CommandResult{Success: false, Output: res.Output, Error: connectFailedMsg}
	}

	// Inconclusive output: trust the enumeration instead of the tool text.
	log.Debug().Str("address", address).Str("output", res.Output).Msg("ambiguous connect output, re-checking device list")
	for _, d := range c.lister.ListDevices(ctx) {
		if strings.Contains(d.ID, address) {
			return res
		}
	}
	return definitions.CommandResult{Success: false, Output: res.Output, Error: connectFailedMsg}
}

// Disconnect is a single pass-through invocation. Disconnect failures are
// rare and unambiguous, so no verification pass is done.
func (c *ConnectionController) Disconnect(ctx context.Context, deviceID string) definitions.CommandResult {
	return c.runner.Run(ctx, ControlTimeout, "disconnect", deviceID)
}

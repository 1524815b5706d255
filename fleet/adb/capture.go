package adb

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
	"github.com/yunfanliu/adbfleet/utils"
)

const remoteScreenshotPath = "/sdcard/adbfleet_screen.png"

// Capture holds the single-shot screenshot and log-dump sequences. There
// is no retry logic here: each step either works or the failure is
// returned as-is.
type Capture struct {
	runner Runner
}

func NewCapture(runner Runner) *Capture {
	return &Capture{runner: runner}
}

// Screenshot captures the device screen to a temp file on the device and
// pulls it to localPath. The device-side temp file is removed best
// effort afterwards.
func (c *Capture) Screenshot(ctx context.Context, deviceID, localPath string) definitions.CommandResult {
	if res := c.runner.Run(ctx, CaptureTimeout, "-s", deviceID, "shell", "screencap", "-p", remoteScreenshotPath); !res.Success {
		return res
	}
	if err := utils.EnsureDir(filepath.Dir(localPath)); err != nil {
		return definitions.CommandResult{Success: false, Error: err.Error()}
	}
	res := c.runner.Run(ctx, PullTimeout, "-s", deviceID, "pull", remoteScreenshotPath, localPath)
	c.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "rm", "-f", remoteScreenshotPath)
	if res.Success {
		res.Output = localPath
	}
	return res
}

// PullLogs dumps the device log buffer to localPath. A non-empty
// packageName filters the dump to lines mentioning it; the filter runs
// host-side so the device command stays a plain logcat dump.
func (c *Capture) PullLogs(ctx context.Context, deviceID, packageName, localPath string) definitions.CommandResult {
	res := c.runner.Run(ctx, CaptureTimeout, "-s", deviceID, "logcat", "-d", "-v", "threadtime")
	if !res.Success {
		return res
	}

	out := res.Output
	if packageName != "" {
		lines := lo.Filter(strings.Split(out, "\n"), func(line string, _ int) bool {
			return strings.Contains(line, packageName)
		})
		out = strings.Join(lines, "\n")
	}

	if err := utils.EnsureDir(filepath.Dir(localPath)); err != nil {
		return definitions.CommandResult{Success: false, Error: err.Error()}
	}
	if err := os.WriteFile(localPath, []byte(out), 0o644); err != nil {
		return definitions.CommandResult{Success: false, Error: err.Error()}
	}
	return definitions.CommandResult{Success: true, Output: localPath}
}

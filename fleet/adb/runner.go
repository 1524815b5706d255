package adb

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

// Timeout budgets per call category. Control commands finish quickly,
// capture and pull may move real data.
const (
	ControlTimeout = 30 * time.Second
	CaptureTimeout = 60 * time.Second
	PullTimeout    = 120 * time.Second
)

// toolNotFoundMsg is returned verbatim for every invocation when the adb
// binary could not be located at construction time.
const toolNotFoundMsg = "adb executable not found; put the platform-tools adb binary in the adb directory next to the program or set adb_path in settings.json"

// Runner executes one adb command line and reports a normalized result.
// Implementations must be safe for concurrent use.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, args ...string) definitions.CommandResult
}

// CommandRunner invokes the external adb executable. The binary path is
// resolved once; if it cannot be found every Run fails immediately with a
// fixed tool-not-found error and nothing is retried.
type CommandRunner struct {
	path string
}

// NewCommandRunner resolves the adb binary. An explicit path from the
// settings wins; otherwise the adb directory next to the executable is
// checked.
func NewCommandRunner(explicitPath string) *CommandRunner {
	return &CommandRunner{path: resolveADBPath(explicitPath)}
}

// Path returns the resolved adb binary path, empty when unresolved.
func (r *CommandRunner) Path() string {
	return r.path
}

func resolveADBPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		log.Warn().Str("path", explicit).Msg("configured adb path does not exist")
	}

	exe, err := os.Executable()
	if err != nil {
		log.Error().Err(err).Msg("cannot determine executable directory")
		return ""
	}
	name := "adb"
	if runtime.GOOS == "windows" {
		name = "adb.exe"
	}
	local := filepath.Join(filepath.Dir(exe), "adb", name)
	if _, err := os.Stat(local); err == nil {
		return local
	}
	log.Warn().Str("path", local).Msg("local adb binary not found")
	return ""
}

// Run executes adb with the given arguments. Exit code zero yields
// success with trimmed stdout; a nonzero exit keeps partial stdout and
// carries trimmed stderr as the error text; exceeding the timeout yields
// the fixed "command timed out" error. Retry policy belongs to callers.
func (r *CommandRunner) Run(ctx context.Context, timeout time.Duration, args ...string) definitions.CommandResult {
	if r.path == "" {
		return definitions.CommandResult{Success: false, Error: toolNotFoundMsg}
	}
	if timeout <= 0 {
		timeout = ControlTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log.Debug().Str("cmd", r.path+" "+strings.Join(args, " ")).Msg("running adb command")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.path, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	if err != nil {
		// A clean exit that races the deadline still counts as success, so
		// the timeout is only classified on the error path.
		if ctx.Err() == context.DeadlineExceeded {
			log.Error().Str("cmd", strings.Join(args, " ")).Msg("adb command timed out")
			return definitions.CommandResult{Success: false, Error: "command timed out"}
		}
		errText := strings.TrimSpace(stderr.String())
		if errText == "" {
			errText = err.Error()
		}
		log.Error().Str("cmd", strings.Join(args, " ")).Str("error", errText).Msg("adb command failed")
		return definitions.CommandResult{
			Success: false,
			Output:  strings.TrimSpace(stdout.String()),
			Error:   errText,
		}
	}
	return definitions.CommandResult{Success: true, Output: strings.TrimSpace(stdout.String())}
}

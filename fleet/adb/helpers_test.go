package adb

import (
	"context"
	"strings"
	"time"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

// fakeRunner scripts adb outcomes per command line and records every
// invocation so tests can assert call order and counts.
type fakeRunner struct {
	respond func(args []string) definitions.CommandResult
	calls   [][]string
}

func (f *fakeRunner) Run(ctx context.Context, timeout time.Duration, args ...string) definitions.CommandResult {
	f.calls = append(f.calls, args)
	if f.respond == nil {
		return definitions.CommandResult{Success: true}
	}
	return f.respond(args)
}

func (f *fakeRunner) callLines() []string {
	lines := make([]string, len(f.calls))
	for i, call := range f.calls {
		lines[i] = strings.Join(call, " ")
	}
	return lines
}

func ok(output string) definitions.CommandResult {
	return definitions.CommandResult{Success: true, Output: output}
}

func fail(errText string) definitions.CommandResult {
	return definitions.CommandResult{Success: false, Error: errText}
}

// deviceListOutput builds a canonical `adb devices` response.
func deviceListOutput(rows ...string) definitions.CommandResult {
	return ok("List of devices attached\n" + strings.Join(rows, "\n") + "\n")
}

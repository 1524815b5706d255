package adb

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/valyala/fasttemplate"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
	"github.com/yunfanliu/adbfleet/utils"
)

// installStrategies is the ordered ladder of install attempts, most
// common fast-success combination first. Each argument is a template
// rendered with {device} and {apk}.
var installStrategies = [][]string{
	{"-s", "{device}", "install", "-r", "-d", "{apk}"},
	{"-s", "{device}", "install", "-r", "-t", "-d", "{apk}"},
	{"-s", "{device}", "install", "-r", "{apk}"},
	{"-s", "{device}", "install", "-r", "-t", "{apk}"},
	{"-s", "{device}", "install", "{apk}"},
}

// fastFailSignatures mark errors that no alternative flag combination can
// fix; seeing one abandons the remaining ladder immediately.
var fastFailSignatures = []string{
	"INSTALL_FAILED_ALREADY_EXISTS",
	"INSTALL_FAILED_INVALID_APK",
	"INSTALL_FAILED_INSUFFICIENT_STORAGE",
}

const diagnosisHeader = "all install strategies failed"

// Directory is the registry subset the installer needs: the usable set
// for the precondition check and device properties for the diagnosis.
type Directory interface {
	ListDevices(ctx context.Context) []definitions.Device
	GetDeviceInfo(ctx context.Context, deviceID string) definitions.DeviceInfo
}

// Installer tries the install strategy ladder against a validated apk.
// Install calls are independent of each other and may run concurrently;
// within one call the strategies run strictly in order.
type Installer struct {
	runner    Runner
	directory Directory
}

func NewInstaller(runner Runner, directory Directory) *Installer {
	return &Installer{runner: runner, directory: directory}
}

// Install validates the request, walks the strategy ladder and, when
// every strategy fails without a terminal signature, appends a diagnosis
// report to the returned error. Precondition failures stop before any
// adb call is made.
func (ins *Installer) Install(ctx context.Context, deviceID, apkPath string) definitions.InstallOutcome {
	if _, err := os.Stat(apkPath); err != nil {
		return definitions.InstallOutcome{Success: false, Error: "apk not found"}
	}
	if !lo.SomeBy(ins.directory.ListDevices(ctx), func(d definitions.Device) bool { return d.ID == deviceID }) {
		return definitions.InstallOutcome{
			Success: false,
			Error:   fmt.Sprintf("device %s is not connected or not usable", deviceID),
		}
	}
	if !ValidAPK(apkPath) {
		return definitions.InstallOutcome{Success: false, Error: "invalid or corrupted apk"}
	}

	log.Info().Str("device", deviceID).Str("apk", apkPath).Msg("installing apk")

	for i, strategy := range installStrategies {
		args := renderArgs(strategy, deviceID, apkPath)
		log.Info().
			Int("attempt", i+1).
			Int("total", len(installStrategies)).
			Str("args", strings.Join(args, " ")).
			Msg("trying install strategy")

		res := ins.runner.Run(ctx, ControlTimeout, args...)
		if res.Success {
			log.Info().Int("attempt", i+1).Msg("install succeeded")
			return definitions.InstallOutcome{Success: true, Output: res.Output}
		}

		log.Warn().Int("attempt", i+1).Str("error", res.Error).Msg("install strategy failed")
		if sig, terminal := terminalFailure(res); terminal {
			log.Info().Str("signature", sig).Msg("terminal install error, abandoning remaining strategies")
			return definitions.InstallOutcome{Success: false, Error: res.Error}
		}
	}

	log.Info().Str("device", deviceID).Msg("all install strategies failed, diagnosing")
	report := ins.Diagnose(ctx, deviceID, apkPath)
	return definitions.InstallOutcome{
		Success: false,
		Error:   diagnosisHeader + "\ndiagnosis:\n" + strings.Join(report, "\n"),
	}
}

func renderArgs(strategy []string, deviceID, apkPath string) []string {
	vars := map[string]any{"device": deviceID, "apk": apkPath}
	return lo.Map(strategy, func(arg string, _ int) string {
		return fasttemplate.ExecuteStringStd(arg, "{", "}", vars)
	})
}

// terminalFailure matches the result text against the fast-fail
// signatures. adb reports install failures on stdout or stderr depending
// on version, so both are inspected.
func terminalFailure(res definitions.CommandResult) (string, bool) {
	text := res.Error + "\n" + res.Output
	for _, sig := range fastFailSignatures {
		if strings.Contains(text, sig) {
			return sig, true
		}
	}
	return "", false
}

// ValidAPK runs the cheap structural checks: .apk suffix, non-empty file
// and the PK zip magic.
func ValidAPK(path string) bool {
	if !strings.HasSuffix(strings.ToLower(path), ".apk") {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	var magic [2]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic[0] == 'P' && magic[1] == 'K'
}

// Diagnose collects one report line per environment check. It is read
// only and total: a failed check becomes a line, never an error.
func (ins *Installer) Diagnose(ctx context.Context, deviceID, apkPath string) []string {
	var report []string

	if info, err := os.Stat(apkPath); err != nil {
		report = append(report, "apk file is missing")
	} else {
		report = append(report, "apk file exists")
		report = append(report, fmt.Sprintf("apk size: %s", utils.FormatFileSize(info.Size())))
	}

	devices := ins.directory.ListDevices(ctx)
	if !lo.SomeBy(devices, func(d definitions.Device) bool { return d.ID == deviceID }) {
		report = append(report, "device is not connected")
	} else {
		report = append(report, "device is connected")
		info := ins.directory.GetDeviceInfo(ctx, deviceID)
		report = append(report, "device model: "+orUnknown(info.Model))
		report = append(report, "android version: "+orUnknown(info.AndroidVersion))
	}

	if ver := ins.runner.Run(ctx, ControlTimeout, "version"); ver.Success {
		report = append(report, "adb server is responding")
		report = append(report, "adb version: "+firstLine(ver.Output))
	} else {
		report = append(report, "adb server is not responding")
		report = append(report, "adb error: "+ver.Error)
	}

	if df := ins.runner.Run(ctx, ControlTimeout, "-s", deviceID, "shell", "df", "/data"); df.Success {
		report = append(report, "device storage is accessible")
	} else {
		report = append(report, "device storage is not accessible")
	}

	return report
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

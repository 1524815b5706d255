package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yunfanliu/adbfleet/config"
	"github.com/yunfanliu/adbfleet/fleet"
	"github.com/yunfanliu/adbfleet/fleet/definitions"
	"github.com/yunfanliu/adbfleet/fleet/ops"
	"github.com/yunfanliu/adbfleet/utils"
)

const defaultADBPort = "5555"

// Options holds all the configuration values from command line arguments
type Options struct {
	ConfigDir string `json:"config_dir"`
	DeviceID  string `json:"device_id"`

	ListDevices bool   `json:"list_devices"`
	DeviceInfo  string `json:"device_info"`
	MyDevices   bool   `json:"my_devices"`
	Resolve     string `json:"resolve"`

	Connect    string `json:"connect"`
	Disconnect string `json:"disconnect"`

	Install    string `json:"install"`
	Uninstall  bool   `json:"uninstall"`
	ClearCache bool   `json:"clear_cache"`
	ForceStop  bool   `json:"force_stop"`
	Package    string `json:"package"`

	Screenshot bool   `json:"screenshot"`
	PullLogs   bool   `json:"pull_logs"`
	Output     string `json:"output"`

	Debug bool `json:"debug"`
}

var opts = &Options{}

var rootCmd = &cobra.Command{
	Use:   "adbfleet",
	Short: "adbfleet - manage a fleet of ADB devices",
	Long: `adbfleet manages Android devices reachable through ADB: it lists
attached devices, resolves friendly names for LAN devices from the ARP
table and a MAC mapping file, controls wireless connections, and installs
APKs with multiple fallback strategies.`,
	Example: `  # List attached devices
  adbfleet --list-devices

  # List LAN devices known from the devices.txt mapping
  adbfleet --my-devices

  # Connect to a wireless device (default port 5555 appended)
  adbfleet --connect 192.168.1.50

  # Install an APK (comma-separate paths to install concurrently)
  adbfleet --device-id 192.168.1.50:5555 --install app.apk

  # Clear cache for every package in the "media" group of packages.json
  adbfleet --device-id emulator-5554 --clear-cache --package media

  # Capture a screenshot
  adbfleet --device-id emulator-5554 --screenshot`,
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd.Context())
	},
}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func init() {
	rootCmd.PersistentFlags().StringVar(&opts.ConfigDir, "config-dir",
		getEnv("ADBFLEET_CONFIG_DIR", ""),
		"Config directory holding settings.json, packages.json and devices.txt")

	rootCmd.PersistentFlags().StringVarP(&opts.DeviceID, "device-id", "d",
		getEnv("ADBFLEET_DEVICE_ID", ""),
		"Target device ID (serial or host:port)")

	rootCmd.PersistentFlags().BoolVar(&opts.ListDevices, "list-devices", false,
		"List attached devices with resolved names and exit")

	rootCmd.PersistentFlags().StringVar(&opts.DeviceInfo, "device-info", "",
		"Show model/version/brand for the given device ID")

	rootCmd.PersistentFlags().BoolVar(&opts.MyDevices, "my-devices", false,
		"List LAN devices from the MAC mapping that are currently reachable")

	rootCmd.PersistentFlags().StringVar(&opts.Resolve, "resolve", "",
		"Resolve a device ID to its configured name")

	rootCmd.PersistentFlags().StringVarP(&opts.Connect, "connect", "c", "",
		"Connect to a wireless device (e.g. 192.168.1.50:5555)")

	rootCmd.PersistentFlags().StringVar(&opts.Disconnect, "disconnect", "",
		"Disconnect from a wireless device")

	rootCmd.PersistentFlags().StringVar(&opts.Install, "install", "",
		"Install APK file(s); comma-separate paths to install concurrently")

	rootCmd.PersistentFlags().BoolVar(&opts.Uninstall, "uninstall", false,
		"Uninstall the package(s) given by --package")

	rootCmd.PersistentFlags().BoolVar(&opts.ClearCache, "clear-cache", false,
		"Clear app data for the package(s) given by --package")

	rootCmd.PersistentFlags().BoolVar(&opts.ForceStop, "force-stop", false,
		"Force-stop the package(s) given by --package")

	rootCmd.PersistentFlags().StringVarP(&opts.Package, "package", "p", "",
		"Package name or packages.json group name")

	rootCmd.PersistentFlags().BoolVar(&opts.Screenshot, "screenshot", false,
		"Capture a screenshot from the target device")

	rootCmd.PersistentFlags().BoolVar(&opts.PullLogs, "pull-logs", false,
		"Dump the device log buffer to a local file")

	rootCmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", "",
		"Output path for --screenshot / --pull-logs")

	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false,
		"Enable debug logging")
}

func main() {
	rootCmd.PersistentPreRunE = validateArgs
	cobra.CheckErr(rootCmd.Execute())
}

func validateArgs(cmd *cobra.Command, args []string) error {
	needsDevice := opts.Install != "" || opts.Uninstall || opts.ClearCache ||
		opts.ForceStop || opts.Screenshot || opts.PullLogs
	if needsDevice && opts.DeviceID == "" {
		return fmt.Errorf("--device-id is required for this operation")
	}
	needsPackage := opts.Uninstall || opts.ClearCache || opts.ForceStop
	if needsPackage && opts.Package == "" {
		return fmt.Errorf("--package is required for this operation")
	}
	return nil
}

func run(ctx context.Context) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if opts.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		log.Debug().Str("options", utils.JsonString(opts)).Msg("parsed options")
	}

	cfg := config.Load(opts.ConfigDir)
	fl := fleet.New(cfg)

	if hit := handleDeviceCommands(ctx, fl, cfg); hit {
		return
	}

	// No operation flag given: default to listing devices.
	opts.ListDevices = true
	handleDeviceCommands(ctx, fl, cfg)
}

// handleDeviceCommands dispatches exactly one operation per invocation
// and reports whether a flag was handled.
func handleDeviceCommands(ctx context.Context, fl *fleet.Fleet, cfg *config.Config) bool {
	switch {
	case opts.ListDevices:
		listDevices(ctx, fl)
	case opts.DeviceInfo != "":
		showDeviceInfo(ctx, fl, opts.DeviceInfo)
	case opts.MyDevices:
		listMyDevices(ctx, fl)
	case opts.Resolve != "":
		resolveName(ctx, fl, opts.Resolve)
	case opts.Connect != "":
		connect(ctx, fl, opts.Connect)
	case opts.Disconnect != "":
		disconnect(ctx, fl, opts.Disconnect)
	case opts.Install != "":
		install(ctx, fl, opts.DeviceID, opts.Install)
	case opts.Uninstall, opts.ClearCache, opts.ForceStop:
		maintain(ctx, fl, cfg)
	case opts.Screenshot:
		screenshot(ctx, fl, cfg)
	case opts.PullLogs:
		pullLogs(ctx, fl, cfg)
	default:
		return false
	}
	return true
}

// submitExclusive wraps the single-flight submission and waits for the
// result. A busy rejection is reported to the user, not retried.
func submitExclusive(ctx context.Context, fl *fleet.Fleet, name string, op ops.Operation) (any, bool) {
	handle, err := fl.Pool.SubmitExclusive(ctx, name, op)
	if err != nil {
		log.Error().Err(err).Str("op", name).Msg("operation rejected, try again later")
		return nil, false
	}
	value, err := ops.Await(handle)
	if err != nil {
		log.Error().Err(err).Str("op", name).Msg("operation failed")
		return nil, false
	}
	return value, true
}

func listDevices(ctx context.Context, fl *fleet.Fleet) {
	type row struct {
		definitions.Device
		Name string
	}
	value, ok := submitExclusive(ctx, fl, "list-devices", func(ctx context.Context) (any, error) {
		devices := fl.Registry.ListDevices(ctx)
		rows := make([]row, 0, len(devices))
		for _, d := range devices {
			rows = append(rows, row{Device: d, Name: fl.Identity.ResolveName(ctx, d.ID)})
		}
		return rows, nil
	})
	if !ok {
		return
	}

	rows := value.([]row)
	if len(rows) == 0 {
		log.Info().Msg("No devices connected.")
		return
	}
	log.Info().Msg("Connected devices:")
	log.Info().Msg(strings.Repeat("-", 60))
	for _, r := range rows {
		label := ""
		if r.Name != r.ID {
			label = fmt.Sprintf(" (%s)", r.Name)
		}
		log.Info().Msgf("  %-30s [%s]%s", r.ID, r.Status, label)
	}
}

func showDeviceInfo(ctx context.Context, fl *fleet.Fleet, deviceID string) {
	value, ok := submitExclusive(ctx, fl, "device-info", func(ctx context.Context) (any, error) {
		return fl.Registry.GetDeviceInfo(ctx, deviceID), nil
	})
	if !ok {
		return
	}
	info := value.(definitions.DeviceInfo)
	log.Info().Msgf("Device: %s", deviceID)
	log.Info().Msgf("  Model:   %s", orDash(info.Model))
	log.Info().Msgf("  Android: %s", orDash(info.AndroidVersion))
	log.Info().Msgf("  Brand:   %s", orDash(info.Brand))
}

func listMyDevices(ctx context.Context, fl *fleet.Fleet) {
	value, ok := submitExclusive(ctx, fl, "my-devices", func(ctx context.Context) (any, error) {
		return fl.Identity.ListUsableDevices(ctx), nil
	})
	if !ok {
		return
	}
	devices := value.([]definitions.UsableDevice)
	if len(devices) == 0 {
		log.Info().Msg("No known devices found on the LAN.")
		return
	}
	log.Info().Msg("My devices:")
	for _, d := range devices {
		log.Info().Msgf("  %-20s %-16s [%s]", d.Name, d.IP, d.MAC)
	}
}

func resolveName(ctx context.Context, fl *fleet.Fleet, deviceID string) {
	value, ok := submitExclusive(ctx, fl, "resolve", func(ctx context.Context) (any, error) {
		return fl.Identity.ResolveName(ctx, deviceID), nil
	})
	if !ok {
		return
	}
	log.Info().Msgf("%s -> %s", deviceID, value.(string))
}

func connect(ctx context.Context, fl *fleet.Fleet, address string) {
	// The controller expects host:port; default the port here.
	if !strings.Contains(address, ":") {
		address += ":" + defaultADBPort
	}
	log.Info().Msgf("Connecting to %s...", address)
	value, ok := submitExclusive(ctx, fl, "connect", func(ctx context.Context) (any, error) {
		return fl.Connection.Connect(ctx, address), nil
	})
	if !ok {
		return
	}
	reportResult(value.(definitions.CommandResult))
}

func disconnect(ctx context.Context, fl *fleet.Fleet, deviceID string) {
	log.Info().Msgf("Disconnecting from %s...", deviceID)
	value, ok := submitExclusive(ctx, fl, "disconnect", func(ctx context.Context) (any, error) {
		return fl.Connection.Disconnect(ctx, deviceID), nil
	})
	if !ok {
		return
	}
	reportResult(value.(definitions.CommandResult))
}

// install fans each APK out to its own worker; installs are unrestricted
// and run concurrently.
func install(ctx context.Context, fl *fleet.Fleet, deviceID, apkList string) {
	var wg sync.WaitGroup
	for _, p := range strings.Split(apkList, ",") {
		apkPath := strings.TrimSpace(p)
		if apkPath == "" {
			continue
		}
		handle := fl.Pool.SubmitInstall(ctx, "install "+filepath.Base(apkPath), func(ctx context.Context) (any, error) {
			return fl.Installer.Install(ctx, deviceID, apkPath), nil
		})
		wg.Add(1)
		go func(apk string, h *ops.Handle) {
			defer wg.Done()
			value, _ := ops.Await(h)
			outcome := value.(definitions.InstallOutcome)
			if outcome.Success {
				log.Info().Msgf("Installed %s", apk)
			} else {
				log.Error().Msgf("Install of %s failed: %s", apk, outcome.Error)
			}
		}(apkPath, handle)
	}
	wg.Wait()
}

func maintain(ctx context.Context, fl *fleet.Fleet, cfg *config.Config) {
	for _, pkg := range cfg.ExpandPackages(opts.Package) {
		var res definitions.CommandResult
		switch {
		case opts.Uninstall:
			log.Info().Msgf("Uninstalling %s...", pkg)
			res = fl.Maintenance.Uninstall(ctx, opts.DeviceID, pkg)
		case opts.ClearCache:
			log.Info().Msgf("Clearing data for %s...", pkg)
			res = fl.Maintenance.ClearAppCache(ctx, opts.DeviceID, pkg)
		case opts.ForceStop:
			log.Info().Msgf("Force-stopping %s...", pkg)
			res = fl.Maintenance.ForceStopApp(ctx, opts.DeviceID, pkg)
		}
		reportResult(res)
	}
}

func screenshot(ctx context.Context, fl *fleet.Fleet, cfg *config.Config) {
	outPath := opts.Output
	if outPath == "" {
		name := utils.SanitizeFilename(fmt.Sprintf("%s_%s.png", opts.DeviceID, time.Now().Format("20060102_150405")))
		outPath = filepath.Join(cfg.ScreenshotOutputDir(), name)
	}
	res := fl.Capture.Screenshot(ctx, opts.DeviceID, outPath)
	if res.Success {
		log.Info().Msgf("Screenshot saved to %s", res.Output)
	} else {
		log.Error().Msgf("Screenshot failed: %s", res.Error)
	}
}

func pullLogs(ctx context.Context, fl *fleet.Fleet, cfg *config.Config) {
	outPath := opts.Output
	if outPath == "" {
		name := utils.SanitizeFilename(fmt.Sprintf("%s_%s.log", opts.DeviceID, time.Now().Format("20060102_150405")))
		outPath = filepath.Join(cfg.LogOutputDir(), name)
	}
	res := fl.Capture.PullLogs(ctx, opts.DeviceID, opts.Package, outPath)
	if res.Success {
		log.Info().Msgf("Logs saved to %s", res.Output)
	} else {
		log.Error().Msgf("Log capture failed: %s", res.Error)
	}
}

func reportResult(res definitions.CommandResult) {
	if res.Success {
		if res.Output != "" {
			log.Info().Msgf("OK: %s", res.Output)
		} else {
			log.Info().Msg("OK")
		}
		return
	}
	log.Error().Msgf("FAILED: %s", res.Error)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

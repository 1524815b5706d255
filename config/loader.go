package config

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/yunfanliu/adbfleet/utils"
)

// Settings mirrors config/settings.json. Every field is optional; an
// empty value falls back to a path next to the executable.
type Settings struct {
	ADBPath             string `json:"adb_path"`
	PackagesPath        string `json:"packages_path"`
	DevicesPath         string `json:"devices_path"`
	LogOutputDir        string `json:"log_output_dir"`
	ScreenshotOutputDir string `json:"screenshot_output_dir"`
}

// Config is the loaded on-disk configuration. Loading is best effort
// end to end: a missing or malformed file degrades to empty data and a
// log line, never to an error.
type Config struct {
	Settings      Settings
	PackageGroups map[string][]string

	baseDir string
}

// Load reads settings.json and packages.json from dir. An empty dir
// means the config directory next to the executable.
func Load(dir string) *Config {
	if dir == "" {
		dir = defaultConfigDir()
	}
	c := &Config{baseDir: dir, PackageGroups: map[string][]string{}}

	settingsPath := filepath.Join(dir, "settings.json")
	if err := utils.LoadJSONFile(settingsPath, &c.Settings); err != nil {
		log.Warn().Str("path", settingsPath).Err(err).Msg("settings not loaded, using defaults")
	}

	packagesPath := c.Settings.PackagesPath
	if packagesPath == "" {
		packagesPath = filepath.Join(dir, "packages.json")
	}
	if err := utils.LoadJSONFile(packagesPath, &c.PackageGroups); err != nil {
		log.Warn().Str("path", packagesPath).Err(err).Msg("package groups not loaded")
	} else {
		log.Debug().Int("groups", len(c.PackageGroups)).Msg("loaded package groups")
	}

	return c
}

func defaultConfigDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "config"
	}
	return filepath.Join(filepath.Dir(exe), "config")
}

// DevicesPath returns the MAC mapping file consumed by the identity
// resolver.
func (c *Config) DevicesPath() string {
	if c.Settings.DevicesPath != "" {
		return c.Settings.DevicesPath
	}
	return filepath.Join(c.baseDir, "devices.txt")
}

// LogOutputDir returns the directory log captures are written to.
func (c *Config) LogOutputDir() string {
	if c.Settings.LogOutputDir != "" {
		return c.Settings.LogOutputDir
	}
	return "logs"
}

// ScreenshotOutputDir returns the directory screenshots are written to.
func (c *Config) ScreenshotOutputDir() string {
	if c.Settings.ScreenshotOutputDir != "" {
		return c.Settings.ScreenshotOutputDir
	}
	return "screenshots"
}

// ExpandPackages resolves nameOrGroup against the loaded package groups:
// a group name expands to its members, anything else is taken as a
// literal package name.
func (c *Config) ExpandPackages(nameOrGroup string) []string {
	if packages, ok := c.PackageGroups[nameOrGroup]; ok {
		return packages
	}
	return []string{nameOrGroup}
}

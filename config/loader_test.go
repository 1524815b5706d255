package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.json", `{
		"adb_path": "/opt/platform-tools/adb",
		"devices_path": "/etc/fleet/devices.txt",
		"log_output_dir": "/var/log/fleet",
		"screenshot_output_dir": "/var/fleet/shots"
	}`)
	writeFile(t, dir, "packages.json", `{
		"media": ["com.example.player", "com.example.gallery"]
	}`)

	c := Load(dir)
	if c.Settings.ADBPath != "/opt/platform-tools/adb" {
		t.Errorf("adb path not loaded: %+v", c.Settings)
	}
	if c.DevicesPath() != "/etc/fleet/devices.txt" {
		t.Errorf("configured devices path must win, got %q", c.DevicesPath())
	}
	if c.LogOutputDir() != "/var/log/fleet" || c.ScreenshotOutputDir() != "/var/fleet/shots" {
		t.Errorf("output dirs not loaded: %+v", c.Settings)
	}
	if got := c.ExpandPackages("media"); !reflect.DeepEqual(got, []string{"com.example.player", "com.example.gallery"}) {
		t.Errorf("group must expand to members, got %v", got)
	}
}

func TestLoadMissingFilesDegrades(t *testing.T) {
	c := Load(t.TempDir())
	if c.Settings.ADBPath != "" {
		t.Errorf("missing settings must leave defaults: %+v", c.Settings)
	}
	if len(c.PackageGroups) != 0 {
		t.Errorf("missing packages must leave an empty map: %v", c.PackageGroups)
	}
}

func TestLoadMalformedJSONDegrades(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "settings.json", "{not json")
	writeFile(t, dir, "packages.json", "[]")

	c := Load(dir)
	if c.Settings != (Settings{}) {
		t.Errorf("malformed settings must degrade to zero values: %+v", c.Settings)
	}
	if got := c.ExpandPackages("com.example.app"); !reflect.DeepEqual(got, []string{"com.example.app"}) {
		t.Errorf("unknown name must stay a literal package, got %v", got)
	}
}

func TestDefaultPaths(t *testing.T) {
	dir := t.TempDir()
	c := Load(dir)
	if got := c.DevicesPath(); got != filepath.Join(dir, "devices.txt") {
		t.Errorf("devices path must default next to the config dir, got %q", got)
	}
	if c.LogOutputDir() != "logs" {
		t.Errorf("unexpected log dir default: %q", c.LogOutputDir())
	}
	if c.ScreenshotOutputDir() != "screenshots" {
		t.Errorf("unexpected screenshot dir default: %q", c.ScreenshotOutputDir())
	}
}

func TestPackagesPathOverride(t *testing.T) {
	dir := t.TempDir()
	alt := writeFile(t, dir, "custom-packages.json", `{"solo": ["com.example.solo"]}`)
	writeFile(t, dir, "settings.json", `{"packages_path": `+strconv.Quote(alt)+`}`)

	c := Load(dir)
	if got := c.ExpandPackages("solo"); !reflect.DeepEqual(got, []string{"com.example.solo"}) {
		t.Errorf("packages_path override ignored, got %v", got)
	}
}

package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeMapping(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "devices.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func staticScan(table string) ScanFunc {
	return func(context.Context) (string, error) { return table, nil }
}

const arpTable = `? (192.168.1.50) at aa:bb:cc:dd:ee:ff [ether] on wlan0
? (192.168.1.77) at 11:22:33:44:55:66 [ether] on wlan0
? (192.168.1.1) at <incomplete> on wlan0
`

func TestLoadMapping(t *testing.T) {
	path := writeMapping(t, `
# living room tablet
AA:BB:CC:DD:EE:FF = LivingRoom
11:22:33:44:55:66=Bedroom
malformed line without separator
too=many=equals
11:22:33:44:55:66=BedroomV2
`)
	mapping := LoadMapping(path)
	if len(mapping) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(mapping), mapping)
	}
	if mapping["aa:bb:cc:dd:ee:ff"] != "LivingRoom" {
		t.Errorf("keys must be lowercased and trimmed: %v", mapping)
	}
	if mapping["11:22:33:44:55:66"] != "BedroomV2" {
		t.Errorf("duplicate key must keep the last value: %v", mapping)
	}
	if again := LoadMapping(path); !reflect.DeepEqual(mapping, again) {
		t.Errorf("loading twice must yield equal mappings: %v vs %v", mapping, again)
	}
}

func TestLoadMappingMissingFile(t *testing.T) {
	mapping := LoadMapping(filepath.Join(t.TempDir(), "absent.txt"))
	if len(mapping) != 0 {
		t.Errorf("missing file must yield an empty mapping, got %v", mapping)
	}
}

func TestNormalizeMAC(t *testing.T) {
	if got := NormalizeMAC("AA-BB-CC-DD-EE-FF"); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("unexpected normalization: %q", got)
	}
	if got := NormalizeMAC("aa:bb:cc:dd:ee:ff"); got != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("colon form must be stable: %q", got)
	}
}

func TestResolveNameMapped(t *testing.T) {
	r := NewResolver(writeMapping(t, "aa:bb:cc:dd:ee:ff=LivingRoom\n"), staticScan(arpTable))
	if got := r.ResolveName(context.Background(), "192.168.1.50:5555"); got != "LivingRoom" {
		t.Errorf("expected the configured name, got %q", got)
	}
}

func TestResolveNameHyphenatedScanOutput(t *testing.T) {
	table := "  192.168.1.50          AA-BB-CC-DD-EE-FF     dynamic\n"
	r := NewResolver(writeMapping(t, "aa:bb:cc:dd:ee:ff=LivingRoom\n"), staticScan(table))
	if got := r.ResolveName(context.Background(), "192.168.1.50:5555"); got != "LivingRoom" {
		t.Errorf("hyphenated MACs must resolve too, got %q", got)
	}
}

func TestHyphenKeyedMappingMatchesColonScanOutput(t *testing.T) {
	r := NewResolver(writeMapping(t, "AA-BB-CC-DD-EE-FF=LivingRoom\n"), staticScan(arpTable))

	if got := r.ResolveName(context.Background(), "192.168.1.50:5555"); got != "LivingRoom" {
		t.Errorf("hyphen-keyed entry must resolve, got %q", got)
	}

	// Both lookup paths must agree about the same entry.
	usable := r.ListUsableDevices(context.Background())
	if len(usable) != 1 || usable[0].Name != "LivingRoom" {
		t.Fatalf("expected the same entry to be listed, got %v", usable)
	}
	if usable[0].MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("listed MAC must be in normalized form, got %q", usable[0].MAC)
	}
}

func TestResolveNameFallsBackToID(t *testing.T) {
	mapping := writeMapping(t, "aa:bb:cc:dd:ee:ff=LivingRoom\n")
	cases := []struct {
		name string
		scan ScanFunc
		id   string
	}{
		{"scan error", func(context.Context) (string, error) { return "", errors.New("arp unavailable") }, "192.168.1.50:5555"},
		{"host absent", staticScan(arpTable), "10.0.0.9:5555"},
		{"mac unmapped", staticScan(arpTable), "192.168.1.77:5555"},
		{"no mac on line", staticScan(arpTable), "192.168.1.1:5555"},
	}
	for _, tc := range cases {
		r := NewResolver(mapping, tc.scan)
		if got := r.ResolveName(context.Background(), tc.id); got != tc.id {
			t.Errorf("%s: expected the raw id back, got %q", tc.name, got)
		}
	}
}

func TestListUsableDevices(t *testing.T) {
	r := NewResolver(writeMapping(t, "aa:bb:cc:dd:ee:ff=LivingRoom\n"), staticScan(arpTable))
	usable := r.ListUsableDevices(context.Background())
	if len(usable) != 1 {
		t.Fatalf("expected 1 usable device, got %v", usable)
	}
	d := usable[0]
	if d.IP != "192.168.1.50" || d.Name != "LivingRoom" || d.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("unexpected device: %+v", d)
	}
}

func TestListUsableDevicesEmptyMappingSkipsScan(t *testing.T) {
	scanned := false
	r := NewResolver(filepath.Join(t.TempDir(), "absent.txt"), func(context.Context) (string, error) {
		scanned = true
		return arpTable, nil
	})
	if got := r.ListUsableDevices(context.Background()); got != nil {
		t.Errorf("empty mapping must yield nil, got %v", got)
	}
	if scanned {
		t.Error("empty mapping must not trigger a scan")
	}
}

func TestListUsableDevicesScanFailure(t *testing.T) {
	r := NewResolver(writeMapping(t, "aa:bb:cc:dd:ee:ff=LivingRoom\n"), func(context.Context) (string, error) {
		return "", errors.New("arp unavailable")
	})
	if got := r.ListUsableDevices(context.Background()); got != nil {
		t.Errorf("scan failure must yield nil, got %v", got)
	}
}

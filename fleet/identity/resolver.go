package identity

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yunfanliu/adbfleet/fleet/definitions"
)

var (
	macPattern  = regexp.MustCompile(`([0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}`)
	ipv4Pattern = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)
)

const scanTimeout = 30 * time.Second

// ScanFunc returns the raw neighbor-discovery table output.
type ScanFunc func(ctx context.Context) (string, error)

// Resolver turns network addresses into configured device names by
// cross-referencing the neighbor table with a static MAC mapping. All of
// its operations are best effort by contract: mapping or scan failures
// degrade to raw addresses, never to errors.
type Resolver struct {
	macToName map[string]string
	scan      ScanFunc
}

// NewResolver loads the mapping file once; the mapping is read-only for
// the rest of the process. A nil scan falls back to ARPScan.
func NewResolver(mappingPath string, scan ScanFunc) *Resolver {
	if scan == nil {
		scan = ARPScan
	}
	return &Resolver{macToName: LoadMapping(mappingPath), scan: scan}
}

// MappingSize returns the number of loaded mapping entries.
func (r *Resolver) MappingSize() int {
	return len(r.macToName)
}

// ARPScan shells out to `arp -a`, the portable way to read the kernel's
// neighbor table.
func ARPScan(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "arp", "-a").Output()
	if err != nil {
		log.Error().Err(err).Msg("arp scan failed")
		return "", err
	}
	return string(out), nil
}

// LoadMapping reads the line-oriented mac=name file. Blank lines and `#`
// comments are skipped, as are lines without exactly one `=`. Keys are
// normalized to lowercase colon form so hyphen-separated entries match
// scan output; a duplicate key keeps the last occurrence. A missing file
// yields an empty mapping, not an error.
func LoadMapping(path string) map[string]string {
	macToName := make(map[string]string)
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Msg("device name mapping not loaded")
		return macToName
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 {
			continue
		}
		mac := NormalizeMAC(strings.TrimSpace(parts[0]))
		macToName[mac] = strings.TrimSpace(parts[1])
	}
	log.Debug().Int("entries", len(macToName)).Str("path", path).Msg("loaded device name mapping")
	return macToName
}

// NormalizeMAC lowercases and converts hyphen-separated MACs to the colon
// form so scan output and mapping keys compare equal.
func NormalizeMAC(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), "-", ":")
}

// ResolveName maps a device id to its configured name. The port suffix
// is stripped, the neighbor table scanned for the bare address, the MAC
// on the matching line looked up in the mapping. Every failure path
// returns the id unchanged.
func (r *Resolver) ResolveName(ctx context.Context, deviceID string) string {
	host := deviceID
	if i := strings.Index(host, ":"); i >= 0 {
		host = host[:i]
	}

	table, err := r.scan(ctx)
	if err != nil {
		return deviceID
	}
	for _, line := range strings.Split(table, "\n") {
		if !strings.Contains(line, host) {
			continue
		}
		mac := macPattern.FindString(line)
		if mac == "" {
			continue
		}
		if name, ok := r.macToName[NormalizeMAC(mac)]; ok {
			return name
		}
		return deviceID
	}
	return deviceID
}

// ListUsableDevices runs one neighbor scan and emits a UsableDevice for
// every mapping entry whose MAC currently appears in the table; the
// first matching line wins per entry. An empty mapping skips the scan
// entirely; a failed scan yields an empty result.
func (r *Resolver) ListUsableDevices(ctx context.Context) []definitions.UsableDevice {
	if len(r.macToName) == 0 {
		log.Warn().Msg("no MAC mapping loaded, cannot list usable devices")
		return nil
	}

	table, err := r.scan(ctx)
	if err != nil {
		return nil
	}
	lines := strings.Split(table, "\n")

	var usable []definitions.UsableDevice
	for mac, name := range r.macToName {
		norm := NormalizeMAC(mac)
		for _, line := range lines {
			if !strings.Contains(NormalizeMAC(line), norm) {
				continue
			}
			if ip := ipv4Pattern.FindString(line); ip != "" {
				usable = append(usable, definitions.UsableDevice{IP: ip, Name: name, MAC: mac})
			}
			break
		}
	}
	return usable
}

package utils

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnsureDir creates dir (and parents) when it does not exist yet.
func EnsureDir(dir string) error {
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// FormatFileSize renders a byte count in a human unit, e.g. "1.00KB".
func FormatFileSize(size int64) string {
	if size == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB"}
	value := float64(size)
	i := 0
	for value >= 1024.0 && i < len(units)-1 {
		value /= 1024.0
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}

// IsValidIP checks the dotted-quad IPv4 form.
func IsValidIP(ip string) bool {
	parts := strings.Split(ip, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// SanitizeFilename replaces characters that are illegal in file names.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"<", "_", ">", "_", ":", "_", `"`, "_",
		"/", "_", `\`, "_", "|", "_", "?", "_", "*", "_",
	)
	return replacer.Replace(name)
}

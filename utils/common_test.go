package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatFileSize(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "0B"},
		{512, "512.00B"},
		{1024, "1.00KB"},
		{1536, "1.50KB"},
		{5 * 1024 * 1024, "5.00MB"},
		{3 * 1024 * 1024 * 1024, "3.00GB"},
	}
	for _, tc := range cases {
		if got := FormatFileSize(tc.size); got != tc.want {
			t.Errorf("FormatFileSize(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestIsValidIP(t *testing.T) {
	for _, ip := range []string{"192.168.1.50", "0.0.0.0", "255.255.255.255"} {
		if !IsValidIP(ip) {
			t.Errorf("%q should be valid", ip)
		}
	}
	for _, ip := range []string{"", "192.168.1", "192.168.1.256", "a.b.c.d", "192.168.1.50:5555"} {
		if IsValidIP(ip) {
			t.Errorf("%q should be invalid", ip)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	got := SanitizeFilename(`shot 192.168.1.50:5555 <a>/"b"\|?*`)
	want := `shot 192.168.1.50_5555 _a___b_____`
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("nested directory not created: %v", err)
	}
	if err := EnsureDir(""); err != nil {
		t.Errorf("empty dir must be a no-op: %v", err)
	}
}

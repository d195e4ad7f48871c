package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseMounts(t *testing.T) {
	table := `sysfs /sys sysfs rw,nosuid 0 0
/dev/sda1 / ext4 rw,relatime 0 0
nas:/export/crawl /mnt/crawl nfs4 rw,vers=4.2 0 0
//fileserver/archiv /mnt/Crawl\040Archiv cifs rw 0 0
broken line
`
	mounts, err := parseMounts(strings.NewReader(table))
	if err != nil {
		t.Fatalf("parseMounts failed: %v", err)
	}

	want := map[string]string{
		"/sys":              "sysfs",
		"/":                 "ext4",
		"/mnt/crawl":        "nfs4",
		"/mnt/Crawl Archiv": "cifs",
	}
	if len(mounts) != len(want) {
		t.Fatalf("Expected %d mounts, got %v", len(want), mounts)
	}
	for mp, fsType := range want {
		if mounts[mp] != fsType {
			t.Errorf("Expected %s on %s, got %q", fsType, mp, mounts[mp])
		}
	}
}

func TestMountFor(t *testing.T) {
	mounts := map[string]string{
		"/":                "ext4",
		"/mnt/crawl":       "nfs4",
		"/mnt/crawl/local": "xfs",
	}

	tests := []struct {
		path      string
		wantMount string
		wantType  string
	}{
		{"/mnt/crawl/2024/urls.txt", "/mnt/crawl", "nfs4"},
		{"/mnt/crawl", "/mnt/crawl", "nfs4"},
		{"/mnt/crawl/local/a", "/mnt/crawl/local", "xfs"},
		{"/mnt/crawler/a", "/", "ext4"},
		{"/home/franz", "/", "ext4"},
	}

	for _, tt := range tests {
		mp, fsType := mountFor(tt.path, mounts)
		if mp != tt.wantMount || fsType != tt.wantType {
			t.Errorf("mountFor(%s) = %s %s, expected %s %s", tt.path, mp, fsType, tt.wantMount, tt.wantType)
		}
	}
}

func TestIsNetworkFSType(t *testing.T) {
	tests := []struct {
		fsType string
		want   bool
	}{
		{"nfs", true},
		{"nfs4", true},
		{"cifs", true},
		{"smb3", true},
		{"fuse.sshfs", true},
		{"ext4", false},
		{"tmpfs", false},
		{"fuse.portal", false},
	}
	for _, tt := range tests {
		if got := isNetworkFSType(tt.fsType); got != tt.want {
			t.Errorf("isNetworkFSType(%s) = %v, expected %v", tt.fsType, got, tt.want)
		}
	}
}

func TestDetectNetworkFilesystem_MissingPath(t *testing.T) {
	dir := t.TempDir()

	// a merge destination that does not exist yet is judged by its parent
	info, err := DetectNetworkFilesystem(filepath.Join(dir, "merged", "txt"))
	if err != nil {
		t.Fatalf("DetectNetworkFilesystem failed: %v", err)
	}
	parent, err := DetectNetworkFilesystem(dir)
	if err != nil {
		t.Fatalf("DetectNetworkFilesystem failed: %v", err)
	}
	if info.IsNetwork != parent.IsNetwork {
		t.Errorf("Expected missing path to match its parent, got %v and %v", info.IsNetwork, parent.IsNetwork)
	}
	if IsNetworkPath(filepath.Join(dir, "merged")) != parent.IsNetwork {
		t.Errorf("Expected IsNetworkPath to agree with detection, got %v", !parent.IsNetwork)
	}
	if _, err := os.Stat(filepath.Join(dir, "merged")); !os.IsNotExist(err) {
		t.Error("Expected detection not to create anything")
	}
}

func TestDetectNetworkMode_Override(t *testing.T) {
	on, off := true, false

	mode := DetectNetworkMode(&on, t.TempDir())
	if !mode.Enabled || !mode.Explicit {
		t.Errorf("Expected explicit network mode, got %+v", mode)
	}
	if got := mode.RetryConfig(0, 0).MaxAttempts; got != 3 {
		t.Errorf("Expected 3 attempts in network mode, got %d", got)
	}

	mode = DetectNetworkMode(&off)
	if mode.Enabled {
		t.Errorf("Expected network mode off, got %+v", mode)
	}
	if got := mode.RetryConfig(5, time.Second).MaxAttempts; got != 1 {
		t.Errorf("Expected a single attempt locally, got %d", got)
	}
}

func TestNetworkMode_RetryOverrides(t *testing.T) {
	mode := &NetworkMode{Enabled: true, Explicit: true}

	cfg := mode.RetryConfig(5, 10*time.Second)
	if cfg.MaxAttempts != 5 {
		t.Errorf("Expected 5 attempts, got %d", cfg.MaxAttempts)
	}
	if cfg.InitialWait != 10*time.Second {
		t.Errorf("Expected 10s initial wait, got %v", cfg.InitialWait)
	}
	if cfg.MaxWait < cfg.InitialWait {
		t.Errorf("Expected max wait >= initial wait, got %v", cfg.MaxWait)
	}

	var local *NetworkMode
	if local.String() != "local" {
		t.Errorf("Expected nil mode to be local, got %s", local.String())
	}
}

package util

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NetworkInfo describes the filesystem an archive path lives on
type NetworkInfo struct {
	IsNetwork bool   // NFS, SMB/CIFS and similar mounts
	Protocol  string // filesystem type, empty when local
	MountPath string // mount point, when known
}

// DetectNetworkFilesystem reports whether path is on a network mount. A
// path that does not exist yet (a merge destination, a new journal) is
// judged by its nearest existing parent.
func DetectNetworkFilesystem(path string) (*NetworkInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	existing, err := existingAncestor(absPath)
	if err != nil {
		return nil, err
	}
	return detectPlatformNetwork(existing)
}

// IsNetworkPath reports whether path is on a network mount; detection
// failures count as local
func IsNetworkPath(path string) bool {
	info, err := DetectNetworkFilesystem(path)
	if err != nil {
		return false
	}
	return info.IsNetwork
}

func existingAncestor(path string) (string, error) {
	for {
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("failed to stat %s: %w", path, err)
		}
		parent := filepath.Dir(path)
		if parent == path {
			return "", fmt.Errorf("no existing parent of %s: %w", path, ErrNotFound)
		}
		path = parent
	}
}

// networkFSTypes are mount table filesystem types served over the network
var networkFSTypes = []string{"nfs", "cifs", "smb", "smbfs", "ncpfs", "afpfs", "webdav", "fuse.sshfs", "fuse.rclone"}

func isNetworkFSType(fsType string) bool {
	fsType = strings.ToLower(fsType)
	for _, t := range networkFSTypes {
		if fsType == t || strings.HasPrefix(fsType, t) {
			return true
		}
	}
	return false
}

// parseMounts reads a /proc/mounts style table into mount point -> type.
// Mount points have spaces and tabs escaped as octal (\040).
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[unescapeMount(fields[1])] = fields[2]
	}
	return mounts, sc.Err()
}

func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+4 <= len(s) {
			if n, err := strconv.ParseUint(s[i+1:i+4], 8, 8); err == nil {
				b.WriteByte(byte(n))
				i += 3
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// mountFor returns the longest mount point containing path
func mountFor(path string, mounts map[string]string) (mountPoint, fsType string) {
	for mp, t := range mounts {
		if !within(path, mp) || len(mp) <= len(mountPoint) {
			continue
		}
		mountPoint, fsType = mp, t
	}
	return mountPoint, fsType
}

func within(path, dir string) bool {
	if dir == "/" || path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

//go:build darwin

package util

import (
	"os"
	"syscall"
)

func detectPlatformNetwork(path string) (*NetworkInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, &os.PathError{Op: "statfs", Path: path, Err: err}
	}

	info := &NetworkInfo{}
	fsType := cString(stat.Fstypename[:])
	if isNetworkFSType(fsType) || fsType == "osxfuse" || fsType == "macfuse" {
		info.IsNetwork = true
		info.Protocol = fsType
		info.MountPath = cString(stat.Mntonname[:])
	}
	return info, nil
}

// cString converts a NUL-terminated statfs name
func cString(arr []int8) string {
	b := make([]byte, 0, len(arr))
	for _, c := range arr {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}

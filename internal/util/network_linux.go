//go:build linux

package util

import (
	"os"
	"syscall"
)

// superblock magic numbers of network filesystems (linux/magic.h)
var networkMagic = map[uint32]string{
	0x6969:     "nfs",
	0xff534d42: "cifs",
	0xfe534d42: "smb2",
	0x517b:     "smb",
	0x564c:     "ncp",
}

func detectPlatformNetwork(path string) (*NetworkInfo, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return nil, &os.PathError{Op: "statfs", Path: path, Err: err}
	}

	info := &NetworkInfo{}
	if proto, ok := networkMagic[uint32(stat.Type)]; ok {
		info.IsNetwork = true
		info.Protocol = proto
	}

	// the mount table also knows FUSE mounts (sshfs, rclone)
	f, err := os.Open("/proc/mounts")
	if err != nil {
		return info, nil
	}
	defer f.Close()
	mounts, err := parseMounts(f)
	if err != nil {
		return info, nil
	}

	mountPoint, fsType := mountFor(path, mounts)
	info.MountPath = mountPoint
	if isNetworkFSType(fsType) {
		info.IsNetwork = true
		info.Protocol = fsType
	}
	return info, nil
}

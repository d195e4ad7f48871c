//go:build !linux && !darwin

package util

// detectPlatformNetwork treats every path as local where mounts can't be
// inspected
func detectPlatformNetwork(path string) (*NetworkInfo, error) {
	return &NetworkInfo{}, nil
}

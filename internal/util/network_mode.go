package util

import (
	"fmt"
	"time"
)

// NetworkMode records whether a run treats its archives as network storage:
// file operations are retried and the journal gets network pragmas
type NetworkMode struct {
	Enabled  bool
	Explicit bool         // set by flag or config rather than detected
	Path     string       // first path found on a network mount
	Info     *NetworkInfo // detection result for Path
}

// DetectNetworkMode enables network mode when any of paths is on a network
// mount. A non-nil override skips detection.
func DetectNetworkMode(override *bool, paths ...string) *NetworkMode {
	if override != nil {
		DebugLog("network mode %t (set explicitly)", *override)
		return &NetworkMode{Enabled: *override, Explicit: true}
	}

	for _, p := range paths {
		if p == "" {
			continue
		}
		info, err := DetectNetworkFilesystem(p)
		if err != nil {
			WarnLog("Failed to detect filesystem of %s: %v", p, err)
			continue
		}
		if info.IsNetwork {
			InfoLog("Network filesystem detected: %s is on %s (%s), retrying file operations",
				p, info.Protocol, info.MountPath)
			return &NetworkMode{Enabled: true, Path: p, Info: info}
		}
	}
	return &NetworkMode{}
}

// RetryConfig returns NoRetry for local runs and DefaultRetryConfig, with
// optional attempt and wait overrides, on network storage
func (n *NetworkMode) RetryConfig(attempts int, wait time.Duration) *RetryConfig {
	if n == nil || !n.Enabled {
		return NoRetry()
	}
	cfg := DefaultRetryConfig()
	if attempts > 0 {
		cfg.MaxAttempts = attempts
	}
	if wait > 0 {
		cfg.InitialWait = wait
		if cfg.MaxWait < wait {
			cfg.MaxWait = wait * 8
		}
	}
	return cfg
}

func (n *NetworkMode) String() string {
	switch {
	case n == nil || !n.Enabled:
		return "local"
	case n.Explicit:
		return "network (explicit)"
	}
	return fmt.Sprintf("network (%s on %s)", n.Path, n.Info.Protocol)
}

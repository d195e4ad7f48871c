package util

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig controls how often file operations on an archive are retried.
// Archives are often kept on NFS or SMB mounts where single calls fail
// transiently.
type RetryConfig struct {
	MaxAttempts int           // total attempts, 1 means no retry
	InitialWait time.Duration // doubled after every failed attempt
	MaxWait     time.Duration
}

// DefaultRetryConfig is used for archives on network mounts
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     5 * time.Second,
	}
}

// NoRetry performs each operation exactly once
func NoRetry() *RetryConfig {
	return &RetryConfig{MaxAttempts: 1}
}

var transientErrnos = []syscall.Errno{
	syscall.EAGAIN,
	syscall.EIO,
	syscall.ETIMEDOUT,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ECONNREFUSED,
	syscall.ENETDOWN,
	syscall.ENETUNREACH,
	syscall.EHOSTDOWN,
	syscall.EHOSTUNREACH,
	syscall.ESTALE, // NFS handle went away under us
}

var transientMessages = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"connection aborted",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"network is down",
	"host is down",
	"temporary failure",
	"resource temporarily unavailable",
	"stale file handle",
	"i/o error",
}

// IsRetryableError reports whether err looks like a transient failure of a
// network mount. Missing files and permission errors are never retried.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range transientErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// Do runs op until it succeeds, fails with a non-retryable error, or the
// attempts are used up. A nil config uses DefaultRetryConfig.
func (c *RetryConfig) Do(name string, op func() error) error {
	if c == nil {
		c = DefaultRetryConfig()
	}

	wait := c.InitialWait
	for attempt := 1; ; attempt++ {
		err := op()
		switch {
		case err == nil:
			if attempt > 1 {
				DebugLog("%s succeeded on attempt %d/%d", name, attempt, c.MaxAttempts)
			}
			return nil
		case !IsRetryableError(err):
			return err
		case attempt >= c.MaxAttempts:
			if c.MaxAttempts > 1 {
				WarnLog("%s failed after %d attempts: %v", name, attempt, err)
				return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
			}
			return err
		}

		DebugLog("%s failed (attempt %d/%d), retrying in %v: %v", name, attempt, c.MaxAttempts, wait, err)
		time.Sleep(wait)
		wait *= 2
		if c.MaxWait > 0 && wait > c.MaxWait {
			wait = c.MaxWait
		}
	}
}

// RetryWithBackoff is Do for operations that return a value
func RetryWithBackoff[T any](cfg *RetryConfig, name string, op func() (T, error)) (T, error) {
	var result T
	err := cfg.Do(name, func() error {
		var err error
		result, err = op()
		return err
	})
	return result, err
}

// RetryableOpen opens a file for reading
func RetryableOpen(path string, cfg *RetryConfig) (*os.File, error) {
	return RetryWithBackoff(cfg, "open "+path, func() (*os.File, error) {
		return os.Open(path)
	})
}

// RetryableCreate creates or truncates a file
func RetryableCreate(path string, cfg *RetryConfig) (*os.File, error) {
	return RetryWithBackoff(cfg, "create "+path, func() (*os.File, error) {
		return os.Create(path)
	})
}

// RetryableRemove removes a file
func RetryableRemove(path string, cfg *RetryConfig) error {
	return cfg.Do("remove "+path, func() error {
		return os.Remove(path)
	})
}

// RetryableRename renames a file
func RetryableRename(oldpath, newpath string, cfg *RetryConfig) error {
	return cfg.Do("rename "+oldpath, func() error {
		return os.Rename(oldpath, newpath)
	})
}

// RetryableMkdirAll creates a directory and its parents
func RetryableMkdirAll(path string, perm os.FileMode, cfg *RetryConfig) error {
	return cfg.Do("mkdir "+path, func() error {
		return os.MkdirAll(path, perm)
	})
}

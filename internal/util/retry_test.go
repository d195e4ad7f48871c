package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"EAGAIN", syscall.EAGAIN, true},
		{"ETIMEDOUT", syscall.ETIMEDOUT, true},
		{"ESTALE", syscall.ESTALE, true},
		{"EIO", syscall.EIO, true},
		{"ENOENT", syscall.ENOENT, false},
		{"EACCES", syscall.EACCES, false},
		{"message with timeout", errors.New("read: connection timeout"), true},
		{"message with broken pipe", errors.New("write: broken pipe"), true},
		{"generic", errors.New("invalid argument"), false},
		{"PathError with ESTALE", &os.PathError{Op: "open", Path: "/mnt/a.html", Err: syscall.ESTALE}, true},
		{"PathError with ENOENT", &os.PathError{Op: "open", Path: "/mnt/a.html", Err: syscall.ENOENT}, false},
		{"LinkError with ECONNRESET", &os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ECONNRESET}, true},
		{"wrapped", fmt.Errorf("copy a.html: %w", syscall.EHOSTDOWN), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryableError(tt.err); got != tt.want {
				t.Errorf("IsRetryableError(%v) = %v, expected %v", tt.err, got, tt.want)
			}
		})
	}
}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialWait: time.Millisecond, MaxWait: 4 * time.Millisecond}
}

func TestDo(t *testing.T) {
	tests := []struct {
		name         string
		attempts     int
		failures     int
		failWith     error
		wantAttempts int
		wantErr      bool
	}{
		{"immediate success", 3, 0, nil, 1, false},
		{"success after transient failures", 3, 2, syscall.ETIMEDOUT, 3, false},
		{"attempts exhausted", 3, 5, syscall.ETIMEDOUT, 3, true},
		{"non-retryable fails at once", 3, 5, os.ErrPermission, 1, true},
		{"single attempt", 1, 5, syscall.ETIMEDOUT, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fastRetry(tt.attempts).Do("op", func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})

			if calls != tt.wantAttempts {
				t.Errorf("Expected %d attempts, got %d", tt.wantAttempts, calls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error %v, got %v", tt.wantErr, err)
			}
			if err != nil && !errors.Is(err, tt.failWith) {
				t.Errorf("Expected error to wrap %v, got %v", tt.failWith, err)
			}
		})
	}
}

func TestDo_Backoff(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: 20 * time.Millisecond, MaxWait: time.Second}

	start := time.Now()
	calls := 0
	cfg.Do("op", func() error {
		calls++
		return syscall.EAGAIN
	})
	elapsed := time.Since(start)

	// 20ms then 40ms
	if elapsed < 60*time.Millisecond {
		t.Errorf("Expected at least 60ms of backoff, got %v", elapsed)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	got, err := RetryWithBackoff(fastRetry(3), "op", func() (int, error) {
		calls++
		if calls == 1 {
			return 0, syscall.ECONNRESET
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 || cfg.InitialWait != 100*time.Millisecond || cfg.MaxWait != 5*time.Second {
		t.Errorf("Unexpected default config %+v", cfg)
	}
	if NoRetry().MaxAttempts != 1 {
		t.Errorf("Expected NoRetry to make one attempt, got %d", NoRetry().MaxAttempts)
	}
}

func TestRetryableFileOps(t *testing.T) {
	dir := t.TempDir()
	cfg := fastRetry(3)

	nested := filepath.Join(dir, "txt", "02_Tokenisierung")
	if err := RetryableMkdirAll(nested, 0755, cfg); err != nil {
		t.Fatalf("RetryableMkdirAll failed: %v", err)
	}

	part := filepath.Join(nested, "a.tok.part")
	f, err := RetryableCreate(part, cfg)
	if err != nil {
		t.Fatalf("RetryableCreate failed: %v", err)
	}
	f.WriteString("Der\nHund\n")
	f.Close()

	final := filepath.Join(nested, "a.tok")
	if err := RetryableRename(part, final, cfg); err != nil {
		t.Fatalf("RetryableRename failed: %v", err)
	}
	f, err = RetryableOpen(final, cfg)
	if err != nil {
		t.Fatalf("RetryableOpen failed: %v", err)
	}
	f.Close()

	if err := RetryableRemove(final, cfg); err != nil {
		t.Fatalf("RetryableRemove failed: %v", err)
	}
	if err := RetryableRemove(final, cfg); !os.IsNotExist(err) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/franz/crawl-janitor/internal/util"
)

// Verify modes for copied artifacts
const (
	VerifyNone = "none"
	VerifySize = "size"
	VerifyHash = "hash"
)

// ValidVerifyMode reports whether mode is a known verify mode
func ValidVerifyMode(mode string) bool {
	switch mode {
	case VerifyNone, VerifySize, VerifyHash:
		return true
	}
	return false
}

// copyFile copies via a .part file renamed into place, so a destination
// name never holds a partial file
func (m *Merger) copyFile(ctx context.Context, srcPath, destPath string) (int64, error) {
	destDir := filepath.Dir(destPath)
	if err := util.RetryableMkdirAll(destDir, 0755, m.retry); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	src, err := util.RetryableOpen(srcPath, m.retry)
	if err != nil {
		return 0, fmt.Errorf("failed to open source: %w", err)
	}
	defer src.Close()

	tempPath := destPath + ".part"
	dest, err := util.RetryableCreate(tempPath, m.retry)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	bytesWritten, err := copyWithContext(ctx, dest, src, m.bufferSize)
	if cerr := dest.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		util.RetryableRemove(tempPath, m.retry)
		return 0, fmt.Errorf("failed to copy: %w", err)
	}

	if err := m.verify(srcPath, tempPath, bytesWritten); err != nil {
		util.RetryableRemove(tempPath, m.retry)
		return 0, err
	}

	if err := util.RetryableRename(tempPath, destPath, m.retry); err != nil {
		util.RetryableRemove(tempPath, m.retry)
		return 0, fmt.Errorf("failed to rename: %w", err)
	}

	util.DebugLog("Copied: %s -> %s (%s)", srcPath, destPath, util.FormatBytes(bytesWritten))
	return bytesWritten, nil
}

// verify checks the copy against its source according to the verify mode
func (m *Merger) verify(srcPath, copyPath string, written int64) error {
	switch m.verifyMode {
	case VerifySize:
		size, err := util.FileSize(srcPath)
		if err != nil {
			return fmt.Errorf("failed to stat source: %w", err)
		}
		if size != written {
			return fmt.Errorf("%s: copied %d of %d bytes: %w", srcPath, written, size, util.ErrVerifyFailed)
		}
	case VerifyHash:
		srcHash, err := util.GenerateContentHash(srcPath)
		if err != nil {
			return fmt.Errorf("failed to hash source: %w", err)
		}
		copyHash, err := util.GenerateContentHash(copyPath)
		if err != nil {
			return fmt.Errorf("failed to hash copy: %w", err)
		}
		if srcHash != copyHash {
			return fmt.Errorf("%s: content hash mismatch: %w", srcPath, util.ErrVerifyFailed)
		}
	}
	return nil
}

// copyWithContext copies data with context cancellation support
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader, bufferSize int) (int64, error) {
	if bufferSize <= 0 {
		bufferSize = 128 * 1024
	}

	buf := make([]byte, bufferSize)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, er := src.Read(buf)
		if nr > 0 {
			nw, ew := dst.Write(buf[0:nr])
			if nw < 0 || nr < nw {
				nw = 0
				if ew == nil {
					ew = fmt.Errorf("invalid write result")
				}
			}
			written += int64(nw)
			if ew != nil {
				return written, ew
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if er != nil {
			if er != io.EOF {
				return written, er
			}
			break
		}
	}
	return written, nil
}

// sourceExists reports whether path is present without following a final
// symlink
func sourceExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

package metafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/franz/crawl-janitor/internal/util"
)

// Decide is called with the split fields of each record and returns true
// when the record should be dropped. Callers that accumulate state while
// deciding do so in a value they own and close over.
type Decide func(fields []string) (drop bool, err error)

// Rewrite drops every record of path for which decide returns true and
// writes the survivors back in their original order, each terminated by a
// newline. It returns the number of dropped records.
//
// The file is first copied to a sibling temporary file, then truncated and
// refilled from the copy, then the copy is removed. If refilling fails with
// an error the original content is restored from the copy. A crash between
// truncation and the end of the stream leaves the file partial.
func Rewrite(path string, decide Decide) (int, error) {
	tempPath, err := tempCopy(path)
	if err != nil {
		return 0, err
	}

	dropped, err := refill(path, tempPath, decide)
	if err != nil {
		if restoreErr := restore(tempPath, path); restoreErr != nil {
			util.ErrorLog("Failed to restore %s from %s: %v", path, tempPath, restoreErr)
			return dropped, fmt.Errorf("%w (original kept in %s)", err, tempPath)
		}
		os.Remove(tempPath)
		return 0, err
	}

	if err := os.Remove(tempPath); err != nil && !os.IsNotExist(err) {
		return dropped, fmt.Errorf("failed to remove temp copy: %w", err)
	}
	return dropped, nil
}

// Preview runs the same decisions as Rewrite and calls report with every
// line that would be dropped. The file is not modified.
func Preview(path string, decide Decide, report func(line string)) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	matched := 0
	lr := NewLineReader(f)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return matched, nil
		}
		if err != nil {
			return matched, fmt.Errorf("failed to read %s: %w", path, err)
		}
		drop, err := decide(Split(line))
		if err != nil {
			return matched, fmt.Errorf("%s:%d: %w", path, lr.Line(), err)
		}
		if drop {
			matched++
			if report != nil {
				report(line)
			}
		}
	}
}

func tempCopy(path string) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp copy: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to copy %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to sync temp copy: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp copy: %w", err)
	}
	return tmp.Name(), nil
}

func refill(path, tempPath string, decide Decide) (int, error) {
	in, err := os.Open(tempPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open temp copy: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to truncate %s: %w", path, err)
	}

	w := bufio.NewWriterSize(out, 64*1024)
	lr := NewLineReader(in)
	dropped := 0
	for {
		line, err := lr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			out.Close()
			return dropped, fmt.Errorf("failed to read temp copy: %w", err)
		}
		drop, err := decide(Split(line))
		if err != nil {
			out.Close()
			return dropped, fmt.Errorf("%s:%d: %w", path, lr.Line(), err)
		}
		if drop {
			dropped++
			continue
		}
		if _, err := w.WriteString(line); err != nil {
			out.Close()
			return dropped, fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := w.WriteByte('\n'); err != nil {
			out.Close()
			return dropped, fmt.Errorf("failed to write %s: %w", path, err)
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		return dropped, fmt.Errorf("failed to flush %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return dropped, fmt.Errorf("failed to close %s: %w", path, err)
	}
	return dropped, nil
}

func restore(tempPath, path string) error {
	in, err := os.Open(tempPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

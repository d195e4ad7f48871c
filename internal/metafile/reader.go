// Package metafile reads and rewrites the tab-separated metadata files of a
// crawl archive.
package metafile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/franz/crawl-janitor/internal/archive"
)

// Split splits a metadata line on tabs, keeping trailing empty fields so
// column counts stay stable
func Split(line string) []string {
	return strings.Split(line, "\t")
}

// LineReader yields lines without their terminators. A line ends at "\n";
// a preceding "\r" is dropped, and the final line may be unterminated.
type LineReader struct {
	r    *bufio.Reader
	line int
}

// NewLineReader wraps r
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next line, or io.EOF when the input is exhausted
func (lr *LineReader) Next() (string, error) {
	s, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if err == io.EOF && s == "" {
		return "", io.EOF
	}
	lr.line++
	s = strings.TrimSuffix(s, "\n")
	s = strings.TrimSuffix(s, "\r")
	return s, nil
}

// Line is the 1-based number of the line last returned by Next
func (lr *LineReader) Line() int {
	return lr.line
}

// Each calls fn for every line of path with its 1-based line number and
// split fields. A non-nil error from fn stops the scan and is returned.
func Each(path string, fn func(line int, fields []string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	lr := NewLineReader(f)
	for {
		text, err := lr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := fn(lr.Line(), Split(text)); err != nil {
			return err
		}
	}
}

// ReadColumn collects the values of one column. Lines too short to have the
// column are skipped.
func ReadColumn(path string, column int) (archive.Set, error) {
	values := make(archive.Set)
	err := Each(path, func(_ int, fields []string) error {
		if v, ok := archive.Field(fields, column); ok {
			values.Add(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// SameLines reports whether two files hold the same sequence of lines,
// compared exactly after stripping terminators
func SameLines(path1, path2 string) (bool, error) {
	f1, err := os.Open(path1)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path1, err)
	}
	defer f1.Close()
	f2, err := os.Open(path2)
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", path2, err)
	}
	defer f2.Close()

	r1, r2 := NewLineReader(f1), NewLineReader(f2)
	for {
		l1, err1 := r1.Next()
		l2, err2 := r2.Next()
		if err1 != nil && err1 != io.EOF {
			return false, fmt.Errorf("failed to read %s: %w", path1, err1)
		}
		if err2 != nil && err2 != io.EOF {
			return false, fmt.Errorf("failed to read %s: %w", path2, err2)
		}
		end1, end2 := err1 == io.EOF, err2 == io.EOF
		if end1 && end2 {
			return true, nil
		}
		if end1 || end2 || l1 != l2 {
			return false, nil
		}
	}
}

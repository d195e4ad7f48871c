// Package stats computes read-only statistics over crawl archives: host
// counts of processed URLs, keyphrase match counts and token duplicates.
package stats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/util"
)

// HostCount is the number of processed URLs of one host
type HostCount struct {
	Host  string
	Count int64
}

// CountHosts counts the URLs listed in every file of the archive's
// processed URL directory by host, sorted by reversed domain labels
func CountHosts(a archive.Archive) ([]HostCount, error) {
	dir := a.ProcessedURLsDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("processed urls %s: %w", dir, util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list processed urls: %w", err)
	}

	counts := make(map[string]int64)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := countFile(filepath.Join(dir, e.Name()), counts); err != nil {
			return nil, err
		}
	}

	result := make([]HostCount, 0, len(counts))
	for host, n := range counts {
		result = append(result, HostCount{Host: host, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		return CompareHosts(result[i].Host, result[j].Host) < 0
	})

	util.DebugLog("counted %d hosts in %d files", len(result), len(entries))
	return result, nil
}

func countFile(path string, counts map[string]int64) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lr := metafile.NewLineReader(f)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if line == "" {
			continue
		}
		counts[HostOf(line)]++
	}
}

// HostOf returns the part of url after "//" up to the first "/", "?" or
// "#". Without "//" the host starts at the beginning.
func HostOf(url string) string {
	start := 0
	if i := strings.Index(url, "//"); i >= 0 {
		start = i + 2
	}
	rest := url[start:]
	if end := strings.IndexAny(rest, "/?#"); end >= 0 {
		return rest[:end]
	}
	return rest
}

// CompareHosts orders hosts by their dot-separated labels from right to
// left, so all hosts of one domain sort together. A host that runs out of
// labels first sorts before the longer one.
func CompareHosts(a, b string) int {
	la, lb := strings.Split(a, "."), strings.Split(b, ".")
	i, j := len(la)-1, len(lb)-1
	for ; i >= 0 && j >= 0; i, j = i-1, j-1 {
		if c := strings.Compare(la[i], lb[j]); c != 0 {
			return c
		}
	}
	switch {
	case i < 0 && j < 0:
		return 0
	case i < 0:
		return -1
	}
	return 1
}

// WriteHostCounts writes one "host\tcount" line per host
func WriteHostCounts(w io.Writer, counts []HostCount) error {
	bw := bufio.NewWriter(w)
	for _, c := range counts {
		if _, err := fmt.Fprintf(bw, "%s\t%d\n", c.Host, c.Count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

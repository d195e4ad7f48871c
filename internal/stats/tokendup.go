package stats

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/util"
)

// FindTokenDuplicates groups the archive's Tokens files that hold the same
// non-empty token sequence. Blank lines are not tokens. Groups have at
// least two members, sorted by name, and are ordered by their first member.
func FindTokenDuplicates(ctx context.Context, a archive.Archive) ([][]string, error) {
	dir := a.StageDir(archive.StageTokens)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stage directory %s: %w", archive.StageTokens.Dir(), util.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}

	bar := util.NewProgressBar(len(entries), "Hashing tokens")
	defer util.FinishProgress(bar)

	// Candidates share a hash; only the hash is held per file
	byHash := make(map[string][]string)
	var order []string
	empty := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		util.StepProgress(bar)
		if e.IsDir() {
			continue
		}

		tokens, err := readTokens(a.Path(archive.StageTokens, e.Name()))
		if err != nil {
			return nil, err
		}
		if len(tokens) == 0 {
			empty++
			continue
		}

		h := util.HashLines(tokens)
		if _, ok := byHash[h]; !ok {
			order = append(order, h)
		}
		byHash[h] = append(byHash[h], e.Name())
	}

	var groups [][]string
	for _, h := range order {
		names := byHash[h]
		if len(names) < 2 {
			continue
		}
		split, err := splitExact(a, names)
		if err != nil {
			return nil, err
		}
		groups = append(groups, split...)
	}

	for _, g := range groups {
		slices.Sort(g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })

	if empty > 0 {
		util.DebugLog("%d token files without tokens skipped", empty)
	}
	util.InfoLog("found %d groups of identical token files", len(groups))
	return groups, nil
}

// splitExact partitions files with equal hashes into groups whose token
// sequences are exactly equal, dropping singletons
func splitExact(a archive.Archive, names []string) ([][]string, error) {
	type bucket struct {
		tokens []string
		names  []string
	}
	var buckets []*bucket

	for _, name := range names {
		tokens, err := readTokens(a.Path(archive.StageTokens, name))
		if err != nil {
			return nil, err
		}
		var found *bucket
		for _, b := range buckets {
			if slices.Equal(b.tokens, tokens) {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{tokens: tokens}
			buckets = append(buckets, found)
		}
		found.names = append(found.names, name)
	}

	var groups [][]string
	for _, b := range buckets {
		if len(b.names) > 1 {
			groups = append(groups, b.names)
		}
	}
	return groups, nil
}

func readTokens(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var tokens []string
	lr := metafile.NewLineReader(f)
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return tokens, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if line != "" {
			tokens = append(tokens, line)
		}
	}
}

// WriteGroups writes one tab-separated line of filenames per group
func WriteGroups(w io.Writer, groups [][]string) error {
	bw := bufio.NewWriter(w)
	for _, g := range groups {
		if _, err := io.WriteString(bw, strings.Join(g, "\t")+"\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Package merge combines several crawl archives into one, keeping a single
// record per crawled URL unless the tokens of the duplicates differ.
package merge

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
)

// LogFile is the duplication log written into the destination
const LogFile = "merge-info.txt"

// CollisionError reports a retained filename claimed by two source archives
type CollisionError struct {
	Stage    archive.Stage
	Filename string
	First    string
	Second   string
}

func (e *CollisionError) Error() string {
	msg := fmt.Sprintf("%s filename %q is retained from both %s and %s", e.Stage, e.Filename, e.First, e.Second)
	if e.CopyGuard() {
		msg += fmt.Sprintf(" (%s names are checked in addition to original, extracted-text and pos-lemma names: one copy would overwrite the other)", e.Stage)
	}
	return msg
}

// CopyGuard reports whether the collision is in a store that is guarded only
// because merged copies would overwrite each other there
func (e *CollisionError) CopyGuard() bool {
	return e.Stage == archive.StageTokens || e.Stage == archive.StageParse
}

func (e *CollisionError) Unwrap() error {
	return util.ErrFilenameCollision
}

// Config holds merge configuration
type Config struct {
	Sources   []archive.Archive
	Shortlist archive.Set
	Column    archive.Column
	Dest      string

	VerifyMode  string            // "none", "size", "hash"
	BufferSize  int               // Buffer size for file copying (0 = use default)
	RetryConfig *util.RetryConfig // Retry configuration (nil = no retries)
	Events      *report.EventLogger
}

// Merger plans and writes a merge
type Merger struct {
	sources    []archive.Archive
	shortlist  archive.Set
	column     archive.Column
	dest       string
	verifyMode string
	bufferSize int
	retry      *util.RetryConfig
	events     *report.EventLogger
}

// Result summarizes a written merge
type Result struct {
	Plan *Plan

	URLRows     int
	FilesRows   int
	MatchRows   int
	FilesCopied int
	BytesCopied int64
	Duration    time.Duration
	LogPath     string
}

// New creates a Merger
func New(cfg *Config) *Merger {
	if cfg.VerifyMode == "" {
		cfg.VerifyMode = VerifySize
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 128 * 1024
	}
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = util.NoRetry()
	}
	if cfg.Shortlist == nil {
		cfg.Shortlist = archive.NewSet()
	}

	return &Merger{
		sources:    cfg.Sources,
		shortlist:  cfg.Shortlist,
		column:     cfg.Column,
		dest:       cfg.Dest,
		verifyMode: cfg.VerifyMode,
		bufferSize: cfg.BufferSize,
		retry:      cfg.RetryConfig,
		events:     cfg.Events,
	}
}

// Merge plans the merge and, when the plan holds, writes the destination.
// Nothing is written if planning fails or the destination is not empty.
func (m *Merger) Merge(ctx context.Context) (*Result, error) {
	start := time.Now()

	plan, err := m.Plan(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.prepareDest(); err != nil {
		return nil, err
	}
	dest := archive.Archive{Root: m.dest}

	result := &Result{Plan: plan}

	result.URLRows, err = m.writeFiltered(dest.URLsPath(), archive.URLsFile, archive.URLColumnFilename, plan.RetainedOriginals)
	if err != nil {
		return nil, err
	}
	result.FilesRows, err = m.writeFiltered(dest.FilesPath(), archive.FilesFile, archive.ColumnExtractedText.Index(), plan.RetainedTexts)
	if err != nil {
		return nil, err
	}
	result.MatchRows, err = m.writeFiltered(dest.MatchesPath(), archive.MatchesFile, archive.MatchColumnKey, plan.RetainedPosLemma)
	if err != nil {
		return nil, err
	}

	if err := m.copyArtifacts(ctx, plan, dest, result); err != nil {
		return nil, err
	}

	result.LogPath = filepath.Join(m.dest, LogFile)
	if err := writeLog(result.LogPath, plan.Log); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	util.SuccessLog("merged %d records into %s (%d files, %s) in %s",
		result.FilesRows, m.dest, result.FilesCopied, util.FormatBytes(result.BytesCopied),
		result.Duration.Round(time.Millisecond))

	return result, nil
}

// prepareDest creates the destination and its stage directories, refusing
// a destination that already holds anything
func (m *Merger) prepareDest() error {
	entries, err := os.ReadDir(m.dest)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to read destination: %w", err)
	}
	if len(entries) > 0 {
		return fmt.Errorf("%s: %w", m.dest, util.ErrDestinationNotEmpty)
	}

	dest := archive.Archive{Root: m.dest}
	for _, s := range guardStages {
		if err := util.RetryableMkdirAll(dest.StageDir(s), 0755, m.retry); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.Dir(), err)
		}
	}
	return nil
}

// writeFiltered concatenates, in source order, the lines of each source's
// metadata file whose key column is in that source's retained set
func (m *Merger) writeFiltered(destPath, name string, column int, keep []archive.Set) (int, error) {
	tempPath := destPath + ".part"
	out, err := util.RetryableCreate(tempPath, m.retry)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	w := bufio.NewWriterSize(out, 64*1024)
	written := 0
	for i, src := range m.sources {
		n, err := appendFiltered(w, filepath.Join(src.Root, name), column, keep[i])
		written += n
		if err != nil {
			out.Close()
			os.Remove(tempPath)
			return 0, err
		}
	}

	if err := w.Flush(); err != nil {
		out.Close()
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return 0, fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := util.RetryableRename(tempPath, destPath, m.retry); err != nil {
		return 0, fmt.Errorf("failed to rename %s: %w", name, err)
	}

	util.DebugLog("wrote %d rows to %s", written, destPath)
	return written, nil
}

func appendFiltered(w io.Writer, path string, column int, keep archive.Set) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lr := metafile.NewLineReader(f)
	n := 0
	for {
		line, err := lr.Next()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("failed to read %s: %w", path, err)
		}

		key, ok := archive.Field(metafile.Split(line), column)
		if !ok || !keep.Has(key) {
			continue
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return n, err
		}
		n++
	}
}

// copyArtifacts copies every retained record's stage files, plus its
// ParserInput file where the source has one
func (m *Merger) copyArtifacts(ctx context.Context, plan *Plan, dest archive.Archive, result *Result) error {
	type job struct {
		src  string
		dest string
	}

	var jobs []job
	queued := make(map[string]bool)
	for _, mem := range plan.Retained {
		src := m.sources[mem.Source]
		for _, s := range copyStages {
			name := mem.Record.Name(s)
			if name == "" {
				continue
			}
			srcPath := src.Path(s, name)
			if s == archive.StageParserInput && !sourceExists(srcPath) {
				continue
			}
			destPath := dest.Path(s, name)
			if queued[destPath] {
				continue
			}
			queued[destPath] = true
			jobs = append(jobs, job{src: srcPath, dest: destPath})
		}
	}

	bar := util.NewProgressBar(len(jobs), "Copying")
	defer util.FinishProgress(bar)

	for _, j := range jobs {
		start := time.Now()
		n, err := m.copyFile(ctx, j.src, j.dest)
		m.events.LogCopy(j.src, j.dest, n, time.Since(start), err)
		if err != nil {
			return fmt.Errorf("failed to copy %s: %w", j.src, err)
		}
		result.FilesCopied++
		result.BytesCopied += n
		util.StepProgress(bar)
	}

	return nil
}

// writeLog writes the duplication log: retained filename, reason, then the
// other filenames, tab-separated
func writeLog(path string, entries []LogEntry) error {
	var b strings.Builder
	for _, e := range entries {
		fields := append([]string{e.Retained, string(e.Reason)}, e.Others...)
		b.WriteString(strings.Join(fields, "\t"))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", LogFile, err)
	}
	return nil
}

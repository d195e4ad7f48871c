package prune

import (
	"errors"
	"fmt"
	"os"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
)

// ReconcileConfig configures an orphan sweep
type ReconcileConfig struct {
	Archive archive.Archive
	Actions Actions
	Events  *report.EventLogger
}

// ReconcileResult summarizes an orphan sweep
type ReconcileResult struct {
	DryRun bool

	StruckRecords    int
	MalformedRecords int
	URLRowsRemoved   int
	MatchRowsRemoved int
	FilesRemoved     map[archive.Stage]int

	// Kept is the number of distinct names kept per stage
	Kept map[archive.Stage]int
}

// TotalFilesRemoved sums FilesRemoved over all stages
func (r *ReconcileResult) TotalFilesRemoved() int {
	n := 0
	for _, c := range r.FilesRemoved {
		n += c
	}
	return n
}

// sweepStages pairs each swept directory with the keep-set it is checked
// against. ParserInput mirrors Parse.
var sweepStages = []struct {
	stage    archive.Stage
	keep     archive.Stage
	optional bool
}{
	{archive.StageOriginal, archive.StageOriginal, false},
	{archive.StageExtractedText, archive.StageExtractedText, false},
	{archive.StageTokens, archive.StageTokens, false},
	{archive.StagePosLemma, archive.StagePosLemma, false},
	{archive.StageParse, archive.StageParse, false},
	{archive.StageParserInput, archive.StageParse, true},
}

// Reconcile strikes every Files record that is not part of a complete
// chain (Url row with its original on disk, Match row, all four text
// files present), then drops Url and Match rows and stage files that no
// surviving record names.
func Reconcile(cfg ReconcileConfig) (*ReconcileResult, error) {
	a := cfg.Archive
	act := cfg.Actions

	result := &ReconcileResult{
		DryRun:       act.DryRun(),
		FilesRemoved: make(map[archive.Stage]int),
		Kept:         make(map[archive.Stage]int),
	}

	// Fail before any rewrite if a required directory is absent
	for _, sw := range sweepStages {
		if sw.optional {
			continue
		}
		if info, err := os.Stat(a.StageDir(sw.stage)); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("stage directory %s: %w", sw.stage.Dir(), util.ErrNotFound)
		}
	}

	// Originals with a Url row and a file behind it
	referenced := archive.NewSet()
	err := metafile.Each(a.URLsPath(), func(_ int, fields []string) error {
		name, ok := archive.Field(fields, archive.URLColumnFilename)
		if !ok || name == "" || referenced.Has(name) {
			return nil
		}
		if a.Ref(archive.StageOriginal, name).Exists() {
			referenced.Add(name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	matched, err := metafile.ReadColumn(a.MatchesPath(), archive.MatchColumnKey)
	if err != nil {
		return nil, err
	}

	keep := map[archive.Stage]archive.Set{
		archive.StageOriginal:      archive.NewSet(),
		archive.StageExtractedText: archive.NewSet(),
		archive.StageTokens:        archive.NewSet(),
		archive.StagePosLemma:      archive.NewSet(),
		archive.StageParse:         archive.NewSet(),
	}

	struck, err := act.FilterMetadata(a.FilesPath(), func(fields []string) (bool, error) {
		rec, err := archive.ParseFilesRecord(fields)
		if err != nil {
			result.MalformedRecords++
			util.WarnLog("striking malformed files record %q: %v", fields[0], err)
			cfg.Events.LogStrike(a.Root, fields[0], "malformed record")
			return true, nil
		}

		if reason := inconsistency(a, rec, referenced, matched); reason != "" {
			util.DebugLog("striking %s: %s", rec.Original, reason)
			cfg.Events.LogStrike(a.Root, rec.Original, reason)
			return true, nil
		}

		for s, set := range keep {
			set.Add(rec.Name(s))
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.FilesFile, err)
	}
	result.StruckRecords = struck

	result.URLRowsRemoved, err = act.FilterMetadata(a.URLsPath(), func(fields []string) (bool, error) {
		name, ok := archive.Field(fields, archive.URLColumnFilename)
		return !ok || !keep[archive.StageOriginal].Has(name), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.URLsFile, err)
	}

	result.MatchRowsRemoved, err = act.FilterMetadata(a.MatchesPath(), func(fields []string) (bool, error) {
		return !keep[archive.StagePosLemma].Has(fields[archive.MatchColumnKey]), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.MatchesFile, err)
	}

	for _, sw := range sweepStages {
		n, err := sweep(a, sw.stage, keep[sw.keep], sw.optional, act)
		if err != nil {
			return nil, err
		}
		result.FilesRemoved[sw.stage] = n
	}

	for s, set := range keep {
		result.Kept[s] = set.Len()
	}

	verb := "removed"
	if result.DryRun {
		verb = "would remove"
	}
	util.InfoLog("%s %d records (%d malformed), %d url rows, %d match rows, %d files",
		verb, result.StruckRecords, result.MalformedRecords,
		result.URLRowsRemoved, result.MatchRowsRemoved, result.TotalFilesRemoved())

	return result, nil
}

// inconsistency names the first broken link of rec's chain, or "" when the
// chain is complete
func inconsistency(a archive.Archive, rec archive.FilesRecord, referenced, matched archive.Set) string {
	if !referenced.Has(rec.Original) {
		return "original without url row or file"
	}
	if !matched.Has(rec.PosLemma) {
		return "pos-lemma without match row"
	}
	for _, s := range archive.TextStages {
		name := rec.Name(s)
		if name == "" || !a.Ref(s, name).Exists() {
			return "missing " + s.String() + " file"
		}
	}
	return ""
}

// sweep removes every file in a stage directory that keep does not name
func sweep(a archive.Archive, s archive.Stage, keep archive.Set, optional bool, act Actions) (int, error) {
	entries, err := os.ReadDir(a.StageDir(s))
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to list %s: %w", s.Dir(), err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			util.WarnLog("skipping directory %s in %s", e.Name(), s.Dir())
			continue
		}
		if keep.Has(e.Name()) {
			continue
		}

		ref := a.Ref(s, e.Name())
		ok, err := act.RemoveFile(ref)
		if err != nil {
			return removed, fmt.Errorf("failed to delete %s: %w", ref.RelPath(), err)
		}
		if ok {
			removed++
		}
	}

	return removed, nil
}

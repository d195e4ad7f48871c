package prune

import (
	"fmt"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
)

// derivedStages are the files a struck Files record takes with it
var derivedStages = []archive.Stage{
	archive.StageExtractedText,
	archive.StageTokens,
	archive.StagePosLemma,
	archive.StageParse,
	archive.StageParserInput,
}

// CascadeConfig configures a targeted delete
type CascadeConfig struct {
	Archive archive.Archive

	// Targets are matched against Column of each Files record
	Targets archive.Set
	Column  archive.Column

	Actions Actions
	Events  *report.EventLogger
}

// CascadeResult summarizes a targeted delete
type CascadeResult struct {
	DryRun bool

	StruckRecords    int
	URLRowsRemoved   int
	MatchRowsRemoved int
	FilesRemoved     map[archive.Stage]int

	// DeletedOriginals are originals no surviving record references
	DeletedOriginals []string
	DeletedPosLemma  []string

	// NotFound are targets no Files record matched, sorted
	NotFound []string
}

// TotalFilesRemoved sums FilesRemoved over all stages
func (r *CascadeResult) TotalFilesRemoved() int {
	n := 0
	for _, c := range r.FilesRemoved {
		n += c
	}
	return n
}

// Cascade strikes every Files record whose Column value is a target,
// removes the record's derived files and, once no surviving record still
// references it, its original. Url and Match rows of the removed originals
// and posLemma files are dropped last.
func Cascade(cfg CascadeConfig) (*CascadeResult, error) {
	a := cfg.Archive
	act := cfg.Actions

	result := &CascadeResult{
		DryRun:       act.DryRun(),
		FilesRemoved: make(map[archive.Stage]int),
	}

	matched := archive.NewSet()
	candidates := archive.NewSet()
	retain := archive.NewSet()
	deletedPosLemma := archive.NewSet()

	remove := func(ref archive.FileRef) error {
		removed, err := act.RemoveFile(ref)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", ref.RelPath(), err)
		}
		if removed {
			result.FilesRemoved[ref.Stage]++
		}
		return nil
	}

	struck, err := act.FilterMetadata(a.FilesPath(), func(fields []string) (bool, error) {
		rec, err := archive.ParseFilesRecord(fields)
		if err != nil {
			return false, err
		}

		key := rec.Value(cfg.Column)
		if !cfg.Targets.Has(key) {
			retain.Add(rec.Original)
			return false, nil
		}

		matched.Add(key)
		cfg.Events.LogStrike(a.Root, rec.Original, "listed by "+cfg.Column.String())
		for _, s := range derivedStages {
			if err := remove(a.Ref(s, rec.Name(s))); err != nil {
				return false, err
			}
		}
		candidates.Add(rec.Original)
		deletedPosLemma.Add(rec.PosLemma)
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.FilesFile, err)
	}
	result.StruckRecords = struck

	// An original shared with a surviving record stays
	candidates.Subtract(retain)
	result.DeletedOriginals = candidates.Sorted()
	for _, name := range result.DeletedOriginals {
		if err := remove(a.Ref(archive.StageOriginal, name)); err != nil {
			return nil, err
		}
	}
	result.DeletedPosLemma = deletedPosLemma.Sorted()

	result.URLRowsRemoved, err = act.FilterMetadata(a.URLsPath(), func(fields []string) (bool, error) {
		name, ok := archive.Field(fields, archive.URLColumnFilename)
		return ok && candidates.Has(name), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.URLsFile, err)
	}

	result.MatchRowsRemoved, err = act.FilterMetadata(a.MatchesPath(), func(fields []string) (bool, error) {
		return deletedPosLemma.Has(fields[archive.MatchColumnKey]), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to filter %s: %w", archive.MatchesFile, err)
	}

	notFound := archive.NewSet()
	for name := range cfg.Targets {
		if !matched.Has(name) {
			notFound.Add(name)
		}
	}
	result.NotFound = notFound.Sorted()

	verb := "deleted"
	if result.DryRun {
		verb = "would delete"
	}
	util.InfoLog("%s %d records, %d files (%d originals); dropped %d url rows, %d match rows",
		verb, result.StruckRecords, result.TotalFilesRemoved(), len(result.DeletedOriginals),
		result.URLRowsRemoved, result.MatchRowsRemoved)
	for _, name := range result.NotFound {
		util.WarnLog("not found, not deleted: %s", name)
	}

	return result, nil
}

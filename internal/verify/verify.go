// Package verify checks that a crawl archive's metadata files and stage
// directories agree with each other. It never modifies the archive.
package verify

import (
	"errors"
	"fmt"
	"os"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
)

// Check names
const (
	CheckURLsFiles    = "urls-files"
	CheckFilesMatches = "files-matches"
	CheckParserInput  = "parser-input"
	checkDirSuffix    = "-dir"
)

// files.txt columns read by the checks
const filesFields = 6

// Config selects the archive to check
type Config struct {
	Archive archive.Archive
	Events  *report.EventLogger
}

// Violation is a name present on one side of a check and missing on the other
type Violation struct {
	Check     string
	Item      string
	PresentIn string
	MissingIn string
}

// Result holds violations in check order, sorted by item within a check
type Result struct {
	Violations []Violation
	PerCheck   map[string]int
	Checks     []string
}

// Total is the number of violations found
func (r *Result) Total() int {
	return len(r.Violations)
}

func (r *Result) add(check string, vs []Violation) {
	r.Checks = append(r.Checks, check)
	r.PerCheck[check] = len(vs)
	r.Violations = append(r.Violations, vs...)
}

// Verify runs every check against the archive. Only I/O failures are
// returned as errors; inconsistencies are reported in the result.
func Verify(cfg Config) (*Result, error) {
	a := cfg.Archive
	result := &Result{PerCheck: make(map[string]int)}

	urlOriginals, err := metafile.ReadColumn(a.URLsPath(), archive.URLColumnFilename)
	if err != nil {
		return nil, err
	}

	// Columns are read leniently; a short record contributes what it has
	columns := make([]archive.Set, filesFields)
	for i := range columns {
		columns[i] = archive.NewSet()
	}
	err = metafile.Each(a.FilesPath(), func(_ int, fields []string) error {
		for i := 0; i < len(fields) && i < len(columns); i++ {
			columns[i].Add(fields[i])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	column := func(c archive.Column) archive.Set { return columns[c.Index()] }

	matchKeys, err := metafile.ReadColumn(a.MatchesPath(), archive.MatchColumnKey)
	if err != nil {
		return nil, err
	}

	result.add(CheckURLsFiles, compare(CheckURLsFiles,
		urlOriginals, archive.URLsFile,
		column(archive.ColumnOriginal), archive.FilesFile))

	result.add(CheckFilesMatches, compare(CheckFilesMatches,
		column(archive.ColumnPosLemma), archive.FilesFile,
		matchKeys, archive.MatchesFile))

	dirChecks := []struct {
		stage  archive.Stage
		column archive.Column
	}{
		{archive.StageOriginal, archive.ColumnOriginal},
		{archive.StageExtractedText, archive.ColumnExtractedText},
		{archive.StageTokens, archive.ColumnTokens},
		{archive.StagePosLemma, archive.ColumnPosLemma},
		{archive.StageParse, archive.ColumnParse},
	}
	for _, dc := range dirChecks {
		names, err := listDir(a, dc.stage)
		if err != nil {
			return nil, err
		}
		if names == nil {
			return nil, fmt.Errorf("stage directory %s: %w", dc.stage.Dir(), util.ErrNotFound)
		}
		check := dc.stage.String() + checkDirSuffix
		result.add(check, compare(check,
			column(dc.column), archive.FilesFile,
			names, dc.stage.Dir()))
	}

	// ParserInput may hold fewer files than Parse, never others
	inputs, err := listDir(a, archive.StageParserInput)
	if err != nil {
		return nil, err
	}
	if inputs != nil {
		vs := missing(CheckParserInput, inputs, archive.StageParserInput.Dir(),
			column(archive.ColumnParse), archive.FilesFile)
		result.add(CheckParserInput, vs)
	}

	for _, v := range result.Violations {
		util.WarnLog("%s: %s present in %s, missing in %s", v.Check, v.Item, v.PresentIn, v.MissingIn)
		cfg.Events.LogViolation(a.Root, v.Check, v.Item, v.PresentIn, v.MissingIn)
	}

	if result.Total() == 0 {
		util.SuccessLog("%s is consistent", a.Root)
	} else {
		util.WarnLog("%s: %d violations", a.Root, result.Total())
	}

	return result, nil
}

// compare reports names missing on either side, left-side gaps first
func compare(check string, left archive.Set, leftName string, right archive.Set, rightName string) []Violation {
	vs := missing(check, left, leftName, right, rightName)
	return append(vs, missing(check, right, rightName, left, leftName)...)
}

// missing reports names of have that lack is missing, sorted
func missing(check string, have archive.Set, haveName string, lack archive.Set, lackName string) []Violation {
	var vs []Violation
	for _, name := range have.Sorted() {
		if !lack.Has(name) {
			vs = append(vs, Violation{Check: check, Item: name, PresentIn: haveName, MissingIn: lackName})
		}
	}
	return vs
}

// listDir returns the entries of a stage, or nil when the directory does
// not exist. Subdirectories are listed too: no files record can name one.
func listDir(a archive.Archive, s archive.Stage) (archive.Set, error) {
	entries, err := os.ReadDir(a.StageDir(s))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.Dir(), err)
	}

	names := archive.NewSet()
	for _, e := range entries {
		if e.IsDir() {
			util.WarnLog("unexpected directory %s in %s", e.Name(), s.Dir())
		}
		names.Add(e.Name())
	}
	return names, nil
}

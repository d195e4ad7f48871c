package archive

import (
	"fmt"

	"github.com/franz/crawl-janitor/internal/util"
)

// files.txt field layout
const (
	filesOriginal      = 0
	filesMethod        = 1
	filesExtractedText = 2
	filesTokens        = 3
	filesPosLemma      = 4
	filesParse         = 5
	filesMinFields     = 6
)

// Key columns of urls.txt and matches.txt
const (
	URLColumnURL      = 0
	URLColumnFilename = 3
	MatchColumnKey    = 0
	MatchColumnPhrase = 1
	MatchColumnCount  = 2
)

// FilesRecord links an original document to the artifacts derived from one
// extraction of it
type FilesRecord struct {
	Original      string
	Method        string
	ExtractedText string
	Tokens        string
	PosLemma      string
	Parse         string
}

// ParseFilesRecord reads a split files.txt line
func ParseFilesRecord(fields []string) (FilesRecord, error) {
	if len(fields) < filesMinFields {
		return FilesRecord{}, fmt.Errorf("files record has %d fields, need %d: %w",
			len(fields), filesMinFields, util.ErrMalformedRecord)
	}
	return FilesRecord{
		Original:      fields[filesOriginal],
		Method:        fields[filesMethod],
		ExtractedText: fields[filesExtractedText],
		Tokens:        fields[filesTokens],
		PosLemma:      fields[filesPosLemma],
		Parse:         fields[filesParse],
	}, nil
}

// Value returns the filename held in a join column
func (r FilesRecord) Value(c Column) string {
	switch c {
	case ColumnExtractedText:
		return r.ExtractedText
	case ColumnTokens:
		return r.Tokens
	case ColumnPosLemma:
		return r.PosLemma
	case ColumnParse:
		return r.Parse
	}
	return r.Original
}

// Name returns the record's filename in a stage. ParserInput mirrors Parse.
func (r FilesRecord) Name(s Stage) string {
	switch s {
	case StageOriginal:
		return r.Original
	case StageExtractedText:
		return r.ExtractedText
	case StageTokens:
		return r.Tokens
	case StagePosLemma:
		return r.PosLemma
	case StageParse, StageParserInput:
		return r.Parse
	}
	return ""
}

// URLRecord is a urls.txt line reduced to its join fields
type URLRecord struct {
	URL      string
	Filename string
}

// ParseURLRecord reads a split urls.txt line
func ParseURLRecord(fields []string) (URLRecord, error) {
	if len(fields) <= URLColumnFilename {
		return URLRecord{}, fmt.Errorf("url record has %d fields, need %d: %w",
			len(fields), URLColumnFilename+1, util.ErrMalformedRecord)
	}
	return URLRecord{URL: fields[URLColumnURL], Filename: fields[URLColumnFilename]}, nil
}

// MatchRecord is a matches.txt line
type MatchRecord struct {
	PosLemma string
	Phrase   string
	Count    string
}

// ParseMatchRecord reads a split matches.txt line
func ParseMatchRecord(fields []string) (MatchRecord, error) {
	if len(fields) <= MatchColumnCount {
		return MatchRecord{}, fmt.Errorf("match record has %d fields, need %d: %w",
			len(fields), MatchColumnCount+1, util.ErrMalformedRecord)
	}
	return MatchRecord{
		PosLemma: fields[MatchColumnKey],
		Phrase:   fields[MatchColumnPhrase],
		Count:    fields[MatchColumnCount],
	}, nil
}

// Field returns fields[i], or "" and false when the line is too short
func Field(fields []string, i int) (string, bool) {
	if i < 0 || i >= len(fields) {
		return "", false
	}
	return fields[i], true
}

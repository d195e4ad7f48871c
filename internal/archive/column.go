package archive

import (
	"fmt"
	"strings"

	"github.com/franz/crawl-janitor/internal/util"
)

// Column is a join column of files.txt, used to match external filename
// lists against records
type Column int

const (
	ColumnOriginal Column = iota
	ColumnExtractedText
	ColumnTokens
	ColumnPosLemma
	ColumnParse
)

// columnTokenNames lists the accepted selector tokens in order
var columnTokenNames = []string{"original", "extracted-text", "tokens", "pos-lemma", "parse"}

// ParseColumn accepts a selector token or the stage directory name
func ParseColumn(token string) (Column, error) {
	switch token {
	case OriginalDir:
		return ColumnOriginal, nil
	case "extracted-text", ExtractedTextDir:
		return ColumnExtractedText, nil
	case "tokens", TokensDir:
		return ColumnTokens, nil
	case "pos-lemma", PosLemmaDir:
		return ColumnPosLemma, nil
	case "parse", ParseDir:
		return ColumnParse, nil
	}
	return 0, fmt.Errorf("invalid input column %q (want one of %s): %w",
		token, strings.Join(columnTokenNames, ", "), util.ErrInvalidConfig)
}

// Index is the 0-based field index in a files.txt line
func (c Column) Index() int {
	switch c {
	case ColumnOriginal:
		return filesOriginal
	case ColumnExtractedText:
		return filesExtractedText
	case ColumnTokens:
		return filesTokens
	case ColumnPosLemma:
		return filesPosLemma
	case ColumnParse:
		return filesParse
	}
	return -1
}

// Stage is the store whose filenames the column holds
func (c Column) Stage() Stage {
	switch c {
	case ColumnExtractedText:
		return StageExtractedText
	case ColumnTokens:
		return StageTokens
	case ColumnPosLemma:
		return StagePosLemma
	case ColumnParse:
		return StageParse
	}
	return StageOriginal
}

func (c Column) String() string {
	return c.Stage().String()
}

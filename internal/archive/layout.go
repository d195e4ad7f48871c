package archive

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/franz/crawl-janitor/internal/util"
)

// Fixed names inside a crawl archive
const (
	OriginalDir      = "original"
	TextDir          = "txt"
	ExtractedTextDir = "01_Originale"
	TokensDir        = "02_Tokenisierung"
	PosLemmaDir      = "03_POS_Lemma"
	ParserInputDir   = "03a_ParserInput"
	ParseDir         = "04_Parse"

	URLsFile    = "urls.txt"
	FilesFile   = "files.txt"
	MatchesFile = "matches.txt"

	// ProcessedURLsDir holds the crawler's processed URL lists
	ProcessedURLsDir = "meta/processedurls"
)

// Stage identifies one store of an archive
type Stage int

const (
	StageOriginal Stage = iota
	StageExtractedText
	StageTokens
	StagePosLemma
	StageParse
	StageParserInput
)

// TextStages are the four tracked text stages in pipeline order
var TextStages = []Stage{StageExtractedText, StageTokens, StagePosLemma, StageParse}

// Dir returns the stage directory relative to the archive root
func (s Stage) Dir() string {
	switch s {
	case StageOriginal:
		return OriginalDir
	case StageExtractedText:
		return filepath.Join(TextDir, ExtractedTextDir)
	case StageTokens:
		return filepath.Join(TextDir, TokensDir)
	case StagePosLemma:
		return filepath.Join(TextDir, PosLemmaDir)
	case StageParse:
		return filepath.Join(TextDir, ParseDir)
	case StageParserInput:
		return filepath.Join(TextDir, ParserInputDir)
	}
	return ""
}

func (s Stage) String() string {
	switch s {
	case StageOriginal:
		return "original"
	case StageExtractedText:
		return "extracted-text"
	case StageTokens:
		return "tokens"
	case StagePosLemma:
		return "pos-lemma"
	case StageParse:
		return "parse"
	case StageParserInput:
		return "parser-input"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Archive is a crawl output directory. It holds no state beyond its root.
type Archive struct {
	Root string
}

// Open resolves root to an absolute path and checks that it is a directory
func Open(root string) (Archive, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Archive{}, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Archive{}, fmt.Errorf("archive %s: %w", abs, util.ErrNotFound)
		}
		return Archive{}, fmt.Errorf("failed to access archive: %w", err)
	}
	if !info.IsDir() {
		return Archive{}, fmt.Errorf("archive %s is not a directory: %w", abs, util.ErrInvalidConfig)
	}
	return Archive{Root: filepath.Clean(abs)}, nil
}

// StageDir returns the absolute directory of a stage
func (a Archive) StageDir(s Stage) string {
	return filepath.Join(a.Root, s.Dir())
}

// Path returns the absolute path of name within a stage
func (a Archive) Path(s Stage, name string) string {
	return filepath.Join(a.Root, s.Dir(), name)
}

// Ref builds a FileRef for name within a stage
func (a Archive) Ref(s Stage, name string) FileRef {
	return FileRef{Archive: a.Root, Stage: s, Name: name}
}

func (a Archive) URLsPath() string    { return filepath.Join(a.Root, URLsFile) }
func (a Archive) FilesPath() string   { return filepath.Join(a.Root, FilesFile) }
func (a Archive) MatchesPath() string { return filepath.Join(a.Root, MatchesFile) }

// ProcessedURLsDir is where the crawler leaves its processed URL lists
func (a Archive) ProcessedURLsDir() string {
	return filepath.Join(a.Root, ProcessedURLsDir)
}

// Rel returns path relative to the archive root, for log output
func (a Archive) Rel(path string) string {
	rel, err := filepath.Rel(a.Root, path)
	if err != nil {
		return path
	}
	return rel
}

// FileRef names one artifact file. The path is only joined when needed,
// so records never hold a back-reference to their archive.
type FileRef struct {
	Archive string
	Stage   Stage
	Name    string
}

// Path joins the reference into an absolute path
func (r FileRef) Path() string {
	return filepath.Join(r.Archive, r.Stage.Dir(), r.Name)
}

// RelPath is the path relative to the archive root
func (r FileRef) RelPath() string {
	return filepath.Join(r.Stage.Dir(), r.Name)
}

// Exists reports whether the referenced file is present, without following
// a final symlink
func (r FileRef) Exists() bool {
	_, err := os.Lstat(r.Path())
	return err == nil
}

// Package archivetest builds small crawl archives on disk for tests.
package archivetest

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/crawl-janitor/internal/archive"
)

// Doc is one crawled document. Empty names default to Stem plus a
// per-stage extension.
type Doc struct {
	Stem string
	URL  string

	Original      string
	ExtractedText string
	Tokens        string
	PosLemma      string
	Parse         string

	// TokenLines is the Tokens file content, one token per line.
	// Defaults to the stem split on "-".
	TokenLines []string

	// ParserInput also writes a ParserInput file named like the Parse file
	ParserInput bool

	// NoMatch leaves the document out of matches.txt
	NoMatch bool
}

func (d *Doc) fill() {
	if d.Original == "" {
		d.Original = d.Stem + ".html"
	}
	if d.ExtractedText == "" {
		d.ExtractedText = d.Stem + ".txt"
	}
	if d.Tokens == "" {
		d.Tokens = d.Stem + ".tok"
	}
	if d.PosLemma == "" {
		d.PosLemma = d.Stem + ".pos"
	}
	if d.Parse == "" {
		d.Parse = d.Stem + ".parse"
	}
	if d.URL == "" {
		d.URL = "http://example.org/" + d.Stem
	}
	if d.TokenLines == nil {
		d.TokenLines = strings.Split(d.Stem, "-")
	}
}

// FilesLine returns the files.txt line for d
func (d Doc) FilesLine() string {
	d.fill()
	return strings.Join([]string{d.Original, "html", d.ExtractedText, d.Tokens, d.PosLemma, d.Parse}, "\t")
}

// URLLine returns the urls.txt line for d
func (d Doc) URLLine() string {
	d.fill()
	return strings.Join([]string{d.URL, "200", "text/html", d.Original}, "\t")
}

// MatchLine returns the matches.txt line for d
func (d Doc) MatchLine() string {
	d.fill()
	return strings.Join([]string{d.PosLemma, "phrase " + d.Stem, "1"}, "\t")
}

// Builder writes documents into an archive rooted at a directory
type Builder struct {
	t       testing.TB
	Archive archive.Archive
}

// New creates the stage directories and empty metadata files under root
func New(t testing.TB, root string) *Builder {
	t.Helper()

	a := archive.Archive{Root: root}
	for _, s := range []archive.Stage{archive.StageOriginal, archive.StageExtractedText,
		archive.StageTokens, archive.StagePosLemma, archive.StageParse} {
		if err := os.MkdirAll(a.StageDir(s), 0755); err != nil {
			t.Fatalf("failed to create %s: %v", s, err)
		}
	}
	for _, p := range []string{a.URLsPath(), a.FilesPath(), a.MatchesPath()} {
		if err := os.WriteFile(p, nil, 0644); err != nil {
			t.Fatalf("failed to create %s: %v", p, err)
		}
	}

	return &Builder{t: t, Archive: a}
}

// Root returns the archive root
func (b *Builder) Root() string {
	return b.Archive.Root
}

// Add writes the document's files and appends its metadata rows
func (b *Builder) Add(docs ...Doc) *Builder {
	b.t.Helper()
	for _, d := range docs {
		d.fill()
		a := b.Archive

		b.WriteFile(archive.StageOriginal, d.Original, "<html>"+d.Stem+"</html>\n")
		b.WriteFile(archive.StageExtractedText, d.ExtractedText, d.Stem+"\n")
		b.WriteFile(archive.StageTokens, d.Tokens, strings.Join(d.TokenLines, "\n")+"\n")
		b.WriteFile(archive.StagePosLemma, d.PosLemma, d.Stem+"\tNN\n")
		b.WriteFile(archive.StageParse, d.Parse, "(S "+d.Stem+")\n")
		if d.ParserInput {
			b.WriteFile(archive.StageParserInput, d.Parse, d.Stem+"\n")
		}

		AppendLine(b.t, a.URLsPath(), d.URLLine())
		AppendLine(b.t, a.FilesPath(), d.FilesLine())
		if !d.NoMatch {
			AppendLine(b.t, a.MatchesPath(), d.MatchLine())
		}
	}
	return b
}

// WriteFile writes content to name in a stage, creating the directory
func (b *Builder) WriteFile(s archive.Stage, name, content string) {
	b.t.Helper()
	path := b.Archive.Path(s, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		b.t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		b.t.Fatalf("failed to write %s: %v", path, err)
	}
}

// Remove deletes name from a stage
func (b *Builder) Remove(s archive.Stage, name string) {
	b.t.Helper()
	if err := os.Remove(b.Archive.Path(s, name)); err != nil {
		b.t.Fatalf("failed to remove %s: %v", name, err)
	}
}

// AppendLine appends line plus a newline to path
func AppendLine(t testing.TB, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("failed to append to %s: %v", path, err)
	}
}

// ReadLines returns the lines of path without terminators
func ReadLines(t testing.TB, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return lines
}

// Names lists the regular files in a stage directory, sorted
func Names(t testing.TB, a archive.Archive, s archive.Stage) []string {
	t.Helper()
	entries, err := os.ReadDir(a.StageDir(s))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("failed to list %s: %v", s, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

// Exists reports whether name is present in a stage
func Exists(a archive.Archive, s archive.Stage, name string) bool {
	_, err := os.Lstat(a.Path(s, name))
	return err == nil
}

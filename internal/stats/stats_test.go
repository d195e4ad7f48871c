package stats

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/archive/archivetest"
	"github.com/franz/crawl-janitor/internal/util"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func TestHostOf(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://www.example.org/path", "www.example.org"},
		{"https://example.org?q=1", "example.org"},
		{"https://example.org#top", "example.org"},
		{"https://example.org", "example.org"},
		{"example.org/path", "example.org"},
		{"http://a.example.org:8080/x?y", "a.example.org:8080"},
	}

	for _, tt := range tests {
		if got := HostOf(tt.url); got != tt.want {
			t.Errorf("HostOf(%q): expected %q, got %q", tt.url, tt.want, got)
		}
	}
}

func TestCompareHosts(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"example.org", "example.org", 0},
		{"example.org", "www.example.org", -1},
		{"www.example.org", "example.org", 1},
		{"a.example.org", "b.example.org", -1},
		{"zzz.de", "aaa.org", -1},
		{"example.com", "example.org", -1},
	}

	for _, tt := range tests {
		if got := CompareHosts(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareHosts(%q, %q): expected %d, got %d", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestCountHosts(t *testing.T) {
	root := t.TempDir()
	a := archive.Archive{Root: root}
	writeFile(t, filepath.Join(a.ProcessedURLsDir(), "part1"),
		"http://www.example.org/a\nhttp://example.org/b\nhttp://zzz.de/\n\n")
	writeFile(t, filepath.Join(a.ProcessedURLsDir(), "part2"),
		"http://www.example.org/c\nhttp://aaa.example.org/d")
	if err := os.MkdirAll(filepath.Join(a.ProcessedURLsDir(), "sub"), 0755); err != nil {
		t.Fatalf("Failed to create subdirectory: %v", err)
	}

	counts, err := CountHosts(a)
	if err != nil {
		t.Fatalf("CountHosts failed: %v", err)
	}

	want := []HostCount{
		{"zzz.de", 1},
		{"example.org", 1},
		{"aaa.example.org", 1},
		{"www.example.org", 2},
	}
	if len(counts) != len(want) {
		t.Fatalf("Expected %v, got %v", want, counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("Entry %d: expected %v, got %v", i, want[i], counts[i])
		}
	}

	var buf bytes.Buffer
	if err := WriteHostCounts(&buf, counts[:1]); err != nil {
		t.Fatalf("WriteHostCounts failed: %v", err)
	}
	if buf.String() != "zzz.de\t1\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestCountHosts_MissingDirectory(t *testing.T) {
	_, err := CountHosts(archive.Archive{Root: t.TempDir()})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMatchStatistics(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "keyphrases.txt")
	matchPath := filepath.Join(dir, "matches.txt")

	writeFile(t, keyPath, "Grüne Energie\nwind\n\n")
	writeFile(t, matchPath, ""+
		"a.pos\tgrüne Energiewende\t3\n"+
		"b.pos\tGRÜNE ENERGIE\t2\n"+
		"c.pos\tWindkraft\t4\n"+
		"d.pos\tgrüne Energiewende\t1\n"+
		"e.pos\twind energy\tmany\n"+
		"f.pos\tshort\n")

	phrases, err := LoadKeyphrases(keyPath)
	if err != nil {
		t.Fatalf("LoadKeyphrases failed: %v", err)
	}
	if len(phrases) != 2 {
		t.Fatalf("Expected 2 keyphrases, got %d", len(phrases))
	}

	res, err := MatchStatistics(phrases, matchPath)
	if err != nil {
		t.Fatalf("MatchStatistics failed: %v", err)
	}

	if res.LinesRead != 6 || res.LinesSkipped != 2 {
		t.Errorf("Expected 6 lines read and 2 skipped, got %d and %d", res.LinesRead, res.LinesSkipped)
	}

	wantMatches := []Count{
		{"Windkraft", 4},
		{"grüne Energiewende", 4},
		{"GRÜNE ENERGIE", 2},
	}
	if len(res.Matches) != len(wantMatches) {
		t.Fatalf("Expected %v, got %v", wantMatches, res.Matches)
	}
	for i := range wantMatches {
		if res.Matches[i] != wantMatches[i] {
			t.Errorf("Match %d: expected %v, got %v", i, wantMatches[i], res.Matches[i])
		}
	}

	wantPhrases := []Count{
		{"Grüne Energie", 6},
		{"wind", 4},
	}
	if len(res.Keyphrases) != len(wantPhrases) {
		t.Fatalf("Expected %v, got %v", wantPhrases, res.Keyphrases)
	}
	for i := range wantPhrases {
		if res.Keyphrases[i] != wantPhrases[i] {
			t.Errorf("Keyphrase %d: expected %v, got %v", i, wantPhrases[i], res.Keyphrases[i])
		}
	}

	var buf bytes.Buffer
	if err := WriteCounts(&buf, res.Keyphrases); err != nil {
		t.Fatalf("WriteCounts failed: %v", err)
	}
	if buf.String() != "6\tGrüne Energie\n4\twind\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestFindTokenDuplicates(t *testing.T) {
	b := archivetest.New(t, t.TempDir())
	b.WriteFile(archive.StageTokens, "a.tok", "der\nHund\n")
	b.WriteFile(archive.StageTokens, "b.tok", "der\n\nHund")
	b.WriteFile(archive.StageTokens, "c.tok", "die\nKatze\n")
	b.WriteFile(archive.StageTokens, "d.tok", "der\nHund\n")
	b.WriteFile(archive.StageTokens, "e.tok", "\n\n")
	b.WriteFile(archive.StageTokens, "f.tok", "")
	b.WriteFile(archive.StageTokens, "g.tok", "die\r\nKatze\r\n")

	groups, err := FindTokenDuplicates(context.Background(), b.Archive)
	if err != nil {
		t.Fatalf("FindTokenDuplicates failed: %v", err)
	}

	want := [][]string{
		{"a.tok", "b.tok", "d.tok"},
		{"c.tok", "g.tok"},
	}
	if len(groups) != len(want) {
		t.Fatalf("Expected %v, got %v", want, groups)
	}
	for i := range want {
		if len(groups[i]) != len(want[i]) {
			t.Fatalf("Group %d: expected %v, got %v", i, want[i], groups[i])
		}
		for j := range want[i] {
			if groups[i][j] != want[i][j] {
				t.Errorf("Group %d: expected %v, got %v", i, want[i], groups[i])
			}
		}
	}

	var buf bytes.Buffer
	if err := WriteGroups(&buf, groups); err != nil {
		t.Fatalf("WriteGroups failed: %v", err)
	}
	if buf.String() != "a.tok\tb.tok\td.tok\nc.tok\tg.tok\n" {
		t.Errorf("Unexpected output %q", buf.String())
	}
}

func TestFindTokenDuplicates_MissingStage(t *testing.T) {
	_, err := FindTokenDuplicates(context.Background(), archive.Archive{Root: t.TempDir()})
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

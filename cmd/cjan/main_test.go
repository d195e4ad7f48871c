package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/archive/archivetest"
	"github.com/franz/crawl-janitor/internal/merge"
	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/franz/crawl-janitor/internal/verify"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every flag to its default so runs in one process
// don't see each other's flags
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// execute runs cjan with a journal in a temp dir and no event log
func execute(t *testing.T, journal string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(append(args, "--db", journal, "--events", "", "-q"))
	err := rootCmd.Execute()
	return out.String(), err
}

func newJournal(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "journal.db")
}

func newArchive(t *testing.T, docs ...archivetest.Doc) *archivetest.Builder {
	t.Helper()
	return archivetest.New(t, t.TempDir()).Add(docs...)
}

func writeList(t *testing.T, names ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "list.txt")
	if err := os.WriteFile(path, []byte(strings.Join(names, "\n")+"\n"), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}
	return path
}

func assertConsistent(t *testing.T, root string) {
	t.Helper()
	res, err := verify.Verify(verify.Config{Archive: archive.Archive{Root: root}})
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if res.Total() != 0 {
		t.Errorf("Expected consistent archive, got %+v", res.Violations)
	}
}

func lastRun(t *testing.T, journal string) (*store.Run, []store.Counter) {
	t.Helper()
	db, err := store.Open(journal)
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected a journaled run, got %d", len(runs))
	}
	counters, err := db.GetCounters(runs[0].ID)
	if err != nil {
		t.Fatalf("GetCounters failed: %v", err)
	}
	return runs[0], counters
}

func counter(counters []store.Counter, name string) int64 {
	for _, c := range counters {
		if c.Name == name {
			return c.Value
		}
	}
	return -1
}

func TestExitCode(t *testing.T) {
	collision := &merge.CollisionError{Stage: archive.StageOriginal, Filename: "x.html", First: "/a", Second: "/b"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"collision", collision, exitCollision},
		{"wrapped collision", fmt.Errorf("merge: %w", collision), exitCollision},
		{"not found", util.ErrNotFound, exitFailure},
		{"usage", util.ErrInvalidConfig, exitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("Expected exit %d, got %d", tt.want, got)
			}
		})
	}
}

func TestTrailingMock(t *testing.T) {
	args, mock := trailingMock([]string{"dir", "list", "mock"})
	if !mock || len(args) != 2 {
		t.Errorf("Expected mock with 2 args, got %v %v", mock, args)
	}

	args, mock = trailingMock([]string{"dir", "list", "tokens"})
	if mock || len(args) != 3 {
		t.Errorf("Expected no mock with 3 args, got %v %v", mock, args)
	}
}

func TestDeleteCommand(t *testing.T) {
	b := newArchive(t, archivetest.Doc{Stem: "a"}, archivetest.Doc{Stem: "b"})
	list := writeList(t, "a.tok", "missing.tok")
	journal := newJournal(t)

	// mock first: nothing changes
	if _, err := execute(t, journal, "delete", b.Root(), list, "tokens", "mock"); err != nil {
		t.Fatalf("mock delete failed: %v", err)
	}
	if !archivetest.Exists(b.Archive, archive.StageOriginal, "a.html") {
		t.Fatal("Expected mock run to leave a.html")
	}
	run, counters := lastRun(t, journal)
	if !run.DryRun {
		t.Error("Expected journaled mock run")
	}
	if counter(counters, "records_struck") != 1 {
		t.Errorf("Expected 1 record struck in mock run, got %d", counter(counters, "records_struck"))
	}

	if _, err := execute(t, journal, "delete", b.Root(), list, "tokens"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if archivetest.Exists(b.Archive, archive.StageOriginal, "a.html") {
		t.Error("Expected a.html to be deleted")
	}
	if !archivetest.Exists(b.Archive, archive.StageOriginal, "b.html") {
		t.Error("Expected b.html to be kept")
	}
	assertConsistent(t, b.Root())

	run, counters = lastRun(t, journal)
	if run.DryRun || run.Status != store.StatusOK {
		t.Errorf("Expected successful live run, got %+v", run)
	}
	if counter(counters, "not_found") != 1 {
		t.Errorf("Expected 1 name not found, got %d", counter(counters, "not_found"))
	}
}

func TestDeleteCommand_UsageErrors(t *testing.T) {
	b := newArchive(t, archivetest.Doc{Stem: "a"})
	list := writeList(t, "a.html")
	journal := newJournal(t)

	_, err := execute(t, journal, "delete", b.Root(), list, "03a_ParserInput")
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for bad column, got %v", err)
	}

	_, err = execute(t, journal, "delete", b.Root())
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for missing list, got %v", err)
	}
	if exitCode(err) != exitFailure {
		t.Errorf("Expected exit %d, got %d", exitFailure, exitCode(err))
	}
}

func TestDeleteOrphanedCommand(t *testing.T) {
	b := newArchive(t, archivetest.Doc{Stem: "a"}, archivetest.Doc{Stem: "b"})
	b.Remove(archive.StageTokens, "b.tok")
	journal := newJournal(t)

	if _, err := execute(t, journal, "delete-orphaned", b.Root(), "--mock"); err != nil {
		t.Fatalf("mock delete-orphaned failed: %v", err)
	}
	if !archivetest.Exists(b.Archive, archive.StageOriginal, "b.html") {
		t.Fatal("Expected mock run to leave b.html")
	}

	if _, err := execute(t, journal, "delete-orphaned", b.Root()); err != nil {
		t.Fatalf("delete-orphaned failed: %v", err)
	}
	if archivetest.Exists(b.Archive, archive.StageOriginal, "b.html") {
		t.Error("Expected orphaned b.html to be removed")
	}
	assertConsistent(t, b.Root())

	_, counters := lastRun(t, journal)
	if counter(counters, "records_struck") != 1 {
		t.Errorf("Expected 1 record struck, got %d", counter(counters, "records_struck"))
	}
}

func TestMergeCommand(t *testing.T) {
	first := newArchive(t, archivetest.Doc{Stem: "a"})
	second := newArchive(t, archivetest.Doc{Stem: "b"})
	shortlist := writeList(t)
	dest := filepath.Join(t.TempDir(), "merged")
	journal := newJournal(t)

	// the first archive named twice is merged once
	if _, err := execute(t, journal, "merge", shortlist, "original", dest,
		first.Root(), second.Root(), first.Root(), "--verify", "hash"); err != nil {
		t.Fatalf("merge failed: %v", err)
	}
	assertConsistent(t, dest)

	run, counters := lastRun(t, journal)
	if len(run.Archives) != 2 {
		t.Errorf("Expected 2 archives journaled, got %v", run.Archives)
	}
	if counter(counters, "files_copied") != 10 {
		t.Errorf("Expected 10 files copied, got %d", counter(counters, "files_copied"))
	}
}

func TestMergeCommand_Collision(t *testing.T) {
	first := newArchive(t, archivetest.Doc{Stem: "x", URL: "http://one.example/"})
	second := newArchive(t, archivetest.Doc{Stem: "x", URL: "http://two.example/"})
	dest := filepath.Join(t.TempDir(), "merged")

	_, err := execute(t, newJournal(t), "merge", writeList(t), "original", dest, first.Root(), second.Root())
	if exitCode(err) != exitCollision {
		t.Errorf("Expected exit %d, got %d (%v)", exitCollision, exitCode(err), err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("Expected no output on collision")
	}
}

func TestMergeCommand_NothingToDo(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "merged")

	if _, err := execute(t, newJournal(t), "merge", "unused-shortlist", "bogus", dest); err != nil {
		t.Fatalf("Expected no error without archives, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Error("Expected no destination to be created")
	}
}

func TestMergeCommand_InvalidVerifyMode(t *testing.T) {
	src := newArchive(t, archivetest.Doc{Stem: "a"})
	dest := filepath.Join(t.TempDir(), "merged")

	_, err := execute(t, newJournal(t), "merge", writeList(t), "original", dest, src.Root(), "--verify", "crc")
	if !errors.Is(err, util.ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestCheckCommand(t *testing.T) {
	b := newArchive(t, archivetest.Doc{Stem: "a"})
	b.WriteFile(archive.StageParse, "stray.parse", "x")
	journal := newJournal(t)

	if _, err := execute(t, journal, "check", b.Root()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	_, counters := lastRun(t, journal)
	if counter(counters, "parse-dir") != 1 {
		t.Errorf("Expected 1 parse-dir violation, got %d", counter(counters, "parse-dir"))
	}

	_, err := execute(t, journal, "check", b.Root(), "--strict")
	if !errors.Is(err, errInconsistent) {
		t.Errorf("Expected errInconsistent with --strict, got %v", err)
	}
	run, _ := lastRun(t, journal)
	if run.Status != store.StatusFailed {
		t.Errorf("Expected failed run, got %s", run.Status)
	}
}

func TestHistoryCommand(t *testing.T) {
	b := newArchive(t, archivetest.Doc{Stem: "a"})
	b.WriteFile(archive.StageOriginal, "stray.html", "x")
	journal := newJournal(t)

	if _, err := execute(t, journal, "check", b.Root()); err != nil {
		t.Fatalf("check failed: %v", err)
	}
	run, _ := lastRun(t, journal)

	out, err := execute(t, journal, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, run.ID[:8]) || !strings.Contains(out, "check") {
		t.Errorf("Expected run listed, got:\n%s", out)
	}

	reportPath := filepath.Join(t.TempDir(), "report.md")
	out, err = execute(t, journal, "history", run.ID[:8], "--report", reportPath)
	if err != nil {
		t.Fatalf("history RUN-ID failed: %v", err)
	}
	if !strings.Contains(out, "original-dir") {
		t.Errorf("Expected counters in output, got:\n%s", out)
	}

	md, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !strings.Contains(string(md), "stray.html") {
		t.Error("Expected violation in rebuilt report")
	}

	if _, err := execute(t, journal, "history", "nope"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown run, got %v", err)
	}

	if _, err := execute(t, journal, "history", run.ID, "--delete"); err != nil {
		t.Fatalf("history --delete failed: %v", err)
	}
	if _, err := execute(t, journal, "history", run.ID); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Expected deleted run to be gone, got %v", err)
	}
}

func TestStatsCommands(t *testing.T) {
	b := newArchive(t,
		archivetest.Doc{Stem: "a", TokenLines: []string{"same"}},
		archivetest.Doc{Stem: "b", TokenLines: []string{"same"}},
	)
	urls := filepath.Join(b.Archive.ProcessedURLsDir(), "urls-1")
	if err := os.MkdirAll(filepath.Dir(urls), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(urls, []byte("http://example.org/a\nhttp://example.org/b\n"), 0644); err != nil {
		t.Fatalf("Failed to write urls: %v", err)
	}
	out := t.TempDir()
	journal := newJournal(t)

	hostsOut := filepath.Join(out, "hosts.txt")
	if _, err := execute(t, journal, "hosts", b.Root(), hostsOut); err != nil {
		t.Fatalf("hosts failed: %v", err)
	}
	if got := archivetest.ReadLines(t, hostsOut); len(got) != 1 || got[0] != "example.org\t2" {
		t.Errorf("Unexpected hosts output %q", got)
	}

	dupOut := filepath.Join(out, "dups.txt")
	if _, err := execute(t, journal, "token-duplicates", b.Root(), dupOut); err != nil {
		t.Fatalf("token-duplicates failed: %v", err)
	}
	if got := archivetest.ReadLines(t, dupOut); len(got) != 1 || got[0] != "a.tok\tb.tok" {
		t.Errorf("Unexpected duplicates output %q", got)
	}

	keyphrases := writeList(t, "phrase")
	keyOut := filepath.Join(out, "keys.txt")
	matchOut := filepath.Join(out, "matches.txt")
	if _, err := execute(t, journal, "match-stats", keyphrases, b.Archive.MatchesPath(), keyOut, matchOut); err != nil {
		t.Fatalf("match-stats failed: %v", err)
	}
	// "phrase a" and "phrase b" have two words, the keyphrase one
	if got := archivetest.ReadLines(t, keyOut); len(got) != 0 {
		t.Errorf("Expected no keyphrase totals, got %q", got)
	}
	if got := archivetest.ReadLines(t, matchOut); len(got) != 2 || got[0] != "1\tphrase a" {
		t.Errorf("Unexpected match output %q", got)
	}
}

func TestWriteOutput_NoPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	err := writeOutput(path, func(w io.Writer) error {
		io.WriteString(w, "partial")
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected no output file")
	}
	if _, err := os.Stat(path + ".part"); !os.IsNotExist(err) {
		t.Error("Expected .part file removed")
	}
}

func TestNetworkMode_FlagOverride(t *testing.T) {
	resetFlags(rootCmd)
	defer resetFlags(rootCmd)
	dir := t.TempDir()

	if mode := networkMode(dir); mode.Explicit {
		t.Errorf("Expected detection without --network, got %+v", mode)
	}

	for _, value := range []string{"true", "false"} {
		rootCmd.PersistentFlags().Set("network", value)
		mode := networkMode(dir)
		if !mode.Explicit || mode.Enabled != (value == "true") {
			t.Errorf("Expected --network=%s to win, got %+v", value, mode)
		}
	}

	rootCmd.PersistentFlags().Set("network", "true")
	if got := retryConfig(networkMode(dir)).MaxAttempts; got < 2 {
		t.Errorf("Expected retries with --network, got %d attempts", got)
	}
	rootCmd.PersistentFlags().Set("network", "false")
	if got := retryConfig(networkMode(dir)).MaxAttempts; got != 1 {
		t.Errorf("Expected a single attempt with --network=false, got %d", got)
	}
}

package main

import (
	"fmt"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/prune"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete ARCHIVE LISTFILE [COLUMN] [mock]",
	Short: "Delete listed documents and everything derived from them",
	Long: `Delete every document named in LISTFILE (one filename per line) from an
archive, together with its extracted text, tokens, POS/lemma, parse and
parser input files and its rows in files.txt, urls.txt and matches.txt.

COLUMN selects which files.txt column the names are matched against:
original (default), extracted-text, tokens, pos-lemma or parse. The stage
directory names (01_Originale, 02_Tokenisierung, ...) are accepted too.

An original file shared with a record that is not deleted is kept.
Names matched by no record are reported as not found.

With --mock (or a trailing "mock") nothing is changed; every deletion
and dropped metadata line is reported instead.`,
	Args: usageArgs(2, 4),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().Bool("mock", false, "report what would be deleted without changing anything")
}

// newActions returns the archive actions for a live or mock run
func newActions(mock bool, events *report.EventLogger, retry *util.RetryConfig) prune.Actions {
	if mock {
		util.InfoLog("Mock run: nothing will be changed")
		return prune.NewMockActions(events)
	}
	live := prune.NewLiveActions(events)
	live.Retry = retry
	return live
}

func runDelete(cmd *cobra.Command, args []string) error {
	setupLogging()

	args, mock := trailingMock(args)
	if flagMock, _ := cmd.Flags().GetBool("mock"); flagMock {
		mock = true
	}
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("expected ARCHIVE LISTFILE [COLUMN]: %w", util.ErrInvalidConfig)
	}

	column := archive.ColumnOriginal
	if len(args) == 3 {
		c, err := archive.ParseColumn(args[2])
		if err != nil {
			return err
		}
		column = c
	}

	a, err := openArchive(args[0])
	if err != nil {
		return err
	}
	targets, err := archive.ReadNameList(args[1])
	if err != nil {
		return err
	}

	util.InfoLog("=== Delete ===")
	util.InfoLog("Archive: %s", a.Root)
	util.InfoLog("Names: %d, matched against %s", targets.Len(), column)

	s, err := startSession("delete", []string{a.Root}, mock)
	if err != nil {
		return err
	}

	result, err := prune.Cascade(prune.CascadeConfig{
		Archive: a,
		Targets: targets,
		Column:  column,
		Actions: newActions(mock, s.events, s.retry()),
		Events:  s.events,
	})
	if err == nil {
		recordCascade(s, a, result)
	}

	return s.finish(err)
}

func recordCascade(s *session, a archive.Archive, result *prune.CascadeResult) {
	s.count("records_struck", result.StruckRecords)
	s.count("files_removed", result.TotalFilesRemoved())
	s.count("originals_removed", len(result.DeletedOriginals))
	s.count("url_rows_removed", result.URLRowsRemoved)
	s.count("match_rows_removed", result.MatchRowsRemoved)
	s.count("not_found", len(result.NotFound))

	for _, name := range result.DeletedOriginals {
		s.add(&store.RunItem{
			Action:  store.ActionDelete,
			Archive: a.Root,
			Stage:   archive.StageOriginal.String(),
			Name:    name,
		})
	}
	for _, name := range result.DeletedPosLemma {
		s.add(&store.RunItem{
			Action:  store.ActionStrike,
			Archive: a.Root,
			Stage:   archive.StagePosLemma.String(),
			Name:    name,
		})
	}
	for _, name := range result.NotFound {
		s.add(&store.RunItem{Action: store.ActionNotFound, Archive: a.Root, Name: name})
	}
	s.report.NotFound = result.NotFound

	if result.DryRun {
		util.SuccessLog("Mock delete complete: %d records would be struck", result.StruckRecords)
	} else {
		util.SuccessLog("Delete complete: %d records struck, %d files removed",
			result.StruckRecords, result.TotalFilesRemoved())
	}
}

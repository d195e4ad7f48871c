package main

import (
	"fmt"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/prune"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
)

var orphansCmd = &cobra.Command{
	Use:   "delete-orphaned ARCHIVE [mock]",
	Short: "Remove records and files that are not part of a complete document",
	Long: `Strike every files.txt record whose chain is broken: no urls.txt row,
original file missing, no matches.txt row, or a text stage file missing.
Malformed records are struck too. Afterwards every urls.txt and matches.txt
row and every stage file no surviving record names is removed.

Running it twice in a row changes nothing the second time.

With --mock (or a trailing "mock") nothing is changed.`,
	Args: usageArgs(1, 2),
	RunE: runOrphans,
}

func init() {
	rootCmd.AddCommand(orphansCmd)

	orphansCmd.Flags().Bool("mock", false, "report what would be removed without changing anything")
}

func runOrphans(cmd *cobra.Command, args []string) error {
	setupLogging()

	args, mock := trailingMock(args)
	if flagMock, _ := cmd.Flags().GetBool("mock"); flagMock {
		mock = true
	}
	if len(args) != 1 {
		return fmt.Errorf("expected ARCHIVE: %w", util.ErrInvalidConfig)
	}

	a, err := openArchive(args[0])
	if err != nil {
		return err
	}

	util.InfoLog("=== Delete Orphaned ===")
	util.InfoLog("Archive: %s", a.Root)

	s, err := startSession("delete-orphaned", []string{a.Root}, mock)
	if err != nil {
		return err
	}

	result, err := prune.Reconcile(prune.ReconcileConfig{
		Archive: a,
		Actions: newActions(mock, s.events, s.retry()),
		Events:  s.events,
	})
	if err == nil {
		s.count("records_struck", result.StruckRecords)
		s.count("malformed_records", result.MalformedRecords)
		s.count("url_rows_removed", result.URLRowsRemoved)
		s.count("match_rows_removed", result.MatchRowsRemoved)
		s.count("files_removed", result.TotalFilesRemoved())
		s.count("records_kept", result.Kept[archive.StageExtractedText])

		for _, st := range []archive.Stage{archive.StageOriginal, archive.StageExtractedText,
			archive.StageTokens, archive.StagePosLemma, archive.StageParse, archive.StageParserInput} {
			if n := result.FilesRemoved[st]; n > 0 {
				util.InfoLog("  %s: %d files", st, n)
			}
		}
		util.SuccessLog("Orphan sweep complete")
	}

	return s.finish(err)
}

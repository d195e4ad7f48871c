package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/merge"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var mergeCmd = &cobra.Command{
	Use:   "merge SHORTLIST COLUMN OUTDIR [ARCHIVE...]",
	Short: "Merge archives into one, dropping duplicate crawls of a URL",
	Long: `Merge several archives into a new archive at OUTDIR.

Records are grouped by the URL their original was crawled from. Within a
group the record named in SHORTLIST (matched against COLUMN) is kept, or
else the one from the last archive. Records whose tokens differ from the
kept record are kept as well; the rest are dropped as duplicates.

Nothing is written if two archives would contribute a file with the same
name, or if OUTDIR exists and is not empty. A filename collision exits
with status 2.

The duplication log is written to OUTDIR/merge-info.txt.`,
	Args: usageArgs(3, -1),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().String("verify", "size", "Verification of copied files: none, size, hash")
	mergeCmd.Flags().Int("buffer-size", 0, "Copy buffer size in bytes (0 = default)")

	viper.BindPFlag("verify", mergeCmd.Flags().Lookup("verify"))
	viper.BindPFlag("buffer_size", mergeCmd.Flags().Lookup("buffer-size"))
}

// uniqueArchives opens each archive once, in first-mention order
func uniqueArchives(paths []string) ([]archive.Archive, error) {
	var out []archive.Archive
	seen := make(map[string]bool)
	for _, p := range paths {
		a, err := openArchive(p)
		if err != nil {
			return nil, err
		}
		if seen[a.Root] {
			util.WarnLog("Archive %s given more than once, merging it once", a.Root)
			continue
		}
		seen[a.Root] = true
		out = append(out, a)
	}
	return out, nil
}

func runMerge(cmd *cobra.Command, args []string) error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if len(args) == 3 {
		util.InfoLog("No archives given, nothing to do")
		return nil
	}

	column, err := archive.ParseColumn(args[1])
	if err != nil {
		return err
	}

	verifyMode := GetConfigString("verify", merge.VerifySize)
	if !merge.ValidVerifyMode(verifyMode) {
		return fmt.Errorf("invalid verify mode %q (want none, size or hash): %w", verifyMode, util.ErrInvalidConfig)
	}

	shortlist, err := archive.ReadNameList(args[0])
	if err != nil {
		return err
	}
	sources, err := uniqueArchives(args[3:])
	if err != nil {
		return err
	}
	dest, err := filepath.Abs(args[2])
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", args[2], err)
	}

	roots := make([]string, len(sources))
	for i, a := range sources {
		roots[i] = a.Root
	}

	util.InfoLog("=== Merge ===")
	for _, r := range roots {
		util.InfoLog("Source: %s", r)
	}
	util.InfoLog("Destination: %s", dest)
	util.InfoLog("Shortlist: %d names matched against %s", shortlist.Len(), column)
	util.InfoLog("Verification: %s", verifyMode)

	s, err := startSession("merge", roots, false, dest)
	if err != nil {
		return err
	}
	s.report.Destination = dest

	m := merge.New(&merge.Config{
		Sources:     sources,
		Shortlist:   shortlist,
		Column:      column,
		Dest:        dest,
		VerifyMode:  verifyMode,
		BufferSize:  GetConfigInt("buffer_size", 0),
		RetryConfig: s.retry(),
		Events:      s.events,
	})

	result, err := m.Merge(ctx)
	if err == nil {
		recordMerge(s, result)
	}

	return s.finish(err)
}

func recordMerge(s *session, result *merge.Result) {
	plan := result.Plan

	s.count("url_groups", len(plan.Groups))
	s.count("records_retained", len(plan.Retained))
	s.count("duplicates_discarded", plan.Discarded())
	s.count("files_without_url", plan.FilesWithoutURL)
	s.count("shortlist_conflicts", plan.ShortlistConflicts)
	s.count("files_copied", result.FilesCopied)
	s.report.BytesCopied = result.BytesCopied

	for _, mem := range plan.Retained {
		s.add(&store.RunItem{
			Action:  store.ActionRetain,
			Archive: plan.Sources[mem.Source].Root,
			Stage:   archive.StageOriginal.String(),
			Name:    mem.Record.Original,
		})
	}
	for _, g := range plan.Groups {
		for _, d := range g.Discarded {
			item := report.DiscardItem(plan.Sources[d.Source].Root, d.Record.Original,
				g.Retained.Record.Original, string(g.Reason))
			s.add(item)
		}
	}

	util.InfoLog("")
	util.SuccessLog("=== Merge Summary ===")
	util.InfoLog("URL groups: %d", len(plan.Groups))
	util.InfoLog("Records retained: %d", len(plan.Retained))
	util.InfoLog("Duplicates discarded: %d", plan.Discarded())
	if plan.FilesWithoutURL > 0 {
		util.WarnLog("Files without URL: %d", plan.FilesWithoutURL)
	}
	if plan.ShortlistConflicts > 0 {
		util.WarnLog("Shortlist conflicts: %d", plan.ShortlistConflicts)
	}
	util.InfoLog("Files copied: %d (%s)", result.FilesCopied, util.FormatBytes(result.BytesCopied))
	util.InfoLog("Duplication log: %s", result.LogPath)
	util.InfoLog("Total time: %s", formatDuration(result.Duration))
}

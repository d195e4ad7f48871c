package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/franz/crawl-janitor/internal/stats"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts ARCHIVE OUTFILE",
	Short: "Count processed URLs per host",
	Long: `Count the URLs in the crawler's processed URL lists (meta/processedurls)
per host and write "host<TAB>count" lines to OUTFILE, ordered so that the
hosts of one domain appear together.`,
	Args: usageArgs(2, 2),
	RunE: runHosts,
}

var matchStatsCmd = &cobra.Command{
	Use:   "match-stats KEYPHRASES MATCHES KEYOUT MATCHOUT",
	Short: "Total keyphrase match counts",
	Long: `Read a keyphrase list (one phrase per line) and a matches.txt, then write
two "count<TAB>key" files ordered by count: KEYOUT totals per keyphrase and
MATCHOUT totals per matched phrase.

A matched phrase counts for a keyphrase when both have the same number of
words and each matched word contains the corresponding keyphrase word,
ignoring case.`,
	Args: usageArgs(4, 4),
	RunE: runMatchStats,
}

var tokenDupCmd = &cobra.Command{
	Use:   "token-duplicates ARCHIVE OUTFILE",
	Short: "Find token files with identical token sequences",
	Long: `Group the archive's token files by their token sequence (blank lines are
ignored) and write one tab-separated line of filenames per group of two or
more identical files to OUTFILE. Files without tokens are skipped.`,
	Args: usageArgs(2, 2),
	RunE: runTokenDuplicates,
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(matchStatsCmd)
	rootCmd.AddCommand(tokenDupCmd)
}

// writeOutput writes an output file via a .part file renamed into place
func writeOutput(path string, write func(w io.Writer) error) error {
	tempPath := path + ".part"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	bw := bufio.NewWriter(f)
	err = write(bw)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename %s: %w", tempPath, err)
	}
	return nil
}

func runHosts(cmd *cobra.Command, args []string) error {
	setupLogging()

	a, err := openArchive(args[0])
	if err != nil {
		return err
	}

	counts, err := stats.CountHosts(a)
	if err != nil {
		return err
	}
	if err := writeOutput(args[1], func(w io.Writer) error {
		return stats.WriteHostCounts(w, counts)
	}); err != nil {
		return err
	}

	util.SuccessLog("Wrote %d hosts to %s", len(counts), args[1])
	return nil
}

func runMatchStats(cmd *cobra.Command, args []string) error {
	setupLogging()

	phrases, err := stats.LoadKeyphrases(args[0])
	if err != nil {
		return err
	}
	result, err := stats.MatchStatistics(phrases, args[1])
	if err != nil {
		return err
	}

	if err := writeOutput(args[2], func(w io.Writer) error {
		return stats.WriteCounts(w, result.Keyphrases)
	}); err != nil {
		return err
	}
	if err := writeOutput(args[3], func(w io.Writer) error {
		return stats.WriteCounts(w, result.Matches)
	}); err != nil {
		return err
	}

	if result.LinesSkipped > 0 {
		util.WarnLog("Skipped %d of %d match lines", result.LinesSkipped, result.LinesRead)
	}
	util.SuccessLog("Wrote %d keyphrase and %d match totals", len(result.Keyphrases), len(result.Matches))
	return nil
}

func runTokenDuplicates(cmd *cobra.Command, args []string) error {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := openArchive(args[0])
	if err != nil {
		return err
	}

	groups, err := stats.FindTokenDuplicates(ctx, a)
	if err != nil {
		return err
	}
	if err := writeOutput(args[1], func(w io.Writer) error {
		return stats.WriteGroups(w, groups)
	}); err != nil {
		return err
	}

	util.SuccessLog("Wrote %d duplicate groups to %s", len(groups), args[1])
	return nil
}

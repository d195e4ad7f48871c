package main

import (
	"errors"
	"fmt"

	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/franz/crawl-janitor/internal/verify"
	"github.com/spf13/cobra"
)

// errInconsistent is returned by check --strict when violations were found
var errInconsistent = errors.New("archive is inconsistent")

var checkCmd = &cobra.Command{
	Use:   "check ARCHIVE",
	Short: "Check that metadata files and stage directories agree",
	Long: `Compare an archive's urls.txt, files.txt and matches.txt with each other
and with the files in its stage directories. Every name present on one side
and missing on the other is reported. The archive is never modified.

Checks, in order:
- urls.txt originals vs files.txt originals
- files.txt POS/lemma names vs matches.txt
- each stage directory vs its files.txt column
- parser input files vs files.txt parse names

Use --strict to exit non-zero when violations are found.`,
	Args: usageArgs(1, 1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().Bool("strict", false, "exit non-zero when violations are found")
}

func runCheck(cmd *cobra.Command, args []string) error {
	setupLogging()
	strict, _ := cmd.Flags().GetBool("strict")

	a, err := openArchive(args[0])
	if err != nil {
		return err
	}

	util.InfoLog("=== Consistency Check ===")
	util.InfoLog("Archive: %s", a.Root)

	s, err := startSession("check", []string{a.Root}, false)
	if err != nil {
		return err
	}

	result, err := verify.Verify(verify.Config{Archive: a, Events: s.events})
	if err != nil {
		return s.finish(err)
	}

	for _, check := range result.Checks {
		s.count(check, result.PerCheck[check])
	}
	for _, v := range result.Violations {
		s.add(report.ViolationItem(a.Root, v.Check, v.Item, v.PresentIn, v.MissingIn))
		s.report.Violations = append(s.report.Violations, report.ViolationRow{
			Check:     v.Check,
			Item:      v.Item,
			PresentIn: v.PresentIn,
			MissingIn: v.MissingIn,
		})
	}

	if strict && result.Total() > 0 {
		return s.finish(fmt.Errorf("%s: %d violations: %w", a.Root, result.Total(), errInconsistent))
	}
	return s.finish(nil)
}

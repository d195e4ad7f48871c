package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [RUN-ID]",
	Short: "List journaled runs or show one run",
	Long: `Without arguments, list the most recent runs recorded in the journal.

With a run id (or a unique prefix of one), print that run's counters and,
if --report is set, rebuild its Markdown summary. With --delete, remove the
run and everything journaled for it instead.`,
	Args: usageArgs(0, 1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().Int("limit", 20, "Number of runs to list")
	historyCmd.Flags().Bool("delete", false, "Delete the given run from the journal")
}

func runHistory(cmd *cobra.Command, args []string) error {
	setupLogging()

	dbPath := GetConfigString("db", "")
	if dbPath == "" {
		return fmt.Errorf("history needs a journal (--db): %w", util.ErrInvalidConfig)
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer db.Close()

	if len(args) == 0 {
		limit, _ := cmd.Flags().GetInt("limit")
		return listRuns(cmd, db, limit)
	}

	if del, _ := cmd.Flags().GetBool("delete"); del {
		return deleteRun(db, args[0])
	}

	r, err := report.GenerateRunReport(db, args[0])
	if err != nil {
		return err
	}
	r.DatabasePath = dbPath

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", r.RunID)
	fmt.Fprintf(out, "Command:  %s\n", r.Command)
	fmt.Fprintf(out, "Status:   %s\n", r.Status)
	if r.DryRun {
		fmt.Fprintf(out, "Mode:     mock\n")
	}
	for _, a := range r.Archives {
		fmt.Fprintf(out, "Archive:  %s\n", a)
	}
	fmt.Fprintf(out, "Duration: %s\n", formatDuration(r.Duration))
	if r.Error != "" {
		fmt.Fprintf(out, "Error:    %s\n", r.Error)
	}
	for _, c := range r.Counters {
		fmt.Fprintf(out, "  %-24s %d\n", c.Name, c.Value)
	}
	if r.BytesCopied > 0 {
		fmt.Fprintf(out, "  %-24s %s\n", "bytes_copied", util.FormatBytes(r.BytesCopied))
	}

	if path := GetConfigString("report", ""); path != "" {
		if err := report.WriteMarkdownReport(r, path); err != nil {
			return err
		}
		util.SuccessLog("Summary report saved to: %s", path)
	}
	return nil
}

func listRuns(cmd *cobra.Command, db *store.Store, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		util.InfoLog("No runs journaled yet")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s  %-19s  %-16s  %-7s  %s\n", "RUN", "STARTED", "COMMAND", "STATUS", "ARCHIVES")
	for _, r := range runs {
		command := r.Command
		if r.DryRun {
			command += " (mock)"
		}
		fmt.Fprintf(out, "%-8s  %-19s  %-16s  %-7s  %s\n",
			shortID(r.ID), r.StartedAt.Format(time.DateTime), command, r.Status, strings.Join(r.Archives, ", "))
	}
	return nil
}

func deleteRun(db *store.Store, id string) error {
	run, err := db.GetRun(id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %s: %w", id, util.ErrNotFound)
	}
	if err := db.DeleteRun(run.ID); err != nil {
		return err
	}
	util.SuccessLog("Deleted run %s (%s)", shortID(run.ID), run.Command)
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

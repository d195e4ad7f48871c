package report

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
)

// RunReport is a summary of a single command run
type RunReport struct {
	Command     string
	RunID       string
	Status      string
	Error       string
	GeneratedAt time.Time
	Duration    time.Duration
	DryRun      bool

	Archives    []string
	Destination string

	// Counters in insertion order
	Counters []store.Counter

	BytesCopied int64

	// Details
	Duplicates []DuplicateGroup
	Violations []ViolationRow
	NotFound   []string
	TopErrors  []ErrorSummary

	DatabasePath string
	EventLogPath string
}

// ErrorSummary represents an error with its count
type ErrorSummary struct {
	Error string
	Count int
}

// DuplicateGroup is one URL group resolved by a merge
type DuplicateGroup struct {
	Retained  string
	Reason    string
	Discarded []string
}

// ViolationRow is one consistency violation
type ViolationRow struct {
	Check     string
	Item      string
	PresentIn string
	MissingIn string
}

// NewRunReport starts a report for command
func NewRunReport(command string) *RunReport {
	return &RunReport{
		Command:     command,
		GeneratedAt: time.Now(),
	}
}

// Count sets a named counter, keeping first-set order
func (r *RunReport) Count(name string, value int64) {
	for i := range r.Counters {
		if r.Counters[i].Name == name {
			r.Counters[i].Value = value
			return
		}
	}
	r.Counters = append(r.Counters, store.Counter{Name: name, Value: value})
}

// AddError records an error message, folding repeats into a count
func (r *RunReport) AddError(err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	for i := range r.TopErrors {
		if r.TopErrors[i].Error == msg {
			r.TopErrors[i].Count++
			return
		}
	}
	r.TopErrors = append(r.TopErrors, ErrorSummary{Error: msg, Count: 1})
}

// GenerateRunReport rebuilds a report for a journaled run
func GenerateRunReport(db *store.Store, runID string) (*RunReport, error) {
	run, err := db.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s: %w", runID, util.ErrNotFound)
	}

	report := &RunReport{
		Command:     run.Command,
		RunID:       run.ID,
		Status:      run.Status,
		Error:       run.Error,
		GeneratedAt: time.Now(),
		Duration:    run.Duration(),
		DryRun:      run.DryRun,
		Archives:    run.Archives,
	}
	if report.Error != "" {
		report.TopErrors = append(report.TopErrors, ErrorSummary{Error: report.Error, Count: 1})
	}

	counters, err := db.GetCounters(run.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range counters {
		if c.Name == "bytes_copied" {
			report.BytesCopied = c.Value
			continue
		}
		report.Counters = append(report.Counters, c)
	}

	items, err := db.GetRunItems(run.ID, "")
	if err != nil {
		return nil, err
	}
	report.Duplicates = gatherDuplicates(items)
	for _, item := range items {
		switch item.Action {
		case store.ActionNotFound:
			report.NotFound = append(report.NotFound, item.Name)
		case store.ActionViolation:
			report.Violations = append(report.Violations, parseViolation(item))
		}
	}

	return report, nil
}

// gatherDuplicates groups discard items by the original they lost to
func gatherDuplicates(items []*store.RunItem) []DuplicateGroup {
	byRetained := make(map[string]*DuplicateGroup)
	var order []string

	for _, item := range items {
		if item.Action != store.ActionDiscard {
			continue
		}
		// discard detail is "<retained>\t<reason>"
		retained, reason, _ := strings.Cut(item.Detail, "\t")
		g, ok := byRetained[retained]
		if !ok {
			g = &DuplicateGroup{Retained: retained, Reason: reason}
			byRetained[retained] = g
			order = append(order, retained)
		}
		g.Discarded = append(g.Discarded, item.Name)
	}

	groups := make([]DuplicateGroup, 0, len(order))
	for _, name := range order {
		groups = append(groups, *byRetained[name])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Discarded) > len(groups[j].Discarded)
	})
	return groups
}

// DiscardItem builds the journal item for an original dropped in favour of retained
func DiscardItem(archiveRoot, name, retained, reason string) *store.RunItem {
	return &store.RunItem{
		Action:  store.ActionDiscard,
		Archive: archiveRoot,
		Stage:   "original",
		Name:    name,
		Detail:  retained + "\t" + reason,
	}
}

// ViolationItem builds the journal item for a consistency violation
func ViolationItem(archiveRoot, check, item, presentIn, missingIn string) *store.RunItem {
	return &store.RunItem{
		Action:  store.ActionViolation,
		Archive: archiveRoot,
		Name:    item,
		Detail:  check + "\t" + presentIn + "\t" + missingIn,
	}
}

func parseViolation(item *store.RunItem) ViolationRow {
	parts := strings.SplitN(item.Detail, "\t", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}
	return ViolationRow{
		Check:     parts[0],
		Item:      item.Name,
		PresentIn: parts[1],
		MissingIn: parts[2],
	}
}

// WriteMarkdownReport writes the run report as Markdown
func WriteMarkdownReport(report *RunReport, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var md strings.Builder

	md.WriteString(fmt.Sprintf("# Crawl Janitor - %s\n\n", report.Command))
	md.WriteString(fmt.Sprintf("**Generated:** %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05")))

	if report.RunID != "" {
		md.WriteString(fmt.Sprintf("**Run:** `%s`\n\n", report.RunID))
	}
	if report.DatabasePath != "" {
		md.WriteString(fmt.Sprintf("**Database:** `%s`\n\n", report.DatabasePath))
	}
	if report.EventLogPath != "" {
		md.WriteString(fmt.Sprintf("**Event Log:** `%s`\n\n", report.EventLogPath))
	}

	md.WriteString("---\n\n")

	// Overview
	md.WriteString("## Overview\n\n")
	md.WriteString("| Metric | Value |\n")
	md.WriteString("|--------|-------|\n")
	if report.Status != "" {
		md.WriteString(fmt.Sprintf("| Status | %s |\n", report.Status))
	}
	if report.DryRun {
		md.WriteString("| Mode | mock (nothing written) |\n")
	}
	for _, a := range report.Archives {
		md.WriteString(fmt.Sprintf("| Archive | `%s` |\n", a))
	}
	if report.Destination != "" {
		md.WriteString(fmt.Sprintf("| Destination | `%s` |\n", report.Destination))
	}
	for _, c := range report.Counters {
		md.WriteString(fmt.Sprintf("| %s | %d |\n", counterLabel(c.Name), c.Value))
	}
	if report.BytesCopied > 0 {
		md.WriteString(fmt.Sprintf("| Bytes Copied | %s |\n", util.FormatBytes(report.BytesCopied)))
	}
	if report.Duration > 0 {
		md.WriteString(fmt.Sprintf("| Duration | %s |\n", report.Duration.Round(time.Millisecond)))
	}
	md.WriteString("\n")

	if len(report.Duplicates) > 0 {
		limit := len(report.Duplicates)
		if limit > 20 {
			limit = 20
		}
		md.WriteString(fmt.Sprintf("## Duplicate Groups (%d of %d)\n\n", limit, len(report.Duplicates)))

		for i, g := range report.Duplicates[:limit] {
			md.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, g.Retained))
			md.WriteString(fmt.Sprintf("**Kept** (%s), **discarded** %d:\n\n", g.Reason, len(g.Discarded)))
			for _, d := range g.Discarded {
				md.WriteString(fmt.Sprintf("- `%s`\n", truncatePath(d, 80)))
			}
			md.WriteString("\n")
		}
	}

	if len(report.Violations) > 0 {
		md.WriteString("## Violations\n\n")
		md.WriteString("| Check | Item | Present In | Missing In |\n")
		md.WriteString("|-------|------|------------|------------|\n")
		for _, v := range report.Violations {
			md.WriteString(fmt.Sprintf("| %s | `%s` | %s | %s |\n",
				v.Check, truncatePath(v.Item, 60), v.PresentIn, v.MissingIn))
		}
		md.WriteString("\n")
	}

	if len(report.NotFound) > 0 {
		md.WriteString("## Not Found\n\n")
		md.WriteString("*Listed for deletion but matched by no Files record*\n\n")
		for _, name := range report.NotFound {
			md.WriteString(fmt.Sprintf("- `%s`\n", name))
		}
		md.WriteString("\n")
	}

	if len(report.TopErrors) > 0 {
		errs := append([]ErrorSummary(nil), report.TopErrors...)
		sort.SliceStable(errs, func(i, j int) bool {
			return errs[i].Count > errs[j].Count
		})
		if len(errs) > 10 {
			errs = errs[:10]
		}

		md.WriteString("## Top Errors\n\n")
		md.WriteString("| Count | Error |\n")
		md.WriteString("|-------|-------|\n")
		for _, e := range errs {
			md.WriteString(fmt.Sprintf("| %d | %s |\n", e.Count, e.Error))
		}
		md.WriteString("\n")
	}

	md.WriteString("---\n\n")
	md.WriteString("*Generated by cjan - Crawl Janitor*\n")

	if err := os.WriteFile(outputPath, []byte(md.String()), 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

// counterLabel turns "records_struck" into "Records Struck"
func counterLabel(name string) string {
	words := strings.Split(name, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// truncatePath truncates a file path to a maximum length
func truncatePath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	// Truncate from the middle, keeping start and end
	start := maxLen/2 - 2
	end := len(path) - (maxLen/2 - 2)
	return path[:start] + "..." + path[end:]
}

package main

import (
	"fmt"
	"time"

	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/store"
	"github.com/franz/crawl-janitor/internal/util"
)

// session is the bookkeeping shared by the archive commands: the event
// log, the run journal and the summary report
type session struct {
	started time.Time
	events  *report.EventLogger
	db      *store.Store
	run     *store.Run
	report  *report.RunReport
	items   []*store.RunItem
	network *util.NetworkMode
}

// startSession opens the event log and, unless disabled, journals the
// start of a run. Network mode is detected from the archives, any other
// paths the run writes to and the journal.
func startSession(command string, archives []string, dryRun bool, paths ...string) (*session, error) {
	s := &session{
		started: time.Now(),
		report:  report.NewRunReport(command),
	}
	s.report.Archives = archives
	s.report.DryRun = dryRun

	s.events = openEventLog()
	s.report.EventLogPath = s.events.Path()

	dbPath := GetConfigString("db", "")
	s.network = networkMode(append(append(append([]string{}, archives...), paths...), dbPath)...)
	util.DebugLog("File handling: %s", s.network)
	if dbPath == "" {
		return s, nil
	}

	db, err := store.OpenWithOptions(dbPath, &store.OpenOptions{NetworkOptimized: s.network.Enabled})
	if err != nil {
		s.events.Close()
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	run, err := db.BeginRun(command, archives, dryRun)
	if err != nil {
		db.Close()
		s.events.Close()
		return nil, err
	}

	s.db = db
	s.run = run
	s.report.RunID = run.ID
	s.report.DatabasePath = dbPath
	util.DebugLog("Run %s journaled in %s", run.ID, dbPath)
	return s, nil
}

// retry is the retry policy for the run's file operations
func (s *session) retry() *util.RetryConfig {
	return retryConfig(s.network)
}

func (s *session) count(name string, value int) {
	s.report.Count(name, int64(value))
}

func (s *session) add(items ...*store.RunItem) {
	s.items = append(s.items, items...)
}

// finish journals the outcome, writes the report if one was requested and
// closes the session. runErr is returned unchanged; a journal failure is
// returned only when the run itself succeeded.
func (s *session) finish(runErr error) error {
	defer s.events.Close()

	s.report.Duration = time.Since(s.started)
	s.report.Status = store.StatusOK
	if runErr != nil {
		s.report.Status = store.StatusFailed
		s.report.Error = runErr.Error()
		s.report.AddError(runErr)
		s.events.LogError(report.EventError, "", runErr)
	}

	var journalErr error
	if s.db != nil {
		journalErr = s.journal(runErr)
		s.db.Close()
		if journalErr != nil {
			util.WarnLog("Failed to journal run %s: %v", s.run.ID, journalErr)
		}
	}

	if path := GetConfigString("report", ""); path != "" {
		if err := report.WriteMarkdownReport(s.report, path); err != nil {
			util.WarnLog("Failed to write summary report: %v", err)
		} else {
			util.SuccessLog("Summary report saved to: %s", path)
		}
	}

	if runErr != nil {
		return runErr
	}
	return journalErr
}

func (s *session) journal(runErr error) error {
	counters := append([]store.Counter(nil), s.report.Counters...)
	if s.report.BytesCopied > 0 {
		counters = append(counters, store.Counter{Name: "bytes_copied", Value: s.report.BytesCopied})
	}

	if err := s.db.AddItems(s.run.ID, s.items); err != nil {
		return err
	}
	if err := s.db.SetCounters(s.run.ID, counters); err != nil {
		return err
	}
	return s.db.FinishRun(s.run, runErr)
}

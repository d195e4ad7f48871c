// Package prune removes records and files from a crawl archive: either a
// caller-listed set of documents with everything derived from them, or
// whatever no longer forms a consistent chain.
package prune

import (
	"os"

	"github.com/franz/crawl-janitor/internal/archive"
	"github.com/franz/crawl-janitor/internal/metafile"
	"github.com/franz/crawl-janitor/internal/report"
	"github.com/franz/crawl-janitor/internal/util"
)

// Actions carries out the deletions an engine has decided on. Engines make
// every decision themselves, so a mock run and a live run over the same
// archive reach the same result.
type Actions interface {
	// RemoveFile removes ref and reports whether a file was there
	RemoveFile(ref archive.FileRef) (bool, error)

	// FilterMetadata drops the lines of path that decide selects and
	// returns how many were dropped
	FilterMetadata(path string, decide metafile.Decide) (int, error)

	DryRun() bool
}

// LiveActions modifies the archive
type LiveActions struct {
	Events *report.EventLogger
	Retry  *util.RetryConfig
}

// NewLiveActions returns actions that delete files and rewrite metadata
func NewLiveActions(events *report.EventLogger) *LiveActions {
	return &LiveActions{Events: events, Retry: util.DefaultRetryConfig()}
}

func (l *LiveActions) RemoveFile(ref archive.FileRef) (bool, error) {
	if ref.Name == "" {
		return false, nil
	}

	path := ref.Path()
	err := util.RetryableRemove(path, l.Retry)
	if os.IsNotExist(err) {
		return false, nil
	}
	l.Events.LogDelete(ref.Archive, ref.Stage.String(), path, false, err)
	if err != nil {
		return false, err
	}

	util.DebugLog("deleted %s", ref.RelPath())
	return true, nil
}

func (l *LiveActions) FilterMetadata(path string, decide metafile.Decide) (int, error) {
	return metafile.Rewrite(path, decide)
}

func (l *LiveActions) DryRun() bool { return false }

// MockActions reports what LiveActions would do and writes nothing
type MockActions struct {
	Events *report.EventLogger

	// removed tracks reported paths so a second removal of the same file
	// reports nothing, as it would in a live run
	removed archive.Set
}

// NewMockActions returns report-only actions
func NewMockActions(events *report.EventLogger) *MockActions {
	return &MockActions{Events: events, removed: archive.NewSet()}
}

func (m *MockActions) RemoveFile(ref archive.FileRef) (bool, error) {
	if ref.Name == "" {
		return false, nil
	}

	path := ref.Path()
	if m.removed.Has(path) || !ref.Exists() {
		return false, nil
	}
	m.removed.Add(path)

	util.InfoLog("would delete %s", ref.RelPath())
	m.Events.LogDelete(ref.Archive, ref.Stage.String(), path, true, nil)
	return true, nil
}

func (m *MockActions) FilterMetadata(path string, decide metafile.Decide) (int, error) {
	return metafile.Preview(path, decide, func(line string) {
		util.InfoLog("would drop from %s: %s", path, line)
		m.Events.LogDrop(path, line, true)
	})
}

func (m *MockActions) DryRun() bool { return true }

package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Run statuses
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusFailed  = "failed"
)

// Run is one invocation of a command against one or more archives
type Run struct {
	ID         string
	Command    string
	Archives   []string
	DryRun     bool
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took, or zero while it is running
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counter is a named integer recorded for a run
type Counter struct {
	Name  string
	Value int64
}

// archives are stored tab-joined; archive paths never contain tabs
// because the metadata files they live beside are tab-separated.
func joinArchives(archives []string) string {
	return strings.Join(archives, "\t")
}

func splitArchives(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\t")
}

// BeginRun records the start of a run and returns it with a fresh ID
func (s *Store) BeginRun(command string, archives []string, dryRun bool) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Command:   command,
		Archives:  archives,
		DryRun:    dryRun,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	dry := 0
	if dryRun {
		dry = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, command, archives, dry_run, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Command, joinArchives(archives), dry, run.Status, run.StartedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// FinishRun marks a run as finished; a non-nil runErr marks it failed
func (s *Store) FinishRun(run *Run, runErr error) error {
	run.FinishedAt = time.Now()
	run.Status = StatusOK
	run.Error = ""
	if runErr != nil {
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}

	_, err := s.db.Exec(`
		UPDATE runs SET status = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, run.Status, run.Error, run.FinishedAt.UnixNano(), run.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	return nil
}

const runColumns = `id, command, archives, dry_run, status, COALESCE(error, ''), started_at, COALESCE(finished_at, 0)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var archives string
	var dry int
	var started, finished int64

	if err := row.Scan(&r.ID, &r.Command, &archives, &dry, &r.Status, &r.Error, &started, &finished); err != nil {
		return nil, err
	}

	r.Archives = splitArchives(archives)
	r.DryRun = dry == 1
	r.StartedAt = time.Unix(0, started)
	if finished != 0 {
		r.FinishedAt = time.Unix(0, finished)
	}
	return &r, nil
}

// GetRun retrieves a run by ID. A unique ID prefix is accepted.
func (s *Store) GetRun(id string) (*Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE id LIKE ? || '%' LIMIT 2`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var found []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(found) {
	case 0:
		return nil, nil
	case 1:
		return found[0], nil
	default:
		return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// SetCounters stores named counters for a run, replacing earlier values
func (s *Store) SetCounters(runID string, counters []Counter) error {
	if len(counters) == 0 {
		return nil
	}

	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO run_counters (run_id, name, value) VALUES (?, ?, ?)
			ON CONFLICT(run_id, name) DO UPDATE SET value = excluded.value
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, c := range counters {
			if _, err := stmt.Exec(runID, c.Name, c.Value); err != nil {
				return fmt.Errorf("failed to set counter %s: %w", c.Name, err)
			}
		}
		return nil
	})
}

// GetCounters returns a run's counters in the order they were first set
func (s *Store) GetCounters(runID string) ([]Counter, error) {
	rows, err := s.db.Query(`
		SELECT name, value FROM run_counters
		WHERE run_id = ?
		ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get counters: %w", err)
	}
	defer rows.Close()

	var counters []Counter
	for rows.Next() {
		var c Counter
		if err := rows.Scan(&c.Name, &c.Value); err != nil {
			return nil, err
		}
		counters = append(counters, c)
	}

	return counters, rows.Err()
}

// DeleteRun removes a run together with its items and counters
func (s *Store) DeleteRun(runID string) error {
	if _, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, runID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

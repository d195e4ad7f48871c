package store

import (
	"database/sql"
	"fmt"
)

// Item actions
const (
	ActionStrike    = "strike"
	ActionDelete    = "delete"
	ActionNotFound  = "not-found"
	ActionRetain    = "retain"
	ActionDiscard   = "discard"
	ActionCopy      = "copy"
	ActionViolation = "violation"
)

// RunItem is one archive file a run acted on or reported
type RunItem struct {
	ID      int64
	RunID   string
	Action  string
	Archive string
	Stage   string
	Name    string
	Detail  string
}

// AddItems inserts items for a run in a single transaction
func (s *Store) AddItems(runID string, items []*RunItem) error {
	if len(items) == 0 {
		return nil
	}

	return s.transaction(func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(`
			INSERT INTO run_items (run_id, action, archive, stage, name, detail)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			item.RunID = runID
			result, err := stmt.Exec(runID, item.Action, item.Archive, item.Stage, item.Name, item.Detail)
			if err != nil {
				return fmt.Errorf("failed to insert item %s: %w", item.Name, err)
			}
			if id, err := result.LastInsertId(); err == nil {
				item.ID = id
			}
		}
		return nil
	})
}

// GetRunItems returns a run's items in insertion order. An empty action
// returns items of every action.
func (s *Store) GetRunItems(runID, action string) ([]*RunItem, error) {
	query := `
		SELECT id, run_id, action, archive, stage, name, COALESCE(detail, '')
		FROM run_items
		WHERE run_id = ?`
	args := []any{runID}
	if action != "" {
		query += ` AND action = ?`
		args = append(args, action)
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get run items: %w", err)
	}
	defer rows.Close()

	var items []*RunItem
	for rows.Next() {
		var item RunItem
		if err := rows.Scan(&item.ID, &item.RunID, &item.Action, &item.Archive, &item.Stage, &item.Name, &item.Detail); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

// CountItemsByAction returns the number of items per action for a run
func (s *Store) CountItemsByAction(runID string) (map[string]int, error) {
	rows, err := s.db.Query(`
		SELECT action, COUNT(*) FROM run_items
		WHERE run_id = ?
		GROUP BY action
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count run items: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		counts[action] = n
	}

	return counts, rows.Err()
}

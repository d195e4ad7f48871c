package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // SQLite driver
)

// migrations are applied in order; a journal at version n has applied the
// first n entries
var migrations = []string{
	schemaV1,
	schemaV2,
}

// Store is the run journal: one row per command invocation plus the
// archive files each run struck, removed, retained or flagged.
type Store struct {
	db *sql.DB
}

// OpenOptions holds options for opening a journal
type OpenOptions struct {
	NetworkOptimized bool // journal lives on a network mount
}

// Open opens or creates a journal at path with default options
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, nil)
}

// OpenWithOptions opens or creates a journal at path
func OpenWithOptions(path string, opts *OpenOptions) (*Store, error) {
	if opts == nil {
		opts = &OpenOptions{}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if opts.NetworkOptimized {
		if err := s.exec(networkPragmas...); err != nil {
			db.Close()
			return nil, err
		}
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return s, nil
}

// networkPragmas trade durability of the last commits for fewer round trips
var networkPragmas = []string{
	"PRAGMA synchronous = NORMAL",
	"PRAGMA temp_store = MEMORY",
	"PRAGMA cache_size = -64000", // KB
}

func (s *Store) exec(statements ...string) error {
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute %s: %w", stmt, err)
		}
	}
	return nil
}

// Close closes the journal
func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the journal's schema version
func (s *Store) Version() (int, error) {
	var exists int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&exists)
	if err != nil || exists == 0 {
		return 0, err
	}

	var version int
	err = s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	return version, err
}

func (s *Store) migrate() error {
	version, err := s.Version()
	if err != nil {
		return err
	}
	if version >= len(migrations) {
		return nil
	}

	return s.transaction(func(tx *sql.Tx) error {
		for v := version; v < len(migrations); v++ {
			if _, err := tx.Exec(migrations[v]); err != nil {
				return fmt.Errorf("schema v%d: %w", v+1, err)
			}
			if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", v+1); err != nil {
				return fmt.Errorf("schema v%d: %w", v+1, err)
			}
		}
		return nil
	})
}

// transaction runs fn in a transaction, committing when it returns nil
func (s *Store) transaction(fn func(*sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

package store

// Schema v1 - runs and the files they touched
const schemaV1 = `
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
  version INTEGER PRIMARY KEY,
  applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- One row per command invocation
CREATE TABLE IF NOT EXISTS runs (
  id TEXT PRIMARY KEY,
  command TEXT NOT NULL,
  archives TEXT NOT NULL DEFAULT '',
  dry_run INTEGER DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'running',
  error TEXT,
  started_at INTEGER NOT NULL,
  finished_at INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Files struck, removed, retained or flagged by a run
CREATE TABLE IF NOT EXISTS run_items (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  action TEXT NOT NULL,
  archive TEXT NOT NULL DEFAULT '',
  stage TEXT NOT NULL DEFAULT '',
  name TEXT NOT NULL,
  detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_items_run_id ON run_items(run_id);
CREATE INDEX IF NOT EXISTS idx_run_items_action ON run_items(run_id, action);
`

// Schema v2 - named counters per run (records struck, bytes copied, ...)
const schemaV2 = `
CREATE TABLE IF NOT EXISTS run_counters (
  run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
  name TEXT NOT NULL,
  value INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (run_id, name)
);
`

package recorder

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"quotearchiver/internal/model"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite recorder opened: %s", dbPath)
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id                TEXT PRIMARY KEY,
			run_date          TEXT NOT NULL,
			started_at        INTEGER NOT NULL,
			finished_at       INTEGER,
			status            TEXT,
			error             TEXT,
			instruments       INTEGER,
			watchlist_created INTEGER,
			fetched           INTEGER,
			skipped           INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_date ON runs(run_date)`,

		`CREATE TABLE IF NOT EXISTS artifacts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			timestamp   INTEGER NOT NULL,
			run_date    TEXT NOT NULL,
			instrument  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			action      TEXT NOT NULL,
			path        TEXT,
			bytes       INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_date ON artifacts(run_date, instrument)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRunStart(run *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO runs (id, run_date, started_at) VALUES (?,?,?)`,
		run.ID, run.RunDate, run.StartedAt.Unix(),
	)
	return err
}

func (r *SQLiteRecorder) RecordRunEnd(run *model.RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errText string
	if run.Err != nil {
		errText = run.Err.Error()
	}
	_, err := r.db.Exec(`UPDATE runs SET
		finished_at = ?, status = ?, error = ?, instruments = ?,
		watchlist_created = ?, fetched = ?, skipped = ?
		WHERE id = ?`,
		run.FinishedAt.Unix(), string(run.Status), errText, run.Instruments,
		run.WatchlistCreated, run.Fetched, run.Skipped,
		run.ID,
	)
	return err
}

func (r *SQLiteRecorder) RecordArtifact(runID string, evt *model.ArtifactEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO artifacts
		(run_id, timestamp, run_date, instrument, kind, action, path, bytes)
		VALUES (?,?,?,?,?,?,?,?)`,
		runID, time.Now().Unix(), evt.RunDate, evt.Instrument,
		string(evt.Kind), string(evt.Action), evt.Path, evt.Bytes,
	)
	return err
}

// fetchedCount returns how many artifacts were fetched on runDate.
func (r *SQLiteRecorder) fetchedCount(runDate string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM artifacts WHERE run_date = ? AND action = ?`,
		runDate, string(model.ActionFetched)).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) Close() error {
	log.Println("[INFO] closing sqlite recorder")
	return r.db.Close()
}

package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchemaVersion = 1

// SQLiteStore implements Store on a single SQLite database file.
// Checkpoints are kept as JSON documents keyed by job ID; the listing
// columns are duplicated so ListCheckpoints does not decode every row.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (and if needed creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	slog.Debug("Opened checkpoint database", "path", dbPath)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == nil {
		if version != sqliteSchemaVersion {
			return fmt.Errorf("unsupported schema version %d", version)
		}
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (1);

	CREATE TABLE IF NOT EXISTS checkpoints (
		job_id TEXT PRIMARY KEY,
		best_cost REAL NOT NULL,
		routes INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		instance_path TEXT NOT NULL,
		seed INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	`
	_, err = s.db.Exec(schema)
	return err
}

// Path returns the database file path
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveCheckpoint upserts the checkpoint of jobID in a single statement.
func (s *SQLiteStore) SaveCheckpoint(jobID string, checkpoint *Checkpoint) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}
	if checkpoint == nil {
		return fmt.Errorf("checkpoint cannot be nil")
	}

	data, err := json.Marshal(checkpoint)
	if err != nil {
		return fmt.Errorf("failed to serialize checkpoint: %w", err)
	}
	info := checkpoint.ToInfo()
	_, err = s.db.Exec(`
		INSERT INTO checkpoints (job_id, best_cost, routes, iteration, created_at, instance_path, seed, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_id) DO UPDATE SET
			best_cost = excluded.best_cost,
			routes = excluded.routes,
			iteration = excluded.iteration,
			created_at = excluded.created_at,
			instance_path = excluded.instance_path,
			seed = excluded.seed,
			data = excluded.data`,
		jobID, info.BestCost, info.Routes, info.Iteration,
		info.Timestamp.UTC().Format(time.RFC3339Nano), info.InstancePath, info.Seed, string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	slog.Debug("Checkpoint saved", "jobID", jobID, "path", s.dbPath)
	return nil
}

// LoadCheckpoint retrieves the checkpoint for the given job.
func (s *SQLiteStore) LoadCheckpoint(jobID string) (*Checkpoint, error) {
	if jobID == "" {
		return nil, fmt.Errorf("jobID cannot be empty")
	}

	var data string
	err := s.db.QueryRow("SELECT data FROM checkpoints WHERE job_id = ?", jobID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{JobID: jobID}
	} else if err != nil {
		return nil, fmt.Errorf("failed to query checkpoint: %w", err)
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal([]byte(data), &checkpoint); err != nil {
		return nil, fmt.Errorf("failed to deserialize checkpoint: %w", err)
	}
	return &checkpoint, nil
}

// ListCheckpoints returns metadata for all checkpoints, ordered by job ID.
func (s *SQLiteStore) ListCheckpoints() ([]CheckpointInfo, error) {
	rows, err := s.db.Query(`
		SELECT job_id, best_cost, routes, iteration, created_at, instance_path, seed
		FROM checkpoints ORDER BY job_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	infos := []CheckpointInfo{}
	for rows.Next() {
		var info CheckpointInfo
		var created string
		if err := rows.Scan(&info.JobID, &info.BestCost, &info.Routes, &info.Iteration, &created, &info.InstancePath, &info.Seed); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, created); err != nil {
			slog.Warn("Invalid checkpoint timestamp", "jobID", info.JobID, "error", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	return infos, nil
}

// DeleteCheckpoint removes the checkpoint row of jobID.
func (s *SQLiteStore) DeleteCheckpoint(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("jobID cannot be empty")
	}

	res, err := s.db.Exec("DELETE FROM checkpoints WHERE job_id = ?", jobID)
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	if n == 0 {
		return &NotFoundError{JobID: jobID}
	}
	return nil
}

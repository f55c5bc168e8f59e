package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/flakeboard/flakeboard-backend/models"
	"github.com/flakeboard/flakeboard-backend/services"
	_ "github.com/mattn/go-sqlite3"
)

// Storage handles database operations. It implements both the lookup and
// test-run repository surfaces consumed by the upload service.
type Storage struct {
	db *sql.DB
}

// NewStorage opens the database at dbPath and ensures the schema exists.
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &Storage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates the database tables
func (s *Storage) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS environments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS triggers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			project_id INTEGER NOT NULL,
			suite TEXT NOT NULL,
			total_tests INTEGER NOT NULL,
			passed INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			flaky INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			duration INTEGER NOT NULL,
			branch TEXT NOT NULL,
			commit_sha TEXT NOT NULL,
			environment TEXT NOT NULL,
			trigger_name TEXT NOT NULL,
			content_hash TEXT NOT NULL,
			file_name TEXT NOT NULL DEFAULT '',
			ci_metadata TEXT,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id)
		)`,
		`CREATE TABLE IF NOT EXISTS tests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL,
			file TEXT NOT NULL,
			name TEXT NOT NULL,
			UNIQUE(project_id, file, name),
			FOREIGN KEY(project_id) REFERENCES projects(id)
		)`,
		`CREATE TABLE IF NOT EXISTS executions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			test_id INTEGER NOT NULL,
			status TEXT NOT NULL,
			duration INTEGER NOT NULL,
			error TEXT,
			error_stack TEXT,
			screenshots TEXT,
			steps_ref TEXT,
			last_failed_step TEXT,
			worker_index INTEGER,
			started_at DATETIME,
			FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE,
			FOREIGN KEY(test_id) REFERENCES tests(id)
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id INTEGER NOT NULL,
			retry_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			error TEXT,
			error_stack TEXT,
			screenshots TEXT,
			steps_ref TEXT,
			start_time DATETIME,
			FOREIGN KEY(execution_id) REFERENCES executions(id) ON DELETE CASCADE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_project_hash ON runs(project_id, content_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_run_id ON executions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_executions_test_id ON executions(test_id)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_execution_id ON attempts(execution_id)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnvironmentID resolves an environment name, registering it on first use.
func (s *Storage) EnvironmentID(ctx context.Context, name string) (int64, error) {
	return s.lookupID(ctx, "environments", name)
}

// TriggerID resolves a trigger name, registering it on first use.
func (s *Storage) TriggerID(ctx context.Context, name string) (int64, error) {
	return s.lookupID(ctx, "triggers", name)
}

// ProjectIDForSuite resolves the project owning a suite, registering the
// project on first use.
func (s *Storage) ProjectIDForSuite(ctx context.Context, suite string) (int64, error) {
	return s.lookupID(ctx, "projects", suite)
}

// lookupID implements get-or-create against a (id, name) lookup table.
// An empty name is the caller's mistake and maps to ErrNotFound.
func (s *Storage) lookupID(ctx context.Context, table, name string) (int64, error) {
	if name == "" {
		return 0, services.ErrNotFound
	}

	var id int64
	err := s.db.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE name = ?", name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up %s: %w", table, err)
	}

	result, err := s.db.ExecContext(ctx, "INSERT INTO "+table+" (name) VALUES (?)", name)
	if err != nil {
		// Lost a race with a concurrent insert; the row exists now.
		if selErr := s.db.QueryRowContext(ctx, "SELECT id FROM "+table+" WHERE name = ?", name).Scan(&id); selErr == nil {
			return id, nil
		}
		return 0, fmt.Errorf("failed to register %s: %w", table, err)
	}
	return result.LastInsertId()
}

// FindRunByContentHash returns the run matching a content hash within a
// project, or (nil, nil) when none exists.
func (s *Storage) FindRunByContentHash(ctx context.Context, hash string, projectID int64) (*models.RunSummary, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx,
		runSelectColumns+" FROM runs WHERE content_hash = ? AND project_id = ?",
		hash, projectID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run by content hash: %w", err)
	}
	return run, nil
}

const runSelectColumns = `SELECT id, project_id, suite, total_tests, passed, failed, flaky, skipped,
	duration, branch, commit_sha, environment, trigger_name, content_hash, file_name, ci_metadata, created_at`

// CreateRun inserts a run summary record.
func (s *Storage) CreateRun(ctx context.Context, run *models.RunSummary) error {
	ciJSON, err := marshalNullable(run.CIMetadata)
	if err != nil {
		return fmt.Errorf("failed to encode CI metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, project_id, suite, total_tests, passed, failed, flaky, skipped,
			duration, branch, commit_sha, environment, trigger_name, content_hash, file_name, ci_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ProjectID, run.Suite, run.TotalTests, run.Passed, run.Failed, run.Flaky, run.Skipped,
		run.Duration, run.Branch, run.Commit, run.Environment, run.Trigger, run.ContentHash, run.FileName, ciJSON, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpsertTests resolves canonical test identities against the conflict key
// (project, file, name) and returns the definitions with IDs filled in.
func (s *Storage) UpsertTests(ctx context.Context, projectID int64, defs []models.CanonicalTest) ([]models.CanonicalTest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range defs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO tests (project_id, file, name) VALUES (?, ?, ?)
			ON CONFLICT(project_id, file, name) DO NOTHING`,
			projectID, defs[i].File, defs[i].Name,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert test: %w", err)
		}

		err = tx.QueryRowContext(ctx,
			"SELECT id FROM tests WHERE project_id = ? AND file = ? AND name = ?",
			projectID, defs[i].File, defs[i].Name,
		).Scan(&defs[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve test ID: %w", err)
		}
		defs[i].Project = projectID
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit test upserts: %w", err)
	}
	return defs, nil
}

// InsertExecutions inserts execution records and returns them with IDs
// filled in.
func (s *Storage) InsertExecutions(ctx context.Context, records []models.ExecutionRecord) ([]models.ExecutionRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range records {
		rec := &records[i]
		screenshotsJSON, err := marshalNullable(rec.Screenshots)
		if err != nil {
			return nil, fmt.Errorf("failed to encode screenshots: %w", err)
		}
		stepJSON, err := marshalNullable(rec.LastFailedStep)
		if err != nil {
			return nil, fmt.Errorf("failed to encode last failed step: %w", err)
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO executions (run_id, test_id, status, duration, error, error_stack,
				screenshots, steps_ref, last_failed_step, worker_index, started_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RunID, rec.TestID, string(rec.Status), rec.Duration, rec.Error, rec.ErrorStack,
			screenshotsJSON, rec.StepsRef, stepJSON, rec.WorkerIndex, rec.StartedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert execution: %w", err)
		}
		if rec.ID, err = result.LastInsertId(); err != nil {
			return nil, fmt.Errorf("failed to get execution ID: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit executions: %w", err)
	}
	return records, nil
}

// InsertAttempts inserts attempt records.
func (s *Storage) InsertAttempts(ctx context.Context, records []models.AttemptRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range records {
		screenshotsJSON, err := marshalNullable(rec.Screenshots)
		if err != nil {
			return fmt.Errorf("failed to encode screenshots: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO attempts (execution_id, retry_index, status, duration_ms, error, error_stack,
				screenshots, steps_ref, start_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ExecutionID, rec.RetryIndex, string(rec.Status), rec.DurationMs, rec.Error, rec.ErrorStack,
			screenshotsJSON, rec.StepsRef, rec.StartTime,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attempt: %w", err)
		}
	}

	return tx.Commit()
}

// ListRuns retrieves runs ordered by most recent first. A non-positive
// projectID lists across all projects.
func (s *Storage) ListRuns(ctx context.Context, projectID int64, limit, offset int) ([]models.RunSummary, error) {
	query := runSelectColumns + " FROM runs"
	args := []interface{}{}
	if projectID > 0 {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY created_at DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunSummary
	for rows.Next() {
		run, err := s.scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CountRuns returns the total number of stored runs, optionally scoped to
// a project.
func (s *Storage) CountRuns(ctx context.Context, projectID int64) (int, error) {
	query := "SELECT COUNT(*) FROM runs"
	args := []interface{}{}
	if projectID > 0 {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// GetRun retrieves a single run by ID, or ErrNotFound.
func (s *Storage) GetRun(ctx context.Context, runID string) (*models.RunSummary, error) {
	run, err := s.scanRun(s.db.QueryRowContext(ctx, runSelectColumns+" FROM runs WHERE id = ?", runID))
	if err == sql.ErrNoRows {
		return nil, services.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetExecutions retrieves the executions of a run together with their
// canonical test identities.
func (s *Storage) GetExecutions(ctx context.Context, runID string) ([]models.ExecutionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, test_id, status, duration, error, error_stack,
			screenshots, steps_ref, last_failed_step, worker_index, started_at
		FROM executions WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var records []models.ExecutionRecord
	for rows.Next() {
		var rec models.ExecutionRecord
		var status string
		var errMsg, errStack, screenshotsJSON, stepsRef, stepJSON sql.NullString
		var workerIndex sql.NullInt64
		var startedAt sql.NullTime

		err := rows.Scan(&rec.ID, &rec.RunID, &rec.TestID, &status, &rec.Duration, &errMsg, &errStack,
			&screenshotsJSON, &stepsRef, &stepJSON, &workerIndex, &startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		rec.Status = models.TestStatus(status)
		rec.Error = errMsg.String
		rec.ErrorStack = errStack.String
		rec.StepsRef = stepsRef.String
		if screenshotsJSON.Valid && screenshotsJSON.String != "" {
			if err := json.Unmarshal([]byte(screenshotsJSON.String), &rec.Screenshots); err != nil {
				return nil, fmt.Errorf("failed to decode screenshots: %w", err)
			}
		}
		if stepJSON.Valid && stepJSON.String != "" {
			rec.LastFailedStep = &models.TestStep{}
			if err := json.Unmarshal([]byte(stepJSON.String), rec.LastFailedStep); err != nil {
				return nil, fmt.Errorf("failed to decode last failed step: %w", err)
			}
		}
		if workerIndex.Valid {
			idx := int(workerIndex.Int64)
			rec.WorkerIndex = &idx
		}
		if startedAt.Valid {
			t := startedAt.Time.UTC()
			rec.StartedAt = &t
		}

		records = append(records, rec)
	}
	return records, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for shared run scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Storage) scanRun(row scanner) (*models.RunSummary, error) {
	var run models.RunSummary
	var ciJSON sql.NullString
	var createdAt time.Time

	err := row.Scan(&run.ID, &run.ProjectID, &run.Suite, &run.TotalTests, &run.Passed, &run.Failed,
		&run.Flaky, &run.Skipped, &run.Duration, &run.Branch, &run.Commit, &run.Environment,
		&run.Trigger, &run.ContentHash, &run.FileName, &ciJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	run.CreatedAt = createdAt.UTC()
	if ciJSON.Valid && ciJSON.String != "" {
		if err := json.Unmarshal([]byte(ciJSON.String), &run.CIMetadata); err != nil {
			return nil, fmt.Errorf("failed to decode CI metadata: %w", err)
		}
	}
	return &run, nil
}

// marshalNullable encodes a value as JSON, mapping empty collections and
// nil pointers to SQL NULL.
func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case []string:
		if len(val) == 0 {
			return nil, nil
		}
	case *models.TestStep:
		if val == nil {
			return nil, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

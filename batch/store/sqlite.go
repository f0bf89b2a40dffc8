package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/batchforge/batchengine/batch"
	_ "modernc.org/sqlite"
)

// SQLiteRepository is a SQLite implementation of batch.Repository.
//
// It stores job and item state in a single-file database. Designed for:
//   - Development and testing with zero setup
//   - Single-node deployments
//   - Prototyping before migrating to MySQLRepository
//
// SQLiteRepository uses WAL mode for concurrent reads and transactional
// writes for the atomic job+items insert CreateJob requires.
//
// Schema:
//   - jobs: one row per Job, config and checkpoint stored as JSON columns
//   - items: one row per Item, keyed by (job_id, item_index)
type SQLiteRepository struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteRepository creates a new SQLite-backed repository.
//
// The path parameter specifies the database file location:
//   - "./jobs.db" - file in current directory
//   - "/var/lib/batchengine/jobs.db" - absolute path
//   - ":memory:" - in-memory database (data lost on close)
//
// The repository automatically creates the database file, the required
// tables, and enables WAL mode for concurrent reads.
func NewSQLiteRepository(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite supports one writer at a time
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	repo := &SQLiteRepository{db: db, path: path}
	if err := repo.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return repo, nil
}

func (s *SQLiteRepository) createTables(ctx context.Context) error {
	jobsTable := `
		CREATE TABLE IF NOT EXISTS jobs (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			group_id TEXT NOT NULL DEFAULT '',
			user_id TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			config TEXT NOT NULL,
			total_items INTEGER NOT NULL DEFAULT 0,
			completed_items INTEGER NOT NULL DEFAULT 0,
			failed_items INTEGER NOT NULL DEFAULT 0,
			accounting_cost REAL NOT NULL DEFAULT 0,
			accounting_tokens INTEGER NOT NULL DEFAULT 0,
			current_phase TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			updated_at TIMESTAMP NOT NULL,
			last_error TEXT NOT NULL DEFAULT '',
			checkpoint TEXT
		)
	`
	if _, err := s.db.ExecContext(ctx, jobsTable); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_jobs_group_id ON jobs(group_id)"); err != nil {
		return fmt.Errorf("failed to create idx_jobs_group_id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)"); err != nil {
		return fmt.Errorf("failed to create idx_jobs_status: %w", err)
	}

	itemsTable := `
		CREATE TABLE IF NOT EXISTS items (
			job_id TEXT NOT NULL,
			item_index INTEGER NOT NULL,
			input BLOB,
			output BLOB,
			phase_outputs TEXT NOT NULL DEFAULT '{}',
			status TEXT NOT NULL,
			current_phase TEXT NOT NULL DEFAULT '',
			retry_count INTEGER NOT NULL DEFAULT 0,
			errors TEXT NOT NULL DEFAULT '[]',
			accounting_cost REAL NOT NULL DEFAULT 0,
			accounting_tokens INTEGER NOT NULL DEFAULT 0,
			processing_time_ms INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			PRIMARY KEY (job_id, item_index),
			FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
		)
	`
	if _, err := s.db.ExecContext(ctx, itemsTable); err != nil {
		return fmt.Errorf("failed to create items table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_items_job_id ON items(job_id)"); err != nil {
		return fmt.Errorf("failed to create idx_items_job_id: %w", err)
	}

	return nil
}

// Close closes the database connection. Calling Close multiple times is safe.
func (s *SQLiteRepository) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteRepository) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteRepository) Path() string {
	return s.path
}

func (s *SQLiteRepository) CreateJob(ctx context.Context, job *batch.Job, items []*batch.Item) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	checkpointJSON, err := marshalCheckpoint(job.Checkpoint)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO jobs (
			id, name, group_id, user_id, status, config,
			total_items, completed_items, failed_items,
			accounting_cost, accounting_tokens, current_phase,
			created_at, started_at, completed_at, updated_at, last_error, checkpoint
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		job.ID, job.Name, job.GroupID, job.UserID, string(job.Status), string(configJSON),
		job.TotalItems, job.CompletedItems, job.FailedItems,
		job.Accounting.CostIncurred, job.Accounting.TokensUsed, job.CurrentPhase,
		formatTime(job.CreatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
		formatTime(job.UpdatedAt), job.LastError, checkpointJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for _, it := range items {
		if err := insertItem(ctx, tx, it); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, tx *sql.Tx, it *batch.Item) error {
	phaseOutputsJSON, err := json.Marshal(it.PhaseOutputs)
	if err != nil {
		return fmt.Errorf("failed to marshal phase outputs: %w", err)
	}
	errorsJSON, err := json.Marshal(it.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal item errors: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (
			job_id, item_index, input, output, phase_outputs,
			status, current_phase, retry_count, errors,
			accounting_cost, accounting_tokens, processing_time_ms,
			started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		it.JobID, it.ItemIndex, it.Input, it.Output, string(phaseOutputsJSON),
		string(it.Status), it.CurrentPhase, it.RetryCount, string(errorsJSON),
		it.Accounting.CostIncurred, it.Accounting.TokensUsed, it.ProcessingTimeMs,
		formatTimePtr(it.StartedAt), formatTimePtr(it.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %d: %w", it.ItemIndex, err)
	}
	return nil
}

func (s *SQLiteRepository) GetJob(ctx context.Context, jobID string) (*batch.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, group_id, user_id, status, config,
			total_items, completed_items, failed_items,
			accounting_cost, accounting_tokens, current_phase,
			created_at, started_at, completed_at, updated_at, last_error, checkpoint
		FROM jobs WHERE id = ?
	`, jobID)
	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

func scanJob(row *sql.Row) (*batch.Job, error) {
	var (
		job                                  batch.Job
		statusStr, configJSON                string
		createdAtStr, updatedAtStr           string
		startedAtStr, completedAtStr         sql.NullString
		checkpointJSON                       sql.NullString
	)

	if err := row.Scan(
		&job.ID, &job.Name, &job.GroupID, &job.UserID, &statusStr, &configJSON,
		&job.TotalItems, &job.CompletedItems, &job.FailedItems,
		&job.Accounting.CostIncurred, &job.Accounting.TokensUsed, &job.CurrentPhase,
		&createdAtStr, &startedAtStr, &completedAtStr, &updatedAtStr, &job.LastError, &checkpointJSON,
	); err != nil {
		return nil, err
	}

	job.Status = batch.Status(statusStr)
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if job.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if job.StartedAt, err = parseTimePtr(startedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse started_at: %w", err)
	}
	if job.CompletedAt, err = parseTimePtr(completedAtStr); err != nil {
		return nil, fmt.Errorf("failed to parse completed_at: %w", err)
	}
	if job.Checkpoint, err = unmarshalCheckpoint(checkpointJSON); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *SQLiteRepository) UpdateJob(ctx context.Context, job *batch.Job) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	checkpointJSON, err := marshalCheckpoint(job.Checkpoint)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET
			name = ?, group_id = ?, user_id = ?, status = ?, config = ?,
			total_items = ?, completed_items = ?, failed_items = ?,
			accounting_cost = ?, accounting_tokens = ?, current_phase = ?,
			started_at = ?, completed_at = ?, updated_at = ?, last_error = ?, checkpoint = ?
		WHERE id = ?
	`,
		job.Name, job.GroupID, job.UserID, string(job.Status), string(configJSON),
		job.TotalItems, job.CompletedItems, job.FailedItems,
		job.Accounting.CostIncurred, job.Accounting.TokensUsed, job.CurrentPhase,
		formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt), formatTime(job.UpdatedAt),
		job.LastError, checkpointJSON, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return requireRowsAffected(res)
}

func (s *SQLiteRepository) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRowsAffected(res)
}

func (s *SQLiteRepository) ListJobs(ctx context.Context, filter batch.JobFilter) ([]*batch.Job, bool, error) {
	query := `
		SELECT id, name, group_id, user_id, status, config,
			total_items, completed_items, failed_items,
			accounting_cost, accounting_tokens, current_phase,
			created_at, started_at, completed_at, updated_at, last_error, checkpoint
		FROM jobs WHERE 1=1
	`
	args := []interface{}{}
	if filter.GroupID != "" {
		query += " AND group_id = ?"
		args = append(args, filter.GroupID)
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit+1, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*batch.Job
	for rows.Next() {
		job, err := scanJobRows(rows)
		if err != nil {
			return nil, false, fmt.Errorf("failed to scan job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("error iterating job rows: %w", err)
	}

	hasMore := false
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
		hasMore = true
	}

	return jobs, hasMore, nil
}

func scanJobRows(rows *sql.Rows) (*batch.Job, error) {
	var (
		job                           batch.Job
		statusStr, configJSON         string
		createdAtStr, updatedAtStr    string
		startedAtStr, completedAtStr  sql.NullString
		checkpointJSON                sql.NullString
	)

	if err := rows.Scan(
		&job.ID, &job.Name, &job.GroupID, &job.UserID, &statusStr, &configJSON,
		&job.TotalItems, &job.CompletedItems, &job.FailedItems,
		&job.Accounting.CostIncurred, &job.Accounting.TokensUsed, &job.CurrentPhase,
		&createdAtStr, &startedAtStr, &completedAtStr, &updatedAtStr, &job.LastError, &checkpointJSON,
	); err != nil {
		return nil, err
	}

	job.Status = batch.Status(statusStr)
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
	}

	var err error
	if job.CreatedAt, err = parseTime(createdAtStr); err != nil {
		return nil, err
	}
	if job.UpdatedAt, err = parseTime(updatedAtStr); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseTimePtr(startedAtStr); err != nil {
		return nil, err
	}
	if job.CompletedAt, err = parseTimePtr(completedAtStr); err != nil {
		return nil, err
	}
	if job.Checkpoint, err = unmarshalCheckpoint(checkpointJSON); err != nil {
		return nil, err
	}

	return &job, nil
}

func (s *SQLiteRepository) GetItem(ctx context.Context, jobID string, itemIndex int) (*batch.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, item_index, input, output, phase_outputs,
			status, current_phase, retry_count, errors,
			accounting_cost, accounting_tokens, processing_time_ms,
			started_at, completed_at
		FROM items WHERE job_id = ? AND item_index = ?
	`, jobID, itemIndex)

	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}
	return item, nil
}

func scanItem(row *sql.Row) (*batch.Item, error) {
	var (
		item                         batch.Item
		statusStr, phaseOutputsJSON  string
		errorsJSON                   string
		startedAtStr, completedAtStr sql.NullString
	)

	if err := row.Scan(
		&item.JobID, &item.ItemIndex, &item.Input, &item.Output, &phaseOutputsJSON,
		&statusStr, &item.CurrentPhase, &item.RetryCount, &errorsJSON,
		&item.Accounting.CostIncurred, &item.Accounting.TokensUsed, &item.ProcessingTimeMs,
		&startedAtStr, &completedAtStr,
	); err != nil {
		return nil, err
	}

	item.Status = batch.ItemStatus(statusStr)
	if err := json.Unmarshal([]byte(phaseOutputsJSON), &item.PhaseOutputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phase outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &item.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item errors: %w", err)
	}

	var err error
	if item.StartedAt, err = parseTimePtr(startedAtStr); err != nil {
		return nil, err
	}
	if item.CompletedAt, err = parseTimePtr(completedAtStr); err != nil {
		return nil, err
	}

	return &item, nil
}

func (s *SQLiteRepository) UpdateItem(ctx context.Context, item *batch.Item) error {
	phaseOutputsJSON, err := json.Marshal(item.PhaseOutputs)
	if err != nil {
		return fmt.Errorf("failed to marshal phase outputs: %w", err)
	}
	errorsJSON, err := json.Marshal(item.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal item errors: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET
			input = ?, output = ?, phase_outputs = ?,
			status = ?, current_phase = ?, retry_count = ?, errors = ?,
			accounting_cost = ?, accounting_tokens = ?, processing_time_ms = ?,
			started_at = ?, completed_at = ?
		WHERE job_id = ? AND item_index = ?
	`,
		item.Input, item.Output, string(phaseOutputsJSON),
		string(item.Status), item.CurrentPhase, item.RetryCount, string(errorsJSON),
		item.Accounting.CostIncurred, item.Accounting.TokensUsed, item.ProcessingTimeMs,
		formatTimePtr(item.StartedAt), formatTimePtr(item.CompletedAt),
		item.JobID, item.ItemIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireRowsAffected(res)
}

func (s *SQLiteRepository) ListItems(ctx context.Context, jobID string) ([]*batch.Item, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, item_index, input, output, phase_outputs,
			status, current_phase, retry_count, errors,
			accounting_cost, accounting_tokens, processing_time_ms,
			started_at, completed_at
		FROM items WHERE job_id = ? ORDER BY item_index ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*batch.Item
	for rows.Next() {
		var (
			item                         batch.Item
			statusStr, phaseOutputsJSON  string
			errorsJSON                   string
			startedAtStr, completedAtStr sql.NullString
		)
		if err := rows.Scan(
			&item.JobID, &item.ItemIndex, &item.Input, &item.Output, &phaseOutputsJSON,
			&statusStr, &item.CurrentPhase, &item.RetryCount, &errorsJSON,
			&item.Accounting.CostIncurred, &item.Accounting.TokensUsed, &item.ProcessingTimeMs,
			&startedAtStr, &completedAtStr,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}

		item.Status = batch.ItemStatus(statusStr)
		if err := json.Unmarshal([]byte(phaseOutputsJSON), &item.PhaseOutputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal phase outputs: %w", err)
		}
		if err := json.Unmarshal([]byte(errorsJSON), &item.Errors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal item errors: %w", err)
		}
		if item.StartedAt, err = parseTimePtr(startedAtStr); err != nil {
			return nil, err
		}
		if item.CompletedAt, err = parseTimePtr(completedAtStr); err != nil {
			return nil, err
		}

		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

// requireRowsAffected returns batch.ErrNotFound when an UPDATE/DELETE
// touched no rows, matching MemoryRepository's contract.
func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return batch.ErrNotFound
	}
	return nil
}

func marshalCheckpoint(cp *batch.CheckpointSnapshot) (interface{}, error) {
	if cp == nil {
		return nil, nil
	}
	b, err := json.Marshal(cp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	return string(b), nil
}

func unmarshalCheckpoint(ns sql.NullString) (*batch.CheckpointSnapshot, error) {
	if !ns.Valid {
		return nil, nil
	}
	var cp batch.CheckpointSnapshot
	if err := json.Unmarshal([]byte(ns.String), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/batchforge/batchengine/batch"
	_ "github.com/go-sql-driver/mysql"
)

// MySQLRepository is a MySQL/MariaDB implementation of batch.Repository.
//
// Designed for:
//   - Production deployments requiring durable, shared state
//   - Multiple Executor processes racing over the same job queue
//   - Long-running jobs that must survive process restarts
//
// Schema:
//   - jobs: one row per Job, config and checkpoint stored as JSON columns
//   - items: one row per Item, keyed by (job_id, item_index)
type MySQLRepository struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLRepository creates a new MySQL-backed repository.
//
// The DSN (Data Source Name) format is:
//
//	[username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
//
// The DSN MUST include parseTime=true so that DATETIME columns scan directly
// into time.Time:
//
//	user:password@tcp(127.0.0.1:3306)/batchengine?parseTime=true
//
// Security Warning:
//
//	NEVER hardcode credentials in source code. Read the DSN from the
//	environment:
//	    dsn := os.Getenv("BATCHENGINE_MYSQL_DSN")
//	    repo, err := store.NewMySQLRepository(dsn)
func NewMySQLRepository(dsn string) (*MySQLRepository, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	repo := &MySQLRepository{db: db}
	if err := repo.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return repo, nil
}

func (m *MySQLRepository) createTables(ctx context.Context) error {
	jobsTable := `
		CREATE TABLE IF NOT EXISTS jobs (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			group_id VARCHAR(255) NOT NULL DEFAULT '',
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			status VARCHAR(32) NOT NULL,
			config JSON NOT NULL,
			total_items INT NOT NULL DEFAULT 0,
			completed_items INT NOT NULL DEFAULT 0,
			failed_items INT NOT NULL DEFAULT 0,
			accounting_cost DOUBLE NOT NULL DEFAULT 0,
			accounting_tokens BIGINT NOT NULL DEFAULT 0,
			current_phase VARCHAR(255) NOT NULL DEFAULT '',
			created_at DATETIME(6) NOT NULL,
			started_at DATETIME(6) NULL,
			completed_at DATETIME(6) NULL,
			updated_at DATETIME(6) NOT NULL,
			last_error TEXT NOT NULL,
			checkpoint JSON NULL,
			INDEX idx_group_id (group_id),
			INDEX idx_status (status)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, jobsTable); err != nil {
		return fmt.Errorf("failed to create jobs table: %w", err)
	}

	itemsTable := `
		CREATE TABLE IF NOT EXISTS items (
			job_id VARCHAR(64) NOT NULL,
			item_index INT NOT NULL,
			input LONGBLOB,
			output LONGBLOB,
			phase_outputs JSON NOT NULL,
			status VARCHAR(32) NOT NULL,
			current_phase VARCHAR(255) NOT NULL DEFAULT '',
			retry_count INT NOT NULL DEFAULT 0,
			errors JSON NOT NULL,
			accounting_cost DOUBLE NOT NULL DEFAULT 0,
			accounting_tokens BIGINT NOT NULL DEFAULT 0,
			processing_time_ms BIGINT NOT NULL DEFAULT 0,
			started_at DATETIME(6) NULL,
			completed_at DATETIME(6) NULL,
			PRIMARY KEY (job_id, item_index),
			CONSTRAINT fk_items_job FOREIGN KEY (job_id) REFERENCES jobs(id) ON DELETE CASCADE
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := m.db.ExecContext(ctx, itemsTable); err != nil {
		return fmt.Errorf("failed to create items table: %w", err)
	}

	return nil
}

// Close closes the database connection pool. Safe to call multiple times.
func (m *MySQLRepository) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLRepository) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *MySQLRepository) CreateJob(ctx context.Context, job *batch.Job, items []*batch.Item) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	checkpointJSON, err := marshalCheckpoint(job.Checkpoint)
	if err != nil {
		return err
	}

	tx, err := m.db.BeginTx(ctx, nil)
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
		job.CreatedAt, nullableTime(job.StartedAt), nullableTime(job.CompletedAt),
		job.UpdatedAt, job.LastError, checkpointJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for _, it := range items {
		if err := insertItemMySQL(ctx, tx, it); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertItemMySQL(ctx context.Context, tx *sql.Tx, it *batch.Item) error {
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
		nullableTime(it.StartedAt), nullableTime(it.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item %d: %w", it.ItemIndex, err)
	}
	return nil
}

func (m *MySQLRepository) GetJob(ctx context.Context, jobID string) (*batch.Job, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT id, name, group_id, user_id, status, config,
			total_items, completed_items, failed_items,
			accounting_cost, accounting_tokens, current_phase,
			created_at, started_at, completed_at, updated_at, last_error, checkpoint
		FROM jobs WHERE id = ?
	`, jobID)

	job, err := scanJobMySQL(row)
	if err == sql.ErrNoRows {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load job: %w", err)
	}
	return job, nil
}

func scanJobMySQL(row *sql.Row) (*batch.Job, error) {
	var (
		job                           batch.Job
		statusStr, configJSON         string
		startedAt, completedAt        sql.NullTime
		checkpointJSON                sql.NullString
	)

	if err := row.Scan(
		&job.ID, &job.Name, &job.GroupID, &job.UserID, &statusStr, &configJSON,
		&job.TotalItems, &job.CompletedItems, &job.FailedItems,
		&job.Accounting.CostIncurred, &job.Accounting.TokensUsed, &job.CurrentPhase,
		&job.CreatedAt, &startedAt, &completedAt, &job.UpdatedAt, &job.LastError, &checkpointJSON,
	); err != nil {
		return nil, err
	}

	job.Status = batch.Status(statusStr)
	if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job config: %w", err)
	}
	job.StartedAt = fromNullTime(startedAt)
	job.CompletedAt = fromNullTime(completedAt)

	cp, err := unmarshalCheckpoint(checkpointJSON)
	if err != nil {
		return nil, err
	}
	job.Checkpoint = cp

	return &job, nil
}

func (m *MySQLRepository) UpdateJob(ctx context.Context, job *batch.Job) error {
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal job config: %w", err)
	}
	checkpointJSON, err := marshalCheckpoint(job.Checkpoint)
	if err != nil {
		return err
	}

	res, err := m.db.ExecContext(ctx, `
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
		nullableTime(job.StartedAt), nullableTime(job.CompletedAt), job.UpdatedAt,
		job.LastError, checkpointJSON, job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	return requireRowsAffected(res)
}

func (m *MySQLRepository) DeleteJob(ctx context.Context, jobID string) error {
	res, err := m.db.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", jobID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	return requireRowsAffected(res)
}

func (m *MySQLRepository) ListJobs(ctx context.Context, filter batch.JobFilter) ([]*batch.Job, bool, error) {
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

	rows, err := m.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*batch.Job
	for rows.Next() {
		var (
			job                    batch.Job
			statusStr, configJSON  string
			startedAt, completedAt sql.NullTime
			checkpointJSON         sql.NullString
		)
		if err := rows.Scan(
			&job.ID, &job.Name, &job.GroupID, &job.UserID, &statusStr, &configJSON,
			&job.TotalItems, &job.CompletedItems, &job.FailedItems,
			&job.Accounting.CostIncurred, &job.Accounting.TokensUsed, &job.CurrentPhase,
			&job.CreatedAt, &startedAt, &completedAt, &job.UpdatedAt, &job.LastError, &checkpointJSON,
		); err != nil {
			return nil, false, fmt.Errorf("failed to scan job row: %w", err)
		}

		job.Status = batch.Status(statusStr)
		if err := json.Unmarshal([]byte(configJSON), &job.Config); err != nil {
			return nil, false, fmt.Errorf("failed to unmarshal job config: %w", err)
		}
		job.StartedAt = fromNullTime(startedAt)
		job.CompletedAt = fromNullTime(completedAt)
		cp, err := unmarshalCheckpoint(checkpointJSON)
		if err != nil {
			return nil, false, err
		}
		job.Checkpoint = cp

		jobs = append(jobs, &job)
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

func (m *MySQLRepository) GetItem(ctx context.Context, jobID string, itemIndex int) (*batch.Item, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT job_id, item_index, input, output, phase_outputs,
			status, current_phase, retry_count, errors,
			accounting_cost, accounting_tokens, processing_time_ms,
			started_at, completed_at
		FROM items WHERE job_id = ? AND item_index = ?
	`, jobID, itemIndex)

	var (
		item                    batch.Item
		statusStr               string
		phaseOutputsJSON        string
		errorsJSON              string
		startedAt, completedAt  sql.NullTime
	)

	err := row.Scan(
		&item.JobID, &item.ItemIndex, &item.Input, &item.Output, &phaseOutputsJSON,
		&statusStr, &item.CurrentPhase, &item.RetryCount, &errorsJSON,
		&item.Accounting.CostIncurred, &item.Accounting.TokensUsed, &item.ProcessingTimeMs,
		&startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, batch.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item: %w", err)
	}

	item.Status = batch.ItemStatus(statusStr)
	if err := json.Unmarshal([]byte(phaseOutputsJSON), &item.PhaseOutputs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal phase outputs: %w", err)
	}
	if err := json.Unmarshal([]byte(errorsJSON), &item.Errors); err != nil {
		return nil, fmt.Errorf("failed to unmarshal item errors: %w", err)
	}
	item.StartedAt = fromNullTime(startedAt)
	item.CompletedAt = fromNullTime(completedAt)

	return &item, nil
}

func (m *MySQLRepository) UpdateItem(ctx context.Context, item *batch.Item) error {
	phaseOutputsJSON, err := json.Marshal(item.PhaseOutputs)
	if err != nil {
		return fmt.Errorf("failed to marshal phase outputs: %w", err)
	}
	errorsJSON, err := json.Marshal(item.Errors)
	if err != nil {
		return fmt.Errorf("failed to marshal item errors: %w", err)
	}

	res, err := m.db.ExecContext(ctx, `
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
		nullableTime(item.StartedAt), nullableTime(item.CompletedAt),
		item.JobID, item.ItemIndex,
	)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return requireRowsAffected(res)
}

func (m *MySQLRepository) ListItems(ctx context.Context, jobID string) ([]*batch.Item, error) {
	if _, err := m.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
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
			item                   batch.Item
			statusStr              string
			phaseOutputsJSON       string
			errorsJSON             string
			startedAt, completedAt sql.NullTime
		)
		if err := rows.Scan(
			&item.JobID, &item.ItemIndex, &item.Input, &item.Output, &phaseOutputsJSON,
			&statusStr, &item.CurrentPhase, &item.RetryCount, &errorsJSON,
			&item.Accounting.CostIncurred, &item.Accounting.TokensUsed, &item.ProcessingTimeMs,
			&startedAt, &completedAt,
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
		item.StartedAt = fromNullTime(startedAt)
		item.CompletedAt = fromNullTime(completedAt)

		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func fromNullTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

package batch

import (
	"context"
	"time"
)

// CheckpointStore is a thin module over the Job row's checkpoint column. It
// is the only writer of Job.Checkpoint; the Executor asks it to gate
// periodic writes via AutoCheckpoint rather than writing the column itself.
type CheckpointStore struct {
	repo Repository
}

// NewCheckpointStore wraps a Repository with checkpoint gating logic.
func NewCheckpointStore(repo Repository) *CheckpointStore {
	return &CheckpointStore{repo: repo}
}

// Save writes snapshot (stamped with the current time) as the job's
// checkpoint, and mirrors CurrentPhase and the three aggregate counters onto
// the Job row itself for cheap status reads.
func (c *CheckpointStore) Save(ctx context.Context, jobID string, snapshot CheckpointSnapshot, now time.Time) error {
	job, err := c.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	snapshot.Timestamp = now
	job.Checkpoint = &snapshot
	job.CurrentPhase = snapshot.CurrentPhase
	job.CompletedItems = snapshot.CompletedItems
	job.FailedItems = snapshot.FailedItems
	job.Accounting = snapshot.Accounting
	job.UpdatedAt = now
	return c.repo.UpdateJob(ctx, job)
}

// Load returns the job's checkpoint, or nil if none has been written.
func (c *CheckpointStore) Load(ctx context.Context, jobID string) (*CheckpointSnapshot, error) {
	job, err := c.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job.Checkpoint, nil
}

// Clear nulls out the job's checkpoint.
func (c *CheckpointStore) Clear(ctx context.Context, jobID string) error {
	job, err := c.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	job.Checkpoint = nil
	return c.repo.UpdateJob(ctx, job)
}

// Has reports whether the job currently carries a checkpoint.
func (c *CheckpointStore) Has(ctx context.Context, jobID string) (bool, error) {
	job, err := c.repo.GetJob(ctx, jobID)
	if err != nil {
		return false, err
	}
	return job.Checkpoint != nil, nil
}

// AutoCheckpoint applies clock's count-or-time predicate and calls Save
// when it fires, returning whether a save occurred.
func (c *CheckpointStore) AutoCheckpoint(ctx context.Context, jobID string, clock *checkpointClock, snapshot CheckpointSnapshot, now time.Time, frequency int) (bool, error) {
	if !clock.shouldCheckpoint(now, snapshot.LastCompletedItemIndex, frequency) {
		return false, nil
	}
	if err := c.Save(ctx, jobID, snapshot, now); err != nil {
		return false, err
	}
	clock.record(now, snapshot.LastCompletedItemIndex)
	return true, nil
}

// CleanupOlderThan nulls checkpoints on jobs in a terminal status older than
// now.Add(-days), optionally restricted to statusFilter, and returns the
// count of jobs cleaned.
func (c *CheckpointStore) CleanupOlderThan(ctx context.Context, days int, statusFilter *Status, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -days)

	terminalStatuses := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	if statusFilter != nil {
		terminalStatuses = []Status{*statusFilter}
	}

	cleaned := 0
	for _, st := range terminalStatuses {
		status := st
		jobs, _, err := c.repo.ListJobs(ctx, JobFilter{Status: &status, Limit: 0})
		if err != nil {
			return cleaned, err
		}
		for _, job := range jobs {
			if job.Checkpoint == nil {
				continue
			}
			if job.CompletedAt == nil || job.CompletedAt.After(cutoff) {
				continue
			}
			job.Checkpoint = nil
			if err := c.repo.UpdateJob(ctx, job); err != nil {
				return cleaned, err
			}
			cleaned++
		}
	}
	return cleaned, nil
}

// Package batch implements a batch pipeline execution engine: a Job Manager,
// a Batch Executor, a Checkpoint Store, and the Processor contract they drive.
package batch

import "time"

// Status is the lifecycle state of a Job.
type Status string

// Job lifecycle states.
const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusPaused    Status = "PAUSED"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// terminal reports whether a status never transitions again.
// CANCELLED and COMPLETED are final; FAILED and PAUSED are resumable back to
// RUNNING, so they are not terminal for the purpose of this check even though
// they're sometimes grouped with COMPLETED/CANCELLED as "stopped" elsewhere.
func (s Status) terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Backoff selects the retry delay growth function for a phase's RetryStrategy.
type Backoff string

// Supported backoff strategies.
const (
	BackoffExponential Backoff = "exponential"
	BackoffLinear      Backoff = "linear"
	BackoffConstant    Backoff = "constant"
)

// RetryStrategy configures per-phase retry behavior.
type RetryStrategy struct {
	MaxRetries int
	Backoff    Backoff
}

// defaultRetryStrategy is applied when a phase does not specify one.
func defaultRetryStrategy() RetryStrategy {
	return RetryStrategy{MaxRetries: 0, Backoff: BackoffExponential}
}

// ValidationConfig gates per-item output quality for a phase.
type ValidationConfig struct {
	// MinScore, in [0,10], is the minimum acceptable validation score. Scoring
	// itself is the Processor's responsibility; the engine only carries the
	// threshold through to the Processor invocation.
	MinScore float64
}

// PhaseConfig describes one transformation stage applied to every item in order.
type PhaseConfig struct {
	Name       string
	TaskType   string
	Model      string
	UseRAG     bool
	Validation *ValidationConfig
	Retry      RetryStrategy
}

// ExecutionOptions controls how the Batch Executor runs a job.
type ExecutionOptions struct {
	Concurrency         int
	CheckpointFrequency int
	AutoStart           bool
}

// defaultExecutionOptions is applied to a JobDefinition that leaves any of
// these fields at zero.
func defaultExecutionOptions() ExecutionOptions {
	return ExecutionOptions{
		Concurrency:         5,
		CheckpointFrequency: 10,
		AutoStart:           true,
	}
}

// JobConfig is the immutable configuration a Job is created and resumed with.
type JobConfig struct {
	Phases  []PhaseConfig
	Options ExecutionOptions
}

// Accounting tracks cost and token usage, at either Job or Item granularity.
type Accounting struct {
	CostIncurred float64
	TokensUsed   int64
}

// Job is a single submitted batch: a fixed item set, a phase list, and
// execution options, together with the engine's live view of its progress.
type Job struct {
	ID      string
	Name    string
	GroupID string
	UserID  string

	Status Status
	Config JobConfig

	TotalItems     int
	CompletedItems int
	FailedItems    int

	Accounting Accounting

	CurrentPhase string

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	UpdatedAt   time.Time

	LastError string

	// Checkpoint is the durable, resumable snapshot attached to this job.
	// Nil when no checkpoint has ever been written, or after it was cleared
	// on normal COMPLETED termination.
	Checkpoint *CheckpointSnapshot
}

// PercentComplete is 0 when TotalItems is 0, otherwise
// CompletedItems/TotalItems*100.
func (j *Job) PercentComplete() float64 {
	if j.TotalItems == 0 {
		return 0
	}
	return float64(j.CompletedItems) / float64(j.TotalItems) * 100
}

// EstimatedTimeRemaining extrapolates from elapsed time and completion rate.
// It is only defined while RUNNING, with a recorded start time, and at
// least one completed item.
func (j *Job) EstimatedTimeRemaining(now time.Time) (time.Duration, bool) {
	if j.Status != StatusRunning || j.StartedAt == nil || j.CompletedItems == 0 {
		return 0, false
	}
	elapsed := now.Sub(*j.StartedAt)
	perItem := elapsed / time.Duration(j.CompletedItems)
	remaining := j.TotalItems - j.CompletedItems
	if remaining < 0 {
		remaining = 0
	}
	return perItem * time.Duration(remaining), true
}

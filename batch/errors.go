package batch

import "errors"

// ErrNotFound is returned when an operation references an unknown job id.
var ErrNotFound = errors.New("batch: job not found")

// ValidationError is returned synchronously from the Job Manager boundary
// when a create/list/cleanup input falls outside its stated range.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "batch: validation: " + e.Field + ": " + e.Message
}

// IllegalStateError is returned when a control operation is attempted on a
// job whose current status forbids it (e.g. pause a COMPLETED job).
type IllegalStateError struct {
	JobID   string
	Status  Status
	Op      string
	Message string
}

func (e *IllegalStateError) Error() string {
	return "batch: illegal state: job " + e.JobID + " (" + string(e.Status) + "): " + e.Op + ": " + e.Message
}

// ProcessingError wraps a failure returned by a Processor invocation,
// including the per-item timeout. It is handled internally by the retry
// policy and is never returned to a Job Manager caller; it is recorded on
// the Item's error log instead.
type ProcessingError struct {
	Phase   string
	Timeout bool
	Cause   error
}

func (e *ProcessingError) Error() string {
	if e.Timeout {
		return "batch: processing: phase " + e.Phase + ": timed out"
	}
	return "batch: processing: phase " + e.Phase + ": " + e.Cause.Error()
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// EngineError represents a fatal execution error: any uncaught failure
// outside a per-item task (e.g. a repository failure while persisting the
// phase header). It transitions the job to FAILED with its string recorded
// on Job.LastError; the checkpoint is retained.
type EngineError struct {
	JobID string
	Code  string
	Cause error
}

func (e *EngineError) Error() string {
	return "batch: fatal: job " + e.JobID + " [" + e.Code + "]: " + e.Cause.Error()
}

func (e *EngineError) Unwrap() error { return e.Cause }

// Fatal execution error codes.
const (
	CodeRepositoryFailure = "REPOSITORY_FAILURE"
	CodeCheckpointFailure = "CHECKPOINT_FAILURE"
	CodeReconcileFailure  = "RECONCILE_FAILURE"
)

// ErrInvalidRetryPolicy is returned by RetryStrategy validation.
var ErrInvalidRetryPolicy = errors.New("batch: invalid retry policy")

package emit

// Event represents an observability event emitted during batch job execution.
//
// Events provide detailed insight into pipeline behavior:
//   - Item processing start/complete
//   - Phase transitions
//   - Errors and retries
//   - Checkpoint operations
//
// Events are emitted to an Emitter which can:
//   - Log to stdout/stderr
//   - Send to OpenTelemetry
//   - Store in time-series databases
//   - Trigger alerts
type Event struct {
	// JobID identifies the job that emitted this event.
	JobID string

	// ItemIndex is the 0-indexed item position the event pertains to.
	// Meaningless for job-level events: the Executor sets it to -1 for
	// those, while events emitted by the Manager leave it at 0.
	ItemIndex int

	// Phase identifies the pipeline phase active when the event was
	// emitted. Empty for job-level events (created, started, completed).
	Phase string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "duration_ms": Processing duration in milliseconds
	//   - "error": Error details
	//   - "tokens": Token count for LLM calls
	//   - "cost": Incurred cost for the call
	//   - "retry_count": Current retry attempt
	//   - "last_completed_item_index": Last completed item index at checkpoint time
	Meta map[string]interface{}
}

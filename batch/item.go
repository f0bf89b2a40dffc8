package batch

import "time"

// ItemStatus is the lifecycle state of an Item within the phase it is
// currently executing (or last executed).
type ItemStatus string

// Item lifecycle states.
const (
	ItemPending    ItemStatus = "PENDING"
	ItemProcessing ItemStatus = "PROCESSING"
	ItemCompleted  ItemStatus = "COMPLETED"
	ItemFailed     ItemStatus = "FAILED"
)

// ItemError is one append-only entry in an Item's error log.
type ItemError struct {
	Phase string
	Error string
	Timestamp time.Time

	// RetryAttempt is 1-based (the attempt number that just failed); 0 means
	// this record carries no retry attempt (not expected in practice, since
	// every failure is either a retry record or a dead-letter record).
	RetryAttempt int
	DeadLetter   bool
}

// Item is one input payload moving through the pipeline, identified by
// (JobID, ItemIndex).
type Item struct {
	JobID     string
	ItemIndex int

	Input []byte

	// Output is the payload from the most recently completed phase.
	Output []byte

	// PhaseOutputs maps phase name to that phase's output payload.
	PhaseOutputs map[string][]byte

	Status       ItemStatus
	CurrentPhase string
	RetryCount   int

	Errors []ItemError

	Accounting      Accounting
	ProcessingTimeMs int64

	StartedAt   *time.Time
	CompletedAt *time.Time
}

// NewItem constructs the PENDING record created at submit time.
func NewItem(jobID string, index int, input []byte) *Item {
	return &Item{
		JobID:        jobID,
		ItemIndex:    index,
		Input:        input,
		PhaseOutputs: make(map[string][]byte),
		Status:       ItemPending,
	}
}

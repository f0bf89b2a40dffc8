package batch

import "context"

// JobFilter selects jobs for Repository.ListJobs.
type JobFilter struct {
	GroupID string
	UserID  string
	Status  *Status

	Limit  int
	Offset int
}

// Repository is typed access to persisted Job and Item state. It is defined here, on the consumer side, rather
// than in package store, so that package store (and any other backend) can
// depend on package batch's types without batch depending back on store —
// the concrete SQLite/MySQL/in-memory implementations live in package store
// and satisfy this interface.
//
// Ownership: the Executor is the only writer of Item rows while a phase is
// active; the Job Manager and Checkpoint Store write disjoint fields of the
// Job row and never touch Items.
type Repository interface {
	// CreateJob persists job and one Item per entry in items atomically.
	CreateJob(ctx context.Context, job *Job, items []*Item) error

	GetJob(ctx context.Context, jobID string) (*Job, error)
	UpdateJob(ctx context.Context, job *Job) error

	// DeleteJob deletes the job and cascades to all of its items.
	DeleteJob(ctx context.Context, jobID string) error

	ListJobs(ctx context.Context, filter JobFilter) (jobs []*Job, hasMore bool, err error)

	GetItem(ctx context.Context, jobID string, itemIndex int) (*Item, error)
	UpdateItem(ctx context.Context, item *Item) error

	// ListItems returns every item of a job ordered by ItemIndex. Analytics
	// reconciliation and result retrieval both need the full, ordered set.
	ListItems(ctx context.Context, jobID string) ([]*Item, error)
}

package batch

import "time"

// PhaseProgress is the per-phase slice of a CheckpointSnapshot: how far that
// phase got, and its locally-tracked completion/failure counts.
type PhaseProgress struct {
	LastCompletedIndex int
	ItemsProcessed     int
	ItemsFailed        int
}

// CheckpointSnapshot is the durable, resumable state attached to a Job
//. It is advisory for counters — the authoritative values are
// always recomputed from Item rows by analytics reconciliation — but
// authoritative for which items and phases may be skipped on resume.
type CheckpointSnapshot struct {
	Timestamp time.Time

	CurrentPhase string

	// CompletedPhases lists, in execution order, phases proven fully done.
	// A phase in this list is never re-executed on resume.
	CompletedPhases []string

	LastCompletedItemIndex int
	TotalItems             int

	CompletedItems int
	FailedItems    int
	Accounting     Accounting

	// PhaseProgress maps phase name to that phase's resumption point.
	PhaseProgress map[string]PhaseProgress
}

// phaseCompleted reports whether the resume gate
// should skip a phase entirely.
func (c *CheckpointSnapshot) phaseCompleted(name string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.CompletedPhases {
		if p == name {
			return true
		}
	}
	return false
}

// resumeIndex computes the resumption point: the work
// set for phase name starts at resumeIndex+1. -1 means start from the
// beginning.
func (c *CheckpointSnapshot) resumeIndex(name string) int {
	if c == nil || c.PhaseProgress == nil {
		return -1
	}
	if p, ok := c.PhaseProgress[name]; ok {
		return p.LastCompletedIndex
	}
	return -1
}

// checkpointClock tracks the wall-clock half of the checkpoint predicate
//: a checkpoint is written when count-based OR time-based
// conditions fire.
type checkpointClock struct {
	lastCheckpointAt    time.Time
	lastCheckpointIndex int
}

const checkpointTimeInterval = 5 * time.Minute

// shouldCheckpoint evaluates the count-or-time predicate for the item that
// was just completed at lastCompletedItemIndex, using the job's configured
// frequency.
func (c *checkpointClock) shouldCheckpoint(now time.Time, lastCompletedItemIndex, frequency int) bool {
	if frequency <= 0 {
		frequency = 10
	}
	countFires := lastCompletedItemIndex > 0 &&
		lastCompletedItemIndex%frequency == 0 &&
		lastCompletedItemIndex != c.lastCheckpointIndex
	timeFires := !c.lastCheckpointAt.IsZero() && now.Sub(c.lastCheckpointAt) >= checkpointTimeInterval
	return countFires || timeFires
}

func (c *checkpointClock) record(now time.Time, lastCompletedItemIndex int) {
	c.lastCheckpointAt = now
	c.lastCheckpointIndex = lastCompletedItemIndex
}

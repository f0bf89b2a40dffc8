package batch

// StopReason is the sentinel the Executor's phase loop unwinds with when it
// observes a PAUSED or CANCELLED job. It is distinct from an error: it is a
// tagged value returned alongside a nil error, so a caller can never
// mistake a cooperative stop for failure by forgetting an errors.Is check.
type StopReason int

// Stop reasons.
const (
	// notStopped means the phase loop should keep running.
	notStopped StopReason = iota
	stoppedPaused
	stoppedCancelled
)

func (s StopReason) String() string {
	switch s {
	case stoppedPaused:
		return "paused"
	case stoppedCancelled:
		return "cancelled"
	default:
		return "running"
	}
}

// stopReasonFor maps a job's current status to a StopReason, or notStopped
// if the job is not in a state the Executor should halt for.
func stopReasonFor(status Status) StopReason {
	switch status {
	case StatusPaused:
		return stoppedPaused
	case StatusCancelled:
		return stoppedCancelled
	default:
		return notStopped
	}
}

package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/batchforge/batchengine/batch/emit"
)

// itemChunkSize bounds how many items are dispatched under a single
// semaphore-scoped fan-out: work within a phase is
// split into chunks of this size so that a 50,000-item phase does not spawn
// 50,000 goroutines at once.
const itemChunkSize = 500

// defaultItemTimeout bounds a single Processor invocation.
const defaultItemTimeout = 5 * time.Minute

// ExecutionResult is what Executor.Run returns once a job's phase loop stops
// running, either because every phase completed or because a cooperative
// stop was observed.
type ExecutionResult struct {
	JobID  string
	Status Status

	// Stopped is notStopped when the job ran to completion.
	Stopped StopReason
}

// Executor is the Batch Executor: it drives a single Job through its
// configured phases, dispatching Items under bounded concurrency,
// persisting progress, and reconciling analytics. Each phase fans its items
// out across a WaitGroup of goroutines gated by a bounded Semaphore.
type Executor struct {
	repo        Repository
	checkpoints *CheckpointStore
	processor   Processor
	emitter     emit.Emitter
	metrics     *Metrics

	itemTimeout    time.Duration
	reconcileEvery int

	activeWorkers int64
}

// NewExecutor builds an Executor. emitter and metrics may be nil (both are
// nil-safe). itemTimeout defaults to 5 minutes and reconcileEvery to 50 when
// zero.
func NewExecutor(repo Repository, checkpoints *CheckpointStore, processor Processor, emitter emit.Emitter, metrics *Metrics, itemTimeout time.Duration, reconcileEvery int) *Executor {
	if itemTimeout <= 0 {
		itemTimeout = defaultItemTimeout
	}
	if reconcileEvery <= 0 {
		reconcileEvery = 50
	}
	if emitter == nil {
		emitter = emit.NewNullEmitter()
	}
	return &Executor{
		repo:           repo,
		checkpoints:    checkpoints,
		processor:      processor,
		emitter:        emitter,
		metrics:        metrics,
		itemTimeout:    itemTimeout,
		reconcileEvery: reconcileEvery,
	}
}

// runState accumulates the parts of a CheckpointSnapshot that build up over
// the course of a Run call, across phases and across the concurrent item
// tasks within a phase. Two mutexes separate the hot path (item-completion
// bookkeeping) from the cold path (the checkpoint write itself, which does
// repository I/O).
type runState struct {
	mu              sync.Mutex
	completedPhases []string
	phaseProgress   map[string]PhaseProgress
	itemsSinceSync  int

	checkpointMu sync.Mutex
	clock        checkpointClock
}

func newRunState(initial *CheckpointSnapshot) *runState {
	rs := &runState{phaseProgress: make(map[string]PhaseProgress)}
	if initial != nil {
		rs.completedPhases = append(rs.completedPhases, initial.CompletedPhases...)
		for name, p := range initial.PhaseProgress {
			rs.phaseProgress[name] = p
		}
		rs.clock.lastCheckpointAt = initial.Timestamp
		rs.clock.lastCheckpointIndex = initial.LastCompletedItemIndex
	}
	return rs
}

func (rs *runState) markPhaseComplete(name string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.completedPhases = append(rs.completedPhases, name)
}

func (rs *runState) updateProgress(phase string, p PhaseProgress) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.phaseProgress[phase] = p
}

func (rs *runState) snapshotProgress() ([]string, map[string]PhaseProgress) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	phases := append([]string(nil), rs.completedPhases...)
	progress := make(map[string]PhaseProgress, len(rs.phaseProgress))
	for k, v := range rs.phaseProgress {
		progress[k] = v
	}
	return phases, progress
}

// dueForReconcile bumps the since-last-reconcile counter and reports whether
// it has crossed threshold, resetting it if so.
func (rs *runState) dueForReconcile(threshold int) bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.itemsSinceSync++
	if rs.itemsSinceSync >= threshold {
		rs.itemsSinceSync = 0
		return true
	}
	return false
}

// phaseTracker computes the contiguous-completion watermark for one phase's
// work set. Items complete out of
// order under concurrent dispatch, and an item that is PENDING for retry is
// not done — so the watermark only advances through an unbroken prefix of
// terminal (COMPLETED or FAILED) items starting just after the phase's
// resume point. A lower item finishing after a higher one therefore does
// not let the watermark skip past it.
type phaseTracker struct {
	mu        sync.Mutex
	done      map[int]bool
	watermark int
	processed int
	failed    int
}

func newPhaseTracker(startWatermark int) *phaseTracker {
	return &phaseTracker{done: make(map[int]bool), watermark: startWatermark}
}

// markTerminal records that item index idx reached a terminal state for
// this phase pass, and returns the tracker's updated (watermark, processed,
// failed) triple.
func (t *phaseTracker) markTerminal(idx int, isFailure bool) (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.done[idx] = true
	if isFailure {
		t.failed++
	} else {
		t.processed++
	}
	for t.done[t.watermark+1] {
		t.watermark++
		delete(t.done, t.watermark)
	}
	return t.watermark, t.processed, t.failed
}

func (t *phaseTracker) snapshot() (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watermark, t.processed, t.failed
}

// Run drives job jobID through every phase of its JobConfig that has not
// already been marked complete by a prior checkpoint, returning once the job
// either finishes all phases or a cooperative stop is observed. It never
// itself sets the job's status to RUNNING or PENDING; the Job Manager owns
// that transition before calling Run.
func (e *Executor) Run(ctx context.Context, jobID string) (*ExecutionResult, error) {
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	checkpoint := job.Checkpoint
	rs := newRunState(checkpoint)

	opts := job.Config.Options
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = defaultExecutionOptions().Concurrency
	}
	frequency := opts.CheckpointFrequency
	if frequency < 1 {
		frequency = defaultExecutionOptions().CheckpointFrequency
	}

	for _, phase := range job.Config.Phases {
		if checkpoint.phaseCompleted(phase.Name) {
			continue
		}

		cur, err := e.repo.GetJob(ctx, jobID)
		if err != nil {
			return nil, e.fail(ctx, jobID, CodeRepositoryFailure, err)
		}
		if reason := stopReasonFor(cur.Status); reason != notStopped {
			return e.finishStopped(ctx, jobID, reason)
		}

		cur.CurrentPhase = phase.Name
		cur.UpdatedAt = time.Now()
		if err := e.repo.UpdateJob(ctx, cur); err != nil {
			return nil, e.fail(ctx, jobID, CodeRepositoryFailure, err)
		}

		startIndex := checkpoint.resumeIndex(phase.Name)
		items, err := e.repo.ListItems(ctx, jobID)
		if err != nil {
			return nil, e.fail(ctx, jobID, CodeRepositoryFailure, err)
		}
		workSet := itemsAfter(items, startIndex)
		tracker := newPhaseTracker(startIndex)

		stopped, err := e.runPhase(ctx, jobID, phase, workSet, concurrency, frequency, rs, tracker)
		if err != nil {
			return nil, e.fail(ctx, jobID, CodeRepositoryFailure, err)
		}

		if err := e.reconcile(ctx, jobID); err != nil {
			return nil, e.fail(ctx, jobID, CodeReconcileFailure, err)
		}

		if stopped != notStopped {
			return e.finishStopped(ctx, jobID, stopped)
		}

		if err := e.checkpointPhaseBoundary(ctx, jobID, phase.Name, rs, tracker); err != nil {
			return nil, e.fail(ctx, jobID, CodeCheckpointFailure, err)
		}
		rs.markPhaseComplete(phase.Name)
	}

	return e.finishCompleted(ctx, jobID)
}

// runPhase dispatches workSet in chunks of itemChunkSize, each chunk fanned
// out under a fresh Semaphore of concurrency permits and joined with a
// WaitGroup before the next chunk starts. An item that fails with retries
// remaining returns PENDING rather than terminal; runPhase
// re-sweeps the phase's item set for any such PENDING items after every full
// pass, so that a phase is only considered complete — and eligible to be
// recorded in CompletedPhases — once every item has reached COMPLETED or
// FAILED. This keeps retries within the current Run call rather than leaving a
// phase half-finished.
func (e *Executor) runPhase(ctx context.Context, jobID string, phase PhaseConfig, workSet []*Item, concurrency, frequency int, rs *runState, tracker *phaseTracker) (StopReason, error) {
	pending := workSet
	for len(pending) > 0 {
		stopped, err := e.dispatchChunks(ctx, jobID, phase, pending, concurrency, rs, tracker, frequency)
		if err != nil || stopped != notStopped {
			return stopped, err
		}

		next, err := e.stillPending(ctx, jobID, pending)
		if err != nil {
			return notStopped, err
		}
		pending = next
	}
	return notStopped, nil
}

// dispatchChunks fans work out in chunks of itemChunkSize, each chunk under
// a fresh Semaphore of concurrency permits, joined with a WaitGroup before
// the next chunk starts.
func (e *Executor) dispatchChunks(ctx context.Context, jobID string, phase PhaseConfig, work []*Item, concurrency int, rs *runState, tracker *phaseTracker, frequency int) (StopReason, error) {
	for _, chunk := range chunkItems(work, itemChunkSize) {
		sem := NewSemaphore(concurrency)
		var wg sync.WaitGroup
		var mu sync.Mutex
		var stopped StopReason
		var fatalErr error

		for _, item := range chunk {
			item := item
			wg.Add(1)
			go func() {
				defer wg.Done()
				reason, err := e.runItem(ctx, jobID, item, phase, sem, rs, tracker, frequency)
				if err != nil {
					mu.Lock()
					if fatalErr == nil {
						fatalErr = err
					}
					mu.Unlock()
					return
				}
				if reason != notStopped {
					mu.Lock()
					if stopped == notStopped {
						stopped = reason
					}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if fatalErr != nil {
			return notStopped, fatalErr
		}
		if stopped != notStopped {
			return stopped, nil
		}
	}
	return notStopped, nil
}

// stillPending re-reads candidates from the repository and returns those
// still ItemPending — items retried during the pass just finished, whose
// next attempt this phase pass must still give them before it can complete.
func (e *Executor) stillPending(ctx context.Context, jobID string, candidates []*Item) ([]*Item, error) {
	var out []*Item
	for _, c := range candidates {
		cur, err := e.repo.GetItem(ctx, jobID, c.ItemIndex)
		if err != nil {
			return nil, err
		}
		if cur.Status == ItemPending {
			out = append(out, cur)
		}
	}
	return out, nil
}

// runItem executes the per-item task: acquire a
// permit, re-read the job's status as a cancellation gate, process the item
// through phase, and handle success, retry, or dead-lettering.
func (e *Executor) runItem(ctx context.Context, jobID string, item *Item, phase PhaseConfig, sem *Semaphore, rs *runState, tracker *phaseTracker, frequency int) (StopReason, error) {
	var stopped StopReason

	permitErr := sem.WithPermit(ctx, func() error {
		n := atomic.AddInt64(&e.activeWorkers, 1)
		e.metrics.SetActiveWorkers(int(n))
		defer func() {
			n := atomic.AddInt64(&e.activeWorkers, -1)
			e.metrics.SetActiveWorkers(int(n))
		}()

		cur, err := e.repo.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		if reason := stopReasonFor(cur.Status); reason != notStopped {
			stopped = reason
			return nil
		}

		now := time.Now()
		item.Status = ItemProcessing
		item.CurrentPhase = phase.Name
		item.StartedAt = &now
		if err := e.repo.UpdateItem(ctx, item); err != nil {
			return err
		}

		// The first phase an item passes through consumes its original
		// Input; every later phase consumes the previous phase's Output.
		input := item.Input
		if len(item.PhaseOutputs) > 0 {
			input = item.Output
		}

		itemCtx, cancel := context.WithTimeout(ctx, e.itemTimeout)
		defer cancel()

		start := time.Now()
		result, procErr := e.processor.Process(itemCtx, input, phase)
		elapsed := time.Since(start)

		if procErr == nil {
			return e.completeItem(ctx, jobID, item, phase, result, elapsed, rs, tracker, frequency)
		}
		timedOut := errors.Is(itemCtx.Err(), context.DeadlineExceeded)
		return e.failItem(ctx, jobID, item, phase, &ProcessingError{Phase: phase.Name, Timeout: timedOut, Cause: procErr}, elapsed, rs, tracker, frequency)
	})

	if permitErr != nil {
		// Acquisition (or the work inside WithPermit) was aborted. If the
		// job was concurrently paused or cancelled, that is the real
		// reason; only report a fatal error if it was not.
		if cur, gerr := e.repo.GetJob(context.Background(), jobID); gerr == nil {
			if reason := stopReasonFor(cur.Status); reason != notStopped {
				return reason, nil
			}
		}
		return notStopped, permitErr
	}
	return stopped, nil
}

// completeItem records a successful Processor invocation on item and runs
// the post-item bookkeeping (checkpoint predicate, periodic reconciliation).
func (e *Executor) completeItem(ctx context.Context, jobID string, item *Item, phase PhaseConfig, result ProcessResult, elapsed time.Duration, rs *runState, tracker *phaseTracker, frequency int) error {
	completedAt := time.Now()
	item.Status = ItemCompleted
	item.Output = result.Output
	if item.PhaseOutputs == nil {
		item.PhaseOutputs = make(map[string][]byte)
	}
	item.PhaseOutputs[phase.Name] = result.Output
	item.Accounting.CostIncurred += result.Cost
	item.Accounting.TokensUsed += result.Tokens
	item.ProcessingTimeMs = elapsed.Milliseconds()
	item.CompletedAt = &completedAt
	if err := e.repo.UpdateItem(ctx, item); err != nil {
		return err
	}

	e.metrics.RecordItemLatency(jobID, phase.Name, elapsed, "success")
	e.emitEvent(jobID, item.ItemIndex, phase.Name, "item_complete", nil)

	watermark, processed, failed := tracker.markTerminal(item.ItemIndex, false)
	return e.postItemSync(ctx, jobID, phase.Name, rs, frequency, watermark, processed, failed)
}

// failItem applies the retry/dead-letter policy to a failed
// Processor invocation.
func (e *Executor) failItem(ctx context.Context, jobID string, item *Item, phase PhaseConfig, procErr *ProcessingError, elapsed time.Duration, rs *runState, tracker *phaseTracker, frequency int) error {
	status := "error"
	if procErr.Timeout {
		status = "timeout"
	}
	e.metrics.RecordItemLatency(jobID, phase.Name, elapsed, status)

	retry := phase.Retry.resolve()
	attempt := item.RetryCount

	if attempt < retry.MaxRetries {
		delay := computeRetryDelay(attempt, retry.Backoff)
		item.Errors = append(item.Errors, ItemError{
			Phase:        phase.Name,
			Error:        procErr.Error(),
			Timestamp:    time.Now(),
			RetryAttempt: attempt + 1,
		})
		item.Status = ItemPending
		item.RetryCount = attempt + 1
		item.StartedAt = nil
		if err := e.repo.UpdateItem(ctx, item); err != nil {
			return err
		}

		e.metrics.IncrementRetries(jobID, phase.Name)
		e.emitEvent(jobID, item.ItemIndex, phase.Name, "item_retry", map[string]interface{}{
			"error":       procErr.Error(),
			"retry_count": item.RetryCount,
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
		return nil
	}

	completedAt := time.Now()
	item.Errors = append(item.Errors, ItemError{
		Phase:        phase.Name,
		Error:        procErr.Error(),
		Timestamp:    completedAt,
		RetryAttempt: attempt + 1,
		DeadLetter:   true,
	})
	item.Status = ItemFailed
	item.CompletedAt = &completedAt
	if err := e.repo.UpdateItem(ctx, item); err != nil {
		return err
	}

	e.metrics.IncrementDeadLetters(jobID, phase.Name)
	e.emitEvent(jobID, item.ItemIndex, phase.Name, "item_dead_letter", map[string]interface{}{"error": procErr.Error()})

	watermark, processed, failed := tracker.markTerminal(item.ItemIndex, true)
	return e.postItemSync(ctx, jobID, phase.Name, rs, frequency, watermark, processed, failed)
}

// postItemSync runs after every item that reaches a terminal state: it
// updates the run's phase-progress bookkeeping, periodically reconciles
// analytics, and writes a checkpoint when the count-or-time predicate fires.
func (e *Executor) postItemSync(ctx context.Context, jobID, phaseName string, rs *runState, frequency, watermark, processed, failed int) error {
	if rs.dueForReconcile(e.reconcileEvery) {
		if err := e.reconcile(ctx, jobID); err != nil {
			return err
		}
	}
	return e.maybeCheckpoint(ctx, jobID, phaseName, rs, watermark, processed, failed, frequency)
}

// maybeCheckpoint evaluates the checkpoint predicate and, if it fires,
// reconciles analytics and writes a fresh CheckpointSnapshot.
func (e *Executor) maybeCheckpoint(ctx context.Context, jobID, phaseName string, rs *runState, watermark, processed, failed, frequency int) error {
	rs.updateProgress(phaseName, PhaseProgress{LastCompletedIndex: watermark, ItemsProcessed: processed, ItemsFailed: failed})

	now := time.Now()
	rs.checkpointMu.Lock()
	due := rs.clock.shouldCheckpoint(now, watermark, frequency)
	if due {
		rs.clock.record(now, watermark)
	}
	rs.checkpointMu.Unlock()
	if !due {
		return nil
	}

	if err := e.reconcile(ctx, jobID); err != nil {
		return err
	}
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	phases, progress := rs.snapshotProgress()
	snap := CheckpointSnapshot{
		CurrentPhase:           phaseName,
		CompletedPhases:        phases,
		LastCompletedItemIndex: watermark,
		TotalItems:             job.TotalItems,
		CompletedItems:         job.CompletedItems,
		FailedItems:            job.FailedItems,
		Accounting:             job.Accounting,
		PhaseProgress:          progress,
	}
	if err := e.checkpoints.Save(ctx, jobID, snap, now); err != nil {
		return err
	}
	e.metrics.IncrementCheckpoints(jobID, "count_or_time")
	e.emitEvent(jobID, -1, phaseName, "checkpoint_saved", map[string]interface{}{"last_completed_item_index": watermark})
	return nil
}

// checkpointPhaseBoundary writes an unconditional checkpoint at the end of a
// phase, so a crash between phases never re-executes a completed phase on
// resume.
func (e *Executor) checkpointPhaseBoundary(ctx context.Context, jobID, phaseName string, rs *runState, tracker *phaseTracker) error {
	watermark, processed, failed := tracker.snapshot()
	rs.updateProgress(phaseName, PhaseProgress{LastCompletedIndex: watermark, ItemsProcessed: processed, ItemsFailed: failed})

	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	phases, progress := rs.snapshotProgress()
	// phases does not yet include phaseName; markPhaseComplete runs after
	// this call succeeds, so include it explicitly in the persisted list.
	phases = append(phases, phaseName)
	now := time.Now()
	snap := CheckpointSnapshot{
		CurrentPhase:           phaseName,
		CompletedPhases:        phases,
		LastCompletedItemIndex: watermark,
		TotalItems:             job.TotalItems,
		CompletedItems:         job.CompletedItems,
		FailedItems:            job.FailedItems,
		Accounting:             job.Accounting,
		PhaseProgress:          progress,
	}
	if err := e.checkpoints.Save(ctx, jobID, snap, now); err != nil {
		return err
	}
	rs.checkpointMu.Lock()
	rs.clock.record(now, watermark)
	rs.checkpointMu.Unlock()
	e.metrics.IncrementCheckpoints(jobID, "phase_boundary")
	e.emitEvent(jobID, -1, phaseName, "phase_complete", nil)
	return nil
}

// reconcile recomputes Job.CompletedItems, Job.FailedItems, and
// Job.Accounting from the authoritative Item rows and replaces (never
// increments) the Job's aggregate fields. Recomputing
// instead of incrementing avoids write races between concurrently completing
// item tasks: whichever reconciliation runs last always recomputes the
// correct total from source rows, rather than compounding a race on a
// read-modify-write counter.
func (e *Executor) reconcile(ctx context.Context, jobID string) error {
	items, err := e.repo.ListItems(ctx, jobID)
	if err != nil {
		return err
	}
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}

	var completed, failed int
	var acc Accounting
	for _, it := range items {
		switch it.Status {
		case ItemCompleted:
			completed++
		case ItemFailed:
			failed++
		}
		acc.CostIncurred += it.Accounting.CostIncurred
		acc.TokensUsed += it.Accounting.TokensUsed
	}

	job.CompletedItems = completed
	job.FailedItems = failed
	job.Accounting = acc
	job.UpdatedAt = time.Now()
	return e.repo.UpdateJob(ctx, job)
}

// finishStopped returns the result for a phase loop unwound by a
// cooperative stop. The job's status was already set by the control
// operation that triggered the stop (pause/cancel); the Executor never
// overwrites it.
func (e *Executor) finishStopped(ctx context.Context, jobID string, reason StopReason) (*ExecutionResult, error) {
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	e.emitEvent(jobID, -1, "", "run_stopped", map[string]interface{}{"reason": reason.String()})
	return &ExecutionResult{JobID: jobID, Status: job.Status, Stopped: reason}, nil
}

// finishCompleted transitions a job whose every phase finished without a
// stop to COMPLETED and clears its checkpoint.
func (e *Executor) finishCompleted(ctx context.Context, jobID string) (*ExecutionResult, error) {
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.UpdatedAt = now
	job.CurrentPhase = ""
	if err := e.repo.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	if err := e.checkpoints.Clear(ctx, jobID); err != nil {
		return nil, err
	}
	e.emitEvent(jobID, -1, "", "run_completed", nil)
	return &ExecutionResult{JobID: jobID, Status: StatusCompleted, Stopped: notStopped}, nil
}

// fail transitions a job to FAILED after an uncaught engine error. The
// checkpoint is retained so a later resume can pick back up, unlike the
// clean sweep on COMPLETED.
func (e *Executor) fail(ctx context.Context, jobID, code string, cause error) error {
	engErr := &EngineError{JobID: jobID, Code: code, Cause: cause}
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return engErr
	}
	now := time.Now()
	job.Status = StatusFailed
	job.LastError = engErr.Error()
	job.UpdatedAt = now
	_ = e.repo.UpdateJob(ctx, job)
	e.emitEvent(jobID, -1, job.CurrentPhase, "run_failed", map[string]interface{}{"error": engErr.Error()})
	return engErr
}

func (e *Executor) emitEvent(jobID string, itemIndex int, phase, msg string, meta map[string]interface{}) {
	e.emitter.Emit(emit.Event{JobID: jobID, ItemIndex: itemIndex, Phase: phase, Msg: msg, Meta: meta})
}

// itemsAfter returns the items in items whose ItemIndex is greater than
// afterIndex, preserving order. items must already be sorted by ItemIndex
// (Repository.ListItems guarantees this).
func itemsAfter(items []*Item, afterIndex int) []*Item {
	out := make([]*Item, 0, len(items))
	for _, it := range items {
		if it.ItemIndex > afterIndex {
			out = append(out, it)
		}
	}
	return out
}

// chunkItems splits items into consecutive slices of at most size length.
func chunkItems(items []*Item, size int) [][]*Item {
	if size < 1 {
		size = len(items)
	}
	var chunks [][]*Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

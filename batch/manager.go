package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/batchforge/batchengine/batch/emit"
	"github.com/google/uuid"
)

// JobDefinition is the external surface's create() payload. Concurrency and CheckpointFrequency of 0 mean "use the Manager's
// configured default"; AutoStart of nil means "default to true" — both
// distinguish "not specified" from an explicit override without requiring
// the persisted ExecutionOptions to carry optional/pointer fields.
type JobDefinition struct {
	Name    string
	GroupID string
	UserID  string

	Items  [][]byte
	Phases []PhaseConfig

	Concurrency         int
	CheckpointFrequency int
	AutoStart           *bool
}

// StatusProjection is the Job Manager's status() response.
type StatusProjection struct {
	JobID        string
	Name         string
	Status       Status
	CurrentPhase string

	TotalItems      int
	CompletedItems  int
	FailedItems     int
	PercentComplete float64

	EstimatedTimeRemaining *time.Duration

	Accounting Accounting

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time

	LastError string
}

// PhaseCost is one phase's summed cost over the items that have passed
// through it.
type PhaseCost struct {
	Phase string
	Total float64
}

// PhaseTokens is one phase's summed token usage over the items that have
// passed through it.
type PhaseTokens struct {
	Phase string
	Total int64
}

// PhasePerformance is one phase's average per-item processing time.
type PhasePerformance struct {
	Phase               string
	AvgProcessingTimeMs float64
}

// OverallAnalytics summarizes item counts and outcome rate.
type OverallAnalytics struct {
	TotalItems     int
	CompletedItems int
	FailedItems    int
	SuccessRate    float64
}

// CostAnalytics summarizes cost across the job and per phase.
type CostAnalytics struct {
	Total   float64
	PerItem float64
	ByPhase []PhaseCost
}

// TokensAnalytics summarizes token usage across the job and per phase.
type TokensAnalytics struct {
	Total   int64
	PerItem float64
	ByPhase []PhaseTokens
}

// PerformanceAnalytics summarizes per-item processing time.
type PerformanceAnalytics struct {
	AvgProcessingTimeMs float64
	ByPhase             []PhasePerformance
}

// AnalyticsReport is the Job Manager's analytics() response.
type AnalyticsReport struct {
	Overall     OverallAnalytics
	Cost        CostAnalytics
	Tokens      TokensAnalytics
	Performance PerformanceAnalytics
}

// Manager is the Job Manager: the external control surface over Job
// lifecycle. It owns an in-process registry of the background execution
// tasks it has spawned, keyed by job id, so cancel() can abort an in-flight
// run promptly rather than waiting for the Executor's next cooperative
// gate. Control operations (pause/cancel) need to reach an execution
// already running in the background rather than being called before it
// starts.
type Manager struct {
	repo        Repository
	checkpoints *CheckpointStore
	processor   Processor
	cfg         managerConfig

	mu    sync.Mutex
	tasks map[string]context.CancelFunc
}

// NewManager builds a Manager over repo, driving every job's execution with
// processor. Options configure defaults and observability; see WithEmitter,
// WithMetrics, WithDefaultConcurrency, WithDefaultCheckpointFrequency,
// WithItemTimeout, and WithReconcileEvery.
func NewManager(repo Repository, processor Processor, opts ...Option) (*Manager, error) {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	return &Manager{
		repo:        repo,
		checkpoints: NewCheckpointStore(repo),
		processor:   processor,
		cfg:         cfg,
		tasks:       make(map[string]context.CancelFunc),
	}, nil
}

// Create validates def, persists a PENDING job with one Item per input, and,
// if AutoStart resolves to true, starts execution asynchronously. A failure
// to start never propagates to the caller — it is only reported through the
// configured emitter.
func (m *Manager) Create(ctx context.Context, def JobDefinition) (string, error) {
	if err := validateJobDefinition(def); err != nil {
		return "", err
	}

	concurrency := def.Concurrency
	if concurrency == 0 {
		concurrency = m.cfg.defaultConcurrency
	}
	frequency := def.CheckpointFrequency
	if frequency == 0 {
		frequency = m.cfg.defaultCheckpointFrequency
	}
	autoStart := true
	if def.AutoStart != nil {
		autoStart = *def.AutoStart
	}

	id := uuid.NewString()
	now := time.Now()
	job := &Job{
		ID:      id,
		Name:    def.Name,
		GroupID: def.GroupID,
		UserID:  def.UserID,
		Status:  StatusPending,
		Config: JobConfig{
			Phases: def.Phases,
			Options: ExecutionOptions{
				Concurrency:         concurrency,
				CheckpointFrequency: frequency,
				AutoStart:           autoStart,
			},
		},
		TotalItems: len(def.Items),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	items := make([]*Item, len(def.Items))
	for i, input := range def.Items {
		items[i] = NewItem(id, i, input)
	}

	if err := m.repo.CreateJob(ctx, job, items); err != nil {
		return "", err
	}

	if autoStart {
		if _, err := m.transitionToRunning(ctx, id); err != nil {
			m.cfg.emitter.Emit(emit.Event{JobID: id, Msg: "autostart_failed", Meta: map[string]interface{}{"error": err.Error()}})
			return id, nil
		}
		m.spawn(id)
	}
	return id, nil
}

// Status returns the current StatusProjection for jobID.
func (m *Manager) Status(ctx context.Context, jobID string) (*StatusProjection, error) {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	proj := &StatusProjection{
		JobID:           job.ID,
		Name:            job.Name,
		Status:          job.Status,
		CurrentPhase:    job.CurrentPhase,
		TotalItems:      job.TotalItems,
		CompletedItems:  job.CompletedItems,
		FailedItems:     job.FailedItems,
		PercentComplete: job.PercentComplete(),
		Accounting:      job.Accounting,
		CreatedAt:       job.CreatedAt,
		StartedAt:       job.StartedAt,
		CompletedAt:     job.CompletedAt,
		LastError:       job.LastError,
	}
	if d, ok := job.EstimatedTimeRemaining(time.Now()); ok {
		proj.EstimatedTimeRemaining = &d
	}
	return proj, nil
}

// Results returns jobID's items ordered by ItemIndex.
func (m *Manager) Results(ctx context.Context, jobID string) ([]*Item, error) {
	if _, err := m.repo.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return m.repo.ListItems(ctx, jobID)
}

// Analytics computes the AnalyticsReport for jobID: overall
// counts, and cost/token/performance aggregates both for the whole job and
// per phase, the latter computed by filtering items whose phaseOutputs
// contains that phase's name.
func (m *Manager) Analytics(ctx context.Context, jobID string) (*AnalyticsReport, error) {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	items, err := m.repo.ListItems(ctx, jobID)
	if err != nil {
		return nil, err
	}

	report := &AnalyticsReport{
		Overall: OverallAnalytics{
			TotalItems:     job.TotalItems,
			CompletedItems: job.CompletedItems,
			FailedItems:    job.FailedItems,
		},
	}
	if job.TotalItems > 0 {
		report.Overall.SuccessRate = float64(job.CompletedItems) / float64(job.TotalItems)
	}

	var totalCost float64
	var totalTokens int64
	var totalProcessingMs float64
	var processingSamples int
	for _, it := range items {
		totalCost += it.Accounting.CostIncurred
		totalTokens += it.Accounting.TokensUsed
		if it.Status == ItemCompleted {
			totalProcessingMs += float64(it.ProcessingTimeMs)
			processingSamples++
		}
	}
	report.Cost.Total = totalCost
	report.Tokens.Total = totalTokens
	if job.CompletedItems > 0 {
		report.Cost.PerItem = totalCost / float64(job.CompletedItems)
		report.Tokens.PerItem = float64(totalTokens) / float64(job.CompletedItems)
	}
	if processingSamples > 0 {
		report.Performance.AvgProcessingTimeMs = totalProcessingMs / float64(processingSamples)
	}

	for _, phase := range job.Config.Phases {
		var phaseCost float64
		var phaseTokens int64
		var phaseMs float64
		var phaseSamples int
		for _, it := range items {
			if _, ok := it.PhaseOutputs[phase.Name]; !ok {
				continue
			}
			phaseCost += it.Accounting.CostIncurred
			phaseTokens += it.Accounting.TokensUsed
			phaseMs += float64(it.ProcessingTimeMs)
			phaseSamples++
		}
		report.Cost.ByPhase = append(report.Cost.ByPhase, PhaseCost{Phase: phase.Name, Total: phaseCost})
		report.Tokens.ByPhase = append(report.Tokens.ByPhase, PhaseTokens{Phase: phase.Name, Total: phaseTokens})
		avg := 0.0
		if phaseSamples > 0 {
			avg = phaseMs / float64(phaseSamples)
		}
		report.Performance.ByPhase = append(report.Performance.ByPhase, PhasePerformance{Phase: phase.Name, AvgProcessingTimeMs: avg})
	}

	return report, nil
}

// List returns a page of jobs matching filter, clamping Limit to [1, 100]
// (default 20) and Offset to ≥0.
func (m *Manager) List(ctx context.Context, filter JobFilter) ([]*Job, bool, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return m.repo.ListJobs(ctx, filter)
}

// Resume restarts execution of a FAILED or PAUSED job. If the
// job carries no checkpoint, execution restarts from phase 0 item 0 and a
// warning event is emitted.
func (m *Manager) Resume(ctx context.Context, jobID string) error {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusFailed && job.Status != StatusPaused {
		return &IllegalStateError{JobID: jobID, Status: job.Status, Op: "resume", Message: "job must be FAILED or PAUSED to resume"}
	}
	noCheckpoint := job.Checkpoint == nil

	if _, err := m.transitionToRunning(ctx, jobID); err != nil {
		return err
	}
	if noCheckpoint {
		m.cfg.emitter.Emit(emit.Event{JobID: jobID, Msg: "resume_without_checkpoint", Meta: map[string]interface{}{
			"warning": "no checkpoint found; execution restarts from phase 0 item 0",
		}})
	}
	m.spawn(jobID)
	return nil
}

// Start begins execution of a PENDING, PAUSED, or FAILED job that is not
// already running.
func (m *Manager) Start(ctx context.Context, jobID string) error {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusPending && job.Status != StatusPaused && job.Status != StatusFailed {
		return &IllegalStateError{JobID: jobID, Status: job.Status, Op: "start", Message: "job must be PENDING, PAUSED, or FAILED to start"}
	}
	if _, err := m.transitionToRunning(ctx, jobID); err != nil {
		return err
	}
	m.spawn(jobID)
	return nil
}

// Pause marks a RUNNING job PAUSED. It does not abort in-flight items — the
// Executor observes the transition at its next cooperative gate and lets
// them finish naturally.
func (m *Manager) Pause(ctx context.Context, jobID string) error {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != StatusRunning {
		return &IllegalStateError{JobID: jobID, Status: job.Status, Op: "pause", Message: "job must be RUNNING to pause"}
	}
	job.Status = StatusPaused
	job.UpdatedAt = time.Now()
	return m.repo.UpdateJob(ctx, job)
}

// Cancel marks a non-terminal job CANCELLED and aborts its in-flight
// execution task's context, so Processor invocations already underway are
// signalled to stop promptly rather than finishing naturally.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == StatusCompleted || job.Status == StatusCancelled {
		return &IllegalStateError{JobID: jobID, Status: job.Status, Op: "cancel", Message: "job is already terminal"}
	}
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.UpdatedAt = now
	if err := m.repo.UpdateJob(ctx, job); err != nil {
		return err
	}
	m.cancelTask(jobID)
	return nil
}

// Delete removes a job and all of its items. Forbidden while RUNNING.
func (m *Manager) Delete(ctx context.Context, jobID string) error {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status == StatusRunning {
		return &IllegalStateError{JobID: jobID, Status: job.Status, Op: "delete", Message: "cannot delete a RUNNING job"}
	}
	return m.repo.DeleteJob(ctx, jobID)
}

// CleanupCheckpoints nulls checkpoints on terminal jobs older than olderThanDays
//, optionally restricted to statusFilter, returning the count
// cleaned.
func (m *Manager) CleanupCheckpoints(ctx context.Context, olderThanDays int, statusFilter *Status) (int, error) {
	return m.checkpoints.CleanupOlderThan(ctx, olderThanDays, statusFilter, time.Now())
}

// transitionToRunning moves a job to RUNNING, stamping StartedAt the first
// time it ever runs and clearing any previous error.
func (m *Manager) transitionToRunning(ctx context.Context, jobID string) (*Job, error) {
	job, err := m.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	job.Status = StatusRunning
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.LastError = ""
	job.UpdatedAt = now
	if err := m.repo.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// spawn launches jobID's Executor.Run on a background goroutine tracked in
// the task registry, so Cancel can reach it. The goroutine's own errors are
// only reported through the emitter; spawn itself never blocks the caller.
func (m *Manager) spawn(jobID string) {
	runCtx, cancel := context.WithCancel(context.Background())
	m.registerTask(jobID, cancel)

	go func() {
		defer m.unregisterTask(jobID)
		exec := NewExecutor(m.repo, m.checkpoints, m.processor, m.cfg.emitter, m.cfg.metrics, m.cfg.itemTimeout, m.cfg.reconcileEvery)
		if _, err := exec.Run(runCtx, jobID); err != nil {
			m.cfg.emitter.Emit(emit.Event{JobID: jobID, Msg: "run_error", Meta: map[string]interface{}{"error": err.Error()}})
		}
	}()
}

func (m *Manager) registerTask(jobID string, cancel context.CancelFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[jobID] = cancel
}

func (m *Manager) unregisterTask(jobID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, jobID)
}

func (m *Manager) cancelTask(jobID string) {
	m.mu.Lock()
	cancel, ok := m.tasks[jobID]
	m.mu.Unlock()
	if ok {
		cancel()
	}
}

// validateJobDefinition is the authoritative input validation for a
// submitted job: field bounds any caller must satisfy before Create will
// persist a Job.
func validateJobDefinition(def JobDefinition) error {
	if l := len(def.Name); l < 1 || l > 200 {
		return &ValidationError{Field: "name", Message: "must be 1-200 characters"}
	}
	if n := len(def.Items); n < 1 || n > 10000 {
		return &ValidationError{Field: "items", Message: "must contain 1-10000 entries"}
	}
	for i, item := range def.Items {
		if l := len(item); l < 1 || l > 100000 {
			return &ValidationError{Field: fmt.Sprintf("items[%d]", i), Message: "input must be 1-100000 bytes"}
		}
	}
	if n := len(def.Phases); n < 1 || n > 10 {
		return &ValidationError{Field: "phases", Message: "must contain 1-10 entries"}
	}
	for i, phase := range def.Phases {
		if phase.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("phases[%d].name", i), Message: "must not be empty"}
		}
		if phase.Validation != nil && (phase.Validation.MinScore < 0 || phase.Validation.MinScore > 10) {
			return &ValidationError{Field: fmt.Sprintf("phases[%d].validation.minScore", i), Message: "must be in [0,10]"}
		}
		if err := phase.Retry.Validate(); err != nil {
			return &ValidationError{Field: fmt.Sprintf("phases[%d].retry", i), Message: err.Error()}
		}
	}
	if def.Concurrency != 0 && (def.Concurrency < 1 || def.Concurrency > 50) {
		return &ValidationError{Field: "concurrency", Message: "must be 1-50"}
	}
	if def.CheckpointFrequency != 0 && (def.CheckpointFrequency < 1 || def.CheckpointFrequency > 100) {
		return &ValidationError{Field: "checkpoint_frequency", Message: "must be 1-100"}
	}
	return nil
}

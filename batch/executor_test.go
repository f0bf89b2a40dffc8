package batch_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/batchforge/batchengine/batch"
	"github.com/batchforge/batchengine/batch/store"
)

func newTestJob(t *testing.T, repo batch.Repository, phases []batch.PhaseConfig, n int) string {
	t.Helper()
	jobID := fmt.Sprintf("job-%p", t)
	job := &batch.Job{
		ID:         jobID,
		Name:       "test",
		Status:     batch.StatusRunning,
		Config:     batch.JobConfig{Phases: phases, Options: batch.ExecutionOptions{Concurrency: 4, CheckpointFrequency: 2}},
		TotalItems: n,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	now := time.Now()
	job.StartedAt = &now
	items := make([]*batch.Item, n)
	for i := 0; i < n; i++ {
		items[i] = batch.NewItem(jobID, i, []byte(fmt.Sprintf("item-%d", i)))
	}
	if err := repo.CreateJob(context.Background(), job, items); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return jobID
}

// echoProcessor returns its input unchanged and never fails; Process does
// not read failFirst.
type echoProcessor struct {
	failFirst map[int]int
}

func (p *echoProcessor) Process(ctx context.Context, input []byte, phase batch.PhaseConfig) (batch.ProcessResult, error) {
	return batch.ProcessResult{Output: input, Cost: 0.01, Tokens: 2}, nil
}

func TestExecutorRunSinglePhaseCompletes(t *testing.T) {
	repo := store.NewMemoryRepository()
	phases := []batch.PhaseConfig{{Name: "extract"}}
	jobID := newTestJob(t, repo, phases, 5)

	exec := batch.NewExecutor(repo, batch.NewCheckpointStore(repo), &echoProcessor{}, nil, nil, time.Second, 2)
	result, err := exec.Run(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != batch.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}

	job, err := repo.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.CompletedItems != 5 {
		t.Errorf("expected 5 completed items, got %d", job.CompletedItems)
	}
	if job.Checkpoint != nil {
		t.Errorf("expected checkpoint cleared on completion, got %+v", job.Checkpoint)
	}

	items, err := repo.ListItems(context.Background(), jobID)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	for _, it := range items {
		if it.Status != batch.ItemCompleted {
			t.Errorf("item %d: expected COMPLETED, got %s", it.ItemIndex, it.Status)
		}
		if string(it.Output) != fmt.Sprintf("item-%d", it.ItemIndex) {
			t.Errorf("item %d: unexpected output %q", it.ItemIndex, it.Output)
		}
	}
}

func TestExecutorRunMultiPhaseChainsOutput(t *testing.T) {
	repo := store.NewMemoryRepository()
	phases := []batch.PhaseConfig{{Name: "extract"}, {Name: "summarize"}}
	jobID := newTestJob(t, repo, phases, 3)

	exec := batch.NewExecutor(repo, batch.NewCheckpointStore(repo), &echoProcessor{}, nil, nil, time.Second, 10)
	result, err := exec.Run(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != batch.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}

	items, _ := repo.ListItems(context.Background(), jobID)
	for _, it := range items {
		if len(it.PhaseOutputs) != 2 {
			t.Errorf("item %d: expected 2 phase outputs, got %d", it.ItemIndex, len(it.PhaseOutputs))
		}
	}
}

// alwaysFailProcessor fails every invocation with a non-timeout error.
type alwaysFailProcessor struct{}

func (alwaysFailProcessor) Process(ctx context.Context, input []byte, phase batch.PhaseConfig) (batch.ProcessResult, error) {
	return batch.ProcessResult{}, errors.New("boom")
}

func TestExecutorDeadLettersAfterRetriesExhausted(t *testing.T) {
	repo := store.NewMemoryRepository()
	phases := []batch.PhaseConfig{{Name: "extract", Retry: batch.RetryStrategy{MaxRetries: 1, Backoff: batch.BackoffConstant}}}
	jobID := newTestJob(t, repo, phases, 1)

	exec := batch.NewExecutor(repo, batch.NewCheckpointStore(repo), alwaysFailProcessor{}, nil, nil, time.Second, 10)

	// computeRetryDelay uses a 1s base; run with a background context and a
	// short per-test deadline to bound wall time across retries.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := exec.Run(ctx, jobID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != batch.StatusCompleted {
		t.Fatalf("expected COMPLETED (phase loop finishes even with failed items), got %s", result.Status)
	}

	job, _ := repo.GetJob(context.Background(), jobID)
	if job.FailedItems != 1 {
		t.Errorf("expected 1 failed item, got %d", job.FailedItems)
	}

	item, err := repo.GetItem(context.Background(), jobID, 0)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.Status != batch.ItemFailed {
		t.Errorf("expected item FAILED, got %s", item.Status)
	}
	found := false
	for _, e := range item.Errors {
		if e.DeadLetter {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a dead-letter error record, got %+v", item.Errors)
	}
}

func TestExecutorStopsOnPause(t *testing.T) {
	repo := store.NewMemoryRepository()
	phases := []batch.PhaseConfig{{Name: "extract"}}
	jobID := newTestJob(t, repo, phases, 1)

	job, _ := repo.GetJob(context.Background(), jobID)
	job.Status = batch.StatusPaused
	if err := repo.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}

	exec := batch.NewExecutor(repo, batch.NewCheckpointStore(repo), &echoProcessor{}, nil, nil, time.Second, 10)
	result, err := exec.Run(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != batch.StatusPaused {
		t.Errorf("expected PAUSED, got %s", result.Status)
	}
}

func TestExecutorResumesFromCheckpointSkipsCompletedPhase(t *testing.T) {
	repo := store.NewMemoryRepository()
	phases := []batch.PhaseConfig{{Name: "extract"}, {Name: "summarize"}}
	jobID := newTestJob(t, repo, phases, 2)

	job, _ := repo.GetJob(context.Background(), jobID)
	job.Checkpoint = &batch.CheckpointSnapshot{
		CompletedPhases:        []string{"extract"},
		LastCompletedItemIndex: 1,
		TotalItems:             2,
	}
	if err := repo.UpdateJob(context.Background(), job); err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	// Mark phase-one outputs as if "extract" already ran, so "summarize"'s
	// input resolution (which consumes Output) has something to read.
	for i := 0; i < 2; i++ {
		it, _ := repo.GetItem(context.Background(), jobID, i)
		it.Status = batch.ItemCompleted
		it.Output = []byte("extracted")
		it.PhaseOutputs = map[string][]byte{"extract": []byte("extracted")}
		if err := repo.UpdateItem(context.Background(), it); err != nil {
			t.Fatalf("UpdateItem: %v", err)
		}
	}

	exec := batch.NewExecutor(repo, batch.NewCheckpointStore(repo), &echoProcessor{}, nil, nil, time.Second, 10)
	result, err := exec.Run(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Status != batch.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}

	items, _ := repo.ListItems(context.Background(), jobID)
	for _, it := range items {
		if string(it.PhaseOutputs["summarize"]) != "extracted" {
			t.Errorf("item %d: expected summarize phase to consume extract's output, got %q", it.ItemIndex, it.PhaseOutputs["summarize"])
		}
	}
}

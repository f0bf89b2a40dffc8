package store

import (
	"context"
	"errors"
	"testing"

	"github.com/batchforge/batchengine/batch"
)

func newTestJob(id string) (*batch.Job, []*batch.Item) {
	job := &batch.Job{
		ID:      id,
		Name:    "test-job",
		GroupID: "group-1",
		UserID:  "user-1",
		Status:  batch.StatusPending,
		Config: batch.JobConfig{
			Phases: []batch.PhaseConfig{{Name: "extract"}},
		},
		TotalItems: 2,
	}
	items := []*batch.Item{
		batch.NewItem(id, 0, []byte("input-0")),
		batch.NewItem(id, 1, []byte("input-1")),
	}
	return job, items
}

func TestMemoryRepository_Construction(t *testing.T) {
	t.Run("construct with NewMemoryRepository", func(t *testing.T) {
		repo := NewMemoryRepository()
		if repo == nil {
			t.Fatal("NewMemoryRepository returned nil")
		}
		var _ batch.Repository = repo
	})

	t.Run("new repository is empty", func(t *testing.T) {
		repo := NewMemoryRepository()
		ctx := context.Background()

		_, err := repo.GetJob(ctx, "nonexistent")
		if !errors.Is(err, batch.ErrNotFound) {
			t.Errorf("expected ErrNotFound for empty repository, got %v", err)
		}
	})

	t.Run("multiple repositories are independent", func(t *testing.T) {
		repo1 := NewMemoryRepository()
		repo2 := NewMemoryRepository()
		ctx := context.Background()

		job, items := newTestJob("job-001")
		if err := repo1.CreateJob(ctx, job, items); err != nil {
			t.Fatalf("CreateJob failed: %v", err)
		}

		if _, err := repo2.GetJob(ctx, "job-001"); !errors.Is(err, batch.ErrNotFound) {
			t.Error("repo2 should not have data from repo1")
		}
	})
}

func TestMemoryRepository_CreateAndGetJob(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job, items := newTestJob("job-001")
	if err := repo.CreateJob(ctx, job, items); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	got, err := repo.GetJob(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.ID != job.ID || got.Name != job.Name {
		t.Errorf("got job %+v, want %+v", got, job)
	}

	// Mutating the returned job must not affect the stored copy.
	got.Name = "mutated"
	reread, err := repo.GetJob(ctx, "job-001")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if reread.Name != "test-job" {
		t.Error("GetJob leaked an alias to internal state")
	}

	for _, idx := range []int{0, 1} {
		item, err := repo.GetItem(ctx, "job-001", idx)
		if err != nil {
			t.Fatalf("GetItem(%d) failed: %v", idx, err)
		}
		if item.Status != batch.ItemPending {
			t.Errorf("item %d status = %v, want PENDING", idx, item.Status)
		}
	}
}

func TestMemoryRepository_UpdateJob(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job, items := newTestJob("job-001")
	_ = repo.CreateJob(ctx, job, items)

	job.Status = batch.StatusRunning
	job.CompletedItems = 1
	if err := repo.UpdateJob(ctx, job); err != nil {
		t.Fatalf("UpdateJob failed: %v", err)
	}

	got, _ := repo.GetJob(ctx, "job-001")
	if got.Status != batch.StatusRunning || got.CompletedItems != 1 {
		t.Errorf("got %+v, want Status=RUNNING CompletedItems=1", got)
	}

	unknown := &batch.Job{ID: "does-not-exist"}
	if err := repo.UpdateJob(ctx, unknown); !errors.Is(err, batch.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating unknown job, got %v", err)
	}
}

func TestMemoryRepository_DeleteJob(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job, items := newTestJob("job-001")
	_ = repo.CreateJob(ctx, job, items)

	if err := repo.DeleteJob(ctx, "job-001"); err != nil {
		t.Fatalf("DeleteJob failed: %v", err)
	}

	if _, err := repo.GetJob(ctx, "job-001"); !errors.Is(err, batch.ErrNotFound) {
		t.Error("expected job to be gone after DeleteJob")
	}
	if _, err := repo.GetItem(ctx, "job-001", 0); !errors.Is(err, batch.ErrNotFound) {
		t.Error("expected items to cascade-delete with the job")
	}
	if err := repo.DeleteJob(ctx, "job-001"); !errors.Is(err, batch.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting an already-deleted job, got %v", err)
	}
}

func TestMemoryRepository_ListJobs(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	for i, id := range []string{"job-a", "job-b", "job-c"} {
		job, items := newTestJob(id)
		job.GroupID = "group-1"
		if i == 2 {
			job.GroupID = "group-2"
		}
		if i == 1 {
			job.Status = batch.StatusRunning
		}
		if err := repo.CreateJob(ctx, job, items); err != nil {
			t.Fatalf("CreateJob(%s) failed: %v", id, err)
		}
	}

	t.Run("filters by group", func(t *testing.T) {
		jobs, _, err := repo.ListJobs(ctx, batch.JobFilter{GroupID: "group-1"})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) != 2 {
			t.Errorf("expected 2 jobs in group-1, got %d", len(jobs))
		}
	})

	t.Run("filters by status", func(t *testing.T) {
		running := batch.StatusRunning
		jobs, _, err := repo.ListJobs(ctx, batch.JobFilter{Status: &running})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) != 1 || jobs[0].ID != "job-b" {
			t.Errorf("expected only job-b RUNNING, got %+v", jobs)
		}
	})

	t.Run("pagination reports hasMore", func(t *testing.T) {
		jobs, hasMore, err := repo.ListJobs(ctx, batch.JobFilter{Limit: 2})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) != 2 {
			t.Errorf("expected 2 jobs with Limit=2, got %d", len(jobs))
		}
		if !hasMore {
			t.Error("expected hasMore=true with 3 total jobs and Limit=2")
		}
	})

	t.Run("offset past the end returns no rows", func(t *testing.T) {
		jobs, hasMore, err := repo.ListJobs(ctx, batch.JobFilter{Limit: 2, Offset: 10})
		if err != nil {
			t.Fatalf("ListJobs failed: %v", err)
		}
		if len(jobs) != 0 || hasMore {
			t.Errorf("expected no jobs and hasMore=false, got %d jobs, hasMore=%v", len(jobs), hasMore)
		}
	})
}

func TestMemoryRepository_UpdateAndListItems(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job, items := newTestJob("job-001")
	_ = repo.CreateJob(ctx, job, items)

	item, err := repo.GetItem(ctx, "job-001", 1)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	item.Status = batch.ItemCompleted
	item.CurrentPhase = "extract"
	if err := repo.UpdateItem(ctx, item); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	listed, err := repo.ListItems(ctx, "job-001")
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 items, got %d", len(listed))
	}
	if listed[0].ItemIndex != 0 || listed[1].ItemIndex != 1 {
		t.Error("expected items ordered by ItemIndex")
	}
	if listed[1].Status != batch.ItemCompleted {
		t.Error("UpdateItem did not persist")
	}

	unknown := batch.NewItem("job-001", 99, nil)
	if err := repo.UpdateItem(ctx, unknown); !errors.Is(err, batch.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating item of unknown job, got %v", err)
	}

	if _, err := repo.ListItems(ctx, "nonexistent"); !errors.Is(err, batch.ErrNotFound) {
		t.Errorf("expected ErrNotFound listing items of unknown job, got %v", err)
	}
}

func TestMemoryRepository_ConcurrentAccess(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	job, items := newTestJob("job-001")
	_ = repo.CreateJob(ctx, job, items)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func(n int) {
			defer func() { done <- struct{}{} }()
			item, err := repo.GetItem(ctx, "job-001", n%2)
			if err != nil {
				t.Errorf("GetItem failed: %v", err)
				return
			}
			item.RetryCount = n
			_ = repo.UpdateItem(ctx, item)
			_, _ = repo.GetJob(ctx, "job-001")
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

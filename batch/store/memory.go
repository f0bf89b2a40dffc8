package store

import (
	"context"
	"sort"
	"sync"

	"github.com/batchforge/batchengine/batch"
)

// MemoryRepository is an in-memory implementation of batch.Repository.
//
// Designed for:
//   - Testing and development
//   - Short-lived jobs where persistence isn't required
//
// MemoryRepository is thread-safe and supports concurrent access from the
// Executor's worker goroutines. Every getter/setter works on a deep copy so
// that callers can never mutate the repository's state through an aliased
// pointer.
//
// Limitations:
//   - Data is lost when the process terminates.
//   - Not suitable for distributed deployments; use SQLiteRepository or
//     MySQLRepository for that.
type MemoryRepository struct {
	mu    sync.RWMutex
	jobs  map[string]*batch.Job
	items map[string]map[int]*batch.Item // jobID -> itemIndex -> item
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		jobs:  make(map[string]*batch.Job),
		items: make(map[string]map[int]*batch.Item),
	}
}

// CreateJob persists job and one Item per entry in items atomically.
func (m *MemoryRepository) CreateJob(_ context.Context, job *batch.Job, items []*batch.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	jobCopy := *job
	m.jobs[job.ID] = &jobCopy

	itemMap := make(map[int]*batch.Item, len(items))
	for _, it := range items {
		itemCopy := *it
		itemMap[it.ItemIndex] = &itemCopy
	}
	m.items[job.ID] = itemMap

	return nil
}

// GetJob returns a copy of the job row.
func (m *MemoryRepository) GetJob(_ context.Context, jobID string) (*batch.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[jobID]
	if !ok {
		return nil, batch.ErrNotFound
	}
	jobCopy := *job
	return &jobCopy, nil
}

// UpdateJob overwrites the stored job row.
func (m *MemoryRepository) UpdateJob(_ context.Context, job *batch.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[job.ID]; !ok {
		return batch.ErrNotFound
	}
	jobCopy := *job
	m.jobs[job.ID] = &jobCopy
	return nil
}

// DeleteJob deletes the job and cascades to all of its items.
func (m *MemoryRepository) DeleteJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[jobID]; !ok {
		return batch.ErrNotFound
	}
	delete(m.jobs, jobID)
	delete(m.items, jobID)
	return nil
}

// ListJobs returns jobs matching filter, newest-created first, with paging.
// filter.Limit of 0 means "no limit."
func (m *MemoryRepository) ListJobs(_ context.Context, filter batch.JobFilter) ([]*batch.Job, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*batch.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if filter.GroupID != "" && job.GroupID != filter.GroupID {
			continue
		}
		if filter.UserID != "" && job.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		jobCopy := *job
		matched = append(matched, &jobCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter.Limit <= 0 {
		return matched, false, nil
	}

	offset := filter.Offset
	if offset > len(matched) {
		return []*batch.Job{}, false, nil
	}

	end := offset + filter.Limit
	hasMore := end < len(matched)
	if end > len(matched) {
		end = len(matched)
	}

	return matched[offset:end], hasMore, nil
}

// GetItem returns a copy of one item row.
func (m *MemoryRepository) GetItem(_ context.Context, jobID string, itemIndex int) (*batch.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	itemMap, ok := m.items[jobID]
	if !ok {
		return nil, batch.ErrNotFound
	}
	item, ok := itemMap[itemIndex]
	if !ok {
		return nil, batch.ErrNotFound
	}
	itemCopy := *item
	return &itemCopy, nil
}

// UpdateItem overwrites the stored item row.
func (m *MemoryRepository) UpdateItem(_ context.Context, item *batch.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	itemMap, ok := m.items[item.JobID]
	if !ok {
		return batch.ErrNotFound
	}
	itemCopy := *item
	itemMap[item.ItemIndex] = &itemCopy
	return nil
}

// ListItems returns every item of a job ordered by ItemIndex.
func (m *MemoryRepository) ListItems(_ context.Context, jobID string) ([]*batch.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	itemMap, ok := m.items[jobID]
	if !ok {
		return nil, batch.ErrNotFound
	}

	result := make([]*batch.Item, 0, len(itemMap))
	for _, item := range itemMap {
		itemCopy := *item
		result = append(result, &itemCopy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ItemIndex < result[j].ItemIndex
	})

	return result, nil
}

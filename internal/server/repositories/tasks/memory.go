package tasks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps tasks in process memory with the same filtering
// and ordering rules as the Postgres implementation. It is safe for
// concurrent use.
type MemoryRepository struct {
	mu    sync.RWMutex
	seq   int64
	tasks map[string]models.Task
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		tasks: make(map[string]models.Task),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *MemoryRepository) Create(_ context.Context, task *models.Task) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := r.now()

	t := clone(*task)
	t.ID = uuid.NewString()
	t.Seq = r.seq
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Tags == nil {
		t.Tags = []string{}
	}
	r.tasks[t.ID] = t

	out := clone(t)
	return &out, nil
}

func (r *MemoryRepository) Get(_ context.Context, ownerID, id string) (*models.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[id]
	if !ok || t.Owner != ownerID {
		return nil, common.ErrorNotFound
	}
	out := clone(t)
	return &out, nil
}

func (r *MemoryRepository) List(_ context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	r.mu.RLock()
	result := make([]models.Task, 0)
	for _, t := range r.tasks {
		if t.Owner == ownerID && matches(t, filter) {
			result = append(result, clone(t))
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, less(result, filter.Sort))
	return result, nil
}

func (r *MemoryRepository) Update(_ context.Context, ownerID, id string, patch models.TaskPatch) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Owner != ownerID {
		return nil, common.ErrorNotFound
	}
	patch.Apply(&t)
	t.UpdatedAt = r.now()
	r.tasks[id] = t

	out := clone(t)
	return &out, nil
}

func (r *MemoryRepository) Delete(_ context.Context, ownerID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[id]
	if !ok || t.Owner != ownerID {
		return common.ErrorNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *MemoryRepository) Stats(_ context.Context, ownerID string) (*models.Stats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := &models.Stats{}
	for _, t := range r.tasks {
		if t.Owner != ownerID {
			continue
		}
		s.Total++
		switch t.Status {
		case common.StatusPending:
			s.Pending++
		case common.StatusInProgress:
			s.InProgress++
		case common.StatusCompleted:
			s.Completed++
		}
		if t.Priority == common.PriorityHigh {
			s.HighPriority++
		}
	}
	return s, nil
}

func matches(t models.Task, f models.TaskFilter) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}
	return true
}

// less returns the ordering for sortKey. Seq is unique, so the result is a
// total order and sort.Slice is deterministic.
func less(ts []models.Task, sortKey string) func(i, j int) bool {
	switch sortKey {
	case common.SortOldest:
		return func(i, j int) bool {
			a, b := ts[i], ts[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.Seq < b.Seq
		}
	case common.SortDueDate:
		return func(i, j int) bool {
			a, b := ts[i], ts[j]
			switch {
			case a.DueDate == nil && b.DueDate == nil:
				return a.Seq < b.Seq
			case a.DueDate == nil:
				return false
			case b.DueDate == nil:
				return true
			case !a.DueDate.Equal(*b.DueDate):
				return a.DueDate.Before(*b.DueDate)
			}
			return a.Seq < b.Seq
		}
	case common.SortPriority:
		return func(i, j int) bool {
			a, b := ts[i], ts[j]
			ra, rb := models.PriorityRank(a.Priority), models.PriorityRank(b.Priority)
			if ra != rb {
				return ra > rb
			}
			return a.Seq < b.Seq
		}
	default:
		return func(i, j int) bool {
			a, b := ts[i], ts[j]
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.Seq > b.Seq
		}
	}
}

// clone detaches the mutable parts of t from the stored copy.
func clone(t models.Task) models.Task {
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.Tags != nil {
		t.Tags = append([]string{}, t.Tags...)
	}
	return t
}

// Package tasks stores to-do items. Every operation is scoped to an owner:
// a task that belongs to someone else behaves exactly like a missing one.
package tasks

import (
	"context"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Repository persists tasks.
//
// List expects a normalized filter (see models.TaskFilter.Normalize) and
// orders results as follows:
//
//	newest    created_at desc, seq desc
//	oldest    created_at asc, seq asc
//	dueDate   due_date asc with undated tasks last, seq asc
//	priority  high, medium, low, seq asc
//
// Get, Update and Delete return common.ErrorNotFound when no task with that
// id belongs to ownerID.
type Repository interface {
	Create(ctx context.Context, task *models.Task) (*models.Task, error)
	Get(ctx context.Context, ownerID, id string) (*models.Task, error)
	List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (*models.Task, error)
	Delete(ctx context.Context, ownerID, id string) error
	Stats(ctx context.Context, ownerID string) (*models.Stats, error)
}

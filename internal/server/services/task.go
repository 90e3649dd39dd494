package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
)

// CreateTaskInput carries the fields accepted on task creation. Empty
// Status and Priority take their defaults.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
	Tags        []string
}

// TaskService implements the owner-scoped task operations. The owner id
// always comes from the authenticated session, never from the request body.
type TaskService struct {
	tasks tasks.Repository
}

func NewTaskService(repo tasks.Repository) *TaskService {
	return &TaskService{tasks: repo}
}

// List returns the owner's tasks matching filter. Unrecognized status and
// priority filters are ignored.
func (s *TaskService) List(ctx context.Context, ownerID string, filter models.TaskFilter) ([]models.Task, error) {
	return s.tasks.List(ctx, ownerID, filter.Normalize())
}

func (s *TaskService) Get(ctx context.Context, ownerID, id string) (*models.Task, error) {
	return s.tasks.Get(ctx, ownerID, id)
}

func (s *TaskService) Create(ctx context.Context, ownerID string, in CreateTaskInput) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: title is required", common.ErrorValidation)
	}

	status := in.Status
	if status == "" {
		status = common.StatusPending
	}
	if !models.IsValidStatus(status) {
		return nil, invalidEnum("status", status)
	}

	priority := in.Priority
	if priority == "" {
		priority = common.PriorityMedium
	}
	if !models.IsValidPriority(priority) {
		return nil, invalidEnum("priority", priority)
	}

	return s.tasks.Create(ctx, &models.Task{
		Owner:       ownerID,
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
		Tags:        models.CleanTags(in.Tags),
	})
}

// Update merges patch into the owner's task. Fields absent from the patch
// keep their stored values.
func (s *TaskService) Update(ctx context.Context, ownerID, id string, patch models.TaskPatch) (*models.Task, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", common.ErrorValidation)
		}
		patch.Title = &title
	}
	if patch.Status != nil && !models.IsValidStatus(*patch.Status) {
		return nil, invalidEnum("status", *patch.Status)
	}
	if patch.Priority != nil && !models.IsValidPriority(*patch.Priority) {
		return nil, invalidEnum("priority", *patch.Priority)
	}
	if patch.Tags != nil {
		cleaned := models.CleanTags(*patch.Tags)
		patch.Tags = &cleaned
	}

	return s.tasks.Update(ctx, ownerID, id, patch)
}

func (s *TaskService) Delete(ctx context.Context, ownerID, id string) error {
	return s.tasks.Delete(ctx, ownerID, id)
}

func (s *TaskService) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	return s.tasks.Stats(ctx, ownerID)
}

func invalidEnum(field, value string) error {
	return fmt.Errorf("%w: %s %q is not allowed", common.ErrorValidation, field, value)
}

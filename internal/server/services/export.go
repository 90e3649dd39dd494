package services

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dmitrijs2005/taskkeeper/internal/common"
	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/google/uuid"
)

// ExportLinkValidity is how long a presigned export link stays usable.
const ExportLinkValidity = 15 * time.Minute

// ObjectStore is the storage an export is written to.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body []byte) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// ExportResult locates an uploaded export.
type ExportResult struct {
	URL       string    `json:"url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type exportDocument struct {
	Owner      string        `json:"owner"`
	ExportedAt time.Time     `json:"exportedAt"`
	Count      int           `json:"count"`
	Tasks      []models.Task `json:"tasks"`
}

// ExportService snapshots an owner's tasks to object storage.
type ExportService struct {
	tasks tasks.Repository
	store ObjectStore
	now   func() time.Time
}

// NewExportService wires the service. A nil store disables exports.
func NewExportService(repo tasks.Repository, store ObjectStore) *ExportService {
	return &ExportService{tasks: repo, store: store, now: time.Now}
}

// StorageKey names an export object: exports/<owner>/<yyyy>/<mm>/<dd>/<uuid>.json.
func StorageKey(ownerID string, at time.Time) string {
	return fmt.Sprintf("exports/%s/%04d/%02d/%02d/%s.json", ownerID, at.Year(), at.Month(), at.Day(), uuid.New())
}

// Export uploads the owner's full task list, newest first, and returns a
// presigned link to it.
func (s *ExportService) Export(ctx context.Context, ownerID string) (*ExportResult, error) {
	if s.store == nil {
		return nil, common.ErrExportDisabled
	}

	list, err := s.tasks.List(ctx, ownerID, models.TaskFilter{}.Normalize())
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	body, err := sonic.Marshal(exportDocument{Owner: ownerID, ExportedAt: now, Count: len(list), Tasks: list})
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	key := StorageKey(ownerID, now)
	if err := s.store.Put(ctx, key, "application/json", body); err != nil {
		return nil, err
	}

	url, err := s.store.PresignGet(ctx, key, ExportLinkValidity)
	if err != nil {
		return nil, err
	}

	return &ExportResult{URL: url, Key: key, ExpiresAt: now.Add(ExportLinkValidity)}, nil
}

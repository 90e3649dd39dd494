// Package users stores registered accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/taskkeeper/internal/server/models"
)

// Repository persists users. Emails are expected to be normalized by the
// caller. Implementations return common.ErrorAlreadyExists on a duplicate
// email and common.ErrorNotFound when a lookup matches nothing.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

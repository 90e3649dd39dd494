// Package repomanager vends the repositories for the configured storage
// backend and prepares that backend for use.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	Users() users.Repository
	Tasks() tasks.Repository
	Close() error
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// New returns the RepositoryManager for backend. For Postgres the returned
// manager owns the *sql.DB and closes it in Close.
func New(ctx context.Context, backend, dsn string) (RepositoryManager, error) {
	switch backend {
	case config.StorageMemory:
		return NewMemoryRepositoryManager(), nil
	case config.StoragePostgres:
		db, err := sqlOpen("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ping database: %w", err)
		}
		return NewPostgresRepositoryManager(db), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

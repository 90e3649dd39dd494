// Package server assembles the taskkeeper backend from its configuration:
// storage, optional Redis cache and S3 export, services, and the REST API.
package server

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskkeeper/internal/logging"
	"github.com/dmitrijs2005/taskkeeper/internal/server/auth"
	"github.com/dmitrijs2005/taskkeeper/internal/server/cache"
	"github.com/dmitrijs2005/taskkeeper/internal/server/config"
	"github.com/dmitrijs2005/taskkeeper/internal/server/objectstore"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/taskkeeper/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskkeeper/internal/server/rest"
	"github.com/dmitrijs2005/taskkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"
)

// Seams for tests.
var (
	newRepositoryManager = repomanager.New
	newS3Store           = func(ctx context.Context, o objectstore.Options) (services.ObjectStore, error) {
		return objectstore.NewS3Store(ctx, o)
	}
	logOutput io.Writer = os.Stdout
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	repos   repomanager.RepositoryManager
	redis   *redis.Client
	server  *rest.Server
	closers []func() error
}

// NewApp connects to storage, applies migrations and wires the services.
// Resources opened here are released by Close.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(logOutput, c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}

	repos, err := newRepositoryManager(ctx, c.StorageBackend, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.repos = repos
	app.closers = append(app.closers, repos.Close)

	if err := repos.RunMigrations(ctx); err != nil {
		app.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	var taskRepo tasks.Repository = repos.Tasks()
	if c.RedisURL != "" {
		opts, err := redis.ParseURL(c.RedisURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("redis url: %w", err)
		}
		app.redis = redis.NewClient(opts)
		app.closers = append(app.closers, app.redis.Close)
		taskRepo = cache.NewTaskRepository(taskRepo, app.redis, c.CacheTTL, logger)
		logger.Info(ctx, "Task list cache enabled", "addr", opts.Addr, "ttl", c.CacheTTL.String())
	}

	var store services.ObjectStore
	if c.ExportEnabled() {
		store, err = newS3Store(ctx, objectstore.Options{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			Bucket:       c.S3Bucket,
			BaseEndpoint: c.S3BaseEndpoint,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("object store init error: %w", err)
		}
		logger.Info(ctx, "Task export enabled", "bucket", c.S3Bucket)
	}

	tokens := auth.NewTokenIssuer([]byte(c.SecretKey), c.TokenIssuer, c.TokenValidityDuration)
	us := services.NewUserService(repos.Users(), tokens, 0)
	ts := services.NewTaskService(taskRepo)
	es := services.NewExportService(taskRepo, store)

	app.server = rest.NewServer(rest.Options{
		Address:         c.HTTPAddr,
		CORSOrigins:     c.CORSOrigins,
		ReadTimeout:     c.ReadTimeout,
		WriteTimeout:    c.WriteTimeout,
		ShutdownTimeout: c.ShutdownTimeout,
	}, logger, us, ts, es)

	return app, nil
}

// Run serves HTTP until ctx is cancelled and then releases resources.
func (app *App) Run(ctx context.Context) error {
	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageBackend)
	defer app.Close()

	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, "server error", "error", err.Error())
		return err
	}

	app.logger.Info(ctx, "App stopped")
	return nil
}

// Close releases everything NewApp opened, most recent first.
func (app *App) Close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close error", "error", err.Error())
		}
	}
	app.closers = nil
}

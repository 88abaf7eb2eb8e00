// Package bootstrap assembles the storage backend, catalog, repository and
// service from the environment for both the server and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ultrona/mantlog/internal/backup"
	"github.com/ultrona/mantlog/internal/catalog"
	"github.com/ultrona/mantlog/internal/config"
	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/internal/record/repositoryimpl"
	"github.com/ultrona/mantlog/pkg/clog"
	"github.com/ultrona/mantlog/pkg/storage"
)

// NewLogger returns the process logger: colored text in the local env, JSON
// otherwise, both carrying the per-request attribute bag.
func NewLogger(env *config.Env, w io.Writer) *slog.Logger {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.Env == "local" {
		handler = clog.NewTextHandler(w, clog.WithLevel(level), clog.WithColor(true))
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(clog.NewAttributesHandler(handler))
}

func NewStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, nil
	case "minio":
		s, err := storage.NewMinioStorage(ctx, &storage.MinioConfig{
			Endpoint: env.MinioEndpoint,
			Access:   env.MinioAccessKey,
			Secret:   env.MinioSecretKey,
			Bucket:   env.MinioBucket,
			Prefix:   env.MinioPrefix,
			Region:   env.MinioRegion,
			UseSSL:   env.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create MinIO storage: %w", err)
		}
		return s, nil
	case "", "local":
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", env.Type)
	}
}

type App struct {
	Env     *config.Env
	Storage storage.Storage
	Catalog *catalog.Catalog
	Repo    *repositoryimpl.XLSXRepository
	Backups *backup.Writer
	Service *record.Service
}

type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used for default timestamps and backup names.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the application over the configured storage and makes sure the
// backup directory exists.
func New(ctx context.Context, env *config.Env, opts ...Option) (*App, error) {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	loc, err := env.Location()
	if err != nil {
		return nil, err
	}
	store, err := NewStorage(ctx, &env.StorageEnv)
	if err != nil {
		return nil, err
	}
	cat, err := catalog.New(env.OptionsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load options: %w", err)
	}
	backups := backup.NewWriter(store, env.BackupDir, backup.WithClock(o.now), backup.WithLocation(loc))
	if err := backups.Init(ctx); err != nil {
		return nil, err
	}
	repo := repositoryimpl.NewXLSXRepository(store, env.RecordFile)
	svc := record.NewService(repo, backups, cat, record.WithClock(o.now), record.WithLocation(loc))

	return &App{
		Env:     env,
		Storage: store,
		Catalog: cat,
		Repo:    repo,
		Backups: backups,
		Service: svc,
	}, nil
}

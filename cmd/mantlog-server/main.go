package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"

	server "github.com/ultrona/mantlog/internal"
	"github.com/ultrona/mantlog/internal/bootstrap"
	"github.com/ultrona/mantlog/internal/config"
	"github.com/ultrona/mantlog/internal/record"
	"github.com/ultrona/mantlog/internal/web"
	"github.com/ultrona/mantlog/pkg/panicerr"
)

const shutdownTimeout = 10 * time.Second

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(bootstrap.NewLogger(env, os.Stderr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	app, err := bootstrap.New(ctx, env)
	if err != nil {
		slog.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	slog.Info("maintenance log ready",
		"storage", env.StorageEnv.Type, "record_file", env.RecordFile, "backup_dir", app.Backups.Dir())

	srv := server.NewServer(
		env,
		record.NewServer(app.Service, app.Backups),
		web.NewHandler(app.Service, ""),
		server.NewStorageChecker(app.Storage, env.RecordFile),
	)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		// A broken watcher leaves the loaded options in place.
		if err := app.Catalog.Watch(ctx); err != nil {
			slog.Warn("options watcher stopped", "error", err)
		}
		return nil
	}))
	p.Go(panicerr.SafeContext(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}))
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := p.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

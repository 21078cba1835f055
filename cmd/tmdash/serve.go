package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sourcegraph/conc/pool"

	server "github.com/kazz187/tmdash/internal"
	"github.com/kazz187/tmdash/internal/config"
	"github.com/kazz187/tmdash/internal/event"
	"github.com/kazz187/tmdash/internal/eventbus"
	"github.com/kazz187/tmdash/internal/project"
	projectrepo "github.com/kazz187/tmdash/internal/project/repositoryimpl"
	"github.com/kazz187/tmdash/internal/pushnotification"
	pushsubrepo "github.com/kazz187/tmdash/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/tmdash/internal/refresher"
	"github.com/kazz187/tmdash/internal/taskmaster"
	"github.com/kazz187/tmdash/internal/tmcli"
	"github.com/kazz187/tmdash/internal/watcher"
	"github.com/kazz187/tmdash/pkg/clog"
	"github.com/kazz187/tmdash/pkg/panicerr"
	"github.com/kazz187/tmdash/pkg/storage"
)

func runServe() error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	setupLogger(&env.BaseEnv)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	store, err := newStorage(ctx, &env.StorageEnv)
	if err != nil {
		return err
	}
	templates, err := taskmaster.BuiltinTemplates()
	if err != nil {
		return fmt.Errorf("failed to load PRD templates: %w", err)
	}

	bus := eventbus.New()

	projectRepo := projectrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	inspector := taskmaster.NewInspector(taskmaster.NewMCPDetector(mcpConfigPaths(&env.TaskmasterEnv)))
	cli := tmcli.New(tmcli.NewExecRunner(env.CLIBinary, env.CLITimeout))

	projectServer := project.NewServer(projectRepo, bus)
	taskmasterServer := taskmaster.NewServer(projectRepo, inspector, cli, templates, bus)
	eventServer := event.NewServer(bus)

	pushSender := pushnotification.NewSender(&env.PushEnv, pushSubRepo)
	pushNotificationServer := pushnotification.NewServer(&env.PushEnv, pushSubRepo, pushSender)
	pushDispatcher := pushnotification.NewDispatcher(bus, pushSender)

	srv := server.NewServer(env, projectServer, taskmasterServer, eventServer, pushNotificationServer)

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	panicerr.Go(ctx, "push dispatcher", pushDispatcher.Start)
	panicerr.Go(ctx, "status refresher", refresher.New(projectRepo, inspector, bus, env.RefreshCron).Start)
	if env.WatchEnabled {
		panicerr.Go(ctx, "task file watcher", watcher.New(projectRepo, bus, env.WatchDebounce).Start)
	}

	if err := p.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func setupLogger(env *config.BaseEnv) {
	level := env.SlogLevel()
	var handler slog.Handler
	if env.LogFormat == "json" || env.Env != "local" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = clog.NewTextHandler(os.Stderr, clog.WithLevel(level), clog.WithColor(!color.NoColor))
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))
}

func newStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		s, err := storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 storage: %w", err)
		}
		return s, nil
	default:
		s, err := storage.NewLocalStorage(env.BaseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create local storage: %w", err)
		}
		return s, nil
	}
}

func mcpConfigPaths(env *config.TaskmasterEnv) []string {
	if len(env.MCPConfigPaths) > 0 {
		return env.MCPConfigPaths
	}
	return taskmaster.DefaultMCPConfigPaths()
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	githubadapter "github.com/ericfisherdev/threadwatch/internal/adapter/driven/github"
	"github.com/ericfisherdev/threadwatch/internal/adapter/driven/resilient"
	"github.com/ericfisherdev/threadwatch/internal/adapter/driven/sink"
	sqliteadapter "github.com/ericfisherdev/threadwatch/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/threadwatch/internal/adapter/driving/http"
	"github.com/ericfisherdev/threadwatch/internal/application"
	"github.com/ericfisherdev/threadwatch/internal/config"
	"github.com/ericfisherdev/threadwatch/internal/domain/port/driven"
	"github.com/ericfisherdev/threadwatch/internal/logging"
)

// serve is the composition root: it wires every adapter into the pipeline
// and blocks until ctx is cancelled.
func serve(ctx context.Context) error {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"idle_limit", cfg.IdleLimit,
		"sinks", cfg.Sinks,
	)

	// 2. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 3. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 4. Wire stores.
	requirementStore := sqliteadapter.NewRequirementRepo(db)
	tokenStore, err := sqliteadapter.NewTokenRepo(db, githubTokenService, cfg.SecretKey)
	if err != nil {
		return err
	}

	// 5. Create the GitHub fetcher. A stored token takes priority over the
	// environment; without either, polling fails until one is supplied.
	newFetcher := fetcherFactory(cfg)
	provider := application.NewFetcherProvider(nil)

	token := resolveGitHubToken(ctx, cfg, tokenStore)
	if token != "" {
		fetcher, err := newFetcher(token)
		if err != nil {
			return err
		}
		provider.Replace(fetcher)
		slog.Info("github client created", "api_url", cfg.GitHubAPIURL)
	} else {
		slog.Info("no github token configured, polling disabled until one is provided via the API")
	}

	// 6. Build the pipeline.
	commandSink, err := buildSink(cfg, requirementStore)
	if err != nil {
		return err
	}

	queue := application.NewCommandQueue(cfg.QueueCapacity)
	dispatcher := application.NewDispatcher(queue, cfg.QueueCapacity)
	manager := application.NewWatchManager(provider, dispatcher, application.WatchManagerConfig{
		PollInterval: cfg.PollInterval,
		IdleLimit:    cfg.IdleLimit,
		MaxActive:    cfg.MaxActiveWatches,
		PollWorkers:  cfg.PollWorkers,
	})
	executor := application.NewExecutor(queue, commandSink, application.ExecutorConfig{
		Interval:       cfg.ExecuteInterval,
		StatusInterval: cfg.StatusInterval,
	})
	runner := application.NewRunner(manager, dispatcher, queue, executor)

	// 7. Create HTTP handler.
	apiHandler := httphandler.NewHandler(manager, runner, requirementStore, tokenStore, provider, newFetcher, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.NewServeMux(apiHandler, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 8. Run pipeline and server until the signal context is cancelled.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := runner.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pipeline: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("threadwatch started",
		"listen_addr", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval,
		"execute_interval", cfg.ExecuteInterval,
	)

	err = g.Wait()
	slog.Info("shutdown complete")
	return err
}

// fetcherFactory returns a constructor for the throttled, retrying GitHub fetcher.
func fetcherFactory(cfg *config.Config) httphandler.FetcherFactory {
	return func(token string) (driven.CommentFetcher, error) {
		client, err := githubadapter.NewClient(token, cfg.GitHubAPIURL)
		if err != nil {
			return nil, err
		}
		return resilient.NewFetcher(client, resilient.Config{
			Attempts: cfg.FetchAttempts,
			Rate:     cfg.FetchRate,
		}), nil
	}
}

// githubTokenService names the credentials row holding the GitHub token.
const githubTokenService = "github"

// resolveGitHubToken prefers a stored token over the configured one.
func resolveGitHubToken(ctx context.Context, cfg *config.Config, store driven.TokenStore) string {
	stored, err := store.Load(ctx)
	switch {
	case errors.Is(err, driven.ErrEncryptionKeyNotSet):
	case err != nil:
		slog.Warn("failed to read stored github token", "error", err)
	case stored != nil && stored.Value != "":
		slog.Info("using stored github token", "saved_at", stored.SavedAt)
		return stored.Value
	}
	if cfg.HasGitHubToken() {
		slog.Info("using configured github token")
	}
	return cfg.GitHubToken
}

// buildSink assembles the enabled command sinks, the log sink first.
func buildSink(cfg *config.Config, store driven.RequirementStore) (driven.CommandSink, error) {
	var sinks sink.Multi
	if cfg.HasSink(config.SinkLog) {
		sinks = append(sinks, sink.NewLogSink(slog.Default()))
	}
	if cfg.HasSink(config.SinkTracker) {
		sinks = append(sinks, sink.NewTrackerSink(store))
	}

	switch len(sinks) {
	case 0:
		return nil, fmt.Errorf("no known sink in %v", cfg.Sinks)
	case 1:
		return sinks[0], nil
	}
	return sinks, nil
}

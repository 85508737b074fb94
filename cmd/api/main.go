package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/SkelleTu/UltraPix/internal/adapter/repo"
	"github.com/SkelleTu/UltraPix/internal/catalog"
	"github.com/SkelleTu/UltraPix/internal/domain"
	"github.com/SkelleTu/UltraPix/internal/http/handlers"
	httpapi "github.com/SkelleTu/UltraPix/internal/http/httpapi"
	"github.com/SkelleTu/UltraPix/internal/infra"
	"github.com/SkelleTu/UltraPix/internal/orchestrator"
	"github.com/SkelleTu/UltraPix/internal/progress"
	"github.com/SkelleTu/UltraPix/internal/providers/video"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, closeJobs, err := openJobRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open job store")
	}
	defer closeJobs()

	provider := newProvider(cfg, logger)

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load catalog")
	}

	hub := progress.NewHub(logger)
	var sink progress.Sink = hub
	var relay *progress.RedisRelay
	if cfg.RedisURL != "" {
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer client.Close()
		relay = progress.NewRedisRelay(client, cfg.ProgressChannel, hub, logger)
		sink = relay
	}

	orch := orchestrator.New(orchestrator.Options{
		Repo:            jobs,
		Provider:        provider,
		Publisher:       progress.NewNotifier(sink, logger),
		Logger:          logger,
		MaxConcurrent:   cfg.MaxConcurrentJobs,
		JobTimeout:      cfg.JobTimeout,
		FallbackBaseURL: cfg.FallbackAssetURL,
	})

	app := &handlers.App{
		Config:       cfg,
		Logger:       logger,
		Jobs:         jobs,
		Orchestrator: orch,
		Provider:     provider,
		Catalog:      cat,
		Progress:     hub,
	}
	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", server.Addr()).Str("provider", provider.Name()).Msg("API listening")
		return server.Start()
	})
	if relay != nil {
		g.Go(func() error {
			err := relay.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server")
		}
		if err := orch.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("jobs cancelled before completion")
		}
		hub.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("server stopped")
}

func openJobRepository(ctx context.Context, cfg *infra.Config, logger infra.Logger) (domain.JobRepository, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL not set, jobs are kept in memory")
		return repo.NewMemoryJobRepository(), func() {}, nil
	}
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	jobs := repo.NewJobRepository(infra.NewSQLRunner(pool, logger))

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := jobs.EnsureSchema(schemaCtx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return jobs, pool.Close, nil
}

func newProvider(cfg *infra.Config, logger infra.Logger) video.Provider {
	if cfg.OpenAIAPIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY not set, using synthetic generation")
		return video.NewSynthetic(cfg.VideoCDNBaseURL)
	}
	provider, err := video.NewOpenAIProvider(video.OpenAIOptions{
		APIKey:       cfg.OpenAIAPIKey,
		Model:        cfg.OpenAIModel,
		ImageModel:   cfg.OpenAIImageModel,
		BaseURL:      cfg.OpenAIBaseURL,
		Organization: cfg.OpenAIOrg,
		CDNBaseURL:   cfg.VideoCDNBaseURL,
		OnFallback: func(reason string, err error) {
			logger.Warn().Err(err).Str("reason", reason).Msg("openai fallback")
		},
	})
	if err != nil {
		logger.Warn().Err(err).Msg("openai provider unavailable, using synthetic generation")
		return video.NewSynthetic(cfg.VideoCDNBaseURL)
	}
	return provider
}

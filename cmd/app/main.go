package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"adept/internal/config"
	"adept/internal/domain/ports/adapter"
	aiAdapters "adept/internal/infra/adapters/ai"
	pg "adept/internal/infra/db/postgres"
	"adept/internal/infra/logging"
	"adept/internal/infra/metrics"
	red "adept/internal/infra/redis"
	"adept/internal/infra/runner"
	"adept/internal/infra/sandbox"
	"adept/internal/infra/storage"
	"adept/internal/infra/web"
	"adept/internal/infra/worker"
	"adept/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("dev mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	queue := red.NewQueue(redisClient, cfg.Redis.Queue, cfg.Worker.VisibilityTimeout)

	// ---- Storage ----
	store, err := storage.NewLocal(cfg.Storage.Dir, cfg.Storage.BaseURL, cfg.Storage.UploadTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage")
	}

	// ---- Task executor ----
	xlsx := cfg.Export.Format == "xlsx"
	var executor adapter.TaskExecutor
	switch cfg.Sandbox.Mode {
	case "e2b":
		client := sandbox.NewClient(cfg.Sandbox.BaseURL, cfg.Sandbox.APIKey, cfg.Sandbox.Template, cfg.Sandbox.ProvisionTimeout)
		executor = sandbox.NewExecutor(client, store, cfg.AI.OpenAIKey, cfg.AI.DefaultModel, xlsx)
		logger.Info().Str("base_url", cfg.Sandbox.BaseURL).Msg("executor: sandbox")
	case "local":
		ai := buildAIAdapter(ctx, cfg, logger)
		executor = runner.NewLocal(ai, store, xlsx)
		logger.Info().Msg("executor: local")
	}

	// ---- Repositories, use cases ----
	jobRepo := pg.NewJobRepo(pool)
	jobUC := usecase.NewJobUseCase(jobRepo, queue)

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	srv := web.NewServer(jobUC, store, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(cfg.Server.CORSOrigins),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Workers ----
	pool2 := worker.NewPool(cfg.Worker.Workers)
	pool2.Start(ctx)
	processor := worker.NewTaskProcessor(jobRepo, queue, executor, logger)
	go processor.Start(ctx, pool2)
	go queue.StartReaper(ctx, cfg.Worker.ReapInterval)

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	pool2.Stop()
}

// buildAIAdapter wires the provider chain for the local runner: Gemini
// first when configured, OpenAI as fallback, noop in dev when neither key
// is present.
func buildAIAdapter(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) adapter.AIProviderAdapter {
	var providers []adapter.AIProviderAdapter
	if cfg.AI.GeminiKey != "" {
		gem, err := aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, "")
		if err != nil {
			logger.Fatal().Err(err).Msg("gemini adapter")
		}
		providers = append(providers, gem)
		logger.Info().Msg("ai provider: gemini")
	}
	if cfg.AI.OpenAIKey != "" {
		oa, err := aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.DefaultModel)
		if err != nil {
			logger.Fatal().Err(err).Msg("openai adapter")
		}
		providers = append(providers, oa)
		logger.Info().Str("model", cfg.AI.DefaultModel).Msg("ai provider: openai")
	}
	if len(providers) == 0 {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("no ai provider configured: set ai.gemini_key or ai.openai_key")
		}
		logger.Warn().Msg("ai provider: noop (dev)")
		providers = append(providers, aiAdapters.NewNoopAIAdapter())
	}

	multi, err := aiAdapters.NewMultiAIAdapter(providers...)
	if err != nil {
		logger.Fatal().Err(err).Msg("ai adapter")
	}
	return multi
}

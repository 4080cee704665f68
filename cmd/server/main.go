package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-delivery/internal/config"
	"github.com/stemsi/exstem-delivery/internal/database"
	"github.com/stemsi/exstem-delivery/internal/handler"
	"github.com/stemsi/exstem-delivery/internal/logger"
	"github.com/stemsi/exstem-delivery/internal/middleware"
	"github.com/stemsi/exstem-delivery/internal/repository"
	"github.com/stemsi/exstem-delivery/internal/router"
	"github.com/stemsi/exstem-delivery/internal/service"
	"github.com/stemsi/exstem-delivery/internal/validator"
	"github.com/stemsi/exstem-delivery/internal/worker"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Str("question_source", string(cfg.QuestionSource)).
		Str("duplicate_policy", string(cfg.DuplicatePolicy)).
		Msg("Starting ExStem Delivery")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	checks := map[string]handler.HealthCheck{
		"postgres": func(ctx context.Context) error { return pool.Ping(ctx) },
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}

	// ─── Question Source ───────────────────────────────────────────────
	var questions service.QuestionSource = repository.NewQuestionRepository(pool)
	if cfg.QuestionSource == config.QuestionSourceMongo {
		client, err := database.NewMongoClient(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
		}
		defer func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}()
		coll := client.Database(cfg.MongoDatabase).Collection(cfg.MongoQuestionCollection)
		questions = repository.NewMongoQuestionRepository(coll)
		checks["mongo"] = mongoCheck(client)
	}

	// ─── Initialize Repositories ───────────────────────────────────────
	templateRepo := repository.NewTemplateRepository(pool)
	attemptRepo := repository.NewAttemptRepository(pool)
	draftRepo := repository.NewDraftRepository(rdb, pool)
	resultRepo := repository.NewResultRepository(pool)
	resultPublisher := repository.NewResultPublisher(rdb)
	templateCache := repository.NewTemplateCache(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg)
	templateService := service.NewTemplateService(templateRepo, questions, templateCache, cfg.TemplateCacheTTL, log)
	attemptService := service.NewAttemptService(templateService, attemptRepo, draftRepo, resultPublisher, cfg, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Attempt: handler.NewAttemptHandler(attemptService, log),
		Admin:   handler.NewAdminHandler(attemptService, templateService, log),
		WS:      handler.NewWSHandler(attemptService, log, cfg.AllowedOrigins),
		Health:  handler.NewHealthHandler(checks, handler.RedisQueueDepth(rdb), log),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	var workers sync.WaitGroup

	autosaveWorker := worker.NewAutosaveWorker(
		worker.NewRedisQueue(rdb, config.WorkerKey.PersistDraftsQueue), draftRepo, worker.DefaultBatchOptions, log)
	resultWorker := worker.NewResultWorker(
		worker.NewRedisQueue(rdb, config.WorkerKey.PersistResultsQueue), resultRepo, worker.DefaultBatchOptions, log)

	startWorker(workerCtx, &workers, autosaveWorker.Start)
	startWorker(workerCtx, &workers, resultWorker.Start)

	// ─── Prewarm Redis Caches ─────────────────────────────────────────
	// Load every active template into Redis before accepting traffic so the
	// first wave of starts does not stampede the question bank.
	if err := templateService.PrewarmActive(ctx); err != nil {
		log.Warn().Err(err).Msg("Cache prewarm failed")
	}

	// ─── Setup Router ──────────────────────────────────────────────────
	var limiter *middleware.RateLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(middleware.NewRedisCounter(rdb), cfg.RateLimitPerMinute, time.Minute, log)
	}
	r := router.SetupRouter(authService, handlers, limiter, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and wait for their queues to drain.
	workerCancel()
	waitWorkers(&workers, 10*time.Second, log)

	log.Info().Msg("Shutdown complete")
}

func startWorker(ctx context.Context, wg *sync.WaitGroup, start func(context.Context)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		start(ctx)
	}()
}

func waitWorkers(wg *sync.WaitGroup, timeout time.Duration, log zerolog.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Workers did not drain in time")
	}
}

func mongoCheck(client *mongo.Client) handler.HealthCheck {
	return func(ctx context.Context) error { return client.Ping(ctx, readpref.Primary()) }
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/Nickdtt/ia-crm/internal/conversation"
	"github.com/Nickdtt/ia-crm/internal/database"
	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/health"
	"github.com/Nickdtt/ia-crm/internal/idempotency"
	"github.com/Nickdtt/ia-crm/internal/jobs"
	jobhandlers "github.com/Nickdtt/ia-crm/internal/jobs/handlers"
	"github.com/Nickdtt/ia-crm/internal/leadcache"
	"github.com/Nickdtt/ia-crm/internal/lifecycle"
	"github.com/Nickdtt/ia-crm/internal/messages"
	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/rag"
	"github.com/Nickdtt/ia-crm/internal/ratelimit"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/Nickdtt/ia-crm/internal/server"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/config"
	"github.com/Nickdtt/ia-crm/pkg/graceful"
	"github.com/Nickdtt/ia-crm/pkg/logger"
	appredis "github.com/Nickdtt/ia-crm/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(*cfg)
	config.WatchLogLevel(v, logger.SetLevel)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info("starting crm agent",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.HTTP.Port),
	)

	loc, err := time.LoadLocation(cfg.Business.Timezone)
	if err != nil {
		return fmt.Errorf("load business timezone: %w", err)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	migrator := database.NewMigrator(db, log)
	if err := migrator.ApplyDir(ctx, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("database", func(ctx context.Context) error { return db.Close() })
	shutdown.Register("redis", func(ctx context.Context) error { return redisClient.Close() })

	// Domain services.
	leads := repository.NewLeadPostgres(db, log)
	appts := repository.NewAppointmentPostgres(db, log)
	availability := scheduling.NewAvailability(appts, loc, log)
	booking := scheduling.NewBooking(leads, appts, loc, cfg.Business.MeetingMinutes, log)

	catalog, err := messages.Load(cfg.Business.MessagesDir)
	if err != nil {
		return fmt.Errorf("load message catalog: %w", err)
	}

	offerPolicy := conversation.OfferConservative
	if cfg.Business.OptimisticOffer {
		offerPolicy = conversation.OfferOptimistic
	}

	engine := conversation.NewEngine(conversation.Options{
		Store:        session.NewRedisStore(appredis.NewMetricsClient(redisClient), cfg.Session.TTL, log),
		Understander: nlu.NewOpenAI(cfg.LLM, loc, log),
		Retriever:    rag.NewFileRetriever(cfg.Business.DocsDir, log),
		Availability: availability,
		Booking:      booking,
		Leads:        leads,
		LeadCache:    leadcache.NewCache(redisClient.Client),
		Catalog:      catalog,
		ErrHandler:   apperrors.NewHandler(log, cfg.Sentry.Enabled),
		OfferPolicy:  offerPolicy,
		Log:          log,
	})

	// Throttling: Redis-shared sliding window with in-memory fallback.
	memoryLimiter := ratelimit.NewMemoryLimiter(log)
	limiter := ratelimit.NewAdaptiveLimiter(
		ratelimit.NewRedisLimiter(redisClient.Client, log),
		memoryLimiter,
		log,
	)
	rules := ratelimit.NewRules(cfg.Limits)

	cleanupInterval := cfg.Limits.CleanupInterval
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	cleaner := ratelimit.NewCleaner(redisClient.Client, memoryLimiter, log, cleanupInterval)
	go cleaner.Run(ctx)

	// Background jobs.
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypeCompleteElapsed, jobhandlers.NewCompleteElapsedHandler(booking, log))
	go func() {
		if err := worker.Run(); err != nil {
			log.Error("jobs worker stopped", slog.Any("error", err))
		}
	}()
	shutdown.Register("jobs-worker", func(ctx context.Context) error {
		worker.Shutdown()
		return nil
	})

	scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs.CompleteElapsedAt, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return fmt.Errorf("register scheduled tasks: %w", err)
	}
	scheduler.Run()
	shutdown.Register("jobs-scheduler", func(ctx context.Context) error {
		scheduler.Shutdown()
		return nil
	})

	jobsManager := jobs.NewManager(redisOpt, log)
	shutdown.Register("jobs-manager", func(ctx context.Context) error { return jobsManager.Close() })

	// Health probes.
	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	checker.AddCheck("docs", health.NewDocsChecker(cfg.Business.DocsDir))

	api := server.New(server.Options{
		Engine:       engine,
		Booking:      booking,
		Availability: availability,
		Checker:      checker,
		Limiter:      limiter,
		Rules:        rules,
		Idempotency:  idempotency.NewManager(idempotency.NewRedisStore(redisClient.Client, log), log),
		DedupeTTL:    cfg.Jobs.IdempotencyTTL,
		JobsManager:  jobsManager,
		Log:          log,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := graceful.NewServer(log, httpServer, cfg.HTTP.ShutdownTimeout).ListenAndServe(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.Any("error", err))
	}

	log.Info("crm agent stopped")
	return serveErr
}

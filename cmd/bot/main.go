package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Proton-105/mlbb-topup-bot/internal/access"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/health"
	"github.com/Proton-105/mlbb-topup-bot/internal/idempotency"
	"github.com/Proton-105/mlbb-topup-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/mlbb-topup-bot/internal/jobs/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/ledger"
	"github.com/Proton-105/mlbb-topup-bot/internal/lifecycle"
	"github.com/Proton-105/mlbb-topup-bot/internal/lock"
	"github.com/Proton-105/mlbb-topup-bot/internal/middleware"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/pricing"
	"github.com/Proton-105/mlbb-topup-bot/internal/ratelimit"
	"github.com/Proton-105/mlbb-topup-bot/internal/reports"
	"github.com/Proton-105/mlbb-topup-bot/internal/repository"
	"github.com/Proton-105/mlbb-topup-bot/internal/server"
	"github.com/Proton-105/mlbb-topup-bot/internal/settings"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
	"github.com/Proton-105/mlbb-topup-bot/pkg/graceful"
	"github.com/Proton-105/mlbb-topup-bot/pkg/logger"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
	pkgredis "github.com/Proton-105/mlbb-topup-bot/pkg/redis"
)

const (
	notifyQueueSize   = 256
	notifyWorkers     = 4
	idempotencyTTL    = 24 * time.Hour
	cleanupInterval   = 10 * time.Minute
	lockTTL           = 30 * time.Second
	healthCheckBudget = 2 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "topup bot: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(config.ParseLevel(cfg.Logger.Level))

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      firstNonEmpty(cfg.Sentry.Environment, cfg.AppEnv),
			SampleRate:       cfg.Sentry.SampleRate,
			AttachStacktrace: true,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log, logCloser := logger.New(cfg.Logger, levelVar, cfg.Sentry.Enabled)
	defer logCloser.Close()
	slog.SetDefault(log)

	log.Info("starting topup bot",
		slog.String("env", cfg.AppEnv),
		slog.String("mode", cfg.Bot.Mode),
		slog.String("storage", cfg.Storage.Driver),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("jobs", cfg.Jobs.Enabled),
	)

	backend, err := repository.Open(ctx, cfg.Storage, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	accounts := repository.NewAccountStore(backend, log)
	settingsStore := repository.NewSettingsStore(backend, log)

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.New(ctx, cfg.Redis)
		if err != nil {
			log.Warn("redis unavailable, using in-process state", slog.Any("error", err))
			redisClient = nil
		}
	}

	var (
		stateStorage state.Storage = state.NewMemoryStorage()
		locker       lock.Locker   = lock.NewMemoryLocker()
		idemStore    idempotency.Store
		memIdem      *idempotency.MemoryStore
	)
	if redisClient != nil {
		stateStorage = state.NewRedisStorage(redisClient.Client, log, 2*cfg.Shop.DraftTTL)
		locker = lock.NewRedisLocker(redisClient.Client, log, lockTTL)
		idemStore = idempotency.NewRedisStore(redisClient.Client, log)
	} else {
		memIdem = idempotency.NewMemoryStore()
		idemStore = memIdem
	}

	fsm := state.NewStateMachine(stateStorage, log)
	registry := access.NewRegistry(strconv.FormatInt(cfg.Bot.OwnerID, 10), settingsStore, fsm, locker, log)
	prices := pricing.NewTable(settingsStore, cfg.Shop.WeeklyPassBase)
	if err := prices.Load(ctx); err != nil {
		return fmt.Errorf("load prices: %w", err)
	}
	shop := settings.NewService(settingsStore, registry, log)

	tb, err := bot.NewTelebot(cfg.Bot)
	if err != nil {
		return err
	}

	deliverer := notify.NewDeliverer(bot.NewSender(tb), registry, cfg.Bot.OpsChannelID, log)
	async := notify.NewAsyncPublisher(deliverer, notifyQueueSize, notifyWorkers, log)

	jobsEnabled := cfg.Jobs.Enabled && redisClient != nil
	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

	var (
		publisher notify.Publisher = async
		queue     jobs.Manager
	)
	if jobsEnabled {
		queue = jobs.NewManager(redisOpt, log)
		publisher = jobs.NewQueuePublisher(queue, async, log)
	}

	ledgerSvc := ledger.NewService(ledger.Deps{
		Accounts:  accounts,
		Access:    registry,
		Prices:    prices,
		Sessions:  fsm,
		Locker:    locker,
		Publisher: publisher,
		Features:  shop,
		Payments:  shop,
		Log:       log,
	}, ledger.Config{
		MinTopUp:      cfg.Shop.MinTopUp,
		BannedGameIDs: cfg.Shop.BannedGameIDs,
		OpsChannelID:  cfg.Bot.OpsChannelID,
	})

	h := handlers.New(handlers.Deps{
		Ledger:          ledgerSvc,
		Access:          registry,
		Settings:        shop,
		Prices:          prices,
		Reports:         reports.NewService(accounts, registry, loadLocation(cfg.Shop.Timezone, log), log),
		HistoryPageSize: cfg.Shop.HistoryPageSize,
		Log:             log,
	})

	var (
		rateLimit *middleware.RateLimitMiddleware
		memLimit  *ratelimit.MemoryLimiter
	)
	if cfg.RateLimit.Enabled {
		memLimit = ratelimit.NewMemoryLimiter(log)
		var limiter ratelimit.Limiter = memLimit
		if redisClient != nil {
			limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(redisClient.Client, log), memLimit, log)
		}
		rateLimit = middleware.NewRateLimitMiddleware(limiter, ratelimit.NewRules(cfg.RateLimit), log)
	}

	b := bot.New(tb, bot.Options{
		Handlers:    h,
		FSM:         fsm,
		RateLimit:   rateLimit,
		Idempotency: idempotency.NewManager(idemStore, idempotencyTTL, log),
		ErrHandler:  apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Log:         log,
	})

	checker := health.NewChecker(log, healthCheckBudget)
	checker.AddCheck("storage", health.NewStorageChecker(backend))
	checker.AddCheck("telegram", health.NewTelegramChecker(tb))
	if redisClient != nil {
		checker.AddCheck("redis", health.NewRedisChecker(redisClient.Client))
	}
	probes := lifecycle.NewProbes(checker, log)

	httpServer := graceful.NewServer(log,
		server.New(fmt.Sprintf(":%d", cfg.Server.Port), server.Router(probes, checker, log)),
		cfg.Server.ShutdownTimeout,
	)

	config.Watch(v, levelVar, log)

	draftCleaner := state.NewCleaner(stateStorage, ledgerSvc, log, cfg.Shop.DraftTTL, cfg.Shop.DraftSweepInterval)

	var redisForCleanup redis.UniversalClient
	if redisClient != nil {
		redisForCleanup = redisClient.Client
	}

	g, gctx := errgroup.WithContext(ctx)
	async.Start(gctx)

	g.Go(func() error { return httpServer.ListenAndServe(gctx) })
	g.Go(func() error {
		b.Start()
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		probes.Drain()
		b.Stop()
		return nil
	})
	g.Go(func() error {
		metrics.NewStateCollector(fsm).Run(gctx)
		return nil
	})
	g.Go(func() error {
		ratelimit.NewCleaner(redisForCleanup, memLimit, log, cleanupInterval).Run(gctx)
		return nil
	})
	g.Go(func() error {
		idempotency.NewCleaner(redisForCleanup, memIdem, log, cleanupInterval).Run(gctx)
		return nil
	})

	if jobsEnabled {
		worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
		worker.RegisterHandler(jobs.TaskTypeNotification, jobhandlers.NewNotificationHandler(deliverer, log))
		worker.RegisterHandler(jobs.TaskTypeDraftExpire, jobhandlers.NewDraftExpireHandler(draftCleaner, log))
		g.Go(func() error { return worker.Run(gctx) })

		scheduler := jobs.NewScheduler(redisOpt, cfg.Shop.DraftSweepInterval, log)
		if err := scheduler.RegisterTasks(); err != nil {
			return err
		}
		scheduler.Run()
		g.Go(func() error {
			<-gctx.Done()
			scheduler.Shutdown()
			return nil
		})
	} else {
		g.Go(func() error {
			draftCleaner.Run(gctx)
			return nil
		})
	}

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("topup bot stopped with error", slog.Any("error", runErr))
	}

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("notifications", async.Close)
	if queue != nil {
		shutdown.Register("jobs client", func(context.Context) error { return queue.Close() })
	}
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("storage", func(context.Context) error { return backend.Close() })

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := shutdown.Execute(shutdownCtx); err != nil {
		return errors.Join(runErr, err)
	}

	log.Info("topup bot stopped")
	return runErr
}

// loadLocation falls back to Myanmar's fixed offset when the zone
// database is missing.
func loadLocation(name string, log *slog.Logger) *time.Location {
	if name == "" {
		name = "Asia/Yangon"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Warn("timezone unavailable, using UTC+06:30", slog.String("timezone", name), slog.Any("error", err))
		return time.FixedZone("MMT", 6*60*60+30*60)
	}
	return loc
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package main - точка входа EduAid Hub: REST API прогресса учеников
// и фоновые задачи (просрочка уроков, напоминания, выгрузка сессий).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/eduaid/eduaid-hub/config"

	// Application layer
	"github.com/eduaid/eduaid-hub/internal/application/command"
	"github.com/eduaid/eduaid-hub/internal/application/eventhandler"
	"github.com/eduaid/eduaid-hub/internal/application/query"
	"github.com/eduaid/eduaid-hub/internal/application/session"

	// Domain layer
	"github.com/eduaid/eduaid-hub/internal/domain/catalog"
	"github.com/eduaid/eduaid-hub/internal/domain/progress"
	"github.com/eduaid/eduaid-hub/internal/domain/shared"

	// Infrastructure layer
	"github.com/eduaid/eduaid-hub/internal/infrastructure/auth"
	catalogsource "github.com/eduaid/eduaid-hub/internal/infrastructure/catalog"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/messaging"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/metrics"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/persistence/local"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/persistence/memory"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/persistence/postgres"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/persistence/redis"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/scheduler"
	"github.com/eduaid/eduaid-hub/internal/infrastructure/scheduler/jobs"

	// Interface layer
	httpserver "github.com/eduaid/eduaid-hub/internal/interface/http"
	"github.com/eduaid/eduaid-hub/internal/interface/http/handlers"

	// Packages
	"github.com/eduaid/eduaid-hub/pkg/logger"
	"github.com/eduaid/eduaid-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// eventBus - шина, в которую публикуют сессии и на которую подписаны
// аудит и метрики.
type eventBus interface {
	shared.EventPublisher
	shared.EventSubscriber
	Close() error
}

func run() error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddCaller: true,
	})
	defer log.Sync()

	log.Info("starting EduAid Hub",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("storage", cfg.Storage.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := timeutil.NewRealClock()
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	var m *metrics.Metrics
	if cfg.Observability.MetricsEnabled {
		m = metrics.New(true)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. КАТАЛОГ И ПРАВИЛА
	// ─────────────────────────────────────────────────────────────────────────
	cat, err := loadCatalog(ctx, cfg.Catalog, log)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}
	log.Info("catalog loaded",
		logger.Int("lessons", len(cat.Lessons())),
		logger.Int("activities", len(cat.Activities())),
	)

	tracker, err := progress.NewTracker(cat, progress.Policy{
		LessonWindow:      cfg.Progress.LessonWindow,
		ActivityDueOffset: cfg.Progress.ActivityDueOffset,
		UnlockNoticeDelay: cfg.Progress.UnlockNoticeDelay,
		BadgeNoticeDelay:  cfg.Progress.BadgeNoticeDelay,
		AchievementSeed:   cfg.Progress.AchievementSeed,
		RecentLimit:       cfg.Progress.RecentLimit,
		ReminderWindow:    cfg.Progress.ReminderWindow,
	})
	if err != nil {
		return fmt.Errorf("invalid progress policy: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. REDIS (кеш снимков и/или межинстансная шина)
	// ─────────────────────────────────────────────────────────────────────────
	var redisCache *redis.Cache
	if cfg.Storage.CacheEnabled || cfg.Redis.EventsEnabled {
		redisCache, err = redis.NewCache(redis.Config{
			Addr:         cfg.Redis.Addr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		health.AddCheck("redis", handlers.NewPingCheck(redisCache))
		log.Info("redis connection established", logger.String("addr", cfg.Redis.Addr()))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. ХРАНИЛИЩЕ СОСТОЯНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	store, closeStore, err := openStore(ctx, cfg, health, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if redisCache != nil && cfg.Storage.CacheEnabled {
		store = redis.NewStateCache(store, redisCache, cfg.Redis.SnapshotTTL, log)
		log.Info("snapshot cache enabled", logger.Duration("ttl", cfg.Redis.SnapshotTTL))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultInMemoryEventBusConfig()
	busConfig.AsyncMode = true
	busConfig.Logger = log
	if m != nil {
		busConfig.Observer = m
	}

	var bus eventBus
	if redisCache != nil && cfg.Redis.EventsEnabled {
		bus, err = messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         messaging.NewGoRedisClient(redisCache.Client()),
			ChannelName:    cfg.Redis.EventsChannel,
			LocalBusConfig: busConfig,
			Logger:         log,
		})
		if err != nil {
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
	} else {
		bus = messaging.NewInMemoryEventBus(busConfig)
	}
	defer func() {
		log.Info("closing event bus")
		_ = bus.Close()
	}()

	if err := eventhandler.NewAuditLogHandler(log).Register(bus); err != nil {
		return fmt.Errorf("failed to register audit log: %w", err)
	}
	if m != nil {
		if err := m.Register(bus); err != nil {
			return fmt.Errorf("failed to register metrics: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. СЕССИИ И CQRS-ОБРАБОТЧИКИ
	// ─────────────────────────────────────────────────────────────────────────
	manager, err := session.NewManager(session.Options{
		Tracker:     tracker,
		Store:       store,
		Publisher:   bus,
		Clock:       clock,
		Features:    cfg.Features,
		SaveTimeout: cfg.Database.QueryTimeout,
		Logger:      log,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	defer func() {
		n := manager.CloseAll()
		log.Info("sessions closed", logger.Int("count", n))
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 7. АУТЕНТИФИКАЦИЯ
	// ─────────────────────────────────────────────────────────────────────────
	users, err := auth.LoadUsers(cfg.Auth.UsersFile)
	if err != nil {
		return fmt.Errorf("failed to load users: %w", err)
	}
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		log.Warn("AUTH_JWT_SECRET is not set, issued tokens will not survive a restart")
	}
	authenticator, err := auth.NewLocal(users, auth.Config{
		Secret:       secret,
		Issuer:       cfg.Auth.Issuer,
		TokenTTL:     cfg.Auth.TokenTTL,
		TempTokenTTL: cfg.Auth.TempTokenTTL,
		TwoFactor:    cfg.Auth.TwoFactorCodes,
		Clock:        clock,
		Logger:       log,
	})
	if err != nil {
		return fmt.Errorf("failed to create authenticator: %w", err)
	}
	log.Info("users loaded", logger.Int("count", users.Len()))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		schedConfig := scheduler.SchedulerConfig{
			Clock:      clock,
			Logger:     log,
			JobTimeout: cfg.Scheduler.JobTimeout,
		}
		var sweepObserver jobs.SweepObserver
		if m != nil {
			schedConfig.Observer = m
			sweepObserver = m
		}
		sched = scheduler.NewScheduler(schedConfig)

		sweep := jobs.NewSweepLessonsJob(manager, sweepObserver, log)
		if err := sched.Register(sweep, scheduler.NewIntervalSchedule(cfg.Scheduler.SweepInterval)); err != nil {
			return fmt.Errorf("failed to register %s: %w", sweep.Name(), err)
		}
		evict := jobs.NewEvictIdleJob(manager, clock, jobs.EvictIdleConfig{IdleAfter: cfg.Scheduler.SessionIdleAfter}, log)
		if err := sched.Register(evict, scheduler.NewIntervalSchedule(cfg.Scheduler.SessionIdleAfter/2)); err != nil {
			return fmt.Errorf("failed to register %s: %w", evict.Name(), err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 9. HTTP API
	// ─────────────────────────────────────────────────────────────────────────
	deps := httpserver.Dependencies{
		StartLesson:           command.NewStartLessonHandler(manager),
		UpdateLessonProgress:  command.NewUpdateLessonProgressHandler(manager),
		CompleteLesson:        command.NewCompleteLessonHandler(manager),
		CompleteActivity:      command.NewCompleteActivityHandler(manager),
		MarkNotificationsRead: command.NewMarkNotificationsReadHandler(manager),
		GetDashboard:          query.NewGetDashboardHandler(manager),
		GetCalendar:           query.NewGetCalendarHandler(manager),
		GetProgress:           query.NewGetProgressHandler(manager),
		GetNotifications:      query.NewGetNotificationsHandler(manager),
		Catalog:               cat,
		Auth:                  authenticator,
		Sessions:              manager,
		HealthChecker:         health,
		Logger:                log,
	}
	if m != nil {
		deps.MetricsHandler = m.Handler()
		deps.Observer = m
	}

	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.HTTP.Host
	serverConfig.Port = cfg.HTTP.Port
	serverConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	serverConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	serverConfig.AllowedOrigins = cfg.HTTP.AllowedOrigins
	serverConfig.Version = cfg.App.Version

	server, err := httpserver.NewServer(serverConfig, deps)
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. ЗАПУСК И GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	if sched != nil {
		if err := sched.Start(gctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
				log.Warn("scheduler stop failed", logger.Err(err))
			}
		}()
	}

	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("starting graceful shutdown", logger.Duration("timeout", cfg.App.ShutdownTimeout))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutdown completed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// loadCatalog выбирает источник: контент-API, файл или встроенный каталог.
func loadCatalog(ctx context.Context, cfg config.CatalogConfig, log *logger.Logger) (*catalog.Catalog, error) {
	var (
		provider catalog.Provider
		err      error
	)
	switch {
	case cfg.URL != "":
		log.Info("loading catalog from content API", logger.String("url", cfg.URL))
		provider, err = catalogsource.NewHTTPProvider(catalogsource.HTTPConfig{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
			Logger:  log,
		})
	case cfg.Path != "":
		log.Info("loading catalog from file", logger.String("path", cfg.Path))
		provider, err = catalogsource.NewFileProvider(cfg.Path)
	default:
		provider = catalogsource.NewDefaultProvider()
	}
	if err != nil {
		return nil, err
	}

	loadCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	return catalog.Load(loadCtx, provider)
}

// openStore открывает выбранное хранилище и регистрирует его health check.
func openStore(ctx context.Context, cfg *config.Config, health handlers.HealthChecker, log *logger.Logger) (progress.Store, func(), error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		opts := postgres.DefaultPoolOptions()
		if cfg.Database.MaxOpenConns > 0 {
			opts.MaxConns = int32(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			opts.MinConns = int32(cfg.Database.MaxIdleConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		}
		if cfg.Database.ConnMaxIdleTime > 0 {
			opts.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime
		}

		conn, err := postgres.NewConnection(ctx, cfg.Database.URL, opts)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
			}
			log.Info("database schema is up to date")
		}
		health.AddCheck("database", handlers.NewPingCheck(conn))
		return postgres.NewStateRepository(conn, cfg.Database.QueryTimeout), conn.Close, nil

	case config.StorageSQLite:
		dir := filepath.Dir(cfg.Local.Path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
		s, err := local.Open(cfg.Local.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local store: %w", err)
		}
		health.AddCheck("database", func(ctx context.Context) error {
			_, err := s.Count(ctx)
			return err
		})
		log.Info("local snapshot store opened", logger.String("path", cfg.Local.Path))
		return s, func() { _ = s.Close() }, nil

	default:
		log.Warn("learner state is kept in memory and lost on restart")
		return memory.NewStore(), func() {}, nil
	}
}

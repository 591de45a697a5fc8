// Package main - точка входа сервиса прогрессии питомца.
//
// Сервис принимает ежедневные метрики здоровья по REST API, ведёт
// достижения, серии, недельные задания и косметику, а по понедельникам
// ротирует задания всех известных пользователей.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"

	"github.com/pulsepet/progression/config"
	"github.com/pulsepet/progression/internal/application/progression"
	"github.com/pulsepet/progression/internal/application/saga"
	"github.com/pulsepet/progression/internal/domain/achievement"
	"github.com/pulsepet/progression/internal/domain/challenge"
	"github.com/pulsepet/progression/internal/domain/cosmetic"
	domainnotify "github.com/pulsepet/progression/internal/domain/notification"
	"github.com/pulsepet/progression/internal/domain/shared"
	"github.com/pulsepet/progression/internal/infrastructure/messaging"
	"github.com/pulsepet/progression/internal/infrastructure/notification"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/blob"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/kv"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/postgres"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/progress"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/redis"
	"github.com/pulsepet/progression/internal/infrastructure/persistence/s3store"
	"github.com/pulsepet/progression/internal/infrastructure/scheduler"
	"github.com/pulsepet/progression/internal/infrastructure/scheduler/jobs"
	apihttp "github.com/pulsepet/progression/internal/interface/http"
	"github.com/pulsepet/progression/internal/interface/http/handlers"
	"github.com/pulsepet/progression/pkg/circuitbreaker"
	"github.com/pulsepet/progression/pkg/logger"
	"github.com/pulsepet/progression/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// APPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// App держит все долгоживущие компоненты для упорядоченной остановки.
type App struct {
	cfg *config.Config
	log *logger.Logger

	store   *storeBackend
	bus     *messaging.Bus
	engine  *progression.Engine
	cron    *scheduler.Scheduler
	server  *apihttp.Server
	checker *handlers.HealthChecker
}

func run(ctx context.Context) error {
	// .env необязателен.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.Observability.LogCaller,
	}).With(
		logger.String("service", cfg.App.Name),
		logger.String("version", cfg.App.Version),
	)

	log.Info("starting progression service",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("store", string(cfg.Store.Driver)),
	)

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.server.Start()
	}()

	if app.cron != nil {
		if err := app.cron.Start(); err != nil {
			app.shutdown()
			return fmt.Errorf("start scheduler: %w", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received signal", logger.String("signal", sig.String()))
	case err := <-serverErr:
		if err != nil {
			log.Error("http server stopped", logger.Err(err))
		}
	case <-ctx.Done():
	}

	app.shutdown()
	log.Info("progression service stopped")
	return nil
}

func newApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	app := &App{cfg: cfg, log: log, checker: handlers.NewHealthChecker(cfg.App.Version)}

	backend, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.store = backend
	if backend.ping != nil {
		app.checker.AddCheck(string(cfg.Store.Driver), backend.ping)
	}

	gw := blob.NewGateway(backend.store,
		blob.WithRetrier(retry.New(
			retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
			retry.WithInitialDelay(cfg.Retry.InitialDelay),
			retry.WithMaxDelay(cfg.Retry.MaxDelay),
		)),
		blob.WithBreaker(circuitbreaker.New("store",
			circuitbreaker.WithFailureThreshold(cfg.Retry.BreakerThreshold),
			circuitbreaker.WithTimeout(cfg.Retry.BreakerTimeout),
			circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
				log.Warn("circuit breaker state changed",
					logger.String("breaker", name),
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			}),
		)),
		blob.WithLogger(log),
	)

	app.bus = messaging.NewBus(messaging.Options{Async: true, Workers: 8, Logger: log})
	if err := app.attachNotifier(); err != nil {
		app.shutdown()
		return nil, err
	}

	achievements := achievement.DefaultCatalog()
	cosmetics := cosmetic.DefaultCatalog()
	app.engine = progression.NewEngine(
		progression.Repositories{
			Achievements: progress.NewAchievementRepository(gw, achievements),
			Streaks:      progress.NewStreakRepository(gw, log),
			Challenges:   progress.NewChallengeRepository(gw),
			Cosmetics:    progress.NewCosmeticRepository(gw, cosmetics),
			History:      progress.NewHealthHistoryRepository(gw),
			Directory:    progress.NewDirectory(gw),
		},
		progression.Catalogs{
			Achievements: achievements,
			Cosmetics:    cosmetics,
			Templates:    challenge.DefaultTemplates,
		},
		progression.WithLogger(log),
		progression.WithPublisher(app.bus),
	)

	features := cfg.Features
	pipeline := saga.NewHealthUpdateSaga(app.engine, nil, log).
		WithStepGate(func(step saga.HealthUpdateStep, userID string) bool {
			switch step {
			case saga.StepRotation, saga.StepChallenges:
				return features.ForUser(config.FeaturePipelineChallenges, userID)
			case saga.StepEvolution:
				return features.ForUser(config.FeaturePipelineEvolution, userID)
			}
			return true
		})

	if cfg.Scheduler.Enabled && features.IsEnabled(config.FeatureSchedulerRotation, nil) {
		if err := app.setupScheduler(); err != nil {
			app.shutdown()
			return nil, err
		}
	}

	app.server = apihttp.NewServer(apihttp.Config{
		Host:           cfg.HTTP.Host,
		Port:           cfg.HTTP.Port,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		BodyLimit:      cfg.HTTP.BodyLimit,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		APIKeyHeader:   cfg.HTTP.APIKeyHeader,
		APIKeys:        cfg.HTTP.APIKeys,
		DisableReset:   !features.IsEnabled(config.FeatureAPIUserReset, nil),
	}, apihttp.Dependencies{
		Engine:   app.engine,
		Updater:  pipeline,
		Health:   app.checker,
		Logger:   log,
		Features: features,
	})

	return app, nil
}

// attachNotifier подписывает доставку уведомлений на шину событий.
func (a *App) attachNotifier() error {
	features := a.cfg.Features
	var channels []domainnotify.Channel
	if features.IsEnabled(config.FeatureNotifyLog, nil) {
		channels = append(channels, notification.NewLogChannel(a.log))
	}
	if a.store.redis != nil && features.IsEnabled(config.FeatureNotifyPubSub, nil) {
		pub := redis.NewPublisher(a.store.redis.Client(), a.cfg.Redis.NotifyChannel)
		channels = append(channels, notification.NewPubSubChannel(pub))
		a.log.Info("publishing notifications", logger.String("channel", pub.Channel()))
	}
	if len(channels) == 0 {
		return nil
	}

	notifier := notification.NewNotifier(a.log, channels...)
	wrap := func(h shared.EventHandler) shared.EventHandler {
		return messaging.Chain(h,
			messaging.Recover(a.log),
			messaging.Retry(retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(100*time.Millisecond))),
		)
	}
	if err := notifier.Attach(a.bus, wrap); err != nil {
		return fmt.Errorf("attach notifier: %w", err)
	}
	return nil
}

// setupScheduler регистрирует еженедельную ротацию заданий.
func (a *App) setupScheduler() error {
	cron, err := scheduler.New(scheduler.Config{
		Logger:         a.log,
		Timezone:       a.cfg.App.Location,
		MaxHistorySize: a.cfg.Scheduler.HistorySize,
		StopTimeout:    a.cfg.App.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}

	rotate := jobs.NewRotateChallengesJob(
		a.engine.Directory,
		a.engine,
		a.engine.Challenges,
		a.log,
		jobs.RotateChallengesConfig{
			Concurrency:    a.cfg.Scheduler.Concurrency,
			Timeout:        a.cfg.Scheduler.JobTimeout,
			MaxFailureRate: 0.5,
		},
	)
	if err := cron.Register(rotate, gocron.CronJob(a.cfg.Scheduler.RotationCron, false)); err != nil {
		return fmt.Errorf("register %s: %w", rotate.Name(), err)
	}

	cron.OnJobComplete(func(res scheduler.JobResult) {
		if !res.Success {
			a.log.Error("scheduled job failed",
				logger.String("job", res.JobName),
				logger.Err(res.Error),
			)
		}
	})

	a.cron = cron
	a.checker.AddCheck("scheduler", func(context.Context) error {
		if !cron.IsRunning() {
			return errors.New("scheduler is not running")
		}
		return nil
	})
	return nil
}

// shutdown останавливает компоненты в обратном порядке запуска.
func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Error("http shutdown failed", logger.Err(err))
		}
	}
	if a.cron != nil && a.cron.IsRunning() {
		if err := a.cron.Stop(); err != nil {
			a.log.Error("scheduler stop failed", logger.Err(err))
		}
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.log.Error("event bus close failed", logger.Err(err))
		}
	}
	if a.store != nil && a.store.close != nil {
		a.store.close()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STORAGE
// ══════════════════════════════════════════════════════════════════════════════

// storeBackend - выбранное хранилище с проверкой доступности и закрытием.
type storeBackend struct {
	store kv.Store
	ping  handlers.HealthCheckFunc
	close func()

	// redis задан только для драйвера redis: клиент нужен публикатору.
	redis *redis.Store
}

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storeBackend, error) {
	switch cfg.Store.Driver {
	case config.DriverRedis:
		rc := redis.DefaultConfig()
		rc.Host = cfg.Redis.Host
		rc.Port = cfg.Redis.Port
		rc.Password = cfg.Redis.Password
		rc.DB = cfg.Redis.DB
		rc.PoolSize = cfg.Redis.PoolSize
		rc.MinIdleConns = cfg.Redis.MinIdleConns
		rc.DialTimeout = cfg.Redis.DialTimeout
		rc.ReadTimeout = cfg.Redis.ReadTimeout
		rc.WriteTimeout = cfg.Redis.WriteTimeout
		rc.KeyTTL = cfg.Store.KeyTTL

		store, err := redis.NewStore(rc)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info("redis store connected", logger.String("addr", rc.Addr()))
		return &storeBackend{
			store: store,
			ping:  handlers.PingCheck(store),
			close: func() { _ = store.Close() },
			redis: store,
		}, nil

	case config.DriverPostgres:
		pc := postgres.DefaultConfig(cfg.Database.URL)
		pc.MaxConns = int32(cfg.Database.MaxConns)
		pc.MinConns = int32(cfg.Database.MinConns)
		pc.MaxConnLifetime = cfg.Database.ConnMaxLifetime
		pc.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

		conn, err := postgres.NewConnection(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
				conn.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		log.Info("postgres store connected")
		return &storeBackend{
			store: postgres.NewStore(conn),
			ping:  handlers.PingCheck(conn),
			close: conn.Close,
		}, nil

	case config.DriverS3:
		store, err := s3store.New(ctx, s3store.Config{
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Prefix:          cfg.S3.Prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("open s3 store: %w", err)
		}
		log.Info("s3 store ready", logger.String("bucket", cfg.S3.Bucket))
		return &storeBackend{store: store}, nil

	default:
		log.Warn("using in-memory store, progress is lost on restart")
		return &storeBackend{store: kv.NewMemoryStore()}, nil
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/domain"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/core/port"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/config"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/database"
	kafkainfra "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/kafka"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/logger"
	redisinfra "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/redis"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/infra/security"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository/memory"
	postgresrepo "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository/postgres"
	redisrepo "github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/repository/redis"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/middleware"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/transport/http/routes"
	"github.com/Meliksahcaliskan/Learning-Management-System-sub000/internal/usecase"
)

type Application struct {
	cfg     *config.AppConfig
	engine  *gin.Engine
	logger  *zap.Logger
	pool    *pgxpool.Pool
	sweeper *usecase.Sweeper
	closers []io.Closer
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &Application{cfg: cfg, logger: log}
	ok := false
	defer func() {
		if !ok {
			app.close()
		}
	}()

	if cfg.Postgres.AutoMigrate {
		if err := migrate(cfg.Postgres.DSN(), log); err != nil {
			return nil, err
		}
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	app.pool = pool
	repos := postgresrepo.NewRepositories(pool)

	kv, err := app.newTTLStore(ctx)
	if err != nil {
		return nil, err
	}

	events := app.newEventPublisher()

	hasher, err := security.NewArgon2Hasher(port.Argon2Params{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return nil, fmt.Errorf("init password hasher: %w", err)
	}

	codec, err := security.NewTokenCodec(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, fmt.Errorf("init token codec: %w", err)
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicySettings{
		MinLength:           cfg.PasswordRules.MinLength,
		MinCharacterClasses: cfg.PasswordRules.MinCharacterClasses,
		MinStrengthScore:    cfg.PasswordRules.MinStrengthScore,
	})

	degradation := domain.NewDegradationPolicy(domain.ParseDegradationPolicyMode(cfg.RateLimit.DegradationPolicy))
	loginLimiter := usecase.NewRateLimiter(kv, usecase.RateLimitConfig{
		MaxAttempts:   cfg.RateLimit.MaxAttempts,
		Window:        cfg.RateLimit.Window,
		BlockDuration: cfg.RateLimit.BlockDuration,
		StoreTimeout:  cfg.KV.OperationTimeout,
		Policy:        degradation,
	}, log)
	resetLimiter := usecase.NewRateLimiter(kv, usecase.RateLimitConfig{
		MaxAttempts:   cfg.PasswordReset.MaxAttempts,
		Window:        cfg.PasswordReset.Window,
		BlockDuration: cfg.PasswordReset.BlockDuration,
		StoreTimeout:  cfg.KV.OperationTimeout,
		Policy:        degradation,
	}, log)

	revocations := usecase.NewRevocationStore(kv, cfg.KV.OperationTimeout, log)
	issuer := usecase.NewTokenIssuer(codec, repos.RefreshTokens, usecase.TokenSettings{
		AccessTTL:            cfg.JWT.AccessTokenTTL,
		RefreshTTL:           cfg.JWT.RefreshTokenTTL,
		RememberMeMultiplier: cfg.JWT.RememberMeMultiplier,
		MaxRefreshPerUser:    cfg.RefreshTokens.MaxPerUser,
	}, log)
	validator := usecase.NewTokenValidator(codec, revocations, log)
	refresh := usecase.NewRefreshTokenService(codec, repos.RefreshTokens, repos.Users, issuer, log)

	authenticator, err := usecase.NewCredentialAuthenticator(repos.Users, hasher, loginLimiter, events, log)
	if err != nil {
		return nil, fmt.Errorf("init authenticator: %w", err)
	}
	authorizer := usecase.NewRoleAuthorizer()

	services := routes.ServiceSet{
		Auth:          usecase.NewAuthService(authenticator, issuer, refresh, revocations, authorizer, repos.Users, events, log),
		Registration:  usecase.NewRegistrationService(repos.Users, hasher, policy, events, log),
		PasswordReset: usecase.NewPasswordResetService(repos.Users, repos.ResetTokens, repos.RefreshTokens, hasher, policy, resetLimiter, events, cfg.PasswordReset.TokenTTL, log),
	}

	metrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	throttle := middleware.NewThrottle(middleware.ThrottleConfig{
		RequestsPerWindow: cfg.Throttle.RequestsPerWindow,
		Window:            cfg.Throttle.Window,
		Burst:             cfg.Throttle.Burst,
	}, middleware.ClientIPIdentifier(), log)

	app.engine = routes.Register(routes.Dependencies{
		Config:     cfg,
		Logger:     log,
		Services:   services,
		Validator:  validator,
		Authorizer: authorizer,
		Throttle:   throttle,
		Metrics:    metrics,
		Database:   pool,
		KV:         kv,
	})
	app.sweeper = usecase.NewSweeper(repos.RefreshTokens, repos.ResetTokens, cfg.Sweeper.Interval, log)

	ok = true
	return app, nil
}

func migrate(dsn string, log *zap.Logger) error {
	migrator, err := postgresrepo.NewMigrator(dsn)
	if err != nil {
		return fmt.Errorf("init migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Warn("close migrator failed", zap.Error(err))
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	log.Info("database migrations applied")
	return nil
}

// newTTLStore selects the store shared by the revocation list and the rate limiters.
func (a *Application) newTTLStore(ctx context.Context) (port.TTLStore, error) {
	if strings.EqualFold(a.cfg.KV.Backend, config.KVBackendMemory) {
		a.logger.Warn("using in-memory kv store; revocations and rate limits are not shared between instances")
		store := memory.NewKVStore(a.cfg.KV.CleanupInterval)
		a.closers = append(a.closers, store)
		return store, nil
	}

	client, err := redisinfra.NewClient(ctx, a.cfg.Redis, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init redis: %w", err)
	}
	a.closers = append(a.closers, client)
	return redisrepo.NewKVStore(client.Client(), a.cfg.Redis.KeyPrefix), nil
}

func (a *Application) newEventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.closers = append(a.closers, producer)
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.cfg.Kafka.PublishTimeout, a.logger)
}

func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.close()

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweeper()
		wg.Wait()
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.cfg.App.Host, a.cfg.App.Port),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting auth API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		timeout := a.cfg.App.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.logger.Info("shutting down auth API")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	case err := <-serverErrCh:
		return err
	}
}

// close releases resources in reverse acquisition order.
func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close resource failed", zap.Error(err))
		}
	}
	a.closers = nil
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/prudhvinik1/numberwatch/internal/alerting"
	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/config"
	"github.com/prudhvinik1/numberwatch/internal/database"
	"github.com/prudhvinik1/numberwatch/internal/logger"
	"github.com/prudhvinik1/numberwatch/internal/partner"
	"github.com/prudhvinik1/numberwatch/internal/ratelimit"
	"github.com/prudhvinik1/numberwatch/internal/repositories"
	"github.com/prudhvinik1/numberwatch/internal/services"
	"github.com/prudhvinik1/numberwatch/internal/vault"
)

// app holds every constructed-once service. Build it with newApp and release it with close.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	pool   *pgxpool.Pool
	redis  *redis.Client

	accountRepo  *repositories.PostgresAccountRepository
	resourceRepo *repositories.PostgresResourceRepository
	alertRepo    *repositories.PostgresAlertRepository
	auditRepo    *repositories.PostgresAuditRepository

	vault     *vault.Vault
	audit     *audit.Logger
	sync      *services.SyncService
	scheduler *services.Scheduler
	accounts  *services.AccountService
	resources *services.ResourceService
	alerts    *services.AlertService
	auth      *services.OperatorAuth
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "numberwatch")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &app{
		cfg:          cfg,
		logger:       log,
		pool:         pool,
		redis:        redisClient,
		accountRepo:  repositories.NewPostgresAccountRepository(pool),
		resourceRepo: repositories.NewPostgresResourceRepository(pool),
		alertRepo:    repositories.NewPostgresAlertRepository(pool),
		auditRepo:    repositories.NewPostgresAuditRepository(pool),
	}

	a.vault = vault.New(cfg.EncryptionKey, log)
	if _, ok := a.vault.GetKey(); !ok {
		log.Warn("TOKEN_ENCRYPTION_KEY missing or invalid; syncs will fail until it is configured")
	} else {
		// A usable key lifts blocks left by an earlier missing or bad key.
		cleared, err := a.accountRepo.ClearConfigurationBlocks(ctx)
		if err != nil {
			log.Warn("failed to clear configuration blocks", zap.Error(err))
		} else if cleared > 0 {
			log.Info("cleared configuration blocks", zap.Int("accounts", cleared))
		}
	}

	a.audit = audit.NewLogger(
		audit.NewRedisWindow(redisClient),
		a.auditRepo,
		audit.NewLogNotifier(log.Named("risk")),
		cfg.RiskAlertThreshold,
		log,
	)

	var limiter ratelimit.Limiter
	if cfg.RateLimitBackend == "memory" {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitQuota, cfg.RateLimitWindow)
	} else {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RateLimitQuota, cfg.RateLimitWindow, log.Named("ratelimit"))
	}
	client := partner.NewClient(cfg.PartnerBaseURL, cfg.PartnerTimeout, limiter, log.Named("partner"))

	a.sync = services.NewSyncService(
		a.accountRepo,
		a.resourceRepo,
		a.alertRepo,
		client,
		a.vault,
		alerting.NewEngine(),
		a.audit,
		cfg.SyncCooldown,
		log,
	)
	a.scheduler = services.NewScheduler(a.accountRepo, a.sync, cfg.ScheduleInterval, cfg.SyncWorkers, log)
	a.accounts = services.NewAccountService(a.accountRepo, a.resourceRepo, a.alertRepo, a.vault)
	a.resources = services.NewResourceService(a.resourceRepo)
	a.alerts = services.NewAlertService(a.alertRepo)
	a.auth = services.NewOperatorAuth(repositories.NewRedisSessionRepository(redisClient), cfg.JWTSecret, cfg.OperatorTokenTTL)

	return a, nil
}

func (a *app) close() {
	a.redis.Close()
	a.pool.Close()
	_ = a.logger.Sync()
}

// Package app wires configuration, storage, carriers and services together
// for the HTTP server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/onurcolak/sms-dispatch-service/environments"
	"github.com/onurcolak/sms-dispatch-service/internal/carrier"
	"github.com/onurcolak/sms-dispatch-service/internal/domain"
	"github.com/onurcolak/sms-dispatch-service/internal/ratelimit"
	"github.com/onurcolak/sms-dispatch-service/internal/repository"
	"github.com/onurcolak/sms-dispatch-service/internal/scheduler"
	"github.com/onurcolak/sms-dispatch-service/internal/service"
	"github.com/onurcolak/sms-dispatch-service/pkg/database"
	"github.com/onurcolak/sms-dispatch-service/pkg/logger"
	"github.com/onurcolak/sms-dispatch-service/pkg/redis"
	"github.com/onurcolak/sms-dispatch-service/pkg/webhook"
)

type App struct {
	Config *environments.Config
	DB     *sqlx.DB
	// Redis is nil when disabled or unreachable.
	Redis *redis.Client

	Carriers       *carrier.Registry
	Dispatch       *service.DispatchService
	Campaigns      *service.CampaignService
	Templates      *service.TemplateService
	Autoresponders *service.AutoresponderService
	Scheduler      *scheduler.Scheduler
}

// New connects to MySQL (and Redis when enabled) and builds every service.
// Migrations are not run here.
func New(cfg *environments.Config) (*App, error) {
	if path := environments.GetEnv("CARRIERS_FILE", ""); path != "" {
		if err := cfg.LoadCarriersFile(path); err != nil {
			return nil, err
		}
		logger.Infof("Loaded carrier credentials from %s", path)
	}

	db, err := database.NewMySQLDB(cfg.Database)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: db}

	if cfg.Redis.Enabled {
		a.Redis, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Warnf("Redis not available, caching disabled and rate limiting is per process: %v", err)
			a.Redis = nil
		}
	}

	a.Carriers = carrier.NewRegistryFromConfig(cfg.Dispatch, cfg.Carriers)
	logger.Infof("Configured carriers: %v", a.Carriers.Configured())

	// cache stays a nil interface when Redis is off so services can test for it.
	var (
		counter ratelimit.Counter = ratelimit.NewMemoryCounter()
		cache   interface {
			CacheSentMessage(ctx context.Context, messageID, carrierName, to string, sentAt time.Time) error
			GetCachedMessage(ctx context.Context, messageID string) (*domain.SentMessageCache, error)
			GetAllCachedMessages(ctx context.Context) (map[string]*domain.SentMessageCache, error)
		}
	)
	if a.Redis != nil {
		counter = a.Redis
		cache = a.Redis
	}
	limiter := ratelimit.NewLimiter(counter, cfg.Dispatch.RateLimitPerWindow, cfg.Dispatch.RateLimitWindow)

	templateRepo := repository.NewTemplateRepository(db)

	a.Dispatch = service.NewDispatchService(
		a.Carriers,
		repository.NewMessageLogRepository(db),
		templateRepo,
		limiter,
		cache,
		cfg.Dispatch.BatchSize,
	)
	a.Campaigns = service.NewCampaignService(repository.NewCampaignRepository(db), a.Dispatch, cfg.Dispatch.BatchSize)
	a.Templates = service.NewTemplateService(templateRepo)
	a.Autoresponders = service.NewAutoresponderService(repository.NewAutoresponderRepository(db), a.Dispatch)

	var alerter interface {
		SendAlert(ctx context.Context, alert webhook.Alert) error
	}
	if cfg.Alert.WebhookURL != "" {
		client := webhook.NewWebhookClient(cfg.Alert.WebhookURL, 0)
		logger.Infof("Alert webhook configured: %s", client.GetURL())
		alerter = client
	}
	a.Scheduler = scheduler.New(
		a.Campaigns,
		a.Autoresponders,
		alerter,
		cfg.Scheduler.Interval,
		cfg.Scheduler.RunLimit,
		cfg.Alert.IterationCount,
	)

	return a, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Errorf("Error closing Redis: %v", err)
		}
	}

	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

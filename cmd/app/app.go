package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"billing-reconciler/internal/config"
	"billing-reconciler/internal/domain/ports/adapter"
	"billing-reconciler/internal/domain/ports/repository"
	payAdapters "billing-reconciler/internal/infra/adapters/payment"
	pg "billing-reconciler/internal/infra/db/postgres"
	"billing-reconciler/internal/infra/directory"
	"billing-reconciler/internal/infra/i18n"
	"billing-reconciler/internal/infra/logging"
	"billing-reconciler/internal/infra/metrics"
	"billing-reconciler/internal/infra/notify"
	red "billing-reconciler/internal/infra/redis"
	"billing-reconciler/internal/infra/security"
	"billing-reconciler/internal/infra/worker"
	"billing-reconciler/internal/usecase"
)

// app holds the wired dependencies shared by the subcommands.
type app struct {
	cfg *config.Config
	log *zerolog.Logger

	pool    *pgxpool.Pool
	redis   *red.Client // nil when redis.url is unset
	workers *worker.Pool
	closers []io.Closer

	tm       repository.TransactionManager
	services repository.ServiceConfigRepository

	refunds  usecase.RefundUseCase
	webhooks usecase.WebhookIngestor
	finance  usecase.FinanceUseCase
	exports  usecase.ExportUseCase
	payments usecase.PaymentUseCase
	subs     usecase.SubscriptionUseCase
	catalog  usecase.ServiceCatalogUseCase
	life     usecase.LifecycleUseCase
}

func loadConfig() (*config.Config, *zerolog.Logger, error) {
	cfg, err := config.Load(cfgPath, devMode)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()
	metrics.SetBuildInfo(Version, Commit)
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	a := &app{cfg: cfg, log: logger}
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	// ---- Postgres ----
	a.pool, err = pg.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}

	// ---- Redis (optional) ----
	if cfg.Redis.URL != "" {
		a.redis, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.closers = append(a.closers, a.redis)
	}

	// ---- Repositories ----
	a.tm = pg.NewTxManager(a.pool)
	paymentRepo := pg.NewPaymentRepo(a.pool)
	refundRepo := pg.NewRefundRepo(a.pool)
	subRepo := pg.NewSubscriptionRepo(a.pool)
	userRepo := pg.NewUserRepo(a.pool)
	eventRepo := pg.NewWebhookEventRepo(a.pool)
	notifiedRepo := pg.NewNotificationLogRepo(a.pool)
	historyRepo := pg.NewServiceHistoryRepo(a.pool)
	a.services = pg.NewServiceConfigRepo(a.pool)
	if a.redis != nil {
		a.services = pg.NewServiceConfigCacheDecorator(a.services, a.redis, cfg.Redis.TTL, logger)
	}

	// ---- Gateway ----
	var gateway adapter.GatewayClient
	if cfg.Runtime.Dev {
		gateway = payAdapters.NewNoopGateway()
	} else {
		gateway, err = payAdapters.NewHTTPGateway(cfg.Gateway, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("gateway: %w", err)
		}
	}

	// ---- Notifications ----
	var sender adapter.NotificationSender = notify.NewLogSender(logger)
	if len(cfg.Kafka.Brokers) > 0 {
		ks, err := notify.NewKafkaSender(cfg.Kafka, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka: %w", err)
		}
		a.closers = append(a.closers, ks)
		sender = ks
	}
	a.workers = worker.NewPool(cfg.Lifecycle.NotifyWorkers, cfg.Lifecycle.BatchSize, logger)
	a.workers.Start(ctx)
	messages, err := i18n.NewTranslator(i18n.LocalesFS, cfg.Lifecycle.NotifyLocale)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("notification messages: %w", err)
	}
	dispatcher := notify.NewDispatcher(sender, directory.New(userRepo, cfg.Directory), a.workers, 10*time.Second, logger).
		WithMessages(messages)

	// ---- Use cases ----
	verifier := security.NewVerifier()
	machine := usecase.NewRefundStateMachine(refundRepo, paymentRepo, a.tm, logger)
	a.refunds = usecase.NewRefundUseCase(refundRepo, paymentRepo, gateway, machine, logger).
		WithLocker(a.locker(), 2*cfg.Gateway.Timeout+5*time.Second)
	a.webhooks = usecase.NewWebhookIngestor(verifier, cfg.Webhook.Secret, refundRepo, eventRepo, machine, logger)
	a.finance = usecase.NewFinanceUseCase(paymentRepo, refundRepo, logger)
	a.exports = usecase.NewExportUseCase(paymentRepo, refundRepo, logger)
	a.subs = usecase.NewSubscriptionUseCase(subRepo, logger)
	a.payments = usecase.NewPaymentUseCase(paymentRepo, a.services, userRepo, a.subs, a.tm, verifier, cfg.Webhook.Secret, logger)
	a.catalog = usecase.NewServiceCatalogUseCase(a.services, historyRepo, a.tm, logger)
	a.life = usecase.NewLifecycleUseCase(subRepo, a.services, notifiedRepo, dispatcher, usecase.LifecycleOptions{
		BatchSize:        cfg.Lifecycle.BatchSize,
		WarnDays:         cfg.Lifecycle.WarnDays,
		DefaultGraceDays: cfg.Lifecycle.DefaultGraceDays,
	}, logger)
	return a, nil
}

func (a *app) locker() red.Locker {
	if a.redis == nil {
		return nil
	}
	return red.NewLocker(a.redis)
}

// Close drains queued notifications before closing the senders and pools.
func (a *app) Close() {
	if a.workers != nil {
		a.workers.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn().Err(err).Msg("close failed")
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// Copyright (c) 2026 Nimbus Pay Ltd. All rights reserved.
// Use of this source code is governed by the Elastic License 2.0
// that can be found in the LICENSE file.

package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"

	"github.com/nimbuspay/ledger-core/internal/httpapi"
	"github.com/nimbuspay/ledger-core/internal/ledger/store"
	"github.com/nimbuspay/ledger-core/internal/offline"
	"github.com/nimbuspay/ledger-core/internal/outbox"
	"github.com/nimbuspay/ledger-core/internal/realtime"
	"github.com/nimbuspay/ledger-core/internal/reconcile"
	"github.com/nimbuspay/ledger-core/internal/transfer"
	"github.com/nimbuspay/ledger-core/pkg/config"
	"github.com/nimbuspay/ledger-core/pkg/mlog"
	"github.com/nimbuspay/ledger-core/pkg/money"
	"github.com/nimbuspay/ledger-core/pkg/mretry"
)

// App bundles every wired component of the ledger core, ready to serve
// HTTP and run its background loops.
type App struct {
	cfg    config.Config
	logger mlog.Logger

	db       *sql.DB
	redis    *goredis.Client
	amqpConn *amqp.Connection
	amqpCh   *amqp.Channel

	fiber *fiber.App

	dispatcher  *outbox.Dispatcher
	healer      *reconcile.Healer
	ledgerStore *store.Store
}

// New connects to every backing service named in cfg, runs pending
// migrations, and wires the full component graph. migrationsDir points
// at the repository's migrations directory.
func New(ctx context.Context, cfg config.Config, migrationsDir string, logger mlog.Logger) (*App, error) {
	db, err := connectPostgres(cfg.PostgresPrimaryDSN, migrationsDir, logger)
	if err != nil {
		return nil, err
	}

	redisClient, err := connectRedis(ctx, cfg.RedisDSN, logger)
	if err != nil {
		return nil, err
	}

	amqpConn, amqpCh, err := connectRabbitMQ(cfg.RabbitMQDSN, logger)
	if err != nil {
		return nil, err
	}

	currencies := money.NewCurrencySet(cfg.SupportedCurrencies)

	ledgerStore := store.New(db, logger)

	fastRetry := mretry.FastTransferConfig(cfg.FastTransferMaxRetries, cfg.FastTransferRetryBase())
	transferHandler := transfer.New(ledgerStore, currencies, cfg.Region, fastRetry, logger)

	outboxRepo := outbox.NewPostgresRepository(db)
	publisher := outbox.NewRabbitMQPublisher(amqpCh, ledgerEventsExchange)
	dispatcher := outbox.NewDispatcher(logger, outboxRepo, publisher, 0, cfg.IdempotencyRetentionDays)

	counters := reconcile.NewRedisCounterStore(redisClient)
	watermarks := reconcile.NewRedisWatermarkStore(redisClient)
	feeder := reconcile.NewFeeder(counters)

	tenants := newPostgresTenantLister(db)

	peerRegion := cfg.PeerRegion
	if peerRegion == "" {
		peerRegion = "region-b"
		if cfg.Region == "region-b" {
			peerRegion = "region-a"
		}
	}

	// A compensating entry must land on the fix region's own ledger: the
	// local handler posts here, the remote client posts against the peer.
	// With no peer base URL configured, peer-side drift is detected and
	// reported but never healed locally by mistake.
	executors := map[string]reconcile.TransferExecutor{cfg.Region: transferHandler}
	if cfg.PeerBaseURL != "" {
		executors[peerRegion] = transfer.NewRemoteClient(cfg.PeerBaseURL, 5*time.Second, logger)
	}

	healer := reconcile.NewHealer(counters, watermarks, tenants, executors, logger,
		cfg.Region, peerRegion, cfg.HealSuspenseAccount, cfg.HealMaxAbsMinor, cfg.HealStaleness())

	offlineStore := offline.New(db)
	offlineLock := offline.NewRedisDeviceLock(redisClient)
	verifier := offline.NewHmacVerifier(cfg.OfflineHMACSecret, cfg.OfflineMaxPayloadBytes)
	acceptor := offline.NewAcceptor(offlineStore, verifier)
	syncer := offline.NewSyncer(offlineStore, offlineLock, transferHandler, logger, cfg.Region)

	hub := realtime.NewHub(logger, ledgerStore)

	dispatcher.SetObserver(outbox.MultiObserver{feeder, hub})

	fiberApp := fiber.New(fiber.Config{DisableStartupMessage: true})
	httpapi.Register(fiberApp, httpapi.Deps{
		Logger:                 logger,
		Transfer:               transferHandler,
		Balance:                ledgerStore,
		Acceptor:               acceptor,
		Syncer:                 syncer,
		Hub:                    hub,
		OfflineMaxPayloadBytes: cfg.OfflineMaxPayloadBytes,
		OfflineSyncMaxPerCall:  cfg.OfflineSyncMaxPerCall,
	})

	return &App{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		redis:       redisClient,
		amqpConn:    amqpConn,
		amqpCh:      amqpCh,
		fiber:       fiberApp,
		dispatcher:  dispatcher,
		healer:      healer,
		ledgerStore: ledgerStore,
	}, nil
}

// Run starts every background loop (outbox dispatcher, retention sweep,
// healer) and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.dispatcher.Run(ctx, time.Second)
	go a.dispatcher.RunRetentionSweep(ctx, a.ledgerStore, 24*time.Hour)
	go a.healer.Run(ctx, a.cfg.HealPeriod())

	errCh := make(chan error, 1)

	go func() {
		errCh <- a.fiber.Listen(a.cfg.ServerAddress)
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown closes every backing connection gracefully.
func (a *App) Shutdown() error {
	if err := a.fiber.Shutdown(); err != nil {
		a.logger.Warnf("bootstrap: fiber shutdown: %v", err)
	}

	if err := a.amqpCh.Close(); err != nil {
		a.logger.Warnf("bootstrap: rabbitmq channel close: %v", err)
	}

	if err := a.amqpConn.Close(); err != nil {
		a.logger.Warnf("bootstrap: rabbitmq connection close: %v", err)
	}

	if err := a.redis.Close(); err != nil {
		a.logger.Warnf("bootstrap: redis close: %v", err)
	}

	if err := a.db.Close(); err != nil {
		return fmt.Errorf("bootstrap: postgres close: %w", err)
	}

	return nil
}

// @title        Identity Service API
// @version      1.0
// @description  User registration, credential checks and profile management with cascading deletion of peer-owned data.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/99minutos/identity-service/internal/api"
	"github.com/99minutos/identity-service/internal/api/handler"
	"github.com/99minutos/identity-service/internal/core/ports"
	"github.com/99minutos/identity-service/internal/core/service"
	"github.com/99minutos/identity-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/identity-service/internal/infrastructure/db/postgres"
	"github.com/99minutos/identity-service/internal/infrastructure/db/redis"
	"github.com/99minutos/identity-service/internal/infrastructure/peer"
	"github.com/99minutos/identity-service/internal/infrastructure/queue"
	"github.com/99minutos/identity-service/internal/pkg/config"
	"github.com/99minutos/identity-service/pkg/crypto"
	"github.com/99minutos/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	var teardown []func()
	defer func() {
		for i := len(teardown) - 1; i >= 0; i-- {
			teardown[i]()
		}
	}()

	// --- User store ---
	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	teardown = append(teardown, closeStore)
	checks := []handler.DependencyCheck{{Name: cfg.Store.Driver, Ping: store.Ping}}

	var opts []service.Option

	// --- Cleanup ledger (optional) ---
	var ledger *redis.CleanupLedger
	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		teardown = append(teardown, closeRedis(rdb, log))
		ledger = redis.NewCleanupLedger(rdb)
		opts = append(opts, service.WithCleanupLedger(ledger))
		checks = append(checks, handler.DependencyCheck{Name: "redis", Ping: redis.Pinger(rdb)})
		log.Info().Str("addr", cfg.Redis.Addr).Msg("peer cleanup ledger enabled")
	}

	// --- Peer cascade (optional) ---
	var peerClient *peer.Client
	if cfg.PeerEnabled() {
		peerClient, err = peer.New(cfg.Peer.BaseURL,
			peer.WithResource(cfg.Peer.Resource),
			peer.WithTimeout(cfg.Peer.Timeout),
			peer.WithServiceSecret(cfg.Peer.ServiceSecret),
		)
		if err != nil {
			return err
		}
		opts = append(opts, service.WithPeer(peerClient))
		log.Info().Str("base_url", cfg.Peer.BaseURL).Str("resource", cfg.Peer.Resource).Msg("peer cascade enabled")
	} else {
		log.Warn().Msg("PEER_BASE_URL not set, profile deletion will not cascade")
	}

	// --- Reconciler (optional) ---
	if cfg.ReconcileEnabled() {
		reconciler := queue.NewReconciler(ledger, peerClient, queue.Config{
			Interval: cfg.Reconcile.Interval,
			Workers:  cfg.Reconcile.Workers,
			Batch:    cfg.Reconcile.Batch,
		}, log.With().Str("component", "reconciler").Logger())
		reconcileCtx, cancel := context.WithCancel(ctx)
		reconciler.Start(reconcileCtx)
		teardown = append(teardown, func() {
			cancel()
			<-reconciler.Done()
		})
	}

	svc := service.NewIdentityService(store, crypto.NewBcryptHasher(cfg.BcryptCost), log, opts...)

	e := api.NewRouter(api.RouterConfig{
		Service: svc,
		Checks:  checks,
		Log:     log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("identity service starting")
		errCh <- e.Start(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// openStore connects the configured user store once for the whole process
// and returns it with its teardown.
func openStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.UserStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMongo:
		client, db, err := mongo.Connect(ctx, mongo.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			AppName:  "identity-service",
		})
		if err != nil {
			return nil, nil, err
		}
		store := mongo.NewUserStore(db, cfg.Store.QueryTimeout)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = mongo.Disconnect(context.Background(), client)
			return nil, nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to mongo")
		return store, func() {
			if err := mongo.Disconnect(context.Background(), client); err != nil {
				log.Error().Err(err).Msg("mongo disconnect failed")
			}
		}, nil

	default:
		pool, err := postgres.Connect(ctx, postgres.Config{URL: cfg.Postgres.URL})
		if err != nil {
			return nil, nil, err
		}
		if cfg.Postgres.AutoMigrate {
			migrator, err := postgres.NewMigrator(pool, log)
			if err == nil {
				err = migrator.Up(ctx)
			}
			if err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		log.Info().Msg("connected to postgres")
		return postgres.NewUserStore(pool, cfg.Store.QueryTimeout), pool.Close, nil
	}
}

func closeRedis(client *goredis.Client, log zerolog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			log.Error().Err(err).Msg("redis close failed")
		}
	}
}

// Command identity-sweeper prunes expired entries from the token revocation
// ledger. It runs beside the services that embed the Engine, so those can
// disable their own sweeper.
//
// Configuration comes from the environment (or a .env file):
//
//	DATABASE_URL          PostgreSQL ledger (exclusive with REDIS_ADDR)
//	DATABASE_MIGRATE      apply embedded migrations first (default false)
//	REDIS_ADDR            Redis ledger
//	REDIS_PASSWORD        Redis password
//	REDIS_DB              Redis database (default 0)
//	REVOCATION_REDIS_KEY  sorted set key (default rvk)
//	SWEEP_INTERVAL        time between sweeps (default 1h)
//	SWEEP_GRACE           keep entries this long past expiry; at least the
//	                      engines' JWT leeway (default 2m, the maximum leeway)
//	SWEEP_ONCE            sweep once and exit (default false)
//	HEALTH_ADDR           liveness listener (default :8081, empty disables)
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrEthical07/goIdentity/revocation"
	"github.com/MrEthical07/goIdentity/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open revocation store", zap.Error(err))
	}
	defer closeStore()

	sweeper := revocation.NewSweeper(revocation.NewLedger(store, revocation.WithGrace(cfg.Grace)), cfg.Interval, logger)
	if cfg.Once {
		n := sweeper.SweepOnce(ctx)
		logger.Info("sweep complete", zap.Int64("removed", n))
		return
	}

	if err := run(ctx, sweeper, cfg.HealthAddr, logger); err != nil {
		logger.Fatal("sweeper exited", zap.Error(err))
	}
}

func run(ctx context.Context, sweeper *revocation.Sweeper, healthAddr string, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if healthAddr != "" {
		srv := &http.Server{
			Addr:              healthAddr,
			Handler:           healthHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("health listener started", zap.String("addr", healthAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func healthHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func openStore(ctx context.Context, cfg config, logger *zap.Logger) (revocation.Store, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		logger.Info("using postgres revocation store")
		return postgres.NewRevocations(db), func() { _ = db.Close() }, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	logger.Info("using redis revocation store", zap.String("key", cfg.RedisKey))
	return revocation.NewRedisStore(rdb, cfg.RedisKey), func() { _ = rdb.Close() }, nil
}

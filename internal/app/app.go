// Package app wires adapters and services from configuration and runs the
// servers.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/marketplace/internal/adapter/blob"
	"github.com/rl1809/marketplace/internal/adapter/handler"
	"github.com/rl1809/marketplace/internal/adapter/storage"
	"github.com/rl1809/marketplace/internal/config"
	"github.com/rl1809/marketplace/internal/core/service"
	"github.com/rl1809/marketplace/internal/llm"
	"github.com/rl1809/marketplace/internal/port"
)

// cache is everything the services need from the key-value layer; both the
// Redis adapter and the in-process cache provide it.
type cache interface {
	port.CacheRepository
	port.LockManager
	port.RateLimiter
	port.PricingCache
}

type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store *storage.SQLStore
	rdb   *redis.Client
	cache cache
	blobs port.BlobWriter

	hub      *handler.Hub
	services handler.Services
	pool     *service.OrderWorkerPool
}

// OpenStore connects to the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLStore, error) {
	var (
		store *storage.SQLStore
		err   error
	)
	switch cfg.Driver {
	case "mysql":
		store, err = storage.OpenMySQL(ctx, storage.MySQLConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		})
	case "sqlite":
		if cfg.DSN == ":memory:" {
			store, err = storage.OpenMemory(ctx)
		} else {
			store, err = storage.OpenSQLite(ctx, cfg.DSN)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	a.store = store
	logger.Info("database ready", zap.String("driver", cfg.Database.Driver))

	if cfg.Redis.Addr != "" {
		a.rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := a.rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.cache = storage.NewRedisAdapter(a.rdb)
		logger.Info("connected to redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		a.cache = storage.NewMemoryCache()
		logger.Warn("redis not configured, using in-process cache")
	}

	if cfg.Blob.Bucket != "" {
		w, err := blob.NewS3Writer(ctx, blob.S3Config{
			Endpoint:       cfg.Blob.Endpoint,
			Region:         cfg.Blob.Region,
			Bucket:         cfg.Blob.Bucket,
			Prefix:         cfg.Blob.Prefix,
			AccessKey:      cfg.Blob.AccessKey,
			SecretKey:      cfg.Blob.SecretKey,
			UseSSL:         cfg.Blob.UseSSL,
			ForcePathStyle: cfg.Blob.ForcePathStyle,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.blobs = w
	} else {
		a.blobs = blob.NewMemoryWriter()
		logger.Warn("blob bucket not configured, payout statements kept in memory")
	}

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		APIKey:   cfg.LLM.APIKey,
		BaseURL:  cfg.LLM.BaseURL,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("pricing provider", zap.String("provider", provider.Name()))

	a.hub = handler.NewHub(logger)
	orders := service.NewOrderService(store, a.cache, a.hub, logger, cfg.Orders.QueueSize)
	a.services = handler.Services{
		Catalog:      service.NewCatalogService(store, a.cache, logger),
		Orders:       orders,
		Escrow:       service.NewEscrowService(store, a.cache, a.hub, logger, cfg.Market.CommissionBps),
		Negotiations: service.NewNegotiationService(store, a.cache, a.hub, logger, cfg.Market.NegotiationTTL),
		Payouts:      service.NewPayoutService(store, a.cache, a.blobs, a.hub, logger, cfg.Market.MinPayoutCents),
		Support:      service.NewSupportService(store, a.hub, logger),
		Pricing:      service.NewPricingService(provider, a.cache, logger, cfg.Pricing.CacheTTL),
	}
	a.pool = service.NewOrderWorkerPool(orders.GetOrderQueue(), store, a.cache, a.hub, logger, cfg.Orders.Workers)
	return a, nil
}

// Services exposes the wired services, mainly for tests and CLI commands.
func (a *App) Services() handler.Services { return a.services }

// Handler returns the HTTP API.
func (a *App) Handler() http.Handler {
	return handler.NewHTTPHandler(a.services, a.hub, a.cache, handler.HTTPConfig{
		AllowedOrigins:    a.cfg.HTTP.AllowedOrigins,
		RequestTimeout:    a.cfg.HTTP.RequestTimeout,
		PricingRateLimit:  a.cfg.Pricing.RateLimit,
		PricingRateWindow: a.cfg.Pricing.RateWindow,
		TrustProxyHeaders: a.cfg.HTTP.TrustProxyHeaders,
	}, a.logger).Router()
}

// Run syncs stock into the cache, then serves HTTP and gRPC and runs the
// order workers, negotiation sweeper and event hub until ctx is cancelled.
// On shutdown servers stop first, then the order queue is drained.
func (a *App) Run(ctx context.Context) error {
	n, err := a.services.Catalog.SyncStock(ctx)
	if err != nil {
		return fmt.Errorf("sync stock: %w", err)
	}
	a.logger.Info("stock synced to cache", zap.Int("products", n))

	lis, err := net.Listen("tcp", a.cfg.GRPC.Addr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	grpcServer := grpc.NewServer()
	handler.RegisterOrderServiceServer(grpcServer, handler.NewGRPCHandler(a.services.Orders, a.logger))

	httpServer := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	workersDone := make(chan struct{})
	g.Go(func() error {
		a.pool.Run()
		close(workersDone)
		return nil
	})
	g.Go(func() error {
		return a.services.Negotiations.RunSweeper(gctx, a.cfg.Market.SweepInterval)
	})
	g.Go(func() error {
		return a.hub.Run(gctx)
	})
	g.Go(func() error {
		a.logger.Info("gRPC server listening", zap.String("addr", a.cfg.GRPC.Addr))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http shutdown", zap.Error(err))
		}
		a.logger.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		a.logger.Info("gRPC server stopped")

		a.services.Orders.Close()
		<-workersDone
		a.logger.Info("workers stopped")
		return nil
	})

	return g.Wait()
}

// Close releases connections. Call after Run returns.
func (a *App) Close() error {
	var errs []error
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

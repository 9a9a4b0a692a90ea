package main

import (
	"context"
	"fmt"

	"github.com/IgorGrieder/llm-edge-gateway/internal/config"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/db"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/links"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	"github.com/IgorGrieder/llm-edge-gateway/internal/storage/memory"
	mongoStorage "github.com/IgorGrieder/llm-edge-gateway/internal/storage/mongo"
	redisStorage "github.com/IgorGrieder/llm-edge-gateway/internal/storage/redis"
	httpTransport "github.com/IgorGrieder/llm-edge-gateway/internal/transport/http"
	"go.uber.org/zap"
)

// storage is the pair of key/value namespaces the gateway runs on, plus the
// health checks and teardown of whatever backs them.
type storage struct {
	quota  quota.CounterStore
	links  links.PayloadStore
	checks map[string]httpTransport.HealthCheck
	close  func()
}

func initStorage(cfg *config.Config) (*storage, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return initRedisStorage(cfg)
	case config.StoreMongo:
		return initMongoStorage(cfg)
	case config.StoreMemory:
		logger.Warn("Using in-process storage; counters and links are lost on restart")
		store := memory.NewStore()
		logger.Info("Storage backend selected", zap.String("backend", config.StoreMemory))
		return &storage{
			quota:  store.Namespace(cfg.Store.QuotaNamespace),
			links:  store.Namespace(cfg.Store.LinkNamespace),
			checks: map[string]httpTransport.HealthCheck{},
			close:  func() {},
		}, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

func initRedisStorage(cfg *config.Config) (*storage, error) {
	client, err := redisStorage.New(redisStorage.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	logger.Info("Storage backend selected", zap.String("backend", config.StoreRedis), zap.String("addr", cfg.Redis.Addr))
	checks := map[string]httpTransport.HealthCheck{"redis": client.Ping}
	return &storage{
		quota:  redisStorage.NewNamespace(client, cfg.Store.QuotaNamespace),
		links:  redisStorage.NewNamespace(client, cfg.Store.LinkNamespace),
		checks: checks,
		close:  func() { _ = client.Close() },
	}, nil
}

func initMongoStorage(cfg *config.Config) (*storage, error) {
	conn, err := db.ConnectMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	quotaNS, err := mongoStorage.NewKVNamespace(conn, cfg.Store.QuotaNamespace)
	if err != nil {
		_ = conn.Disconnect()
		return nil, fmt.Errorf("init mongo quota namespace: %w", err)
	}
	linksNS, err := mongoStorage.NewKVNamespace(conn, cfg.Store.LinkNamespace)
	if err != nil {
		_ = conn.Disconnect()
		return nil, fmt.Errorf("init mongo links namespace: %w", err)
	}

	logger.Info("Storage backend selected", zap.String("backend", config.StoreMongo), zap.String("database", cfg.MongoDB.Database))
	checks := map[string]httpTransport.HealthCheck{
		"mongo": func(ctx context.Context) error { return conn.Client.Ping(ctx, nil) },
	}
	return &storage{
		quota:  quotaNS,
		links:  linksNS,
		checks: checks,
		close:  func() { _ = conn.Disconnect() },
	}, nil
}

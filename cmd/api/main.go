package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/config"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/llm-edge-gateway/internal/messaging"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/links"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	httpTransport "github.com/IgorGrieder/llm-edge-gateway/internal/transport/http"
	"github.com/IgorGrieder/llm-edge-gateway/internal/upstream"
	"github.com/IgorGrieder/llm-edge-gateway/pkg/httpclient"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

type listener struct {
	name   string
	server *http.Server
	ln     net.Listener
}

// runServers serves every listener until ctx is done or one of them fails,
// then shuts all of them down. It returns only after in-flight requests have
// drained or the timeout has passed, so callers may release shared resources
// afterwards.
func runServers(ctx context.Context, timeout time.Duration, listeners ...listener) error {
	errCh := make(chan error, len(listeners))
	for _, l := range listeners {
		go func() {
			if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", l.name, err)
			}
		}()
	}

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, l := range listeners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.server.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server shutdown error", zap.Error(err), zap.String("server", l.name))
			}
		}()
	}
	wg.Wait()

	return serveErr
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		var err error
		shutdownTracer, err = telemetry.InitTracer(cfg.OTel.Endpoint, cfg.App.Name, cfg.App.Version, cfg.App.Env)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	store, err := initStorage(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer store.close()

	var sink quota.UsageSink
	if cfg.Kafka.Enabled {
		publisher, err := messaging.NewUsagePublisher(cfg.Kafka.Brokers, cfg.Kafka.UsageTopic)
		if err != nil {
			logger.Fatal("Failed to initialize usage publisher", zap.Error(err))
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Failed to close usage publisher", zap.Error(err))
			}
		}()
		sink = publisher
		logger.Info("Usage events enabled",
			zap.Strings("kafka_brokers", cfg.Kafka.Brokers),
			zap.String("kafka_topic", cfg.Kafka.UsageTopic),
		)
	}
	ledger := quota.NewLedger(store.quota, sink, cfg.Quota.DailyTokenLimit, cfg.Quota.CounterTTL)

	// One breaker guards every upstream call, relayed or precomputed.
	breaker := httpclient.NewCircuitBreaker(cfg.Upstream.BreakerFailures, cfg.Upstream.BreakerCooldown)
	client := httpclient.NewClient(httpclient.Options{
		Timeout:   cfg.Upstream.Timeout,
		Transport: httpclient.NewBreakerTransport(telemetry.HTTPTransport(nil), breaker),
	})
	relay := upstream.NewRelay(client, cfg.Upstream.ChatCompletionsURL(), cfg.Upstream.APIKey)

	var intro links.IntroGenerator
	if cfg.Links.PrecomputeIntro {
		intro = upstream.NewIntroGenerator(upstream.IntroConfig{
			APIKey:     cfg.Upstream.APIKey,
			BaseURL:    cfg.Upstream.BaseURL,
			Model:      cfg.Links.IntroModel,
			MaxTokens:  cfg.Links.IntroMaxTokens,
			HTTPClient: client.HTTPClient(),
		})
	}

	linkSvc, err := links.NewService(store.links, links.NewCryptoSlugger(), intro, ledger, links.Options{
		SlugLength:   cfg.Links.SlugLength,
		TTL:          cfg.Links.TTL,
		ShareBaseURL: cfg.Links.ShareBaseURL,
	})
	if err != nil {
		logger.Fatal("Failed to initialize link service", zap.Error(err))
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      httpTransport.NewRouter(cfg, linkSvc, ledger, relay),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	adminServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.AdminPort),
		Handler:           httpTransport.NewAdminRouter(httpTransport.NewHealthHandler(store.checks)),
		ReadHeaderTimeout: 5 * time.Second,
	}

	publicLn, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err), zap.String("addr", server.Addr))
	}
	adminLn, err := net.Listen("tcp", adminServer.Addr)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Error(err), zap.String("addr", adminServer.Addr))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("admin_port", cfg.Server.AdminPort),
		zap.String("env", cfg.App.Env),
		zap.String("address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.Int64("daily_token_limit", cfg.Quota.DailyTokenLimit),
		zap.Bool("precompute_intro", cfg.Links.PrecomputeIntro),
	)

	err = runServers(ctx, shutdownTimeout,
		listener{name: "public", server: server, ln: publicLn},
		listener{name: "admin", server: adminServer, ln: adminLn},
	)
	if err != nil {
		logger.Error("Server error", zap.Error(err))
	}

	if shutdownTracer != nil {
		tracerCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = shutdownTracer(tracerCtx)
		cancel()
	}

	logger.Info("Server stopped gracefully")
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/config"
	"github.com/IgorGrieder/llm-edge-gateway/internal/events"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/db"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/telemetry"
	"github.com/IgorGrieder/llm-edge-gateway/internal/messaging"
	mongoStorage "github.com/IgorGrieder/llm-edge-gateway/internal/storage/mongo"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type consumerConfig struct {
	appEnv        string
	appName       string
	appVersion    string
	logLevel      string
	otelEnabled   bool
	otelEndpoint  string
	mongoURI      string
	mongoDatabase string

	kafkaBrokers []string
	kafkaTopic   string
	kafkaGroupID string
	workerID     string

	fetchMaxWait   time.Duration
	operationTTL   time.Duration
	consumeBackoff time.Duration
	dedupWindow    time.Duration
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.appEnv, cfg.logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	serviceName := fmt.Sprintf("%s-usage-consumer", cfg.appName)
	var shutdownTracer func(context.Context) error
	if cfg.otelEnabled {
		shutdownTracer, err = telemetry.InitTracer(cfg.otelEndpoint, serviceName, cfg.appVersion, cfg.appEnv)
		if err != nil {
			logger.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
			shutdownTracer = nil
		} else {
			logger.Info("OpenTelemetry tracer initialized",
				zap.String("endpoint", cfg.otelEndpoint),
				zap.String("service", serviceName),
			)
		}
	}
	defer func() {
		if shutdownTracer == nil {
			return
		}
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Warn("failed to shutdown tracer", zap.Error(err))
		}
	}()

	mongoConn, err := db.ConnectMongo(cfg.mongoURI, cfg.mongoDatabase)
	if err != nil {
		logger.Fatal("failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect() }()

	statsRepo, err := mongoStorage.NewUsageStatsRepository(mongoConn, cfg.dedupWindow)
	if err != nil {
		logger.Fatal("failed to initialize usage stats repository", zap.Error(err))
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.kafkaBrokers,
		Topic:       cfg.kafkaTopic,
		GroupID:     cfg.kafkaGroupID,
		Dialer:      &kafka.Dialer{ClientID: cfg.workerID, Timeout: 10 * time.Second, DualStack: true},
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     cfg.fetchMaxWait,
		StartOffset: kafka.FirstOffset,
	})
	defer func() {
		if err := reader.Close(); err != nil {
			logger.Warn("failed to close kafka reader", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("usage consumer started",
		zap.Strings("kafka_brokers", cfg.kafkaBrokers),
		zap.String("kafka_topic", cfg.kafkaTopic),
		zap.String("kafka_group", cfg.kafkaGroupID),
		zap.String("worker_id", cfg.workerID),
	)

	tracer := otel.Tracer("usage-consumer")
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("usage consumer stopping")
				return
			}
			logger.Error("failed to fetch kafka message", zap.Error(err))
			time.Sleep(cfg.consumeBackoff)
			continue
		}

		consumeCtx := messaging.ContextFromKafkaHeaders(ctx, msg.Headers)
		consumeCtx, span := tracer.Start(
			consumeCtx,
			"kafka.consume.usage_recorded",
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.system", "kafka"),
				attribute.String("messaging.destination.name", msg.Topic),
				attribute.String("messaging.operation", "process"),
				attribute.Int("messaging.kafka.partition", msg.Partition),
				attribute.Int64("messaging.kafka.offset", msg.Offset),
			),
		)

		if err := processMessage(consumeCtx, msg, statsRepo, cfg.operationTTL); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "process usage event failed")
			logger.Error("failed to process usage event",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			span.End()
			time.Sleep(cfg.consumeBackoff)
			continue
		}

		if err := reader.CommitMessages(consumeCtx, msg); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "commit kafka offset failed")
			logger.Error("failed to commit kafka offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			span.End()
			time.Sleep(cfg.consumeBackoff)
			continue
		}

		span.End()
	}
}

func processMessage(
	ctx context.Context,
	msg kafka.Message,
	statsRepo *mongoStorage.UsageStatsRepository,
	operationTTL time.Duration,
) error {
	event, ok := decodeUsageEvent(msg.Value)
	if !ok {
		logger.Warn("invalid usage event payload, skipping", zap.ByteString("payload", msg.Value))
		return nil
	}

	opCtx, cancel := context.WithTimeout(ctx, operationTTL)
	defer cancel()

	applied, err := statsRepo.Apply(opCtx, event)
	if err != nil {
		return err
	}
	if !applied {
		logger.Info("duplicate usage event skipped", zap.String("event_id", event.EventID))
	}
	return nil
}

// decodeUsageEvent rejects payloads that cannot be rolled up: bad JSON, a
// missing day or a non-positive token count.
func decodeUsageEvent(payload []byte) (events.UsageRecorded, bool) {
	var event events.UsageRecorded
	if err := json.Unmarshal(payload, &event); err != nil {
		return events.UsageRecorded{}, false
	}
	if _, err := time.Parse(time.DateOnly, strings.TrimSpace(event.Day)); err != nil {
		return events.UsageRecorded{}, false
	}
	if event.Tokens <= 0 {
		return events.UsageRecorded{}, false
	}
	if strings.TrimSpace(event.Source) == "" {
		event.Source = "chat"
	}
	return event, true
}

func loadConfig() (consumerConfig, error) {
	cfg := consumerConfig{
		appEnv:         config.GetEnv("APP_ENV", "production"),
		appName:        config.GetEnv("APP_NAME", "llm-edge-gateway"),
		appVersion:     config.GetEnv("APP_VERSION", "0.1.0"),
		logLevel:       strings.ToLower(config.GetEnv("LOG_LEVEL", "info")),
		otelEnabled:    config.GetEnvBool("OTEL_ENABLED", false),
		otelEndpoint:   config.GetEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		mongoURI:       config.GetEnv("MONGODB_URI", "mongodb://localhost:27017"),
		mongoDatabase:  config.GetEnv("MONGODB_DATABASE", "llm_gateway"),
		kafkaBrokers:   config.SplitCSV(config.GetEnv("KAFKA_BROKERS", "localhost:9092")),
		kafkaTopic:     config.GetEnv("KAFKA_USAGE_TOPIC", "usage.recorded"),
		kafkaGroupID:   config.GetEnv("KAFKA_USAGE_GROUP_ID", "usage-analytics"),
		workerID:       config.GetEnv("WORKER_ID", config.DefaultWorkerID("usage-consumer")),
		fetchMaxWait:   config.GetEnvDuration("KAFKA_CONSUMER_MAX_WAIT", 500*time.Millisecond),
		operationTTL:   config.GetEnvDuration("KAFKA_CONSUMER_OPERATION_TIMEOUT", 5*time.Second),
		consumeBackoff: config.GetEnvDuration("KAFKA_CONSUMER_BACKOFF", 500*time.Millisecond),
		dedupWindow:    config.GetEnvDuration("USAGE_DEDUP_WINDOW", 72*time.Hour),
	}

	if len(cfg.kafkaBrokers) == 0 {
		return consumerConfig{}, fmt.Errorf("KAFKA_BROKERS must contain at least one broker")
	}
	if strings.TrimSpace(cfg.kafkaTopic) == "" {
		return consumerConfig{}, fmt.Errorf("KAFKA_USAGE_TOPIC must not be empty")
	}
	if strings.TrimSpace(cfg.kafkaGroupID) == "" {
		return consumerConfig{}, fmt.Errorf("KAFKA_USAGE_GROUP_ID must not be empty")
	}
	if cfg.operationTTL <= 0 {
		return consumerConfig{}, fmt.Errorf("KAFKA_CONSUMER_OPERATION_TIMEOUT must be > 0")
	}
	if cfg.dedupWindow < time.Second {
		return consumerConfig{}, fmt.Errorf("USAGE_DEDUP_WINDOW must be at least 1s")
	}

	return cfg, nil
}

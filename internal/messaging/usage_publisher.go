// Package messaging publishes gateway events to Kafka.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/events"
	"github.com/IgorGrieder/llm-edge-gateway/internal/infrastructure/logger"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// UsagePublisher emits one UsageRecorded event per counter increment.
// Writes are asynchronous: delivery failures are logged, never returned to
// the request that spent the tokens.
type UsagePublisher struct {
	writer messageWriter
	topic  string
	newID  func() string
	log    *zap.Logger
}

func NewUsagePublisher(brokers []string, topic string) (*UsagePublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka usage publisher: no brokers")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("kafka usage publisher: empty topic")
	}

	p := &UsagePublisher{
		topic: topic,
		newID: func() string { return uuid.NewString() },
		log:   logger.Named("usage-publisher"),
	}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		Async:                  true,
		Completion:             p.onCompletion,
	}
	return p, nil
}

func (p *UsagePublisher) PublishUsage(ctx context.Context, u quota.Usage) error {
	ev := toEvent(p.newID(), u)
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}

	producerCtx, span := otel.Tracer("usage-publisher").Start(
		ctx,
		"kafka.publish.usage_recorded",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.operation", "publish"),
			attribute.String("messaging.message.id", ev.EventID),
			attribute.String("messaging.kafka.message_key", ev.Day),
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(producerCtx, carrier)

	err = p.writer.WriteMessages(producerCtx, kafka.Message{
		Key:     []byte(ev.Day),
		Value:   value,
		Time:    u.OccurredAt,
		Headers: carrierToKafkaHeaders(carrier),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "kafka publish failed")
		return fmt.Errorf("publish usage event: %w", err)
	}
	return nil
}

func (p *UsagePublisher) Close() error {
	return p.writer.Close()
}

func (p *UsagePublisher) onCompletion(msgs []kafka.Message, err error) {
	if err == nil || p.log == nil {
		return
	}
	p.log.Warn("usage events were not delivered", zap.Error(err), zap.Int("count", len(msgs)))
}

func toEvent(id string, u quota.Usage) events.UsageRecorded {
	return events.UsageRecorded{
		EventID:    id,
		Day:        u.Day,
		Tokens:     u.Tokens,
		DayTotal:   u.DayTotal,
		Model:      u.Model,
		Source:     u.Source,
		OccurredAt: u.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func carrierToKafkaHeaders(carrier propagation.MapCarrier) []kafka.Header {
	headers := make([]kafka.Header, 0, len(carrier))
	for key, value := range carrier {
		if strings.TrimSpace(value) == "" {
			continue
		}
		headers = append(headers, kafka.Header{
			Key:   key,
			Value: []byte(value),
		})
	}
	return headers
}

// ContextFromKafkaHeaders restores the producer's trace context on the
// consumer side.
func ContextFromKafkaHeaders(parent context.Context, headers []kafka.Header) context.Context {
	carrier := propagation.MapCarrier{}
	for _, header := range headers {
		key := strings.ToLower(strings.TrimSpace(header.Key))
		if key == "" {
			continue
		}
		carrier.Set(key, string(header.Value))
	}
	return otel.GetTextMapPropagator().Extract(parent, carrier)
}

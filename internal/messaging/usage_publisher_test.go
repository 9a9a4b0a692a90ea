package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IgorGrieder/llm-edge-gateway/internal/events"
	"github.com/IgorGrieder/llm-edge-gateway/internal/processing/quota"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func newTestPublisher(w messageWriter) *UsagePublisher {
	return &UsagePublisher{
		writer: w,
		topic:  "usage.recorded",
		newID:  func() string { return "evt-1" },
	}
}

func TestPublishUsage_WritesEvent(t *testing.T) {
	w := &mockWriter{}
	p := newTestPublisher(w)
	at := time.Date(2025, 7, 16, 12, 30, 0, 0, time.UTC)

	err := p.PublishUsage(context.Background(), quota.Usage{
		Day:        "2025-07-16",
		Tokens:     42,
		DayTotal:   1042,
		Model:      "gpt-4o-mini",
		Source:     quota.SourceChat,
		OccurredAt: at,
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "2025-07-16" {
		t.Errorf("key = %q, want the day", msg.Key)
	}

	var ev events.UsageRecorded
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		t.Fatal(err)
	}
	want := events.UsageRecorded{
		EventID:    "evt-1",
		Day:        "2025-07-16",
		Tokens:     42,
		DayTotal:   1042,
		Model:      "gpt-4o-mini",
		Source:     "chat",
		OccurredAt: "2025-07-16T12:30:00Z",
	}
	if ev != want {
		t.Errorf("event = %+v, want %+v", ev, want)
	}
}

func TestPublishUsage_WriterErrorSurfaces(t *testing.T) {
	p := newTestPublisher(&mockWriter{err: errors.New("broker down")})

	err := p.PublishUsage(context.Background(), quota.Usage{Day: "2025-07-16", Tokens: 1})
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestTraceContextRoundTripsThroughHeaders(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
	otel.SetTextMapPropagator(propagation.TraceContext{})

	w := &mockWriter{}
	p := newTestPublisher(w)

	ctx, parent := otel.Tracer("test").Start(context.Background(), "relay")
	defer parent.End()

	if err := p.PublishUsage(ctx, quota.Usage{Day: "2025-07-16", Tokens: 5}); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs[0].Headers) == 0 {
		t.Fatal("expected trace headers on the message")
	}

	restored := trace.SpanContextFromContext(ContextFromKafkaHeaders(context.Background(), w.msgs[0].Headers))
	if restored.TraceID() != parent.SpanContext().TraceID() {
		t.Errorf("trace id = %s, want %s", restored.TraceID(), parent.SpanContext().TraceID())
	}
}

func TestCarrierToKafkaHeaders_SkipsBlankValues(t *testing.T) {
	headers := carrierToKafkaHeaders(propagation.MapCarrier{
		"traceparent": "00-abc-def-01",
		"tracestate":  "  ",
	})

	if len(headers) != 1 || headers[0].Key != "traceparent" {
		t.Errorf("headers = %+v", headers)
	}
}

func TestNewUsagePublisher_RequiresBrokersAndTopic(t *testing.T) {
	if _, err := NewUsagePublisher(nil, "usage.recorded"); err == nil {
		t.Error("expected an error without brokers")
	}
	if _, err := NewUsagePublisher([]string{"kafka:9092"}, " "); err == nil {
		t.Error("expected an error without a topic")
	}
}

package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/retailstock/pkg/logger"
)

func setupTracer() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp
}

func nopLogger() logger.Logger {
	return logger.Discard()
}

func TestRetryWithBackoff(t *testing.T) {
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name      string
		ctx       context.Context
		failFirst int
		wantCalls int
		wantErr   bool
	}{
		{name: "success on first attempt", ctx: context.Background(), wantCalls: 1},
		{name: "success after retries", ctx: context.Background(), failFirst: 2, wantCalls: 3},
		{name: "attempts exhausted", ctx: context.Background(), failFirst: 10, wantCalls: maxRetries, wantErr: true},
		{name: "context cancelled stops retrying", ctx: cancelled, failFirst: 10, wantCalls: 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			handler := func(context.Context, *message.Message) error {
				calls++
				if calls <= tt.failFirst {
					return errors.New("handler failed")
				}
				return nil
			}
			err := retryWithBackoff(tt.ctx, message.NewMessage("id", nil), handler, maxRetries, time.Millisecond, nopLogger())
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if calls != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, calls)
			}
		})
	}
}

func TestStartForwarder_RequiresForwarderBus(t *testing.T) {
	bus := &EventBus{}
	if err := bus.StartForwarder(context.Background()); !errors.Is(err, errNotForwarder) {
		t.Fatalf("expected errNotForwarder, got %v", err)
	}
}

func TestTracePropagation(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	ctx, span := otel.Tracer("test").Start(context.Background(), "record movement")
	defer span.End()

	msg := message.NewMessage("id", nil)
	injectTrace(ctx, msg)

	got := trace.SpanFromContext(extractTrace(context.Background(), msg)).SpanContext()
	if !got.IsValid() {
		t.Fatal("extracted span context is not valid")
	}
	if got.TraceID() != span.SpanContext().TraceID() {
		t.Errorf("trace ID mismatch: want %s, got %s", span.SpanContext().TraceID(), got.TraceID())
	}
}

func TestNewJSONMessage(t *testing.T) {
	payload := map[string]any{"product_id": "p-1", "quantity": 3}
	msg, err := NewJSONMessage(payload)
	if err != nil {
		t.Fatalf("NewJSONMessage: %v", err)
	}
	if msg.UUID == "" {
		t.Fatal("expected message UUID")
	}
	var got map[string]any
	if err := json.Unmarshal(msg.Payload, &got); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if got["product_id"] != "p-1" {
		t.Fatalf("unexpected payload: %v", got)
	}

	if _, err := NewJSONMessage(make(chan int)); err == nil {
		t.Fatal("expected marshal error for unsupported payload")
	}
}

func TestTxRecorder_Record(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1}, watermill.NopLogger{})
	defer pubsub.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msgs, err := pubsub.Subscribe(ctx, "stock.movement_recorded")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	spanCtx, span := otel.Tracer("test").Start(ctx, "apply movement")
	defer span.End()

	rec := &TxRecorder{pub: pubsub}
	if err := rec.Record(spanCtx, "stock.movement_recorded", map[string]int{"quantity_after": 70}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	select {
	case msg := <-msgs:
		msg.Ack()
		if msg.Metadata.Get("traceparent") == "" {
			t.Error("expected trace context in message metadata")
		}
		if string(msg.Payload) != `{"quantity_after":70}` {
			t.Errorf("unexpected payload %s", msg.Payload)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for recorded message")
	}
}

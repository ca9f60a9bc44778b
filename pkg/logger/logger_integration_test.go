package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func setupTracer() *sdktrace.TracerProvider {
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp
}

func parseLastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("failed to parse log line %q: %v", last, err)
	}
	return m
}

func TestInfoContext_TraceFields(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	t.Run("with span", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "debug")
		ctx, span := otel.Tracer("test").Start(context.Background(), "movement")
		defer span.End()

		log.InfoContext(ctx, "stock movement applied", "product_id", "p-1")

		entry := parseLastLine(t, &buf)
		if _, ok := entry["trace_id"]; !ok {
			t.Error("expected trace_id")
		}
		if _, ok := entry["span_id"]; !ok {
			t.Error("expected span_id")
		}
		if entry["product_id"] != "p-1" {
			t.Errorf("expected product_id=p-1, got %v", entry["product_id"])
		}
	})

	t.Run("without span", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, "debug")
		log.InfoContext(context.Background(), "no span")

		entry := parseLastLine(t, &buf)
		if _, ok := entry["trace_id"]; ok {
			t.Error("trace_id should not be present without an active span")
		}
	})
}

func TestErrorContext_CarriesError(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	log.ErrorContext(context.Background(), "apply movement failed", "error", errors.New("boom"))

	entry := parseLastLine(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("expected error=boom, got %v", entry["error"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("expected level ERROR, got %v", entry["level"])
	}
}

func TestContextWith_AccumulatesAttributes(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info")

	ctx := ContextWith(context.Background(), "operator_id", "op-1")
	ctx = ContextWith(ctx, "role", "cashier")
	log.InfoContext(ctx, "sale completed")

	entry := parseLastLine(t, &buf)
	if entry["operator_id"] != "op-1" {
		t.Errorf("expected operator_id=op-1, got %v", entry["operator_id"])
	}
	if entry["role"] != "cashier" {
		t.Errorf("expected role=cashier, got %v", entry["role"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn")

	log.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info record should be filtered at warn level, got %q", buf.String())
	}
	log.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("warn record should be written at warn level")
	}
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"success logs info", http.StatusOK, "INFO"},
		{"client error logs warn", http.StatusConflict, "WARN"},
		{"server error logs error", http.StatusInternalServerError, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(&buf, "debug")

			r := chi.NewRouter()
			r.Use(middleware.RequestID)
			r.Use(Middleware(log))
			r.Get("/stock/{productID}", func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("ok"))
			})

			req := httptest.NewRequest(http.MethodGet, "/stock/abc", http.NoBody)
			r.ServeHTTP(httptest.NewRecorder(), req)

			entry := parseLastLine(t, &buf)
			if entry["level"] != tt.wantLevel {
				t.Errorf("expected level %s, got %v", tt.wantLevel, entry["level"])
			}
			if _, ok := entry["request_id"]; !ok {
				t.Error("expected request_id in request log")
			}
			if entry["route"] != "/stock/{productID}" {
				t.Errorf("expected route pattern, got %v", entry["route"])
			}
			if entry["bytes"] != float64(2) {
				t.Errorf("expected bytes=2, got %v", entry["bytes"])
			}
		})
	}
}

func TestRecovery_WritesJSON500(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")

	h := Recovery(log)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("ledger exploded")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/stock/movements", http.NoBody))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "ledger exploded") {
		t.Fatal("panic value must not leak into the response body")
	}
	entry := parseLastLine(t, &buf)
	if entry["msg"] != "panic recovered" {
		t.Errorf("expected panic log, got %v", entry["msg"])
	}
	if _, ok := entry["stack"]; !ok {
		t.Error("expected stack in panic log")
	}
}

func TestNestedSpans(t *testing.T) {
	tp := setupTracer()
	defer tp.Shutdown(context.Background()) //nolint:errcheck

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "debug")
	tracer := otel.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "approve check")
	log.InfoContext(ctx, "parent log")
	parentEntry := parseLastLine(t, &buf)
	buf.Reset()

	ctx, child := tracer.Start(ctx, "adjust stock")
	log.InfoContext(ctx, "child log")
	childEntry := parseLastLine(t, &buf)

	child.End()
	parent.End()

	if parentEntry["trace_id"] != childEntry["trace_id"] {
		t.Errorf("expected same trace_id: %v vs %v", parentEntry["trace_id"], childEntry["trace_id"])
	}
	if parentEntry["span_id"] == childEntry["span_id"] {
		t.Error("expected different span_ids for parent and child")
	}
}

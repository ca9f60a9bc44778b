package telemetry

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/propagation"

	"github.com/ghuser/retailstock/pkg/config"
)

func baseConfig() *config.Config {
	return &config.Config{
		ServiceName:    "retailstock",
		ServiceVersion: "test",
		Environment:    "testing",
	}
}

// setup installs the global providers and shuts them down with the test so
// the next test's Prometheus exporter is the only live one.
func setup(t *testing.T) http.Handler {
	t.Helper()
	shutdown, handler, err := Setup(context.Background(), baseConfig())
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() {
		if err := shutdown(context.Background()); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})
	return handler
}

// Outbox messages carry the trace and baggage of the request that wrote
// them; the worker extracts both with the global propagator.
func TestSetup_PropagatesTraceAndBaggage(t *testing.T) {
	setup(t)

	prop := otel.GetTextMapPropagator()
	for _, f := range []string{"traceparent", "baggage"} {
		if !slices.Contains(prop.Fields(), f) {
			t.Errorf("propagator fields %v lack %q", prop.Fields(), f)
		}
	}

	member, err := baggage.NewMember("operator", "till1")
	if err != nil {
		t.Fatal(err)
	}
	bag, err := baggage.New(member)
	if err != nil {
		t.Fatal(err)
	}
	ctx := baggage.ContextWithBaggage(context.Background(), bag)
	ctx, span := otel.Tracer("test").Start(ctx, "apply movement")
	defer span.End()

	carrier := propagation.MapCarrier{}
	prop.Inject(ctx, carrier)
	if carrier.Get("traceparent") == "" {
		t.Fatalf("no traceparent injected: %v", carrier)
	}

	got := prop.Extract(context.Background(), carrier)
	if v := baggage.FromContext(got).Member("operator").Value(); v != "till1" {
		t.Errorf("baggage operator: got %q", v)
	}
}

func TestSetup_ExportsInventoryMetrics(t *testing.T) {
	handler := setup(t)

	m, err := NewInventoryMetrics(otel.Meter(InstrumentationName))
	if err != nil {
		t.Fatalf("NewInventoryMetrics: %v", err)
	}
	m.MovementRecorded(context.Background(), "IN", "purchase")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("expected text/plain content-type, got %q", ct)
	}
	body, _ := io.ReadAll(rr.Body)
	for _, want := range []string{"inventory_stock_movements", `service_name="retailstock"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("/metrics lacks %s", want)
		}
	}
}

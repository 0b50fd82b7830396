package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// installTestTracer swaps the global provider for an in-memory one and
// restores it afterwards.
func installTestTracer(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()
	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(orig)
		_ = tp.Shutdown(context.Background())
	})
	return exp
}

func TestCorrelationIDWithoutSpan(t *testing.T) {
	if got := CorrelationID(context.Background()); got != "" {
		t.Errorf("CorrelationID = %q, want empty", got)
	}
}

func TestCorrelationIDIsHexTraceID(t *testing.T) {
	installTestTracer(t)

	ctx, span := StartSpan(context.Background(), "op")
	defer span.End()

	cid := CorrelationID(ctx)
	if len(cid) != 32 {
		t.Fatalf("trace ID length = %d, want 32", len(cid))
	}
	for _, c := range cid {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			t.Fatalf("trace ID has non-hex character %q", c)
		}
	}
}

func TestStartSpanRecordsName(t *testing.T) {
	exp := installTestTracer(t)

	_, span := StartSpan(context.Background(), "gate.OnFragment")
	span.End()

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("recorded %d spans, want 1", len(spans))
	}
	if spans[0].Name != "gate.OnFragment" {
		t.Errorf("span name = %q", spans[0].Name)
	}
}

func TestCorrelationIDsAreUnique(t *testing.T) {
	installTestTracer(t)

	seen := make(map[string]struct{}, 100)
	for range 100 {
		ctx, span := StartSpan(context.Background(), "op")
		cid := CorrelationID(ctx)
		span.End()
		if _, dup := seen[cid]; dup {
			t.Fatalf("duplicate trace ID %s", cid)
		}
		seen[cid] = struct{}{}
	}
}

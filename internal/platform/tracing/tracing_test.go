package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewRequiresServiceName(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without service name")
	}
}

func TestNewWithoutEndpoint(t *testing.T) {
	p, err := New(context.Background(), Config{ServiceName: "oqskem-test", SampleRatio: 0.5})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestOperationSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := StartOperation(context.Background(), tracer, "ML-KEM-768", "encaps")
	EndOperation(span, nil)
	_, span = StartOperation(context.Background(), tracer, "ML-KEM-768", "decaps")
	EndOperation(span, errors.New("status -1"))

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans %d, want 2", len(spans))
	}
	if spans[0].Name() != "kem.encaps" || spans[0].Status().Code == codes.Error {
		t.Fatalf("unexpected first span %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || len(spans[1].Events()) == 0 {
		t.Fatal("failed operation not recorded on span")
	}
}

func TestNewWithExporter(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	p, err := New(context.Background(), Config{ServiceName: "oqskem-test", Environment: "test", Exporter: exp})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer p.Shutdown(context.Background())

	_, span := StartOperation(context.Background(), Tracer("test"), "Kyber512", "keypair")
	EndOperation(span, nil)

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "kem.keypair" {
		t.Fatalf("unexpected spans %v", spans)
	}
	var backend string
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == "kem.backend" {
			backend = kv.Value.AsString()
		}
	}
	if backend == "" {
		t.Fatal("resource lacks kem.backend")
	}
}

func TestSampler(t *testing.T) {
	if got := sampler(0).Description(); got != sdktrace.AlwaysSample().Description() {
		t.Fatalf("ratio 0 sampler %q", got)
	}
	if got := sampler(0.25).Description(); got == sdktrace.AlwaysSample().Description() {
		t.Fatal("ratio 0.25 must not sample everything")
	}
}

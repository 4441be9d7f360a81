// Package metrics bootstraps the OpenTelemetry metric pipeline and the
// instruments KEM operations report to.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"google.golang.org/grpc/credentials"

	"github.com/example/oqskem/internal/platform/buildinfo"
)

// Config selects where metrics go and how often they are pushed.
type Config struct {
	// Endpoint is an OTLP gRPC collector address. Without it and without
	// Reader, instruments record into a provider nobody reads.
	Endpoint    string
	Insecure    bool
	Interval    time.Duration
	Timeout     time.Duration
	ServiceName string
	Environment string
	Attributes  map[string]string
	// Reader replaces the OTLP exporter, e.g. a manual reader in tests.
	Reader sdkmetric.Reader
}

// Provider owns the registered meter provider.
type Provider struct {
	MeterProvider *sdkmetric.MeterProvider
}

// New builds the metric pipeline and registers it globally.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	res, err := buildinfo.Resource(ctx, cfg.ServiceName, cfg.Environment, cfg.Attributes)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	switch {
	case cfg.Reader != nil:
		opts = append(opts, sdkmetric.WithReader(cfg.Reader))
	case cfg.Endpoint != "":
		exp, err := otlpExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		interval := cfg.Interval
		if interval <= 0 {
			interval = 15 * time.Second
		}
		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(interval))))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	return &Provider{MeterProvider: mp}, nil
}

func otlpExporter(ctx context.Context, cfg Config) (sdkmetric.Exporter, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
		otlpmetricgrpc.WithTimeout(timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	} else {
		opts = append(opts, otlpmetricgrpc.WithTLSCredentials(credentials.NewClientTLSFromCert(nil, "")))
	}
	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("metrics: exporter: %w", err)
	}
	return exp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.GetMeterProvider().Meter(name)
}

// Shutdown flushes pending data and stops the provider. A nil Provider is
// a no-op.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.MeterProvider == nil {
		return nil
	}
	if err := p.MeterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}

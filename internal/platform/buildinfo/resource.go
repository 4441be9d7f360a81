package buildinfo

import (
	"context"
	"errors"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Resource describes this process to telemetry backends: service name,
// version, environment and KEM backend, plus extra attributes.
func Resource(ctx context.Context, service, environment string, extra map[string]string) (*resource.Resource, error) {
	if service == "" {
		return nil, errors.New("service name is required")
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(service),
		semconv.ServiceVersion(Version()),
		semconv.DeploymentEnvironment(environment),
		attribute.String("kem.backend", Backend()),
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		attrs = append(attrs, attribute.String(k, extra[k]))
	}
	return resource.New(ctx, resource.WithAttributes(attrs...))
}

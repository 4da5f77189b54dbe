// Package telemetry configures tracing for the gateway.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/tjfontaine/deploywatch"
	serviceNamespace    = "deploywatch"
)

// Span attribute keys for a webhook delivery.
const (
	DeliveryIDKey    = attribute.Key("webhook.delivery_id")
	EventTypeKey     = attribute.Key("webhook.event_type")
	EmailIDKey       = attribute.Key("webhook.email_id")
	BackendStatusKey = attribute.Key("webhook.backend_status")
	ContentFetchKey  = attribute.Key("webhook.content_fetch_failed")
)

// InitTracer installs a tracer provider that exports delivery spans to w.
// The returned function flushes and stops it.
func InitTracer(serviceName string, w io.Writer, logger *slog.Logger) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	tp, err := NewProvider(serviceName, sdktrace.WithBatcher(exporter))
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		slog.String("service", serviceName),
		slog.String("namespace", serviceNamespace),
	)
	return tp.Shutdown, nil
}

// NewProvider builds a provider whose resource identifies the gateway.
func NewProvider(serviceName string, opts ...sdktrace.TracerProviderOption) (*sdktrace.TracerProvider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes("",
			semconv.ServiceName(serviceName),
			semconv.ServiceNamespace(serviceNamespace),
		),
	)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(append(opts, sdktrace.WithResource(res))...), nil
}

// Tracer returns the gateway tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// DeliveryAttributes describes a delivery on a span. Empty values are omitted.
func DeliveryAttributes(deliveryID, eventType, emailID string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{DeliveryIDKey.String(deliveryID)}
	if eventType != "" {
		attrs = append(attrs, EventTypeKey.String(eventType))
	}
	if emailID != "" {
		attrs = append(attrs, EmailIDKey.String(emailID))
	}
	return attrs
}

package telemetry

import (
	"context"
	"strings"
	"time"

	"github.com/ericfialkowski/urlshort/env"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

// Metrics holds all the OpenTelemetry metric instruments for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Redirects       metric.Int64Counter
	RecordsCreated  metric.Int64Counter
	StatsRequests   metric.Int64Counter
	RequestErrors   metric.Int64Counter
	RequestDuration metric.Float64Histogram

	provider *sdkmetric.MeterProvider
}

// NewMetrics initializes the OpenTelemetry metrics provider and creates all metric instruments.
// Returns nil if metrics are disabled, which is the default; set OTEL_METRICS_ENABLED=true to export.
func NewMetrics(ctx context.Context, logger *zap.Logger) (*Metrics, error) {
	otlpEndpoint := env.StringOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318")
	serviceName := env.StringOrDefault("OTEL_SERVICE_NAME", "urlshort")

	if !env.BoolOrDefault("OTEL_METRICS_ENABLED", false) {
		logger.Info("OpenTelemetry metrics disabled")
		return nil, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpoint(trimScheme(otlpEndpoint)),
		otlpmetrichttp.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter,
				sdkmetric.WithInterval(env.DurationOrDefault("OTEL_EXPORT_INTERVAL", 15*time.Second)),
			),
		),
	)

	otel.SetMeterProvider(provider)
	m, err := newInstruments(provider.Meter(serviceName))
	if err != nil {
		return nil, err
	}
	m.provider = provider

	logger.Info("OpenTelemetry metrics initialized",
		zap.String("endpoint", otlpEndpoint),
		zap.String("service", serviceName))
	return m, nil
}

func newInstruments(meter metric.Meter) (*Metrics, error) {
	redirects, err := meter.Int64Counter("urlshort.redirects",
		metric.WithDescription("Number of redirects performed"),
		metric.WithUnit("{redirect}"),
	)
	if err != nil {
		return nil, err
	}

	recordsCreated, err := meter.Int64Counter("urlshort.records.created",
		metric.WithDescription("Number of new short ids created"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	statsRequests, err := meter.Int64Counter("urlshort.stats.requests",
		metric.WithDescription("Number of stats requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestErrors, err := meter.Int64Counter("urlshort.request.errors",
		metric.WithDescription("Number of requests answered with an error"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram("urlshort.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Redirects:       redirects,
		RecordsCreated:  recordsCreated,
		StatsRequests:   statsRequests,
		RequestErrors:   requestErrors,
		RequestDuration: requestDuration,
	}, nil
}

func (m *Metrics) AddRedirect(ctx context.Context) {
	if m != nil {
		m.Redirects.Add(ctx, 1)
	}
}

func (m *Metrics) AddRecordCreated(ctx context.Context) {
	if m != nil {
		m.RecordsCreated.Add(ctx, 1)
	}
}

func (m *Metrics) AddStatsRequest(ctx context.Context) {
	if m != nil {
		m.StatsRequests.Add(ctx, 1)
	}
}

func (m *Metrics) AddRequestError(ctx context.Context, status int) {
	if m != nil {
		m.RequestErrors.Add(ctx, 1, metric.WithAttributes(attribute.Int("status", status)))
	}
}

func (m *Metrics) RecordDuration(ctx context.Context, method string, d time.Duration) {
	if m != nil {
		m.RequestDuration.Record(ctx, float64(d.Microseconds())/1000,
			metric.WithAttributes(attribute.String("method", method)))
	}
}

// Shutdown gracefully shuts down the metrics provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil || m.provider == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

// trimScheme removes http:// or https:// prefix from the endpoint.
func trimScheme(endpoint string) string {
	if s, ok := strings.CutPrefix(endpoint, "https://"); ok {
		return s
	}
	return strings.TrimPrefix(endpoint, "http://")
}

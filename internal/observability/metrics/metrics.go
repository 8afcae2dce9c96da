package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	registrations   metric.Int64Counter
	gatewaySessions metric.Int64Counter
	callbacks       metric.Int64Counter
	eligibility     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "camppay"
	}
	meter := provider.Meter(name)

	registrations, err := meter.Int64Counter("camppay_registrations_total")
	if err != nil {
		return nil, err
	}
	gatewaySessions, err := meter.Int64Counter("camppay_gateway_sessions_total")
	if err != nil {
		return nil, err
	}
	callbacks, err := meter.Int64Counter("camppay_payment_callbacks_total")
	if err != nil {
		return nil, err
	}
	eligibility, err := meter.Int64Counter("camppay_eligibility_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		registrations:   registrations,
		gatewaySessions: gatewaySessions,
		callbacks:       callbacks,
		eligibility:     eligibility,
	}, nil
}

// RecordRegistration increments submitted registration counts per track.
func (m *Metrics) RecordRegistration(ctx context.Context, trackID int) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("track_id", trackID),
	))
}

// RecordGatewaySession increments gateway session attempts by result.
func (m *Metrics) RecordGatewaySession(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.gatewaySessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", strings.TrimSpace(result)),
	))
}

// RecordCallback increments verified callback counts by terminal outcome.
func (m *Metrics) RecordCallback(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.callbacks.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
	))
}

// RecordEligibilityDenied increments gate denials by reason.
func (m *Metrics) RecordEligibilityDenied(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.eligibility.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", strings.TrimSpace(reason)),
	))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

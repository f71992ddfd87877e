package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/Bouza1/cloned-it/internal/config"
)

type appMetrics struct {
	sessionCreateCounter   metric.Int64Counter
	sessionValidateCounter metric.Int64Counter
	sessionDeleteCounter   metric.Int64Counter
	sessionSweepCounter    metric.Int64Counter
	storeOpCounter         metric.Int64Counter
}

var (
	metricsMu sync.RWMutex
	metrics   *appMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("cloned-it")
	createCounter, err := meter.Int64Counter("session.create.attempts")
	if err != nil {
		return nil, err
	}
	validateCounter, err := meter.Int64Counter("session.validate.attempts")
	if err != nil {
		return nil, err
	}
	deleteCounter, err := meter.Int64Counter("session.delete.attempts")
	if err != nil {
		return nil, err
	}
	sweepCounter, err := meter.Int64Counter("session.sweep.deleted")
	if err != nil {
		return nil, err
	}
	storeOpCounter, err := meter.Int64Counter("store.operations")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	metrics = &appMetrics{
		sessionCreateCounter:   createCounter,
		sessionValidateCounter: validateCounter,
		sessionDeleteCounter:   deleteCounter,
		sessionSweepCounter:    sweepCounter,
		storeOpCounter:         storeOpCounter,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func loadMetrics() *appMetrics {
	metricsMu.RLock()
	m := metrics
	metricsMu.RUnlock()
	return m
}

func RecordSessionCreate(status string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.sessionCreateCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("status", status)))
}

func RecordSessionValidate(outcome string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.sessionValidateCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordSessionDelete(reason, status string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.sessionDeleteCounter.Add(context.Background(), 1,
		metric.WithAttributes(
			attribute.String("reason", reason),
			attribute.String("status", status),
		))
}

func RecordSweepDeleted(count int64) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.sessionSweepCounter.Add(context.Background(), count)
}

// RecordStoreOperation counts one backing-store operation per entity/op pair
// with its outcome (success, not_found, error).
func RecordStoreOperation(ctx context.Context, entity, op, outcome string) {
	m := loadMetrics()
	if m == nil {
		return
	}
	m.storeOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		))
}

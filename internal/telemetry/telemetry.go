// Package telemetry exports scheduler activity over OTLP. It is opt-in: with
// neither SHEDCMD_OTEL_METRICS_URL nor SHEDCMD_OTEL_LOGS_URL set, the global
// OTel providers stay no-op and every Record* call is cheap.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	// EnvMetricsURL is the OTLP/HTTP endpoint metrics are pushed to.
	EnvMetricsURL = "SHEDCMD_OTEL_METRICS_URL"
	// EnvLogsURL is the OTLP/HTTP endpoint log records are sent to.
	EnvLogsURL = "SHEDCMD_OTEL_LOGS_URL"
)

// Provider owns the SDK providers installed by Init.
type Provider struct {
	meter  *sdkmetric.MeterProvider
	logger *sdklog.LoggerProvider
}

// Enabled reports whether either endpoint is configured.
func Enabled() bool {
	return os.Getenv(EnvMetricsURL) != "" || os.Getenv(EnvLogsURL) != ""
}

// Init installs OTLP exporters for whichever endpoints are configured and
// returns a Provider to shut them down. It returns (nil, nil) when telemetry
// is disabled.
func Init(ctx context.Context, serviceName, version string) (*Provider, error) {
	if !Enabled() {
		return nil, nil
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version),
	)

	p := &Provider{}
	if url := os.Getenv(EnvMetricsURL); url != "" {
		exp, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(url))
		if err != nil {
			return nil, fmt.Errorf("telemetry: metrics exporter: %w", err)
		}
		p.meter = sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp, sdkmetric.WithInterval(30*time.Second))),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(p.meter)
	}
	if url := os.Getenv(EnvLogsURL); url != "" {
		exp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(url))
		if err != nil {
			_ = p.Shutdown(ctx)
			return nil, fmt.Errorf("telemetry: logs exporter: %w", err)
		}
		p.logger = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
			sdklog.WithResource(res),
		)
		global.SetLoggerProvider(p.logger)
	}

	// Instruments must bind to the provider just installed.
	initInstruments()
	return p, nil
}

// Shutdown flushes and stops the providers. Safe on a nil Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	var errs []error
	if p.meter != nil {
		errs = append(errs, p.meter.Shutdown(ctx))
	}
	if p.logger != nil {
		errs = append(errs, p.logger.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Exporter installs a Prometheus-backed meter provider as the global
// OpenTelemetry provider and serves the scrape endpoint.
type Exporter struct {
	meterProvider *sdkmetric.MeterProvider
}

// NewExporter creates the Prometheus exporter and registers it globally.
// Must run before New() so instruments bind to the real provider.
func NewExporter() (*Exporter, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(meterProvider)

	return &Exporter{meterProvider: meterProvider}, nil
}

// Handler serves Prometheus-formatted metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.Handler()
}

// Shutdown flushes and stops the meter provider.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.meterProvider != nil {
		return e.meterProvider.Shutdown(ctx)
	}
	return nil
}

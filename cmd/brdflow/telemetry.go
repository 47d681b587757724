package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/randalmurphal/brdflow/pkg/flowgraph/config"
	"github.com/randalmurphal/brdflow/pkg/flowgraph/observability"
)

// telemetry owns the exporters configured for one command.
type telemetry struct {
	metrics   observability.MetricsRecorder
	tracing   bool
	addr      string
	shutdowns []func(context.Context) error
}

// setupTelemetry installs a Prometheus-backed meter provider served on
// MetricsAddr and a stdout span exporter when tracing is on. With neither
// configured it returns no-op telemetry.
func setupTelemetry(t config.TelemetrySettings, traceOut io.Writer, logger *slog.Logger) (*telemetry, error) {
	tel := &telemetry{metrics: observability.NoopMetrics{}}

	if t.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		exporter, err := promexporter.New(promexporter.WithRegisterer(reg))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
		otel.SetMeterProvider(mp)
		tel.shutdowns = append(tel.shutdowns, mp.Shutdown)

		ln, err := net.Listen("tcp", t.MetricsAddr)
		if err != nil {
			_ = tel.shutdown(context.Background())
			return nil, fmt.Errorf("listen for metrics: %w", err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", slog.String("error", err.Error()))
			}
		}()
		tel.addr = ln.Addr().String()
		tel.shutdowns = append(tel.shutdowns, srv.Shutdown)
		tel.metrics = observability.NewMetricsRecorder()
		logger.Info("serving metrics", slog.String("addr", tel.addr))
	}

	if t.Trace {
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
		if err != nil {
			_ = tel.shutdown(context.Background())
			return nil, fmt.Errorf("create trace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
		otel.SetTracerProvider(tp)
		tel.tracing = true
		tel.shutdowns = append(tel.shutdowns, tp.Shutdown)
	}

	return tel, nil
}

// shutdown stops exporters in reverse order of setup.
func (t *telemetry) shutdown(ctx context.Context) error {
	var errs []error
	for i := len(t.shutdowns) - 1; i >= 0; i-- {
		if err := t.shutdowns[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	t.shutdowns = nil
	return errors.Join(errs...)
}

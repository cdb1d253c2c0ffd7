package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Config holds telemetry settings.
type Config struct {
	// Exporter is one of none, stdout or otlp.
	Exporter string `mapstructure:"exporter" default:"none"`
	// Endpoint is the OTLP/HTTP collector address, host:port.
	Endpoint string `mapstructure:"endpoint" default:""`
	// Insecure disables TLS towards the OTLP collector.
	Insecure bool `mapstructure:"insecure" default:"true"`
	// ServiceName is reported as service.name.
	ServiceName string `mapstructure:"service_name" default:"history-forwarder"`
}

// Instruments bundles the tracer and meter providers of the process.
type Instruments struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider

	reader   *sdkmetric.ManualReader
	shutdown []func(context.Context) error
}

// Init configures tracing and metrics. Spans for the stdout exporter are written to out,
// os.Stderr when nil, so they never mix with records written to stdout.
func Init(ctx context.Context, cfg Config, out io.Writer) (*Instruments, error) {
	if cfg.Exporter == "" || cfg.Exporter == ExporterNone {
		return Noop(), nil
	}
	if out == nil {
		out = os.Stderr
	}

	name := cfg.ServiceName
	if name == "" {
		name = "history-forwarder"
	}
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attribute.String("service.name", name)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build telemetry resource: %w", err)
	}

	exporter, err := newSpanExporter(ctx, cfg, out)
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tracerProvider)

	reader := sdkmetric.NewManualReader()
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(meterProvider)

	return &Instruments{
		TracerProvider: tracerProvider,
		MeterProvider:  meterProvider,
		reader:         reader,
		shutdown:       []func(context.Context) error{meterProvider.Shutdown, tracerProvider.Shutdown},
	}, nil
}

// Noop returns instruments that record nothing.
func Noop() *Instruments {
	return &Instruments{
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}
}

func newSpanExporter(ctx context.Context, cfg Config, out io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithWriter(out))
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.Endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.Endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		return exporter, nil
	default:
		return nil, fmt.Errorf("unsupported telemetry exporter %q", cfg.Exporter)
	}
}

// Tracer returns a named tracer.
func (i *Instruments) Tracer(name string) trace.Tracer {
	if i == nil || i.TracerProvider == nil {
		return otel.Tracer(name)
	}
	return i.TracerProvider.Tracer(name)
}

// Meter returns a named meter.
func (i *Instruments) Meter(name string) metric.Meter {
	if i == nil || i.MeterProvider == nil {
		return metricnoop.NewMeterProvider().Meter(name)
	}
	return i.MeterProvider.Meter(name)
}

// Collect reads the current metric values. It returns empty data for no-op instruments.
func (i *Instruments) Collect(ctx context.Context) (metricdata.ResourceMetrics, error) {
	var rm metricdata.ResourceMetrics
	if i == nil || i.reader == nil {
		return rm, nil
	}
	err := i.reader.Collect(ctx, &rm)
	return rm, err
}

// Shutdown flushes pending spans and stops the providers.
func (i *Instruments) Shutdown(ctx context.Context) error {
	if i == nil {
		return nil
	}
	var err error
	for _, fn := range i.shutdown {
		err = errors.Join(err, fn(ctx))
	}
	return err
}

// Counters returns the sum of every int64 counter by name.
func Counters(rm metricdata.ResourceMetrics) map[string]int64 {
	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				out[m.Name] += dp.Value
			}
		}
	}
	return out
}

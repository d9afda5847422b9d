package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/globe-simulator/internal/logging"
)

const (
	tracerPrefix        = "github.com/signalsfoundry/globe-simulator/"
	defaultOTLPEndpoint = "localhost:4317"
)

// ErrInvalidTracing is returned by TracingConfig.Validate.
var ErrInvalidTracing = errors.New("invalid tracing config")

// TracingConfig is the tracing block of the layered configuration. The
// config package fills it from YAML, GLOBESIM_TRACING_* and flags.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name"`
	Exporter    string  `yaml:"exporter"` // stdout | otlp
	Endpoint    string  `yaml:"endpoint"` // OTLP gRPC collector
	SampleRatio float64 `yaml:"sample_ratio"`

	// Output receives stdout-exported spans. Nil means os.Stdout.
	Output io.Writer `yaml:"-"`
}

// Validate checks the exporter name and sampling ratio.
func (c TracingConfig) Validate() error {
	if !(c.SampleRatio >= 0 && c.SampleRatio <= 1) {
		return fmt.Errorf("%w: sample ratio must be within [0, 1], got %v", ErrInvalidTracing, c.SampleRatio)
	}
	if !c.Enabled {
		return nil
	}
	switch strings.ToLower(c.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
		return nil
	default:
		return fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracing, c.Exporter)
	}
}

// InitTracing installs the global tracer provider described by cfg and
// returns the function that flushes it. A disabled config installs a noop
// provider, so Tracer is always safe to call.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (func(context.Context) error, error) {
	if log == nil {
		log = logging.Noop()
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tp, err := newTracerProvider(ctx, cfg)
	if err != nil {
		return nil, err
	}
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", exporterName(cfg)),
		logging.String("service_name", serviceName(cfg)),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return tp.Shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	exp, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName(cfg)),
		attribute.String("service.namespace", "globesim"),
	))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newSpanExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch exporterName(cfg) {
	case "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("%w: unsupported exporter %q", ErrInvalidTracing, cfg.Exporter)
	}
}

func exporterName(cfg TracingConfig) string {
	if cfg.Exporter == "" {
		return "stdout"
	}
	return strings.ToLower(cfg.Exporter)
}

func serviceName(cfg TracingConfig) string {
	if cfg.ServiceName == "" {
		return "globesim"
	}
	return cfg.ServiceName
}

// ShutdownWithTimeout flushes spans, giving up after five seconds. Errors are
// logged, not returned.
func ShutdownWithTimeout(ctx context.Context, shutdown func(context.Context) error, log logging.Logger) {
	if shutdown == nil {
		return
	}
	if log == nil {
		log = logging.Noop()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

// Tracer returns the named tracer from the global provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(tracerPrefix + name)
}

// ScenarioAttributes describe a loaded flight file on a span.
func ScenarioAttributes(path string, accepted, rejected int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("scenario.path", path),
		attribute.Int("scenario.accepted", accepted),
		attribute.Int("scenario.rejected", rejected),
	}
}

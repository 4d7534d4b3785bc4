// Package opentelemetry implements a tracing battery which exports spans to
// an OpenTelemetry collector over OTLP.
//
// The battery installs a global tracer provider and W3C trace-context
// propagator during setup, keeps one root span for the session's lifetime,
// and opens a child span per page view. The session's enable flag is enforced
// through the sampler, so disabling telemetry at runtime stops span export
// without tearing the pipeline down.
package opentelemetry

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracekit/batteries"
	"github.com/tracekit/batteries/internal/logger"
)

const drainTimeout = 5 * time.Second

// Protocol selects the OTLP transport used to reach the collector.
type Protocol string

const (
	// ProtocolGRPC exports over OTLP/gRPC (the default).
	ProtocolGRPC Protocol = "grpc"
	// ProtocolHTTPBinary exports over OTLP/HTTP with protobuf payloads.
	ProtocolHTTPBinary Protocol = "http-binary"
	// ProtocolHTTPJSON is accepted for parity with the OTLP environment
	// variable values; the exporter speaks protobuf over HTTP either way.
	ProtocolHTTPJSON Protocol = "http-json"
)

// OpenTelemetry configures the tracing battery for a collector endpoint.
//
//	session := batteries.New("my-service", "1.4.0").
//		WithBattery(opentelemetry.New("localhost:4317").
//			WithProtocol(opentelemetry.ProtocolGRPC).
//			WithHeader("x-api-key", apiKey))
//
//	defer session.Shutdown()
//
// The standard OTLP environment variables are honored:
// OTEL_EXPORTER_OTLP_ENDPOINT overrides the endpoint,
// OTEL_EXPORTER_OTLP_HEADERS (comma-separated key=value pairs) seeds the
// headers, OTEL_EXPORTER_OTLP_PROTOCOL overrides the protocol, and
// OTEL_TRACES_SAMPLER / OTEL_TRACES_SAMPLER_ARG select the sampler.
type OpenTelemetry struct {
	endpoint string
	headers  map[string]string
	protocol Protocol
	sampler  sdktrace.Sampler
	exporter sdktrace.SpanExporter
}

// New configures the battery for the provided collector endpoint. The
// endpoint should match the protocol in use (e.g. `localhost:4317` for gRPC,
// `http://localhost:4318` for HTTP).
func New(endpoint string) *OpenTelemetry {
	if env := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); env != "" {
		endpoint = env
	}

	headers := make(map[string]string)
	for _, header := range strings.Split(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"), ",") {
		if key, value, ok := strings.Cut(header, "="); ok {
			headers[key] = value
		}
	}

	return &OpenTelemetry{
		endpoint: endpoint,
		headers:  headers,
		sampler:  samplerFromEnv(),
	}
}

// WithHeader adds a header to the collector connection, commonly used for
// authenticating with hosted collector offerings. Keys that are already
// present are left untouched, including keys sourced from the
// OTEL_EXPORTER_OTLP_HEADERS environment variable.
func (o *OpenTelemetry) WithHeader(key, value string) *OpenTelemetry {
	if _, ok := o.headers[key]; !ok {
		o.headers[key] = value
	}
	return o
}

// WithProtocol selects the OTLP transport. The OTEL_EXPORTER_OTLP_PROTOCOL
// environment variable takes precedence when set.
func (o *OpenTelemetry) WithProtocol(protocol Protocol) *OpenTelemetry {
	o.protocol = protocol
	return o
}

// WithSampler replaces the sampler chosen from the environment.
func (o *OpenTelemetry) WithSampler(sampler sdktrace.Sampler) *OpenTelemetry {
	o.sampler = sampler
	return o
}

// WithSpanExporter injects a pre-built exporter, bypassing endpoint
// resolution entirely. Intended for tests and custom export pipelines.
func (o *OpenTelemetry) WithSpanExporter(exporter sdktrace.SpanExporter) *OpenTelemetry {
	o.exporter = exporter
	return o
}

// Setup implements batteries.BatteryBuilder. Configuration failures downgrade
// to a no-op battery; tracing is never allowed to break the host application.
func (o *OpenTelemetry) Setup(md *batteries.Metadata, enabled *atomic.Bool) batteries.Battery {
	log := logger.New("opentelemetry")

	exporter := o.exporter
	if exporter == nil {
		if o.endpoint == "" {
			log.Warn().Msg("No OpenTelemetry collector endpoint configured, tracing disabled")
			return batteries.NoopBattery{}
		}

		var err error
		exporter, err = o.buildExporter(context.Background())
		if err != nil {
			log.Warn().Err(err).Msg("Failed to configure OpenTelemetry exporter, tracing disabled")
			return batteries.NoopBattery{}
		}
	}

	sampler := o.sampler
	if sampler == nil {
		sampler = sdktrace.AlwaysSample()
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(buildResource(md)),
		sdktrace.WithSampler(&enabledSampler{inner: sampler, enabled: enabled}),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	tracer := provider.Tracer(md.Service)
	rootCtx, root := tracer.Start(context.Background(), md.Service)

	return &battery{
		provider: provider,
		tracer:   tracer,
		rootCtx:  rootCtx,
		root:     root,
		log:      log,
	}
}

// buildExporter constructs the OTLP exporter for the resolved protocol. An
// `http://` scheme on a gRPC endpoint selects a plaintext connection.
func (o *OpenTelemetry) buildExporter(ctx context.Context) (sdktrace.SpanExporter, error) {
	switch o.resolveProtocol() {
	case ProtocolHTTPBinary, ProtocolHTTPJSON:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(strings.TrimRight(o.endpoint, "/")+"/v1/traces"),
			otlptracehttp.WithHeaders(o.headers),
		)
	default:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithHeaders(o.headers)}
		if endpoint, ok := strings.CutPrefix(o.endpoint, "http://"); ok {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint), otlptracegrpc.WithInsecure())
		} else {
			opts = append(opts, otlptracegrpc.WithEndpoint(strings.TrimPrefix(o.endpoint, "https://")))
		}
		return otlptracegrpc.New(ctx, opts...)
	}
}

// resolveProtocol applies the environment override, then the builder setting,
// then the gRPC default.
func (o *OpenTelemetry) resolveProtocol() Protocol {
	switch os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") {
	case "http-binary":
		return ProtocolHTTPBinary
	case "http-json":
		return ProtocolHTTPJSON
	case "grpc":
		return ProtocolGRPC
	}

	if o.protocol != "" {
		return o.protocol
	}
	return ProtocolGRPC
}

// samplerFromEnv resolves OTEL_TRACES_SAMPLER and OTEL_TRACES_SAMPLER_ARG.
// Unknown values fall back to always-on.
func samplerFromEnv() sdktrace.Sampler {
	ratio := 1.0
	if arg, err := strconv.ParseFloat(os.Getenv("OTEL_TRACES_SAMPLER_ARG"), 64); err == nil {
		ratio = arg
	}

	switch os.Getenv("OTEL_TRACES_SAMPLER") {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.TraceIDRatioBased(ratio)
	case "parentbased_always_on":
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case "parentbased_always_off":
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case "parentbased_traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	default:
		return sdktrace.AlwaysSample()
	}
}

// buildResource describes the monitored service: its identity, the host
// platform, and every metadata context entry.
func buildResource(md *batteries.Metadata) *sdkresource.Resource {
	attrs := []attribute.KeyValue{
		attribute.String("service.name", md.Service),
		attribute.String("service.version", md.Version),
		attribute.String("host.os", runtime.GOOS),
		attribute.String("host.architecture", runtime.GOARCH),
	}
	for key, value := range md.Context {
		attrs = append(attrs, attribute.String(key, value))
	}

	return sdkresource.NewSchemaless(attrs...)
}

// enabledSampler drops every span while the session's enable flag reads
// false and defers to the configured sampler otherwise.
type enabledSampler struct {
	inner   sdktrace.Sampler
	enabled *atomic.Bool
}

func (s *enabledSampler) ShouldSample(p sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if !s.enabled.Load() {
		return sdktrace.SamplingResult{
			Decision:   sdktrace.Drop,
			Tracestate: trace.SpanContextFromContext(p.ParentContext).TraceState(),
		}
	}
	return s.inner.ShouldSample(p)
}

func (s *enabledSampler) Description() string {
	return "Enabled(" + s.inner.Description() + ")"
}

type battery struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	log      zerolog.Logger

	// One active page view at a time; the mutex keeps page transitions from
	// interleaving.
	mu      sync.Mutex
	rootCtx context.Context
	root    trace.Span
	page    trace.Span
}

// RecordNewPage ends the active page span, if any, and starts a new child
// span under the session root.
func (b *battery) RecordNewPage(page string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page != nil {
		b.page.End()
	}
	_, b.page = b.tracer.Start(b.rootCtx, page)
}

// RecordError records the error on the active page span, or on the session
// root span when no page view is active.
func (b *battery) RecordError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	span := b.root
	if b.page != nil {
		span = b.page
	}
	span.RecordError(err)
}

// Shutdown ends any open spans and flushes the provider, bounded by the
// drain ceiling so the process never hangs on an unreachable collector.
func (b *battery) Shutdown() {
	b.mu.Lock()
	if b.page != nil {
		b.page.End()
		b.page = nil
	}
	b.root.End()
	b.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	if err := b.provider.Shutdown(ctx); err != nil {
		b.log.Warn().Err(err).Msg("Timeout waiting for span export to complete")
	}
}

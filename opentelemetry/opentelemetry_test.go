package opentelemetry

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tracekit/batteries"
)

func enabledFlag(v bool) *atomic.Bool {
	flag := new(atomic.Bool)
	flag.Store(v)
	return flag
}

func TestEndpointFromEnvironment(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector.internal:4317")

	builder := New("localhost:4317")
	assert.Equal(t, "collector.internal:4317", builder.endpoint)
}

func TestHeaderPrecedence(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=from-env,x-team=platform")

	builder := New("localhost:4317").
		WithHeader("x-api-key", "from-code").
		WithHeader("x-extra", "added")

	assert.Equal(t, "from-env", builder.headers["x-api-key"], "environment headers win over code")
	assert.Equal(t, "platform", builder.headers["x-team"])
	assert.Equal(t, "added", builder.headers["x-extra"])
}

func TestResolveProtocol(t *testing.T) {
	cases := []struct {
		name     string
		env      string
		builder  Protocol
		expected Protocol
	}{
		{"default is grpc", "", "", ProtocolGRPC},
		{"builder setting", "", ProtocolHTTPBinary, ProtocolHTTPBinary},
		{"env override wins", "grpc", ProtocolHTTPBinary, ProtocolGRPC},
		{"env http-json", "http-json", "", ProtocolHTTPJSON},
		{"unknown env falls through", "carrier-pigeon", ProtocolHTTPBinary, ProtocolHTTPBinary},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", tc.env)

			builder := New("localhost:4317")
			if tc.builder != "" {
				builder = builder.WithProtocol(tc.builder)
			}
			assert.Equal(t, tc.expected, builder.resolveProtocol())
		})
	}
}

func TestSamplerFromEnvironment(t *testing.T) {
	cases := []struct {
		sampler  string
		arg      string
		expected sdktrace.Sampler
	}{
		{"", "", sdktrace.AlwaysSample()},
		{"always_on", "", sdktrace.AlwaysSample()},
		{"always_off", "", sdktrace.NeverSample()},
		{"traceidratio", "0.25", sdktrace.TraceIDRatioBased(0.25)},
		{"parentbased_always_on", "", sdktrace.ParentBased(sdktrace.AlwaysSample())},
		{"parentbased_always_off", "", sdktrace.ParentBased(sdktrace.NeverSample())},
		{"parentbased_traceidratio", "0.5", sdktrace.ParentBased(sdktrace.TraceIDRatioBased(0.5))},
		{"something-else", "", sdktrace.AlwaysSample()},
	}

	for _, tc := range cases {
		t.Run(tc.sampler, func(t *testing.T) {
			t.Setenv("OTEL_TRACES_SAMPLER", tc.sampler)
			t.Setenv("OTEL_TRACES_SAMPLER_ARG", tc.arg)

			assert.Equal(t, tc.expected.Description(), samplerFromEnv().Description())
		})
	}
}

func TestBuildResource(t *testing.T) {
	md := batteries.New("example", "0.0.1").WithContext("channel", "stable")

	attrs := make(map[string]string)
	for _, kv := range buildResource(md).Attributes() {
		attrs[string(kv.Key)] = kv.Value.AsString()
	}

	assert.Equal(t, "example", attrs["service.name"])
	assert.Equal(t, "0.0.1", attrs["service.version"])
	assert.Equal(t, "stable", attrs["channel"])
	assert.NotEmpty(t, attrs["host.os"])
	assert.NotEmpty(t, attrs["host.architecture"])
}

func TestEnabledSamplerGatesSampling(t *testing.T) {
	flag := enabledFlag(true)
	sampler := &enabledSampler{inner: sdktrace.AlwaysSample(), enabled: flag}

	params := sdktrace.SamplingParameters{
		ParentContext: context.Background(),
		Name:          "test",
	}

	assert.Equal(t, sdktrace.RecordAndSample, sampler.ShouldSample(params).Decision)

	flag.Store(false)
	assert.Equal(t, sdktrace.Drop, sampler.ShouldSample(params).Decision)

	flag.Store(true)
	assert.Equal(t, sdktrace.RecordAndSample, sampler.ShouldSample(params).Decision)
}

func TestEmptyEndpointDowngradesToNoop(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	b := New("").Setup(batteries.New("example", "0.0.1"), enabledFlag(true))
	assert.IsType(t, batteries.NoopBattery{}, b)
}

func TestBatteryLifecycle(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	b := New("").
		WithSpanExporter(exporter).
		Setup(batteries.New("example", "0.0.1"), enabledFlag(true))
	require.IsType(t, &battery{}, b)

	b.RecordNewPage("/home")
	b.RecordError(assert.AnError)
	b.RecordNewPage("/about")
	b.Shutdown()

	spans := exporter.GetSpans()
	require.Len(t, spans, 3, "two page spans plus the session root")

	names := make([]string, 0, len(spans))
	for _, span := range spans {
		names = append(names, span.Name)
	}
	// Spans export in end order: each page span ends before the next starts,
	// and the root ends at shutdown.
	assert.Equal(t, []string{"/home", "/about", "example"}, names)

	require.NotEmpty(t, spans[0].Events, "the error should be recorded on the active page span")
	assert.Equal(t, "exception", spans[0].Events[0].Name)
}

func TestDisabledFlagDropsAllSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()

	b := New("").
		WithSpanExporter(exporter).
		Setup(batteries.New("example", "0.0.1"), enabledFlag(false))

	b.RecordNewPage("/home")
	b.RecordError(assert.AnError)
	b.Shutdown()

	assert.Empty(t, exporter.GetSpans())
}

package util

import (
	"context"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.12.0"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
)

// The module name used for unique strings, such as tracing identifiers.
const Module = "github.com/warptools/pinflow"

// newResource identifies the process in exported spans.
func newResource(version string) (*resource.Resource, error) {
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(Module),
		semconv.ServiceVersionKey.String(version),
	))
	if err != nil {
		return nil, err
	}
	return resource.Merge(res, resource.Environment())
}

// newTracingProvider creates a tracer provider from CLI flags.
// It returns nil when no exporter is enabled.
func newTracingProvider(c *cli.Context) (_ *sdktrace.TracerProvider, retErr error) {
	logger := logging.Ctx(c.Context)
	exporters := []sdktrace.TracerProviderOption{}
	fileExporter, err := newFileSpanExporter(c.Context, c.String("trace.file"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if retErr != nil {
			fileExporter.Shutdown(c.Context)
		}
	}()
	if fileExporter != nil {
		exporters = append(exporters, sdktrace.WithBatcher(fileExporter))
	}

	if c.Bool("trace.http.enable") {
		httpOpts := []otlptracehttp.Option{}
		if endpoint := c.String("trace.http.endpoint"); endpoint != "" {
			logger.Debug("", "trace.http.endpoint: %s", endpoint)
			httpOpts = append(httpOpts, otlptracehttp.WithEndpoint(endpoint))
		}
		if c.Bool("trace.http.insecure") {
			httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
		}
		httpExporter, err := otlptrace.New(c.Context, otlptracehttp.NewClient(httpOpts...))
		if err != nil {
			return nil, err
		}
		exporters = append(exporters, sdktrace.WithBatcher(httpExporter))
	}
	if len(exporters) == 0 {
		return nil, nil
	}
	res, err := newResource(c.App.Version)
	if err != nil {
		return nil, err
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	}
	return sdktrace.NewTracerProvider(append(opts, exporters...)...), nil
}

// fileSpanExporter calls Close() during Shutdown, simplifying the
// implementation for file handling
type fileSpanExporter struct {
	sdktrace.SpanExporter
	io.Closer
}

// Shutdown handles cleaning up the span exporter
//
// Errors:
//
//   - pinflow-error-internal -- when an error occurs during tracing shutdown
func (e *fileSpanExporter) Shutdown(ctx context.Context) error {
	if e == nil {
		return nil
	}
	defer e.Closer.Close() // consume file close errors
	if err := e.SpanExporter.Shutdown(ctx); err != nil {
		return pfapi.ErrorInternal("tracing shutdown failed", err)
	}
	return nil
}

// newFileSpanExporter creates or truncates the named file and uses the file with a console exporter.
func newFileSpanExporter(ctx context.Context, name string) (*fileSpanExporter, error) {
	if name == "" {
		return nil, nil
	}
	logging.Ctx(ctx).Debug("", "trace file path: %s", name)
	f, err := os.Create(name)
	if err != nil {
		return nil, pfapi.ErrorIo("creating trace file", name, err)
	}
	exp, err := stdouttrace.New(
		stdouttrace.WithWriter(f),
		stdouttrace.WithPrettyPrint(),
		stdouttrace.WithoutTimestamps(),
	)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileSpanExporter{exp, f}, nil
}

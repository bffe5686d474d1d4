package tracing

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/warptools/pinflow/pfapi"
)

func TestSpanErrorCarriesCode(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	ctx := SetTracer(context.Background(), tp.Tracer("test"))

	func() (err error) {
		ctx, span := Start(ctx, "call")
		defer EndWithError(ctx, span, &err)
		return pfapi.ErrorNotFound("operator", "nope")
	}()

	spans := rec.Ended()
	qt.Assert(t, spans, qt.HasLen, 1)
	var code string
	for _, a := range spans[0].Attributes() {
		if string(a.Key) == AttrKeyPinflowErrorCode {
			code = a.Value.AsString()
		}
	}
	qt.Assert(t, code, qt.Equals, pfapi.CodeNotFound)
}

func TestNoTracerIsNoop(t *testing.T) {
	ctx, span := Start(context.Background(), "noop")
	qt.Assert(t, ctx, qt.IsNotNil)
	span.End()
}

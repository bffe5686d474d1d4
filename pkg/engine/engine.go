// Package engine binds a transport to the client-side bookkeeping of one engine:
// the handle registry, the specification cache and the dispatch session.
//
// Every engine-owned object is reached through a *Handle belonging to exactly one Engine.
// Handles are never valid on another Engine; use a deep copy to move data between engines.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/tracing"
	"github.com/warptools/pinflow/pkg/transport"
)

const LOG_TAG = "engine"

// MinimumVersion is the oldest engine protocol this client talks to.
var MinimumVersion = pfapi.V(1, 0, 0)

// Engine is the client-side view of one engine.
type Engine struct {
	tr   transport.Transport
	info pfapi.Welcome
	name string

	mu     sync.Mutex
	live   map[transport.HandleID]*Handle
	closed bool

	specs   *SpecRegistry
	session *Session
}

// Option adjusts an Engine at Open.
type Option func(*Engine)

// WithName overrides the name the engine reported in the handshake.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithProgressSink installs the display sink used for progress-enabled evaluations.
func WithProgressSink(sink ProgressSink) Option {
	return func(e *Engine) { e.session.sink = sink }
}

// Open wraps a negotiated transport.
//
// Errors:
//
//   - pinflow-error-version-unsupported -- when the engine is older than MinimumVersion
func Open(ctx context.Context, tr transport.Transport, opts ...Option) (*Engine, error) {
	e := &Engine{
		tr:   tr,
		info: tr.Info(),
		live: map[transport.HandleID]*Handle{},
	}
	e.name = e.info.Engine
	e.specs = &SpecRegistry{eng: e, cache: map[string]*pfapi.OperatorSpec{}}
	e.session = &Session{eng: e, outstanding: map[uint64]string{}}
	for _, o := range opts {
		o(e)
	}
	if !e.info.Version.AtLeast(MinimumVersion) {
		return nil, pfapi.ErrorVersionUnsupported("pinflow client", MinimumVersion, e.info.Version)
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "opened %s engine %q version %s", tr.Kind(), e.name, e.info.Version)
	return e, nil
}

func (e *Engine) String() string { return fmt.Sprintf("engine(%s)", e.name) }

// Name identifies the engine in messages.
func (e *Engine) Name() string { return e.name }

// Info is the handshake reply of the engine.
func (e *Engine) Info() pfapi.Welcome { return e.info }

// Version is the protocol version advertised by the engine.
func (e *Engine) Version() pfapi.Version { return e.info.Version }

// InProcess reports whether calls go straight into a loaded library.
func (e *Engine) InProcess() bool { return e.info.InProcess }

// Transport exposes the underlying transport.
func (e *Engine) Transport() transport.Transport { return e.tr }

// Specs is the operator specification registry of this engine.
func (e *Engine) Specs() *SpecRegistry { return e.specs }

// Session is the dispatch session of this engine.
func (e *Engine) Session() *Session { return e.session }

// Require fails when the engine is older than need.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
func (e *Engine) Require(feature string, need pfapi.Version) error {
	if !e.info.Version.AtLeast(need) {
		return pfapi.ErrorVersionUnsupported(feature, need, e.info.Version)
	}
	return nil
}

// Supports reports whether the engine implements op.
func (e *Engine) Supports(op pfapi.Op) bool {
	return e.info.Version.AtLeast(op.Since)
}

// Arg is one argument of Invoke: a plain value or a handle checked against the engine.
type Arg struct {
	v pfapi.Value
	h *Handle
}

// V passes a plain value.
func V(v pfapi.Value) Arg { return Arg{v: v} }

// H passes a handle.
func H(h *Handle) Arg { return Arg{h: h} }

// Invoke calls op on target with args and returns the raw result.
// Handles are validated before anything is sent: released handles and
// handles of other engines never reach the transport.
//
// Errors:
//
//   - pinflow-error-not-found -- when target or a handle argument was released
//   - pinflow-error-invalid-argument -- when a handle belongs to another engine
//   - pinflow-error-version-unsupported -- when the engine predates op
//   - pinflow-error-transport-fault --
//   - any code reported by the engine, annotated with the op name
func (e *Engine) Invoke(ctx context.Context, op pfapi.Op, target *Handle, args ...Arg) (_ pfapi.Value, err error) {
	if err := e.Require(op.Name, op.Since); err != nil {
		return pfapi.Value{}, err
	}
	call := transport.Call{Op: op, Args: make([]pfapi.Value, len(args))}
	if target != nil {
		if err := e.check(target); err != nil {
			return pfapi.Value{}, err
		}
		call.Handle = target.id
	}
	for i, a := range args {
		if a.h == nil {
			call.Args[i] = a.v
			continue
		}
		if err := e.check(a.h); err != nil {
			return pfapi.Value{}, err
		}
		call.Args[i] = pfapi.HandleValue(pfapi.HandleRef{ID: uint64(a.h.id), Kind: a.h.kind})
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return pfapi.Value{}, pfapi.ErrorTransport(op.Name, fmt.Errorf("%s is closed", e))
	}

	ctx, span := tracing.Start(ctx, op.Name)
	defer tracing.EndWithError(ctx, span, &err)
	span.SetAttributes(
		attribute.String(tracing.AttrKeyPinflowOp, op.Name),
		attribute.Int64(tracing.AttrKeyPinflowHandle, int64(call.Handle)),
		attribute.String(tracing.AttrKeyPinflowEngine, e.name),
		attribute.String(tracing.AttrKeyPinflowTransport, e.tr.Kind()),
	)
	log := logging.Ctx(ctx)
	log.Debug(LOG_TAG, "%s #%d %v", op.Name, call.Handle, call.Args)
	start := time.Now()
	v, err := e.tr.Invoke(ctx, call)
	e.observe(op, start, err)
	if err != nil {
		return pfapi.Value{}, pfapi.Annotate(err, fmt.Sprintf("calling %s on %s", op.Name, e))
	}
	return v, nil
}

// InvokeHandle is Invoke for operations producing a new engine object.
// The result is an owned handle registered with the engine.
// A non-empty want other than any rejects results of another kind.
//
// Errors:
//
//   - pinflow-error-type-mismatch -- when the result is not a handle of kind want
//   - see Invoke
func (e *Engine) InvokeHandle(ctx context.Context, op pfapi.Op, target *Handle, want pfapi.TypeTag, args ...Arg) (*Handle, error) {
	v, err := e.Invoke(ctx, op, target, args...)
	if err != nil {
		return nil, err
	}
	if v.Handle == nil {
		return nil, pfapi.ErrorTypeMismatch(op.Name, want, v.Tag())
	}
	h := e.Adopt(*v.Handle)
	if want != "" && want != pfapi.TypeAny && h.kind != want {
		h.Release(ctx)
		return nil, pfapi.ErrorTypeMismatch(op.Name, want, h.kind)
	}
	return h, nil
}

// Adopt takes ownership of a handle reference produced by this engine.
func (e *Engine) Adopt(ref pfapi.HandleRef) *Handle {
	h := &Handle{eng: e, id: transport.HandleID(ref.ID), kind: ref.Kind}
	e.mu.Lock()
	e.live[h.id] = h
	e.mu.Unlock()
	metricLiveHandles.WithLabelValues(e.name).Inc()
	return h
}

// LiveHandles counts owned handles not yet released.
func (e *Engine) LiveHandles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

func (e *Engine) check(h *Handle) error {
	if h.eng != e {
		return pfapi.ErrorCrossEngine(h.kind, h.eng.name, e.name)
	}
	if !h.Valid() {
		return pfapi.ErrorReleased(h.kind)
	}
	return nil
}

func (e *Engine) forget(h *Handle) {
	e.mu.Lock()
	_, ok := e.live[h.id]
	delete(e.live, h.id)
	e.mu.Unlock()
	if ok {
		metricLiveHandles.WithLabelValues(e.name).Dec()
	}
}

// Upload stores data on the engine host and returns the engine-side path.
//
// Errors:
//
//   - see Invoke
func (e *Engine) Upload(ctx context.Context, name string, data []byte) (string, error) {
	v, err := e.Invoke(ctx, pfapi.OpFileUpload, nil, V(pfapi.StringValue(name)), V(pfapi.BytesValue(data)))
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// Download reads a file from the engine host.
//
// Errors:
//
//   - see Invoke
func (e *Engine) Download(ctx context.Context, path string) ([]byte, error) {
	v, err := e.Invoke(ctx, pfapi.OpFileDownload, nil, V(pfapi.StringValue(path)))
	if err != nil {
		return nil, err
	}
	return v.AsBytes()
}

// Close releases every handle still owned and closes the transport.
// Release failures are logged; the first transport error is returned.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	live := make([]*Handle, 0, len(e.live))
	for _, h := range e.live {
		live = append(live, h)
	}
	e.mu.Unlock()

	log := logging.Ctx(ctx)
	for _, h := range live {
		if err := h.Release(ctx); err != nil {
			log.Debug(LOG_TAG, "releasing %s on close: %s", h, err)
		}
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	if err := e.tr.Close(); err != nil {
		return pfapi.ErrorTransport("closing "+e.name, err)
	}
	return nil
}

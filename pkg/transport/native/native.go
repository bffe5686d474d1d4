// Package native dispatches engine calls directly into an in-process engine library.
//
// The library exports a small C ABI:
//
//	void    pf_version(int32_t *major, int32_t *minor, int32_t *patch);
//	char   *pf_context(void);   /* comma-separated capability list, freed with pf_free */
//	int32_t pf_invoke(int32_t op, uint64_t handle, pf_arg_t *args, int32_t nargs, pf_result_t *out);
//	void    pf_free(void *p);
//
// Handle values are raw engine pointers. Buffers returned in a pf_result_t belong
// to the engine and are released with pf_free once copied, except for borrowing
// operations whose buffers alias engine memory until handed back.
//
// The transport does not serialize calls unless WithSerializedCalls is given.
package native

import (
	"context"
	"strings"
	"sync"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/transport"
)

// ContextSeparator separates capabilities in the string returned by pf_context.
const ContextSeparator = ","

// Symbols is the resolved function table of an engine library.
type Symbols struct {
	Version func(major, minor, patch *int32)
	Context func() uintptr
	Invoke  func(op int32, handle uint64, args *Arg, nargs int32, out *Result) int32
	Free    func(p uintptr)
}

// Transport is the in-process Transport.
type Transport struct {
	sym  Symbols
	info pfapi.Welcome
	lock *sync.Mutex
	lib  uintptr
	done bool
}

var _ transport.Transport = (*Transport)(nil)

type Option func(*Transport)

// WithSerializedCalls makes the transport safe to share between goroutines.
func WithSerializedCalls() Option {
	return func(t *Transport) { t.lock = &sync.Mutex{} }
}

// WithEngineName sets the engine identity reported by Info.
func WithEngineName(name string) Option {
	return func(t *Transport) { t.info.Engine = name }
}

// New builds a transport over an already resolved symbol table.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when a required symbol is missing
func New(sym Symbols, opts ...Option) (*Transport, error) {
	if sym.Version == nil || sym.Invoke == nil || sym.Free == nil {
		return nil, pfapi.ErrorInvalidArgument("engine library is missing required symbols")
	}
	t := &Transport{sym: sym}
	t.info.Engine = "in-process"
	t.info.InProcess = true
	for _, o := range opts {
		o(t)
	}
	var major, minor, patch int32
	sym.Version(&major, &minor, &patch)
	t.info.Version = pfapi.V(int(major), int(minor), int(patch))
	t.info.Context = []string{}
	if sym.Context != nil {
		if p := sym.Context(); p != 0 {
			s := cString(p)
			sym.Free(p)
			if s != "" {
				t.info.Context = strings.Split(s, ContextSeparator)
			}
		}
	}
	return t, nil
}

func (t *Transport) Info() pfapi.Welcome { return t.info }

func (t *Transport) Kind() string { return "native" }

// Invoke calls pf_invoke. Progress events are not available in-process.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when the transport was closed
//   - pinflow-error-serialization -- when an argument cannot be marshalled
//   - any code reported by the engine
func (t *Transport) Invoke(ctx context.Context, call transport.Call) (pfapi.Value, error) {
	if t.lock != nil {
		t.lock.Lock()
		defer t.lock.Unlock()
	}
	if t.done {
		return pfapi.Value{}, pfapi.ErrorTransport(call.Op.Name, errClosed)
	}

	var enc encoder
	defer enc.release()
	args := make([]Arg, len(call.Args))
	for i, v := range call.Args {
		a, err := enc.encode(v)
		if err != nil {
			return pfapi.Value{}, err
		}
		args[i] = a
	}
	var argp *Arg
	if len(args) > 0 {
		argp = &args[0]
		enc.pinner.Pin(argp)
	}
	var out Result
	t.sym.Invoke(call.Op.Code, uint64(call.Handle), argp, int32(len(args)), &out)

	if out.Status != StatusOK {
		f := pfapi.Fault{
			Code:    CodeForStatus(out.Status),
			Message: string(copyBytes(out.Msg, out.MsgLen)),
			Stack:   string(copyBytes(out.Stack, out.StackLen)),
		}
		t.free(out.Msg)
		t.free(out.Stack)
		return pfapi.Value{}, pfapi.ErrorFromFault(call.Op.Name, f)
	}
	v, err := DecodeArg(out.Value, call.Op.Borrow)
	if !call.Op.Borrow || out.Value.Kind != KindDoubles {
		t.free(out.Value.P)
	}
	return v, err
}

func (t *Transport) free(p uintptr) {
	if p != 0 {
		t.sym.Free(p)
	}
}

// Close marks the transport unusable. The library stays loaded: engines do not support unloading.
func (t *Transport) Close() error {
	if t.lock != nil {
		t.lock.Lock()
		defer t.lock.Unlock()
	}
	t.done = true
	return nil
}

package native

import (
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"github.com/warptools/pinflow/pfapi"
)

// Arg mirrors the engine header's argument record:
//
//	typedef struct { int32_t kind; int32_t reserved; int64_t i; double f; void *p; uint64_t n; } pf_arg_t;
//
// Scalars travel in I or F. Buffers travel as P plus an element count N.
// Handles are raw engine pointers carried in I, with the kind tag as a string in P/N.
type Arg struct {
	Kind     int32
	Reserved int32
	I        int64
	F        float64
	P        uintptr
	N        uint64
}

// Result mirrors pf_result_t. Status zero means success.
// Msg and Stack point at UTF-8 text owned by the engine until freed.
type Result struct {
	Value    Arg
	Status   int32
	Reserved int32
	Msg      uintptr
	MsgLen   uint64
	Stack    uintptr
	StackLen uint64
}

// Argument kinds.
const (
	KindNone int32 = iota
	KindBool
	KindInt32
	KindInt64
	KindUint64
	KindDouble
	KindString
	KindBytes
	KindHandle
	KindInts
	KindDoubles
	KindStrings // P/N: NUL-separated UTF-8
	KindLabels  // P/N: dag-cbor LabelMap
)

// Status codes carried in Result.Status.
const (
	StatusOK int32 = iota
	StatusNotFound
	StatusInvalidArgument
	StatusTypeMismatch
	StatusEngineFault
	StatusLicenseUnavailable
	StatusVersionUnsupported
)

var statusCodes = map[int32]string{
	StatusNotFound:           pfapi.CodeNotFound,
	StatusInvalidArgument:    pfapi.CodeInvalidArgument,
	StatusTypeMismatch:       pfapi.CodeTypeMismatch,
	StatusEngineFault:        pfapi.CodeEngineFault,
	StatusLicenseUnavailable: pfapi.CodeLicenseUnavailable,
	StatusVersionUnsupported: pfapi.CodeVersionUnsupported,
}

// StatusForCode maps an error code to the ABI status; unknown codes become engine faults.
func StatusForCode(code string) int32 {
	for s, c := range statusCodes {
		if c == code {
			return s
		}
	}
	return StatusEngineFault
}

// CodeForStatus is the inverse of StatusForCode.
func CodeForStatus(status int32) string {
	if c, ok := statusCodes[status]; ok {
		return c
	}
	return pfapi.CodeEngineFault
}

// encoder holds Go memory referenced by outgoing Args pinned for the duration of a call.
type encoder struct {
	pinner runtime.Pinner
}

func (e *encoder) release() { e.pinner.Unpin() }

func (e *encoder) buffer(p unsafe.Pointer, n int) uintptr {
	if n == 0 || p == nil {
		return 0
	}
	e.pinner.Pin(p)
	return uintptr(p)
}

func (e *encoder) bytes(b []byte) (uintptr, uint64) {
	if len(b) == 0 {
		return 0, 0
	}
	return e.buffer(unsafe.Pointer(&b[0]), len(b)), uint64(len(b))
}

// Errors:
//
//   - pinflow-error-serialization -- when a label map cannot be encoded
func (e *encoder) encode(v pfapi.Value) (Arg, error) {
	switch {
	case v.Bool != nil:
		a := Arg{Kind: KindBool}
		if *v.Bool {
			a.I = 1
		}
		return a, nil
	case v.Int32 != nil:
		return Arg{Kind: KindInt32, I: int64(*v.Int32)}, nil
	case v.Int64 != nil:
		return Arg{Kind: KindInt64, I: *v.Int64}, nil
	case v.Uint64 != nil:
		return Arg{Kind: KindUint64, I: int64(*v.Uint64)}, nil
	case v.Double != nil:
		return Arg{Kind: KindDouble, F: *v.Double}, nil
	case v.Str != nil:
		p, n := e.bytes([]byte(*v.Str))
		return Arg{Kind: KindString, P: p, N: n}, nil
	case v.Bytes != nil:
		p, n := e.bytes(*v.Bytes)
		return Arg{Kind: KindBytes, P: p, N: n}, nil
	case v.Handle != nil:
		p, n := e.bytes([]byte(v.Handle.Kind))
		return Arg{Kind: KindHandle, I: int64(v.Handle.ID), P: p, N: n}, nil
	case v.Ints != nil:
		s := *v.Ints
		if len(s) == 0 {
			return Arg{Kind: KindInts}, nil
		}
		return Arg{Kind: KindInts, P: e.buffer(unsafe.Pointer(&s[0]), len(s)), N: uint64(len(s))}, nil
	case v.Doubles != nil:
		s := *v.Doubles
		if len(s) == 0 {
			return Arg{Kind: KindDoubles}, nil
		}
		return Arg{Kind: KindDoubles, P: e.buffer(unsafe.Pointer(&s[0]), len(s)), N: uint64(len(s))}, nil
	case v.Strings != nil:
		p, n := e.bytes([]byte(strings.Join(*v.Strings, pfapi.StringListSeparator)))
		return Arg{Kind: KindStrings, P: p, N: n}, nil
	case v.Labels != nil:
		b, err := pfapi.EncodeCBOR(v.Labels, "LabelMap")
		if err != nil {
			return Arg{}, err
		}
		p, n := e.bytes(b)
		return Arg{Kind: KindLabels, P: p, N: n}, nil
	}
	return Arg{Kind: KindNone}, nil
}

// DecodeArg reads an Arg into a Value.
// With alias set, double buffers are returned as views over the referenced memory instead of copies.
//
// Errors:
//
//   - pinflow-error-serialization -- when a label map cannot be decoded
//   - pinflow-error-invalid-argument -- when the kind is unknown
func DecodeArg(a Arg, alias bool) (pfapi.Value, error) {
	switch a.Kind {
	case KindNone:
		return pfapi.Value{}, nil
	case KindBool:
		return pfapi.BoolValue(a.I != 0), nil
	case KindInt32:
		return pfapi.Int32Value(int32(a.I)), nil
	case KindInt64:
		return pfapi.Int64Value(a.I), nil
	case KindUint64:
		return pfapi.Uint64Value(uint64(a.I)), nil
	case KindDouble:
		return pfapi.DoubleValue(a.F), nil
	case KindString:
		return pfapi.StringValue(string(copyBytes(a.P, a.N))), nil
	case KindBytes:
		return pfapi.BytesValue(copyBytes(a.P, a.N)), nil
	case KindHandle:
		return pfapi.HandleValue(pfapi.HandleRef{ID: uint64(a.I), Kind: pfapi.TypeTag(copyBytes(a.P, a.N))}), nil
	case KindInts:
		out := make([]int64, a.N)
		if a.N > 0 {
			copy(out, unsafe.Slice((*int64)(unsafe.Pointer(a.P)), a.N))
		}
		return pfapi.IntsValue(out), nil
	case KindDoubles:
		if a.N == 0 {
			return pfapi.DoublesValue([]float64{}), nil
		}
		view := unsafe.Slice((*float64)(unsafe.Pointer(a.P)), a.N)
		if alias {
			return pfapi.DoublesValue(view), nil
		}
		out := make([]float64, a.N)
		copy(out, view)
		return pfapi.DoublesValue(out), nil
	case KindStrings:
		s := string(copyBytes(a.P, a.N))
		if s == "" {
			return pfapi.StringsValue([]string{}), nil
		}
		return pfapi.StringsValue(strings.Split(s, pfapi.StringListSeparator)), nil
	case KindLabels:
		var m pfapi.LabelMap
		if err := pfapi.DecodeCBOR(copyBytes(a.P, a.N), &m, "LabelMap"); err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.LabelsValue(m), nil
	}
	return pfapi.Value{}, pfapi.ErrorInvalidArgument("unknown ABI argument kind")
}

// DecodeArgs reads a C array of n Args.
//
// Errors:
//
//   - pinflow-error-serialization --
//   - pinflow-error-invalid-argument --
func DecodeArgs(args *Arg, n int32) ([]pfapi.Value, error) {
	if n == 0 || args == nil {
		return []pfapi.Value{}, nil
	}
	raw := unsafe.Slice(args, n)
	out := make([]pfapi.Value, n)
	for i, a := range raw {
		v, err := DecodeArg(a, false)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func copyBytes(p uintptr, n uint64) []byte {
	if p == 0 || n == 0 {
		return []byte{}
	}
	out := make([]byte, n)
	copy(out, unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
	return out
}

// Arena owns engine-side memory handed out through Results until the client frees it.
// Engines implemented in Go use it to satisfy the ownership rules of the ABI.
type Arena struct {
	mu   sync.Mutex
	live map[uintptr]*runtime.Pinner
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{live: map[uintptr]*runtime.Pinner{}}
}

func (a *Arena) keep(p unsafe.Pointer) uintptr {
	pin := &runtime.Pinner{}
	pin.Pin(p)
	a.mu.Lock()
	a.live[uintptr(p)] = pin
	a.mu.Unlock()
	return uintptr(p)
}

// Free releases memory previously returned by Put.
func (a *Arena) Free(p uintptr) {
	a.mu.Lock()
	pin := a.live[p]
	delete(a.live, p)
	a.mu.Unlock()
	if pin != nil {
		pin.Unpin()
	}
}

// Live is the number of allocations not yet freed.
func (a *Arena) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

func (a *Arena) bytes(b []byte) (uintptr, uint64) {
	if len(b) == 0 {
		return 0, 0
	}
	return a.keep(unsafe.Pointer(&b[0])), uint64(len(b))
}

// Put encodes v into an Arg whose buffers stay valid until freed.
//
// Errors:
//
//   - pinflow-error-serialization -- when a label map cannot be encoded
func (a *Arena) Put(v pfapi.Value) (Arg, error) {
	switch {
	case v.Str != nil:
		p, n := a.bytes([]byte(*v.Str))
		return Arg{Kind: KindString, P: p, N: n}, nil
	case v.Bytes != nil:
		b := append([]byte(nil), *v.Bytes...)
		p, n := a.bytes(b)
		return Arg{Kind: KindBytes, P: p, N: n}, nil
	case v.Handle != nil:
		p, n := a.bytes([]byte(v.Handle.Kind))
		return Arg{Kind: KindHandle, I: int64(v.Handle.ID), P: p, N: n}, nil
	case v.Ints != nil:
		s := append([]int64(nil), *v.Ints...)
		if len(s) == 0 {
			return Arg{Kind: KindInts}, nil
		}
		return Arg{Kind: KindInts, P: a.keep(unsafe.Pointer(&s[0])), N: uint64(len(s))}, nil
	case v.Doubles != nil:
		s := append([]float64(nil), *v.Doubles...)
		if len(s) == 0 {
			return Arg{Kind: KindDoubles}, nil
		}
		return Arg{Kind: KindDoubles, P: a.keep(unsafe.Pointer(&s[0])), N: uint64(len(s))}, nil
	case v.Strings != nil:
		p, n := a.bytes([]byte(strings.Join(*v.Strings, pfapi.StringListSeparator)))
		return Arg{Kind: KindStrings, P: p, N: n}, nil
	case v.Labels != nil:
		b, err := pfapi.EncodeCBOR(v.Labels, "LabelMap")
		if err != nil {
			return Arg{}, err
		}
		p, n := a.bytes(b)
		return Arg{Kind: KindLabels, P: p, N: n}, nil
	}
	var e encoder
	arg, err := e.encode(v) // scalars carry no memory
	e.release()
	return arg, err
}

// Alias returns an Arg viewing s directly. The caller keeps s alive and unmoved
// until the client hands it back.
func Alias(s []float64) Arg {
	if len(s) == 0 {
		return Arg{Kind: KindDoubles}
	}
	return Arg{Kind: KindDoubles, P: uintptr(unsafe.Pointer(&s[0])), N: uint64(len(s))}
}

// PutFault fills the error part of out.
func (a *Arena) PutFault(out *Result, f pfapi.Fault) {
	out.Status = StatusForCode(f.Code)
	out.Msg, out.MsgLen = a.bytes([]byte(f.Message))
	out.Stack, out.StackLen = a.bytes([]byte(f.Stack))
}

package native

import (
	"context"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/testutil"
	"github.com/warptools/pinflow/pkg/transport"
)

var opEcho = pfapi.Op{Code: 9001, Name: "test.echo"}
var opView = pfapi.Op{Code: 9002, Name: "test.view", Borrow: true}
var opFail = pfapi.Op{Code: 9003, Name: "test.fail"}

// echoLibrary is a symbol table answering with its first argument, the way a Go-hosted engine would.
func echoLibrary(arena *Arena, view []float64) Symbols {
	return Symbols{
		Version: func(major, minor, patch *int32) { *major, *minor, *patch = 4, 1, 2 },
		Context: func() uintptr {
			a, _ := arena.Put(pfapi.StringValue("premium,meshing\x00"))
			return a.P
		},
		Invoke: func(op int32, handle uint64, args *Arg, nargs int32, out *Result) int32 {
			switch op {
			case opView.Code:
				out.Value = Alias(view)
				return StatusOK
			case opFail.Code:
				arena.PutFault(out, pfapi.Fault{Code: pfapi.CodeLicenseUnavailable, Message: "no license", Stack: "kernel.cpp:12"})
				return out.Status
			}
			values, err := DecodeArgs(args, nargs)
			if err != nil || len(values) == 0 {
				return StatusOK
			}
			out.Value, _ = arena.Put(values[0])
			return StatusOK
		},
		Free: arena.Free,
	}
}

func TestInfo(t *testing.T) {
	arena := NewArena()
	tr, err := New(echoLibrary(arena, nil), WithEngineName("echo"))
	qt.Assert(t, err, qt.IsNil)
	info := tr.Info()
	qt.Check(t, info.Engine, qt.Equals, "echo")
	qt.Check(t, info.Version, qt.Equals, pfapi.V(4, 1, 2))
	qt.Check(t, info.Context, qt.DeepEquals, []string{"premium", "meshing"})
	qt.Check(t, info.InProcess, qt.IsTrue)
	qt.Check(t, tr.Kind(), qt.Equals, "native")
	qt.Check(t, arena.Live(), qt.Equals, 0)

	_, err = New(Symbols{Version: func(_, _, _ *int32) {}})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
}

func TestValuesCrossTheABI(t *testing.T) {
	arena := NewArena()
	tr, err := New(echoLibrary(arena, nil), WithSerializedCalls())
	qt.Assert(t, err, qt.IsNil)
	labels := pfapi.NewLabelMap()
	labels.Set("time", 2)
	labels.Set("complex", 1)
	for _, v := range []pfapi.Value{
		pfapi.BoolValue(true),
		pfapi.Int32Value(-4),
		pfapi.Int64Value(1 << 40),
		pfapi.Uint64Value(7),
		pfapi.DoubleValue(0.25),
		pfapi.StringValue("Nodal"),
		pfapi.BytesValue([]byte{1, 0, 2}),
		pfapi.HandleValue(pfapi.HandleRef{ID: 0xdeadbeef, Kind: pfapi.TypeField}),
		pfapi.IntsValue([]int64{3, 1, 2}),
		pfapi.DoublesValue([]float64{1.5, -2}),
		pfapi.StringsValue([]string{"a", "b c"}),
		pfapi.LabelsValue(labels),
		{},
	} {
		got, err := tr.Invoke(context.Background(), transport.Call{Op: opEcho, Args: []pfapi.Value{v}})
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, got, qt.DeepEquals, v, qt.Commentf("%s", v))
	}
	qt.Check(t, arena.Live(), qt.Equals, 0)
}

func TestBorrowedDoublesAlias(t *testing.T) {
	arena := NewArena()
	view := []float64{1, 2, 3}
	tr, err := New(echoLibrary(arena, view))
	qt.Assert(t, err, qt.IsNil)

	got, err := tr.Invoke(context.Background(), transport.Call{Op: opView})
	qt.Assert(t, err, qt.IsNil)
	view[0] = 10
	qt.Check(t, *got.Doubles, qt.DeepEquals, []float64{10, 2, 3})

	copied, err := tr.Invoke(context.Background(), transport.Call{Op: pfapi.Op{Code: opView.Code, Name: "test.view_copy"}})
	qt.Assert(t, err, qt.IsNil)
	view[1] = 20
	qt.Check(t, *copied.Doubles, qt.DeepEquals, []float64{10, 2, 3})
}

func TestFaults(t *testing.T) {
	arena := NewArena()
	tr, err := New(echoLibrary(arena, nil))
	qt.Assert(t, err, qt.IsNil)
	_, err = tr.Invoke(context.Background(), transport.Call{Op: opFail})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeLicenseUnavailable), qt.IsTrue)
	qt.Check(t, arena.Live(), qt.Equals, 0)

	qt.Check(t, CodeForStatus(StatusForCode(pfapi.CodeTypeMismatch)), qt.Equals, pfapi.CodeTypeMismatch)
	qt.Check(t, StatusForCode("pinflow-error-io"), qt.Equals, StatusEngineFault)
	qt.Check(t, CodeForStatus(99), qt.Equals, pfapi.CodeEngineFault)

	qt.Assert(t, tr.Close(), qt.IsNil)
	_, err = tr.Invoke(context.Background(), transport.Call{Op: opEcho})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
}

func TestDecodeUnknownKind(t *testing.T) {
	_, err := DecodeArg(Arg{Kind: 77}, false)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
}

func TestOpenMissingLibrary(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "libnothing.so"))
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeIo), qt.IsTrue)
}

func TestOpenEngineLibrary(t *testing.T) {
	if *testutil.FlagEngineLibrary == "" {
		t.Skip("no engine library given with -testutil.engine-library")
	}
	tr, err := Open(*testutil.FlagEngineLibrary, WithSerializedCalls())
	qt.Assert(t, err, qt.IsNil)
	defer tr.Close()
	qt.Check(t, tr.Info().Version.AtLeast(pfapi.V(1, 0, 0)), qt.IsTrue)
	v, err := tr.Invoke(context.Background(), transport.Call{Op: pfapi.OpOperatorList})
	qt.Assert(t, err, qt.IsNil)
	names, err := v.AsStrings()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, len(names) > 0, qt.IsTrue)
}

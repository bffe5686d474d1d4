package enginetest

import (
	"context"
	"fmt"
	"strings"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/transport/native"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

var _ remote.Handler = (*Backend)(nil)

// Welcome answers the remote handshake.
func (b *Backend) Welcome(hello pfapi.Hello) pfapi.Welcome {
	return pfapi.Welcome{
		Engine:  b.name,
		Version: b.version,
		Context: append([]string{}, b.context...),
	}
}

// Handle executes a remote request.
func (b *Backend) Handle(ctx context.Context, req pfapi.Request, progress func(pfapi.Progress)) pfapi.Response {
	op, ok := pfapi.OpByName(req.Op)
	if !ok {
		f := pfapi.FaultFromError(pfapi.ErrorNotFound("engine operation", req.Op))
		return pfapi.Response{ID: req.ID, Fault: &f}
	}
	v, err := b.Dispatch(ctx, op, req.Handle, req.Args, progress)
	if err != nil {
		logging.Ctx(ctx).Debug(LOG_TAG, "%s failed: %s", req.Op, err)
		f := pfapi.FaultFromError(err)
		return pfapi.Response{ID: req.ID, Fault: &f}
	}
	resp := pfapi.Response{ID: req.ID}
	if !v.IsNone() {
		resp.Result = &v
	}
	return resp
}

// Symbols exposes the backend through the in-process ABI.
// Memory handed to the client lives in arena until pf_free.
func (b *Backend) Symbols(arena *native.Arena) native.Symbols {
	return native.Symbols{
		Version: func(major, minor, patch *int32) {
			*major = int32(b.version.Major)
			*minor = int32(b.version.Minor)
			*patch = int32(b.version.Patch)
		},
		Context: func() uintptr {
			v, _ := arena.Put(pfapi.StringValue(strings.Join(b.context, native.ContextSeparator) + "\x00"))
			return v.P
		},
		Invoke: func(code int32, handle uint64, args *native.Arg, nargs int32, out *native.Result) int32 {
			fail := func(err error) int32 {
				arena.PutFault(out, pfapi.FaultFromError(err))
				return out.Status
			}
			op, ok := pfapi.OpByCode(code)
			if !ok {
				return fail(pfapi.ErrorNotFound("engine operation", fmt.Sprintf("code %d", code)))
			}
			values, err := native.DecodeArgs(args, nargs)
			if err != nil {
				return fail(err)
			}
			v, err := b.Dispatch(context.Background(), op, handle, values, nil)
			if err != nil {
				return fail(err)
			}
			if op.Borrow && v.Doubles != nil {
				out.Value = native.Alias(*v.Doubles)
				return native.StatusOK
			}
			arg, err := arena.Put(v)
			if err != nil {
				return fail(err)
			}
			out.Value = arg
			out.Status = native.StatusOK
			return native.StatusOK
		},
		Free: arena.Free,
	}
}

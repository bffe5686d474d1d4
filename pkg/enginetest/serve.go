package enginetest

import (
	"context"
	"net"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

// ListenAndServe runs a fresh Backend on a TCP address until ctx ends.
// ready, if not nil, receives the bound address once connections are accepted.
//
// Errors:
//
//   - pinflow-error-transport-fault -- when addr cannot be bound
func ListenAndServe(ctx context.Context, addr string, opts Options, ready func(net.Addr)) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return pfapi.ErrorTransport("listening on "+addr, err)
	}
	b := New(opts)
	logging.Ctx(ctx).Info(LOG_TAG, "reference engine %q version %s listening on %s", b.Name(), b.Version(), l.Addr())
	if ready != nil {
		ready(l.Addr())
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	err = remote.ServeListener(ctx, l, b)
	if ctx.Err() != nil {
		return nil
	}
	return pfapi.ErrorTransport("serving reference engine", err)
}

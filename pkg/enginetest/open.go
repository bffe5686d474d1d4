package enginetest

import (
	"context"
	"fmt"
	"testing"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/testutil/nettest"
	"github.com/warptools/pinflow/pkg/transport"
	"github.com/warptools/pinflow/pkg/transport/native"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

const (
	KindRemote = "remote"
	KindNative = "native"
)

// Transports lists the transport kinds client tests run over.
var Transports = []string{KindRemote, KindNative}

// Each runs fn once per transport kind as a subtest.
func Each(t *testing.T, fn func(t *testing.T, kind string)) {
	for _, kind := range Transports {
		kind := kind
		t.Run(kind, func(t *testing.T) { fn(t, kind) })
	}
}

// Connect serves b over a transport of the given kind.
// closer tears down the transport and whatever serves it.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when kind is not one of Transports
//   - pinflow-error-transport-fault -- when the remote session cannot be negotiated
func Connect(ctx context.Context, b *Backend, kind string) (_ transport.Transport, closer func(), err error) {
	switch kind {
	case KindRemote:
		ctx, cancel := context.WithCancel(ctx)
		l := nettest.NewPipeListener(ctx)
		go remote.ServeListener(ctx, l, b)
		stop := func() {
			l.Close()
			cancel()
		}
		conn, err := l.Dial(ctx)
		if err != nil {
			stop()
			return nil, nil, pfapi.ErrorTransport("dialing reference engine", err)
		}
		c, err := remote.New(ctx, conn, remote.Options{ClientName: "enginetest"})
		if err != nil {
			stop()
			return nil, nil, err
		}
		return c, func() {
			c.Close()
			stop()
		}, nil
	case KindNative:
		arena := native.NewArena()
		tr, err := native.New(b.Symbols(arena), native.WithEngineName(b.Name()), native.WithSerializedCalls())
		if err != nil {
			return nil, nil, err
		}
		return tr, func() { tr.Close() }, nil
	}
	return nil, nil, pfapi.ErrorInvalidArgument(fmt.Sprintf("unknown transport kind %q", kind))
}

// Dial is Connect for tests: failures are fatal and the transport is closed when the test ends.
func Dial(t testing.TB, b *Backend, kind string) transport.Transport {
	t.Helper()
	tr, closer, err := Connect(context.Background(), b, kind)
	if err != nil {
		t.Fatalf("connecting to reference engine: %s", err)
	}
	t.Cleanup(closer)
	return tr
}

// Open starts a fresh Backend with opts and returns an engine connected to it.
func Open(t testing.TB, kind string, opts Options, engineOpts ...engine.Option) (*engine.Engine, *Backend) {
	t.Helper()
	b := New(opts)
	e, err := engine.Open(context.Background(), Dial(t, b, kind), engineOpts...)
	if err != nil {
		t.Fatalf("opening engine: %s", err)
	}
	return e, b
}

// PutResultFile registers a result file on b at path.
func PutResultFile(t testing.TB, b *Backend, path string, rf pfapi.ResultFile) {
	t.Helper()
	raw, err := EncodeResultFile(rf)
	if err != nil {
		t.Fatalf("encoding result file: %s", err)
	}
	b.PutFile(path, raw)
}

package enginetest_test

import (
	"context"
	"net"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/testutil/turtletb"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

func TestConnectUnknownKind(t *testing.T) {
	_, _, err := enginetest.Connect(context.Background(), enginetest.New(enginetest.Options{}), "pigeon")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
}

func TestFixtureFailuresAreFatal(t *testing.T) {
	tb := turtletb.Run(t, func(tb testing.TB) {
		enginetest.Dial(tb, enginetest.New(enginetest.Options{}), "pigeon")
		tb.Log("unreachable")
	})
	qt.Check(t, tb.Failed(), qt.IsTrue)
	qt.Check(t, tb.Has(turtletb.Errored, `unknown transport kind "pigeon"`), qt.IsTrue)
	qt.Check(t, tb.Has(turtletb.Logged, "unreachable"), qt.IsFalse)

	tb = turtletb.Run(t, func(tb testing.TB) {
		enginetest.Open(tb, enginetest.KindNative, enginetest.Options{Version: pfapi.V(0, 5, 0)})
	})
	qt.Check(t, tb.Failed(), qt.IsTrue)
	qt.Check(t, tb.Has(turtletb.Errored, `^opening engine: `), qt.IsTrue)

	tb = turtletb.Run(t, func(tb testing.TB) {
		e, _ := enginetest.Open(tb, enginetest.KindRemote, enginetest.Options{})
		tb.Log(e.Name())
	})
	qt.Check(t, tb.Failed(), qt.IsFalse)
	qt.Check(t, tb.Has(turtletb.Logged, "^reference$"), qt.IsTrue)
}

func TestEachCoversTransports(t *testing.T) {
	var seen []string
	enginetest.Each(t, func(t *testing.T, kind string) {
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		qt.Check(t, e.InProcess(), qt.Equals, kind == enginetest.KindNative)
		seen = append(seen, kind)
	})
	qt.Check(t, seen, qt.DeepEquals, enginetest.Transports)
}

func TestResultFiles(t *testing.T) {
	e, b := enginetest.Open(t, enginetest.KindNative, enginetest.Options{})
	enginetest.PutResultFile(t, b, "/data/model.rst", pfapi.ResultFile{
		Unit:       "m",
		Location:   pfapi.LocationNodal,
		Components: 1,
		Sets:       []pfapi.ResultSet{{Time: 1, IDs: []int64{1}, Data: []float64{0.5}}},
	})
	raw, err := e.Download(context.Background(), "/data/model.rst")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, len(raw) > 0, qt.IsTrue)
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() {
		done <- enginetest.ListenAndServe(ctx, "127.0.0.1:0", enginetest.Options{Name: "tcp", Context: []string{enginetest.CapabilityPremium}},
			func(a net.Addr) { ready <- a })
	}()
	addr := <-ready

	client, err := remote.Dial(ctx, addr.String(), remote.Options{ClientName: "enginetest", DialTimeout: time.Second})
	qt.Assert(t, err, qt.IsNil)
	e, err := engine.Open(ctx, client)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, e.Name(), qt.Equals, "tcp")
	qt.Check(t, e.Info().HasCapability(enginetest.CapabilityPremium), qt.IsTrue)
	names, err := e.Specs().Names(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, names, qt.Contains, "premium_smooth")
	qt.Assert(t, e.Close(ctx), qt.IsNil)

	cancel()
	qt.Check(t, <-done, qt.IsNil)

	err = enginetest.ListenAndServe(context.Background(), "256.0.0.1:0", enginetest.Options{}, nil)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTransportFault), qt.IsTrue)
}

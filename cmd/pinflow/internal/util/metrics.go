package util

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/logging"
)

// CmdMiddlewareMetrics serves engine call metrics at /metrics on the address
// given by --metrics.addr for as long as the command runs.
func CmdMiddlewareMetrics(f cli.ActionFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		addr := c.String("metrics.addr")
		if addr == "" {
			return f(c)
		}
		l, err := net.Listen("tcp", addr)
		if err != nil {
			return pfapi.ErrorConfig("metrics.addr", addr, err.Error())
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(engine.Metrics, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logging.Ctx(c.Context).Info("metrics", "metrics server: %s", err)
			}
		}()
		logging.Ctx(c.Context).Debug("metrics", "serving metrics at http://%s/metrics", l.Addr())
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		return f(c)
	}
}

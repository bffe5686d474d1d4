package util

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/launcher"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/progress"
	"github.com/warptools/pinflow/pkg/transport/remote"
)

// EngineFlags select the engine a command talks to.
var EngineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "engine",
		Usage: "Address of a running engine (host:port); overrides PINFLOW_SERVER_IP and PINFLOW_SERVER_PORT",
	},
	&cli.BoolFlag{
		Name:  "in-process",
		Usage: "Load the engine library from PINFLOW_ENGINE_PATH instead of connecting over the network",
	},
	&cli.StringFlag{
		Name:  "reference",
		Usage: `Use the built-in reference engine over the given transport ("remote" or "native")`,
	},
	&cli.BoolFlag{
		Name:  "progress",
		Usage: "Show engine progress while evaluating",
	},
}

// OpenEngine opens the engine selected by the command's flags and the environment.
// The returned func closes it and stops anything started for it.
func OpenEngine(c *cli.Context) (*engine.Engine, func(), error) {
	ctx := c.Context
	var opts []engine.Option
	if c.Bool("progress") {
		opts = append(opts, engine.WithProgressSink(progress.New(c.App.ErrWriter)))
	}

	if kind := c.String("reference"); kind != "" {
		tr, closer, err := enginetest.Connect(ctx, enginetest.New(enginetest.Options{}), kind)
		if err != nil {
			return nil, nil, err
		}
		e, err := engine.Open(ctx, tr, opts...)
		if err != nil {
			closer()
			return nil, nil, err
		}
		return e, closeWith(ctx, e, closer), nil
	}

	state, err := config.NewState()
	if err != nil {
		return nil, nil, err
	}
	s, err := config.Load(state)
	if err != nil {
		return nil, nil, err
	}
	if c.Bool("in-process") {
		e, err := launcher.OpenInProcess(ctx, s, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, closeWith(ctx, e, nil), nil
	}
	if addr := c.String("engine"); addr != "" {
		client, err := remote.Dial(ctx, addr, remote.Options{ClientName: "pinflow-cli"})
		if err != nil {
			return nil, nil, err
		}
		e, err := engine.Open(ctx, client, opts...)
		if err != nil {
			client.Close()
			return nil, nil, err
		}
		return e, closeWith(ctx, e, nil), nil
	}
	e, p, err := launcher.Connect(ctx, s, remote.Options{ClientName: "pinflow-cli"}, opts...)
	if err != nil {
		return nil, nil, err
	}
	var stop func()
	if p != nil {
		stop = func() { p.Stop(context.Background()) }
	}
	return e, closeWith(ctx, e, stop), nil
}

func closeWith(ctx context.Context, e *engine.Engine, after func()) func() {
	return func() {
		if err := e.Close(ctx); err != nil {
			logging.Ctx(ctx).Debug("", "closing %s: %s", e, err)
		}
		if after != nil {
			after()
		}
	}
}

// Describe summarizes an engine for humans.
func Describe(e *engine.Engine) string {
	info := e.Info()
	where := "remote"
	if e.InProcess() {
		where = "in-process"
	}
	return fmt.Sprintf("%s %s (%s)", e.Name(), info.Version, where)
}

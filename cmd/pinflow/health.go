package main

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/cmd/pinflow/internal/util"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/healthcheck"
	"github.com/warptools/pinflow/pkg/logging"
)

var healthCmdDef = cli.Command{
	Name:   "health",
	Usage:  "Check the engine installation and server configuration for problems",
	Flags:  util.EngineFlags,
	Action: util.Action(cmdHealth),
}

func cmdHealth(c *cli.Context) error {
	ctx := c.Context
	log := logging.Ctx(ctx)
	state, err := config.NewState()
	if err != nil {
		return err
	}
	settings := &config.Settings{ServerIP: config.DefaultServerIP, ServerPort: config.DefaultServerPort}
	hc := &healthcheck.HealthCheck{
		Runners: []healthcheck.Runner{
			&healthcheck.KernelInfo{},
			&healthcheck.ConfigCheck{State: state, Settings: settings},
			&healthcheck.BinaryCheck{Settings: settings},
			&healthcheck.LibraryCheck{Settings: settings},
			&healthcheck.ServerCheck{Settings: settings},
			&healthcheck.EngineCheck{Open: func(context.Context) (*engine.Engine, func(), error) {
				return util.OpenEngine(c)
			}},
		},
	}
	if err := hc.Run(ctx); err != nil {
		log.Info("", "health check critical error: %s", err)
		return err
	}
	log.Debug("", "runners=%d, results=%d", len(hc.Runners), len(hc.Results))
	return hc.Fprint(c.App.Writer)
}

package main

import (
	"net"
	"os"
	"os/signal"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/cmd/pinflow/internal/util"
	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/config"
	"github.com/warptools/pinflow/pkg/enginetest"
)

var referenceCmdDef = cli.Command{
	Name:   "reference-engine",
	Usage:  "Serve the built-in reference engine over the network",
	Hidden: true,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "address",
			Value: config.DefaultServerIP,
		},
		&cli.IntFlag{
			Name:  "port",
			Value: config.DefaultServerPort,
		},
		&cli.StringFlag{
			Name:  "engine-version",
			Usage: "Protocol version to report",
		},
		&cli.StringSliceFlag{
			Name:  "capability",
			Usage: "Capability flag to grant, such as premium",
		},
	},
	Action: util.Action(cmdReference),
}

func cmdReference(c *cli.Context) error {
	opts := enginetest.Options{Context: c.StringSlice("capability")}
	if v := c.String("engine-version"); v != "" {
		version, err := pfapi.ParseVersion(v)
		if err != nil {
			return err
		}
		opts.Version = version
	}
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	addr := net.JoinHostPort(c.String("address"), strconv.Itoa(c.Int("port")))
	return enginetest.ListenAndServe(ctx, addr, opts, nil)
}

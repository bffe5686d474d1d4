package main

import (
	"fmt"
	"strings"

	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/cmd/pinflow/internal/util"
	"github.com/warptools/pinflow/pfapi"
)

var infoCmdDef = cli.Command{
	Name:   "info",
	Usage:  "Show the engine pinflow talks to",
	Flags:  util.EngineFlags,
	Action: util.Action(cmdInfo),
}

func cmdInfo(c *cli.Context) error {
	e, closeEngine, err := util.OpenEngine(c)
	if err != nil {
		return err
	}
	defer closeEngine()
	info := e.Info()
	if c.Bool("json") {
		c.App.Metadata["result"] = bindnode.Wrap(&info, pfapi.TypeSystem.TypeByName("Welcome")).Representation()
		return nil
	}
	caps := "none"
	if len(info.Context) > 0 {
		caps = strings.Join(info.Context, ", ")
	}
	fmt.Fprintf(c.App.Writer, "engine:       %s\n", util.Describe(e))
	fmt.Fprintf(c.App.Writer, "capabilities: %s\n", caps)
	return nil
}

package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/goccy/go-graphviz"
	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/cmd/pinflow/internal/util"
	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/operator"
	"github.com/warptools/pinflow/pkg/workflow"
)

var workflowCmdDef = cli.Command{
	Name:  "workflow",
	Usage: "Subcommands that operate on workflow files",
	Subcommands: []*cli.Command{
		{
			Name:      "graph",
			Usage:     "Render the operator graph of a workflow",
			ArgsUsage: "<workflow.json>",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:  "format",
					Value: "dot",
					Usage: `Output format: "dot", "svg" or "png"`,
				},
				&cli.PathFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Write the graph to a file instead of stdout",
				},
			}, util.EngineFlags...),
			Action: util.Action(cmdWorkflowGraph),
		},
		{
			Name:      "eval",
			Usage:     "Connect workflow inputs and pull its outputs",
			ArgsUsage: "<workflow.json>",
			Description: heredoc.Doc(`
				Loads a workflow file into the engine, connects each --input, and prints
				each --output (every exposed output when none is named).

				Input values are read as integers, doubles or booleans where they parse as one,
				and as strings otherwise. A value of the form @path uploads the local result
				file at path to the engine and connects it as data sources.
			`),
			Flags: append([]cli.Flag{
				&cli.StringSliceFlag{
					Name:    "input",
					Aliases: []string{"i"},
					Usage:   "name=value to connect to an exposed input",
				},
				&cli.StringSliceFlag{
					Name:    "output",
					Aliases: []string{"o"},
					Usage:   "Exposed output to pull",
				},
			}, util.EngineFlags...),
			Action: util.Action(cmdWorkflowEval),
		},
		{
			Name:      "fingerprint",
			Usage:     "Print the content identifier of a workflow file",
			ArgsUsage: "<workflow.json>",
			Action:    util.Action(cmdWorkflowFingerprint),
		},
	},
}

func readWorkflowFile(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", fmt.Errorf("expected one workflow file")
	}
	path := c.Args().First()
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", pfapi.ErrorIo("reading workflow", path, err)
	}
	return string(raw), nil
}

func loadWorkflow(c *cli.Context) (*workflow.Workflow, func(), error) {
	text, err := readWorkflowFile(c)
	if err != nil {
		return nil, nil, err
	}
	e, closeEngine, err := util.OpenEngine(c)
	if err != nil {
		return nil, nil, err
	}
	w, err := workflow.Deserialize(c.Context, e, text)
	if err != nil {
		closeEngine()
		return nil, nil, err
	}
	w.SetProgress(c.Bool("progress"))
	return w, closeEngine, nil
}

var graphFormats = map[string]graphviz.Format{
	"dot": graphviz.XDOT,
	"svg": graphviz.SVG,
	"png": graphviz.PNG,
}

func cmdWorkflowGraph(c *cli.Context) error {
	format, ok := graphFormats[c.String("format")]
	if !ok {
		return fmt.Errorf("unknown graph format %q", c.String("format"))
	}
	w, closeEngine, err := loadWorkflow(c)
	if err != nil {
		return err
	}
	defer closeEngine()
	topo, err := w.Topology(c.Context)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := workflow.Graph(topo, format, &buf); err != nil {
		return err
	}
	if out := c.Path("output"); out != "" {
		if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
			return pfapi.ErrorIo("writing graph", out, err)
		}
		return nil
	}
	_, err = c.App.Writer.Write(buf.Bytes())
	return err
}

func cmdWorkflowEval(c *cli.Context) error {
	w, closeEngine, err := loadWorkflow(c)
	if err != nil {
		return err
	}
	defer closeEngine()
	ctx := c.Context
	for _, in := range c.StringSlice("input") {
		name, raw, ok := strings.Cut(in, "=")
		if !ok || name == "" {
			return fmt.Errorf("input %q is not of the form name=value", in)
		}
		v, err := inputValue(ctx, w.Engine(), raw)
		if err != nil {
			return err
		}
		if err := w.Connect(ctx, name, v); err != nil {
			return err
		}
	}
	outs := c.StringSlice("output")
	if len(outs) == 0 {
		if outs, err = w.OutputNames(ctx); err != nil {
			return err
		}
	}
	for _, name := range outs {
		r, err := w.GetOutput(ctx, name, "")
		if err != nil {
			return err
		}
		text, err := describe(ctx, r)
		r.Release(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "%s: %s\n", name, text)
	}
	return nil
}

func inputValue(ctx context.Context, e *engine.Engine, raw string) (interface{}, error) {
	if strings.HasPrefix(raw, "@") {
		path := raw[1:]
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, pfapi.ErrorIo("reading result file", path, err)
		}
		remote, err := e.Upload(ctx, filepath.Base(path), data)
		if err != nil {
			return nil, err
		}
		return entity.NewDataSources(ctx, e, remote)
	}
	if i, err := strconv.Atoi(raw); err == nil {
		return i, nil
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b, nil
	}
	return raw, nil
}

func describe(ctx context.Context, r operator.Result) (string, error) {
	f, ok := r.Entity.(*entity.Field)
	if !ok {
		if r.Entity != nil {
			return r.Entity.Handle().String(), nil
		}
		return r.Value.String(), nil
	}
	ids, err := f.IDs(ctx)
	if err != nil {
		return "", err
	}
	data, err := f.Data(ctx)
	if err != nil {
		return "", err
	}
	unit, err := f.Unit(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("field ids=%v data=%v unit=%q", ids, data, unit), nil
}

func cmdWorkflowFingerprint(c *cli.Context) error {
	text, err := readWorkflowFile(c)
	if err != nil {
		return err
	}
	id, err := workflow.TextFingerprint(text)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, id)
	return nil
}

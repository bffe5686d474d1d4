package main

import (
	"fmt"
	"strings"

	"github.com/MakeNowJust/heredoc"
	"github.com/charmbracelet/glamour"
	"github.com/facette/natsort"
	"github.com/ipld/go-ipld-prime/node/bindnode"
	"github.com/urfave/cli/v2"

	"github.com/warptools/pinflow/cmd/pinflow/internal/util"
	"github.com/warptools/pinflow/pfapi"
)

var operatorsCmdDef = cli.Command{
	Name:      "operators",
	Usage:     "List the operators the engine provides",
	ArgsUsage: "[prefix]",
	Flags:     util.EngineFlags,
	Action:    util.Action(cmdOperators),
}

var specCmdDef = cli.Command{
	Name:      "spec",
	Usage:     "Describe the pins and configuration of an operator",
	ArgsUsage: "<operator>",
	Description: heredoc.Doc(`
		Prints the specification the engine reports for an operator:
		its input and output pins with the types they carry, and its configuration options.
		The description is rendered for the terminal unless --markdown is given.
	`),
	Flags: append([]cli.Flag{
		&cli.BoolFlag{
			Name:  "markdown",
			Usage: "Print the description as markdown without rendering it",
		},
	}, util.EngineFlags...),
	Action: util.Action(cmdSpec),
}

func cmdOperators(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("expected at most one prefix")
	}
	e, closeEngine, err := util.OpenEngine(c)
	if err != nil {
		return err
	}
	defer closeEngine()
	names, err := e.Specs().Names(c.Context)
	if err != nil {
		return err
	}
	prefix := c.Args().First()
	shown := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			shown = append(shown, n)
		}
	}
	natsort.Sort(shown)
	for _, n := range shown {
		fmt.Fprintln(c.App.Writer, n)
	}
	return nil
}

func cmdSpec(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one operator name")
	}
	e, closeEngine, err := util.OpenEngine(c)
	if err != nil {
		return err
	}
	defer closeEngine()
	spec, err := e.Specs().Get(c.Context, c.Args().First())
	if err != nil {
		return err
	}
	if c.Bool("json") {
		c.App.Metadata["result"] = bindnode.Wrap(spec, pfapi.TypeSystem.TypeByName("OperatorSpec")).Representation()
		return nil
	}
	md := specMarkdown(spec)
	if c.Bool("markdown") {
		fmt.Fprint(c.App.Writer, md)
		return nil
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return err
	}
	out, err := r.Render(md)
	if err != nil {
		return err
	}
	fmt.Fprint(c.App.Writer, out)
	return nil
}

func specMarkdown(spec *pfapi.OperatorSpec) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", spec.Name)
	if spec.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", spec.Description)
	}
	if spec.License != "" {
		fmt.Fprintf(&b, "Requires the `%s` capability.\n\n", spec.License)
	}
	pins := func(title string, list []pfapi.PinSpec) {
		if len(list) == 0 {
			return
		}
		fmt.Fprintf(&b, "## %s\n\n| pin | name | types | notes |\n|---|---|---|---|\n", title)
		for _, p := range list {
			var notes []string
			if p.Optional {
				notes = append(notes, "optional")
			}
			if p.Ellipsis {
				notes = append(notes, "repeats")
			}
			if p.Doc != "" {
				notes = append(notes, p.Doc)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s |\n", p.Index, p.Name, p.Types, strings.Join(notes, "; "))
		}
		b.WriteString("\n")
	}
	pins("Inputs", spec.SortedInputs())
	pins("Outputs", spec.SortedOutputs())
	if len(spec.Config) > 0 {
		b.WriteString("## Configuration\n\n| option | type | default |\n|---|---|---|\n")
		for _, o := range spec.Config {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", o.Name, o.Type, o.Default)
		}
		b.WriteString("\n")
	}
	return b.String()
}

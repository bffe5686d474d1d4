package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
)

// Graph renders a workflow topology with graphviz in format to out.
// Operators are boxes; exposed pins hang off the "inputs" and "outputs" nodes.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when the topology refers to a missing operator
//   - pinflow-error-internal -- when graphviz fails
func Graph(topo pfapi.Topology, format graphviz.Format, out io.Writer) error {
	g := graphviz.New()
	graph, err := g.Graph()
	if err != nil {
		return pfapi.ErrorInternal("creating graph", err)
	}
	defer func() {
		graph.Close()
		g.Close()
	}()

	graph.SetNodeSeparator(0.75)

	inputs, err := graph.CreateNode("inputs")
	if err != nil {
		return pfapi.ErrorInternal("creating graph", err)
	}
	outputs, err := graph.CreateNode("outputs")
	if err != nil {
		return pfapi.ErrorInternal("creating graph", err)
	}

	nodes := make(map[int]*cgraph.Node, len(topo.Operators))
	for _, op := range topo.Operators {
		n, err := graph.CreateNode(fmt.Sprintf("op%d", op.ID))
		if err != nil {
			return pfapi.ErrorInternal("creating graph", err)
		}
		n.SetLabel(op.Name)
		n.SetShape(cgraph.BoxShape)
		nodes[op.ID] = n
	}
	node := func(id int) (*cgraph.Node, error) {
		n, ok := nodes[id]
		if !ok {
			return nil, pfapi.ErrorInvalidArgument(fmt.Sprintf("topology refers to operator %d of %d", id, len(topo.Operators)))
		}
		return n, nil
	}

	edge := 0
	link := func(from, to *cgraph.Node, label string) error {
		edge++
		e, err := graph.CreateEdge(fmt.Sprintf("e%d", edge), from, to)
		if err != nil {
			return pfapi.ErrorInternal("creating graph", err)
		}
		e.SetLabel(label)
		return nil
	}
	for _, e := range topo.Edges {
		from, err := node(e.From)
		if err != nil {
			return err
		}
		to, err := node(e.To)
		if err != nil {
			return err
		}
		if err := link(from, to, fmt.Sprintf("%d:%d", e.FromPin, e.ToPin)); err != nil {
			return err
		}
	}
	for _, p := range topo.Inputs {
		to, err := node(p.Operator)
		if err != nil {
			return err
		}
		to.SetColor("blue")
		if err := link(inputs, to, fmt.Sprintf("%s:%d", p.Name, p.Pin)); err != nil {
			return err
		}
	}
	for _, p := range topo.Outputs {
		from, err := node(p.Operator)
		if err != nil {
			return err
		}
		from.SetColor("red")
		if err := link(from, outputs, fmt.Sprintf("%d:%s", p.Pin, p.Name)); err != nil {
			return err
		}
	}

	if err := g.Render(graph, format, out); err != nil {
		return pfapi.ErrorInternal("rendering graph", err)
	}
	return nil
}

// ToGraphviz writes the DOT description of w to path.
//
// Errors:
//
//   - pinflow-error-io -- when path cannot be written
//   - see Workflow.Topology
//   - see Graph
func (w *Workflow) ToGraphviz(ctx context.Context, path string) error {
	topo, err := w.Topology(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Graph(topo, graphviz.XDOT, &buf); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return pfapi.ErrorIo("writing workflow graph", path, err)
	}
	logging.Ctx(ctx).Info(LOG_TAG, "wrote graph of %s to %s", w, path)
	return nil
}

// View renders w as an SVG image in dir and returns the file path, for opening in a viewer.
//
// Errors:
//
//   - pinflow-error-io -- when the image cannot be written
//   - see Workflow.Topology
//   - see Graph
func (w *Workflow) View(ctx context.Context, dir string) (string, error) {
	topo, err := w.Topology(ctx)
	if err != nil {
		return "", err
	}
	f, err := os.CreateTemp(dir, "workflow-*.svg")
	if err != nil {
		return "", pfapi.ErrorIo("creating workflow image", dir, err)
	}
	defer f.Close()
	if err := Graph(topo, graphviz.SVG, f); err != nil {
		return "", err
	}
	logging.Ctx(ctx).Info(LOG_TAG, "rendered %s to %s", w, f.Name())
	return f.Name(), nil
}

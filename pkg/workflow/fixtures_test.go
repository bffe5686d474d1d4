package workflow_test

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/goccy/go-graphviz"
	"github.com/warpfork/go-testmark"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/workflow"
)

// inputValue reads a fixture input, keeping integers integral.
func inputValue(t *testing.T, s string) interface{} {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	f, err := strconv.ParseFloat(s, 64)
	qt.Assert(t, err, qt.IsNil)
	return f
}

func TestWorkflowFixtures(t *testing.T) {
	doc, err := testmark.ReadFile("testdata/workflows.md")
	qt.Assert(t, err, qt.IsNil)
	doc.BuildDirIndex()
	for _, dir := range doc.DirEnt.ChildrenList {
		dir := dir
		t.Run(dir.Name, func(t *testing.T) {
			enginetest.Each(t, func(t *testing.T, kind string) {
				ctx := context.Background()
				e, _ := enginetest.Open(t, kind, enginetest.Options{})
				w, err := workflow.Deserialize(ctx, e, string(dir.Children["workflow"].Hunk.Body))
				qt.Assert(t, err, qt.IsNil)

				ins, err := w.InputNames(ctx)
				qt.Assert(t, err, qt.IsNil)
				qt.Check(t, ins, qt.DeepEquals, strings.Fields(string(dir.Children["input-names"].Hunk.Body)))
				outs, err := w.OutputNames(ctx)
				qt.Assert(t, err, qt.IsNil)
				qt.Check(t, outs, qt.DeepEquals, strings.Fields(string(dir.Children["output-names"].Hunk.Body)))

				var want pfapi.Topology
				qt.Assert(t, pfapi.DecodeJSON(dir.Children["topology"].Hunk.Body, &want, "Topology"), qt.IsNil)
				topo, err := w.Topology(ctx)
				qt.Assert(t, err, qt.IsNil)
				qt.Check(t, topo, qt.DeepEquals, want)

				var buf bytes.Buffer
				qt.Assert(t, workflow.Graph(topo, graphviz.XDOT, &buf), qt.IsNil)
				for _, op := range want.Operators {
					qt.Check(t, buf.String(), qt.Contains, op.Name)
				}

				inputs, ok := dir.Children["inputs"]
				if !ok {
					return
				}
				for _, line := range strings.Split(strings.TrimSpace(string(inputs.Hunk.Body)), "\n") {
					f := strings.Fields(line)
					qt.Assert(t, f, qt.HasLen, 2)
					qt.Assert(t, w.Connect(ctx, f[0], inputValue(t, f[1])), qt.IsNil)
				}
				got, err := w.GetDouble(ctx, outs[0])
				qt.Assert(t, err, qt.IsNil)
				qt.Check(t, strconv.FormatFloat(got, 'g', -1, 64), qt.Equals, strings.TrimSpace(string(dir.Children["result"].Hunk.Body)))
			})
		})
	}
}

func TestFingerprint(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindNative, enginetest.Options{})
	w := maxWorkflow(t, e)
	text, err := w.Serialize(ctx)
	qt.Assert(t, err, qt.IsNil)

	a, err := w.Fingerprint(ctx)
	qt.Assert(t, err, qt.IsNil)
	b, err := workflow.TextFingerprint(text)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, a, qt.Equals, b)
	qt.Check(t, a.Version(), qt.Equals, uint64(1))
	qt.Check(t, a.Type(), qt.Equals, uint64(0x55))

	c, err := workflow.TextFingerprint(text + " ")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, c, qt.Not(qt.Equals), a)

	// a round trip through the text form keeps the fingerprint
	back, err := workflow.Deserialize(ctx, e, text)
	qt.Assert(t, err, qt.IsNil)
	d, err := back.Fingerprint(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, d, qt.Equals, a)
}

func TestGraphExport(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	w := maxWorkflow(t, e)
	dir := t.TempDir()

	path := dir + "/max.dot"
	qt.Assert(t, w.ToGraphviz(ctx, path), qt.IsNil)
	var buf bytes.Buffer
	topo, err := w.Topology(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, workflow.Graph(topo, graphviz.XDOT, &buf), qt.IsNil)
	for _, label := range []string{"displacement", "norm_fc", "min_max_fc", "data_sources:4", "1:max", "0:0"} {
		qt.Check(t, buf.String(), qt.Contains, label)
	}

	svg, err := w.View(ctx, dir)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, strings.HasSuffix(svg, ".svg"), qt.IsTrue)
	qt.Check(t, strings.HasPrefix(svg, dir), qt.IsTrue)
}

package progress_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/progress"
	"github.com/warptools/pinflow/pkg/workflow"
)

func init() {
	color.NoColor = true
}

func TestRender(t *testing.T) {
	qt.Check(t, progress.Render("norm", pfapi.Progress{Done: 5, Total: 10}, 30), qt.Equals, "norm [#########.........]  50%")
	qt.Check(t, progress.Render("norm", pfapi.Progress{Done: 12, Total: 10}, 30), qt.Equals, "norm [##################] 100%")
	qt.Check(t, progress.Render("norm", pfapi.Progress{Done: 3}, 30), qt.Equals, "norm 3 steps")
	qt.Check(t, len(progress.Render("a-rather-long-operator-label", pfapi.Progress{Done: 1, Total: 2}, 30)), qt.Equals, 30)
}

func TestBarLines(t *testing.T) {
	var buf bytes.Buffer
	b := progress.New(&buf)
	b.Begin("mm.field_max")
	b.Update("mm.field_max", pfapi.Progress{Done: 2, Total: 3})
	qt.Check(t, b.Pending(), qt.Equals, 1)
	b.End("mm.field_max", nil)
	b.Begin("other")
	b.End("other", errors.New("boom"))
	qt.Check(t, b.Pending(), qt.Equals, 0)
	qt.Check(t, buf.String(), qt.Equals, ""+
		"mm.field_max started\n"+
		"mm.field_max done (3 steps)\n"+
		"other started\n"+
		"other failed: boom\n")
}

func TestWorkflowProgress(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{}, engine.WithProgressSink(progress.New(&buf)))
	enginetest.PutResultFile(t, b, "/r.rst", pfapi.ResultFile{
		Unit:       "m",
		Location:   pfapi.LocationNodal,
		Components: 3,
		Sets:       []pfapi.ResultSet{{Time: 1, IDs: []int64{1}, Data: []float64{3, 4, 0}}},
	})
	text := `{
	"operators": [
		{"name": "displacement", "config": [], "constants": []},
		{"name": "norm_fc", "config": [], "constants": []},
		{"name": "min_max_fc", "config": [], "constants": []}
	],
	"edges": [
		{"from": 0, "fromPin": 0, "to": 1, "toPin": 0},
		{"from": 1, "fromPin": 0, "to": 2, "toPin": 0}
	],
	"inputs": [{"name": "data_sources", "operator": 0, "pin": 4}],
	"outputs": [{"name": "max", "operator": 2, "pin": 1}]
}`
	w, err := workflow.Deserialize(ctx, e, text)
	qt.Assert(t, err, qt.IsNil)
	ds, err := entity.NewDataSources(ctx, e, "/r.rst")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, w.Connect(ctx, "data_sources", ds), qt.IsNil)

	w.SetProgress(true)
	f, err := workflow.Get[*entity.Field](ctx, w, "max")
	qt.Assert(t, err, qt.IsNil)
	data, err := f.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, data, qt.DeepEquals, []float64{5})
	qt.Check(t, buf.String(), qt.Contains, "workflow.max started\n")
	qt.Check(t, buf.String(), qt.Matches, `(?s).*workflow\.max done.*`)
}

package workflow_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/operator"
	"github.com/warptools/pinflow/pkg/workflow"
)

// Two time sets over three nodes; the last set has norms 5, 1 and sqrt(3).
var beamResults = pfapi.ResultFile{
	Unit:       "m",
	Location:   pfapi.LocationNodal,
	Components: 3,
	Sets: []pfapi.ResultSet{
		{Time: 0.1, IDs: []int64{1, 2, 3}, Data: []float64{1, 0, 0, 0, 2, 0, 0, 0, 3}},
		{Time: 0.2, IDs: []int64{1, 2, 3}, Data: []float64{3, 4, 0, 0, 0, 1, 1, 1, 1}},
	},
}

const beamPath = "/results/beam.rst"

func beamSources(t *testing.T, e *engine.Engine, b *enginetest.Backend) *entity.DataSources {
	t.Helper()
	enginetest.PutResultFile(t, b, beamPath, beamResults)
	ds, err := entity.NewDataSources(context.Background(), e, beamPath)
	qt.Assert(t, err, qt.IsNil)
	return ds
}

// maxWorkflow builds displacement -> norm_fc -> min_max_fc with "data_sources" in and "max" out.
func maxWorkflow(t *testing.T, e *engine.Engine) *workflow.Workflow {
	t.Helper()
	ctx := context.Background()
	disp, err := operator.New(ctx, e, "displacement")
	qt.Assert(t, err, qt.IsNil)
	norm, err := operator.NewNormFc(ctx, e, disp)
	qt.Assert(t, err, qt.IsNil)
	mm, err := operator.NewMinMaxFc(ctx, e, norm)
	qt.Assert(t, err, qt.IsNil)

	w, err := workflow.New(ctx, e)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, w.AddOperators(ctx, disp, norm, mm), qt.IsNil)
	in, err := disp.Inputs.Named("data_sources")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, w.SetInput(ctx, "data_sources", in), qt.IsNil)
	qt.Assert(t, w.SetOutput(ctx, "max", mm.FieldMaxPin()), qt.IsNil)
	return w
}

func fieldData(t *testing.T, w *workflow.Workflow, name string) []float64 {
	t.Helper()
	ctx := context.Background()
	f, err := workflow.Get[*entity.Field](ctx, w, name)
	qt.Assert(t, err, qt.IsNil)
	data, err := f.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	return data
}

func TestWorkflowExposure(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, b := enginetest.Open(t, kind, enginetest.Options{})
		ds := beamSources(t, e, b)
		w := maxWorkflow(t, e)

		ins, err := w.InputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ins, qt.DeepEquals, []string{"data_sources"})
		outs, err := w.OutputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, outs, qt.DeepEquals, []string{"max"})

		qt.Assert(t, w.Connect(ctx, "data_sources", ds), qt.IsNil)
		qt.Check(t, fieldData(t, w, "max"), qt.DeepEquals, []float64{5})

		ops, err := w.Operators(ctx)
		qt.Assert(t, err, qt.IsNil)
		names := make([]string, len(ops))
		for i, op := range ops {
			names[i] = op.Name()
		}
		qt.Check(t, names, qt.DeepEquals, []string{"displacement", "norm_fc", "min_max_fc"})
	})
}

func TestInputNamesAreReplaced(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, b := enginetest.Open(t, kind, enginetest.Options{})
		ds := beamSources(t, e, b)
		w := maxWorkflow(t, e)
		ops, err := w.Operators(ctx)
		qt.Assert(t, err, qt.IsNil)
		disp := ops[0]

		qt.Assert(t, w.SetInputName(ctx, "sets", disp, 1), qt.IsNil)
		qt.Assert(t, w.SetInputName(ctx, "sets", disp, 0), qt.IsNil)
		qt.Assert(t, w.SetInputName(ctx, "data_sources", disp, 4), qt.IsNil)
		ins, err := w.InputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ins, qt.DeepEquals, []string{"data_sources", "sets"})

		// "sets" now feeds the time scoping: set 1 has norms 1, 2 and 3
		qt.Assert(t, w.Connect(ctx, "data_sources", ds), qt.IsNil)
		qt.Assert(t, w.Connect(ctx, "sets", []int{1}), qt.IsNil)
		qt.Check(t, fieldData(t, w, "max"), qt.DeepEquals, []float64{3})
	})
}

func TestWorkflowBoundaries(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	w := maxWorkflow(t, e)
	ops, err := w.Operators(ctx)
	qt.Assert(t, err, qt.IsNil)
	exposes := b.Calls(pfapi.OpWorkflowSetInputName.Name) + b.Calls(pfapi.OpWorkflowSetOutputName.Name)

	err = w.SetInputName(ctx, "", ops[0], 4)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = w.SetInputName(ctx, "nine", ops[0], 9)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = w.SetOutputName(ctx, "nine", ops[2], 9)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpWorkflowSetInputName.Name)+b.Calls(pfapi.OpWorkflowSetOutputName.Name), qt.Equals, exposes)

	err = w.Connect(ctx, "nope", 1.0)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
	err = w.Connect(ctx, "data_sources", w)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = w.Connect(ctx, "data_sources", struct{}{})
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	_, err = w.GetOutput(ctx, "nope", "")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)

	// nothing connected yet
	_, err = w.GetOutput(ctx, "max", pfapi.TypeField)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeEngineFault), qt.IsTrue)
}

func TestConnectChecksMemberPin(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, b := enginetest.Open(t, kind, enginetest.Options{})
		w := maxWorkflow(t, e)
		s, err := entity.NewScoping(ctx, e, pfapi.LocationNodal, []int64{1})
		qt.Assert(t, err, qt.IsNil)
		connects := b.Calls(pfapi.OpWorkflowConnect.Name)

		// data_sources is bound to a pin that only takes data sources
		err = w.Connect(ctx, "data_sources", s)
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
		err = w.Connect(ctx, "data_sources", 2.5)
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
		err = w.Connect(ctx, "data_sources", map[string]int{"time": 1})
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
		qt.Check(t, b.Calls(pfapi.OpWorkflowConnect.Name), qt.Equals, connects)

		// bindings of a workflow read back from text come from its topology, once
		text, err := w.Serialize(ctx)
		qt.Assert(t, err, qt.IsNil)
		got, err := workflow.Deserialize(ctx, e, text)
		qt.Assert(t, err, qt.IsNil)
		topologies := b.Calls(pfapi.OpWorkflowTopology.Name)
		for i := 0; i < 2; i++ {
			err = got.Connect(ctx, "data_sources", s)
			qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
		}
		qt.Check(t, b.Calls(pfapi.OpWorkflowTopology.Name), qt.Equals, topologies+1)
		qt.Check(t, b.Calls(pfapi.OpWorkflowConnect.Name), qt.Equals, connects)
	})
}

// Engines that cannot describe a topology check connections themselves.
func TestConnectOnOldEngine(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindNative, enginetest.Options{Version: pfapi.V(3, 0, 0)})
	disp, err := operator.New(ctx, e, "displacement")
	qt.Assert(t, err, qt.IsNil)
	text := func() string {
		w, err := workflow.New(ctx, e)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, w.SetInputName(ctx, "data_sources", disp, 4), qt.IsNil)
		text, err := w.Serialize(ctx)
		qt.Assert(t, err, qt.IsNil)
		return text
	}()
	w, err := workflow.Deserialize(ctx, e, text)
	qt.Assert(t, err, qt.IsNil)
	connects := b.Calls(pfapi.OpWorkflowConnect.Name)
	err = w.Connect(ctx, "data_sources", 2.5)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpWorkflowConnect.Name), qt.Equals, connects+1)
	qt.Check(t, b.Calls(pfapi.OpWorkflowTopology.Name), qt.Equals, 0)
}

// splicePair builds L exposing "a" in and "out", "extra" out over a forward operator,
// and R exposing "in", "rhs" in and "sum" out over an add operator.
func splicePair(t *testing.T, e *engine.Engine) (left, right *workflow.Workflow) {
	t.Helper()
	ctx := context.Background()
	fwd, err := operator.New(ctx, e, "forward")
	qt.Assert(t, err, qt.IsNil)
	left, err = workflow.New(ctx, e)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, left.SetInputName(ctx, "a", fwd, 0), qt.IsNil)
	qt.Assert(t, left.SetOutputName(ctx, "out", fwd, 0), qt.IsNil)
	qt.Assert(t, left.SetOutputName(ctx, "extra", fwd, 0), qt.IsNil)

	add, err := operator.New(ctx, e, "add")
	qt.Assert(t, err, qt.IsNil)
	right, err = workflow.New(ctx, e)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, right.AddOperator(ctx, add), qt.IsNil)
	qt.Assert(t, right.SetInputName(ctx, "in", add, 0), qt.IsNil)
	qt.Assert(t, right.SetInputName(ctx, "rhs", add, 1), qt.IsNil)
	qt.Assert(t, right.SetOutputName(ctx, "sum", add, 0), qt.IsNil)
	return left, right
}

func TestConnectWith(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		left, right := splicePair(t, e)

		qt.Assert(t, right.ConnectWith(ctx, left, map[string]string{"out": "in"}, false), qt.IsNil)
		ins, err := right.InputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ins, qt.DeepEquals, []string{"rhs", "a"})
		outs, err := right.OutputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, outs, qt.DeepEquals, []string{"sum", "extra"})
		ops, err := right.Operators(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ops, qt.HasLen, 2)

		qt.Assert(t, right.Connect(ctx, "a", 2.0), qt.IsNil)
		qt.Assert(t, right.Connect(ctx, "rhs", 3.0), qt.IsNil)
		sum, err := right.GetDouble(ctx, "sum")
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sum, qt.Equals, 5.0)
	})
}

func TestConnectWithEqualNames(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindNative, enginetest.Options{})
	left, right := splicePair(t, e)
	ops, err := right.Operators(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, right.SetInputName(ctx, "out", ops[0], 0), qt.IsNil)

	qt.Assert(t, right.ConnectWith(ctx, left, nil, false), qt.IsNil)
	ins, err := right.InputNames(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ins, qt.DeepEquals, []string{"in", "rhs", "a"})
}

func TestConnectWithValidation(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	left, right := splicePair(t, e)

	err := right.ConnectWith(ctx, left, map[string]string{"nope": "in"}, false)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = right.ConnectWith(ctx, left, map[string]string{"out": "nope"}, false)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = right.ConnectWith(ctx, right, map[string]string{"sum": "in"}, true)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpWorkflowConnectWith.Name), qt.Equals, 0)

	ins, err := right.InputNames(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ins, qt.DeepEquals, []string{"in", "rhs"})

	qt.Assert(t, right.ConnectWith(ctx, left, map[string]string{"nope": "in", "out": "in", "extra": "gone"}, true), qt.IsNil)
	ins, err = right.InputNames(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ins, qt.DeepEquals, []string{"rhs", "a"})
	outs, err := right.OutputNames(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, outs, qt.DeepEquals, []string{"sum", "extra"})
}

func TestCreateOnOtherServer(t *testing.T) {
	ctx := context.Background()
	e1, b1 := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{Name: "E1"})
	e2, b2 := enginetest.Open(t, enginetest.KindNative, enginetest.Options{Name: "E2"})
	ds1 := beamSources(t, e1, b1)
	ds2 := beamSources(t, e2, b2)

	w := maxWorkflow(t, e1)
	qt.Assert(t, w.Connect(ctx, "data_sources", ds1), qt.IsNil)
	c, err := w.CreateOnOtherServer(ctx, e2)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, c.Engine(), qt.Equals, e2)

	for _, names := range []func(*workflow.Workflow) ([]string, error){
		func(w *workflow.Workflow) ([]string, error) { return w.InputNames(ctx) },
		func(w *workflow.Workflow) ([]string, error) { return w.OutputNames(ctx) },
	} {
		want, err := names(w)
		qt.Assert(t, err, qt.IsNil)
		got, err := names(c)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, got, qt.DeepEquals, want)
	}

	f1, err := w.Fingerprint(ctx)
	qt.Assert(t, err, qt.IsNil)
	f2, err := c.Fingerprint(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, f2, qt.Equals, f1)

	// the data sources of E1 stay behind
	_, err = c.GetOutput(ctx, "max", pfapi.TypeField)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeEngineFault), qt.IsTrue)
	err = c.Connect(ctx, "data_sources", ds1)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Assert(t, c.Connect(ctx, "data_sources", ds2), qt.IsNil)
	qt.Check(t, fieldData(t, c, "max"), qt.DeepEquals, fieldData(t, w, "max"))
}

func TestRecord(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, b := enginetest.Open(t, kind, enginetest.Options{})
		ds := beamSources(t, e, b)
		w := maxWorkflow(t, e)
		id, err := w.Record(ctx, "beam max", true)
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, w.Release(ctx), qt.IsNil)

		got, err := workflow.GetRecorded(ctx, e, id)
		qt.Assert(t, err, qt.IsNil)
		outs, err := got.OutputNames(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, outs, qt.DeepEquals, []string{"max"})
		qt.Assert(t, got.Connect(ctx, "data_sources", ds), qt.IsNil)
		qt.Check(t, fieldData(t, got, "max"), qt.DeepEquals, []float64{5})

		_, err = workflow.GetRecorded(ctx, e, id+100)
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
	})
}

func TestVersionGates(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{Version: pfapi.V(1, 8, 0)})
	w := maxWorkflow(t, e)
	_, err := w.Record(ctx, "old", false)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeVersionUnsupported), qt.IsTrue)
	_, err = workflow.GetRecorded(ctx, e, 1)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeVersionUnsupported), qt.IsTrue)
	_, err = w.Topology(ctx)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeVersionUnsupported), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpWorkflowRecord.Name)+b.Calls(pfapi.OpWorkflowTopology.Name), qt.Equals, 0)

	// names still travel, joined, on engines before 4.0
	ins, err := w.InputNames(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, ins, qt.DeepEquals, []string{"data_sources"})
}

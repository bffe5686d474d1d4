package operator_test

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/operator"
)

func TestPrimitiveChain(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		add, err := operator.New(ctx, e, "add")
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, add.Connect(ctx, 0, 2.0), qt.IsNil)
		qt.Assert(t, add.Connect(ctx, 1, 3.0), qt.IsNil)

		sum, err := add.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sum, qt.Equals, 5.0)

		// pulling again without reconnecting gives the same value
		again, err := add.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, again, qt.Equals, sum)
	})
}

func TestFieldArithmetic(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		f := newField(t, e, []int64{1, 2}, []float64{0, 1, 2, 3, 4, 5})

		add, err := operator.Add(ctx, e, f, f)
		qt.Assert(t, err, qt.IsNil)
		sum, err := operator.Get[*entity.Field](ctx, add, 0)
		qt.Assert(t, err, qt.IsNil)

		fd, err := sum.Read(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, fd.IDs, qt.DeepEquals, []int64{1, 2})
		qt.Check(t, fd.Data, qt.DeepEquals, []float64{0, 2, 4, 6, 8, 10})
		qt.Check(t, fd.Unit, qt.Equals, "m")
		qt.Check(t, fd.Location, qt.Equals, pfapi.LocationNodal)

		// equal values, distinct handles
		again, err := operator.Get[*entity.Field](ctx, add, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, again.Handle().ID(), qt.Not(qt.Equals), sum.Handle().ID())
		data, err := again.Data(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, data, qt.DeepEquals, fd.Data)
	})
}

func TestArithmeticSugar(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindNative, enginetest.Options{})
	f := newField(t, e, []int64{1, 2}, []float64{1, 2, 3, 4, 5, 6})
	fwd, err := operator.Unary(ctx, e, "forward", f)
	qt.Assert(t, err, qt.IsNil)

	scaled, err := fwd.Scale(ctx, 2.0)
	qt.Assert(t, err, qt.IsNil)
	diff, err := scaled.Minus(ctx, f)
	qt.Assert(t, err, qt.IsNil)
	sq, err := diff.Pow2(ctx)
	qt.Assert(t, err, qt.IsNil)
	out, err := operator.Get[*entity.Field](ctx, sq, 0)
	qt.Assert(t, err, qt.IsNil)
	data, err := out.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, data, qt.DeepEquals, []float64{1, 4, 9, 16, 25, 36})

	dot, err := fwd.Mul(ctx, f)
	qt.Assert(t, err, qt.IsNil)
	out, err = operator.Get[*entity.Field](ctx, dot, 0)
	qt.Assert(t, err, qt.IsNil)
	data, err = out.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, data, qt.DeepEquals, []float64{14, 77})

	half, err := fwd.Div(ctx, 2.0)
	qt.Assert(t, err, qt.IsNil)
	out, err = operator.Get[*entity.Field](ctx, half, 0)
	qt.Assert(t, err, qt.IsNil)
	data, err = out.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, data, qt.DeepEquals, []float64{0.5, 1, 1.5, 2, 2.5, 3})
}

func TestChainedOperators(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _, ds := openBeam(t, kind)

		disp, err := operator.NewDisplacement(ctx, e, ds)
		qt.Assert(t, err, qt.IsNil)
		norm, err := operator.NewNormFc(ctx, e, disp)
		qt.Assert(t, err, qt.IsNil)
		mm, err := operator.NewMinMaxFc(ctx, e, norm)
		qt.Assert(t, err, qt.IsNil)

		// the engine keeps upstream operators alive
		qt.Assert(t, disp.Release(ctx), qt.IsNil)
		qt.Assert(t, norm.Release(ctx), qt.IsNil)

		max, err := mm.FieldMax(ctx)
		qt.Assert(t, err, qt.IsNil)
		n, err := max.Size(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, n, qt.Equals, 1)
		data, err := max.Data(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, near(data[0], 5), qt.IsTrue)
		ids, err := max.IDs(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, ids, qt.DeepEquals, []int64{1})
	})
}

func TestDisplacementTimeScoping(t *testing.T) {
	ctx := context.Background()
	e, _, ds := openBeam(t, enginetest.KindRemote)
	disp, err := operator.NewDisplacement(ctx, e, ds)
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, disp.SetTimeScoping(ctx, []int{1, 2}), qt.IsNil)
	nodes, err := entity.NewScoping(ctx, e, pfapi.LocationNodal, []int64{2})
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, disp.SetMeshScoping(ctx, nodes), qt.IsNil)

	fc, err := disp.FieldsContainer(ctx)
	qt.Assert(t, err, qt.IsNil)
	n, err := fc.Size(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, n, qt.Equals, 2)
	space := pfapi.NewLabelMap()
	space.Set("time", 1)
	first, err := fc.GetByLabel(ctx, space)
	qt.Assert(t, err, qt.IsNil)
	data, err := first.Data(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, data, qt.DeepEquals, []float64{0, 2, 0})

	support, err := first.Support(ctx)
	qt.Assert(t, err, qt.IsNil)
	tfs, ok := support.(*entity.TimeFreqSupport)
	qt.Assert(t, ok, qt.IsTrue)
	times, err := tfs.TimeFrequencies(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, times, qt.DeepEquals, []float64{0.1, 0.2})

	mp, err := operator.NewMeshProvider(ctx, e, ds)
	qt.Assert(t, err, qt.IsNil)
	mesh, err := mp.Mesh(ctx)
	qt.Assert(t, err, qt.IsNil)
	count, err := mesh.NodesCount(ctx)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, count, qt.Equals, 3)
}

func TestPins(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	for _, name := range []string{"add", "displacement", "min_max_fc", "sum_all"} {
		op, err := operator.New(ctx, e, name)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, op.Inputs.Len(), qt.Equals, len(op.Spec().Inputs))
		qt.Check(t, op.Outputs.Len(), qt.Equals, len(op.Spec().Outputs))
		for _, p := range op.Spec().Inputs {
			in, err := op.Inputs.Named(p.Name)
			qt.Assert(t, err, qt.IsNil)
			qt.Check(t, in.Index(), qt.Equals, p.Index)
		}
	}

	mm, err := operator.New(ctx, e, "min_max_fc")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, mm.Outputs.Names(), qt.DeepEquals, []string{"field_min", "field_max"})
	_, err = mm.Inputs.Named("nope")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
}

func TestEllipsisPin(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		sum, err := operator.New(ctx, e, "sum_all")
		qt.Assert(t, err, qt.IsNil)
		for i, v := range []float64{1, 2, 3.5} {
			in, err := sum.Inputs.Pin(i)
			qt.Assert(t, err, qt.IsNil)
			qt.Check(t, in.Name(), qt.Equals, "values")
			qt.Assert(t, in.Connect(ctx, v), qt.IsNil)
		}
		total, err := sum.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, total, qt.Equals, 6.5)
	})
}

func TestBoundaries(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})

	_, err := operator.New(ctx, e, "")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
	_, err = operator.New(ctx, e, "no_such_operator")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)

	add, err := operator.New(ctx, e, "add")
	qt.Assert(t, err, qt.IsNil)
	connects := b.Calls(pfapi.OpOperatorConnect.Name)
	outputs := b.Calls(pfapi.OpOperatorGetOutput.Name)

	qt.Check(t, pfapi.IsCode(add.Connect(ctx, 0, add), pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, pfapi.IsCode(add.Connect(ctx, 5, 1.0), pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, pfapi.IsCode(add.Connect(ctx, 0, "text"), pfapi.CodeInvalidArgument), qt.IsTrue)
	qt.Check(t, pfapi.IsCode(add.Connect(ctx, 0, struct{}{}), pfapi.CodeInvalidArgument), qt.IsTrue)
	_, err = add.GetOutput(ctx, 3, pfapi.TypeDouble)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	_, err = add.GetOutput(ctx, 0, pfapi.TypeScoping)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeTypeMismatch), qt.IsTrue)

	// all of the above fail before reaching the engine
	qt.Check(t, b.Calls(pfapi.OpOperatorConnect.Name), qt.Equals, connects)
	qt.Check(t, b.Calls(pfapi.OpOperatorGetOutput.Name), qt.Equals, outputs)
}

// An output without declared types connects anywhere; the engine checks what it produces.
func TestUndeclaredOutputType(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		one, err := operator.New(ctx, e, "constant")
		qt.Assert(t, err, qt.IsNil)
		add, err := operator.New(ctx, e, "add")
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, add.Connect(ctx, 0, one), qt.IsNil)
		qt.Assert(t, add.Connect(ctx, 1, 2.0), qt.IsNil)
		sum, err := add.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sum, qt.Equals, 3.0)

		v, err := one.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, v, qt.Equals, 1.0)
		_, err = one.GetOutput(ctx, 0, pfapi.TypeScoping)
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeTypeMismatch), qt.IsTrue)
	})
}

func TestEvaluationFailureKeepsOperatorUsable(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		add, err := operator.New(ctx, e, "add")
		qt.Assert(t, err, qt.IsNil)
		qt.Assert(t, add.Connect(ctx, 0, 1.0), qt.IsNil)

		_, err = add.GetDouble(ctx, 0)
		qt.Assert(t, pfapi.IsCode(err, pfapi.CodeEngineFault), qt.IsTrue)

		qt.Assert(t, add.Connect(ctx, 1, 4), qt.IsNil)
		sum, err := add.GetDouble(ctx, 0)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sum, qt.Equals, 5.0)

		qt.Assert(t, add.Disconnect(ctx, 1), qt.IsNil)
		_, err = add.GetDouble(ctx, 0)
		qt.Check(t, pfapi.IsCode(err, pfapi.CodeEngineFault), qt.IsTrue)
	})
}

func TestReleaseOnce(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindNative, enginetest.Options{})
	op, err := operator.New(ctx, e, "norm")
	qt.Assert(t, err, qt.IsNil)
	before := b.Calls(pfapi.OpHandleRelease.Name)

	qt.Assert(t, op.Release(ctx), qt.IsNil)
	qt.Check(t, b.Calls(pfapi.OpHandleRelease.Name), qt.Equals, before+1)

	err = op.Release(ctx)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
	qt.Check(t, op.Valid(), qt.IsFalse)
	_, err = op.GetOutput(ctx, 0, "")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeNotFound), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpHandleRelease.Name), qt.Equals, before+1)
}

func TestLicensedOperator(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	f := newField(t, e, []int64{1}, []float64{1, 2, 3})
	smooth, err := operator.Unary(ctx, e, "premium_smooth", f)
	qt.Assert(t, err, qt.IsNil)
	_, err = smooth.GetOutput(ctx, 0, pfapi.TypeField)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeLicenseUnavailable), qt.IsTrue)

	e2, _ := enginetest.Open(t, enginetest.KindNative, enginetest.Options{Context: []string{enginetest.CapabilityPremium}})
	g := newField(t, e2, []int64{1}, []float64{1, 2, 3})
	smooth, err = operator.Unary(ctx, e2, "premium_smooth", g)
	qt.Assert(t, err, qt.IsNil)
	_, err = smooth.GetOutput(ctx, 0, pfapi.TypeField)
	qt.Check(t, err, qt.IsNil)
}

func TestListsAndLabels(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	fwd, err := operator.New(ctx, e, "forward")
	qt.Assert(t, err, qt.IsNil)

	qt.Assert(t, fwd.Connect(ctx, 0, []string{"a", "b"}), qt.IsNil)
	res, err := fwd.GetOutput(ctx, 0, "")
	qt.Assert(t, err, qt.IsNil)
	strs, err := res.Value.AsStrings()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, strs, qt.DeepEquals, []string{"a", "b"})

	qt.Assert(t, fwd.Connect(ctx, 0, map[string]int{"time": 2}), qt.IsNil)
	res, err = fwd.GetOutput(ctx, 0, pfapi.TypeLabelSpace)
	qt.Assert(t, err, qt.IsNil)
	ls, ok := res.Entity.(*entity.LabelSpace)
	qt.Assert(t, ok, qt.IsTrue)
	lm, err := ls.Get(ctx)
	qt.Assert(t, err, qt.IsNil)
	v, _ := lm.Get("time")
	qt.Check(t, v, qt.Equals, int64(2))

	qt.Assert(t, fwd.Connect(ctx, 0, operator.Path("/tmp/model.rst")), qt.IsNil)
	s, err := fwd.GetString(ctx, 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, s, qt.Equals, "/tmp/model.rst")
}

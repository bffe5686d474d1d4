package operator_test

import (
	"context"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/enginetest"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/operator"
)

func TestConfig(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		e, _ := enginetest.Open(t, kind, enginetest.Options{})
		a := newField(t, e, []int64{1, 2}, []float64{1, 1, 1, 2, 2, 2})
		b := newField(t, e, []int64{2, 1}, []float64{10, 10, 10, 20, 20, 20})
		add, err := operator.Add(ctx, e, a, b)
		qt.Assert(t, err, qt.IsNil)

		c := add.Config()
		qt.Check(t, c.Options(), qt.HasLen, 2)
		def, ok := c.Get("work_by_index")
		qt.Assert(t, ok, qt.IsTrue)
		byIndex, err := def.AsBool()
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, byIndex, qt.IsFalse)

		sum, err := operator.Get[*entity.Field](ctx, add, 0)
		qt.Assert(t, err, qt.IsNil)
		data, err := sum.Data(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, data, qt.DeepEquals, []float64{21, 21, 21, 12, 12, 12})

		qt.Assert(t, c.Set("work_by_index", true), qt.IsNil)
		qt.Check(t, c.Changed(), qt.DeepEquals, []string{"work_by_index"})
		qt.Assert(t, add.Apply(ctx, c), qt.IsNil)
		qt.Check(t, c.Changed(), qt.HasLen, 0)

		v, err := add.ConfigValue(ctx, "work_by_index")
		qt.Assert(t, err, qt.IsNil)
		byIndex, err = v.AsBool()
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, byIndex, qt.IsTrue)

		sum, err = operator.Get[*entity.Field](ctx, add, 0)
		qt.Assert(t, err, qt.IsNil)
		data, err = sum.Data(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, data, qt.DeepEquals, []float64{11, 11, 11, 22, 22, 22})
	})
}

func TestConfigRejections(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{})
	add, err := operator.New(ctx, e, "add")
	qt.Assert(t, err, qt.IsNil)
	sets := b.Calls(pfapi.OpOperatorConfigSet.Name)

	err = add.SetConfig(ctx, "no_such_option", true)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	err = add.SetConfig(ctx, "run_in_parallel", "yes please")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)
	_, err = add.ConfigValue(ctx, "no_such_option")
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)

	norm, err := operator.New(ctx, e, "norm")
	qt.Assert(t, err, qt.IsNil)
	err = norm.Apply(ctx, add.Config())
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeInvalidArgument), qt.IsTrue)

	qt.Check(t, b.Calls(pfapi.OpOperatorConfigSet.Name), qt.Equals, sets)
}

func TestConfigNeedsVersion(t *testing.T) {
	ctx := context.Background()
	e, b := enginetest.Open(t, enginetest.KindRemote, enginetest.Options{Version: pfapi.V(1, 5, 0)})
	add, err := operator.New(ctx, e, "add")
	qt.Assert(t, err, qt.IsNil)
	err = add.SetConfig(ctx, "run_in_parallel", false)
	qt.Check(t, pfapi.IsCode(err, pfapi.CodeVersionUnsupported), qt.IsTrue)
	qt.Check(t, b.Calls(pfapi.OpOperatorConfigSet.Name), qt.Equals, 0)
}

func TestBoolsOnOldEngines(t *testing.T) {
	ctx := context.Background()
	e, _ := enginetest.Open(t, enginetest.KindNative, enginetest.Options{Version: pfapi.V(2, 4, 0)})
	fwd, err := operator.New(ctx, e, "forward")
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, fwd.Connect(ctx, 0, true), qt.IsNil)
	v, err := fwd.GetBool(ctx, 0)
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, v, qt.IsTrue)

	add, err := operator.New(ctx, e, "add")
	qt.Assert(t, err, qt.IsNil)
	parallel, err := add.ConfigValue(ctx, "run_in_parallel")
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, parallel.Tag(), qt.Equals, pfapi.TypeInt32)
	on, err := parallel.AsBool()
	qt.Assert(t, err, qt.IsNil)
	qt.Check(t, on, qt.IsTrue)
}

type recordingSink struct {
	mu      sync.Mutex
	begun   []string
	updates []pfapi.Progress
	ended   []error
}

func (s *recordingSink) Begin(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begun = append(s.begun, label)
}

func (s *recordingSink) Update(label string, p pfapi.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, p)
}

func (s *recordingSink) End(label string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = append(s.ended, err)
}

func TestProgress(t *testing.T) {
	enginetest.Each(t, func(t *testing.T, kind string) {
		ctx := context.Background()
		sink := &recordingSink{}
		e, b := enginetest.Open(t, kind, enginetest.Options{}, engine.WithProgressSink(sink))
		enginetest.PutResultFile(t, b, beamPath, beamResults)
		ds, err := entity.NewDataSources(ctx, e, beamPath)
		qt.Assert(t, err, qt.IsNil)
		disp, err := operator.NewDisplacement(ctx, e, ds)
		qt.Assert(t, err, qt.IsNil)
		norm, err := operator.NewNormFc(ctx, e, disp)
		qt.Assert(t, err, qt.IsNil)

		// without the flag nothing reaches the sink
		_, err = norm.FieldsContainer(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sink.begun, qt.HasLen, 0)

		norm.SetProgress(true)
		_, err = norm.FieldsContainer(ctx)
		qt.Assert(t, err, qt.IsNil)
		qt.Check(t, sink.begun, qt.DeepEquals, []string{"norm_fc.field"})
		qt.Check(t, sink.ended, qt.DeepEquals, []error{nil})
		if kind == enginetest.KindRemote {
			// in-process calls report no progress events
			qt.Check(t, len(sink.updates) > 0, qt.IsTrue)
		}
		qt.Check(t, e.Session().ActiveReaders(), qt.Equals, 0)
		qt.Check(t, e.Session().Outstanding(), qt.HasLen, 0)
	})
}

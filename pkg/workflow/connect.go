package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/operator"
)

// Connect sets the input exposed as name to v, any of the kinds accepted by operator.SourceOf.
// Lists travel as vectors; label maps travel as a label space.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is empty, v is w itself or of an unsupported kind
//   - pinflow-error-invalid-argument -- when the member pin bound to name refuses v
//   - pinflow-error-not-found -- when w exposes no input called name
//   - see engine.Engine.Invoke
func (w *Workflow) Connect(ctx context.Context, name string, v interface{}) error {
	if err := checkName(name); err != nil {
		return err
	}
	src, err := operator.SourceOf(v)
	if err != nil {
		return pfapi.Annotate(err, "workflow input "+name)
	}
	p, known, err := w.inputSpec(ctx, name)
	if err != nil {
		return err
	}
	if known {
		if err := src.Check("workflow input "+name, p); err != nil {
			return err
		}
	}
	key := engine.V(pfapi.StringValue(name))
	switch {
	case src.Output != nil:
		_, err = w.invoke(ctx, pfapi.OpWorkflowConnectOutput, key, engine.H(src.Output.Handle()), engine.V(pfapi.PinValue(src.Pin)))
	case src.Entity != nil:
		if h := src.Entity.Handle(); h == w.h || h.Engine() == w.Engine() && h.ID() == w.h.ID() {
			return pfapi.ErrorInvalidArgument("a workflow cannot be connected to itself")
		}
		_, err = w.invoke(ctx, pfapi.OpWorkflowConnect, key, engine.H(src.Entity.Handle()))
	case src.Labels != nil:
		var ls *entity.LabelSpace
		if ls, err = entity.NewLabelSpace(ctx, w.Engine(), *src.Labels); err != nil {
			return err
		}
		defer ls.Release(ctx)
		_, err = w.invoke(ctx, pfapi.OpWorkflowConnect, key, engine.H(ls.Handle()))
	default:
		if src.Value.IsNone() || src.Value.Handle != nil {
			return pfapi.ErrorInvalidArgument("cannot connect an empty value or a bare handle to workflow input " + name)
		}
		_, err = w.invoke(ctx, pfapi.OpWorkflowConnect, key, engine.V(src.Value))
	}
	return err
}

// ConnectWith splices left into w: each output of left named in mapping feeds the
// input of w it maps to. Every member of left joins w; the inputs left exposes and
// its outputs not consumed by the mapping stay exposed on w.
// An empty mapping pairs outputs and inputs of equal names.
//
// Unless permissive, every name of mapping must be exposed, or nothing changes.
// With permissive set, pairs naming unknown pins are dropped.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when left is w, or when not permissive and a name is unknown
//   - pinflow-error-invalid-argument -- when a splice would close a cycle
//   - see engine.Engine.Invoke
func (w *Workflow) ConnectWith(ctx context.Context, left *Workflow, mapping map[string]string, permissive bool) error {
	if left.h == w.h || left.Engine() == w.Engine() && left.h.ID() == w.h.ID() {
		return pfapi.ErrorInvalidArgument("a workflow cannot be connected with itself")
	}
	args := []engine.Arg{engine.H(left.h)}
	if len(mapping) > 0 {
		if !permissive {
			if err := checkMapping(ctx, w, left, mapping); err != nil {
				return err
			}
		}
		outs := make([]string, 0, len(mapping))
		for out := range mapping {
			outs = append(outs, out)
		}
		sort.Strings(outs)
		pairs := make([]string, 0, 2*len(outs))
		for _, out := range outs {
			pairs = append(pairs, out, mapping[out])
		}
		args = append(args, engine.V(pfapi.StringsValue(pairs)), engine.V(pfapi.BoolValue(permissive)))
	}
	_, err := w.invoke(ctx, pfapi.OpWorkflowConnectWith, args...)
	// the splice rebinds exposed inputs
	w.forgetInputs()
	return err
}

func checkMapping(ctx context.Context, w, left *Workflow, mapping map[string]string) error {
	outs, err := left.OutputNames(ctx)
	if err != nil {
		return err
	}
	ins, err := w.InputNames(ctx)
	if err != nil {
		return err
	}
	known := func(names []string, name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
	for out, in := range mapping {
		if !known(outs, out) {
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("left workflow has no output %q (has %q)", out, outs))
		}
		if !known(ins, in) {
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("workflow has no input %q (has %q)", in, ins))
		}
	}
	return nil
}

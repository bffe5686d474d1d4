// Package workflow groups operators into an engine-side graph with named boundary pins.
//
// A Workflow exposes selected member inputs and outputs under names. Connecting a
// workflow input is connecting the member pin it is bound to; pulling a workflow
// output evaluates the member pin and everything upstream of it.
// Workflows can be spliced together, recorded engine-side, and cloned to another
// engine through their text form.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/operator"
)

const LOG_TAG = "workflow"

// Member is anything that stands for an operator: an *operator.Operator or a typed stub embedding one.
type Member interface {
	Op() *operator.Operator
}

// Workflow is one workflow living on an engine.
type Workflow struct {
	h        *engine.Handle
	progress bool

	mu     sync.Mutex
	inputs map[string]pfapi.PinSpec // member pin specs of exposed inputs, filled as they are learned
}

var _ entity.Entity = (*Workflow)(nil)

// New creates an empty workflow on e.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
func New(ctx context.Context, e *engine.Engine) (*Workflow, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpWorkflowNew, nil, pfapi.TypeWorkflow)
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "created %s", h)
	return &Workflow{h: h}, nil
}

// Adopt wraps a workflow handle obtained elsewhere.
func Adopt(h *engine.Handle) *Workflow { return &Workflow{h: h} }

func (w *Workflow) Handle() *engine.Handle { return w.h }

func (w *Workflow) Engine() *engine.Engine { return w.h.Engine() }

func (w *Workflow) Valid() bool { return w.h.Valid() }

// Release gives the workflow back to the engine. Members stay alive as long as the engine references them.
//
// Errors:
//
//   - see engine.Handle.Release
func (w *Workflow) Release(ctx context.Context) error { return w.h.Release(ctx) }

// SetProgress makes output pulls report engine progress to the session's sink.
func (w *Workflow) SetProgress(enabled bool) { w.progress = enabled }

func (w *Workflow) String() string { return fmt.Sprintf("workflow (%s)", w.h) }

func (w *Workflow) invoke(ctx context.Context, op pfapi.Op, args ...engine.Arg) (pfapi.Value, error) {
	return w.h.Engine().Invoke(ctx, op, w.h, args...)
}

// AddOperator makes op a member of w.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (w *Workflow) AddOperator(ctx context.Context, op Member) error {
	_, err := w.invoke(ctx, pfapi.OpWorkflowAddOperator, engine.H(op.Op().Handle()))
	return err
}

// AddOperators adds each of ops in order, stopping at the first failure.
//
// Errors:
//
//   - see Workflow.AddOperator
func (w *Workflow) AddOperators(ctx context.Context, ops ...Member) error {
	for _, op := range ops {
		if err := w.AddOperator(ctx, op); err != nil {
			return err
		}
	}
	return nil
}

func checkName(name string) error {
	if name == "" {
		return pfapi.ErrorInvalidArgument("exposed pin names must not be empty")
	}
	return nil
}

// SetInputName exposes input pin of op as name, replacing any previous binding of name.
// op becomes a member if it was not one already.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is empty or op has no such input pin
//   - see engine.Engine.Invoke
func (w *Workflow) SetInputName(ctx context.Context, name string, op Member, pin int) error {
	if err := checkName(name); err != nil {
		return err
	}
	o := op.Op()
	p, ok := o.Spec().Input(pin)
	if !ok {
		return pfapi.ErrorPinOutOfRange(o.Name(), "input", pin)
	}
	_, err := w.invoke(ctx, pfapi.OpWorkflowSetInputName,
		engine.V(pfapi.StringValue(name)), engine.H(o.Handle()), engine.V(pfapi.PinValue(pin)))
	if err != nil {
		return err
	}
	w.learnInput(name, p)
	return nil
}

// SetInput is SetInputName for a pin proxy.
//
// Errors:
//
//   - see Workflow.SetInputName
func (w *Workflow) SetInput(ctx context.Context, name string, in *operator.Input) error {
	return w.SetInputName(ctx, name, in.Operator(), in.Index())
}

// SetOutputName exposes output pin of op as name, replacing any previous binding of name.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is empty or op has no such output pin
//   - see engine.Engine.Invoke
func (w *Workflow) SetOutputName(ctx context.Context, name string, op Member, pin int) error {
	if err := checkName(name); err != nil {
		return err
	}
	o := op.Op()
	if _, ok := o.Spec().Output(pin); !ok {
		return pfapi.ErrorPinOutOfRange(o.Name(), "output", pin)
	}
	_, err := w.invoke(ctx, pfapi.OpWorkflowSetOutputName,
		engine.V(pfapi.StringValue(name)), engine.H(o.Handle()), engine.V(pfapi.PinValue(pin)))
	return err
}

// SetOutput is SetOutputName for a pin proxy.
//
// Errors:
//
//   - see Workflow.SetOutputName
func (w *Workflow) SetOutput(ctx context.Context, name string, out *operator.Output) error {
	return w.SetOutputName(ctx, name, out.Operator(), out.Index())
}

// InputNames lists the exposed inputs in exposure order.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (w *Workflow) InputNames(ctx context.Context) ([]string, error) {
	return w.names(ctx, pfapi.OpWorkflowInputNames)
}

// OutputNames lists the exposed outputs in exposure order.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (w *Workflow) OutputNames(ctx context.Context) ([]string, error) {
	return w.names(ctx, pfapi.OpWorkflowOutputNames)
}

func (w *Workflow) names(ctx context.Context, op pfapi.Op) ([]string, error) {
	v, err := w.invoke(ctx, op)
	if err != nil {
		return nil, err
	}
	return v.AsStrings()
}

// Operators returns wrappers for every member, in the order they joined.
// The wrappers own new handles to the members.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
//   - see operator.Adopt
func (w *Workflow) Operators(ctx context.Context) ([]*operator.Operator, error) {
	v, err := w.invoke(ctx, pfapi.OpWorkflowOperators)
	if err != nil {
		return nil, err
	}
	n, err := v.AsInt()
	if err != nil {
		return nil, err
	}
	ops := make([]*operator.Operator, 0, n)
	fail := func(err error) ([]*operator.Operator, error) {
		for _, op := range ops {
			op.Release(ctx)
		}
		return nil, err
	}
	for i := 0; i < int(n); i++ {
		h, err := w.Engine().InvokeHandle(ctx, pfapi.OpWorkflowOperators, w.h, pfapi.TypeOperator, engine.V(pfapi.IntValue(i)))
		if err != nil {
			return fail(err)
		}
		op, err := operator.Adopt(ctx, h)
		if err != nil {
			h.Release(ctx)
			return fail(err)
		}
		ops = append(ops, op)
	}
	return ops, nil
}

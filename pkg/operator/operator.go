// Package operator is the client-side runtime of engine operators.
//
// An Operator binds an operator name to an engine handle and to the operator's
// specification. Pins are reached by index or by name through Inputs and Outputs.
// Connecting a pin records the connection engine-side and never evaluates anything;
// values are pulled on demand with GetOutput or one of the typed getters.
//
// Pin indices and value kinds are checked against the specification before any
// call reaches the engine.
package operator

import (
	"context"
	"fmt"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/logging"
)

const LOG_TAG = "operator"

// Operator is one operator instance living on an engine.
type Operator struct {
	h        *engine.Handle
	name     string
	spec     *pfapi.OperatorSpec
	progress bool

	Inputs  *Inputs
	Outputs *Outputs
}

var _ entity.Entity = (*Operator)(nil)

// New creates an instance of the operator called name on e.
//
// Errors:
//
//   - pinflow-error-not-found -- when name is empty or unknown to the engine
//   - see engine.Engine.InvokeHandle
func New(ctx context.Context, e *engine.Engine, name string) (*Operator, error) {
	if name == "" {
		return nil, pfapi.ErrorNotFound("operator", name)
	}
	spec, err := e.Specs().Get(ctx, name)
	if err != nil {
		return nil, err
	}
	h, err := e.InvokeHandle(ctx, pfapi.OpOperatorNew, nil, pfapi.TypeOperator, engine.V(pfapi.StringValue(name)))
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "created %s as %s", name, h)
	return bind(h, name, spec), nil
}

// Adopt wraps an operator handle obtained elsewhere, such as from a workflow.
//
// Errors:
//
//   - pinflow-error-type-mismatch -- when h is not an operator
//   - see engine.Engine.Invoke
func Adopt(ctx context.Context, h *engine.Handle) (*Operator, error) {
	if h.Kind() != pfapi.TypeOperator {
		return nil, pfapi.ErrorTypeMismatch("adopting operator", pfapi.TypeOperator, h.Kind())
	}
	v, err := h.Engine().Invoke(ctx, pfapi.OpOperatorName, h)
	if err != nil {
		return nil, err
	}
	name, err := v.AsString()
	if err != nil {
		return nil, err
	}
	spec, err := h.Engine().Specs().Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return bind(h, name, spec), nil
}

func bind(h *engine.Handle, name string, spec *pfapi.OperatorSpec) *Operator {
	o := &Operator{h: h, name: name, spec: spec}
	o.Inputs = &Inputs{op: o, pins: spec.SortedInputs()}
	o.Outputs = &Outputs{op: o, pins: spec.SortedOutputs()}
	return o
}

func (o *Operator) Handle() *engine.Handle { return o.h }

// Op returns o itself; typed stubs embedding an Operator inherit it.
func (o *Operator) Op() *Operator { return o }

func (o *Operator) Engine() *engine.Engine { return o.h.Engine() }

// Name is the operator name; it never changes.
func (o *Operator) Name() string { return o.name }

func (o *Operator) Spec() *pfapi.OperatorSpec { return o.spec }

func (o *Operator) Valid() bool { return o.h.Valid() }

// Release gives the operator back to the engine.
// Downstream operators that were connected to it keep working.
//
// Errors:
//
//   - see engine.Handle.Release
func (o *Operator) Release(ctx context.Context) error { return o.h.Release(ctx) }

// SetProgress makes later pulls report engine progress to the engine's session sink.
func (o *Operator) SetProgress(enabled bool) { o.progress = enabled }

func (o *Operator) String() string { return fmt.Sprintf("operator %s (%s)", o.name, o.h) }

func (o *Operator) invoke(ctx context.Context, op pfapi.Op, args ...engine.Arg) (pfapi.Value, error) {
	return o.h.Engine().Invoke(ctx, op, o.h, args...)
}

// Run evaluates the operator and everything upstream of it, discarding the outputs.
//
// Errors:
//
//   - pinflow-error-engine-fault -- when a computation fails or a required input is missing
//   - pinflow-error-license-unavailable -- when the engine lacks the operator's license
//   - see engine.Engine.Invoke
func (o *Operator) Run(ctx context.Context) error {
	return o.Engine().Session().Evaluate(ctx, o.name, o.progress, func(ctx context.Context) error {
		_, err := o.invoke(ctx, pfapi.OpOperatorRun)
		return err
	})
}

package operator

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
)

// Inputs gives access to the input pins of an operator.
type Inputs struct {
	op   *Operator
	pins []pfapi.PinSpec
}

// Len is the number of declared input pins. An ellipsis pin counts once.
func (in *Inputs) Len() int { return len(in.pins) }

// Names lists the input pin names in pin order.
func (in *Inputs) Names() []string { return pinNames(in.pins) }

// Pin returns the input at index, honoring ellipsis pins.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when no pin covers index
func (in *Inputs) Pin(index int) (*Input, error) {
	p, ok := in.op.spec.Input(index)
	if !ok {
		return nil, pfapi.ErrorPinOutOfRange(in.op.name, "input", index)
	}
	return &Input{op: in.op, index: index, spec: p}, nil
}

// Named returns the input pin called name.
//
// Errors:
//
//   - pinflow-error-not-found -- when the operator has no such input
func (in *Inputs) Named(name string) (*Input, error) {
	p, ok := in.op.spec.InputNamed(name)
	if !ok {
		return nil, pfapi.ErrorNotFound("input of "+in.op.name, name)
	}
	return &Input{op: in.op, index: p.Index, spec: p}, nil
}

// Outputs gives access to the output pins of an operator.
type Outputs struct {
	op   *Operator
	pins []pfapi.PinSpec
}

func (out *Outputs) Len() int { return len(out.pins) }

func (out *Outputs) Names() []string { return pinNames(out.pins) }

// Pin returns the output at index.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when index is not declared
func (out *Outputs) Pin(index int) (*Output, error) {
	p, ok := out.op.spec.Output(index)
	if !ok {
		return nil, pfapi.ErrorPinOutOfRange(out.op.name, "output", index)
	}
	return &Output{op: out.op, spec: p}, nil
}

// Named returns the output pin called name.
//
// Errors:
//
//   - pinflow-error-not-found -- when the operator has no such output
func (out *Outputs) Named(name string) (*Output, error) {
	p, ok := out.op.spec.OutputNamed(name)
	if !ok {
		return nil, pfapi.ErrorNotFound("output of "+out.op.name, name)
	}
	return &Output{op: out.op, spec: p}, nil
}

func pinNames(pins []pfapi.PinSpec) []string {
	names := make([]string, len(pins))
	for i, p := range pins {
		names[i] = p.Name
	}
	return names
}

// Input is one input pin of an operator.
type Input struct {
	op    *Operator
	index int
	spec  pfapi.PinSpec
}

func (in *Input) Operator() *Operator  { return in.op }
func (in *Input) Index() int           { return in.index }
func (in *Input) Spec() pfapi.PinSpec  { return in.spec }
func (in *Input) Name() string         { return in.spec.Name }
func (in *Input) Types() pfapi.TypeSet { return in.spec.Types }

// Connect is Operator.Connect on this pin.
func (in *Input) Connect(ctx context.Context, v interface{}) error {
	return in.op.Connect(ctx, in.index, v)
}

// Output is one output pin of an operator. Passing an Output to Connect
// wires that pin, rather than output 0, to the target input.
type Output struct {
	op   *Operator
	spec pfapi.PinSpec
}

func (out *Output) Operator() *Operator  { return out.op }
func (out *Output) Index() int           { return out.spec.Index }
func (out *Output) Spec() pfapi.PinSpec  { return out.spec }
func (out *Output) Name() string         { return out.spec.Name }
func (out *Output) Types() pfapi.TypeSet { return out.spec.Types }

// Get is Operator.GetOutput on this pin.
func (out *Output) Get(ctx context.Context, tag pfapi.TypeTag) (Result, error) {
	return out.op.GetOutput(ctx, out.spec.Index, tag)
}

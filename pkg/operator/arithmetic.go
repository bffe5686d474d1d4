package operator

import (
	"context"

	"github.com/warptools/pinflow/pkg/engine"
)

// Binary builds the operator called name with lhs on pin 0 and rhs on pin 1.
// Both sides take anything Connect takes.
//
// Errors:
//
//   - see New
//   - see Operator.Connect
func Binary(ctx context.Context, e *engine.Engine, name string, lhs, rhs interface{}) (*Operator, error) {
	o, err := New(ctx, e, name)
	if err != nil {
		return nil, err
	}
	if err := o.Connect(ctx, 0, lhs); err != nil {
		o.Release(ctx)
		return nil, err
	}
	if err := o.Connect(ctx, 1, rhs); err != nil {
		o.Release(ctx)
		return nil, err
	}
	return o, nil
}

// Unary builds the operator called name with in on pin 0.
//
// Errors:
//
//   - see New
//   - see Operator.Connect
func Unary(ctx context.Context, e *engine.Engine, name string, in interface{}) (*Operator, error) {
	o, err := New(ctx, e, name)
	if err != nil {
		return nil, err
	}
	if err := o.Connect(ctx, 0, in); err != nil {
		o.Release(ctx)
		return nil, err
	}
	return o, nil
}

// Add builds a + b.
func Add(ctx context.Context, e *engine.Engine, a, b interface{}) (*Operator, error) {
	return Binary(ctx, e, "add", a, b)
}

// Minus builds a - b.
func Minus(ctx context.Context, e *engine.Engine, a, b interface{}) (*Operator, error) {
	return Binary(ctx, e, "minus", a, b)
}

// Mul builds a * b as a generalized inner product: entity-wise dot product of fields,
// or a scaling when either side is a scalar.
func Mul(ctx context.Context, e *engine.Engine, a, b interface{}) (*Operator, error) {
	return Binary(ctx, e, "generalized_inner_product", a, b)
}

// Div builds a / b, component-wise.
func Div(ctx context.Context, e *engine.Engine, a, b interface{}) (*Operator, error) {
	return Binary(ctx, e, "div", a, b)
}

// Scale builds field * factor.
func Scale(ctx context.Context, e *engine.Engine, field, factor interface{}) (*Operator, error) {
	return Binary(ctx, e, "scale", field, factor)
}

// Pow2 builds a squared, value by value.
func Pow2(ctx context.Context, e *engine.Engine, a interface{}) (*Operator, error) {
	return Unary(ctx, e, "sqr", a)
}

// Add builds o + rhs on o's engine. The result still has to be evaluated.
func (o *Operator) Add(ctx context.Context, rhs interface{}) (*Operator, error) {
	return Add(ctx, o.Engine(), o, rhs)
}

func (o *Operator) Minus(ctx context.Context, rhs interface{}) (*Operator, error) {
	return Minus(ctx, o.Engine(), o, rhs)
}

func (o *Operator) Mul(ctx context.Context, rhs interface{}) (*Operator, error) {
	return Mul(ctx, o.Engine(), o, rhs)
}

func (o *Operator) Div(ctx context.Context, rhs interface{}) (*Operator, error) {
	return Div(ctx, o.Engine(), o, rhs)
}

func (o *Operator) Scale(ctx context.Context, factor interface{}) (*Operator, error) {
	return Scale(ctx, o.Engine(), o, factor)
}

func (o *Operator) Pow2(ctx context.Context) (*Operator, error) {
	return Pow2(ctx, o.Engine(), o)
}

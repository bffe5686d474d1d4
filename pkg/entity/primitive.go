package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// IntCollection, DoubleCollection and StringCollection carry lists of primitives to pins.
// They are immutable once built.
type (
	IntCollection    struct{ base }
	DoubleCollection struct{ base }
	StringCollection struct{ base }
)

func newPrimitive(ctx context.Context, e *engine.Engine, kind pfapi.TypeTag, values pfapi.Value) (*engine.Handle, error) {
	return e.InvokeHandle(ctx, pfapi.OpCollectionNewPrimitive, nil, kind, engine.V(pfapi.TagValue(kind)), engine.V(values))
}

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewIntCollection(ctx context.Context, e *engine.Engine, values []int64) (*IntCollection, error) {
	h, err := newPrimitive(ctx, e, pfapi.TypeIntCollection, pfapi.IntsValue(values))
	if err != nil {
		return nil, err
	}
	return &IntCollection{base{h}}, nil
}

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewDoubleCollection(ctx context.Context, e *engine.Engine, values []float64) (*DoubleCollection, error) {
	h, err := newPrimitive(ctx, e, pfapi.TypeDoubleCollection, pfapi.DoublesValue(values))
	if err != nil {
		return nil, err
	}
	return &DoubleCollection{base{h}}, nil
}

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewStringCollection(ctx context.Context, e *engine.Engine, values []string) (*StringCollection, error) {
	h, err := newPrimitive(ctx, e, pfapi.TypeStringCollection, pfapi.StringsValue(values))
	if err != nil {
		return nil, err
	}
	return &StringCollection{base{h}}, nil
}

// Errors:
//
//   - see engine.Engine.Invoke
func (c *IntCollection) Values(ctx context.Context) ([]int64, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionGetPrimitive)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

// Errors:
//
//   - see engine.Engine.Invoke
func (c *DoubleCollection) Values(ctx context.Context) ([]float64, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionGetPrimitive)
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

// Errors:
//
//   - see engine.Engine.Invoke
func (c *StringCollection) Values(ctx context.Context) ([]string, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionGetPrimitive)
	if err != nil {
		return nil, err
	}
	return v.AsStrings()
}

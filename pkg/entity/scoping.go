package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Scoping is an ordered, location-tagged list of entity ids.
// Order is significant: it is the order of the data of fields using the scoping.
type Scoping struct{ base }

// NewScoping creates a scoping holding ids.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewScoping(ctx context.Context, e *engine.Engine, location pfapi.Location, ids []int64) (*Scoping, error) {
	args := []engine.Arg{engine.V(pfapi.LocationValue(location))}
	if len(ids) > 0 {
		args = append(args, engine.V(pfapi.IntsValue(ids)))
	}
	h, err := e.InvokeHandle(ctx, pfapi.OpScopingNew, nil, pfapi.TypeScoping, args...)
	if err != nil {
		return nil, err
	}
	return &Scoping{base{h}}, nil
}

// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) IDs(ctx context.Context) ([]int64, error) {
	v, err := s.invoke(ctx, pfapi.OpScopingGetIDs)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) SetIDs(ctx context.Context, ids []int64) error {
	_, err := s.invoke(ctx, pfapi.OpScopingSetIDs, engine.V(pfapi.IntsValue(ids)))
	return err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) Location(ctx context.Context) (pfapi.Location, error) {
	v, err := s.invoke(ctx, pfapi.OpScopingGetLocation)
	if err != nil {
		return "", err
	}
	loc, err := v.AsString()
	return pfapi.Location(loc), err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) SetLocation(ctx context.Context, loc pfapi.Location) error {
	_, err := s.invoke(ctx, pfapi.OpScopingSetLocation, engine.V(pfapi.LocationValue(loc)))
	return err
}

// Append adds id at the end.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) Append(ctx context.Context, id int64) error {
	_, err := s.invoke(ctx, pfapi.OpScopingAppend, engine.V(pfapi.Int64Value(id)))
	return err
}

// Index returns the position of id, or -1 when the scoping does not hold it.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) Index(ctx context.Context, id int64) (int, error) {
	v, err := s.invoke(ctx, pfapi.OpScopingIndexOf, engine.V(pfapi.Int64Value(id)))
	if err != nil {
		return -1, err
	}
	n, err := v.AsInt()
	return int(n), err
}

// ID returns the id at index.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when index is out of range
//   - see engine.Engine.Invoke
func (s *Scoping) ID(ctx context.Context, index int) (int64, error) {
	v, err := s.invoke(ctx, pfapi.OpScopingIDAt, engine.V(pfapi.IntValue(index)))
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

// Errors:
//
//   - see engine.Engine.Invoke
func (s *Scoping) Size(ctx context.Context) (int, error) {
	v, err := s.invoke(ctx, pfapi.OpScopingSize)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	return int(n), err
}

// DeepCopy rebuilds the scoping on target.
func (s *Scoping) DeepCopy(ctx context.Context, target *engine.Engine) (*Scoping, error) {
	return DeepCopy(ctx, s, target)
}

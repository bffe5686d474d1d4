package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Properties is the shared base of entities whose attributes are named properties:
// supports, result and mesh info, data trees and generic containers.
type Properties struct{ base }

// Errors:
//
//   - pinflow-error-invalid-argument -- when kind is not a property entity
//   - see engine.Engine.InvokeHandle
func newProperties(ctx context.Context, e *engine.Engine, kind pfapi.TypeTag) (Properties, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpEntityNew, nil, kind, engine.V(pfapi.TagValue(kind)))
	if err != nil {
		return Properties{}, err
	}
	return Properties{base{h}}, nil
}

// Names lists the property names in insertion order.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (p Properties) Names(ctx context.Context) ([]string, error) {
	v, err := p.invoke(ctx, pfapi.OpEntityGetProperty, engine.V(pfapi.StringValue("")))
	if err != nil {
		return nil, err
	}
	return v.AsStrings()
}

// Get returns a property. Entity-valued properties come back as a handle value; see GetEntity.
//
// Errors:
//
//   - pinflow-error-not-found -- when the property is not set
//   - see engine.Engine.Invoke
func (p Properties) Get(ctx context.Context, name string) (pfapi.Value, error) {
	return p.invoke(ctx, pfapi.OpEntityGetProperty, engine.V(pfapi.StringValue(name)))
}

// GetEntity returns an entity-valued property, wrapped.
//
// Errors:
//
//   - pinflow-error-not-found -- when the property is not set
//   - pinflow-error-type-mismatch -- when the property holds a primitive
//   - see engine.Engine.Invoke
func (p Properties) GetEntity(ctx context.Context, name string) (Entity, error) {
	h, err := p.invokeHandle(ctx, pfapi.OpEntityGetProperty, pfapi.TypeAny, engine.V(pfapi.StringValue(name)))
	if err != nil {
		return nil, err
	}
	return Wrap(h), nil
}

// Set stores a primitive property.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name or v is empty
//   - see engine.Engine.Invoke
func (p Properties) Set(ctx context.Context, name string, v pfapi.Value) error {
	if v.IsNone() {
		return pfapi.ErrorInvalidArgument("property " + name + " needs a value")
	}
	_, err := p.invoke(ctx, pfapi.OpEntitySetProperty, engine.V(pfapi.StringValue(name)), engine.V(v))
	return err
}

// SetEntity stores an entity-valued property. The entity keeps its own reference.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when w is the entity itself
//   - see engine.Engine.Invoke
func (p Properties) SetEntity(ctx context.Context, name string, w Entity) error {
	_, err := p.invoke(ctx, pfapi.OpEntitySetProperty, engine.V(pfapi.StringValue(name)), engine.H(w.Handle()))
	return err
}

func (p Properties) ints(ctx context.Context, name string) ([]int64, error) {
	v, err := p.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

func (p Properties) int(ctx context.Context, name string) (int, error) {
	v, err := p.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	return int(n), err
}

func (p Properties) str(ctx context.Context, name string) (string, error) {
	v, err := p.Get(ctx, name)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// Mesh is a meshed region. The client sees its node ids and summary properties.
type Mesh struct{ Properties }

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewMesh(ctx context.Context, e *engine.Engine) (*Mesh, error) {
	p, err := newProperties(ctx, e, pfapi.TypeMesh)
	if err != nil {
		return nil, err
	}
	return &Mesh{p}, nil
}

// Errors:
//
//   - see Properties.Get
func (m *Mesh) NodeIDs(ctx context.Context) ([]int64, error) { return m.ints(ctx, "node_ids") }

// Errors:
//
//   - see Properties.Get
func (m *Mesh) NodesCount(ctx context.Context) (int, error) { return m.int(ctx, "nodes_count") }

// Errors:
//
//   - see Properties.Get
func (m *Mesh) Unit(ctx context.Context) (string, error) { return m.str(ctx, "unit") }

// TimeFreqSupport describes the time steps or frequencies of a result.
type TimeFreqSupport struct{ Properties }

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewTimeFreqSupport(ctx context.Context, e *engine.Engine) (*TimeFreqSupport, error) {
	p, err := newProperties(ctx, e, pfapi.TypeTimeFreqSupport)
	if err != nil {
		return nil, err
	}
	return &TimeFreqSupport{p}, nil
}

// Errors:
//
//   - see Properties.Get
func (t *TimeFreqSupport) TimeFrequencies(ctx context.Context) ([]float64, error) {
	v, err := t.Get(ctx, "time_frequencies")
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

// Errors:
//
//   - see Properties.Get
func (t *TimeFreqSupport) NSets(ctx context.Context) (int, error) { return t.int(ctx, "n_sets") }

// CyclicSupport describes the sectors of a cyclic symmetry model.
type CyclicSupport struct{ Properties }

// ResultInfo describes the content of a result file.
type ResultInfo struct{ Properties }

// MeshInfo describes a mesh without loading it.
type MeshInfo struct{ Properties }

// DataTree is a tree of named attributes.
type DataTree struct{ Properties }

// GenericDataContainer holds arbitrary named properties, entities included.
type GenericDataContainer struct{ Properties }

// Any is a type-erased entity as produced by the forward operator.
type Any struct{ Properties }

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewGenericDataContainer(ctx context.Context, e *engine.Engine) (*GenericDataContainer, error) {
	p, err := newProperties(ctx, e, pfapi.TypeGenericDataContainer)
	if err != nil {
		return nil, err
	}
	return &GenericDataContainer{p}, nil
}

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewDataTree(ctx context.Context, e *engine.Engine) (*DataTree, error) {
	p, err := newProperties(ctx, e, pfapi.TypeDataTree)
	if err != nil {
		return nil, err
	}
	return &DataTree{p}, nil
}

// Errors:
//
//   - see Properties.Get
func (d *DataTree) Attribute(ctx context.Context, name string) (pfapi.Value, error) {
	return d.Get(ctx, name)
}

// Errors:
//
//   - see Properties.Set
func (d *DataTree) SetAttribute(ctx context.Context, name string, v pfapi.Value) error {
	return d.Set(ctx, name, v)
}

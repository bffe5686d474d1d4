package operator

import (
	"context"

	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
)

// Typed stubs for frequently used operators.
// Each embeds the generic Operator, so every pin stays reachable by index and name.

// Displacement reads nodal displacements from result files.
type Displacement struct{ *Operator }

// NewDisplacement creates a displacement reader, connecting ds when it is not nil.
func NewDisplacement(ctx context.Context, e *engine.Engine, ds *entity.DataSources) (*Displacement, error) {
	o, err := New(ctx, e, "displacement")
	if err != nil {
		return nil, err
	}
	if ds != nil {
		if err := o.Connect(ctx, 4, ds); err != nil {
			o.Release(ctx)
			return nil, err
		}
	}
	return &Displacement{o}, nil
}

// SetTimeScoping selects time sets to read, by set number.
func (d *Displacement) SetTimeScoping(ctx context.Context, sets []int) error {
	return d.Connect(ctx, 0, sets)
}

// SetMeshScoping restricts the nodes read.
func (d *Displacement) SetMeshScoping(ctx context.Context, s *entity.Scoping) error {
	return d.Connect(ctx, 1, s)
}

// FieldsContainer evaluates one field per selected time set, labelled "time".
func (d *Displacement) FieldsContainer(ctx context.Context) (*entity.FieldsContainer, error) {
	return Get[*entity.FieldsContainer](ctx, d.Operator, 0)
}

// MeshProvider reads the mesh of a result file.
type MeshProvider struct{ *Operator }

func NewMeshProvider(ctx context.Context, e *engine.Engine, ds *entity.DataSources) (*MeshProvider, error) {
	o, err := New(ctx, e, "mesh_provider")
	if err != nil {
		return nil, err
	}
	if err := o.Connect(ctx, 4, ds); err != nil {
		o.Release(ctx)
		return nil, err
	}
	return &MeshProvider{o}, nil
}

func (m *MeshProvider) Mesh(ctx context.Context) (*entity.Mesh, error) {
	return Get[*entity.Mesh](ctx, m.Operator, 0)
}

// Norm computes the euclidean norm of each entity of a field.
type Norm struct{ *Operator }

func NewNorm(ctx context.Context, e *engine.Engine, in interface{}) (*Norm, error) {
	o, err := Unary(ctx, e, "norm", in)
	if err != nil {
		return nil, err
	}
	return &Norm{o}, nil
}

func (n *Norm) Field(ctx context.Context) (*entity.Field, error) {
	return Get[*entity.Field](ctx, n.Operator, 0)
}

// NormFc is Norm over every field of a fields container.
type NormFc struct{ *Operator }

func NewNormFc(ctx context.Context, e *engine.Engine, in interface{}) (*NormFc, error) {
	o, err := Unary(ctx, e, "norm_fc", in)
	if err != nil {
		return nil, err
	}
	return &NormFc{o}, nil
}

func (n *NormFc) FieldsContainer(ctx context.Context) (*entity.FieldsContainer, error) {
	return Get[*entity.FieldsContainer](ctx, n.Operator, 0)
}

// MinMaxFc finds the extreme values over a fields container.
type MinMaxFc struct{ *Operator }

func NewMinMaxFc(ctx context.Context, e *engine.Engine, in interface{}) (*MinMaxFc, error) {
	o, err := Unary(ctx, e, "min_max_fc", in)
	if err != nil {
		return nil, err
	}
	return &MinMaxFc{o}, nil
}

// FieldMin is a field with one entity holding the minimum.
func (m *MinMaxFc) FieldMin(ctx context.Context) (*entity.Field, error) {
	return Get[*entity.Field](ctx, m.Operator, 0)
}

// FieldMax is a field with one entity holding the maximum.
func (m *MinMaxFc) FieldMax(ctx context.Context) (*entity.Field, error) {
	return Get[*entity.Field](ctx, m.Operator, 1)
}

func (m *MinMaxFc) FieldMaxPin() *Output {
	out, _ := m.Outputs.Pin(1)
	return out
}

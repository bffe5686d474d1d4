package entity

import (
	"context"
	"fmt"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Field is a scientific array: per-entity rows of components over a scoping.
//
// With an empty data pointer every entity holds ElementarySize values and
// len(data) == len(scoping) * ElementarySize. Otherwise the data pointer gives the
// start offset of each entity, for rows of varying width.
type Field struct{ base }

// FieldData is a complete client-side description of a field, used to build and inspect fields in bulk.
type FieldData struct {
	Dimensionality pfapi.Dimensionality
	Location       pfapi.Location
	Unit           string
	Name           string
	IDs            []int64
	Data           []float64
	DataPointer    []int64
}

// NewField creates an empty field.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewField(ctx context.Context, e *engine.Engine, dim pfapi.Dimensionality, location pfapi.Location) (*Field, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpFieldNew, nil, pfapi.TypeField,
		engine.V(pfapi.IntsValue(dim.Ints())), engine.V(pfapi.LocationValue(location)))
	if err != nil {
		return nil, err
	}
	return &Field{base{h}}, nil
}

// FieldFrom builds a field from fd in one go.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when data and ids disagree in length
//   - see engine.Engine.Invoke
func FieldFrom(ctx context.Context, e *engine.Engine, fd FieldData) (*Field, error) {
	if err := fd.Check(); err != nil {
		return nil, err
	}
	f, err := NewField(ctx, e, fd.Dimensionality, fd.Location)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*Field, error) {
		f.Release(ctx)
		return nil, err
	}
	s, err := f.Scoping(ctx)
	if err != nil {
		return fail(err)
	}
	defer s.Release(ctx)
	if err := s.SetIDs(ctx, fd.IDs); err != nil {
		return fail(err)
	}
	if err := f.SetData(ctx, fd.Data); err != nil {
		return fail(err)
	}
	if len(fd.DataPointer) > 0 {
		if err := f.SetDataPointer(ctx, fd.DataPointer); err != nil {
			return fail(err)
		}
	}
	if fd.Unit != "" {
		if err := f.SetUnit(ctx, fd.Unit); err != nil {
			return fail(err)
		}
	}
	if fd.Name != "" {
		if err := f.SetName(ctx, fd.Name); err != nil {
			return fail(err)
		}
	}
	return f, nil
}

// Check verifies the length invariants between ids, data and data pointer.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
func (fd FieldData) Check() error {
	if len(fd.DataPointer) == 0 {
		size := fd.Dimensionality.ElementarySize()
		if len(fd.Data) != len(fd.IDs)*size {
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("field of %d entities with %d components needs %d values, got %d",
				len(fd.IDs), size, len(fd.IDs)*size, len(fd.Data)))
		}
		return nil
	}
	if len(fd.DataPointer) != len(fd.IDs) {
		return pfapi.ErrorInvalidArgument(fmt.Sprintf("data pointer has %d offsets for %d entities", len(fd.DataPointer), len(fd.IDs)))
	}
	for i := 1; i < len(fd.DataPointer); i++ {
		if fd.DataPointer[i] <= fd.DataPointer[i-1] {
			return pfapi.ErrorInvalidArgument("data pointer must be strictly increasing")
		}
	}
	if n := len(fd.DataPointer); n > 0 && int(fd.DataPointer[n-1]) >= len(fd.Data) {
		return pfapi.ErrorInvalidArgument("data pointer points past the data")
	}
	return nil
}

// Read fetches the whole field.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Read(ctx context.Context) (FieldData, error) {
	var fd FieldData
	var err error
	if fd.Dimensionality, err = f.Dimensionality(ctx); err != nil {
		return fd, err
	}
	if fd.Location, err = f.Location(ctx); err != nil {
		return fd, err
	}
	if fd.Unit, err = f.Unit(ctx); err != nil {
		return fd, err
	}
	if fd.Name, err = f.Name(ctx); err != nil {
		return fd, err
	}
	if fd.IDs, err = f.IDs(ctx); err != nil {
		return fd, err
	}
	if fd.Data, err = f.Data(ctx); err != nil {
		return fd, err
	}
	if fd.DataPointer, err = f.DataPointer(ctx); err != nil {
		return fd, err
	}
	return fd, nil
}

// Data is a copy of the flat data vector.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Data(ctx context.Context) ([]float64, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldGetData)
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

// SetData replaces the flat data vector.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetData(ctx context.Context, data []float64) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetData, engine.V(pfapi.DoublesValue(data)))
	return err
}

// Rows returns the data split per entity for fields of fixed elementary size.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when the field has variable-width rows
//   - see engine.Engine.Invoke
func (f *Field) Rows(ctx context.Context) ([][]float64, error) {
	fd, err := f.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(fd.DataPointer) > 0 {
		return nil, pfapi.ErrorInvalidArgument("field has variable-width rows; use EntityData")
	}
	size := fd.Dimensionality.ElementarySize()
	rows := make([][]float64, len(fd.IDs))
	for i := range rows {
		rows[i] = fd.Data[i*size : (i+1)*size]
	}
	return rows, nil
}

// DataPointer is the per-entity offset vector; empty for fixed-width fields.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) DataPointer(ctx context.Context) ([]int64, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldGetDataPointer)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

// SetDataPointer sets the per-entity offsets. Offsets must be strictly increasing.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
//   - see engine.Engine.Invoke
func (f *Field) SetDataPointer(ctx context.Context, ptr []int64) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetDataPointer, engine.V(pfapi.IntsValue(ptr)))
	return err
}

// ElementarySizes reports how many values each entity holds.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) ElementarySizes(ctx context.Context) ([]int64, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldElementarySizes)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

// Scoping returns an owned wrapper over the field's scoping.
// The scoping is shared: changing it changes the field.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
func (f *Field) Scoping(ctx context.Context) (*Scoping, error) {
	h, err := f.invokeHandle(ctx, pfapi.OpFieldGetScoping, pfapi.TypeScoping)
	if err != nil {
		return nil, err
	}
	return &Scoping{base{h}}, nil
}

// SetScoping replaces the scoping of the field.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetScoping(ctx context.Context, s *Scoping) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetScoping, engine.H(s.h))
	return err
}

// IDs is a shortcut for the ids of the field's scoping.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) IDs(ctx context.Context) ([]int64, error) {
	s, err := f.Scoping(ctx)
	if err != nil {
		return nil, err
	}
	defer s.Release(ctx)
	return s.IDs(ctx)
}

// Size is the number of entities.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Size(ctx context.Context) (int, error) {
	s, err := f.Scoping(ctx)
	if err != nil {
		return 0, err
	}
	defer s.Release(ctx)
	return s.Size(ctx)
}

func (f *Field) stringProperty(ctx context.Context, op pfapi.Op) (string, error) {
	v, err := f.invoke(ctx, op)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// Unit may be empty.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Unit(ctx context.Context) (string, error) {
	return f.stringProperty(ctx, pfapi.OpFieldGetUnit)
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetUnit(ctx context.Context, unit string) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetUnit, engine.V(pfapi.StringValue(unit)))
	return err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Name(ctx context.Context) (string, error) {
	return f.stringProperty(ctx, pfapi.OpFieldGetName)
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetName(ctx context.Context, name string) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetName, engine.V(pfapi.StringValue(name)))
	return err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Location(ctx context.Context) (pfapi.Location, error) {
	s, err := f.stringProperty(ctx, pfapi.OpFieldGetLocation)
	return pfapi.Location(s), err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetLocation(ctx context.Context, loc pfapi.Location) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetLocation, engine.V(pfapi.LocationValue(loc)))
	return err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Dimensionality(ctx context.Context) (pfapi.Dimensionality, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldDimensionality)
	if err != nil {
		return pfapi.Dimensionality{}, err
	}
	ints, err := v.AsInts()
	if err != nil {
		return pfapi.Dimensionality{}, err
	}
	return pfapi.DimensionalityFromInts(ints), nil
}

// Support returns the mesh or time-frequency support of the field, or nil when it has none.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) Support(ctx context.Context) (Entity, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldGetSupport)
	if err != nil || v.IsNone() {
		return nil, err
	}
	ref, err := v.AsHandle()
	if err != nil {
		return nil, err
	}
	return Wrap(f.Engine().Adopt(ref)), nil
}

// SetSupport attaches a mesh, time-frequency or cyclic support.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) SetSupport(ctx context.Context, support Entity) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetSupport, engine.H(support.Handle()))
	return err
}

// Append adds one entity with its rows; scoping and data grow together.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when rows do not match the elementary size or id is present
//   - see engine.Engine.Invoke
func (f *Field) Append(ctx context.Context, rows []float64, id int64) error {
	_, err := f.invoke(ctx, pfapi.OpFieldAppend, engine.V(pfapi.DoublesValue(rows)), engine.V(pfapi.Int64Value(id)))
	return err
}

// EntityData returns the rows of the entity at index.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when index is out of range
//   - see engine.Engine.Invoke
func (f *Field) EntityData(ctx context.Context, index int) ([]float64, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldEntityData, engine.V(pfapi.IntValue(index)))
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

// EntityDataByID returns the rows of the entity with the given id.
//
// Errors:
//
//   - pinflow-error-not-found -- when no entity has the id
//   - see engine.Engine.Invoke
func (f *Field) EntityDataByID(ctx context.Context, id int64) ([]float64, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldEntityDataByID, engine.V(pfapi.Int64Value(id)))
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

// ShellLayer needs engine 3.0.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.Invoke
func (f *Field) ShellLayer(ctx context.Context) (pfapi.ShellLayer, error) {
	v, err := f.invoke(ctx, pfapi.OpFieldGetShellLayer)
	if err != nil {
		return pfapi.ShellLayerNone, err
	}
	n, err := v.AsInt()
	return pfapi.ShellLayer(n), err
}

// SetShellLayer needs engine 3.0.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.Invoke
func (f *Field) SetShellLayer(ctx context.Context, layer pfapi.ShellLayer) error {
	_, err := f.invoke(ctx, pfapi.OpFieldSetShellLayer, engine.V(pfapi.IntValue(int(layer))))
	return err
}

// Validate reads the field and checks its length invariants.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when the invariants do not hold
//   - see engine.Engine.Invoke
func (f *Field) Validate(ctx context.Context) error {
	fd, err := f.Read(ctx)
	if err != nil {
		return err
	}
	return fd.Check()
}

// DeepCopy rebuilds the field on target. See the package level DeepCopy.
func (f *Field) DeepCopy(ctx context.Context, target *engine.Engine) (*Field, error) {
	return DeepCopy(ctx, f, target)
}

package enginetest

import (
	"fmt"
	"math"

	"github.com/warptools/pinflow/pfapi"
)

var (
	numericTypes = []pfapi.TypeTag{pfapi.TypeField, pfapi.TypeFieldsContainer, pfapi.TypeDouble, pfapi.TypeInt32}
	fieldTypes   = []pfapi.TypeTag{pfapi.TypeField, pfapi.TypeFieldsContainer}

	binaryConfig = []pfapi.ConfigOption{
		{Name: "work_by_index", Type: pfapi.TypeBool, Default: pfapi.BoolValue(false), Doc: "Combine entities by position instead of by id."},
		{Name: "run_in_parallel", Type: pfapi.TypeBool, Default: pfapi.BoolValue(true), Doc: "Allow the engine to split the work."},
	}
)

func binarySpec(name string, description string) pfapi.OperatorSpec {
	return pfapi.OperatorSpec{
		Name:        name,
		Description: description,
		Inputs: []pfapi.PinSpec{
			pin(0, "fieldA", false, "field, fields container or scalar", numericTypes...),
			pin(1, "fieldB", false, "field, fields container or scalar", numericTypes...),
		},
		Outputs: []pfapi.PinSpec{
			pin(0, "field", false, "", pfapi.TypeField, pfapi.TypeFieldsContainer, pfapi.TypeDouble),
		},
		Config: binaryConfig,
	}
}

func unarySpec(name string, description string, inputName string, types ...pfapi.TypeTag) pfapi.OperatorSpec {
	return pfapi.OperatorSpec{
		Name:        name,
		Description: description,
		Inputs:      []pfapi.PinSpec{pin(0, inputName, false, "", types...)},
		Outputs:     []pfapi.PinSpec{pin(0, "field", false, "", types...)},
	}
}

func binaryKernel(fn func(x, y float64) float64) func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
	return func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		a, err := ev.require(op, 0)
		if err != nil {
			return nil, err
		}
		b, err := ev.require(op, 1)
		if err != nil {
			return nil, err
		}
		r, err := combine(op.def.spec.Name, a, b, op.flag("work_by_index"), fn)
		if err != nil {
			return nil, err
		}
		return map[int]datum{0: r}, nil
	}
}

func unaryKernel(fn func(rows []float64) []float64, dim func(pfapi.Dimensionality) pfapi.Dimensionality) func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
	return func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		a, err := ev.require(op, 0)
		if err != nil {
			return nil, err
		}
		r, err := mapEntities(op.def.spec.Name, a, fn, dim)
		if err != nil {
			return nil, err
		}
		return map[int]datum{0: r}, nil
	}
}

func init() {
	define(binarySpec("add", "Adds fields, containers or scalars."),
		binaryKernel(func(x, y float64) float64 { return x + y }))
	define(binarySpec("minus", "Subtracts fieldB from fieldA."),
		binaryKernel(func(x, y float64) float64 { return x - y }))
	define(binarySpec("div", "Divides fieldA by fieldB component-wise."),
		binaryKernel(func(x, y float64) float64 { return x / y }))
	define(binarySpec("component_wise_product", "Multiplies fieldA by fieldB component-wise."),
		binaryKernel(func(x, y float64) float64 { return x * y }))

	scale := binarySpec("scale", "Scales a field by a constant or by a scalar field.")
	scale.Inputs[0] = pin(0, "field", false, "field or fields container to scale", fieldTypes...)
	scale.Inputs[1] = pin(1, "ponderation", false, "scale factor", pfapi.TypeDouble, pfapi.TypeInt32, pfapi.TypeField)
	define(scale, binaryKernel(func(x, y float64) float64 { return x * y }))

	inner := binarySpec("generalized_inner_product", "Contracts fieldA with fieldB per entity; scalars scale.")
	define(inner, func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		a, err := ev.require(op, 0)
		if err != nil {
			return nil, err
		}
		b, err := ev.require(op, 1)
		if err != nil {
			return nil, err
		}
		if _, ok := scalarOf(a); ok {
			r, err := combine(op.def.spec.Name, a, b, false, func(x, y float64) float64 { return x * y })
			return map[int]datum{0: r}, err
		}
		if _, ok := scalarOf(b); ok {
			r, err := combine(op.def.spec.Name, a, b, false, func(x, y float64) float64 { return x * y })
			return map[int]datum{0: r}, err
		}
		r, err := pairEntities(op.def.spec.Name, a, b, op.flag("work_by_index"), func(x, y []float64) ([]float64, error) {
			if len(x) != len(y) {
				return nil, fmt.Errorf("cannot contract %d components with %d", len(x), len(y))
			}
			s := 0.0
			for i := range x {
				s += x[i] * y[i]
			}
			return []float64{s}, nil
		}, func(pfapi.Dimensionality) pfapi.Dimensionality { return pfapi.ScalarDim() })
		return map[int]datum{0: r}, err
	})

	define(unarySpec("sqr", "Squares each value.", "field", append(fieldTypes, pfapi.TypeDouble)...),
		unaryKernel(func(rows []float64) []float64 {
			out := make([]float64, len(rows))
			for i, x := range rows {
				out[i] = x * x
			}
			return out
		}, nil))
	define(unarySpec("norm", "Euclidean norm of each entity.", "field", pfapi.TypeField),
		unaryKernel(norm, scalarDim))
	define(unarySpec("norm_fc", "Euclidean norm of each entity of each field.", "fields_container", pfapi.TypeFieldsContainer),
		unaryKernel(norm, scalarDim))

	define(pfapi.OperatorSpec{
		Name:        "min_max_fc",
		Description: "Component-wise minimum and maximum over all fields of a container.",
		Inputs:      []pfapi.PinSpec{pin(0, "fields_container", false, "", pfapi.TypeFieldsContainer, pfapi.TypeField)},
		Outputs: []pfapi.PinSpec{
			pin(0, "field_min", false, "one entity holding the minimum", pfapi.TypeField),
			pin(1, "field_max", false, "one entity holding the maximum", pfapi.TypeField),
		},
	}, minMax)

	define(pfapi.OperatorSpec{
		Name:        "forward",
		Description: "Returns its input unchanged.",
		Inputs:      []pfapi.PinSpec{pin(0, "any", false, "", pfapi.TypeAny)},
		Outputs:     []pfapi.PinSpec{pin(0, "any", false, "", pfapi.TypeAny)},
	}, func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		d, err := ev.require(op, 0)
		return map[int]datum{0: d}, err
	})

	define(pfapi.OperatorSpec{
		Name:        "constant",
		Description: "Produces the double 1. Its output type is not documented.",
		Inputs:      []pfapi.PinSpec{},
		Outputs:     []pfapi.PinSpec{pin(0, "value", false, "")},
	}, func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		return map[int]datum{0: {v: pfapi.DoubleValue(1)}}, nil
	})

	define(pfapi.OperatorSpec{
		Name:        "sum_all",
		Description: "Sums every value connected to the ellipsis pins.",
		Inputs: []pfapi.PinSpec{{
			Index: 0, Name: "values", Types: pfapi.TypeSet{pfapi.TypeDouble, pfapi.TypeInt32, pfapi.TypeField},
			Ellipsis: true, Doc: "values to sum",
		}},
		Outputs: []pfapi.PinSpec{pin(0, "sum", false, "", pfapi.TypeDouble)},
	}, func(ev *evaluation, op *operatorObj) (map[int]datum, error) {
		values, err := ev.ellipsis(op, 0)
		if err != nil {
			return nil, err
		}
		total := 0.0
		for _, d := range values {
			if s, ok := scalarOf(d); ok {
				total += s
				continue
			}
			if f, ok := fieldOf(d); ok {
				for _, x := range f.data {
					total += x
				}
			}
		}
		return map[int]datum{0: {v: pfapi.DoubleValue(total)}}, nil
	})

	define(pfapi.OperatorSpec{
		Name:        "premium_smooth",
		Description: "Smooths a field. Requires the premium capability.",
		Inputs:      []pfapi.PinSpec{pin(0, "field", false, "", fieldTypes...)},
		Outputs:     []pfapi.PinSpec{pin(0, "field", false, "", fieldTypes...)},
		License:     CapabilityPremium,
	}, unaryKernel(func(rows []float64) []float64 { return append([]float64{}, rows...) }, nil))
}

// asFault keeps coded errors and reports anything else as an engine fault of operator name.
func asFault(name string, err error) error {
	if _, ok := pfapi.CodeOf(err); ok {
		return err
	}
	return pfapi.ErrorEngineFault(name, err.Error())
}

func scalarDim(pfapi.Dimensionality) pfapi.Dimensionality { return pfapi.ScalarDim() }

func norm(rows []float64) []float64 {
	s := 0.0
	for _, x := range rows {
		s += x * x
	}
	return []float64{math.Sqrt(s)}
}

func scalarOf(d datum) (float64, bool) {
	if d.obj != nil {
		return 0, false
	}
	f, err := d.v.AsDouble()
	return f, err == nil
}

func fieldOf(d datum) (*fieldObj, bool) {
	if d.obj == nil {
		return nil, false
	}
	f, ok := d.obj.val.(*fieldObj)
	return f, ok
}

func containerOf(d datum) (*collectionObj, bool) {
	if d.obj == nil || d.obj.kind != pfapi.TypeFieldsContainer {
		return nil, false
	}
	return d.obj.val.(*collectionObj), true
}

// derive builds a field sharing the metadata of f with new entities.
func derive(f *fieldObj, dim pfapi.Dimensionality, ids []int64, data []float64) *object {
	obj := newField(dim, f.location, f.unit, ids, data)
	g := obj.val.(*fieldObj)
	g.support = f.support
	g.name = f.name
	g.layer = f.layer
	return obj
}

// overContainers applies fn entry by entry when a or b is a fields container.
// Handled reports whether a container was involved.
func overContainers(a, b datum, fn func(a, b datum) (datum, error)) (r datum, handled bool, err error) {
	ca, aIsC := containerOf(a)
	cb, bIsC := containerOf(b)
	if !aIsC && !bIsC {
		return datum{}, false, nil
	}
	shape := ca
	kind := pfapi.TypeFieldsContainer
	if !aIsC {
		shape = cb
	}
	out := newCollection(kind, shape.labels...)
	coll := out.val.(*collectionObj)
	for i, e := range shape.entries {
		left, right := a, b
		if aIsC {
			left = datum{obj: e.obj}
		}
		if bIsC {
			if aIsC {
				if i >= len(cb.entries) {
					return datum{}, true, fmt.Errorf("containers have %d and %d entries", len(ca.entries), len(cb.entries))
				}
				right = datum{obj: cb.entries[i].obj}
			} else {
				right = datum{obj: e.obj}
			}
		}
		d, err := fn(left, right)
		if err != nil {
			return datum{}, true, err
		}
		coll.entries = append(coll.entries, collectionEntry{space: e.space, obj: d.obj})
	}
	return datum{obj: out}, true, nil
}

// combine applies fn value by value to two operands.
func combine(name string, a, b datum, byIndex bool, fn func(x, y float64) float64) (datum, error) {
	if r, handled, err := overContainers(a, b, func(a, b datum) (datum, error) {
		return combine(name, a, b, byIndex, fn)
	}); handled {
		if err != nil {
			return datum{}, asFault(name, err)
		}
		return r, nil
	}
	sa, aScalar := scalarOf(a)
	sb, bScalar := scalarOf(b)
	fa, aField := fieldOf(a)
	fb, bField := fieldOf(b)
	switch {
	case aScalar && bScalar:
		return datum{v: pfapi.DoubleValue(fn(sa, sb))}, nil
	case aField && bScalar:
		return mapValues(fa, func(x float64) float64 { return fn(x, sb) }), nil
	case aScalar && bField:
		return mapValues(fb, func(y float64) float64 { return fn(sa, y) }), nil
	case aField && bField:
		d, err := pairEntities(name, a, b, byIndex, func(x, y []float64) ([]float64, error) {
			out := make([]float64, len(x))
			switch {
			case len(y) == len(x):
				for i := range x {
					out[i] = fn(x[i], y[i])
				}
			case len(y) == 1:
				for i := range x {
					out[i] = fn(x[i], y[0])
				}
			default:
				return nil, fmt.Errorf("cannot combine %d components with %d", len(x), len(y))
			}
			return out, nil
		}, nil)
		return d, err
	}
	return datum{}, pfapi.ErrorEngineFault(name, fmt.Sprintf("unsupported operands %s and %s", a.tag(), b.tag()))
}

func mapValues(f *fieldObj, fn func(x float64) float64) datum {
	data := make([]float64, len(f.data))
	for i, x := range f.data {
		data[i] = fn(x)
	}
	obj := derive(f, f.dim, f.ids(), data)
	obj.val.(*fieldObj).pointer = append([]int64(nil), f.pointer...)
	return datum{obj: obj}
}

// pairEntities matches the entities of two fields, by id unless byIndex, and combines their rows.
func pairEntities(name string, a, b datum, byIndex bool, fn func(x, y []float64) ([]float64, error), dim func(pfapi.Dimensionality) pfapi.Dimensionality) (datum, error) {
	if r, handled, err := overContainers(a, b, func(a, b datum) (datum, error) {
		return pairEntities(name, a, b, byIndex, fn, dim)
	}); handled {
		if err != nil {
			return datum{}, asFault(name, err)
		}
		return r, nil
	}
	fa, ok := fieldOf(a)
	if !ok {
		return datum{}, pfapi.ErrorEngineFault(name, "fieldA is not a field")
	}
	fb, ok := fieldOf(b)
	if !ok {
		return datum{}, pfapi.ErrorEngineFault(name, "fieldB is not a field")
	}
	idsA, idsB := fa.ids(), fb.ids()
	var ids []int64
	var data []float64
	for i, id := range idsA {
		j := i
		if !byIndex {
			j = indexOf(idsB, id)
			if j < 0 {
				continue
			}
		} else if j >= len(idsB) {
			break
		}
		x, err := fa.entity(i)
		if err != nil {
			return datum{}, err
		}
		y, err := fb.entity(j)
		if err != nil {
			return datum{}, err
		}
		rows, err := fn(x, y)
		if err != nil {
			return datum{}, pfapi.ErrorEngineFault(name, err.Error())
		}
		ids = append(ids, id)
		data = append(data, rows...)
	}
	outDim := fa.dim
	if dim != nil {
		outDim = dim(fa.dim)
	}
	if data == nil {
		data = []float64{}
	}
	return datum{obj: derive(fa, outDim, ids, data)}, nil
}

// mapEntities applies fn to the rows of each entity.
func mapEntities(name string, a datum, fn func(rows []float64) []float64, dim func(pfapi.Dimensionality) pfapi.Dimensionality) (datum, error) {
	if c, ok := containerOf(a); ok {
		out := newCollection(pfapi.TypeFieldsContainer, c.labels...)
		coll := out.val.(*collectionObj)
		for _, e := range c.entries {
			d, err := mapEntities(name, datum{obj: e.obj}, fn, dim)
			if err != nil {
				return datum{}, err
			}
			coll.entries = append(coll.entries, collectionEntry{space: e.space, obj: d.obj})
		}
		return datum{obj: out}, nil
	}
	if s, ok := scalarOf(a); ok {
		return datum{v: pfapi.DoubleValue(fn([]float64{s})[0])}, nil
	}
	f, ok := fieldOf(a)
	if !ok {
		return datum{}, pfapi.ErrorEngineFault(name, fmt.Sprintf("unsupported operand %s", a.tag()))
	}
	ids := f.ids()
	var data []float64
	var pointer []int64
	for i := range ids {
		rows, err := f.entity(i)
		if err != nil {
			return datum{}, err
		}
		if len(f.pointer) > 0 {
			pointer = append(pointer, int64(len(data)))
		}
		data = append(data, fn(rows)...)
	}
	outDim := f.dim
	if dim != nil {
		outDim = dim(f.dim)
		pointer = nil
	}
	if data == nil {
		data = []float64{}
	}
	obj := derive(f, outDim, ids, data)
	obj.val.(*fieldObj).pointer = pointer
	return datum{obj: obj}, nil
}

func minMax(ev *evaluation, op *operatorObj) (map[int]datum, error) {
	in, err := ev.require(op, 0)
	if err != nil {
		return nil, err
	}
	var fields []*fieldObj
	if c, ok := containerOf(in); ok {
		for _, e := range c.entries {
			if f, ok := e.obj.val.(*fieldObj); ok {
				fields = append(fields, f)
			}
		}
	} else if f, ok := fieldOf(in); ok {
		fields = append(fields, f)
	}
	var (
		mins, maxs   []float64
		minID, maxID int64
		template     *fieldObj
	)
	for _, f := range fields {
		for i, id := range f.ids() {
			rows, err := f.entity(i)
			if err != nil {
				return nil, err
			}
			if template == nil {
				template = f
				mins = append([]float64{}, rows...)
				maxs = append([]float64{}, rows...)
				minID, maxID = id, id
				continue
			}
			if len(rows) != len(mins) {
				return nil, pfapi.ErrorEngineFault(op.def.spec.Name, "fields have different component counts")
			}
			for k, x := range rows {
				if x < mins[k] {
					mins[k] = x
					if k == 0 {
						minID = id
					}
				}
				if x > maxs[k] {
					maxs[k] = x
					if k == 0 {
						maxID = id
					}
				}
			}
		}
	}
	if template == nil {
		return nil, pfapi.ErrorEngineFault(op.def.spec.Name, "no data to reduce")
	}
	return map[int]datum{
		0: {obj: derive(template, template.dim, []int64{minID}, mins)},
		1: {obj: derive(template, template.dim, []int64{maxID}, maxs)},
	}, nil
}

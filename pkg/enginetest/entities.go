package enginetest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/warptools/pinflow/pfapi"
)

type fieldObj struct {
	dim      pfapi.Dimensionality
	location pfapi.Location
	unit     string
	name     string
	scoping  *object
	support  *object
	data     []float64
	pointer  []int64
	layer    pfapi.ShellLayer
}

type scopingObj struct {
	location pfapi.Location
	ids      []int64
}

type collectionObj struct {
	labels  []string
	entries []collectionEntry
}

type collectionEntry struct {
	space pfapi.LabelMap
	obj   *object
}

type primitiveObj struct {
	values pfapi.Value
}

type labelSpaceObj struct {
	labels pfapi.LabelMap
}

type dataSourcesObj struct {
	paths      []pfapi.DataPath
	namespaces map[string]string
	upstreams  []*object
}

// bagObj backs the entities described only by their properties: meshes, supports,
// result and mesh infos, data trees, generic data containers and any-wrappers.
type bagObj struct {
	keys  []string
	props map[string]datum
}

func (bag *bagObj) set(name string, d datum) {
	if _, ok := bag.props[name]; !ok {
		bag.keys = append(bag.keys, name)
	}
	bag.props[name] = d
}

var bagKinds = pfapi.TypeSet{
	pfapi.TypeMesh, pfapi.TypeTimeFreqSupport, pfapi.TypeCyclicSupport, pfapi.TypeResultInfo,
	pfapi.TypeMeshInfo, pfapi.TypeDataTree, pfapi.TypeAnyEntity, pfapi.TypeGenericDataContainer,
}

var collectionKinds = map[pfapi.TypeTag]pfapi.TypeTag{
	pfapi.TypeFieldsContainer:   pfapi.TypeField,
	pfapi.TypeScopingsContainer: pfapi.TypeScoping,
	pfapi.TypeMeshesContainer:   pfapi.TypeMesh,
}

var primitiveKinds = map[pfapi.TypeTag]pfapi.TypeTag{
	pfapi.TypeIntCollection:    pfapi.TypeInts,
	pfapi.TypeDoubleCollection: pfapi.TypeDoubles,
	pfapi.TypeStringCollection: pfapi.TypeStrings,
}

func newScoping(location pfapi.Location, ids []int64) *object {
	return &object{kind: pfapi.TypeScoping, val: &scopingObj{location: location, ids: append([]int64{}, ids...)}}
}

// newField builds a field with its own scoping.
func newField(dim pfapi.Dimensionality, location pfapi.Location, unit string, ids []int64, data []float64) *object {
	return &object{kind: pfapi.TypeField, val: &fieldObj{
		dim:      dim,
		location: location,
		unit:     unit,
		scoping:  newScoping(location, ids),
		data:     data,
		layer:    pfapi.ShellLayerNone,
	}}
}

func newCollection(kind pfapi.TypeTag, labels ...string) *object {
	return &object{kind: kind, val: &collectionObj{labels: append([]string{}, labels...)}}
}

func (f *fieldObj) ids() []int64 { return f.scoping.val.(*scopingObj).ids }

// entity returns the rows of entity i.
func (f *fieldObj) entity(i int) ([]float64, error) {
	n := len(f.ids())
	if i < 0 || i >= n {
		return nil, pfapi.ErrorInvalidArgument(fmt.Sprintf("entity index %d out of range [0, %d)", i, n))
	}
	if len(f.pointer) > 0 {
		start := int(f.pointer[i])
		end := len(f.data)
		if i+1 < len(f.pointer) {
			end = int(f.pointer[i+1])
		}
		if start > end || end > len(f.data) {
			return nil, pfapi.ErrorEngineFault("field", "data pointer is inconsistent with data")
		}
		return f.data[start:end], nil
	}
	size := f.dim.ElementarySize()
	if (i+1)*size > len(f.data) {
		return nil, pfapi.ErrorEngineFault("field", "data is shorter than scoping")
	}
	return f.data[i*size : (i+1)*size], nil
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func init() {
	register(pfapi.OpFieldNew, false, func(c *call) (pfapi.Value, error) {
		dim, err := c.ints(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		loc, err := c.str(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		obj := newField(pfapi.DimensionalityFromInts(dim), pfapi.Location(loc), "", nil, []float64{})
		return c.b.handle(obj), nil
	})
	register(pfapi.OpFieldGetData, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.DoublesValue(append([]float64{}, f.data...)), nil
	})
	register(pfapi.OpFieldSetData, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		data, err := c.doubles(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		f.data = append([]float64{}, data...)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldBorrowData, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		// In-process hosts alias f.data; the remote host copies it while encoding.
		return pfapi.DoublesValue(f.data), nil
	})
	register(pfapi.OpFieldReturnData, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		data, err := c.doubles(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if len(data) == len(f.data) {
			copy(f.data, data)
		} else {
			f.data = append([]float64{}, data...)
		}
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldGetDataPointer, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntsValue(append([]int64{}, f.pointer...)), nil
	})
	register(pfapi.OpFieldSetDataPointer, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		ptr, err := c.ints(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		for i := 1; i < len(ptr); i++ {
			if ptr[i] <= ptr[i-1] {
				return pfapi.Value{}, pfapi.ErrorInvalidArgument("data pointer must be strictly increasing")
			}
		}
		f.pointer = append([]int64{}, ptr...)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldElementarySizes, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		n := len(f.ids())
		sizes := make([]int64, n)
		for i := range sizes {
			rows, err := f.entity(i)
			if err != nil {
				return pfapi.Value{}, err
			}
			sizes[i] = int64(len(rows))
		}
		return pfapi.IntsValue(sizes), nil
	})
	register(pfapi.OpFieldGetScoping, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.handle(f.scoping), nil
	})
	register(pfapi.OpFieldSetScoping, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		s, err := c.obj(0, pfapi.TypeScoping)
		if err != nil {
			return pfapi.Value{}, err
		}
		f.scoping = s
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldGetUnit, true, fieldString(func(f *fieldObj) *string { return &f.unit }, false))
	register(pfapi.OpFieldSetUnit, true, fieldString(func(f *fieldObj) *string { return &f.unit }, true))
	register(pfapi.OpFieldGetName, true, fieldString(func(f *fieldObj) *string { return &f.name }, false))
	register(pfapi.OpFieldSetName, true, fieldString(func(f *fieldObj) *string { return &f.name }, true))
	register(pfapi.OpFieldGetLocation, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.LocationValue(f.location), nil
	})
	register(pfapi.OpFieldSetLocation, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		loc, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		f.location = pfapi.Location(loc)
		f.scoping.val.(*scopingObj).location = f.location
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldDimensionality, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntsValue(f.dim.Ints()), nil
	})
	register(pfapi.OpFieldGetSupport, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		if f.support == nil {
			return pfapi.Value{}, nil
		}
		return c.b.handle(f.support), nil
	})
	register(pfapi.OpFieldSetSupport, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		s, err := c.obj(0, pfapi.TypeMesh, pfapi.TypeTimeFreqSupport, pfapi.TypeCyclicSupport)
		if err != nil {
			return pfapi.Value{}, err
		}
		f.support = s
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldAppend, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		rows, err := c.doubles(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		id, err := c.int64(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		if len(f.pointer) == 0 && len(rows) != f.dim.ElementarySize() {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("expected %d values per entity, got %d", f.dim.ElementarySize(), len(rows)))
		}
		s := f.scoping.val.(*scopingObj)
		if indexOf(s.ids, id) >= 0 {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("entity %d already present", id))
		}
		if len(f.pointer) > 0 {
			f.pointer = append(f.pointer, int64(len(f.data)))
		}
		s.ids = append(s.ids, id)
		f.data = append(f.data, rows...)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpFieldEntityData, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		i, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		rows, err := f.entity(i)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.DoublesValue(append([]float64{}, rows...)), nil
	})
	register(pfapi.OpFieldEntityDataByID, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		id, err := c.int64(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		i := indexOf(f.ids(), id)
		if i < 0 {
			return pfapi.Value{}, pfapi.ErrorNotFound("entity", fmt.Sprint(id))
		}
		rows, err := f.entity(i)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.DoublesValue(append([]float64{}, rows...)), nil
	})
	register(pfapi.OpFieldGetShellLayer, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntValue(int(f.layer)), nil
	})
	register(pfapi.OpFieldSetShellLayer, true, func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		layer, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		f.layer = pfapi.ShellLayer(layer)
		return pfapi.Value{}, nil
	})

	register(pfapi.OpScopingNew, false, func(c *call) (pfapi.Value, error) {
		loc, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		var ids []int64
		if c.has(1) {
			if ids, err = c.ints(1); err != nil {
				return pfapi.Value{}, err
			}
		}
		return c.b.handle(newScoping(pfapi.Location(loc), ids)), nil
	})
	register(pfapi.OpScopingGetIDs, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntsValue(append([]int64{}, s.ids...)), nil
	})
	register(pfapi.OpScopingSetIDs, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		ids, err := c.ints(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		s.ids = append([]int64{}, ids...)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpScopingGetLocation, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.LocationValue(s.location), nil
	})
	register(pfapi.OpScopingSetLocation, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		loc, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		s.location = pfapi.Location(loc)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpScopingAppend, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		id, err := c.int64(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		s.ids = append(s.ids, id)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpScopingIndexOf, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		id, err := c.int64(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntValue(indexOf(s.ids, id)), nil
	})
	register(pfapi.OpScopingIDAt, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		i, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if i < 0 || i >= len(s.ids) {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("scoping index %d out of range [0, %d)", i, len(s.ids)))
		}
		return pfapi.Int64Value(s.ids[i]), nil
	})
	register(pfapi.OpScopingSize, true, func(c *call) (pfapi.Value, error) {
		s, err := payload[*scopingObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntValue(len(s.ids)), nil
	})

	register(pfapi.OpCollectionNew, false, func(c *call) (pfapi.Value, error) {
		kind, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if _, ok := collectionKinds[pfapi.TypeTag(kind)]; !ok {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("%q is not a collection kind", kind))
		}
		return c.b.handle(newCollection(pfapi.TypeTag(kind))), nil
	})
	register(pfapi.OpCollectionAddLabel, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		label, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		coll.addLabel(label)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpCollectionLabels, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.stringsValue(append([]string{}, coll.labels...)), nil
	})
	register(pfapi.OpCollectionAddEntry, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		space, err := c.labels(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		entry, err := c.obj(1, collectionKinds[c.target.kind])
		if err != nil {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("%s entries must be %s", c.target.kind, collectionKinds[c.target.kind]))
		}
		return pfapi.Value{}, coll.add(space, entry)
	})
	register(pfapi.OpCollectionGetEntry, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		i, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if i < 0 || i >= len(coll.entries) {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("entry index %d out of range [0, %d)", i, len(coll.entries)))
		}
		return c.b.handle(coll.entries[i].obj), nil
	})
	register(pfapi.OpCollectionGetEntryByLabel, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		space, err := c.labels(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		for _, e := range coll.entries {
			if space.Matches(e.space) {
				return c.b.handle(e.obj), nil
			}
		}
		return pfapi.Value{}, pfapi.ErrorNotFound("collection entry", space.String())
	})
	register(pfapi.OpCollectionSize, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.IntValue(len(coll.entries)), nil
	})
	register(pfapi.OpCollectionLabelSpace, true, func(c *call) (pfapi.Value, error) {
		coll, err := payload[*collectionObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		i, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if i < 0 || i >= len(coll.entries) {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("entry index %d out of range [0, %d)", i, len(coll.entries)))
		}
		return pfapi.LabelsValue(coll.entries[i].space), nil
	})
	register(pfapi.OpCollectionNewPrimitive, false, func(c *call) (pfapi.Value, error) {
		kind, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		want, ok := primitiveKinds[pfapi.TypeTag(kind)]
		if !ok {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("%q is not a primitive collection kind", kind))
		}
		values, err := c.arg(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		if values.Tag() != want {
			return pfapi.Value{}, pfapi.ErrorTypeMismatch(c.op.Name, want, values.Tag())
		}
		return c.b.handle(&object{kind: pfapi.TypeTag(kind), val: &primitiveObj{values: values}}), nil
	})
	register(pfapi.OpCollectionGetPrimitive, true, func(c *call) (pfapi.Value, error) {
		p, err := payload[*primitiveObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.encodeResult(p.values), nil
	})

	register(pfapi.OpLabelSpaceNew, false, func(c *call) (pfapi.Value, error) {
		labels, err := c.labels(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.handle(&object{kind: pfapi.TypeLabelSpace, val: &labelSpaceObj{labels: labels}}), nil
	})
	register(pfapi.OpLabelSpaceGet, true, func(c *call) (pfapi.Value, error) {
		ls, err := payload[*labelSpaceObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.LabelsValue(ls.labels), nil
	})

	register(pfapi.OpDataSourcesNew, false, func(c *call) (pfapi.Value, error) {
		ds := &dataSourcesObj{namespaces: map[string]string{}}
		if c.has(0) {
			path, err := c.str(0)
			if err != nil {
				return pfapi.Value{}, err
			}
			ds.setResult(path, "")
		}
		return c.b.handle(&object{kind: pfapi.TypeDataSources, val: ds}), nil
	})
	register(pfapi.OpDataSourcesSetResultPath, true, dataSourcesPath(true, false))
	register(pfapi.OpDataSourcesAddPath, true, dataSourcesPath(false, false))
	register(pfapi.OpDataSourcesAddDomainPath, true, dataSourcesPath(true, true))
	register(pfapi.OpDataSourcesRegisterNamespace, true, func(c *call) (pfapi.Value, error) {
		ds, err := payload[*dataSourcesObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		key, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		ns, err := c.str(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		ds.namespaces[key] = ns
		for i := range ds.paths {
			if ds.paths[i].Key == key {
				ds.paths[i].Namespace = ns
			}
		}
		return pfapi.Value{}, nil
	})
	register(pfapi.OpDataSourcesPaths, true, func(c *call) (pfapi.Value, error) {
		ds, err := payload[*dataSourcesObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		paths := append([]pfapi.DataPath{}, ds.paths...)
		raw, err := pfapi.EncodeCBOR(&paths, "List__DataPath")
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.BytesValue(raw), nil
	})
	register(pfapi.OpDataSourcesResultKey, true, func(c *call) (pfapi.Value, error) {
		ds, err := payload[*dataSourcesObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		for _, p := range ds.paths {
			if p.Result {
				return pfapi.StringValue(p.Key), nil
			}
		}
		return pfapi.StringValue(""), nil
	})
	register(pfapi.OpDataSourcesAddUpstream, true, func(c *call) (pfapi.Value, error) {
		ds, err := payload[*dataSourcesObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		up, err := c.obj(0, pfapi.TypeDataSources)
		if err != nil {
			return pfapi.Value{}, err
		}
		if up == c.target {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("data sources cannot be their own upstream")
		}
		ds.upstreams = append(ds.upstreams, up)
		return pfapi.Value{}, nil
	})

	register(pfapi.OpEntityNew, false, func(c *call) (pfapi.Value, error) {
		kind, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if !bagKinds.Contains(pfapi.TypeTag(kind)) || pfapi.TypeTag(kind) == pfapi.TypeAny {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("entity.new cannot build %q", kind))
		}
		return c.b.handle(&object{kind: pfapi.TypeTag(kind), val: &bagObj{props: map[string]datum{}}}), nil
	})
	register(pfapi.OpEntityGetProperty, true, func(c *call) (pfapi.Value, error) {
		bag, err := payload[*bagObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if name == "" {
			return c.b.stringsValue(append([]string{}, bag.keys...)), nil
		}
		d, ok := bag.props[name]
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound(string(c.target.kind)+" property", name)
		}
		return c.result(d), nil
	})
	register(pfapi.OpEntitySetProperty, true, func(c *call) (pfapi.Value, error) {
		bag, err := payload[*bagObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if name == "" {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("property name must not be empty")
		}
		d, err := c.datum(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		if d.empty() {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("property value must not be empty")
		}
		if d.obj == c.target {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("an entity cannot hold itself")
		}
		bag.set(name, d)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpEntitySerialize, true, func(c *call) (pfapi.Value, error) {
		doc, err := snapshot(c.target)
		if err != nil {
			return pfapi.Value{}, err
		}
		raw, err := pfapi.EncodeCBOR(&doc, "EntityDoc")
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.BytesValue(raw), nil
	})
	register(pfapi.OpEntityDeserialize, false, func(c *call) (pfapi.Value, error) {
		kind, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		raw, err := c.arg(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		data, err := raw.AsBytes()
		if err != nil {
			return pfapi.Value{}, err
		}
		var doc pfapi.EntityDoc
		if err := pfapi.DecodeCBOR(data, &doc, "EntityDoc"); err != nil {
			return pfapi.Value{}, err
		}
		if doc.Kind() != pfapi.TypeTag(kind) {
			return pfapi.Value{}, pfapi.ErrorTypeMismatch("deserializing entity", pfapi.TypeTag(kind), doc.Kind())
		}
		obj, err := restore(doc)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.handle(obj), nil
	})
}

func fieldString(get func(*fieldObj) *string, set bool) handlerFn {
	return func(c *call) (pfapi.Value, error) {
		f, err := payload[*fieldObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		if !set {
			return pfapi.StringValue(*get(f)), nil
		}
		s, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		*get(f) = s
		return pfapi.Value{}, nil
	}
}

func (coll *collectionObj) addLabel(label string) {
	for _, l := range coll.labels {
		if l == label {
			return
		}
	}
	coll.labels = append(coll.labels, label)
}

// add inserts entry, replacing any entry with the same label space.
func (coll *collectionObj) add(space pfapi.LabelMap, entry *object) error {
	if len(coll.labels) > 0 && space.Len() == 0 {
		return pfapi.ErrorInvalidArgument("collection declares labels; entries need a label space")
	}
	for _, k := range space.Keys {
		coll.addLabel(k)
	}
	if space.Len() > 0 {
		for i, e := range coll.entries {
			if e.space.Len() == space.Len() && e.space.Matches(space) {
				coll.entries[i].obj = entry
				return nil
			}
		}
	}
	coll.entries = append(coll.entries, collectionEntry{space: space, obj: entry})
	return nil
}

func (ds *dataSourcesObj) setResult(path string, key string) {
	kept := ds.paths[:0]
	for _, p := range ds.paths {
		if !p.Result {
			kept = append(kept, p)
		}
	}
	ds.paths = append(kept, ds.newPath(path, key, pfapi.NoDomain, true))
}

func (ds *dataSourcesObj) newPath(path string, key string, domain int, result bool) pfapi.DataPath {
	if key == "" {
		key = strings.TrimPrefix(filepath.Ext(path), ".")
	}
	return pfapi.DataPath{Key: key, Path: path, Domain: domain, Result: result, Namespace: ds.namespaces[key]}
}

func dataSourcesPath(result bool, domain bool) handlerFn {
	return func(c *call) (pfapi.Value, error) {
		ds, err := payload[*dataSourcesObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		path, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if path == "" {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("path must not be empty")
		}
		key := ""
		if c.has(1) {
			if key, err = c.str(1); err != nil {
				return pfapi.Value{}, err
			}
		}
		switch {
		case domain:
			id, err := c.int(2)
			if err != nil {
				return pfapi.Value{}, err
			}
			ds.paths = append(ds.paths, ds.newPath(path, key, id, true))
		case result:
			ds.setResult(path, key)
		default:
			ds.paths = append(ds.paths, ds.newPath(path, key, pfapi.NoDomain, false))
		}
		return pfapi.Value{}, nil
	}
}

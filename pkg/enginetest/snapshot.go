package enginetest

import (
	"github.com/warptools/pinflow/pfapi"
)

// snapshot describes obj as a document, recursively.
// Properties holding objects other than collections entries are left out.
func snapshot(obj *object) (pfapi.EntityDoc, error) {
	switch v := obj.val.(type) {
	case *fieldObj:
		return pfapi.EntityDoc{Field: fieldDoc(v)}, nil
	case *scopingObj:
		doc := scopingDoc(v)
		return pfapi.EntityDoc{Scoping: &doc}, nil
	case *collectionObj:
		doc := &pfapi.CollectionDoc{Kind: obj.kind, Labels: append([]string{}, v.labels...), Entries: []pfapi.CollectionEntryDoc{}}
		for _, e := range v.entries {
			inner, err := snapshot(e.obj)
			if err != nil {
				return pfapi.EntityDoc{}, err
			}
			doc.Entries = append(doc.Entries, pfapi.CollectionEntryDoc{Labels: e.space, Entity: inner})
		}
		return pfapi.EntityDoc{Collection: doc}, nil
	case *primitiveObj:
		return pfapi.EntityDoc{Primitive: &pfapi.PrimitiveDoc{Kind: obj.kind, Values: v.values}}, nil
	case *labelSpaceObj:
		labels := v.labels
		return pfapi.EntityDoc{LabelSpace: &labels}, nil
	case *dataSourcesObj:
		doc := dataSourcesDoc(v)
		return pfapi.EntityDoc{DataSources: &doc}, nil
	case *bagObj:
		doc := &pfapi.BagDoc{Kind: obj.kind, Properties: []pfapi.NamedValue{}}
		for _, k := range v.keys {
			if d := v.props[k]; d.obj == nil {
				doc.Properties = append(doc.Properties, pfapi.NamedValue{Name: k, Value: d.v})
			}
		}
		return pfapi.EntityDoc{Bag: doc}, nil
	}
	return pfapi.EntityDoc{}, pfapi.ErrorInvalidArgument("cannot serialize " + string(obj.kind))
}

func fieldDoc(f *fieldObj) *pfapi.FieldDoc {
	pointer := f.pointer
	if pointer == nil {
		pointer = []int64{}
	}
	return &pfapi.FieldDoc{
		Dimensionality: f.dim.Ints(),
		Location:       f.location,
		Unit:           f.unit,
		Name:           f.name,
		Scoping:        scopingDoc(f.scoping.val.(*scopingObj)),
		Data:           append([]float64{}, f.data...),
		Pointer:        append([]int64{}, pointer...),
		ShellLayer:     int64(f.layer),
	}
}

func scopingDoc(s *scopingObj) pfapi.ScopingDoc {
	return pfapi.ScopingDoc{Location: s.location, IDs: append([]int64{}, s.ids...)}
}

func dataSourcesDoc(ds *dataSourcesObj) pfapi.DataSourcesDoc {
	doc := pfapi.DataSourcesDoc{Paths: append([]pfapi.DataPath{}, ds.paths...), Upstreams: []pfapi.DataSourcesDoc{}}
	for _, up := range ds.upstreams {
		doc.Upstreams = append(doc.Upstreams, dataSourcesDoc(up.val.(*dataSourcesObj)))
	}
	return doc
}

// restore rebuilds an object from its document.
func restore(doc pfapi.EntityDoc) (*object, error) {
	switch {
	case doc.Field != nil:
		d := doc.Field
		obj := newField(pfapi.DimensionalityFromInts(d.Dimensionality), d.Location, d.Unit, d.Scoping.IDs, append([]float64{}, d.Data...))
		f := obj.val.(*fieldObj)
		f.name = d.Name
		f.layer = pfapi.ShellLayer(d.ShellLayer)
		f.scoping.val.(*scopingObj).location = d.Scoping.Location
		if len(d.Pointer) > 0 {
			f.pointer = append([]int64{}, d.Pointer...)
		}
		return obj, nil
	case doc.Scoping != nil:
		return newScoping(doc.Scoping.Location, doc.Scoping.IDs), nil
	case doc.Collection != nil:
		obj := newCollection(doc.Collection.Kind, doc.Collection.Labels...)
		coll := obj.val.(*collectionObj)
		for _, e := range doc.Collection.Entries {
			inner, err := restore(e.Entity)
			if err != nil {
				return nil, err
			}
			coll.entries = append(coll.entries, collectionEntry{space: e.Labels, obj: inner})
		}
		return obj, nil
	case doc.Primitive != nil:
		return &object{kind: doc.Primitive.Kind, val: &primitiveObj{values: doc.Primitive.Values}}, nil
	case doc.LabelSpace != nil:
		return &object{kind: pfapi.TypeLabelSpace, val: &labelSpaceObj{labels: *doc.LabelSpace}}, nil
	case doc.DataSources != nil:
		return restoreDataSources(*doc.DataSources), nil
	case doc.Bag != nil:
		bag := &bagObj{props: map[string]datum{}}
		for _, p := range doc.Bag.Properties {
			bag.set(p.Name, datum{v: p.Value})
		}
		return &object{kind: doc.Bag.Kind, val: bag}, nil
	}
	return nil, pfapi.ErrorInvalidArgument("empty entity document")
}

func restoreDataSources(doc pfapi.DataSourcesDoc) *object {
	ds := &dataSourcesObj{paths: append([]pfapi.DataPath{}, doc.Paths...), namespaces: map[string]string{}}
	for _, p := range ds.paths {
		if p.Namespace != "" {
			ds.namespaces[p.Key] = p.Namespace
		}
	}
	for _, up := range doc.Upstreams {
		ds.upstreams = append(ds.upstreams, restoreDataSources(up))
	}
	return &object{kind: pfapi.TypeDataSources, val: ds}
}

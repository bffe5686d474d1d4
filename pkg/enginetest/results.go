package enginetest

import (
	"fmt"

	"github.com/warptools/pinflow/pfapi"
)

// EncodeResultFile renders a result file in the format read by the result operators: dag-cbor,
// which keeps the float kind of integral values.
//
// Errors:
//
//   - pinflow-error-serialization --
func EncodeResultFile(rf pfapi.ResultFile) ([]byte, error) {
	return pfapi.EncodeCBOR(&rf, "ResultFile")
}

func init() {
	define(pfapi.OperatorSpec{
		Name:        "displacement",
		Description: "Reads nodal displacements from the result files of the data sources.",
		Inputs: []pfapi.PinSpec{
			pin(0, "time_scoping", true, "time sets to read; defaults to the last set", pfapi.TypeScoping, pfapi.TypeInt32, pfapi.TypeInts, pfapi.TypeIntCollection),
			pin(1, "mesh_scoping", true, "entity ids to read; defaults to all", pfapi.TypeScoping),
			pin(3, "streams_container", true, "open result streams", pfapi.TypeAny),
			pin(4, "data_sources", false, "result files", pfapi.TypeDataSources),
		},
		Outputs: []pfapi.PinSpec{pin(0, "fields_container", false, "one field per time set, labelled by time", pfapi.TypeFieldsContainer)},
	}, displacement)

	define(pfapi.OperatorSpec{
		Name:        "mesh_provider",
		Description: "Reads the mesh of the result files of the data sources.",
		Inputs:      []pfapi.PinSpec{pin(4, "data_sources", false, "result files", pfapi.TypeDataSources)},
		Outputs:     []pfapi.PinSpec{pin(0, "mesh", false, "", pfapi.TypeMesh)},
	}, meshProvider)
}

func (ev *evaluation) resultFile(op *operatorObj) (pfapi.ResultFile, error) {
	d, err := ev.require(op, 4)
	if err != nil {
		return pfapi.ResultFile{}, err
	}
	ds, ok := d.obj.val.(*dataSourcesObj)
	if !ok {
		return pfapi.ResultFile{}, pfapi.ErrorEngineFault(op.def.spec.Name, "data_sources is not a data sources")
	}
	for _, p := range ds.paths {
		if !p.Result {
			continue
		}
		raw, err := ev.b.readFile(p.Path)
		if err != nil {
			return pfapi.ResultFile{}, err
		}
		var rf pfapi.ResultFile
		if err := pfapi.DecodeCBOR(raw, &rf, "ResultFile"); err != nil {
			return pfapi.ResultFile{}, pfapi.ErrorEngineFault(op.def.spec.Name, fmt.Sprintf("%s is not a readable result file: %s", p.Path, err))
		}
		if rf.Components < 1 {
			rf.Components = 1
		}
		if rf.Location == "" {
			rf.Location = pfapi.LocationNodal
		}
		return rf, nil
	}
	return pfapi.ResultFile{}, pfapi.ErrorEngineFault(op.def.spec.Name, "data sources hold no result file")
}

// timeSets resolves the optional time scoping pin into 1-based set numbers.
func (ev *evaluation) timeSets(op *operatorObj, n int) ([]int64, error) {
	d, ok, err := ev.input(op, 0)
	if err != nil || !ok {
		return []int64{int64(n)}, err
	}
	switch {
	case d.obj != nil && d.obj.kind == pfapi.TypeScoping:
		return d.obj.val.(*scopingObj).ids, nil
	case d.obj != nil && d.obj.kind == pfapi.TypeIntCollection:
		return d.obj.val.(*primitiveObj).values.AsInts()
	case d.v.Ints != nil:
		return *d.v.Ints, nil
	}
	i, err := d.v.AsInt()
	return []int64{i}, err
}

func displacement(ev *evaluation, op *operatorObj) (map[int]datum, error) {
	rf, err := ev.resultFile(op)
	if err != nil {
		return nil, err
	}
	sets, err := ev.timeSets(op, len(rf.Sets))
	if err != nil {
		return nil, err
	}
	var filter []int64
	if d, ok, err := ev.input(op, 1); err != nil {
		return nil, err
	} else if ok {
		filter = d.obj.val.(*scopingObj).ids
	}

	dim := pfapi.VectorDim(rf.Components)
	if rf.Components == 1 {
		dim = pfapi.ScalarDim()
	}
	times := make([]float64, len(rf.Sets))
	for i, s := range rf.Sets {
		times[i] = s.Time
	}
	support := &object{kind: pfapi.TypeTimeFreqSupport, val: &bagObj{props: map[string]datum{}}}
	support.val.(*bagObj).set("time_frequencies", datum{v: pfapi.DoublesValue(times)})
	support.val.(*bagObj).set("n_sets", datum{v: pfapi.IntValue(len(times))})

	out := newCollection(pfapi.TypeFieldsContainer, "time")
	coll := out.val.(*collectionObj)
	for _, n := range sets {
		if n < 1 || int(n) > len(rf.Sets) {
			return nil, pfapi.ErrorEngineFault(op.def.spec.Name, fmt.Sprintf("time set %d not in result file (%d sets)", n, len(rf.Sets)))
		}
		set := rf.Sets[n-1]
		if len(set.Data) != len(set.IDs)*rf.Components {
			return nil, pfapi.ErrorEngineFault(op.def.spec.Name, fmt.Sprintf("time set %d holds %d values for %d entities", n, len(set.Data), len(set.IDs)))
		}
		ids := []int64{}
		data := []float64{}
		for i, id := range set.IDs {
			if filter != nil && indexOf(filter, id) < 0 {
				continue
			}
			ids = append(ids, id)
			data = append(data, set.Data[i*rf.Components:(i+1)*rf.Components]...)
		}
		field := newField(dim, rf.Location, rf.Unit, ids, data)
		field.val.(*fieldObj).support = support
		space := pfapi.NewLabelMap()
		space.Set("time", n)
		coll.entries = append(coll.entries, collectionEntry{space: space, obj: field})
	}
	return map[int]datum{0: {obj: out}}, nil
}

func meshProvider(ev *evaluation, op *operatorObj) (map[int]datum, error) {
	rf, err := ev.resultFile(op)
	if err != nil {
		return nil, err
	}
	seen := map[int64]bool{}
	nodes := []int64{}
	for _, s := range rf.Sets {
		for _, id := range s.IDs {
			if !seen[id] {
				seen[id] = true
				nodes = append(nodes, id)
			}
		}
	}
	mesh := &bagObj{props: map[string]datum{}}
	mesh.set("node_ids", datum{v: pfapi.IntsValue(nodes)})
	mesh.set("nodes_count", datum{v: pfapi.IntValue(len(nodes))})
	mesh.set("unit", datum{v: pfapi.StringValue(rf.Unit)})
	return map[int]datum{0: {obj: &object{kind: pfapi.TypeMesh, val: mesh}}}, nil
}

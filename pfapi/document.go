package pfapi

import (
	"github.com/ipld/go-ipld-prime/schema"
)

// Documents are the textual forms of engine objects: the workflow text exchanged by
// workflow.serialize and workflow.deserialize, and the entity snapshots used by deep copies.
// Clients treat them as opaque; they are described here so engine hosts and tools agree on them.

func init() {
	TypeSystem.Accumulate(schema.SpawnStruct("WorkflowDoc",
		[]schema.StructField{
			schema.SpawnStructField("operators", "List__WorkflowOperatorDoc", false, false),
			schema.SpawnStructField("edges", "List__TopologyEdge", false, false),
			schema.SpawnStructField("inputs", "List__ExposedPin", false, false),
			schema.SpawnStructField("outputs", "List__ExposedPin", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("WorkflowOperatorDoc",
		[]schema.StructField{
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("config", "List__NamedValue", false, false),
			schema.SpawnStructField("constants", "List__PinConstant", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("NamedValue",
		[]schema.StructField{
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("value", "Value", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("PinConstant",
		[]schema.StructField{
			schema.SpawnStructField("pin", "Int64", false, false),
			schema.SpawnStructField("value", "Value", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__WorkflowOperatorDoc", "WorkflowOperatorDoc", false))
	TypeSystem.Accumulate(schema.SpawnList("List__NamedValue", "NamedValue", false))
	TypeSystem.Accumulate(schema.SpawnList("List__PinConstant", "PinConstant", false))

	TypeSystem.Accumulate(schema.SpawnUnion("EntityDoc",
		[]schema.TypeName{
			"FieldDoc",
			"ScopingDoc",
			"CollectionDoc",
			"PrimitiveDoc",
			"LabelMap",
			"DataSourcesDoc",
			"BagDoc",
		},
		schema.SpawnUnionRepresentationKeyed(map[string]schema.TypeName{
			"field":        "FieldDoc",
			"scoping":      "ScopingDoc",
			"collection":   "CollectionDoc",
			"primitive":    "PrimitiveDoc",
			"label_space":  "LabelMap",
			"data_sources": "DataSourcesDoc",
			"bag":          "BagDoc",
		})))
	TypeSystem.Accumulate(schema.SpawnStruct("FieldDoc",
		[]schema.StructField{
			schema.SpawnStructField("dimensionality", "List__Int64", false, false),
			schema.SpawnStructField("location", "String", false, false),
			schema.SpawnStructField("unit", "String", false, false),
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("scoping", "ScopingDoc", false, false),
			schema.SpawnStructField("data", "List__Double", false, false),
			schema.SpawnStructField("pointer", "List__Int64", false, false),
			schema.SpawnStructField("shellLayer", "Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("ScopingDoc",
		[]schema.StructField{
			schema.SpawnStructField("location", "String", false, false),
			schema.SpawnStructField("IDs", "List__Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"IDs": "ids"})))
	TypeSystem.Accumulate(schema.SpawnStruct("CollectionDoc",
		[]schema.StructField{
			schema.SpawnStructField("kind", "String", false, false),
			schema.SpawnStructField("labels", "List__String", false, false),
			schema.SpawnStructField("entries", "List__CollectionEntryDoc", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("CollectionEntryDoc",
		[]schema.StructField{
			schema.SpawnStructField("labels", "LabelMap", false, false),
			schema.SpawnStructField("entity", "EntityDoc", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__CollectionEntryDoc", "CollectionEntryDoc", false))
	TypeSystem.Accumulate(schema.SpawnStruct("PrimitiveDoc",
		[]schema.StructField{
			schema.SpawnStructField("kind", "String", false, false),
			schema.SpawnStructField("values", "Value", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("DataSourcesDoc",
		[]schema.StructField{
			schema.SpawnStructField("paths", "List__DataPath", false, false),
			schema.SpawnStructField("upstreams", "List__DataSourcesDoc", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__DataSourcesDoc", "DataSourcesDoc", false))
	TypeSystem.Accumulate(schema.SpawnStruct("BagDoc",
		[]schema.StructField{
			schema.SpawnStructField("kind", "String", false, false),
			schema.SpawnStructField("properties", "List__NamedValue", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))

	TypeSystem.Accumulate(schema.SpawnStruct("ResultFile",
		[]schema.StructField{
			schema.SpawnStructField("unit", "String", false, false),
			schema.SpawnStructField("location", "String", false, false),
			schema.SpawnStructField("components", "Int64", false, false),
			schema.SpawnStructField("sets", "List__ResultSet", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("ResultSet",
		[]schema.StructField{
			schema.SpawnStructField("time", "Double", false, false),
			schema.SpawnStructField("IDs", "List__Int64", false, false),
			schema.SpawnStructField("data", "List__Double", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"IDs": "ids"})))
	TypeSystem.Accumulate(schema.SpawnList("List__ResultSet", "ResultSet", false))
}

// WorkflowDoc is the text form of a workflow.
// Operators are referred to by their position in Operators.
// Only primitive constants survive; connections to entities are dropped.
type WorkflowDoc struct {
	Operators []WorkflowOperatorDoc
	Edges     []TopologyEdge
	Inputs    []ExposedPin
	Outputs   []ExposedPin
}

type WorkflowOperatorDoc struct {
	Name      string
	Config    []NamedValue
	Constants []PinConstant
}

type NamedValue struct {
	Name  string
	Value Value
}

type PinConstant struct {
	Pin   int
	Value Value
}

// EntityDoc is a snapshot of an entity, used to rebuild it on another engine.
type EntityDoc struct {
	Field       *FieldDoc
	Scoping     *ScopingDoc
	Collection  *CollectionDoc
	Primitive   *PrimitiveDoc
	LabelSpace  *LabelMap
	DataSources *DataSourcesDoc
	Bag         *BagDoc
}

// Kind is the type tag of the entity described.
func (d EntityDoc) Kind() TypeTag {
	switch {
	case d.Field != nil:
		return TypeField
	case d.Scoping != nil:
		return TypeScoping
	case d.Collection != nil:
		return d.Collection.Kind
	case d.Primitive != nil:
		return d.Primitive.Kind
	case d.LabelSpace != nil:
		return TypeLabelSpace
	case d.DataSources != nil:
		return TypeDataSources
	case d.Bag != nil:
		return d.Bag.Kind
	}
	return ""
}

type FieldDoc struct {
	Dimensionality []int64
	Location       Location
	Unit           string
	Name           string
	Scoping        ScopingDoc
	Data           []float64
	Pointer        []int64
	ShellLayer     int64
}

type ScopingDoc struct {
	Location Location
	IDs      []int64
}

type CollectionDoc struct {
	Kind    TypeTag
	Labels  []string
	Entries []CollectionEntryDoc
}

type CollectionEntryDoc struct {
	Labels LabelMap
	Entity EntityDoc
}

type PrimitiveDoc struct {
	Kind   TypeTag
	Values Value
}

type DataSourcesDoc struct {
	Paths     []DataPath
	Upstreams []DataSourcesDoc
}

type BagDoc struct {
	Kind       TypeTag
	Properties []NamedValue
}

// ResultFile is the result file format read by the reference engine's result operators.
// Each set holds one time step: entity ids and their flattened component data.
type ResultFile struct {
	Unit       string
	Location   Location
	Components int
	Sets       []ResultSet
}

type ResultSet struct {
	Time float64
	IDs  []int64
	Data []float64
}

package pfapi

import (
	"github.com/ipld/go-ipld-prime/schema"
)

func init() {
	TypeSystem.Accumulate(schema.SpawnStruct("Topology",
		[]schema.StructField{
			schema.SpawnStructField("operators", "List__TopologyOperator", false, false),
			schema.SpawnStructField("edges", "List__TopologyEdge", false, false),
			schema.SpawnStructField("inputs", "List__ExposedPin", false, false),
			schema.SpawnStructField("outputs", "List__ExposedPin", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("TopologyOperator",
		[]schema.StructField{
			schema.SpawnStructField("ID", "Int64", false, false),
			schema.SpawnStructField("name", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"ID": "id"})))
	TypeSystem.Accumulate(schema.SpawnStruct("TopologyEdge",
		[]schema.StructField{
			schema.SpawnStructField("from", "Int64", false, false),
			schema.SpawnStructField("fromPin", "Int64", false, false),
			schema.SpawnStructField("to", "Int64", false, false),
			schema.SpawnStructField("toPin", "Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("ExposedPin",
		[]schema.StructField{
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("operator", "Int64", false, false),
			schema.SpawnStructField("pin", "Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__TopologyOperator", "TopologyOperator", false))
	TypeSystem.Accumulate(schema.SpawnList("List__TopologyEdge", "TopologyEdge", false))
	TypeSystem.Accumulate(schema.SpawnList("List__ExposedPin", "ExposedPin", false))
}

// Topology is the structured description of a workflow graph.
// Operator ids are positions in Operators.
type Topology struct {
	Operators []TopologyOperator
	Edges     []TopologyEdge
	Inputs    []ExposedPin
	Outputs   []ExposedPin
}

type TopologyOperator struct {
	ID   int
	Name string
}

// TopologyEdge connects output pin FromPin of operator From to input pin ToPin of operator To.
type TopologyEdge struct {
	From    int
	FromPin int
	To      int
	ToPin   int
}

// ExposedPin is a named boundary pin of a workflow.
type ExposedPin struct {
	Name     string
	Operator int
	Pin      int
}

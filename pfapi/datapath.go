package pfapi

import (
	"github.com/ipld/go-ipld-prime/schema"
)

func init() {
	TypeSystem.Accumulate(schema.SpawnStruct("DataPath",
		[]schema.StructField{
			schema.SpawnStructField("key", "String", false, false),
			schema.SpawnStructField("path", "String", false, false),
			schema.SpawnStructField("domain", "Int64", false, false),
			schema.SpawnStructField("result", "Bool", false, false),
			schema.SpawnStructField("namespace", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__DataPath", "DataPath", false))
}

// NoDomain marks a data path that is not tied to a distributed domain.
const NoDomain = -1

// DataPath is one file registered in a data source.
// Result marks result files, as opposed to accessory files.
type DataPath struct {
	Key       string
	Path      string
	Domain    int
	Result    bool
	Namespace string
}

package pfapi

import (
	"sort"
	"strings"
)

// TypeTag is the symbolic name of a value type flowing through operator pins.
// Entity kinds use the same tags, so a handle's kind is also the tag it connects as.
type TypeTag string

const (
	TypeBool    TypeTag = "bool"
	TypeInt32   TypeTag = "int32"
	TypeInt64   TypeTag = "int64"
	TypeUint64  TypeTag = "uint64"
	TypeDouble  TypeTag = "double"
	TypeString  TypeTag = "string"
	TypeBytes   TypeTag = "bytes"
	TypeInts    TypeTag = "vector<int32>"
	TypeDoubles TypeTag = "vector<double>"
	TypeStrings TypeTag = "vector<string>"
	TypeAny     TypeTag = "any"

	TypeOperator             TypeTag = "operator"
	TypeWorkflow             TypeTag = "workflow"
	TypeField                TypeTag = "field"
	TypeFieldsContainer      TypeTag = "fields_container"
	TypeScoping              TypeTag = "scoping"
	TypeScopingsContainer    TypeTag = "scopings_container"
	TypeMesh                 TypeTag = "abstract_meshed_region"
	TypeMeshesContainer      TypeTag = "meshes_container"
	TypeDataSources          TypeTag = "data_sources"
	TypeTimeFreqSupport      TypeTag = "time_freq_support"
	TypeCyclicSupport        TypeTag = "cyclic_support"
	TypeResultInfo           TypeTag = "result_info"
	TypeMeshInfo             TypeTag = "mesh_info"
	TypeDataTree             TypeTag = "data_tree"
	TypeAnyEntity            TypeTag = "any_entity"
	TypeGenericDataContainer TypeTag = "generic_data_container"
	TypeLabelSpace           TypeTag = "label_space"
	TypeIntCollection        TypeTag = "int_collection"
	TypeDoubleCollection     TypeTag = "double_collection"
	TypeStringCollection     TypeTag = "string_collection"
)

// IsPrimitive reports whether values of this tag travel by value rather than by handle.
func (t TypeTag) IsPrimitive() bool {
	switch t {
	case TypeBool, TypeInt32, TypeInt64, TypeUint64, TypeDouble, TypeString, TypeBytes,
		TypeInts, TypeDoubles, TypeStrings:
		return true
	}
	return false
}

// TypeSet is the set of tags accepted or produced by a pin.
type TypeSet []TypeTag

// Contains reports whether the set admits t. A set holding TypeAny admits everything.
func (s TypeSet) Contains(t TypeTag) bool {
	for _, x := range s {
		if x == t || x == TypeAny {
			return true
		}
	}
	return false
}

// Intersects reports whether any tag of other is admitted by s.
func (s TypeSet) Intersects(other TypeSet) bool {
	for _, t := range other {
		if s.Contains(t) {
			return true
		}
		if t == TypeAny {
			return true
		}
	}
	return false
}

func (s TypeSet) String() string {
	names := make([]string, len(s))
	for i, t := range s {
		names[i] = string(t)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Location tags where field values live on the support.
type Location string

const (
	LocationNodal          Location = "Nodal"
	LocationElemental      Location = "Elemental"
	LocationElementalNodal Location = "ElementalNodal"
	LocationTimeFreq       Location = "TimeFreq_sets"
	LocationOverall        Location = "Overall"
	LocationFaces          Location = "Faces"
	LocationZone           Location = "zone"
)

// Nature is the tensor nature of a field's elementary data.
type Nature int

const (
	NatureScalar Nature = iota
	NatureVector
	NatureMatrix
	NatureSymmetricMatrix
)

func (n Nature) String() string {
	switch n {
	case NatureScalar:
		return "scalar"
	case NatureVector:
		return "vector"
	case NatureMatrix:
		return "matrix"
	case NatureSymmetricMatrix:
		return "symmatrix"
	}
	return "unknown"
}

// Dimensionality is a nature plus the component shape of one elementary datum.
type Dimensionality struct {
	Nature Nature
	Shape  []int
}

// ScalarDim, VectorDim and friends build the common dimensionalities.
func ScalarDim() Dimensionality      { return Dimensionality{NatureScalar, []int{1}} }
func VectorDim(n int) Dimensionality { return Dimensionality{NatureVector, []int{n}} }
func SymMatrixDim() Dimensionality   { return Dimensionality{NatureSymmetricMatrix, []int{6}} }
func MatrixDim(rows, cols int) Dimensionality {
	return Dimensionality{NatureMatrix, []int{rows, cols}}
}

// ElementarySize is the number of components in one elementary datum.
func (d Dimensionality) ElementarySize() int {
	n := 1
	for _, s := range d.Shape {
		n *= s
	}
	return n
}

// Ints flattens the dimensionality for transport: the nature followed by the shape.
func (d Dimensionality) Ints() []int64 {
	out := make([]int64, 0, len(d.Shape)+1)
	out = append(out, int64(d.Nature))
	for _, s := range d.Shape {
		out = append(out, int64(s))
	}
	return out
}

// DimensionalityFromInts is the inverse of Dimensionality.Ints.
func DimensionalityFromInts(v []int64) Dimensionality {
	if len(v) == 0 {
		return ScalarDim()
	}
	d := Dimensionality{Nature: Nature(v[0])}
	for _, s := range v[1:] {
		d.Shape = append(d.Shape, int(s))
	}
	if len(d.Shape) == 0 {
		d.Shape = []int{1}
	}
	return d
}

// ShellLayer tags which layers of shell elements a field's data describes.
type ShellLayer int

const (
	ShellLayerTop ShellLayer = iota
	ShellLayerBottom
	ShellLayerTopBottom
	ShellLayerMid
	ShellLayerTopBottomMid
	ShellLayerNone
	ShellLayerIndependent
)

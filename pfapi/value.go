package pfapi

import (
	"fmt"
	"strings"

	"github.com/ipld/go-ipld-prime/schema"
)

func init() {
	TypeSystem.Accumulate(schema.SpawnUnion("Value",
		[]schema.TypeName{
			"Bool",
			"Int32",
			"Int64",
			"Uint64",
			"Double",
			"String",
			"Bytes",
			"HandleRef",
			"List__Int64",
			"List__Double",
			"List__String",
			"LabelMap",
		},
		schema.SpawnUnionRepresentationKeyed(map[string]schema.TypeName{
			"bool":    "Bool",
			"i32":     "Int32",
			"i64":     "Int64",
			"u64":     "Uint64",
			"f64":     "Double",
			"str":     "String",
			"bytes":   "Bytes",
			"handle":  "HandleRef",
			"ints":    "List__Int64",
			"doubles": "List__Double",
			"strings": "List__String",
			"labels":  "LabelMap",
		})))
	TypeSystem.Accumulate(schema.SpawnStruct("HandleRef",
		[]schema.StructField{
			schema.SpawnStructField("ID", "Uint64", false, false),
			schema.SpawnStructField("kind", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(map[string]string{"ID": "id"})))
	// Parallel lists rather than a map: codecs sort map keys, and label order matters.
	TypeSystem.Accumulate(schema.SpawnStruct("LabelMap",
		[]schema.StructField{
			schema.SpawnStructField("keys", "List__String", false, false),
			schema.SpawnStructField("values", "List__Int64", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__Value", "Value", false))
}

// Value is one typed argument or result crossing the transport.
// Exactly one member is set; the zero Value means "no value".
type Value struct {
	Bool    *bool
	Int32   *int32
	Int64   *int64
	Uint64  *uint64
	Double  *float64
	Str     *string
	Bytes   *[]byte
	Handle  *HandleRef
	Ints    *[]int64
	Doubles *[]float64
	Strings *[]string
	Labels  *LabelMap
}

// HandleRef names an engine-owned object on the wire.
type HandleRef struct {
	ID   uint64
	Kind TypeTag
}

// LabelMap is an ordered string to integer mapping.
// Keys and Values are parallel; Set keeps them so.
type LabelMap struct {
	Keys   []string
	Values []int64
}

// NewLabelMap returns an empty LabelMap ready for Set.
// It is the zero value, so it compares equal to a decoded empty map.
func NewLabelMap() LabelMap {
	return LabelMap{}
}

func (m LabelMap) index(name string) int {
	for i, k := range m.Keys {
		if k == name {
			return i
		}
	}
	return -1
}

// Set adds or replaces a label, keeping first-insertion order.
func (m *LabelMap) Set(name string, v int64) {
	if i := m.index(name); i >= 0 {
		m.Values[i] = v
		return
	}
	m.Keys = append(m.Keys, name)
	m.Values = append(m.Values, v)
}

// Get returns the value of a label.
func (m LabelMap) Get(name string) (int64, bool) {
	i := m.index(name)
	if i < 0 || i >= len(m.Values) {
		return 0, false
	}
	return m.Values[i], true
}

// Len is the number of labels.
func (m LabelMap) Len() int { return len(m.Keys) }

// Matches reports whether every label of m has the same value in other.
func (m LabelMap) Matches(other LabelMap) bool {
	for i, k := range m.Keys {
		v, ok := other.Get(k)
		if !ok || i >= len(m.Values) || v != m.Values[i] {
			return false
		}
	}
	return true
}

func (m LabelMap) String() string {
	parts := make([]string, len(m.Keys))
	for i, k := range m.Keys {
		v, _ := m.Get(k)
		parts[i] = fmt.Sprintf("%s:%d", k, v)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func BoolValue(v bool) Value         { return Value{Bool: &v} }
func Int32Value(v int32) Value       { return Value{Int32: &v} }
func Int64Value(v int64) Value       { return Value{Int64: &v} }
func Uint64Value(v uint64) Value     { return Value{Uint64: &v} }
func DoubleValue(v float64) Value    { return Value{Double: &v} }
func StringValue(v string) Value     { return Value{Str: &v} }
func BytesValue(v []byte) Value      { return Value{Bytes: &v} }
func IntsValue(v []int64) Value      { return Value{Ints: &v} }
func DoublesValue(v []float64) Value { return Value{Doubles: &v} }
func StringsValue(v []string) Value  { return Value{Strings: &v} }
func LabelsValue(v LabelMap) Value   { return Value{Labels: &v} }
func HandleValue(h HandleRef) Value  { return Value{Handle: &h} }
func IntValue(v int) Value           { return Int32Value(int32(v)) }
func IntsFromInts(v []int) Value     { return IntsValue(widen(v)) }
func PinValue(pin int) Value         { return Int32Value(int32(pin)) }
func TagValue(t TypeTag) Value       { return StringValue(string(t)) }
func LocationValue(l Location) Value { return StringValue(string(l)) }
func widen(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

// IsNone reports whether no member is set.
func (v Value) IsNone() bool {
	return v.Tag() == ""
}

// Tag is the type tag of the set member; handles report their kind.
func (v Value) Tag() TypeTag {
	switch {
	case v.Bool != nil:
		return TypeBool
	case v.Int32 != nil:
		return TypeInt32
	case v.Int64 != nil:
		return TypeInt64
	case v.Uint64 != nil:
		return TypeUint64
	case v.Double != nil:
		return TypeDouble
	case v.Str != nil:
		return TypeString
	case v.Bytes != nil:
		return TypeBytes
	case v.Handle != nil:
		return v.Handle.Kind
	case v.Ints != nil:
		return TypeInts
	case v.Doubles != nil:
		return TypeDoubles
	case v.Strings != nil:
		return TypeStrings
	case v.Labels != nil:
		return TypeLabelSpace
	}
	return ""
}

// AsBool reads a boolean. Engines before 3.0 send booleans as int32.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsBool() (bool, error) {
	switch {
	case v.Bool != nil:
		return *v.Bool, nil
	case v.Int32 != nil:
		return *v.Int32 != 0, nil
	}
	return false, ErrorTypeMismatch("reading value", TypeBool, v.Tag())
}

// AsInt reads any integer member.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsInt() (int64, error) {
	switch {
	case v.Int32 != nil:
		return int64(*v.Int32), nil
	case v.Int64 != nil:
		return *v.Int64, nil
	case v.Uint64 != nil:
		return int64(*v.Uint64), nil
	}
	return 0, ErrorTypeMismatch("reading value", TypeInt64, v.Tag())
}

// AsDouble reads a double; integer members are converted.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsDouble() (float64, error) {
	if v.Double != nil {
		return *v.Double, nil
	}
	if i, err := v.AsInt(); err == nil {
		return float64(i), nil
	}
	return 0, ErrorTypeMismatch("reading value", TypeDouble, v.Tag())
}

// AsString reads a string.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsString() (string, error) {
	if v.Str != nil {
		return *v.Str, nil
	}
	return "", ErrorTypeMismatch("reading value", TypeString, v.Tag())
}

// AsBytes reads raw bytes.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsBytes() ([]byte, error) {
	if v.Bytes != nil {
		return *v.Bytes, nil
	}
	return nil, ErrorTypeMismatch("reading value", TypeBytes, v.Tag())
}

// StringListSeparator joins string lists for engines older than 4.0,
// which have no variable-length string list output.
const StringListSeparator = "\x00"

// AsStrings reads a string list, accepting the joined single-string encoding.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsStrings() ([]string, error) {
	switch {
	case v.Strings != nil:
		return *v.Strings, nil
	case v.Str != nil:
		if *v.Str == "" {
			return []string{}, nil
		}
		return strings.Split(*v.Str, StringListSeparator), nil
	}
	return nil, ErrorTypeMismatch("reading value", TypeStrings, v.Tag())
}

// AsInts reads an integer list.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsInts() ([]int64, error) {
	if v.Ints != nil {
		return *v.Ints, nil
	}
	return nil, ErrorTypeMismatch("reading value", TypeInts, v.Tag())
}

// AsDoubles reads a double list.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsDoubles() ([]float64, error) {
	if v.Doubles != nil {
		return *v.Doubles, nil
	}
	return nil, ErrorTypeMismatch("reading value", TypeDoubles, v.Tag())
}

// AsLabels reads a label map.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsLabels() (LabelMap, error) {
	if v.Labels != nil {
		return *v.Labels, nil
	}
	return LabelMap{}, ErrorTypeMismatch("reading value", TypeLabelSpace, v.Tag())
}

// AsHandle reads a handle reference.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func (v Value) AsHandle() (HandleRef, error) {
	if v.Handle != nil {
		return *v.Handle, nil
	}
	return HandleRef{}, ErrorTypeMismatch("reading value", TypeAny, v.Tag())
}

func (v Value) String() string {
	switch {
	case v.Bool != nil:
		return fmt.Sprint(*v.Bool)
	case v.Int32 != nil:
		return fmt.Sprint(*v.Int32)
	case v.Int64 != nil:
		return fmt.Sprint(*v.Int64)
	case v.Uint64 != nil:
		return fmt.Sprint(*v.Uint64)
	case v.Double != nil:
		return fmt.Sprint(*v.Double)
	case v.Str != nil:
		return fmt.Sprintf("%q", *v.Str)
	case v.Bytes != nil:
		return fmt.Sprintf("bytes[%d]", len(*v.Bytes))
	case v.Handle != nil:
		return fmt.Sprintf("%s#%d", v.Handle.Kind, v.Handle.ID)
	case v.Ints != nil:
		return fmt.Sprint(*v.Ints)
	case v.Doubles != nil:
		return fmt.Sprint(*v.Doubles)
	case v.Strings != nil:
		return fmt.Sprint(*v.Strings)
	case v.Labels != nil:
		return v.Labels.String()
	}
	return "none"
}

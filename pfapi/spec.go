package pfapi

import (
	"sort"

	"github.com/ipld/go-ipld-prime/schema"
)

func init() {
	TypeSystem.Accumulate(schema.SpawnStruct("OperatorSpec",
		[]schema.StructField{
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("description", "String", false, false),
			schema.SpawnStructField("inputs", "List__PinSpec", false, false),
			schema.SpawnStructField("outputs", "List__PinSpec", false, false),
			schema.SpawnStructField("config", "List__ConfigOption", false, false),
			schema.SpawnStructField("license", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("PinSpec",
		[]schema.StructField{
			schema.SpawnStructField("index", "Int64", false, false),
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("types", "List__String", false, false),
			schema.SpawnStructField("optional", "Bool", false, false),
			schema.SpawnStructField("ellipsis", "Bool", false, false),
			schema.SpawnStructField("doc", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnStruct("ConfigOption",
		[]schema.StructField{
			schema.SpawnStructField("name", "String", false, false),
			schema.SpawnStructField("type", "String", false, false),
			schema.SpawnStructField("default", "Value", false, false),
			schema.SpawnStructField("doc", "String", false, false),
		},
		schema.SpawnStructRepresentationMap(nil)))
	TypeSystem.Accumulate(schema.SpawnList("List__PinSpec", "PinSpec", false))
	TypeSystem.Accumulate(schema.SpawnList("List__ConfigOption", "ConfigOption", false))
}

// OperatorSpec describes what an operator name expects and produces.
// Specs are immutable once fetched.
type OperatorSpec struct {
	Name        string
	Description string
	Inputs      []PinSpec
	Outputs     []PinSpec
	Config      []ConfigOption
	License     string // capability the engine must hold to run the operator; empty when free
}

// PinSpec describes one input or output pin.
//
// An ellipsis pin accepts any number of values at consecutive indices starting at Index.
type PinSpec struct {
	Index    int
	Name     string
	Types    TypeSet
	Optional bool
	Ellipsis bool
	Doc      string
}

// ConfigOption is one configuration key an operator declares.
type ConfigOption struct {
	Name    string
	Type    TypeTag
	Default Value
	Doc     string
}

// Accepts reports whether the pin takes a value of tag.
// Integers widen to the other integer width and to double;
// primitive collections connect where the matching vector is accepted.
func (p PinSpec) Accepts(tag TypeTag) bool {
	if p.Types.Contains(tag) {
		return true
	}
	switch tag {
	case TypeInt32:
		return p.Types.Contains(TypeInt64) || p.Types.Contains(TypeDouble)
	case TypeInt64:
		return p.Types.Contains(TypeInt32) || p.Types.Contains(TypeDouble)
	case TypeIntCollection:
		return p.Types.Contains(TypeInts)
	case TypeDoubleCollection:
		return p.Types.Contains(TypeDoubles)
	case TypeStringCollection:
		return p.Types.Contains(TypeStrings)
	}
	return false
}

// Input finds the input pin spec covering index, honoring ellipsis pins.
func (s *OperatorSpec) Input(index int) (PinSpec, bool) {
	return findPin(s.Inputs, index)
}

// Output finds the output pin spec at index.
func (s *OperatorSpec) Output(index int) (PinSpec, bool) {
	return findPin(s.Outputs, index)
}

// InputNamed finds an input pin spec by name.
func (s *OperatorSpec) InputNamed(name string) (PinSpec, bool) {
	return findPinNamed(s.Inputs, name)
}

// OutputNamed finds an output pin spec by name.
func (s *OperatorSpec) OutputNamed(name string) (PinSpec, bool) {
	return findPinNamed(s.Outputs, name)
}

// ConfigOption finds a declared configuration option.
func (s *OperatorSpec) ConfigOption(name string) (ConfigOption, bool) {
	for _, o := range s.Config {
		if o.Name == name {
			return o, true
		}
	}
	return ConfigOption{}, false
}

// SortedInputs returns the input pins ordered by index.
func (s *OperatorSpec) SortedInputs() []PinSpec { return sortedPins(s.Inputs) }

// SortedOutputs returns the output pins ordered by index.
func (s *OperatorSpec) SortedOutputs() []PinSpec { return sortedPins(s.Outputs) }

func findPin(pins []PinSpec, index int) (PinSpec, bool) {
	var best *PinSpec
	for i := range pins {
		p := &pins[i]
		if p.Index == index {
			return *p, true
		}
		if p.Ellipsis && index > p.Index && (best == nil || p.Index > best.Index) {
			best = p
		}
	}
	if best != nil {
		return *best, true
	}
	return PinSpec{}, false
}

func findPinNamed(pins []PinSpec, name string) (PinSpec, bool) {
	for _, p := range pins {
		if p.Name == name {
			return p, true
		}
	}
	return PinSpec{}, false
}

func sortedPins(pins []PinSpec) []PinSpec {
	out := append([]PinSpec(nil), pins...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

package operator

import (
	"context"
	"fmt"
	"math"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
)

// producer is implemented by Operator and by the typed stubs embedding it.
type producer interface {
	Op() *Operator
}

// Path is a file path connected as a string.
type Path string

// Source is a connection value sorted by how it reaches an input:
// an operator output, an engine object, a label space to build, a list or a plain value.
// Exactly one of Output, Entity, Labels or Value is set.
type Source struct {
	Output *Operator
	Pin    int
	Entity entity.Entity
	Labels *pfapi.LabelMap
	Value  pfapi.Value
	List   bool // Value is a list of primitives
}

// SourceOf sorts v, which may be:
//
//   - a Go primitive: bool, int, int32, int64, uint64, float32, float64, string, []byte, or a Path
//   - a list of primitives ([]int, []int64, []float64, []string)
//   - a label map (map[string]int, map[string]int64 or pfapi.LabelMap)
//   - an *Operator, meaning its output 0, an *Output, or a stub embedding an operator
//   - any entity wrapper, including workflows
//   - a pfapi.Value
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when v is nil or of none of these kinds
func SourceOf(v interface{}) (Source, error) {
	switch x := v.(type) {
	case nil:
		return Source{}, pfapi.ErrorInvalidArgument("cannot connect nothing")
	case *Operator:
		return Source{Output: x}, nil
	case *Output:
		return Source{Output: x.op, Pin: x.spec.Index}, nil
	case producer:
		return Source{Output: x.Op()}, nil
	case entity.Entity:
		return Source{Entity: x}, nil
	case pfapi.Value:
		return Source{Value: x}, nil
	case Path:
		return Source{Value: pfapi.StringValue(string(x))}, nil
	case []int:
		return Source{Value: pfapi.IntsFromInts(x), List: true}, nil
	case []int64:
		return Source{Value: pfapi.IntsValue(x), List: true}, nil
	case []float64:
		return Source{Value: pfapi.DoublesValue(x), List: true}, nil
	case []string:
		return Source{Value: pfapi.StringsValue(x), List: true}, nil
	case map[string]int64:
		m := entity.Labels(x)
		return Source{Labels: &m}, nil
	case map[string]int:
		wide := make(map[string]int64, len(x))
		for k, v := range x {
			wide[k] = int64(v)
		}
		m := entity.Labels(wide)
		return Source{Labels: &m}, nil
	case pfapi.LabelMap:
		return Source{Labels: &x}, nil
	}
	val, ok := primitive(v)
	if !ok {
		return Source{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("cannot connect a %T", v))
	}
	return Source{Value: val}, nil
}

// Check reports whether input p of operator takes s, as far as the client can tell.
// Outputs that declare no types are left for the engine to check.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when p refuses s or s names an undeclared output
func (s Source) Check(operator string, p pfapi.PinSpec) error {
	switch {
	case s.Output != nil:
		out, ok := s.Output.spec.Output(s.Pin)
		if !ok {
			return pfapi.ErrorPinOutOfRange(s.Output.name, "output", s.Pin)
		}
		if len(out.Types) > 0 && !p.Types.Intersects(out.Types) {
			return pfapi.ErrorPinType(operator, p.Name, out.Types[0], p.Types)
		}
	case s.Entity != nil:
		if kind := s.Entity.Handle().Kind(); !p.Accepts(kind) {
			return pfapi.ErrorPinType(operator, p.Name, kind, p.Types)
		}
	case s.Labels != nil:
		if !p.Accepts(pfapi.TypeLabelSpace) {
			return pfapi.ErrorPinType(operator, p.Name, pfapi.TypeLabelSpace, p.Types)
		}
	case !s.Value.IsNone() && s.Value.Handle == nil:
		if tag := s.Value.Tag(); !p.Accepts(tag) {
			return pfapi.ErrorPinType(operator, p.Name, tag, p.Types)
		}
	}
	return nil
}

// Connect sets input pin to v, any of the kinds accepted by SourceOf.
// Lists are sent as a primitive collection when the pin takes one and as a vector otherwise;
// label maps are sent as a label space.
// Connecting an operator to itself fails.
// Connect does not evaluate anything.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when pin is not declared, v is the operator itself or of a kind the pin refuses
//   - see engine.Engine.Invoke
func (o *Operator) Connect(ctx context.Context, pin int, v interface{}) error {
	p, ok := o.spec.Input(pin)
	if !ok {
		return pfapi.ErrorPinOutOfRange(o.name, "input", pin)
	}
	src, err := SourceOf(v)
	if err != nil {
		return pfapi.Annotate(err, "pin "+p.Name+" of "+o.name)
	}
	switch {
	case src.Output != nil:
		return o.connectOutput(ctx, pin, p, src.Output, src.Pin)
	case src.Entity != nil:
		return o.connectEntity(ctx, pin, p, src.Entity)
	case src.Labels != nil:
		return o.connectLabels(ctx, pin, p, *src.Labels)
	case src.List:
		return o.connectList(ctx, pin, p, src.Value)
	}
	return o.connectValue(ctx, pin, p, src.Value)
}

// primitive converts Go scalars to wire values.
func primitive(v interface{}) (pfapi.Value, bool) {
	switch x := v.(type) {
	case bool:
		return pfapi.BoolValue(x), true
	case int:
		if x < math.MinInt32 || x > math.MaxInt32 {
			return pfapi.Int64Value(int64(x)), true
		}
		return pfapi.IntValue(x), true
	case int32:
		return pfapi.Int32Value(x), true
	case int64:
		return pfapi.Int64Value(x), true
	case uint64:
		return pfapi.Uint64Value(x), true
	case float32:
		return pfapi.DoubleValue(float64(x)), true
	case float64:
		return pfapi.DoubleValue(x), true
	case string:
		return pfapi.StringValue(x), true
	case []byte:
		return pfapi.BytesValue(x), true
	}
	return pfapi.Value{}, false
}

func (o *Operator) connectValue(ctx context.Context, pin int, p pfapi.PinSpec, v pfapi.Value) error {
	if v.IsNone() {
		return pfapi.ErrorInvalidArgument(fmt.Sprintf("cannot connect an empty value to pin %s of %s", p.Name, o.name))
	}
	if v.Handle != nil {
		return pfapi.ErrorInvalidArgument("connect engine objects through their wrapper")
	}
	if err := (Source{Value: v}).Check(o.name, p); err != nil {
		return err
	}
	_, err := o.invoke(ctx, pfapi.OpOperatorConnect, engine.V(pfapi.PinValue(pin)), engine.V(v))
	return err
}

func (o *Operator) connectEntity(ctx context.Context, pin int, p pfapi.PinSpec, w entity.Entity) error {
	h := w.Handle()
	if h == o.h || (h.Engine() == o.h.Engine() && h.ID() == o.h.ID()) {
		return pfapi.ErrorInvalidArgument("operator " + o.name + " cannot be connected to itself")
	}
	if err := (Source{Entity: w}).Check(o.name, p); err != nil {
		return err
	}
	_, err := o.invoke(ctx, pfapi.OpOperatorConnect, engine.V(pfapi.PinValue(pin)), engine.H(h))
	return err
}

func (o *Operator) connectOutput(ctx context.Context, pin int, p pfapi.PinSpec, src *Operator, srcPin int) error {
	if src == o || src.h.ID() == o.h.ID() && src.Engine() == o.Engine() {
		return pfapi.ErrorInvalidArgument("operator " + o.name + " cannot be connected to itself")
	}
	if err := (Source{Output: src, Pin: srcPin}).Check(o.name, p); err != nil {
		return err
	}
	_, err := o.invoke(ctx, pfapi.OpOperatorConnectOutput,
		engine.V(pfapi.PinValue(pin)), engine.H(src.h), engine.V(pfapi.PinValue(srcPin)))
	return err
}

var collectionOf = map[pfapi.TypeTag]pfapi.TypeTag{
	pfapi.TypeInts:    pfapi.TypeIntCollection,
	pfapi.TypeDoubles: pfapi.TypeDoubleCollection,
	pfapi.TypeStrings: pfapi.TypeStringCollection,
}

// connectList wraps v into a primitive collection when the pin takes one.
// The engine keeps the collection alive through the connection.
func (o *Operator) connectList(ctx context.Context, pin int, p pfapi.PinSpec, v pfapi.Value) error {
	kind := collectionOf[v.Tag()]
	if !p.Types.Contains(kind) || p.Types.Contains(pfapi.TypeAny) {
		return o.connectValue(ctx, pin, p, v)
	}
	var w entity.Entity
	var err error
	switch kind {
	case pfapi.TypeIntCollection:
		w, err = entity.NewIntCollection(ctx, o.Engine(), *v.Ints)
	case pfapi.TypeDoubleCollection:
		w, err = entity.NewDoubleCollection(ctx, o.Engine(), *v.Doubles)
	default:
		w, err = entity.NewStringCollection(ctx, o.Engine(), *v.Strings)
	}
	if err != nil {
		return err
	}
	defer w.Handle().Release(ctx)
	return o.connectEntity(ctx, pin, p, w)
}

func (o *Operator) connectLabels(ctx context.Context, pin int, p pfapi.PinSpec, m pfapi.LabelMap) error {
	if err := (Source{Labels: &m}).Check(o.name, p); err != nil {
		return err
	}
	ls, err := entity.NewLabelSpace(ctx, o.Engine(), m)
	if err != nil {
		return err
	}
	defer ls.Release(ctx)
	return o.connectEntity(ctx, pin, p, ls)
}

// Disconnect clears input pin.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when pin is not declared
//   - see engine.Engine.Invoke
func (o *Operator) Disconnect(ctx context.Context, pin int) error {
	if _, ok := o.spec.Input(pin); !ok {
		return pfapi.ErrorPinOutOfRange(o.name, "input", pin)
	}
	_, err := o.invoke(ctx, pfapi.OpOperatorConnect, engine.V(pfapi.PinValue(pin)))
	return err
}

// ConnectNamed is Connect on the input called name.
//
// Errors:
//
//   - pinflow-error-not-found -- when the operator has no such input
//   - see Operator.Connect
func (o *Operator) ConnectNamed(ctx context.Context, name string, v interface{}) error {
	in, err := o.Inputs.Named(name)
	if err != nil {
		return err
	}
	return in.Connect(ctx, v)
}

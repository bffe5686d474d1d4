package enginetest

import (
	"fmt"
	"sort"

	"github.com/warptools/pinflow/pfapi"
)

type opDef struct {
	spec pfapi.OperatorSpec
	eval func(ev *evaluation, op *operatorObj) (map[int]datum, error)
}

var catalogue = map[string]*opDef{}

func define(spec pfapi.OperatorSpec, eval func(ev *evaluation, op *operatorObj) (map[int]datum, error)) {
	if spec.Config == nil {
		spec.Config = []pfapi.ConfigOption{}
	}
	catalogue[spec.Name] = &opDef{spec: spec, eval: eval}
}

type operatorObj struct {
	def    *opDef
	inputs map[int]input
	config map[string]pfapi.Value
}

// input is what an operator pin is connected to: a datum, or an upstream operator output.
type input struct {
	d      datum
	src    *object
	srcPin int
}

func newOperator(def *opDef) *object {
	op := &operatorObj{def: def, inputs: map[int]input{}, config: map[string]pfapi.Value{}}
	for _, c := range def.spec.Config {
		op.config[c.Name] = c.Default
	}
	return &object{kind: pfapi.TypeOperator, val: op}
}

func pin(index int, name string, optional bool, doc string, types ...pfapi.TypeTag) pfapi.PinSpec {
	return pfapi.PinSpec{Index: index, Name: name, Types: pfapi.TypeSet(types), Optional: optional, Doc: doc}
}

// upstream reports whether target feeds from, directly or not.
func upstream(from *object, target *object) bool {
	seen := map[*object]bool{}
	var walk func(o *object) bool
	walk = func(o *object) bool {
		if o == target {
			return true
		}
		if seen[o] {
			return false
		}
		seen[o] = true
		for _, in := range o.val.(*operatorObj).inputs {
			if in.src != nil && walk(in.src) {
				return true
			}
		}
		return false
	}
	return walk(from)
}

func init() {
	register(pfapi.OpOperatorList, false, func(c *call) (pfapi.Value, error) {
		return c.b.stringsValue(c.b.Operators()), nil
	})
	register(pfapi.OpOperatorSpec, false, func(c *call) (pfapi.Value, error) {
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		def, ok := catalogue[name]
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound("operator", name)
		}
		raw, err := pfapi.EncodeJSON(&def.spec, "OperatorSpec")
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.BytesValue(raw), nil
	})
	register(pfapi.OpOperatorNew, false, func(c *call) (pfapi.Value, error) {
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		def, ok := catalogue[name]
		if !ok || name == "" {
			return pfapi.Value{}, pfapi.ErrorNotFound("operator", name)
		}
		return c.b.handle(newOperator(def)), nil
	})
	register(pfapi.OpOperatorName, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.StringValue(op.def.spec.Name), nil
	})
	register(pfapi.OpOperatorConnect, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		n, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if !c.has(1) {
			return pfapi.Value{}, connect(c.target, op, n, datum{})
		}
		d, err := c.datum(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.Value{}, connect(c.target, op, n, d)
	})
	register(pfapi.OpOperatorConnectOutput, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		n, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		src, err := c.obj(1, pfapi.TypeOperator)
		if err != nil {
			return pfapi.Value{}, err
		}
		srcPin, err := c.int(2)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.Value{}, connectOutput(c.target, op, n, src, srcPin)
	})
	register(pfapi.OpOperatorGetOutput, true, func(c *call) (pfapi.Value, error) {
		n, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		want := pfapi.TypeTag("")
		if c.has(1) {
			s, err := c.str(1)
			if err != nil {
				return pfapi.Value{}, err
			}
			want = pfapi.TypeTag(s)
		}
		d, err := c.evaluate(c.target, n, want)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.result(d), nil
	})
	register(pfapi.OpOperatorRun, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		ev := c.newEvaluation(c.target)
		_, err = ev.run(c.target, op)
		return pfapi.Value{}, err
	})
	register(pfapi.OpOperatorConfigSet, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		opt, ok := op.def.spec.ConfigOption(name)
		if !ok {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("operator %s has no configuration option %q", op.def.spec.Name, name))
		}
		v, err := c.arg(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		v, err = coerceOption(opt, v)
		if err != nil {
			return pfapi.Value{}, err
		}
		op.config[name] = v
		return pfapi.Value{}, nil
	})
	register(pfapi.OpOperatorConfigGet, true, func(c *call) (pfapi.Value, error) {
		op, err := payload[*operatorObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		v, ok := op.config[name]
		if !ok {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("operator %s has no configuration option %q", op.def.spec.Name, name))
		}
		return c.b.encodeResult(v), nil
	})
}

func connect(target *object, op *operatorObj, n int, d datum) error {
	p, ok := op.def.spec.Input(n)
	if !ok {
		return pfapi.ErrorPinOutOfRange(op.def.spec.Name, "input", n)
	}
	if d.obj == target {
		return pfapi.ErrorInvalidArgument("an operator cannot be connected to itself")
	}
	if d.empty() {
		delete(op.inputs, n)
		return nil
	}
	if !p.Accepts(d.tag()) {
		return pfapi.ErrorPinType(op.def.spec.Name, p.Name, d.tag(), p.Types)
	}
	op.inputs[n] = input{d: d}
	return nil
}

func connectOutput(target *object, op *operatorObj, n int, src *object, srcPin int) error {
	p, ok := op.def.spec.Input(n)
	if !ok {
		return pfapi.ErrorPinOutOfRange(op.def.spec.Name, "input", n)
	}
	if src == target || upstream(src, target) {
		return pfapi.ErrorInvalidArgument("connection would make operator " + op.def.spec.Name + " depend on itself")
	}
	srcOp := src.val.(*operatorObj)
	out, ok := srcOp.def.spec.Output(srcPin)
	if !ok {
		return pfapi.ErrorPinOutOfRange(srcOp.def.spec.Name, "output", srcPin)
	}
	if len(out.Types) > 0 && !p.Types.Intersects(out.Types) {
		return pfapi.ErrorPinType(op.def.spec.Name, p.Name, out.Types[0], p.Types)
	}
	op.inputs[n] = input{src: src, srcPin: srcPin}
	return nil
}

func coerceOption(opt pfapi.ConfigOption, v pfapi.Value) (pfapi.Value, error) {
	switch opt.Type {
	case pfapi.TypeBool:
		b, err := v.AsBool()
		if err != nil {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("option %s takes a bool", opt.Name))
		}
		return pfapi.BoolValue(b), nil
	case pfapi.TypeInt32:
		i, err := v.AsInt()
		if err != nil {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("option %s takes an int", opt.Name))
		}
		return pfapi.Int32Value(int32(i)), nil
	case pfapi.TypeDouble:
		f, err := v.AsDouble()
		if err != nil {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("option %s takes a double", opt.Name))
		}
		return pfapi.DoubleValue(f), nil
	}
	return v, nil
}

// evaluation walks an operator graph for one pull.
type evaluation struct {
	b        *Backend
	progress func(pfapi.Progress)
	label    string
	done     int64
	total    int64
	active   map[*object]bool
}

func (c *call) newEvaluation(root *object) *evaluation {
	ev := &evaluation{b: c.b, progress: c.progress, active: map[*object]bool{}}
	if ev.progress != nil {
		ev.label = root.val.(*operatorObj).def.spec.Name
		seen := map[*object]bool{}
		var count func(o *object)
		count = func(o *object) {
			if seen[o] {
				return
			}
			seen[o] = true
			ev.total++
			for _, in := range o.val.(*operatorObj).inputs {
				if in.src != nil {
					count(in.src)
				}
			}
		}
		count(root)
	}
	return ev
}

// evaluate pulls output n of an operator object and checks it against want.
func (c *call) evaluate(target *object, n int, want pfapi.TypeTag) (datum, error) {
	op, ok := target.val.(*operatorObj)
	if !ok {
		return datum{}, pfapi.ErrorTypeMismatch(c.op.Name, pfapi.TypeOperator, target.kind)
	}
	out, ok := op.def.spec.Output(n)
	if !ok {
		return datum{}, pfapi.ErrorPinOutOfRange(op.def.spec.Name, "output", n)
	}
	if want != "" && want != pfapi.TypeAny && len(out.Types) > 0 && !out.Types.Contains(want) {
		return datum{}, pfapi.ErrorTypeMismatch(fmt.Sprintf("output %s of %s", out.Name, op.def.spec.Name), want, out.Types[0])
	}
	d, err := c.newEvaluation(target).output(target, n)
	if err != nil {
		return datum{}, err
	}
	if want != "" && want != pfapi.TypeAny && d.tag() != want {
		return datum{}, pfapi.ErrorTypeMismatch(fmt.Sprintf("output %s of %s", out.Name, op.def.spec.Name), want, d.tag())
	}
	return d, nil
}

func (ev *evaluation) run(obj *object, op *operatorObj) (map[int]datum, error) {
	if ev.active[obj] {
		return nil, pfapi.ErrorEngineFault(op.def.spec.Name, "operator graph has a cycle")
	}
	if lic := op.def.spec.License; lic != "" && !ev.b.hasCapability(lic) {
		return nil, pfapi.ErrorLicenseUnavailable(op.def.spec.Name, lic)
	}
	ev.active[obj] = true
	defer delete(ev.active, obj)
	outs, err := op.def.eval(ev, op)
	if err != nil {
		return nil, err
	}
	ev.done++
	if ev.progress != nil {
		ev.progress(pfapi.Progress{Label: op.def.spec.Name, Done: ev.done, Total: ev.total})
	}
	return outs, nil
}

func (ev *evaluation) output(obj *object, n int) (datum, error) {
	op := obj.val.(*operatorObj)
	outs, err := ev.run(obj, op)
	if err != nil {
		return datum{}, err
	}
	d, ok := outs[n]
	if !ok {
		return datum{}, pfapi.ErrorEngineFault(op.def.spec.Name, fmt.Sprintf("output pin %d was not produced", n))
	}
	return d, nil
}

// input resolves pin n of op, pulling upstream operators. ok is false when unconnected.
func (ev *evaluation) input(op *operatorObj, n int) (d datum, ok bool, err error) {
	in, ok := op.inputs[n]
	if !ok {
		return datum{}, false, nil
	}
	if in.src != nil {
		d, err := ev.output(in.src, in.srcPin)
		return d, true, err
	}
	return in.d, true, nil
}

func (ev *evaluation) require(op *operatorObj, n int) (datum, error) {
	d, ok, err := ev.input(op, n)
	if err != nil {
		return datum{}, err
	}
	if !ok {
		p, _ := op.def.spec.Input(n)
		return datum{}, pfapi.ErrorEngineFault(op.def.spec.Name, fmt.Sprintf("input pin %d (%s) is not connected", n, p.Name))
	}
	return d, nil
}

// ellipsis collects the consecutive connected pins starting at n.
func (ev *evaluation) ellipsis(op *operatorObj, n int) ([]datum, error) {
	var out []datum
	keys := make([]int, 0, len(op.inputs))
	for k := range op.inputs {
		if k >= n {
			keys = append(keys, k)
		}
	}
	sort.Ints(keys)
	for i, k := range keys {
		if k != n+i {
			break
		}
		d, _, err := ev.input(op, k)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (op *operatorObj) flag(name string) bool {
	v, ok := op.config[name]
	if !ok {
		return false
	}
	b, _ := v.AsBool()
	return b
}

package enginetest

import (
	"fmt"
	"sort"

	"github.com/warptools/pinflow/pfapi"
)

type workflowObj struct {
	members []*object
	inputs  []binding
	outputs []binding
}

// binding routes an exposed name to an operator pin.
type binding struct {
	name string
	op   *object
	pin  int
}

func (w *workflowObj) add(op *object) {
	if w.index(op) < 0 {
		w.members = append(w.members, op)
	}
}

func (w *workflowObj) index(op *object) int {
	for i, m := range w.members {
		if m == op {
			return i
		}
	}
	return -1
}

func find(list []binding, name string) (binding, bool) {
	for _, b := range list {
		if b.name == name {
			return b, true
		}
	}
	return binding{}, false
}

// expose adds or replaces the binding of name, keeping the position of an existing name.
func expose(list []binding, b binding) []binding {
	for i := range list {
		if list[i].name == b.name {
			list[i] = b
			return list
		}
	}
	return append(list, b)
}

func drop(list []binding, name string) []binding {
	out := list[:0]
	for _, b := range list {
		if b.name != name {
			out = append(out, b)
		}
	}
	return out
}

func names(list []binding) []string {
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.name
	}
	return out
}

func init() {
	register(pfapi.OpWorkflowNew, false, func(c *call) (pfapi.Value, error) {
		return c.b.handle(&object{kind: pfapi.TypeWorkflow, val: &workflowObj{}}), nil
	})
	register(pfapi.OpWorkflowAddOperator, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		op, err := c.obj(0, pfapi.TypeOperator)
		if err != nil {
			return pfapi.Value{}, err
		}
		w.add(op)
		return pfapi.Value{}, nil
	})
	register(pfapi.OpWorkflowSetInputName, true, exposeHandler(true))
	register(pfapi.OpWorkflowSetOutputName, true, exposeHandler(false))
	register(pfapi.OpWorkflowInputNames, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.stringsValue(names(w.inputs)), nil
	})
	register(pfapi.OpWorkflowOutputNames, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.stringsValue(names(w.outputs)), nil
	})
	register(pfapi.OpWorkflowConnect, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		b, ok := find(w.inputs, name)
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound("workflow input", name)
		}
		d, err := c.datum(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.Value{}, connect(b.op, b.op.val.(*operatorObj), b.pin, d)
	})
	register(pfapi.OpWorkflowConnectOutput, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		b, ok := find(w.inputs, name)
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound("workflow input", name)
		}
		src, err := c.obj(1, pfapi.TypeOperator)
		if err != nil {
			return pfapi.Value{}, err
		}
		srcPin, err := c.int(2)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.Value{}, connectOutput(b.op, b.op.val.(*operatorObj), b.pin, src, srcPin)
	})
	register(pfapi.OpWorkflowGetOutput, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		b, ok := find(w.outputs, name)
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound("workflow output", name)
		}
		want := pfapi.TypeTag("")
		if c.has(1) {
			s, err := c.str(1)
			if err != nil {
				return pfapi.Value{}, err
			}
			want = pfapi.TypeTag(s)
		}
		d, err := c.evaluate(b.op, b.pin, want)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.result(d), nil
	})
	register(pfapi.OpWorkflowConnectWith, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		leftObj, err := c.obj(0, pfapi.TypeWorkflow)
		if err != nil {
			return pfapi.Value{}, err
		}
		if leftObj == c.target {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("a workflow cannot be connected with itself")
		}
		var pairs []string
		auto := !c.has(1)
		if !auto {
			v, _ := c.arg(1)
			if pairs, err = v.AsStrings(); err != nil {
				return pfapi.Value{}, err
			}
		}
		permissive := false
		if c.has(2) {
			if permissive, err = c.bool(2); err != nil {
				return pfapi.Value{}, err
			}
		}
		return pfapi.Value{}, w.connectWith(leftObj.val.(*workflowObj), pairs, auto, permissive)
	})
	register(pfapi.OpWorkflowSerialize, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		doc := w.document()
		raw, err := pfapi.EncodeJSON(&doc, "WorkflowDoc")
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.StringValue(string(raw)), nil
	})
	register(pfapi.OpWorkflowDeserialize, false, func(c *call) (pfapi.Value, error) {
		text, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		var doc pfapi.WorkflowDoc
		if err := pfapi.DecodeJSON([]byte(text), &doc, "WorkflowDoc"); err != nil {
			return pfapi.Value{}, err
		}
		obj, err := rebuild(doc)
		if err != nil {
			return pfapi.Value{}, err
		}
		return c.b.handle(obj), nil
	})
	register(pfapi.OpWorkflowRecord, true, func(c *call) (pfapi.Value, error) {
		if _, err := payload[*workflowObj](c); err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		transfer := false
		if c.has(1) {
			if transfer, err = c.bool(1); err != nil {
				return pfapi.Value{}, err
			}
		}
		c.b.nextRecord++
		id := c.b.nextRecord
		c.b.records[id] = &record{name: name, obj: c.target, retained: transfer}
		if transfer {
			c.target.refs++
		}
		return pfapi.Int32Value(id), nil
	})
	register(pfapi.OpWorkflowGetRecorded, false, func(c *call) (pfapi.Value, error) {
		id, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		r, ok := c.b.records[int32(id)]
		if !ok {
			return pfapi.Value{}, pfapi.ErrorNotFound("recorded workflow", fmt.Sprint(id))
		}
		return c.b.handle(r.obj), nil
	})
	register(pfapi.OpWorkflowTopology, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		doc := w.document()
		topo := pfapi.Topology{Edges: doc.Edges, Inputs: doc.Inputs, Outputs: doc.Outputs}
		topo.Operators = make([]pfapi.TopologyOperator, len(doc.Operators))
		for i, op := range doc.Operators {
			topo.Operators[i] = pfapi.TopologyOperator{ID: i, Name: op.Name}
		}
		raw, err := pfapi.EncodeJSON(&topo, "Topology")
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.BytesValue(raw), nil
	})
	register(pfapi.OpWorkflowOperators, true, func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		if !c.has(0) {
			return pfapi.IntValue(len(w.members)), nil
		}
		i, err := c.int(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if i < 0 || i >= len(w.members) {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("operator index %d out of range [0, %d)", i, len(w.members)))
		}
		return c.b.handle(w.members[i]), nil
	})
}

func exposeHandler(input bool) handlerFn {
	return func(c *call) (pfapi.Value, error) {
		w, err := payload[*workflowObj](c)
		if err != nil {
			return pfapi.Value{}, err
		}
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		if name == "" {
			return pfapi.Value{}, pfapi.ErrorInvalidArgument("exposed pin names must not be empty")
		}
		op, err := c.obj(1, pfapi.TypeOperator)
		if err != nil {
			return pfapi.Value{}, err
		}
		n, err := c.int(2)
		if err != nil {
			return pfapi.Value{}, err
		}
		spec := op.val.(*operatorObj).def.spec
		if input {
			if _, ok := spec.Input(n); !ok {
				return pfapi.Value{}, pfapi.ErrorPinOutOfRange(spec.Name, "input", n)
			}
			w.inputs = expose(w.inputs, binding{name: name, op: op, pin: n})
		} else {
			if _, ok := spec.Output(n); !ok {
				return pfapi.Value{}, pfapi.ErrorPinOutOfRange(spec.Name, "output", n)
			}
			w.outputs = expose(w.outputs, binding{name: name, op: op, pin: n})
		}
		w.add(op)
		return pfapi.Value{}, nil
	}
}

// connectWith splices the outputs of left into the inputs of w.
// pairs alternates left output names and w input names; auto matches equal names instead.
// Nothing changes unless every pair resolves, or permissive is set.
func (w *workflowObj) connectWith(left *workflowObj, pairs []string, auto bool, permissive bool) error {
	if len(pairs)%2 != 0 {
		return pfapi.ErrorInvalidArgument("connect_with mapping must hold output and input names in pairs")
	}
	if auto {
		for _, out := range left.outputs {
			if _, ok := find(w.inputs, out.name); ok {
				pairs = append(pairs, out.name, out.name)
			}
		}
	}
	type splice struct{ from, to binding }
	var splices []splice
	for i := 0; i < len(pairs); i += 2 {
		from, okFrom := find(left.outputs, pairs[i])
		to, okTo := find(w.inputs, pairs[i+1])
		switch {
		case okFrom && okTo:
			splices = append(splices, splice{from, to})
		case permissive:
		case !okFrom:
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("left workflow has no output %q", pairs[i]))
		default:
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("workflow has no input %q", pairs[i+1]))
		}
	}
	for _, s := range splices {
		if s.to.op == s.from.op || upstream(s.from.op, s.to.op) {
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("connecting %q to %q would create a cycle", s.from.name, s.to.name))
		}
	}

	consumedOut := map[string]bool{}
	for _, s := range splices {
		op := s.to.op.val.(*operatorObj)
		op.inputs[s.to.pin] = input{src: s.from.op, srcPin: s.from.pin}
		w.inputs = drop(w.inputs, s.to.name)
		consumedOut[s.from.name] = true
	}
	for _, m := range left.members {
		w.add(m)
	}
	for _, in := range left.inputs {
		if _, exists := find(w.inputs, in.name); !exists {
			w.inputs = append(w.inputs, in)
		}
	}
	for _, out := range left.outputs {
		if consumedOut[out.name] {
			continue
		}
		if _, exists := find(w.outputs, out.name); !exists {
			w.outputs = append(w.outputs, out)
		}
	}
	return nil
}

// document describes w; connections to entities are left out.
func (w *workflowObj) document() pfapi.WorkflowDoc {
	doc := pfapi.WorkflowDoc{
		Operators: make([]pfapi.WorkflowOperatorDoc, len(w.members)),
		Edges:     []pfapi.TopologyEdge{},
		Inputs:    make([]pfapi.ExposedPin, len(w.inputs)),
		Outputs:   make([]pfapi.ExposedPin, len(w.outputs)),
	}
	for i, m := range w.members {
		op := m.val.(*operatorObj)
		od := pfapi.WorkflowOperatorDoc{Name: op.def.spec.Name, Config: []pfapi.NamedValue{}, Constants: []pfapi.PinConstant{}}
		for _, opt := range op.def.spec.Config {
			od.Config = append(od.Config, pfapi.NamedValue{Name: opt.Name, Value: op.config[opt.Name]})
		}
		pins := make([]int, 0, len(op.inputs))
		for p := range op.inputs {
			pins = append(pins, p)
		}
		sort.Ints(pins)
		for _, p := range pins {
			in := op.inputs[p]
			switch {
			case in.src != nil:
				if j := w.index(in.src); j >= 0 {
					doc.Edges = append(doc.Edges, pfapi.TopologyEdge{From: j, FromPin: in.srcPin, To: i, ToPin: p})
				}
			case in.d.obj == nil && !in.d.v.IsNone():
				od.Constants = append(od.Constants, pfapi.PinConstant{Pin: p, Value: in.d.v})
			}
		}
		doc.Operators[i] = od
	}
	for i, b := range w.inputs {
		doc.Inputs[i] = pfapi.ExposedPin{Name: b.name, Operator: w.index(b.op), Pin: b.pin}
	}
	for i, b := range w.outputs {
		doc.Outputs[i] = pfapi.ExposedPin{Name: b.name, Operator: w.index(b.op), Pin: b.pin}
	}
	return doc
}

// rebuild instantiates a workflow document.
func rebuild(doc pfapi.WorkflowDoc) (*object, error) {
	w := &workflowObj{}
	for _, od := range doc.Operators {
		def, ok := catalogue[od.Name]
		if !ok {
			return nil, pfapi.ErrorNotFound("operator", od.Name)
		}
		obj := newOperator(def)
		op := obj.val.(*operatorObj)
		for _, cfg := range od.Config {
			if opt, ok := def.spec.ConfigOption(cfg.Name); ok {
				v, err := coerceOption(opt, cfg.Value)
				if err != nil {
					return nil, err
				}
				op.config[cfg.Name] = v
			}
		}
		for _, k := range od.Constants {
			if err := connect(obj, op, k.Pin, datum{v: k.Value}); err != nil {
				return nil, err
			}
		}
		w.members = append(w.members, obj)
	}
	member := func(i int) (*object, error) {
		if i < 0 || i >= len(w.members) {
			return nil, pfapi.ErrorInvalidArgument(fmt.Sprintf("workflow text refers to operator %d of %d", i, len(w.members)))
		}
		return w.members[i], nil
	}
	for _, e := range doc.Edges {
		from, err := member(e.From)
		if err != nil {
			return nil, err
		}
		to, err := member(e.To)
		if err != nil {
			return nil, err
		}
		if err := connectOutput(to, to.val.(*operatorObj), e.ToPin, from, e.FromPin); err != nil {
			return nil, err
		}
	}
	for _, p := range doc.Inputs {
		op, err := member(p.Operator)
		if err != nil {
			return nil, err
		}
		w.inputs = append(w.inputs, binding{name: p.Name, op: op, pin: p.Pin})
	}
	for _, p := range doc.Outputs {
		op, err := member(p.Operator)
		if err != nil {
			return nil, err
		}
		w.outputs = append(w.outputs, binding{name: p.Name, op: op, pin: p.Pin})
	}
	return &object{kind: pfapi.TypeWorkflow, val: w}, nil
}

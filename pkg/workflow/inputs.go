package workflow

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
)

func (w *Workflow) learnInput(name string, p pfapi.PinSpec) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.inputs == nil {
		w.inputs = map[string]pfapi.PinSpec{}
	}
	w.inputs[name] = p
}

func (w *Workflow) forgetInputs() {
	w.mu.Lock()
	w.inputs = nil
	w.mu.Unlock()
}

// inputSpec returns the spec of the member pin bound to the exposed input name.
// Bindings not made through w are looked up in the topology; engines too old to
// describe it report known false, which leaves the type check to the engine.
//
// Errors:
//
//   - pinflow-error-not-found -- when w exposes no input called name
//   - see Workflow.Topology
//   - see engine.SpecRegistry.Get
func (w *Workflow) inputSpec(ctx context.Context, name string) (p pfapi.PinSpec, known bool, err error) {
	w.mu.Lock()
	p, known = w.inputs[name]
	w.mu.Unlock()
	if known || !w.Engine().Supports(pfapi.OpWorkflowTopology) {
		return p, known, nil
	}
	topo, err := w.Topology(ctx)
	if err != nil {
		return pfapi.PinSpec{}, false, err
	}
	for _, in := range topo.Inputs {
		if in.Name != name {
			continue
		}
		if in.Operator < 0 || in.Operator >= len(topo.Operators) {
			return pfapi.PinSpec{}, false, nil
		}
		spec, err := w.Engine().Specs().Get(ctx, topo.Operators[in.Operator].Name)
		if err != nil {
			return pfapi.PinSpec{}, false, err
		}
		p, ok := spec.Input(in.Pin)
		if !ok {
			return pfapi.PinSpec{}, false, nil
		}
		w.learnInput(name, p)
		return p, true, nil
	}
	return pfapi.PinSpec{}, false, pfapi.ErrorNotFound("workflow input", name)
}

package engine

import (
	"context"
	"sync"

	"github.com/warptools/pinflow/pfapi"
)

// SpecRegistry fetches operator specifications lazily and caches them per engine.
type SpecRegistry struct {
	eng *Engine

	mu    sync.Mutex
	cache map[string]*pfapi.OperatorSpec
	names []string
}

// Get returns the specification of an operator name.
//
// Errors:
//
//   - pinflow-error-not-found -- when the name is empty or unknown to the engine
//   - pinflow-error-serialization -- when the engine's description cannot be read
//   - see Engine.Invoke
func (r *SpecRegistry) Get(ctx context.Context, name string) (*pfapi.OperatorSpec, error) {
	if name == "" {
		return nil, pfapi.ErrorNotFound("operator", "(empty name)")
	}
	r.mu.Lock()
	spec, ok := r.cache[name]
	r.mu.Unlock()
	if ok {
		return spec, nil
	}

	v, err := r.eng.Invoke(ctx, pfapi.OpOperatorSpec, nil, V(pfapi.StringValue(name)))
	if err != nil {
		return nil, err
	}
	raw, err := v.AsBytes()
	if err != nil {
		return nil, err
	}
	spec = &pfapi.OperatorSpec{}
	if err := pfapi.DecodeJSON(raw, spec, "OperatorSpec"); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cached, ok := r.cache[name]; ok {
		spec = cached
	} else {
		r.cache[name] = spec
	}
	r.mu.Unlock()
	return spec, nil
}

// Names lists the operator names loaded in the engine.
//
// Errors:
//
//   - see Engine.Invoke
func (r *SpecRegistry) Names(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	names := r.names
	r.mu.Unlock()
	if names != nil {
		return names, nil
	}
	v, err := r.eng.Invoke(ctx, pfapi.OpOperatorList, nil)
	if err != nil {
		return nil, err
	}
	names, err = v.AsStrings()
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return names, nil
}

// Cached reports whether the spec of name has been fetched already.
func (r *SpecRegistry) Cached(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cache[name]
	return ok
}

// Invalidate drops everything cached, for instance after plugins were loaded engine-side.
func (r *SpecRegistry) Invalidate() {
	r.mu.Lock()
	r.cache = map[string]*pfapi.OperatorSpec{}
	r.names = nil
	r.mu.Unlock()
}

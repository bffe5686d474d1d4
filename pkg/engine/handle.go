package engine

import (
	"context"
	"fmt"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/transport"
)

// Handle is an opaque reference to an engine object plus the engine owning it.
//
// An owned handle is released exactly once, by Release or by closing its engine.
// A borrowed view shares the object of its owner without owning it:
// releasing a view does nothing, and the view dies with its owner.
//
// Handles are not safe for concurrent use.
type Handle struct {
	eng      *Engine
	id       transport.HandleID
	kind     pfapi.TypeTag
	owner    *Handle
	released bool
}

// Engine is the engine the handle belongs to.
func (h *Handle) Engine() *Engine { return h.eng }

// Kind is the type tag of the referenced object.
func (h *Handle) Kind() pfapi.TypeTag { return h.kind }

// ID is the raw handle value.
func (h *Handle) ID() transport.HandleID { return h.id }

// Valid reports whether the handle may still be used.
func (h *Handle) Valid() bool {
	if h == nil {
		return false
	}
	if h.owner != nil {
		return h.owner.Valid()
	}
	return !h.released
}

// Borrowed reports whether h is a non-owning view.
func (h *Handle) Borrowed() bool { return h.owner != nil }

// Borrow returns a non-owning view of the same object.
func (h *Handle) Borrow() *Handle {
	owner := h
	if h.owner != nil {
		owner = h.owner
	}
	return &Handle{eng: h.eng, id: h.id, kind: h.kind, owner: owner}
}

// Release sends the release call for an owned handle.
// Later use of the handle fails with a not-found error.
//
// Errors:
//
//   - pinflow-error-not-found -- when already released
//   - see Engine.Invoke
func (h *Handle) Release(ctx context.Context) error {
	if h.owner != nil {
		return nil
	}
	if h.released {
		return pfapi.ErrorReleased(h.kind)
	}
	_, err := h.eng.Invoke(ctx, pfapi.OpHandleRelease, h)
	// the client side is done with the handle whatever the engine says
	h.released = true
	h.eng.forget(h)
	return err
}

// Duplicate asks the engine for a second, independently releasable handle to the same object.
//
// Errors:
//
//   - see Engine.InvokeHandle
func (h *Handle) Duplicate(ctx context.Context) (*Handle, error) {
	return h.eng.InvokeHandle(ctx, pfapi.OpHandleDuplicate, h, h.kind)
}

func (h *Handle) String() string {
	state := ""
	switch {
	case !h.Valid():
		state = " released"
	case h.owner != nil:
		state = " borrowed"
	}
	return fmt.Sprintf("%s#%d@%s%s", h.kind, h.id, h.eng.name, state)
}

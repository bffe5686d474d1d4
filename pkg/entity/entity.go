// Package entity wraps engine objects in typed Go values.
//
// A wrapper holds nothing but its handle: every accessor is a call to the engine,
// so a wrapper never goes stale when the object changes engine-side.
// Wrappers own their handle and release it on Release; Borrow gives a non-owning view.
package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Entity is implemented by every wrapper.
type Entity interface {
	Handle() *engine.Handle
}

type base struct {
	h *engine.Handle
}

func (b base) Handle() *engine.Handle { return b.h }

// Engine is the engine owning the object.
func (b base) Engine() *engine.Engine { return b.h.Engine() }

// Kind is the type tag of the object.
func (b base) Kind() pfapi.TypeTag { return b.h.Kind() }

// Valid reports whether the wrapper may still be used.
func (b base) Valid() bool { return b.h.Valid() }

// Release gives the object back to the engine. Using the wrapper afterwards fails with a not-found error.
//
// Errors:
//
//   - see engine.Handle.Release
func (b base) Release(ctx context.Context) error { return b.h.Release(ctx) }

func (b base) String() string { return b.h.String() }

func (b base) invoke(ctx context.Context, op pfapi.Op, args ...engine.Arg) (pfapi.Value, error) {
	return b.h.Engine().Invoke(ctx, op, b.h, args...)
}

func (b base) invokeHandle(ctx context.Context, op pfapi.Op, want pfapi.TypeTag, args ...engine.Arg) (*engine.Handle, error) {
	return b.h.Engine().InvokeHandle(ctx, op, b.h, want, args...)
}

// Opaque wraps objects without a dedicated wrapper.
type Opaque struct{ base }

// Wrap picks the wrapper matching the kind of h.
func Wrap(h *engine.Handle) Entity {
	b := base{h}
	switch h.Kind() {
	case pfapi.TypeField:
		return &Field{b}
	case pfapi.TypeScoping:
		return &Scoping{b}
	case pfapi.TypeFieldsContainer:
		return newCollection[*Field](h)
	case pfapi.TypeScopingsContainer:
		return newCollection[*Scoping](h)
	case pfapi.TypeMeshesContainer:
		return newCollection[*Mesh](h)
	case pfapi.TypeIntCollection:
		return &IntCollection{b}
	case pfapi.TypeDoubleCollection:
		return &DoubleCollection{b}
	case pfapi.TypeStringCollection:
		return &StringCollection{b}
	case pfapi.TypeLabelSpace:
		return &LabelSpace{b}
	case pfapi.TypeDataSources:
		return &DataSources{b}
	case pfapi.TypeMesh:
		return &Mesh{Properties{b}}
	case pfapi.TypeTimeFreqSupport:
		return &TimeFreqSupport{Properties{b}}
	case pfapi.TypeCyclicSupport:
		return &CyclicSupport{Properties{b}}
	case pfapi.TypeResultInfo:
		return &ResultInfo{Properties{b}}
	case pfapi.TypeMeshInfo:
		return &MeshInfo{Properties{b}}
	case pfapi.TypeDataTree:
		return &DataTree{Properties{b}}
	case pfapi.TypeGenericDataContainer:
		return &GenericDataContainer{Properties{b}}
	case pfapi.TypeAnyEntity:
		return &Any{Properties{b}}
	}
	return &Opaque{b}
}

// As wraps h and checks the wrapper is a T.
//
// Errors:
//
//   - pinflow-error-type-mismatch -- when h is of another kind
func As[T Entity](h *engine.Handle) (T, error) {
	w, ok := Wrap(h).(T)
	if !ok {
		var zero T
		return zero, pfapi.ErrorTypeMismatch("wrapping handle", KindOf[T](), h.Kind())
	}
	return w, nil
}

// KindOf is the type tag wrapped by T, or any when T wraps several kinds.
func KindOf[T Entity]() pfapi.TypeTag {
	var zero T
	switch Entity(zero).(type) {
	case *Field:
		return pfapi.TypeField
	case *Scoping:
		return pfapi.TypeScoping
	case *FieldsContainer:
		return pfapi.TypeFieldsContainer
	case *ScopingsContainer:
		return pfapi.TypeScopingsContainer
	case *MeshesContainer:
		return pfapi.TypeMeshesContainer
	case *IntCollection:
		return pfapi.TypeIntCollection
	case *DoubleCollection:
		return pfapi.TypeDoubleCollection
	case *StringCollection:
		return pfapi.TypeStringCollection
	case *LabelSpace:
		return pfapi.TypeLabelSpace
	case *DataSources:
		return pfapi.TypeDataSources
	case *Mesh:
		return pfapi.TypeMesh
	case *TimeFreqSupport:
		return pfapi.TypeTimeFreqSupport
	case *CyclicSupport:
		return pfapi.TypeCyclicSupport
	case *ResultInfo:
		return pfapi.TypeResultInfo
	case *MeshInfo:
		return pfapi.TypeMeshInfo
	case *DataTree:
		return pfapi.TypeDataTree
	case *GenericDataContainer:
		return pfapi.TypeGenericDataContainer
	case *Any:
		return pfapi.TypeAnyEntity
	}
	return pfapi.TypeAny
}

// Borrow returns a non-owning wrapper over the same object.
func Borrow[T Entity](w T) T {
	b, _ := As[T](w.Handle().Borrow())
	return b
}

// DeepCopy rebuilds src on target from its serialized form.
// The copy is independent: releasing either side leaves the other intact.
//
// Errors:
//
//   - pinflow-error-type-mismatch -- when the target engine rebuilt another kind
//   - pinflow-error-serialization --
//   - see engine.Engine.Invoke
func DeepCopy[T Entity](ctx context.Context, src T, target *engine.Engine) (T, error) {
	var zero T
	h := src.Handle()
	raw, err := h.Engine().Invoke(ctx, pfapi.OpEntitySerialize, h)
	if err != nil {
		return zero, err
	}
	doc, err := raw.AsBytes()
	if err != nil {
		return zero, err
	}
	copied, err := target.InvokeHandle(ctx, pfapi.OpEntityDeserialize, nil, h.Kind(),
		engine.V(pfapi.TagValue(h.Kind())), engine.V(pfapi.BytesValue(doc)))
	if err != nil {
		return zero, err
	}
	return owned[T](ctx, copied)
}

// Duplicate returns a second owning wrapper over the same object.
//
// Errors:
//
//   - see engine.Handle.Duplicate
func Duplicate[T Entity](ctx context.Context, w T) (T, error) {
	var zero T
	h, err := w.Handle().Duplicate(ctx)
	if err != nil {
		return zero, err
	}
	return owned[T](ctx, h)
}

// owned wraps a freshly adopted handle as T, releasing it when it holds another kind.
func owned[T Entity](ctx context.Context, h *engine.Handle) (T, error) {
	w, err := As[T](h)
	if err != nil {
		h.Release(ctx)
	}
	return w, err
}

package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Collection is an ordered sequence of entities of one kind,
// optionally indexed by label spaces.
type Collection[T Entity] struct{ base }

type (
	FieldsContainer   = Collection[*Field]
	ScopingsContainer = Collection[*Scoping]
	MeshesContainer   = Collection[*Mesh]
)

func newCollection[T Entity](h *engine.Handle) *Collection[T] {
	return &Collection[T]{base{h}}
}

// NewCollection creates an empty collection of T entries.
// T must be *Field, *Scoping or *Mesh.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when T cannot be collected
//   - see engine.Engine.InvokeHandle
func NewCollection[T Entity](ctx context.Context, e *engine.Engine) (*Collection[T], error) {
	kind := KindOf[*Collection[T]]()
	if kind == pfapi.TypeAny {
		return nil, pfapi.ErrorInvalidArgument("no collection kind holds " + string(KindOf[T]()))
	}
	h, err := e.InvokeHandle(ctx, pfapi.OpCollectionNew, nil, kind, engine.V(pfapi.TagValue(kind)))
	if err != nil {
		return nil, err
	}
	return newCollection[T](h), nil
}

// NewFieldsContainer is NewCollection for fields, optionally declaring labels.
//
// Errors:
//
//   - see engine.Engine.Invoke
func NewFieldsContainer(ctx context.Context, e *engine.Engine, labels ...string) (*FieldsContainer, error) {
	fc, err := NewCollection[*Field](ctx, e)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if err := fc.AddLabel(ctx, l); err != nil {
			fc.Release(ctx)
			return nil, err
		}
	}
	return fc, nil
}

// AddLabel declares a label. Once a collection has labels, every entry needs a label space.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (c *Collection[T]) AddLabel(ctx context.Context, label string) error {
	_, err := c.invoke(ctx, pfapi.OpCollectionAddLabel, engine.V(pfapi.StringValue(label)))
	return err
}

// Errors:
//
//   - see engine.Engine.Invoke
func (c *Collection[T]) Labels(ctx context.Context) ([]string, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionLabels)
	if err != nil {
		return nil, err
	}
	return v.AsStrings()
}

// Add appends entry under space. An entry with an identical label space is replaced.
// The collection keeps its own reference: the caller still owns entry.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when labels are declared and space is empty, or entry is of the wrong kind
//   - see engine.Engine.Invoke
func (c *Collection[T]) Add(ctx context.Context, space pfapi.LabelMap, entry T) error {
	_, err := c.invoke(ctx, pfapi.OpCollectionAddEntry, engine.V(pfapi.LabelsValue(space)), engine.H(entry.Handle()))
	return err
}

// Get returns an owning wrapper over entry i.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when i is out of range
//   - see engine.Engine.InvokeHandle
func (c *Collection[T]) Get(ctx context.Context, i int) (T, error) {
	var zero T
	h, err := c.invokeHandle(ctx, pfapi.OpCollectionGetEntry, KindOf[T](), engine.V(pfapi.IntValue(i)))
	if err != nil {
		return zero, err
	}
	return owned[T](ctx, h)
}

// GetByLabel returns the first entry whose label space contains every label of space.
//
// Errors:
//
//   - pinflow-error-not-found -- when no entry matches
//   - see engine.Engine.InvokeHandle
func (c *Collection[T]) GetByLabel(ctx context.Context, space pfapi.LabelMap) (T, error) {
	var zero T
	h, err := c.invokeHandle(ctx, pfapi.OpCollectionGetEntryByLabel, KindOf[T](), engine.V(pfapi.LabelsValue(space)))
	if err != nil {
		return zero, err
	}
	return owned[T](ctx, h)
}

// Errors:
//
//   - see engine.Engine.Invoke
func (c *Collection[T]) Size(ctx context.Context) (int, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionSize)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	return int(n), err
}

// LabelSpace is the label space of entry i.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when i is out of range
//   - see engine.Engine.Invoke
func (c *Collection[T]) LabelSpace(ctx context.Context, i int) (pfapi.LabelMap, error) {
	v, err := c.invoke(ctx, pfapi.OpCollectionLabelSpace, engine.V(pfapi.IntValue(i)))
	if err != nil {
		return pfapi.LabelMap{}, err
	}
	return v.AsLabels()
}

// Entry pairs an entity with its label space.
type Entry[T Entity] struct {
	Space  pfapi.LabelMap
	Entity T
}

// Entries returns all entries in order. The caller owns the returned wrappers.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (c *Collection[T]) Entries(ctx context.Context) ([]Entry[T], error) {
	n, err := c.Size(ctx)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry[T], 0, n)
	fail := func(err error) ([]Entry[T], error) {
		for _, e := range entries {
			e.Entity.Handle().Release(ctx)
		}
		return nil, err
	}
	for i := 0; i < n; i++ {
		space, err := c.LabelSpace(ctx, i)
		if err != nil {
			return fail(err)
		}
		w, err := c.Get(ctx, i)
		if err != nil {
			return fail(err)
		}
		entries = append(entries, Entry[T]{space, w})
	}
	return entries, nil
}

// DeepCopy rebuilds the collection and its entries on target.
func (c *Collection[T]) DeepCopy(ctx context.Context, target *engine.Engine) (*Collection[T], error) {
	return DeepCopy(ctx, c, target)
}

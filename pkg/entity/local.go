package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// LocalField is a client-side view of a field's data for batched reads and writes.
// On in-process engines the view aliases engine memory; on remote engines it is a copy.
// Close pushes the view back as a single update.
type LocalField struct {
	f      *Field
	size   int
	ptr    []int64
	data   []float64
	closed bool
}

// AsLocal opens a local view of f.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (f *Field) AsLocal(ctx context.Context) (*LocalField, error) {
	dim, err := f.Dimensionality(ctx)
	if err != nil {
		return nil, err
	}
	ptr, err := f.DataPointer(ctx)
	if err != nil {
		return nil, err
	}
	v, err := f.invoke(ctx, pfapi.OpFieldBorrowData)
	if err != nil {
		return nil, err
	}
	data, err := v.AsDoubles()
	if err != nil {
		return nil, err
	}
	return &LocalField{f: f, size: dim.ElementarySize(), ptr: ptr, data: data}, nil
}

// WithLocal runs fn over a local view of f and pushes the changes back when fn succeeds.
//
// Errors:
//
//   - whatever fn returns
//   - see engine.Engine.Invoke
func WithLocal(ctx context.Context, f *Field, fn func(l *LocalField) error) error {
	l, err := f.AsLocal(ctx)
	if err != nil {
		return err
	}
	if err := fn(l); err != nil {
		l.closed = true
		return err
	}
	return l.Close(ctx)
}

// Data is the flat data vector; writes to it are pushed back on Close.
func (l *LocalField) Data() []float64 { return l.data }

// Len is the number of entities.
func (l *LocalField) Len() int {
	if len(l.ptr) > 0 {
		return len(l.ptr)
	}
	if l.size == 0 {
		return 0
	}
	return len(l.data) / l.size
}

// Entity returns the rows of entity i as a subslice of Data.
func (l *LocalField) Entity(i int) []float64 {
	if len(l.ptr) > 0 {
		end := len(l.data)
		if i+1 < len(l.ptr) {
			end = int(l.ptr[i+1])
		}
		return l.data[l.ptr[i]:end]
	}
	return l.data[i*l.size : (i+1)*l.size]
}

// Close pushes the view back to the engine. Later calls do nothing.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (l *LocalField) Close(ctx context.Context) error {
	if l.closed {
		return nil
	}
	l.closed = true
	_, err := l.f.invoke(ctx, pfapi.OpFieldReturnData, engine.V(pfapi.DoublesValue(l.data)))
	return err
}

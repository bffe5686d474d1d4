package entity

import (
	"context"
	"sort"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// LabelSpace is an engine-side ordered label to id mapping.
// Most calls take a pfapi.LabelMap by value; the handle form exists for pins typed label_space.
type LabelSpace struct{ base }

// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewLabelSpace(ctx context.Context, e *engine.Engine, labels pfapi.LabelMap) (*LabelSpace, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpLabelSpaceNew, nil, pfapi.TypeLabelSpace, engine.V(pfapi.LabelsValue(labels)))
	if err != nil {
		return nil, err
	}
	return &LabelSpace{base{h}}, nil
}

// LabelSpaceOf builds a label space from a map. Labels are ordered by name.
func LabelSpaceOf(ctx context.Context, e *engine.Engine, m map[string]int64) (*LabelSpace, error) {
	return NewLabelSpace(ctx, e, Labels(m))
}

// Labels turns a map into a LabelMap ordered by name.
func Labels(m map[string]int64) pfapi.LabelMap {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	lm := pfapi.NewLabelMap()
	for _, k := range names {
		lm.Set(k, m[k])
	}
	return lm
}

// Errors:
//
//   - see engine.Engine.Invoke
func (ls *LabelSpace) Get(ctx context.Context) (pfapi.LabelMap, error) {
	v, err := ls.invoke(ctx, pfapi.OpLabelSpaceGet)
	if err != nil {
		return pfapi.LabelMap{}, err
	}
	return v.AsLabels()
}

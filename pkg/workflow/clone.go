package workflow

import (
	"context"
	"fmt"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/logging"
)

// Serialize returns the engine's text form of w.
// Members, their configuration, primitive constants, edges and exposed names survive;
// connections to entities do not.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (w *Workflow) Serialize(ctx context.Context) (string, error) {
	v, err := w.invoke(ctx, pfapi.OpWorkflowSerialize)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// Deserialize rebuilds a workflow from its text form on e.
//
// Errors:
//
//   - pinflow-error-not-found -- when the text names an operator e does not know
//   - see engine.Engine.InvokeHandle
func Deserialize(ctx context.Context, e *engine.Engine, text string) (*Workflow, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpWorkflowDeserialize, nil, pfapi.TypeWorkflow, engine.V(pfapi.StringValue(text)))
	if err != nil {
		return nil, err
	}
	return &Workflow{h: h}, nil
}

// CreateOnOtherServer copies w to target through its text form.
// The copy exposes the same names in the same order; entity connections must be made again.
//
// Errors:
//
//   - see Workflow.Serialize
//   - see Deserialize
func (w *Workflow) CreateOnOtherServer(ctx context.Context, target *engine.Engine) (*Workflow, error) {
	text, err := w.Serialize(ctx)
	if err != nil {
		return nil, err
	}
	c, err := Deserialize(ctx, target, text)
	if err != nil {
		return nil, pfapi.Annotate(err, fmt.Sprintf("copying %s to %s", w, target))
	}
	c.progress = w.progress
	logging.Ctx(ctx).Debug(LOG_TAG, "copied %s from %s to %s", w, w.Engine(), target)
	return c, nil
}

// Record stores w in the engine registry and returns its id. Needs engine 2.0.
// With transfer set the engine keeps w alive after every client handle is released.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.Invoke
func (w *Workflow) Record(ctx context.Context, identifier string, transfer bool) (int32, error) {
	v, err := w.invoke(ctx, pfapi.OpWorkflowRecord, engine.V(pfapi.StringValue(identifier)), engine.V(pfapi.BoolValue(transfer)))
	if err != nil {
		return 0, err
	}
	id, err := v.AsInt()
	return int32(id), err
}

// GetRecorded fetches the workflow recorded as id on e. Needs engine 2.0.
//
// Errors:
//
//   - pinflow-error-not-found -- when nothing is recorded as id
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.InvokeHandle
func GetRecorded(ctx context.Context, e *engine.Engine, id int32) (*Workflow, error) {
	h, err := e.InvokeHandle(ctx, pfapi.OpWorkflowGetRecorded, nil, pfapi.TypeWorkflow, engine.V(pfapi.Int32Value(id)))
	if err != nil {
		return nil, err
	}
	return &Workflow{h: h}, nil
}

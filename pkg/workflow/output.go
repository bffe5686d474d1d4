package workflow

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/logging"
	"github.com/warptools/pinflow/pkg/operator"
)

// GetOutput evaluates the output exposed as name, asking the engine for a value of tag.
// An empty tag accepts whatever the pin produces.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is empty
//   - pinflow-error-not-found -- when w exposes no output called name
//   - pinflow-error-type-mismatch -- when the bound pin cannot produce tag
//   - pinflow-error-engine-fault -- when the computation fails
//   - pinflow-error-license-unavailable -- when the engine lacks a member's license
//   - see engine.Engine.Invoke
func (w *Workflow) GetOutput(ctx context.Context, name string, tag pfapi.TypeTag) (operator.Result, error) {
	if err := checkName(name); err != nil {
		return operator.Result{}, err
	}
	args := []engine.Arg{engine.V(pfapi.StringValue(name))}
	if tag != "" {
		args = append(args, engine.V(pfapi.TagValue(tag)))
	}
	var res operator.Result
	label := "workflow." + name
	err := w.Engine().Session().Evaluate(ctx, label, w.progress, func(ctx context.Context) error {
		v, err := w.invoke(ctx, pfapi.OpWorkflowGetOutput, args...)
		if err != nil {
			return err
		}
		if v.Handle != nil {
			res.Entity = entity.Wrap(w.Engine().Adopt(*v.Handle))
		} else {
			res.Value = v
		}
		return nil
	})
	if err != nil {
		return operator.Result{}, err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "pulled %s as %s", label, res.Tag())
	return res, nil
}

// Get evaluates the output exposed as name as a T.
//
// Errors:
//
//   - see Workflow.GetOutput
func Get[T entity.Entity](ctx context.Context, w *Workflow, name string) (T, error) {
	var zero T
	res, err := w.GetOutput(ctx, name, entity.KindOf[T]())
	if err != nil {
		return zero, err
	}
	t, ok := res.Entity.(T)
	if !ok {
		res.Release(ctx)
		return zero, pfapi.ErrorTypeMismatch("workflow output "+name, entity.KindOf[T](), res.Tag())
	}
	return t, nil
}

// GetDouble evaluates the output exposed as name as a double.
//
// Errors:
//
//   - see Workflow.GetOutput
func (w *Workflow) GetDouble(ctx context.Context, name string) (float64, error) {
	res, err := w.GetOutput(ctx, name, pfapi.TypeDouble)
	if err != nil {
		return 0, err
	}
	if res.Entity != nil {
		res.Release(ctx)
		return 0, pfapi.ErrorTypeMismatch("workflow output "+name, pfapi.TypeDouble, res.Tag())
	}
	return res.Value.AsDouble()
}

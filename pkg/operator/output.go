package operator

import (
	"context"
	"fmt"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
	"github.com/warptools/pinflow/pkg/entity"
	"github.com/warptools/pinflow/pkg/logging"
)

// Result is what an output pull produced: an entity, owned by the caller, or a primitive value.
type Result struct {
	Entity entity.Entity
	Value  pfapi.Value
}

// Tag is the type tag of the result.
func (r Result) Tag() pfapi.TypeTag {
	if r.Entity != nil {
		return r.Entity.Handle().Kind()
	}
	return r.Value.Tag()
}

// Release releases the entity of the result, if any.
//
// Errors:
//
//   - see engine.Handle.Release
func (r Result) Release(ctx context.Context) error {
	if r.Entity == nil {
		return nil
	}
	return r.Entity.Handle().Release(ctx)
}

// GetOutput evaluates output pin, asking the engine for a value of tag.
// An empty tag accepts whatever the pin produces.
// Upstream operators are evaluated as needed.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when pin is not declared
//   - pinflow-error-type-mismatch -- when the pin cannot produce tag
//   - pinflow-error-engine-fault -- when the computation fails
//   - pinflow-error-license-unavailable -- when the engine lacks the operator's license
//   - see engine.Engine.Invoke
func (o *Operator) GetOutput(ctx context.Context, pin int, tag pfapi.TypeTag) (Result, error) {
	p, ok := o.spec.Output(pin)
	if !ok {
		return Result{}, pfapi.ErrorPinOutOfRange(o.name, "output", pin)
	}
	if tag != "" && tag != pfapi.TypeAny && len(p.Types) > 0 && !p.Types.Contains(tag) {
		return Result{}, pfapi.ErrorTypeMismatch(fmt.Sprintf("output %s of %s", p.Name, o.name), tag, p.Types[0])
	}
	args := []engine.Arg{engine.V(pfapi.PinValue(pin))}
	if tag != "" {
		args = append(args, engine.V(pfapi.TagValue(tag)))
	}
	var res Result
	label := o.name + "." + p.Name
	err := o.Engine().Session().Evaluate(ctx, label, o.progress, func(ctx context.Context) error {
		v, err := o.invoke(ctx, pfapi.OpOperatorGetOutput, args...)
		if err != nil {
			return err
		}
		if v.Handle != nil {
			res.Entity = entity.Wrap(o.Engine().Adopt(*v.Handle))
		} else {
			res.Value = v
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	logging.Ctx(ctx).Debug(LOG_TAG, "pulled %s as %s", label, res.Tag())
	return res, nil
}

// GetOutputNamed is GetOutput on the output called name.
//
// Errors:
//
//   - pinflow-error-not-found -- when the operator has no such output
//   - see Operator.GetOutput
func (o *Operator) GetOutputNamed(ctx context.Context, name string, tag pfapi.TypeTag) (Result, error) {
	out, err := o.Outputs.Named(name)
	if err != nil {
		return Result{}, err
	}
	return out.Get(ctx, tag)
}

// Get evaluates output pin of o as a T.
//
// Errors:
//
//   - see Operator.GetOutput
func Get[T entity.Entity](ctx context.Context, o *Operator, pin int) (T, error) {
	var zero T
	res, err := o.GetOutput(ctx, pin, entity.KindOf[T]())
	if err != nil {
		return zero, err
	}
	if res.Entity == nil {
		return zero, pfapi.ErrorTypeMismatch("output of "+o.name, entity.KindOf[T](), res.Value.Tag())
	}
	w, ok := res.Entity.(T)
	if !ok {
		res.Release(ctx)
		return zero, pfapi.ErrorTypeMismatch("output of "+o.name, entity.KindOf[T](), res.Tag())
	}
	return w, nil
}

func (o *Operator) value(ctx context.Context, pin int, tag pfapi.TypeTag) (pfapi.Value, error) {
	res, err := o.GetOutput(ctx, pin, tag)
	if err != nil {
		return pfapi.Value{}, err
	}
	if res.Entity != nil {
		res.Release(ctx)
		return pfapi.Value{}, pfapi.ErrorTypeMismatch("output of "+o.name, tag, res.Tag())
	}
	return res.Value, nil
}

// GetDouble evaluates output pin as a double.
//
// Errors:
//
//   - see Operator.GetOutput
func (o *Operator) GetDouble(ctx context.Context, pin int) (float64, error) {
	v, err := o.value(ctx, pin, pfapi.TypeDouble)
	if err != nil {
		return 0, err
	}
	return v.AsDouble()
}

// GetInt evaluates output pin as an int32.
//
// Errors:
//
//   - see Operator.GetOutput
func (o *Operator) GetInt(ctx context.Context, pin int) (int64, error) {
	v, err := o.value(ctx, pin, pfapi.TypeInt32)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

// GetBool evaluates output pin as a bool. Engines before 3.0 answer with an int32.
//
// Errors:
//
//   - see Operator.GetOutput
func (o *Operator) GetBool(ctx context.Context, pin int) (bool, error) {
	v, err := o.value(ctx, pin, pfapi.TypeBool)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

// GetString evaluates output pin as a string.
//
// Errors:
//
//   - see Operator.GetOutput
func (o *Operator) GetString(ctx context.Context, pin int) (string, error) {
	v, err := o.value(ctx, pin, pfapi.TypeString)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// Eval evaluates the first output as whatever it produces.
//
// Errors:
//
//   - see Operator.GetOutput
func (o *Operator) Eval(ctx context.Context) (Result, error) {
	if len(o.Outputs.pins) == 0 {
		return Result{}, o.Run(ctx)
	}
	return o.GetOutput(ctx, o.Outputs.pins[0].Index, "")
}

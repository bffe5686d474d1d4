package operator

import (
	"context"
	"fmt"
	"sort"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// Config is a set of option values for one operator, checked against its specification.
// Changes stay client-side until Apply.
type Config struct {
	op      *Operator
	values  map[string]pfapi.Value
	changed map[string]bool
}

// Config returns a configuration holding the declared defaults.
func (o *Operator) Config() *Config {
	c := &Config{op: o, values: map[string]pfapi.Value{}, changed: map[string]bool{}}
	for _, opt := range o.spec.Config {
		c.values[opt.Name] = opt.Default
	}
	return c
}

// Options lists the declared options.
func (c *Config) Options() []pfapi.ConfigOption {
	return append([]pfapi.ConfigOption{}, c.op.spec.Config...)
}

// Set changes option name to v, a Go bool, int, float64 or string, or a pfapi.Value.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is not declared or v does not fit its type
func (c *Config) Set(name string, v interface{}) error {
	opt, ok := c.op.spec.ConfigOption(name)
	if !ok {
		return pfapi.ErrorInvalidArgument(fmt.Sprintf("operator %s has no configuration option %q", c.op.name, name))
	}
	val, ok := v.(pfapi.Value)
	if !ok {
		if val, ok = primitive(v); !ok {
			return pfapi.ErrorInvalidArgument(fmt.Sprintf("option %s cannot take a %T", name, v))
		}
	}
	if err := checkOption(opt, val); err != nil {
		return err
	}
	c.values[name] = val
	c.changed[name] = true
	return nil
}

func checkOption(opt pfapi.ConfigOption, v pfapi.Value) error {
	var err error
	switch opt.Type {
	case pfapi.TypeBool:
		_, err = v.AsBool()
	case pfapi.TypeInt32, pfapi.TypeInt64:
		_, err = v.AsInt()
	case pfapi.TypeDouble:
		_, err = v.AsDouble()
	case pfapi.TypeString:
		_, err = v.AsString()
	}
	if err != nil || v.IsNone() {
		return pfapi.ErrorInvalidArgument(fmt.Sprintf("option %s takes a %s, not %s", opt.Name, opt.Type, v.Tag()))
	}
	return nil
}

// Get returns the value of option name as currently held by c.
func (c *Config) Get(name string) (pfapi.Value, bool) {
	v, ok := c.values[name]
	return v, ok
}

// Changed lists the options set since c was made, sorted.
func (c *Config) Changed() []string {
	names := make([]string, 0, len(c.changed))
	for n := range c.changed {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply sends every changed option of c to the engine. Needs engine 2.0.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when c belongs to another operator
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.Invoke
func (o *Operator) Apply(ctx context.Context, c *Config) error {
	if c.op != o {
		return pfapi.ErrorInvalidArgument("configuration of " + c.op.String() + " applied to " + o.String())
	}
	for _, name := range c.Changed() {
		_, err := o.invoke(ctx, pfapi.OpOperatorConfigSet, engine.V(pfapi.StringValue(name)), engine.V(c.values[name]))
		if err != nil {
			return err
		}
		delete(c.changed, name)
	}
	return nil
}

// SetConfig sets and applies a single option.
//
// Errors:
//
//   - see Config.Set
//   - see Operator.Apply
func (o *Operator) SetConfig(ctx context.Context, name string, v interface{}) error {
	c := o.Config()
	if err := c.Set(name, v); err != nil {
		return err
	}
	return o.Apply(ctx, c)
}

// ConfigValue reads option name as the engine holds it.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when name is not declared
//   - pinflow-error-version-unsupported --
//   - see engine.Engine.Invoke
func (o *Operator) ConfigValue(ctx context.Context, name string) (pfapi.Value, error) {
	if _, ok := o.spec.ConfigOption(name); !ok {
		return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("operator %s has no configuration option %q", o.name, name))
	}
	return o.invoke(ctx, pfapi.OpOperatorConfigGet, engine.V(pfapi.StringValue(name)))
}

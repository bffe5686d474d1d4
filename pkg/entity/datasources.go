package entity

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/engine"
)

// DataSources is the set of files an operator reads from.
type DataSources struct{ base }

// NewDataSources creates data sources, with resultPath as result file when it is not empty.
//
// Errors:
//
//   - see engine.Engine.InvokeHandle
func NewDataSources(ctx context.Context, e *engine.Engine, resultPath string) (*DataSources, error) {
	var args []engine.Arg
	if resultPath != "" {
		args = append(args, engine.V(pfapi.StringValue(resultPath)))
	}
	h, err := e.InvokeHandle(ctx, pfapi.OpDataSourcesNew, nil, pfapi.TypeDataSources, args...)
	if err != nil {
		return nil, err
	}
	return &DataSources{base{h}}, nil
}

func pathArgs(path, key string) []engine.Arg {
	args := []engine.Arg{engine.V(pfapi.StringValue(path))}
	if key != "" {
		args = append(args, engine.V(pfapi.StringValue(key)))
	}
	return args
}

// SetResultPath replaces the result file. An empty key is derived from the file extension.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when path is empty
//   - see engine.Engine.Invoke
func (ds *DataSources) SetResultPath(ctx context.Context, path, key string) error {
	_, err := ds.invoke(ctx, pfapi.OpDataSourcesSetResultPath, pathArgs(path, key)...)
	return err
}

// AddPath registers an accessory file.
//
// Errors:
//
//   - pinflow-error-invalid-argument -- when path is empty
//   - see engine.Engine.Invoke
func (ds *DataSources) AddPath(ctx context.Context, path, key string) error {
	_, err := ds.invoke(ctx, pfapi.OpDataSourcesAddPath, pathArgs(path, key)...)
	return err
}

// AddDomainPath registers the result file of one domain of a distributed solve.
// Needs engine 2.0.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - pinflow-error-invalid-argument -- when path is empty
//   - see engine.Engine.Invoke
func (ds *DataSources) AddDomainPath(ctx context.Context, path, key string, domain int) error {
	_, err := ds.invoke(ctx, pfapi.OpDataSourcesAddDomainPath,
		engine.V(pfapi.StringValue(path)), engine.V(pfapi.StringValue(key)), engine.V(pfapi.IntValue(domain)))
	return err
}

// RegisterNamespace maps a file key to the engine namespace whose readers handle it.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (ds *DataSources) RegisterNamespace(ctx context.Context, key, namespace string) error {
	_, err := ds.invoke(ctx, pfapi.OpDataSourcesRegisterNamespace,
		engine.V(pfapi.StringValue(key)), engine.V(pfapi.StringValue(namespace)))
	return err
}

// Paths lists every registered file.
//
// Errors:
//
//   - pinflow-error-serialization -- when the engine reply does not decode
//   - see engine.Engine.Invoke
func (ds *DataSources) Paths(ctx context.Context) ([]pfapi.DataPath, error) {
	v, err := ds.invoke(ctx, pfapi.OpDataSourcesPaths)
	if err != nil {
		return nil, err
	}
	raw, err := v.AsBytes()
	if err != nil {
		return nil, err
	}
	var paths []pfapi.DataPath
	if err := pfapi.DecodeCBOR(raw, &paths, "List__DataPath"); err != nil {
		return nil, err
	}
	return paths, nil
}

// ResultPaths is Paths filtered to result files.
//
// Errors:
//
//   - see DataSources.Paths
func (ds *DataSources) ResultPaths(ctx context.Context) ([]string, error) {
	paths, err := ds.Paths(ctx)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, p := range paths {
		if p.Result {
			out = append(out, p.Path)
		}
	}
	return out, nil
}

// ResultKey is the key of the result file, empty when there is none.
//
// Errors:
//
//   - see engine.Engine.Invoke
func (ds *DataSources) ResultKey(ctx context.Context) (string, error) {
	v, err := ds.invoke(ctx, pfapi.OpDataSourcesResultKey)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

// AddUpstream chains other data sources behind these. Needs engine 2.0.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
//   - pinflow-error-invalid-argument -- when up is ds itself
//   - see engine.Engine.Invoke
func (ds *DataSources) AddUpstream(ctx context.Context, up *DataSources) error {
	_, err := ds.invoke(ctx, pfapi.OpDataSourcesAddUpstream, engine.H(up.h))
	return err
}

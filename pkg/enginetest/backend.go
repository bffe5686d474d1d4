// Package enginetest is an in-memory reference engine.
//
// A Backend implements the engine side of the operation catalogue for a small set of
// operators (arithmetic on fields, norms, min/max, a displacement reader over result
// files) and can be reached through both transports: as a remote.Handler and as a
// native symbol table. Client packages run their tests against it.
//
// Objects are reference counted by handle. An object stays alive while any handle or
// any other live object refers to it, so releasing an operator that feeds a downstream
// graph does not break the graph.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/warptools/pinflow/pfapi"
)

const LOG_TAG = "enginetest"

// DefaultVersion is the protocol version a Backend reports unless told otherwise.
var DefaultVersion = pfapi.V(4, 1, 0)

// CapabilityPremium unlocks licensed operators.
const CapabilityPremium = "premium"

// Options configure a Backend.
type Options struct {
	Name    string
	Version pfapi.Version
	Context []string // capability flags reported in the handshake
}

// Backend is one reference engine.
type Backend struct {
	name    string
	version pfapi.Version
	context []string

	mu         sync.Mutex
	next       uint64
	handles    map[uint64]*object
	calls      map[string]int
	faults     map[string]int
	files      map[string][]byte
	records    map[int32]*record
	nextRecord int32
}

type object struct {
	kind pfapi.TypeTag
	refs int
	val  interface{}
}

type record struct {
	name     string
	obj      *object
	retained bool
}

// New returns an empty engine.
func New(opts Options) *Backend {
	if opts.Name == "" {
		opts.Name = "reference"
	}
	if opts.Version == (pfapi.Version{}) {
		opts.Version = DefaultVersion
	}
	if opts.Context == nil {
		opts.Context = []string{}
	}
	return &Backend{
		name:    opts.Name,
		version: opts.Version,
		context: opts.Context,
		handles: map[uint64]*object{},
		calls:   map[string]int{},
		faults:  map[string]int{},
		files:   map[string][]byte{},
		records: map[int32]*record{},
	}
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) Version() pfapi.Version { return b.version }

// LiveHandles counts handles handed out and not released.
func (b *Backend) LiveHandles() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handles)
}

// Calls counts how many times op was dispatched.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// FailAfter makes the call to op after the next n fault with an engine error.
// Calls after the failed one succeed again.
func (b *Backend) FailAfter(op string, n int) {
	b.mu.Lock()
	b.faults[op] = n
	b.mu.Unlock()
}

// PutFile makes data readable at path by result operators and file.download.
func (b *Backend) PutFile(path string, data []byte) {
	b.mu.Lock()
	b.files[path] = data
	b.mu.Unlock()
}

func (b *Backend) hasCapability(c string) bool {
	for _, have := range b.context {
		if have == c {
			return true
		}
	}
	return false
}

// call is one dispatched operation.
type call struct {
	b        *Backend
	ctx      context.Context
	op       pfapi.Op
	handle   uint64
	target   *object
	args     []pfapi.Value
	progress func(pfapi.Progress)
}

type handlerFn func(c *call) (pfapi.Value, error)

var handlers = map[string]handlerFn{}

// handlesWithoutTarget lists the operations that do not act on a handle.
var handlesWithoutTarget = map[string]bool{}

func register(op pfapi.Op, needsTarget bool, fn handlerFn) {
	if _, exists := handlers[op.Name]; exists {
		panic("enginetest: duplicate handler for " + op.Name)
	}
	handlers[op.Name] = fn
	if !needsTarget {
		handlesWithoutTarget[op.Name] = true
	}
}

// Dispatch executes one operation. Calls are serialized.
//
// Errors:
//
//   - pinflow-error-not-found -- when the handle or a handle argument is unknown
//   - pinflow-error-version-unsupported -- when the op is newer than the engine
//   - pinflow-error-invalid-argument --
//   - pinflow-error-type-mismatch --
//   - pinflow-error-engine-fault --
//   - pinflow-error-license-unavailable --
func (b *Backend) Dispatch(ctx context.Context, op pfapi.Op, handle uint64, args []pfapi.Value, progress func(pfapi.Progress)) (pfapi.Value, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op.Name]++
	if n, ok := b.faults[op.Name]; ok {
		if n == 0 {
			delete(b.faults, op.Name)
			return pfapi.Value{}, pfapi.ErrorEngineFault(op.Name, "injected failure")
		}
		b.faults[op.Name] = n - 1
	}

	if !b.version.AtLeast(op.Since) {
		return pfapi.Value{}, pfapi.ErrorVersionUnsupported(op.Name, op.Since, b.version)
	}
	fn, ok := handlers[op.Name]
	if !ok {
		return pfapi.Value{}, pfapi.ErrorNotFound("engine operation", op.Name)
	}
	c := &call{b: b, ctx: ctx, op: op, handle: handle, args: args, progress: progress}
	if !handlesWithoutTarget[op.Name] {
		obj, err := b.lookup(handle)
		if err != nil {
			return pfapi.Value{}, err
		}
		c.target = obj
	}
	return fn(c)
}

func (b *Backend) lookup(id uint64) (*object, error) {
	obj, ok := b.handles[id]
	if !ok {
		return nil, pfapi.ErrorNotFound("handle", fmt.Sprint(id))
	}
	return obj, nil
}

// handle hands out a new handle to obj.
func (b *Backend) handle(obj *object) pfapi.Value {
	b.next++
	b.handles[b.next] = obj
	obj.refs++
	return pfapi.HandleValue(pfapi.HandleRef{ID: b.next, Kind: obj.kind})
}

func (b *Backend) release(id uint64) error {
	obj, err := b.lookup(id)
	if err != nil {
		return err
	}
	delete(b.handles, id)
	obj.refs--
	if obj.refs > 0 {
		return nil
	}
	for rid, r := range b.records {
		if r.obj == obj && !r.retained {
			delete(b.records, rid)
		}
	}
	return nil
}

// stringsValue encodes a string list, joined into one string for engines older than 4.0.
func (b *Backend) stringsValue(list []string) pfapi.Value {
	if !b.version.AtLeast(pfapi.V(4, 0, 0)) {
		return pfapi.StringValue(strings.Join(list, pfapi.StringListSeparator))
	}
	return pfapi.StringsValue(list)
}

// boolValue encodes a boolean, as an int32 for engines older than 3.0.
func (b *Backend) boolValue(v bool) pfapi.Value {
	if !b.version.AtLeast(pfapi.V(3, 0, 0)) {
		var i int32
		if v {
			i = 1
		}
		return pfapi.Int32Value(i)
	}
	return pfapi.BoolValue(v)
}

func (b *Backend) encodeResult(v pfapi.Value) pfapi.Value {
	if v.Bool != nil {
		return b.boolValue(*v.Bool)
	}
	if v.Strings != nil {
		return b.stringsValue(*v.Strings)
	}
	return v
}

// argument access

func (c *call) arg(i int) (pfapi.Value, error) {
	if i >= len(c.args) {
		return pfapi.Value{}, pfapi.ErrorInvalidArgument(fmt.Sprintf("%s: missing argument %d", c.op.Name, i))
	}
	return c.args[i], nil
}

func (c *call) has(i int) bool { return i < len(c.args) && !c.args[i].IsNone() }

func (c *call) str(i int) (string, error) {
	v, err := c.arg(i)
	if err != nil {
		return "", err
	}
	return v.AsString()
}

func (c *call) int(i int) (int, error) {
	v, err := c.arg(i)
	if err != nil {
		return 0, err
	}
	n, err := v.AsInt()
	return int(n), err
}

func (c *call) int64(i int) (int64, error) {
	v, err := c.arg(i)
	if err != nil {
		return 0, err
	}
	return v.AsInt()
}

func (c *call) bool(i int) (bool, error) {
	v, err := c.arg(i)
	if err != nil {
		return false, err
	}
	return v.AsBool()
}

func (c *call) ints(i int) ([]int64, error) {
	v, err := c.arg(i)
	if err != nil {
		return nil, err
	}
	return v.AsInts()
}

func (c *call) doubles(i int) ([]float64, error) {
	v, err := c.arg(i)
	if err != nil {
		return nil, err
	}
	return v.AsDoubles()
}

func (c *call) labels(i int) (pfapi.LabelMap, error) {
	v, err := c.arg(i)
	if err != nil {
		return pfapi.LabelMap{}, err
	}
	return v.AsLabels()
}

// obj resolves a handle argument, optionally restricted to kinds.
func (c *call) obj(i int, kinds ...pfapi.TypeTag) (*object, error) {
	v, err := c.arg(i)
	if err != nil {
		return nil, err
	}
	ref, err := v.AsHandle()
	if err != nil {
		return nil, err
	}
	obj, err := c.b.lookup(ref.ID)
	if err != nil {
		return nil, err
	}
	if len(kinds) > 0 && !pfapi.TypeSet(kinds).Contains(obj.kind) {
		return nil, pfapi.ErrorTypeMismatch(c.op.Name, kinds[0], obj.kind)
	}
	return obj, nil
}

// datum resolves an argument that may be a plain value or a handle.
func (c *call) datum(i int) (datum, error) {
	v, err := c.arg(i)
	if err != nil {
		return datum{}, err
	}
	if v.Handle == nil {
		return datum{v: v}, nil
	}
	obj, err := c.b.lookup(v.Handle.ID)
	if err != nil {
		return datum{}, err
	}
	return datum{obj: obj}, nil
}

// datum is a value living engine-side: a primitive or an object.
type datum struct {
	v   pfapi.Value
	obj *object
}

func (d datum) tag() pfapi.TypeTag {
	if d.obj != nil {
		return d.obj.kind
	}
	return d.v.Tag()
}

func (d datum) empty() bool { return d.obj == nil && d.v.IsNone() }

// result turns d into a call result, handing out a handle for objects.
func (c *call) result(d datum) pfapi.Value {
	if d.obj != nil {
		return c.b.handle(d.obj)
	}
	return c.b.encodeResult(d.v)
}

// payload returns the target payload as T.
func payload[T any](c *call) (T, error) {
	v, ok := c.target.val.(T)
	if !ok {
		var zero T
		return zero, pfapi.ErrorTypeMismatch(c.op.Name, kindOf[T](), c.target.kind)
	}
	return v, nil
}

func kindOf[T any]() pfapi.TypeTag {
	var zero T
	switch interface{}(zero).(type) {
	case *fieldObj:
		return pfapi.TypeField
	case *scopingObj:
		return pfapi.TypeScoping
	case *collectionObj:
		return pfapi.TypeFieldsContainer
	case *primitiveObj:
		return pfapi.TypeIntCollection
	case *labelSpaceObj:
		return pfapi.TypeLabelSpace
	case *dataSourcesObj:
		return pfapi.TypeDataSources
	case *operatorObj:
		return pfapi.TypeOperator
	case *workflowObj:
		return pfapi.TypeWorkflow
	case *bagObj:
		return pfapi.TypeAnyEntity
	}
	return pfapi.TypeAny
}

// Operators lists the operator names the engine knows, sorted.
func (b *Backend) Operators() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	register(pfapi.OpHandleRelease, true, func(c *call) (pfapi.Value, error) {
		return pfapi.Value{}, c.b.release(c.handle)
	})
	register(pfapi.OpHandleDuplicate, true, func(c *call) (pfapi.Value, error) {
		return c.b.handle(c.target), nil
	})
	register(pfapi.OpFileUpload, false, func(c *call) (pfapi.Value, error) {
		name, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		data, err := c.arg(1)
		if err != nil {
			return pfapi.Value{}, err
		}
		raw, err := data.AsBytes()
		if err != nil {
			return pfapi.Value{}, err
		}
		path := "/uploads/" + strings.TrimLeft(name, "/")
		c.b.files[path] = append([]byte(nil), raw...)
		return pfapi.StringValue(path), nil
	})
	register(pfapi.OpFileDownload, false, func(c *call) (pfapi.Value, error) {
		path, err := c.str(0)
		if err != nil {
			return pfapi.Value{}, err
		}
		data, err := c.b.readFile(path)
		if err != nil {
			return pfapi.Value{}, err
		}
		return pfapi.BytesValue(data), nil
	})
}

// readFile looks up uploaded and registered files first, then the local filesystem.
func (b *Backend) readFile(path string) ([]byte, error) {
	if data, ok := b.files[path]; ok {
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, pfapi.ErrorIo("reading engine file", path, err)
	}
	return data, nil
}

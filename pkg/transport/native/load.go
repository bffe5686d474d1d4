package native

import (
	"errors"
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/warptools/pinflow/pfapi"
)

var errClosed = errors.New("in-process transport closed")

// Open loads an engine shared library and resolves its ABI.
//
// Errors:
//
//   - pinflow-error-io -- when the library cannot be loaded
//   - pinflow-error-invalid-argument -- when a required symbol is missing
func Open(path string, opts ...Option) (t *Transport, err error) {
	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, pfapi.ErrorIo("loading engine library", path, err)
	}
	defer func() {
		// RegisterLibFunc panics on missing symbols.
		if r := recover(); r != nil {
			err = pfapi.ErrorInvalidArgument("engine library is missing required symbols", [2]string{"path", path})
		}
	}()
	var sym Symbols
	purego.RegisterLibFunc(&sym.Version, lib, "pf_version")
	purego.RegisterLibFunc(&sym.Invoke, lib, "pf_invoke")
	purego.RegisterLibFunc(&sym.Free, lib, "pf_free")
	if _, serr := purego.Dlsym(lib, "pf_context"); serr == nil {
		purego.RegisterLibFunc(&sym.Context, lib, "pf_context")
	}
	t, err = New(sym, append([]Option{WithEngineName(path)}, opts...)...)
	if err != nil {
		return nil, err
	}
	t.lib = lib
	return t, nil
}

func cString(p uintptr) string {
	if p == 0 {
		return ""
	}
	n := 0
	for *(*byte)(unsafe.Pointer(p + uintptr(n))) != 0 {
		n++
	}
	return string(unsafe.Slice((*byte)(unsafe.Pointer(p)), n))
}

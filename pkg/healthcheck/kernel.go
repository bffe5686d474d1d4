package healthcheck

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"unicode"
	"unsafe"

	"github.com/serum-errors/go-serum"
)

// KernelInfo reports the host kernel. The engine ships per-platform builds, so this is informational.
type KernelInfo struct{}

// Run executes the checker
// Errors:
//
//   - pinflow-error-healthcheck-run-fail -- syscall failure
//   - pinflow-error-healthcheck-run-ambiguous -- returns kernel info
func (k *KernelInfo) Run(ctx context.Context) error {
	u, err := uname()
	if err != nil {
		return err
	}
	return serum.Errorf(CodeRunAmbiguous, "%s", kernelInfoString(u))
}

func (k *KernelInfo) String() string {
	return "Kernel info"
}

// Host and domain names are left out; they say nothing about engine compatibility.
func kernelInfoString(u *utsname) string {
	f := strings.Repeat("\t%10s: %s\n", 4)
	f = strings.TrimRightFunc(f, unicode.IsSpace)
	return fmt.Sprintf("\n"+f,
		"Sysname", convertInt8ToString(u.Sysname[:]),
		"Release", convertInt8ToString(u.Release[:]),
		"Version", convertInt8ToString(u.Version[:]),
		"Machine", convertInt8ToString(u.Machine[:]),
	)
}

func convertInt8ToString(x []int8) string {
	b := unsafe.Slice((*byte)(unsafe.Pointer(&x[0])), len(x))
	b = bytes.TrimRight(b, string([]byte{0}))
	return string(b)
}

package pfapi

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/serum-errors/go-serum"
)

func detail(err error, key string) string {
	for _, d := range serum.Details(err) {
		if d[0] == key {
			return d[1]
		}
	}
	return ""
}

func TestFaultConversion(t *testing.T) {
	err := ErrorFromFault("field.get", Fault{Code: CodeNotFound, Message: "no entity 4", Stack: "at kernel"})
	qt.Check(t, serum.Code(err), qt.Equals, CodeNotFound)
	qt.Check(t, detail(err, "op"), qt.Equals, "field.get")
	qt.Check(t, detail(err, "engineCode"), qt.Equals, "")

	back := FaultFromError(err)
	qt.Check(t, back.Code, qt.Equals, CodeNotFound)
	qt.Check(t, back.Stack, qt.Equals, "at kernel")

	err = ErrorFromFault("norm", Fault{Code: "E_SOLVER", Message: "diverged"})
	qt.Check(t, serum.Code(err), qt.Equals, CodeEngineFault)
	qt.Check(t, detail(err, "engineCode"), qt.Equals, "E_SOLVER")

	qt.Check(t, FaultFromError(errors.New("plain")).Code, qt.Equals, CodeEngineFault)
	qt.Check(t, FaultFromError(fmt.Errorf("wrapped: %w", err)).Code, qt.Equals, CodeEngineFault)
}

func TestCodeOf(t *testing.T) {
	code, ok := CodeOf(ErrorNotFound("pin", "x"))
	qt.Check(t, ok, qt.IsTrue)
	qt.Check(t, code, qt.Equals, CodeNotFound)

	// serum.Code invents a name for plain errors; CodeOf does not.
	code, ok = CodeOf(errors.New("plain"))
	qt.Check(t, ok, qt.IsFalse)
	qt.Check(t, code, qt.Equals, "")
	_, ok = CodeOf(nil)
	qt.Check(t, ok, qt.IsFalse)
}

func TestAnnotate(t *testing.T) {
	qt.Check(t, Annotate(nil, "x"), qt.IsNil)

	err := Annotate(ErrorNotFound("operator", "nope"), "creating operator")
	qt.Check(t, serum.Code(err), qt.Equals, CodeNotFound)
	qt.Check(t, detail(err, "name"), qt.Equals, "nope")
	qt.Check(t, err.Error(), qt.Contains, "creating operator")

	err = Annotate(errors.New("boom"), "writing")
	qt.Check(t, serum.Code(err), qt.Equals, CodeInternal)
	qt.Check(t, err.Error(), qt.Contains, "boom")
}

func TestIsCodeFollowsCauses(t *testing.T) {
	io := ErrorIo("reading frame", "", errors.New("eof"))
	err := ErrorTransport("receiving", io)
	qt.Check(t, IsCode(err, CodeTransportFault), qt.IsTrue)
	qt.Check(t, IsCode(err, CodeIo), qt.IsTrue)
	qt.Check(t, IsCode(err, CodeNotFound), qt.IsFalse)
	qt.Check(t, IsCode(nil, CodeIo), qt.IsFalse)
	qt.Check(t, detail(err, "context"), qt.Equals, "receiving")
}

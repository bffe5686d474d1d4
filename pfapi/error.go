package pfapi

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/serum-errors/go-serum"
)

const (
	CodeNotFound           = "pinflow-error-not-found"
	CodeInvalidArgument    = "pinflow-error-invalid-argument"
	CodeTypeMismatch       = "pinflow-error-type-mismatch"
	CodeEngineFault        = "pinflow-error-engine-fault"
	CodeTransportFault     = "pinflow-error-transport-fault"
	CodeVersionUnsupported = "pinflow-error-version-unsupported"
	CodeLicenseUnavailable = "pinflow-error-license-unavailable"
	CodeSerialization      = "pinflow-error-serialization"
	CodeIo                 = "pinflow-error-io"
	CodeInternal           = "pinflow-error-internal"
	CodeConfig             = "pinflow-error-config"
)

// TerminalError emits an error on stdout as json, and halts immediately.
// Only used by entry points that have no better protocol for reporting.
func TerminalError(err serum.ErrorInterface, exitCode int) {
	json.NewEncoder(os.Stdout).Encode(struct {
		Error serum.ErrorInterface `json:"error"`
	}{err})
	os.Exit(exitCode)
}

// IsCode reports whether err, or anything in its cause chain, carries the given code.
func IsCode(err error, code string) bool {
	for err != nil {
		if serum.Code(err) == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// CodeOf returns the code of a serum error. Plain errors have none.
func CodeOf(err error) (string, bool) {
	e, ok := err.(serum.ErrorInterface)
	if !ok {
		return "", false
	}
	return e.Code(), true
}

// Annotate attaches a note describing the call being made, keeping the code of err.
// Errors without a code are reported as internal errors.
func Annotate(err error, note string) error {
	if err == nil {
		return nil
	}
	code, ok := CodeOf(err)
	if !ok {
		code = CodeInternal
	}
	result := serum.Errorf(code, "%s: %w", note, err)
	addDetails(result, serum.Details(err))
	return result
}

// ErrorInternal is for miscellaneous errors where no user intervention is expected.
//
// Errors:
//
//   - pinflow-error-internal --
func ErrorInternal(msg string, cause error) error {
	if cause == nil {
		return serum.Error(CodeInternal, serum.WithMessageLiteral(msg))
	}
	return serum.Errorf(CodeInternal, "%s: %w", msg, cause)
}

// ErrorNotFound is returned when a named engine object cannot be located.
//
// Errors:
//
//   - pinflow-error-not-found --
func ErrorNotFound(what string, name string) error {
	return serum.Error(CodeNotFound,
		serum.WithMessageTemplate("{{what}} not found: {{name}}"),
		serum.WithDetail("what", what),
		serum.WithDetail("name", name),
	)
}

// ErrorReleased is returned when a wrapper is used after its handle was released.
//
// Errors:
//
//   - pinflow-error-not-found --
func ErrorReleased(kind TypeTag) error {
	return serum.Error(CodeNotFound,
		serum.WithMessageTemplate("{{kind}} handle was released"),
		serum.WithDetail("kind", string(kind)),
	)
}

// ErrorInvalidArgument is returned when a value is rejected before reaching the engine.
// The caller formats the message.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
func ErrorInvalidArgument(message string, deets ...[2]string) error {
	opts := make([]serum.WithConstruction, 0, len(deets)+1)
	for _, d := range deets {
		opts = append(opts, serum.WithDetail(d[0], d[1]))
	}
	opts = append(opts, serum.WithMessageLiteral(message))
	return serum.Error(CodeInvalidArgument, opts...)
}

// ErrorPinOutOfRange is returned when a pin index is not declared by the operator specification.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
func ErrorPinOutOfRange(operator string, direction string, pin int) error {
	return serum.Error(CodeInvalidArgument,
		serum.WithMessageTemplate("operator {{operator}} has no {{direction}} pin {{pin}}"),
		serum.WithDetail("operator", operator),
		serum.WithDetail("direction", direction),
		serum.WithDetail("pin", fmt.Sprint(pin)),
	)
}

// ErrorPinType is returned when a provided value kind is not accepted by an input pin.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
func ErrorPinType(operator string, pin string, got TypeTag, accepted TypeSet) error {
	return serum.Error(CodeInvalidArgument,
		serum.WithMessageTemplate("pin {{pin}} of operator {{operator}} does not accept {{got}} (accepts {{accepted}})"),
		serum.WithDetail("operator", operator),
		serum.WithDetail("pin", pin),
		serum.WithDetail("got", string(got)),
		serum.WithDetail("accepted", accepted.String()),
	)
}

// ErrorCrossEngine is returned when a handle owned by one engine is given to another.
//
// Errors:
//
//   - pinflow-error-invalid-argument --
func ErrorCrossEngine(kind TypeTag, owner string, target string) error {
	return serum.Error(CodeInvalidArgument,
		serum.WithMessageTemplate("{{kind}} belongs to engine {{owner}} and cannot be used on engine {{target}}; deep copy it first"),
		serum.WithDetail("kind", string(kind)),
		serum.WithDetail("owner", owner),
		serum.WithDetail("target", target),
	)
}

// ErrorTypeMismatch is returned when a value of one type was expected and another was produced.
//
// Errors:
//
//   - pinflow-error-type-mismatch --
func ErrorTypeMismatch(context string, want TypeTag, got TypeTag) error {
	return serum.Error(CodeTypeMismatch,
		serum.WithMessageTemplate("{{context}}: expected {{want}}, got {{got}}"),
		serum.WithDetail("context", context),
		serum.WithDetail("want", string(want)),
		serum.WithDetail("got", string(got)),
	)
}

// ErrorVersionUnsupported is returned when a feature needs a newer engine than the connected one.
//
// Errors:
//
//   - pinflow-error-version-unsupported --
func ErrorVersionUnsupported(feature string, need Version, have Version) error {
	return serum.Error(CodeVersionUnsupported,
		serum.WithMessageTemplate("{{feature}} requires engine version {{need}} or newer, connected engine is {{have}}"),
		serum.WithDetail("feature", feature),
		serum.WithDetail("need", need.String()),
		serum.WithDetail("have", have.String()),
	)
}

// ErrorTransport wraps failures of the channel to the engine.
//
// Errors:
//
//   - pinflow-error-transport-fault --
func ErrorTransport(context string, cause error) error {
	result := serum.Errorf(CodeTransportFault, "transport fault: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}})
	return result
}

// ErrorLicenseUnavailable is returned by engines refusing to run an operator they hold no license for.
//
// Errors:
//
//   - pinflow-error-license-unavailable --
func ErrorLicenseUnavailable(operator string, capability string) error {
	return serum.Error(CodeLicenseUnavailable,
		serum.WithMessageTemplate("operator {{operator}} requires the {{capability}} capability"),
		serum.WithDetail("operator", operator),
		serum.WithDetail("capability", capability),
	)
}

// ErrorEngineFault is returned by engine hosts when a computation fails.
//
// Errors:
//
//   - pinflow-error-engine-fault --
func ErrorEngineFault(operator string, message string) error {
	return serum.Error(CodeEngineFault,
		serum.WithMessageTemplate("{{operator}}: {{message}}"),
		serum.WithDetail("operator", operator),
		serum.WithDetail("message", message),
	)
}

// ErrorFromFault converts an engine-error payload into a coded error.
// Faults carrying an unknown code are reported as engine faults.
//
// Errors:
//
//   - pinflow-error-engine-fault --
//   - pinflow-error-not-found --
//   - pinflow-error-invalid-argument --
//   - pinflow-error-type-mismatch --
//   - pinflow-error-license-unavailable --
//   - pinflow-error-version-unsupported --
func ErrorFromFault(op string, f Fault) error {
	code := f.Code
	switch code {
	case CodeNotFound, CodeInvalidArgument, CodeTypeMismatch, CodeLicenseUnavailable,
		CodeVersionUnsupported, CodeEngineFault:
	default:
		code = CodeEngineFault
	}
	opts := []serum.WithConstruction{
		serum.WithMessageLiteral(f.Message),
		serum.WithDetail("op", op),
	}
	if f.Code != code {
		opts = append(opts, serum.WithDetail("engineCode", f.Code))
	}
	if f.Stack != "" {
		opts = append(opts, serum.WithDetail("stack", f.Stack))
	}
	return serum.Error(code, opts...)
}

// FaultFromError is the inverse of ErrorFromFault, used by engine hosts.
func FaultFromError(err error) Fault {
	code, ok := CodeOf(err)
	if !ok {
		code = CodeEngineFault
	}
	f := Fault{Code: code, Message: err.Error()}
	for _, d := range serum.Details(err) {
		if d[0] == "stack" {
			f.Stack = d[1]
		}
	}
	return f
}

// ErrorSerialization is returned when a serialization or deserialization error occurs
//
// Errors:
//
//   - pinflow-error-serialization --
func ErrorSerialization(context string, cause error) error {
	result := serum.Errorf(CodeSerialization,
		"serialization error: %s: %w", context, cause)
	addDetails(result, [][2]string{
		{"context", context},
	})
	return result
}

// ErrorIo wraps generic I/O errors from the Go stdlib
//
// Errors:
//
//   - pinflow-error-io --
func ErrorIo(context string, path string, cause error) error {
	result := serum.Errorf(CodeIo,
		"io error: %s: %w", context, cause)
	addDetails(result, [][2]string{{"context", context}, {"path", path}})
	return result
}

// ErrorConfig is returned when an environment setting cannot be interpreted.
//
// Errors:
//
//   - pinflow-error-config --
func ErrorConfig(key string, value string, reason string) error {
	return serum.Error(CodeConfig,
		serum.WithMessageTemplate("invalid setting {{key}}={{value}}: {{reason}}"),
		serum.WithDetail("key", key),
		serum.WithDetail("value", value),
		serum.WithDetail("reason", reason),
	)
}

// addDetails appends details to an error built by serum.Errorf,
// which does not accept detail options itself.
func addDetails(err error, details [][2]string) {
	s := err.(*serum.ErrorValue)
	s.Data.Details = append(s.Data.Details, details...)
}

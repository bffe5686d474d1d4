// Package healthcheck inspects the local engine setup and reports what looks wrong.
//
// Every check is a Runner. A Runner always answers with a serum error whose code is
// one of the CodeRun* codes and whose message is the line shown to the user.
package healthcheck

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/serum-errors/go-serum"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/logging"
)

const LOG_TAG = "healthcheck"

const (
	CodeRunOkay      = "pinflow-error-healthcheck-run-okay"
	CodeRunFailure   = "pinflow-error-healthcheck-run-fail"
	CodeRunAmbiguous = "pinflow-error-healthcheck-run-ambiguous"
)

type Status int

const (
	// StatusNone is the zero value and used for unset status value
	StatusNone Status = iota
	StatusOkay
	StatusFail
	StatusAmbiguous
	StatusUnknown
)

// Characters used to display status
const (
	StatusCharacter_None      = "∅"
	StatusCharacter_Okay      = "✔"
	StatusCharacter_Failure   = "✘"
	StatusCharacter_Ambiguous = "?"
	StatusCharacter_Unknown   = "!"
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return StatusCharacter_None
	case StatusOkay:
		return StatusCharacter_Okay
	case StatusAmbiguous:
		return StatusCharacter_Ambiguous
	case StatusFail:
		return StatusCharacter_Failure
	default:
		return StatusCharacter_Unknown
	}
}

type Runner interface {
	// Run returns a serum error that contains a human readable message and a status code.
	// Runner should not return a nil
	// Errors:
	//
	//    - pinflow-error-healthcheck-run-okay --
	//    - pinflow-error-healthcheck-run-fail --
	//    - pinflow-error-healthcheck-run-ambiguous --
	Run(context.Context) error
	// Header shown in front of the result
	String() string
}

type HealthCheck struct {
	Runners []Runner
	Results []serum.ErrorInterfaceWithMessage
}

// Run executes all the runners assigned to this health check, in order.
// Errors: none -- Errors are just stored for later
func (h *HealthCheck) Run(ctx context.Context) error {
	log := logging.Ctx(ctx)
	h.Results = make([]serum.ErrorInterfaceWithMessage, 0, len(h.Runners))
	for i, runnable := range h.Runners {
		log.Debug(LOG_TAG, "runner %d: %s", i, runnable)
		err := runnable.Run(ctx)
		result, ok := err.(serum.ErrorInterfaceWithMessage)
		if !ok {
			result = serum.Errorf(CodeRunFailure, "runner has invalid interface: %v", err).(serum.ErrorInterfaceWithMessage)
		}
		h.Results = append(h.Results, result)
	}
	return nil
}

// Failed reports whether any result has a failing status.
func (h *HealthCheck) Failed() bool {
	for _, r := range h.Results {
		if StatusOf(r) == StatusFail {
			return true
		}
	}
	return false
}

// Fprint emits formatted text of run results to the writer
// Errors:
//
//   - pinflow-error-internal -- when the health check was not run before printing results
func (h *HealthCheck) Fprint(w io.Writer) error {
	if len(h.Runners) != len(h.Results) {
		return pfapi.ErrorInternal("health check must run before printing results", nil)
	}
	headers := make([]string, 0, len(h.Runners))
	maxHeaderLen := 0
	for _, runner := range h.Runners {
		header := runner.String()
		headers = append(headers, header)
		if len(header) > maxHeaderLen {
			maxHeaderLen = len(header)
		}
	}
	for i, result := range h.Results {
		status := StatusOf(result)
		statusStr := TermColor(status).Sprint(status)
		fmt.Fprintf(w, " %s  %-*s\t%s\n", statusStr, maxHeaderLen, headers[i], result.Message())
	}
	return nil
}

func TermColor(s Status) *color.Color {
	result := color.New()
	switch s {
	case StatusNone:
		return result.Add(color.Reset)
	case StatusOkay:
		return result.Add(color.FgHiGreen, color.Bold)
	case StatusAmbiguous:
		return result.Add(color.FgHiYellow, color.Bold)
	case StatusFail:
		return result.Add(color.FgHiRed, color.Bold)
	default:
		return result.Add(color.FgHiMagenta, color.Bold)
	}
}

// StatusOf converts serum codes to status enumeration values
func StatusOf(err error) Status {
	if err == nil {
		return StatusNone
	}
	if _, ok := err.(serum.ErrorInterface); !ok {
		return StatusNone
	}
	switch serum.Code(err) {
	case CodeRunFailure:
		return StatusFail
	case CodeRunOkay:
		return StatusOkay
	case CodeRunAmbiguous:
		return StatusAmbiguous
	default:
		return StatusUnknown
	}
}

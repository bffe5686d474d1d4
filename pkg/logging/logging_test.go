package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestLoggerContext(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	ctx := NewLogger(out, errOut, false, false).WithContext(context.Background())

	log := Ctx(ctx)
	log.Info("engine", "connected to %s", "local")
	log.Debug("engine", "hidden")
	log.Out("result: %d", 5)

	qt.Assert(t, strings.Contains(errOut.String(), "connected to local"), qt.IsTrue)
	qt.Assert(t, strings.Contains(errOut.String(), "hidden"), qt.IsFalse)
	qt.Assert(t, out.String(), qt.Equals, "result: 5\n")
}

func TestQuietDefault(t *testing.T) {
	// without a logger in context nothing is written by Info
	log := Ctx(context.Background())
	qt.Assert(t, log.quiet, qt.IsTrue)
}

func TestInfoWriterSplitsLines(t *testing.T) {
	errOut := &bytes.Buffer{}
	l := NewLogger(&bytes.Buffer{}, errOut, false, true)
	w := l.InfoWriter("progress")
	_, err := w.Write([]byte("one\ntwo\n"))
	qt.Assert(t, err, qt.IsNil)
	qt.Assert(t, strings.Count(errOut.String(), "\n"), qt.Equals, 2)
}

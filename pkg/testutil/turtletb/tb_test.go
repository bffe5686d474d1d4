package turtletb

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRun(t *testing.T) {
	tb := Run(t, func(tb testing.TB) {
		tb.Logf("step %d", 1)
		qt.Assert(tb, 1, qt.Equals, 2)
		tb.Log("after the assert")
	})
	qt.Check(t, tb.Failed(), qt.IsTrue)
	qt.Check(t, tb.Has(Logged, `^step 1$`), qt.IsTrue)
	qt.Check(t, tb.Has(Errored, `values are not equal`), qt.IsTrue)
	qt.Check(t, tb.Has(Logged|Errored, `after the assert`), qt.IsFalse)

	tb = Run(t, func(tb testing.TB) {
		tb.Skip("no engine")
	})
	qt.Check(t, tb.Failed(), qt.IsFalse)
	qt.Check(t, tb.Skipped(), qt.IsTrue)
	qt.Check(t, tb.Entries(), qt.DeepEquals, []Entry{{Skipped, "no engine"}})
}

// Package turtletb provides a testing.TB whose failures are recorded instead of failing the real test.
// Test helpers that are supposed to fail, like the fatal paths of engine fixtures, are run against it.
package turtletb

import (
	"fmt"
	"regexp"
	"runtime"
	"sync"
	"testing"
)

// Kind is a bit set so Has can match several kinds at once.
type Kind int

const (
	Logged Kind = 1 << iota
	Errored
	Skipped
)

type Entry struct {
	Kind Kind
	Text string
}

// TB records Log, Error, Fatal and Skip calls.
// Everything else, Helper and Cleanup included, goes to the parent test.
type TB struct {
	testing.TB

	mu      sync.Mutex
	failed  bool
	skipped bool
	entries []Entry
}

var _ testing.TB = &TB{}

// Run executes f against a fresh TB on its own goroutine and waits for it to
// return, fail fatally or skip.
func Run(parent testing.TB, f func(testing.TB)) *TB {
	tb := &TB{TB: parent}
	done := make(chan struct{})
	go func() {
		defer close(done)
		f(tb)
	}()
	<-done
	return tb
}

// Has reports whether an entry of one of the kinds in mask matches pattern.
func (tb *TB) Has(mask Kind, pattern string) bool {
	re := regexp.MustCompile(pattern)
	tb.mu.Lock()
	defer tb.mu.Unlock()
	for _, e := range tb.entries {
		if e.Kind&mask != 0 && re.MatchString(e.Text) {
			return true
		}
	}
	return false
}

// Entries returns what was recorded, in order.
func (tb *TB) Entries() []Entry {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return append([]Entry(nil), tb.entries...)
}

func (tb *TB) add(k Kind, text string) {
	tb.mu.Lock()
	tb.entries = append(tb.entries, Entry{k, text})
	switch k {
	case Errored:
		tb.failed = true
	case Skipped:
		tb.skipped = true
	}
	tb.mu.Unlock()
	tb.TB.Log(text)
}

func (tb *TB) Log(args ...any)                 { tb.add(Logged, fmt.Sprint(args...)) }
func (tb *TB) Logf(format string, args ...any) { tb.add(Logged, fmt.Sprintf(format, args...)) }

func (tb *TB) Error(args ...any)                 { tb.add(Errored, fmt.Sprint(args...)) }
func (tb *TB) Errorf(format string, args ...any) { tb.add(Errored, fmt.Sprintf(format, args...)) }

func (tb *TB) Fatal(args ...any) {
	tb.Error(args...)
	runtime.Goexit()
}

func (tb *TB) Fatalf(format string, args ...any) {
	tb.Errorf(format, args...)
	runtime.Goexit()
}

func (tb *TB) Skip(args ...any) {
	tb.add(Skipped, fmt.Sprint(args...))
	runtime.Goexit()
}

func (tb *TB) Skipf(format string, args ...any) {
	tb.add(Skipped, fmt.Sprintf(format, args...))
	runtime.Goexit()
}

func (tb *TB) Fail() {
	tb.mu.Lock()
	tb.failed = true
	tb.mu.Unlock()
}

func (tb *TB) FailNow() {
	tb.Fail()
	runtime.Goexit()
}

func (tb *TB) SkipNow() {
	tb.mu.Lock()
	tb.skipped = true
	tb.mu.Unlock()
	runtime.Goexit()
}

func (tb *TB) Failed() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.failed
}

func (tb *TB) Skipped() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.skipped
}

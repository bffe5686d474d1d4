package engine

import (
	"context"
	"sort"
	"sync"

	"github.com/warptools/pinflow/pfapi"
	"github.com/warptools/pinflow/pkg/transport"
)

// ProgressSink displays progress of evaluations.
type ProgressSink interface {
	Begin(label string)
	Update(label string, p pfapi.Progress)
	End(label string, err error)
}

// Session coordinates evaluations on one engine: it tracks outstanding
// evaluations and runs a progress reader for the ones that ask for it.
type Session struct {
	eng  *Engine
	sink ProgressSink

	mu          sync.Mutex
	next        uint64
	outstanding map[uint64]string
	readers     int
}

// SetSink replaces the progress display sink. A nil sink disables progress readers.
func (s *Session) SetSink(sink ProgressSink) {
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

// Evaluate runs fn as a registered evaluation labelled label.
// When withProgress is set and a sink is installed, a reader goroutine forwards
// engine progress events to the sink until fn returns.
func (s *Session) Evaluate(ctx context.Context, label string, withProgress bool, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.next++
	id := s.next
	s.outstanding[id] = label
	sink := s.sink
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.outstanding, id)
		s.mu.Unlock()
	}()

	if !withProgress || sink == nil {
		return fn(ctx)
	}

	events := make(chan pfapi.Progress, 64)
	stop := make(chan struct{})
	finished := make(chan struct{})
	s.mu.Lock()
	s.readers++
	s.mu.Unlock()
	sink.Begin(label)
	go func() {
		defer close(finished)
		for {
			select {
			case p := <-events:
				sink.Update(label, p)
			case <-stop:
				for {
					select {
					case p := <-events:
						sink.Update(label, p)
					default:
						return
					}
				}
			}
		}
	}()

	err := fn(transport.WithProgress(ctx, events))
	close(stop)
	<-finished
	s.mu.Lock()
	s.readers--
	s.mu.Unlock()
	sink.End(label, err)
	return err
}

// Outstanding lists the labels of evaluations in flight, sorted.
func (s *Session) Outstanding() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.outstanding))
	for _, l := range s.outstanding {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// ActiveReaders counts running progress readers.
func (s *Session) ActiveReaders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readers
}

// Package transport abstracts how calls reach an engine.
//
// Two variants implement Transport: a framed remote channel (package remote)
// and an in-process binding over a C ABI (package native).
// Higher layers never see the difference.
package transport

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
)

// HandleID is the opaque 64-bit value naming an engine object.
// Zero never names an object.
type HandleID uint64

// Call is one engine operation invocation.
type Call struct {
	Op     pfapi.Op
	Handle HandleID
	Args   []pfapi.Value
}

// Transport dispatches calls to one engine. Calls are synchronous.
//
// A HandleID returned by one Transport is meaningless to any other.
type Transport interface {
	// Invoke runs call and returns its result; the zero Value means no result.
	//
	// Errors:
	//
	//   - pinflow-error-transport-fault -- the channel failed
	//   - pinflow-error-engine-fault -- the engine reported a failure
	//   - any other code the engine reports
	Invoke(ctx context.Context, call Call) (pfapi.Value, error)

	// Info is what the engine said about itself during session negotiation.
	Info() pfapi.Welcome

	// Kind names the variant, for diagnostics.
	Kind() string

	// Close tears the channel down. Outstanding calls fail.
	Close() error
}

type progressKey struct{}

// WithProgress asks transports to forward engine progress events for calls made with ctx.
// Transports that cannot report progress ignore the channel.
// The transport never closes ch.
func WithProgress(ctx context.Context, ch chan<- pfapi.Progress) context.Context {
	return context.WithValue(ctx, progressKey{}, ch)
}

// ProgressFrom returns the channel registered by WithProgress, or nil.
func ProgressFrom(ctx context.Context) chan<- pfapi.Progress {
	ch, _ := ctx.Value(progressKey{}).(chan<- pfapi.Progress)
	return ch
}

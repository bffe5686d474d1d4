package engine

import (
	"context"

	"github.com/warptools/pinflow/pfapi"
)

type ctxKey struct{}

// WithEngine returns a context carrying e as the default engine, for scripts
// that would rather not pass the engine around explicitly.
func WithEngine(ctx context.Context, e *Engine) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromContext returns the default engine carried by ctx.
//
// Errors:
//
//   - pinflow-error-not-found -- when ctx carries no engine
func FromContext(ctx context.Context) (*Engine, error) {
	if e, ok := ctx.Value(ctxKey{}).(*Engine); ok && e != nil {
		return e, nil
	}
	return nil, pfapi.ErrorNotFound("engine", "default engine in context")
}

// Pick returns e when non-nil and the context default otherwise.
//
// Errors:
//
//   - pinflow-error-not-found -- when neither is available
func Pick(ctx context.Context, e *Engine) (*Engine, error) {
	if e != nil {
		return e, nil
	}
	return FromContext(ctx)
}

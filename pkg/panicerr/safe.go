// Package panicerr turns panics in background work into errors so a single
// failing goroutine cannot take the process down.
package panicerr

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"

	"github.com/ultrona/mantlog/pkg/cerr"
)

// Safe wraps fn so a panic is returned as an Internal error carrying the
// stack of the panicking goroutine.
func Safe(fn func() error) func() error {
	return func() error {
		return try(fn)
	}
}

// SafeContext is Safe for functions taking a context.
func SafeContext(fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		return try(func() error { return fn(ctx) })
	}
}

func try(fn func() error) error {
	var (
		catcher panics.Catcher
		err     error
	)
	catcher.Try(func() {
		err = fn()
	})
	if err != nil {
		return err
	}
	r := catcher.Recovered()
	if r == nil {
		return nil
	}
	e := cerr.NewError(cerr.Internal, fmt.Sprintf("panic: %v", r.Value), r.AsError())
	e.Stack = string(r.Stack)
	return e
}

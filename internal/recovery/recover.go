// Package recovery provides panic recovery around calls into user code.
// Ensures fetchers, host callbacks and destroy hooks can't crash the process.
package recovery

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// ErrPanic marks errors produced from a recovered panic.
var ErrPanic = errors.New("panic recovered")

// RecoverToError wraps a function call with panic recovery.
// If the function panics, converts the panic to an error wrapping ErrPanic.
//
// Example:
//
//	err := recovery.RecoverToError(logger, "Authenticate", func() error {
//	    return authenticator.Check(ctx, token)
//	})
func RecoverToError(logger *slog.Logger, operation string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, "Panic recovered", operation, r)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

// RecoverToValue wraps a function that returns a value and error.
// If the function panics, returns zero value and an error wrapping ErrPanic.
//
// Example:
//
//	page, err := recovery.RecoverToValue(logger, "Fetch", func() (Page, error) {
//	    return fetcher.Fetch(ctx, req)
//	})
func RecoverToValue[T any](logger *slog.Logger, operation string, fn func() (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, "Panic recovered", operation, r)

			var zero T
			result = zero
			err = fmt.Errorf("%w: %s: %v", ErrPanic, operation, r)
		}
	}()

	return fn()
}

// Recover wraps a void function with panic recovery.
// Logs the panic and reports whether fn returned normally.
// Use for callbacks and cleanup where errors can't be returned.
func Recover(logger *slog.Logger, operation string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, "Panic recovered in callback", operation, r)
			ok = false
		}
	}()

	fn()
	return true
}

func logPanic(logger *slog.Logger, msg, operation string, r any) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error(msg,
		"operation", operation,
		"panic", r,
		"stack", string(debug.Stack()),
	)
}

package gridsource

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hugr-lab/gridsource-go/internal/recovery"
	"github.com/hugr-lab/gridsource-go/payload"
)

// Config contains configuration for a data source bridge.
type Config struct {
	// Logger for internal logging.
	// OPTIONAL: Uses slog.Default() if nil.
	// Note: If LogLevel is specified, a new logger will be created with that level.
	Logger *slog.Logger

	// LogLevel sets the logging level.
	// OPTIONAL: If nil, the Logger (or slog.Default()) is used unchanged.
	// If Logger is also provided, LogLevel is ignored (use pre-configured logger).
	LogLevel *slog.Level

	// FetchTimeout bounds a single fetch through its context.
	// OPTIONAL: If 0, the fetch runs with the host context only.
	// The fetcher must honour ctx.Done() for the timeout to have an effect.
	FetchTimeout time.Duration

	// Encoder converts fetched rows to the grid payload.
	// OPTIONAL: Uses payload.Default() (lowerCamel keys) if nil.
	Encoder *payload.Encoder

	// OnError receives the detail of every failed request. The grid only
	// learns that the request failed; this hook is where applications
	// surface the reason.
	// OPTIONAL: failures are logged only.
	OnError ErrorHandler
}

// RequestInfo identifies a request in error reports.
type RequestInfo struct {
	// ID is a unique id assigned by the bridge to each invocation.
	ID string

	// Request is the decoded request. Zero value if decoding failed.
	Request RowRangeRequest
}

// ErrorHandler receives out-of-band failure details.
type ErrorHandler func(info RequestInfo, err error)

// Standard errors returned by the gridsource package.
var (
	// ErrInvalidConfig indicates Config or builder validation failed.
	ErrInvalidConfig = errors.New("invalid data source config")

	// ErrDecode indicates the host request could not be decoded.
	ErrDecode = errors.New("failed to decode get-rows request")

	// ErrMissingField indicates the host request lacked a required field.
	ErrMissingField = errors.New("missing request field")

	// ErrUnknownSortDirection indicates an unrecognized sort token.
	ErrUnknownSortDirection = errors.New("unknown sort direction")

	// ErrInvalidRow indicates a negative row index.
	ErrInvalidRow = errors.New("invalid row index")

	// ErrFetch wraps errors returned by a Fetcher.
	ErrFetch = errors.New("fetch failed")

	// ErrEncode indicates the fetched rows could not be encoded.
	ErrEncode = errors.New("failed to encode rows")

	// ErrPanic indicates a fetcher or callback panicked.
	ErrPanic = recovery.ErrPanic

	// ErrDestroyed indicates a request arrived after Destroy.
	ErrDestroyed = errors.New("data source destroyed")
)

// DecodeError reports which request field failed to decode.
// errors.Is(err, ErrDecode) holds for every DecodeError.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDecode, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes every DecodeError match ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}

// resolveLogger applies the Logger / LogLevel defaults.
func resolveLogger(logger *slog.Logger, level *slog.Level) *slog.Logger {
	if logger != nil {
		return logger
	}
	if level != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: *level}))
	}
	return slog.Default()
}

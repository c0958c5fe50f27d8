package gridsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugr-lab/gridsource-go/internal/recovery"
	"github.com/hugr-lab/gridsource-go/payload"
)

// Bridge binds a Fetcher to the host get-rows callback protocol.
//
// A Bridge is created once, when the grid is configured, and stays
// invokable for the whole life of the grid: the host may call GetRows any
// number of times, including after long idle periods. Its lifetime is
// unbounded on purpose because the infinite row model has no "grid
// destroyed" signal; hosts that do have one call Destroy.
//
// The bridge holds no per-request state and never spawns goroutines. Each
// GetRows call resolves its request exactly once through Success or Fail.
type Bridge[T any] struct {
	fetcher Fetcher[T]
	encoder *payload.Encoder
	logger  *slog.Logger
	timeout time.Duration
	onError ErrorHandler

	destroyed   atomic.Bool
	destroyOnce sync.Once
}

// NewBridge creates a bridge owning the given fetcher.
// Returns ErrInvalidConfig if fetcher is nil or the config is invalid.
func NewBridge[T any](fetcher Fetcher[T], config Config) (*Bridge[T], error) {
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", ErrInvalidConfig)
	}

	encoder := config.Encoder
	if encoder == nil {
		encoder = payload.Default()
	}

	return &Bridge[T]{
		fetcher: fetcher,
		encoder: encoder,
		logger:  resolveLogger(config.Logger, config.LogLevel),
		timeout: config.FetchTimeout,
		onError: config.OnError,
	}, nil
}

// validateConfig checks that Config fields are valid.
func validateConfig(config Config) error {
	if config.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout must not be negative, got %s", config.FetchTimeout)
	}
	return nil
}

// GetRows handles one host request:
//  1. Decodes the host handle into a RowRangeRequest
//  2. Calls the fetcher once, recovering panics
//  3. Encodes the rows and calls Success with the payload as sole argument
//  4. On any failure calls Fail with no arguments and reports the detail
//     to the logger and Config.OnError
//
// GetRows returns after the request has been resolved.
func (b *Bridge[T]) GetRows(ctx context.Context, req HostRequest) {
	if req == nil {
		b.logger.Error("GetRows called with nil request")
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	info := RequestInfo{ID: uuid.NewString()}
	done := &completion{req: req, logger: b.logger.With("request_id", info.ID)}

	if b.destroyed.Load() {
		b.failRequest(done, info, ErrDestroyed)
		return
	}

	rr, err := DecodeRequest(req)
	if err != nil {
		b.failRequest(done, info, err)
		return
	}
	info.Request = rr

	done.logger.Debug("GetRows request", "request", rr)

	fetchCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	page, err := recovery.RecoverToValue(done.logger, "Fetch", func() (Page[T], error) {
		return b.fetcher.Fetch(fetchCtx, rr)
	})
	if err != nil {
		if !errors.Is(err, ErrPanic) {
			err = fmt.Errorf("%w: %w", ErrFetch, err)
		}
		b.failRequest(done, info, err)
		return
	}

	data, err := b.encoder.Encode(page.Rows)
	if err != nil {
		b.failRequest(done, info, fmt.Errorf("%w: %w", ErrEncode, err))
		return
	}

	done.logger.Debug("GetRows completed",
		"rows", len(page.Rows),
		"has_last_row", page.LastRow != nil,
	)

	done.succeed(Payload{RowData: data, LastRow: page.LastRow})
}

// failRequest resolves the request through Fail and reports err out-of-band.
func (b *Bridge[T]) failRequest(done *completion, info RequestInfo, err error) {
	done.logger.Warn("GetRows failed", "error", err)

	done.fail()

	if b.onError != nil {
		recovery.Recover(done.logger, "OnError", func() {
			b.onError(info, err)
		})
	}
}

// Destroy releases the fetcher if it implements Destroyer. Requests that
// arrive afterwards fail with ErrDestroyed. Safe to call more than once.
func (b *Bridge[T]) Destroy() {
	b.destroyOnce.Do(func() {
		b.destroyed.Store(true)
		if d, ok := b.fetcher.(Destroyer); ok {
			recovery.Recover(b.logger, "Destroy", d.Destroy)
		}
		b.logger.Debug("Data source destroyed")
	})
}

// Destroyed reports whether Destroy was called.
func (b *Bridge[T]) Destroyed() bool {
	return b.destroyed.Load()
}

// completion guards the two completion handles of one request so that only
// the first call of either handle reaches the host.
type completion struct {
	req    HostRequest
	logger *slog.Logger
	fired  atomic.Bool
}

func (c *completion) claim(handle string) bool {
	if c.fired.CompareAndSwap(false, true) {
		return true
	}
	c.logger.Error("Completion handle invoked after request was resolved", "handle", handle)
	return false
}

func (c *completion) succeed(p Payload) {
	if !c.claim("success") {
		return
	}
	recovery.Recover(c.logger, "SuccessCallback", func() {
		c.req.Success(p)
	})
}

func (c *completion) fail() {
	if !c.claim("fail") {
		return
	}
	recovery.Recover(c.logger, "FailCallback", c.req.Fail)
}

// Package limit wraps fetchers with concurrency and rate limits.
//
// Requests from a grid overlap: scrolling quickly issues several block
// requests before the first one returns. Fetchers backed by shared,
// non-reentrant state or a rate limited API wrap themselves with one of
// these decorators instead of synchronising internally.
package limit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	gridsource "github.com/hugr-lab/gridsource-go"
)

// ErrInvalidDefinition indicates a limiter definition is invalid.
var ErrInvalidDefinition = errors.New("limit: invalid definition")

// Definition describes a limiter.
type Definition struct {
	// Name identifies the limiter in logs.
	Name string `yaml:"name"`

	// FillRate is the number of fetches allowed per second.
	// OPTIONAL: 0 disables rate limiting.
	FillRate rate.Limit `yaml:"fill_rate"`

	// BucketSize is the burst size of the rate limiter.
	// OPTIONAL: defaults to 1 when FillRate is set.
	BucketSize int `yaml:"bucket_size"`

	// MaxConcurrency is the number of fetches allowed in flight.
	// OPTIONAL: 0 means unlimited.
	MaxConcurrency int64 `yaml:"max_concurrency"`
}

// Validate checks the definition.
func (d Definition) Validate() error {
	var errs []string
	if d.FillRate < 0 {
		errs = append(errs, "fill_rate must not be negative")
	}
	if d.BucketSize < 0 {
		errs = append(errs, "bucket_size must not be negative")
	}
	if d.MaxConcurrency < 0 {
		errs = append(errs, "max_concurrency must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %s", ErrInvalidDefinition, d.Name, strings.Join(errs, ", "))
	}
	return nil
}

// Limiter bounds the rate and concurrency of fetches.
type Limiter struct {
	Name string

	// underlying rate limiter
	limiter *rate.Limiter
	// semaphore to control concurrency
	sem            *semaphore.Weighted
	maxConcurrency int64
}

// New creates a limiter from a definition.
func New(d Definition) (*Limiter, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	l := &Limiter{
		Name:           d.Name,
		maxConcurrency: d.MaxConcurrency,
	}
	if d.FillRate != 0 {
		burst := d.BucketSize
		if burst == 0 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(d.FillRate, burst)
	}
	if d.MaxConcurrency != 0 {
		l.sem = semaphore.NewWeighted(d.MaxConcurrency)
	}
	return l, nil
}

func (l *Limiter) String() string {
	var parts []string
	if l.limiter != nil {
		parts = append(parts, fmt.Sprintf("Limit(/s): %v, Burst: %d", l.limiter.Limit(), l.limiter.Burst()))
	}
	if l.maxConcurrency > 0 {
		parts = append(parts, fmt.Sprintf("MaxConcurrency: %d", l.maxConcurrency))
	}
	if len(parts) == 0 {
		return "unlimited"
	}
	return strings.Join(parts, " ")
}

// Wait blocks until a fetch may start or ctx is done. Every successful
// Wait must be paired with a Release.
func (l *Limiter) Wait(ctx context.Context) error {
	if l.sem != nil {
		if err := l.sem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			l.Release()
			return err
		}
	}
	return nil
}

// Release frees the concurrency slot taken by Wait.
func (l *Limiter) Release() {
	if l.sem == nil {
		return
	}
	l.sem.Release(1)
}

// limited is a fetcher gated by a Limiter.
type limited[T any] struct {
	next    gridsource.Fetcher[T]
	limiter *Limiter
}

// Wrap gates every Fetch of f behind l. The returned fetcher forwards
// Destroy to f when f implements gridsource.Destroyer.
func Wrap[T any](f gridsource.Fetcher[T], l *Limiter) gridsource.Fetcher[T] {
	return &limited[T]{next: f, limiter: l}
}

// Fetch implements gridsource.Fetcher.
func (f *limited[T]) Fetch(ctx context.Context, req gridsource.RowRangeRequest) (gridsource.Page[T], error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return gridsource.Page[T]{}, fmt.Errorf("limit %s: %w", f.limiter.Name, err)
	}
	defer f.limiter.Release()
	return f.next.Fetch(ctx, req)
}

// Destroy implements gridsource.Destroyer.
func (f *limited[T]) Destroy() {
	if d, ok := f.next.(gridsource.Destroyer); ok {
		d.Destroy()
	}
}

// Serial allows at most one fetch of f in flight.
func Serial[T any](f gridsource.Fetcher[T]) gridsource.Fetcher[T] {
	return Concurrency(f, 1)
}

// Concurrency allows at most n fetches of f in flight. n <= 0 means unlimited.
func Concurrency[T any](f gridsource.Fetcher[T], n int64) gridsource.Fetcher[T] {
	l, _ := New(Definition{Name: "concurrency", MaxConcurrency: max(n, 0)})
	return Wrap(f, l)
}

// RateLimit allows r fetches of f per second with bursts of up to burst.
func RateLimit[T any](f gridsource.Fetcher[T], r rate.Limit, burst int) gridsource.Fetcher[T] {
	l, _ := New(Definition{Name: "rate", FillRate: max(r, 0), BucketSize: max(burst, 0)})
	return Wrap(f, l)
}

// Package refresh owns the lifecycle of the published result bundle: time-based
// expiry, manual refresh and single-flight recomputation.
package refresh

import (
	"context"
	"errors"
	"finops-usage/connectors/csv"
	"finops-usage/domain/usage"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// DefaultTTL is how long a bundle is served before it goes stale.
	DefaultTTL = time.Hour
	// DefaultRetryInterval spaces out background refreshes after a failure.
	DefaultRetryInterval = time.Minute
)

// Source yields the latest raw usage export.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (io.ReadCloser, error)
}

// Computer turns raw export rows into a bundle.
type Computer interface {
	Compute(rows []map[string]string, source string) (*usage.Bundle, error)
}

// ComputerFunc adapts a plain function to Computer.
type ComputerFunc func(rows []map[string]string, source string) (*usage.Bundle, error)

func (f ComputerFunc) Compute(rows []map[string]string, source string) (*usage.Bundle, error) {
	return f(rows, source)
}

// State is the coordinator's lifecycle position.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	case StateRefreshing:
		return "refreshing"
	default:
		return "empty"
	}
}

type published struct {
	bundle *usage.Bundle
	at     time.Time
}

// Coordinator serves the current bundle to concurrent readers and recomputes it
// when it expires or on request. At most one recomputation runs at a time; the
// new bundle replaces the old one with a single pointer swap.
type Coordinator struct {
	source       Source
	computer     Computer
	ttl          time.Duration
	retry        time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	current     atomic.Pointer[published]
	lastErr     atomic.Pointer[error]
	lastFailure atomic.Int64
	refreshing  atomic.Bool
	group       singleflight.Group
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTTL sets the bundle lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRetryInterval sets how long stale reads wait after a failed refresh
// before starting another one. Explicit Refresh calls are not limited.
func WithRetryInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.retry = d }
}

// WithFetchTimeout bounds each fetch from the source.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.fetchTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator in the empty state.
func New(source Source, computer Computer, opts ...Option) *Coordinator {
	c := &Coordinator{source: source, computer: computer, ttl: DefaultTTL, retry: DefaultRetryInterval, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Bundle returns the published bundle. The first call blocks until the initial
// computation finishes and returns its error if it fails. Afterwards Bundle never
// blocks: a stale bundle is returned as is while a background refresh runs, and
// refresh failures are not reported here.
func (c *Coordinator) Bundle(ctx context.Context) (*usage.Bundle, error) {
	p := c.current.Load()
	if p == nil {
		return c.Refresh(ctx)
	}
	if c.expired(p) && c.retryDue() {
		c.group.DoChan(c.key(), func() (any, error) {
			return c.recompute(context.WithoutCancel(ctx))
		})
	}
	return p.bundle, nil
}

// Refresh recomputes the bundle and waits for the result. A refresh already in
// flight is joined rather than duplicated. On failure the previous bundle stays
// published and the error is returned to this caller only.
func (c *Coordinator) Refresh(ctx context.Context) (*usage.Bundle, error) {
	ch := c.group.DoChan(c.key(), func() (any, error) {
		return c.recompute(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*usage.Bundle), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Current returns the published bundle without blocking or triggering a
// refresh. It is nil until the first successful computation.
func (c *Coordinator) Current() *usage.Bundle {
	if p := c.current.Load(); p != nil {
		return p.bundle
	}
	return nil
}

// State reports the lifecycle position.
func (c *Coordinator) State() State {
	p := c.current.Load()
	switch {
	case p == nil:
		return StateEmpty
	case c.refreshing.Load():
		return StateRefreshing
	case c.expired(p):
		return StateStale
	default:
		return StateFresh
	}
}

// LastError returns the error of the most recent failed refresh, or nil once a
// refresh has succeeded since.
func (c *Coordinator) LastError() error {
	if e := c.lastErr.Load(); e != nil {
		return *e
	}
	return nil
}

func (c *Coordinator) key() string { return c.source.Name() }

func (c *Coordinator) expired(p *published) bool {
	return c.now().Sub(p.at) > c.ttl
}

func (c *Coordinator) retryDue() bool {
	last := c.lastFailure.Load()
	return last == 0 || c.now().Sub(time.Unix(0, last)) >= c.retry
}

func (c *Coordinator) recompute(ctx context.Context) (*usage.Bundle, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	name := c.source.Name()
	start := c.now()
	slog.Info("refresh.start", "source", name)

	b, err := c.load(ctx, name)
	if err != nil {
		c.lastErr.Store(&err)
		c.lastFailure.Store(c.now().UnixNano())
		level := slog.LevelWarn
		var ce *usage.ComputationError
		if errors.As(err, &ce) {
			level = slog.LevelError
		}
		slog.Log(ctx, level, "refresh.failed", "source", name, "error", err, "serving_previous", c.current.Load() != nil)
		return nil, err
	}

	c.current.Store(&published{bundle: b, at: c.now()})
	c.lastErr.Store(nil)
	c.lastFailure.Store(0)
	slog.Info("refresh.done", "source", name, "generation", b.Generation, "records", len(b.Records), "recommendations", len(b.Recommendations), "duration", c.now().Sub(start))
	return b, nil
}

// load runs one cycle. A panic anywhere in it fails this cycle only.
func (c *Coordinator) load(ctx context.Context, name string) (b *usage.Bundle, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, err = nil, &usage.ComputationError{Stage: "refresh", Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	if c.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.fetchTimeout)
		defer cancel()
	}
	rc, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, &usage.IngestionError{Source: name, Err: err}
	}
	defer rc.Close()

	rows, err := csv.ReadRows(rc)
	if err != nil {
		return nil, &usage.IngestionError{Source: name, Err: err}
	}
	return c.computer.Compute(rows, name)
}

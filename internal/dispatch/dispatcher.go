// Package dispatch wraps every outbound delivery call with rate-limit aware
// retries and recipient-loss detection.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	kit "quizbot/internal/transport"
	logx "quizbot/pkg/logx"
)

// ErrRecipientUnreachable is returned when the recipient can never be reached again.
// Callers abandon the session silently.
var ErrRecipientUnreachable = errors.New("dispatch: recipient unreachable")

// ErrAttemptsExhausted wraps the last rate-limit error once MaxAttempts is reached.
var ErrAttemptsExhausted = errors.New("dispatch: attempts exhausted")

type Config struct {
	MaxAttempts   int           // total attempts including the first; default 5
	RatePerSec    float64       // outbound throttle; <=0 disables
	Burst         int           // limiter burst; default 1
	MaxRetryAfter time.Duration // cap for a single retry-after wait; <=0 means no cap
	CallTimeout   time.Duration // per-attempt timeout; <=0 means none
}

// Stats are best-effort counters for /healthz.
type Stats struct {
	Calls       uint64 `json:"calls"`
	Retries     uint64 `json:"retries"`
	Unreachable uint64 `json:"unreachable"`
	Failed      uint64 `json:"failed"`
}

// Dispatcher runs outbound operations under the retry policy:
//   - rate limited: wait the suggested duration, then retry (bounded)
//   - recipient unreachable: fail immediately with ErrRecipientUnreachable
//   - anything else: fail immediately
type Dispatcher struct {
	cfg     Config
	log     logx.Logger
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error

	calls, retries, unreachable, failed atomic.Uint64
}

type Option func(*Dispatcher)

// WithSleep replaces the wait used between attempts. Tests use it to avoid real delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) {
		if fn != nil {
			d.sleep = fn
		}
	}
}

func New(cfg Config, log logx.Logger, opts ...Option) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{cfg: cfg, log: log.Component("dispatch"), sleep: sleepCtx}
	if cfg.RatePerSec > 0 {
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst)
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Do runs op under the retry policy. name labels log lines.
func (d *Dispatcher) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	_, err := Call(ctx, d, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Call is Do for operations that return a value.
func Call[T any](ctx context.Context, d *Dispatcher, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	d.calls.Add(1)

	var lastErr error
	for n := 1; n <= d.cfg.MaxAttempts; n++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return zero, err
			}
		}

		v, err := runAttempt(ctx, d.cfg.CallTimeout, op)
		if err == nil {
			return v, nil
		}
		lastErr = err

		if errors.Is(err, kit.ErrRecipientUnreachable) {
			d.unreachable.Add(1)
			d.log.Debug("recipient unreachable", logx.String("op", name), logx.Err(err))
			return zero, fmt.Errorf("%w: %s: %w", ErrRecipientUnreachable, name, err)
		}
		wait, limited := kit.RetryAfterOf(err)
		if !limited {
			d.failed.Add(1)
			return zero, err
		}
		if n == d.cfg.MaxAttempts {
			break
		}
		if d.cfg.MaxRetryAfter > 0 && wait > d.cfg.MaxRetryAfter {
			wait = d.cfg.MaxRetryAfter
		}
		d.retries.Add(1)
		d.log.Debug("rate limited, retrying",
			logx.String("op", name),
			logx.Int("attempt", n),
			logx.Int("max", d.cfg.MaxAttempts),
			logx.Duration("retry_after", wait),
		)
		if err := d.sleep(ctx, wait); err != nil {
			return zero, err
		}
	}

	d.failed.Add(1)
	d.log.Warn("giving up after rate limits", logx.String("op", name), logx.Int("attempts", d.cfg.MaxAttempts), logx.Err(lastErr))
	return zero, fmt.Errorf("%w: %s: %w", ErrAttemptsExhausted, name, lastErr)
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return op(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return op(cctx)
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Calls:       d.calls.Load(),
		Retries:     d.retries.Load(),
		Unreachable: d.unreachable.Load(),
		Failed:      d.failed.Load(),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	logx "quizbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// PanicError is returned in place of a handler that panicked.
type PanicError struct {
	Route string
	Value any
}

func (e *PanicError) Error() string { return fmt.Sprintf("%s: panic: %v", e.Route, e.Value) }

// MWTimeout bounds a handler to d. A handler that fails after its own
// deadline passed gets the route and limit added to its error.
func MWTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			if d <= 0 {
				return next(ctx, req)
			}
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			err := next(cctx, req)
			if err != nil && ctx.Err() == nil && errors.Is(cctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%s: exceeded %s: %w", req.Command, d, err)
			}
			return err
		}
	}
}

// MWPanicRecover turns a handler panic into a *PanicError. The stack is logged
// once here; callers only see the error.
func MWPanicRecover(log logx.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				req.logger(log).Error("handler panic", logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
				err = &PanicError{Route: req.Command, Value: rec}
			}()
			return next(ctx, req)
		}
	}
}

// MWRequestLog logs the outcome of every routed update together with the
// fields the handler attached through Request.Annotate (session, stage, ...).
// Successful updates faster than slow are logged at DEBUG.
func MWRequestLog(log logx.Logger, slow time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			fields := append([]logx.Field{
				logx.String("kind", string(req.Update.Kind)),
				logx.Duration("took", took),
			}, req.annotations()...)
			logger := req.logger(log)
			switch {
			case err != nil:
				logger.Warn("update failed", append(fields, logx.Err(err))...)
			case slow > 0 && took >= slow:
				logger.Info("slow update", fields...)
			default:
				logger.Debug("update handled", fields...)
			}
			return err
		}
	}
}

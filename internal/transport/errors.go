package transport

import (
	"errors"
	"fmt"
	"time"
)

// ErrRecipientUnreachable means the recipient blocked the bot, was deactivated
// or the chat no longer exists. Retrying cannot succeed.
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// RateLimitError is returned when the channel asks the caller to slow down.
type RateLimitError struct {
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited (retry after %s)", e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// RateLimited wraps err as a *RateLimitError.
func RateLimited(after time.Duration, err error) error {
	return &RateLimitError{RetryAfter: after, Err: err}
}

// Unreachable wraps err so that errors.Is(err, ErrRecipientUnreachable) holds.
func Unreachable(err error) error {
	if err == nil {
		return ErrRecipientUnreachable
	}
	return fmt.Errorf("%w: %v", ErrRecipientUnreachable, err)
}

// RetryAfterOf reports the suggested wait when err is a rate limit.
func RetryAfterOf(err error) (time.Duration, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter, true
	}
	return 0, false
}

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDurationField parses a duration value at path. Besides Go duration
// strings ("1500ms", "6h") a bare integer is read as milliseconds. Empty is 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	var d time.Duration
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		d = time.Duration(ms) * time.Millisecond
	} else {
		d, err = time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%s: %q is not a duration or a millisecond count", path, raw)
		}
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %q", path, raw)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for an empty or zero value.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

type durationKey struct {
	path string
	raw  string
}

// durationKeys lists every duration-valued key of cfg.
func durationKeys(cfg *Config) []durationKey {
	keys := []durationKey{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"telegram.handler_timeout", cfg.Telegram.HandlerTimeout},
		{"quiz.avatar.next_round_delay", cfg.Quiz.Avatar.NextRoundDelay},
		{"quiz.avatar.batch_delay", cfg.Quiz.Avatar.BatchDelay},
		{"quiz.art.next_round_delay", cfg.Quiz.Art.NextRoundDelay},
		{"quiz.art.batch_delay", cfg.Quiz.Art.BatchDelay},
		{"quiz.session_idle_ttl", cfg.Quiz.SessionIdleTTL},
		{"dispatch.max_retry_after", cfg.Dispatch.MaxRetryAfter},
		{"dispatch.call_timeout", cfg.Dispatch.CallTimeout},
		{"stats.write_timeout", cfg.Stats.WriteTimeout},
		{"stats.retry_base", cfg.Stats.RetryBase},
		{"stats.retry_max_delay", cfg.Stats.RetryMaxDelay},
		{"scheduler.job_timeout", cfg.Scheduler.JobTimeout},
	}
	if cfg.Storage != nil {
		keys = append(keys, durationKey{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	return keys
}

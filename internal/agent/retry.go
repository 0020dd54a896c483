package agent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/andywolf/taskrunner/internal/taskerr"
)

// errorClass is the result of classifying a provider error's text, the
// single utility parameterized by (is_rate_limit, is_transient, parse_reset)
// every provider adapter's retry loop shares, per the "Retry loops" design
// note.
type errorClass int

const (
	classFatal errorClass = iota
	classRateLimit
	classTransient
)

var rateLimitMarkers = []string{
	"hit your limit", "rate limit", "usage limit", "429", "quota",
}

var transientMarkers = []string{
	"timeout", "connection", "500", "502", "503", "504", "temporarily", "try again",
}

// classify determines whether msg describes a rate-limit, transient, or
// fatal provider error. Rate-limit is checked first: some vendor messages
// combine both a quota warning and a generic "try again" suffix, and §4.3
// treats the rate-limit case as the governing one.
func classify(msg string) errorClass {
	lower := strings.ToLower(msg)
	for _, m := range rateLimitMarkers {
		if strings.Contains(lower, m) {
			return classRateLimit
		}
	}
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return classTransient
		}
	}
	return classFatal
}

// IsRateLimitError reports whether msg's text matches the rate-limit
// acceptance set. It is idempotent and closed under ASCII case changes, as
// required by spec: applying it to an already-lowercased string or to the
// original produces the same answer.
func IsRateLimitError(msg string) bool {
	return classify(msg) == classRateLimit
}

// IsTransientError reports whether msg's text matches the transient
// acceptance set (and is not itself a rate-limit message).
func IsTransientError(msg string) bool {
	return classify(msg) == classTransient
}

var resetTimePattern = regexp.MustCompile(`(?i)resets?\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)

// parseResetTime extracts a wall-clock reset time from a rate-limit
// message such as "rate limit hit; resets 5pm", anchored to now's date. If
// the parsed time has already passed today, it rolls forward to the same
// time tomorrow, per spec's "treated as tomorrow same time" rule.
func parseResetTime(msg string, now time.Time) (time.Time, bool) {
	m := resetTimePattern.FindStringSubmatch(msg)
	if m == nil {
		return time.Time{}, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil {
			return time.Time{}, false
		}
	}
	if strings.EqualFold(m[3], "pm") && hour != 12 {
		hour += 12
	} else if strings.EqualFold(m[3], "am") && hour == 12 {
		hour = 0
	}

	reset := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if reset.Before(now) {
		reset = reset.Add(24 * time.Hour)
	}
	return reset, true
}

const (
	rateLimitMinWait     = 30 * time.Second
	rateLimitMaxWait     = 2 * time.Hour
	rateLimitNoResetWait = 60 * time.Second
	rateLimitResetBuffer = 10 * time.Second
	defaultMaxRateLimitRetries = 100

	transientInitialBackoff    = 30 * time.Second
	transientMaxBackoff        = 10 * time.Minute
	defaultMaxTransientRetries = 10
)

// RetryLimits caps how many times RunWithRetry retries each error class,
// overridable from config's retry.max_rate_limit_retries/
// retry.max_transient_retries so an operator can tighten or loosen the
// defaults without a code change.
type RetryLimits struct {
	MaxRateLimitRetries int
	MaxTransientRetries int
}

// DefaultRetryLimits returns the runner's built-in caps.
func DefaultRetryLimits() RetryLimits {
	return RetryLimits{MaxRateLimitRetries: defaultMaxRateLimitRetries, MaxTransientRetries: defaultMaxTransientRetries}
}

func (l RetryLimits) orDefault() RetryLimits {
	if l.MaxRateLimitRetries <= 0 {
		l.MaxRateLimitRetries = defaultMaxRateLimitRetries
	}
	if l.MaxTransientRetries <= 0 {
		l.MaxTransientRetries = defaultMaxTransientRetries
	}
	return l
}

// rateLimitWait computes how long to sleep before retrying after a
// rate-limit error, clamped to [30s, 2h].
func rateLimitWait(msg string, now time.Time) time.Duration {
	reset, ok := parseResetTime(msg, now)
	if !ok {
		return rateLimitNoResetWait
	}
	wait := reset.Sub(now) + rateLimitResetBuffer
	if wait < rateLimitMinWait {
		wait = rateLimitMinWait
	}
	if wait > rateLimitMaxWait {
		wait = rateLimitMaxWait
	}
	return wait
}

// transientBackoff computes the exponential backoff for the attempt'th
// transient retry (attempt is 0-indexed), doubling from 30s and capped at
// 10 minutes.
func transientBackoff(attempt int) time.Duration {
	wait := transientInitialBackoff
	for i := 0; i < attempt; i++ {
		wait *= 2
		if wait >= transientMaxBackoff {
			return transientMaxBackoff
		}
	}
	return wait
}

// Sleeper abstracts time.Sleep so tests can inject an instant or
// instrumented implementation instead of waiting in real time.
type Sleeper func(ctx context.Context, d time.Duration) error

// RealSleeper sleeps for d or returns ctx.Err() if ctx is canceled first.
func RealSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunWithRetry calls fn until it succeeds, fn returns a fatal error, or the
// relevant retry budget is exhausted. RateLimit retries do not count
// against rateLimitAttempt's sibling transientAttempt counter and vice
// versa, matching §4.3's independent retry caps. now is injected so tests
// can control reset-time math; sleep is injected so tests don't wait in
// real time.
func RunWithRetry(ctx context.Context, now func() time.Time, sleep Sleeper, onRetry func(class string, wait time.Duration), fn func(ctx context.Context) error) error {
	return RunWithRetryLimits(ctx, DefaultRetryLimits(), now, sleep, onRetry, fn)
}

// RunWithRetryLimits is RunWithRetry with explicit per-class retry caps.
func RunWithRetryLimits(ctx context.Context, limits RetryLimits, now func() time.Time, sleep Sleeper, onRetry func(class string, wait time.Duration), fn func(ctx context.Context) error) error {
	limits = limits.orDefault()
	var rateLimitAttempts, transientAttempts int
	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return taskerr.Wrap(taskerr.KindCancelled, "context canceled during agent call", ctx.Err())
		}

		msg := err.Error()
		switch classify(msg) {
		case classRateLimit:
			if rateLimitAttempts >= limits.MaxRateLimitRetries {
				return taskerr.Wrap(taskerr.KindRateLimit, "rate-limit retries exhausted", err)
			}
			wait := rateLimitWait(msg, now())
			rateLimitAttempts++
			if onRetry != nil {
				onRetry("rate_limit", wait)
			}
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return taskerr.Wrap(taskerr.KindCancelled, "context canceled during rate-limit wait", sleepErr)
			}
		case classTransient:
			if transientAttempts >= limits.MaxTransientRetries {
				return taskerr.Wrap(taskerr.KindTransient, "transient retries exhausted", err)
			}
			wait := transientBackoff(transientAttempts)
			transientAttempts++
			if onRetry != nil {
				onRetry("transient", wait)
			}
			if sleepErr := sleep(ctx, wait); sleepErr != nil {
				return taskerr.Wrap(taskerr.KindCancelled, "context canceled during transient backoff", sleepErr)
			}
		default:
			if isAuthError(msg) {
				return taskerr.Wrap(taskerr.KindAuth, "agent authentication failed", err)
			}
			return err
		}
	}
}

func isAuthError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "401") || strings.Contains(lower, "unauthorized")
}

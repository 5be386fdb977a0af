package otp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type attemptStore interface {
	RecordAttempt(ctx context.Context, email string, at time.Time, ttl time.Duration) (string, error)
	ReleaseAttempt(ctx context.Context, email, sk string) error
	CountAttemptsSince(ctx context.Context, email string, since time.Time) (int, int64, error)
}

// LimitResult reports the outcome of a rate-limit reservation.
type LimitResult struct {
	Allowed           bool
	AttemptsRemaining int
	ResetIn           int // minutes until the oldest in-window attempt ages out
	Message           string
}

// Limiter bounds OTP issuance per email inside a trailing window.
//
// Reserve records the attempt first and counts afterwards, so a burst of
// concurrent requests cannot all observe the pre-burst count and pass —
// only the first maxAttempts reservations in a window succeed.
type Limiter struct {
	store      attemptStore
	window     time.Duration
	failClosed bool
}

func NewLimiter(store attemptStore, window time.Duration, failClosed bool) *Limiter {
	return &Limiter{store: store, window: window, failClosed: failClosed}
}

// Reserve claims one issuance slot for the email. When the store fails the
// limiter fails open (allows) unless configured fail-closed: throttling is a
// defense-in-depth layer and must not take legitimate traffic down with it.
func (l *Limiter) Reserve(ctx context.Context, email string, maxAttempts int) LimitResult {
	now := time.Now()
	sk, err := l.store.RecordAttempt(ctx, email, now, l.window)
	if err != nil {
		return l.failOpen("record otp attempt", email, err)
	}
	count, oldest, err := l.store.CountAttemptsSince(ctx, email, now.Add(-l.window))
	if err != nil {
		return l.failOpen("count otp attempts", email, err)
	}
	if count > maxAttempts {
		// A denied request does not consume a slot; only accepted issuances
		// count as creation events, so retrying while throttled cannot push
		// the window out indefinitely.
		if err := l.store.ReleaseAttempt(ctx, email, sk); err != nil {
			slog.Warn("failed to release denied otp attempt", "email", email, "err", err)
		}
		resetIn := l.minutesUntilReset(oldest, now)
		return LimitResult{
			Allowed: false,
			ResetIn: resetIn,
			Message: fmt.Sprintf("Too many OTP requests. Please try again in %d minute(s).", resetIn),
		}
	}
	return LimitResult{Allowed: true, AttemptsRemaining: maxAttempts - count}
}

func (l *Limiter) failOpen(op, email string, err error) LimitResult {
	slog.Error("otp rate limiter storage failure", "op", op, "email", email, "err", err)
	if l.failClosed {
		return LimitResult{
			Allowed: false,
			ResetIn: int(l.window.Minutes()),
			Message: "Too many OTP requests. Please try again later.",
		}
	}
	return LimitResult{Allowed: true, AttemptsRemaining: 0}
}

// minutesUntilReset ceiling-rounds the time until the oldest in-window
// attempt exits the window, floored at one minute so the hint is always
// actionable.
func (l *Limiter) minutesUntilReset(oldest int64, now time.Time) int {
	if oldest == 0 {
		return int(l.window.Minutes())
	}
	remaining := time.Unix(oldest, 0).Add(l.window).Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// Package timeutil provides the clock abstraction and time formatting helpers
// used by the progress engine. Every component reads time through a Clock so
// tests can move time forward deterministically.
package timeutil

import (
	"fmt"
	"time"
)

// Day is a calendar day as used by lesson windows and due offsets.
const Day = 24 * time.Hour

// Clock is the source of time and deferred execution.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc runs f in its own goroutine (real clock) or during Advance
	// (fake clock) once d has elapsed. The returned Timer cancels it.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle for a pending AfterFunc call.
type Timer interface {
	// Stop prevents the call from firing. It returns false if the call
	// already fired or was already stopped.
	Stop() bool
}

// RealClock is a Clock backed by the time package.
type RealClock struct{}

// NewRealClock returns the wall clock.
func NewRealClock() RealClock { return RealClock{} }

// Now returns time.Now in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// AfterFunc wraps time.AfterFunc.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// StartOfDay returns midnight (UTC) of the given time.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	return int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
}

// FormatRelative returns a human-readable time of t relative to now,
// e.g. "Just now", "5 minutes ago", "in 2 days".
func FormatRelative(now, t time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return formatFutureDuration(-d)
	}
	return formatPastDuration(d)
}

func formatPastDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return plural(int(d.Minutes()), "minute") + " ago"
	case d < Day:
		return plural(int(d.Hours()), "hour") + " ago"
	case d < 2*Day:
		return "Yesterday"
	case d < 7*Day:
		return plural(int(d/Day), "day") + " ago"
	case d < 30*Day:
		return plural(int(d/(7*Day)), "week") + " ago"
	default:
		return plural(int(d/(30*Day)), "month") + " ago"
	}
}

func formatFutureDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "Now"
	case d < time.Hour:
		return "in " + plural(int(d.Minutes()), "minute")
	case d < Day:
		return "in " + plural(int(d.Hours()), "hour")
	case d < 2*Day:
		return "Tomorrow"
	default:
		return "in " + plural(int(d/Day), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

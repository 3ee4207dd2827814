// Package zeit converts between wall-clock time and the minutes-since-midnight
// representation used throughout the dispatcher model, and formats Verspätung
// (delay) values for logs and diagnostics.
//
// Complexity: every function here is O(1).
package zeit

import (
	"fmt"
	"math"
	"time"
)

// Minuten is minutes-since-midnight, possibly negative or beyond 1440 when a
// train's plan crosses midnight. Callers that need a true clock wall time
// should combine Minuten with a reference date via FromClock/ToClock.
type Minuten float64

// Unbekannt marks a target/event time that was never set (no plan, no
// prognosis, no measurement). Using -Inf keeps clamp arithmetic in prognose
// well-defined without a separate "unset" sentinel threaded through every call.
var Unbekannt = Minuten(math.Inf(-1))

// IstBekannt reports whether m carries a real time value.
func IstBekannt(m Minuten) bool {
	return !math.IsInf(float64(m), -1) && !math.IsInf(float64(m), 1)
}

// FromClock converts a wall-clock time to minutes-since-midnight relative to
// its own calendar day.
func FromClock(t time.Time) Minuten {
	h, m, s := t.Clock()
	return Minuten(h*60+m) + Minuten(s)/60
}

// ToClock reconstructs a wall-clock time on the calendar day of ref using m
// minutes-since-midnight. Values outside [0, 1440) roll over into neighboring
// days, which is how overnight services are represented.
func ToClock(m Minuten, ref time.Time) time.Time {
	midnight := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, ref.Location())
	return midnight.Add(time.Duration(float64(m) * float64(time.Minute)))
}

// Verspaetung formats a delay in minutes the way the dispatcher views do:
// "pünktlich" at exactly zero, a leading '+' for positive values, the raw
// negative sign for early running, and "?" when the value is unknown.
func Verspaetung(v Minuten) string {
	if !IstBekannt(v) {
		return "?"
	}
	if v == 0 {
		return "pünktlich"
	}
	if v > 0 {
		return fmt.Sprintf("+%d", int(math.Round(float64(v))))
	}
	return fmt.Sprintf("%d", int(math.Round(float64(v))))
}

// Clamp returns target bounded into [min, max], applying min last so the
// result is never below it even when min > max (an inconsistent constraint
// set, which prognose logs rather than silently resolving the other way).
func Clamp(target, min, max Minuten) Minuten {
	result := target
	if IstBekannt(max) && result > max {
		result = max
	}
	if IstBekannt(min) && result < min {
		result = min
	}
	return result
}

// Package rlog centralizes the engine's logging so every package logs
// through one glyph-prefixed convention instead of scattering ad hoc
// log.Printf calls, and so tests can silence it in one place.
package rlog

import "log"

// Silence disables all output; tests call this to keep runs quiet.
var silenced bool

func Silence(v bool) { silenced = v }

func printf(glyph, format string, args ...interface{}) {
	if silenced {
		return
	}
	log.Printf("["+glyph+"] "+format, args...)
}

// Run logs a top-level lifecycle event for one target (baseline probe,
// calibration result, teardown).
func Run(format string, args ...interface{}) { printf("run", format, args...) }

// Round logs a narrowing-round event (chunk submitted, chunk anomalous,
// chunk discarded).
func Round(format string, args ...interface{}) { printf("round", format, args...) }

// Found logs a confirmed candidate.
func Found(format string, args ...interface{}) { printf("found", format, args...) }

// Warn logs a non-fatal anomaly (unhealthy status, unstable calibration).
func Warn(format string, args ...interface{}) { printf("warn", format, args...) }

// Error logs a fatal-to-the-target condition (kill switch tripped,
// transport exhausted).
func Error(format string, args ...interface{}) { printf("error", format, args...) }

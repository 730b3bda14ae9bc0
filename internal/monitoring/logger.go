// Package monitoring holds the process-wide diagnostic logger used by code
// that has no logging stream of its own.
package monitoring

import (
	"io"
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// UseWriter sends Logf output to w with the given line prefix, using the
// same flags as the per-package stream loggers. A nil writer mutes Logf.
func UseWriter(w io.Writer, prefix string) {
	if w == nil {
		SetLogger(nil)
		return
	}
	SetLogger(log.New(w, prefix, log.LstdFlags|log.Lmicroseconds).Printf)
}

// Elapsed logs how long the step named label has taken since start. Use it
// as defer monitoring.Elapsed("filter", time.Now()).
func Elapsed(label string, start time.Time) {
	Logf("%s took %s", label, time.Since(start).Round(time.Millisecond))
}

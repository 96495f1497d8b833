// Package monitoring carries the process-wide diagnostic logger shared by
// the estimator, bus, and sensor-source packages.
package monitoring

import (
	"log"
	"os"
)

// Callers prefix their own subsystem ("fusion:", "bus:", ...); the logger
// only stamps the time. Microsecond timestamps, because the streams being
// diagnosed tick at sensor rate and whole seconds bury the interleaving.
var std = log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

// Logf is the package-level diagnostic logger. It defaults to the package's
// stderr logger but may be replaced by SetLogger. Tests or production code
// can redirect or mute it.
var Logf func(format string, v ...interface{}) = std.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

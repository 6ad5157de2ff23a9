package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced or muted with SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a printf-style function that writes through Logf with
// "[source] " prepended, for handing to components that accept a logger.
// Logf is resolved on each call, so a later SetLogger still applies.
func Prefixed(source string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf("[%s] "+format, append([]interface{}{source}, v...)...)
	}
}

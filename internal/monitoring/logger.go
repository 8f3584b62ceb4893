// Package monitoring carries the redirectable diagnostic logger used by
// hot paths such as the UDP ingest loop. Unlike the process log, callers
// may mute or capture this stream without touching the log package.
package monitoring

import "log"

// Logf emits one diagnostic line. It defaults to log.Printf and can be
// swapped with SetLogger, so per-datagram noise stays out of test output
// and can be rerouted in production.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the diagnostic sink. A nil sink mutes the stream.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

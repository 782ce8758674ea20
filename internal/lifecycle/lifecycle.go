// Package lifecycle holds process-wide readiness and drain flags read by the
// health endpoint.
package lifecycle

import "sync/atomic"

var (
	shuttingDown atomic.Bool
	ready        atomic.Bool
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health handler returns 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown returns true if the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// SetReady marks that the first snapshot has been scored. Health reports
// starting until then.
func SetReady(v bool) {
	ready.Store(v)
}

// IsReady reports whether the first assessment cycle has completed.
func IsReady() bool {
	return ready.Load()
}

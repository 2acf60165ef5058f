package transport

import (
	"net"
	"time"
)

// Extension error codes (txrx.Status.Kind == ExtensionCode) shared across the
// transports in this package, per spec.md §7's "Code/Info carry
// transport-specific detail" escape hatch.
const (
	codeMissingRemoteAddr uint32 = iota + 1
	codeResolveFailed
	codeDialFailed
	codeListenFailed
	codeOpenFailed
)

// pollDeadline returns the earlier of opDeadline and now+interval, so a
// blocking read/write never holds the management goroutine past either the
// op's own deadline or one poll tick — whichever comes first. A zero
// opDeadline means "no deadline": only the poll tick applies.
func pollDeadline(opDeadline time.Time, interval time.Duration) time.Time {
	tick := time.Now().Add(interval)
	if opDeadline.IsZero() || tick.Before(opDeadline) {
		return tick
	}
	return opDeadline
}

// isTimeout reports whether err is a net.Error timeout, the expected outcome
// of a poll tick expiring with no data ready.
func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

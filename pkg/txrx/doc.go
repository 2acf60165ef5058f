// Package txrx provides the operation-coordination engine shared by every
// concrete transport endpoint in this module: a single-owner management loop
// that serializes user-issued open/close/send/receive calls against
// transport-specific callbacks, with cancellation, timeouts, auto-reopen and
// destruction ordering.
//
// Concrete transports (UDP, TCP, serial) live in github.com/jowharshamshiri/txrx/pkg/transport
// and implement the Hooks interface defined here. Byte-level send/receive
// transforms live in github.com/jowharshamshiri/txrx/pkg/filter.
package txrx

package txrx

// This file restores the original's cpptxrx_short_form.h convenience layer:
// one-shot helpers built on top of the full Open/Send API for callers that
// don't need per-call common-opts or explicit deadlines.

// OpenDefault opens with no common-opts overrides and the compile-time
// default deadline.
func (e *Endpoint[A]) OpenDefault(args A) Status {
	return e.Open(args, CommonOpts{}, UseDefaultDeadline())
}

// SendBytes sends data on the unset channel with the compile-time default
// deadline, discarding channel selection for callers that don't need it.
func (e *Endpoint[A]) SendBytes(data []byte) Status {
	return e.Send(data, DefaultUnsetChannel, UseDefaultDeadline())
}

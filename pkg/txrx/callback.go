package txrx

// callbackDriver is the receive-callback container described in §3/§4.3: it
// owns a destination buffer and a ReceiveOp bound to it, run through the
// same filter-pipeline machinery as a manual receive, except completions
// are delivered to a user callback instead of an awaiting caller.
type callbackDriver struct {
	pipe recvPipeline
	buf  []byte
}

func (d *callbackDriver) reset() {
	d.pipe.cancelAll(Status{})
	d.pipe.ext = nil
}

// cbConfigured reports whether a receive callback is currently installed.
func (e *Endpoint[A]) cbConfigured() bool {
	return e.opts.receiveCallback.Callback() != nil
}

// cbActiveLocked reports whether the callback driver has work this step: a
// callback is installed and the endpoint is open. When no callback-bound op
// is mid-flight from a previous step, it installs a fresh one first.
func (e *Endpoint[A]) cbActiveLocked() bool {
	if !e.cbConfigured() || e.openStatus.Kind != Success {
		return false
	}
	if e.cb.pipe.ext == nil {
		const callbackBufSize = 65536
		if len(e.cb.buf) == 0 {
			e.cb.buf = make([]byte, callbackBufSize)
		}
		var op ReceiveOp
		op.Buf = e.cb.buf
		op.Channel = DefaultUnsetChannel
		op.status = Status{Kind: OpInProgress}
		e.cb.pipe.begin(&op, e.opts.receiveFilter.Filter())
	}
	return true
}

// driveCallbackLocked advances the callback-bound receive by at most one
// transport hook call, invoking the user callback (outside the lock) once
// a receive completes with a non-NotOpen status, then reinstalling a fresh
// op so the loop keeps feeding the callback.
func (e *Endpoint[A]) driveCallbackLocked() bool {
	if !e.cbConfigured() || e.cb.pipe.ext == nil {
		return false
	}
	op := e.cb.pipe.ext
	done := false
	acted := e.drivePipelineLocked(&e.cb.pipe, func() { done = true })
	if !acted {
		return false
	}
	if !done {
		return true
	}

	if op.status.Kind != NotOpen {
		cb := e.opts.receiveCallback.Callback()
		e.mu.Unlock()
		cb(op)
		e.mu.Lock()
	} else {
		e.handleUnsolicitedCloseLocked(op.status)
	}
	e.cb.pipe.ext = nil
	return true
}

package txrx

import (
	"time"

	"github.com/jowharshamshiri/txrx/pkg/filter"
)

// managementLoop is the threadsafe variant's dedicated goroutine: it owns
// every call into hooks and every mutation of state the transport is
// allowed to see, per §4.1.2.
func (e *Endpoint[A]) managementLoop() {
	e.mu.Lock()
	e.hooks.Construct()
	e.bitmask.set(catConstruct, lifecycleCompleted)

	for {
		if e.destroyRequested && !e.destroyCompleted {
			e.runDestroyLocked()
		}
		if e.destroyCompleted {
			e.mu.Unlock()
			close(e.done)
			return
		}

		acted := e.stepLocked()
		e.reapTimeoutsLocked()
		e.maybeArmAutoReopenLocked()

		if !acted {
			e.waitUntil(e.nextWakeDeadlineLocked())
		}
	}
}

// stepLocked performs at most one transport hook invocation, chosen by the
// §4.1.3 priority order (close, then open, then send/receive). Must be
// called with e.mu held; it releases the lock for the duration of any hook
// call and reacquires it before returning.
func (e *Endpoint[A]) stepLocked() bool {
	switch {
	case e.bitmask.get(catClose) == lifecycleRequested && e.closeOp != nil:
		e.bitmask.set(catClose, lifecycleAccepted)
		op := e.closeOp
		e.mu.Unlock()
		e.hooks.ProcessClose(op)
		e.mu.Lock()
		e.finishCloseLocked(op)
		return true

	case e.bitmask.get(catOpen) == lifecycleRequested && e.openOp != nil:
		e.bitmask.set(catOpen, lifecycleAccepted)
		op := e.openOp
		e.openArgsMu.Lock()
		args := e.openArgs
		e.openArgsMu.Unlock()
		e.mu.Unlock()
		e.hooks.ProcessOpen(op, args)
		e.mu.Lock()
		e.finishOpenLocked(op)
		return true

	default:
		// Send() and Receive() already advance their category straight to
		// Accepted and install pipeline state before waking the management
		// goroutine, so by the time stepLocked runs there is nothing left
		// at Requested for this category — just inFlight pipelines to
		// drive plus the always-on callback driver.
		cbActive := e.cbActiveLocked()
		if !e.send.inFlight() && !e.recv.inFlight() && !cbActive {
			return false
		}
		didSend := e.driveSendLocked()
		didRecv := e.driveReceiveLocked()
		didCb := e.driveCallbackLocked()
		idle := !didSend && !didRecv && !didCb
		if idle {
			e.mu.Unlock()
			e.hooks.ProcessSendReceive(nil, nil, true)
			e.mu.Lock()
		}
		return didSend || didRecv || didCb || idle
	}
}

func (e *Endpoint[A]) finishCloseLocked(op *CloseOp) {
	if op.status.Kind == OpInProgress {
		return
	}
	if op.status.OK() {
		e.openStatus = notOpenStatus()
		// A successful close cancels any pending send/receive with NotOpen
		// (§4.1.8, §5 "Close cancels all pending send/receive"); the
		// category must land on Completed, not merely Idle, so an awaiting
		// caller's awaitCompletion observes it instead of blocking forever.
		if e.send.ext != nil {
			e.send.cancelAll(notOpenStatus())
			e.bitmask.set(catSend, lifecycleCompleted)
		}
		if e.recv.ext != nil {
			e.recv.cancelAll(notOpenStatus())
			e.bitmask.set(catReceive, lifecycleCompleted)
		}
		e.cb.reset()
		e.autoReopenAt = time.Time{}
		debugLog.Printf("%s: closed", e.name)
	}
	e.bitmask.set(catClose, lifecycleCompleted)
	e.cond.Broadcast()
}

func (e *Endpoint[A]) finishOpenLocked(op *OpenOp) {
	if op.status.Kind == OpInProgress {
		return
	}
	if op.status.OK() {
		e.openStatus = successStatus()
		e.opts = e.pendingOpenOpts.apply(e.opts, defaultAppliedOpts())
		debugLog.Printf("%s: open succeeded", e.name)
	} else {
		e.openStatus = op.status
		if e.opts.autoReopen >= 0 {
			e.opts = e.pendingOpenOpts.apply(e.opts, defaultAppliedOpts())
		}
		debugLog.Printf("%s: open failed: %s", e.name, op.status.Kind)
	}
	e.armAutoReopenOnOutcomeLocked()
	if e.openAwaited {
		e.bitmask.set(catOpen, lifecycleCompleted)
	} else {
		// Synthesised by auto-reopen: no external caller will ever call
		// awaitCompletion for this op, so clear it here instead.
		e.bitmask.set(catOpen, lifecycleIdle)
		e.openOp = nil
	}
	e.cond.Broadcast()
}

// handleUnsolicitedCloseLocked implements §4.1.8's "any unsolicited closure
// detected by the transport sets open-status to the corresponding error,
// which the next op surfaces as NotOpen": a send/receive op (manual or
// callback-driven) ending with Kind == NotOpen means the transport itself
// discovered the connection is gone, not that the user called Close. This
// cancels the other pending pipeline, resets the callback driver (which
// resumes once the endpoint is open again), and arms auto-reopen exactly as
// a failed Open would.
func (e *Endpoint[A]) handleUnsolicitedCloseLocked(st Status) {
	if st.Kind != NotOpen || e.openStatus.Kind != Success {
		return
	}
	debugLog.Printf("%s: unsolicited close detected: %s", e.name, st)
	e.openStatus = st
	if e.send.ext != nil {
		e.send.cancelAll(st)
		e.bitmask.set(catSend, lifecycleCompleted)
	}
	if e.recv.ext != nil {
		e.recv.cancelAll(st)
		e.bitmask.set(catReceive, lifecycleCompleted)
	}
	e.cb.reset()
	e.armAutoReopenOnOutcomeLocked()
	e.cond.Broadcast()
}

func (e *Endpoint[A]) armAutoReopenOnOutcomeLocked() {
	if e.opts.autoReopen >= 0 && e.openStatus.Kind != Success {
		e.autoReopenAt = time.Now().Add(e.opts.autoReopen)
	} else if e.openStatus.Kind == Success {
		e.autoReopenAt = time.Time{}
	}
}

// reapTimeoutsLocked transitions any Accepted op whose deadline has passed
// to TimedOut and Completed.
func (e *Endpoint[A]) reapTimeoutsLocked() {
	now := time.Now()
	if e.bitmask.get(catOpen) == lifecycleAccepted && e.openOp != nil &&
		e.openOp.isOperating() && !e.openOp.deadline.IsZero() && !e.openOp.deadline.After(now) {
		e.openOp.status = timedOutStatus()
		e.finishOpenLocked(e.openOp)
	}
	if e.bitmask.get(catClose) == lifecycleAccepted && e.closeOp != nil &&
		e.closeOp.isOperating() && !e.closeOp.deadline.IsZero() && !e.closeOp.deadline.After(now) {
		e.closeOp.status = timedOutStatus()
		e.finishCloseLocked(e.closeOp)
	}
	if e.send.ext != nil && e.send.ext.isOperating() && !e.send.ext.deadline.IsZero() && !e.send.ext.deadline.After(now) {
		e.send.ext.status = timedOutStatus()
		e.finishSendLocked()
	}
	if e.recv.ext != nil && e.recv.ext.isOperating() && !e.recv.ext.deadline.IsZero() && !e.recv.ext.deadline.After(now) {
		e.recv.ext.status = timedOutStatus()
		e.finishReceiveLocked()
	}
}

// maybeArmAutoReopenLocked synthesises an open once the auto-reopen wait
// has elapsed, per §4.1.7.
func (e *Endpoint[A]) maybeArmAutoReopenLocked() {
	if e.autoReopenAt.IsZero() || e.openStatus.Kind == Success {
		return
	}
	if time.Now().Before(e.autoReopenAt) {
		return
	}
	if e.bitmask.get(catOpen) != lifecycleIdle || e.destroyRequested {
		return
	}
	e.openArgsMu.Lock()
	_, have := e.openArgs, e.haveOpenArgs
	e.openArgsMu.Unlock()
	if !have {
		return
	}
	var op OpenOp
	op.deadline = e.opts.openDeadline.resolve(DefaultTimeout)
	op.status = Status{Kind: OpInProgress}
	e.openOp = &op
	e.bitmask.set(catOpen, lifecycleRequested)
	e.autoReopenAt = time.Time{}
	e.openAwaited = false
	warnLog.Printf("%s: auto-reopen retrying with last-used open args", e.name)
}

// nextWakeDeadlineLocked computes the earliest time stepLocked should be
// retried even absent an explicit wake: the soonest op deadline or the
// auto-reopen time.
func (e *Endpoint[A]) nextWakeDeadlineLocked() time.Time {
	var best time.Time
	consider := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if best.IsZero() || t.Before(best) {
			best = t
		}
	}
	if e.openOp != nil && e.openOp.isOperating() {
		consider(e.openOp.deadline)
	}
	if e.closeOp != nil && e.closeOp.isOperating() {
		consider(e.closeOp.deadline)
	}
	if e.send.ext != nil && e.send.ext.isOperating() {
		consider(e.send.ext.deadline)
	}
	if e.recv.ext != nil && e.recv.ext.isOperating() {
		consider(e.recv.ext.deadline)
	}
	consider(e.autoReopenAt)
	return best
}

// runDestroyLocked executes the destruction protocol (§4.1.5): cancel every
// pending op, run Destruct on the management goroutine, force NotOpen.
func (e *Endpoint[A]) runDestroyLocked() {
	if e.bitmask.openOrCloseInFlight() {
		if e.bitmask.get(catOpen) == lifecycleAccepted || e.bitmask.get(catOpen) == lifecycleRequested {
			if e.openOp != nil {
				e.openOp.status = canceledInDestroyStatus()
			}
			e.bitmask.set(catOpen, lifecycleCompleted)
		}
		if e.bitmask.get(catClose) == lifecycleAccepted || e.bitmask.get(catClose) == lifecycleRequested {
			if e.closeOp != nil {
				e.closeOp.status = canceledInDestroyStatus()
			}
			e.bitmask.set(catClose, lifecycleCompleted)
		}
	}
	e.send.cancelAll(canceledInDestroyStatus())
	e.recv.cancelAll(canceledInDestroyStatus())
	e.bitmask.set(catSend, lifecycleIdle)
	e.bitmask.set(catReceive, lifecycleIdle)
	e.cb.reset()

	e.mu.Unlock()
	e.hooks.Destruct()
	e.mu.Lock()

	e.openStatus = notOpenStatus()
	e.destroyCompleted = true
	e.cond.Broadcast()
}

func abortKind(r filter.Result) Kind {
	switch r {
	case filter.AbortExceededStorage:
		return FilterAbortExceededStorage
	case filter.AbortDataFormatError:
		return FilterAbortDataFormatError
	default:
		return FilterAbortGeneric
	}
}

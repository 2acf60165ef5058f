package txrx

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout is the compile-time default deadline used when a caller
// passes UseDefaultDeadline() and no common-opts override is installed.
const DefaultTimeout = 10 * time.Second

// Endpoint is the shared operation-coordination engine every concrete byte
// transport embeds: a single management goroutine serializes user-issued
// open/close/send/receive calls against a Hooks[A] implementation, with
// cancellation, timeouts, auto-reopen and destruction ordering. A is the
// transport's open-argument type.
//
// The zero value is not usable; construct with NewEndpoint.
type Endpoint[A any] struct {
	hooks Hooks[A]
	name  string
	id    uuid.UUID
	raw   bool

	mu   sync.Mutex
	cond *sync.Cond

	bitmask    opBitmask
	openStatus Status

	openArgsMu   sync.Mutex
	openArgs     A
	haveOpenArgs bool

	opts appliedOpts

	openOp  *OpenOp
	closeOp *CloseOp
	sendOp  *SendOp
	recvOp  *ReceiveOp

	// pendingOpenOpts is the CommonOpts passed to the in-flight Open/Reopen
	// call; installed into e.opts by finishOpenLocked once the open completes
	// (success or, with auto-reopen enabled, failure) per §4.1.8.
	pendingOpenOpts CommonOpts

	send sendPipeline
	recv recvPipeline
	cb   callbackDriver

	destroyRequested bool
	destroyCompleted bool

	autoReopenAt time.Time // zero => not armed
	openAwaited  bool      // false when the pending open was synthesised by auto-reopen (no external caller to clear it)

	started bool
	done    chan struct{}
}

// NewEndpoint constructs a threadsafe endpoint around hooks, starting its
// management goroutine immediately. name is a human label (e.g. "udp:client");
// a fresh random ID is assigned for Name()/ID() diagnostics.
func NewEndpoint[A any](name string, hooks Hooks[A]) *Endpoint[A] {
	e := newEndpointCommon(name, hooks, false)
	e.started = true
	go e.managementLoop()
	return e
}

// NewRawEndpoint constructs a single-threaded cooperative endpoint: every
// public call runs the management step inline on the caller's goroutine.
// Concurrent calls from multiple goroutines are undefined, matching §4.1.2.
func NewRawEndpoint[A any](name string, hooks Hooks[A]) *Endpoint[A] {
	return newEndpointCommon(name, hooks, true)
}

func newEndpointCommon[A any](name string, hooks Hooks[A], raw bool) *Endpoint[A] {
	e := &Endpoint[A]{
		hooks:      hooks,
		name:       name,
		id:         uuid.New(),
		raw:        raw,
		openStatus: notOpenStatus(),
		opts:       defaultAppliedOpts(),
		done:       make(chan struct{}),
	}
	e.cond = sync.NewCond(&e.mu)
	e.recv.needInternal = true
	if raw {
		e.hooks.Construct()
		e.bitmask.set(catConstruct, lifecycleCompleted)
	}
	return e
}

// Name returns the endpoint's human label.
func (e *Endpoint[A]) Name() string { return e.name }

// ID returns the endpoint's unique identifier.
func (e *Endpoint[A]) ID() uuid.UUID { return e.id }

// IsOpen reports whether the last completed open/close transition left the
// endpoint open.
func (e *Endpoint[A]) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openStatus.Kind == Success
}

// OpenStatus returns the endpoint's current open-status value (§7).
func (e *Endpoint[A]) OpenStatus() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openStatus
}

// GetOpenArgs reports the last-used open arguments, if any were ever
// successfully (or unsuccessfully, via auto-reopen retention) recorded.
func (e *Endpoint[A]) GetOpenArgs() (A, bool) {
	e.openArgsMu.Lock()
	defer e.openArgsMu.Unlock()
	return e.openArgs, e.haveOpenArgs
}

// SetOpenArgs overwrites the saved open arguments without performing an
// open; used to stage arguments for a future Reopen or auto-reopen retry.
func (e *Endpoint[A]) SetOpenArgs(args A) {
	e.openArgsMu.Lock()
	defer e.openArgsMu.Unlock()
	e.openArgs = args
	e.haveOpenArgs = true
}

// --- front door: category admission -----------------------------------

// admit blocks until cat is idle, destruction starts, the deadline passes,
// or the category is disabled, then (on success) marks it Requested; the
// caller installs its op record afterwards. It returns the status to report
// immediately without
// running the op, or ok=true if the caller should proceed to wait for
// completion.
func (e *Endpoint[A]) admit(cat category, requiresOpen bool, deadline time.Time) (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.destroyRequested {
			return canceledInDestroyStatus(), false
		}
		if cat == catReceive && e.recvCallbackInstalled() {
			return disabledStatus(), false
		}
		if requiresOpen && e.openStatus.Kind != Success {
			return e.openStatus, false
		}
		if cat == catOpen && e.openStatus.Kind == Success {
			return failedAlreadyOpenStatus(), false
		}
		if e.bitmask.get(cat) == lifecycleIdle {
			e.bitmask.set(cat, lifecycleRequested)
			return Status{}, true
		}
		if !e.waitUntil(deadline) {
			return timedOutStatus(), false
		}
	}
}

func (e *Endpoint[A]) recvCallbackInstalled() bool {
	return e.opts.receiveCallback.Callback() != nil
}

// waitUntil blocks on the condition until broadcast or deadline, returning
// false if the deadline passed first. Must be called with e.mu held; it is
// released for the duration of the wait. A zero deadline means "wait
// forever" (NoDeadline).
func (e *Endpoint[A]) waitUntil(deadline time.Time) bool {
	if deadline.IsZero() {
		e.cond.Wait()
		return true
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return false
	}
	timer := time.AfterFunc(remaining, func() {
		e.mu.Lock()
		e.cond.Broadcast()
		e.mu.Unlock()
	})
	e.cond.Wait()
	timer.Stop()
	return time.Now().Before(deadline) || deadline.IsZero()
}

// awaitCompletion blocks until cat transitions to Completed or destruction
// starts, then clears the category back to Idle and returns the final
// status read through get.
func (e *Endpoint[A]) awaitCompletion(cat category, get func() Status) Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		if e.destroyRequested && e.bitmask.get(cat) != lifecycleCompleted {
			e.bitmask.set(cat, lifecycleIdle)
			return canceledInDestroyStatus()
		}
		if e.bitmask.get(cat) == lifecycleCompleted {
			st := get()
			e.bitmask.set(cat, lifecycleIdle)
			e.cond.Broadcast()
			return st
		}
		e.cond.Wait()
	}
}

func (e *Endpoint[A]) wake() {
	e.cond.Broadcast()
	e.hooks.WakeProcess()
}

// runInlineIfRaw is the raw variant's stand-in for the management goroutine:
// since there is no background task, each public call drives the loop body
// inline until it stops making progress (bounded, since a raw endpoint has
// no other source of retries between calls).
func (e *Endpoint[A]) runInlineIfRaw() {
	if !e.raw {
		return
	}
	e.mu.Lock()
	for i := 0; i < 10000; i++ {
		if e.destroyRequested && !e.destroyCompleted {
			e.runDestroyLocked()
		}
		acted := e.stepLocked()
		e.reapTimeoutsLocked()
		e.maybeArmAutoReopenLocked()
		if !acted {
			break
		}
	}
	e.mu.Unlock()
}

// --- public operations ---------------------------------------------------

// Open brings the transport up using args and common options, or NoDeadline
// semantics resolved from timeout.
func (e *Endpoint[A]) Open(args A, opts CommonOpts, timeout Deadline) Status {
	return e.openInternal(args, true, opts, timeout)
}

// Reopen closes first (if open), then opens with args.
func (e *Endpoint[A]) Reopen(args A, opts CommonOpts, timeout Deadline) Status {
	if e.IsOpen() {
		if st := e.Close(timeout); !st.OK() {
			return st
		}
	}
	return e.openInternal(args, true, opts, timeout)
}

func (e *Endpoint[A]) openInternal(args A, haveArgs bool, opts CommonOpts, timeout Deadline) Status {
	// §4.1.6 precedence: explicit absolute/relative > common-opts open
	// deadline > compile-time default.
	dl := timeout.resolve(DefaultTimeout)
	if timeout.isDefault() {
		e.mu.Lock()
		dl = e.opts.openDeadline.resolve(DefaultTimeout)
		e.mu.Unlock()
	}

	e.mu.Lock()
	resolvedCB := opts.ReceiveCallback.resolve(e.opts.receiveCallback, defaultAppliedOpts().receiveCallback)
	e.mu.Unlock()
	if e.raw && resolvedCB.Callback() != nil {
		return Status{Kind: RecvCallbackNotValidInRaw}
	}

	if st, ok := e.admit(catOpen, false, dl); !ok {
		return st
	}

	if haveArgs {
		e.SetOpenArgs(args)
	}
	e.openArgsMu.Lock()
	have := e.haveOpenArgs
	e.openArgsMu.Unlock()
	if !have {
		e.mu.Lock()
		e.bitmask.set(catOpen, lifecycleIdle)
		e.cond.Broadcast()
		e.mu.Unlock()
		return noPriorOpenArgsStatus()
	}

	var op OpenOp
	op.deadline = dl
	op.status = Status{Kind: OpInProgress}
	e.mu.Lock()
	e.openOp = &op
	e.bitmask.set(catOpen, lifecycleRequested)
	e.pendingOpenOpts = opts
	e.openAwaited = true
	e.mu.Unlock()

	e.wake()
	e.runInlineIfRaw()

	st := e.awaitCompletion(catOpen, func() Status { return op.status })
	e.mu.Lock()
	e.openOp = nil
	e.mu.Unlock()
	return st
}

// ReopenLast closes first (if open) and reopens using whatever args were
// last recorded (by a prior Open/Reopen, or SetOpenArgs), without supplying
// new ones. Returns NoPriorOpenArgs if none were ever recorded.
func (e *Endpoint[A]) ReopenLast(opts CommonOpts, timeout Deadline) Status {
	if e.IsOpen() {
		if st := e.Close(timeout); !st.OK() {
			return st
		}
	}
	var zero A
	return e.openInternal(zero, false, opts, timeout)
}

// Close tears the transport down.
func (e *Endpoint[A]) Close(timeout Deadline) Status {
	dl := timeout.resolve(DefaultTimeout)
	if st, ok := e.admit(catClose, false, dl); !ok {
		return st
	}
	var op CloseOp
	op.deadline = dl
	op.status = Status{Kind: OpInProgress}
	e.mu.Lock()
	e.closeOp = &op
	e.bitmask.set(catClose, lifecycleRequested)
	e.mu.Unlock()

	e.wake()
	e.runInlineIfRaw()

	st := e.awaitCompletion(catClose, func() Status { return op.status })
	e.mu.Lock()
	e.closeOp = nil
	e.mu.Unlock()
	return st
}

// Send transmits data on channel (DefaultUnsetChannel for "no channel"),
// running it through the installed send filter, if any.
func (e *Endpoint[A]) Send(data []byte, channel int, timeout Deadline) Status {
	dl := timeout.resolve(DefaultTimeout)
	if len(data) == 0 {
		return successStatus()
	}
	if st, ok := e.admit(catSend, true, dl); !ok {
		return st
	}
	var op SendOp
	op.deadline = dl
	op.status = Status{Kind: OpInProgress}
	op.Data = data
	op.Channel = channel
	e.mu.Lock()
	e.sendOp = &op
	e.bitmask.set(catSend, lifecycleAccepted)
	e.send.begin(&op, e.opts.sendFilter.Filter())
	e.mu.Unlock()

	e.wake()
	e.runInlineIfRaw()

	st := e.awaitCompletion(catSend, func() Status { return op.status })
	e.mu.Lock()
	e.sendOp = nil
	e.mu.Unlock()
	return st
}

// Receive waits for one application-level message, running it through the
// installed receive filter, if any, writing up to len(buf) bytes.
func (e *Endpoint[A]) Receive(buf []byte, timeout Deadline) (Status, int, int) {
	dl := timeout.resolve(DefaultTimeout)
	if st, ok := e.admit(catReceive, true, dl); !ok {
		return st, 0, DefaultUnsetChannel
	}
	var op ReceiveOp
	op.deadline = dl
	op.status = Status{Kind: OpInProgress}
	op.Buf = buf
	op.Channel = DefaultUnsetChannel
	e.mu.Lock()
	e.recvOp = &op
	e.bitmask.set(catReceive, lifecycleAccepted)
	e.recv.begin(&op, e.opts.receiveFilter.Filter())
	e.mu.Unlock()

	e.wake()
	e.runInlineIfRaw()

	st := e.awaitCompletion(catReceive, func() Status { return op.status })
	e.mu.Lock()
	e.recvOp = nil
	e.mu.Unlock()
	return st, op.Received, op.Channel
}

// Destroy is idempotent and safe from any goroutine: the first caller
// cancels every pending op with CanceledInDestroy, runs the transport's
// Destruct on the management goroutine, and forces the open-status to
// NotOpen. Subsequent calls block until the first completes.
func (e *Endpoint[A]) Destroy() {
	e.mu.Lock()
	if e.destroyRequested {
		for !e.destroyCompleted {
			e.cond.Wait()
		}
		e.mu.Unlock()
		return
	}
	e.destroyRequested = true
	e.cond.Broadcast()
	e.mu.Unlock()

	e.hooks.WakeProcess()

	if e.raw {
		e.mu.Lock()
		e.runDestroyLocked()
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	for !e.destroyCompleted {
		e.cond.Wait()
	}
	e.mu.Unlock()
	<-e.done
}

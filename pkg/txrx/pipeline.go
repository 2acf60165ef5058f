package txrx

import "github.com/jowharshamshiri/txrx/pkg/filter"

// sendPipeline holds the state needed to drive an external send op through
// an optional filter chain across possibly several management steps,
// implementing §4.2.4.
type sendPipeline struct {
	ext    *SendOp
	f      filter.Filter
	input  filter.Handle
	output filter.Handle
	intOp  *SendOp // internal send currently awaiting transport completion
}

func (p *sendPipeline) begin(ext *SendOp, f filter.Filter) {
	p.ext = ext
	p.f = f
	p.intOp = nil
	p.output.Stop()
	if f != nil {
		f.Reset()
		p.input.Start(ext.Data)
	} else {
		p.input.Stop()
	}
}

func (p *sendPipeline) inFlight() bool { return p.ext != nil }

func (p *sendPipeline) cancelAll(st Status) {
	if p.ext != nil {
		p.ext.status = st
		p.ext = nil
	}
	p.intOp = nil
	p.input.Stop()
	p.output.Stop()
}

// driveSendLocked advances the in-flight send by at most one transport hook
// call. Must be called with e.mu held; releases it around the hook call.
func (e *Endpoint[A]) driveSendLocked() bool {
	p := &e.send
	if p.ext == nil {
		return false
	}

	if p.f == nil {
		e.mu.Unlock()
		e.hooks.ProcessSendReceive(p.ext, nil, false)
		e.mu.Lock()
		if p.ext != nil && !p.ext.isOperating() {
			e.finishSendLocked()
		}
		return true
	}

	var justConsumed []byte
	if p.intOp != nil {
		e.mu.Unlock()
		e.hooks.ProcessSendReceive(p.intOp, nil, false)
		e.mu.Lock()
		if p.intOp.isOperating() {
			return true
		}
		if p.intOp.status.Kind != Success {
			p.ext.status = p.intOp.status
			e.finishSendLocked()
			return true
		}
		justConsumed = p.output.Bytes()
		p.output.Stop()
		p.intOp = nil
	}

	result := filter.Process(p.f, &p.input, &p.output)
	if result.IsAbort() {
		p.ext.status = FilterAbortStatus(abortKind(result), p.f.Name())
		e.finishSendLocked()
		return true
	}

	if p.output.Live() {
		out := p.output.Bytes()
		// §4.2.4 point 4: the filter re-emitted the same storage the
		// transport just consumed, still holding bytes - it forgot to
		// reset shared storage between sends.
		if len(justConsumed) > 0 && len(out) > 0 && filter.SameBacking(out, justConsumed) {
			p.ext.status = Status{Kind: FilterStorageNotConsumed}
			e.finishSendLocked()
			return true
		}
		intOp := &SendOp{Channel: p.ext.Channel}
		intOp.Data = out
		intOp.status = Status{Kind: OpInProgress}
		p.intOp = intOp
		return true
	}

	if filter.DoneUntilNextInput(result, false) {
		p.ext.status = successStatus()
		e.finishSendLocked()
	}
	return true
}

func (e *Endpoint[A]) finishSendLocked() {
	if e.send.ext == nil {
		return
	}
	st := e.send.ext.status
	e.send.ext = nil
	e.send.intOp = nil
	e.bitmask.set(catSend, lifecycleCompleted)
	e.cond.Broadcast()
	e.handleUnsolicitedCloseLocked(st)
}

// recvPipeline mirrors sendPipeline for the receive direction (§4.2.5),
// additionally tracking whether a fresh internal receive is needed before
// the filter chain can produce more output (it may satisfy more than one
// external receive per internal receive).
type recvPipeline struct {
	ext          *ReceiveOp
	f            filter.Filter
	input        filter.Handle
	output       filter.Handle
	intOp        *ReceiveOp
	needInternal bool
}

func (p *recvPipeline) begin(ext *ReceiveOp, f filter.Filter) {
	if p.f != f {
		p.needInternal = true
		p.input.Stop()
		p.output.Stop()
		p.intOp = nil
	}
	p.ext = ext
	p.f = f
	if f != nil {
		f.SelectStorageBackward(filter.NewStorageView(ext.Buf))
	}
}

func (p *recvPipeline) inFlight() bool { return p.ext != nil }

func (p *recvPipeline) cancelAll(st Status) {
	if p.ext != nil {
		p.ext.status = st
		p.ext = nil
	}
	p.intOp = nil
	p.needInternal = true
	p.input.Stop()
	p.output.Stop()
}

func (e *Endpoint[A]) driveReceiveLocked() bool {
	return e.drivePipelineLocked(&e.recv, e.finishReceiveLocked)
}

// finishReceiveLocked marks the manual-receive category Completed so the
// waiting caller's awaitCompletion wakes; also used directly by
// reapTimeoutsLocked on a deadline expiry.
func (e *Endpoint[A]) finishReceiveLocked() {
	if e.recv.ext == nil {
		return
	}
	st := e.recv.ext.status
	e.recv.ext = nil
	e.bitmask.set(catReceive, lifecycleCompleted)
	e.cond.Broadcast()
	e.handleUnsolicitedCloseLocked(st)
}

// drivePipelineLocked is driveReceiveLocked's body, parameterised over which
// recvPipeline to advance and what "this op is finished" means — the
// manual-receive category bitmask transition, or (for the callback driver)
// nothing, since the callback path reinstalls a fresh op itself.
func (e *Endpoint[A]) drivePipelineLocked(p *recvPipeline, finish func()) bool {
	if p.ext == nil {
		return false
	}

	if p.f == nil {
		e.mu.Unlock()
		e.hooks.ProcessSendReceive(nil, p.ext, false)
		e.mu.Lock()
		if p.ext != nil && !p.ext.isOperating() {
			finish()
		}
		return true
	}

	if p.needInternal {
		if p.intOp == nil {
			storage := p.f.BestInputStorage()
			// §4.2.5 point 2.b: the chain's chosen input slot must be empty
			// before a new internal receive is bound to it, else a prior
			// filter left unconsumed bytes sitting in shared storage.
			if storage.Len() != 0 {
				p.ext.status = Status{Kind: FilterStorageNotConsumed}
				p.needInternal = true
				finish()
				return true
			}
			buf := make([]byte, storage.Max())
			intOp := &ReceiveOp{Channel: DefaultUnsetChannel, Buf: buf}
			intOp.status = Status{Kind: OpInProgress}
			p.intOp = intOp
		}
		e.mu.Unlock()
		e.hooks.ProcessSendReceive(nil, p.intOp, false)
		e.mu.Lock()
		if p.intOp.isOperating() {
			return true
		}
		if p.intOp.status.Kind != Success {
			p.ext.status = p.intOp.status
			p.ext.Channel = p.intOp.Channel
			p.intOp = nil
			p.needInternal = true
			finish()
			return true
		}
		p.input.Start(p.intOp.Data())
		p.ext.Channel = p.intOp.Channel
		p.intOp = nil
		p.needInternal = false
	}

	result := filter.Process(p.f, &p.input, &p.output)
	if result.IsAbort() {
		p.ext.status = FilterAbortStatus(abortKind(result), p.f.Name())
		p.needInternal = true
		finish()
		return true
	}

	if p.output.Live() {
		out := p.output.Bytes()
		if filter.SameBacking(out, p.ext.Buf) {
			p.ext.Received = len(out)
		} else if len(out) > len(p.ext.Buf) {
			p.ext.status = Status{Kind: FilterOutputSizeOverRxMax}
			p.output.Stop()
			p.needInternal = true
			finish()
			return true
		} else {
			copy(p.ext.Buf, out)
			p.ext.Received = len(out)
		}
		p.output.Stop()
		p.ext.status = successStatus()
		p.needInternal = filter.DoneUntilNextInput(result, false)
		finish()
		return true
	}

	if filter.DoneUntilNextInput(result, false) {
		p.needInternal = true
	}
	return true
}

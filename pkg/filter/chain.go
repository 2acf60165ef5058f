package filter

// wrapProcess applies the two invariants from spec.md §4.2.1 uniformly to
// every Process call, whether f is a leaf filter or a Chain: a filter must
// not produce output while a previous output is still unread, and if input
// is still live after a Continue result the caller upgrades it to
// ForceKeepProcessing so the pipeline never stalls.
func wrapProcess(f Filter, input, output *Handle) Result {
	if output.Live() {
		return Continue
	}
	r := f.Process(input, output)
	if r == Continue && input.Live() {
		return ForceKeepProcessing
	}
	return r
}

// DoneUntilNextInput reports whether, given the last Process result and
// whether output ended up live, a filter (leaf or chain) has no more work it
// can produce without fresh input arriving.
func DoneUntilNextInput(lastResult Result, outputLive bool) bool {
	return lastResult == Continue && !outputLive
}

// Chain is the pair (Head, Tail) described in spec.md §4.2.2: executing it
// runs Head into an intermediate handle and Tail out of that handle,
// behaving as a single filter with Head's input capability and Tail's
// output capability. Chains nest rightward, so Then(a, Then(b, c)) is the
// canonical 3-filter chain shape (see Compose).
type Chain struct {
	Head Filter
	Tail Filter

	mid      Handle
	lastHead Result
	lastTail Result
}

// Then composes two filters (or chains) into one, matching A.then(B).
func Then(a, b Filter) *Chain { return &Chain{Head: a, Tail: b} }

// Compose right-associates a sequence of filters into nested Chains:
// Compose(a, b, c) == Then(a, Then(b, c)).
func Compose(fs ...Filter) Filter {
	switch len(fs) {
	case 0:
		return nil
	case 1:
		return fs[0]
	default:
		return Then(fs[0], Compose(fs[1:]...))
	}
}

// Process implements spec.md §4.2.2's chain execution:
//  1. If mid is empty, Tail's last result wasn't ForceKeep (so Tail doesn't
//     insist on reusing the same mid), and there's actually new input for
//     Head to consume (fresh input live, or Head itself force-kept last
//     time and still has buffered work), run Head(input, mid). Without the
//     input-liveness check, a Tail that multiplies one Head output into
//     several (e.g. a repeat filter) would, once mid finally drained, call
//     Head again on already-stopped input and manufacture phantom output
//     forever.
//  2. If output is empty, run Tail(mid, output).
//  3. Any abort returns immediately; if either half force-kept, the chain
//     reports ForceKeepProcessing so the dispatcher re-enters it.
func (c *Chain) Process(input, output *Handle) Result {
	if !c.mid.Live() && c.lastTail != ForceKeepProcessing && (input.Live() || c.lastHead == ForceKeepProcessing) {
		r := wrapProcess(c.Head, input, &c.mid)
		c.lastHead = r
		if r.IsAbort() {
			return r
		}
	}
	if !output.Live() {
		r := wrapProcess(c.Tail, &c.mid, output)
		c.lastTail = r
		if r.IsAbort() {
			return r
		}
	}
	if c.lastHead == ForceKeepProcessing || c.lastTail == ForceKeepProcessing {
		return ForceKeepProcessing
	}
	return Continue
}

// Reset clears both halves and the intermediate handle.
func (c *Chain) Reset() {
	c.Head.Reset()
	c.Tail.Reset()
	c.mid.Stop()
	c.lastHead = Continue
	c.lastTail = Continue
}

// SelectStorageForward threads the forward pass through Head then Tail, so
// the planner's final answer reflects both stages' reuse decisions.
func (c *Chain) SelectStorageForward(prevOutput *Storage) *Storage {
	headOut := c.Head.SelectStorageForward(prevOutput)
	return c.Tail.SelectStorageForward(headOut)
}

// SelectStorageBackward threads the backward pass through Tail then Head,
// since Tail is the chain's rightmost (most downstream) stage.
func (c *Chain) SelectStorageBackward(nextInput *Storage) *Storage {
	tailIn := c.Tail.SelectStorageBackward(nextInput)
	return c.Head.SelectStorageBackward(tailIn)
}

// BestInputStorage defers to Head, since Head owns the chain's input
// capability.
func (c *Chain) BestInputStorage() *Storage { return c.Head.BestInputStorage() }

// BestOutputStorage defers to Tail, since Tail owns the chain's output
// capability.
func (c *Chain) BestOutputStorage() *Storage { return c.Tail.BestOutputStorage() }

// IsValid reports whether both halves are valid.
func (c *Chain) IsValid() bool { return c.Head.IsValid() && c.Tail.IsValid() }

// Name renders as "head.then(tail)", useful in FilterAbort diagnostics.
func (c *Chain) Name() string { return c.Head.Name() + ".then(" + c.Tail.Name() + ")" }

// MaxPacketSize reports the larger of the two halves' limits, since either
// stage might be the one that raises AbortExceededStorage.
func (c *Chain) MaxPacketSize() int {
	h, t := c.Head.MaxPacketSize(), c.Tail.MaxPacketSize()
	if h > t {
		return h
	}
	return t
}

// RestrictStorage reflects Tail's policy: Tail's output is what an upstream
// neighbour's forward pass would consider reusing as this chain's output.
func (c *Chain) RestrictStorage() RestrictStorage { return c.Tail.RestrictStorage() }

// RestrictInputs reflects Head's policy, since Head is the stage that sees
// external input.
func (c *Chain) RestrictInputs() RestrictInputs { return c.Head.RestrictInputs() }

// Process runs f (a leaf filter or Chain) with the §4.2.1 invariants
// applied. Exported for callers (the send/receive execution loops in
// pkg/txrx) that need to invoke a caller-supplied Filter the same way Chain
// invokes its own Head/Tail.
func Process(f Filter, input, output *Handle) Result {
	return wrapProcess(f, input, output)
}

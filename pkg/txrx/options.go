package txrx

import (
	"time"

	"github.com/jowharshamshiri/txrx/pkg/filter"
)

// settingMode is the update mode an individual CommonOpts field carries:
// keep the existing value, use the default, or update to a given value.
// There is no separate mode that pairs a value with a relative timeout.
type settingMode int

const (
	modeUseExisting settingMode = iota
	modeUseDefault
	modeUpdate
)

// Setting is one optional field of CommonOpts: either "leave unchanged",
// "use the compiled-in default", or "set to this value".
type Setting[T any] struct {
	mode  settingMode
	value T
}

// KeepExisting leaves the field as it was on the last successful apply.
func KeepExisting[T any]() Setting[T] { return Setting[T]{mode: modeUseExisting} }

// UseDefaultSetting resets the field to its compiled-in default.
func UseDefaultSetting[T any]() Setting[T] { return Setting[T]{mode: modeUseDefault} }

// UpdateSetting sets the field to v.
func UpdateSetting[T any](v T) Setting[T] { return Setting[T]{mode: modeUpdate, value: v} }

func (s Setting[T]) resolve(existing, dflt T) T {
	switch s.mode {
	case modeUpdate:
		return s.value
	case modeUseDefault:
		return dflt
	default:
		return existing
	}
}

// ReceiveCallback is invoked by the receive-callback driver once per
// completed internal receive (§4.3), outside any lock.
type ReceiveCallback func(*ReceiveOp)

// FilterRef is a borrowed-vs-owned filter reference (§3 ownership rules). A
// raw filter.Filter passed to WithSendFilter/WithReceiveFilter is borrowed:
// the caller promises it outlives the endpoint's use of it. To hand the
// endpoint (and any endpoint sharing the same instance) ownership instead,
// wrap it with AllowHeap first — passing a bare filter.Filter where an
// OwnedFilter is expected is a compile error, which is the "rejected at
// compile or init time" rule from §4.4.
type FilterRef struct {
	owned bool
	f     filter.Filter
}

// BorrowFilter wraps f as a borrowed reference.
func BorrowFilter(f filter.Filter) FilterRef { return FilterRef{f: f} }

// OwnedFilter marks a filter as heap-adopted; only constructible via
// AllowHeap, so the distinction between borrowing and adopting a filter is
// visible in the type system.
type OwnedFilter struct{ f filter.Filter }

// AllowHeap adopts f, producing a shared handle usable by OwnFilter.
func AllowHeap(f filter.Filter) OwnedFilter { return OwnedFilter{f: f} }

// OwnFilter wraps an adopted filter as an owned FilterRef.
func OwnFilter(o OwnedFilter) FilterRef { return FilterRef{owned: true, f: o.f} }

// Filter returns the underlying filter.Filter, or nil if unset.
func (r FilterRef) Filter() filter.Filter { return r.f }

// Owned reports whether this reference was heap-adopted.
func (r FilterRef) Owned() bool { return r.owned }

// CallbackRef mirrors FilterRef's borrowed/owned tri-state for receive
// callbacks.
type CallbackRef struct {
	owned bool
	cb    ReceiveCallback
}

// BorrowCallback wraps cb as a borrowed reference.
func BorrowCallback(cb ReceiveCallback) CallbackRef { return CallbackRef{cb: cb} }

// OwnedCallback marks a callback as heap-adopted; only constructible via
// AllowHeapCallback.
type OwnedCallback struct{ cb ReceiveCallback }

// AllowHeapCallback adopts cb.
func AllowHeapCallback(cb ReceiveCallback) OwnedCallback { return OwnedCallback{cb: cb} }

// OwnCallback wraps an adopted callback as an owned CallbackRef.
func OwnCallback(o OwnedCallback) CallbackRef { return CallbackRef{owned: true, cb: o.cb} }

// Callback returns the underlying ReceiveCallback, or nil if unset.
func (r CallbackRef) Callback() ReceiveCallback { return r.cb }

// CommonOpts is the per-open-call configuration described in spec.md §3:
// every field is an optional setting that leaves the endpoint's existing
// value alone unless the caller updated it.
type CommonOpts struct {
	OpenDeadline    Setting[Deadline]
	ReceiveCallback Setting[CallbackRef]
	ReceiveFilter   Setting[FilterRef]
	SendFilter      Setting[FilterRef]
	// AutoReopen is the interval the management task waits before
	// synthesizing a reopen after an unsolicited close; negative disables
	// auto-reopen (§4.1.7).
	AutoReopen Setting[time.Duration]
}

// appliedOpts is the resolved (non-Setting) form of CommonOpts installed on
// an endpoint after Open/Reopen succeeds (or fails, with auto-reopen armed).
type appliedOpts struct {
	openDeadline    Deadline
	receiveCallback CallbackRef
	receiveFilter   FilterRef
	sendFilter      FilterRef
	autoReopen      time.Duration
}

func defaultAppliedOpts() appliedOpts {
	return appliedOpts{
		openDeadline: UseDefaultDeadline(),
		autoReopen:   -1,
	}
}

func (o CommonOpts) apply(existing, dflt appliedOpts) appliedOpts {
	return appliedOpts{
		openDeadline:    o.OpenDeadline.resolve(existing.openDeadline, dflt.openDeadline),
		receiveCallback: o.ReceiveCallback.resolve(existing.receiveCallback, dflt.receiveCallback),
		receiveFilter:   o.ReceiveFilter.resolve(existing.receiveFilter, dflt.receiveFilter),
		sendFilter:      o.SendFilter.resolve(existing.sendFilter, dflt.sendFilter),
		autoReopen:      o.AutoReopen.resolve(existing.autoReopen, dflt.autoReopen),
	}
}

// OptsBuilder is a fluent builder for CommonOpts, matching spec.md §4.4's
// "Common Options Builder" component.
type OptsBuilder struct {
	opts CommonOpts
}

// NewOptsBuilder starts a builder where every field keeps its existing
// value until explicitly set.
func NewOptsBuilder() *OptsBuilder {
	return &OptsBuilder{}
}

// WithOpenDeadline sets the deadline used by a subsequent auto-reopen's
// synthesized Open call.
func (b *OptsBuilder) WithOpenDeadline(d Deadline) *OptsBuilder {
	b.opts.OpenDeadline = UpdateSetting(d)
	return b
}

// WithReceiveCallback installs a borrowed receive callback, switching the
// endpoint into callback-driven receive mode and disabling manual Receive.
func (b *OptsBuilder) WithReceiveCallback(cb ReceiveCallback) *OptsBuilder {
	b.opts.ReceiveCallback = UpdateSetting(BorrowCallback(cb))
	return b
}

// WithOwnedReceiveCallback installs a heap-adopted receive callback.
func (b *OptsBuilder) WithOwnedReceiveCallback(o OwnedCallback) *OptsBuilder {
	b.opts.ReceiveCallback = UpdateSetting(OwnCallback(o))
	return b
}

// WithoutReceiveCallback resets to the default (no callback, manual receive
// enabled).
func (b *OptsBuilder) WithoutReceiveCallback() *OptsBuilder {
	b.opts.ReceiveCallback = UseDefaultSetting[CallbackRef]()
	return b
}

// WithReceiveFilter installs a borrowed receive-direction filter.
func (b *OptsBuilder) WithReceiveFilter(f filter.Filter) *OptsBuilder {
	b.opts.ReceiveFilter = UpdateSetting(BorrowFilter(f))
	return b
}

// WithOwnedReceiveFilter installs a heap-adopted receive-direction filter.
func (b *OptsBuilder) WithOwnedReceiveFilter(o OwnedFilter) *OptsBuilder {
	b.opts.ReceiveFilter = UpdateSetting(OwnFilter(o))
	return b
}

// WithSendFilter installs a borrowed send-direction filter.
func (b *OptsBuilder) WithSendFilter(f filter.Filter) *OptsBuilder {
	b.opts.SendFilter = UpdateSetting(BorrowFilter(f))
	return b
}

// WithOwnedSendFilter installs a heap-adopted send-direction filter.
func (b *OptsBuilder) WithOwnedSendFilter(o OwnedFilter) *OptsBuilder {
	b.opts.SendFilter = UpdateSetting(OwnFilter(o))
	return b
}

// WithAutoReopen sets the auto-reopen interval; negative disables it.
func (b *OptsBuilder) WithAutoReopen(interval time.Duration) *OptsBuilder {
	b.opts.AutoReopen = UpdateSetting(interval)
	return b
}

// Build finalizes the options.
func (b *OptsBuilder) Build() CommonOpts { return b.opts }

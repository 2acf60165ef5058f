// Package builtin provides the concrete reference filters named in
// spec.md §4.2.6: identity forwarding, trailer appending, fixed-size
// framing, oversize splitting, delimiter framing, repetition and SLIP.
package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// ForwardByCopy is the identity transform that always copies its input into
// its own output storage before forwarding it, never reusing the upstream
// buffer in place.
type ForwardByCopy struct {
	filter.Base
}

// NewForwardByCopy constructs a copying identity filter bounded at maxSize.
func NewForwardByCopy(maxSize int) *ForwardByCopy {
	return &ForwardByCopy{Base: filter.NewBase("forward_by_copy", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid)}
}

func (f *ForwardByCopy) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	storage.Reset()
	if r := storage.Append(input.Bytes()); r != filter.Continue {
		return r
	}
	output.Start(storage.Bytes())
	input.Stop()
	return filter.Continue
}

func (f *ForwardByCopy) IsValid() bool { return true }

// ForwardByPointing is the zero-copy identity transform: it simply moves the
// input handle's view to the output handle.
type ForwardByPointing struct {
	filter.Base
}

// NewForwardByPointing constructs a zero-copy identity filter bounded at maxSize.
func NewForwardByPointing(maxSize int) *ForwardByPointing {
	return &ForwardByPointing{Base: filter.NewBase("forward_by_pointing", maxSize, filter.AllowReuseOfInputAsOutput, filter.OnlyValid)}
}

func (f *ForwardByPointing) Process(input, output *filter.Handle) filter.Result {
	input.PassTo(output)
	return filter.Continue
}

func (f *ForwardByPointing) IsValid() bool { return true }

package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// Repeat emits the same input N times (pointing at it, not copying) before
// releasing it back to the caller.
type Repeat struct {
	filter.Base
	n       int
	counter int
}

// NewRepeat constructs a Repeat filter that re-emits each input n times.
func NewRepeat(n, maxSize int) *Repeat {
	return &Repeat{Base: filter.NewBase("repeat", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid), n: n}
}

func (f *Repeat) Process(input, output *filter.Handle) filter.Result {
	output.Start(input.Bytes())
	f.counter++
	if f.counter >= f.n {
		input.Stop()
		f.counter = 0
	}
	return filter.Continue
}

func (f *Repeat) Reset() {
	f.Base.Reset()
	f.counter = 0
}

func (f *Repeat) IsValid() bool { return f.n > 0 }

package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// Split segments input only when it exceeds UpperLimit; input at or below
// the limit passes through as a single packet (the original's
// split_if_larger).
type Split struct {
	filter.Base
	upperLimit int
}

// NewSplit constructs a Split filter; upperLimit must be <= maxSize.
func NewSplit(upperLimit, maxSize int) *Split {
	return &Split{
		Base:       filter.NewBase("split_if_larger", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid),
		upperLimit: upperLimit,
	}
}

func (f *Split) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	in := input.Bytes()
	take := f.upperLimit - storage.Len()
	if take > len(in) {
		take = len(in)
	}
	if take > 0 {
		if r := storage.Append(in[:take]); r != filter.Continue {
			return r
		}
		input.Start(in[take:])
	}
	if storage.Len() > 0 {
		output.Start(storage.Bytes())
		storage.Reset()
	}
	return filter.Continue
}

func (f *Split) IsValid() bool { return f.upperLimit > 0 && f.upperLimit <= f.MaxPacketSize() }

package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// FixedSize splits one operation into many, or combines many into one, so
// that every output packet is exactly Size bytes (the original's
// enforce_fixed_size).
type FixedSize struct {
	filter.Base
	size int
}

// NewFixedSize constructs a FixedSize filter; size must be <= maxSize.
func NewFixedSize(size, maxSize int) *FixedSize {
	return &FixedSize{
		Base: filter.NewBase("enforce_fixed_size", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid),
		size: size,
	}
}

func (f *FixedSize) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	in := input.Bytes()
	take := f.size - storage.Len()
	if take > len(in) {
		take = len(in)
	}
	if take > 0 {
		if r := storage.Append(in[:take]); r != filter.Continue {
			return r
		}
		input.Start(in[take:])
	}
	if storage.Len() >= f.size {
		output.Start(storage.Bytes())
		storage.Reset()
	}
	return filter.Continue
}

func (f *FixedSize) IsValid() bool { return f.size > 0 && f.size <= f.MaxPacketSize() }

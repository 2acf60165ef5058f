package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// Append appends a fixed trailer to every input packet, reusing the
// upstream buffer as output storage when it's large enough (the original's
// data_append / type_append).
type Append struct {
	filter.Base
	trailer []byte
}

// NewAppend constructs an Append filter that appends trailer to every
// packet that passes through, bounded at maxSize.
func NewAppend(trailer []byte, maxSize int) *Append {
	cp := make([]byte, len(trailer))
	copy(cp, trailer)
	return &Append{
		Base:    filter.NewBase("append", maxSize, filter.AllowReuseOfInputAsOutput, filter.OnlyValid),
		trailer: cp,
	}
}

func (f *Append) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	if !sameBacking(input.Bytes(), storage.Bytes()) {
		storage.Reset()
		if r := storage.Append(input.Bytes()); r != filter.Continue {
			return r
		}
	}
	if r := storage.Append(f.trailer); r != filter.Continue {
		return r
	}
	output.Start(storage.Bytes())
	input.Stop()
	return filter.Continue
}

func (f *Append) IsValid() bool { return len(f.trailer) > 0 }

// sameBacking reports whether a and b share the same underlying array,
// mirroring the original's "copy_to_lazily" check: skip the copy when the
// input handle is already pointing at the filter's own storage (the
// planner aliased them).
func sameBacking(a, b []byte) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	return &a[0] == &b[0]
}

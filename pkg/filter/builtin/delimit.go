package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// Delimit accumulates bytes until a multi-byte delimiter sequence is found,
// then emits everything before the delimiter (the original's
// type_delimit/data_delimit). A partial match is kept appended to storage
// and later trimmed once confirmed; a false-start match resets silently.
type Delimit struct {
	filter.Base
	delim   []byte
	matched int
}

// NewDelimit constructs a Delimit filter matching delim, bounded at maxSize.
func NewDelimit(delim []byte, maxSize int) *Delimit {
	cp := make([]byte, len(delim))
	copy(cp, delim)
	return &Delimit{
		Base:  filter.NewBase("delimit", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid),
		delim: cp,
	}
}

func (f *Delimit) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	in := input.Bytes()
	n := len(in)
	for i := 0; i < n; i++ {
		b := in[i]
		if b == f.delim[f.matched] {
			f.matched++
			if f.matched >= len(f.delim) {
				f.matched = 0
				storage.TrimTail(len(f.delim) - 1)
				output.Start(storage.Bytes())
				storage.Reset()
				input.Start(in[i+1:])
				return filter.Continue
			}
			// partial match: keep the byte appended, it may turn out to be data
			if r := storage.Append([]byte{b}); r != filter.Continue {
				return r
			}
			continue
		}
		f.matched = 0
		if r := storage.Append([]byte{b}); r != filter.Continue {
			return r
		}
	}
	input.Stop()
	return filter.Continue
}

func (f *Delimit) Reset() {
	f.Base.Reset()
	f.matched = 0
}

func (f *Delimit) IsValid() bool { return len(f.delim) > 0 }

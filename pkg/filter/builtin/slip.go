package builtin

import "github.com/jowharshamshiri/txrx/pkg/filter"

// RFC-1055 SLIP framing bytes.
const (
	frameEnd             byte = 0xC0
	frameEscape          byte = 0xDB
	transposedFrameEnd   byte = 0xDC
	transposedFrameEsc   byte = 0xDD
)

// SlipEncode frames each input packet with SLIP escaping and a trailing
// frame-end byte. When PrefixWithFrameEnd is set, an extra leading
// frame-end is emitted so a receiver using SlipDecode's WaitForFirstFrameEnd
// can't mistake a mid-stream restart's partial data for a real frame.
type SlipEncode struct {
	filter.Base
	PrefixWithFrameEnd bool
}

// NewSlipEncode constructs a SLIP encoder bounded at maxSize.
func NewSlipEncode(maxSize int, prefixWithFrameEnd bool) *SlipEncode {
	return &SlipEncode{
		Base:               filter.NewBase("slip::encode", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid),
		PrefixWithFrameEnd: prefixWithFrameEnd,
	}
}

func (f *SlipEncode) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	in := input.Bytes()

	minimum := len(in) + 1
	if f.PrefixWithFrameEnd {
		minimum++
	}
	if minimum > storage.Max() {
		return filter.AbortExceededStorage
	}

	storage.Reset()
	if f.PrefixWithFrameEnd {
		if r := storage.Append([]byte{frameEnd}); r != filter.Continue {
			return r
		}
	}
	for _, b := range in {
		switch b {
		case frameEnd:
			if minimum++; minimum > storage.Max() {
				return filter.AbortExceededStorage
			}
			if r := storage.Append([]byte{frameEscape, transposedFrameEnd}); r != filter.Continue {
				return r
			}
		case frameEscape:
			if minimum++; minimum > storage.Max() {
				return filter.AbortExceededStorage
			}
			if r := storage.Append([]byte{frameEscape, transposedFrameEsc}); r != filter.Continue {
				return r
			}
		default:
			if r := storage.Append([]byte{b}); r != filter.Continue {
				return r
			}
		}
	}
	if r := storage.Append([]byte{frameEnd}); r != filter.Continue {
		return r
	}
	output.Start(storage.Bytes())
	input.Stop()
	return filter.Continue
}

func (f *SlipEncode) IsValid() bool { return true }

// SlipDecode reassembles SLIP frames: frameEnd is a frame boundary, empty
// frames are ignored, and an unrecognized escape sequence aborts with
// AbortDataFormatError. When WaitForFirstFrameEnd is set, all bytes up to
// and including the first frame-end are discarded, guarding against
// interpreting a mid-frame hot-restart as a valid packet.
type SlipDecode struct {
	filter.Base
	WaitForFirstFrameEnd bool
	inEscape             bool
	needFirstFrameEnd    bool
}

// NewSlipDecode constructs a SLIP decoder bounded at maxSize.
func NewSlipDecode(maxSize int, waitForFirstFrameEnd bool) *SlipDecode {
	return &SlipDecode{
		Base:                 filter.NewBase("slip::decode", maxSize, filter.NeverReuseInputAsOutput, filter.OnlyValid),
		WaitForFirstFrameEnd: waitForFirstFrameEnd,
		needFirstFrameEnd:    waitForFirstFrameEnd,
	}
}

func (f *SlipDecode) Process(input, output *filter.Handle) filter.Result {
	storage := f.BestOutputStorage()
	in := input.Bytes()
	for i := 0; i < len(in); i++ {
		b := in[i]

		if f.needFirstFrameEnd {
			f.needFirstFrameEnd = b != frameEnd
			continue
		}

		switch {
		case f.inEscape:
			f.inEscape = false
			switch b {
			case transposedFrameEnd:
				if r := storage.Append([]byte{frameEnd}); r != filter.Continue {
					return r
				}
			case transposedFrameEsc:
				if r := storage.Append([]byte{frameEscape}); r != filter.Continue {
					return r
				}
			default:
				return filter.AbortDataFormatError
			}
		case b == frameEnd:
			if storage.Len() > 0 {
				output.Start(storage.Bytes())
				storage.Reset()
				input.Start(in[i+1:])
				return filter.Continue
			}
		case b == frameEscape:
			f.inEscape = true
		default:
			if r := storage.Append([]byte{b}); r != filter.Continue {
				return r
			}
		}
	}
	input.Stop()
	return filter.Continue
}

func (f *SlipDecode) Reset() {
	f.Base.Reset()
	f.inEscape = false
	f.needFirstFrameEnd = f.WaitForFirstFrameEnd
}

func (f *SlipDecode) IsValid() bool { return true }

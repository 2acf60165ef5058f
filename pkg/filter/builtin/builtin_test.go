package builtin

import (
	"bytes"
	"testing"

	"github.com/jowharshamshiri/txrx/pkg/filter"
)

func TestForwardByCopy(t *testing.T) {
	f := NewForwardByCopy(64)
	var in, out filter.Handle
	in.Start([]byte("abc"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if in.Live() {
		t.Error("expected input consumed")
	}
	if !bytes.Equal(out.Bytes(), []byte("abc")) {
		t.Errorf("got %q, want %q", out.Bytes(), "abc")
	}
	// Mutating the original slice shouldn't leak through: the filter copied it.
	original := []byte("xyz")
	var in2 filter.Handle
	in2.Start(original)
	f.Process(&in2, &out)
	original[0] = 'Z'
	if out.Bytes()[0] == 'Z' {
		t.Error("ForwardByCopy aliased the input buffer instead of copying it")
	}
}

func TestForwardByPointing(t *testing.T) {
	f := NewForwardByPointing(64)
	var in, out filter.Handle
	payload := []byte("passthrough")
	in.Start(payload)
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if in.Live() {
		t.Error("expected input handle to move to output, not stay live")
	}
	if &out.Bytes()[0] != &payload[0] {
		t.Error("expected ForwardByPointing to alias the same backing array")
	}
}

func TestAppend(t *testing.T) {
	f := NewAppend([]byte("-suffix"), 64)
	var in, out filter.Handle
	in.Start([]byte("prefix"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if in.Live() {
		t.Error("expected input consumed")
	}
	want := "prefix-suffix"
	if !bytes.Equal(out.Bytes(), []byte(want)) {
		t.Errorf("got %q, want %q", out.Bytes(), want)
	}
}

func TestAppendReusesUpstreamStorageWhenThreadedBackward(t *testing.T) {
	userBuf := make([]byte, 64)
	view := filter.NewStorageView(userBuf)

	f := NewAppend([]byte("!"), 64)
	f.SelectStorageBackward(view)

	var in, out filter.Handle
	in.Start([]byte("hi"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !filter.SameBacking(out.Bytes(), userBuf) {
		t.Error("expected Append to write directly into the caller's threaded-back buffer, not its own private slot")
	}
	if !bytes.Equal(out.Bytes(), []byte("hi!")) {
		t.Errorf("got %q, want %q", out.Bytes(), "hi!")
	}
}

func TestAppendIsValid(t *testing.T) {
	if NewAppend(nil, 64).IsValid() {
		t.Error("an empty trailer should be invalid")
	}
	if !NewAppend([]byte("x"), 64).IsValid() {
		t.Error("a non-empty trailer should be valid")
	}
}

func TestDelimitSinglePacketNoDelimiterYet(t *testing.T) {
	f := NewDelimit([]byte("\r\n"), 64)
	var in, out filter.Handle
	in.Start([]byte("partial"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if out.Live() {
		t.Error("expected no packet yet: delimiter not seen")
	}
}

func TestDelimitSplitsOnDelimiter(t *testing.T) {
	f := NewDelimit([]byte("\r\n"), 64)
	var in, out filter.Handle
	in.Start([]byte("line one\r\nline two\r\n"))

	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("line one")) {
		t.Errorf("first packet: got %q, want %q", out.Bytes(), "line one")
	}
	if !in.Live() {
		t.Fatal("expected remaining bytes still live for the second line")
	}
	out.Stop()

	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("line two")) {
		t.Errorf("second packet: got %q, want %q", out.Bytes(), "line two")
	}
}

func TestDelimitFalseStartResets(t *testing.T) {
	f := NewDelimit([]byte("\r\n"), 64)
	var in, out filter.Handle
	// A lone \r not followed by \n is data, not a delimiter.
	in.Start([]byte("a\rb\r\n"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("a\rb")) {
		t.Errorf("got %q, want %q", out.Bytes(), "a\rb")
	}
}

func TestFixedSizeAccumulatesUntilFull(t *testing.T) {
	f := NewFixedSize(5, 64)
	var in, out filter.Handle

	in.Start([]byte("ab"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if out.Live() {
		t.Fatal("expected no output yet, only 2 of 5 bytes accumulated")
	}

	in.Start([]byte("cdefg"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !out.Live() {
		t.Fatal("expected a full 5-byte packet")
	}
	if !bytes.Equal(out.Bytes(), []byte("abcde")) {
		t.Errorf("got %q, want %q", out.Bytes(), "abcde")
	}
	if !in.Live() || !bytes.Equal(in.Bytes(), []byte("fg")) {
		t.Errorf("expected leftover \"fg\" still live, got %q live=%v", in.Bytes(), in.Live())
	}
}

func TestFixedSizeIsValid(t *testing.T) {
	if NewFixedSize(0, 64).IsValid() {
		t.Error("size 0 should be invalid")
	}
	if NewFixedSize(128, 64).IsValid() {
		t.Error("size larger than maxSize should be invalid")
	}
	if !NewFixedSize(32, 64).IsValid() {
		t.Error("size within bounds should be valid")
	}
}

func TestSplitPassesThroughSmallPackets(t *testing.T) {
	f := NewSplit(10, 64)
	var in, out filter.Handle
	in.Start([]byte("small"))
	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("small")) {
		t.Errorf("got %q, want %q", out.Bytes(), "small")
	}
	if in.Live() {
		t.Error("expected input fully consumed")
	}
}

func TestSplitSegmentsOversizeInput(t *testing.T) {
	f := NewSplit(4, 64)
	var in, out filter.Handle
	in.Start([]byte("abcdefgh"))

	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("abcd")) {
		t.Errorf("first chunk: got %q, want %q", out.Bytes(), "abcd")
	}
	if !in.Live() {
		t.Fatal("expected remaining bytes still live")
	}
	out.Stop()

	if r := f.Process(&in, &out); r != filter.Continue {
		t.Fatalf("unexpected result %v", r)
	}
	if !bytes.Equal(out.Bytes(), []byte("efgh")) {
		t.Errorf("second chunk: got %q, want %q", out.Bytes(), "efgh")
	}
}

func TestRepeatEmitsNTimesThenConsumesInput(t *testing.T) {
	f := NewRepeat(3, 64)
	var in, out filter.Handle
	in.Start([]byte("x"))

	for i := 0; i < 3; i++ {
		if r := f.Process(&in, &out); r != filter.Continue {
			t.Fatalf("iteration %d: unexpected result %v", i, r)
		}
		if !bytes.Equal(out.Bytes(), []byte("x")) {
			t.Errorf("iteration %d: got %q, want %q", i, out.Bytes(), "x")
		}
		if i < 2 && !in.Live() {
			t.Errorf("iteration %d: expected input still live before the final repeat", i)
		}
		out.Stop()
	}
	if in.Live() {
		t.Error("expected input consumed after the final repeat")
	}
}

func TestRepeatIsValid(t *testing.T) {
	if NewRepeat(0, 64).IsValid() {
		t.Error("n=0 should be invalid")
	}
	if !NewRepeat(1, 64).IsValid() {
		t.Error("n=1 should be valid")
	}
}

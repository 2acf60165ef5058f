package transport

import (
	"testing"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

func TestSerialPipePairRoundTrip(t *testing.T) {
	sideA, sideB, err := NewPipePair()
	if err != nil {
		t.Fatalf("NewPipePair failed: %v", err)
	}

	a := txrx.NewEndpoint[SerialOpenArgs]("serial-a", NewSerialTransport())
	defer a.Destroy()
	if st := a.Open(SerialOpenArgs{RWC: sideA}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("a Open failed: %v", st)
	}

	b := txrx.NewEndpoint[SerialOpenArgs]("serial-b", NewSerialTransport())
	defer b.Destroy()
	if st := b.Open(SerialOpenArgs{RWC: sideB}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("b Open failed: %v", st)
	}

	if st := a.Send([]byte("over the wire"), txrx.DefaultUnsetChannel, txrx.In(2*time.Second)); !st.OK() {
		t.Fatalf("a Send failed: %v", st)
	}

	buf := make([]byte, 64)
	st, n, _ := b.Receive(buf, txrx.In(2*time.Second))
	if !st.OK() {
		t.Fatalf("b Receive failed: %v", st)
	}
	if string(buf[:n]) != "over the wire" {
		t.Errorf("got %q, want %q", buf[:n], "over the wire")
	}
}

func TestSerialOpenRejectsNilHandle(t *testing.T) {
	a := txrx.NewEndpoint[SerialOpenArgs]("serial-nil", NewSerialTransport())
	defer a.Destroy()
	st := a.Open(SerialOpenArgs{}, txrx.CommonOpts{}, txrx.NoDeadline())
	if st.Kind != txrx.ExtensionCode || st.Code != codeOpenFailed {
		t.Fatalf("expected codeOpenFailed, got %v", st)
	}
}

func TestSerialPeerCloseSurfacesAsNotOpen(t *testing.T) {
	sideA, sideB, err := NewPipePair()
	if err != nil {
		t.Fatalf("NewPipePair failed: %v", err)
	}

	a := txrx.NewEndpoint[SerialOpenArgs]("serial-close-a", NewSerialTransport())
	defer a.Destroy()
	if st := a.Open(SerialOpenArgs{RWC: sideA}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("a Open failed: %v", st)
	}

	b := txrx.NewEndpoint[SerialOpenArgs]("serial-close-b", NewSerialTransport())
	if st := b.Open(SerialOpenArgs{RWC: sideB}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("b Open failed: %v", st)
	}
	b.Destroy() // closes sideB's underlying pipe out from under a

	st, _, _ := a.Receive(make([]byte, 16), txrx.In(2*time.Second))
	if st.Kind != txrx.NotOpen {
		t.Fatalf("expected NotOpen after the peer's pipe closed, got %v", st)
	}
}

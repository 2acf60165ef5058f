package transport

import (
	"io"
	"os"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

// SerialOpenArgs is the open-argument type for SerialTransport: RWC is
// already open (either a real device file from OpenSerialPort, or one side
// of a PipePair) by the time Open is called — opening the underlying device
// is this transport's job in a real serial binding, but Go's standard
// library has no portable termios configuration, so unlike the socket
// transports, the "dial" step is pushed to the caller and ProcessOpen only
// adopts the handle.
type SerialOpenArgs struct {
	RWC io.ReadWriteCloser
}

// OpenSerialPort opens a character device path (e.g. "/dev/ttyUSB0") for
// raw read/write. It does not configure baud rate or line discipline: doing
// that portably needs termios ioctls outside the standard library, which no
// dependency in this module's domain stack provides (see DESIGN.md); callers
// needing a specific baud rate must configure the device out of band (e.g.
// via `stty`) before opening it here.
func OpenSerialPort(path string) (io.ReadWriteCloser, error) {
	return os.OpenFile(path, os.O_RDWR, 0)
}

// pipeEnd joins the read side of one os.Pipe with the write side of another
// into a single bidirectional handle.
type pipeEnd struct {
	r *os.File
	w *os.File
}

func (p *pipeEnd) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *pipeEnd) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *pipeEnd) Close() error {
	err1 := p.r.Close()
	err2 := p.w.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// NewPipePair returns two connected io.ReadWriteCloser endpoints standing in
// for a pseudo-terminal pair when no real serial hardware is available:
// writes to one side are readable from the other, in both directions. This
// is what the transport tests open a SerialTransport pair against.
func NewPipePair() (a, b io.ReadWriteCloser, err error) {
	r1, w1, err := os.Pipe() // a -> b
	if err != nil {
		return nil, nil, err
	}
	r2, w2, err := os.Pipe() // b -> a
	if err != nil {
		_ = r1.Close()
		_ = w1.Close()
		return nil, nil, err
	}
	return &pipeEnd{r: r2, w: w1}, &pipeEnd{r: r1, w: w2}, nil
}

// SerialTransportConfig mirrors the socket transports' config shape.
type SerialTransportConfig struct {
	PollInterval time.Duration
}

// DefaultSerialTransportConfig returns the default tunables.
func DefaultSerialTransportConfig() SerialTransportConfig {
	return SerialTransportConfig{PollInterval: 50 * time.Millisecond}
}

// SerialTransport implements txrx.Hooks[SerialOpenArgs] over any
// io.ReadWriteCloser (a real device file or a NewPipePair endpoint). Unlike
// the socket transports, a generic io.ReadWriteCloser has no read/write
// deadline support, so reads are served by a background goroutine feeding a
// buffered channel; ProcessSendReceive waits on it for at most
// cfg.PollInterval, so a silent peer holds the management goroutine for no
// longer than one poll tick per call.
type SerialTransport struct {
	cfg SerialTransportConfig

	rwc    io.ReadWriteCloser
	reads  chan readResult
	closed chan struct{}
}

type readResult struct {
	buf []byte
	err error
}

// NewSerialTransport constructs a transport with the given config, or the
// default config when none is supplied.
func NewSerialTransport(config ...SerialTransportConfig) *SerialTransport {
	cfg := DefaultSerialTransportConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &SerialTransport{cfg: cfg}
}

func (t *SerialTransport) Construct() {}

// Destruct stops the background reader and closes the handle if the
// transport is still open.
func (t *SerialTransport) Destruct() {
	if t.rwc != nil {
		close(t.closed)
		_ = t.rwc.Close()
		t.rwc = nil
	}
}

// ProcessOpen adopts args.RWC and starts the background reader.
func (t *SerialTransport) ProcessOpen(op *txrx.OpenOp, args SerialOpenArgs) {
	if args.RWC == nil {
		op.End(txrx.ExtendedStatus(codeOpenFailed, "SerialOpenArgs.RWC is nil"))
		return
	}
	t.rwc = args.RWC
	t.reads = make(chan readResult, 1)
	t.closed = make(chan struct{})
	go t.readLoop(args.RWC)
	op.End(txrx.Status{Kind: txrx.Success})
}

// readLoop issues one blocking Read at a time, each feeding at most one
// buffered result; ProcessSendReceive drains it, waiting at most one poll
// interval. rwc is
// captured as a parameter rather than read back off t so a concurrent
// ProcessClose nil-ing t.rwc can never race with this goroutine's own use of
// the handle.
func (t *SerialTransport) readLoop(rwc io.ReadWriteCloser) {
	for {
		buf := make([]byte, 65536)
		n, err := rwc.Read(buf)
		select {
		case t.reads <- readResult{buf: buf[:n], err: err}:
		case <-t.closed:
			return
		}
		if err != nil {
			return
		}
	}
}

// ProcessClose stops the background reader and closes the handle.
func (t *SerialTransport) ProcessClose(op *txrx.CloseOp) {
	if t.closed != nil {
		close(t.closed)
	}
	if t.rwc != nil {
		_ = t.rwc.Close()
		t.rwc = nil
	}
	op.End(txrx.Status{Kind: txrx.Success})
}

// ProcessSendReceive issues one blocking Write (serial writes have no
// natural deadline here, so a write simply runs to completion or error) and
// drains at most one buffered read result.
func (t *SerialTransport) ProcessSendReceive(send *txrx.SendOp, recv *txrx.ReceiveOp, idleInSendRecv bool) {
	if send != nil {
		n, err := t.rwc.Write(send.Data)
		if err != nil {
			send.End(txrx.NotOpenStatus(err.Error()))
		} else if n < len(send.Data) {
			send.Data = send.Data[n:]
		} else {
			send.End(txrx.Status{Kind: txrx.Success})
		}
	}

	if recv != nil {
		select {
		case res := <-t.reads:
			if res.err != nil {
				// EOF or a closed pipe end: the peer is gone (§4.1.8).
				recv.End(txrx.NotOpenStatus(res.err.Error()))
				return
			}
			recv.Channel = txrx.DefaultUnsetChannel
			recv.CopyDataAndEnd(res.buf)
		case <-time.After(t.cfg.PollInterval):
			// no data yet; dispatcher will call again
		}
	}
}

// WakeProcess has nothing to do: the receive side is already bounded by
// cfg.PollInterval via the select above.
func (t *SerialTransport) WakeProcess() {}

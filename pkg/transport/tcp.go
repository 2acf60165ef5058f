package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

// TCPMode selects which half of default_tcp.h's two personalities a
// TCPTransport plays.
type TCPMode int

const (
	// TCPClient dials Addr once, per ProcessOpen.
	TCPClient TCPMode = iota
	// TCPListenServer listens on Addr and accepts exactly one connection at
	// a time, reaping it on EOF/error so a fresh accept can be served. The
	// accept happens inside ProcessSendReceive, so only while a send or
	// receive is pending on the endpoint.
	TCPListenServer
)

// TCPOpenArgs is the open-argument type for TCPTransport.
type TCPOpenArgs struct {
	Mode TCPMode
	Addr string
}

// TCPTransportConfig mirrors UDPTransportConfig.
type TCPTransportConfig struct {
	MaxPacketSize int
	PollInterval  time.Duration
}

// DefaultTCPTransportConfig returns the default tunables.
func DefaultTCPTransportConfig() TCPTransportConfig {
	return TCPTransportConfig{
		MaxPacketSize: 65535,
		PollInterval:  200 * time.Millisecond,
	}
}

// TCPTransport implements txrx.Hooks[TCPOpenArgs]. In TCPListenServer mode
// with no live connection, a ProcessSendReceive call spends one poll tick
// on Accept instead of reading or writing; the pending send or receive is
// served on a later call once a peer is connected.
type TCPTransport struct {
	cfg TCPTransportConfig

	mode     TCPMode
	listener *net.TCPListener
	conn     *net.TCPConn
}

// NewTCPTransport constructs a transport with the given config, or the
// default config when none is supplied.
func NewTCPTransport(config ...TCPTransportConfig) *TCPTransport {
	cfg := DefaultTCPTransportConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &TCPTransport{cfg: cfg}
}

func (t *TCPTransport) Construct() {}
func (t *TCPTransport) Destruct()  {}

// Addr returns the transport's bound local address: the listener's address
// in TCPListenServer mode (useful when Addr was "host:0" and the kernel
// picked the port), or the live connection's local address in TCPClient
// mode. Returns nil before a successful Open.
func (t *TCPTransport) Addr() net.Addr {
	switch {
	case t.listener != nil:
		return t.listener.Addr()
	case t.conn != nil:
		return t.conn.LocalAddr()
	default:
		return nil
	}
}

// ProcessOpen dials Addr (TCPClient) or binds a listener (TCPListenServer);
// a listening transport reports Open success as soon as it is listening —
// the first peer connection is picked up later via the accept/reap loop in
// ProcessSendReceive, not synchronously here.
func (t *TCPTransport) ProcessOpen(op *txrx.OpenOp, args TCPOpenArgs) {
	t.mode = args.Mode
	addr, err := net.ResolveTCPAddr("tcp", args.Addr)
	if err != nil {
		op.End(txrx.ExtendedStatus(codeResolveFailed, fmt.Sprintf("resolve: %v", err)))
		return
	}
	switch args.Mode {
	case TCPClient:
		conn, err := net.DialTCP("tcp", nil, addr)
		if err != nil {
			op.End(txrx.ExtendedStatus(codeDialFailed, fmt.Sprintf("dial: %v", err)))
			return
		}
		t.conn = conn
	case TCPListenServer:
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			op.End(txrx.ExtendedStatus(codeListenFailed, fmt.Sprintf("listen: %v", err)))
			return
		}
		t.listener = l
	}
	op.End(txrx.Status{Kind: txrx.Success})
}

// ProcessClose tears down whichever of listener/conn is live. Safe to call
// even after a half-open ProcessOpen (both may be nil).
func (t *TCPTransport) ProcessClose(op *txrx.CloseOp) {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	if t.listener != nil {
		_ = t.listener.Close()
		t.listener = nil
	}
	op.End(txrx.Status{Kind: txrx.Success})
}

// ProcessSendReceive drives one accept step (listen-server mode, while no
// connection is live) or one read/write step against the live connection.
func (t *TCPTransport) ProcessSendReceive(send *txrx.SendOp, recv *txrx.ReceiveOp, idleInSendRecv bool) {
	if t.mode == TCPListenServer && t.conn == nil {
		_ = t.listener.SetDeadline(time.Now().Add(t.cfg.PollInterval))
		conn, err := t.listener.AcceptTCP()
		if err != nil {
			return // timeout (no peer yet) or transient accept error
		}
		t.conn = conn
		return
	}

	if t.conn == nil {
		// No accepted connection yet (listen-server) or never dialed
		// (client reusing a transport past a reaped close): the endpoint
		// isn't usably open from this transport's point of view.
		if send != nil {
			send.End(txrx.NotOpenStatus("no connection"))
		}
		if recv != nil {
			recv.End(txrx.NotOpenStatus("no connection"))
		}
		return
	}

	if send != nil {
		deadline := pollDeadline(send.Deadline(), t.cfg.PollInterval)
		_ = t.conn.SetWriteDeadline(deadline)
		n, err := t.conn.Write(send.Data)
		if err != nil {
			if isTimeout(err) {
				return
			}
			_ = t.conn.Close()
			t.conn = nil
			send.End(txrx.NotOpenStatus(err.Error()))
			return
		}
		if n < len(send.Data) {
			send.Data = send.Data[n:]
			return
		}
		send.End(txrx.Status{Kind: txrx.Success})
	}

	if recv != nil {
		deadline := pollDeadline(recv.Deadline(), t.cfg.PollInterval)
		_ = t.conn.SetReadDeadline(deadline)
		n, err := t.conn.Read(recv.Buf)
		if err != nil {
			if isTimeout(err) {
				return
			}
			// EOF or reset: reap the connection so a listen-server can
			// accept its next peer, and report the unsolicited closure
			// (§4.1.8) so the dispatcher arms auto-reopen.
			_ = t.conn.Close()
			t.conn = nil
			recv.End(txrx.NotOpenStatus(err.Error()))
			return
		}
		recv.Received = n
		recv.Channel = txrx.DefaultUnsetChannel
		recv.End(txrx.Status{Kind: txrx.Success})
	}
}

// WakeProcess has nothing to do: blocking calls are already bounded by
// cfg.PollInterval.
func (t *TCPTransport) WakeProcess() {}

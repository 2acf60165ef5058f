// Package transport supplies concrete byte-transport bindings — UDP, TCP and
// a serial-line stand-in — built on pkg/txrx.Hooks, the reference
// implementations this module's transport tests and cmd/txrxecho drive the
// dispatcher through. spec.md explicitly pushes concrete transports out of
// scope for the core engine; these are that "out of scope" layer, restored
// from original_source's default_udp.h / default_tcp.h worked bindings.
package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

// UDPOpenArgs is the open-argument type for UDPTransport: RemoteAddr is
// required (a UDP transport here is always a connected socket, matching
// default_udp.h's "send to the one peer we dialed" model); LocalAddr is
// optional ("" picks an ephemeral port).
type UDPOpenArgs struct {
	LocalAddr  string
	RemoteAddr string
}

// UDPTransportConfig holds the tunables for a UDPTransport, following the
// teacher's FooConfig/DefaultFooConfig convention.
type UDPTransportConfig struct {
	// MaxPacketSize is carried for symmetry with the other configs; reads go
	// straight into the receive op's buffer, whose length bounds a datagram.
	MaxPacketSize int
	// PollInterval bounds how long a single blocking read/write call waits
	// before returning control to the management goroutine, so close and
	// deadline expiry are noticed promptly even with no traffic.
	PollInterval time.Duration
}

// DefaultUDPTransportConfig returns the default tunables: a MaxPacketSize of
// 65535 (the largest UDP datagram) and a 200ms poll tick.
func DefaultUDPTransportConfig() UDPTransportConfig {
	return UDPTransportConfig{
		MaxPacketSize: 65535,
		PollInterval:  200 * time.Millisecond,
	}
}

// UDPTransport implements txrx.Hooks[UDPOpenArgs] over a connected UDP
// socket. It has no state needing its own locking: every Hooks method runs
// from the single management goroutine (or inline, for a raw endpoint), per
// the Hooks contract.
type UDPTransport struct {
	cfg  UDPTransportConfig
	conn *net.UDPConn
}

// NewUDPTransport constructs a transport with the given config, or the
// default config when none is supplied.
func NewUDPTransport(config ...UDPTransportConfig) *UDPTransport {
	cfg := DefaultUDPTransportConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	return &UDPTransport{cfg: cfg}
}

func (t *UDPTransport) Construct() {}
func (t *UDPTransport) Destruct()  {}

// ProcessOpen dials RemoteAddr, optionally bound to LocalAddr.
func (t *UDPTransport) ProcessOpen(op *txrx.OpenOp, args UDPOpenArgs) {
	if args.RemoteAddr == "" {
		op.End(txrx.ExtendedStatus(codeMissingRemoteAddr, "UDPOpenArgs.RemoteAddr is required"))
		return
	}
	raddr, err := net.ResolveUDPAddr("udp", args.RemoteAddr)
	if err != nil {
		op.End(txrx.ExtendedStatus(codeResolveFailed, fmt.Sprintf("resolve remote: %v", err)))
		return
	}
	var laddr *net.UDPAddr
	if args.LocalAddr != "" {
		laddr, err = net.ResolveUDPAddr("udp", args.LocalAddr)
		if err != nil {
			op.End(txrx.ExtendedStatus(codeResolveFailed, fmt.Sprintf("resolve local: %v", err)))
			return
		}
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		op.End(txrx.ExtendedStatus(codeDialFailed, fmt.Sprintf("dial: %v", err)))
		return
	}
	t.conn = conn
	op.End(txrx.Status{Kind: txrx.Success})
}

// ProcessClose closes the socket; safe to call even if ProcessOpen never
// completed successfully (t.conn is nil in that case).
func (t *UDPTransport) ProcessClose(op *txrx.CloseOp) {
	if t.conn != nil {
		_ = t.conn.Close()
		t.conn = nil
	}
	op.End(txrx.Status{Kind: txrx.Success})
}

// ProcessSendReceive drives at most one pending write and one pending read,
// each bounded by cfg.PollInterval so the call returns promptly regardless
// of traffic.
func (t *UDPTransport) ProcessSendReceive(send *txrx.SendOp, recv *txrx.ReceiveOp, idleInSendRecv bool) {
	if send != nil {
		deadline := pollDeadline(send.Deadline(), t.cfg.PollInterval)
		_ = t.conn.SetWriteDeadline(deadline)
		// A UDP write is all-or-nothing: the kernel either accepts the whole
		// datagram or returns an error, so there is no partial-write case to
		// retry here (unlike TCPTransport's stream write).
		_, err := t.conn.Write(send.Data)
		if err != nil {
			if isTimeout(err) {
				return // not done yet; dispatcher will call again
			}
			// A connected UDP socket surfaces the peer's ICMP
			// port-unreachable on the next syscall as ECONNREFUSED: the
			// clearest signal this transport has that the endpoint died on
			// its own, so it reports NotOpen rather than ExtensionCode,
			// letting the dispatcher's unsolicited-close handling (§4.1.8)
			// arm auto-reopen the same as a failed Open would.
			send.End(txrx.NotOpenStatus(err.Error()))
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
			recv.End(txrx.NotOpenStatus(err.Error()))
			return
		}
		recv.Received = n
		recv.Channel = txrx.DefaultUnsetChannel
		recv.End(txrx.Status{Kind: txrx.Success})
	}
}

// WakeProcess has nothing to do for UDP: the dispatcher's own condition
// variable already wakes the management goroutine, and a blocked
// conn.Read/Write is bounded by PollInterval rather than needing an
// external interrupt.
func (t *UDPTransport) WakeProcess() {}

// Command txrxecho is a small demo echo client/server built on the
// dispatcher: a server endpoint echoes back whatever it receives, and a
// client endpoint sends a line and prints the echo. Everything it needs —
// transport, role, addresses, optional SLIP framing — can come from flags or
// from an optional YAML config file, flags taking precedence.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/config"
	"github.com/jowharshamshiri/txrx/pkg/filter/builtin"
	"github.com/jowharshamshiri/txrx/pkg/transport"
	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

const maxLineSize = 4096

func main() {
	configPath := flag.String("config", "", "optional YAML config file (see pkg/config)")
	transportFlag := flag.String("transport", "", "udp or tcp (overrides config file)")
	roleFlag := flag.String("role", "", "client or server, tcp only (overrides config file)")
	localAddr := flag.String("local-addr", "", "udp local address (overrides config file)")
	remoteAddr := flag.String("remote-addr", "", "udp remote address (overrides config file)")
	addr := flag.String("addr", "", "tcp dial/listen address (overrides config file)")
	slip := flag.Bool("slip", false, "wrap send/receive in SLIP framing (overrides config file)")
	message := flag.String("message", "hello from txrxecho", "client: the line to send")
	flag.Parse()

	cfg := &config.Config{}
	if *configPath != "" {
		loaded, err := config.ParseFile(*configPath)
		if err != nil {
			log.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}
	applyFlagOverrides(cfg, *transportFlag, *roleFlag, *localAddr, *remoteAddr, *addr, *slip)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	switch cfg.Endpoint.Transport {
	case "udp":
		runUDP(cfg.Endpoint, *message)
	case "tcp":
		runTCP(cfg.Endpoint, *message)
	default:
		log.Fatalf("unsupported transport %q", cfg.Endpoint.Transport)
	}
}

func applyFlagOverrides(cfg *config.Config, transportFlag, roleFlag, localAddr, remoteAddr, addr string, slip bool) {
	if transportFlag != "" {
		cfg.Endpoint.Transport = transportFlag
	}
	if roleFlag != "" {
		cfg.Endpoint.Role = roleFlag
	}
	if localAddr != "" {
		cfg.Endpoint.LocalAddr = localAddr
	}
	if remoteAddr != "" {
		cfg.Endpoint.RemoteAddr = remoteAddr
	}
	if addr != "" {
		cfg.Endpoint.Addr = addr
	}
	if slip {
		cfg.Endpoint.Filters.Slip = true
	}
}

func buildOpts(e config.Endpoint) txrx.CommonOpts {
	b := txrx.NewOptsBuilder().WithOpenDeadline(txrx.In(e.OpenTimeout()))
	if e.Filters.Slip {
		b = b.WithReceiveFilter(builtin.NewSlipDecode(maxLineSize, true)).
			WithSendFilter(builtin.NewSlipEncode(maxLineSize, true))
	}
	if interval := e.AutoReopen(); interval > 0 {
		b = b.WithAutoReopen(interval)
	}
	return b.Build()
}

// runUDP echoes forever: UDP has no "client"/"server" distinction, both
// sides just send to and receive from one fixed peer.
func runUDP(e config.Endpoint, message string) {
	endpoint := txrx.NewEndpoint[transport.UDPOpenArgs]("txrxecho-udp", transport.NewUDPTransport())
	defer endpoint.Destroy()

	args := transport.UDPOpenArgs{LocalAddr: e.LocalAddr, RemoteAddr: e.RemoteAddr}
	if st := endpoint.Open(args, buildOpts(e), txrx.In(e.OpenTimeout())); !st.OK() {
		log.Fatalf("open failed: %v", st)
	}
	fmt.Printf("udp endpoint open: local=%s remote=%s\n", e.LocalAddr, e.RemoteAddr)

	if message != "" {
		if st := endpoint.Send([]byte(message), txrx.DefaultUnsetChannel, txrx.In(2*time.Second)); !st.OK() {
			log.Printf("send failed: %v", st)
		} else {
			fmt.Printf("sent: %q\n", message)
		}
	}

	runEchoLoop(endpoint)
}

func runTCP(e config.Endpoint, message string) {
	endpoint := txrx.NewEndpoint[transport.TCPOpenArgs]("txrxecho-tcp", transport.NewTCPTransport())
	defer endpoint.Destroy()

	mode := transport.TCPClient
	if e.Role == "server" {
		mode = transport.TCPListenServer
	}
	args := transport.TCPOpenArgs{Mode: mode, Addr: e.Addr}
	if st := endpoint.Open(args, buildOpts(e), txrx.In(e.OpenTimeout())); !st.OK() {
		log.Fatalf("open failed: %v", st)
	}
	fmt.Printf("tcp %s open on %s\n", e.Role, e.Addr)

	if e.Role == "client" && message != "" {
		if st := endpoint.Send([]byte(message), txrx.DefaultUnsetChannel, txrx.In(2*time.Second)); !st.OK() {
			log.Printf("send failed: %v", st)
		} else {
			fmt.Printf("sent: %q\n", message)
		}
	}

	runEchoLoop(endpoint)
}

// runEchoLoop receives in a loop, echoing every packet straight back to its
// sender's channel, until Ctrl+C/SIGTERM or the endpoint stops responding.
func runEchoLoop[A any](endpoint *txrx.Endpoint[A]) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, maxLineSize)
		for {
			st, n, channel := endpoint.Receive(buf, txrx.In(time.Second))
			switch {
			case st.OK():
				fmt.Printf("received %q, echoing back\n", buf[:n])
				if echoStatus := endpoint.Send(buf[:n], channel, txrx.In(time.Second)); !echoStatus.OK() {
					log.Printf("echo send failed: %v", echoStatus)
				}
			case st.Kind == txrx.TimedOut:
				continue
			default:
				log.Printf("receive ended: %v", st)
				return
			}
		}
	}()

	fmt.Println("press Ctrl+C to stop")
	select {
	case <-sigChan:
		fmt.Println("shutting down")
	case <-done:
	}
}

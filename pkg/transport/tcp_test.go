package transport

import (
	"testing"
	"time"

	"github.com/jowharshamshiri/txrx/pkg/txrx"
)

func TestTCPClientServerRoundTrip(t *testing.T) {
	serverTransport := NewTCPTransport()
	server := txrx.NewEndpoint[TCPOpenArgs]("tcp-server", serverTransport)
	defer server.Destroy()

	if st := server.Open(TCPOpenArgs{Mode: TCPListenServer, Addr: "127.0.0.1:0"}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("server Open failed: %v", st)
	}

	addr := serverTransport.Addr()
	if addr == nil {
		t.Fatal("expected server listener address after Open")
	}

	clientTransport := NewTCPTransport()
	client := txrx.NewEndpoint[TCPOpenArgs]("tcp-client", clientTransport)
	defer client.Destroy()

	if st := client.Open(TCPOpenArgs{Mode: TCPClient, Addr: addr.String()}, txrx.CommonOpts{}, txrx.In(2*time.Second)); !st.OK() {
		t.Fatalf("client Open failed: %v", st)
	}

	if st := client.Send([]byte("ping"), txrx.DefaultUnsetChannel, txrx.In(2*time.Second)); !st.OK() {
		t.Fatalf("client Send failed: %v", st)
	}

	buf := make([]byte, 64)
	st, n, _ := server.Receive(buf, txrx.In(2*time.Second))
	if !st.OK() {
		t.Fatalf("server Receive failed: %v", st)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("got %q, want %q", buf[:n], "ping")
	}

	if st := server.Send([]byte("pong"), txrx.DefaultUnsetChannel, txrx.In(2*time.Second)); !st.OK() {
		t.Fatalf("server Send failed: %v", st)
	}
	st, n, _ = client.Receive(buf, txrx.In(2*time.Second))
	if !st.OK() {
		t.Fatalf("client Receive failed: %v", st)
	}
	if string(buf[:n]) != "pong" {
		t.Errorf("got %q, want %q", buf[:n], "pong")
	}
}

func TestTCPClientReceivesNotOpenAfterServerCloses(t *testing.T) {
	serverTransport := NewTCPTransport()
	server := txrx.NewEndpoint[TCPOpenArgs]("tcp-server-2", serverTransport)
	defer server.Destroy()
	if st := server.Open(TCPOpenArgs{Mode: TCPListenServer, Addr: "127.0.0.1:0"}, txrx.CommonOpts{}, txrx.NoDeadline()); !st.OK() {
		t.Fatalf("server Open failed: %v", st)
	}
	addr := serverTransport.Addr()

	clientTransport := NewTCPTransport()
	client := txrx.NewEndpoint[TCPOpenArgs]("tcp-client-2", clientTransport)
	defer client.Destroy()
	if st := client.Open(TCPOpenArgs{Mode: TCPClient, Addr: addr.String()}, txrx.CommonOpts{}, txrx.In(2*time.Second)); !st.OK() {
		t.Fatalf("client Open failed: %v", st)
	}

	// The listen-server has no send or receive pending, so it never calls
	// Accept; the client's connection waits in the listener's backlog until
	// the server's Close tears the listener down underneath it.
	time.Sleep(100 * time.Millisecond)
	if st := server.Close(txrx.NoDeadline()); !st.OK() {
		t.Fatalf("server Close failed: %v", st)
	}

	st, _, _ := client.Receive(make([]byte, 16), txrx.In(2*time.Second))
	if st.Kind != txrx.NotOpen {
		t.Fatalf("expected client Receive to observe NotOpen after the peer closed, got %v", st)
	}
	if client.IsOpen() {
		t.Error("expected client endpoint to reflect NotOpen after the unsolicited closure")
	}
}

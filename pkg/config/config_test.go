package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseUDP(t *testing.T) {
	data := []byte(`
endpoint:
  transport: udp
  local_addr: 127.0.0.1:9000
  remote_addr: 127.0.0.1:9001
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Endpoint.Transport != "udp" {
		t.Errorf("Transport = %q, want udp", cfg.Endpoint.Transport)
	}
	if cfg.Endpoint.LocalAddr != "127.0.0.1:9000" || cfg.Endpoint.RemoteAddr != "127.0.0.1:9001" {
		t.Errorf("unexpected addrs: %+v", cfg.Endpoint)
	}
}

func TestParseTCP(t *testing.T) {
	data := []byte(`
endpoint:
  transport: TCP
  role: Server
  addr: 127.0.0.1:9100
  filters:
    slip: true
  auto_reopen_seconds: 0.5
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Endpoint.Transport != "tcp" || cfg.Endpoint.Role != "server" {
		t.Errorf("normalization failed: %+v", cfg.Endpoint)
	}
	if !cfg.Endpoint.Filters.Slip {
		t.Error("expected filters.slip = true")
	}
	if got := cfg.Endpoint.AutoReopen(); got.Seconds() != 0.5 {
		t.Errorf("AutoReopen() = %v, want 500ms", got)
	}
}

func TestValidateRejectsMissingTransport(t *testing.T) {
	_, err := Parse([]byte(`endpoint: {}`))
	if err == nil {
		t.Fatal("expected an error for missing transport")
	}
}

func TestValidateRejectsIncompleteUDP(t *testing.T) {
	_, err := Parse([]byte(`
endpoint:
  transport: udp
  local_addr: 127.0.0.1:9000
`))
	if err == nil {
		t.Fatal("expected an error for udp config missing remote_addr")
	}
}

func TestValidateRejectsTCPWithoutRole(t *testing.T) {
	_, err := Parse([]byte(`
endpoint:
  transport: tcp
  addr: 127.0.0.1:9100
`))
	if err == nil {
		t.Fatal("expected an error for tcp config missing role")
	}
}

func TestValidateRejectsUnknownTransport(t *testing.T) {
	_, err := Parse([]byte(`
endpoint:
  transport: carrier-pigeon
`))
	if err == nil {
		t.Fatal("expected an error for an unsupported transport")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte(`
endpoint:
  transport: udp
  local_addr: 127.0.0.1:9000
  remote_addr: 127.0.0.1:9001
  bogus_field: true
`))
	if err == nil {
		t.Fatal("expected strict decoding to reject an unknown field")
	}
}

func TestOpenTimeoutDefault(t *testing.T) {
	var e Endpoint
	if got, want := e.OpenTimeout().Seconds(), 5.0; got != want {
		t.Errorf("default OpenTimeout = %v, want %v", got, want)
	}
}

func TestAutoReopenDisabledByDefault(t *testing.T) {
	var e Endpoint
	if got := e.AutoReopen(); got != 0 {
		t.Errorf("default AutoReopen = %v, want 0", got)
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "txrxecho.yaml")
	contents := []byte(`
endpoint:
  transport: udp
  local_addr: 127.0.0.1:9000
  remote_addr: 127.0.0.1:9001
`)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if cfg.Endpoint.Transport != "udp" {
		t.Errorf("Transport = %q, want udp", cfg.Endpoint.Transport)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := ParseFile(filepath.Join(t.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

package statsd

import (
	"net"
	"strings"
	"testing"
	"time"
)

func listen(t *testing.T) net.PacketConn {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	return pc
}

func readLine(t *testing.T, pc net.PacketConn) string {
	t.Helper()
	buf := make([]byte, 1024)
	if err := pc.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("deadline: %v", err)
	}
	n, _, err := pc.ReadFrom(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(buf[:n])
}

func TestClient_WritesLines(t *testing.T) {
	pc := listen(t)
	client, err := NewClient(Config{
		Enabled:    true,
		Address:    pc.LocalAddr().String(),
		Prefix:     " .stockgate. ",
		GlobalTags: map[string]string{"env": "prod", " service ": " gate "},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	if !client.Enabled() {
		t.Fatal("expected client to be enabled")
	}

	client.Count("gate/decision", 1, map[string]string{"decision": " allow ", "env": "stage", "": "x"})
	if got, want := readLine(t, pc), "stockgate.gate_decision:1|c|#decision:allow,env:stage,service:gate"; got != want {
		t.Fatalf("count line\n got: %q\nwant: %q", got, want)
	}

	client.Gauge("clients.active", 2.5, nil)
	if got, want := readLine(t, pc), "stockgate.clients.active:2.5|g|#env:prod,service:gate"; got != want {
		t.Fatalf("gauge line\n got: %q\nwant: %q", got, want)
	}

	client.Timing("auth..duration", 1500*time.Microsecond, nil)
	if got := readLine(t, pc); !strings.HasPrefix(got, "stockgate.auth.duration:1.5|ms") {
		t.Fatalf("timing line = %q", got)
	}
}

func TestClient_Close(t *testing.T) {
	pc := listen(t)
	client, err := NewClient(Config{Enabled: true, Address: pc.LocalAddr().String()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if client.Enabled() {
		t.Fatal("expected client to be disabled after Close")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	client.Count("dropped", 1, nil)

	var nilClient *Client
	nilClient.Count("x", 1, nil)
	if nilClient.Enabled() {
		t.Fatal("nil client should report disabled")
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestNewClient_Disabled(t *testing.T) {
	for _, cfg := range []Config{
		{Enabled: true, Address: "   "},
		{Enabled: false, Address: "127.0.0.1:8125"},
	} {
		client, err := NewClient(cfg)
		if err != nil {
			t.Fatalf("NewClient(%+v): %v", cfg, err)
		}
		if client.Enabled() {
			t.Fatalf("NewClient(%+v) should stay disabled", cfg)
		}
	}
}

func TestNewClient_DialError(t *testing.T) {
	_, err := NewClient(Config{Enabled: true, Address: "bad address"})
	if err == nil || !strings.Contains(err.Error(), "statsd dial") {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestQualify(t *testing.T) {
	c := &Client{}
	tests := map[string]string{
		" auth/sign in ": "auth_sign_in",
		"a..b":           "a.b",
		"x:y|z":          "x_y_z",
		"..":             "",
	}
	for in, want := range tests {
		if got := c.qualify(in); got != want {
			t.Errorf("qualify(%q) = %q, want %q", in, got, want)
		}
	}
}
